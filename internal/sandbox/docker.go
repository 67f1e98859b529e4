package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds configuration for the Docker backend
type Config struct {
	TimeoutSec     int
	MemoryMB       int
	NetworkEnabled bool
	// ImagePrefix is prepended to the channel name to form the image,
	// e.g. "rust-" + "nightly".
	ImagePrefix string
}

func (c *Config) timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c *Config) image(channel Channel) string {
	prefix := c.ImagePrefix
	if prefix == "" {
		prefix = "rust-"
	}
	return prefix + string(channel)
}

const (
	containerSourceDir = "/playground/src"
	containerOutputDir = "/playground-result"
	compilationOutput  = containerOutputDir + "/compilation"
)

// DockerOption defines a functional option for DockerFactory
type DockerOption func(*DockerFactory)

// WithCommandRunner sets the CommandRunner used to invoke docker.
func WithCommandRunner(cmdRunner CommandRunner) DockerOption {
	return func(d *DockerFactory) {
		d.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem used for per-request directories.
func WithFileSystem(fs FileSystem) DockerOption {
	return func(d *DockerFactory) {
		d.fs = fs
	}
}

// DockerFactory creates sandboxes backed by short-lived docker containers.
type DockerFactory struct {
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
	fs        FileSystem
}

// NewDockerFactory creates a DockerFactory with default implementations and optional overrides
func NewDockerFactory(logger *zap.Logger, config *Config, opts ...DockerOption) *DockerFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &DockerFactory{
		logger:    logger.Named("sandbox"),
		config:    config,
		cmdRunner: RealCommandRunner{},
		fs:        RealFileSystem{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// New prepares the scratch directories for one request.
func (f *DockerFactory) New(_ context.Context) (Sandbox, error) {
	tempDir, err := f.fs.MkdirTemp("", "playground-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	sb := &dockerSandbox{
		factory:   f,
		tempDir:   tempDir,
		sourceDir: filepath.Join(tempDir, "src"),
		outputDir: filepath.Join(tempDir, "output"),
	}

	for _, dir := range []string{sb.sourceDir, sb.outputDir} {
		if err := f.fs.MkdirAll(dir, DirPermission); err != nil {
			_ = f.fs.RemoveAll(tempDir)
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return sb, nil
}

type dockerSandbox struct {
	factory   *DockerFactory
	tempDir   string
	sourceDir string
	outputDir string
}

type runOptions struct {
	channel   Channel
	edition   Edition
	crateType CrateType
	backtrace bool
	mount     bool
	command   []string
}

type runResult struct {
	stdout   string
	stderr   string
	exitCode int
}

func (r runResult) success() bool { return r.exitCode == 0 }

func (s *dockerSandbox) Close() error {
	return s.factory.fs.RemoveAll(s.tempDir)
}

func (s *dockerSandbox) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	if err := s.writeSource(req.CrateType, req.Code); err != nil {
		return nil, err
	}

	res, err := s.run(ctx, runOptions{
		channel:   req.Channel,
		edition:   req.Edition,
		crateType: req.CrateType,
		backtrace: req.Backtrace,
		mount:     true,
		command:   buildCargoCommand(&req.Target, req.CrateType, req.Mode, req.Tests),
	})
	if err != nil {
		return nil, err
	}

	resp := &CompileResponse{Success: res.success(), Stdout: res.stdout, Stderr: res.stderr}
	if resp.Success {
		out, err := s.factory.fs.ReadFile(filepath.Join(s.outputDir, "compilation"))
		if err != nil {
			return nil, fmt.Errorf("failed to read compilation output: %w", err)
		}
		code := string(out)
		if req.Target.Kind == TargetAssembly {
			if req.Target.Demangle {
				code = demangleAssembly(code)
			}
			if req.Target.FilterAssembly {
				code = filterAssembly(code)
			}
		}
		resp.Code = code
	}
	return resp, nil
}

func (s *dockerSandbox) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	if err := s.writeSource(req.CrateType, req.Code); err != nil {
		return nil, err
	}

	res, err := s.run(ctx, runOptions{
		channel:   req.Channel,
		edition:   req.Edition,
		crateType: req.CrateType,
		backtrace: req.Backtrace,
		mount:     true,
		command:   buildCargoCommand(nil, req.CrateType, req.Mode, req.Tests),
	})
	if err != nil {
		return nil, err
	}
	return &ExecuteResponse{Success: res.success(), Stdout: res.stdout, Stderr: res.stderr}, nil
}

func (s *dockerSandbox) Format(ctx context.Context, req *FormatRequest) (*FormatResponse, error) {
	if err := s.writeSource(CrateTypeBinary, req.Code); err != nil {
		return nil, err
	}

	res, err := s.run(ctx, runOptions{
		channel: ChannelStable,
		edition: req.Edition,
		mount:   true,
		command: []string{"cargo", "fmt"},
	})
	if err != nil {
		return nil, err
	}

	resp := &FormatResponse{Success: res.success(), Stdout: res.stdout, Stderr: res.stderr}
	if resp.Success {
		formatted, err := s.factory.fs.ReadFile(filepath.Join(s.sourceDir, sourceFileName(CrateTypeBinary)))
		if err != nil {
			return nil, fmt.Errorf("failed to read formatted source: %w", err)
		}
		resp.Code = string(formatted)
	}
	return resp, nil
}

func (s *dockerSandbox) Clippy(ctx context.Context, req *ClippyRequest) (*ClippyResponse, error) {
	if err := s.writeSource(req.CrateType, req.Code); err != nil {
		return nil, err
	}

	res, err := s.run(ctx, runOptions{
		channel:   ChannelStable,
		edition:   req.Edition,
		crateType: req.CrateType,
		mount:     true,
		command:   []string{"cargo", "clippy"},
	})
	if err != nil {
		return nil, err
	}
	return &ClippyResponse{Success: res.success(), Stdout: res.stdout, Stderr: res.stderr}, nil
}

func (s *dockerSandbox) Miri(ctx context.Context, req *MiriRequest) (*MiriResponse, error) {
	if err := s.writeSource(CrateTypeBinary, req.Code); err != nil {
		return nil, err
	}

	res, err := s.run(ctx, runOptions{
		channel: ChannelNightly,
		edition: req.Edition,
		mount:   true,
		command: []string{"cargo", "miri", "run"},
	})
	if err != nil {
		return nil, err
	}
	return &MiriResponse{Success: res.success(), Stdout: res.stdout, Stderr: res.stderr}, nil
}

func (s *dockerSandbox) MacroExpansion(ctx context.Context, req *MacroExpansionRequest) (*MacroExpansionResponse, error) {
	if err := s.writeSource(CrateTypeLib, req.Code); err != nil {
		return nil, err
	}

	res, err := s.run(ctx, runOptions{
		channel:   ChannelNightly,
		edition:   req.Edition,
		crateType: CrateTypeLib,
		mount:     true,
		command:   []string{"cargo", "rustc", "--", "-Zunpretty=expanded"},
	})
	if err != nil {
		return nil, err
	}
	return &MacroExpansionResponse{Success: res.success(), Stdout: res.stdout, Stderr: res.stderr}, nil
}

func (s *dockerSandbox) Crates(ctx context.Context) ([]CrateInformation, error) {
	res, err := s.run(ctx, runOptions{
		channel: ChannelStable,
		command: []string{"cat", "crate-information.json"},
	})
	if err != nil {
		return nil, err
	}
	if !res.success() {
		return nil, fmt.Errorf("listing crates exited with %d: %s", res.exitCode, strings.TrimSpace(res.stderr))
	}

	var crates []CrateInformation
	if err := json.Unmarshal([]byte(res.stdout), &crates); err != nil {
		return nil, fmt.Errorf("failed to decode crate information: %w", err)
	}
	return crates, nil
}

func (s *dockerSandbox) Version(ctx context.Context, channel Channel) (Version, error) {
	res, err := s.run(ctx, runOptions{
		channel: channel,
		command: []string{"rustc", "--version", "--verbose"},
	})
	if err != nil {
		return Version{}, err
	}
	if !res.success() {
		return Version{}, fmt.Errorf("rustc --version exited with %d: %s", res.exitCode, strings.TrimSpace(res.stderr))
	}
	return parseRustcVersion(res.stdout)
}

func (s *dockerSandbox) ToolVersion(ctx context.Context, tool Tool) (Version, error) {
	var opts runOptions
	switch tool {
	case ToolRustfmt:
		opts = runOptions{channel: ChannelStable, command: []string{"rustfmt", "--version"}}
	case ToolClippy:
		opts = runOptions{channel: ChannelStable, command: []string{"cargo", "clippy", "--version"}}
	case ToolMiri:
		opts = runOptions{channel: ChannelNightly, command: []string{"cargo", "miri", "--version"}}
	default:
		return Version{}, fmt.Errorf("unknown tool: %s", tool)
	}

	res, err := s.run(ctx, opts)
	if err != nil {
		return Version{}, err
	}
	if !res.success() {
		return Version{}, fmt.Errorf("%s --version exited with %d: %s", tool, res.exitCode, strings.TrimSpace(res.stderr))
	}
	return parseToolVersion(res.stdout)
}

func (s *dockerSandbox) writeSource(crateType CrateType, code string) error {
	path := filepath.Join(s.sourceDir, sourceFileName(crateType))
	if err := s.factory.fs.WriteFile(path, []byte(code), FilePermission); err != nil {
		return fmt.Errorf("failed to write source: %w", err)
	}
	return nil
}

func (s *dockerSandbox) run(ctx context.Context, opts runOptions) (runResult, error) {
	cfg := s.factory.config
	logger := s.factory.logger
	containerName := "playground-" + uuid.NewString()

	args := []string{
		"docker", "run",
		"--name", containerName,
		"--rm",
		"--memory", fmt.Sprintf("%dm", cfg.MemoryMB),
		"--memory-swap", fmt.Sprintf("%dm", cfg.MemoryMB),
		"--pids-limit", "512",
		"--ulimit", "fsize=100000000",
		"--security-opt", "no-new-privileges:true",
		"--cap-drop", "ALL",
	}

	if cfg.NetworkEnabled {
		args = append(args, "--network", "bridge")
	} else {
		args = append(args, "--network", "none")
	}

	if opts.mount {
		args = append(args,
			"-v", fmt.Sprintf("%s:%s", s.sourceDir, containerSourceDir),
			"-v", fmt.Sprintf("%s:%s", s.outputDir, containerOutputDir),
		)
	}

	for _, env := range containerEnv(opts) {
		args = append(args, "-e", env)
	}

	args = append(args, cfg.image(opts.channel))
	args = append(args, opts.command...)

	timeout := cfg.timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := s.factory.cmdRunner.RunCommand(runCtx, args)
	elapsed := time.Since(start)

	if runErr := runCtx.Err(); runErr != nil {
		// The container outlives the docker client; use a fresh context
		// since the request one is already done.
		killCtx, killCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer killCancel()
		if _, _, _, killErr := s.factory.cmdRunner.RunCommand(killCtx, []string{"docker", "kill", containerName}); killErr != nil {
			logger.Warn("failed to kill container", zap.String("container", containerName), zap.Error(killErr))
		}
		if errors.Is(runErr, context.DeadlineExceeded) {
			return runResult{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return runResult{}, fmt.Errorf("container run cancelled: %w", runErr)
	}

	if err != nil {
		return runResult{}, fmt.Errorf("failed to run container: %w", err)
	}

	logger.Debug("container finished",
		zap.String("container", containerName),
		zap.String("channel", string(opts.channel)),
		zap.Strings("command", opts.command),
		zap.Int("exit_code", exitCode),
		zap.Duration("duration", elapsed),
	)

	return runResult{stdout: stdout, stderr: stderr, exitCode: exitCode}, nil
}

func containerEnv(opts runOptions) []string {
	var env []string
	if opts.edition != EditionDefault {
		env = append(env, "PLAYGROUND_EDITION="+string(opts.edition))
	}
	if opts.crateType != "" {
		env = append(env, "PLAYGROUND_CRATE_TYPE="+string(opts.crateType))
	}
	if opts.backtrace {
		env = append(env, "RUST_BACKTRACE=1")
	}
	return env
}

func sourceFileName(crateType CrateType) string {
	if crateType == "" || crateType.IsBinary() {
		return "main.rs"
	}
	return "lib.rs"
}

// buildCargoCommand returns the cargo invocation for an execution (target
// nil) or a compilation to the given target.
func buildCargoCommand(target *CompileTarget, crateType CrateType, mode Mode, tests bool) []string {
	cmd := []string{"cargo"}

	switch {
	case target != nil && target.Kind == TargetWasm:
		cmd = append(cmd, "wasm")
	case target != nil:
		cmd = append(cmd, "rustc")
	case tests:
		cmd = append(cmd, "test")
	case crateType != "" && !crateType.IsBinary():
		cmd = append(cmd, "build")
	default:
		cmd = append(cmd, "run")
	}

	if mode == ModeRelease {
		cmd = append(cmd, "--release")
	}

	if target == nil {
		return cmd
	}

	switch target.Kind {
	case TargetAssembly:
		cmd = append(cmd, "--", "--emit", "asm="+compilationOutput)
		if target.Flavor == AssemblyFlavorIntel {
			cmd = append(cmd, "-C", "llvm-args=-x86-asm-syntax=intel")
		}
	case TargetLLVMIR:
		cmd = append(cmd, "--", "--emit", "llvm-ir="+compilationOutput)
	case TargetMIR:
		cmd = append(cmd, "--", "--emit", "mir="+compilationOutput)
	case TargetHIR:
		cmd = append(cmd, "--", "-Zunpretty=hir", "-o", compilationOutput)
	case TargetWasm:
		cmd = append(cmd, "--", "-o", compilationOutput)
	}

	return cmd
}
