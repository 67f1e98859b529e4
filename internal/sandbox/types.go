// Package sandbox defines the execution backend contract and its docker
// implementation.
//
// A Factory creates one Sandbox per request. Each Sandbox exposes the
// stateful operations (compile, execute, format, clippy, miri, macro
// expansion) and the metadata calls (crate listing, toolchain versions)
// that the gateway fronts.
package sandbox

import (
	"context"
	"errors"
)

// ErrTimeout is reported when the backend killed an operation that ran past
// its deadline.
var ErrTimeout = errors.New("sandbox: operation timed out")

type Channel string

const (
	ChannelStable  Channel = "stable"
	ChannelBeta    Channel = "beta"
	ChannelNightly Channel = "nightly"
)

type Mode string

const (
	ModeDebug   Mode = "debug"
	ModeRelease Mode = "release"
)

// Edition is empty when the toolchain default applies.
type Edition string

const (
	EditionDefault Edition = ""
	Edition2015    Edition = "2015"
	Edition2018    Edition = "2018"
	Edition2021    Edition = "2021"
)

type CrateType string

const (
	CrateTypeBinary    CrateType = "bin"
	CrateTypeLib       CrateType = "lib"
	CrateTypeDylib     CrateType = "dylib"
	CrateTypeRlib      CrateType = "rlib"
	CrateTypeStaticlib CrateType = "staticlib"
	CrateTypeCdylib    CrateType = "cdylib"
	CrateTypeProcMacro CrateType = "proc-macro"
)

// IsBinary reports whether the crate produces an executable.
func (c CrateType) IsBinary() bool { return c == CrateTypeBinary }

type TargetKind string

const (
	TargetAssembly TargetKind = "asm"
	TargetLLVMIR   TargetKind = "llvm-ir"
	TargetMIR      TargetKind = "mir"
	TargetHIR      TargetKind = "hir"
	TargetWasm     TargetKind = "wasm"
)

type AssemblyFlavor string

const (
	AssemblyFlavorATT   AssemblyFlavor = "att"
	AssemblyFlavorIntel AssemblyFlavor = "intel"
)

// CompileTarget selects what a compilation emits. The assembly options are
// only meaningful when Kind is TargetAssembly.
type CompileTarget struct {
	Kind           TargetKind     `json:"kind"`
	Flavor         AssemblyFlavor `json:"flavor,omitempty"`
	Demangle       bool           `json:"demangle"`
	FilterAssembly bool           `json:"filter_assembly"`
}

type CompileRequest struct {
	Target    CompileTarget `json:"target"`
	Channel   Channel       `json:"channel"`
	CrateType CrateType     `json:"crate_type"`
	Mode      Mode          `json:"mode"`
	Edition   Edition       `json:"edition,omitempty"`
	Tests     bool          `json:"tests"`
	Backtrace bool          `json:"backtrace"`
	Code      string        `json:"code"`
}

type CompileResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type ExecuteRequest struct {
	Channel   Channel   `json:"channel"`
	Mode      Mode      `json:"mode"`
	Edition   Edition   `json:"edition,omitempty"`
	CrateType CrateType `json:"crate_type"`
	Tests     bool      `json:"tests"`
	Backtrace bool      `json:"backtrace"`
	Code      string    `json:"code"`
}

type ExecuteResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type FormatRequest struct {
	Code    string  `json:"code"`
	Edition Edition `json:"edition,omitempty"`
}

type FormatResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type ClippyRequest struct {
	Code      string    `json:"code"`
	Edition   Edition   `json:"edition,omitempty"`
	CrateType CrateType `json:"crate_type"`
}

type ClippyResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type MiriRequest struct {
	Code    string  `json:"code"`
	Edition Edition `json:"edition,omitempty"`
}

type MiriResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type MacroExpansionRequest struct {
	Code    string  `json:"code"`
	Edition Edition `json:"edition,omitempty"`
}

type MacroExpansionResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

// CrateInformation describes one crate available to snippets.
type CrateInformation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ID      string `json:"id"`
}

// Version describes a toolchain or tool release.
type Version struct {
	Release    string `json:"release"`
	CommitHash string `json:"commit_hash"`
	CommitDate string `json:"commit_date"`
}

// Tool names a component whose version is reported independently of the
// compiler channel.
type Tool string

const (
	ToolRustfmt Tool = "rustfmt"
	ToolClippy  Tool = "clippy"
	ToolMiri    Tool = "miri"
)

// Sandbox is one execution context. It is used by a single request and
// closed afterwards.
type Sandbox interface {
	Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error)
	Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error)
	Format(ctx context.Context, req *FormatRequest) (*FormatResponse, error)
	Clippy(ctx context.Context, req *ClippyRequest) (*ClippyResponse, error)
	Miri(ctx context.Context, req *MiriRequest) (*MiriResponse, error)
	MacroExpansion(ctx context.Context, req *MacroExpansionRequest) (*MacroExpansionResponse, error)

	Crates(ctx context.Context) ([]CrateInformation, error)
	Version(ctx context.Context, channel Channel) (Version, error)
	ToolVersion(ctx context.Context, tool Tool) (Version, error)

	Close() error
}

// Factory creates execution contexts.
type Factory interface {
	New(ctx context.Context) (Sandbox, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (Sandbox, error)

func (f FactoryFunc) New(ctx context.Context) (Sandbox, error) { return f(ctx) }
