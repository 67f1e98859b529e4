// Package mcpserver exposes the playground core as Model Context Protocol
// tools, a second transport next to the HTTP adapter.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"playground-gateway/internal/api"
	"playground-gateway/internal/apperr"
	"playground-gateway/internal/metacache"
)

const (
	serverName    = "playground-gateway"
	serverVersion = "1.0.0"
)

// Playground is the core the tools call into.
type Playground interface {
	Compile(ctx context.Context, req *api.CompileRequest) (*api.CompileResponse, error)
	Execute(ctx context.Context, req *api.ExecuteRequest) (*api.ExecuteResponse, error)
	Evaluate(ctx context.Context, req *api.EvaluateRequest) (*api.EvaluateResponse, error)
	Format(ctx context.Context, req *api.FormatRequest) (*api.FormatResponse, error)
	Clippy(ctx context.Context, req *api.ClippyRequest) (*api.ClippyResponse, error)
	Miri(ctx context.Context, req *api.MiriRequest) (*api.MiriResponse, error)
	MacroExpansion(ctx context.Context, req *api.MacroExpansionRequest) (*api.MacroExpansionResponse, error)
	Meta(ctx context.Context, kind metacache.Kind, clientFingerprint string) (metacache.Result[any], error)
	GistCreate(ctx context.Context, req *api.MetaGistCreateRequest) (*api.MetaGistResponse, error)
	GistLoad(ctx context.Context, id string) (*api.MetaGistResponse, error)
}

// MCPServer wraps the mcp-go server and its registered tools.
type MCPServer struct {
	core      Playground
	logger    *zap.Logger
	mcpServer *server.MCPServer
	http      *server.StreamableHTTPServer
	tools     map[string]server.ServerTool
}

func New(core Playground, logger *zap.Logger) *MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MCPServer{
		core:      core,
		logger:    logger.Named("mcp"),
		mcpServer: server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	s.http = server.NewStreamableHTTPServer(s.mcpServer)
	return s
}

var (
	channelArg   = mcp.WithString("channel", mcp.Required(), mcp.Enum("stable", "beta", "nightly"), mcp.Description("Toolchain channel"))
	modeArg      = mcp.WithString("mode", mcp.Required(), mcp.Enum("debug", "release"), mcp.Description("Build profile"))
	editionArg   = mcp.WithString("edition", mcp.Enum("2015", "2018", "2021"), mcp.Description("Language edition; toolchain default when omitted"))
	crateTypeArg = mcp.WithString("crateType", mcp.Description("bin, lib, dylib, rlib, staticlib, cdylib or proc-macro"))
	codeArg      = mcp.WithString("code", mcp.Required(), mcp.Description("Rust source code"))
	testsArg     = mcp.WithBoolean("tests", mcp.Description("Build and run the test harness"))
	backtraceArg = mcp.WithBoolean("backtrace", mcp.Description("Set RUST_BACKTRACE"))
)

func (s *MCPServer) registerTools() {
	tools := []server.ServerTool{
		{Tool: mcp.NewTool("compile",
			mcp.WithDescription("Compile Rust code to assembly, LLVM IR, MIR, HIR or WebAssembly"),
			mcp.WithString("target", mcp.Required(), mcp.Enum("asm", "llvm-ir", "mir", "hir", "wasm")),
			mcp.WithString("assemblyFlavor", mcp.Enum("att", "intel")),
			mcp.WithString("demangleAssembly", mcp.Enum("demangle", "mangle")),
			mcp.WithString("processAssembly", mcp.Enum("filter", "raw")),
			channelArg, modeArg, editionArg, crateTypeArg, testsArg, backtraceArg, codeArg,
		), Handler: operation(s, "compile", s.core.Compile)},

		{Tool: mcp.NewTool("execute",
			mcp.WithDescription("Build and run Rust code"),
			channelArg, modeArg, editionArg, crateTypeArg, testsArg, backtraceArg, codeArg,
		), Handler: operation(s, "execute", s.core.Execute)},

		{Tool: mcp.NewTool("evaluate",
			mcp.WithDescription("Run a binary crate and return its output"),
			mcp.WithString("version", mcp.Required(), mcp.Enum("stable", "beta", "nightly")),
			mcp.WithString("optimize", mcp.Required(), mcp.Description(`"0" for a debug build, anything else for release`)),
			editionArg, testsArg, codeArg,
		), Handler: operation(s, "evaluate", s.core.Evaluate)},

		{Tool: mcp.NewTool("format",
			mcp.WithDescription("Format Rust code with rustfmt"),
			editionArg, codeArg,
		), Handler: operation(s, "format", s.core.Format)},

		{Tool: mcp.NewTool("clippy",
			mcp.WithDescription("Lint Rust code with clippy"),
			editionArg, crateTypeArg, codeArg,
		), Handler: operation(s, "clippy", s.core.Clippy)},

		{Tool: mcp.NewTool("miri",
			mcp.WithDescription("Interpret Rust code with miri"),
			editionArg, codeArg,
		), Handler: operation(s, "miri", s.core.Miri)},

		{Tool: mcp.NewTool("macro_expansion",
			mcp.WithDescription("Show Rust code after macro expansion"),
			editionArg, codeArg,
		), Handler: operation(s, "macro_expansion", s.core.MacroExpansion)},

		{Tool: mcp.NewTool("meta_crates",
			mcp.WithDescription("List crates available to snippets"),
		), Handler: s.handleMeta},

		{Tool: mcp.NewTool("meta_version",
			mcp.WithDescription("Report a toolchain or tool version"),
			mcp.WithString("kind", mcp.Required(), mcp.Enum("stable", "beta", "nightly", "rustfmt", "clippy", "miri")),
		), Handler: s.handleMeta},

		{Tool: mcp.NewTool("gist_create",
			mcp.WithDescription("Share code as a private snippet"),
			codeArg,
		), Handler: operation(s, "gist_create", s.core.GistCreate)},

		{Tool: mcp.NewTool("gist_load",
			mcp.WithDescription("Load a shared snippet"),
			mcp.WithString("id", mcp.Required()),
		), Handler: s.handleGistLoad},
	}

	s.tools = make(map[string]server.ServerTool, len(tools))
	for _, t := range tools {
		s.tools[t.Tool.Name] = t
	}
	s.mcpServer.AddTools(tools...)
}

// operation decodes the tool arguments into In using the HTTP wire names
// and returns Out as JSON text.
func operation[In, Out any](s *MCPServer, name string, call func(context.Context, *In) (*Out, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var in In
		if err := decodeArguments(request, &in); err != nil {
			err = apperr.Conversion(fmt.Errorf("Unable to deserialize request: %w", err))
			s.logger.Warn("invalid_arguments", zap.String("tool", name), zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}

		out, err := call(ctx, &in)
		if err != nil {
			s.logger.Warn("tool_failed", zap.String("tool", name), zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(out)
	}
}

func (s *MCPServer) handleMeta(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := metacache.KindCrates
	if request.Params.Name == "meta_version" {
		name, err := request.RequireString("kind")
		if err != nil {
			return nil, err
		}
		if kind, err = metacache.ParseVersionKind(name); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	res, err := s.core.Meta(ctx, kind, "")
	if err != nil {
		s.logger.Warn("tool_failed", zap.String("tool", request.Params.Name), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.Value)
}

func (s *MCPServer) handleGistLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return nil, err
	}
	out, err := s.core.GistLoad(ctx, id)
	if err != nil {
		s.logger.Warn("tool_failed", zap.String("tool", "gist_load"), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func decodeArguments(request mcp.CallToolRequest, v any) error {
	b, err := json.Marshal(request.GetArguments())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP blocks serving streamable HTTP on addr.
func (s *MCPServer) ServeHTTP(addr string) error {
	s.logger.Info("starting MCP server on HTTP", zap.String("addr", addr))
	return s.http.Start(addr)
}

// Shutdown stops the HTTP transport.
func (s *MCPServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
