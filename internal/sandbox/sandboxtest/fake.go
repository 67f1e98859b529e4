// Package sandboxtest provides an in-memory Sandbox for tests of the layers
// above the execution backend.
package sandboxtest

import (
	"context"
	"sync"

	"playground-gateway/internal/sandbox"
)

// Fake echoes request code back instead of running it. When Err is set
// every operation fails with it.
type Fake struct {
	mu     sync.Mutex
	Err    error
	calls  map[string]int
	closed int
}

func New() *Fake {
	return &Fake{calls: make(map[string]int)}
}

// Factory returns a factory that always hands out f.
func (f *Fake) Factory() sandbox.Factory {
	return sandbox.FactoryFunc(func(context.Context) (sandbox.Sandbox, error) {
		return f, nil
	})
}

// Calls returns how many times the named operation ran.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Closed returns how many times Close was called.
func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.Err
}

func (f *Fake) Compile(_ context.Context, req *sandbox.CompileRequest) (*sandbox.CompileResponse, error) {
	if err := f.enter("compile"); err != nil {
		return nil, err
	}
	return &sandbox.CompileResponse{Success: true, Code: string(req.Target.Kind) + ":" + req.Code}, nil
}

func (f *Fake) Execute(_ context.Context, req *sandbox.ExecuteRequest) (*sandbox.ExecuteResponse, error) {
	if err := f.enter("execute"); err != nil {
		return nil, err
	}
	return &sandbox.ExecuteResponse{Success: true, Stdout: req.Code}, nil
}

func (f *Fake) Format(_ context.Context, req *sandbox.FormatRequest) (*sandbox.FormatResponse, error) {
	if err := f.enter("format"); err != nil {
		return nil, err
	}
	return &sandbox.FormatResponse{Success: true, Code: req.Code + "\n"}, nil
}

func (f *Fake) Clippy(_ context.Context, req *sandbox.ClippyRequest) (*sandbox.ClippyResponse, error) {
	if err := f.enter("clippy"); err != nil {
		return nil, err
	}
	return &sandbox.ClippyResponse{Success: true, Stderr: req.Code}, nil
}

func (f *Fake) Miri(_ context.Context, req *sandbox.MiriRequest) (*sandbox.MiriResponse, error) {
	if err := f.enter("miri"); err != nil {
		return nil, err
	}
	return &sandbox.MiriResponse{Success: true, Stdout: req.Code}, nil
}

func (f *Fake) MacroExpansion(_ context.Context, req *sandbox.MacroExpansionRequest) (*sandbox.MacroExpansionResponse, error) {
	if err := f.enter("macro_expansion"); err != nil {
		return nil, err
	}
	return &sandbox.MacroExpansionResponse{Success: true, Stdout: req.Code}, nil
}

func (f *Fake) Crates(context.Context) ([]sandbox.CrateInformation, error) {
	if err := f.enter("crates"); err != nil {
		return nil, err
	}
	return []sandbox.CrateInformation{{Name: "rand", Version: "0.8.5", ID: "rand"}}, nil
}

func (f *Fake) Version(_ context.Context, channel sandbox.Channel) (sandbox.Version, error) {
	if err := f.enter("version"); err != nil {
		return sandbox.Version{}, err
	}
	return sandbox.Version{Release: "1.70.0-" + string(channel), CommitHash: "abc", CommitDate: "2023-05-31"}, nil
}

func (f *Fake) ToolVersion(_ context.Context, tool sandbox.Tool) (sandbox.Version, error) {
	if err := f.enter("tool_version"); err != nil {
		return sandbox.Version{}, err
	}
	return sandbox.Version{Release: string(tool) + "-1.0"}, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}
