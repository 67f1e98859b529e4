package api

import (
	"playground-gateway/internal/apperr"
	"playground-gateway/internal/sandbox"
)

func invalid(value, what string) error {
	return &apperr.ConversionError{Value: value, What: what}
}

func ParseChannel(s string) (sandbox.Channel, error) {
	switch c := sandbox.Channel(s); c {
	case sandbox.ChannelStable, sandbox.ChannelBeta, sandbox.ChannelNightly:
		return c, nil
	}
	return "", invalid(s, "channel")
}

func ParseMode(s string) (sandbox.Mode, error) {
	switch m := sandbox.Mode(s); m {
	case sandbox.ModeDebug, sandbox.ModeRelease:
		return m, nil
	}
	return "", invalid(s, "mode")
}

// ParseEdition accepts the empty string as the toolchain default.
func ParseEdition(s string) (sandbox.Edition, error) {
	switch e := sandbox.Edition(s); e {
	case sandbox.EditionDefault, sandbox.Edition2015, sandbox.Edition2018, sandbox.Edition2021:
		return e, nil
	}
	return "", invalid(s, "edition")
}

func ParseCrateType(s string) (sandbox.CrateType, error) {
	switch c := sandbox.CrateType(s); c {
	case sandbox.CrateTypeBinary, sandbox.CrateTypeLib, sandbox.CrateTypeDylib,
		sandbox.CrateTypeRlib, sandbox.CrateTypeStaticlib, sandbox.CrateTypeCdylib,
		sandbox.CrateTypeProcMacro:
		return c, nil
	}
	return "", invalid(s, "crate type")
}

// ParseTarget resolves the compile target and, for assembly, its output
// options. Empty assembly options take their defaults: AT&T syntax,
// demangled, filtered.
func ParseTarget(target, flavor, demangle, process string) (sandbox.CompileTarget, error) {
	var t sandbox.CompileTarget
	switch k := sandbox.TargetKind(target); k {
	case sandbox.TargetAssembly:
		t.Kind = k
	case sandbox.TargetLLVMIR, sandbox.TargetMIR, sandbox.TargetHIR, sandbox.TargetWasm:
		return sandbox.CompileTarget{Kind: k}, nil
	default:
		return t, invalid(target, "target")
	}

	switch flavor {
	case "", string(sandbox.AssemblyFlavorATT):
		t.Flavor = sandbox.AssemblyFlavorATT
	case string(sandbox.AssemblyFlavorIntel):
		t.Flavor = sandbox.AssemblyFlavorIntel
	default:
		return t, invalid(flavor, "assembly flavor")
	}

	switch demangle {
	case "", "demangle":
		t.Demangle = true
	case "mangle":
		t.Demangle = false
	default:
		return t, invalid(demangle, "demangling option")
	}

	switch process {
	case "", "filter":
		t.FilterAssembly = true
	case "raw":
		t.FilterAssembly = false
	default:
		return t, invalid(process, "assembly processing option")
	}

	return t, nil
}

func (r *CompileRequest) ToSandbox() (*sandbox.CompileRequest, error) {
	target, err := ParseTarget(r.Target, r.AssemblyFlavor, r.DemangleAssembly, r.ProcessAssembly)
	if err != nil {
		return nil, err
	}
	channel, err := ParseChannel(r.Channel)
	if err != nil {
		return nil, err
	}
	mode, err := ParseMode(r.Mode)
	if err != nil {
		return nil, err
	}
	edition, err := ParseEdition(r.Edition)
	if err != nil {
		return nil, err
	}
	crateType, err := ParseCrateType(r.CrateType)
	if err != nil {
		return nil, err
	}
	return &sandbox.CompileRequest{
		Target:    target,
		Channel:   channel,
		CrateType: crateType,
		Mode:      mode,
		Edition:   edition,
		Tests:     r.Tests,
		Backtrace: r.Backtrace,
		Code:      r.Code,
	}, nil
}

func (r *ExecuteRequest) ToSandbox() (*sandbox.ExecuteRequest, error) {
	channel, err := ParseChannel(r.Channel)
	if err != nil {
		return nil, err
	}
	mode, err := ParseMode(r.Mode)
	if err != nil {
		return nil, err
	}
	edition, err := ParseEdition(r.Edition)
	if err != nil {
		return nil, err
	}
	crateType, err := ParseCrateType(r.CrateType)
	if err != nil {
		return nil, err
	}
	return &sandbox.ExecuteRequest{
		Channel:   channel,
		Mode:      mode,
		Edition:   edition,
		CrateType: crateType,
		Tests:     r.Tests,
		Backtrace: r.Backtrace,
		Code:      r.Code,
	}, nil
}

func (r *FormatRequest) ToSandbox() (*sandbox.FormatRequest, error) {
	edition, err := ParseEdition(r.Edition)
	if err != nil {
		return nil, err
	}
	return &sandbox.FormatRequest{Code: r.Code, Edition: edition}, nil
}

// ToSandbox defaults an empty crate type to bin.
func (r *ClippyRequest) ToSandbox() (*sandbox.ClippyRequest, error) {
	edition, err := ParseEdition(r.Edition)
	if err != nil {
		return nil, err
	}
	crateType := sandbox.CrateTypeBinary
	if r.CrateType != "" {
		if crateType, err = ParseCrateType(r.CrateType); err != nil {
			return nil, err
		}
	}
	return &sandbox.ClippyRequest{Code: r.Code, Edition: edition, CrateType: crateType}, nil
}

func (r *MiriRequest) ToSandbox() (*sandbox.MiriRequest, error) {
	edition, err := ParseEdition(r.Edition)
	if err != nil {
		return nil, err
	}
	return &sandbox.MiriRequest{Code: r.Code, Edition: edition}, nil
}

func (r *MacroExpansionRequest) ToSandbox() (*sandbox.MacroExpansionRequest, error) {
	edition, err := ParseEdition(r.Edition)
	if err != nil {
		return nil, err
	}
	return &sandbox.MacroExpansionRequest{Code: r.Code, Edition: edition}, nil
}

// ToSandbox maps the legacy shape onto a binary execution: version is the
// channel and optimize "0" selects debug, anything else release.
func (r *EvaluateRequest) ToSandbox() (*sandbox.ExecuteRequest, error) {
	channel, err := ParseChannel(r.Version)
	if err != nil {
		return nil, err
	}
	mode := sandbox.ModeRelease
	if r.Optimize == "0" {
		mode = sandbox.ModeDebug
	}
	edition, err := ParseEdition(r.Edition)
	if err != nil {
		return nil, err
	}
	return &sandbox.ExecuteRequest{
		Channel:   channel,
		Mode:      mode,
		Edition:   edition,
		CrateType: sandbox.CrateTypeBinary,
		Tests:     r.Tests,
		Backtrace: false,
		Code:      r.Code,
	}, nil
}

func NewCompileResponse(r *sandbox.CompileResponse) *CompileResponse {
	return &CompileResponse{Success: r.Success, Code: r.Code, Stdout: r.Stdout, Stderr: r.Stderr}
}

func NewExecuteResponse(r *sandbox.ExecuteResponse) *ExecuteResponse {
	return &ExecuteResponse{Success: r.Success, Stdout: r.Stdout, Stderr: r.Stderr}
}

func NewFormatResponse(r *sandbox.FormatResponse) *FormatResponse {
	return &FormatResponse{Success: r.Success, Code: r.Code, Stdout: r.Stdout, Stderr: r.Stderr}
}

func NewClippyResponse(r *sandbox.ClippyResponse) *ClippyResponse {
	return &ClippyResponse{Success: r.Success, Stdout: r.Stdout, Stderr: r.Stderr}
}

func NewMiriResponse(r *sandbox.MiriResponse) *MiriResponse {
	return &MiriResponse{Success: r.Success, Stdout: r.Stdout, Stderr: r.Stderr}
}

func NewMacroExpansionResponse(r *sandbox.MacroExpansionResponse) *MacroExpansionResponse {
	return &MacroExpansionResponse{Success: r.Success, Stdout: r.Stdout, Stderr: r.Stderr}
}

// NewEvaluateResponse reports stdout on success and stderr otherwise.
func NewEvaluateResponse(r *sandbox.ExecuteResponse) *EvaluateResponse {
	if r.Success {
		return &EvaluateResponse{Result: r.Stdout}
	}
	return &EvaluateResponse{Result: r.Stderr}
}

func NewMetaCratesResponse(crates []sandbox.CrateInformation) *MetaCratesResponse {
	out := &MetaCratesResponse{Crates: make([]CrateInformation, 0, len(crates))}
	for _, c := range crates {
		out.Crates = append(out.Crates, CrateInformation{Name: c.Name, Version: c.Version, ID: c.ID})
	}
	return out
}

func NewMetaVersionResponse(v sandbox.Version) *MetaVersionResponse {
	return &MetaVersionResponse{Version: v.Release, Hash: v.CommitHash, Date: v.CommitDate}
}
