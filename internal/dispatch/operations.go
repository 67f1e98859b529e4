package dispatch

import (
	"playground-gateway/internal/api"
	"playground-gateway/internal/apperr"
	"playground-gateway/internal/metrics"
	"playground-gateway/internal/sandbox"
)

var Compile = Operation[*api.CompileRequest, *sandbox.CompileRequest, *sandbox.CompileResponse, *api.CompileResponse]{
	Stage:   apperr.StageCompile,
	Convert: (*api.CompileRequest).ToSandbox,
	Labels:  metrics.CompileLabels,
	Invoke:  sandbox.Sandbox.Compile,
	Success: func(r *sandbox.CompileResponse) bool { return r.Success },
	Respond: api.NewCompileResponse,
}

var Execute = Operation[*api.ExecuteRequest, *sandbox.ExecuteRequest, *sandbox.ExecuteResponse, *api.ExecuteResponse]{
	Stage:   apperr.StageExecute,
	Convert: (*api.ExecuteRequest).ToSandbox,
	Labels:  metrics.ExecuteLabels,
	Invoke:  sandbox.Sandbox.Execute,
	Success: func(r *sandbox.ExecuteResponse) bool { return r.Success },
	Respond: api.NewExecuteResponse,
}

// Evaluate is the legacy alias of Execute. Run it with
// WithEndpoint(metrics.EndpointEvaluate).
var Evaluate = Operation[*api.EvaluateRequest, *sandbox.ExecuteRequest, *sandbox.ExecuteResponse, *api.EvaluateResponse]{
	Stage:   apperr.StageEvaluate,
	Convert: (*api.EvaluateRequest).ToSandbox,
	Labels:  metrics.ExecuteLabels,
	Invoke:  sandbox.Sandbox.Execute,
	Success: func(r *sandbox.ExecuteResponse) bool { return r.Success },
	Respond: api.NewEvaluateResponse,
}

var Format = Operation[*api.FormatRequest, *sandbox.FormatRequest, *sandbox.FormatResponse, *api.FormatResponse]{
	Stage:   apperr.StageFormat,
	Convert: (*api.FormatRequest).ToSandbox,
	Labels:  metrics.FormatLabels,
	Invoke:  sandbox.Sandbox.Format,
	Success: func(r *sandbox.FormatResponse) bool { return r.Success },
	Respond: api.NewFormatResponse,
}

var Clippy = Operation[*api.ClippyRequest, *sandbox.ClippyRequest, *sandbox.ClippyResponse, *api.ClippyResponse]{
	Stage:   apperr.StageLint,
	Convert: (*api.ClippyRequest).ToSandbox,
	Labels:  metrics.ClippyLabels,
	Invoke:  sandbox.Sandbox.Clippy,
	Success: func(r *sandbox.ClippyResponse) bool { return r.Success },
	Respond: api.NewClippyResponse,
}

var Miri = Operation[*api.MiriRequest, *sandbox.MiriRequest, *sandbox.MiriResponse, *api.MiriResponse]{
	Stage:   apperr.StageInterpret,
	Convert: (*api.MiriRequest).ToSandbox,
	Labels:  metrics.MiriLabels,
	Invoke:  sandbox.Sandbox.Miri,
	Success: func(r *sandbox.MiriResponse) bool { return r.Success },
	Respond: api.NewMiriResponse,
}

var MacroExpansion = Operation[*api.MacroExpansionRequest, *sandbox.MacroExpansionRequest, *sandbox.MacroExpansionResponse, *api.MacroExpansionResponse]{
	Stage:   apperr.StageExpand,
	Convert: (*api.MacroExpansionRequest).ToSandbox,
	Labels:  metrics.MacroExpansionLabels,
	Invoke:  sandbox.Sandbox.MacroExpansion,
	Success: func(r *sandbox.MacroExpansionResponse) bool { return r.Success },
	Respond: api.NewMacroExpansionResponse,
}
