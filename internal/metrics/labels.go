package metrics

import (
	"errors"
	"strconv"

	"playground-gateway/internal/sandbox"
)

type Endpoint string

const (
	EndpointCompile            Endpoint = "compile"
	EndpointExecute            Endpoint = "execute"
	EndpointFormat             Endpoint = "format"
	EndpointClippy             Endpoint = "clippy"
	EndpointMiri               Endpoint = "miri"
	EndpointMacroExpansion     Endpoint = "macro_expansion"
	EndpointEvaluate           Endpoint = "evaluate"
	EndpointMetaCrates         Endpoint = "meta_crates"
	EndpointMetaVersionStable  Endpoint = "meta_version_stable"
	EndpointMetaVersionBeta    Endpoint = "meta_version_beta"
	EndpointMetaVersionNightly Endpoint = "meta_version_nightly"
	EndpointMetaVersionRustfmt Endpoint = "meta_version_rustfmt"
	EndpointMetaVersionClippy  Endpoint = "meta_version_clippy"
	EndpointMetaVersionMiri    Endpoint = "meta_version_miri"
)

type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeErrorUserCode Outcome = "error_user_code"
	OutcomeErrorTimeout  Outcome = "error_timeout"
	OutcomeErrorServer   Outcome = "error_server"
)

// Labels identify one observation. Fields that do not apply to an endpoint
// stay empty.
type Labels struct {
	Endpoint  Endpoint
	Outcome   Outcome
	Target    string
	Channel   string
	Mode      string
	Edition   string
	CrateType string
	Tests     *bool
	Backtrace *bool
}

var labelNames = []string{"endpoint", "outcome", "target", "channel", "mode", "edition", "crate_type", "tests", "backtrace"}

func (l Labels) values() []string {
	return []string{
		string(l.Endpoint),
		string(l.Outcome),
		l.Target,
		l.Channel,
		l.Mode,
		l.Edition,
		l.CrateType,
		boolLabel(l.Tests),
		boolLabel(l.Backtrace),
	}
}

func boolLabel(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

// OutcomeOf classifies a finished operation. success is the provider's
// verdict on the user code and is ignored when err is set.
func OutcomeOf(success bool, err error) Outcome {
	switch {
	case errors.Is(err, sandbox.ErrTimeout):
		return OutcomeErrorTimeout
	case err != nil:
		return OutcomeErrorServer
	case success:
		return OutcomeSuccess
	default:
		return OutcomeErrorUserCode
	}
}

func editionLabel(e sandbox.Edition) string {
	if e == sandbox.EditionDefault {
		return "default"
	}
	return string(e)
}

func CompileLabels(req *sandbox.CompileRequest) Labels {
	return Labels{
		Endpoint:  EndpointCompile,
		Target:    string(req.Target.Kind),
		Channel:   string(req.Channel),
		Mode:      string(req.Mode),
		Edition:   editionLabel(req.Edition),
		CrateType: string(req.CrateType),
		Tests:     &req.Tests,
		Backtrace: &req.Backtrace,
	}
}

func ExecuteLabels(req *sandbox.ExecuteRequest) Labels {
	return Labels{
		Endpoint:  EndpointExecute,
		Channel:   string(req.Channel),
		Mode:      string(req.Mode),
		Edition:   editionLabel(req.Edition),
		CrateType: string(req.CrateType),
		Tests:     &req.Tests,
		Backtrace: &req.Backtrace,
	}
}

func FormatLabels(req *sandbox.FormatRequest) Labels {
	return Labels{Endpoint: EndpointFormat, Edition: editionLabel(req.Edition)}
}

func ClippyLabels(req *sandbox.ClippyRequest) Labels {
	return Labels{
		Endpoint:  EndpointClippy,
		Edition:   editionLabel(req.Edition),
		CrateType: string(req.CrateType),
	}
}

func MiriLabels(req *sandbox.MiriRequest) Labels {
	return Labels{Endpoint: EndpointMiri, Edition: editionLabel(req.Edition)}
}

func MacroExpansionLabels(req *sandbox.MacroExpansionRequest) Labels {
	return Labels{Endpoint: EndpointMacroExpansion, Edition: editionLabel(req.Edition)}
}
