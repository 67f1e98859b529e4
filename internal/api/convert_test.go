package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground-gateway/internal/apperr"
	"playground-gateway/internal/sandbox"
)

func TestCompileRequestToSandbox(t *testing.T) {
	req := &CompileRequest{
		Target:           "asm",
		AssemblyFlavor:   "intel",
		DemangleAssembly: "mangle",
		ProcessAssembly:  "raw",
		Channel:          "nightly",
		Mode:             "release",
		Edition:          "2021",
		CrateType:        "lib",
		Tests:            true,
		Code:             "pub fn f() {}",
	}

	got, err := req.ToSandbox()
	require.NoError(t, err)
	assert.Equal(t, &sandbox.CompileRequest{
		Target: sandbox.CompileTarget{
			Kind:           sandbox.TargetAssembly,
			Flavor:         sandbox.AssemblyFlavorIntel,
			Demangle:       false,
			FilterAssembly: false,
		},
		Channel:   sandbox.ChannelNightly,
		CrateType: sandbox.CrateTypeLib,
		Mode:      sandbox.ModeRelease,
		Edition:   sandbox.Edition2021,
		Tests:     true,
		Code:      "pub fn f() {}",
	}, got)
}

func TestParseTargetDefaults(t *testing.T) {
	target, err := ParseTarget("asm", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, sandbox.CompileTarget{
		Kind:           sandbox.TargetAssembly,
		Flavor:         sandbox.AssemblyFlavorATT,
		Demangle:       true,
		FilterAssembly: true,
	}, target)

	target, err = ParseTarget("mir", "intel", "", "")
	require.NoError(t, err)
	assert.Equal(t, sandbox.CompileTarget{Kind: sandbox.TargetMIR}, target)
}

func TestConversionErrors(t *testing.T) {
	tests := []struct {
		name    string
		convert func() error
		message string
	}{
		{"channel", func() error {
			_, err := (&ExecuteRequest{Channel: "purple", Mode: "debug", CrateType: "bin"}).ToSandbox()
			return err
		}, `The value "purple" is not a valid channel`},
		{"mode", func() error {
			_, err := (&ExecuteRequest{Channel: "stable", Mode: "fast", CrateType: "bin"}).ToSandbox()
			return err
		}, `The value "fast" is not a valid mode`},
		{"edition", func() error {
			_, err := (&FormatRequest{Edition: "1999"}).ToSandbox()
			return err
		}, `The value "1999" is not a valid edition`},
		{"crate type", func() error {
			_, err := (&ClippyRequest{CrateType: "exe"}).ToSandbox()
			return err
		}, `The value "exe" is not a valid crate type`},
		{"target", func() error {
			_, err := (&CompileRequest{Target: "elf"}).ToSandbox()
			return err
		}, `The value "elf" is not a valid target`},
		{"assembly flavor", func() error {
			_, err := ParseTarget("asm", "arm", "", "")
			return err
		}, `The value "arm" is not a valid assembly flavor`},
		{"evaluate version", func() error {
			_, err := (&EvaluateRequest{Version: "1.0"}).ToSandbox()
			return err
		}, `The value "1.0" is not a valid channel`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.convert()
			require.Error(t, err)
			var convErr *apperr.ConversionError
			assert.True(t, errors.As(err, &convErr))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestClippyDefaultsToBinary(t *testing.T) {
	got, err := (&ClippyRequest{Code: "fn main() {}"}).ToSandbox()
	require.NoError(t, err)
	assert.Equal(t, sandbox.CrateTypeBinary, got.CrateType)
}

func TestEvaluateRequestToSandbox(t *testing.T) {
	got, err := (&EvaluateRequest{Version: "beta", Optimize: "0", Code: "fn main() {}"}).ToSandbox()
	require.NoError(t, err)
	assert.Equal(t, sandbox.ChannelBeta, got.Channel)
	assert.Equal(t, sandbox.ModeDebug, got.Mode)
	assert.Equal(t, sandbox.CrateTypeBinary, got.CrateType)
	assert.False(t, got.Backtrace)

	got, err = (&EvaluateRequest{Version: "stable", Optimize: "2"}).ToSandbox()
	require.NoError(t, err)
	assert.Equal(t, sandbox.ModeRelease, got.Mode)
}

func TestNewEvaluateResponse(t *testing.T) {
	ok := NewEvaluateResponse(&sandbox.ExecuteResponse{Success: true, Stdout: "out", Stderr: "warn"})
	assert.Equal(t, &EvaluateResponse{Result: "out"}, ok)

	failed := NewEvaluateResponse(&sandbox.ExecuteResponse{Success: false, Stdout: "out", Stderr: "boom"})
	assert.Equal(t, &EvaluateResponse{Result: "boom"}, failed)
}

func TestMetaResponses(t *testing.T) {
	crates := NewMetaCratesResponse([]sandbox.CrateInformation{{Name: "rand", Version: "0.8.5", ID: "rand"}})
	assert.Equal(t, []CrateInformation{{Name: "rand", Version: "0.8.5", ID: "rand"}}, crates.Crates)

	empty := NewMetaCratesResponse(nil)
	assert.NotNil(t, empty.Crates)

	v := NewMetaVersionResponse(sandbox.Version{Release: "1.70.0", CommitHash: "abc", CommitDate: "2023-05-31"})
	assert.Equal(t, &MetaVersionResponse{Version: "1.70.0", Hash: "abc", Date: "2023-05-31"}, v)
}
