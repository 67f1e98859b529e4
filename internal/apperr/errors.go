// Package apperr defines the errors surfaced to transport adapters.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the step that produced it.
type Kind int

const (
	KindUnknown Kind = iota
	KindContextCreation
	KindRequestConversion
	KindOperation
	KindMetadataFetch
	KindSnippetCreate
	KindSnippetLoad
	KindAuthorization
)

func (k Kind) String() string {
	switch k {
	case KindContextCreation:
		return "context_creation_failed"
	case KindRequestConversion:
		return "request_conversion_failed"
	case KindOperation:
		return "operation_failed"
	case KindMetadataFetch:
		return "metadata_fetch_failed"
	case KindSnippetCreate:
		return "snippet_create_failed"
	case KindSnippetLoad:
		return "snippet_load_failed"
	case KindAuthorization:
		return "authorization_failed"
	default:
		return "unknown"
	}
}

// Stage names the sandbox operation an OperationFailed error belongs to.
type Stage string

const (
	StageCompile   Stage = "compile"
	StageExecute   Stage = "execute"
	StageEvaluate  Stage = "evaluate"
	StageFormat    Stage = "format"
	StageLint      Stage = "lint"
	StageInterpret Stage = "interpret"
	StageExpand    Stage = "expand"
)

var stageMessages = map[Stage]string{
	StageCompile:   "Compilation operation failed",
	StageExecute:   "Execution operation failed",
	StageEvaluate:  "Evaluation operation failed",
	StageFormat:    "Formatting operation failed",
	StageLint:      "Linting operation failed",
	StageInterpret: "Interpreting operation failed",
	StageExpand:    "Expansion operation failed",
}

// Error is the uniform structured error handed to transport adapters.
type Error struct {
	Kind Kind
	// Stage is set for KindOperation.
	Stage Stage
	// Resource is set for KindMetadataFetch.
	Resource string
	Err      error
}

func (e *Error) Error() string {
	msg := e.summary()
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) summary() string {
	switch e.Kind {
	case KindContextCreation:
		return "Sandbox creation failed"
	case KindRequestConversion:
		return "Unable to convert request"
	case KindOperation:
		if m, ok := stageMessages[e.Stage]; ok {
			return m
		}
		return fmt.Sprintf("Operation %q failed", e.Stage)
	case KindMetadataFetch:
		return fmt.Sprintf("Caching operation failed for %s", e.Resource)
	case KindSnippetCreate:
		return "Gist creation failed"
	case KindSnippetLoad:
		return "Gist loading failed"
	case KindAuthorization:
		return "Wrong credentials"
	default:
		return "Unknown error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ContextCreation reports a failure to acquire an execution context.
func ContextCreation(err error) error {
	return &Error{Kind: KindContextCreation, Err: err}
}

// Conversion reports a malformed or unsupported inbound payload.
func Conversion(err error) error {
	return &Error{Kind: KindRequestConversion, Err: err}
}

// Operation reports a provider failure during the given stage.
func Operation(stage Stage, err error) error {
	return &Error{Kind: KindOperation, Stage: stage, Err: err}
}

// MetadataFetch reports a failed regeneration of a metadata resource.
func MetadataFetch(resource string, err error) error {
	return &Error{Kind: KindMetadataFetch, Resource: resource, Err: err}
}

// SnippetCreate reports a failure of the external snippet store on create.
func SnippetCreate(err error) error {
	return &Error{Kind: KindSnippetCreate, Err: err}
}

// SnippetLoad reports a failure of the external snippet store on load.
func SnippetLoad(err error) error {
	return &Error{Kind: KindSnippetLoad, Err: err}
}

// ErrUnauthorized is returned by the access guard.
var ErrUnauthorized = &Error{Kind: KindAuthorization}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ConversionError is the typed failure produced when an inbound value
// cannot be mapped onto an internal enumeration.
type ConversionError struct {
	Value string
	What  string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("The value %q is not a valid %s", e.Value, e.What)
}
