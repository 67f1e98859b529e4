// Package api holds the JSON wire types shared by the transport adapters
// and their conversions to and from the sandbox request shapes.
package api

type CompileRequest struct {
	Target           string `json:"target"`
	AssemblyFlavor   string `json:"assemblyFlavor,omitempty"`
	DemangleAssembly string `json:"demangleAssembly,omitempty"`
	ProcessAssembly  string `json:"processAssembly,omitempty"`
	Channel          string `json:"channel"`
	Mode             string `json:"mode"`
	Edition          string `json:"edition,omitempty"`
	CrateType        string `json:"crateType"`
	Tests            bool   `json:"tests"`
	Backtrace        bool   `json:"backtrace,omitempty"`
	Code             string `json:"code"`
}

type CompileResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type ExecuteRequest struct {
	Channel   string `json:"channel"`
	Mode      string `json:"mode"`
	Edition   string `json:"edition,omitempty"`
	CrateType string `json:"crateType"`
	Tests     bool   `json:"tests"`
	Backtrace bool   `json:"backtrace,omitempty"`
	Code      string `json:"code"`
}

type ExecuteResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type FormatRequest struct {
	Code    string `json:"code"`
	Edition string `json:"edition,omitempty"`
}

type FormatResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type ClippyRequest struct {
	Code      string `json:"code"`
	Edition   string `json:"edition,omitempty"`
	CrateType string `json:"crateType,omitempty"`
}

type ClippyResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type MiriRequest struct {
	Code    string `json:"code"`
	Edition string `json:"edition,omitempty"`
}

type MiriResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

type MacroExpansionRequest struct {
	Code    string `json:"code"`
	Edition string `json:"edition,omitempty"`
}

type MacroExpansionResponse struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

// EvaluateRequest is the legacy single-call execution shape.
type EvaluateRequest struct {
	Version  string `json:"version"`
	Optimize string `json:"optimize"`
	Code     string `json:"code"`
	Edition  string `json:"edition,omitempty"`
	Tests    bool   `json:"tests"`
}

type EvaluateResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

type CrateInformation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ID      string `json:"id"`
}

type MetaCratesResponse struct {
	Crates []CrateInformation `json:"crates"`
}

type MetaVersionResponse struct {
	Version string `json:"version"`
	Hash    string `json:"hash"`
	Date    string `json:"date"`
}

type MetaGistCreateRequest struct {
	Code string `json:"code"`
}

type MetaGistResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Code string `json:"code"`
}

type ErrorJSON struct {
	Error string `json:"error"`
}
