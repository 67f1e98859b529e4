// Package handlers is the HTTP adapter over the playground core.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"playground-gateway/internal/api"
	"playground-gateway/internal/apperr"
	"playground-gateway/internal/gist"
	"playground-gateway/internal/metacache"
	"playground-gateway/pkg/logging/logging"
)

// Playground is the core the handlers call into.
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

// PlaygroundHandler holds dependencies for the playground endpoints.
type PlaygroundHandler struct {
	core Playground
}

func NewPlaygroundHandler(core Playground) *PlaygroundHandler {
	return &PlaygroundHandler{core: core}
}

// operation decodes In, calls the core and writes Out as JSON.
func operation[In, Out any](name string, call func(context.Context, *In) (*Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.L(ctx)
		start := time.Now()

		var req In
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, apperr.Conversion(fmt.Errorf("Unable to deserialize request: %w", err)))
			return
		}

		resp, err := call(ctx, &req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		logger.Debug("request_served",
			zap.String("operation", name),
			zap.Duration("total_latency_ms", time.Since(start)),
		)
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *PlaygroundHandler) Compile() http.HandlerFunc {
	return operation("compile", h.core.Compile)
}

func (h *PlaygroundHandler) Execute() http.HandlerFunc {
	return operation("execute", h.core.Execute)
}

func (h *PlaygroundHandler) Evaluate() http.HandlerFunc {
	return operation("evaluate", h.core.Evaluate)
}

func (h *PlaygroundHandler) Format() http.HandlerFunc {
	return operation("format", h.core.Format)
}

func (h *PlaygroundHandler) Clippy() http.HandlerFunc {
	return operation("clippy", h.core.Clippy)
}

func (h *PlaygroundHandler) Miri() http.HandlerFunc {
	return operation("miri", h.core.Miri)
}

func (h *PlaygroundHandler) MacroExpansion() http.HandlerFunc {
	return operation("macro_expansion", h.core.MacroExpansion)
}

func (h *PlaygroundHandler) GistCreate() http.HandlerFunc {
	return operation("gist_create", h.core.GistCreate)
}

// GistLoad handles GET /meta/gist/{id}.
func (h *PlaygroundHandler) GistLoad(w http.ResponseWriter, r *http.Request) {
	resp, err := h.core.GistLoad(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MetaCrates handles GET|POST /meta/crates.
func (h *PlaygroundHandler) MetaCrates(w http.ResponseWriter, r *http.Request) {
	h.serveMeta(w, r, metacache.KindCrates)
}

// MetaVersion handles GET|POST /meta/version/{name}.
func (h *PlaygroundHandler) MetaVersion(w http.ResponseWriter, r *http.Request) {
	kind, err := metacache.ParseVersionKind(chi.URLParam(r, "name"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, api.ErrorJSON{Error: err.Error()})
		return
	}
	h.serveMeta(w, r, kind)
}

func (h *PlaygroundHandler) serveMeta(w http.ResponseWriter, r *http.Request, kind metacache.Kind) {
	res, err := h.core.Meta(r.Context(), kind, clientFingerprint(r.Header.Get("If-None-Match")))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("ETag", `"`+res.Fingerprint+`"`)
	if res.Unchanged {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, res.Value)
}

// clientFingerprint extracts the first entity tag of an If-None-Match
// header, ignoring the weak marker.
func clientFingerprint(header string) string {
	first, _, _ := strings.Cut(header, ",")
	tag := strings.TrimSpace(first)
	tag = strings.TrimPrefix(tag, "W/")
	return strings.Trim(tag, `"`)
}

// StatusFor maps a core error onto an HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindRequestConversion:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusUnauthorized
	case apperr.KindSnippetLoad:
		if errors.Is(err, gist.ErrNotFound) {
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	logger := logging.L(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request_failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Warn("request_rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, api.ErrorJSON{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
