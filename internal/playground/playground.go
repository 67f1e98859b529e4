// Package playground is the transport-agnostic core: every HTTP handler and
// MCP tool is a thin call into a Service method.
package playground

import (
	"context"

	"playground-gateway/internal/api"
	"playground-gateway/internal/dispatch"
	"playground-gateway/internal/gist"
	"playground-gateway/internal/guard"
	"playground-gateway/internal/metacache"
	"playground-gateway/internal/metrics"
)

type Service struct {
	pipeline     *dispatch.Pipeline
	meta         *metacache.Cache
	gists        *gist.Service
	metricsToken string
}

func New(pipeline *dispatch.Pipeline, meta *metacache.Cache, gists *gist.Service, metricsToken string) *Service {
	return &Service{
		pipeline:     pipeline,
		meta:         meta,
		gists:        gists,
		metricsToken: metricsToken,
	}
}

func (s *Service) Compile(ctx context.Context, req *api.CompileRequest) (*api.CompileResponse, error) {
	return dispatch.Run(ctx, s.pipeline, dispatch.Compile, req)
}

func (s *Service) Execute(ctx context.Context, req *api.ExecuteRequest) (*api.ExecuteResponse, error) {
	return dispatch.Run(ctx, s.pipeline, dispatch.Execute, req)
}

// Evaluate is the legacy execute entry point. It is recorded under its own
// endpoint label.
func (s *Service) Evaluate(ctx context.Context, req *api.EvaluateRequest) (*api.EvaluateResponse, error) {
	return dispatch.Run(ctx, s.pipeline, dispatch.Evaluate, req, dispatch.WithEndpoint(metrics.EndpointEvaluate))
}

func (s *Service) Format(ctx context.Context, req *api.FormatRequest) (*api.FormatResponse, error) {
	return dispatch.Run(ctx, s.pipeline, dispatch.Format, req)
}

func (s *Service) Clippy(ctx context.Context, req *api.ClippyRequest) (*api.ClippyResponse, error) {
	return dispatch.Run(ctx, s.pipeline, dispatch.Clippy, req)
}

func (s *Service) Miri(ctx context.Context, req *api.MiriRequest) (*api.MiriResponse, error) {
	return dispatch.Run(ctx, s.pipeline, dispatch.Miri, req)
}

func (s *Service) MacroExpansion(ctx context.Context, req *api.MacroExpansionRequest) (*api.MacroExpansionResponse, error) {
	return dispatch.Run(ctx, s.pipeline, dispatch.MacroExpansion, req)
}

// Meta serves a cached metadata resource. When clientFingerprint matches the
// current value the result is Unchanged and carries no value.
func (s *Service) Meta(ctx context.Context, kind metacache.Kind, clientFingerprint string) (metacache.Result[any], error) {
	return s.meta.Get(ctx, kind, clientFingerprint)
}

func (s *Service) GistCreate(ctx context.Context, req *api.MetaGistCreateRequest) (*api.MetaGistResponse, error) {
	g, err := s.gists.Create(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	return gistResponse(g), nil
}

func (s *Service) GistLoad(ctx context.Context, id string) (*api.MetaGistResponse, error) {
	g, err := s.gists.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return gistResponse(g), nil
}

// AuthorizeMetrics checks the Authorization header presented to the
// diagnostics endpoint.
func (s *Service) AuthorizeMetrics(authorization string) error {
	return guard.Authorize(s.metricsToken, authorization)
}

func gistResponse(g *gist.Gist) *api.MetaGistResponse {
	return &api.MetaGistResponse{ID: g.ID, URL: g.URL, Code: g.Code}
}
