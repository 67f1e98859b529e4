// Package dispatch runs every stateful sandbox operation through the same
// convert, create, invoke, record and map-errors steps, whichever transport
// received the request.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"playground-gateway/internal/apperr"
	"playground-gateway/internal/metrics"
	"playground-gateway/internal/sandbox"
	"playground-gateway/pkg/logging/logging"
)

// Recorder receives one observation per invoked operation.
type Recorder interface {
	Record(labels metrics.Labels, elapsed time.Duration)
}

// Operation describes one sandbox call in terms of its inbound type In,
// sandbox request Req, sandbox response Resp and outbound type Out.
type Operation[In, Req, Resp, Out any] struct {
	Stage   apperr.Stage
	Convert func(In) (Req, error)
	Labels  func(Req) metrics.Labels
	Invoke  func(sb sandbox.Sandbox, ctx context.Context, req Req) (Resp, error)
	Success func(Resp) bool
	Respond func(Resp) Out
}

type runOptions struct {
	endpoint metrics.Endpoint
}

// Option adjusts a single Run.
type Option func(*runOptions)

// WithEndpoint forces the endpoint label, keeping the rest of the labels
// derived from the request.
func WithEndpoint(endpoint metrics.Endpoint) Option {
	return func(o *runOptions) { o.endpoint = endpoint }
}

type Pipeline struct {
	factory  sandbox.Factory
	recorder Recorder
	logger   *zap.Logger
}

func New(factory sandbox.Factory, recorder Recorder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		factory:  factory,
		recorder: recorder,
		logger:   logger.Named("dispatch"),
	}
}

// Run executes op for in. A request that fails conversion is rejected
// before any sandbox is created.
func Run[In, Req, Resp, Out any](ctx context.Context, p *Pipeline, op Operation[In, Req, Resp, Out], in In, opts ...Option) (Out, error) {
	var zero Out
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	req, err := op.Convert(in)
	if err != nil {
		return zero, apperr.Conversion(err)
	}

	sb, err := p.factory.New(ctx)
	if err != nil {
		return zero, apperr.ContextCreation(err)
	}
	defer func() {
		if cerr := sb.Close(); cerr != nil {
			p.logger.Warn("failed to close sandbox", zap.String("stage", string(op.Stage)), zap.Error(cerr))
		}
	}()

	labels := op.Labels(req)
	if o.endpoint != "" {
		labels.Endpoint = o.endpoint
	}

	start := time.Now()
	resp, err := op.Invoke(sb, ctx, req)
	elapsed := time.Since(start)

	success := err == nil && op.Success(resp)
	labels.Outcome = metrics.OutcomeOf(success, err)
	p.recorder.Record(labels, elapsed)

	logger := logging.FromContextOr(ctx, p.logger)
	fields := []zap.Field{
		zap.String("endpoint", string(labels.Endpoint)),
		zap.String("outcome", string(labels.Outcome)),
		zap.Duration("duration", elapsed),
	}
	if err != nil {
		logger.Error("sandbox_dispatch", append(fields, zap.Error(err))...)
		return zero, apperr.Operation(op.Stage, err)
	}
	logger.Info("sandbox_dispatch", fields...)

	return op.Respond(resp), nil
}
