package gist

import (
	"context"
	"time"

	"go.uber.org/zap"

	"playground-gateway/pkg/logging/logging"
)

// StoreRecorder counts snippet store calls.
type StoreRecorder interface {
	RecordSnippetStore(backend, operation string, err error)
}

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner    Store
	backend  string
	recorder StoreRecorder
	logger   *zap.Logger
}

// NewLoggingStore returns a store that logs and records metrics. recorder
// may be nil.
func NewLoggingStore(inner Store, backend string, recorder StoreRecorder, logger *zap.Logger) *LoggingStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingStore{inner: inner, backend: backend, recorder: recorder, logger: logger.Named("gist")}
}

func (s *LoggingStore) Create(ctx context.Context, params CreateParams) (*Snapshot, error) {
	start := time.Now()
	snap, err := s.inner.Create(ctx, params)

	fields := []zap.Field{
		zap.String("backend", s.backend),
		zap.Int("content_bytes", len(params.Content)),
		zap.Float64("latency_ms", latencyMs(start)),
	}
	if snap != nil {
		fields = append(fields, zap.String("gist_id", snap.ID))
	}
	s.finish(ctx, "create", fields, err)

	return snap, err
}

func (s *LoggingStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	start := time.Now()
	snap, err := s.inner.Load(ctx, id)

	fields := []zap.Field{
		zap.String("backend", s.backend),
		zap.String("gist_id", id),
		zap.Float64("latency_ms", latencyMs(start)),
	}
	if snap != nil {
		fields = append(fields, zap.Int("files", len(snap.Files)))
	}
	s.finish(ctx, "load", fields, err)

	return snap, err
}

func (s *LoggingStore) finish(ctx context.Context, operation string, fields []zap.Field, err error) {
	if s.recorder != nil {
		s.recorder.RecordSnippetStore(s.backend, operation, err)
	}

	logger := logging.FromContextOr(ctx, s.logger)
	msg := "gist_store_" + operation
	if err != nil {
		logger.Error(msg, append(fields, zap.Error(err))...)
		return
	}
	logger.Info(msg, fields...)
}

func latencyMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
