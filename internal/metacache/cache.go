// Package metacache fronts the slow metadata calls of the sandbox with one
// TTL-bound, single-flighted slot per resource.
package metacache

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"playground-gateway/internal/api"
	"playground-gateway/internal/apperr"
	"playground-gateway/internal/metrics"
	"playground-gateway/internal/sandbox"
	"playground-gateway/pkg/logging/logging"
)

// DefaultTTL is used when the configured TTL is not positive.
const DefaultTTL = 5 * time.Minute

// Kind names one metadata resource.
type Kind int

const (
	KindCrates Kind = iota
	KindVersionStable
	KindVersionBeta
	KindVersionNightly
	KindVersionRustfmt
	KindVersionClippy
	KindVersionMiri
)

var kindEndpoints = map[Kind]metrics.Endpoint{
	KindCrates:         metrics.EndpointMetaCrates,
	KindVersionStable:  metrics.EndpointMetaVersionStable,
	KindVersionBeta:    metrics.EndpointMetaVersionBeta,
	KindVersionNightly: metrics.EndpointMetaVersionNightly,
	KindVersionRustfmt: metrics.EndpointMetaVersionRustfmt,
	KindVersionClippy:  metrics.EndpointMetaVersionClippy,
	KindVersionMiri:    metrics.EndpointMetaVersionMiri,
}

// String returns the resource name used in logs, metrics and errors.
func (k Kind) String() string {
	if e, ok := kindEndpoints[k]; ok {
		return string(e)
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseVersionKind maps the last path segment of /meta/version/{name}.
func ParseVersionKind(name string) (Kind, error) {
	switch name {
	case "stable":
		return KindVersionStable, nil
	case "beta":
		return KindVersionBeta, nil
	case "nightly":
		return KindVersionNightly, nil
	case "rustfmt":
		return KindVersionRustfmt, nil
	case "clippy":
		return KindVersionClippy, nil
	case "miri":
		return KindVersionMiri, nil
	}
	return 0, &apperr.ConversionError{Value: name, What: "version kind"}
}

// Recorder receives regeneration observations.
type Recorder interface {
	RecordNoRequest(endpoint metrics.Endpoint, outcome metrics.Outcome, elapsed time.Duration)
	RecordRegeneration(resource string, err error)
}

// Cache owns the seven metadata slots. Slots regenerate independently.
type Cache struct {
	factory  sandbox.Factory
	recorder Recorder
	logger   *zap.Logger

	crates   *Slot[api.MetaCratesResponse]
	versions map[Kind]*Slot[api.MetaVersionResponse]
}

// New builds a Cache whose slots all share ttl.
func New(factory sandbox.Factory, recorder Recorder, logger *zap.Logger, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		factory:  factory,
		recorder: recorder,
		logger:   logger.Named("metacache"),
		versions: make(map[Kind]*Slot[api.MetaVersionResponse], 6),
	}

	c.crates = NewSlot(KindCrates.String(), ttl,
		generator(c, KindCrates, func(ctx context.Context, sb sandbox.Sandbox) (api.MetaCratesResponse, error) {
			crates, err := sb.Crates(ctx)
			if err != nil {
				return api.MetaCratesResponse{}, err
			}
			return *api.NewMetaCratesResponse(crates), nil
		}),
		WithClone(func(v api.MetaCratesResponse) api.MetaCratesResponse {
			return api.MetaCratesResponse{Crates: slices.Clone(v.Crates)}
		}),
	)

	channels := map[Kind]sandbox.Channel{
		KindVersionStable:  sandbox.ChannelStable,
		KindVersionBeta:    sandbox.ChannelBeta,
		KindVersionNightly: sandbox.ChannelNightly,
	}
	for kind, channel := range channels {
		c.versions[kind] = NewSlot(kind.String(), ttl,
			generator(c, kind, func(ctx context.Context, sb sandbox.Sandbox) (api.MetaVersionResponse, error) {
				v, err := sb.Version(ctx, channel)
				if err != nil {
					return api.MetaVersionResponse{}, err
				}
				return *api.NewMetaVersionResponse(v), nil
			}))
	}

	tools := map[Kind]sandbox.Tool{
		KindVersionRustfmt: sandbox.ToolRustfmt,
		KindVersionClippy:  sandbox.ToolClippy,
		KindVersionMiri:    sandbox.ToolMiri,
	}
	for kind, tool := range tools {
		c.versions[kind] = NewSlot(kind.String(), ttl,
			generator(c, kind, func(ctx context.Context, sb sandbox.Sandbox) (api.MetaVersionResponse, error) {
				v, err := sb.ToolVersion(ctx, tool)
				if err != nil {
					return api.MetaVersionResponse{}, err
				}
				return *api.NewMetaVersionResponse(v), nil
			}))
	}

	return c
}

// generator wraps a metadata call with sandbox acquisition, logging,
// metrics and error classification.
func generator[T any](c *Cache, kind Kind, fetch func(context.Context, sandbox.Sandbox) (T, error)) GenerateFunc[T] {
	return func(ctx context.Context) (T, error) {
		var zero T
		start := time.Now()

		sb, err := c.factory.New(ctx)
		if err != nil {
			c.observe(ctx, kind, time.Since(start), err)
			return zero, apperr.MetadataFetch(kind.String(), apperr.ContextCreation(err))
		}
		defer func() {
			if cerr := sb.Close(); cerr != nil {
				c.logger.Warn("failed to close sandbox", zap.String("resource", kind.String()), zap.Error(cerr))
			}
		}()

		v, err := fetch(ctx, sb)
		c.observe(ctx, kind, time.Since(start), err)
		if err != nil {
			return zero, apperr.MetadataFetch(kind.String(), err)
		}
		return v, nil
	}
}

func (c *Cache) observe(ctx context.Context, kind Kind, elapsed time.Duration, err error) {
	c.recorder.RecordNoRequest(kindEndpoints[kind], metrics.OutcomeOf(true, err), elapsed)
	c.recorder.RecordRegeneration(kind.String(), err)

	logger := logging.FromContextOr(ctx, c.logger)
	if err != nil {
		logger.Warn("metadata_regenerate",
			zap.String("resource", kind.String()),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return
	}
	logger.Info("metadata_regenerate",
		zap.String("resource", kind.String()),
		zap.Duration("duration", elapsed),
	)
}

// Crates returns the available crate list.
func (c *Cache) Crates(ctx context.Context, clientFingerprint string) (Result[api.MetaCratesResponse], error) {
	return c.crates.Get(ctx, clientFingerprint)
}

// Version returns one toolchain or tool version. kind must not be
// KindCrates.
func (c *Cache) Version(ctx context.Context, kind Kind, clientFingerprint string) (Result[api.MetaVersionResponse], error) {
	slot, ok := c.versions[kind]
	if !ok {
		return Result[api.MetaVersionResponse]{}, fmt.Errorf("metacache: %s is not a version resource", kind)
	}
	return slot.Get(ctx, clientFingerprint)
}

// Get serves any kind, erasing the value type for transport adapters that
// only serialize it.
func (c *Cache) Get(ctx context.Context, kind Kind, clientFingerprint string) (Result[any], error) {
	if kind == KindCrates {
		r, err := c.Crates(ctx, clientFingerprint)
		return erase(r), err
	}
	r, err := c.Version(ctx, kind, clientFingerprint)
	return erase(r), err
}

func erase[T any](r Result[T]) Result[any] {
	out := Result[any]{Unchanged: r.Unchanged, Fingerprint: r.Fingerprint}
	if !r.Unchanged && r.Fingerprint != "" {
		out.Value = r.Value
	}
	return out
}
