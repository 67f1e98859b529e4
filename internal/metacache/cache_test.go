package metacache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"playground-gateway/internal/api"
	"playground-gateway/internal/apperr"
	"playground-gateway/internal/metrics"
	"playground-gateway/internal/sandbox"
)

type fakeSandbox struct {
	sandbox.Sandbox

	mu           sync.Mutex
	crateCalls   int
	versionCalls map[sandbox.Channel]int
	toolCalls    map[sandbox.Tool]int
	cratesErr    error
	closed       int
}

func newFakeSandbox() *fakeSandbox {
	return &fakeSandbox{
		versionCalls: map[sandbox.Channel]int{},
		toolCalls:    map[sandbox.Tool]int{},
	}
}

func (f *fakeSandbox) Crates(context.Context) ([]sandbox.CrateInformation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crateCalls++
	if f.cratesErr != nil {
		return nil, f.cratesErr
	}
	return []sandbox.CrateInformation{{Name: "rand", Version: "0.8.5", ID: "rand"}}, nil
}

func (f *fakeSandbox) Version(_ context.Context, channel sandbox.Channel) (sandbox.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionCalls[channel]++
	return sandbox.Version{Release: "1.70.0-" + string(channel), CommitHash: "abc", CommitDate: "2023-05-31"}, nil
}

func (f *fakeSandbox) ToolVersion(_ context.Context, tool sandbox.Tool) (sandbox.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolCalls[tool]++
	return sandbox.Version{Release: string(tool) + "-1.0"}, nil
}

func (f *fakeSandbox) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func newTestCache(t *testing.T, sb *fakeSandbox, factoryErr error) *Cache {
	t.Helper()
	factory := sandbox.FactoryFunc(func(context.Context) (sandbox.Sandbox, error) {
		if factoryErr != nil {
			return nil, factoryErr
		}
		return sb, nil
	})
	return New(factory, metrics.NewRecorder(), zaptest.NewLogger(t), time.Minute)
}

func TestCacheCrates(t *testing.T) {
	sb := newFakeSandbox()
	c := newTestCache(t, sb, nil)

	res, err := c.Crates(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []api.CrateInformation{{Name: "rand", Version: "0.8.5", ID: "rand"}}, res.Value.Crates)

	again, err := c.Get(context.Background(), KindCrates, res.Fingerprint)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
	assert.Nil(t, again.Value)

	assert.Equal(t, 1, sb.crateCalls)
	assert.Equal(t, 1, sb.closed)
}

func TestCacheVersionsAreIndependentSlots(t *testing.T) {
	sb := newFakeSandbox()
	c := newTestCache(t, sb, nil)

	for _, kind := range []Kind{KindVersionStable, KindVersionBeta, KindVersionNightly} {
		res, err := c.Version(context.Background(), kind, "")
		require.NoError(t, err)
		assert.Contains(t, res.Value.Version, "1.70.0-")
	}
	for _, kind := range []Kind{KindVersionRustfmt, KindVersionClippy, KindVersionMiri} {
		res, err := c.Get(context.Background(), kind, "")
		require.NoError(t, err)
		v, ok := res.Value.(api.MetaVersionResponse)
		require.True(t, ok)
		assert.Contains(t, v.Version, "-1.0")
	}

	_, err := c.Version(context.Background(), KindVersionStable, "")
	require.NoError(t, err)

	assert.Equal(t, map[sandbox.Channel]int{"stable": 1, "beta": 1, "nightly": 1}, sb.versionCalls)
	assert.Equal(t, map[sandbox.Tool]int{"rustfmt": 1, "clippy": 1, "miri": 1}, sb.toolCalls)

	_, err = c.Version(context.Background(), KindCrates, "")
	require.Error(t, err)
}

func TestCacheWrapsFailures(t *testing.T) {
	sb := newFakeSandbox()
	sb.cratesErr = errors.New("image missing")
	c := newTestCache(t, sb, nil)

	_, err := c.Crates(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindMetadataFetch, apperr.KindOf(err))
	assert.Equal(t, "Caching operation failed for meta_crates: image missing", err.Error())

	_, err = c.Crates(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, 2, sb.crateCalls)
}

func TestCacheFactoryFailure(t *testing.T) {
	c := newTestCache(t, newFakeSandbox(), errors.New("no capacity"))

	_, err := c.Version(context.Background(), KindVersionNightly, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindMetadataFetch, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "Sandbox creation failed: no capacity")
}

func TestParseVersionKind(t *testing.T) {
	kind, err := ParseVersionKind("rustfmt")
	require.NoError(t, err)
	assert.Equal(t, KindVersionRustfmt, kind)
	assert.Equal(t, "meta_version_rustfmt", kind.String())

	_, err = ParseVersionKind("cargo")
	require.Error(t, err)
	assert.Equal(t, `The value "cargo" is not a valid version kind`, err.Error())
}
