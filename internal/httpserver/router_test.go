package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"playground-gateway/internal/dispatch"
	"playground-gateway/internal/gist"
	"playground-gateway/internal/handlers"
	"playground-gateway/internal/metacache"
	"playground-gateway/internal/metrics"
	"playground-gateway/internal/playground"
	"playground-gateway/internal/sandbox/sandboxtest"
)

func newTestServer(t *testing.T, opts Options, metricsToken string) *httptest.Server {
	t.Helper()
	fake := sandboxtest.New()
	rec := metrics.NewRecorder()
	logger := zaptest.NewLogger(t)

	core := playground.New(
		dispatch.New(fake.Factory(), rec, logger),
		metacache.New(fake.Factory(), rec, logger, time.Minute),
		gist.NewService(gist.NewMemoryStore("")),
		metricsToken,
	)
	opts.AuthorizeMetrics = core.AuthorizeMetrics

	r := chi.NewRouter()
	SetupRouter(r, logger, rec, handlers.NewPlaygroundHandler(core), opts)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func defaultOptions() Options {
	return Options{RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20}
}

func TestRouter_Routes(t *testing.T) {
	srv := newTestServer(t, defaultOptions(), "")

	posts := map[string]string{
		"/compile":         `{"target":"asm","channel":"stable","mode":"debug","crateType":"bin","code":""}`,
		"/execute":         `{"channel":"stable","mode":"debug","crateType":"bin","code":""}`,
		"/format":          `{"code":""}`,
		"/clippy":          `{"code":""}`,
		"/miri":            `{"code":""}`,
		"/macro-expansion": `{"code":""}`,
		"/evaluate.json":   `{"version":"stable","optimize":"1","code":""}`,
		"/meta/crates":     ``,
		"/meta/gist":       `{"code":""}`,
	}
	for path, body := range posts {
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err, path)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	for _, path := range []string{"/healthz", "/metrics", "/meta/crates", "/meta/version/stable", "/meta/version/miri"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err, path)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestRouter_MetricsGuarded(t *testing.T) {
	srv := newTestServer(t, defaultOptions(), "s3cret")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Other routes stay open.
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_BodyLimit(t *testing.T) {
	opts := defaultOptions()
	opts.MaxBodyBytes = 16
	srv := newTestServer(t, opts, "")

	resp, err := http.Post(srv.URL+"/format", "application/json", strings.NewReader(`{"code":"`+strings.Repeat("a", 64)+`"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_CORS(t *testing.T) {
	opts := defaultOptions()
	opts.CORSEnabled = true
	srv := newTestServer(t, opts, "")

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/execute", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://play.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))
}
