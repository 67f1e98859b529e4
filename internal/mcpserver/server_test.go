package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"playground-gateway/internal/api"
	"playground-gateway/internal/dispatch"
	"playground-gateway/internal/gist"
	"playground-gateway/internal/metacache"
	"playground-gateway/internal/metrics"
	"playground-gateway/internal/playground"
	"playground-gateway/internal/sandbox/sandboxtest"
)

func newTestServer(t *testing.T) (*MCPServer, *sandboxtest.Fake) {
	t.Helper()
	fake := sandboxtest.New()
	rec := metrics.NewRecorder()
	logger := zaptest.NewLogger(t)

	core := playground.New(
		dispatch.New(fake.Factory(), rec, logger),
		metacache.New(fake.Factory(), rec, logger, metacache.DefaultTTL),
		gist.NewService(gist.NewMemoryStore("http://play")),
		"",
	)
	return New(core, logger), fake
}

func callTool(t *testing.T, s *MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool, ok := s.tools[name]
	require.True(t, ok, name)

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestTools_Registered(t *testing.T) {
	s, _ := newTestServer(t)

	for _, name := range []string{
		"compile", "execute", "evaluate", "format", "clippy", "miri",
		"macro_expansion", "meta_crates", "meta_version", "gist_create", "gist_load",
	} {
		tool, ok := s.tools[name]
		if assert.True(t, ok, name) {
			assert.Equal(t, name, tool.Tool.Name)
		}
	}
}

func TestExecuteTool(t *testing.T) {
	s, _ := newTestServer(t)

	res := callTool(t, s, "execute", map[string]any{
		"channel":   "stable",
		"mode":      "debug",
		"crateType": "bin",
		"code":      "hello",
	})
	assert.False(t, res.IsError)

	var out api.ExecuteResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, api.ExecuteResponse{Success: true, Stdout: "hello"}, out)
}

func TestExecuteTool_Failures(t *testing.T) {
	s, fake := newTestServer(t)

	res := callTool(t, s, "execute", map[string]any{"channel": "purple", "mode": "debug", "crateType": "bin", "code": ""})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), `The value "purple" is not a valid channel`)

	fake.Err = errors.New("no docker")
	res = callTool(t, s, "format", map[string]any{"code": ""})
	assert.True(t, res.IsError)
	assert.Equal(t, "Formatting operation failed: no docker", resultText(t, res))
}

func TestExecuteTool_MalformedArguments(t *testing.T) {
	s, fake := newTestServer(t)

	res := callTool(t, s, "execute", map[string]any{
		"channel":   "stable",
		"mode":      "debug",
		"crateType": "bin",
		"tests":     "yes",
		"code":      "",
	})
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(resultText(t, res), "Unable to convert request: Unable to deserialize request: "))
	assert.Zero(t, fake.Calls("execute"))
}

func TestMetaTools(t *testing.T) {
	s, _ := newTestServer(t)

	res := callTool(t, s, "meta_crates", nil)
	assert.JSONEq(t, `{"crates":[{"name":"rand","version":"0.8.5","id":"rand"}]}`, resultText(t, res))

	res = callTool(t, s, "meta_version", map[string]any{"kind": "beta"})
	assert.JSONEq(t, `{"version":"1.70.0-beta","hash":"abc","date":"2023-05-31"}`, resultText(t, res))

	res = callTool(t, s, "meta_version", map[string]any{"kind": "cobol"})
	assert.True(t, res.IsError)
}

func TestGistTools(t *testing.T) {
	s, _ := newTestServer(t)

	res := callTool(t, s, "gist_create", map[string]any{"code": "fn main() {}"})
	require.False(t, res.IsError)

	var created api.MetaGistResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &created))

	res = callTool(t, s, "gist_load", map[string]any{"id": created.ID})
	require.False(t, res.IsError)
	var loaded api.MetaGistResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &loaded))
	assert.Equal(t, created, loaded)
	assert.Equal(t, "fn main() {}", loaded.Code)

	res = callTool(t, s, "gist_load", map[string]any{"id": "missing"})
	assert.True(t, res.IsError)
}
