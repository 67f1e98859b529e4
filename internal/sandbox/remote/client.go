// Package remote implements sandbox.Sandbox on top of an HTTP execution
// service, so the gateway can run without a local docker daemon.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"playground-gateway/internal/sandbox"
)

const maxRequestSize = 2 * 1024 * 1024 // 2MB total JSON payload

// errorTypeTimeout marks an execution the remote side killed for running
// too long.
const errorTypeTimeout = "timeout"

type providerErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// retryPolicy says whether a failed call may be sent again. Calls that run
// user code are sent once so a lost reply never runs the program twice.
type retryPolicy bool

const (
	once      retryPolicy = false
	retryable retryPolicy = true
)

type client struct {
	*Factory
}

func (c *client) Compile(ctx context.Context, req *sandbox.CompileRequest) (*sandbox.CompileResponse, error) {
	var resp sandbox.CompileResponse
	if err := c.call(ctx, http.MethodPost, "/v1/compile", once, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Execute(ctx context.Context, req *sandbox.ExecuteRequest) (*sandbox.ExecuteResponse, error) {
	var resp sandbox.ExecuteResponse
	if err := c.call(ctx, http.MethodPost, "/v1/execute", once, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Format(ctx context.Context, req *sandbox.FormatRequest) (*sandbox.FormatResponse, error) {
	var resp sandbox.FormatResponse
	if err := c.call(ctx, http.MethodPost, "/v1/format", retryable, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Clippy(ctx context.Context, req *sandbox.ClippyRequest) (*sandbox.ClippyResponse, error) {
	var resp sandbox.ClippyResponse
	if err := c.call(ctx, http.MethodPost, "/v1/clippy", once, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Miri(ctx context.Context, req *sandbox.MiriRequest) (*sandbox.MiriResponse, error) {
	var resp sandbox.MiriResponse
	if err := c.call(ctx, http.MethodPost, "/v1/miri", once, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) MacroExpansion(ctx context.Context, req *sandbox.MacroExpansionRequest) (*sandbox.MacroExpansionResponse, error) {
	var resp sandbox.MacroExpansionResponse
	if err := c.call(ctx, http.MethodPost, "/v1/macro-expansion", once, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Crates(ctx context.Context) ([]sandbox.CrateInformation, error) {
	var resp struct {
		Crates []sandbox.CrateInformation `json:"crates"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/meta/crates", retryable, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Crates, nil
}

func (c *client) Version(ctx context.Context, channel sandbox.Channel) (sandbox.Version, error) {
	var v sandbox.Version
	err := c.call(ctx, http.MethodGet, "/v1/meta/version/"+url.PathEscape(string(channel)), retryable, nil, &v)
	return v, err
}

func (c *client) ToolVersion(ctx context.Context, tool sandbox.Tool) (sandbox.Version, error) {
	var v sandbox.Version
	err := c.call(ctx, http.MethodGet, "/v1/meta/tool/"+url.PathEscape(string(tool)), retryable, nil, &v)
	return v, err
}

func (c *client) Close() error { return nil }

// call sends one JSON request, through doWithRetry when policy allows it,
// and decodes the reply into out. Running out of UpstreamTimeout is
// reported as sandbox.ErrTimeout.
func (c *client) call(parentCtx context.Context, method, path string, policy retryPolicy, in, out any) error {
	start := time.Now()

	var bodyBytes []byte
	if in != nil {
		var err error
		bodyBytes, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: marshal request: %w", err)
		}
		if len(bodyBytes) > maxRequestSize {
			return fmt.Errorf("remote: request too large (%d bytes, max %d)", len(bodyBytes), maxRequestSize)
		}
	}

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.UpstreamTimeout)
	defer cancel()

	requestID := uuid.NewString()
	target := c.cfg.BaseURL + path

	doOnce := func(ctx context.Context) (*http.Response, error) {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("remote: build HTTP request: %w", err)
		}
		if c.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		if bodyBytes != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("X-Request-ID", requestID)
		return c.httpClient.Do(httpReq)
	}

	var resp *http.Response
	var err error
	if policy == retryable {
		resp, err = c.doWithRetry(ctx, doOnce)
	} else {
		resp, err = doOnce(ctx)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", sandbox.ErrTimeout, c.cfg.UpstreamTimeout, err)
		}
		c.logger.Error("remote sandbox request failed",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

		var perr providerErrorResponse
		if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
			if perr.Error.Type == errorTypeTimeout {
				return fmt.Errorf("%w: %s", sandbox.ErrTimeout, perr.Error.Message)
			}
			return fmt.Errorf("remote: upstream %d: %s (%s)", resp.StatusCode, perr.Error.Message, perr.Error.Type)
		}

		c.logger.Error("remote sandbox upstream error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)),
		)
		return fmt.Errorf("remote: upstream %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode upstream response: %w", err)
	}

	c.logger.Debug("remote sandbox request completed",
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
