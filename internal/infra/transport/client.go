package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"gqlmcpd/internal/buildinfo"
	"gqlmcpd/internal/domain"
)

const maxErrorBodyBytes = 4 * 1024

// Request is the GraphQL POST payload.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// GraphQLError is one entry of a response "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Result is a decoded GraphQL response. Errors may be non-empty alongside
// partial Data; callers decide whether that is fatal.
type Result struct {
	Data       json.RawMessage
	Errors     []GraphQLError
	HTTPStatus int
	Duration   time.Duration
}

// ErrorText joins the response errors into one message.
func (r *Result) ErrorText() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}

// Client executes GraphQL operations over HTTP. It owns no retry logic;
// each call is a single POST with its own timeout.
type Client struct {
	logger *zap.Logger
	base   http.RoundTripper
}

type ClientOptions struct {
	Logger *zap.Logger

	// Base overrides the underlying round tripper, used by tests.
	Base http.RoundTripper
}

func NewClient(opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		logger: logger.Named("transport"),
		base:   base,
	}
}

// Execute posts one GraphQL request and classifies every failure mode into
// the domain error taxonomy.
func (c *Client) Execute(ctx context.Context, url string, headers map[string]string, req Request, timeout time.Duration) (*Result, error) {
	const op = "transport.Execute"

	if timeout <= 0 {
		timeout = domain.DefaultRequestTimeoutSeconds * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, domain.E(domain.CodeInternal, op, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.E(domain.CodeConnection, op, "build request", err)
	}

	client := &http.Client{
		Transport: &headerRoundTripper{base: c.base, headers: buildHeaders(headers)},
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(op, err, timeout)
	}
	defer func() { _ = resp.Body.Close() }()

	duration := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &domain.Error{
			Code:       domain.CodeHTTP,
			Op:         op,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			HTTPStatus: resp.StatusCode,
		}
	}

	var decoded struct {
		Data   json.RawMessage `json:"data"`
		Errors []GraphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, domain.E(domain.CodeParse, op, "decode response", err)
	}

	c.logger.Debug("graphql request completed",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
		zap.Int("errors", len(decoded.Errors)))

	return &Result{
		Data:       decoded.Data,
		Errors:     decoded.Errors,
		HTTPStatus: resp.StatusCode,
		Duration:   duration,
	}, nil
}

func classifyTransportError(op string, err error, timeout time.Duration) *domain.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.E(domain.CodeTimeout, op, fmt.Sprintf("request timed out after %s", timeout), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.E(domain.CodeTimeout, op, fmt.Sprintf("request timed out after %s", timeout), err)
	}
	return domain.E(domain.CodeConnection, op, "", err)
}

func buildHeaders(extra map[string]string) http.Header {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("User-Agent", "gqlmcpd/"+buildinfo.Version)
	for key, value := range extra {
		name := http.CanonicalHeaderKey(strings.TrimSpace(key))
		if name == "" {
			continue
		}
		headers.Set(name, value)
	}
	return headers
}

type headerRoundTripper struct {
	base    http.RoundTripper
	headers http.Header
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for key, values := range h.headers {
		req.Header.Del(key)
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	return h.base.RoundTrip(req)
}
