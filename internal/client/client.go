// Package client implements the authenticated HTTP transport for the console
// backend: bearer-token attachment, bounded retry with exponential backoff on
// transient failures, and single-flight token refresh on auth failures.
//
// One Client is constructed at startup and shared by every caller; it is the
// only component that talks to the network directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"vantage/internal/credentials"
	"vantage/internal/platform/config"
	"vantage/pkg/apierr"
)

const (
	headerRequestID      = "X-Request-ID"
	headerClientVersion  = "X-Client-Version"
	headerClientPlatform = "X-Client-Platform"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
)

// Request describes one logical API call. A fresh copy is made per retry
// attempt so no mutable state leaks between attempts.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string

	// SkipAuth marks requests that must never carry a bearer token or
	// trigger a refresh: login, the refresh call itself, public probes.
	SkipAuth bool

	// retriedForAuth is the one-shot guard against refresh loops: a request
	// is replayed at most once after a successful refresh.
	retriedForAuth bool
}

// RequestOption adjusts a single request.
type RequestOption func(*Request)

// SkipAuth marks the request as pre-authentication: no bearer header, no
// refresh on 401.
func SkipAuth() RequestOption {
	return func(r *Request) {
		r.SkipAuth = true
	}
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// Client is the process-wide authenticated transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      credentials.Store
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer

	maxRetries    int
	clientVersion string
	platform      string
	debug         bool

	// sleep is swappable so retry tests do not wait wall-clock time.
	sleep func(ctx context.Context, d time.Duration) error

	// onAuthFailure runs after an unrecoverable refresh failure, once
	// credentials are cleared. The app wires it to reset the session and
	// send the user back to the login entry point.
	onAuthFailure func()

	refreshGroup singleflight.Group
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout sets the per-request wall-clock timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries bounds transient-failure retries per logical request.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithClientVersion sets the version reported on every request.
func WithClientVersion(v string) Option {
	return func(c *Client) {
		c.clientVersion = v
	}
}

// WithMetrics sets the Prometheus collectors for transport activity.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer injects a pre-configured OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithDebug enables request/response debug logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithSleep replaces the backoff sleeper. Test hook.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// WithOnAuthFailure registers the hook invoked after a terminal refresh
// failure.
func WithOnAuthFailure(fn func()) Option {
	return func(c *Client) {
		c.onAuthFailure = fn
	}
}

// New constructs the transport. baseURL has no trailing slash; creds supplies
// and receives the token pair.
func New(baseURL string, creds credentials.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		creds:         creds,
		logger:        slog.Default(),
		maxRetries:    defaultMaxRetries,
		clientVersion: "dev",
		platform:      "go/" + runtime.GOOS,
		sleep:         sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("vantage/client")
	}
	return c
}

// NewFromConfig constructs the transport from environment-driven config.
// Explicit options are applied after the config and override it.
func NewFromConfig(cfg config.Client, creds credentials.Store, opts ...Option) *Client {
	base := []Option{
		WithTimeout(cfg.Timeout),
		WithMaxRetries(cfg.MaxRetries),
		WithClientVersion(cfg.ClientVersion),
		WithDebug(cfg.Debug),
	}
	return New(cfg.BaseURL, creds, append(base, opts...)...)
}

// OnAuthFailure registers an additional auth-failure hook after construction.
// Hooks run in registration order; the session layer uses this to reset its
// state when the transport terminates the session. Not safe to call once
// requests are in flight.
func (c *Client) OnAuthFailure(fn func()) {
	prev := c.onAuthFailure
	c.onAuthFailure = func() {
		if prev != nil {
			prev()
		}
		fn()
	}
}

// Get issues an authenticated GET and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, build(http.MethodGet, path, nil, opts), out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, build(http.MethodPost, path, body, opts), out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, build(http.MethodPatch, path, body, opts), out)
}

func build(method, path string, body any, opts []RequestOption) Request {
	req := Request{Method: method, Path: path, Body: body}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// Do performs one logical request: attach auth, retry transient failures with
// exponential backoff, refresh-and-replay once on 401, and decode the
// response envelope into out. All failures surface as *apierr.Error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	ctx, span := c.tracer.Start(ctx, "console.request", trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.path", req.Path),
	))
	err := c.do(ctx, req, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}

func (c *Client) do(ctx context.Context, req Request, out any) error {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return &apierr.Error{
				Kind:    apierr.KindClient,
				Code:    "ENCODE_ERROR",
				Message: "could not encode request body",
				Err:     err,
			}
		}
	}

	requestID := uuid.NewString()
	attempt := 0
	for {
		err := c.once(ctx, req, body, requestID, out)
		if err == nil {
			c.metrics.observeRequest(req.Method, "ok")
			return nil
		}

		var apiErr *apierr.Error
		if !errors.As(err, &apiErr) {
			apiErr = apierr.FromTransport(err)
		}

		// Auth failure: join or start the shared refresh, then replay the
		// request exactly once with the fresh token.
		if apiErr.Kind == apierr.KindAuth && !req.SkipAuth && !req.retriedForAuth {
			c.metrics.authFailures.Inc()
			if refreshErr := c.refresh(ctx); refreshErr != nil {
				c.metrics.observeRequest(req.Method, "refresh_failed")
				return refreshErr
			}
			replay := req
			replay.retriedForAuth = true
			req = replay
			continue
		}

		if apierr.Retryable(apiErr) && attempt < c.maxRetries {
			delay := backoffDelay(attempt)
			attempt++
			c.metrics.retries.Inc()
			if c.debug {
				c.logger.DebugContext(ctx, "retrying request",
					"method", req.Method,
					"path", req.Path,
					"attempt", attempt,
					"delay", delay,
					"request_id", requestID,
				)
			}
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				return apierr.FromTransport(sleepErr)
			}
			continue
		}

		c.metrics.observeRequest(req.Method, string(apiErr.Kind))
		return apiErr
	}
}

// backoffDelay doubles per attempt: 1s, 2s, 4s, ...
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// once performs a single network attempt and decodes the envelope.
func (c *Client) once(ctx context.Context, req Request, body []byte, requestID string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, reader)
	if err != nil {
		return &apierr.Error{
			Kind:    apierr.KindClient,
			Code:    "BAD_REQUEST",
			Message: "could not build request",
			Err:     err,
		}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, requestID)
	httpReq.Header.Set(headerClientVersion, c.clientVersion)
	httpReq.Header.Set(headerClientPlatform, c.platform)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if !req.SkipAuth {
		if pair, err := c.creds.Load(ctx); err == nil {
			httpReq.Header.Set("Authorization", "Bearer "+pair.AccessToken)
			if c.debug && pair.AccessLooksExpired(time.Now()) {
				c.logger.DebugContext(ctx, "access token past advisory expiry, expecting a refresh",
					"path", req.Path,
					"request_id", requestID,
				)
			}
		} else if !errors.Is(err, credentials.ErrNoCredentials) {
			c.logger.WarnContext(ctx, "could not load credentials", "error", err)
		}
		// No stored token: send unauthenticated, the server will reject.
	}

	if c.debug {
		c.logger.DebugContext(ctx, "outgoing request",
			"method", req.Method,
			"path", req.Path,
			"request_id", requestID,
			"skip_auth", req.SkipAuth,
		)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return apierr.FromTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.FromTransport(fmt.Errorf("reading response body: %w", err))
	}

	if c.debug {
		c.logger.DebugContext(ctx, "response received",
			"status", resp.StatusCode,
			"path", req.Path,
			"request_id", requestID,
		)
	}

	if resp.StatusCode >= 400 {
		return apierr.FromResponse(resp.StatusCode, respBody)
	}

	return decodeEnvelope(respBody, out)
}

// envelope is the uniform response wrapper the backend sends.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Errors  json.RawMessage `json:"errors"`
}

// decodeEnvelope unwraps the response envelope. A success=false envelope is a
// logical failure even on HTTP 200.
func decodeEnvelope(body []byte, out any) error {
	if len(body) == 0 {
		if out == nil {
			return nil
		}
		return &apierr.Error{
			Kind:    apierr.KindClient,
			Code:    "EMPTY_RESPONSE",
			Message: "server returned an empty response",
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &apierr.Error{
			Kind:    apierr.KindClient,
			Code:    "DECODE_ERROR",
			Message: "could not decode server response",
			Err:     err,
		}
	}

	if !env.Success {
		e := &apierr.Error{Kind: apierr.KindClient, Code: "REQUEST_FAILED", Message: env.Message}
		if env.Code != "" {
			e.Code = env.Code
		}
		if len(env.Errors) > 0 {
			var details any
			if json.Unmarshal(env.Errors, &details) == nil {
				e.Details = details
			}
		}
		return e
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &apierr.Error{
				Kind:    apierr.KindClient,
				Code:    "DECODE_ERROR",
				Message: "could not decode response data",
				Err:     err,
			}
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
