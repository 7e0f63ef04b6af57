// Package transport loads backend URLs. It is the only place cidash touches
// the network.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cidash/internal/logging"
	"cidash/internal/metrics"
)

const tracerName = "cidash/transport"

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

// Response is a completed HTTP exchange.
type Response struct {
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Loader fetches a URL.
type Loader interface {
	Load(ctx context.Context, url string) (*Response, error)
}

// HTTPError is a non-2xx response. The response is kept for error banners.
type HTTPError struct {
	Response *Response
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %s: %s", e.Response.URL, e.Response.Status, trimBody(e.Response.Body))
}

// NetworkError is a failure to complete the exchange at all.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResponseOf returns the HTTP response carried by err, if any.
func ResponseOf(err error) *Response {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.Response
	}
	return nil
}

// HTTP loads URLs relative to a base URL.
type HTTP struct {
	base   *url.URL
	client *http.Client
	tracer trace.Tracer
	logger logr.Logger
}

// NewHTTP returns a loader resolving paths against baseURL.
func NewHTTP(baseURL string, timeout time.Duration, logger logr.Logger) (*HTTP, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &HTTP{
		base:   base,
		client: &http.Client{Timeout: timeout},
		tracer: otel.Tracer(tracerName),
		logger: logger.WithName("transport"),
	}, nil
}

// Resolve turns a path and query into an absolute URL string.
func (h *HTTP) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", ref, err)
	}
	return h.base.ResolveReference(u).String(), nil
}

// Load performs a GET. A non-2xx status returns both the response and an
// *HTTPError wrapping it.
func (h *HTTP) Load(ctx context.Context, ref string) (*Response, error) {
	target, err := h.Resolve(ref)
	if err != nil {
		return nil, err
	}

	ctx, span := h.tracer.Start(ctx, "transport.Load",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", target)),
	)
	defer span.End()

	start := time.Now()
	resp, err := h.do(ctx, target)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		metrics.RecordFetch(metrics.OutcomeNetworkError, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Error(err, "Fetch failed", "url", target)
		return nil, &NetworkError{URL: target, Err: err}
	case !resp.OK():
		metrics.RecordFetch(metrics.OutcomeHTTPError, elapsed)
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		span.SetStatus(codes.Error, resp.Status)
		h.logger.V(logging.DEFAULT).Info("Fetch returned error status", "url", target, "status", resp.StatusCode)
		return resp, &HTTPError{Response: resp}
	}

	metrics.RecordFetch(metrics.OutcomeSuccess, elapsed)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	h.logger.V(logging.DEBUG).Info("Fetched", "url", target, "status", resp.StatusCode, "elapsed", elapsed)
	return resp, nil
}

func (h *HTTP) do(ctx context.Context, target string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		URL:        target,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func trimBody(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		return s[:200] + "…"
	}
	return s
}
