// Package clinicapi is a REST client for the clinic appointment-booking API.
package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinicbook/internal/observability/metrics"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 300
)

// Response read limits. Error bodies only need to hold a detail payload.
const (
	maxResponseBody = 4 << 20
	maxErrorRead    = 64 << 10
)

var tracer = otel.Tracer("clinicbook.internal.clinicapi")

// AvailabilityMode picks which endpoint answers availability queries.
type AvailabilityMode string

const (
	// ModeBooked reads the list of booked datetimes.
	ModeBooked AvailabilityMode = "booked"
	// ModeAvailability reads explicit {time, isAvailable} records.
	ModeAvailability AvailabilityMode = "availability"
	// ModeAuto tries the records endpoint and falls back to the booked list
	// when the server does not expose it.
	ModeAuto AvailabilityMode = "auto"
)

// ParseAvailabilityMode maps a config value to a mode, defaulting to ModeBooked.
func ParseAvailabilityMode(s string) AvailabilityMode {
	switch AvailabilityMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAvailability:
		return ModeAvailability
	case ModeAuto:
		return ModeAuto
	default:
		return ModeBooked
	}
}

// Client talks to the clinic API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    *metrics.ClientMetrics
	mode       AvailabilityMode
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.ClientMetrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithAvailabilityMode(mode AvailabilityMode) ClientOption {
	return func(c *Client) {
		c.mode = ParseAvailabilityMode(string(mode))
	}
}

// NewClient constructs a clinic API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logging.Default(),
		mode:       ModeBooked,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the configured availability mode.
func (c *Client) Mode() AvailabilityMode {
	return c.mode
}

type call struct {
	name   string
	method string
	path   string
	token  string
	body   any
	form   url.Values
	out    any
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	ctx, span := tracer.Start(ctx, "clinicapi."+cl.name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	requestID := uuid.NewString()
	span.SetAttributes(
		attribute.String("http.method", cl.method),
		attribute.String("clinicbook.endpoint", cl.name),
		attribute.String("clinicbook.request_id", requestID),
	)

	status := 0
	start := time.Now()
	defer func() {
		c.metrics.ObserveAPIRequest(cl.name, status, time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	var bodyReader io.Reader
	contentType := ""
	switch {
	case cl.form != nil:
		bodyReader = strings.NewReader(cl.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case cl.body != nil:
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("clinicapi: marshal %s request: %w", cl.name, err)
		}
		bodyReader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, bodyReader)
	if err != nil {
		return fmt.Errorf("clinicapi: build %s request: %w", cl.name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clinicapi: %s request: %w", cl.name, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	limit := int64(maxResponseBody)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		limit = maxErrorRead
	}
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return fmt.Errorf("clinicapi: read %s response: %w", cl.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := truncateUTF8(string(respBody), maxErrorBody)
		c.logger.Warn("clinic API non-2xx response",
			"status", resp.StatusCode,
			"endpoint", cl.name,
			"path", cl.path,
			"request_id", requestID,
			"body", msg,
		)
		return &APIError{Endpoint: cl.name, StatusCode: resp.StatusCode, Detail: detailFrom(resp.StatusCode, respBody)}
	}

	if len(respBody) == 0 || cl.out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, cl.out); err != nil {
		return fmt.Errorf("clinicapi: decode %s response: %w", cl.name, err)
	}
	return nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
