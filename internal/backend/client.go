// Package backend talks to the storage service that receives recordings and
// performs server-side audio extraction.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	UploadPath  = "/upload-audio"
	ExtractPath = "/download-youtube-audio"

	// UploadField is the multipart field carrying the recording.
	UploadField = "audio_file"

	requestIDHeader = "X-Request-ID"
	maxBodyExcerpt  = 512
)

// ErrTransport marks failures where no HTTP response was received.
var ErrTransport = errors.New("backend unreachable")

// StatusError reports a non-2xx response. The body is kept for diagnostics only.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned HTTP %d", e.Op, e.StatusCode)
}

// IsStatusError reports whether err carries a non-2xx backend response.
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

// Client issues single-shot requests against one fixed base URL.
type Client struct {
	baseURL string
	http    *resty.Client
	logger  *slog.Logger
}

type options struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// Option customizes client construction.
type Option func(*options)

// WithHTTPClient swaps the underlying transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithLogger routes request diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds a client bound to baseURL for its whole lifetime.
func New(baseURL string, opts ...Option) *Client {
	o := options{userAgent: "voxdrop"}
	for _, opt := range opts {
		opt(&o)
	}

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	rc.SetBaseURL(baseURL).
		SetHeader("User-Agent", o.userAgent).
		SetRetryCount(0)
	if o.logger != nil {
		rc.SetLogger(restyLogger{logger: o.logger})
	}

	return &Client{baseURL: baseURL, http: rc, logger: o.logger}
}

// BaseURL returns the endpoint root the client was constructed with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadAudio posts one recording as multipart form field audio_file.
func (c *Client) UploadAudio(ctx context.Context, filename string, mimeType string, data []byte) error {
	req := c.newRequest(ctx).
		SetMultipartField(UploadField, filename, mimeType, bytes.NewReader(data))

	resp, err := req.Post(UploadPath)
	return c.result("upload audio", req, resp, err)
}

type extractRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

// ExtractAudio asks the backend to fetch and store audio for a video URL.
func (c *Client) ExtractAudio(ctx context.Context, url string) error {
	req := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(extractRequest{YouTubeURL: url})

	resp, err := req.Post(ExtractPath)
	return c.result("extract audio", req, resp, err)
}

// Ping issues a GET against the base URL and returns whatever status came back.
func (c *Client) Ping(ctx context.Context) (int, error) {
	resp, err := c.newRequest(ctx).Get("/")
	if err != nil {
		return 0, fmt.Errorf("%w: ping: %w", ErrTransport, err)
	}
	return resp.StatusCode(), nil
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader(requestIDHeader, uuid.NewString())
}

// result maps a resty outcome onto nil, ErrTransport, or *StatusError.
func (c *Client) result(op string, req *resty.Request, resp *resty.Response, err error) error {
	requestID := req.Header.Get(requestIDHeader)
	if err != nil {
		c.debug("backend request failed", "op", op, "request_id", requestID, "error", err.Error())
		return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
	}

	c.debug("backend response",
		"op", op,
		"request_id", requestID,
		"status", resp.StatusCode(),
		"duration_ms", resp.Time().Milliseconds(),
	)
	if resp.IsSuccess() {
		return nil
	}

	body := resp.Body()
	if len(body) > maxBodyExcerpt {
		body = body[:maxBodyExcerpt]
	}
	return &StatusError{Op: op, StatusCode: resp.StatusCode(), Body: string(body)}
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, args...)
}

// restyLogger forwards resty's internal warnings into slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "resty")
}
