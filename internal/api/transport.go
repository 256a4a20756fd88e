package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/comigor/ragchat-go/internal/config"
	"github.com/comigor/ragchat-go/internal/logger"
)

// APIError is returned for every non-2xx response. Message holds the raw
// response body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an
// *APIError (network failures, decode failures).
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// ErrorMessage returns the text a user should see for err: the response body
// for API errors and the error text otherwise.
func ErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// Form is a multipart/form-data request body. The transport sends it with the
// form's own content type, boundary included.
type Form struct {
	buf bytes.Buffer
	w   *multipart.Writer
}

// NewForm returns an empty multipart form.
func NewForm() *Form {
	f := &Form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

// AddFile copies r into a file part named field.
func (f *Form) AddFile(field, filename string, r io.Reader) error {
	part, err := f.w.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

// AddField writes a plain form value.
func (f *Form) AddField(field, value string) error {
	return f.w.WriteField(field, value)
}

// ContentType is the multipart content type including the boundary.
func (f *Form) ContentType() string {
	return f.w.FormDataContentType()
}

func (f *Form) reader() (io.Reader, error) {
	if err := f.w.Close(); err != nil {
		return nil, err
	}
	return &f.buf, nil
}

// RequestOptions configures a single transport call.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	// Body is either a *Form or a value encoded as JSON. Nil sends no body.
	Body any
	// Headers are merged over the defaults.
	Headers http.Header
}

// Client talks to the RAG backend. The zero value is not usable; call NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Client bound to cfg.BaseURL, falling back to the local
// default when unset.
func NewClient(cfg config.APIConfig, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = config.DefaultBaseURL
	}
	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the resolved backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Request performs a call against endpoint and decodes a successful JSON
// response into out. Non-2xx responses yield *APIError. Network and decode
// errors are returned as they are.
func (c *Client) Request(ctx context.Context, endpoint string, opts *RequestOptions, out any) error {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	url := c.baseURL + endpoint

	headers := http.Header{}
	var body io.Reader
	switch b := opts.Body.(type) {
	case nil:
		headers.Set("Content-Type", "application/json")
	case *Form:
		r, err := b.reader()
		if err != nil {
			return err
		}
		body = r
		headers.Set("Content-Type", b.ContentType())
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
		headers.Set("Content-Type", "application/json")
	}
	for k, vs := range opts.Headers {
		headers.Del(k)
		for _, v := range vs {
			headers.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header = headers

	logger.L.Debug("api request", "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("api request failed", "method", method, "url", url, "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, readErr := io.ReadAll(resp.Body)
		logger.L.Warn("api error", "method", method, "url", url, "status", resp.StatusCode, "body", string(text), "read_error", readErr)
		return &APIError{Status: resp.StatusCode, Message: string(text)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.L.Debug("api success", "method", method, "url", url, "status", resp.StatusCode)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.L.Warn("api decode failed", "method", method, "url", url, "error", err)
		return err
	}
	logger.L.Debug("api success", "method", method, "url", url, "status", resp.StatusCode)
	return nil
}
