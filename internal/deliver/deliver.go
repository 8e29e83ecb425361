// Package deliver posts schedule records to the storage endpoint.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hyperifyio/goschedule/internal/schedule"
)

// Form field names understood by the storage endpoint.
const (
	FieldLine = "nombre_linea"
	FieldDate = "fecha"
	FieldData = "datos"
)

// DefaultTimeout bounds a single delivery request.
const DefaultTimeout = 10 * time.Second

// maxResponseBody caps how much of the endpoint's reply is kept for logging.
const maxResponseBody = 64 << 10

// StatusError reports a delivery answered with a status other than 200 OK.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint answered %d", e.Code)
}

// Result describes an accepted delivery.
type Result struct {
	StatusCode int
	Body       string
}

// Client sends records with one form-encoded POST per call. It never retries.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	// Timeout bounds the request. Zero means DefaultTimeout.
	Timeout time.Duration
	// RunID, when set, is sent as X-Run-ID.
	RunID     string
	UserAgent string
}

// Payload builds the form body for rec. The timestamp field reuses the
// record's extraction time.
func Payload(line string, rec *schedule.Record) (url.Values, error) {
	if rec == nil {
		return nil, errors.New("nil record")
	}
	data, err := schedule.Encode(rec)
	if err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set(FieldLine, line)
	v.Set(FieldDate, rec.ExtractedAt)
	v.Set(FieldData, string(data))
	return v, nil
}

// DecodePayload reverses Payload.
func DecodePayload(v url.Values) (line string, sentAt time.Time, rec *schedule.Record, err error) {
	line = v.Get(FieldLine)
	if line == "" {
		return "", time.Time{}, nil, fmt.Errorf("missing %s", FieldLine)
	}
	sentAt, err = schedule.ParseTimestamp(v.Get(FieldDate))
	if err != nil {
		return "", time.Time{}, nil, fmt.Errorf("parse %s: %w", FieldDate, err)
	}
	rec, err = schedule.Decode([]byte(v.Get(FieldData)))
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return line, sentAt, rec, nil
}

// Send posts rec for line. Transport failures and non-200 answers are
// returned as errors.
func (c *Client) Send(ctx context.Context, line string, rec *schedule.Record) (*Result, error) {
	if strings.TrimSpace(c.Endpoint) == "" {
		return nil, errors.New("delivery endpoint not configured")
	}
	form, err := Payload(line, rec)
	if err != nil {
		return nil, fmt.Errorf("build payload: %w", err)
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.RunID != "" {
		req.Header.Set("X-Run-ID", c.RunID)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	zerolog.Ctx(ctx).Debug().Str("endpoint", c.Endpoint).Int("bytes", len(form.Get(FieldData))).Msg("posting schedule")
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.Endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return &Result{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
