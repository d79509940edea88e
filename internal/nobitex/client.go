package nobitex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/metrics"
)

// RequestError is the typed failure returned after the retry budget is
// exhausted: the last seen status and body, unparsed.
type RequestError struct {
	Endpoint string
	Status   int
	Body     []byte
	Err      error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: request failed after retries: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s: request failed after retries: status=%d body=%s", e.Endpoint, e.Status, e.Body)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Client issues single GET/POST calls with the endpoint's retry budget.
// Each polling stream owns its own Client; instances are not shared.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	log     *logrus.Entry
	met     *metrics.Metrics
}

// NewClient creates a client against a base URL. token may be empty for
// public endpoints; when set it is sent as "Authorization: Token <key>".
func NewClient(baseURL, token string, log *logrus.Entry) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		// Per-attempt deadline comes from the endpoint row, not here.
		httpc: &http.Client{},
		log:   log,
	}
}

// WithMetrics attaches a metrics handle for per-attempt accounting and
// returns the client.
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.met = m
	return c
}

// Get issues a GET with query params, retrying per the endpoint row.
// The body is returned unparsed.
func (c *Client) Get(ctx context.Context, ep Endpoint, params map[string]string) ([]byte, error) {
	u := c.baseURL + ep.Path
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}
	return c.do(ctx, ep, http.MethodGet, u, nil, nil)
}

// Post issues a JSON POST, retrying per the endpoint row.
func (c *Client) Post(ctx context.Context, ep Endpoint, body any, headers map[string]string) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request body: %w", ep.ID, err)
		}
	}
	return c.do(ctx, ep, http.MethodPost, c.baseURL+ep.Path, payload, headers)
}

func (c *Client) do(ctx context.Context, ep Endpoint, method, u string, payload []byte, headers map[string]string) ([]byte, error) {
	tries := ep.Tries
	if tries < 1 {
		tries = 1
	}
	var lastStatus int
	var lastBody []byte
	var lastErr error

	for attempt := 1; attempt <= tries; attempt++ {
		if c.met != nil {
			c.met.HTTPTries.WithLabelValues(ep.ID).Inc()
		}
		body, status, err := c.attempt(ctx, ep, method, u, payload, headers)
		if err == nil && status >= 200 && status < 300 {
			return body, nil
		}
		// Caller cancellation propagates immediately; it is not a failed try.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastStatus, lastBody, lastErr = status, body, err
		if c.log != nil {
			c.log.WithFields(logrus.Fields{
				"endpoint": ep.ID,
				"attempt":  attempt,
				"status":   status,
			}).WithError(err).Warn("request attempt failed")
		}
		if attempt < tries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(ep.TriesGap):
			}
		}
	}
	if c.met != nil {
		c.met.HTTPFailures.WithLabelValues(ep.ID).Inc()
	}
	return nil, &RequestError{Endpoint: ep.ID, Status: lastStatus, Body: lastBody, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, ep Endpoint, method, u string, payload []byte, headers map[string]string) ([]byte, int, error) {
	actx := ctx
	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(actx, method, u, reader)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, resp.StatusCode, errors.New(http.StatusText(resp.StatusCode))
	}
	return body, resp.StatusCode, nil
}

// CleanParams converts a loose param map to strings, dropping nils, empty
// and literal "null" strings, and NaN numbers. The kline request contract
// wants those keys absent, not serialized.
func CleanParams(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if t == "" || t == "null" {
				continue
			}
			out[k] = t
		case float64:
			if math.IsNaN(t) {
				continue
			}
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			out[k] = strconv.Itoa(t)
		case int64:
			out[k] = strconv.FormatInt(t, 10)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
