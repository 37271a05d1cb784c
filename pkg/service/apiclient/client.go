package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/ratelimit"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/safe"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 500 * time.Millisecond
	maxLoggedBody      = 2048
)

// defaultLimit is a conservative per-(platform, operation) budget applied
// when no platform-specific limit is configured
var defaultLimit = ratelimit.Config{Max: 60, Window: time.Minute, Block: time.Minute}

// Client is the generic rate-limited HTTP wrapper all connectors go
// through. It consults the limiter before each call, retries transient
// failures with exponential backoff, and maps HTTP status codes onto the
// shared error taxonomy.
type Client struct {
	httpClient  *http.Client
	limiter     *ratelimit.Limiter
	limits      map[types.Platform]ratelimit.Config
	maxAttempts int
	backoffBase time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxAttempts overrides the retry ceiling for transient failures
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithBackoffBase overrides the first backoff delay
func WithBackoffBase(d time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = d
	}
}

// WithLimit sets a platform-specific rate limit
func WithLimit(platform types.Platform, cfg ratelimit.Config) Option {
	return func(c *Client) {
		c.limits[platform] = cfg
	}
}

// New creates a Client backed by the given limiter
func New(limiter *ratelimit.Limiter, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     limiter,
		limits:      make(map[types.Platform]ratelimit.Config),
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one platform API call
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header map[string]string
	// Form, when set, is sent urlencoded (token exchange endpoints).
	Form url.Values
	// JSON, when set, is marshalled as the request body.
	JSON any
	// BearerToken, when set, is sent as an Authorization header.
	BearerToken string
	// SuppressRetryLog silences per-attempt warnings for endpoints that
	// are expected to fail routinely (e.g. optional insight metrics).
	SuppressRetryLog bool
}

// Do executes the request and decodes a 2xx JSON body into out (ignored
// when out is nil). operation labels the call for rate limiting and logs.
func (c *Client) Do(ctx context.Context, platform types.Platform, req *Request, operation string, out any) error {
	key := string(platform) + ":" + operation

	cfg, ok := c.limits[platform]
	if !ok {
		cfg = defaultLimit
	}

	res := c.limiter.Check(key, cfg)
	if !res.Allowed {
		return goerr.Wrap(types.ErrRateLimited, "local rate limit exceeded",
			goerr.V(types.PlatformKey, platform),
			goerr.V(types.OperationKey, operation),
			goerr.V(types.RetryAfterMsKey, res.RetryAfter.Milliseconds()))
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		status, body, err := c.doOnce(ctx, req)
		if err != nil {
			// Network-level failure, retryable
			lastErr = goerr.Wrap(err, "request failed",
				goerr.V(types.PlatformKey, platform),
				goerr.V(types.OperationKey, operation))
		} else if status >= 200 && status < 300 {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return goerr.Wrap(err, "failed to parse response body",
					goerr.V(types.PlatformKey, platform),
					goerr.V(types.OperationKey, operation))
			}
			return nil
		} else if err := classify(platform, operation, status, body); err != nil {
			return err
		} else {
			// 429 or 5xx: retryable
			lastErr = goerr.New("retryable platform response",
				goerr.V(types.PlatformKey, platform),
				goerr.V(types.OperationKey, operation),
				goerr.V(types.StatusCodeKey, status),
				goerr.V("body", RedactPayload(body)))
		}

		if attempt < c.maxAttempts {
			delay := c.backoff(attempt)
			if !req.SuppressRetryLog {
				logging.From(ctx).Warn("retrying platform request",
					"platform", platform,
					"operation", operation,
					"attempt", attempt,
					"delay", delay.String(),
					"error", lastErr.Error())
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return goerr.Wrap(ctx.Err(), "request cancelled",
					goerr.V(types.PlatformKey, platform),
					goerr.V(types.OperationKey, operation))
			}
		}
	}

	return goerr.Wrap(types.ErrTransient, "retry attempts exhausted",
		goerr.V(types.PlatformKey, platform),
		goerr.V(types.OperationKey, operation),
		goerr.V("attempts", c.maxAttempts),
		goerr.V("last_error", lastErr.Error()))
}

func (c *Client) doOnce(ctx context.Context, req *Request) (int, []byte, error) {
	rawURL := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + req.Query.Encode()
	}

	var bodyReader io.Reader
	switch {
	case req.Form != nil:
		bodyReader = strings.NewReader(req.Form.Encode())
	case req.JSON != nil:
		encoded, err := json.Marshal(req.JSON)
		if err != nil {
			return 0, nil, goerr.Wrap(err, "failed to encode request body")
		}
		bodyReader = strings.NewReader(string(encoded))
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return 0, nil, goerr.Wrap(err, "failed to create request")
	}

	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else if req.JSON != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.BearerToken)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer safe.Close(ctx, resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, goerr.Wrap(err, "failed to read response body")
	}

	return resp.StatusCode, body, nil
}

// classify maps a non-2xx status onto the error taxonomy. It returns nil
// for retryable statuses (429 and 5xx).
func classify(platform types.Platform, operation string, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return goerr.Wrap(types.ErrAuth, "platform rejected credentials",
			goerr.V(types.PlatformKey, platform),
			goerr.V(types.OperationKey, operation),
			goerr.V(types.StatusCodeKey, status),
			goerr.V("body", RedactPayload(body)))
	case status == http.StatusTooManyRequests || status >= 500:
		return nil
	default:
		return goerr.Wrap(types.ErrRequest, "platform rejected request",
			goerr.V(types.PlatformKey, platform),
			goerr.V(types.OperationKey, operation),
			goerr.V(types.StatusCodeKey, status),
			goerr.V("body", RedactPayload(body)))
	}
}

// backoff returns the delay before the next attempt: exponential with jitter.
// Sub-nanosecond jitter windows are skipped so tiny bases stay valid.
func (c *Client) backoff(attempt int) time.Duration {
	base := c.backoffBase << (attempt - 1)
	if half := int64(base) / 2; half > 0 {
		base += time.Duration(rand.Int63n(half)) // #nosec G404 -- jitter, not crypto
	}
	return base
}
