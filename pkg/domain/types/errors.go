package types

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy for the sync subsystem. Callers classify with errors.Is;
// all of these are account-level job failures except ErrConfiguration,
// which aborts the whole batch.
var (
	// ErrConfiguration means a required process-wide setting (e.g. the
	// encryption secret) is missing. Nothing can proceed safely.
	ErrConfiguration = goerr.New("configuration error")

	// ErrAuth means the platform rejected the credentials (401/403).
	ErrAuth = goerr.New("authentication rejected by platform")

	// ErrTokenRefresh means the refresh flow failed; the account is marked expired.
	ErrTokenRefresh = goerr.New("token refresh failed")

	// ErrRateLimited means the local limiter blocked the call. Retry later.
	ErrRateLimited = goerr.New("rate limited")

	// ErrTransient means retries were exhausted on a retryable failure (429/5xx).
	ErrTransient = goerr.New("transient platform error")

	// ErrRequest means the platform rejected the request with a non-retryable 4xx.
	ErrRequest = goerr.New("request rejected by platform")

	// ErrDecryption means a stored token blob is malformed or failed authentication.
	ErrDecryption = goerr.New("token decryption failed")

	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = goerr.New("not found")
)

// Context keys for goerr values
const (
	PlatformKey     = "platform"
	TenantIDKey     = "tenant_id"
	AccountIDKey    = "account_id"
	OperationKey    = "operation"
	RetryAfterMsKey = "retry_after_ms"
	StatusCodeKey   = "status_code"
)
