package types

import "github.com/m-mizutani/goerr/v2"

// AuthStatus represents the OAuth credential state of a social account
type AuthStatus string

const (
	AuthStatusPending AuthStatus = "pending"
	AuthStatusActive  AuthStatus = "active"
	AuthStatusExpired AuthStatus = "expired"
	AuthStatusRevoked AuthStatus = "revoked"
)

// IsValid checks if the auth status is valid
func (s AuthStatus) IsValid() bool {
	switch s {
	case AuthStatusPending,
		AuthStatusActive,
		AuthStatusExpired,
		AuthStatusRevoked:
		return true
	default:
		return false
	}
}

// String returns the string representation of the auth status
func (s AuthStatus) String() string {
	return string(s)
}

// SyncStatus represents the lifecycle state of one sync attempt
type SyncStatus string

const (
	SyncStatusRunning SyncStatus = "running"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// IsValid checks if the sync status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusRunning, SyncStatusSuccess, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// IsFinal reports whether the status is a terminal state
func (s SyncStatus) IsFinal() bool {
	return s == SyncStatusSuccess || s == SyncStatusFailed
}

// String returns the string representation of the sync status
func (s SyncStatus) String() string {
	return string(s)
}

// ParseSyncStatus parses a string into a SyncStatus
func ParseSyncStatus(s string) (SyncStatus, error) {
	status := SyncStatus(s)
	if !status.IsValid() {
		return "", goerr.New("invalid sync status", goerr.V("status", s))
	}
	return status, nil
}
