package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// TenantID identifies a customer workspace. All persisted rows are scoped by it.
type TenantID string

func (id TenantID) String() string { return string(id) }

// Validate checks if the tenant ID is valid
func (id TenantID) Validate() error {
	if id == "" {
		return goerr.New("tenant ID is empty")
	}
	return nil
}

// AccountID identifies a SocialAccount row (internal ID, not the platform's)
type AccountID string

// NewAccountID generates a new random account ID
func NewAccountID() AccountID {
	return AccountID(uuid.NewString())
}

func (id AccountID) String() string { return string(id) }

// Validate checks if the account ID is valid
func (id AccountID) Validate() error {
	if id == "" {
		return goerr.New("account ID is empty")
	}
	return nil
}

// OAuthState is the random state parameter correlating an OAuth redirect
type OAuthState string

func (s OAuthState) String() string { return string(s) }

// SyncLogID identifies one sync attempt record
type SyncLogID string

// NewSyncLogID generates a new random sync log ID
func NewSyncLogID() SyncLogID {
	return SyncLogID(uuid.NewString())
}

func (id SyncLogID) String() string { return string(id) }
