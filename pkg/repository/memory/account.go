package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

type accountRepository struct {
	mu       sync.RWMutex
	accounts map[types.AccountID]*model.SocialAccount
	// byExternal maps (tenant|platform|externalID) to the owning account ID
	byExternal map[string]types.AccountID
}

func newAccountRepository() *accountRepository {
	return &accountRepository{
		accounts:   make(map[types.AccountID]*model.SocialAccount),
		byExternal: make(map[string]types.AccountID),
	}
}

func externalKey(tenantID types.TenantID, platform types.Platform, externalID string) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, platform, externalID)
}

func (r *accountRepository) Upsert(ctx context.Context, account *model.SocialAccount) error {
	if err := account.Validate(); err != nil {
		return goerr.Wrap(err, "invalid social account")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := externalKey(account.TenantID, account.Platform, account.ExternalAccountID)
	if existingID, ok := r.byExternal[key]; ok && existingID != account.ID {
		// Reconnect path: keep the original account ID
		account.ID = existingID
	}

	copied := *account
	r.accounts[account.ID] = &copied
	r.byExternal[key] = account.ID
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id types.AccountID) (*model.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "social account not found", goerr.V(types.AccountIDKey, id))
	}
	copied := *account
	return &copied, nil
}

func (r *accountRepository) GetByExternalID(ctx context.Context, tenantID types.TenantID, platform types.Platform, externalID string) (*model.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExternal[externalKey(tenantID, platform, externalID)]
	if !ok {
		return nil, goerr.Wrap(types.ErrNotFound, "social account not found",
			goerr.V(types.TenantIDKey, tenantID),
			goerr.V(types.PlatformKey, platform))
	}
	copied := *r.accounts[id]
	return &copied, nil
}

func (r *accountRepository) ListActive(ctx context.Context, tenantID types.TenantID, platform *types.Platform) ([]*model.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []*model.SocialAccount
	for _, account := range r.accounts {
		if account.TenantID != tenantID || account.AuthStatus != types.AuthStatusActive {
			continue
		}
		if platform != nil && account.Platform != *platform {
			continue
		}
		copied := *account
		accounts = append(accounts, &copied)
	}
	sortAccounts(accounts)
	return accounts, nil
}

func (r *accountRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []*model.SocialAccount
	for _, account := range r.accounts {
		if account.TenantID != tenantID {
			continue
		}
		copied := *account
		accounts = append(accounts, &copied)
	}
	sortAccounts(accounts)
	return accounts, nil
}

func (r *accountRepository) ListTenants(ctx context.Context) ([]types.TenantID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[types.TenantID]bool)
	var tenants []types.TenantID
	for _, account := range r.accounts {
		if !seen[account.TenantID] {
			seen[account.TenantID] = true
			tenants = append(tenants, account.TenantID)
		}
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i] < tenants[j] })
	return tenants, nil
}

func (r *accountRepository) UpdateTokens(ctx context.Context, id types.AccountID, accessTokenEnc, refreshTokenEnc string, expiresAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return goerr.Wrap(types.ErrNotFound, "social account not found", goerr.V(types.AccountIDKey, id))
	}
	account.AccessTokenEnc = accessTokenEnc
	if refreshTokenEnc != "" {
		account.RefreshTokenEnc = refreshTokenEnc
	}
	account.TokenExpiresAt = expiresAt
	account.UpdatedAt = time.Now()
	return nil
}

func (r *accountRepository) UpdateAuthStatus(ctx context.Context, id types.AccountID, status types.AuthStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return goerr.Wrap(types.ErrNotFound, "social account not found", goerr.V(types.AccountIDKey, id))
	}
	account.AuthStatus = status
	account.UpdatedAt = time.Now()
	return nil
}

func (r *accountRepository) UpdateLastSync(ctx context.Context, id types.AccountID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return goerr.Wrap(types.ErrNotFound, "social account not found", goerr.V(types.AccountIDKey, id))
	}
	account.LastSyncAt = &at
	account.UpdatedAt = time.Now()
	return nil
}

func sortAccounts(accounts []*model.SocialAccount) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})
}
