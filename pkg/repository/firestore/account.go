package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const accountsCollection = "social_accounts"

type accountDoc struct {
	ID                string     `firestore:"id"`
	TenantID          string     `firestore:"tenant_id"`
	Platform          string     `firestore:"platform"`
	ExternalAccountID string     `firestore:"external_account_id"`
	AccountName       string     `firestore:"account_name"`
	AccessTokenEnc    string     `firestore:"access_token_enc"`
	RefreshTokenEnc   string     `firestore:"refresh_token_enc"`
	TokenExpiresAt    *time.Time `firestore:"token_expires_at"`
	AuthStatus        string     `firestore:"auth_status"`
	LastSyncAt        *time.Time `firestore:"last_sync_at"`
	CreatedAt         time.Time  `firestore:"created_at"`
	UpdatedAt         time.Time  `firestore:"updated_at"`
}

type accountRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newAccountRepository(client *firestore.Client) *accountRepository {
	return &accountRepository{client: client}
}

func (r *accountRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + accountsCollection)
	}
	return r.client.Collection(accountsCollection)
}

func (r *accountRepository) toDoc(account *model.SocialAccount) *accountDoc {
	return &accountDoc{
		ID:                string(account.ID),
		TenantID:          string(account.TenantID),
		Platform:          string(account.Platform),
		ExternalAccountID: account.ExternalAccountID,
		AccountName:       account.AccountName,
		AccessTokenEnc:    account.AccessTokenEnc,
		RefreshTokenEnc:   account.RefreshTokenEnc,
		TokenExpiresAt:    account.TokenExpiresAt,
		AuthStatus:        string(account.AuthStatus),
		LastSyncAt:        account.LastSyncAt,
		CreatedAt:         account.CreatedAt,
		UpdatedAt:         account.UpdatedAt,
	}
}

func (r *accountRepository) fromDoc(doc *accountDoc) *model.SocialAccount {
	return &model.SocialAccount{
		ID:                types.AccountID(doc.ID),
		TenantID:          types.TenantID(doc.TenantID),
		Platform:          types.Platform(doc.Platform),
		ExternalAccountID: doc.ExternalAccountID,
		AccountName:       doc.AccountName,
		AccessTokenEnc:    doc.AccessTokenEnc,
		RefreshTokenEnc:   doc.RefreshTokenEnc,
		TokenExpiresAt:    doc.TokenExpiresAt,
		AuthStatus:        types.AuthStatus(doc.AuthStatus),
		LastSyncAt:        doc.LastSyncAt,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}

func (r *accountRepository) Upsert(ctx context.Context, account *model.SocialAccount) error {
	if err := account.Validate(); err != nil {
		return goerr.Wrap(err, "invalid social account")
	}

	// Reconnect path: an account for the same external identity keeps its ID
	existing, err := r.GetByExternalID(ctx, account.TenantID, account.Platform, account.ExternalAccountID)
	if err == nil {
		account.ID = existing.ID
		account.CreatedAt = existing.CreatedAt
	}

	if _, err := r.collection().Doc(string(account.ID)).Set(ctx, r.toDoc(account)); err != nil {
		return goerr.Wrap(err, "failed to upsert social account", goerr.V(types.AccountIDKey, account.ID))
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id types.AccountID) (*model.SocialAccount, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrNotFound, "social account not found", goerr.V(types.AccountIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get social account", goerr.V(types.AccountIDKey, id))
	}

	var accountDoc accountDoc
	if err := doc.DataTo(&accountDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal social account", goerr.V(types.AccountIDKey, id))
	}
	return r.fromDoc(&accountDoc), nil
}

func (r *accountRepository) GetByExternalID(ctx context.Context, tenantID types.TenantID, platform types.Platform, externalID string) (*model.SocialAccount, error) {
	iter := r.collection().
		Where("tenant_id", "==", string(tenantID)).
		Where("platform", "==", string(platform)).
		Where("external_account_id", "==", externalID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(types.ErrNotFound, "social account not found",
			goerr.V(types.TenantIDKey, tenantID),
			goerr.V(types.PlatformKey, platform))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query social account", goerr.V(types.TenantIDKey, tenantID))
	}

	var accountDoc accountDoc
	if err := doc.DataTo(&accountDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal social account", goerr.V("docID", doc.Ref.ID))
	}
	return r.fromDoc(&accountDoc), nil
}

func (r *accountRepository) ListActive(ctx context.Context, tenantID types.TenantID, platform *types.Platform) ([]*model.SocialAccount, error) {
	query := r.collection().
		Where("tenant_id", "==", string(tenantID)).
		Where("auth_status", "==", string(types.AuthStatusActive))
	if platform != nil {
		query = query.Where("platform", "==", string(*platform))
	}
	return r.queryAccounts(ctx, query)
}

func (r *accountRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.SocialAccount, error) {
	query := r.collection().Where("tenant_id", "==", string(tenantID))
	return r.queryAccounts(ctx, query)
}

func (r *accountRepository) queryAccounts(ctx context.Context, query firestore.Query) ([]*model.SocialAccount, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var accounts []*model.SocialAccount
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate social accounts")
		}

		var accountDoc accountDoc
		if err := doc.DataTo(&accountDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal social account", goerr.V("docID", doc.Ref.ID))
		}
		accounts = append(accounts, r.fromDoc(&accountDoc))
	}
	return accounts, nil
}

func (r *accountRepository) ListTenants(ctx context.Context) ([]types.TenantID, error) {
	iter := r.collection().Documents(ctx)
	defer iter.Stop()

	seen := make(map[types.TenantID]bool)
	var tenants []types.TenantID
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate social accounts")
		}

		var accountDoc accountDoc
		if err := doc.DataTo(&accountDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal social account", goerr.V("docID", doc.Ref.ID))
		}
		tenantID := types.TenantID(accountDoc.TenantID)
		if !seen[tenantID] {
			seen[tenantID] = true
			tenants = append(tenants, tenantID)
		}
	}
	return tenants, nil
}

func (r *accountRepository) UpdateTokens(ctx context.Context, id types.AccountID, accessTokenEnc, refreshTokenEnc string, expiresAt *time.Time) error {
	updates := []firestore.Update{
		{Path: "access_token_enc", Value: accessTokenEnc},
		{Path: "token_expires_at", Value: expiresAt},
		{Path: "updated_at", Value: time.Now()},
	}
	if refreshTokenEnc != "" {
		updates = append(updates, firestore.Update{Path: "refresh_token_enc", Value: refreshTokenEnc})
	}

	if _, err := r.collection().Doc(string(id)).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrNotFound, "social account not found", goerr.V(types.AccountIDKey, id))
		}
		return goerr.Wrap(err, "failed to update tokens", goerr.V(types.AccountIDKey, id))
	}
	return nil
}

func (r *accountRepository) UpdateAuthStatus(ctx context.Context, id types.AccountID, authStatus types.AuthStatus) error {
	updates := []firestore.Update{
		{Path: "auth_status", Value: string(authStatus)},
		{Path: "updated_at", Value: time.Now()},
	}

	if _, err := r.collection().Doc(string(id)).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrNotFound, "social account not found", goerr.V(types.AccountIDKey, id))
		}
		return goerr.Wrap(err, "failed to update auth status", goerr.V(types.AccountIDKey, id))
	}
	return nil
}

func (r *accountRepository) UpdateLastSync(ctx context.Context, id types.AccountID, at time.Time) error {
	updates := []firestore.Update{
		{Path: "last_sync_at", Value: at},
		{Path: "updated_at", Value: time.Now()},
	}

	if _, err := r.collection().Doc(string(id)).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrNotFound, "social account not found", goerr.V(types.AccountIDKey, id))
		}
		return goerr.Wrap(err, "failed to update last sync", goerr.V(types.AccountIDKey, id))
	}
	return nil
}
