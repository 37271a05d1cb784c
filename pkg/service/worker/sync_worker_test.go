package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/repository/memory"
	"github.com/socialpulse-lab/socialpulse/pkg/service/cipher"
	"github.com/socialpulse-lab/socialpulse/pkg/service/worker"
	"github.com/socialpulse-lab/socialpulse/pkg/usecase"
)

type countingConnector struct {
	syncCalls atomic.Int32
}

func (c *countingConnector) Platform() types.Platform { return types.PlatformMeta }

func (c *countingConnector) Sync(ctx context.Context, sc *model.SyncContext) (*model.SyncResult, error) {
	c.syncCalls.Add(1)
	return &model.SyncResult{}, nil
}

func (c *countingConnector) AuthURL(state types.OAuthState, codeChallenge string) string {
	return "https://example.com/auth"
}

func (c *countingConnector) ExchangeCode(ctx context.Context, code, codeVerifier string) (*model.OAuthToken, *model.ExternalProfile, error) {
	return &model.OAuthToken{AccessToken: "token"}, &model.ExternalProfile{ID: "ext", Name: "n"}, nil
}

func (c *countingConnector) RefreshToken(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	return &model.OAuthToken{AccessToken: "refreshed"}, nil
}

type singleRegistry struct {
	connector interfaces.Connector
}

func (r *singleRegistry) Get(platform types.Platform) (interfaces.Connector, bool) {
	if platform == r.connector.Platform() {
		return r.connector, true
	}
	return nil, false
}

func newSyncWorkerFixture(t *testing.T) (*countingConnector, *usecase.UseCases) {
	t.Helper()

	cipherSvc, err := cipher.New("test-secret")
	gt.NoError(t, err).Required()

	repo := memory.New()
	connector := &countingConnector{}
	uc := usecase.New(repo, &singleRegistry{connector: connector}, cipherSvc)

	accessEnc, err := cipherSvc.Encrypt("access-token")
	gt.NoError(t, err).Required()
	account := &model.SocialAccount{
		ID:                types.NewAccountID(),
		TenantID:          "tenant-a",
		Platform:          types.PlatformMeta,
		ExternalAccountID: "ig-1",
		AccessTokenEnc:    accessEnc,
		AuthStatus:        types.AuthStatusActive,
	}
	gt.NoError(t, repo.Account().Upsert(context.Background(), account)).Required()

	return connector, uc
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	_, uc := newSyncWorkerFixture(t)

	w := worker.NewSyncWorker(uc.Sync, "not a schedule")
	gt.Error(t, w.Start(context.Background()))
}

func TestStartRunsInitialSync(t *testing.T) {
	connector, uc := newSyncWorkerFixture(t)

	w := worker.NewSyncWorker(uc.Sync, "0 * * * *")
	gt.NoError(t, w.Start(context.Background())).Required()
	defer w.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for connector.syncCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("initial sync did not run")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStopAfterStart(t *testing.T) {
	_, uc := newSyncWorkerFixture(t)

	w := worker.NewSyncWorker(uc.Sync, "0 * * * *")
	gt.NoError(t, w.Start(context.Background())).Required()
	w.Stop()
}
