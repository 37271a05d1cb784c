package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/repository/memory"
	"github.com/socialpulse-lab/socialpulse/pkg/service/cipher"
	"github.com/socialpulse-lab/socialpulse/pkg/usecase"

	httpctrl "github.com/socialpulse-lab/socialpulse/pkg/controller/http"
)

type stubConnector struct {
	platform types.Platform
}

func (s *stubConnector) Platform() types.Platform { return s.platform }

func (s *stubConnector) Sync(ctx context.Context, sc *model.SyncContext) (*model.SyncResult, error) {
	return &model.SyncResult{}, nil
}

func (s *stubConnector) AuthURL(state types.OAuthState, codeChallenge string) string {
	return "https://platform.example.com/authorize?state=" + state.String()
}

func (s *stubConnector) ExchangeCode(ctx context.Context, code, codeVerifier string) (*model.OAuthToken, *model.ExternalProfile, error) {
	return &model.OAuthToken{AccessToken: "token-" + code},
		&model.ExternalProfile{ID: "ext-" + code, Name: "Connected Account"}, nil
}

func (s *stubConnector) RefreshToken(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	return &model.OAuthToken{AccessToken: "refreshed"}, nil
}

type stubRegistry map[types.Platform]interfaces.Connector

func (r stubRegistry) Get(platform types.Platform) (interfaces.Connector, bool) {
	c, ok := r[platform]
	return c, ok
}

func newTestServer(t *testing.T) (*httpctrl.Server, interfaces.Repository) {
	t.Helper()

	cipherSvc, err := cipher.New("test-secret")
	gt.NoError(t, err).Required()

	repo := memory.New()
	registry := stubRegistry{
		types.PlatformMeta: &stubConnector{platform: types.PlatformMeta},
	}
	uc := usecase.New(repo, registry, cipherSvc)
	return httpctrl.New(uc), repo
}

func doRequest(s *httpctrl.Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health")
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Bool(t, strings.Contains(rec.Body.String(), "ok")).True()
}

func TestConnectRedirectsToPlatform(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/auth/meta/connect?tenant_id=tenant-a")
	gt.Value(t, rec.Code).Equal(http.StatusTemporaryRedirect)

	location := rec.Header().Get("Location")
	parsed, err := url.Parse(location)
	gt.NoError(t, err).Required()
	gt.Value(t, parsed.Host).Equal("platform.example.com")
	gt.Value(t, parsed.Query().Get("state")).NotEqual("")
}

func TestConnectRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("unknown platform", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/auth/myspace/connect?tenant_id=tenant-a")
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("missing tenant", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/auth/meta/connect")
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("unconfigured platform", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/auth/tiktok/connect?tenant_id=tenant-a")
		gt.Value(t, rec.Code).Equal(http.StatusInternalServerError)
	})
}

func TestCallbackCompletesConnectFlow(t *testing.T) {
	s, repo := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/auth/meta/connect?tenant_id=tenant-a")
	gt.Value(t, rec.Code).Equal(http.StatusTemporaryRedirect)
	location, err := url.Parse(rec.Header().Get("Location"))
	gt.NoError(t, err).Required()
	state := location.Query().Get("state")

	rec = doRequest(s, http.MethodGet, "/api/auth/meta/callback?state="+state+"&code=auth-code-1")
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		AccountID   string `json:"account_id"`
		AccountName string `json:"account_name"`
		Platform    string `json:"platform"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Value(t, resp.AccountName).Equal("Connected Account")
	gt.Value(t, resp.Platform).Equal("meta")

	account, err := repo.Account().GetByID(context.Background(), types.AccountID(resp.AccountID))
	gt.NoError(t, err).Required()
	gt.Value(t, account.ExternalAccountID).Equal("ext-auth-code-1")
}

func TestCallbackErrorPaths(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("provider denied", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/auth/meta/callback?error=access_denied")
		gt.Value(t, rec.Code).Equal(http.StatusBadGateway)
	})

	t.Run("missing state and code", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/auth/meta/callback")
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("unknown state", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/auth/meta/callback?state=bogus&code=auth-code-1")
		gt.Value(t, rec.Code).Equal(http.StatusBadGateway)
	})
}

func TestSyncTriggerIsAccepted(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/tenants/tenant-a/sync")
	gt.Value(t, rec.Code).Equal(http.StatusAccepted)
	gt.Bool(t, strings.Contains(rec.Body.String(), "tenant-a")).True()
}

func TestSyncTriggerRejectsUnknownPlatform(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/tenants/tenant-a/sync?platform=myspace")
	gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
}

func TestSyncLogsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/tenants/tenant-a/sync-logs")
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Logs []json.RawMessage `json:"logs"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Array(t, resp.Logs).Length(0)
}

func TestAccountsEndpointOmitsTokens(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/auth/meta/connect?tenant_id=tenant-a")
	location, err := url.Parse(rec.Header().Get("Location"))
	gt.NoError(t, err).Required()
	state := location.Query().Get("state")
	rec = doRequest(s, http.MethodGet, "/api/auth/meta/callback?state="+state+"&code=auth-code-1")
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	rec = doRequest(s, http.MethodGet, "/api/tenants/tenant-a/accounts")
	gt.Value(t, rec.Code).Equal(http.StatusOK)

	var resp struct {
		Accounts []struct {
			ID          string `json:"id"`
			Platform    string `json:"platform"`
			AccountName string `json:"account_name"`
			AuthStatus  string `json:"auth_status"`
		} `json:"accounts"`
	}
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
	gt.Array(t, resp.Accounts).Length(1).Required()
	gt.Value(t, resp.Accounts[0].AuthStatus).Equal("active")

	// The raw body must never leak token material
	gt.Bool(t, strings.Contains(rec.Body.String(), "token")).False()
}
