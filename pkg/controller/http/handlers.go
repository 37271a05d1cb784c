package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/usecase"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/async"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/errutil"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/safe"
)

const defaultLogLimit = 50

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(ctx, w, data)
}

// connectHandler starts the OAuth flow and redirects to the platform
func connectHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, err := types.ParsePlatform(chi.URLParam(r, "platform"))
		if err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		tenantID := types.TenantID(r.URL.Query().Get("tenant_id"))
		if err := tenantID.Validate(); err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "tenant_id is required"})
			return
		}

		authURL, err := authUC.ConnectURL(r.Context(), tenantID, platform)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	}
}

// callbackHandler completes the OAuth flow
func callbackHandler(authUC *usecase.AuthUseCase) http.HandlerFunc {
	type response struct {
		AccountID   string `json:"account_id"`
		AccountName string `json:"account_name"`
		Platform    string `json:"platform"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if errMsg := query.Get("error"); errMsg != "" {
			writeJSON(r.Context(), w, http.StatusBadGateway, errorResponse{Error: "authorization denied: " + errMsg})
			return
		}

		state := types.OAuthState(query.Get("state"))
		code := query.Get("code")
		if state == "" || code == "" {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "state and code are required"})
			return
		}

		account, err := authUC.HandleCallback(r.Context(), state, code)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "OAuth callback failed"), http.StatusBadGateway)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, response{
			AccountID:   account.ID.String(),
			AccountName: account.AccountName,
			Platform:    account.Platform.String(),
		})
	}
}

// syncTriggerHandler kicks off a tenant sync in the background and
// returns immediately.
func syncTriggerHandler(syncUC *usecase.SyncUseCase) http.HandlerFunc {
	type response struct {
		Accepted bool   `json:"accepted"`
		TenantID string `json:"tenant_id"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := types.TenantID(chi.URLParam(r, "tenantID"))
		if err := tenantID.Validate(); err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		var platform *types.Platform
		if p := r.URL.Query().Get("platform"); p != "" {
			parsed, err := types.ParsePlatform(p)
			if err != nil {
				writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
			platform = &parsed
		}

		async.Dispatch(r.Context(), func(ctx context.Context) error {
			result, err := syncUC.RunTenantSync(ctx, tenantID, platform)
			if err != nil {
				return err
			}
			logging.From(ctx).Info("triggered sync completed",
				"tenant_id", tenantID,
				"succeeded", result.Succeeded,
				"failed", result.Failed,
				"skipped", result.Skipped)
			return nil
		})

		writeJSON(r.Context(), w, http.StatusAccepted, response{Accepted: true, TenantID: tenantID.String()})
	}
}

// syncLogsHandler serves a tenant's recent sync history
func syncLogsHandler(uc *usecase.UseCases) http.HandlerFunc {
	type logResponse struct {
		ID           string  `json:"id"`
		AccountID    string  `json:"account_id"`
		Platform     string  `json:"platform"`
		Status       string  `json:"status"`
		StartedAt    string  `json:"started_at"`
		FinishedAt   *string `json:"finished_at,omitempty"`
		RowsUpserted int     `json:"rows_upserted"`
		ErrorMessage string  `json:"error_message,omitempty"`
	}
	type response struct {
		Logs []logResponse `json:"logs"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := types.TenantID(chi.URLParam(r, "tenantID"))
		if err := tenantID.Validate(); err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		limit := defaultLogLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		logs, err := uc.Sync.ListLogs(r.Context(), tenantID, limit)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		resp := response{Logs: make([]logResponse, len(logs))}
		for i, l := range logs {
			resp.Logs[i] = logResponse{
				ID:           l.ID.String(),
				AccountID:    l.AccountID.String(),
				Platform:     l.Platform.String(),
				Status:       string(l.Status),
				StartedAt:    l.StartedAt.Format(time.RFC3339),
				RowsUpserted: l.RowsUpserted,
				ErrorMessage: l.ErrorMessage,
			}
			if l.FinishedAt != nil {
				finished := l.FinishedAt.Format(time.RFC3339)
				resp.Logs[i].FinishedAt = &finished
			}
		}
		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}

// accountsHandler serves a tenant's connected accounts. Token fields
// never appear in the response.
func accountsHandler(uc *usecase.UseCases) http.HandlerFunc {
	type accountResponse struct {
		ID          string  `json:"id"`
		Platform    string  `json:"platform"`
		AccountName string  `json:"account_name"`
		AuthStatus  string  `json:"auth_status"`
		LastSyncAt  *string `json:"last_sync_at,omitempty"`
	}
	type response struct {
		Accounts []accountResponse `json:"accounts"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := types.TenantID(chi.URLParam(r, "tenantID"))
		if err := tenantID.Validate(); err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		accounts, err := uc.Auth.ListAccounts(r.Context(), tenantID)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		resp := response{Accounts: make([]accountResponse, len(accounts))}
		for i, a := range accounts {
			resp.Accounts[i] = accountResponse{
				ID:          a.ID.String(),
				Platform:    a.Platform.String(),
				AccountName: a.AccountName,
				AuthStatus:  string(a.AuthStatus),
			}
			if a.LastSyncAt != nil {
				last := a.LastSyncAt.Format(time.RFC3339)
				resp.Accounts[i].LastSyncAt = &last
			}
		}
		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}
