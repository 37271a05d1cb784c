package tiktok

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model/config"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/apiclient"
)

const (
	authURL    = "https://www.tiktok.com/v2/auth/authorize/"
	tokenURL   = "https://open.tiktokapis.com/v2/oauth/token/"
	apiBaseURL = "https://open.tiktokapis.com/v2"

	oauthScopes = "user.info.basic,user.info.stats,video.list"

	userInfoFields = "open_id,display_name,follower_count,following_count,likes_count,video_count"
	videoFields    = "id,create_time,video_description,cover_image_url,share_url,duration,view_count,like_count,comment_count,share_count"
)

// Connector pulls TikTok creator analytics through the Display API.
//
// TikTok exposes only current snapshot counters, so Sync produces a single
// daily metric row dated today plus the recent video list. Authorization
// uses PKCE; the client key doubles as the OAuth client ID.
type Connector struct {
	api   *apiclient.Client
	creds config.OAuthCredentials
	sync  config.SyncConfig
}

var _ interfaces.Connector = &Connector{}

// New creates a TikTok connector
func New(api *apiclient.Client, creds config.OAuthCredentials, syncCfg config.SyncConfig) *Connector {
	return &Connector{api: api, creds: creds, sync: syncCfg.Normalize()}
}

func (c *Connector) Platform() types.Platform {
	return types.PlatformTikTok
}

func (c *Connector) AuthURL(state types.OAuthState, codeChallenge string) string {
	params := url.Values{}
	params.Set("client_key", c.creds.ClientID)
	params.Set("response_type", "code")
	params.Set("scope", oauthScopes)
	params.Set("redirect_uri", c.creds.RedirectURI)
	params.Set("state", state.String())
	params.Set("code_challenge", codeChallenge)
	params.Set("code_challenge_method", "S256")
	return authURL + "?" + params.Encode()
}

func (c *Connector) ExchangeCode(ctx context.Context, code, codeVerifier string) (*model.OAuthToken, *model.ExternalProfile, error) {
	form := url.Values{}
	form.Set("client_key", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.creds.RedirectURI)
	form.Set("code_verifier", codeVerifier)

	var tokenResp tokenResponse
	if err := c.api.Do(ctx, types.PlatformTikTok, &apiclient.Request{
		Method: "POST",
		URL:    tokenURL,
		Form:   form,
	}, "token_exchange", &tokenResp); err != nil {
		return nil, nil, goerr.Wrap(err, "tiktok code exchange failed")
	}
	if tokenResp.Error != "" {
		return nil, nil, goerr.Wrap(types.ErrAuth, "tiktok token endpoint rejected the code",
			goerr.V("error", tokenResp.Error), goerr.V("description", tokenResp.ErrorDescription))
	}

	token := toOAuthToken(&tokenResp)

	profile, err := c.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	return token, &model.ExternalProfile{
		ID:   profile.Data.User.OpenID,
		Name: profile.Data.User.DisplayName,
	}, nil
}

func (c *Connector) RefreshToken(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	form := url.Values{}
	form.Set("client_key", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var tokenResp tokenResponse
	if err := c.api.Do(ctx, types.PlatformTikTok, &apiclient.Request{
		Method: "POST",
		URL:    tokenURL,
		Form:   form,
	}, "token_refresh", &tokenResp); err != nil {
		return nil, goerr.Wrap(err, "tiktok token refresh failed")
	}
	if tokenResp.Error != "" {
		return nil, goerr.Wrap(types.ErrAuth, "tiktok refresh rejected",
			goerr.V("error", tokenResp.Error), goerr.V("description", tokenResp.ErrorDescription))
	}

	return toOAuthToken(&tokenResp), nil
}

func (c *Connector) Sync(ctx context.Context, sc *model.SyncContext) (*model.SyncResult, error) {
	profile, err := c.fetchUserInfo(ctx, sc.AccessToken)
	if err != nil {
		return nil, err
	}
	user := profile.Data.User

	videos, err := c.fetchVideos(ctx, sc.AccessToken)
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	metric := &model.DailyMetric{
		TenantID:    sc.TenantID,
		Platform:    types.PlatformTikTok,
		AccountID:   sc.AccountID,
		Date:        today,
		Followers:   user.FollowerCount,
		Engagements: user.LikesCount,
		PostsCount:  user.VideoCount,
		Raw: map[string]any{
			"follower_count":  user.FollowerCount,
			"following_count": user.FollowingCount,
			"likes_count":     user.LikesCount,
			"video_count":     user.VideoCount,
		},
	}

	posts := make([]*model.Post, 0, len(videos))
	// Full-play estimate; the Display API does not expose average watch time.
	var views, watchTime int64
	for _, v := range videos {
		views += v.ViewCount
		watchTime += v.Duration * v.ViewCount
		posts = append(posts, &model.Post{
			TenantID:       sc.TenantID,
			Platform:       types.PlatformTikTok,
			AccountID:      sc.AccountID,
			ExternalPostID: v.ID,
			PostedAt:       time.Unix(v.CreateTime, 0).UTC(),
			Caption:        v.VideoDesc,
			MediaType:      "video",
			MediaURL:       v.ShareURL,
			ThumbnailURL:   v.CoverImageURL,
			Metrics: map[string]any{
				"views":    v.ViewCount,
				"likes":    v.LikeCount,
				"comments": v.CommentCount,
				"shares":   v.ShareCount,
			},
			Raw: map[string]any{"duration": v.Duration},
		})
	}
	metric.Views = views
	metric.WatchTime = watchTime

	return &model.SyncResult{DailyMetrics: []*model.DailyMetric{metric}, Posts: posts}, nil
}

func (c *Connector) fetchUserInfo(ctx context.Context, accessToken string) (*userInfoResponse, error) {
	query := url.Values{}
	query.Set("fields", userInfoFields)

	var resp userInfoResponse
	if err := c.api.Do(ctx, types.PlatformTikTok, &apiclient.Request{
		URL:         apiBaseURL + "/user/info/",
		Query:       query,
		BearerToken: accessToken,
	}, "profile", &resp); err != nil {
		return nil, goerr.Wrap(err, "tiktok user info failed")
	}
	if !resp.Error.ok() {
		return nil, wrapEnvelopeError(&resp.Error, "tiktok user info")
	}
	return &resp, nil
}

func (c *Connector) fetchVideos(ctx context.Context, accessToken string) ([]videoItem, error) {
	query := url.Values{}
	query.Set("fields", videoFields)

	var videos []videoItem
	var cursor int64
	for {
		body := map[string]any{"max_count": 20}
		if cursor > 0 {
			body["cursor"] = cursor
		}

		var resp videoListResponse
		if err := c.api.Do(ctx, types.PlatformTikTok, &apiclient.Request{
			Method:      "POST",
			URL:         apiBaseURL + "/video/list/",
			Query:       query,
			JSON:        body,
			BearerToken: accessToken,
		}, "videos", &resp); err != nil {
			return nil, goerr.Wrap(err, "tiktok video list failed")
		}
		if !resp.Error.ok() {
			return nil, wrapEnvelopeError(&resp.Error, "tiktok video list")
		}

		videos = append(videos, resp.Data.Videos...)
		if !resp.Data.HasMore || len(videos) >= c.sync.PostLimit {
			break
		}
		// A has_more page whose cursor does not advance would page forever.
		if resp.Data.Cursor <= cursor {
			break
		}
		cursor = resp.Data.Cursor
	}

	if len(videos) > c.sync.PostLimit {
		videos = videos[:c.sync.PostLimit]
	}
	return videos, nil
}

// wrapEnvelopeError maps TikTok's in-body error codes onto the shared
// taxonomy. HTTP-level failures were already classified by the API client.
func wrapEnvelopeError(e *apiError, operation string) error {
	base := types.ErrRequest
	switch {
	case strings.Contains(e.Code, "access_token"), e.Code == "scope_not_authorized":
		base = types.ErrAuth
	case e.Code == "rate_limit_exceeded":
		base = types.ErrRateLimited
	}
	return goerr.Wrap(base, operation+" returned an error",
		goerr.V("code", e.Code), goerr.V("message", e.Message))
}

func toOAuthToken(resp *tokenResponse) *model.OAuthToken {
	token := &model.OAuthToken{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		token.ExpiresAt = &expiry
	}
	return token
}
