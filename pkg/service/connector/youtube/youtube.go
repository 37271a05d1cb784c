package youtube

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
	authURL    = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenURL   = "https://oauth2.googleapis.com/token"
	apiBaseURL = "https://www.googleapis.com/youtube/v3"

	oauthScope = "https://www.googleapis.com/auth/youtube.readonly"
)

// Connector pulls YouTube channel analytics through the Data API v3.
//
// The Data API reports lifetime totals only, so Sync produces one daily
// metric row dated today. Views carries the channel's cumulative lifetime
// view count as reported by the API.
type Connector struct {
	api   *apiclient.Client
	creds config.OAuthCredentials
	sync  config.SyncConfig
}

var _ interfaces.Connector = &Connector{}

// New creates a YouTube connector
func New(api *apiclient.Client, creds config.OAuthCredentials, syncCfg config.SyncConfig) *Connector {
	return &Connector{api: api, creds: creds, sync: syncCfg.Normalize()}
}

func (c *Connector) Platform() types.Platform {
	return types.PlatformYouTube
}

func (c *Connector) AuthURL(state types.OAuthState, _ string) string {
	params := url.Values{}
	params.Set("client_id", c.creds.ClientID)
	params.Set("redirect_uri", c.creds.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", oauthScope)
	params.Set("state", state.String())
	// offline access with forced consent so a refresh token is issued
	// even when the user authorized before
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")
	return authURL + "?" + params.Encode()
}

func (c *Connector) ExchangeCode(ctx context.Context, code, _ string) (*model.OAuthToken, *model.ExternalProfile, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)
	form.Set("redirect_uri", c.creds.RedirectURI)

	var tokenResp tokenResponse
	if err := c.api.Do(ctx, types.PlatformYouTube, &apiclient.Request{
		Method: "POST",
		URL:    tokenURL,
		Form:   form,
	}, "token_exchange", &tokenResp); err != nil {
		return nil, nil, goerr.Wrap(err, "youtube code exchange failed")
	}

	token := toOAuthToken(&tokenResp)

	channels, err := c.fetchChannel(ctx, token.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	if len(channels.Items) == 0 {
		return nil, nil, goerr.Wrap(types.ErrAuth, "youtube token has no channel")
	}
	ch := channels.Items[0]

	return token, &model.ExternalProfile{ID: ch.ID, Name: ch.Snippet.Title}, nil
}

func (c *Connector) RefreshToken(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)

	var tokenResp tokenResponse
	if err := c.api.Do(ctx, types.PlatformYouTube, &apiclient.Request{
		Method: "POST",
		URL:    tokenURL,
		Form:   form,
	}, "token_refresh", &tokenResp); err != nil {
		return nil, goerr.Wrap(err, "youtube token refresh failed")
	}

	// Google does not rotate refresh tokens on refresh
	return toOAuthToken(&tokenResp), nil
}

func (c *Connector) Sync(ctx context.Context, sc *model.SyncContext) (*model.SyncResult, error) {
	channels, err := c.fetchChannel(ctx, sc.AccessToken)
	if err != nil {
		return nil, err
	}
	if len(channels.Items) == 0 {
		return nil, goerr.Wrap(types.ErrAuth, "youtube channel not accessible",
			goerr.V(types.AccountIDKey, sc.AccountID))
	}
	ch := channels.Items[0]

	today := time.Now().UTC().Truncate(24 * time.Hour)
	metric := &model.DailyMetric{
		TenantID:   sc.TenantID,
		Platform:   types.PlatformYouTube,
		AccountID:  sc.AccountID,
		Date:       today,
		Followers:  model.CoerceMetric(ch.Statistics.SubscriberCount),
		Views:      model.CoerceMetric(ch.Statistics.ViewCount),
		PostsCount: model.CoerceMetric(ch.Statistics.VideoCount),
		Raw: map[string]any{
			"subscriber_count": ch.Statistics.SubscriberCount,
			"view_count":       ch.Statistics.ViewCount,
			"video_count":      ch.Statistics.VideoCount,
		},
	}

	posts, err := c.fetchVideos(ctx, sc, ch.ContentDetails.RelatedPlaylists.Uploads)
	if err != nil {
		return nil, err
	}

	return &model.SyncResult{DailyMetrics: []*model.DailyMetric{metric}, Posts: posts}, nil
}

func (c *Connector) fetchChannel(ctx context.Context, accessToken string) (*channelListResponse, error) {
	query := url.Values{}
	query.Set("part", "snippet,statistics,contentDetails")
	query.Set("mine", "true")

	var resp channelListResponse
	if err := c.api.Do(ctx, types.PlatformYouTube, &apiclient.Request{
		URL:         apiBaseURL + "/channels",
		Query:       query,
		BearerToken: accessToken,
	}, "channel", &resp); err != nil {
		return nil, goerr.Wrap(err, "youtube channel fetch failed")
	}
	return &resp, nil
}

func (c *Connector) fetchVideos(ctx context.Context, sc *model.SyncContext, uploadsPlaylist string) ([]*model.Post, error) {
	if uploadsPlaylist == "" {
		return nil, nil
	}

	videoIDs, err := c.fetchUploadIDs(ctx, sc.AccessToken, uploadsPlaylist)
	if err != nil {
		return nil, err
	}
	if len(videoIDs) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("part", "snippet,statistics")
	query.Set("id", strings.Join(videoIDs, ","))

	var resp videoListResponse
	if err := c.api.Do(ctx, types.PlatformYouTube, &apiclient.Request{
		URL:         apiBaseURL + "/videos",
		Query:       query,
		BearerToken: sc.AccessToken,
	}, "videos", &resp); err != nil {
		return nil, goerr.Wrap(err, "youtube video fetch failed")
	}

	posts := make([]*model.Post, 0, len(resp.Items))
	for _, v := range resp.Items {
		postedAt, _ := time.Parse(time.RFC3339, v.Snippet.PublishedAt)
		posts = append(posts, &model.Post{
			TenantID:       sc.TenantID,
			Platform:       types.PlatformYouTube,
			AccountID:      sc.AccountID,
			ExternalPostID: v.ID,
			PostedAt:       postedAt,
			Caption:        v.Snippet.Title,
			MediaType:      "video",
			MediaURL:       "https://www.youtube.com/watch?v=" + v.ID,
			ThumbnailURL:   v.Snippet.Thumbnails.High.URL,
			Metrics: map[string]any{
				"views":    model.CoerceMetric(v.Statistics.ViewCount),
				"likes":    model.CoerceMetric(v.Statistics.LikeCount),
				"comments": model.CoerceMetric(v.Statistics.CommentCount),
			},
			Raw: map[string]any{"description": v.Snippet.Description},
		})
	}
	return posts, nil
}

func (c *Connector) fetchUploadIDs(ctx context.Context, accessToken, playlistID string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("part", "contentDetails")
		query.Set("playlistId", playlistID)
		query.Set("maxResults", "50")
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var resp playlistItemsResponse
		if err := c.api.Do(ctx, types.PlatformYouTube, &apiclient.Request{
			URL:         apiBaseURL + "/playlistItems",
			Query:       query,
			BearerToken: accessToken,
		}, "uploads", &resp); err != nil {
			return nil, goerr.Wrap(err, "youtube playlist fetch failed")
		}

		for _, item := range resp.Items {
			ids = append(ids, item.ContentDetails.VideoID)
			if len(ids) >= c.sync.PostLimit {
				return ids, nil
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
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
