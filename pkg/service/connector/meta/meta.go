package meta

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model/config"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/apiclient"
)

const (
	graphBaseURL = "https://graph.facebook.com/v19.0"
	authBaseURL  = "https://www.facebook.com/v19.0/dialog/oauth"
	oauthScopes  = "instagram_basic,instagram_manage_insights,pages_show_list"
)

// Connector pulls Instagram business account metrics via the Graph API.
// Account-level insights need two calls: time-series metrics
// (impressions, reach) and total-value metrics (profile views) use
// different metric_type parameters and cannot be combined.
type Connector struct {
	api   *apiclient.Client
	creds config.OAuthCredentials
	sync  config.SyncConfig
}

var _ interfaces.Connector = &Connector{}

// New creates a Meta connector
func New(api *apiclient.Client, creds config.OAuthCredentials, syncCfg config.SyncConfig) *Connector {
	return &Connector{api: api, creds: creds, sync: syncCfg.Normalize()}
}

func (c *Connector) Platform() types.Platform {
	return types.PlatformMeta
}

func (c *Connector) AuthURL(state types.OAuthState, _ string) string {
	params := url.Values{}
	params.Set("client_id", c.creds.ClientID)
	params.Set("redirect_uri", c.creds.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", oauthScopes)
	params.Set("state", state.String())
	return authBaseURL + "?" + params.Encode()
}

func (c *Connector) ExchangeCode(ctx context.Context, code, _ string) (*model.OAuthToken, *model.ExternalProfile, error) {
	query := url.Values{}
	query.Set("client_id", c.creds.ClientID)
	query.Set("client_secret", c.creds.ClientSecret)
	query.Set("redirect_uri", c.creds.RedirectURI)
	query.Set("code", code)

	var tokenResp tokenResponse
	if err := c.api.Do(ctx, types.PlatformMeta, &apiclient.Request{
		URL:   graphBaseURL + "/oauth/access_token",
		Query: query,
	}, "token_exchange", &tokenResp); err != nil {
		return nil, nil, goerr.Wrap(err, "meta code exchange failed")
	}

	token := toOAuthToken(&tokenResp)

	var profile profileResponse
	if err := c.api.Do(ctx, types.PlatformMeta, &apiclient.Request{
		URL:         graphBaseURL + "/me",
		Query:       url.Values{"fields": {"id,name"}},
		BearerToken: token.AccessToken,
	}, "profile", &profile); err != nil {
		return nil, nil, goerr.Wrap(err, "meta profile fetch failed")
	}

	return token, &model.ExternalProfile{ID: profile.ID, Name: profile.Name}, nil
}

// RefreshToken extends a long-lived token via the fb_exchange_token grant.
// Meta has no separate refresh token; the stored token itself is exchanged.
func (c *Connector) RefreshToken(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	query := url.Values{}
	query.Set("grant_type", "fb_exchange_token")
	query.Set("client_id", c.creds.ClientID)
	query.Set("client_secret", c.creds.ClientSecret)
	query.Set("fb_exchange_token", refreshToken)

	var tokenResp tokenResponse
	if err := c.api.Do(ctx, types.PlatformMeta, &apiclient.Request{
		URL:   graphBaseURL + "/oauth/access_token",
		Query: query,
	}, "token_refresh", &tokenResp); err != nil {
		return nil, goerr.Wrap(err, "meta token refresh failed")
	}

	token := toOAuthToken(&tokenResp)
	token.RefreshToken = token.AccessToken
	return token, nil
}

func (c *Connector) Sync(ctx context.Context, sc *model.SyncContext) (*model.SyncResult, error) {
	profile, err := c.fetchProfile(ctx, sc)
	if err != nil {
		return nil, err
	}

	metrics, err := c.fetchDailyInsights(ctx, sc, profile)
	if err != nil {
		return nil, err
	}

	posts, err := c.fetchMedia(ctx, sc)
	if err != nil {
		return nil, err
	}

	return &model.SyncResult{DailyMetrics: metrics, Posts: posts}, nil
}

func (c *Connector) fetchProfile(ctx context.Context, sc *model.SyncContext) (*profileResponse, error) {
	var profile profileResponse
	if err := c.api.Do(ctx, types.PlatformMeta, &apiclient.Request{
		URL:         fmt.Sprintf("%s/%s", graphBaseURL, sc.ExternalAccountID),
		Query:       url.Values{"fields": {"id,username,followers_count,media_count"}},
		BearerToken: sc.AccessToken,
	}, "account_info", &profile); err != nil {
		return nil, goerr.Wrap(err, "meta account info failed")
	}
	return &profile, nil
}

// fetchDailyInsights issues the two insight calls and merges both into
// per-day metric rows.
func (c *Connector) fetchDailyInsights(ctx context.Context, sc *model.SyncContext, profile *profileResponse) ([]*model.DailyMetric, error) {
	since := time.Now().AddDate(0, 0, -c.sync.MetricWindowDays)

	var series insightsResponse
	if err := c.api.Do(ctx, types.PlatformMeta, &apiclient.Request{
		URL: fmt.Sprintf("%s/%s/insights", graphBaseURL, sc.ExternalAccountID),
		Query: url.Values{
			"metric":      {"impressions,reach"},
			"period":      {"day"},
			"metric_type": {"time_series"},
			"since":       {strconv.FormatInt(since.Unix(), 10)},
		},
		BearerToken: sc.AccessToken,
	}, "insights_series", &series); err != nil {
		return nil, goerr.Wrap(err, "meta time-series insights failed")
	}

	var totals insightsResponse
	if err := c.api.Do(ctx, types.PlatformMeta, &apiclient.Request{
		URL: fmt.Sprintf("%s/%s/insights", graphBaseURL, sc.ExternalAccountID),
		Query: url.Values{
			"metric":      {"profile_views,accounts_engaged"},
			"period":      {"day"},
			"metric_type": {"total_value"},
		},
		BearerToken: sc.AccessToken,
		// total_value metrics are unavailable on some account tiers
		SuppressRetryLog: true,
	}, "insights_totals", &totals); err != nil {
		// account-level totals are best-effort; series data is the signal
		totals = insightsResponse{}
	}

	byDate := make(map[string]*model.DailyMetric)
	for _, metric := range series.Data {
		for _, value := range metric.Values {
			day, err := time.Parse(time.RFC3339, value.EndTime)
			if err != nil {
				continue
			}
			day = day.UTC().Truncate(24 * time.Hour)
			key := day.Format(model.DateFormat)
			row, ok := byDate[key]
			if !ok {
				row = &model.DailyMetric{
					TenantID:  sc.TenantID,
					Platform:  types.PlatformMeta,
					AccountID: sc.AccountID,
					Date:      day,
					Followers: profile.FollowersCount,
					Raw:       map[string]any{},
				}
				byDate[key] = row
			}
			switch metric.Name {
			case "impressions":
				row.Impressions = model.CoerceMetric(value.Value)
			case "reach":
				row.Reach = model.CoerceMetric(value.Value)
			}
			row.Raw[metric.Name] = value.Value
		}
	}

	var engagements int64
	for _, metric := range totals.Data {
		if metric.Name == "accounts_engaged" && metric.TotalValue != nil {
			engagements = model.CoerceMetric(metric.TotalValue.Value)
		}
	}

	metrics := make([]*model.DailyMetric, 0, len(byDate))
	for _, row := range byDate {
		row.Engagements = engagements
		row.PostsCount = profile.MediaCount
		metrics = append(metrics, row)
	}
	return metrics, nil
}

func (c *Connector) fetchMedia(ctx context.Context, sc *model.SyncContext) ([]*model.Post, error) {
	var posts []*model.Post

	nextURL := fmt.Sprintf("%s/%s/media", graphBaseURL, sc.ExternalAccountID)
	query := url.Values{
		"fields": {"id,caption,media_type,media_product_type,media_url,thumbnail_url,permalink,timestamp,like_count,comments_count"},
		"limit":  {strconv.Itoa(c.sync.PostLimit)},
	}

	for nextURL != "" && len(posts) < c.sync.PostLimit {
		var page mediaListResponse
		if err := c.api.Do(ctx, types.PlatformMeta, &apiclient.Request{
			URL:         nextURL,
			Query:       query,
			BearerToken: sc.AccessToken,
		}, "media_list", &page); err != nil {
			return nil, goerr.Wrap(err, "meta media list failed")
		}

		for _, item := range page.Data {
			posts = append(posts, c.toPost(ctx, sc, &item))
			if len(posts) >= c.sync.PostLimit {
				break
			}
		}

		// paging.next is a fully-qualified URL including the original query
		nextURL = page.Paging.Next
		query = nil
	}

	return posts, nil
}

func (c *Connector) toPost(ctx context.Context, sc *model.SyncContext, item *mediaItem) *model.Post {
	postedAt, _ := time.Parse(time.RFC3339, item.Timestamp)

	mediaType := item.MediaType
	if item.MediaProduct == "REELS" {
		mediaType = "reel"
	}

	metrics := map[string]any{
		"likes":    item.LikeCount,
		"comments": item.CommentsCount,
	}

	// Per-media insights: reels report plays/views rather than impressions
	var insights mediaInsightsResponse
	metricNames := "impressions,reach,saved"
	if mediaType == "reel" {
		metricNames = "plays,reach,saved"
	}
	if err := c.api.Do(ctx, types.PlatformMeta, &apiclient.Request{
		URL:              fmt.Sprintf("%s/%s/insights", graphBaseURL, item.ID),
		Query:            url.Values{"metric": {metricNames}},
		BearerToken:      sc.AccessToken,
		SuppressRetryLog: true,
	}, "media_insights", &insights); err == nil {
		for _, metric := range insights.Data {
			if len(metric.Values) == 0 {
				continue
			}
			value := model.CoerceMetric(metric.Values[0].Value)
			switch metric.Name {
			case "impressions":
				metrics["impressions"] = value
			case "plays":
				// reels surface visibility through view counts
				metrics["views"] = value
			case "reach":
				metrics["reach"] = value
			case "saved":
				metrics["saves"] = value
			}
		}
	}

	return &model.Post{
		TenantID:       sc.TenantID,
		Platform:       types.PlatformMeta,
		AccountID:      sc.AccountID,
		ExternalPostID: item.ID,
		PostedAt:       postedAt,
		Caption:        item.Caption,
		MediaType:      mediaType,
		MediaURL:       item.MediaURL,
		ThumbnailURL:   item.ThumbnailURL,
		Metrics:        metrics,
		Raw:            map[string]any{"permalink": item.Permalink, "media_product_type": item.MediaProduct},
	}
}

func toOAuthToken(resp *tokenResponse) *model.OAuthToken {
	token := &model.OAuthToken{AccessToken: resp.AccessToken}
	if resp.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
		token.ExpiresAt = &expiry
	}
	return token
}
