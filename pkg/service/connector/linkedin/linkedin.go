package linkedin

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model/config"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/apiclient"
)

const (
	authURL     = "https://www.linkedin.com/oauth/v2/authorization"
	tokenURL    = "https://www.linkedin.com/oauth/v2/accessToken"
	apiBaseURL  = "https://api.linkedin.com/v2"
	oauthScopes = "r_organization_social rw_organization_admin r_basicprofile"
)

// Connector pulls LinkedIn organization analytics.
//
// LinkedIn's follower statistics are windowed and return per-day follower
// GAINS, not a running total. Rows produced here carry the raw deltas in
// Followers; the orchestrator converts them into cumulative values by
// seeding from the last persisted prior-day total.
type Connector struct {
	api   *apiclient.Client
	creds config.OAuthCredentials
	sync  config.SyncConfig
}

var _ interfaces.Connector = &Connector{}

// New creates a LinkedIn connector
func New(api *apiclient.Client, creds config.OAuthCredentials, syncCfg config.SyncConfig) *Connector {
	return &Connector{api: api, creds: creds, sync: syncCfg.Normalize()}
}

func (c *Connector) Platform() types.Platform {
	return types.PlatformLinkedIn
}

func (c *Connector) AuthURL(state types.OAuthState, _ string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.creds.ClientID)
	params.Set("redirect_uri", c.creds.RedirectURI)
	params.Set("scope", oauthScopes)
	params.Set("state", state.String())
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
	if err := c.api.Do(ctx, types.PlatformLinkedIn, &apiclient.Request{
		Method: "POST",
		URL:    tokenURL,
		Form:   form,
	}, "token_exchange", &tokenResp); err != nil {
		return nil, nil, goerr.Wrap(err, "linkedin code exchange failed")
	}

	token := toOAuthToken(&tokenResp)

	var userinfo userinfoResponse
	if err := c.api.Do(ctx, types.PlatformLinkedIn, &apiclient.Request{
		URL:         apiBaseURL + "/userinfo",
		BearerToken: token.AccessToken,
	}, "profile", &userinfo); err != nil {
		return nil, nil, goerr.Wrap(err, "linkedin profile fetch failed")
	}

	return token, &model.ExternalProfile{ID: userinfo.Sub, Name: userinfo.Name}, nil
}

func (c *Connector) RefreshToken(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)

	var tokenResp tokenResponse
	if err := c.api.Do(ctx, types.PlatformLinkedIn, &apiclient.Request{
		Method: "POST",
		URL:    tokenURL,
		Form:   form,
	}, "token_refresh", &tokenResp); err != nil {
		return nil, goerr.Wrap(err, "linkedin token refresh failed")
	}

	return toOAuthToken(&tokenResp), nil
}

func (c *Connector) Sync(ctx context.Context, sc *model.SyncContext) (*model.SyncResult, error) {
	orgURN := "urn:li:organization:" + sc.ExternalAccountID
	end := time.Now()
	start := end.AddDate(0, 0, -c.sync.MetricWindowDays)

	followerStats, err := c.fetchFollowerStats(ctx, sc, orgURN, start, end)
	if err != nil {
		return nil, err
	}

	shareStats, err := c.fetchShareStats(ctx, sc, orgURN, start, end)
	if err != nil {
		return nil, err
	}

	metrics := c.mergeDaily(sc, followerStats, shareStats)

	posts, err := c.fetchPosts(ctx, sc, orgURN)
	if err != nil {
		return nil, err
	}

	return &model.SyncResult{DailyMetrics: metrics, Posts: posts}, nil
}

func (c *Connector) fetchFollowerStats(ctx context.Context, sc *model.SyncContext, orgURN string, start, end time.Time) (*followerStatsResponse, error) {
	var resp followerStatsResponse
	if err := c.api.Do(ctx, types.PlatformLinkedIn, &apiclient.Request{
		URL:         apiBaseURL + "/organizationalEntityFollowerStatistics",
		Query:       timeBoundQuery(orgURN, start, end),
		BearerToken: sc.AccessToken,
	}, "follower_stats", &resp); err != nil {
		return nil, goerr.Wrap(err, "linkedin follower statistics failed")
	}
	return &resp, nil
}

func (c *Connector) fetchShareStats(ctx context.Context, sc *model.SyncContext, orgURN string, start, end time.Time) (*shareStatsResponse, error) {
	var resp shareStatsResponse
	if err := c.api.Do(ctx, types.PlatformLinkedIn, &apiclient.Request{
		URL:         apiBaseURL + "/organizationalShareStatistics",
		Query:       timeBoundQuery(orgURN, start, end),
		BearerToken: sc.AccessToken,
	}, "share_stats", &resp); err != nil {
		return nil, goerr.Wrap(err, "linkedin share statistics failed")
	}
	return &resp, nil
}

// mergeDaily folds both windowed stat sets into one row per day. Followers
// holds that day's gain (organic + paid), not a total.
func (c *Connector) mergeDaily(sc *model.SyncContext, followers *followerStatsResponse, shares *shareStatsResponse) []*model.DailyMetric {
	byDate := make(map[string]*model.DailyMetric)

	row := func(startMs int64) *model.DailyMetric {
		day := time.UnixMilli(startMs).UTC().Truncate(24 * time.Hour)
		key := day.Format(model.DateFormat)
		r, ok := byDate[key]
		if !ok {
			r = &model.DailyMetric{
				TenantID:  sc.TenantID,
				Platform:  types.PlatformLinkedIn,
				AccountID: sc.AccountID,
				Date:      day,
				Raw:       map[string]any{},
			}
			byDate[key] = r
		}
		return r
	}

	for _, el := range followers.Elements {
		r := row(el.TimeRange.Start)
		r.Followers = el.FollowerGains.OrganicFollowerGain + el.FollowerGains.PaidFollowerGain
		r.Raw["follower_gains"] = el.FollowerGains
	}

	for _, el := range shares.Elements {
		r := row(el.TimeRange.Start)
		stats := el.TotalShareStatistics
		r.Impressions = stats.ImpressionCount
		r.Engagements = stats.LikeCount + stats.CommentCount + stats.ShareCount + stats.ClickCount
		r.Raw["share_statistics"] = stats
	}

	metrics := make([]*model.DailyMetric, 0, len(byDate))
	for _, r := range byDate {
		metrics = append(metrics, r)
	}
	return metrics
}

func (c *Connector) fetchPosts(ctx context.Context, sc *model.SyncContext, orgURN string) ([]*model.Post, error) {
	query := url.Values{}
	query.Set("q", "author")
	query.Set("author", orgURN)
	query.Set("count", fmt.Sprintf("%d", c.sync.PostLimit))

	var resp postsResponse
	if err := c.api.Do(ctx, types.PlatformLinkedIn, &apiclient.Request{
		URL:         apiBaseURL + "/posts",
		Query:       query,
		BearerToken: sc.AccessToken,
		Header:      map[string]string{"X-Restli-Protocol-Version": "2.0.0"},
	}, "posts", &resp); err != nil {
		return nil, goerr.Wrap(err, "linkedin posts fetch failed")
	}

	posts := make([]*model.Post, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		metrics := map[string]any{}

		var social socialActionsResponse
		if err := c.api.Do(ctx, types.PlatformLinkedIn, &apiclient.Request{
			URL:              apiBaseURL + "/socialActions/" + url.PathEscape(el.ID),
			BearerToken:      sc.AccessToken,
			SuppressRetryLog: true,
		}, "social_actions", &social); err == nil {
			metrics["likes"] = social.LikesSummary.TotalLikes
			metrics["comments"] = social.CommentsSummary.TotalComments
		}

		mediaType := "text"
		if el.Content.Media.ID != "" {
			mediaType = "media"
		}

		posts = append(posts, &model.Post{
			TenantID:       sc.TenantID,
			Platform:       types.PlatformLinkedIn,
			AccountID:      sc.AccountID,
			ExternalPostID: el.ID,
			PostedAt:       time.UnixMilli(el.PublishedAt).UTC(),
			Caption:        el.Commentary,
			MediaType:      mediaType,
			Metrics:        metrics,
			Raw:            map[string]any{"media_id": el.Content.Media.ID},
		})
	}
	return posts, nil
}

func timeBoundQuery(orgURN string, start, end time.Time) url.Values {
	query := url.Values{}
	query.Set("q", "organizationalEntity")
	query.Set("organizationalEntity", orgURN)
	query.Set("timeIntervals.timeGranularityType", "DAY")
	query.Set("timeIntervals.timeRange.start", fmt.Sprintf("%d", start.UnixMilli()))
	query.Set("timeIntervals.timeRange.end", fmt.Sprintf("%d", end.UnixMilli()))
	return query
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
