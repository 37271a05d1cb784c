package twitter

import (
	"context"
	"encoding/base64"
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
	authURL    = "https://twitter.com/i/oauth2/authorize"
	tokenURL   = "https://api.twitter.com/2/oauth2/token"
	apiBaseURL = "https://api.twitter.com/2"

	oauthScopes = "tweet.read users.read offline.access"
)

// Connector pulls X (Twitter) account analytics through the v2 API.
//
// Authorization uses PKCE with a confidential client, so the token
// endpoint additionally requires HTTP Basic credentials. Public metrics
// are snapshot counters; Sync produces one daily metric row dated today.
type Connector struct {
	api   *apiclient.Client
	creds config.OAuthCredentials
	sync  config.SyncConfig
}

var _ interfaces.Connector = &Connector{}

// New creates a Twitter connector
func New(api *apiclient.Client, creds config.OAuthCredentials, syncCfg config.SyncConfig) *Connector {
	return &Connector{api: api, creds: creds, sync: syncCfg.Normalize()}
}

func (c *Connector) Platform() types.Platform {
	return types.PlatformTwitter
}

func (c *Connector) AuthURL(state types.OAuthState, codeChallenge string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.creds.ClientID)
	params.Set("redirect_uri", c.creds.RedirectURI)
	params.Set("scope", oauthScopes)
	params.Set("state", state.String())
	params.Set("code_challenge", codeChallenge)
	params.Set("code_challenge_method", "S256")
	return authURL + "?" + params.Encode()
}

func (c *Connector) ExchangeCode(ctx context.Context, code, codeVerifier string) (*model.OAuthToken, *model.ExternalProfile, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.creds.RedirectURI)
	form.Set("code_verifier", codeVerifier)
	form.Set("client_id", c.creds.ClientID)

	var tokenResp tokenResponse
	if err := c.api.Do(ctx, types.PlatformTwitter, &apiclient.Request{
		Method: "POST",
		URL:    tokenURL,
		Form:   form,
		Header: map[string]string{"Authorization": c.basicAuth()},
	}, "token_exchange", &tokenResp); err != nil {
		return nil, nil, goerr.Wrap(err, "twitter code exchange failed")
	}

	token := toOAuthToken(&tokenResp)

	user, err := c.fetchUser(ctx, token.AccessToken)
	if err != nil {
		return nil, nil, err
	}

	return token, &model.ExternalProfile{ID: user.Data.ID, Name: user.Data.Name}, nil
}

func (c *Connector) RefreshToken(ctx context.Context, refreshToken string) (*model.OAuthToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.creds.ClientID)

	var tokenResp tokenResponse
	if err := c.api.Do(ctx, types.PlatformTwitter, &apiclient.Request{
		Method: "POST",
		URL:    tokenURL,
		Form:   form,
		Header: map[string]string{"Authorization": c.basicAuth()},
	}, "token_refresh", &tokenResp); err != nil {
		return nil, goerr.Wrap(err, "twitter token refresh failed")
	}

	// Twitter rotates the refresh token on every refresh
	return toOAuthToken(&tokenResp), nil
}

func (c *Connector) Sync(ctx context.Context, sc *model.SyncContext) (*model.SyncResult, error) {
	user, err := c.fetchUser(ctx, sc.AccessToken)
	if err != nil {
		return nil, err
	}
	pm := user.Data.PublicMetrics

	today := time.Now().UTC().Truncate(24 * time.Hour)
	metric := &model.DailyMetric{
		TenantID:   sc.TenantID,
		Platform:   types.PlatformTwitter,
		AccountID:  sc.AccountID,
		Date:       today,
		Followers:  pm.FollowersCount,
		PostsCount: pm.TweetCount,
		Raw: map[string]any{
			"followers_count": pm.FollowersCount,
			"following_count": pm.FollowingCount,
			"tweet_count":     pm.TweetCount,
			"listed_count":    pm.ListedCount,
		},
	}

	posts, impressions, engagements, err := c.fetchTweets(ctx, sc, user.Data.ID)
	if err != nil {
		return nil, err
	}
	metric.Impressions = impressions
	metric.Engagements = engagements

	return &model.SyncResult{DailyMetrics: []*model.DailyMetric{metric}, Posts: posts}, nil
}

func (c *Connector) fetchUser(ctx context.Context, accessToken string) (*userResponse, error) {
	query := url.Values{}
	query.Set("user.fields", "public_metrics")

	var resp userResponse
	if err := c.api.Do(ctx, types.PlatformTwitter, &apiclient.Request{
		URL:         apiBaseURL + "/users/me",
		Query:       query,
		BearerToken: accessToken,
	}, "profile", &resp); err != nil {
		return nil, goerr.Wrap(err, "twitter user fetch failed")
	}
	if resp.Data.ID == "" {
		return nil, goerr.Wrap(types.ErrAuth, "twitter token has no user")
	}
	return &resp, nil
}

func (c *Connector) fetchTweets(ctx context.Context, sc *model.SyncContext, userID string) ([]*model.Post, int64, int64, error) {
	maxResults := c.sync.PostLimit
	if maxResults > 100 {
		maxResults = 100
	}
	if maxResults < 5 {
		maxResults = 5
	}

	query := url.Values{}
	query.Set("tweet.fields", "created_at,public_metrics")
	query.Set("max_results", fmt.Sprintf("%d", maxResults))

	var resp tweetsResponse
	if err := c.api.Do(ctx, types.PlatformTwitter, &apiclient.Request{
		URL:         apiBaseURL + "/users/" + url.PathEscape(userID) + "/tweets",
		Query:       query,
		BearerToken: sc.AccessToken,
	}, "tweets", &resp); err != nil {
		return nil, 0, 0, goerr.Wrap(err, "twitter timeline fetch failed")
	}

	posts := make([]*model.Post, 0, len(resp.Data))
	var impressions, engagements int64
	for _, t := range resp.Data {
		if len(posts) >= c.sync.PostLimit {
			break
		}
		postedAt, _ := time.Parse(time.RFC3339, t.CreatedAt)
		pm := t.PublicMetrics
		impressions += pm.ImpressionCount
		engagements += pm.LikeCount + pm.ReplyCount + pm.RetweetCount + pm.QuoteCount

		posts = append(posts, &model.Post{
			TenantID:       sc.TenantID,
			Platform:       types.PlatformTwitter,
			AccountID:      sc.AccountID,
			ExternalPostID: t.ID,
			PostedAt:       postedAt,
			Caption:        t.Text,
			MediaType:      "tweet",
			Metrics: map[string]any{
				"impressions": pm.ImpressionCount,
				"likes":       pm.LikeCount,
				"comments":    pm.ReplyCount,
				"shares":      pm.RetweetCount + pm.QuoteCount,
			},
		})
	}
	return posts, impressions, engagements, nil
}

func (c *Connector) basicAuth() string {
	raw := c.creds.ClientID + ":" + c.creds.ClientSecret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
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
