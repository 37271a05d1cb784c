package connector

import (
	"time"

	"github.com/socialpulse-lab/socialpulse/pkg/domain/interfaces"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/model/config"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/apiclient"
	"github.com/socialpulse-lab/socialpulse/pkg/service/connector/linkedin"
	"github.com/socialpulse-lab/socialpulse/pkg/service/connector/meta"
	"github.com/socialpulse-lab/socialpulse/pkg/service/connector/tiktok"
	"github.com/socialpulse-lab/socialpulse/pkg/service/connector/twitter"
	"github.com/socialpulse-lab/socialpulse/pkg/service/connector/youtube"
	"github.com/socialpulse-lab/socialpulse/pkg/service/ratelimit"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
)

// PlatformLimits holds the per-platform outbound call budgets. Values
// stay under each vendor's published app-level quota with room to spare
// for other consumers of the same app credentials.
var PlatformLimits = map[types.Platform]ratelimit.Config{
	types.PlatformMeta:     {Max: 200, Window: time.Hour, Block: 5 * time.Minute},
	types.PlatformLinkedIn: {Max: 100, Window: 24 * time.Hour, Block: time.Hour},
	types.PlatformTikTok:   {Max: 600, Window: time.Minute, Block: time.Minute},
	types.PlatformYouTube:  {Max: 100, Window: 100 * time.Second, Block: time.Minute},
	types.PlatformTwitter:  {Max: 75, Window: 15 * time.Minute, Block: 15 * time.Minute},
}

// Registry holds the connectors built from configured OAuth credentials.
// Platforms without credentials are absent, not erroring stubs.
type Registry struct {
	connectors map[types.Platform]interfaces.Connector
}

var _ interfaces.ConnectorRegistry = &Registry{}

// NewRegistry builds connectors for every platform with valid credentials.
// All connectors share one API client so retry policy and rate limit
// state stay coherent across the process.
func NewRegistry(oauthCfg config.OAuthConfig, syncCfg config.SyncConfig, opts ...apiclient.Option) *Registry {
	limiter := ratelimit.New()

	clientOpts := make([]apiclient.Option, 0, len(PlatformLimits)+len(opts))
	for platform, limit := range PlatformLimits {
		clientOpts = append(clientOpts, apiclient.WithLimit(platform, limit))
	}
	clientOpts = append(clientOpts, opts...)
	api := apiclient.New(limiter, clientOpts...)

	r := &Registry{connectors: map[types.Platform]interfaces.Connector{}}
	for platform, creds := range oauthCfg {
		if err := creds.Validate(); err != nil {
			logging.Default().Warn("skipping platform with incomplete OAuth credentials",
				"platform", platform, "error", err)
			continue
		}

		switch platform {
		case types.PlatformMeta:
			r.connectors[platform] = meta.New(api, creds, syncCfg)
		case types.PlatformLinkedIn:
			r.connectors[platform] = linkedin.New(api, creds, syncCfg)
		case types.PlatformTikTok:
			r.connectors[platform] = tiktok.New(api, creds, syncCfg)
		case types.PlatformYouTube:
			r.connectors[platform] = youtube.New(api, creds, syncCfg)
		case types.PlatformTwitter:
			r.connectors[platform] = twitter.New(api, creds, syncCfg)
		}
	}
	return r
}

// Get returns the connector for a platform, if configured
func (r *Registry) Get(platform types.Platform) (interfaces.Connector, bool) {
	c, ok := r.connectors[platform]
	return c, ok
}

// Platforms lists the configured platforms
func (r *Registry) Platforms() []types.Platform {
	platforms := make([]types.Platform, 0, len(r.connectors))
	for _, p := range types.AllPlatforms() {
		if _, ok := r.connectors[p]; ok {
			platforms = append(platforms, p)
		}
	}
	return platforms
}
