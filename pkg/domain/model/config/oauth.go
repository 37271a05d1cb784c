package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
)

// OAuthCredentials holds one platform's app registration
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Validate checks if the credentials are complete
func (c *OAuthCredentials) Validate() error {
	if c.ClientID == "" {
		return goerr.New("client ID is required")
	}
	if c.ClientSecret == "" {
		return goerr.New("client secret is required")
	}
	if c.RedirectURI == "" {
		return goerr.New("redirect URI is required")
	}
	return nil
}

// OAuthConfig maps platforms to their app registrations. Platforms
// without credentials are simply not connectable; sync still works for
// accounts that already hold tokens.
type OAuthConfig map[types.Platform]OAuthCredentials

// Validate checks every configured platform entry
func (c OAuthConfig) Validate() error {
	for platform, creds := range c {
		if !platform.IsValid() {
			return goerr.New("invalid platform in OAuth config", goerr.V(types.PlatformKey, platform))
		}
		if err := creds.Validate(); err != nil {
			return goerr.Wrap(err, "invalid OAuth credentials", goerr.V(types.PlatformKey, platform))
		}
	}
	return nil
}
