package config

import (
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/socialpulse-lab/socialpulse/pkg/domain/model/config"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// OAuth holds CLI flags for platform OAuth app credentials. Credentials
// come from a TOML file, per-platform flags, or both; flags win.
type OAuth struct {
	configFile string
	flagCreds  map[types.Platform]*platformCreds
}

type platformCreds struct {
	clientID     string
	clientSecret string
	redirectURI  string
}

type oauthFile struct {
	Platform map[string]struct {
		ClientID     string `toml:"client_id"`
		ClientSecret string `toml:"client_secret"`
		RedirectURI  string `toml:"redirect_uri"`
	} `toml:"platform"`
}

// Flags returns CLI flags for OAuth configuration
func (o *OAuth) Flags() []cli.Flag {
	o.flagCreds = make(map[types.Platform]*platformCreds, len(types.AllPlatforms()))

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "oauth-config",
			Usage:       "Path to TOML file with platform OAuth credentials",
			Sources:     cli.EnvVars("SOCIALPULSE_OAUTH_CONFIG"),
			Destination: &o.configFile,
		},
	}

	for _, platform := range types.AllPlatforms() {
		creds := &platformCreds{}
		o.flagCreds[platform] = creds
		name := platform.String()
		envPrefix := "SOCIALPULSE_" + strings.ToUpper(name)

		flags = append(flags,
			&cli.StringFlag{
				Name:        name + "-client-id",
				Usage:       "OAuth client ID for " + name,
				Category:    "OAuth",
				Sources:     cli.EnvVars(envPrefix + "_CLIENT_ID"),
				Destination: &creds.clientID,
			},
			&cli.StringFlag{
				Name:        name + "-client-secret",
				Usage:       "OAuth client secret for " + name,
				Category:    "OAuth",
				Sources:     cli.EnvVars(envPrefix + "_CLIENT_SECRET"),
				Destination: &creds.clientSecret,
			},
			&cli.StringFlag{
				Name:        name + "-redirect-uri",
				Usage:       "OAuth redirect URI for " + name,
				Category:    "OAuth",
				Sources:     cli.EnvVars(envPrefix + "_REDIRECT_URI"),
				Destination: &creds.redirectURI,
			},
		)
	}
	return flags
}

// Configure merges the TOML file and flag values into the domain OAuth
// configuration. Platforms with no credentials at all are omitted.
func (o *OAuth) Configure() (domainConfig.OAuthConfig, error) {
	cfg := domainConfig.OAuthConfig{}

	if o.configFile != "" {
		// #nosec G304 - path is provided by the operator via CLI flag
		data, err := os.ReadFile(o.configFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read OAuth config file", goerr.V("path", o.configFile))
		}
		var file oauthFile
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, goerr.Wrap(err, "failed to parse OAuth config file", goerr.V("path", o.configFile))
		}
		for name, entry := range file.Platform {
			platform, err := types.ParsePlatform(name)
			if err != nil {
				return nil, goerr.Wrap(err, "unknown platform in OAuth config file", goerr.V("path", o.configFile))
			}
			cfg[platform] = domainConfig.OAuthCredentials{
				ClientID:     entry.ClientID,
				ClientSecret: entry.ClientSecret,
				RedirectURI:  entry.RedirectURI,
			}
		}
	}

	for platform, creds := range o.flagCreds {
		if creds.clientID == "" && creds.clientSecret == "" && creds.redirectURI == "" {
			continue
		}
		merged := cfg[platform]
		if creds.clientID != "" {
			merged.ClientID = creds.clientID
		}
		if creds.clientSecret != "" {
			merged.ClientSecret = creds.clientSecret
		}
		if creds.redirectURI != "" {
			merged.RedirectURI = creds.redirectURI
		}
		cfg[platform] = merged
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "OAuth configuration is invalid")
	}
	return cfg, nil
}
