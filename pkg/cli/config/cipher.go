package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/service/cipher"
	"github.com/urfave/cli/v3"
)

// Cipher holds the CLI flag for the token encryption secret
type Cipher struct {
	secret string
}

// Flags returns CLI flags for cipher configuration
func (c *Cipher) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "token-encryption-secret",
			Usage:       "Secret for encrypting OAuth tokens at rest (required)",
			Required:    true,
			Sources:     cli.EnvVars("SOCIALPULSE_TOKEN_ENCRYPTION_SECRET"),
			Destination: &c.secret,
		},
	}
}

// Configure builds the token cipher service
func (c *Cipher) Configure() (*cipher.Service, error) {
	svc, err := cipher.New(c.secret)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize token cipher")
	}
	return svc, nil
}
