package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/socialpulse-lab/socialpulse/pkg/cli/config"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/connector"
	"github.com/socialpulse-lab/socialpulse/pkg/usecase"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdSync() *cli.Command {
	var tenantID string
	var platformName string
	var repoCfg config.Repository
	var oauthCfg config.OAuth
	var syncCfg config.Sync
	var cipherCfg config.Cipher

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "tenant-id",
			Usage:       "Sync only this tenant (all tenants when empty)",
			Sources:     cli.EnvVars("SOCIALPULSE_TENANT_ID"),
			Destination: &tenantID,
		},
		&cli.StringFlag{
			Name:        "platform",
			Usage:       "Sync only this platform (requires --tenant-id)",
			Sources:     cli.EnvVars("SOCIALPULSE_PLATFORM"),
			Destination: &platformName,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, oauthCfg.Flags()...)
	flags = append(flags, syncCfg.Flags()...)
	flags = append(flags, cipherCfg.Flags()...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Run one sync batch and exit",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			oauthConfig, err := oauthCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load OAuth configuration")
			}

			cipherSvc, err := cipherCfg.Configure()
			if err != nil {
				return err
			}

			syncConfig := syncCfg.Configure()
			registry := connector.NewRegistry(oauthConfig, syncConfig)
			uc := usecase.New(repo, registry, cipherSvc,
				usecase.WithSyncConfig(syncConfig),
			)

			var result *usecase.BatchResult
			if tenantID != "" {
				var platform *types.Platform
				if platformName != "" {
					parsed, err := types.ParsePlatform(platformName)
					if err != nil {
						return err
					}
					platform = &parsed
				}
				result, err = uc.Sync.RunTenantSync(ctx, types.TenantID(tenantID), platform)
			} else {
				if platformName != "" {
					return goerr.New("--platform requires --tenant-id")
				}
				result, err = uc.Sync.RunGlobalSync(ctx)
			}
			if err != nil {
				return goerr.Wrap(err, "sync batch failed")
			}

			logging.Default().Info("sync batch completed",
				"total", result.Total,
				"succeeded", result.Succeeded,
				"failed", result.Failed,
				"skipped", result.Skipped)
			return nil
		},
	}
}
