package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/socialpulse-lab/socialpulse/pkg/cli/config"
	httpctrl "github.com/socialpulse-lab/socialpulse/pkg/controller/http"
	"github.com/socialpulse-lab/socialpulse/pkg/service/connector"
	"github.com/socialpulse-lab/socialpulse/pkg/service/worker"
	"github.com/socialpulse-lab/socialpulse/pkg/usecase"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var repoCfg config.Repository
	var oauthCfg config.OAuth
	var syncCfg config.Sync
	var cipherCfg config.Cipher

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("SOCIALPULSE_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, oauthCfg.Flags()...)
	flags = append(flags, syncCfg.Flags()...)
	flags = append(flags, cipherCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server with the periodic sync worker",
		Flags:   flags,
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
			logging.Default().Info("connectors configured", "platforms", registry.Platforms())

			uc := usecase.New(repo, registry, cipherSvc,
				usecase.WithSyncConfig(syncConfig),
			)

			var syncWorker *worker.SyncWorker
			if schedule := syncCfg.Schedule(); schedule != "" {
				syncWorker = worker.NewSyncWorker(uc.Sync, schedule)
				if err := syncWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start sync worker")
				}
			} else {
				logging.Default().Info("periodic sync disabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if syncWorker != nil {
					syncWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}
				logging.Default().Info("Server stopped")
				return nil
			}
		},
	}
}
