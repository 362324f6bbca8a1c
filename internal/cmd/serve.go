package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/radio-control/radiowake/internal/api"
	"github.com/radio-control/radiowake/internal/auth"
	"github.com/radio-control/radiowake/internal/config"
	"github.com/radio-control/radiowake/internal/logging"
	"github.com/radio-control/radiowake/internal/wsnotify"
)

const (
	streamConnectWait = 5 * time.Second
	pruneInterval     = time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and event stream",
	Long: `Run the wake service. Radios come from the config file; when none are
configured a single fake radio is registered.

Wake timing, predicates and the rate limit are reloaded when the config file
changes. Listener, storage and radio changes need a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "listen address (overrides server.listen)")
	_ = viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("starting radiowake", "version", Version, "radios", len(cfg.Radios))

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.startStreams(ctx, streamConnectWait)
	a.manager.RefreshAll(ctx)

	var background conc.WaitGroup
	defer background.Wait()
	defer stop()
	if a.history != nil && cfg.History.Retention > 0 {
		background.Go(func() { pruneHistory(ctx, a, cfg.History.Retention) })
	}
	if a.audit != nil {
		background.Go(func() { rotateAuditOnHangup(ctx, a) })
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithEvents(wsnotify.NewHandler(a.hub, cfg.Telemetry.Stream(), logger)),
		api.WithWakeLimits(api.WakeLimits{Default: cfg.Wake.DefaultTimeout, Max: cfg.Wake.MaxTimeout}),
		api.WithRateLimit(cfg.RateLimit.WakesPerSecond, cfg.RateLimit.Burst),
		api.WithTimeouts(api.Timeouts{
			Read:  cfg.Server.ReadTimeout,
			Write: cfg.Server.WriteTimeout,
			Idle:  cfg.Server.IdleTimeout,
		}),
	}
	if a.history != nil {
		opts = append(opts, api.WithHistory(a.history))
	}
	if cfg.Auth.Enabled {
		vc, err := auth.ConfigFromFiles(cfg.Auth.HMACSecret, cfg.Auth.PublicKeyFile)
		if err != nil {
			return err
		}
		verifier, err := auth.NewVerifier(vc)
		if err != nil {
			return fmt.Errorf("failed to create token verifier: %w", err)
		}
		opts = append(opts, api.WithAuth(auth.NewMiddleware(verifier)))
	}
	server := api.NewServer(a.manager, opts...)

	config.Watch(viper.GetViper(), func(next *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload rejected", "error", err)
			return
		}
		applyReload(a, server, next, logger)
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Listen)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping HTTP server", "error", err)
	}
	logger.Info("radiowake stopped")
	return nil
}

// applyReload pushes the runtime-tunable settings of next into the running
// service.
func applyReload(a *app, server *api.Server, next *config.Config, logger *logging.Logger) {
	policy, err := policyFromConfig(next.Wake)
	if err != nil {
		logger.Warn("config reload rejected", "error", err)
		return
	}
	if err := a.manager.SetPolicy(policy); err != nil {
		logger.Warn("config reload rejected", "error", err)
		return
	}
	server.SetWakeLimits(api.WakeLimits{Default: next.Wake.DefaultTimeout, Max: next.Wake.MaxTimeout})
	server.SetRateLimit(next.RateLimit.WakesPerSecond, next.RateLimit.Burst)
	logger.Info("config reloaded",
		"predicate", next.Wake.Predicate,
		"default_timeout", next.Wake.DefaultTimeout,
		"max_timeout", next.Wake.MaxTimeout)
}

func pruneHistory(ctx context.Context, a *app, retention time.Duration) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		n, err := a.history.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			a.logger.Warn("history prune failed", "error", err)
		} else if n > 0 {
			a.logger.Info("history pruned", "removed", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// rotateAuditOnHangup starts a new audit file on every SIGHUP.
func rotateAuditOnHangup(ctx context.Context, a *app) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.audit.Rotate(); err != nil {
				a.logger.Warn("audit rotation failed", "error", err)
			} else {
				a.logger.Info("audit log rotated", "path", a.audit.Path())
			}
		}
	}
}
