package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/compasscal/compass/internal/config"
	"github.com/compasscal/compass/internal/httpapi"
	"github.com/compasscal/compass/internal/logging"
	"github.com/compasscal/compass/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Receive Google push notifications and maintain channels",
	Long: `Run the HTTP service Google Calendar posts change notifications to.

Each notification is reconciled into the event store. Channel maintenance
runs on the maintenance_cron schedule: channels close to expiry are renewed
and sync records nobody has touched in two weeks are pruned.

The log level follows the config file while the service runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "address to listen on (default :8080)")
	v.BindPFlag(config.KeyListenAddr, serveCmd.Flags().Lookup("listen"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	adapter, err := newGoogleAdapter(ctx)
	if err != nil {
		return err
	}
	svc := newSyncService(st, adapter)

	sched, err := scheduler.New(cfg.MaintenanceCron, svc, logger)
	if err != nil {
		return err
	}

	srv := httpapi.NewServer(httpapi.Config{
		ListenAddr:  cfg.ListenAddr,
		DefaultUser: cfg.UserID,
	}, st, svc, logger)

	if cfg.WebhookURL == "" {
		logger.Warn("webhook_url is not set; expiring channels cannot be renewed")
	}
	watchConfigFile()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	sched.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown", "err", err)
	}
	return nil
}

// watchConfigFile applies log_level changes from the config file.
func watchConfigFile() {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		lvl := logging.ParseLevel(v.GetString(config.KeyLogLevel))
		if lvl == levelVar.Level() {
			return
		}
		levelVar.Set(lvl)
		logger.Info("log level changed", "level", lvl.String(), "file", e.Name)
	})
	v.WatchConfig()
}
