package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/compasscal/compass/internal/adapter/google"
	"github.com/compasscal/compass/internal/config"
	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/logging"
	"github.com/compasscal/compass/internal/reconcile"
	"github.com/compasscal/compass/internal/store"
)

var (
	cfgFile string
	v       = viper.New()
	cfg     config.Config

	// levelVar backs every logger so serve can change the level on reload.
	levelVar = new(slog.LevelVar)
	logger   = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "compass",
	Short: "Keep a local calendar in step with Google Calendar",
	Long: `compass receives Google Calendar push notifications, applies the changed
events to a local event store and keeps the notification channels alive.

The same store backs a mouse-driven day grid in the terminal where events
can be drafted, moved and resized.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags (inherited by all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/compass/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: json or text")
	rootCmd.PersistentFlags().String("store", "", "event store DSN (sqlite://, sqlite3://, postgres://, memory://)")
	rootCmd.PersistentFlags().StringP("user", "u", "", "user id the local store files events under")

	// Bind persistent flags to viper
	v.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag(config.KeyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))
	v.BindPFlag(config.KeyStoreDSN, rootCmd.PersistentFlags().Lookup("store"))
	v.BindPFlag(config.KeyUserID, rootCmd.PersistentFlags().Lookup("user"))
}

func initConfig(cmd *cobra.Command, args []string) error {
	used, err := config.Init(v, cfgFile)
	if err != nil {
		return err
	}
	cfg, err = config.Load(v)
	if err != nil {
		return err
	}

	levelVar.Set(logging.ParseLevel(cfg.LogLevel))
	logger = logging.New(os.Stderr, levelVar, cfg.LogFormat)
	slog.SetDefault(logger)
	if used != "" {
		logger.Debug("using config file", "path", used)
	}
	return nil
}

func openStore() (core.Storage, error) {
	st, err := store.Open(cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newGoogleAdapter(ctx context.Context) (*google.GoogleAdapter, error) {
	if _, err := os.Stat(cfg.CredentialsFile); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("credentials file not found: %s\n\nDownload an OAuth client secret from the Google Cloud console", cfg.CredentialsFile)
	}
	if _, err := os.Stat(cfg.TokenFile); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("token file not found: %s\n\nRun 'compass auth' to authenticate", cfg.TokenFile)
	}

	adapter := google.NewGoogleAdapter("google", "Google Calendar", cfg.CredentialsFile, cfg.TokenFile)
	if err := adapter.Login(ctx); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return adapter, nil
}

func newSyncService(st core.Storage, provider core.Provider) *reconcile.Service {
	return reconcile.NewService(
		st,
		provider,
		google.ToCompass,
		reconcile.NewCalculator(logger),
		reconcile.ServiceConfig{
			ChannelExpirationMin: cfg.ChannelExpirationMin,
			WebhookURL:           cfg.WebhookURL,
		},
		logger,
	)
}

// parseDate accepts YYYY-MM-DD, MM-DD, today, tomorrow, yesterday and
// weekday names (the next occurrence).
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	weekdays := map[string]time.Weekday{
		"sunday": time.Sunday, "sun": time.Sunday,
		"monday": time.Monday, "mon": time.Monday,
		"tuesday": time.Tuesday, "tue": time.Tuesday,
		"wednesday": time.Wednesday, "wed": time.Wednesday,
		"thursday": time.Thursday, "thu": time.Thursday,
		"friday": time.Friday, "fri": time.Friday,
		"saturday": time.Saturday, "sat": time.Saturday,
	}
	if wd, ok := weekdays[strings.TrimPrefix(s, "next ")]; ok {
		daysUntil := int(wd - today.Weekday())
		if daysUntil <= 0 {
			daysUntil += 7
		}
		return today.AddDate(0, 0, daysUntil), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("01-02", s, now.Location()); err == nil {
		return t.AddDate(now.Year(), 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD, MM-DD, today, tomorrow or a weekday)", s)
}
