package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compasscal/compass/internal/config"
	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/reconcile"
)

var watchCmd = &cobra.Command{
	Use:   "watch [calendar-id...]",
	Short: "Import calendars and subscribe to their changes",
	Long: `Import every event of each calendar (default: primary) into the event
store, then open a Google push channel that posts to webhook_url.

An existing channel on the same calendar is replaced.`,
	RunE: runWatch,
}

var unwatchCmd = &cobra.Command{
	Use:   "unwatch",
	Short: "Close every channel for the user and forget its sync state",
	Args:  cobra.NoArgs,
	RunE:  runUnwatch,
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Renew expiring channels and prune stale sync records once",
	Args:  cobra.NoArgs,
	RunE:  runMaintain,
}

func init() {
	watchCmd.Flags().String("webhook-url", "", "public URL Google posts notifications to")
	v.BindPFlag(config.KeyWebhookURL, watchCmd.Flags().Lookup("webhook-url"))

	rootCmd.AddCommand(watchCmd, unwatchCmd, maintainCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if cfg.WebhookURL == "" {
		return fmt.Errorf("%s is not set\n\nGoogle needs a public HTTPS address that reaches 'compass serve'", config.KeyWebhookURL)
	}
	calendars := args
	if len(calendars) == 0 {
		calendars = []string{"primary"}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	adapter, err := newGoogleAdapter(cmd.Context())
	if err != nil {
		return err
	}
	svc := newSyncService(st, adapter)

	for _, id := range calendars {
		w, err := svc.StartWatch(cmd.Context(), cfg.UserID, id)
		if err != nil {
			return err
		}
		fmt.Printf("Watching %s\n", id)
		fmt.Printf("    channel:  %s\n", w.ChannelID)
		fmt.Printf("    resource: %s\n", w.ResourceID)
	}
	fmt.Print(watchFooter(cfg.ChannelExpirationMin))
	return nil
}

func watchFooter(minutes int) string {
	return fmt.Sprintf("\n%s\n'compass serve' renews channels before they expire.\n", reconcile.ExpirationReminder(minutes))
}

func runUnwatch(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	adapter, err := newGoogleAdapter(cmd.Context())
	if err != nil {
		return err
	}
	svc := newSyncService(st, adapter)

	if err := svc.StopWatches(cmd.Context(), cfg.UserID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			fmt.Printf("No channels for %s\n", cfg.UserID)
			return nil
		}
		return err
	}
	fmt.Printf("Stopped every channel for %s\n", cfg.UserID)
	return nil
}

func runMaintain(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	adapter, err := newGoogleAdapter(cmd.Context())
	if err != nil {
		return err
	}
	svc := newSyncService(st, adapter)

	report, err := svc.Maintain(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Refreshed %d channels, %d failed\n", report.Refreshed, report.Failed)
	for _, user := range report.Pruned {
		fmt.Printf("Pruned stale sync record for %s\n", user)
	}
	return nil
}
