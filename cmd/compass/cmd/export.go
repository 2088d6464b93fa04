package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/httpapi"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the user's events as an iCalendar file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().String("from", "", "Start date (YYYY-MM-DD, 'today', 'monday', ...)")
	exportCmd.Flags().String("to", "", "End date, inclusive")
	exportCmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	now := time.Now()
	filter := core.EventFilter{User: cfg.UserID}

	if s, _ := cmd.Flags().GetString("from"); s != "" {
		start, err := parseDate(s, now)
		if err != nil {
			return err
		}
		filter.Start = start
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		end, err := parseDate(s, now)
		if err != nil {
			return err
		}
		// End of day
		filter.End = end.AddDate(0, 0, 1)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	events, err := st.ListEvents(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	ics := httpapi.BuildICS(events, now)

	out, _ := cmd.Flags().GetString("output")
	if out == "-" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), ics)
		return err
	}
	if err := os.WriteFile(out, []byte(ics), 0o644); err != nil {
		return err
	}
	logger.Info("exported events", "count", len(events), "file", out)
	return nil
}
