package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var calendarsCmd = &cobra.Command{
	Use:     "calendars",
	Aliases: []string{"cal", "cals"},
	Short:   "List available calendars",
	Long:    `List all calendars you have access to. The IDs are what 'compass watch' takes.`,
	RunE:    runCalendars,
}

func init() {
	rootCmd.AddCommand(calendarsCmd)
}

func runCalendars(cmd *cobra.Command, args []string) error {
	adapter, err := newGoogleAdapter(cmd.Context())
	if err != nil {
		return err
	}
	if err := adapter.LoadCalendars(cmd.Context()); err != nil {
		return fmt.Errorf("failed to list calendars: %w", err)
	}
	calendars := adapter.Calendars()

	ids := make([]string, 0, len(calendars))
	for id := range calendars {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return calendars[ids[i]] < calendars[ids[j]] })

	fmt.Println("Available calendars:")
	fmt.Println("─────────────────────────────────────────────────")
	for _, id := range ids {
		fmt.Printf("\n  • %s\n", calendars[id])
		fmt.Printf("    ID: %s\n", id)
	}
	fmt.Println()
	fmt.Printf("Total: %d calendars\n", len(calendars))
	return nil
}
