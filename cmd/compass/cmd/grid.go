package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/compasscal/compass/internal/tui"
)

var gridCmd = &cobra.Command{
	Use:     "grid",
	Aliases: []string{"ui"},
	Short:   "Open the day grid",
	Long: `Open an interactive day grid over the event store.

Click an empty slot to draft an event and drag down to stretch it. Drag an
event to move it, or grab its last slot to change its end. Click the
all-day lane to draft an all-day event.`,
	Args: cobra.NoArgs,
	RunE: runGrid,
}

func init() {
	rootCmd.AddCommand(gridCmd)
}

func runGrid(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	m := tui.NewModel(st, cfg.UserID)

	// Set up the program with mouse support and alt screen
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running grid: %w", err)
	}
	return nil
}
