package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var checkpointsOrder int

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List saved checkpoints",
	Long: `List the checkpoints in the store, one row per task order and epoch.

Examples:
  replay checkpoints
  replay checkpoints --order 2`,
	RunE: runCheckpoints,
}

func init() {
	checkpointsCmd.Flags().IntVar(&checkpointsOrder, "order", 0, "restrict to one task order (0 shows all)")
}

func runCheckpoints(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	summaries, err := store.List(ctx, checkpointsOrder)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("No checkpoints found.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Order", "Epoch", "Steps", "Examples", "Mean Loss", "Created"})
	for _, s := range summaries {
		table.Append([]string{
			shortID(s.ID),
			strconv.Itoa(s.Order),
			strconv.Itoa(s.Epoch),
			strconv.Itoa(s.Steps),
			strconv.Itoa(s.Examples),
			fmt.Sprintf("%.4f", s.MeanLoss),
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()

	return nil
}

// shortID abbreviates a checkpoint UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
