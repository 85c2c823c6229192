package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voltatlas/cutout/internal/db"
)

var (
	stateLimit       int
	stateFilterEvent string
)

var stateCmd = &cobra.Command{
	Use:   "state [cutout-name]",
	Short: "View the preparation event history",
	Long: `Queries the state database and displays the recorded event history,
optionally filtered by cutout name and event type.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbConn == nil {
			return fmt.Errorf("state database is disabled, set --state-db")
		}
		cutoutFilter := ""
		if len(args) > 0 {
			cutoutFilter = args[0]
		}
		return db.DisplayHistory(cmd.Context(), dbConn, cutoutFilter, stateFilterEvent, stateLimit)
	},
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Limit the number of log records displayed")
	stateCmd.Flags().StringVarP(&stateFilterEvent, "event", "e", "", "Filter records by event type (e.g. prepare_end, error, merge_month)")
}
