package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltatlas/cutout/internal/grid"
	"github.com/voltatlas/cutout/internal/prepare"
)

var previewCmd = &cobra.Command{
	Use:   "preview <spec.yaml> <series> <YYYY-MM>",
	Short: "Extract a single month of one series in memory",
	Long: `Runs the extraction for exactly one series and one month without writing
anything to the cutout directory, and prints a summary of the produced
dataset. Useful for checking a specification before a full prepare run.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()

		c, err := buildCutout(cmd, args[0])
		if err != nil {
			return err
		}
		seriesName := args[1]
		ym, err := grid.ParseYearMonth(args[2])
		if err != nil {
			return err
		}

		ds, err := prepare.ProduceSeries(cmd.Context(), logger, c, seriesName, ym)
		if err != nil {
			return err
		}

		n, err := ds.Len()
		if err != nil {
			return err
		}
		variables, err := ds.Variables()
		if err != nil {
			return err
		}
		times, err := ds.Times()
		if err != nil {
			return err
		}

		fmt.Printf("Series %s, month %s: %d rows, %d variables\n", seriesName, ym, n, len(variables))
		for _, v := range variables {
			fmt.Printf("  - %s\n", v)
		}
		if len(times) > 0 {
			fmt.Printf("Time range: %s .. %s (%d steps)\n",
				times[0].Format(time.RFC3339), times[len(times)-1].Format(time.RFC3339), len(times))
		}
		return nil
	},
}
