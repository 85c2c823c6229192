package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voltatlas/cutout/internal/inspector"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <cutout-name>",
	Short: "Summarize the compound files of a prepared cutout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := filepath.Join(appConfig.CutoutDir, args[0])
		return inspector.InspectCutout(cmd.Context(), getLogger(), dir)
	},
}
