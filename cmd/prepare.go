package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/voltatlas/cutout/internal/app"
	"github.com/voltatlas/cutout/internal/config"
	"github.com/voltatlas/cutout/internal/cutout"
	"github.com/voltatlas/cutout/internal/height"
	"github.com/voltatlas/cutout/internal/modules"
	"github.com/voltatlas/cutout/internal/prepare"
)

var overwrite bool

var prepareCmd = &cobra.Command{
	Use:   "prepare <spec.yaml>",
	Short: "Run the full preparation pipeline for one cutout",
	Long: `Reads a cutout specification, expands the extraction tasks over the local
input archive, runs them on a bounded worker pool and merges the results
into monthly compound files. A failed run removes the cutout directory
entirely; preparing an already prepared cutout fails unless --overwrite
is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := buildCutout(cmd, args[0])
		if err != nil {
			return err
		}

		opts := prepare.Options{
			Workers:   appConfig.Workers,
			Overwrite: overwrite,
			Conn:      dbConn,
		}
		if appConfig.GebcoPath != "" {
			opts.Height = &height.Config{RasterPath: appConfig.GebcoPath}
		}

		if appConfig.NoTUI {
			return prepare.Prepare(ctx, logger, c, opts)
		}

		model := app.NewModel(c.Name)
		p := tea.NewProgram(model, tea.WithContext(ctx))
		opts.OnProgress = func(done, total int, series string) {
			p.Send(app.TaskProgressMsg{Done: done, Total: total, Series: series})
		}
		go func() {
			p.Send(app.PhaseMsg{Name: "running extraction tasks"})
			err := prepare.Prepare(ctx, logger, c, opts)
			p.Send(app.RunFinishedMsg{Err: err})
		}()
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("progress view: %w", err)
		}
		return model.Err()
	},
}

func init() {
	prepareCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Rebuild the cutout even if it is already prepared")
}

// buildCutout assembles the cutout from its spec file: metadata skeleton,
// series configuration and target directory.
func buildCutout(cmd *cobra.Command, specPath string) (*cutout.Cutout, error) {
	spec, err := config.LoadCutoutSpec(specPath)
	if err != nil {
		return nil, err
	}

	metaCfg := modules.MetaConfig(appConfig.InputDir, spec.Params)
	meta, err := spec.BuildMeta(cmd.Context(), &metaCfg)
	if err != nil {
		return nil, fmt.Errorf("build metadata for cutout %q: %w", spec.Name, err)
	}

	c := &cutout.Cutout{
		Name: spec.Name,
		Dir:  filepath.Join(appConfig.CutoutDir, spec.Name),
		Meta: meta,
		Series: map[string]cutout.SeriesConfig{
			"weather": modules.LocalArchive(appConfig.InputDir, spec.Params),
		},
	}

	// Pick up the prepared flag of an earlier run, if the directory exists.
	// The skeleton itself is rebuilt from the spec, which is authoritative.
	if _, err := os.Stat(c.MetaPath()); err == nil {
		onDisk := &cutout.Cutout{Name: c.Name, Dir: c.Dir}
		if err := onDisk.LoadMeta(); err != nil {
			return nil, err
		}
		c.Prepared = onDisk.Prepared
	}
	return c, nil
}
