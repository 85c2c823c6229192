// Package prepare orchestrates the full cutout preparation run: task
// expansion, the bounded parallel extraction pool, the per-month merge and
// the prepared-flag flip. A failed run always leaves the cutout directory
// absent and the cutout unprepared.
package prepare

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voltatlas/cutout/internal/cutout"
	"github.com/voltatlas/cutout/internal/db"
	"github.com/voltatlas/cutout/internal/grid"
	"github.com/voltatlas/cutout/internal/height"
	"github.com/voltatlas/cutout/internal/task"
)

// ErrAlreadyPrepared is returned when a prepared cutout is prepared again
// without the overwrite option.
var ErrAlreadyPrepared = errors.New("cutout is already prepared")

// Options tunes a preparation run. The zero value is usable: no state
// database, no height pre-step, worker count from the machine.
type Options struct {
	// Workers bounds the extraction pool. Defaults to runtime.NumCPU().
	Workers int
	// Overwrite rebuilds an already prepared cutout from scratch. Without
	// it, preparing a prepared cutout fails with ErrAlreadyPrepared.
	Overwrite bool
	// Conn is the state database for the event log. May be nil.
	Conn *sql.DB
	// Height, when set, resamples the elevation raster onto the cutout grid
	// before any task runs and overlays it into every compound file.
	Height *height.Config
	// OnProgress is called after each finished task with the running count.
	// May be nil. Called from worker goroutines.
	OnProgress func(done, total int, series string)
}

// Prepare runs the whole pipeline for one cutout. Preparing an already
// prepared cutout is an error unless opts.Overwrite is set, in which case
// the previous output is discarded and rebuilt. Any failure after the
// directory reset purges the directory completely, so on-disk state is
// always either a fully prepared cutout or nothing.
func Prepare(ctx context.Context, logger *slog.Logger, c *cutout.Cutout, opts Options) (err error) {
	if c.Prepared {
		if !opts.Overwrite {
			return fmt.Errorf("cutout %q: %w", c.Name, ErrAlreadyPrepared)
		}
		logger.Info("overwriting prepared cutout", slog.String("cutout", c.Name))
		c.Prepared = false
	}
	if err := c.Validate(); err != nil {
		return err
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	if opts.Height != nil && c.Meta.Height == nil {
		logger.Info("preparing height field", slog.String("raster", opts.Height.RasterPath))
		fld, herr := height.PrepareHeight(ctx, logger, *opts.Height, c.Meta.X, c.Meta.Y)
		if herr != nil {
			return fmt.Errorf("prepare height for cutout %q: %w", c.Name, herr)
		}
		c.Meta.Height = fld
	}

	logger.Info("resetting cutout directory", slog.String("dir", c.Dir))
	if err := os.RemoveAll(c.Dir); err != nil {
		return fmt.Errorf("reset cutout directory %s: %w", c.Dir, err)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create cutout directory %s: %w", c.Dir, err)
	}
	if err := c.SaveMeta(); err != nil {
		return err
	}

	start := time.Now()
	logEvent(ctx, logger, opts.Conn, c.Name, "", db.EventPrepareStart, "", "", nil)

	// From here on a failure must not leave a half-written cutout behind.
	defer func() {
		if err == nil {
			return
		}
		logger.Error("preparation failed, purging cutout directory", slog.String("dir", c.Dir), "error", err)
		if rmErr := os.RemoveAll(c.Dir); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("purge cutout directory %s: %w", c.Dir, rmErr))
		}
		c.Prepared = false
		logEvent(ctx, logger, opts.Conn, c.Name, "", db.EventPurge, c.Dir, err.Error(), nil)
	}()

	tasks, err := expandTasks(c)
	if err != nil {
		return err
	}
	logger.Info("expanded preparation tasks",
		slog.Int("tasks", len(tasks)),
		slog.Int("series", len(c.Series)),
		slog.Int("workers", workers),
	)

	if err := runPool(ctx, logger, opts, c.Name, tasks, workers); err != nil {
		logEvent(ctx, logger, opts.Conn, c.Name, "", db.EventError, "", err.Error(), nil)
		return err
	}

	if err := mergeMonths(ctx, logger, opts.Conn, c, tasks); err != nil {
		logEvent(ctx, logger, opts.Conn, c.Name, "", db.EventError, "", err.Error(), nil)
		return err
	}

	c.Prepared = true
	if err := c.SaveMeta(); err != nil {
		return err
	}
	elapsed := time.Since(start)
	logEvent(ctx, logger, opts.Conn, c.Name, "", db.EventPrepareEnd, "", "", &elapsed)
	logger.Info("cutout prepared", slog.String("cutout", c.Name), slog.Duration("duration", elapsed.Round(time.Millisecond)))
	return nil
}

// runPool executes the tasks on a bounded pool, aborting remaining work on
// the first failure.
func runPool(ctx context.Context, logger *slog.Logger, opts Options, cutoutName string, tasks []task.Task, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done int64
	total := len(tasks)
	doneCh := make(chan string, total)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		for series := range doneCh {
			done++
			if opts.OnProgress != nil {
				opts.OnProgress(int(done), total, series)
			}
		}
	}()

	for _, t := range tasks {
		t := t
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			taskStart := time.Now()
			_, err := task.Do(gctx, logger, t, true)
			taskDuration := time.Since(taskStart)
			if err != nil {
				return fmt.Errorf("task %s of series %s: %w", t.FuncName, t.Series, err)
			}
			logEvent(gctx, logger, opts.Conn, cutoutName, t.Series, db.EventTaskEnd, t.InputPath, t.FuncName, &taskDuration)
			doneCh <- t.Series
			return nil
		})
	}
	err := g.Wait()
	close(doneCh)
	<-progressDone
	return err
}

// expandTasks generates the tasks of every series in sorted series order and
// assigns each task its per-month partial output files. Every partial gets
// the task's index appended, so concurrent writers never clobber each other
// and the canonical monthly name is written only by the merge.
func expandTasks(c *cutout.Cutout) ([]task.Task, error) {
	yms := c.Meta.YearMonths()
	var tasks []task.Task
	for _, name := range c.SeriesNames() {
		series := c.Series[name].Clone()
		attrs := make(map[string]string, len(c.Meta.Attrs))
		for k, v := range c.Meta.Attrs {
			attrs[k] = v
		}
		generated, err := series.Tasks(c.Meta.X, c.Meta.Y, yms, series, attrs)
		if err != nil {
			return nil, fmt.Errorf("generate tasks for series %q: %w", name, err)
		}
		for _, t := range generated {
			if t.Series == "" {
				t.Series = name
			}
			if t.MetaAttrs == nil {
				t.MetaAttrs = attrs
			}
			tasks = append(tasks, t)
		}
	}

	for i := range tasks {
		fns := make(map[grid.YearMonth]string, len(tasks[i].YearMonths))
		for _, ym := range tasks[i].YearMonths {
			fns[ym] = partialPath(c.DatasetPath(ym), i)
		}
		tasks[i].OutputFiles = fns
	}
	return tasks, nil
}

// partialPath appends the task index to a file name, before the extension.
func partialPath(path string, i int) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + fmt.Sprintf("-%d", i) + ext
}

// logEvent records to the state database, downgrading failures to a warning
// so observability never aborts a run.
func logEvent(ctx context.Context, logger *slog.Logger, conn *sql.DB, cutoutName, series, event, path, message string, d *time.Duration) {
	if err := db.LogEvent(ctx, conn, cutoutName, series, event, path, message, d); err != nil {
		logger.Warn("failed to record state event", slog.String("event", event), "error", err)
	}
}
