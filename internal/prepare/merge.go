package prepare

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voltatlas/cutout/internal/cutout"
	"github.com/voltatlas/cutout/internal/dataset"
	"github.com/voltatlas/cutout/internal/db"
	"github.com/voltatlas/cutout/internal/grid"
	"github.com/voltatlas/cutout/internal/height"
	"github.com/voltatlas/cutout/internal/task"
)

// mergeMonths compounds the partial files of every month into the canonical
// monthly file and removes the partials. The height field, when present, is
// written once to a sidecar file, overlaid into every month (taking
// precedence over any task-produced height rows) and deleted afterwards.
//
// DuckDB does the heavy lifting: each month is a single
// COPY (SELECT ... FROM read_parquet([...])) TO ... (FORMAT PARQUET).
func mergeMonths(ctx context.Context, logger *slog.Logger, stateConn *sql.DB, c *cutout.Cutout, tasks []task.Task) error {
	heightPath := ""
	if c.Meta.Height != nil {
		heightPath = filepath.Join(c.Dir, "height.parquet")
		rows := c.Meta.Height.Rows(height.Variable)
		if len(rows) == 0 {
			return fmt.Errorf("height field of cutout %q has no finite values", c.Name)
		}
		if _, _, err := dataset.New(rows).WriteParquet(heightPath); err != nil {
			return fmt.Errorf("write height sidecar: %w", err)
		}
		defer os.Remove(heightPath)
	}

	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("open in-memory duckdb for merge: %w", err)
	}
	defer conn.Close()

	for _, ym := range c.Meta.YearMonths() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		partials := monthPartials(tasks, ym)
		if len(partials) == 0 && heightPath == "" {
			return fmt.Errorf("no data produced for %s", ym)
		}

		mergeStart := time.Now()
		out := c.DatasetPath(ym)
		if err := mergeMonth(ctx, conn, partials, heightPath, out); err != nil {
			return fmt.Errorf("merge %s: %w", ym, err)
		}

		for _, fn := range partials {
			if err := os.Remove(fn); err != nil {
				return fmt.Errorf("remove partial %s: %w", filepath.Base(fn), err)
			}
		}

		mergeDuration := time.Since(mergeStart)
		logEvent(ctx, logger, stateConn, c.Name, "", db.EventMergeMonth, out,
			fmt.Sprintf("%d partial files", len(partials)), &mergeDuration)
		logger.Debug("merged month",
			slog.String("month", ym.String()),
			slog.Int("partials", len(partials)),
			slog.Duration("duration", mergeDuration.Round(time.Millisecond)),
		)
	}
	return nil
}

// monthPartials resolves the partial files the expansion mapped for a month,
// keeping only those that were actually written. A task that produced no
// data for a month leaves its mapped file absent, which is not an error.
func monthPartials(tasks []task.Task, ym grid.YearMonth) []string {
	var fns []string
	for _, t := range tasks {
		fn, ok := t.OutputFiles[ym]
		if !ok {
			continue
		}
		if _, err := os.Stat(fn); err == nil {
			fns = append(fns, fn)
		}
	}
	return fns
}

// mergeMonth writes one compound month. Partials only ever carry suffixed
// names, so the canonical file can be written directly.
func mergeMonth(ctx context.Context, conn *sql.DB, partials []string, heightPath, out string) error {
	var sb strings.Builder
	sb.WriteString("COPY (")
	if len(partials) > 0 {
		sb.WriteString("SELECT time, y, x, variable, value FROM read_parquet([")
		for i, fn := range partials {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(quotePath(fn))
		}
		sb.WriteString("])")
		if heightPath != "" {
			fmt.Fprintf(&sb, " WHERE variable <> '%s'", height.Variable)
		}
	}
	if heightPath != "" {
		if len(partials) > 0 {
			sb.WriteString(" UNION ALL ")
		}
		fmt.Fprintf(&sb, "SELECT time, y, x, variable, value FROM read_parquet(%s)", quotePath(heightPath))
	}
	fmt.Fprintf(&sb, ") TO %s (FORMAT PARQUET, CODEC 'SNAPPY');", quotePath(out))

	if _, err := conn.ExecContext(ctx, sb.String()); err != nil {
		return fmt.Errorf("compound copy: %w", err)
	}
	return nil
}

// quotePath single-quotes a path for interpolation into DuckDB SQL.
func quotePath(path string) string {
	return "'" + strings.ReplaceAll(path, "'", "''") + "'"
}
