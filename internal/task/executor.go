package task

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/voltatlas/cutout/internal/dataset"
)

// Do runs a single task. With writeToFile set, every produced dataset is
// persisted to the output file mapped for its period and nil results are
// returned; otherwise the results are fully materialized in memory and
// returned, since the input source is closed before the caller sees them.
//
// Errors raised by the prepare function are logged once with the function
// name and returned unchanged; the executor only guarantees cleanup.
func Do(ctx context.Context, logger *slog.Logger, t Task, writeToFile bool) (results []Result, err error) {
	if t.Func == nil {
		return nil, fmt.Errorf("task for series %q has no prepare function", t.Series)
	}
	if (t.InputPath == "") != (t.Engine == "") {
		return nil, fmt.Errorf("task for series %q must set input path and engine together", t.Series)
	}

	in := Input{
		XS:         t.XS,
		YS:         t.YS,
		YearMonths: t.YearMonths,
		MetaAttrs:  t.MetaAttrs,
		Params:     t.Params,
	}

	if t.InputPath != "" {
		src, openErr := dataset.Open(t.InputPath, t.Engine)
		if openErr != nil {
			logger.Error("exception occurred in task", "func", t.FuncName, "series", t.Series, "error", openErr)
			return nil, openErr
		}
		defer func() {
			if cerr := src.Close(); cerr != nil {
				logger.Warn("failed to close input dataset", "func", t.FuncName, "path", t.InputPath, "error", cerr)
			}
		}()
		in.Source = src
	}

	results, err = t.Func(ctx, in)
	if err != nil {
		logger.Error("exception occurred in task", "func", t.FuncName, "series", t.Series, "error", err)
		return nil, err
	}
	if results == nil {
		results = []Result{}
	}

	if !writeToFile {
		for _, r := range results {
			if err := r.Data.Load(); err != nil {
				return nil, fmt.Errorf("materialize result for %s: %w", r.YearMonth, err)
			}
		}
		return results, nil
	}

	for _, r := range results {
		fn, ok := t.OutputFiles[r.YearMonth]
		if !ok {
			return nil, fmt.Errorf("task %s produced %s but has no output file mapped for it", t.FuncName, r.YearMonth)
		}
		vars, n, werr := r.Data.WriteParquet(fn)
		if werr != nil {
			return nil, fmt.Errorf("persist %s result: %w", r.YearMonth, werr)
		}
		logger.Debug("wrote variables",
			slog.String("variables", strings.Join(vars, ", ")),
			slog.String("file", filepath.Base(fn)),
			slog.String("func", t.FuncName),
			slog.Int64("rows", n),
		)
	}
	return nil, nil
}
