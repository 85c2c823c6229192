package prepare

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/voltatlas/cutout/internal/cutout"
	"github.com/voltatlas/cutout/internal/dataset"
	"github.com/voltatlas/cutout/internal/grid"
	"github.com/voltatlas/cutout/internal/task"
)

// ProduceSeries extracts a single month of a single series in memory,
// without touching the cutout directory. It requires the series to expand to
// exactly one task for the month and that task to yield exactly one result;
// a series that splits a month across tasks cannot be previewed.
func ProduceSeries(ctx context.Context, logger *slog.Logger, c *cutout.Cutout, seriesName string, ym grid.YearMonth) (*dataset.Dataset, error) {
	series, ok := c.Series[seriesName]
	if !ok {
		return nil, fmt.Errorf("cutout %q has no series %q", c.Name, seriesName)
	}
	if series.Tasks == nil {
		return nil, fmt.Errorf("series %q of cutout %q has no task generator", seriesName, c.Name)
	}

	working := series.Clone()
	attrs := make(map[string]string, len(c.Meta.Attrs))
	for k, v := range c.Meta.Attrs {
		attrs[k] = v
	}
	tasks, err := working.Tasks(c.Meta.X, c.Meta.Y, []grid.YearMonth{ym}, working, attrs)
	if err != nil {
		return nil, fmt.Errorf("generate tasks for series %q: %w", seriesName, err)
	}
	if len(tasks) != 1 {
		return nil, fmt.Errorf("invariant violation: series %q expanded to %d tasks for %s, want exactly 1", seriesName, len(tasks), ym)
	}

	t := tasks[0]
	if t.Series == "" {
		t.Series = seriesName
	}
	if t.MetaAttrs == nil {
		t.MetaAttrs = attrs
	}
	t.OutputFiles = nil

	results, err := task.Do(ctx, logger, t, false)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("invariant violation: series %q produced %d results for %s, want exactly 1", seriesName, len(results), ym)
	}
	if results[0].YearMonth != ym {
		return nil, fmt.Errorf("invariant violation: series %q produced a result for %s, want %s", seriesName, results[0].YearMonth, ym)
	}
	return results[0].Data, nil
}
