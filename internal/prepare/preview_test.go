package prepare

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltatlas/cutout/internal/cutout"
	"github.com/voltatlas/cutout/internal/dataset"
	"github.com/voltatlas/cutout/internal/grid"
	"github.com/voltatlas/cutout/internal/task"
)

func TestProduceSeriesReturnsMaterializedMonth(t *testing.T) {
	c := newTestCutout(t, map[string]cutout.SeriesConfig{"wind": emitSeries("wnd10m", 4.2)})
	ym := grid.YearMonth{Year: 2011, Month: 1}

	ds, err := ProduceSeries(context.Background(), testLogger(), c, "wind", ym)
	require.NoError(t, err)
	require.True(t, ds.Loaded())

	vars, err := ds.Variables()
	require.NoError(t, err)
	assert.Equal(t, []string{"wnd10m"}, vars)

	// Nothing was written to disk.
	_, statErr := os.Stat(c.Dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProduceSeriesUnknownSeries(t *testing.T) {
	c := newTestCutout(t, map[string]cutout.SeriesConfig{"wind": emitSeries("wnd10m", 4.2)})
	_, err := ProduceSeries(context.Background(), testLogger(), c, "hydro", grid.YearMonth{Year: 2011, Month: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no series")
}

func TestProduceSeriesRejectsMultipleTasks(t *testing.T) {
	split := cutout.SeriesConfig{
		Tasks: func(xs, ys []float64, yms []grid.YearMonth, series cutout.SeriesConfig, metaAttrs map[string]string) ([]task.Task, error) {
			one := task.Task{YearMonths: yms, Func: func(ctx context.Context, in task.Input) ([]task.Result, error) {
				return nil, nil
			}}
			return []task.Task{one, one}, nil
		},
	}
	c := newTestCutout(t, map[string]cutout.SeriesConfig{"split": split})
	_, err := ProduceSeries(context.Background(), testLogger(), c, "split", grid.YearMonth{Year: 2011, Month: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invariant violation")
	assert.Contains(t, err.Error(), "2 tasks")
}

func TestProduceSeriesRejectsWrongResultCount(t *testing.T) {
	empty := cutout.SeriesConfig{
		Tasks: func(xs, ys []float64, yms []grid.YearMonth, series cutout.SeriesConfig, metaAttrs map[string]string) ([]task.Task, error) {
			return []task.Task{{YearMonths: yms, Func: func(ctx context.Context, in task.Input) ([]task.Result, error) {
				return nil, nil
			}}}, nil
		},
	}
	c := newTestCutout(t, map[string]cutout.SeriesConfig{"empty": empty})
	_, err := ProduceSeries(context.Background(), testLogger(), c, "empty", grid.YearMonth{Year: 2011, Month: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invariant violation")
	assert.Contains(t, err.Error(), "0 results")
}

func TestProduceSeriesRejectsWrongMonth(t *testing.T) {
	drifting := cutout.SeriesConfig{
		Tasks: func(xs, ys []float64, yms []grid.YearMonth, series cutout.SeriesConfig, metaAttrs map[string]string) ([]task.Task, error) {
			return []task.Task{{YearMonths: yms, Func: func(ctx context.Context, in task.Input) ([]task.Result, error) {
				stale := grid.YearMonth{Year: 1999, Month: 12}
				return []task.Result{{YearMonth: stale, Data: dataset.New(monthRows(stale, "wnd10m", 1))}}, nil
			}}}, nil
		},
	}
	c := newTestCutout(t, map[string]cutout.SeriesConfig{"drifting": drifting})
	_, err := ProduceSeries(context.Background(), testLogger(), c, "drifting", grid.YearMonth{Year: 2011, Month: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invariant violation")
	assert.Contains(t, err.Error(), "1999-12")
}

func TestProduceSeriesPropagatesTaskError(t *testing.T) {
	c := newTestCutout(t, map[string]cutout.SeriesConfig{"broken": failingSeries("bad month")})
	_, err := ProduceSeries(context.Background(), testLogger(), c, "broken", grid.YearMonth{Year: 2011, Month: 1})
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
	assert.Contains(t, err.Error(), "bad month")
}
