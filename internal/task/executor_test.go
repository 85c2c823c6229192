package task

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltatlas/cutout/internal/dataset"
	"github.com/voltatlas/cutout/internal/grid"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func sampleRows(ym grid.YearMonth, variable string, n int) []dataset.Row {
	rows := make([]dataset.Row, 0, n)
	t := ym.Start()
	for i := 0; i < n; i++ {
		rows = append(rows, dataset.Row{
			Time:     dataset.Stamp(t.Add(time.Duration(i) * time.Hour)),
			Y:        50.0,
			X:        1.5,
			Variable: variable,
			Value:    float64(i),
		})
	}
	return rows
}

func TestDoRequiresPrepareFunc(t *testing.T) {
	var buf bytes.Buffer
	_, err := Do(context.Background(), testLogger(&buf), Task{Series: "wind"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no prepare function")
}

func TestDoRequiresEngineWithInputPath(t *testing.T) {
	var buf bytes.Buffer
	task := Task{
		Series:    "wind",
		Func:      func(ctx context.Context, in Input) ([]Result, error) { return nil, nil },
		InputPath: "some/file.parquet",
	}
	_, err := Do(context.Background(), testLogger(&buf), task, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input path and engine together")
}

func TestDoNilResultsBecomeEmpty(t *testing.T) {
	var buf bytes.Buffer
	task := Task{
		Series:   "wind",
		FuncName: "noop",
		Func:     func(ctx context.Context, in Input) ([]Result, error) { return nil, nil },
	}
	results, err := Do(context.Background(), testLogger(&buf), task, false)
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Len(t, results, 0)
}

func TestDoLogsAndReturnsTaskError(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("corrupt input block")
	task := Task{
		Series:   "wind",
		FuncName: "explode",
		Func:     func(ctx context.Context, in Input) ([]Result, error) { return nil, boom },
	}
	_, err := Do(context.Background(), testLogger(&buf), task, false)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "exception occurred in task")
	assert.Contains(t, buf.String(), "explode")
}

func TestDoClosesSourceBeforeReturning(t *testing.T) {
	dir := t.TempDir()
	ym := grid.YearMonth{Year: 2011, Month: 1}
	input := filepath.Join(dir, "input.parquet")
	_, _, err := dataset.New(sampleRows(ym, "wind", 4)).WriteParquet(input)
	require.NoError(t, err)

	var captured *dataset.Source
	task := Task{
		Series:    "wind",
		FuncName:  "capture",
		InputPath: input,
		Engine:    dataset.EngineParquet,
		Func: func(ctx context.Context, in Input) ([]Result, error) {
			captured = in.Source
			rows, err := in.Source.ReadAll()
			if err != nil {
				return nil, err
			}
			return []Result{{YearMonth: ym, Data: dataset.New(rows)}}, nil
		},
	}

	var buf bytes.Buffer
	results, err := Do(context.Background(), testLogger(&buf), task, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, captured)

	// The executor closed the source on exit; its iterator must now fail.
	_, err = captured.Iter()()
	require.Error(t, err)

	// The returned dataset was materialized before the close.
	n, err := results[0].Data.Len()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestDoWriteModePersistsResults(t *testing.T) {
	dir := t.TempDir()
	ym := grid.YearMonth{Year: 2011, Month: 2}
	out := filepath.Join(dir, "201102-0.parquet")
	task := Task{
		Series:   "wind",
		FuncName: "emit",
		Func: func(ctx context.Context, in Input) ([]Result, error) {
			return []Result{{YearMonth: ym, Data: dataset.New(sampleRows(ym, "wind", 3))}}, nil
		},
		OutputFiles: map[grid.YearMonth]string{ym: out},
	}

	var buf bytes.Buffer
	results, err := Do(context.Background(), testLogger(&buf), task, true)
	require.NoError(t, err)
	assert.Nil(t, results)

	src, err := dataset.Open(out, dataset.EngineParquet)
	require.NoError(t, err)
	defer src.Close()
	rows, err := src.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestDoWriteModeRejectsUnmappedMonth(t *testing.T) {
	ym := grid.YearMonth{Year: 2011, Month: 3}
	task := Task{
		Series:   "wind",
		FuncName: "emit",
		Func: func(ctx context.Context, in Input) ([]Result, error) {
			return []Result{{YearMonth: ym, Data: dataset.New(sampleRows(ym, "wind", 1))}}, nil
		},
		OutputFiles: map[grid.YearMonth]string{},
	}
	var buf bytes.Buffer
	_, err := Do(context.Background(), testLogger(&buf), task, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no output file mapped")
}
