package modules

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltatlas/cutout/internal/dataset"
	"github.com/voltatlas/cutout/internal/grid"
	"github.com/voltatlas/cutout/internal/task"
)

func writeArchiveFile(t *testing.T, dir, name string, rows []dataset.Row) string {
	t.Helper()
	path := filepath.Join(dir, name)
	_, _, err := dataset.New(rows).WriteParquet(path)
	require.NoError(t, err)
	return path
}

func archiveRows(ts time.Time, y, x float64, variable string, value float64) dataset.Row {
	return dataset.Row{Time: dataset.Stamp(ts), Y: y, X: x, Variable: variable, Value: value}
}

func TestLocalArchiveTasksOnePerFile(t *testing.T) {
	dir := t.TempDir()
	jan := time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	writeArchiveFile(t, dir, "a.parquet", []dataset.Row{archiveRows(jan, 50, 0, "t2m", 270)})
	writeArchiveFile(t, dir, "b.parquet", []dataset.Row{archiveRows(jan, 50, 0, "t2m", 271)})

	series := LocalArchive(dir, nil)
	yms := []grid.YearMonth{{Year: 2011, Month: 1}}
	tasks, err := series.Tasks([]float64{0, 1}, []float64{50, 51}, yms, series, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, LocalArchiveFunc, tasks[0].FuncName)
	assert.Equal(t, dataset.EngineParquet, tasks[0].Engine)
	assert.Equal(t, filepath.Join(dir, "a.parquet"), tasks[0].InputPath)
	assert.Equal(t, filepath.Join(dir, "b.parquet"), tasks[1].InputPath)
}

func TestLocalArchiveTasksEmptyDir(t *testing.T) {
	series := LocalArchive(t.TempDir(), nil)
	_, err := series.Tasks([]float64{0}, []float64{50}, nil, series, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parquet files")
}

func TestPrepareLocalArchiveBucketsAndRegrids(t *testing.T) {
	dir := t.TempDir()
	jan := time.Date(2011, 1, 5, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2011, 2, 5, 12, 0, 0, 0, time.UTC)
	march := time.Date(2011, 3, 5, 12, 0, 0, 0, time.UTC)
	input := writeArchiveFile(t, dir, "a.parquet", []dataset.Row{
		archiveRows(jan, 50.1, 0.1, "t2m", 270),  // snaps to (50, 0)
		archiveRows(feb, 50.9, 0.9, "t2m", 271),  // snaps to (51, 1)
		archiveRows(march, 50, 0, "t2m", 272),    // outside requested months
		archiveRows(jan, 58.0, 0, "t2m", 273),    // outside spatial window
		{Time: nil, Y: 50, X: 0, Variable: "height", Value: 100}, // static rows skipped
	})

	src, err := dataset.Open(input, dataset.EngineParquet)
	require.NoError(t, err)
	defer src.Close()

	in := task.Input{
		XS:         []float64{0, 1},
		YS:         []float64{50, 51},
		YearMonths: []grid.YearMonth{{Year: 2011, Month: 1}, {Year: 2011, Month: 2}},
		Source:     src,
	}
	results, err := prepareLocalArchive(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, grid.YearMonth{Year: 2011, Month: 1}, results[0].YearMonth)
	janRows, err := results[0].Data.Rows()
	require.NoError(t, err)
	require.Len(t, janRows, 1)
	assert.Equal(t, 50.0, janRows[0].Y)
	assert.Equal(t, 0.0, janRows[0].X)

	febRows, err := results[1].Data.Rows()
	require.NoError(t, err)
	require.Len(t, febRows, 1)
	assert.Equal(t, 51.0, febRows[0].Y)
	assert.Equal(t, 1.0, febRows[0].X)
}

func TestPrepareLocalArchiveNoContribution(t *testing.T) {
	dir := t.TempDir()
	late := time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
	input := writeArchiveFile(t, dir, "a.parquet", []dataset.Row{archiveRows(late, 50, 0, "t2m", 270)})

	src, err := dataset.Open(input, dataset.EngineParquet)
	require.NoError(t, err)
	defer src.Close()

	in := task.Input{
		XS:         []float64{0, 1},
		YS:         []float64{50, 51},
		YearMonths: []grid.YearMonth{{Year: 2011, Month: 1}},
		Source:     src,
	}
	results, err := prepareLocalArchive(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMetaConfigSamplesRequestedMonth(t *testing.T) {
	dir := t.TempDir()
	dec := time.Date(2011, 12, 1, 0, 0, 0, 0, time.UTC)
	var rows []dataset.Row
	for i := 0; i < 4; i++ {
		rows = append(rows, archiveRows(dec.Add(time.Duration(i)*time.Hour), 50, 0, "t2m", 270))
	}
	writeArchiveFile(t, dir, "a.parquet", rows)

	cfg := MetaConfig(dir, nil)
	ds, err := cfg.Prepare(context.Background(), []float64{0}, []float64{50}, 2011, 12, nil)
	require.NoError(t, err)
	times, err := ds.Times()
	require.NoError(t, err)
	assert.Len(t, times, 4)
	assert.Equal(t, time.Hour, times[1].Sub(times[0]))
}

func TestMetaConfigMissingMonth(t *testing.T) {
	dir := t.TempDir()
	jan := time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	writeArchiveFile(t, dir, "a.parquet", []dataset.Row{archiveRows(jan, 50, 0, "t2m", 270)})

	cfg := MetaConfig(dir, nil)
	_, err := cfg.Prepare(context.Background(), []float64{0}, []float64{50}, 2011, 12, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data for 2011-12")
}
