package dataset

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRows(n int) []Row {
	base := time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, Row{
			Time:     Stamp(base.Add(time.Duration(i) * time.Hour)),
			Y:        50.25,
			X:        -1.75,
			Variable: "temperature",
			Value:    270.0 + float64(i),
		})
	}
	return rows
}

func TestWriteAndReadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.parquet")
	vars, n, err := New(testRows(10)).WriteParquet(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"temperature"}, vars)
	assert.Equal(t, int64(10), n)

	src, err := Open(path, EngineParquet)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, int64(10), src.NumRows())

	rows, err := src.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 10)
	assert.Equal(t, "temperature", rows[0].Variable)
	require.NotNil(t, rows[0].Time)
	assert.Equal(t, time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC), At(*rows[0].Time))
}

func TestWriteParquetPreservesNullTimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static.parquet")
	rows := []Row{
		{Time: nil, Y: 50, X: 1, Variable: "height", Value: 132.5},
		{Time: Stamp(time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)), Y: 50, X: 1, Variable: "wnd10m", Value: 4.2},
	}
	_, _, err := New(rows).WriteParquet(path)
	require.NoError(t, err)

	src, err := Open(path, EngineParquet)
	require.NoError(t, err)
	defer src.Close()
	got, err := src.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)

	byVar := map[string]Row{}
	for _, r := range got {
		byVar[r.Variable] = r
	}
	assert.Nil(t, byVar["height"].Time)
	require.NotNil(t, byVar["wnd10m"].Time)
}

func TestOpenRejectsUnknownEngine(t *testing.T) {
	_, err := Open("whatever.nc", "netcdf4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "netcdf4")
}

func TestLazyDatasetFailsAfterSourceClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.parquet")
	_, _, err := New(testRows(5)).WriteParquet(path)
	require.NoError(t, err)

	src, err := Open(path, EngineParquet)
	require.NoError(t, err)
	lazy := NewLazy(src.Iter())
	require.NoError(t, src.Close())

	assert.False(t, lazy.Loaded())
	require.Error(t, lazy.Load())
}

func TestLazyDatasetLoadsBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.parquet")
	_, _, err := New(testRows(5)).WriteParquet(path)
	require.NoError(t, err)

	src, err := Open(path, EngineParquet)
	require.NoError(t, err)
	lazy := NewLazy(src.Iter())
	require.NoError(t, lazy.Load())
	require.NoError(t, src.Close())

	n, err := lazy.Len()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestDatasetAccessors(t *testing.T) {
	rows := testRows(3)
	rows = append(rows, Row{Time: nil, Y: 1, X: 2, Variable: "height", Value: 9})
	ds := New(rows)

	vars, err := ds.Variables()
	require.NoError(t, err)
	assert.Equal(t, []string{"height", "temperature"}, vars)

	times, err := ds.Times()
	require.NoError(t, err)
	require.Len(t, times, 3)
	assert.True(t, times[0].Before(times[1]))
}
