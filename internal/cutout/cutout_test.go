package cutout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltatlas/cutout/internal/grid"
	"github.com/voltatlas/cutout/internal/task"
)

func testCutout(t *testing.T) *Cutout {
	t.Helper()
	meta, err := grid.MetaFromCadence(
		[]float64{0, 0.5}, []float64{50, 50.5},
		grid.Range{Start: 2011, Stop: 2011}, grid.Range{Start: 1, Stop: 2}, time.Hour)
	require.NoError(t, err)
	meta.Attrs = map[string]string{"module": "test"}
	return &Cutout{
		Name: "western-test",
		Dir:  filepath.Join(t.TempDir(), "western-test"),
		Meta: meta,
		Series: map[string]SeriesConfig{
			"wind": {Tasks: func(xs, ys []float64, yms []grid.YearMonth, series SeriesConfig, metaAttrs map[string]string) ([]task.Task, error) {
				return nil, nil
			}},
		},
	}
}

func TestDatasetPath(t *testing.T) {
	c := testCutout(t)
	p := c.DatasetPath(grid.YearMonth{Year: 2011, Month: 2})
	assert.Equal(t, filepath.Join(c.Dir, "201102.parquet"), p)
}

func TestSeriesNamesSorted(t *testing.T) {
	c := testCutout(t)
	c.Series["solar"] = c.Series["wind"]
	c.Series["runoff"] = c.Series["wind"]
	assert.Equal(t, []string{"runoff", "solar", "wind"}, c.SeriesNames())
}

func TestValidate(t *testing.T) {
	c := testCutout(t)
	require.NoError(t, c.Validate())

	c.Series["broken"] = SeriesConfig{}
	require.Error(t, c.Validate())
	delete(c.Series, "broken")

	c.Meta.X = nil
	require.Error(t, c.Validate())
}

func TestMetaRoundTrip(t *testing.T) {
	c := testCutout(t)
	require.NoError(t, os.MkdirAll(c.Dir, 0o755))
	c.Meta.View = &grid.View{X: &grid.Span{Min: 0, Max: 0.5}}
	c.Prepared = true
	require.NoError(t, c.SaveMeta())

	loaded := &Cutout{Name: c.Name, Dir: c.Dir}
	require.NoError(t, loaded.LoadMeta())

	assert.True(t, loaded.Prepared)
	assert.Equal(t, c.Meta.X, loaded.Meta.X)
	assert.Equal(t, c.Meta.Y, loaded.Meta.Y)
	assert.Equal(t, c.Meta.Years, loaded.Meta.Years)
	assert.Equal(t, c.Meta.Months, loaded.Meta.Months)
	assert.Equal(t, c.Meta.Attrs, loaded.Meta.Attrs)
	require.NotNil(t, loaded.Meta.View)
	assert.Equal(t, c.Meta.View.X, loaded.Meta.View.X)
	require.Len(t, loaded.Meta.Times, len(c.Meta.Times))
	assert.Equal(t, c.Meta.Times[0], loaded.Meta.Times[0])
}

func TestSeriesConfigClone(t *testing.T) {
	orig := SeriesConfig{Params: map[string]string{"a": "1"}}
	clone := orig.Clone()
	clone.Params["a"] = "2"
	assert.Equal(t, "1", orig.Params["a"])
}
