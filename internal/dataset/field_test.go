package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldReindexNearest(t *testing.T) {
	f := NewField([]float64{0, 1, 2}, []float64{0, 1, 2})
	for i := range f.Values {
		for j := range f.Values[i] {
			f.Values[i][j] = float64(i*10 + j)
		}
	}

	out := f.Reindex([]float64{0.1, 1.9}, []float64{0.9, 2.0})
	require.Len(t, out.Values, 2)
	assert.Equal(t, 1.0, out.Values[0][0])  // y=0.1 -> 0, x=0.9 -> 1
	assert.Equal(t, 22.0, out.Values[1][1]) // y=1.9 -> 2, x=2.0 -> 2
}

func TestFieldRowsSkipNaN(t *testing.T) {
	f := NewField([]float64{10, 11}, []float64{1})
	f.Values[0][0] = 42.0

	rows := f.Rows("height")
	require.Len(t, rows, 1)
	assert.Equal(t, "height", rows[0].Variable)
	assert.Equal(t, 42.0, rows[0].Value)
	assert.Equal(t, 10.0, rows[0].Y)
	assert.Nil(t, rows[0].Time)
	assert.False(t, math.IsNaN(rows[0].Value))
}
