package dataset

import "math"

// Field is a static two-dimensional grid of values, indexed [y][x]. It is
// used for auxiliary data without a time axis, such as interpolated height.
type Field struct {
	Y      []float64
	X      []float64
	Values [][]float64
}

// NewField allocates a field over the given axes with every cell set to NaN.
func NewField(ys, xs []float64) *Field {
	values := make([][]float64, len(ys))
	for i := range values {
		row := make([]float64, len(xs))
		for j := range row {
			row[j] = math.NaN()
		}
		values[i] = row
	}
	return &Field{Y: ys, X: xs, Values: values}
}

// Reindex resamples the field onto new axes using nearest-neighbour lookup.
func (f *Field) Reindex(ys, xs []float64) *Field {
	out := NewField(ys, xs)
	for i, y := range ys {
		iy := nearestIndex(f.Y, y)
		for j, x := range xs {
			out.Values[i][j] = f.Values[iy][nearestIndex(f.X, x)]
		}
	}
	return out
}

// Rows flattens the field into long-format rows under the given variable
// name, with a NULL time. NaN cells are skipped.
func (f *Field) Rows(variable string) []Row {
	rows := make([]Row, 0, len(f.Y)*len(f.X))
	for i, y := range f.Y {
		for j, x := range f.X {
			v := f.Values[i][j]
			if math.IsNaN(v) {
				continue
			}
			rows = append(rows, Row{Y: y, X: x, Variable: variable, Value: v})
		}
	}
	return rows
}

func nearestIndex(axis []float64, v float64) int {
	best, dist := 0, math.Inf(1)
	for i, a := range axis {
		if d := math.Abs(a - v); d < dist {
			best, dist = i, d
		}
	}
	return best
}
