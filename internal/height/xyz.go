package height

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/voltatlas/cutout/internal/dataset"
)

// readXYZ parses an XYZ grid file ("x y z" per line, blank lines and #
// comments ignored) into a field. The axes are the sorted distinct x and y
// values; cells absent from the file stay NaN.
func readXYZ(path string) (*dataset.Field, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster %s: %w", path, err)
	}
	defer f.Close()

	type point struct{ x, y, z float64 }
	var points []point
	xset := make(map[float64]struct{})
	yset := make(map[float64]struct{})

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fmt.Errorf("raster %s line %d: expected 3 columns, got %d", path, line, len(fields))
		}
		var p point
		if p.x, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return nil, fmt.Errorf("raster %s line %d: bad x %q: %w", path, line, fields[0], err)
		}
		if p.y, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return nil, fmt.Errorf("raster %s line %d: bad y %q: %w", path, line, fields[1], err)
		}
		if p.z, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("raster %s line %d: bad z %q: %w", path, line, fields[2], err)
		}
		points = append(points, p)
		xset[p.x] = struct{}{}
		yset[p.y] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read raster %s: %w", path, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("raster %s contains no data points", path)
	}

	xs := sortedKeys(xset)
	ys := sortedKeys(yset)
	xi := make(map[float64]int, len(xs))
	for i, v := range xs {
		xi[v] = i
	}
	yi := make(map[float64]int, len(ys))
	for i, v := range ys {
		yi[v] = i
	}

	fld := dataset.NewField(ys, xs)
	for _, p := range points {
		fld.Values[yi[p.y]][xi[p.x]] = p.z
	}
	return fld, nil
}

func sortedKeys(set map[float64]struct{}) []float64 {
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}
