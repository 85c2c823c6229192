// Package modules contains the data-product adapters that turn raw input
// archives into extraction tasks. The local archive module reads previously
// fetched parquet files from a directory; one task per input file keeps the
// pool busy and the memory footprint of a single task bounded.
package modules

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/voltatlas/cutout/internal/cutout"
	"github.com/voltatlas/cutout/internal/dataset"
	"github.com/voltatlas/cutout/internal/grid"
	"github.com/voltatlas/cutout/internal/task"
)

// LocalArchiveFunc identifies the local archive extraction function in logs
// and the event history.
const LocalArchiveFunc = "local_archive"

// LocalArchive builds the series configuration for a directory of parquet
// input files.
func LocalArchive(dir string, params map[string]string) cutout.SeriesConfig {
	return cutout.SeriesConfig{
		Tasks:  localArchiveTasks,
		Path:   dir,
		Engine: dataset.EngineParquet,
		Params: params,
	}
}

// localArchiveTasks expands the archive into one task per input file. Every
// task receives the full period list: which months a file contributes to is
// only known once its rows are read.
func localArchiveTasks(xs, ys []float64, yms []grid.YearMonth, series cutout.SeriesConfig, metaAttrs map[string]string) ([]task.Task, error) {
	files, err := filepath.Glob(filepath.Join(series.Path, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("scan archive %s: %w", series.Path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("archive %s contains no parquet files", series.Path)
	}
	sort.Strings(files)

	tasks := make([]task.Task, 0, len(files))
	for _, fn := range files {
		tasks = append(tasks, task.Task{
			FuncName:   LocalArchiveFunc,
			Func:       prepareLocalArchive,
			InputPath:  fn,
			Engine:     series.Engine,
			XS:         xs,
			YS:         ys,
			YearMonths: yms,
			MetaAttrs:  metaAttrs,
			Params:     series.Params,
		})
	}
	return tasks, nil
}

// prepareLocalArchive reads one input file, regrids its rows onto the cutout
// axes by nearest neighbour and buckets them by month. Months outside the
// requested index and rows outside the spatial window are dropped; a file
// contributing nothing returns no results, which is not an error.
func prepareLocalArchive(ctx context.Context, in task.Input) ([]task.Result, error) {
	rows, err := in.Source.ReadAll()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := make(map[grid.YearMonth]bool, len(in.YearMonths))
	for _, ym := range in.YearMonths {
		wanted[ym] = true
	}
	xAxis := newAxis(in.XS)
	yAxis := newAxis(in.YS)

	buckets := make(map[grid.YearMonth][]dataset.Row)
	for _, r := range rows {
		if r.Time == nil {
			continue
		}
		ym := grid.Of(dataset.At(*r.Time))
		if !wanted[ym] {
			continue
		}
		y, ok := yAxis.snap(r.Y)
		if !ok {
			continue
		}
		x, ok := xAxis.snap(r.X)
		if !ok {
			continue
		}
		r.Y, r.X = y, x
		buckets[ym] = append(buckets[ym], r)
	}

	yms := make([]grid.YearMonth, 0, len(buckets))
	for ym := range buckets {
		yms = append(yms, ym)
	}
	sort.Slice(yms, func(i, j int) bool { return yms[i].Less(yms[j]) })

	results := make([]task.Result, 0, len(yms))
	for _, ym := range yms {
		results = append(results, task.Result{
			YearMonth: ym,
			Data:      dataset.New(buckets[ym]),
		})
	}
	return results, nil
}

// axis snaps coordinates to the nearest grid point, rejecting anything more
// than half the outer spacing beyond the axis ends.
type axis struct {
	points   []float64
	lo, hi   float64
	halfStep float64
}

func newAxis(points []float64) axis {
	a := axis{points: points}
	a.lo, a.hi = points[0], points[len(points)-1]
	if a.lo > a.hi {
		a.lo, a.hi = a.hi, a.lo
	}
	if len(points) > 1 {
		a.halfStep = (a.hi - a.lo) / float64(len(points)-1) / 2
	}
	return a
}

func (a axis) snap(v float64) (float64, bool) {
	if v < a.lo-a.halfStep || v > a.hi+a.halfStep {
		return 0, false
	}
	best, bestDist := a.points[0], math.Abs(v-a.points[0])
	for _, p := range a.points[1:] {
		if d := math.Abs(v - p); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, true
}

// MetaConfig exposes the archive as a metadata-sample provider: GetMeta asks
// it for the last month of the range and infers the sampling cadence from
// the timestamps it finds there.
func MetaConfig(dir string, params map[string]string) grid.Config {
	return grid.Config{
		Prepare: func(ctx context.Context, xs, ys []float64, year, month int, prepParams map[string]string) (*dataset.Dataset, error) {
			files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
			if err != nil {
				return nil, fmt.Errorf("scan archive %s: %w", dir, err)
			}
			if len(files) == 0 {
				return nil, fmt.Errorf("archive %s contains no parquet files", dir)
			}
			sort.Strings(files)

			target := grid.YearMonth{Year: year, Month: month}
			var sample []dataset.Row
			for _, fn := range files {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				src, err := dataset.Open(fn, dataset.EngineParquet)
				if err != nil {
					return nil, err
				}
				rows, err := src.ReadAll()
				cerr := src.Close()
				if err != nil {
					return nil, err
				}
				if cerr != nil {
					return nil, cerr
				}
				for _, r := range rows {
					if r.Time != nil && grid.Of(dataset.At(*r.Time)) == target {
						sample = append(sample, r)
					}
				}
			}
			if len(sample) == 0 {
				return nil, fmt.Errorf("archive %s has no data for %s", dir, target)
			}
			return dataset.New(sample), nil
		},
		Params: params,
	}
}
