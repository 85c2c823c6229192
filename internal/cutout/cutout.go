// Package cutout models the prepared weather-data archive: its directory
// layout, coordinate metadata and the configuration of the data series it is
// built from.
package cutout

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/voltatlas/cutout/internal/grid"
	"github.com/voltatlas/cutout/internal/task"
)

// TasksFunc generates the tasks for one series. It receives a working copy
// of the series configuration (with shared metadata attributes injected by
// the scheduler) and must not retain or mutate the stored configuration.
type TasksFunc func(xs, ys []float64, yms []grid.YearMonth, series SeriesConfig, metaAttrs map[string]string) ([]task.Task, error)

// SeriesConfig describes one weather-data product. Immutable once read by
// the scheduler: the scheduler only ever works on clones.
type SeriesConfig struct {
	Tasks  TasksFunc
	Path   string
	Engine string
	Params map[string]string
}

// Clone returns a copy with its own Params map.
func (s SeriesConfig) Clone() SeriesConfig {
	out := s
	if s.Params != nil {
		out.Params = make(map[string]string, len(s.Params))
		for k, v := range s.Params {
			out.Params[k] = v
		}
	}
	return out
}

// Cutout is the addressable unit of prepared data. It is created unprepared
// and transitions to prepared only after a full successful pipeline run; a
// failed run leaves it unprepared with no directory on disk.
type Cutout struct {
	Name     string
	Dir      string
	Meta     *grid.Meta
	Prepared bool
	Series   map[string]SeriesConfig
}

// DatasetPath returns the canonical compound file for one month.
func (c *Cutout) DatasetPath(ym grid.YearMonth) string {
	return filepath.Join(c.Dir, ym.FileStem()+".parquet")
}

// MetaPath returns the primary metadata file of the cutout.
func (c *Cutout) MetaPath() string {
	return filepath.Join(c.Dir, "meta.yaml")
}

// SeriesNames returns the configured series names in sorted order, so task
// expansion is deterministic.
func (c *Cutout) SeriesNames() []string {
	names := make([]string, 0, len(c.Series))
	for name := range c.Series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the parts of the configuration the scheduler relies on.
func (c *Cutout) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("cutout has no name")
	}
	if c.Dir == "" {
		return fmt.Errorf("cutout %q has no directory", c.Name)
	}
	if c.Meta == nil {
		return fmt.Errorf("cutout %q has no metadata skeleton", c.Name)
	}
	if len(c.Meta.X) == 0 || len(c.Meta.Y) == 0 {
		return fmt.Errorf("cutout %q has empty spatial axes", c.Name)
	}
	if len(c.Meta.YearMonths()) == 0 {
		return fmt.Errorf("cutout %q has an empty year-month index", c.Name)
	}
	for name, series := range c.Series {
		if series.Tasks == nil {
			return fmt.Errorf("series %q of cutout %q has no task generator", name, c.Name)
		}
	}
	return nil
}
