// Package config holds the runtime configuration assembled from CLI flags
// and the YAML cutout specification file.
package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voltatlas/cutout/internal/grid"
)

// Config is the process-wide runtime configuration, populated from flags.
type Config struct {
	CutoutDir string   // parent directory for cutout directories
	InputDir  string   // local archive of fetched input files
	DbPath    string   // state database, empty disables the event log
	Workers   int      // extraction pool size, 0 means NumCPU
	GebcoPath string   // elevation raster, empty disables the height pre-step
	FeedURLs  []string // feed pages to discover input files on
	NoTUI     bool     // disable the interactive progress view
}

// AxisSpec declares a regular spatial axis.
type AxisSpec struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

// Points expands the axis into its grid points, both endpoints included.
func (a AxisSpec) Points() []float64 {
	n := int(math.Round((a.Stop-a.Start)/a.Step)) + 1
	points := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		points = append(points, a.Start+float64(i)*a.Step)
	}
	return points
}

func (a AxisSpec) validate(name string) error {
	if a.Step <= 0 {
		return fmt.Errorf("axis %s: step must be positive, got %g", name, a.Step)
	}
	if a.Stop < a.Start {
		return fmt.Errorf("axis %s: stop %g is before start %g", name, a.Stop, a.Start)
	}
	return nil
}

// CutoutSpec is the YAML description of one cutout: its name, grid, period
// and optional sampling cadence. When Cadence is empty the cadence is
// inferred from a metadata sample of the input archive instead.
type CutoutSpec struct {
	Name    string            `yaml:"name"`
	X       AxisSpec          `yaml:"x"`
	Y       AxisSpec          `yaml:"y"`
	Years   grid.Range        `yaml:"years"`
	Months  grid.Range        `yaml:"months"`
	Cadence string            `yaml:"cadence,omitempty"`
	View    *grid.View        `yaml:"view,omitempty"`
	Params  map[string]string `yaml:"params,omitempty"`
	Attrs   map[string]string `yaml:"attrs,omitempty"`
}

// LoadCutoutSpec reads and validates a cutout specification file.
func LoadCutoutSpec(path string) (*CutoutSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cutout spec %s: %w", path, err)
	}
	var spec CutoutSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse cutout spec %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("cutout spec %s: %w", path, err)
	}
	return &spec, nil
}

// Validate checks the spec for internal consistency.
func (s *CutoutSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := s.X.validate("x"); err != nil {
		return err
	}
	if err := s.Y.validate("y"); err != nil {
		return err
	}
	if s.Years.Stop < s.Years.Start {
		return fmt.Errorf("years: stop %d is before start %d", s.Years.Stop, s.Years.Start)
	}
	if s.Months.Start < 1 || s.Months.Stop > 12 || s.Months.Stop < s.Months.Start {
		return fmt.Errorf("months: range %d-%d is not within 1-12", s.Months.Start, s.Months.Stop)
	}
	if s.Cadence != "" {
		if _, err := time.ParseDuration(s.Cadence); err != nil {
			return fmt.Errorf("cadence: %w", err)
		}
	}
	return nil
}

// BuildMeta materializes the coordinate skeleton for the spec. A declared
// cadence builds the time axis directly; otherwise metaCfg is asked for a
// sample and the cadence is inferred from it. A declared view is applied on
// top.
func (s *CutoutSpec) BuildMeta(ctx context.Context, metaCfg *grid.Config) (*grid.Meta, error) {
	xs, ys := s.X.Points(), s.Y.Points()

	var meta *grid.Meta
	var err error
	if s.Cadence != "" {
		step, _ := time.ParseDuration(s.Cadence)
		meta, err = grid.MetaFromCadence(xs, ys, s.Years, s.Months, step)
	} else {
		if metaCfg == nil {
			return nil, fmt.Errorf("cutout %q declares no cadence and no metadata sample provider is available", s.Name)
		}
		meta, err = grid.GetMeta(ctx, *metaCfg, xs, ys, s.Years, s.Months, s.Params)
	}
	if err != nil {
		return nil, err
	}

	if meta.Attrs == nil {
		meta.Attrs = map[string]string{}
	}
	for k, v := range s.Attrs {
		meta.Attrs[k] = v
	}

	if s.View != nil {
		meta = grid.GetMetaView(meta, grid.ViewOptions{X: s.View.X, Y: s.View.Y})
	}
	return meta, nil
}
