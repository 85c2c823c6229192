// Package task defines the unit of extraction work and the executor that
// runs it.
package task

import (
	"context"

	"github.com/voltatlas/cutout/internal/dataset"
	"github.com/voltatlas/cutout/internal/grid"
)

// Input carries everything a prepare function may need: the spatial axes,
// the requested periods, series parameters, shared metadata attributes and,
// when the task names an input file, the open dataset handle.
type Input struct {
	XS         []float64
	YS         []float64
	YearMonths []grid.YearMonth
	Source     *dataset.Source
	MetaAttrs  map[string]string
	Params     map[string]string
}

// Result pairs one produced dataset with the period it belongs to.
type Result struct {
	YearMonth grid.YearMonth
	Data      *dataset.Dataset
}

// PrepareFunc is the extraction collaborator for one series. It returns one
// result per period it produced data for; returning nil means the task had
// nothing to contribute and is not an error. Implementations must be safe
// for concurrent use: tasks run in parallel and each invocation owns its
// Input (and Source) exclusively.
type PrepareFunc func(ctx context.Context, in Input) ([]Result, error)

// Task binds an extraction function to its arguments and, outside preview
// mode, to the per-month output files it writes. InputPath and Engine are
// mutually tied: if one is set the executor opens the dataset before the
// function runs and closes it on every exit path. A task is consumed exactly
// once.
type Task struct {
	Series     string
	FuncName   string
	Func       PrepareFunc
	InputPath  string
	Engine     string
	XS         []float64
	YS         []float64
	YearMonths []grid.YearMonth
	MetaAttrs  map[string]string
	Params     map[string]string

	// OutputFiles maps each period to the uniquely suffixed partial file
	// this task writes. Nil only in preview mode.
	OutputFiles map[grid.YearMonth]string
}
