// Package dataset holds the gridded data model shared by the whole pipeline.
//
// Every dataset, partial file and compound monthly file uses the same
// long-format schema: one row per (time, y, x, variable) carrying a single
// value. Static fields (e.g. interpolated height) use a NULL time.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Row is one observation in the long-format schema. Time is epoch
// milliseconds (UTC) and nil for static fields.
type Row struct {
	Time     *int64  `parquet:"name=time, type=INT64, repetitiontype=OPTIONAL"`
	Y        float64 `parquet:"name=y, type=DOUBLE"`
	X        float64 `parquet:"name=x, type=DOUBLE"`
	Variable string  `parquet:"name=variable, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Value    float64 `parquet:"name=value, type=DOUBLE"`
}

// Stamp converts a time to the epoch-millisecond representation used in rows.
func Stamp(t time.Time) *int64 {
	ms := t.UTC().UnixMilli()
	return &ms
}

// At converts an epoch-millisecond stamp back to a UTC time.
func At(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// RowIter produces batches of rows. A nil batch with a nil error signals the
// end of the stream. Iterators backed by an open Source fail once the source
// has been closed.
type RowIter func() ([]Row, error)

// Dataset is a collection of rows for one period. It is either fully
// materialized in memory or lazily backed by a RowIter (typically streaming
// from an open Source), in which case it must be consumed or loaded before
// the source is closed.
type Dataset struct {
	rows   []Row
	iter   RowIter
	loaded bool
}

// New returns a fully materialized dataset.
func New(rows []Row) *Dataset {
	return &Dataset{rows: rows, loaded: true}
}

// NewLazy returns a dataset backed by iter. Rows are pulled on demand by
// Load or WriteParquet.
func NewLazy(iter RowIter) *Dataset {
	return &Dataset{iter: iter}
}

// Loaded reports whether all rows are held in memory.
func (d *Dataset) Loaded() bool { return d.loaded }

// Load drains the backing iterator into memory. It is a no-op for datasets
// that are already materialized.
func (d *Dataset) Load() error {
	if d.loaded {
		return nil
	}
	if d.iter == nil {
		return errors.New("dataset has neither rows nor a row source")
	}
	for {
		batch, err := d.iter()
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}
		if batch == nil {
			break
		}
		d.rows = append(d.rows, batch...)
	}
	d.iter = nil
	d.loaded = true
	return nil
}

// Rows returns the materialized rows, loading them first if necessary.
func (d *Dataset) Rows() ([]Row, error) {
	if err := d.Load(); err != nil {
		return nil, err
	}
	return d.rows, nil
}

// Len returns the number of materialized rows. It loads lazy datasets.
func (d *Dataset) Len() (int, error) {
	rows, err := d.Rows()
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Variables returns the sorted distinct variable names. It loads lazy
// datasets.
func (d *Dataset) Variables() ([]string, error) {
	rows, err := d.Rows()
	if err != nil {
		return nil, err
	}
	return distinctVariables(rows), nil
}

// Times returns the sorted distinct non-null timestamps. It loads lazy
// datasets.
func (d *Dataset) Times() ([]time.Time, error) {
	rows, err := d.Rows()
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{})
	for _, r := range rows {
		if r.Time != nil {
			seen[*r.Time] = struct{}{}
		}
	}
	stamps := make([]int64, 0, len(seen))
	for ms := range seen {
		stamps = append(stamps, ms)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	times := make([]time.Time, len(stamps))
	for i, ms := range stamps {
		times[i] = At(ms)
	}
	return times, nil
}

func distinctVariables(rows []Row) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.Variable] = struct{}{}
	}
	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}
