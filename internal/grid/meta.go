package grid

import (
	"context"
	"fmt"
	"time"

	"github.com/voltatlas/cutout/internal/dataset"
)

// Span is a closed interval on a spatial axis.
type Span struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// View records the sub-window a meta object has been re-sliced to, so the
// selection can be reused on later derivations.
type View struct {
	X *Span `yaml:"x,omitempty"`
	Y *Span `yaml:"y,omitempty"`
}

// Meta is the coordinate skeleton of a cutout: spatial axes, the full sampled
// time axis and the year/month ranges spanning the compound index. Height is
// an optional static field attached before preparation and injected into
// every compound monthly file at merge time.
type Meta struct {
	X      []float64
	Y      []float64
	Times  []time.Time
	Years  Range
	Months Range
	Attrs  map[string]string
	View   *View
	Height *dataset.Field
}

// YearMonths returns the compound index in chronological order.
func (m *Meta) YearMonths() []YearMonth {
	var yms []YearMonth
	for year := m.Years.Start; year <= m.Years.Stop; year++ {
		for month := m.Months.Start; month <= m.Months.Stop; month++ {
			yms = append(yms, YearMonth{Year: year, Month: month})
		}
	}
	return yms
}

// Clone returns a deep copy, so views never alias the parent's state.
func (m *Meta) Clone() *Meta {
	out := &Meta{
		X:      append([]float64(nil), m.X...),
		Y:      append([]float64(nil), m.Y...),
		Times:  append([]time.Time(nil), m.Times...),
		Years:  m.Years,
		Months: m.Months,
		Height: m.Height,
	}
	if m.Attrs != nil {
		out.Attrs = make(map[string]string, len(m.Attrs))
		for k, v := range m.Attrs {
			out.Attrs[k] = v
		}
	}
	if m.View != nil {
		v := *m.View
		out.View = &v
	}
	return out
}

// PrepareFunc is the metadata-preparation collaborator: it returns a dataset
// for a single year/month whose time coordinate reveals the product's
// sampling cadence.
type PrepareFunc func(ctx context.Context, xs, ys []float64, year, month int, params map[string]string) (*dataset.Dataset, error)

// Config describes how to obtain the metadata sample for a product.
type Config struct {
	Prepare PrepareFunc
	Params  map[string]string
}

// GetMeta builds the metadata skeleton for the given axes and ranges. It
// invokes the metadata-preparation collaborator for the last month of the
// range and replicates the observed intra-month offset pattern (start offset,
// end offset, sampling step) across every year/month combination.
func GetMeta(ctx context.Context, cfg Config, xs, ys []float64, years, months Range, params map[string]string) (*Meta, error) {
	if cfg.Prepare == nil {
		return nil, fmt.Errorf("metadata config has no prepare function")
	}
	merged := make(map[string]string, len(cfg.Params)+len(params))
	for k, v := range cfg.Params {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}

	ds, err := cfg.Prepare(ctx, xs, ys, years.Stop, months.Stop, merged)
	if err != nil {
		return nil, fmt.Errorf("prepare metadata sample for %04d-%02d: %w", years.Stop, months.Stop, err)
	}
	times, err := ds.Times()
	if err != nil {
		return nil, err
	}
	if len(times) < 2 {
		return nil, fmt.Errorf("metadata sample for %04d-%02d has %d timestamps, need at least 2 to infer cadence", years.Stop, months.Stop, len(times))
	}

	lastStart := YearMonth{Year: years.Stop, Month: months.Stop}.Start()
	offsetStart := times[0].Sub(lastStart)
	offsetEnd := times[len(times)-1].Sub(lastStart.AddDate(0, 1, 0))
	step := times[1].Sub(times[0])
	if step <= 0 {
		return nil, fmt.Errorf("metadata sample for %04d-%02d has a non-positive sampling step", years.Stop, months.Stop)
	}

	firstStart := YearMonth{Year: years.Start, Month: months.Start}.Start()
	axis := timeAxis(firstStart.Add(offsetStart), lastStart.AddDate(0, 1, 0).Add(offsetEnd), step)

	attrs := make(map[string]string, len(params))
	for k, v := range params {
		attrs[k] = v
	}
	return &Meta{
		X:      append([]float64(nil), xs...),
		Y:      append([]float64(nil), ys...),
		Times:  axis,
		Years:  years,
		Months: months,
		Attrs:  attrs,
	}, nil
}

// ViewOptions selects the sub-window for GetMetaView. Nil members leave the
// corresponding dimension untouched.
type ViewOptions struct {
	X      *Span
	Y      *Span
	Years  *Range
	Months *Range
}

// GetMetaView re-slices meta to a spatial/temporal sub-window without
// recomputation, recording the requested spatial window for later reuse.
func GetMetaView(meta *Meta, opts ViewOptions) *Meta {
	out := meta.Clone()
	if opts.X != nil || opts.Y != nil {
		if out.View == nil {
			out.View = &View{}
		}
		if opts.X != nil {
			out.View.X = opts.X
			out.X = within(out.X, *opts.X)
		}
		if opts.Y != nil {
			out.View.Y = opts.Y
			out.Y = within(out.Y, *opts.Y)
		}
	}
	if opts.Years != nil {
		out.Years = clamp(out.Years, *opts.Years)
	}
	if opts.Months != nil {
		out.Months = clamp(out.Months, *opts.Months)
	}

	var kept []time.Time
	for _, t := range out.Times {
		ym := Of(t)
		if out.Years.Contains(ym.Year) && out.Months.Contains(ym.Month) {
			kept = append(kept, t)
		}
	}
	out.Times = kept
	return out
}

// MetaFromCadence builds a skeleton directly from a known sampling step,
// used when a product declares its cadence instead of providing a metadata
// sample.
func MetaFromCadence(xs, ys []float64, years, months Range, step time.Duration) (*Meta, error) {
	if step <= 0 {
		return nil, fmt.Errorf("cadence must be positive, got %s", step)
	}
	start := YearMonth{Year: years.Start, Month: months.Start}.Start()
	end := YearMonth{Year: years.Stop, Month: months.Stop}.Start().AddDate(0, 1, 0).Add(-step)
	return &Meta{
		X:      append([]float64(nil), xs...),
		Y:      append([]float64(nil), ys...),
		Times:  timeAxis(start, end, step),
		Years:  years,
		Months: months,
		Attrs:  map[string]string{},
	}, nil
}

func timeAxis(start, end time.Time, step time.Duration) []time.Time {
	var axis []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		axis = append(axis, t)
	}
	return axis
}

func within(axis []float64, span Span) []float64 {
	lo, hi := span.Min, span.Max
	if lo > hi {
		lo, hi = hi, lo
	}
	var out []float64
	for _, v := range axis {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out
}

func clamp(r, sel Range) Range {
	out := r
	if sel.Start > out.Start {
		out.Start = sel.Start
	}
	if sel.Stop < out.Stop {
		out.Stop = sel.Stop
	}
	return out
}
