// Package grid builds and re-slices the coordinate skeleton of a cutout:
// spatial axes, the multi-year time axis and the compound year-month index
// that partitions work and output files.
package grid

import (
	"fmt"
	"time"
)

// YearMonth is one entry of the compound time index.
type YearMonth struct {
	Year  int `yaml:"year"`
	Month int `yaml:"month"`
}

// String renders the canonical "YYYY-MM" form.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// FileStem renders the compact form used in dataset filenames.
func (ym YearMonth) FileStem() string {
	return fmt.Sprintf("%04d%02d", ym.Year, ym.Month)
}

// Start returns midnight UTC on the first day of the month.
func (ym YearMonth) Start() time.Time {
	return time.Date(ym.Year, time.Month(ym.Month), 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar month.
func (ym YearMonth) Next() YearMonth {
	if ym.Month == 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

// Less orders year-months chronologically.
func (ym YearMonth) Less(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// Of returns the year-month containing t.
func Of(t time.Time) YearMonth {
	u := t.UTC()
	return YearMonth{Year: u.Year(), Month: int(u.Month())}
}

// ParseYearMonth parses the canonical "YYYY-MM" form.
func ParseYearMonth(s string) (YearMonth, error) {
	var ym YearMonth
	if _, err := fmt.Sscanf(s, "%d-%d", &ym.Year, &ym.Month); err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	if ym.Month < 1 || ym.Month > 12 {
		return YearMonth{}, fmt.Errorf("parse year-month %q: month out of range", s)
	}
	return ym, nil
}

// Range is an inclusive integer span, used for both years and months.
type Range struct {
	Start int `yaml:"start"`
	Stop  int `yaml:"stop"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v int) bool { return v >= r.Start && v <= r.Stop }
