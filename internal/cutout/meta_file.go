package cutout

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voltatlas/cutout/internal/grid"
)

// metaDoc is the on-disk form of the coordinate skeleton. Times are stored
// unstacked (a flat RFC3339 list); the compound year-month index is derived
// from the year/month ranges on load. The in-memory height field is not
// persisted: it lives in the compound monthly files after a merge.
type metaDoc struct {
	Name     string            `yaml:"name"`
	Prepared bool              `yaml:"prepared"`
	X        []float64         `yaml:"x"`
	Y        []float64         `yaml:"y"`
	Times    []string          `yaml:"times"`
	Years    grid.Range        `yaml:"years"`
	Months   grid.Range        `yaml:"months"`
	Attrs    map[string]string `yaml:"attrs,omitempty"`
	View     *grid.View        `yaml:"view,omitempty"`
}

// SaveMeta persists the metadata skeleton and prepared flag to the primary
// metadata file inside the cutout directory.
func (c *Cutout) SaveMeta() error {
	doc := metaDoc{
		Name:     c.Name,
		Prepared: c.Prepared,
		X:        c.Meta.X,
		Y:        c.Meta.Y,
		Years:    c.Meta.Years,
		Months:   c.Meta.Months,
		Attrs:    c.Meta.Attrs,
		View:     c.Meta.View,
	}
	doc.Times = make([]string, len(c.Meta.Times))
	for i, t := range c.Meta.Times {
		doc.Times[i] = t.UTC().Format(time.RFC3339)
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal metadata for cutout %q: %w", c.Name, err)
	}
	if err := os.WriteFile(c.MetaPath(), data, 0o644); err != nil {
		return fmt.Errorf("write metadata file for cutout %q: %w", c.Name, err)
	}
	return nil
}

// LoadMeta reads the primary metadata file back into the cutout, replacing
// its in-memory skeleton and prepared flag. Series configuration is code,
// not data, and is left untouched.
func (c *Cutout) LoadMeta() error {
	data, err := os.ReadFile(c.MetaPath())
	if err != nil {
		return fmt.Errorf("read metadata file for cutout %q: %w", c.Name, err)
	}
	var doc metaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse metadata file for cutout %q: %w", c.Name, err)
	}
	meta := &grid.Meta{
		X:      doc.X,
		Y:      doc.Y,
		Years:  doc.Years,
		Months: doc.Months,
		Attrs:  doc.Attrs,
		View:   doc.View,
	}
	meta.Times = make([]time.Time, len(doc.Times))
	for i, s := range doc.Times {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q in metadata of cutout %q: %w", s, c.Name, err)
		}
		meta.Times[i] = t.UTC()
	}
	if doc.Name != "" {
		c.Name = doc.Name
	}
	c.Meta = meta
	c.Prepared = doc.Prepared
	return nil
}
