package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Well-known column names.
const (
	ColumnDate        = "Date"
	ColumnClose       = "Close"
	ColumnVolume      = "Volume"
	ColumnAnomaly     = "Anomaly"
	ColumnGroundTruth = "GroundTruth"
)

// ColumnKind is the type a column was given at load time.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindNumeric
	KindTime
)

func (k ColumnKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindTime:
		return "time"
	default:
		return "string"
	}
}

// Label flags a single row: 0 normal, 1 anomalous.
type Label uint8

const (
	Normal    Label = 0
	Anomalous Label = 1
)

// Column holds one named column. Raw always carries the original cell text;
// Num and Time are populated for numeric and time columns, with Valid marking
// which rows hold a usable value.
type Column struct {
	Name  string
	Kind  ColumnKind
	Raw   []string
	Num   []float64
	Time  []time.Time
	Valid []bool
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Raw) }

// Float returns the numeric value at row i and whether it is present.
func (c *Column) Float(i int) (float64, bool) {
	if c.Kind != KindNumeric || i < 0 || i >= len(c.Num) || !c.Valid[i] {
		return math.NaN(), false
	}
	return c.Num[i], true
}

// At returns the timestamp at row i and whether it parsed.
func (c *Column) At(i int) (time.Time, bool) {
	if c.Kind != KindTime || i < 0 || i >= len(c.Time) || !c.Valid[i] {
		return time.Time{}, false
	}
	return c.Time[i], true
}

// NewStringColumn builds a string column from raw cells.
func NewStringColumn(name string, raw []string) *Column {
	return &Column{Name: name, Kind: KindString, Raw: raw}
}

// NewNumericColumn builds a numeric column; non-finite values are stored as
// missing.
func NewNumericColumn(name string, vals []float64) *Column {
	c := &Column{
		Name:  name,
		Kind:  KindNumeric,
		Raw:   make([]string, len(vals)),
		Num:   make([]float64, len(vals)),
		Valid: make([]bool, len(vals)),
	}
	for i, v := range vals {
		c.Num[i] = v
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		c.Valid[i] = true
		c.Raw[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return c
}

// NewLabelColumn builds the derived anomaly column.
func NewLabelColumn(labels []Label) *Column {
	vals := make([]float64, len(labels))
	for i, l := range labels {
		vals[i] = float64(l)
	}
	return NewNumericColumn(ColumnAnomaly, vals)
}

// Table is an ordered, column-oriented set of rows.
type Table struct {
	Source  string
	rows    int
	columns []*Column
	index   map[string]int
}

// NewTable creates an empty table with a fixed row count.
func NewTable(source string, rows int) *Table {
	return &Table{Source: source, rows: rows, index: make(map[string]int)}
}

// Len returns the row count.
func (t *Table) Len() int { return t.rows }

// Columns returns the columns in order.
func (t *Table) Columns() []*Column { return t.columns }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AddColumn appends a new column. Names must be unique and the length must match.
func (t *Table) AddColumn(c *Column) error {
	if _, ok := t.index[c.Name]; ok {
		return fmt.Errorf("duplicate column %q", c.Name)
	}
	if c.Len() != t.rows {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.rows)
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// SetColumn replaces a column with the same name in place, or appends it.
func (t *Table) SetColumn(c *Column) error {
	i, ok := t.index[c.Name]
	if !ok {
		return t.AddColumn(c)
	}
	if c.Len() != t.rows {
		return fmt.Errorf("column %q has %d rows, table has %d", c.Name, c.Len(), t.rows)
	}
	t.columns[i] = c
	return nil
}

// Labels returns the anomaly labels attached to the table, if any.
func (t *Table) Labels() ([]Label, bool) {
	c, ok := t.Column(ColumnAnomaly)
	if !ok || c.Kind != KindNumeric {
		return nil, false
	}
	out := make([]Label, t.rows)
	for i := range out {
		if v, ok := c.Float(i); ok && v != 0 {
			out[i] = Anomalous
		}
	}
	return out, true
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	idx := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	out := NewTable(t.Source, len(idx))
	for _, c := range t.columns {
		nc := &Column{Name: c.Name, Kind: c.Kind, Raw: make([]string, len(idx))}
		if c.Valid != nil {
			nc.Valid = make([]bool, len(idx))
		}
		if c.Num != nil {
			nc.Num = make([]float64, len(idx))
		}
		if c.Time != nil {
			nc.Time = make([]time.Time, len(idx))
		}
		for j, i := range idx {
			nc.Raw[j] = c.Raw[i]
			if nc.Valid != nil {
				nc.Valid[j] = c.Valid[i]
			}
			if nc.Num != nil {
				nc.Num[j] = c.Num[i]
			}
			if nc.Time != nil {
				nc.Time[j] = c.Time[i]
			}
		}
		_ = out.AddColumn(nc)
	}
	return out
}

// Record returns row i as raw cell text keyed by column name.
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.columns))
	for _, c := range t.columns {
		rec[c.Name] = c.Raw[i]
	}
	return rec
}
