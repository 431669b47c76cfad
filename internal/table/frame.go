// Package table provides the in-memory tabular payload that flows between
// pipeline nodes.
//
// A Frame is column-major: every Column holds one value per row, and all
// columns of a Frame have the same length. Column order and row order are
// part of a Frame's identity.
package table

import (
	"fmt"
	"math"

	"segweaver/internal/core"
)

// Kind is the value type of a Column.
type Kind string

const (
	Numeric     Kind = "numeric"
	Categorical Kind = "categorical"
)

// Column is a named, typed sequence of values.
//
// Exactly one of Nums (Numeric) or Strs (Categorical) is populated.
type Column struct {
	Name string    `json:"name"`
	Kind Kind      `json:"kind"`
	Nums []float64 `json:"nums,omitempty"`
	Strs []string  `json:"strs,omitempty"`
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Strs)
	}
	return len(c.Nums)
}

// NumericColumn builds a numeric column. vals is not copied.
func NumericColumn(name string, vals []float64) Column {
	return Column{Name: name, Kind: Numeric, Nums: vals}
}

// CategoricalColumn builds a categorical column. vals is not copied.
func CategoricalColumn(name string, vals []string) Column {
	return Column{Name: name, Kind: Categorical, Strs: vals}
}

// Frame is an ordered set of equally long columns plus free-form metadata.
type Frame struct {
	Columns []Column          `json:"columns"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// New validates cols and returns a Frame holding them.
func New(cols ...Column) (*Frame, error) {
	f := &Frame{Columns: cols}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// FromMatrix builds a numeric Frame from row-major data.
func FromMatrix(names []string, rows [][]float64) (*Frame, error) {
	cols := make([]Column, len(names))
	for j, name := range names {
		cols[j] = NumericColumn(name, make([]float64, len(rows)))
	}
	for i, row := range rows {
		if len(row) != len(names) {
			return nil, core.Errorf(core.ErrShapeMismatch, "table", "row %d has %d values, expected %d", i, len(row), len(names))
		}
		for j, v := range row {
			cols[j].Nums[i] = v
		}
	}
	return New(cols...)
}

// Validate checks that column names are non-empty and unique, kinds are known,
// and all columns have the same length.
func (f *Frame) Validate() error {
	if f == nil {
		return core.Errorf(core.ErrInvalidParameter, "table", "nil frame")
	}
	seen := make(map[string]struct{}, len(f.Columns))
	for i, c := range f.Columns {
		if c.Name == "" {
			return core.Errorf(core.ErrInvalidParameter, "table", "column %d has no name", i)
		}
		if _, dup := seen[c.Name]; dup {
			return core.Errorf(core.ErrInvalidParameter, "table", "duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		switch c.Kind {
		case Numeric:
			if len(c.Strs) != 0 {
				return core.Errorf(core.ErrShapeMismatch, "table", "numeric column %q carries categorical values", c.Name)
			}
		case Categorical:
			if len(c.Nums) != 0 {
				return core.Errorf(core.ErrShapeMismatch, "table", "categorical column %q carries numeric values", c.Name)
			}
		default:
			return core.Errorf(core.ErrInvalidParameter, "table", "column %q has unknown kind %q", c.Name, c.Kind)
		}
		if c.Len() != f.Columns[0].Len() {
			return core.Errorf(core.ErrShapeMismatch, "table", "column %q has %d rows, expected %d", c.Name, c.Len(), f.Columns[0].Len())
		}
	}
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil || len(f.Columns) == 0 {
		return 0
	}
	return f.Columns[0].Len()
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Name
	}
	return out
}

// NumericNames returns the names of numeric columns in order.
func (f *Frame) NumericNames() []string {
	var out []string
	for _, c := range f.Columns {
		if c.Kind == Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Column returns the column called name.
func (f *Frame) Column(name string) (Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Matrix returns the named numeric columns as row-major data.
// With no names, every numeric column is used.
func (f *Frame) Matrix(names ...string) ([][]float64, error) {
	if len(names) == 0 {
		names = f.NumericNames()
	}
	cols := make([][]float64, len(names))
	for j, name := range names {
		c, ok := f.Column(name)
		if !ok {
			return nil, core.Errorf(core.ErrShapeMismatch, "table", "no column %q", name)
		}
		if c.Kind != Numeric {
			return nil, core.Errorf(core.ErrInvalidParameter, "table", "column %q is %s, not numeric", name, c.Kind)
		}
		cols[j] = c.Nums
	}
	rows := make([][]float64, f.Len())
	for i := range rows {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		rows[i] = row
	}
	return rows, nil
}

// WithColumn returns a copy of f with col appended, or replacing an existing
// column of the same name in place. f is not modified.
func (f *Frame) WithColumn(col Column) (*Frame, error) {
	if f.Len() != col.Len() && len(f.Columns) > 0 {
		return nil, core.Errorf(core.ErrShapeMismatch, "table", "column %q has %d rows, frame has %d", col.Name, col.Len(), f.Len())
	}
	out := f.Clone()
	for i, c := range out.Columns {
		if c.Name == col.Name {
			out.Columns[i] = cloneColumn(col)
			return out, nil
		}
	}
	out.Columns = append(out.Columns, cloneColumn(col))
	return out, nil
}

// WithMeta returns a copy of f with key set to value.
func (f *Frame) WithMeta(key, value string) *Frame {
	out := f.Clone()
	if out.Meta == nil {
		out.Meta = make(map[string]string, 1)
	}
	out.Meta[key] = value
	return out
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	out := &Frame{Columns: make([]Column, len(f.Columns))}
	for i, c := range f.Columns {
		out.Columns[i] = cloneColumn(c)
	}
	if f.Meta != nil {
		out.Meta = make(map[string]string, len(f.Meta))
		for k, v := range f.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

func cloneColumn(c Column) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	if c.Nums != nil {
		out.Nums = append([]float64(nil), c.Nums...)
	}
	if c.Strs != nil {
		out.Strs = append([]string(nil), c.Strs...)
	}
	return out
}

// Equal reports whether a and b have the same columns, values and metadata.
// Numeric values are compared bit-for-bit.
func Equal(a, b *Frame) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Columns) != len(b.Columns) || len(a.Meta) != len(b.Meta) {
		return false
	}
	for k, v := range a.Meta {
		if bv, ok := b.Meta[k]; !ok || bv != v {
			return false
		}
	}
	for i := range a.Columns {
		ca, cb := a.Columns[i], b.Columns[i]
		if ca.Name != cb.Name || ca.Kind != cb.Kind || ca.Len() != cb.Len() {
			return false
		}
		for j := range ca.Nums {
			if math.Float64bits(ca.Nums[j]) != math.Float64bits(cb.Nums[j]) {
				return false
			}
		}
		for j := range ca.Strs {
			if ca.Strs[j] != cb.Strs[j] {
				return false
			}
		}
	}
	return true
}

// String summarises the frame shape, for logs.
func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%d rows x %d cols)", f.Len(), len(f.Columns))
}
