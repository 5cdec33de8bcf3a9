package data

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	ErrShape  = errors.New("data: column length mismatch")
	ErrColumn = errors.New("data: column error")
)

// ColumnError reports a column that is missing or has the wrong kind.
type ColumnError struct {
	Name string
	Msg  string
}

func (e *ColumnError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("column %q not found", e.Name)
	}
	return fmt.Sprintf("column %q: %s", e.Name, e.Msg)
}

func (e *ColumnError) Unwrap() error { return ErrColumn }

type column struct {
	name string
	num  []float64 // non-nil for numeric columns
	text []string  // non-nil for text columns
}

func (c *column) len() int {
	if c.num != nil {
		return len(c.num)
	}
	return len(c.text)
}

// Frame is an ordered set of equally long named columns.
// A column holds either float64 values or strings.
type Frame struct {
	cols  []*column
	index map[string]int
	n     int
}

// NewFrame returns an empty frame with n rows and no columns.
func NewFrame(n int) *Frame {
	return &Frame{index: map[string]int{}, n: n}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.name
	}
	return out
}

// Has reports whether the frame has a column called name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// IsNumeric reports whether name is a numeric column.
func (f *Frame) IsNumeric(name string) bool {
	i, ok := f.index[name]
	return ok && f.cols[i].num != nil
}

func (f *Frame) lookup(name string) (*column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, &ColumnError{Name: name}
	}
	return f.cols[i], nil
}

// Float returns the values of a numeric column. The slice is shared with the frame.
func (f *Frame) Float(name string) ([]float64, error) {
	c, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	if c.num == nil {
		return nil, &ColumnError{Name: name, Msg: "not numeric"}
	}
	return c.num, nil
}

// Text returns the values of a column as strings. Numeric columns are formatted.
func (f *Frame) Text(name string) ([]string, error) {
	c, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	if c.text != nil {
		return c.text, nil
	}
	out := make([]string, len(c.num))
	for i, v := range c.num {
		out[i] = formatFloat(v)
	}
	return out, nil
}

func (f *Frame) set(c *column) error {
	if len(f.cols) == 0 && f.n == 0 {
		f.n = c.len()
	}
	if c.len() != f.n {
		return fmt.Errorf("%w: %q has %d rows, frame has %d", ErrShape, c.name, c.len(), f.n)
	}
	if i, ok := f.index[c.name]; ok {
		f.cols[i] = c
		return nil
	}
	f.index[c.name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// SetFloat adds or replaces a numeric column.
func (f *Frame) SetFloat(name string, v []float64) error {
	if v == nil {
		v = []float64{}
	}
	return f.set(&column{name: name, num: v})
}

// SetText adds or replaces a text column.
func (f *Frame) SetText(name string, v []string) error {
	if v == nil {
		v = []string{}
	}
	return f.set(&column{name: name, text: v})
}

// Select returns a new frame with only the named columns, in the given order.
// Column data is shared; FillNonFinite copies a column before changing it.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := NewFrame(f.n)
	for _, name := range names {
		c, err := f.lookup(name)
		if err != nil {
			return nil, err
		}
		cp := *c
		out.index[name] = len(out.cols)
		out.cols = append(out.cols, &cp)
	}
	return out, nil
}

// Drop removes the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := f.cols[:0]
	for _, c := range f.cols {
		if !drop[c.name] {
			kept = append(kept, c)
		}
	}
	f.cols = kept
	f.reindex()
}

// Rename renames columns according to mapping. Names not in the mapping are kept.
// On a duplicate result the frame is left unchanged.
func (f *Frame) Rename(mapping map[string]string) error {
	return f.renameAll(func(name string) string {
		if to, ok := mapping[name]; ok {
			return to
		}
		return name
	})
}

// ReplaceInNames replaces old with new in every column name.
// On a duplicate result the frame is left unchanged.
func (f *Frame) ReplaceInNames(old, new string) error {
	return f.renameAll(func(name string) string { return strings.ReplaceAll(name, old, new) })
}

func (f *Frame) renameAll(rename func(string) string) error {
	names := make([]string, len(f.cols))
	seen := make(map[string]bool, len(f.cols))
	for i, c := range f.cols {
		names[i] = rename(c.name)
		if seen[names[i]] {
			return &ColumnError{Name: names[i], Msg: "duplicate name"}
		}
		seen[names[i]] = true
	}
	for i, c := range f.cols {
		c.name = names[i]
	}
	f.reindex()
	return nil
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.cols))
	for i, c := range f.cols {
		f.index[c.name] = i
	}
}

// FillNonFinite replaces NaN and ±Inf in every numeric column with v and
// returns the number of replaced cells. A column is copied before its first
// replacement, so slices shared with other frames are not modified.
func (f *Frame) FillNonFinite(v float64) int {
	n := 0
	for _, c := range f.cols {
		copied := false
		for i, x := range c.num {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				if !copied {
					c.num = append([]float64(nil), c.num...)
					copied = true
				}
				c.num[i] = v
				n++
			}
		}
	}
	return n
}

// Take returns a new frame holding the given rows in order.
func (f *Frame) Take(rows []int) *Frame {
	out := NewFrame(len(rows))
	for _, c := range f.cols {
		nc := &column{name: c.name}
		if c.num != nil {
			nc.num = make([]float64, len(rows))
			for i, r := range rows {
				nc.num[i] = c.num[r]
			}
		} else {
			nc.text = make([]string, len(rows))
			for i, r := range rows {
				nc.text[i] = c.text[r]
			}
		}
		out.index[nc.name] = len(out.cols)
		out.cols = append(out.cols, nc)
	}
	return out
}

// Codes returns category codes for a column: the index of each value among the
// sorted unique values of the column.
func (f *Frame) Codes(name string) ([]int, error) {
	vals, err := f.Text(name)
	if err != nil {
		return nil, err
	}
	uniq := make(map[string]struct{}, 64)
	for _, v := range vals {
		uniq[v] = struct{}{}
	}
	levels := make([]string, 0, len(uniq))
	for v := range uniq {
		levels = append(levels, v)
	}
	sort.Strings(levels)
	code := make(map[string]int, len(levels))
	for i, v := range levels {
		code[v] = i
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = code[v]
	}
	return out, nil
}

// Rows returns the named numeric columns as a row-major matrix.
func (f *Frame) Rows(names ...string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for j, name := range names {
		v, err := f.Float(name)
		if err != nil {
			return nil, err
		}
		cols[j] = v
	}
	X := make([][]float64, f.n)
	flat := make([]float64, f.n*len(names))
	for i := 0; i < f.n; i++ {
		row := flat[i*len(names) : (i+1)*len(names) : (i+1)*len(names)]
		for j := range cols {
			row[j] = cols[j][i]
		}
		X[i] = row
	}
	return X, nil
}
