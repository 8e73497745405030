package domain

import (
	"fmt"
	"slices"
)

// ColumnKind tells writers how to render a column.
type ColumnKind int

const (
	// KindFloat is a measured or coordinate value.
	KindFloat ColumnKind = iota
	// KindTime holds seconds since the Unix epoch.
	KindTime
	// KindInt holds integral values such as the year.
	KindInt
	// KindString holds text labels in Strings.
	KindString
)

// Column is a named, typed column of a Table. String columns keep their
// values in Strings, all others in Values.
type Column struct {
	Name    string
	Kind    ColumnKind
	BitSize int
	Values  []float64
	Strings []string
}

// Len returns the number of values in c.
func (c *Column) Len() int {
	if c.Kind == KindString {
		return len(c.Strings)
	}
	return len(c.Values)
}

// Table is a columnar flat record table. All columns have the same length.
type Table struct {
	Columns []Column
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// ColumnNames lists column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Flatten converts ds into one row per coordinate tuple, row-major over the
// variables' dimensions. Columns are the dimension coordinates, then the
// auxiliary coordinates broadcast over the rows, then the variables in
// dataset order, then YearColumn set to year.
func Flatten(ds *Dataset, year int) (*Table, error) {
	if len(ds.Vars) == 0 {
		return &Table{}, nil
	}
	dims, err := ds.CommonDims(ds.VarNames()...)
	if err != nil {
		return nil, err
	}
	shape, err := ds.Shape(dims)
	if err != nil {
		return nil, err
	}
	rows := product(shape)

	cols := make([]Column, 0, len(dims)+len(ds.Aux)+len(ds.Vars)+1)
	for i, d := range dims {
		c, _ := ds.Coord(d)
		kind := KindFloat
		if c.Time {
			kind = KindTime
		}
		cols = append(cols, Column{
			Name:    c.Name,
			Kind:    kind,
			BitSize: c.BitSize,
			Values:  expandCoordinate(c.Values, shape, i),
		})
	}
	for _, a := range ds.Aux {
		idx, err := broadcastIndex(a, dims, shape)
		if err != nil {
			return nil, err
		}
		cols = append(cols, auxColumn(a, idx))
	}
	for _, v := range ds.Vars {
		if len(v.Data) != rows {
			return nil, fmt.Errorf("%s: %w: %d values, want %d", v.Name, ErrShapeMismatch, len(v.Data), rows)
		}
		cols = append(cols, Column{
			Name:    v.Name,
			Kind:    KindFloat,
			BitSize: v.BitSize,
			Values:  v.Data,
		})
	}
	years := make([]float64, rows)
	for i := range years {
		years[i] = float64(year)
	}
	cols = append(cols, Column{Name: YearColumn, Kind: KindInt, BitSize: 64, Values: years})

	return &Table{Columns: cols}, nil
}

// broadcastIndex maps every row of the grid over dims to the flat index of
// a's value for that row. a.Dims must be a subset of dims, in any order.
func broadcastIndex(a *AuxCoordinate, dims []string, shape []int) ([]int, error) {
	axes := make([]int, len(a.Dims))
	for k, d := range a.Dims {
		axes[k] = slices.Index(dims, d)
		if axes[k] < 0 {
			return nil, fmt.Errorf("coordinate %s%v is not defined on %v: %w", a.Name, a.Dims, dims, ErrShapeMismatch)
		}
	}
	strides := make([]int, len(a.Dims))
	stride := 1
	for k := len(a.Dims) - 1; k >= 0; k-- {
		strides[k] = stride
		stride *= shape[axes[k]]
	}
	if stride != a.Len() {
		return nil, fmt.Errorf("coordinate %s: %w: %d values, want %d", a.Name, ErrShapeMismatch, a.Len(), stride)
	}

	rows := product(shape)
	out := make([]int, rows)
	pos := make([]int, len(shape))
	for r := range rows {
		for k, axis := range axes {
			out[r] += pos[axis] * strides[k]
		}
		for axis := len(shape) - 1; axis >= 0; axis-- {
			pos[axis]++
			if pos[axis] < shape[axis] {
				break
			}
			pos[axis] = 0
		}
	}
	return out, nil
}

func auxColumn(a *AuxCoordinate, idx []int) Column {
	if a.IsString() {
		strs := make([]string, len(idx))
		for r, i := range idx {
			strs[r] = a.Strings[i]
		}
		return Column{Name: a.Name, Kind: KindString, Strings: strs}
	}
	kind := KindFloat
	if a.Time {
		kind = KindTime
	}
	vals := make([]float64, len(idx))
	for r, i := range idx {
		vals[r] = a.Values[i]
	}
	return Column{Name: a.Name, Kind: kind, BitSize: a.BitSize, Values: vals}
}

// expandCoordinate repeats the coordinate of axis so that row r holds the
// coordinate value of r's index along that axis.
func expandCoordinate(values []float64, shape []int, axis int) []float64 {
	inner := product(shape[axis+1:])
	outer := product(shape[:axis])
	out := make([]float64, 0, outer*len(values)*inner)
	for range outer {
		for _, v := range values {
			for range inner {
				out = append(out, v)
			}
		}
	}
	return out
}

// Concat appends the rows of tables in order. Every table must have the same
// column names in the same order, with matching kinds.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}
	names := tables[0].ColumnNames()
	total := 0
	for i, t := range tables {
		if got := t.ColumnNames(); !slices.Equal(names, got) {
			return nil, fmt.Errorf("concat table %d: %w: got %v, want %v", i, ErrColumnMismatch, got, names)
		}
		for j, c := range t.Columns {
			if want := tables[0].Columns[j].Kind; (c.Kind == KindString) != (want == KindString) {
				return nil, fmt.Errorf("concat table %d: %w: column %s mixes text and numbers", i, ErrColumnMismatch, c.Name)
			}
		}
		total += t.Len()
	}

	cols := make([]Column, len(names))
	for j, c := range tables[0].Columns {
		cols[j] = Column{Name: c.Name, Kind: c.Kind, BitSize: c.BitSize}
		if c.Kind == KindString {
			cols[j].Strings = make([]string, 0, total)
		} else {
			cols[j].Values = make([]float64, 0, total)
		}
	}
	for _, t := range tables {
		for j, c := range t.Columns {
			cols[j].Values = append(cols[j].Values, c.Values...)
			cols[j].Strings = append(cols[j].Strings, c.Strings...)
		}
	}
	return &Table{Columns: cols}, nil
}
