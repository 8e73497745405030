package domain

import (
	"fmt"
	"slices"
)

// Attribute is a single NetCDF attribute. Values are Go scalars or slices
// exactly as the netcdf adapter reads or writes them.
type Attribute struct {
	Name  string
	Value any
}

// Attributes is an ordered attribute list.
type Attributes []Attribute

// Get returns the value of the named attribute.
func (a Attributes) Get(name string) (any, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// String returns the named attribute if it holds a string.
func (a Attributes) String(name string) string {
	v, ok := a.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Set replaces the named attribute or appends it.
func (a *Attributes) Set(name string, value any) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attribute{Name: name, Value: value})
}

// Delete removes the named attribute if present.
func (a *Attributes) Delete(name string) {
	*a = slices.DeleteFunc(*a, func(attr Attribute) bool { return attr.Name == name })
}

// Coordinate is a dimension together with its coordinate values.
type Coordinate struct {
	Name   string
	Values []float64
	Attrs  Attributes

	// BitSize is the float precision used when writing the coordinate (32 or 64).
	BitSize int

	// Time marks a CF time axis. Values are seconds since the Unix epoch.
	Time bool
}

// Len returns the dimension size.
func (c *Coordinate) Len() int { return len(c.Values) }

// AuxCoordinate is a non-dimension coordinate, such as the scalar ensemble
// "number" or the per-time "expver" of CDS downloads. Dims may be empty for a
// scalar. Exactly one of Values and Strings holds the data, row-major over Dims.
type AuxCoordinate struct {
	Name    string
	Dims    []string
	Values  []float64
	Strings []string
	Attrs   Attributes
	BitSize int
	Time    bool
}

// IsString reports whether the coordinate holds text labels.
func (a *AuxCoordinate) IsString() bool { return a.Strings != nil }

// Len returns the number of stored values.
func (a *AuxCoordinate) Len() int {
	if a.IsString() {
		return len(a.Strings)
	}
	return len(a.Values)
}

// Variable is a gridded field stored flat in row-major order over Dims.
type Variable struct {
	Name  string
	Dims  []string
	Data  []float64
	Attrs Attributes

	// BitSize is the float precision used when writing the variable (32 or 64).
	BitSize int
}

// Dataset is an in-memory collection of variables sharing dimension coordinates.
type Dataset struct {
	Coords []*Coordinate
	Aux    []*AuxCoordinate
	Vars   []*Variable
	Attrs  Attributes
}

// Coord returns the coordinate for the named dimension.
func (ds *Dataset) Coord(name string) (*Coordinate, bool) {
	for _, c := range ds.Coords {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// AuxCoord returns the named auxiliary coordinate.
func (ds *Dataset) AuxCoord(name string) (*AuxCoordinate, bool) {
	for _, a := range ds.Aux {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Var returns the named variable.
func (ds *Dataset) Var(name string) (*Variable, bool) {
	for _, v := range ds.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// VarNames lists variable names in dataset order.
func (ds *Dataset) VarNames() []string {
	names := make([]string, len(ds.Vars))
	for i, v := range ds.Vars {
		names[i] = v.Name
	}
	return names
}

// Shape returns the sizes of the given dimensions.
func (ds *Dataset) Shape(dims []string) ([]int, error) {
	shape := make([]int, len(dims))
	for i, d := range dims {
		c, ok := ds.Coord(d)
		if !ok {
			return nil, fmt.Errorf("dimension %q has no coordinate", d)
		}
		shape[i] = c.Len()
	}
	return shape, nil
}

// SetVar adds v, replacing any variable with the same name. The variable's
// length must match its dimensions.
func (ds *Dataset) SetVar(v *Variable) error {
	shape, err := ds.Shape(v.Dims)
	if err != nil {
		return fmt.Errorf("variable %s: %w", v.Name, err)
	}
	if n := product(shape); n != len(v.Data) {
		return fmt.Errorf("variable %s: %w: %d values for dimensions %v of size %d",
			v.Name, ErrShapeMismatch, len(v.Data), v.Dims, n)
	}
	for i, existing := range ds.Vars {
		if existing.Name == v.Name {
			ds.Vars[i] = v
			return nil
		}
	}
	ds.Vars = append(ds.Vars, v)
	return nil
}

// SetAux adds a, replacing any auxiliary coordinate with the same name. Its
// dimensions must be dimension coordinates of ds and its length must match them.
func (ds *Dataset) SetAux(a *AuxCoordinate) error {
	shape, err := ds.Shape(a.Dims)
	if err != nil {
		return fmt.Errorf("coordinate %s: %w", a.Name, err)
	}
	if n := product(shape); n != a.Len() {
		return fmt.Errorf("coordinate %s: %w: %d values for dimensions %v of size %d",
			a.Name, ErrShapeMismatch, a.Len(), a.Dims, n)
	}
	for i, existing := range ds.Aux {
		if existing.Name == a.Name {
			ds.Aux[i] = a
			return nil
		}
	}
	ds.Aux = append(ds.Aux, a)
	return nil
}

// CommonDims returns the dimensions shared by the named variables. Every
// variable must exist and all must be defined on identical dimensions.
func (ds *Dataset) CommonDims(names ...string) ([]string, error) {
	var first *Variable
	for _, name := range names {
		v, ok := ds.Var(name)
		if !ok {
			return nil, fmt.Errorf("%s: %w", name, ErrMissingVariable)
		}
		if first == nil {
			first = v
			continue
		}
		if !slices.Equal(first.Dims, v.Dims) {
			return nil, fmt.Errorf("%s%v and %s%v: %w", first.Name, first.Dims, v.Name, v.Dims, ErrShapeMismatch)
		}
	}
	if first == nil {
		return nil, nil
	}
	return first.Dims, nil
}

// Select returns a dataset holding only the named variables, in the given
// order, the dimension coordinates they use and the auxiliary coordinates
// defined on those dimensions. Variables are shared, not copied.
func (ds *Dataset) Select(names ...string) (*Dataset, error) {
	out := &Dataset{Attrs: slices.Clone(ds.Attrs)}
	used := make(map[string]bool)
	for _, name := range names {
		v, ok := ds.Var(name)
		if !ok {
			return nil, fmt.Errorf("select %s: %w", name, ErrMissingVariable)
		}
		out.Vars = append(out.Vars, v)
		for _, d := range v.Dims {
			used[d] = true
		}
	}
	for _, c := range ds.Coords {
		if used[c.Name] {
			out.Coords = append(out.Coords, c)
		}
	}
	for _, a := range ds.Aux {
		if !slices.ContainsFunc(a.Dims, func(d string) bool { return !used[d] }) {
			out.Aux = append(out.Aux, a)
		}
	}
	return out, nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
