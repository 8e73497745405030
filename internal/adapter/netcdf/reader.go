package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	gonetcdf "github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

// RawFileName is the CDS file name of the instantaneous ERA5 stream.
const RawFileName = "data_stream-oper_stepType-instant.nc"

// Reader loads raw yearly ERA5 files laid out as <root>/<year>/RawFileName.
// It implements pipeline.Extractor.
type Reader struct {
	root   string
	logger *slog.Logger
}

// NewReader creates a Reader rooted at the raw data directory.
func NewReader(root string, logger *slog.Logger) *Reader {
	return &Reader{root: root, logger: logger}
}

// Path returns the raw file path for year.
func (r *Reader) Path(year int) string {
	return filepath.Join(r.root, strconv.Itoa(year), RawFileName)
}

// Extract reads the required ERA5 variables for year. All of them must be
// defined on the same dimensions.
func (r *Reader) Extract(ctx context.Context, year int) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := r.Path(year)
	ds, err := ReadFile(path, domain.RequiredVariables...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := ds.CommonDims(domain.RequiredVariables...); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	r.logger.Info("era5 file loaded", append([]any{"year", year, "path", path}, summary(ds)...)...)
	return ds, nil
}

// summary describes the grid of ds for logging.
func summary(ds *domain.Dataset) []any {
	dims := make([]string, 0, len(ds.Coords))
	cells := 1
	for _, c := range ds.Coords {
		dims = append(dims, fmt.Sprintf("%s=%d", c.Name, c.Len()))
		cells *= c.Len()
	}
	aux := make([]string, 0, len(ds.Aux))
	for _, a := range ds.Aux {
		aux = append(aux, a.Name)
	}
	return []any{
		"dims", dims,
		"aux_coords", aux,
		"variables", ds.VarNames(),
		"cells", cells,
	}
}

// ReadFile decodes the named variables of a NetCDF classic or NetCDF-4 file,
// together with the coordinate variables of their dimensions and the
// auxiliary coordinates defined on those dimensions. With no names, every
// data variable is read.
func ReadFile(path string, names ...string) (*domain.Dataset, error) {
	g, err := gonetcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	l, err := classify(g)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = l.data
	}

	ds := &domain.Dataset{Attrs: convertAttrs(g.Attributes())}
	for _, name := range names {
		vg, err := g.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", name, domain.ErrMissingVariable, err)
		}
		v, shape, err := readVariable(name, vg)
		if err != nil {
			return nil, err
		}
		v.Attrs.Delete("coordinates")
		if err := addCoords(g, ds, v.Dims, shape); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := ds.SetVar(v); err != nil {
			return nil, err
		}
	}

	for _, name := range l.aux {
		if err := addAux(g, ds, name); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// DataVariables lists the variables of a file that are neither dimension
// nor auxiliary coordinates.
func DataVariables(path string) ([]string, error) {
	g, err := gonetcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer g.Close()
	l, err := classify(g)
	if err != nil {
		return nil, err
	}
	return l.data, nil
}

// layout splits the variables of a file, in file order, into data variables
// and auxiliary coordinates. Auxiliary coordinates are scalars and variables
// named by a "coordinates" attribute. Dimension coordinates are in neither.
type layout struct {
	data []string
	aux  []string
}

func classify(g api.Group) (layout, error) {
	names := g.ListVariables()
	dims := make(map[string][]string, len(names))
	referenced := make(map[string]bool)
	for _, name := range names {
		vg, err := g.GetVarGetter(name)
		if err != nil {
			return layout{}, fmt.Errorf("%s: %w", name, err)
		}
		dims[name] = vg.Dimensions()
		attrs := convertAttrs(vg.Attributes())
		for _, c := range strings.Fields(attrs.String("coordinates")) {
			referenced[c] = true
		}
	}

	var l layout
	for _, name := range names {
		d := dims[name]
		switch {
		case len(d) == 1 && d[0] == name:
		case len(d) == 0 || referenced[name]:
			l.aux = append(l.aux, name)
		default:
			l.data = append(l.data, name)
		}
	}
	return l, nil
}

// addAux reads the auxiliary coordinate name into ds when all of its
// dimensions are dimensions of ds. Coordinates of other dimensions do not
// apply to the variables read and are skipped.
func addAux(g api.Group, ds *domain.Dataset, name string) error {
	vg, err := g.GetVarGetter(name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	values, err := vg.Values()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	dims := vg.Dimensions()
	attrs := convertAttrs(vg.Attributes())
	attrs.Delete("coordinates")

	a := &domain.AuxCoordinate{Name: name, Attrs: attrs}
	if strs, shape, ok := flattenStrings(values); ok {
		// Char arrays carry the string length as their last dimension.
		if len(dims) == len(shape)+1 {
			dims = dims[:len(shape)]
		}
		a.Strings = strs
	} else {
		data, shape, bits, err := flatten(values)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if len(dims) != len(shape) {
			return fmt.Errorf("%s: %w: %d dimensions for rank %d values", name, domain.ErrShapeMismatch, len(dims), len(shape))
		}
		a.Values = data
		a.BitSize = unpack(data, &a.Attrs, bits)
		if decodeTime(a.Values, &a.Attrs) {
			a.Time, a.BitSize = true, 64
		}
	}

	for _, d := range dims {
		if _, ok := ds.Coord(d); !ok {
			return nil
		}
	}
	a.Dims = dims
	return ds.SetAux(a)
}

func readVariable(name string, vg api.VarGetter) (*domain.Variable, []int, error) {
	values, err := vg.Values()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	data, shape, bits, err := flatten(values)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	dims := vg.Dimensions()
	if len(dims) != len(shape) {
		return nil, nil, fmt.Errorf("%s: %w: %d dimensions for rank %d values", name, domain.ErrShapeMismatch, len(dims), len(shape))
	}
	attrs := convertAttrs(vg.Attributes())
	bits = unpack(data, &attrs, bits)
	return &domain.Variable{
		Name:    name,
		Dims:    dims,
		Data:    data,
		Attrs:   attrs,
		BitSize: bits,
	}, shape, nil
}

// addCoords loads the coordinate of every dimension in dims that ds does not
// have yet. Dimensions without a coordinate variable get a 0..n-1 index.
func addCoords(g api.Group, ds *domain.Dataset, dims []string, shape []int) error {
	for i, dim := range dims {
		if c, ok := ds.Coord(dim); ok {
			if c.Len() != shape[i] {
				return fmt.Errorf("%w: dimension %s has length %d, want %d", domain.ErrShapeMismatch, dim, shape[i], c.Len())
			}
			continue
		}
		c, err := readCoordinate(g, dim, shape[i])
		if err != nil {
			return err
		}
		ds.Coords = append(ds.Coords, c)
	}
	return nil
}

func readCoordinate(g api.Group, dim string, size int) (*domain.Coordinate, error) {
	vg, err := g.GetVarGetter(dim)
	if err != nil {
		values := make([]float64, size)
		for i := range values {
			values[i] = float64(i)
		}
		return &domain.Coordinate{Name: dim, Values: values, BitSize: 64}, nil
	}
	v, shape, err := readVariable(dim, vg)
	if err != nil {
		return nil, err
	}
	if len(shape) != 1 || shape[0] != size {
		return nil, fmt.Errorf("%w: coordinate %s has shape %v, want [%d]", domain.ErrShapeMismatch, dim, shape, size)
	}
	c := &domain.Coordinate{Name: dim, Values: v.Data, Attrs: v.Attrs, BitSize: v.BitSize}
	c.Attrs.Delete("coordinates")
	if decodeTime(c.Values, &c.Attrs) {
		c.Time, c.BitSize = true, 64
	}
	return c, nil
}
