package netcdf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

// ProcessedFileName is the per-year output file name.
const ProcessedFileName = "era5_processed.nc"

const (
	epochUnits    = "seconds since 1970-01-01 00:00:00"
	epochCalendar = "proleptic_gregorian"
)

// Writer persists processed yearly datasets as <root>/<year>/ProcessedFileName.
// It implements pipeline.YearLoader.
type Writer struct {
	root   string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at the output directory.
func NewWriter(root string, logger *slog.Logger) *Writer {
	return &Writer{root: root, logger: logger}
}

// Path returns the processed file path for year.
func (w *Writer) Path(year int) string {
	return filepath.Join(w.root, strconv.Itoa(year), ProcessedFileName)
}

// LoadYear writes ds to the processed file for year, replacing any previous file.
func (w *Writer) LoadYear(ctx context.Context, year int, ds *domain.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := w.Path(year)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := WriteFile(path, ds); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.logger.Info("processed file written", "year", year, "path", path, "variables", ds.VarNames())
	return nil
}

// WriteFile encodes ds as a NetCDF classic file. Dimension coordinates are
// written first, then auxiliary coordinates, then variables in dataset order.
// Each variable lists the auxiliary coordinates that apply to it in its
// "coordinates" attribute.
func WriteFile(path string, ds *domain.Dataset) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return err
	}
	if err := addAll(cw, ds); err != nil {
		cw.Close() //nolint:errcheck // the encoding error is more useful
		return err
	}
	return cw.Close()
}

// varWriter is the subset of the CDF writer used to encode a dataset.
type varWriter interface {
	AddGlobalAttrs(attrs api.AttributeMap) error
	AddVar(name string, v api.Variable) error
}

func addAll(cw varWriter, ds *domain.Dataset) error {
	if len(ds.Attrs) > 0 {
		attrs, err := attributeMap(ds.Attrs)
		if err != nil {
			return err
		}
		if err := cw.AddGlobalAttrs(attrs); err != nil {
			return fmt.Errorf("global attributes: %w", err)
		}
	}

	for _, c := range ds.Coords {
		v, err := coordinateVariable(c)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
		if err := cw.AddVar(c.Name, v); err != nil {
			return fmt.Errorf("%s: %w", c.Name, err)
		}
	}

	for _, a := range ds.Aux {
		v, err := auxVariable(ds, a)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
		if err := cw.AddVar(a.Name, v); err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
	}

	for _, v := range ds.Vars {
		shape, err := ds.Shape(v.Dims)
		if err != nil {
			return fmt.Errorf("%s: %w", v.Name, err)
		}
		attrs, err := attributeMap(withCoordinates(v, ds.Aux))
		if err != nil {
			return fmt.Errorf("%s: %w", v.Name, err)
		}
		err = cw.AddVar(v.Name, api.Variable{
			Values:     reshape(v.Data, shape, v.BitSize),
			Dimensions: v.Dims,
			Attributes: attrs,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", v.Name, err)
		}
	}
	return nil
}

func coordinateVariable(c *domain.Coordinate) (api.Variable, error) {
	attrs, bits := coordinateAttrs(c.Attrs, c.Time, c.BitSize)
	m, err := attributeMap(attrs)
	if err != nil {
		return api.Variable{}, err
	}
	return api.Variable{
		Values:     reshape(c.Values, []int{len(c.Values)}, bits),
		Dimensions: []string{c.Name},
		Attributes: m,
	}, nil
}

// auxVariable encodes an auxiliary coordinate. Text coordinates become char
// arrays padded to their longest label, with a trailing string-length dimension.
func auxVariable(ds *domain.Dataset, a *domain.AuxCoordinate) (api.Variable, error) {
	shape, err := ds.Shape(a.Dims)
	if err != nil {
		return api.Variable{}, err
	}
	attrs, bits := coordinateAttrs(a.Attrs, a.Time, a.BitSize)
	m, err := attributeMap(attrs)
	if err != nil {
		return api.Variable{}, err
	}
	if !a.IsString() {
		return api.Variable{
			Values:     reshape(a.Values, shape, bits),
			Dimensions: a.Dims,
			Attributes: m,
		}, nil
	}

	width := 1
	for _, s := range a.Strings {
		width = max(width, len(s))
	}
	padded := make([]string, len(a.Strings))
	for i, s := range a.Strings {
		padded[i] = s + strings.Repeat(" ", width-len(s))
	}
	return api.Variable{
		Values:     reshapeStrings(padded, shape),
		Dimensions: append(slices.Clone(a.Dims), "string"+strconv.Itoa(width)),
		Attributes: m,
	}, nil
}

// coordinateAttrs returns the attributes to write for a coordinate and its
// precision. A "coordinates" attribute copied from the source is dropped.
func coordinateAttrs(src domain.Attributes, isTime bool, bitSize int) (domain.Attributes, int) {
	attrs := slices.Clone(src)
	attrs.Delete("coordinates")
	if isTime {
		attrs.Set("units", epochUnits)
		attrs.Set("calendar", epochCalendar)
		bitSize = 64
	}
	return attrs, bitSize
}

// withCoordinates returns the attributes of v with "coordinates" naming the
// auxiliary coordinates defined on v's dimensions, or without it when none are.
func withCoordinates(v *domain.Variable, aux []*domain.AuxCoordinate) domain.Attributes {
	attrs := slices.Clone(v.Attrs)
	attrs.Delete("coordinates")
	var names []string
	for _, a := range aux {
		if !slices.ContainsFunc(a.Dims, func(d string) bool { return !slices.Contains(v.Dims, d) }) {
			names = append(names, a.Name)
		}
	}
	if len(names) > 0 {
		attrs.Set("coordinates", strings.Join(names, " "))
	}
	return attrs
}

// reshape builds the nested slices the CDF writer expects for shape, using
// float32 elements when bitSize is 32 and float64 otherwise.
func reshape(data []float64, shape []int, bitSize int) any {
	elem := reflect.TypeFor[float64]()
	if bitSize == 32 {
		elem = reflect.TypeFor[float32]()
	}
	if len(shape) == 0 {
		return reflect.ValueOf(data[0]).Convert(elem).Interface()
	}
	return build(data, shape, elem).Interface()
}

// reshapeStrings nests strs into []string slices for shape, or returns a
// single string when shape is empty.
func reshapeStrings(strs []string, shape []int) any {
	if len(shape) == 0 {
		return strs[0]
	}
	return buildStrings(strs, shape).Interface()
}

func buildStrings(strs []string, shape []int) reflect.Value {
	t := reflect.TypeFor[string]()
	for range shape {
		t = reflect.SliceOf(t)
	}
	s := reflect.MakeSlice(t, shape[0], shape[0])
	if len(shape) == 1 {
		for i := range shape[0] {
			s.Index(i).SetString(strs[i])
		}
		return s
	}
	stride := product(shape[1:])
	for i := range shape[0] {
		s.Index(i).Set(buildStrings(strs[i*stride:(i+1)*stride], shape[1:]))
	}
	return s
}

func build(data []float64, shape []int, elem reflect.Type) reflect.Value {
	t := elem
	for range shape {
		t = reflect.SliceOf(t)
	}
	s := reflect.MakeSlice(t, shape[0], shape[0])
	if len(shape) == 1 {
		for i := range shape[0] {
			s.Index(i).SetFloat(data[i])
		}
		return s
	}
	stride := product(shape[1:])
	for i := range shape[0] {
		s.Index(i).Set(build(data[i*stride:(i+1)*stride], shape[1:], elem))
	}
	return s
}

// attributeMap converts attributes to the writer's ordered map, narrowing
// values to types NetCDF classic can store. Unsupported values are skipped.
func attributeMap(attrs domain.Attributes) (api.AttributeMap, error) {
	keys := make([]string, 0, len(attrs))
	vals := make(map[string]any, len(attrs))
	for _, a := range attrs {
		v, ok := classicValue(a.Value)
		if !ok {
			continue
		}
		if _, dup := vals[a.Name]; !dup {
			keys = append(keys, a.Name)
		}
		vals[a.Name] = v
	}
	return util.NewOrderedMap(keys, vals)
}

func classicValue(v any) (any, bool) {
	switch x := v.(type) {
	case string, int8, int16, int32, float32, float64,
		[]int8, []int16, []int32, []float32, []float64:
		return x, true
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}
	if rv.Kind() == reflect.Slice {
		if _, err := bitSize(rv.Type().Elem().Kind()); err != nil {
			return nil, false
		}
		out := make([]float64, rv.Len())
		for i := range out {
			out[i] = scalarFloat(rv.Index(i))
		}
		return out, true
	}
	if _, err := bitSize(rv.Kind()); err != nil {
		return nil, false
	}
	f := scalarFloat(rv)
	if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
		return int32(f), true
	}
	return f, true
}
