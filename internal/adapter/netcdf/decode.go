package netcdf

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

// Attributes consumed while unpacking. They describe the on-disk encoding and
// are dropped from the decoded variable.
var packingAttrs = []string{"_FillValue", "missing_value", "scale_factor", "add_offset"}

// flatten converts the nested slices returned by a VarGetter into a flat
// row-major []float64, its shape and the float precision to keep when writing.
func flatten(values any) ([]float64, []int, int, error) {
	rv := reflect.ValueOf(values)
	if !rv.IsValid() {
		return nil, nil, 0, errors.New("no values")
	}

	var shape []int
	elem := rv.Type()
	for v := rv; elem.Kind() == reflect.Slice; elem = elem.Elem() {
		n := 0
		if v.IsValid() {
			n = v.Len()
		}
		shape = append(shape, n)
		if n > 0 {
			v = v.Index(0)
		} else {
			v = reflect.Value{}
		}
	}

	bits, err := bitSize(elem.Kind())
	if err != nil {
		return nil, nil, 0, err
	}

	out := make([]float64, 0, product(shape))
	var walk func(v reflect.Value, depth int) error
	walk = func(v reflect.Value, depth int) error {
		if depth == len(shape) {
			out = append(out, scalarFloat(v))
			return nil
		}
		if v.Len() != shape[depth] {
			return fmt.Errorf("ragged array: axis %d has length %d, want %d", depth, v.Len(), shape[depth])
		}
		for i := range v.Len() {
			if err := walk(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, 0, err
	}
	return out, shape, bits, nil
}

func bitSize(k reflect.Kind) (int, error) {
	switch k {
	case reflect.Float32, reflect.Int8, reflect.Int16, reflect.Uint8, reflect.Uint16:
		return 32, nil
	case reflect.Float64, reflect.Int32, reflect.Int64, reflect.Int, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return 64, nil
	default:
		return 0, fmt.Errorf("unsupported element type %s", k)
	}
}

func scalarFloat(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return float64(v.Int())
	default:
		return float64(v.Uint())
	}
}

// attrFloat reads a numeric attribute. CDF attributes are arrays, so a
// single-element slice is accepted as a scalar.
func attrFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, false
	}
	if rv.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return 0, false
		}
		rv = rv.Index(0)
	}
	if _, err := bitSize(rv.Kind()); err != nil {
		return 0, false
	}
	return scalarFloat(rv), true
}

func attrBits(v any) int {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		rv = reflect.New(rv.Type().Elem()).Elem()
	}
	if bits, err := bitSize(rv.Kind()); err == nil {
		return bits
	}
	return 64
}

// unpack applies CF packing conventions in place: raw values equal to
// _FillValue or missing_value become NaN, the rest are scaled by
// scale_factor and shifted by add_offset. It returns the precision of the
// unpacked values and drops the packing attributes.
func unpack(data []float64, attrs *domain.Attributes, rawBits int) int {
	var fills []float64
	for _, name := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrs.Get(name); ok {
			if f, ok := attrFloat(v); ok {
				fills = append(fills, f)
			}
		}
	}

	scale, offset := 1.0, 0.0
	packed := false
	bits := rawBits
	if v, ok := attrs.Get("scale_factor"); ok {
		if f, ok := attrFloat(v); ok {
			scale, packed, bits = f, true, attrBits(v)
		}
	}
	if v, ok := attrs.Get("add_offset"); ok {
		if f, ok := attrFloat(v); ok {
			offset, packed = f, true
			bits = max(bits, attrBits(v))
		}
	}

	for i, x := range data {
		if isFill(x, fills) {
			data[i] = math.NaN()
			continue
		}
		if packed {
			data[i] = x*scale + offset
		}
	}

	for _, name := range packingAttrs {
		attrs.Delete(name)
	}
	return bits
}

func isFill(x float64, fills []float64) bool {
	for _, f := range fills {
		if x == f {
			return true
		}
	}
	return false
}

func convertAttrs(m api.AttributeMap) domain.Attributes {
	if m == nil {
		return nil
	}
	keys := m.Keys()
	attrs := make(domain.Attributes, 0, len(keys))
	for _, k := range keys {
		v, ok := m.Get(k)
		if !ok {
			continue
		}
		attrs = append(attrs, domain.Attribute{Name: k, Value: v})
	}
	return attrs
}

var timeUnitsRe = regexp.MustCompile(`^\s*(\w+)\s+since\s+(.+?)\s*$`)

var referenceLayouts = []string{
	"2006-1-2 15:4:5",
	"2006-1-2T15:4:5",
	"2006-1-2 15:4",
	"2006-1-2",
}

// parseTimeUnits parses CF time units such as "hours since 1900-01-01
// 00:00:00.0" into the length of one step in seconds and the reference time.
func parseTimeUnits(units string) (float64, time.Time, bool) {
	m := timeUnitsRe.FindStringSubmatch(units)
	if m == nil {
		return 0, time.Time{}, false
	}

	var step float64
	switch strings.ToLower(m[1]) {
	case "seconds", "second", "secs", "sec", "s":
		step = 1
	case "minutes", "minute", "mins", "min":
		step = 60
	case "hours", "hour", "hrs", "hr", "h":
		step = 3600
	case "days", "day", "d":
		step = 86400
	default:
		return 0, time.Time{}, false
	}

	ref := strings.TrimSpace(m[2])
	ref = strings.TrimSuffix(ref, "UTC")
	ref = strings.TrimSuffix(ref, "Z")
	ref = strings.TrimSpace(ref)
	for _, layout := range referenceLayouts {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return step, t, true
		}
	}
	return 0, time.Time{}, false
}

// decodeTime converts values with CF time units to seconds since the Unix
// epoch and drops the units and calendar attributes. It reports false when
// the units are not CF time units.
func decodeTime(values []float64, attrs *domain.Attributes) bool {
	step, ref, ok := parseTimeUnits(attrs.String("units"))
	if !ok {
		return false
	}
	epoch := float64(ref.Unix())
	for i, v := range values {
		values[i] = epoch + v*step
	}
	attrs.Delete("units")
	attrs.Delete("calendar")
	return true
}

// flattenStrings converts text values (a string or nested string slices) to a
// flat row-major []string and its shape. It reports false for other types.
func flattenStrings(values any) ([]string, []int, bool) {
	rv := reflect.ValueOf(values)
	if !rv.IsValid() {
		return nil, nil, false
	}
	var shape []int
	elem := rv.Type()
	for v := rv; elem.Kind() == reflect.Slice; elem = elem.Elem() {
		n := 0
		if v.IsValid() {
			n = v.Len()
		}
		shape = append(shape, n)
		if n > 0 {
			v = v.Index(0)
		} else {
			v = reflect.Value{}
		}
	}
	if elem.Kind() != reflect.String {
		return nil, nil, false
	}

	out := make([]string, 0, product(shape))
	var walk func(v reflect.Value)
	walk = func(v reflect.Value) {
		if v.Kind() == reflect.String {
			out = append(out, strings.TrimRight(v.String(), "\x00 "))
			return
		}
		for i := range v.Len() {
			walk(v.Index(i))
		}
	}
	walk(rv)
	if len(out) != product(shape) {
		return nil, nil, false
	}
	return out, shape, true
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
