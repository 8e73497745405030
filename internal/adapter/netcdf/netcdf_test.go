package netcdf

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeRaw writes a synthetic raw ERA5 file for year under root.
func writeRaw(t *testing.T, root string, year int, grid domain.SyntheticGrid) *domain.Dataset {
	t.Helper()
	ds := domain.SyntheticDataset(year, grid)
	path := NewReader(root, discardLogger()).Path(year)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, WriteFile(path, ds))
	return ds
}

func TestWriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	want := writeRaw(t, root, 2016, domain.SyntheticGrid{Times: 2, Lats: 3, Lons: 4})

	got, err := ReadFile(filepath.Join(root, "2016", RawFileName), domain.RequiredVariables...)
	require.NoError(t, err)

	assert.Equal(t, domain.RequiredVariables, got.VarNames())
	require.Len(t, got.Coords, 3)
	for i, c := range got.Coords {
		assert.Equal(t, want.Coords[i].Name, c.Name)
		assert.Equal(t, want.Coords[i].Values, c.Values, c.Name)
	}
	vt, _ := got.Coord("valid_time")
	assert.True(t, vt.Time)
	assert.Equal(t, float64(time.Date(2016, 1, 1, 1, 0, 0, 0, time.UTC).Unix()), vt.Values[1])

	for _, name := range domain.RequiredVariables {
		w, _ := want.Var(name)
		g, ok := got.Var(name)
		require.True(t, ok, name)
		assert.Equal(t, []string{"valid_time", "latitude", "longitude"}, g.Dims)
		assert.Equal(t, 32, g.BitSize, name)
		if diff := cmp.Diff(w.Data, g.Data); diff != "" {
			t.Errorf("%s data mismatch (-want +got):\n%s", name, diff)
		}
	}
	assert.Equal(t, "CF-1.7", got.Attrs.String("Conventions"))
}

func TestReadFile_MissingVariable(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, 2017, domain.SyntheticGrid{Times: 1, Lats: 2, Lons: 2})

	_, err := ReadFile(filepath.Join(root, "2017", RawFileName), "sp")
	require.ErrorIs(t, err, domain.ErrMissingVariable)
}

func TestReader_Extract(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, 2018, domain.SyntheticGrid{Times: 1, Lats: 2, Lons: 2})
	r := NewReader(root, discardLogger())

	ds, err := r.Extract(context.Background(), 2018)
	require.NoError(t, err)
	assert.Len(t, ds.Vars, len(domain.RequiredVariables))

	_, err = r.Extract(context.Background(), 2016)
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join(root, "2016", RawFileName))
}

func TestReader_ExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader(t.TempDir(), discardLogger()).Extract(ctx, 2016)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriter_LoadYear_ExactlyRetainedVariables(t *testing.T) {
	root := t.TempDir()
	ds := domain.SyntheticDataset(2016, domain.SyntheticGrid{Times: 1, Lats: 2, Lons: 2})
	require.NoError(t, domain.Derive(ds))
	selected, err := ds.Select(domain.RetainedVariables...)
	require.NoError(t, err)

	w := NewWriter(root, discardLogger())
	require.NoError(t, w.LoadYear(context.Background(), 2016, selected))

	path := filepath.Join(root, strconv.Itoa(2016), ProcessedFileName)
	assert.Equal(t, path, w.Path(2016))

	names, err := DataVariables(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, domain.RetainedVariables, names)

	back, err := ReadFile(path)
	require.NoError(t, err)
	t2m, _ := back.Var(domain.VarT2M)
	assert.Equal(t, "degC", t2m.Attrs.String("units"))
	rh, _ := back.Var(domain.VarRH)
	orig, _ := selected.Var(domain.VarRH)
	for i := range rh.Data {
		assert.InDelta(t, orig.Data[i], rh.Data[i], 1e-4)
	}
	assert.Contains(t, back.Attrs.String("history"), "derived wind_speed, rh, vpd")
}

func TestWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.nc")
	ds := domain.SyntheticDataset(2016, domain.SyntheticGrid{Times: 1, Lats: 1, Lons: 1})
	require.NoError(t, WriteFile(path, ds))

	small, err := ds.Select(domain.VarU10)
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, small))

	names, err := DataVariables(path)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.VarU10}, names)
}

func TestFlattenValues(t *testing.T) {
	t.Run("rank 3 float32", func(t *testing.T) {
		data, shape, bits, err := flatten([][][]float32{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 2, 2}, shape)
		assert.Equal(t, 32, bits)
		assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, data)
	})

	t.Run("int64 vector", func(t *testing.T) {
		data, shape, bits, err := flatten([]int64{1451606400, 1451610000})
		require.NoError(t, err)
		assert.Equal(t, []int{2}, shape)
		assert.Equal(t, 64, bits)
		assert.Equal(t, []float64{1451606400, 1451610000}, data)
	})

	t.Run("scalar", func(t *testing.T) {
		data, shape, _, err := flatten(int16(7))
		require.NoError(t, err)
		assert.Empty(t, shape)
		assert.Equal(t, []float64{7}, data)
	})

	t.Run("ragged", func(t *testing.T) {
		_, _, _, err := flatten([][]float64{{1, 2}, {3}})
		require.Error(t, err)
	})

	t.Run("strings", func(t *testing.T) {
		_, _, _, err := flatten([]string{"0001"})
		require.Error(t, err)
	})
}

func TestReshapeRoundTrip(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}
	nested := reshape(data, []int{3, 2}, 32)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}, {5, 6}}, nested)

	back, shape, bits, err := flatten(nested)
	require.NoError(t, err)
	assert.Equal(t, data, back)
	assert.Equal(t, []int{3, 2}, shape)
	assert.Equal(t, 32, bits)

	assert.Equal(t, 2.5, reshape([]float64{2.5}, nil, 64))
}

func TestUnpack(t *testing.T) {
	t.Run("packed int16", func(t *testing.T) {
		attrs := domain.Attributes{
			{Name: "scale_factor", Value: 0.5},
			{Name: "add_offset", Value: 270.0},
			{Name: "_FillValue", Value: int16(-32767)},
			{Name: "missing_value", Value: []int16{-32767}},
			{Name: "units", Value: "K"},
		}
		data := []float64{0, 10, -32767, -4}

		bits := unpack(data, &attrs, 32)

		assert.Equal(t, 64, bits)
		assert.Equal(t, 270.0, data[0])
		assert.Equal(t, 275.0, data[1])
		assert.True(t, math.IsNaN(data[2]))
		assert.Equal(t, 268.0, data[3])
		assert.Equal(t, domain.Attributes{{Name: "units", Value: "K"}}, attrs)
	})

	t.Run("float fill only", func(t *testing.T) {
		attrs := domain.Attributes{{Name: "_FillValue", Value: float32(9.96921e36)}}
		data := []float64{float64(float32(9.96921e36)), 1.5}

		bits := unpack(data, &attrs, 32)

		assert.Equal(t, 32, bits)
		assert.True(t, math.IsNaN(data[0]))
		assert.Equal(t, 1.5, data[1])
		assert.Empty(t, attrs)
	})
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units string
		step  float64
		ref   time.Time
		ok    bool
	}{
		{"seconds since 1970-01-01", 1, time.Unix(0, 0).UTC(), true},
		{"hours since 1900-01-01 00:00:00.0", 3600, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"days since 2016-1-1", 86400, time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"minutes since 2016-01-01T06:00:00Z", 60, time.Date(2016, 1, 1, 6, 0, 0, 0, time.UTC), true},
		{"seconds since 1970-01-01 00:00:00 UTC", 1, time.Unix(0, 0).UTC(), true},
		{"K", 0, time.Time{}, false},
		{"fortnights since 2016-01-01", 0, time.Time{}, false},
		{"hours since yesterday", 0, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			step, ref, ok := parseTimeUnits(tt.units)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.step, step)
			assert.True(t, tt.ref.Equal(ref), "ref %s, want %s", ref, tt.ref)
		})
	}
}

func TestDecodeTime(t *testing.T) {
	c := &domain.Coordinate{
		Name:    "time",
		Values:  []float64{1016832, 1016833},
		BitSize: 32,
		Attrs: domain.Attributes{
			{Name: "units", Value: "hours since 1900-01-01 00:00:00.0"},
			{Name: "calendar", Value: "gregorian"},
			{Name: "long_name", Value: "time"},
		},
	}

	require.True(t, decodeTime(c.Values, &c.Attrs))
	assert.Equal(t, float64(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC).Unix()), c.Values[0])
	assert.Equal(t, domain.Attributes{{Name: "long_name", Value: "time"}}, c.Attrs)

	lat := &domain.Coordinate{Name: "latitude", Attrs: domain.Attributes{{Name: "units", Value: "degrees_north"}}}
	assert.False(t, decodeTime(lat.Values, &lat.Attrs))
}

func TestReadFile_AuxiliaryCoordinates(t *testing.T) {
	root := t.TempDir()
	writeRaw(t, root, 2016, domain.SyntheticGrid{Times: 3, Lats: 2, Lons: 2, CDSCoords: true})
	path := filepath.Join(root, "2016", RawFileName)

	ds, err := ReadFile(path, domain.RequiredVariables...)
	require.NoError(t, err)

	number, ok := ds.AuxCoord("number")
	require.True(t, ok)
	assert.Empty(t, number.Dims)
	assert.Equal(t, []float64{0}, number.Values)

	expver, ok := ds.AuxCoord("expver")
	require.True(t, ok)
	assert.Equal(t, []string{"valid_time"}, expver.Dims)
	assert.Equal(t, []string{"0001", "0001", "0001"}, expver.Strings)

	u10, _ := ds.Var(domain.VarU10)
	_, has := u10.Attrs.Get("coordinates")
	assert.False(t, has)

	names, err := DataVariables(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, domain.RequiredVariables, names)
}

func TestWriter_LoadYear_KeepsAuxiliaryCoordinates(t *testing.T) {
	root := t.TempDir()
	ds := domain.SyntheticDataset(2018, domain.SyntheticGrid{Times: 2, Lats: 2, Lons: 2, CDSCoords: true})
	require.NoError(t, domain.Derive(ds))
	selected, err := ds.Select(domain.RetainedVariables...)
	require.NoError(t, err)

	w := NewWriter(root, discardLogger())
	require.NoError(t, w.LoadYear(context.Background(), 2018, selected))

	back, err := ReadFile(w.Path(2018))
	require.NoError(t, err)
	assert.ElementsMatch(t, domain.RetainedVariables, back.VarNames())
	require.Len(t, back.Aux, 2)
	assert.Equal(t, "number", back.Aux[0].Name)
	assert.Equal(t, []string{"0001", "0001"}, back.Aux[1].Strings)

	table, err := domain.Flatten(back, 2018)
	require.NoError(t, err)
	assert.Equal(t, []string{"valid_time", "latitude", "longitude", "number", "expver"}, table.ColumnNames()[:5])
}

func TestWithCoordinates(t *testing.T) {
	aux := []*domain.AuxCoordinate{
		{Name: "number"},
		{Name: "expver", Dims: []string{"valid_time"}},
		{Name: "station", Dims: []string{"site"}},
	}
	v := &domain.Variable{
		Name:  domain.VarT2M,
		Dims:  []string{"valid_time", "latitude", "longitude"},
		Attrs: domain.Attributes{{Name: "coordinates", Value: "number expver surface"}, {Name: "units", Value: "degC"}},
	}

	attrs := withCoordinates(v, aux)
	assert.Equal(t, "number expver", attrs.String("coordinates"))
	assert.Equal(t, "number expver surface", v.Attrs.String("coordinates"), "source attributes are not modified")

	bare := withCoordinates(&domain.Variable{Name: "x", Dims: []string{"latitude"}}, aux[1:2])
	_, ok := bare.Get("coordinates")
	assert.False(t, ok)
}

func TestCoordinateAttrs_DropsCoordinates(t *testing.T) {
	src := domain.Attributes{
		{Name: "coordinates", Value: "number expver"},
		{Name: "standard_name", Value: "time"},
	}

	attrs, bits := coordinateAttrs(src, true, 32)

	assert.Equal(t, 64, bits)
	_, ok := attrs.Get("coordinates")
	assert.False(t, ok)
	assert.Equal(t, epochUnits, attrs.String("units"))
	assert.Len(t, src, 2)
}

func TestReader_ExtractRequiresCommonDimensions(t *testing.T) {
	root := t.TempDir()
	ds := domain.SyntheticDataset(2016, domain.SyntheticGrid{Times: 2, Lats: 2, Lons: 2})
	laiHV, _ := ds.Var(domain.VarLAIHigh)
	laiHV.Dims = []string{"latitude", "longitude"}
	laiHV.Data = laiHV.Data[:4]
	path := NewReader(root, discardLogger()).Path(2016)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, WriteFile(path, ds))

	_, err := NewReader(root, discardLogger()).Extract(context.Background(), 2016)
	require.ErrorIs(t, err, domain.ErrShapeMismatch)
	assert.Contains(t, err.Error(), domain.VarLAIHigh)
}

func TestFlattenStrings(t *testing.T) {
	strs, shape, ok := flattenStrings([]string{"0001", "0005\x00\x00"})
	require.True(t, ok)
	assert.Equal(t, []int{2}, shape)
	assert.Equal(t, []string{"0001", "0005"}, strs)

	strs, shape, ok = flattenStrings("0001")
	require.True(t, ok)
	assert.Empty(t, shape)
	assert.Equal(t, []string{"0001"}, strs)

	_, _, ok = flattenStrings([]float32{1})
	assert.False(t, ok)
}

func TestReshapeStrings(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}}, reshapeStrings([]string{"a", "b", "c", "d"}, []int{2, 2}))
	assert.Equal(t, "0001", reshapeStrings([]string{"0001"}, nil))
}
