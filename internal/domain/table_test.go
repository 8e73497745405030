package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	ds := &Dataset{
		Coords: []*Coordinate{
			{Name: "valid_time", Values: []float64{0, 3600}, Time: true, BitSize: 64},
			{Name: "latitude", Values: []float64{10, 20, 30}, BitSize: 64},
		},
		Vars: []*Variable{
			{Name: "a", Dims: []string{"valid_time", "latitude"}, Data: []float64{1, 2, 3, 4, 5, 6}, BitSize: 32},
			{Name: "b", Dims: []string{"valid_time", "latitude"}, Data: []float64{-1, -2, -3, -4, -5, -6}, BitSize: 32},
		},
	}

	table, err := Flatten(ds, 2017)
	require.NoError(t, err)

	assert.Equal(t, 6, table.Len())
	assert.Equal(t, []string{"valid_time", "latitude", "a", "b", YearColumn}, table.ColumnNames())

	want := [][]float64{
		{0, 0, 0, 3600, 3600, 3600},
		{10, 20, 30, 10, 20, 30},
		{1, 2, 3, 4, 5, 6},
		{-1, -2, -3, -4, -5, -6},
		{2017, 2017, 2017, 2017, 2017, 2017},
	}
	got := make([][]float64, len(table.Columns))
	for i, c := range table.Columns {
		got[i] = c.Values
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("flattened columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, KindTime, table.Columns[0].Kind)
	assert.Equal(t, KindFloat, table.Columns[1].Kind)
	assert.Equal(t, KindInt, table.Columns[4].Kind)
}

func TestFlatten_RowCountIsGridSize(t *testing.T) {
	ds := SyntheticDataset(2016, SyntheticGrid{Times: 3, Lats: 4, Lons: 5})

	table, err := Flatten(ds, 2016)
	require.NoError(t, err)
	assert.Equal(t, 3*4*5, table.Len())
	for _, c := range table.Columns {
		assert.Len(t, c.Values, 60, c.Name)
	}
}

func TestFlatten_ShapeMismatch(t *testing.T) {
	ds := &Dataset{
		Coords: []*Coordinate{
			{Name: "x", Values: []float64{1, 2}},
			{Name: "y", Values: []float64{1, 2}},
		},
		Vars: []*Variable{
			{Name: "a", Dims: []string{"x", "y"}, Data: []float64{1, 2, 3, 4}},
			{Name: "b", Dims: []string{"y", "x"}, Data: []float64{1, 2, 3, 4}},
		},
	}
	_, err := Flatten(ds, 2016)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestConcat(t *testing.T) {
	var tables []*Table
	total := 0
	for i, year := range Years {
		ds := SyntheticDataset(year, SyntheticGrid{Times: i + 1, Lats: 2, Lons: 2})
		table, err := Flatten(ds, year)
		require.NoError(t, err)
		total += table.Len()
		tables = append(tables, table)
	}

	merged, err := Concat(tables...)
	require.NoError(t, err)
	assert.Equal(t, total, merged.Len())

	yearCol, ok := merged.Column(YearColumn)
	require.True(t, ok)
	offset := 0
	for i, table := range tables {
		for r := 0; r < table.Len(); r++ {
			assert.Equal(t, float64(Years[i]), yearCol.Values[offset+r])
		}
		offset += table.Len()
	}
}

func TestConcat_ColumnMismatch(t *testing.T) {
	a := &Table{Columns: []Column{{Name: "x", Values: []float64{1}}}}
	b := &Table{Columns: []Column{{Name: "y", Values: []float64{1}}}}

	_, err := Concat(a, b)
	require.ErrorIs(t, err, ErrColumnMismatch)
}

func TestConcat_Empty(t *testing.T) {
	merged, err := Concat()
	require.NoError(t, err)
	assert.Equal(t, 0, merged.Len())
}

// cdsDataset is a 2x2 grid over (valid_time, latitude) carrying the scalar
// "number" and per-time "expver" coordinates of CDS downloads.
func cdsDataset(t *testing.T) *Dataset {
	t.Helper()
	ds := &Dataset{
		Coords: []*Coordinate{
			{Name: "valid_time", Values: []float64{0, 3600}, Time: true, BitSize: 64},
			{Name: "latitude", Values: []float64{10, 20}, BitSize: 64},
		},
		Vars: []*Variable{
			{Name: "a", Dims: []string{"valid_time", "latitude"}, Data: []float64{1, 2, 3, 4}, BitSize: 32},
		},
	}
	require.NoError(t, ds.SetAux(&AuxCoordinate{Name: "number", Values: []float64{0}, BitSize: 64}))
	require.NoError(t, ds.SetAux(&AuxCoordinate{Name: "expver", Dims: []string{"valid_time"}, Strings: []string{"0001", "0005"}}))
	return ds
}

func TestFlatten_AuxiliaryCoordinates(t *testing.T) {
	table, err := Flatten(cdsDataset(t), 2018)
	require.NoError(t, err)

	assert.Equal(t, []string{"valid_time", "latitude", "number", "expver", "a", YearColumn}, table.ColumnNames())

	number, _ := table.Column("number")
	assert.Equal(t, KindFloat, number.Kind)
	assert.Equal(t, []float64{0, 0, 0, 0}, number.Values)

	expver, _ := table.Column("expver")
	assert.Equal(t, KindString, expver.Kind)
	assert.Equal(t, []string{"0001", "0001", "0005", "0005"}, expver.Strings)
	assert.Equal(t, 4, table.Len())
}

func TestFlatten_AuxiliaryCoordinateOnInnerAxis(t *testing.T) {
	ds := cdsDataset(t)
	require.NoError(t, ds.SetAux(&AuxCoordinate{Name: "band", Dims: []string{"latitude"}, Values: []float64{7, 8}, BitSize: 64}))

	table, err := Flatten(ds, 2018)
	require.NoError(t, err)
	band, ok := table.Column("band")
	require.True(t, ok)
	assert.Equal(t, []float64{7, 8, 7, 8}, band.Values)
}

func TestFlatten_ShapeMismatchMessage(t *testing.T) {
	ds := cdsDataset(t)
	ds.Vars = append(ds.Vars, &Variable{Name: "lai_hv", Dims: []string{"latitude"}, Data: []float64{1, 2}})

	_, err := Flatten(ds, 2016)
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.NotContains(t, err.Error(), "flatten")
}

func TestConcat_StringColumns(t *testing.T) {
	a, err := Flatten(cdsDataset(t), 2016)
	require.NoError(t, err)
	b, err := Flatten(cdsDataset(t), 2017)
	require.NoError(t, err)

	merged, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 8, merged.Len())
	expver, _ := merged.Column("expver")
	assert.Equal(t, []string{"0001", "0001", "0005", "0005", "0001", "0001", "0005", "0005"}, expver.Strings)
	assert.Empty(t, expver.Values)
}

func TestConcat_KindMismatch(t *testing.T) {
	a := &Table{Columns: []Column{{Name: "expver", Kind: KindString, Strings: []string{"0001"}}}}
	b := &Table{Columns: []Column{{Name: "expver", Kind: KindFloat, Values: []float64{1}}}}

	_, err := Concat(a, b)
	require.ErrorIs(t, err, ErrColumnMismatch)
}
