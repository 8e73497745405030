package domain

import "time"

// SyntheticGrid sizes a generated ERA5-like dataset.
type SyntheticGrid struct {
	Times int
	Lats  int
	Lons  int

	// CDSCoords adds the scalar "number" and per-time "expver" coordinates
	// that current CDS downloads carry.
	CDSCoords bool
}

// SyntheticDataset builds a deterministic raw ERA5 dataset for year with the
// required variables in Kelvin and m s**-1, hourly from 1 January 00:00 UTC.
// It backs cmd/genmock and tests.
func SyntheticDataset(year int, grid SyntheticGrid) *Dataset {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	times := make([]float64, grid.Times)
	for i := range times {
		times[i] = float64(start + int64(i)*3600)
	}
	lats := make([]float64, grid.Lats)
	for i := range lats {
		lats[i] = 30 - 0.25*float64(i)
	}
	lons := make([]float64, grid.Lons)
	for i := range lons {
		lons[i] = 75 + 0.25*float64(i)
	}

	ds := &Dataset{
		Coords: []*Coordinate{
			{Name: "valid_time", Values: times, BitSize: 64, Time: true,
				Attrs: Attributes{{Name: "standard_name", Value: "time"}}},
			{Name: "latitude", Values: lats, BitSize: 64,
				Attrs: Attributes{{Name: "units", Value: "degrees_north"}}},
			{Name: "longitude", Values: lons, BitSize: 64,
				Attrs: Attributes{{Name: "units", Value: "degrees_east"}}},
		},
		Attrs: Attributes{
			{Name: "Conventions", Value: "CF-1.7"},
			{Name: "institution", Value: "European Centre for Medium-Range Weather Forecasts"},
		},
	}

	dims := []string{"valid_time", "latitude", "longitude"}
	n := grid.Times * grid.Lats * grid.Lons
	fields := []struct {
		name, units string
		base, step  float64
	}{
		{VarU10, "m s**-1", -2, 0.5},
		{VarV10, "m s**-1", 1.5, -0.25},
		{VarD2M, "K", 283.15, 0.1},
		{VarT2M, "K", 293.15, 0.2},
		{VarLAIHigh, "m**2 m**-2", 2.5, 0.01},
		{VarLAILow, "m**2 m**-2", 1.2, 0.01},
	}
	for k, f := range fields {
		data := make([]float64, n)
		for i := range data {
			data[i] = float64(float32(f.base + f.step*float64((i+k)%7)))
		}
		ds.Vars = append(ds.Vars, &Variable{
			Name:    f.name,
			Dims:    dims,
			Data:    data,
			BitSize: 32,
			Attrs:   Attributes{{Name: "units", Value: f.units}},
		})
	}

	if grid.CDSCoords {
		expver := make([]string, grid.Times)
		for i := range expver {
			expver[i] = "0001"
		}
		ds.Aux = []*AuxCoordinate{
			{Name: "number", Values: []float64{0}, BitSize: 64,
				Attrs: Attributes{{Name: "long_name", Value: "ensemble member numerical id"}}},
			{Name: "expver", Dims: []string{"valid_time"}, Strings: expver,
				Attrs: Attributes{{Name: "long_name", Value: "experiment version"}}},
		}
	}
	return ds
}
