package domain

import (
	"fmt"
	"slices"
	"time"
)

// Derive converts t2m and d2m to °C in place and adds wind_speed, rh and vpd
// to ds. u10, v10, t2m and d2m must be defined on identical dimensions.
func Derive(ds *Dataset) error {
	if _, err := ds.CommonDims(VarU10, VarV10, VarT2M, VarD2M); err != nil {
		return fmt.Errorf("derive: %w", err)
	}
	u10, _ := ds.Var(VarU10)
	v10, _ := ds.Var(VarV10)
	t2m, _ := ds.Var(VarT2M)
	d2m, _ := ds.Var(VarD2M)
	for _, v := range []*Variable{v10, t2m, d2m} {
		if len(v.Data) != len(u10.Data) {
			return fmt.Errorf("derive: %s has %d values, %s has %d: %w", v.Name, len(v.Data), u10.Name, len(u10.Data), ErrShapeMismatch)
		}
	}

	toCelsius(t2m)
	toCelsius(d2m)

	windSpeed := derived(VarWindSpeed, u10, "10 metre wind speed", "m s**-1")
	for i := range windSpeed.Data {
		windSpeed.Data[i] = WindSpeed(u10.Data[i], v10.Data[i])
	}

	rh := derived(VarRH, t2m, "Relative humidity", "%")
	vpd := derived(VarVPD, t2m, "Vapor pressure deficit", "hPa")
	for i := range rh.Data {
		rh.Data[i] = RelativeHumidity(t2m.Data[i], d2m.Data[i])
		vpd.Data[i] = VaporPressureDeficit(t2m.Data[i], d2m.Data[i])
	}

	for _, v := range []*Variable{windSpeed, rh, vpd} {
		if err := ds.SetVar(v); err != nil {
			return err
		}
	}

	appendHistory(ds, "converted t2m, d2m to degC; derived wind_speed, rh, vpd")
	return nil
}

func toCelsius(v *Variable) {
	for i, k := range v.Data {
		v.Data[i] = KelvinToCelsius(k)
	}
	v.Attrs.Set("units", "degC")
}

// derived allocates a variable shaped like template.
func derived(name string, template *Variable, longName, units string) *Variable {
	return &Variable{
		Name:    name,
		Dims:    slices.Clone(template.Dims),
		Data:    make([]float64, len(template.Data)),
		BitSize: template.BitSize,
		Attrs: Attributes{
			{Name: "long_name", Value: longName},
			{Name: "units", Value: units},
		},
	}
}

// appendHistory adds a CF history line stamped with the domain clock.
func appendHistory(ds *Dataset, msg string) {
	line := clock.Now().UTC().Format(time.RFC3339) + ": " + msg
	if prev := ds.Attrs.String("history"); prev != "" {
		line = prev + "\n" + line
	}
	ds.Attrs.Set("history", line)
}
