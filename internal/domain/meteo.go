package domain

import "math"

// Magnus-Tetens coefficients over water, with e in hPa and t in °C.
const (
	magnusA = 6.112
	magnusB = 17.67
	magnusC = 243.5
)

// kelvinOffset is 0 °C expressed in Kelvin.
const kelvinOffset = 273.15

// KelvinToCelsius converts a temperature from K to °C.
func KelvinToCelsius(kelvin float64) float64 {
	return kelvin - kelvinOffset
}

// WindSpeed returns the horizontal wind speed from its zonal (u) and
// meridional (v) components.
func WindSpeed(u, v float64) float64 {
	return math.Sqrt(u*u + v*v)
}

// VaporPressure evaluates the Magnus-Tetens approximation at t (°C) and
// returns the vapor pressure in hPa.
func VaporPressure(t float64) float64 {
	return magnusA * math.Exp((magnusB*t)/(t+magnusC))
}

// SaturationVaporPressure is the vapor pressure at air temperature t (°C).
func SaturationVaporPressure(t float64) float64 {
	return VaporPressure(t)
}

// ActualVaporPressure is the vapor pressure at dew point temperature td (°C).
func ActualVaporPressure(td float64) float64 {
	return VaporPressure(td)
}

// RelativeHumidity returns relative humidity in percent. The result is not
// clamped to [0, 100].
func RelativeHumidity(t, td float64) float64 {
	return (ActualVaporPressure(td) / SaturationVaporPressure(t)) * 100
}

// VaporPressureDeficit returns the vapor pressure deficit in hPa. It is
// negative when the dew point exceeds the air temperature.
func VaporPressureDeficit(t, td float64) float64 {
	return SaturationVaporPressure(t) - ActualVaporPressure(td)
}
