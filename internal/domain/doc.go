// Package domain models ERA5 reanalysis grids and the meteorological quantities
// derived from them.
//
// # Data Source
//
// Raw files come from the Copernicus Climate Data Store (CDS) "ERA5 hourly data on
// single levels" product, one download per year, stored as
//
//	<raw-root>/<year>/data_stream-oper_stepType-instant.nc
//
// The instantaneous stream carries the fields this package needs:
//
//	u10     10 m zonal wind component          m s**-1
//	v10     10 m meridional wind component     m s**-1
//	t2m     2 m air temperature                K
//	d2m     2 m dew point temperature          K
//	lai_hv  leaf area index, high vegetation   m**2 m**-2
//	lai_lv  leaf area index, low vegetation    m**2 m**-2
//
// Every field is gridded over (valid_time, latitude, longitude). Older CDS
// downloads name the time axis "time" and pack values as int16 with
// scale_factor/add_offset; the netcdf adapter unpacks both layouts into the
// float64 [Dataset] representation used here.
//
// # Derived Variables
//
// Temperatures are converted to degrees Celsius in place, then:
//
//	wind_speed = sqrt(u10² + v10²)
//	rh         = e(d2m) / e(t2m) * 100
//	vpd        = e(t2m) - e(d2m)
//
// where e(t) = 6.112 * exp(17.67 t / (t + 243.5)) is the Magnus-Tetens vapor
// pressure in hPa. Saturation and actual vapor pressure are the same function
// evaluated at air and dew point temperature respectively, see [VaporPressure].
//
// Relative humidity is deliberately not clamped: when d2m exceeds t2m (fog,
// interpolation noise) rh is above 100 and vpd is negative. Both are kept as-is.
//
// # Missing Values
//
// Cells flagged with _FillValue or missing_value are NaN. NaN propagates through
// every formula and is written as an empty field in the merged CSV.
//
// # Flattening
//
// [Flatten] turns a dataset into one row per coordinate tuple in row-major order
// over the dimensions, matching how the per-year grids are laid out on disk. The
// merged table is the concatenation of one flattened table per year, each tagged
// with a year column.
package domain
