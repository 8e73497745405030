package domain

import "errors"

// ERA5 short names used in raw and processed files.
const (
	VarU10       = "u10"
	VarV10       = "v10"
	VarD2M       = "d2m"
	VarT2M       = "t2m"
	VarLAIHigh   = "lai_hv"
	VarLAILow    = "lai_lv"
	VarWindSpeed = "wind_speed"
	VarRH        = "rh"
	VarVPD       = "vpd"
)

// YearColumn is the column added to every flattened row.
const YearColumn = "year"

// Years is the fixed set of ERA5 years the pipeline processes.
var Years = []int{2016, 2017, 2018}

// RequiredVariables are read from every raw yearly file.
var RequiredVariables = []string{
	VarU10, VarV10,
	VarD2M, VarT2M,
	VarLAIHigh, VarLAILow,
}

// RetainedVariables are kept in the processed output, in output order.
var RetainedVariables = []string{
	VarU10, VarV10,
	VarD2M, VarT2M,
	VarLAIHigh, VarLAILow,
	VarWindSpeed, VarRH, VarVPD,
}

var (
	// ErrMissingVariable is returned when a dataset lacks a variable an
	// operation needs.
	ErrMissingVariable = errors.New("missing variable")

	// ErrShapeMismatch is returned when variables that are combined
	// elementwise are not defined on the same dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrColumnMismatch is returned when tables with different columns are
	// concatenated.
	ErrColumnMismatch = errors.New("column mismatch")
)
