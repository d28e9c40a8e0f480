package domain

import "fmt"

// Reduction selects how a field is collapsed to one value per time step.
type Reduction string

const (
	ReduceAverage   Reduction = "average"
	ReduceIntegrate Reduction = "integrate"
)

// ParseReduction parses "average" or "integrate". Empty means average.
func ParseReduction(s string) (Reduction, error) {
	switch Reduction(s) {
	case "", ReduceAverage:
		return ReduceAverage, nil
	case ReduceIntegrate:
		return ReduceIntegrate, nil
	default:
		return "", fmt.Errorf("unknown reduction %q (want average or integrate)", s)
	}
}

// SeriesPoint is one reduced value.
type SeriesPoint struct {
	Time  CFTime
	Value float64
}

// Series is a reduced time series of one variable.
type Series struct {
	Variable string
	Case     string
	Domain   string
	Units    string
	Reduce   Reduction
	Points   []SeriesPoint
}
