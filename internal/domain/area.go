package domain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrZeroWeights is returned when area weights sum to zero over the region.
var ErrZeroWeights = errors.New("area weights sum to zero")

// ErrNoData is returned when no cell has both a defined value and a
// nonzero weight. It wraps ErrZeroWeights.
var ErrNoData = fmt.Errorf("no defined values: %w", ErrZeroWeights)

// KM2ToM2 converts CLM grid-cell areas (km²) to m².
const KM2ToM2 = 1e6

// nanSum adds the non-NaN entries of x.
func nanSum(x []float64) float64 {
	kept := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			kept = append(kept, v)
		}
	}
	return floats.Sum(kept)
}

// nanMulSum returns Σ x·w over the cells where both are defined.
func nanMulSum(x, w []float64) float64 {
	prod := make([]float64, len(x))
	floats.MulTo(prod, x, w)
	return nanSum(prod)
}

// hasData reports whether some cell has a finite value and a finite,
// nonzero weight.
func hasData(x, w []float64) bool {
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if wi := w[i]; wi != 0 && !math.IsNaN(wi) && !math.IsInf(wi, 0) {
			return true
		}
	}
	return false
}

// normalizedWeights divides w by its NaN-skipping sum.
func normalizedWeights(w []float64) ([]float64, error) {
	total := nanSum(w)
	if total == 0 {
		return nil, ErrZeroWeights
	}
	out := make([]float64, len(w))
	floats.ScaleTo(out, 1/total, w)
	return out, nil
}

// AreaAverage returns the area-weighted mean of one (lat, lon) field.
// Cells where the field is NaN contribute nothing to the numerator, while
// the denominator keeps every weight. A field with no defined value on a
// weighted cell gives ErrNoData.
func AreaAverage(field, area []float64) (float64, error) {
	if len(field) != len(area) {
		return 0, fmt.Errorf("field has %d cells, area has %d", len(field), len(area))
	}
	w, err := normalizedWeights(area)
	if err != nil {
		return 0, err
	}
	wsum := nanSum(w)
	if wsum == 0 {
		return 0, ErrZeroWeights
	}
	if !hasData(field, w) {
		return 0, ErrNoData
	}
	return nanMulSum(field, w) / wsum, nil
}

// LandAreaAverage weights by area × landfrac.
func LandAreaAverage(field, area, landfrac []float64) (float64, error) {
	if len(area) != len(landfrac) {
		return 0, fmt.Errorf("area has %d cells, landfrac has %d", len(area), len(landfrac))
	}
	landArea := make([]float64, len(area))
	floats.MulTo(landArea, area, landfrac)
	return AreaAverage(field, landArea)
}

// LandAreaIntegrate returns Σ field × area × landfrac × 1e6, or ErrNoData
// when no land cell has a defined value.
func LandAreaIntegrate(field, area, landfrac []float64) (float64, error) {
	if len(field) != len(area) || len(area) != len(landfrac) {
		return 0, fmt.Errorf("mismatched sizes: field=%d area=%d landfrac=%d", len(field), len(area), len(landfrac))
	}
	landArea := make([]float64, len(area))
	floats.MulTo(landArea, area, landfrac)
	floats.Scale(KM2ToM2, landArea)
	if !hasData(field, landArea) {
		return 0, ErrNoData
	}
	return nanMulSum(field, landArea), nil
}
