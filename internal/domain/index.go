package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrIndexOutOfRange marks landunit mapping data that points outside the grid.
var ErrIndexOutOfRange = errors.New("landunit index out of range")

// IndexError describes the first out-of-range landunit mapping value.
type IndexError struct {
	Field    string // land1d_ixy, land1d_jxy or land1d_ityplunit.
	Landunit int
	Value    int // 1-based value as stored in the history file.
	Max      int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s of landunit %d is %d, expected [1, %d]", e.Field, e.Landunit, e.Value, e.Max)
}

// Unwrap lets errors.Is match ErrIndexOutOfRange.
func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

// LandunitIndex holds 0-based grid positions and types for every landunit
// at one time step.
type LandunitIndex struct {
	Col  []int
	Row  []int
	Type []LandunitType
}

// Len is the number of landunits.
func (idx LandunitIndex) Len() int { return len(idx.Type) }

// CodesFromFloats converts integer-valued history data to ints. Fractional
// parts are truncated; non-finite values are an error.
func CodesFromFloats(field string, values []float64) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s of landunit %d is not finite", field, i)
		}
		out[i] = int(v)
	}
	return out, nil
}

// ExtractLandunitIndex converts 1-based column (ixy), row (jxy) and type
// (ityplunit) codes to 0-based values, failing on anything outside the grid.
func ExtractLandunitIndex(ixy, jxy, ityp []int, nLat, nLon int) (LandunitIndex, error) {
	n := len(ityp)
	if len(ixy) != n || len(jxy) != n {
		return LandunitIndex{}, fmt.Errorf("landunit mapping lengths differ: ixy=%d jxy=%d ityplunit=%d", len(ixy), len(jxy), n)
	}

	idx := LandunitIndex{
		Col:  make([]int, n),
		Row:  make([]int, n),
		Type: make([]LandunitType, n),
	}
	for u := 0; u < n; u++ {
		if ixy[u] < 1 || ixy[u] > nLon {
			return LandunitIndex{}, &IndexError{Field: "land1d_ixy", Landunit: u, Value: ixy[u], Max: nLon}
		}
		if jxy[u] < 1 || jxy[u] > nLat {
			return LandunitIndex{}, &IndexError{Field: "land1d_jxy", Landunit: u, Value: jxy[u], Max: nLat}
		}
		if ityp[u] < 1 || ityp[u] > NumLandunitTypes {
			return LandunitIndex{}, &IndexError{Field: "land1d_ityplunit", Landunit: u, Value: ityp[u], Max: NumLandunitTypes}
		}
		idx.Col[u] = ixy[u] - 1
		idx.Row[u] = jxy[u] - 1
		idx.Type[u] = LandunitType(ityp[u] - 1)
	}
	return idx, nil
}
