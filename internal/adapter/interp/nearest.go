// Package interp matches lat/lon grids by nearest neighbour.
package interp

import (
	"fmt"
	"math"
	"sort"
)

// DefaultTolerance is the largest coordinate distance accepted as a match.
const DefaultTolerance = 1e-4

// Grid2D represents a regular 2D grid.
type Grid2D struct {
	X      []float64   // X coordinates (e.g., longitudes).
	Y      []float64   // Y coordinates (e.g., latitudes).
	Values [][]float64 // Values[i][j] corresponds to (X[j], Y[i]).
}

// NewGrid2D builds a grid from row-major values of length len(y)*len(x).
func NewGrid2D(x, y, flat []float64) (*Grid2D, error) {
	if len(flat) != len(x)*len(y) {
		return nil, fmt.Errorf("got %d values for a %dx%d grid", len(flat), len(y), len(x))
	}
	g := &Grid2D{X: x, Y: y, Values: make([][]float64, len(y))}
	for i := range g.Values {
		g.Values[i] = flat[i*len(x) : (i+1)*len(x)]
	}
	return g, nil
}

// Validate checks if the grid is valid.
func (g *Grid2D) Validate() error {
	if len(g.X) == 0 || len(g.Y) == 0 {
		return fmt.Errorf("grid must have at least one X and one Y coordinate")
	}
	if len(g.Values) != len(g.Y) {
		return fmt.Errorf("number of value rows (%d) must match Y coordinates (%d)", len(g.Values), len(g.Y))
	}
	for i, row := range g.Values {
		if len(row) != len(g.X) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(g.X))
		}
	}
	if !increasing(g.X) {
		return fmt.Errorf("X coordinates must be strictly increasing")
	}
	if !increasing(g.Y) {
		return fmt.Errorf("Y coordinates must be strictly increasing")
	}
	return nil
}

// Flat returns the values in row-major order.
func (g *Grid2D) Flat() []float64 {
	out := make([]float64, 0, len(g.X)*len(g.Y))
	for _, row := range g.Values {
		out = append(out, row...)
	}
	return out
}

func increasing(axis []float64) bool {
	for i := 1; i < len(axis); i++ {
		if axis[i] <= axis[i-1] {
			return false
		}
	}
	return true
}

// NearestIndex returns the index of the axis value closest to v, and
// whether it lies within tol. axis must be strictly increasing.
func NearestIndex(axis []float64, v, tol float64) (int, bool) {
	if len(axis) == 0 || math.IsNaN(v) {
		return -1, false
	}
	i := sort.SearchFloat64s(axis, v)
	best := -1
	bestDist := math.Inf(1)
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(axis) {
			continue
		}
		if d := math.Abs(axis[j] - v); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist <= tol
}

// Reindex returns the grid sampled at (x, y) by nearest neighbour. Target
// points with no source coordinate within tol are NaN.
func (g *Grid2D) Reindex(x, y []float64, tol float64) (*Grid2D, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}
	out := &Grid2D{X: x, Y: y, Values: make([][]float64, len(y))}
	cols := make([]int, len(x))
	for j, xv := range x {
		idx, ok := NearestIndex(g.X, xv, tol)
		if !ok {
			idx = -1
		}
		cols[j] = idx
	}
	for i, yv := range y {
		row := make([]float64, len(x))
		src, ok := NearestIndex(g.Y, yv, tol)
		for j := range row {
			if !ok || cols[j] < 0 {
				row[j] = math.NaN()
				continue
			}
			row[j] = g.Values[src][cols[j]]
		}
		out.Values[i] = row
	}
	return out, nil
}
