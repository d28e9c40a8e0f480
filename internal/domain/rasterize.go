package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/sparse"
)

// ErrCollision is returned when two retained landunits map to the same cell
// and the collision policy is CollisionError.
var ErrCollision = errors.New("landunit collision")

// CollisionPolicy decides what happens when two retained landunits of the
// same type land in one grid cell at one time step.
type CollisionPolicy int

const (
	// CollisionError aborts rasterization.
	CollisionError CollisionPolicy = iota
	// CollisionLastWriteWins keeps the landunit with the highest index.
	CollisionLastWriteWins
)

// String returns the configuration spelling of p.
func (p CollisionPolicy) String() string {
	switch p {
	case CollisionError:
		return "error"
	case CollisionLastWriteWins:
		return "last-write-wins"
	default:
		return fmt.Sprintf("CollisionPolicy(%d)", int(p))
	}
}

// ParseCollisionPolicy parses "error" or "last-write-wins".
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return CollisionError, nil
	case "last-write-wins", "last":
		return CollisionLastWriteWins, nil
	default:
		return 0, fmt.Errorf("unknown collision policy %q", s)
	}
}

// Rasterizer scatters landunit values onto a (lat, lon, typlunit) grid.
type Rasterizer struct {
	NLat, NLon int
	Retained   LandunitTypeSet
	Collision  CollisionPolicy
	Fill       float64
}

// NewRasterizer returns a rasterizer keeping the default vegetated/bare-soil
// type with NaN as the missing value.
func NewRasterizer(nLat, nLon int) *Rasterizer {
	return &Rasterizer{
		NLat:     nLat,
		NLon:     nLon,
		Retained: DefaultRetainedTypes(),
		Fill:     math.NaN(),
	}
}

// NewGrid allocates a (lat, lon, typlunit) array set to the fill value.
func (r *Rasterizer) NewGrid() *sparse.DenseArray {
	grid := sparse.ZerosDense(r.NLat, r.NLon, NumLandunitTypes)
	if r.Fill != 0 {
		for i := range grid.Elements {
			grid.Elements[i] = r.Fill
		}
	}
	return grid
}

// Rasterize builds the grid for one time step. values[u] is the variable
// value of landunit u. Landunits of types outside r.Retained are skipped.
//
// Values are assigned through Elements directly: DenseArray.Set ignores
// zeros, which would leave the fill value in place of a real 0.
func (r *Rasterizer) Rasterize(idx LandunitIndex, values []float64) (*sparse.DenseArray, error) {
	if r.NLat <= 0 || r.NLon <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", r.NLat, r.NLon)
	}
	if len(values) != idx.Len() {
		return nil, fmt.Errorf("got %d values for %d landunits", len(values), idx.Len())
	}

	grid := r.NewGrid()
	owner := make(map[int]int)

	for u := 0; u < idx.Len(); u++ {
		typ := idx.Type[u]
		if !r.Retained.Has(typ) {
			continue
		}
		row, col := idx.Row[u], idx.Col[u]
		if err := grid.CheckIndex([]int{row, col, int(typ)}); err != nil {
			return nil, fmt.Errorf("%w: landunit %d at row %d, col %d: %v", ErrIndexOutOfRange, u, row, col, err)
		}
		flat := grid.Index1d(row, col, int(typ))
		if prev, ok := owner[flat]; ok && r.Collision == CollisionError {
			return nil, fmt.Errorf("%w: landunits %d and %d both map to row %d, col %d, type %s",
				ErrCollision, prev, u, row, col, typ)
		}
		owner[flat] = u
		grid.Elements[flat] = values[u]
	}
	return grid, nil
}

// CountRetained returns the number of landunits whose type is retained.
func (r *Rasterizer) CountRetained(idx LandunitIndex) int {
	n := 0
	for _, t := range idx.Type {
		if r.Retained.Has(t) {
			n++
		}
	}
	return n
}

// StackTime concatenates per-step (lat, lon, typlunit) grids along a new
// leading time axis. The step grids are copied, not aliased.
func StackTime(steps []*sparse.DenseArray) (*sparse.DenseArray, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("no time steps to stack")
	}
	shape := steps[0].Shape
	if len(shape) != 3 {
		return nil, fmt.Errorf("expected 3-D step grids, got %d-D", len(shape))
	}
	out := sparse.ZerosDense(len(steps), shape[0], shape[1], shape[2])
	size := shape[0] * shape[1] * shape[2]
	for t, g := range steps {
		if len(g.Shape) != 3 || g.Shape[0] != shape[0] || g.Shape[1] != shape[1] || g.Shape[2] != shape[2] {
			return nil, fmt.Errorf("time step %d has shape %v, expected %v", t, g.Shape, shape)
		}
		copy(out.Elements[t*size:(t+1)*size], g.Elements)
	}
	return out, nil
}
