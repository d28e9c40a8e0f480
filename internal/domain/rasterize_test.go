package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

// TestRasterize_ExampleScenario grids three landunits on a 2x2 grid where
// the middle one is a crop landunit and must be skipped.
func TestRasterize_ExampleScenario(t *testing.T) {
	// 1-based codes as stored in the history file.
	ixy := []int{2, 1, 1}
	jxy := []int{1, 2, 2}
	ityp := []int{1, 2, 1}

	idx, err := ExtractLandunitIndex(ixy, jxy, ityp, 2, 2)
	if err != nil {
		t.Fatalf("ExtractLandunitIndex: %v", err)
	}

	r := NewRasterizer(2, 2)
	for step, values := range [][]float64{{5.0, 99.0, 7.0}, {6.0, 99.0, 8.0}} {
		grid, err := r.Rasterize(idx, values)
		if err != nil {
			t.Fatalf("step %d: Rasterize: %v", step, err)
		}

		if got := grid.Get(0, 1, 0); got != values[0] {
			t.Errorf("step %d: cell (0,1) = %v, want %v", step, got, values[0])
		}
		if got := grid.Get(1, 0, 0); got != values[2] {
			t.Errorf("step %d: cell (1,0) = %v, want %v", step, got, values[2])
		}
		for _, cell := range [][2]int{{0, 0}, {1, 1}} {
			if got := grid.Get(cell[0], cell[1], 0); !math.IsNaN(got) {
				t.Errorf("step %d: cell %v = %v, want fill", step, cell, got)
			}
		}
		// Nothing may appear on any other type slice, including crop.
		for typ := 1; typ < NumLandunitTypes; typ++ {
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					if got := grid.Get(i, j, typ); !math.IsNaN(got) {
						t.Errorf("step %d: type %d cell (%d,%d) = %v, want fill", step, typ, i, j, got)
					}
				}
			}
		}
	}
}

func TestRasterize_ZeroValueIsWritten(t *testing.T) {
	idx := LandunitIndex{Col: []int{0}, Row: []int{0}, Type: []LandunitType{VegetatedOrBareSoil}}
	grid, err := NewRasterizer(1, 1).Rasterize(idx, []float64{0})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if got := grid.Get(0, 0, 0); got != 0 {
		t.Fatalf("expected 0 to overwrite the fill value, got %v", got)
	}
}

func TestRasterize_RetainedSetIsConfigurable(t *testing.T) {
	idx := LandunitIndex{
		Col:  []int{0, 0, 1},
		Row:  []int{0, 0, 0},
		Type: []LandunitType{VegetatedOrBareSoil, Crop, Wetland},
	}
	retained, err := NewLandunitTypeSet(int(Crop), int(Wetland))
	if err != nil {
		t.Fatalf("NewLandunitTypeSet: %v", err)
	}
	r := &Rasterizer{NLat: 1, NLon: 2, Retained: retained, Fill: -9999}

	grid, err := r.Rasterize(idx, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if got := grid.Get(0, 0, int(VegetatedOrBareSoil)); got != -9999 {
		t.Errorf("vegetated landunit should be filtered, got %v", got)
	}
	if got := grid.Get(0, 0, int(Crop)); got != 2 {
		t.Errorf("crop = %v, want 2", got)
	}
	if got := grid.Get(0, 1, int(Wetland)); got != 3 {
		t.Errorf("wetland = %v, want 3", got)
	}
	if n := r.CountRetained(idx); n != 2 {
		t.Errorf("CountRetained = %d, want 2", n)
	}
}

func TestRasterize_Collision(t *testing.T) {
	idx := LandunitIndex{
		Col:  []int{1, 1},
		Row:  []int{0, 0},
		Type: []LandunitType{VegetatedOrBareSoil, VegetatedOrBareSoil},
	}

	r := NewRasterizer(1, 2)
	if _, err := r.Rasterize(idx, []float64{1, 2}); !errors.Is(err, ErrCollision) {
		t.Fatalf("expected ErrCollision, got %v", err)
	}

	r.Collision = CollisionLastWriteWins
	grid, err := r.Rasterize(idx, []float64{1, 2})
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if got := grid.Get(0, 1, 0); got != 2 {
		t.Fatalf("last write should win, got %v", got)
	}
}

func TestRasterize_DistinctCellsDoNotOverwrite(t *testing.T) {
	const nLat, nLon = 3, 4
	var idx LandunitIndex
	var values []float64
	for i := 0; i < nLat; i++ {
		for j := 0; j < nLon; j++ {
			idx.Row = append(idx.Row, i)
			idx.Col = append(idx.Col, j)
			idx.Type = append(idx.Type, VegetatedOrBareSoil)
			values = append(values, float64(i*10+j))
		}
	}
	grid, err := NewRasterizer(nLat, nLon).Rasterize(idx, values)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	for u := range values {
		if got := grid.Get(idx.Row[u], idx.Col[u], 0); got != values[u] {
			t.Errorf("landunit %d: got %v, want %v", u, got, values[u])
		}
	}
}

func TestRasterize_OutOfBoundsFailsFast(t *testing.T) {
	idx := LandunitIndex{Col: []int{2}, Row: []int{0}, Type: []LandunitType{VegetatedOrBareSoil}}
	_, err := NewRasterizer(1, 2).Rasterize(idx, []float64{1})
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestRasterize_LengthMismatch(t *testing.T) {
	idx := LandunitIndex{Col: []int{0}, Row: []int{0}, Type: []LandunitType{VegetatedOrBareSoil}}
	if _, err := NewRasterizer(1, 1).Rasterize(idx, []float64{1, 2}); err == nil {
		t.Fatal("expected error for mismatched value count")
	}
}

func TestStackTime(t *testing.T) {
	r := NewRasterizer(1, 2)
	idx := LandunitIndex{Col: []int{0}, Row: []int{0}, Type: []LandunitType{VegetatedOrBareSoil}}

	g0, _ := r.Rasterize(idx, []float64{1})
	g1, _ := r.Rasterize(idx, []float64{2})
	stacked, err := StackTime([]*sparse.DenseArray{g0, g1})
	if err != nil {
		t.Fatalf("StackTime: %v", err)
	}
	want := []int{2, 1, 2, NumLandunitTypes}
	for i, n := range want {
		if stacked.Shape[i] != n {
			t.Fatalf("shape = %v, want %v", stacked.Shape, want)
		}
	}
	if stacked.Get(0, 0, 0, 0) != 1 || stacked.Get(1, 0, 0, 0) != 2 {
		t.Fatalf("unexpected stacked values %v, %v", stacked.Get(0, 0, 0, 0), stacked.Get(1, 0, 0, 0))
	}

	// Mutating a step grid after stacking must not change the stack.
	g0.Elements[0] = 42
	if stacked.Get(0, 0, 0, 0) != 1 {
		t.Fatal("stacked output aliases the step grid")
	}

	if _, err := StackTime(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
