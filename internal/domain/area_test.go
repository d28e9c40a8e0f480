package domain

import (
	"errors"
	"math"
	"testing"
)

func TestAreaAverage_UniformWeightsIsMean(t *testing.T) {
	field := []float64{1, 2, 3, 4, 5, 9}
	area := []float64{2, 2, 2, 2, 2, 2}

	got, err := AreaAverage(field, area)
	if err != nil {
		t.Fatalf("AreaAverage: %v", err)
	}
	if math.Abs(got-4.0) > 1e-12 {
		t.Fatalf("got %v, want 4", got)
	}
}

func TestAreaAverage_Weighted(t *testing.T) {
	got, err := AreaAverage([]float64{1, 4}, []float64{3, 1})
	if err != nil {
		t.Fatalf("AreaAverage: %v", err)
	}
	// (1*0.75 + 4*0.25) / 1
	if math.Abs(got-1.75) > 1e-12 {
		t.Fatalf("got %v, want 1.75", got)
	}
}

func TestAreaAverage_ZeroWeights(t *testing.T) {
	_, err := AreaAverage([]float64{1, 2}, []float64{0, 0})
	if !errors.Is(err, ErrZeroWeights) {
		t.Fatalf("expected ErrZeroWeights, got %v", err)
	}
}

func TestLandAreaAverage_MaskedOcean(t *testing.T) {
	field := []float64{10, math.NaN(), 20}
	area := []float64{1, 1, 1}
	landfrac := []float64{1, 0, 1}

	got, err := LandAreaAverage(field, area, landfrac)
	if err != nil {
		t.Fatalf("LandAreaAverage: %v", err)
	}
	if math.Abs(got-15) > 1e-12 {
		t.Fatalf("got %v, want 15", got)
	}

	_, err = LandAreaAverage(field, area, []float64{0, 0, 0})
	if !errors.Is(err, ErrZeroWeights) {
		t.Fatalf("all-ocean region: expected ErrZeroWeights, got %v", err)
	}
}

func TestLandAreaIntegrate(t *testing.T) {
	// 2 km² fully land at value 3, half-land 4 km² cell at value 1.
	got, err := LandAreaIntegrate([]float64{3, 1}, []float64{2, 4}, []float64{1, 0.5})
	if err != nil {
		t.Fatalf("LandAreaIntegrate: %v", err)
	}
	want := (3*2*1 + 1*4*0.5) * 1e6
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("got %v, want %v", got, want)
	}

	if _, err := LandAreaIntegrate([]float64{1}, []float64{1, 2}, []float64{1, 1}); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestAreaAverage_AllNaN(t *testing.T) {
	nan := math.NaN()
	_, err := AreaAverage([]float64{nan, nan}, []float64{1, 1})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if !errors.Is(err, ErrZeroWeights) {
		t.Fatalf("ErrNoData should wrap ErrZeroWeights, got %v", err)
	}

	// Defined values only on cells without land.
	_, err = LandAreaAverage([]float64{nan, 5}, []float64{1, 1}, []float64{1, 0})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for values on ocean only, got %v", err)
	}
	_, err = LandAreaIntegrate([]float64{nan, nan}, []float64{1, 1}, []float64{1, 1})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("LandAreaIntegrate: expected ErrNoData, got %v", err)
	}
}
