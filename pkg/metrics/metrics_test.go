package metrics

import (
	"errors"
	"math"
	"testing"

	"dvfcomposer/internal/models"
)

// TestSummarize checks magnitude statistics on a two-voxel displacement field
func TestSummarize(t *testing.T) {
	// voxel 0 is displaced by (3, 0, 4), voxel 1 is not displaced
	field := &models.Field{
		Data: []float64{3, 0, 0, 0, 4, 0},
		Dims: []int{2, 1, 1, 1, 3},
	}

	s, err := Summarize(field)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if s.NumVoxels != 2 || s.Components != 3 {
		t.Errorf("Expected 2 voxels and 3 components, got %d and %d", s.NumVoxels, s.Components)
	}

	wantMeans := []float64{1.5, 0, 2}
	for c, want := range wantMeans {
		if math.Abs(s.ComponentMean[c]-want) > 1e-12 {
			t.Errorf("Component %d: expected mean %f, got %f", c, want, s.ComponentMean[c])
		}
	}

	if math.Abs(s.MeanMagnitude-2.5) > 1e-12 {
		t.Errorf("Expected mean magnitude 2.5, got %f", s.MeanMagnitude)
	}
	if math.Abs(s.MaxMagnitude-5) > 1e-12 {
		t.Errorf("Expected max magnitude 5, got %f", s.MaxMagnitude)
	}
	if math.Abs(s.RMSMagnitude-math.Sqrt(12.5)) > 1e-12 {
		t.Errorf("Expected RMS magnitude %f, got %f", math.Sqrt(12.5), s.RMSMagnitude)
	}
}

// TestSummarizeScalarField verifies that 3D fields are treated as one component
func TestSummarizeScalarField(t *testing.T) {
	field := &models.Field{
		Data: []float64{-2, 2, -2, 2, -2, 2, -2, 2},
		Dims: []int{2, 2, 2},
	}

	s, err := Summarize(field)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if s.Components != 1 {
		t.Errorf("Expected 1 component, got %d", s.Components)
	}
	if s.ComponentMean[0] != 0 {
		t.Errorf("Expected mean 0, got %f", s.ComponentMean[0])
	}
	if s.MeanMagnitude != 2 || s.MaxMagnitude != 2 {
		t.Errorf("Expected magnitudes of 2, got mean %f max %f", s.MeanMagnitude, s.MaxMagnitude)
	}
}

func TestSummarizeErrors(t *testing.T) {
	if _, err := Summarize(&models.Field{Dims: []int{0, 1, 1}}); !errors.Is(err, ErrEmptyField) {
		t.Errorf("Expected ErrEmptyField, got %v", err)
	}

	bad := &models.Field{Data: []float64{1, 2, 3}, Dims: []int{2, 2, 2}}
	if _, err := Summarize(bad); err == nil {
		t.Error("Expected error for data/dims mismatch")
	}
}

func TestRMSE(t *testing.T) {
	a := &models.Field{Data: []float64{0, 0, 0, 0}}
	b := &models.Field{Data: []float64{1, -1, 1, -1}}

	rmse, err := RMSE(a, b)
	if err != nil {
		t.Fatalf("RMSE failed: %v", err)
	}
	if math.Abs(rmse-1) > 1e-12 {
		t.Errorf("Expected RMSE 1, got %f", rmse)
	}

	same, err := RMSE(b, b)
	if err != nil || same != 0 {
		t.Errorf("Expected RMSE 0 for identical fields, got %f (%v)", same, err)
	}

	if _, err := RMSE(a, &models.Field{Data: []float64{1}}); err == nil {
		t.Error("Expected error for length mismatch")
	}
}

func TestMaxAbsDifference(t *testing.T) {
	a := &models.Field{Data: []float64{1, 2, 3}}
	b := &models.Field{Data: []float64{1, -2, 3.5}}

	d, err := MaxAbsDifference(a, b)
	if err != nil {
		t.Fatalf("MaxAbsDifference failed: %v", err)
	}
	if d != 4 {
		t.Errorf("Expected 4, got %f", d)
	}
}
