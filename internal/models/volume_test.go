package models

import (
	"math"
	"testing"
)

// TestFieldCounts verifies voxel, component and value counts
func TestFieldCounts(t *testing.T) {
	f := &Field{Dims: []int{4, 3, 2, 1, 3}}
	if f.NumVoxels() != 24 {
		t.Errorf("Expected 24 voxels, got %d", f.NumVoxels())
	}
	if f.Components() != 3 {
		t.Errorf("Expected 3 components, got %d", f.Components())
	}
	if f.Len() != 72 {
		t.Errorf("Expected 72 values, got %d", f.Len())
	}

	scalar := &Field{Dims: []int{2, 2}}
	if scalar.Components() != 1 || scalar.Len() != 4 {
		t.Errorf("Expected 1 component and 4 values, got %d and %d", scalar.Components(), scalar.Len())
	}
}

// TestFieldCountsOverflow verifies that oversized dims report -1 instead of wrapping
func TestFieldCountsOverflow(t *testing.T) {
	// 2^63 values
	f := &Field{Dims: []int{16384, 16384, 16384, 16384, 64, 2}}
	if f.Len() != -1 {
		t.Errorf("Expected -1 for overflowing length, got %d", f.Len())
	}
	if f.Len() == len(f.Data) {
		t.Error("Overflowing length must not match the data length")
	}

	huge := &Field{Dims: []int{math.MaxInt / 2, 3, 1}}
	if huge.NumVoxels() != -1 {
		t.Errorf("Expected -1 for overflowing voxel count, got %d", huge.NumVoxels())
	}

	negative := &Field{Dims: []int{2, -1, 2}}
	if negative.Len() != -1 {
		t.Errorf("Expected -1 for negative dim, got %d", negative.Len())
	}
}

// TestAffineDenseRoundTrip verifies conversion through gonum matrices
func TestAffineDenseRoundTrip(t *testing.T) {
	a := IdentityAffine()
	a[0][3], a[1][1] = -90, 2.5

	b := AffineFromDense(a.Dense())
	if b != a {
		t.Errorf("Expected %v, got %v", a, b)
	}

	b[2][3] += 1e-6
	if !a.EqualApprox(b, 1e-5) {
		t.Error("Expected affines within tolerance to compare equal")
	}
	if a.EqualApprox(b, 1e-7) {
		t.Error("Expected affines outside tolerance to differ")
	}
}
