// Package metrics summarizes deformation vector fields and compares them.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dvfcomposer/internal/models"
)

// ErrEmptyField is returned for fields without any values
var ErrEmptyField = errors.New("field has no values")

// Summary holds displacement statistics of a DVF
type Summary struct {
	// NumVoxels is the number of spatial voxels
	NumVoxels int

	// Components is the number of values per voxel (3 for a displacement field)
	Components int

	// ComponentMean and ComponentStdDev are computed per vector component
	ComponentMean   []float64
	ComponentStdDev []float64

	// Displacement magnitude statistics, one magnitude per voxel
	MeanMagnitude float64
	MaxMagnitude  float64
	RMSMagnitude  float64
}

// Summarize computes per-component and magnitude statistics. Components are
// stored contiguously after the spatial dims, so component c occupies
// Data[c*NumVoxels : (c+1)*NumVoxels].
func Summarize(field *models.Field) (Summary, error) {
	nvox := field.NumVoxels()
	ncomp := field.Components()
	if nvox == 0 || len(field.Data) == 0 {
		return Summary{}, ErrEmptyField
	}
	if nvox < 0 || ncomp < 0 || len(field.Data) != field.Len() {
		return Summary{}, fmt.Errorf("field has %d values for dims %v", len(field.Data), field.Dims)
	}

	s := Summary{
		NumVoxels:       nvox,
		Components:      ncomp,
		ComponentMean:   make([]float64, ncomp),
		ComponentStdDev: make([]float64, ncomp),
	}

	sq := make([]float64, nvox)
	for c := 0; c < ncomp; c++ {
		comp := field.Data[c*nvox : (c+1)*nvox]
		s.ComponentMean[c], s.ComponentStdDev[c] = stat.MeanStdDev(comp, nil)
		if nvox == 1 {
			s.ComponentStdDev[c] = 0
		}
		for i, v := range comp {
			sq[i] += v * v
		}
	}

	mags := make([]float64, nvox)
	for i, v := range sq {
		mags[i] = math.Sqrt(v)
	}
	s.MeanMagnitude = stat.Mean(mags, nil)
	s.MaxMagnitude = floats.Max(mags)
	s.RMSMagnitude = math.Sqrt(floats.Sum(sq) / float64(nvox))

	return s, nil
}

// RMSE computes the root mean square error between two fields of equal length
func RMSE(a, b *models.Field) (float64, error) {
	n := len(a.Data)
	if n == 0 {
		return 0, ErrEmptyField
	}
	if n != len(b.Data) {
		return 0, fmt.Errorf("length mismatch: %d and %d values", n, len(b.Data))
	}
	return floats.Distance(a.Data, b.Data, 2) / math.Sqrt(float64(n)), nil
}

// MaxAbsDifference returns the largest element-wise difference between two fields
func MaxAbsDifference(a, b *models.Field) (float64, error) {
	if len(a.Data) != len(b.Data) {
		return 0, fmt.Errorf("length mismatch: %d and %d values", len(a.Data), len(b.Data))
	}
	if len(a.Data) == 0 {
		return 0, ErrEmptyField
	}
	return floats.Distance(a.Data, b.Data, math.Inf(1)), nil
}
