package models

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Affine is a 4x4 voxel-to-world transform. Row-major, the last row is
// normally (0, 0, 0, 1).
type Affine [4][4]float64

// IdentityAffine returns the identity transform
func IdentityAffine() Affine {
	var a Affine
	for i := 0; i < 4; i++ {
		a[i][i] = 1
	}
	return a
}

// Dense returns the affine as a gonum matrix
func (a Affine) Dense() *mat.Dense {
	flat := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		flat = append(flat, a[i][:]...)
	}
	return mat.NewDense(4, 4, flat)
}

// AffineFromDense copies a 4x4 gonum matrix into an Affine
func AffineFromDense(m mat.Matrix) Affine {
	var a Affine
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a[i][j] = m.At(i, j)
		}
	}
	return a
}

// EqualApprox reports whether every element of a and b differs by at most tol
func (a Affine) EqualApprox(b Affine, tol float64) bool {
	return mat.EqualApprox(a.Dense(), b.Dense(), tol)
}

// Header holds the image metadata that travels with a field. It mirrors the
// descriptive parts of a NIfTI-1 header; dimensions, spacing and the affine
// live on Field itself.
type Header struct {
	// DataType is the on-disk NIfTI datatype code the field was read from
	DataType int16

	// DimInfo packs frequency, phase and slice dimension indices
	DimInfo int8

	IntentCode int16
	IntentP1   float32
	IntentP2   float32
	IntentP3   float32
	IntentName string

	// SclSlope and SclInter are the intensity scaling the data was stored with
	SclSlope float32
	SclInter float32

	SliceStart    int16
	SliceEnd      int16
	SliceCode     int8
	SliceDuration float32

	// XYZTUnits packs spatial and temporal units
	XYZTUnits int8

	CalMax  float32
	CalMin  float32
	TOffset float32

	Descrip string
	AuxFile string

	QFormCode int16
	SFormCode int16

	// Quaternion parameters of the qform, QFac is pixdim[0]
	QuaternB float32
	QuaternC float32
	QuaternD float32
	QOffsetX float32
	QOffsetY float32
	QOffsetZ float32
	QFac     float32
}

// Field is a dense volumetric array with its geometry. A displacement field
// stores its vector components along the fifth NIfTI dimension, so a DVF of
// 64x64x40 voxels has Dims [64 64 40 1 3].
type Field struct {
	// Data is stored x fastest, then y, z and the remaining dimensions
	Data []float64

	// Dims is dim[1..ndim] of the image
	Dims []int

	// Spacing is pixdim[1..ndim], matched to Dims
	Spacing []float64

	// Affine maps voxel indices (i, j, k) to world coordinates
	Affine Affine

	// Header carries the remaining metadata
	Header Header
}

// NumVoxels returns the number of spatial voxels (product of the first
// three dims), or -1 if the product overflows int.
func (f *Field) NumVoxels() int {
	end := len(f.Dims)
	if end > 3 {
		end = 3
	}
	return product(f.Dims[:end])
}

// Components returns the number of values stored per voxel, or -1 on overflow
func (f *Field) Components() int {
	if len(f.Dims) <= 3 {
		return 1
	}
	return product(f.Dims[3:])
}

// Len returns the total number of values implied by Dims, or -1 if the
// count overflows int. A -1 never matches len(Data).
func (f *Field) Len() int {
	return product(f.Dims)
}

// product multiplies non-negative dims, returning -1 on overflow or a
// negative dim.
func product(dims []int) int {
	n := 1
	for _, d := range dims {
		if d < 0 {
			return -1
		}
		if d != 0 && n > math.MaxInt/d {
			return -1
		}
		n *= d
	}
	return n
}

// SameShape reports whether f and o have identical dimensions
func (f *Field) SameShape(o *Field) bool {
	if len(f.Dims) != len(o.Dims) {
		return false
	}
	for i := range f.Dims {
		if f.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

// CloneGeometry returns a new field with f's dims, spacing, affine and header
// and a freshly allocated zeroed data array.
func (f *Field) CloneGeometry() *Field {
	return &Field{
		Data:    make([]float64, len(f.Data)),
		Dims:    append([]int(nil), f.Dims...),
		Spacing: append([]float64(nil), f.Spacing...),
		Affine:  f.Affine,
		Header:  f.Header,
	}
}
