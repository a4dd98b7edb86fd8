package nifti

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"dvfcomposer/internal/models"
)

// bestAffine resolves the voxel-to-world transform of a header the same way
// nibabel does: sform if its code is set, then qform, then a plain scaling
// centred on the volume.
func bestAffine(h *rawHeader) models.Affine {
	switch {
	case h.SFormCode > 0:
		return sformAffine(h)
	case h.QFormCode > 0:
		return qformAffine(h)
	default:
		return baseAffine(h)
	}
}

func sformAffine(h *rawHeader) models.Affine {
	a := models.IdentityAffine()
	rows := [3][4]float32{h.SRowX, h.SRowY, h.SRowZ}
	for i, row := range rows {
		for j, v := range row {
			a[i][j] = float64(v)
		}
	}
	return a
}

// qformAffine builds R * diag(pixdim) from the quaternion (a, b, c, d), where
// a is recovered from b, c and d. A negative qfac flips the third axis.
func qformAffine(h *rawHeader) models.Affine {
	b := float64(h.QuaternB)
	c := float64(h.QuaternC)
	d := float64(h.QuaternD)
	a := 0.0
	if w2 := 1 - (b*b + c*c + d*d); w2 > 0 {
		a = math.Sqrt(w2)
	}

	rot := mat.NewDense(3, 3, []float64{
		a*a + b*b - c*c - d*d, 2 * (b*c - a*d), 2 * (b*d + a*c),
		2 * (b*c + a*d), a*a + c*c - b*b - d*d, 2 * (c*d - a*b),
		2 * (b*d - a*c), 2 * (c*d + a*b), a*a + d*d - c*c - b*b,
	})

	zooms := []float64{
		positiveOrOne(h.PixDim[1]),
		positiveOrOne(h.PixDim[2]),
		positiveOrOne(h.PixDim[3]),
	}
	if h.PixDim[0] < 0 {
		zooms[2] = -zooms[2]
	}

	var m mat.Dense
	m.Mul(rot, mat.NewDiagDense(3, zooms))

	aff := models.IdentityAffine()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			aff[i][j] = m.At(i, j)
		}
	}
	aff[0][3] = float64(h.QOffsetX)
	aff[1][3] = float64(h.QOffsetY)
	aff[2][3] = float64(h.QOffsetZ)
	return aff
}

// baseAffine is the Analyze-style fallback: x flipped, origin at the centre
// of the volume.
func baseAffine(h *rawHeader) models.Affine {
	aff := models.IdentityAffine()
	zooms := [3]float64{
		-positiveOrOne(h.PixDim[1]),
		positiveOrOne(h.PixDim[2]),
		positiveOrOne(h.PixDim[3]),
	}
	for i := 0; i < 3; i++ {
		n := 1
		if i+1 <= int(h.Dim[0]) {
			n = int(h.Dim[i+1])
		}
		origin := float64(n-1) / 2
		aff[i][i] = zooms[i]
		aff[i][3] = -origin * zooms[i]
	}
	return aff
}

// voxelSizes returns the column norms of the affine's 3x3 block
func voxelSizes(a models.Affine) [3]float64 {
	var out [3]float64
	for j := 0; j < 3; j++ {
		out[j] = math.Sqrt(a[0][j]*a[0][j] + a[1][j]*a[1][j] + a[2][j]*a[2][j])
	}
	return out
}

func positiveOrOne(v float32) float64 {
	if v > 0 {
		return float64(v)
	}
	return 1
}
