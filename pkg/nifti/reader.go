package nifti

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"

	log "github.com/sirupsen/logrus"

	"dvfcomposer/internal/models"
)

// gzipMagic prefixes every gzip stream
var gzipMagic = []byte{0x1f, 0x8b}

// ReadFile loads a .nii or .nii.gz file. Compression is detected from the
// content, not the extension.
func ReadFile(path string) (*models.Field, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening nifti file: %w", err)
	}
	defer f.Close()

	field, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path": path,
		"dims": field.Dims,
	}).Debug("Loaded nifti image")

	return field, nil
}

// Decode reads a complete single-file NIfTI-1 image from r, transparently
// decompressing gzip input. Voxel values are returned as float64 with the
// header's scl_slope/scl_inter applied.
func Decode(r io.Reader) (*models.Field, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, err := br.Peek(2); err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("error opening gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	b, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("error reading image bytes: %w", err)
	}

	h, order, err := readHeader(b)
	if err != nil {
		return nil, err
	}

	offset, err := dataOffset(h.VoxOffset, len(b))
	if err != nil {
		return nil, err
	}
	dt := DataType(h.DataType)

	// Every factor is checked against the bytes actually present, so the
	// voxel count cannot overflow on a corrupt header.
	avail := len(b) - offset
	ndim := int(h.Dim[0])
	dims := make([]int, ndim)
	spacing := make([]float64, ndim)
	n := 1
	for i := 0; i < ndim; i++ {
		dims[i] = int(h.Dim[i+1])
		spacing[i] = float64(h.PixDim[i+1])
		if dims[i] > avail/(n*dt.Size()) {
			return nil, fmt.Errorf("%w: dims %v need more than the %d data bytes at offset %d", ErrInvalidHeader, h.Dim[1:ndim+1], avail, offset)
		}
		n *= dims[i]
	}
	size := n * dt.Size()

	data := make([]float64, n)
	dt.decode(b[offset:offset+size], order, data)
	applyScaling(data, h.SclSlope, h.SclInter)

	return &models.Field{
		Data:    data,
		Dims:    dims,
		Spacing: spacing,
		Affine:  bestAffine(h),
		Header:  headerFromRaw(h),
	}, nil
}

// dataOffset validates vox_offset. Values below the header size are read as
// the minimum single-file offset.
func dataOffset(voxOffset float32, fileSize int) (int, error) {
	v := float64(voxOffset)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > float64(fileSize) {
		return 0, fmt.Errorf("%w: vox_offset %g outside file of %d bytes", ErrInvalidHeader, voxOffset, fileSize)
	}
	offset := int(v)
	if offset < minVoxOffset {
		offset = minVoxOffset
	}
	if offset > fileSize {
		return 0, fmt.Errorf("%w: file of %d bytes ends before voxel data", ErrInvalidHeader, fileSize)
	}
	return offset, nil
}

// applyScaling maps stored values to real values. A zero or NaN slope means
// no scaling, as does the identity pair (1, 0).
func applyScaling(data []float64, slope, inter float32) {
	if slope == 0 || math.IsNaN(float64(slope)) || math.IsInf(float64(slope), 0) {
		return
	}
	if math.IsNaN(float64(inter)) || math.IsInf(float64(inter), 0) {
		inter = 0
	}
	if slope == 1 && inter == 0 {
		return
	}
	s, c := float64(slope), float64(inter)
	for i, v := range data {
		data[i] = v*s + c
	}
}

func headerFromRaw(h *rawHeader) models.Header {
	return models.Header{
		DataType:      h.DataType,
		DimInfo:       h.DimInfo,
		IntentCode:    h.IntentCode,
		IntentP1:      h.IntentP1,
		IntentP2:      h.IntentP2,
		IntentP3:      h.IntentP3,
		IntentName:    cString(h.IntentName[:]),
		SclSlope:      h.SclSlope,
		SclInter:      h.SclInter,
		SliceStart:    h.SliceStart,
		SliceEnd:      h.SliceEnd,
		SliceCode:     h.SliceCode,
		SliceDuration: h.SliceDuration,
		XYZTUnits:     h.XYZTUnits,
		CalMax:        h.CalMax,
		CalMin:        h.CalMin,
		TOffset:       h.TOffset,
		Descrip:       cString(h.Descrip[:]),
		AuxFile:       cString(h.AuxFile[:]),
		QFormCode:     h.QFormCode,
		SFormCode:     h.SFormCode,
		QuaternB:      h.QuaternB,
		QuaternC:      h.QuaternC,
		QuaternD:      h.QuaternD,
		QOffsetX:      h.QOffsetX,
		QOffsetY:      h.QOffsetY,
		QOffsetZ:      h.QOffsetZ,
		QFac:          h.PixDim[0],
	}
}
