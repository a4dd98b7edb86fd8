package nifti

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"dvfcomposer/internal/models"
)

// xformAlignedAnat is NIFTI_XFORM_ALIGNED_ANAT, used for the sform when the
// field does not carry its own code.
const xformAlignedAnat = 2

// WriteFile saves field to path as NIfTI-1 with the given float datatype.
// Paths ending in .gz are gzip compressed.
func WriteFile(path string, field *models.Field, dt DataType) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating nifti file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("error closing nifti file: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var gz *gzip.Writer
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz = gzip.NewWriter(bw)
		w = gz
	}

	if err := Encode(w, field, dt); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("error finishing gzip stream: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("error flushing nifti file: %w", err)
	}

	log.WithFields(log.Fields{
		"path":     path,
		"dims":     field.Dims,
		"dataType": dt,
	}).Debug("Wrote nifti image")

	return nil
}

// Encode writes field to w as an uncompressed single-file NIfTI-1 image.
// The voxel data is written unscaled; the affine goes into the sform, and the
// qform is carried over from the field's header when it has one.
func Encode(w io.Writer, field *models.Field, dt DataType) error {
	if len(field.Dims) < 1 || len(field.Dims) > 7 {
		return fmt.Errorf("%w: %d dimensions, must be 1..7", ErrInvalidHeader, len(field.Dims))
	}
	if len(field.Data) != field.Len() {
		return fmt.Errorf("%w: %d values for dims %v", ErrInvalidHeader, len(field.Data), field.Dims)
	}
	if dt.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedDataType, dt)
	}

	payload, err := dt.encode(field.Data)
	if err != nil {
		return err
	}

	h := buildHeader(field, dt)
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	// Extension flag: no extensions follow
	if _, err := w.Write(make([]byte, minVoxOffset-headerSize)); err != nil {
		return fmt.Errorf("error writing extension flag: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("error writing voxel data: %w", err)
	}
	return nil
}

func buildHeader(field *models.Field, dt DataType) *rawHeader {
	src := field.Header
	h := &rawHeader{
		SizeOfHdr:     headerSize,
		UnusedRegular: 'r',
		DimInfo:       src.DimInfo,
		IntentP1:      src.IntentP1,
		IntentP2:      src.IntentP2,
		IntentP3:      src.IntentP3,
		IntentCode:    src.IntentCode,
		DataType:      int16(dt),
		BitPix:        int16(dt.Size() * 8),
		SliceStart:    src.SliceStart,
		VoxOffset:     minVoxOffset,
		SclSlope:      1,
		SclInter:      0,
		SliceEnd:      src.SliceEnd,
		SliceCode:     src.SliceCode,
		XYZTUnits:     src.XYZTUnits,
		CalMax:        src.CalMax,
		CalMin:        src.CalMin,
		SliceDuration: src.SliceDuration,
		TOffset:       src.TOffset,
		Magic:         magicSingleFile,
	}
	putCString(h.Descrip[:], src.Descrip)
	putCString(h.AuxFile[:], src.AuxFile)
	putCString(h.IntentName[:], src.IntentName)

	h.Dim[0] = int16(len(field.Dims))
	for i := 1; i < 8; i++ {
		h.Dim[i] = 1
	}
	for i, d := range field.Dims {
		h.Dim[i+1] = int16(d)
	}

	h.PixDim[0] = 1
	if src.QFac < 0 {
		h.PixDim[0] = -1
	}
	sizes := voxelSizes(field.Affine)
	for i := 1; i < 8; i++ {
		h.PixDim[i] = 1
	}
	for i := range field.Dims {
		switch {
		case i < len(field.Spacing) && field.Spacing[i] > 0:
			h.PixDim[i+1] = float32(field.Spacing[i])
		case i < 3 && sizes[i] > 0:
			h.PixDim[i+1] = float32(sizes[i])
		}
	}

	if src.QFormCode > 0 {
		h.QFormCode = src.QFormCode
		h.QuaternB = src.QuaternB
		h.QuaternC = src.QuaternC
		h.QuaternD = src.QuaternD
		h.QOffsetX = src.QOffsetX
		h.QOffsetY = src.QOffsetY
		h.QOffsetZ = src.QOffsetZ
	}

	h.SFormCode = src.SFormCode
	if h.SFormCode <= 0 {
		h.SFormCode = xformAlignedAnat
	}
	rows := []*[4]float32{&h.SRowX, &h.SRowY, &h.SRowZ}
	for i, row := range rows {
		for j := 0; j < 4; j++ {
			row[j] = float32(field.Affine[i][j])
		}
	}

	return h
}
