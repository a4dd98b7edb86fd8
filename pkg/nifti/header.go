// Package nifti reads and writes single-file NIfTI-1 images (.nii and
// .nii.gz) as models.Field values.
//
// Based on the nifti1 header definition,
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nifti

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	// headerSize is sizeof_hdr for NIfTI-1
	headerSize = 348

	// minVoxOffset is the header plus the 4-byte extension flag
	minVoxOffset = 352
)

var (
	// ErrInvalidHeader is returned when a header fails validation
	ErrInvalidHeader = errors.New("invalid nifti1 header")

	// ErrUnsupportedDataType is returned for datatypes the codec cannot decode
	ErrUnsupportedDataType = errors.New("unsupported nifti datatype")
)

// magicSingleFile is "n+1\0": header and data in the same file
var magicSingleFile = [4]byte{'n', '+', '1', 0}

// rawHeader is the on-disk NIfTI-1 header. Field order and sizes match the C
// struct exactly so it can be read and written with encoding/binary.
//
// C     Go
// -------------
// int   int32
// float float32
// short int16
// char  int8 / byte
type rawHeader struct {
	SizeOfHdr          int32    // Must be 348
	UnusedDataType     [10]byte // Unused
	UnusedDbName       [18]byte // Unused
	UnusedExtents      int32    // Unused
	UnusedSessionError int16    // Unused
	UnusedRegular      byte     // Unused
	DimInfo            int8     // MRI slice ordering

	Dim           [8]int16   // Data array dimensions
	IntentP1      float32    // 1st intent parameter
	IntentP2      float32    // 2nd intent parameter
	IntentP3      float32    // 3rd intent parameter
	IntentCode    int16      // NIFTI_INTENT_* code
	DataType      int16      // Defines data type
	BitPix        int16      // Number bits/voxel
	SliceStart    int16      // First slice index
	PixDim        [8]float32 // Grid spacing
	VoxOffset     float32    // Offset into .nii file
	SclSlope      float32    // Data scaling: slope
	SclInter      float32    // Data scaling: offset
	SliceEnd      int16      // Last slice index
	SliceCode     int8       // Slice timing order
	XYZTUnits     int8       // Units of pixdim[1..4]
	CalMax        float32    // Max display intensity
	CalMin        float32    // Min display intensity
	SliceDuration float32    // Time for 1 slice
	TOffset       float32    // Time axis shift
	UnusedGlmax   int32      // Unused
	UnusedGlmin   int32      // Unused

	Descrip [80]byte // Any text you like
	AuxFile [24]byte // Auxiliary filename

	QFormCode int16 // NIFTI_XFORM_* code
	SFormCode int16 // NIFTI_XFORM_* code

	QuaternB float32 // Quaternion b params
	QuaternC float32 // Quaternion c params
	QuaternD float32 // Quaternion d params
	QOffsetX float32 // Quaternion x shift
	QOffsetY float32 // Quaternion y shift
	QOffsetZ float32 // Quaternion z shift

	SRowX [4]float32 // 1st row affine transform
	SRowY [4]float32 // 2nd row affine transform
	SRowZ [4]float32 // 3rd row affine transform

	IntentName [16]byte // 'name' or meaning of data

	Magic [4]byte // Must be "n+1\0"
}

// readHeader decodes the header at the start of b and returns the byte order
// of the file. The order is inferred from sizeof_hdr, which must be 348 in
// one of the two orders.
func readHeader(b []byte) (*rawHeader, binary.ByteOrder, error) {
	if len(b) < headerSize {
		return nil, nil, fmt.Errorf("%w: file has %d bytes, need at least %d", ErrInvalidHeader, len(b), headerSize)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(b[:4]) == headerSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(b[:4]) == headerSize:
		order = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("%w: sizeof_hdr is neither 348 little- nor big-endian", ErrInvalidHeader)
	}

	h := new(rawHeader)
	if err := binary.Read(bytes.NewReader(b[:headerSize]), order, h); err != nil {
		return nil, nil, fmt.Errorf("error decoding header: %w", err)
	}

	if err := validateHeader(h); err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"byteOrder": order,
		"dataType":  DataType(h.DataType),
		"dim":       h.Dim,
	}).Debug("Read nifti1 header")

	return h, order, nil
}

func validateHeader(h *rawHeader) error {
	switch {
	case h.Magic != magicSingleFile:
		return fmt.Errorf("%w: magic %q, data must be stored in the same file as the header", ErrInvalidHeader, h.Magic[:3])

	case h.Dim[0] < 1 || h.Dim[0] > 7:
		return fmt.Errorf("%w: dim[0] = %d not in range [1, 7]", ErrInvalidHeader, h.Dim[0])
	}

	for i := 1; i <= int(h.Dim[0]); i++ {
		if h.Dim[i] < 1 {
			return fmt.Errorf("%w: dim[%d] = %d", ErrInvalidHeader, i, h.Dim[i])
		}
	}

	dt := DataType(h.DataType)
	if !dt.supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedDataType, dt)
	}
	if int(h.BitPix) != dt.Size()*8 {
		log.WithFields(log.Fields{
			"bitpix":   h.BitPix,
			"dataType": dt,
		}).Warn("bitpix does not match datatype, using datatype size")
	}

	return nil
}

// cString converts a NUL-padded byte array into a Go string
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}

// putCString copies s into dst, truncating so that a terminating NUL fits
func putCString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
