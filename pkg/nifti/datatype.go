package nifti

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// DataType is a NIFTI_TYPE_* code
type DataType int16

// Datatype codes from nifti1.h
const (
	Uint8   DataType = 2
	Int16   DataType = 4
	Int32   DataType = 8
	Float32 DataType = 16
	Float64 DataType = 64
	Int8    DataType = 256
	Uint16  DataType = 512
	Uint32  DataType = 768
	Int64   DataType = 1024
	Uint64  DataType = 1280
)

var dataTypeNames = map[DataType]string{
	Uint8:   "uint8",
	Int16:   "int16",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
	Int8:    "int8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Int64:   "int64",
	Uint64:  "uint64",
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("datatype(%d)", int16(d))
}

// ParseDataType maps a name such as "float32" to its code
func ParseDataType(name string) (DataType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for dt, n := range dataTypeNames {
		if n == name {
			return dt, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedDataType, name)
}

// Size returns the number of bytes per value, or 0 for unknown codes
func (d DataType) Size() int {
	switch d {
	case Uint8, Int8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// IsFloat reports whether the datatype is a floating point type
func (d DataType) IsFloat() bool {
	return d == Float32 || d == Float64
}

func (d DataType) supported() bool {
	return d.Size() > 0
}

// decode converts raw voxel bytes into float64 values
func (d DataType) decode(raw []byte, order binary.ByteOrder, out []float64) {
	size := d.Size()
	for i := range out {
		b := raw[i*size : (i+1)*size]
		switch d {
		case Uint8:
			out[i] = float64(b[0])
		case Int8:
			out[i] = float64(int8(b[0]))
		case Int16:
			out[i] = float64(int16(order.Uint16(b)))
		case Uint16:
			out[i] = float64(order.Uint16(b))
		case Int32:
			out[i] = float64(int32(order.Uint32(b)))
		case Uint32:
			out[i] = float64(order.Uint32(b))
		case Int64:
			out[i] = float64(int64(order.Uint64(b)))
		case Uint64:
			out[i] = float64(order.Uint64(b))
		case Float32:
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case Float64:
			out[i] = math.Float64frombits(order.Uint64(b))
		}
	}
}

// encode writes values little-endian as a float datatype
func (d DataType) encode(values []float64) ([]byte, error) {
	switch d {
	case Float32:
		buf := make([]byte, 4*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
		}
		return buf, nil
	case Float64:
		buf := make([]byte, 8*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
		}
		return buf, nil
	}
	return nil, fmt.Errorf("%w: cannot write %s, output must be float32 or float64", ErrUnsupportedDataType, d)
}
