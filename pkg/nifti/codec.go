package nifti

import (
	"dvfcomposer/internal/models"
)

// Codec loads and saves fields as NIfTI-1 files. With a zero OutputType,
// Save keeps the field's own datatype when it is a float type and writes
// float32 otherwise.
type Codec struct {
	// OutputType is the datatype used by Save; Float32, Float64 or zero
	OutputType DataType
}

// NewCodec returns a codec writing the given datatype
func NewCodec(outputType DataType) *Codec {
	return &Codec{OutputType: outputType}
}

// Load reads a field from path
func (c *Codec) Load(path string) (*models.Field, error) {
	return ReadFile(path)
}

// Save writes field to path
func (c *Codec) Save(path string, field *models.Field) error {
	return WriteFile(path, field, c.outputType(field))
}

func (c *Codec) outputType(field *models.Field) DataType {
	if c.OutputType != 0 {
		return c.OutputType
	}
	if dt := DataType(field.Header.DataType); dt.IsFloat() {
		return dt
	}
	return Float32
}
