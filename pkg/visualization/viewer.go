// Package visualization renders preview slices of displacement fields.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"dvfcomposer/internal/models"
)

// Viewer extracts 2D slices of one displacement component from a field.
// Values are mapped symmetrically around zero so that no displacement is
// mid-gray, the largest negative displacement black and the largest
// positive displacement white.
type Viewer struct {
	// data holds the selected component, x fastest
	data []float64

	// dimensions of the volume
	width  int
	height int
	depth  int

	// component is the displacement component being shown
	component int

	// scale is the largest absolute value in data
	scale float64
}

// NewViewer creates a viewer for the given component of field
func NewViewer(field *models.Field, component int) (*Viewer, error) {
	ncomp := field.Components()
	if component < 0 || component >= ncomp {
		return nil, fmt.Errorf("component %d out of range, field has %d", component, ncomp)
	}

	dims := [3]int{1, 1, 1}
	for i := 0; i < len(field.Dims) && i < 3; i++ {
		dims[i] = field.Dims[i]
	}

	nvox := field.NumVoxels()
	if nvox < 0 || len(field.Data) != field.Len() {
		return nil, fmt.Errorf("field has %d values for dims %v", len(field.Data), field.Dims)
	}
	data := field.Data[component*nvox : (component+1)*nvox]

	scale := 0.0
	if len(data) > 0 {
		scale = math.Max(math.Abs(floats.Min(data)), math.Abs(floats.Max(data)))
	}

	return &Viewer{
		data:      data,
		width:     dims[0],
		height:    dims[1],
		depth:     dims[2],
		component: component,
		scale:     scale,
	}, nil
}

// gray maps a displacement to a 16-bit intensity
func (v *Viewer) gray(value float64) color.Gray16 {
	if v.scale == 0 {
		return color.Gray16{Y: 32768}
	}
	norm := (value/v.scale + 1) / 2
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, norm*65535)))}
}

// ExtractSlice extracts a 2D slice along the given axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray(v.data[z*v.width*v.height+y*v.width+position]))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(v.data[z*v.width*v.height+position*v.width+x]))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(v.data[position*v.width*v.height+y*v.width+x]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractRegion copies a 3D subregion of the component
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) ([]float64, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startX+sizeX > v.width || startY+sizeY > v.height || startZ+sizeZ > v.depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := make([]float64, sizeX*sizeY*sizeZ)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			src := (startZ+z)*v.width*v.height + (startY+y)*v.width + startX
			dst := z*sizeX*sizeY + y*sizeX
			copy(region[dst:dst+sizeX], v.data[src:src+sizeX])
		}
	}

	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	return file.Close()
}

// SaveSliceSequence saves every slice along axis into outputDir
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, SliceFilename(v.component, axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SliceFilename names the preview of component along axis at pos
func SliceFilename(component int, axis string, pos int) string {
	return fmt.Sprintf("dvf_c%d_%s_%03d.jpg", component, axis, pos)
}
