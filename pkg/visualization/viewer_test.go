package visualization

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"dvfcomposer/internal/models"
)

// createTestField builds a width x height x depth x 3 displacement field.
// Component c at voxel (x, y, z) holds (c+1) * (z - depth/2).
func createTestField(width, height, depth int) *models.Field {
	field := &models.Field{
		Dims:   []int{width, height, depth, 1, 3},
		Affine: models.IdentityAffine(),
	}
	field.Data = make([]float64, field.Len())
	nvox := width * height * depth
	for c := 0; c < 3; c++ {
		for z := 0; z < depth; z++ {
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					idx := c*nvox + z*width*height + y*width + x
					field.Data[idx] = float64(c+1) * (float64(z) - float64(depth)/2)
				}
			}
		}
	}
	return field
}

// TestNewViewer verifies component selection and scaling
func TestNewViewer(t *testing.T) {
	width, height, depth := 10, 8, 4
	field := createTestField(width, height, depth)

	viewer, err := NewViewer(field, 1)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	if viewer.width != width || viewer.height != height || viewer.depth != depth {
		t.Errorf("Expected dims %dx%dx%d, got %dx%dx%d",
			width, height, depth, viewer.width, viewer.height, viewer.depth)
	}

	if len(viewer.data) != width*height*depth {
		t.Errorf("Expected %d values, got %d", width*height*depth, len(viewer.data))
	}

	// component 1 ranges over 2*(z-2) for z in 0..3, i.e. [-4, 2]
	if viewer.scale != 4 {
		t.Errorf("Expected scale 4, got %f", viewer.scale)
	}

	if _, err := NewViewer(field, 3); err == nil {
		t.Error("Expected error for component out of range, got nil")
	}
	if _, err := NewViewer(field, -1); err == nil {
		t.Error("Expected error for negative component, got nil")
	}
}

// TestExtractSlice verifies slice geometry and intensity mapping
func TestExtractSlice(t *testing.T) {
	width, height, depth := 6, 5, 4
	field := createTestField(width, height, depth)

	viewer, err := NewViewer(field, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}

		value := float64(z) - float64(depth)/2
		expected := (value/viewer.scale + 1) / 2 * 65535
		got := float64(gray16Img.Gray16At(width/2, height/2).Y)
		if math.Abs(got-expected) > 1.0 {
			t.Errorf("Expected Z slice value ~%f at center, got %f", expected, got)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestZeroFieldIsMidGray checks that an all-zero field renders without dividing by zero
func TestZeroFieldIsMidGray(t *testing.T) {
	field := &models.Field{Dims: []int{2, 2, 2}, Data: make([]float64, 8)}
	viewer, err := NewViewer(field, 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if y := img.(*image.Gray16).Gray16At(0, 0).Y; y != 32768 {
		t.Errorf("Expected mid-gray 32768, got %d", y)
	}
}

// TestExtractRegion verifies that 3D regions are copied from the component
func TestExtractRegion(t *testing.T) {
	width, height, depth := 10, 10, 5
	field := createTestField(width, height, depth)
	viewer, err := NewViewer(field, 2)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	startX, startY, startZ := 2, 3, 1
	sizeX, sizeY, sizeZ := 4, 3, 2

	region, err := viewer.ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ)
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}
	if len(region) != sizeX*sizeY*sizeZ {
		t.Fatalf("Expected region size %d, got %d", sizeX*sizeY*sizeZ, len(region))
	}

	for z := 0; z < sizeZ; z++ {
		want := 3 * (float64(startZ+z) - float64(depth)/2)
		for i := 0; i < sizeX*sizeY; i++ {
			if got := region[z*sizeX*sizeY+i]; got != want {
				t.Errorf("Region value mismatch at z=%d: expected %f, got %f", z, want, got)
			}
		}
	}

	if _, err := viewer.ExtractRegion(-1, 0, 0, 1, 1, 1); err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}
	if _, err := viewer.ExtractRegion(0, 0, 0, 0, 1, 1); err == nil {
		t.Error("Expected error for zero size, got nil")
	}
	if _, err := viewer.ExtractRegion(width-1, 0, 0, 2, 1, 1); err == nil {
		t.Error("Expected error for region extending beyond volume, got nil")
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir, err := os.MkdirTemp("", "viewer-sequence-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	width, height, depth := 5, 5, 3
	viewer, err := NewViewer(createTestField(width, height, depth), 0)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(tempDir, "slices")
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, SliceFilename(0, "z", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
