// Package composer builds deformation vector fields from a linear
// surrogate-driven motion model. A model has three components of identical
// geometry, AP, SI and Offset, and the field for surrogate values (ap, si) is
//
//	DVF = ap*AP + si*SI + Offset
//
// evaluated voxel by voxel.
package composer

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"dvfcomposer/internal/models"
)

var (
	// ErrUnavailable is returned by Compute when the model components
	// could not be loaded.
	ErrUnavailable = errors.New("model components not available")

	// ErrGeometryMismatch is returned when the components do not share
	// dimensions or affine.
	ErrGeometryMismatch = errors.New("model component geometry mismatch")
)

// State tells whether a composer holds its components
type State int

const (
	// Unavailable means loading failed and no components are held
	Unavailable State = iota

	// Loaded means all three components are in memory and validated
	Loaded
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Unavailable:
		return "unavailable"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Loader reads a volumetric field from a file
type Loader interface {
	Load(path string) (*models.Field, error)
}

// Saver writes a volumetric field to a file
type Saver interface {
	Save(path string, field *models.Field) error
}

// Paths locates the three motion model components
type Paths struct {
	// AP is the anterior-posterior (chest) component
	AP string

	// SI is the superior-inferior (diaphragm) component
	SI string

	// Offset is the constant component
	Offset string
}

// Options controls validation and output metadata
type Options struct {
	// CopyHeader copies the AP component's header metadata onto computed
	// fields. When false only its geometry is carried over.
	CopyHeader bool

	// AffineTolerance is the largest element-wise difference allowed
	// between component affines.
	AffineTolerance float64
}

// DefaultOptions copies the header and allows 1e-4 of affine drift
func DefaultOptions() Options {
	return Options{
		CopyHeader:      true,
		AffineTolerance: 1e-4,
	}
}

// ComponentError reports which component failed to load
type ComponentError struct {
	Component string
	Path      string
	Err       error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("failed to load %s component from %s: %v", e.Component, e.Path, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

// components is only ever held as a complete, validated set
type components struct {
	ap     *models.Field
	si     *models.Field
	offset *models.Field
}

// DVFComposer evaluates a linear motion model. Components are read once and
// never modified, so Compute may be called from several goroutines.
type DVFComposer struct {
	state State
	comps *components
	err   error
	opts  Options
}

// Load reads and validates the three components. It fails if any of them
// cannot be read or if their geometries disagree.
func Load(loader Loader, paths Paths, opts Options) (*DVFComposer, error) {
	load := func(name, path string) (*models.Field, error) {
		field, err := loader.Load(path)
		if err != nil {
			return nil, &ComponentError{Component: name, Path: path, Err: err}
		}
		log.WithFields(log.Fields{
			"component": name,
			"path":      path,
			"dims":      field.Dims,
		}).Debug("Loaded model component")
		return field, nil
	}

	ap, err := load("ap", paths.AP)
	if err != nil {
		return nil, err
	}
	si, err := load("si", paths.SI)
	if err != nil {
		return nil, err
	}
	offset, err := load("offset", paths.Offset)
	if err != nil {
		return nil, err
	}

	return newLoaded(&components{ap: ap, si: si, offset: offset}, opts)
}

// New is the forgiving counterpart of Load. It never fails: when loading
// does not succeed the returned composer is Unavailable, the cause is logged
// and kept in Err, and every Compute call returns ErrUnavailable.
func New(loader Loader, paths Paths, opts Options) *DVFComposer {
	c, err := Load(loader, paths, opts)
	if err != nil {
		log.WithError(err).Warn("Could not load model components")
		return &DVFComposer{state: Unavailable, err: err, opts: opts}
	}
	return c
}

// NewFromFields builds a composer from components already in memory
func NewFromFields(ap, si, offset *models.Field, opts Options) (*DVFComposer, error) {
	if ap == nil || si == nil || offset == nil {
		return nil, fmt.Errorf("%w: nil component", ErrUnavailable)
	}
	return newLoaded(&components{ap: ap, si: si, offset: offset}, opts)
}

func newLoaded(comps *components, opts Options) (*DVFComposer, error) {
	if err := validateGeometry(comps, opts.AffineTolerance); err != nil {
		return nil, err
	}
	return &DVFComposer{state: Loaded, comps: comps, opts: opts}, nil
}

// validateGeometry checks SI and Offset against AP
func validateGeometry(comps *components, tol float64) error {
	if len(comps.ap.Data) != comps.ap.Len() {
		return fmt.Errorf("%w: ap has %d values for dims %v", ErrGeometryMismatch, len(comps.ap.Data), comps.ap.Dims)
	}

	others := []struct {
		name  string
		field *models.Field
	}{
		{"si", comps.si},
		{"offset", comps.offset},
	}
	for _, o := range others {
		if !comps.ap.SameShape(o.field) || len(o.field.Data) != len(comps.ap.Data) {
			return fmt.Errorf("%w: %s dims %v, ap dims %v", ErrGeometryMismatch, o.name, o.field.Dims, comps.ap.Dims)
		}
		if !comps.ap.Affine.EqualApprox(o.field.Affine, tol) {
			return fmt.Errorf("%w: %s affine differs from ap affine by more than %g", ErrGeometryMismatch, o.name, tol)
		}
	}
	return nil
}

// State returns whether the components are loaded
func (c *DVFComposer) State() State {
	return c.state
}

// Err returns the load error of an Unavailable composer, nil otherwise
func (c *DVFComposer) Err() error {
	return c.err
}

// Options returns the options the composer was built with
func (c *DVFComposer) Options() Options {
	return c.opts
}

// Geometry returns the dims and affine shared by the components
func (c *DVFComposer) Geometry() ([]int, models.Affine, error) {
	if c.state != Loaded {
		return nil, models.Affine{}, ErrUnavailable
	}
	return append([]int(nil), c.comps.ap.Dims...), c.comps.ap.Affine, nil
}

// Compute returns a new field holding apVal*AP + siVal*SI + Offset. The
// result takes its dims, spacing and affine from AP, and its header from AP
// when CopyHeader is set.
func (c *DVFComposer) Compute(apVal, siVal float64) (*models.Field, error) {
	if c.state != Loaded {
		log.WithError(c.err).Warn("Model components not available")
		return nil, ErrUnavailable
	}

	ap := c.comps.ap
	out := ap.CloneGeometry()
	if !c.opts.CopyHeader {
		out.Header = geometryHeader(ap.Header)
	}

	floats.ScaleTo(out.Data, apVal, ap.Data)
	floats.AddScaled(out.Data, siVal, c.comps.si.Data)
	floats.Add(out.Data, c.comps.offset.Data)

	log.WithFields(log.Fields{
		"ap": apVal,
		"si": siVal,
	}).Debug("Computed DVF")

	return out, nil
}

// ComposeToFile computes the field for (apVal, siVal) and saves it to path
func (c *DVFComposer) ComposeToFile(apVal, siVal float64, path string, saver Saver) (*models.Field, error) {
	field, err := c.Compute(apVal, siVal)
	if err != nil {
		return nil, err
	}
	if err := saver.Save(path, field); err != nil {
		return nil, fmt.Errorf("failed to save DVF: %w", err)
	}
	return field, nil
}

// geometryHeader keeps only the spatial transform codes and quaternion of h
func geometryHeader(h models.Header) models.Header {
	return models.Header{
		QFormCode: h.QFormCode,
		SFormCode: h.SFormCode,
		QuaternB:  h.QuaternB,
		QuaternC:  h.QuaternC,
		QuaternD:  h.QuaternD,
		QOffsetX:  h.QOffsetX,
		QOffsetY:  h.QOffsetY,
		QOffsetZ:  h.QOffsetZ,
		QFac:      h.QFac,
	}
}
