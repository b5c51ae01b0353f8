package stereodepth

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// DisparityFormat identifies the element type of a DisparityField. The format
// is resolved once at the start of the conversion stage and drives which
// accessors are live on the field.
type DisparityFormat int

const (
	// DisparityFloat32 carries sub-pixel disparities as 32-bit floats.
	DisparityFloat32 DisparityFormat = iota + 1
	// DisparityInt16 carries whole-pixel disparities as 16-bit signed integers.
	DisparityInt16
)

func (f DisparityFormat) String() string {
	switch f {
	case DisparityFloat32:
		return "float32"
	case DisparityInt16:
		return "int16"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ErrUnsupportedFormat is returned when a disparity field carries an element
// type the conversion stage cannot process.
var ErrUnsupportedFormat = errors.New("unsupported disparity format")

// DisparityField is a 2D buffer of per-pixel disparities, in pixels, tagged by
// element format. Exactly one of the two backing slices is live, matching the
// format.
type DisparityField struct {
	width  int
	height int
	format DisparityFormat
	f32    []float32
	i16    []int16
}

// NewFloat32DisparityField returns a zeroed field holding sub-pixel float32
// disparities.
func NewFloat32DisparityField(width, height int) *DisparityField {
	return &DisparityField{
		width:  width,
		height: height,
		format: DisparityFloat32,
		f32:    make([]float32, width*height),
	}
}

// NewInt16DisparityField returns a zeroed field holding whole-pixel int16
// disparities.
func NewInt16DisparityField(width, height int) *DisparityField {
	return &DisparityField{
		width:  width,
		height: height,
		format: DisparityInt16,
		i16:    make([]int16, width*height),
	}
}

func (f *DisparityField) kxy(x, y int) int {
	return (y * f.width) + x
}

// Width returns the width of the field.
func (f *DisparityField) Width() int {
	return f.width
}

// Height returns the height of the field.
func (f *DisparityField) Height() int {
	return f.height
}

// Bounds returns the spatial extent of the field.
func (f *DisparityField) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.width, f.height)
}

// Format returns the element format of the field.
func (f *DisparityField) Format() DisparityFormat {
	return f.format
}

// Float32At returns the disparity at the given coordinates of a float32 field.
func (f *DisparityField) Float32At(x, y int) float32 {
	return f.f32[f.kxy(x, y)]
}

// SetFloat32 writes a disparity into a float32 field.
func (f *DisparityField) SetFloat32(x, y int, val float32) {
	f.f32[f.kxy(x, y)] = val
}

// Int16At returns the disparity at the given coordinates of an int16 field.
func (f *DisparityField) Int16At(x, y int) int16 {
	return f.i16[f.kxy(x, y)]
}

// SetInt16 writes a disparity into an int16 field.
func (f *DisparityField) SetInt16(x, y int, val int16) {
	f.i16[f.kxy(x, y)] = val
}

// AsDepthMap reinterprets an int16 field as a millimeter depth map. This is
// the passthrough path for sources that emit depth directly rather than
// disparity; the values are copied as is, with no conversion or clipping.
func (f *DisparityField) AsDepthMap() (*DepthMap, error) {
	if f.format != DisparityInt16 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "cannot treat a %s field as depth", f.format)
	}
	dm := NewEmptyDepthMap(f.width, f.height)
	for i, v := range f.i16 {
		dm.data[i] = Depth(v)
	}
	return dm, nil
}
