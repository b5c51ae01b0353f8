package stereodepth

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Depth is a depth measurement in millimeters.
type Depth int16

const (
	// InvalidDepth marks a pixel with no reliable depth: out of range, or
	// produced by a zero or negative disparity. Consumers must treat it as
	// "no depth here", never as a measurement.
	InvalidDepth Depth = math.MaxInt16

	// MinValidDepth and MaxValidDepth bound the depths kept by the conversion
	// stage. The valid interval is [MinValidDepth, MaxValidDepth): inclusive
	// below, exclusive above. Everything outside becomes InvalidDepth.
	MinValidDepth Depth = 500
	MaxValidDepth Depth = 15000
)

// DepthMap is a 2D buffer of millimeter depths.
type DepthMap struct {
	width  int
	height int
	data   []Depth
}

// NewEmptyDepthMap returns an unset depth map with the given dimensions.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{width: width, height: height, data: make([]Depth, width*height)}
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the spatial extent of the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// GetDepth returns the depth at the given coordinates.
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// Get returns the depth at the given point.
func (dm *DepthMap) Get(p image.Point) Depth {
	return dm.data[dm.kxy(p.X, p.Y)]
}

// Set writes the depth at the given coordinates.
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// ValidStats summarizes the valid (non-sentinel) pixels of the map. If no
// pixel is valid, min and max are InvalidDepth and mean is zero.
func (dm *DepthMap) ValidStats() (min, max Depth, mean float64, valid int) {
	vals := make([]float64, 0, len(dm.data))
	for _, d := range dm.data {
		if d == InvalidDepth {
			continue
		}
		vals = append(vals, float64(d))
	}
	if len(vals) == 0 {
		return InvalidDepth, InvalidDepth, 0, 0
	}
	return Depth(floats.Min(vals)), Depth(floats.Max(vals)), stat.Mean(vals, nil), len(vals)
}
