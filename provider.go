package stereodepth

import (
	"context"
	"image"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/densemap/stereodepth/utils"
)

// metersToMillimeters scales the metric conversion output into the depth
// map's integer domain.
const metersToMillimeters = 1000

// DisparitySource computes a disparity field from a rectified stereo pair.
// Implementations are free to use any technique (block matching, learned
// networks, precomputed files); the depth stage is agnostic.
type DisparitySource interface {
	// DisparityFromStereo produces a freshly allocated disparity field with
	// the same spatial dimensions as the pair. It must not change dimensions.
	DisparityFromStereo(ctx context.Context, left, right image.Image) (*DisparityField, error)
	// Name identifies the technique, for diagnostics.
	Name() string
}

// DepthFromDisparity converts a single disparity value, in pixels, to depth in
// meters. A zero disparity yields +Inf and a negative one a negative depth;
// the conversion stage maps both to InvalidDepth.
func DepthFromDisparity(disparityPx float32, calib StereoCalibration) float32 {
	return float32(calib.BaselineM*calib.FocalLengthPx) / disparityPx
}

// toDepth truncates a metric depth to integer millimeters and applies the
// range policy: values outside [MinValidDepth, MaxValidDepth) and non-finite
// values become InvalidDepth.
func toDepth(meters float32) Depth {
	mm := math.Trunc(float64(meters) * metersToMillimeters)
	if math.IsNaN(mm) || mm < float64(MinValidDepth) || mm >= float64(MaxValidDepth) {
		return InvalidDepth
	}
	return Depth(mm)
}

// DepthMapFromDisparity converts every pixel of a disparity field to clipped
// millimeter depth. Pixels are independent, so the loop runs in parallel
// blocks; every output element is either a depth within the valid range or
// exactly InvalidDepth. A field of unknown format fails before any pixel work.
func DepthMapFromDisparity(field *DisparityField, calib StereoCalibration) (*DepthMap, error) {
	var at func(x, y int) float32
	switch field.Format() {
	case DisparityFloat32:
		at = field.Float32At
	case DisparityInt16:
		at = func(x, y int) float32 { return float32(field.Int16At(x, y)) }
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s; supported formats are %s and %s",
			field.Format(), DisparityFloat32, DisparityInt16)
	}

	dm := NewEmptyDepthMap(field.Width(), field.Height())
	utils.ParallelForEachPixel(image.Point{field.Width(), field.Height()}, func(x, y int) {
		dm.Set(x, y, toDepth(DepthFromDisparity(at(x, y), calib)))
	})
	return dm, nil
}

// DepthProvider turns stereo pairs into millimeter depth maps using a
// pluggable disparity source. A provider is safe for concurrent use; each
// DepthFromStereo call owns its own buffers.
type DepthProvider struct {
	source        DisparitySource
	calib         StereoCalibration
	sourceIsDepth bool
	logger        golog.Logger
}

// NewDepthProvider wires a disparity source to the conversion stage.
// sourceIsDepth declares that the source already emits millimeter depth
// rather than disparity; such output is returned as is.
func NewDepthProvider(
	source DisparitySource,
	calib StereoCalibration,
	sourceIsDepth bool,
	logger golog.Logger,
) (*DepthProvider, error) {
	if source == nil {
		return nil, errors.New("disparity source cannot be nil")
	}
	if err := calib.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid stereo calibration")
	}
	return &DepthProvider{
		source:        source,
		calib:         calib,
		sourceIsDepth: sourceIsDepth,
		logger:        logger,
	}, nil
}

// DepthFromStereo computes a depth map from a rectified stereo pair
// (stereo -> disparity -> depth). The returned map always has the same
// dimensions as the pair.
//
// When the provider was built with sourceIsDepth, the source's buffer is
// already millimeter depth and is returned without conversion or clipping;
// depth sources are trusted to emit final values. Only the disparity path
// below applies the range policy.
func (p *DepthProvider) DepthFromStereo(ctx context.Context, left, right image.Image) (*DepthMap, error) {
	if left == nil || right == nil {
		return nil, errors.New("stereo pair cannot be nil")
	}
	lb, rb := left.Bounds(), right.Bounds()
	if lb.Dx() != rb.Dx() || lb.Dy() != rb.Dy() {
		return nil, errors.Errorf("stereo pair dimensions do not match: left (%d,%d) != right (%d,%d)",
			lb.Dx(), lb.Dy(), rb.Dx(), rb.Dy())
	}

	field, err := p.source.DisparityFromStereo(ctx, left, right)
	if err != nil {
		return nil, errors.Wrapf(err, "disparity source %q failed", p.source.Name())
	}
	if field.Width() != lb.Dx() || field.Height() != lb.Dy() {
		return nil, errors.Errorf("disparity source %q changed dimensions: got (%d,%d), expected (%d,%d)",
			p.source.Name(), field.Width(), field.Height(), lb.Dx(), lb.Dy())
	}

	if p.sourceIsDepth {
		return field.AsDepthMap()
	}

	dm, err := DepthMapFromDisparity(field, p.calib)
	if err != nil {
		return nil, err
	}
	if p.logger != nil {
		minDepth, maxDepth, mean, valid := dm.ValidStats()
		p.logger.Debugf("%s: depth min=%dmm max=%dmm mean=%.1fmm valid=%d/%d",
			p.source.Name(), minDepth, maxDepth, mean, valid, dm.Width()*dm.Height())
	}
	return dm, nil
}
