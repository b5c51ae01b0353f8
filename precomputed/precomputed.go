// Package precomputed reads disparity maps rendered offline by an external
// stereo matcher, one file per frame.
package precomputed

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/densemap/stereodepth"
)

// Source implements stereodepth.DisparitySource by reading per-frame disparity
// files from a directory. Filenames come from a printf-style pattern applied
// to a monotonically increasing frame counter, e.g. "%06d.png".
//
// Supported formats, chosen by extension:
//   - .png: 16-bit grayscale, one whole-pixel disparity per sample (int16 field)
//   - .pfm: portable float map, sub-pixel disparities (float32 field)
type Source struct {
	dir     string
	pattern string
	frame   int
	logger  golog.Logger
}

// NewSource returns a source reading frames from the given directory.
func NewSource(dir, pattern string, logger golog.Logger) (*Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open disparity directory")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", dir)
	}
	return &Source{dir: dir, pattern: pattern, logger: logger}, nil
}

// Name identifies the technique, for diagnostics.
func (s *Source) Name() string {
	return "precomputed"
}

// Reset makes the next DisparityFromStereo call read the given frame number.
func (s *Source) Reset(frame int) {
	s.frame = frame
}

// DisparityFromStereo reads the next frame's disparity file and advances the
// frame counter. The stereo pair is only used to validate dimensions; the
// actual matching happened offline.
func (s *Source) DisparityFromStereo(
	ctx context.Context,
	left, right image.Image,
) (*stereodepth.DisparityField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, fmt.Sprintf(s.pattern, s.frame))
	field, err := readDisparityFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %d", s.frame)
	}
	bounds := left.Bounds()
	if field.Width() != bounds.Dx() || field.Height() != bounds.Dy() {
		return nil, errors.Errorf("disparity file %s is (%d,%d), stereo pair is (%d,%d)",
			path, field.Width(), field.Height(), bounds.Dx(), bounds.Dy())
	}
	if s.logger != nil {
		s.logger.Debugf("read disparity frame %d from %s", s.frame, path)
	}
	s.frame++
	return field, nil
}

func readDisparityFile(path string) (*stereodepth.DisparityField, error) {
	switch ext := filepath.Ext(path); ext {
	case ".png":
		return readPNGDisparity(path)
	case ".pfm":
		return readPFMDisparity(path)
	default:
		return nil, errors.Errorf("no disparity reader for %q files", ext)
	}
}

func readPNGDisparity(path string) (*stereodepth.DisparityField, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "decoding disparity PNG")
	}
	gray, ok := img.(*image.Gray16)
	if !ok {
		return nil, errors.Errorf("disparity PNG must be 16-bit grayscale, got %T", img)
	}
	b := gray.Bounds()
	field := stereodepth.NewInt16DisparityField(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			field.SetInt16(x, y, int16(gray.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
		}
	}
	return field, nil
}
