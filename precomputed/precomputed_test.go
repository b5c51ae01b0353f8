package precomputed

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/densemap/stereodepth"
)

func writeDisparityPNG(t *testing.T, path string, width, height int, disparity uint16) {
	t.Helper()
	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: disparity})
		}
	}
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, img), test.ShouldBeNil)
	test.That(t, os.WriteFile(path, buf.Bytes(), 0o600), test.ShouldBeNil)
}

// writePFM writes a little-endian grayscale PFM with rows stored bottom-up.
func writePFM(t *testing.T, path string, width, height int, values []float32) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("Pf\n")
	fmt.Fprintf(&buf, "%d %d\n", width, height)
	buf.WriteString("-1.0\n")
	for y := height - 1; y >= 0; y-- {
		for x := 0; x < width; x++ {
			var word [4]byte
			binary.LittleEndian.PutUint32(word[:], math.Float32bits(values[y*width+x]))
			buf.Write(word[:])
		}
	}
	test.That(t, os.WriteFile(path, buf.Bytes(), 0o600), test.ShouldBeNil)
}

func TestNewSource(t *testing.T) {
	logger := golog.NewTestLogger(t)

	_, err := NewSource("/does/not/exist", "%06d.png", logger)
	test.That(t, err, test.ShouldNotBeNil)

	dir := t.TempDir()
	file := filepath.Join(dir, "somefile")
	test.That(t, os.WriteFile(file, []byte("x"), 0o600), test.ShouldBeNil)
	_, err = NewSource(file, "%06d.png", logger)
	test.That(t, err, test.ShouldNotBeNil)

	src, err := NewSource(dir, "%06d.png", logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, src.Name(), test.ShouldEqual, "precomputed")
}

func TestDisparityFromStereoPNG(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	writeDisparityPNG(t, filepath.Join(dir, "000000.png"), 8, 6, 64)
	writeDisparityPNG(t, filepath.Join(dir, "000001.png"), 8, 6, 32)

	src, err := NewSource(dir, "%06d.png", logger)
	test.That(t, err, test.ShouldBeNil)

	left := image.NewGray(image.Rect(0, 0, 8, 6))
	right := image.NewGray(image.Rect(0, 0, 8, 6))

	field, err := src.DisparityFromStereo(context.Background(), left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, field.Format(), test.ShouldEqual, stereodepth.DisparityInt16)
	test.That(t, field.Width(), test.ShouldEqual, 8)
	test.That(t, field.Height(), test.ShouldEqual, 6)
	test.That(t, field.Int16At(3, 4), test.ShouldEqual, int16(64))

	// the frame counter advances
	field, err = src.DisparityFromStereo(context.Background(), left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, field.Int16At(0, 0), test.ShouldEqual, int16(32))

	// no frame 2 on disk
	_, err = src.DisparityFromStereo(context.Background(), left, right)
	test.That(t, err, test.ShouldNotBeNil)

	src.Reset(1)
	field, err = src.DisparityFromStereo(context.Background(), left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, field.Int16At(0, 0), test.ShouldEqual, int16(32))
}

func TestDisparityFromStereoPFM(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	values := []float32{
		1.5, 2.5, 3.5,
		-4.5, 0, 116.25,
	}
	writePFM(t, filepath.Join(dir, "000000.pfm"), 3, 2, values)

	src, err := NewSource(dir, "%06d.pfm", logger)
	test.That(t, err, test.ShouldBeNil)

	left := image.NewGray(image.Rect(0, 0, 3, 2))
	right := image.NewGray(image.Rect(0, 0, 3, 2))

	field, err := src.DisparityFromStereo(context.Background(), left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, field.Format(), test.ShouldEqual, stereodepth.DisparityFloat32)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			test.That(t, field.Float32At(x, y), test.ShouldEqual, values[y*3+x])
		}
	}
}

func TestDisparityFromStereoErrors(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	writeDisparityPNG(t, filepath.Join(dir, "000000.png"), 8, 6, 64)

	src, err := NewSource(dir, "%06d.png", logger)
	test.That(t, err, test.ShouldBeNil)

	// dimension mismatch against the stereo pair
	left := image.NewGray(image.Rect(0, 0, 4, 4))
	right := image.NewGray(image.Rect(0, 0, 4, 4))
	_, err = src.DisparityFromStereo(context.Background(), left, right)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "stereo pair")

	// unknown extension
	src, err = NewSource(dir, "%06d.exr", logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = src.DisparityFromStereo(context.Background(), left, right)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no disparity reader")

	// canceled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src, err = NewSource(dir, "%06d.png", logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = src.DisparityFromStereo(ctx, left, right)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPrecomputedWithDepthProvider(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dir := t.TempDir()
	// 64px disparity with baseline 0.5m and focal 700px -> about 5.47m
	writeDisparityPNG(t, filepath.Join(dir, "000000.png"), 8, 6, 64)

	src, err := NewSource(dir, "%06d.png", logger)
	test.That(t, err, test.ShouldBeNil)

	calib := stereodepth.StereoCalibration{BaselineM: 0.5, FocalLengthPx: 700}
	provider, err := stereodepth.NewDepthProvider(src, calib, false, logger)
	test.That(t, err, test.ShouldBeNil)

	left := image.NewGray(image.Rect(0, 0, 8, 6))
	right := image.NewGray(image.Rect(0, 0, 8, 6))
	dm, err := provider.DepthFromStereo(context.Background(), left, right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 8)
	test.That(t, dm.Height(), test.ShouldEqual, 6)
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			test.That(t, float64(dm.GetDepth(x, y)), test.ShouldAlmostEqual, 5468, 1)
		}
	}
}
