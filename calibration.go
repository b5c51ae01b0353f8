package stereodepth

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// StereoCalibration holds the two parameters of a rectified stereo rig needed
// to turn pixel disparity into metric depth. It is immutable once constructed.
type StereoCalibration struct {
	// BaselineM is the distance between the two camera centers, in meters.
	BaselineM float64 `json:"baseline_m"`
	// FocalLengthPx is the focal length of the rectified pair, in pixels.
	FocalLengthPx float64 `json:"focal_length_px"`
}

// CheckValid returns an error if the calibration cannot produce meaningful
// depth. Both parameters must be positive and finite.
func (sc StereoCalibration) CheckValid() error {
	var err error
	if !(sc.BaselineM > 0) || math.IsInf(sc.BaselineM, 1) {
		err = multierr.Append(err, errors.Errorf("baseline must be positive and finite, got %v", sc.BaselineM))
	}
	if !(sc.FocalLengthPx > 0) || math.IsInf(sc.FocalLengthPx, 1) {
		err = multierr.Append(err, errors.Errorf("focal length must be positive and finite, got %v", sc.FocalLengthPx))
	}
	return err
}

// NewStereoCalibrationFromJSONFile takes in a file path to a JSON and turns it
// into a StereoCalibration.
func NewStereoCalibrationFromJSONFile(jsonPath string) (*StereoCalibration, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	calib := &StereoCalibration{}
	if err := json.Unmarshal(byteValue, calib); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := calib.CheckValid(); err != nil {
		return nil, err
	}
	return calib, nil
}
