package precomputed

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/densemap/stereodepth"
)

// readPFMDisparity parses a grayscale PFM ("Pf") file. The header is three
// whitespace-separated fields: the type magic, "width height", and a scale
// whose sign encodes endianness (negative means little-endian). Pixel rows are
// stored bottom-up.
func readPFMDisparity(path string) (*stereodepth.DisparityField, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	r := bufio.NewReader(f)

	magic, err := readPFMToken(r)
	if err != nil {
		return nil, err
	}
	if magic != "Pf" {
		return nil, errors.Errorf("unsupported PFM type %q; only grayscale \"Pf\" maps hold disparity", magic)
	}
	width, err := readPFMDimension(r)
	if err != nil {
		return nil, err
	}
	height, err := readPFMDimension(r)
	if err != nil {
		return nil, err
	}
	scaleTok, err := readPFMToken(r)
	if err != nil {
		return nil, err
	}
	scale, err := strconv.ParseFloat(scaleTok, 64)
	if err != nil || scale == 0 {
		return nil, errors.Errorf("bad PFM scale %q", scaleTok)
	}
	var order binary.ByteOrder = binary.BigEndian
	if scale < 0 {
		order = binary.LittleEndian
		scale = -scale
	}

	field := stereodepth.NewFloat32DisparityField(width, height)
	row := make([]byte, width*4)
	for y := height - 1; y >= 0; y-- {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, errors.Wrap(err, "short PFM pixel data")
		}
		for x := 0; x < width; x++ {
			bits := order.Uint32(row[x*4:])
			field.SetFloat32(x, y, float32(scale)*math.Float32frombits(bits))
		}
	}
	return field, nil
}

// readPFMToken reads one whitespace-delimited header token.
func readPFMToken(r *bufio.Reader) (string, error) {
	tok := make([]byte, 0, 8)
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", errors.Wrap(err, "truncated PFM header")
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			if len(tok) == 0 {
				continue
			}
			return string(tok), nil
		default:
			tok = append(tok, c)
		}
	}
}

func readPFMDimension(r *bufio.Reader) (int, error) {
	tok, err := readPFMToken(r)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(tok)
	if err != nil || v <= 0 {
		return 0, errors.Errorf("bad PFM dimension %q", tok)
	}
	return v, nil
}
