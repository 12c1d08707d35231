package lut

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformed is returned for .cube files that cannot be parsed.
var ErrMalformed = errors.New("lut: malformed table")

// maxCubeSize bounds LUT_3D_SIZE so a corrupt header cannot request a
// multi-gigabyte allocation.
const maxCubeSize = 256

// ReadFile parses the .cube file at path.
func ReadFile(path string) (LUT, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open LUT: %w", err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Read parses an Adobe/Resolve .cube stream.
//
// Supported keywords are TITLE, LUT_1D_SIZE, LUT_3D_SIZE, DOMAIN_MIN and
// DOMAIN_MAX (plus the legacy LUT_1D_INPUT_RANGE/LUT_3D_INPUT_RANGE). Lines
// starting with # are comments. Data rows are three floats; for 3D tables
// red varies fastest, as the format specifies.
func Read(r io.Reader) (LUT, error) {
	var (
		title  string
		size1D int
		size3D int
		domain = UnitDomain
		data   []float64
		lineNo int
	)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		key := fields[0]

		switch key {
		case "TITLE":
			title = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "TITLE")), `"`)
			continue
		case "LUT_1D_SIZE", "LUT_3D_SIZE":
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: line %d: %s needs one value", ErrMalformed, lineNo, key)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 2 || n > maxCubeSize*maxCubeSize {
				return nil, fmt.Errorf("%w: line %d: bad %s %q", ErrMalformed, lineNo, key, fields[1])
			}
			if key == "LUT_1D_SIZE" {
				size1D = n
			} else {
				if n > maxCubeSize {
					return nil, fmt.Errorf("%w: line %d: LUT_3D_SIZE %d exceeds %d", ErrMalformed, lineNo, n, maxCubeSize)
				}
				size3D = n
			}
			continue
		case "DOMAIN_MIN", "DOMAIN_MAX":
			v, err := parseTriplet(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrMalformed, lineNo, key, err)
			}
			if key == "DOMAIN_MIN" {
				domain.Low = v
			} else {
				domain.High = v
			}
			continue
		case "LUT_1D_INPUT_RANGE", "LUT_3D_INPUT_RANGE":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: %s needs two values", ErrMalformed, lineNo, key)
			}
			lo, err1 := strconv.ParseFloat(fields[1], 32)
			hi, err2 := strconv.ParseFloat(fields[2], 32)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("%w: line %d: bad %s", ErrMalformed, lineNo, key)
			}
			domain.Low = [3]float32{float32(lo), float32(lo), float32(lo)}
			domain.High = [3]float32{float32(hi), float32(hi), float32(hi)}
			continue
		}

		if !isNumeric(key) {
			// Unknown keywords (LUT_IN_VIDEO_RANGE and friends) are skipped.
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: data row needs 3 values, got %d", ErrMalformed, lineNo, len(fields))
		}
		for _, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, lineNo, err)
			}
			data = append(data, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for c := 0; c < 3; c++ {
		if domain.High[c] <= domain.Low[c] {
			return nil, fmt.Errorf("%w: empty domain on channel %d", ErrMalformed, c)
		}
	}

	switch {
	case size3D > 0 && size1D > 0:
		return nil, fmt.Errorf("%w: both LUT_1D_SIZE and LUT_3D_SIZE present", ErrMalformed)
	case size3D > 0:
		t, err := NewTable3D(size3D, transposeCube(data, size3D), domain)
		if err != nil {
			return nil, err
		}
		t.Title = title
		return t, nil
	case size1D > 0:
		t, err := NewTable1D(size1D, data, domain)
		if err != nil {
			return nil, err
		}
		t.Title = title
		return t, nil
	}
	return nil, fmt.Errorf("%w: missing LUT_1D_SIZE or LUT_3D_SIZE", ErrMalformed)
}

// transposeCube reorders blue-major file data (red fastest) into the
// red-major layout Table3D samples. Short input is returned unchanged so
// NewTable3D reports the size mismatch.
func transposeCube(in []float64, n int) []float64 {
	if len(in) != n*n*n*3 {
		return in
	}
	out := make([]float64, len(in))
	for b := 0; b < n; b++ {
		for g := 0; g < n; g++ {
			for r := 0; r < n; r++ {
				src := ((b*n+g)*n + r) * 3
				dst := ((r*n+g)*n + b) * 3
				copy(out[dst:dst+3], in[src:src+3])
			}
		}
	}
	return out
}

func parseTriplet(fields []string) ([3]float32, error) {
	var v [3]float32
	if len(fields) != 3 {
		return v, fmt.Errorf("need 3 values, got %d", len(fields))
	}
	for i, s := range fields {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(f)
	}
	return v, nil
}

func isNumeric(s string) bool {
	c := s[0]
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}
