// Package affine reads and sanity-checks FSL (FLIRT) affine matrices.
// The affine conversion stage of the pipeline produces a 4x4 plain-text
// matrix; validating it here catches a degenerate conversion at the stage
// that produced it instead of as an opaque failure inside the composition
// tool downstream.
package affine

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// bottomRowTolerance bounds how far the last row of a valid FLIRT matrix
// may deviate from [0 0 0 1].
const bottomRowTolerance = 1e-6

// minDeterminant is the smallest determinant magnitude accepted as
// invertible.
const minDeterminant = 1e-12

// ReadMatrix parses a FLIRT-format affine matrix file: four rows of four
// whitespace-separated numbers.
func ReadMatrix(path string) (*mat.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix file %s: %v", path, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) != 16 {
		return nil, fmt.Errorf("matrix file %s: expected 16 values, found %d", path, len(fields))
	}

	values := make([]float64, 16)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("matrix file %s: bad value %q: %v", path, f, err)
		}
		values[i] = v
	}

	return mat.NewDense(4, 4, values), nil
}

// writeMatrix writes a 4x4 matrix in FLIRT text format.
func writeMatrix(path string, m *mat.Dense) error {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return fmt.Errorf("expected a 4x4 matrix, got %dx%d", r, c)
	}

	var sb strings.Builder
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if j > 0 {
				sb.WriteString("  ")
			}
			fmt.Fprintf(&sb, "%g", m.At(i, j))
		}
		sb.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write matrix file %s: %v", path, err)
	}
	return nil
}

// Validate checks that m is a usable rigid/affine transform matrix: 4x4,
// all entries finite, bottom row [0 0 0 1], and invertible.
func Validate(m *mat.Dense) error {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return fmt.Errorf("expected a 4x4 matrix, got %dx%d", r, c)
	}

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("matrix entry (%d,%d) is not finite: %v", i, j, v)
			}
		}
	}

	for j := 0; j < 4; j++ {
		want := 0.0
		if j == 3 {
			want = 1.0
		}
		if math.Abs(m.At(3, j)-want) > bottomRowTolerance {
			return fmt.Errorf("bottom row is not [0 0 0 1]: entry (3,%d) = %v", j, m.At(3, j))
		}
	}

	if det := mat.Det(m); math.Abs(det) < minDeterminant {
		return fmt.Errorf("matrix is singular (determinant %v)", det)
	}

	return nil
}
