package affine

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// writeMatrixFile writes raw matrix text into a temp file and returns its path.
func writeMatrixFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "affine.mat")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write matrix file: %v", err)
	}
	return path
}

// TestReadMatrix verifies parsing of a well-formed FLIRT matrix file.
func TestReadMatrix(t *testing.T) {
	path := writeMatrixFile(t, `0.99 0.01 0.0 -1.5
-0.01 1.02 0.03 2.25
0.0 -0.03 0.98 10.0
0 0 0 1
`)

	m, err := ReadMatrix(path)
	if err != nil {
		t.Fatalf("ReadMatrix failed: %v", err)
	}
	if got := m.At(0, 3); got != -1.5 {
		t.Errorf("m[0][3] = %v, want -1.5", got)
	}
	if got := m.At(2, 2); got != 0.98 {
		t.Errorf("m[2][2] = %v, want 0.98", got)
	}
	if err := Validate(m); err != nil {
		t.Errorf("Validate rejected a well-formed matrix: %v", err)
	}
}

// TestReadMatrixMalformed verifies malformed matrix files are rejected.
func TestReadMatrixMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"too few values", "1 0 0 0\n0 1 0 0\n"},
		{"non-numeric", "1 0 0 a\n0 1 0 0\n0 0 1 0\n0 0 0 1\n"},
		{"too many values", "1 0 0 0 0\n0 1 0 0 0\n0 0 1 0 0\n0 0 0 1 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeMatrixFile(t, tt.content)
			if _, err := ReadMatrix(path); err == nil {
				t.Error("ReadMatrix accepted malformed input")
			}
		})
	}
}

// TestValidate verifies rejection of unusable transform matrices.
func TestValidate(t *testing.T) {
	identity := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	if err := Validate(identity); err != nil {
		t.Errorf("Validate rejected the identity: %v", err)
	}

	singular := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	if err := Validate(singular); err == nil {
		t.Error("Validate accepted a singular matrix")
	}

	nonAffine := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0.5, 0, 0, 1,
	})
	if err := Validate(nonAffine); err == nil {
		t.Error("Validate accepted a matrix with a bad bottom row")
	}

	withNaN := mat.NewDense(4, 4, []float64{
		1, 0, 0, math.NaN(),
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	if err := Validate(withNaN); err == nil {
		t.Error("Validate accepted a matrix with NaN entries")
	}
}

// TestMatrixRoundTrip verifies a written matrix reads back equal.
func TestMatrixRoundTrip(t *testing.T) {
	m := mat.NewDense(4, 4, []float64{
		0.5, 0, 0, -12.5,
		0, 2, 0, 3,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})

	path := filepath.Join(t.TempDir(), "out.mat")
	if err := writeMatrix(path, m); err != nil {
		t.Fatalf("writeMatrix failed: %v", err)
	}

	got, err := ReadMatrix(path)
	if err != nil {
		t.Fatalf("ReadMatrix failed: %v", err)
	}
	if !mat.EqualApprox(m, got, 1e-12) {
		t.Error("round-tripped matrix differs from original")
	}
}
