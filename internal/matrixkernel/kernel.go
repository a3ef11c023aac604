// Package matrixkernel declares the black-box integer matrix multiply
// collaborator and the on-wire/on-disk row/column codec for matrices.
// Per spec.md §1 the multiplication kernel itself is out of scope; only
// the compute(a, b) → a*b contract is modeled here.
package matrixkernel

import (
	"context"
	"fmt"
)

// Matrix is a square integer matrix, rows outer.
type Matrix [][]int64

// Dim returns the matrix's dimension (rows == cols, enforced by the codec
// and by every caller in this repository).
func (m Matrix) Dim() int { return len(m) }

// Equal reports whether two matrices have identical dimensions and values.
func (m Matrix) Equal(other Matrix) bool {
	if len(m) != len(other) {
		return false
	}
	for i := range m {
		if len(m[i]) != len(other[i]) {
			return false
		}
		for j := range m[i] {
			if m[i][j] != other[i][j] {
				return false
			}
		}
	}
	return true
}

// Identity returns the n×n identity matrix.
func Identity(n int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]int64, n)
		m[i][i] = 1
	}
	return m
}

// Fill returns an n×n matrix with every entry set to v.
func Fill(n int, v int64) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]int64, n)
		for j := range m[i] {
			m[i][j] = v
		}
	}
	return m
}

// Job represents one in-flight multiplication.
type Job interface {
	WaitForFinished(ctx context.Context) (Matrix, error)
}

// Kernel multiplies two same-dimension square matrices.
type Kernel interface {
	Multiply(a, b Matrix) Job
}

// ErrDimensionMismatch is returned (via Job.WaitForFinished) when a and b
// have different dimensions.
type ErrDimensionMismatch struct {
	A, B int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("matrixkernel: dimension mismatch %d x %d", e.A, e.B)
}
