package matrixkernel

import "context"

// FakeKernel multiplies matrices directly (no black-box latency simulation
// needed for deterministic tests beyond what real compute would do).
type FakeKernel struct {
	invocations int
}

// NewFakeKernel returns a ready-to-use fake kernel.
func NewFakeKernel() *FakeKernel { return &FakeKernel{} }

// Invocations returns how many multiplications were requested.
func (k *FakeKernel) Invocations() int { return k.invocations }

type fakeJob struct {
	result Matrix
	err    error
}

func (j *fakeJob) WaitForFinished(ctx context.Context) (Matrix, error) {
	return j.result, j.err
}

// Multiply computes a*b using schoolbook multiplication.
func (k *FakeKernel) Multiply(a, b Matrix) Job {
	k.invocations++
	if a.Dim() != b.Dim() {
		return &fakeJob{err: ErrDimensionMismatch{A: a.Dim(), B: b.Dim()}}
	}
	n := a.Dim()
	out := make(Matrix, n)
	for i := 0; i < n; i++ {
		out[i] = make([]int64, n)
		for j := 0; j < n; j++ {
			var sum int64
			for k := 0; k < n; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return &fakeJob{result: out}
}
