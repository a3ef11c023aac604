package cache

import (
	"testing"

	"github.com/bukatea/reuse-edge/internal/matrixkernel"
)

func testMatrix(v int64) matrixkernel.Matrix {
	return matrixkernel.Matrix{
		{v, v + 1},
		{v + 2, v + 3},
	}
}

func TestMatrixCacheFirstSightingNotFound(t *testing.T) {
	c, err := NewMatrixCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewMatrixCache: %v", err)
	}
	_, _, _, found, err := c.Lookup("key-a", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected not found on first sighting")
	}
}

func TestMatrixCacheRegisterThenLookupReturnsBase(t *testing.T) {
	c, err := NewMatrixCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewMatrixCache: %v", err)
	}
	base := testMatrix(1)
	if err := c.RegisterFirstSighting("key-a", base); err != nil {
		t.Fatalf("RegisterFirstSighting: %v", err)
	}

	gotBase, startExp, startMat, found, err := c.Lookup("key-a", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found after registration")
	}
	if startExp != 1 {
		t.Fatalf("expected start exponent 1, got %d", startExp)
	}
	if !gotBase.Equal(base) || !startMat.Equal(base) {
		t.Fatal("expected base matrix round-tripped through spill file")
	}
}

func TestMatrixCacheAppendPowerAndTieBreakLargestLEQ(t *testing.T) {
	c, err := NewMatrixCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewMatrixCache: %v", err)
	}
	base := testMatrix(1)
	if err := c.RegisterFirstSighting("key-a", base); err != nil {
		t.Fatalf("RegisterFirstSighting: %v", err)
	}
	pow2 := testMatrix(10)
	pow4 := testMatrix(100)
	if err := c.AppendPower("key-a", 2, pow2); err != nil {
		t.Fatalf("AppendPower(2): %v", err)
	}
	if err := c.AppendPower("key-a", 4, pow4); err != nil {
		t.Fatalf("AppendPower(4): %v", err)
	}

	// Target exponent 6: largest cached exponent <= 6 is 4.
	gotBase, startExp, startMat, found, err := c.Lookup("key-a", 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found")
	}
	if startExp != 4 {
		t.Fatalf("expected tie-break to exponent 4, got %d", startExp)
	}
	if !startMat.Equal(pow4) {
		t.Fatal("expected start matrix to equal cached power 4")
	}
	if !gotBase.Equal(base) {
		t.Fatal("expected base matrix always returned alongside")
	}

	// Target exponent 3: largest cached exponent <= 3 is 2.
	_, startExp, startMat, found, err = c.Lookup("key-a", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || startExp != 2 || !startMat.Equal(pow2) {
		t.Fatalf("expected tie-break to exponent 2, got exp=%d found=%v", startExp, found)
	}
}

func TestMatrixCacheRollbackRemovesEntryAndFile(t *testing.T) {
	c, err := NewMatrixCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewMatrixCache: %v", err)
	}
	if err := c.RegisterFirstSighting("key-a", testMatrix(1)); err != nil {
		t.Fatalf("RegisterFirstSighting: %v", err)
	}
	c.RollbackFirstSighting("key-a")

	_, _, _, found, err := c.Lookup("key-a", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected rollback to remove the index entry")
	}
}

func TestMatrixCacheDistinctKeysIndependentFiles(t *testing.T) {
	c, err := NewMatrixCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewMatrixCache: %v", err)
	}
	if err := c.RegisterFirstSighting("key-a", testMatrix(1)); err != nil {
		t.Fatalf("RegisterFirstSighting a: %v", err)
	}
	if err := c.RegisterFirstSighting("key-b", testMatrix(50)); err != nil {
		t.Fatalf("RegisterFirstSighting b: %v", err)
	}

	_, _, matA, _, err := c.Lookup("key-a", 1)
	if err != nil {
		t.Fatalf("lookup a: %v", err)
	}
	_, _, matB, _, err := c.Lookup("key-b", 1)
	if err != nil {
		t.Fatalf("lookup b: %v", err)
	}
	if matA.Equal(matB) {
		t.Fatal("expected independent spill files for distinct keys")
	}
}
