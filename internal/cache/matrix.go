package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bukatea/reuse-edge/internal/matrixkernel"
)

// matrixEntry records one cached power of a base matrix: its exponent and
// the byte offset of the line holding M^exponent in the spill file.
type matrixEntry struct {
	exponent int
	offset   int64
}

// MatrixCache is the matrix_string → (exponent, file_offset) multimap of
// spec.md §4.4, backed by an append-only spill file per matrix under dir.
// Line 0 of reusables/<hash>.dat is the base matrix (registered as
// exponent 1 at offset 0); subsequent lines are successive cached powers.
type MatrixCache struct {
	mu         sync.RWMutex
	dir        string
	index      map[string][]matrixEntry // sorted ascending by exponent
	nextOffset map[string]int64
}

// NewMatrixCache creates a matrix reuse cache spilling to dir, creating it
// if necessary.
func NewMatrixCache(dir string) (*MatrixCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create reusables dir: %w", err)
	}
	return &MatrixCache{
		dir:        dir,
		index:      make(map[string][]matrixEntry),
		nextOffset: make(map[string]int64),
	}, nil
}

func (c *MatrixCache) spillPath(matrixString string) string {
	return filepath.Join(c.dir, matrixkernel.FingerprintString(matrixString)+".dat")
}

// Lookup reports whether matrixString has been seen before and, if so,
// returns the largest cached exponent that is ≤ exponent, and that power's
// matrix value loaded from the spill file, along with the base matrix
// (always line 0). found is false on first sighting.
func (c *MatrixCache) Lookup(matrixString string, exponent int) (base matrixkernel.Matrix, startExp int, startMat matrixkernel.Matrix, found bool, err error) {
	c.mu.RLock()
	entries, ok := c.index[matrixString]
	c.mu.RUnlock()
	if !ok {
		return nil, 0, nil, false, nil
	}

	// Entries are kept sorted ascending by exponent; pick the largest one
	// ≤ exponent (ties broken by exponent itself, which is unique — the
	// "pick the largest" tie-break of spec.md §4.4 applies across which
	// exponent to start from, not within this lookup).
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].exponent > exponent }) - 1
	if idx < 0 {
		idx = 0 // exponent 1 (the base matrix) is always present and ≤ any exponent ≥ 1
	}
	chosen := entries[idx]

	baseEntry := entries[0]
	base, err = c.readLine(matrixString, baseEntry.offset)
	if err != nil {
		return nil, 0, nil, false, err
	}
	if chosen.exponent == baseEntry.exponent {
		return base, chosen.exponent, base, true, nil
	}
	startMat, err = c.readLine(matrixString, chosen.offset)
	if err != nil {
		return nil, 0, nil, false, err
	}
	return base, chosen.exponent, startMat, true, nil
}

func (c *MatrixCache) readLine(matrixString string, offset int64) (matrixkernel.Matrix, error) {
	f, err := os.Open(c.spillPath(matrixString))
	if err != nil {
		return nil, fmt.Errorf("cache: open spill file: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(offset, 0); err != nil {
		return nil, fmt.Errorf("cache: seek spill file: %w", err)
	}
	line, err := readDelimited(f, '\n')
	if err != nil {
		return nil, fmt.Errorf("cache: read spill line: %w", err)
	}
	m, err := matrixkernel.Decode(line)
	if err != nil {
		return nil, fmt.Errorf("cache: decode spill line: %w", err)
	}
	return m, nil
}

// readDelimited reads bytes up to (and excluding) delim, or to EOF.
func readDelimited(f *os.File, delim byte) (string, error) {
	buf := make([]byte, 0, 256)
	one := make([]byte, 1)
	for {
		n, err := f.Read(one)
		if n == 1 {
			if one[0] == delim {
				return string(buf), nil
			}
			buf = append(buf, one[0])
		}
		if err != nil {
			return string(buf), nil
		}
	}
}

// RegisterFirstSighting writes base as line 0 of a fresh spill file for
// matrixString and registers (matrixString, 1, 0) in the index. Returns an
// error without mutating the in-memory index on I/O failure, so the
// caller can degrade to a no-cache path per spec.md §7.
func (c *MatrixCache) RegisterFirstSighting(matrixString string, base matrixkernel.Matrix) error {
	line := matrixkernel.Encode(base) + "\n"
	if err := os.WriteFile(c.spillPath(matrixString), []byte(line), 0o644); err != nil {
		return fmt.Errorf("cache: write base matrix: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.index[matrixString] = []matrixEntry{{exponent: 1, offset: 0}}
	c.nextOffset[matrixString] = int64(len(line))
	return nil
}

// RollbackFirstSighting undoes RegisterFirstSighting after a downstream
// I/O failure, per spec.md §7's "in-memory index entry MUST be rolled
// back" requirement.
func (c *MatrixCache) RollbackFirstSighting(matrixString string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.index, matrixString)
	delete(c.nextOffset, matrixString)
	os.Remove(c.spillPath(matrixString))
}

// AppendPower appends M^exponent as a new line in matrixString's spill
// file and records its offset in the index. Called by the cacher pool
// (internal/workerpool) draining the background caching queue of
// spec.md §4.4.
func (c *MatrixCache) AppendPower(matrixString string, exponent int, m matrixkernel.Matrix) error {
	line := matrixkernel.Encode(m) + "\n"

	c.mu.Lock()
	defer c.mu.Unlock()
	offset, ok := c.nextOffset[matrixString]
	if !ok {
		return fmt.Errorf("cache: AppendPower called before RegisterFirstSighting for %q", matrixString)
	}

	f, err := os.OpenFile(c.spillPath(matrixString), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cache: open spill file for append: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("cache: append spill line: %w", err)
	}

	c.index[matrixString] = insertSorted(c.index[matrixString], matrixEntry{exponent: exponent, offset: offset})
	c.nextOffset[matrixString] = offset + int64(len(line))
	return nil
}

// insertSorted inserts e into entries (kept sorted ascending by exponent)
// at its correct position. The background cacher pool
// (internal/workerpool) runs with bounded concurrency > 1, so two
// AppendPower calls for the same matrixString can complete in an order
// different from the exponents' numeric order; a plain append would then
// leave entries unsorted and break Lookup's sort.Search.
func insertSorted(entries []matrixEntry, e matrixEntry) []matrixEntry {
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].exponent >= e.exponent })
	if idx < len(entries) && entries[idx].exponent == e.exponent {
		entries[idx] = e
		return entries
	}
	entries = append(entries, matrixEntry{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = e
	return entries
}
