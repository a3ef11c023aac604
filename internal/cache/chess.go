// Package cache implements the three reuse-cache flavours of spec.md
// §4.3/§4.4/§4.5, memoizing partial computation results keyed by content
// fingerprint.
package cache

import (
	"math/rand"
	"sync"
)

// OpeningFENs is the closed set of 20 official opening positions eligible
// for unconditional reuse-cache admission (spec.md §6), taken verbatim
// from external/Goldfish/src/chesstest.cpp's possiblestarts table.
var OpeningFENs = [20]string{
	"rnbqkbnr/pppppppp/8/8/8/P7/1PPPPPPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/1P6/P1PPPPPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/2P5/PP1PPPPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/3P4/PPP1PPPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/4P3/PPPP1PPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/5P2/PPPPP1PP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/6P1/PPPPPP1P/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/7P/PPPPPPP1/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/P7/8/1PPPPPPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/1P6/8/P1PPPPPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/2P5/8/PP1PPPPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/5P2/8/PPPPP1PP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/6P1/8/PPPPPP1P/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/7P/8/PPPPPPP1/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/N7/PPPPPPPP/R1BQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/2N5/PPPPPPPP/R1BQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/5N2/PPPPPPPP/RNBQKB1R w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/7N/PPPPPPPP/RNBQKB1R w KQkq - 0 1",
}

// IsOpeningFEN reports whether fen exactly matches one of the 20
// enumerated opening positions.
func IsOpeningFEN(fen string) bool {
	for _, o := range OpeningFENs {
		if o == fen {
			return true
		}
	}
	return false
}

// ChessCache is the FEN → (depth → result) reuse cache of spec.md §4.3.
type ChessCache struct {
	mu           sync.RWMutex
	nonFirstFrac float64
	rng          *rand.Rand

	decided  map[string]bool // fen -> admission decision already made
	admitted map[string]bool
	table    map[string]map[int]string
}

// NewChessCache creates a chess reuse cache that admits non-opening FENs
// with probability nonFirstFrac. seed makes the Bernoulli draws
// reproducible in tests; production callers can pass time.Now().UnixNano().
func NewChessCache(nonFirstFrac float64, seed int64) *ChessCache {
	return &ChessCache{
		nonFirstFrac: nonFirstFrac,
		rng:          rand.New(rand.NewSource(seed)),
		decided:      make(map[string]bool),
		admitted:     make(map[string]bool),
		table:        make(map[string]map[int]string),
	}
}

// EnsureAdmission returns whether fen is admitted into the reuse cache,
// deciding (and permanently recording) that decision on the FEN's first
// sighting. Opening FENs are always admitted; others are admitted with
// probability nonFirstFrac, sampled exactly once (spec.md §4.3).
//
// The read lock is taken first and, only on a miss, promoted to a write
// lock with a re-check before deciding — the double-checked insertion
// spec.md §9 requires, since the teacher-shaped "read lock then write lock
// without re-checking" pattern can admit the same FEN twice under a race.
func (c *ChessCache) EnsureAdmission(fen string) bool {
	c.mu.RLock()
	if c.decided[fen] {
		admitted := c.admitted[fen]
		c.mu.RUnlock()
		return admitted
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.decided[fen] {
		return c.admitted[fen]
	}
	admit := IsOpeningFEN(fen) || c.rng.Float64() < c.nonFirstFrac
	c.decided[fen] = true
	c.admitted[fen] = admit
	if admit {
		c.table[fen] = make(map[int]string)
	}
	return admit
}

// Lookup returns the cached result for (fen, depth), if any.
func (c *ChessCache) Lookup(fen string, depth int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	depths, ok := c.table[fen]
	if !ok {
		return "", false
	}
	result, ok := depths[depth]
	return result, ok
}

// Store records result for (fen, depth). A no-op if fen was never admitted
// (EnsureAdmission must be called, and return true, before Store).
func (c *ChessCache) Store(fen string, depth int, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if depths, ok := c.table[fen]; ok {
		depths[depth] = result
	}
}
