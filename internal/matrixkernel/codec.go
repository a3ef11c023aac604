package matrixkernel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dchest/siphash"
)

// Encode formats m using the wire/spill-file row format of spec.md §3/§6:
// "," separates columns, "|" separates rows, with a trailing "|".
func Encode(m Matrix) string {
	var b strings.Builder
	for _, row := range m {
		for i, v := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatInt(v, 10))
		}
		b.WriteByte('|')
	}
	return b.String()
}

// Decode parses the row format of Encode back into a Matrix, validating
// that every row has the same column count (i.e. the matrix is square,
// which every caller in this repository requires).
func Decode(s string) (Matrix, error) {
	rows := strings.Split(s, "|")
	// Encode leaves a trailing "|", which produces one empty trailing
	// element from strings.Split; drop it.
	if len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	m := make(Matrix, 0, len(rows))
	for _, rowStr := range rows {
		cols := strings.Split(rowStr, ",")
		row := make([]int64, len(cols))
		for i, c := range cols {
			v, err := strconv.ParseInt(c, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("matrixkernel: decode row %q: %w", rowStr, err)
			}
			row[i] = v
		}
		m = append(m, row)
	}
	for _, row := range m {
		if len(row) != len(m) {
			return nil, fmt.Errorf("matrixkernel: decode: matrix is not square (%d rows, a row has %d cols)", len(m), len(row))
		}
	}
	return m, nil
}

// fingerprintKey is the fixed siphash key used to derive content
// fingerprints. It need not be secret — the fingerprint is a content
// address, not a MAC — but siphash's keyed construction is still the
// pack's idiomatic choice for a fast, well-distributed hash (see
// DESIGN.md).
var fingerprintKey = [16]byte{0x72, 0x65, 0x75, 0x73, 0x65, 0x2d, 0x65, 0x64, 0x67, 0x65, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}

// Fingerprint computes the content-addressed hash of m used as the
// matrix_hash in request names and reuse-cache keys (spec.md §3/§6).
func Fingerprint(m Matrix) string {
	return FingerprintString(Encode(m))
}

// FingerprintString hashes the canonical row/column encoding of a matrix
// (or any string key derived from one), used both for the matrix_hash
// wire field and for naming the on-disk spill file (spec.md §3/§6).
func FingerprintString(s string) string {
	h := siphash.Hash(
		uint64FromBytes(fingerprintKey[:8]),
		uint64FromBytes(fingerprintKey[8:]),
		[]byte(s),
	)
	return strconv.FormatUint(h, 16)
}

func uint64FromBytes(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
