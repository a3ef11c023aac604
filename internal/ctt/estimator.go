// Package ctt implements the completion-time estimator of spec.md §4.6.
package ctt

import (
	"fmt"
	"math"
)

// EstimateMillis computes CTT_ms(n) = log(50n)/log(1.005) - 750 for poll
// count n (n=1 for the first request). The result is monotonically
// non-decreasing in n per spec.md §8.
func EstimateMillis(n int) int {
	if n < 1 {
		n = 1
	}
	v := math.Log(50*float64(n))/math.Log(1.005) - 750
	return int(v)
}

// Format renders the literal reply payload for a poll. found is only ever
// true for the matrix flavour, when the fingerprint was already present in
// the reuse table at first poll (spec.md §4.6).
func Format(n int, found bool) string {
	if found {
		return fmt.Sprintf("CTT: %d, found", EstimateMillis(n))
	}
	return fmt.Sprintf("CTT: %d", EstimateMillis(n))
}
