// Package snapshot records textual evidence for a captured page: a readable
// text rendition plus SimHash fingerprints of its content and structure.
package snapshot

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes a 64-bit SimHash of the words in text. Case and
// whitespace are ignored.
func Fingerprint(text string) uint64 {
	return fingerprintTokens(strings.Fields(strings.ToLower(text)))
}

// fingerprintTokens accumulates the FNV-64a hash of every token into a
// per-bit vote; bits with a positive vote are set.
func fingerprintTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	h := fnv.New64a()
	for _, tok := range tokens {
		h.Reset()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for bit := range 64 {
			if sum>>bit&1 == 1 {
				vector[bit]++
			} else {
				vector[bit]--
			}
		}
	}

	var fp uint64
	for bit, vote := range vector {
		if vote > 0 {
			fp |= 1 << bit
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b differ in at most threshold bits.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// shingles joins every run of n consecutive tokens, or returns nil when
// there are fewer than n.
func shingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], ">"))
	}
	return out
}
