// Package simhash computes locality-sensitive fingerprints used to group
// structurally similar markup blocks, such as the repeated cards of a
// review list.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// Fingerprint computes a 64-bit SimHash of the whitespace-separated tokens
// of text.
func Fingerprint(text string) uint64 {
	return FingerprintTokens(strings.Fields(text))
}

// FingerprintTokens computes a 64-bit SimHash over tokens, hashing each with
// FNV-64a and accumulating a signed bit vector. No tokens yields 0.
func FingerprintTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	h := fnv.New64a()
	for _, tok := range tokens {
		h.Reset()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Cluster groups fingerprints greedily: each one joins the first cluster
// whose seed is within threshold, otherwise it seeds a new cluster. The
// result holds indexes into fps, clusters and members in input order.
func Cluster(fps []uint64, threshold int) [][]int {
	var (
		clusters [][]int
		seeds    []uint64
	)
	for i, fp := range fps {
		placed := false
		for c, seed := range seeds {
			if Similar(seed, fp, threshold) {
				clusters[c] = append(clusters[c], i)
				placed = true
				break
			}
		}
		if !placed {
			seeds = append(seeds, fp)
			clusters = append(clusters, []int{i})
		}
	}
	return clusters
}
