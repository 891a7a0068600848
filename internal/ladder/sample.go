package ladder

import (
	"math/rand"
	"sort"
)

// SampleMode selects which slice of the complexity distribution to draw
// probe chunks from.
type SampleMode int

const (
	// SampleAverage draws from the 10th-90th percentile band — the typical
	// content range, avoiding both near-static and worst-case outliers.
	SampleAverage SampleMode = iota
	// SampleTopComplex draws from the hardest tail of the distribution, the
	// chunks most likely to fail a bitrate target.
	SampleTopComplex
)

// Sample selects a deterministic subset of chunks[] by complexity and
// SampleMode, seeded by seed so repeated runs over the same chunk set
// produce the same sample.
//
// SampleAverage slices the 10th-90th percentile band (by complexity) and
// samples up to 10 chunks from it. SampleTopComplex slices the last
// max(10, 5%) chunks by complexity and samples 30% of that slice.
func Sample(chunks []ChunkComplexity, mode SampleMode, seed uint64) []ChunkComplexity {
	if len(chunks) == 0 {
		return nil
	}

	sorted := make([]ChunkComplexity, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Complexity < sorted[j].Complexity })

	n := len(sorted)
	var slice []ChunkComplexity
	var sampleSize int

	switch mode {
	case SampleTopComplex:
		tailLen := n / 20 // 5%
		if tailLen < 10 {
			tailLen = 10
		}
		if tailLen > n {
			tailLen = n
		}
		slice = sorted[n-tailLen:]
		sampleSize = int(float64(len(slice))*0.3 + 0.5)
		if sampleSize < 1 {
			sampleSize = 1
		}
	default: // SampleAverage
		lo := int(float64(n) * 0.10)
		hi := int(float64(n) * 0.90)
		if hi <= lo {
			hi = n
		}
		slice = sorted[lo:hi]
		sampleSize = 10
	}

	if sampleSize >= len(slice) {
		return slice
	}

	rng := rand.New(rand.NewSource(int64(seed)))
	indices := rng.Perm(len(slice))[:sampleSize]
	sort.Ints(indices)

	out := make([]ChunkComplexity, sampleSize)
	for i, idx := range indices {
		out[i] = slice[idx]
	}
	return out
}
