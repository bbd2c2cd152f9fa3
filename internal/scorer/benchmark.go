package scorer

import (
	"sort"

	"github.com/sells-group/visibility-cli/internal/model"
)

// MinSampleSize is the smallest category population that produces a
// benchmark. Smaller categories are excluded from category benchmarking but
// their entities still count toward the global benchmark.
const MinSampleSize = 3

// Percentile labels derived at read time by comparing an entity's score to
// its category benchmark. Never stored.
const (
	LabelTopPerformer  = "Top performer"
	LabelAboveAverage  = "Above average"
	LabelBelowAverage  = "Below average"
	LabelUnbenchmarked = "Unbenchmarked"
)

// ComputeBenchmark aggregates visibility scores into a category benchmark.
// It returns false when the sample is below MinSampleSize.
func ComputeBenchmark(category string, scores []float64) (model.Benchmark, bool) {
	if len(scores) < MinSampleSize {
		return model.Benchmark{}, false
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}

	return model.Benchmark{
		Category:    category,
		SampleSize:  len(sorted),
		Average:     sum / float64(len(sorted)),
		Median:      percentile(sorted, 0.50),
		TopQuartile: percentile(sorted, 0.75),
	}, true
}

// percentile interpolates linearly between the closest ranks of an
// ascending-sorted sample.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Label classifies a score against a benchmark. It is read-time derived
// state: nothing about the label is persisted.
func Label(score float64, bench model.Benchmark) string {
	if bench.SampleSize < MinSampleSize {
		return LabelUnbenchmarked
	}
	switch {
	case score >= bench.TopQuartile:
		return LabelTopPerformer
	case score >= bench.Average:
		return LabelAboveAverage
	default:
		return LabelBelowAverage
	}
}
