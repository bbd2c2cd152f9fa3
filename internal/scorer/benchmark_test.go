package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/model"
)

func TestComputeBenchmark(t *testing.T) {
	bench, ok := ComputeBenchmark("crm", []float64{40, 60, 80, 100})
	require.True(t, ok)

	assert.Equal(t, "crm", bench.Category)
	assert.Equal(t, 4, bench.SampleSize)
	assert.InDelta(t, 70.0, bench.Average, 1e-9)
	assert.InDelta(t, 70.0, bench.Median, 1e-9)
	assert.InDelta(t, 85.0, bench.TopQuartile, 1e-9)
}

func TestComputeBenchmarkMinSample(t *testing.T) {
	_, ok := ComputeBenchmark("crm", []float64{40, 60})
	assert.False(t, ok)

	_, ok = ComputeBenchmark("crm", nil)
	assert.False(t, ok)

	bench, ok := ComputeBenchmark("crm", []float64{40, 60, 80})
	require.True(t, ok)
	assert.Equal(t, 3, bench.SampleSize)
	assert.InDelta(t, 60.0, bench.Median, 1e-9)
}

func TestComputeBenchmarkUnsortedInput(t *testing.T) {
	a, ok := ComputeBenchmark("x", []float64{100, 40, 80, 60})
	require.True(t, ok)
	b, ok := ComputeBenchmark("x", []float64{40, 60, 80, 100})
	require.True(t, ok)
	assert.Equal(t, b, a)
}

func TestLabel(t *testing.T) {
	bench := model.Benchmark{
		Category:    "crm",
		SampleSize:  4,
		Average:     70,
		Median:      70,
		TopQuartile: 85,
	}

	tests := []struct {
		score float64
		want  string
	}{
		{90, LabelTopPerformer},
		{85, LabelTopPerformer},
		{75, LabelAboveAverage},
		{70, LabelAboveAverage},
		{50, LabelBelowAverage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.score, bench), "score=%v", tt.score)
	}

	assert.Equal(t, LabelUnbenchmarked, Label(90, model.Benchmark{SampleSize: 2}))
}
