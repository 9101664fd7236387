package metrics

import (
	"testing"

	"github.com/edsmon/edsmon/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestMaximeterStats(t *testing.T) {
	jan := madridDate(2024, 1, 15)
	feb := madridDate(2024, 2, 12)
	mar := madridDate(2024, 3, 10)
	samples := []types.MaximeterSample{
		{TS: jan, ValueKW: 4.2, Valid: true},
		{TS: feb, ValueKW: 9.9, Valid: true},
		{TS: mar, ValueKW: 12.0, Valid: false}, // excluded
	}

	stats := maximeterStats(samples)
	assert.InDelta(t, 9.9, stats.MaxKW, 1e-9)
	assert.Equal(t, feb, stats.DateOfMax)
	assert.InDelta(t, 7.05, stats.MeanKW, 1e-9)
	assert.InDelta(t, 9.33, stats.P90KW, 1e-9)
	assert.InDelta(t, 9.62, stats.P95KW, 0.01)
	assert.InDelta(t, 9.84, stats.P99KW, 0.01)
}

func TestMaximeterStatsSingleSample(t *testing.T) {
	stats := maximeterStats([]types.MaximeterSample{
		{TS: madridDate(2024, 1, 15), ValueKW: 5.5, Valid: true},
	})
	assert.InDelta(t, 5.5, stats.MaxKW, 1e-9)
	assert.InDelta(t, 5.5, stats.MeanKW, 1e-9)
	assert.InDelta(t, 5.5, stats.P99KW, 1e-9)
}

func TestMaximeterStatsNoValidSamples(t *testing.T) {
	stats := maximeterStats([]types.MaximeterSample{
		{TS: madridDate(2024, 1, 15), ValueKW: 5.5, Valid: false},
	})
	assert.Zero(t, stats.MaxKW)
	assert.True(t, stats.DateOfMax.IsZero())

	assert.Zero(t, maximeterStats(nil).MeanKW)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 2.5, quantile(sorted, 0.5), 1e-9)
	assert.InDelta(t, 1.0, quantile(sorted, 0), 1e-9)
	assert.InDelta(t, 4.0, quantile(sorted, 1), 1e-9)
	assert.InDelta(t, 3.7, quantile(sorted, 0.9), 1e-9)
}
