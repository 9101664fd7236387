package metrics

import (
	"sort"

	"github.com/edsmon/edsmon/pkg/types"
)

// maximeterStats summarizes a histogram window. Samples flagged invalid by
// the portal are excluded from every figure.
func maximeterStats(samples []types.MaximeterSample) types.MaximeterStats {
	var valid []types.MaximeterSample
	for _, s := range samples {
		if s.Valid {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return types.MaximeterStats{}
	}

	var stats types.MaximeterStats
	var sum float64
	for _, s := range valid {
		sum += s.ValueKW
		if s.ValueKW > stats.MaxKW {
			stats.MaxKW = s.ValueKW
			stats.DateOfMax = s.TS
		}
	}
	stats.MaxKW = round2(stats.MaxKW)
	stats.MeanKW = round2(sum / float64(len(valid)))

	values := make([]float64, len(valid))
	for i, s := range valid {
		values[i] = s.ValueKW
	}
	sort.Float64s(values)
	stats.P90KW = round2(quantile(values, 0.90))
	stats.P95KW = round2(quantile(values, 0.95))
	stats.P99KW = round2(quantile(values, 0.99))
	return stats
}

// quantile computes a linearly interpolated quantile over sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
