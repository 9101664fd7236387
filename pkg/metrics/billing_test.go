package metrics

import (
	"testing"
	"time"

	"github.com/edsmon/edsmon/pkg/types"
	"github.com/stretchr/testify/assert"
)

func pricesAt(date time.Time, hourly map[int]float64) map[int64]float64 {
	idx := make(map[int64]float64, len(hourly))
	for h, v := range hourly {
		idx[date.Add(time.Duration(h)*time.Hour).Unix()] = v
	}
	return idx
}

func TestEnergyCost(t *testing.T) {
	day := madridDate(2024, 6, 3)
	points := []types.CurvePoint{
		{Date: day, Hour: 3, ValueKWH: 1.0},
		{Date: day, Hour: 10, ValueKWH: 2.0},
		{Date: day, Hour: 20, ValueKWH: 5.0}, // no price for this hour
	}
	idx := pricesAt(day, map[int]float64{3: 0.10, 10: 0.20})

	cost, ok := energyCost(points, idx)
	assert.True(t, ok)
	assert.InDelta(t, 0.50, cost, 1e-9)
}

func TestEnergyCostNoMatches(t *testing.T) {
	day := madridDate(2024, 6, 3)
	points := []types.CurvePoint{{Date: day, Hour: 3, ValueKWH: 1.0}}

	_, ok := energyCost(points, map[int64]float64{})
	assert.False(t, ok)

	_, ok = energyCost(nil, pricesAt(day, map[int]float64{3: 0.10}))
	assert.False(t, ok)
}

func TestApplyBilling(t *testing.T) {
	day := madridDate(2024, 6, 3)
	curve := types.Curve{
		Start: madridDate(2024, 6, 1),
		End:   madridDate(2024, 6, 15),
		Points: []types.CurvePoint{
			{Date: day, Hour: 3, ValueKWH: 1.0},
			{Date: day, Hour: 10, ValueKWH: 2.0},
		},
	}
	cyc := types.CycleEnergy{Start: curve.Start, End: curve.End, DayCount: 15}
	idx := pricesAt(day, map[int]float64{3: 0.10, 10: 0.20})

	ok := applyBilling(&cyc, curve, idx, 4.6, 4.6, DefaultRates())
	assert.True(t, ok)
	assert.InDelta(t, 0.50, cyc.EnergyCostEUR, 1e-9)
	assert.InDelta(t, 6.66, cyc.PowerCostEUR, 1e-9)
	assert.InDelta(t, 9.60, cyc.EstimatedBillEUR, 1e-9)
}

func TestApplyBillingWithoutPrices(t *testing.T) {
	curve := types.Curve{
		Points: []types.CurvePoint{{Date: madridDate(2024, 6, 3), Hour: 3, ValueKWH: 1.0}},
	}
	cyc := types.CycleEnergy{DayCount: 15}

	ok := applyBilling(&cyc, curve, map[int64]float64{}, 4.6, 4.6, DefaultRates())
	assert.False(t, ok)
	assert.Zero(t, cyc.EnergyCostEUR)
	assert.Zero(t, cyc.EstimatedBillEUR)
}
