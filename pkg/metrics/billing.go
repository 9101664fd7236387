package metrics

import (
	"time"

	"github.com/edsmon/edsmon/pkg/types"
)

// Rates holds the regulated tariff constants used for bill estimates. They
// are jurisdiction- and time-dependent policy, so they are configuration,
// not code constants; the defaults match the 2.0TD tariff.
type Rates struct {
	// PowerP1EURPerKWYear and PowerP2EURPerKWYear are the access tolls for
	// contracted power, per kW per year.
	PowerP1EURPerKWYear float64
	PowerP2EURPerKWYear float64

	// MarketingEURPerKWYear is the regulated marketing margin, per kW per
	// year on P1 power.
	MarketingEURPerKWYear float64

	// FixedEURPerMonth covers fixed per-contract charges (meter rental).
	FixedEURPerMonth float64

	// ElectricityTax and VAT are multiplicative factors.
	ElectricityTax float64
	VAT            float64
}

// DefaultRates returns the 2.0TD defaults.
func DefaultRates() Rates {
	return Rates{
		PowerP1EURPerKWYear:   30.67266,
		PowerP2EURPerKWYear:   1.4243591,
		MarketingEURPerKWYear: 3.113,
		FixedEURPerMonth:      0.81,
		ElectricityTax:        1.0511300560,
		VAT:                   1.21,
	}
}

// priceIndex keys hourly prices by their starting instant.
func priceIndex(prices []types.Price) map[int64]float64 {
	idx := make(map[int64]float64, len(prices))
	for _, p := range prices {
		idx[p.TSStart.Unix()] = p.EurosPerKWH
	}
	return idx
}

// energyCost joins a curve against hourly prices by (date, hour) and sums
// consumption times price. ok is false when no point found a price.
func energyCost(points []types.CurvePoint, prices map[int64]float64) (cost float64, ok bool) {
	matched := 0
	for _, p := range points {
		ts := p.Date.Add(time.Duration(p.Hour) * time.Hour).Unix()
		price, found := prices[ts]
		if !found {
			continue
		}
		cost += p.ValueKWH * price
		matched++
	}
	return round2(cost), matched > 0
}

// applyBilling fills the cost fields of a cycle from its curve, the price
// index and the contracted powers.
func applyBilling(cyc *types.CycleEnergy, curve types.Curve, prices map[int64]float64, powerKWP1, powerKWP2 float64, rates Rates) bool {
	cost, ok := energyCost(curve.Points, prices)
	if !ok {
		return false
	}
	days := float64(cyc.DayCount)

	dailyP1 := rates.PowerP1EURPerKWYear / 365
	dailyP2 := rates.PowerP2EURPerKWYear / 365
	dailyMkt := rates.MarketingEURPerKWYear / 365

	cyc.EnergyCostEUR = cost
	cyc.PowerCostEUR = round2((powerKWP1*(dailyP1+dailyMkt) + powerKWP2*dailyP2) * days)
	cyc.EstimatedBillEUR = round2(((cyc.EnergyCostEUR+cyc.PowerCostEUR)*rates.ElectricityTax +
		rates.FixedEURPerMonth*days/30) * rates.VAT)
	return true
}
