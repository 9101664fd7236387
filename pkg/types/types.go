// Package types holds the domain types shared between the portal client, the
// derived-metrics engine and the outward surfaces.
package types

import "time"

// Price represents the cost of electricity in a time interval.
type Price struct {
	TSStart time.Time `json:"tsStart"`
	TSEnd   time.Time `json:"tsEnd"`

	// EurosPerKWH is the regulated PVPC price for the interval.
	EurosPerKWH float64 `json:"eurosPerKWH"`
}

// SupplyPoint describes a single supply (CUPS) attached to the account.
type SupplyPoint struct {
	CUPS       string `json:"cups"`
	CUPSID     string `json:"cupsID"`
	ContractID string `json:"contractID"`
	Active     bool   `json:"active"`
	Address    string `json:"address,omitempty"`

	// PowerKW is the contracted power. PowerKWP1/P2 are the per-period
	// contracted powers when the contract splits them.
	PowerKW   float64 `json:"powerKW"`
	PowerKWP1 float64 `json:"powerKWP1"`
	PowerKWP2 float64 `json:"powerKWP2"`
}

// ATRContract identifies an access contract (ATR) for a supply point.
type ATRContract struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// DetailField is a single title/value pair from the contract detail view.
// The portal returns these as display rows, so values stay strings.
type DetailField struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// MeterSnapshot is an instantaneous read of the smart meter.
type MeterSnapshot struct {
	ReadAt time.Time `json:"readAt"`

	// EnergymeterKWH is the cumulative meter register (totalizer).
	EnergyMeterKWH float64 `json:"energyMeterKWH"`

	ICPStatus     string  `json:"icpStatus"`
	LoadPercent   float64 `json:"loadPercent"`
	PowerDemandKW float64 `json:"powerDemandKW"`

	// ContractedPowerKW is the power limit as the meter reports it, which
	// can lag the contract detail after a power change.
	ContractedPowerKW float64 `json:"contractedPowerKW"`
}

// CurvePoint is one hourly consumption sample. Date is the civil day in the
// grid's time zone and Hour is 0-23 within that day.
type CurvePoint struct {
	Date     time.Time `json:"date"`
	Hour     int       `json:"hour"`
	ValueKWH float64   `json:"valueKWH"`
	Real     bool      `json:"real"`
}

// Curve is an hourly consumption series over a civil date range, inclusive
// on both ends.
type Curve struct {
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	TotalKWH float64      `json:"totalKWH"`
	Points   []CurvePoint `json:"points"`
}

// CycleRef identifies one billing cycle as listed by the portal.
type CycleRef struct {
	// Label is the display form, e.g. "01/05/2024 - 31/05/2024".
	Label string `json:"label"`
	// Value is the opaque portal identifier for the cycle.
	Value string `json:"value"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MaximeterSample is one monthly peak-demand register read.
type MaximeterSample struct {
	TS      time.Time `json:"ts"`
	ValueKW float64   `json:"valueKW"`
	Valid   bool      `json:"valid"`
}

// MaximeterStats summarizes the valid maximeter samples of a window.
type MaximeterStats struct {
	MaxKW     float64   `json:"maxKW"`
	DateOfMax time.Time `json:"dateOfMax"`
	MeanKW    float64   `json:"meanKW"`
	P90KW     float64   `json:"p90KW"`
	P95KW     float64   `json:"p95KW"`
	P99KW     float64   `json:"p99KW"`
}

// DayEnergy is the consumption of one civil day split into tariff bands.
type DayEnergy struct {
	Date     time.Time `json:"date"`
	TotalKWH float64   `json:"totalKWH"`
	P1KWH    float64   `json:"p1KWH"`
	P2KWH    float64   `json:"p2KWH"`
	P3KWH    float64   `json:"p3KWH"`
}

// CycleEnergy is the running consumption and cost of a billing cycle.
type CycleEnergy struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	DayCount int       `json:"dayCount"`

	TotalKWH    float64 `json:"totalKWH"`
	DailyAvgKWH float64 `json:"dailyAvgKWH"`
	P1KWH       float64 `json:"p1KWH"`
	P2KWH       float64 `json:"p2KWH"`
	P3KWH       float64 `json:"p3KWH"`

	// Cost fields are zero until prices are known for the cycle.
	EnergyCostEUR    float64 `json:"energyCostEUR"`
	PowerCostEUR     float64 `json:"powerCostEUR"`
	EstimatedBillEUR float64 `json:"estimatedBillEUR"`
}

// Snapshot is the full derived-metrics state for one supply point.
type Snapshot struct {
	CUPS      string    `json:"cups"`
	UpdatedAt time.Time `json:"updatedAt"`

	Meter     MeterSnapshot `json:"meter"`
	Cycle     CycleEnergy   `json:"cycle"`
	LastCycle CycleEnergy   `json:"lastCycle"`

	// EnergyTodayKWH is derived from the meter totalizer against the
	// baseline captured at the start of the day or cycle.
	EnergyTodayKWH float64 `json:"energyTodayKWH"`

	Today     DayEnergy `json:"today"`
	Yesterday DayEnergy `json:"yesterday"`

	Maximeter MaximeterStats `json:"maximeter"`

	// Prices holds today's hourly PVPC prices, when available.
	Prices []Price `json:"prices,omitempty"`
}
