package metrics

import (
	"testing"
	"time"

	"github.com/edsmon/edsmon/pkg/common"
	"github.com/edsmon/edsmon/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestBandForWeekday(t *testing.T) {
	// 2024-06-03 is a Monday
	monday := time.Date(2024, 6, 3, 0, 0, 0, 0, common.Madrid)

	cases := map[int]Band{
		0:  BandP3,
		7:  BandP3,
		8:  BandP2,
		9:  BandP2,
		10: BandP1,
		13: BandP1,
		14: BandP2,
		17: BandP2,
		18: BandP1,
		21: BandP1,
		22: BandP2,
		23: BandP2,
	}
	for hour, want := range cases {
		assert.Equal(t, want, BandFor(monday, hour), "hour %d", hour)
	}
}

func TestBandForWeekend(t *testing.T) {
	saturday := time.Date(2024, 6, 1, 0, 0, 0, 0, common.Madrid)
	sunday := time.Date(2024, 6, 2, 0, 0, 0, 0, common.Madrid)

	for hour := 0; hour < 24; hour++ {
		assert.Equal(t, BandP3, BandFor(saturday, hour))
		assert.Equal(t, BandP3, BandFor(sunday, hour))
	}
}

func TestBandString(t *testing.T) {
	assert.Equal(t, "P1", BandP1.String())
	assert.Equal(t, "P2", BandP2.String())
	assert.Equal(t, "P3", BandP3.String())
}

func TestBandTotals(t *testing.T) {
	monday := time.Date(2024, 6, 3, 0, 0, 0, 0, common.Madrid)
	points := []types.CurvePoint{
		{Date: monday, Hour: 3, ValueKWH: 0.111},  // P3
		{Date: monday, Hour: 9, ValueKWH: 0.222},  // P2
		{Date: monday, Hour: 11, ValueKWH: 0.333}, // P1
		{Date: monday, Hour: 19, ValueKWH: 0.444}, // P1
		{Date: monday, Hour: 23, ValueKWH: 0.555}, // P2
	}

	p1, p2 := bandTotals(points)
	assert.InDelta(t, 0.78, p1, 1e-9)
	assert.InDelta(t, 0.78, p2, 1e-9)

	// the residual band absorbs rounding drift, so the three bands always
	// recompose the rounded total
	var total float64
	for _, p := range points {
		total += p.ValueKWH
	}
	total = round2(total)
	p3 := round2(total - p1 - p2)
	assert.InDelta(t, total, p1+p2+p3, 0.011)
}
