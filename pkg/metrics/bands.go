// Package metrics turns raw portal payloads into tariff-band energy,
// billing estimates, maximeter statistics and day aggregates.
package metrics

import (
	"math"
	"time"

	"github.com/edsmon/edsmon/pkg/types"
)

// Band is one of the three 2.0TD tariff time bands.
type Band int

const (
	BandP1 Band = iota + 1 // peak
	BandP2                 // standard
	BandP3                 // off-peak
)

func (b Band) String() string {
	switch b {
	case BandP1:
		return "P1"
	case BandP2:
		return "P2"
	case BandP3:
		return "P3"
	}
	return "unknown"
}

// hourBands maps each hour of a weekday to its band.
// P1: 10-14 and 18-22, P2: 08-10, 14-18 and 22-24, P3: 00-08.
var hourBands = [24]Band{
	BandP3, BandP3, BandP3, BandP3, BandP3, BandP3, BandP3, BandP3, // 00-08
	BandP2, BandP2, // 08-10
	BandP1, BandP1, BandP1, BandP1, // 10-14
	BandP2, BandP2, BandP2, BandP2, // 14-18
	BandP1, BandP1, BandP1, BandP1, // 18-22
	BandP2, BandP2, // 22-24
}

// BandFor returns the tariff band of an hour on a given date. Weekends are
// always P3 regardless of hour.
func BandFor(date time.Time, hour int) Band {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return BandP3
	}
	return hourBands[hour]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// bandTotals sums the points that fall in P1 and P2. P3 is always derived
// as the residual against the full total so rounding drift in the source
// data lands there.
func bandTotals(points []types.CurvePoint) (p1, p2 float64) {
	for _, p := range points {
		switch BandFor(p.Date, p.Hour) {
		case BandP1:
			p1 += p.ValueKWH
		case BandP2:
			p2 += p.ValueKWH
		}
	}
	return round2(p1), round2(p2)
}
