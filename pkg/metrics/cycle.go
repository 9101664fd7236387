package metrics

import (
	"time"

	"github.com/edsmon/edsmon/pkg/types"
)

// dayCount counts civil days between two dates, inclusive on both ends.
func dayCount(start, end time.Time) int {
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// cycleEnergy aggregates a consumption curve into per-band cycle figures.
func cycleEnergy(curve types.Curve) types.CycleEnergy {
	total := curve.TotalKWH
	if total == 0 {
		for _, p := range curve.Points {
			total += p.ValueKWH
		}
		total = round2(total)
	}

	p1, p2 := bandTotals(curve.Points)

	cyc := types.CycleEnergy{
		Start:    curve.Start,
		End:      curve.End,
		DayCount: dayCount(curve.Start, curve.End),
		TotalKWH: total,
		P1KWH:    p1,
		P2KWH:    p2,
		P3KWH:    round2(total - p1 - p2),
	}
	if cyc.DayCount > 0 {
		cyc.DailyAvgKWH = round2(total / float64(cyc.DayCount))
	}
	return cyc
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// dayEnergy slices a curve down to one civil day and aggregates it into
// bands. The zero value means the curve has no data for that day.
func dayEnergy(curve types.Curve, date time.Time) types.DayEnergy {
	var points []types.CurvePoint
	for _, p := range curve.Points {
		if sameDay(p.Date, date) {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return types.DayEnergy{}
	}

	var total float64
	for _, p := range points {
		total += p.ValueKWH
	}
	total = round2(total)
	p1, p2 := bandTotals(points)

	return types.DayEnergy{
		Date:     date,
		TotalKWH: total,
		P1KWH:    p1,
		P2KWH:    p2,
		P3KWH:    round2(total - p1 - p2),
	}
}
