package eds

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edsmon/edsmon/pkg/common"
)

// The portal mixes locale-formatted strings ("." thousands separator, ","
// decimal point) with machine-formatted numbers in the same payloads, so
// each field gets its own denormalization instead of a global rule.

// parseTotalizer parses the cumulative meter register, a thousands-separated
// integer like "12.345".
func parseTotalizer(s string) (float64, error) {
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ".", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad totalizer %q: %w", s, err)
	}
	return float64(n), nil
}

// parsePercent parses a load percentage like "45,2%".
func parsePercent(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("bad percent %q: %w", s, err)
	}
	return f, nil
}

// parseCommaFloat parses a comma-decimal number like "123,45" or
// "1.234,56". Dots are thousands separators only when a comma is present.
func parseCommaFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", s, err)
	}
	return f, nil
}

// parseHourLabel parses the starting hour out of a label like "10 - 11 h".
func parseHourLabel(s string) (int, error) {
	first, _, ok := strings.Cut(s, "-")
	if !ok {
		return 0, fmt.Errorf("bad hour label %q", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour label %q", s)
	}
	return h, nil
}

// parseCurveDate parses a curve date key like "15-06-2024" into a civil day
// in the grid's time zone.
func parseCurveDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("02-01-2006", s, common.Madrid)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad curve date %q: %w", s, err)
	}
	return t, nil
}

// parseCycleInstant normalizes the portal's cycle boundary instants. The
// portal reports them as UTC instants like "2024-04-30T22:00:00.000Z", which
// is midnight of the next civil day in Spain. Only the date part matters:
// take it and add one day, matching how the portal labels the same cycles.
func parseCycleInstant(s string) (time.Time, error) {
	datePart, _, _ := strings.Cut(s, "T")
	t, err := time.ParseInLocation("2006-01-02", datePart, common.Madrid)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad cycle instant %q: %w", s, err)
	}
	return t.AddDate(0, 0, 1), nil
}

// parseCycleLabel parses a cycle label like "01/05/2024 - 31/05/2024".
func parseCycleLabel(label string) (start, end time.Time, err error) {
	a, b, ok := strings.Cut(label, " - ")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("bad cycle label %q", label)
	}
	start, err = time.ParseInLocation("02/01/2006", a, common.Madrid)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad cycle label %q: %w", label, err)
	}
	end, err = time.ParseInLocation("02/01/2006", b, common.Madrid)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad cycle label %q: %w", label, err)
	}
	return start, end, nil
}

// parseMaximeterTS parses a maximeter sample timestamp split across the
// "date" ("01-05-2024") and "hour" ("10:20") fields.
func parseMaximeterTS(date, hour string) (time.Time, error) {
	t, err := time.ParseInLocation("02-01-2006 15:04", date+" "+hour, common.Madrid)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad maximeter timestamp %q %q: %w", date, hour, err)
	}
	return t, nil
}
