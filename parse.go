package skyodyssey

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	clockRe    = regexp.MustCompile(`(?i)(\d{1,2}:\d{2})\s*([AP]M)`)
	hoursRe    = regexp.MustCompile(`(?i)(\d+)\s*hr`)
	minutesRe  = regexp.MustCompile(`(?i)(\d+)\s*min`)
	priceKeep  = regexp.MustCompile(`[0-9.]`)
	digitsOnly = regexp.MustCompile(`\d+`)
)

// parsePrice extracts a numeric price from strings like "$268" or "1,200 €".
// The second return is false when no usable positive number is present.
func parsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	clean := strings.Join(priceKeep.FindAllString(s, -1), "")
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	// Whole-unit fares: drop fractional noise the way display prices do.
	return float64(int64(v)), true
}

// parseClockMinutes parses a clock string such as "10:30 AM" into minutes
// since midnight.
func parseClockMinutes(s string) (int, bool) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	parts := strings.SplitN(m[1], ":", 2)
	h, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 1 || h > 12 || mm < 0 || mm > 59 {
		return 0, false
	}
	if h == 12 {
		h = 0
	}
	if strings.EqualFold(m[2], "PM") {
		h += 12
	}
	return h*60 + mm, true
}

// ParseHHMM parses a 24h "HH:MM" string into minutes since midnight. It is
// exported for callers translating user-supplied time-window bounds.
func ParseHHMM(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

const unknownDurationMinutes = 1 << 30

// parseDurationMinutes parses "2 hr 15 min" or "45 min" into minutes. An
// unparseable duration sorts last.
func parseDurationMinutes(s string) int {
	total := 0
	if m := hoursRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		total += h * 60
	}
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		mm, _ := strconv.Atoi(m[1])
		total += mm
	}
	if total <= 0 {
		return unknownDurationMinutes
	}
	return total
}

// normalizeStops extracts a stop count from provider payloads that may say
// "1 stop" or "Nonstop". Unknown values default to 1.
func normalizeStops(s string) int {
	if s == "" {
		return 1
	}
	if strings.EqualFold(strings.TrimSpace(s), "nonstop") {
		return 0
	}
	if m := digitsOnly.FindString(s); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			return n
		}
	}
	return 1
}

// expandDatesWithFlex expands date into [date-flex .. date+flex]. A zero or
// negative flex returns the date alone; an unparseable date likewise.
func expandDatesWithFlex(date string, flex int) []string {
	if flex <= 0 {
		return []string{date}
	}
	base, err := time.Parse(dateLayout, date)
	if err != nil {
		return []string{date}
	}
	out := make([]string, 0, 2*flex+1)
	for delta := -flex; delta <= flex; delta++ {
		out = append(out, base.AddDate(0, 0, delta).Format(dateLayout))
	}
	return out
}

// addDays shifts a YYYY-MM-DD date by n days.
func addDays(date string, n int) (string, error) {
	base, err := time.Parse(dateLayout, date)
	if err != nil {
		return "", err
	}
	return base.AddDate(0, 0, n).Format(dateLayout), nil
}

// matchesWindow checks a leg's departure/arrival clock strings against the
// window. A bound set against an unparseable clock rejects the leg.
func matchesWindow(departure, arrival string, w TimeWindow) bool {
	if w.DepartAfter > 0 || w.DepartBefore > 0 {
		dep, ok := parseClockMinutes(departure)
		if w.DepartAfter > 0 && (!ok || dep < w.DepartAfter) {
			return false
		}
		if w.DepartBefore > 0 && (!ok || dep > w.DepartBefore) {
			return false
		}
	}
	if w.ArriveBefore > 0 {
		arr, ok := parseClockMinutes(arrival)
		if !ok || arr > w.ArriveBefore {
			return false
		}
	}
	return true
}
