package skyodyssey

import "sort"

// SortKey selects the ranking criterion for completed itineraries.
type SortKey string

const (
	SortByPrice     SortKey = "price"
	SortByDuration  SortKey = "duration"
	SortByStops     SortKey = "stops"
	SortByDeparture SortKey = "departure"
)

// ParseSortKey maps a user-supplied sort name to a SortKey, defaulting to
// price.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortByDuration, SortByStops, SortByDeparture:
		return SortKey(s)
	default:
		return SortByPrice
	}
}

// Rank stable-sorts itineraries by the requested key; ties preserve discovery
// order. Truncation to maxResults happens after sorting, never before, so a
// late-discovered better result is never lost. maxResults <= 0 keeps all.
func Rank(itineraries []Itinerary, key SortKey, maxResults int) []Itinerary {
	out := append([]Itinerary(nil), itineraries...)
	sort.SliceStable(out, func(i, j int) bool {
		return rankMetric(out[i], key) < rankMetric(out[j], key)
	})
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// rankMetric reduces an itinerary to a comparable value for the sort key.
func rankMetric(it Itinerary, key SortKey) float64 {
	switch key {
	case SortByDuration:
		total := 0
		for _, leg := range it.Legs {
			total += parseDurationMinutes(leg.Duration)
		}
		return float64(total)
	case SortByStops:
		total := 0
		for _, leg := range it.Legs {
			total += leg.Stops
		}
		return float64(total)
	case SortByDeparture:
		if len(it.Legs) == 0 {
			return float64(unknownDurationMinutes)
		}
		if m, ok := parseClockMinutes(it.Legs[0].Departure); ok {
			return float64(m)
		}
		return float64(unknownDurationMinutes)
	default:
		return it.TotalPrice
	}
}
