package skyodyssey

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultCacheTTL is how long a cached fare stays usable.
const DefaultCacheTTL = 6 * time.Hour

// TimeWindow restricts acceptable departure/arrival times for a leg.
// Values are minutes since midnight; zero means no bound.
type TimeWindow struct {
	DepartAfter  int
	DepartBefore int
	ArriveBefore int
}

// LegQuery identifies a single fare lookup. It is an immutable value; its
// canonical serialization (Key) is the cache and deduplication key.
type LegQuery struct {
	Origin          string
	Destination     string
	Date            string // YYYY-MM-DD
	Adults          int
	Seat            string
	DirectOnly      bool
	IncludeAirlines []string
	ExcludeAirlines []string
	Window          TimeWindow
}

// Key returns the canonical serialization of the query. Airline sets are
// sorted so two queries with identical fields map to the same key regardless
// of construction order.
func (q LegQuery) Key() string {
	adults := q.Adults
	if adults <= 0 {
		adults = 1
	}
	seat := q.Seat
	if seat == "" {
		seat = "economy"
	}

	var b strings.Builder
	b.WriteString(strings.ToUpper(q.Origin))
	b.WriteByte('|')
	b.WriteString(strings.ToUpper(q.Destination))
	b.WriteByte('|')
	b.WriteString(q.Date)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(adults))
	b.WriteByte('|')
	b.WriteString(seat)
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(q.DirectOnly))
	b.WriteByte('|')
	b.WriteString(strings.Join(sortedUpper(q.IncludeAirlines), ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(sortedUpper(q.ExcludeAirlines), ","))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.Window.DepartAfter))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(q.Window.DepartBefore))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(q.Window.ArriveBefore))
	return b.String()
}

func sortedUpper(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToUpper(strings.TrimSpace(v))
	}
	sort.Strings(out)
	return out
}

// LegResult is a usable fare for one leg. Price is always positive; a
// non-positive price is an invalid fare and never reaches callers.
type LegResult struct {
	Origin      string
	Destination string
	Date        string
	Price       float64
	RawPrice    string
	Carrier     string
	Stops       int
	Departure   string // provider clock string, e.g. "10:30 AM"
	Arrival     string
	Duration    string // e.g. "2 hr 15 min"
	BuyLink     string
}

// CacheEntry is one persisted fare lookup outcome. A nil Fare with NoFare set
// records that the provider found nothing for the key, which is distinct from
// a failed lookup (failures are never cached).
type CacheEntry struct {
	Key      string
	Fare     *LegResult
	NoFare   bool
	StoredAt time.Time
}

// Expired reports whether the entry is older than ttl at the given instant.
func (e *CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) >= ttl
}

// invalid reports a fare entry holding a non-positive price.
func (e *CacheEntry) invalid() bool {
	return !e.NoFare && (e.Fare == nil || e.Fare.Price <= 0)
}

// OutcomeStatus tags the terminal state of a leg fetch.
type OutcomeStatus int

const (
	// OutcomeFound means a usable fare was resolved.
	OutcomeFound OutcomeStatus = iota
	// OutcomeNoFare means the provider found nothing for the query.
	OutcomeNoFare
	// OutcomeUnavailable means retries were exhausted on transient failures.
	OutcomeUnavailable
	// OutcomeFailed means a non-retryable failure or cancellation.
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeFound:
		return "found"
	case OutcomeNoFare:
		return "no_fare"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "failed"
	}
}

// FetchOutcome is the tagged result of one composed leg fetch. Failures are
// carried in Err as values and never abort the surrounding search.
type FetchOutcome struct {
	Status   OutcomeStatus
	Fare     *LegResult
	Err      error
	Cached   bool
	Attempts int
}

// Leg is one flight segment of a composed itinerary.
type Leg struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Date        string  `json:"date"`
	Price       float64 `json:"price"`
	RawPrice    string  `json:"raw_price,omitempty"`
	Stops       int     `json:"stops"`
	Carrier     string  `json:"carrier,omitempty"`
	Departure   string  `json:"departure,omitempty"`
	Arrival     string  `json:"arrival,omitempty"`
	Duration    string  `json:"duration,omitempty"`
	BuyLink     string  `json:"buy_link,omitempty"`
}

func legFromResult(r *LegResult) Leg {
	return Leg{
		Origin:      r.Origin,
		Destination: r.Destination,
		Date:        r.Date,
		Price:       r.Price,
		RawPrice:    r.RawPrice,
		Stops:       r.Stops,
		Carrier:     r.Carrier,
		Departure:   r.Departure,
		Arrival:     r.Arrival,
		Duration:    r.Duration,
		BuyLink:     r.BuyLink,
	}
}

// Itinerary is a completed trip: three legs in odyssey mode, one or two in
// the basic modes. TotalPrice is always the exact sum of the leg prices.
type Itinerary struct {
	Origin            string  `json:"origin"`
	ReturnDestination string  `json:"return_destination,omitempty"`
	Legs              []Leg   `json:"legs"`
	TotalPrice        float64 `json:"total_price"`
	Cached            bool    `json:"cached,omitempty"`
	Deal              bool    `json:"deal,omitempty"`
	Warning           string  `json:"warning,omitempty"`
}

// searchNode is a partial path through the stage frontier: ordered visited
// legs, their accumulated price and the countries landed in so far.
type searchNode struct {
	legs         []*LegResult
	total        float64
	countries    []string
	searchOrigin string
}

func (n *searchNode) extend(leg *LegResult, country string) *searchNode {
	legs := make([]*LegResult, len(n.legs), len(n.legs)+1)
	copy(legs, n.legs)
	countries := make([]string, len(n.countries), len(n.countries)+1)
	copy(countries, n.countries)
	if country != "" {
		countries = append(countries, country)
	}
	return &searchNode{
		legs:         append(legs, leg),
		total:        n.total + leg.Price,
		countries:    countries,
		searchOrigin: n.searchOrigin,
	}
}

func (n *searchNode) visitedCountry(country string) bool {
	if country == "" {
		return false
	}
	for _, c := range n.countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// RunStats mirrors the per-stage diagnostics exposed after a run.
type RunStats struct {
	Step1Fetches      int `json:"step1_fetches"`
	Step1Candidates   int `json:"step1_candidates"`
	Step1BudgetPruned int `json:"step1_budget_pruned"`
	Step2Fetches      int `json:"step2_fetches"`
	Step2Tasks        int `json:"step2_tasks"`
	Step2Candidates   int `json:"step2_candidates"`
	Step3Fetches      int `json:"step3_fetches"`
	Step3ReturnTasks  int `json:"step3_return_tasks"`
	Step3BudgetPruned int `json:"step3_budget_pruned"`
	Step3MissingLeg   int `json:"step3_missing_return"`
	FinalBudgetPruned int `json:"final_budget_pruned"`
	FinalItineraries  int `json:"final_itineraries"`
}

// NoResultHint is returned when the budget filtered out every itinerary: the
// cheapest over-budget total plus the closest near-miss alternatives.
type NoResultHint struct {
	Reason              string      `json:"reason"`
	CheapestTotal       float64     `json:"cheapest_total"`
	ClosestAlternatives []Itinerary `json:"closest_alternatives,omitempty"`
}

// RunResult is the terminal state of an odyssey run.
type RunResult struct {
	RunID       string        `json:"run_id"`
	Itineraries []Itinerary   `json:"itineraries"`
	Guidance    *NoResultHint `json:"no_result_hint,omitempty"`
	Stats       RunStats      `json:"stats"`
}

// StayRange bounds the days spent in an intermediate city. Min == Max models
// a fixed stay.
type StayRange struct {
	Min int
	Max int
}

func (r StayRange) days() []int {
	if r.Max < r.Min {
		r.Max = r.Min
	}
	out := make([]int, 0, r.Max-r.Min+1)
	for d := r.Min; d <= r.Max; d++ {
		out = append(out, d)
	}
	return out
}
