package skyodyssey

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// FareProvider resolves the cheapest fare matching a leg query. A nil result
// with ErrNoFare means the provider found nothing; errors classify as
// timeout, transient or invalid-query via the SearchError taxonomy. The
// engine is written against this interface only.
type FareProvider interface {
	Lookup(ctx context.Context, q LegQuery) (*LegResult, error)
}

// BuildBookingLink builds a one-way flight search URL for the quick
// purchase flow.
func BuildBookingLink(origin, destination, date string) string {
	base := "https://www.google.com/travel/flights"
	query := url.Values{
		"hl":   {"en"},
		"curr": {"EUR"},
		"gl":   {"fr"},
		"q":    {"Flights from " + origin + " to " + destination + " on " + date},
	}
	return base + "?" + query.Encode()
}

// MockFare is a synthetic fare served by the MockProvider.
type MockFare struct {
	Price     float64
	Carrier   string
	Stops     int
	Departure string
	Arrival   string
	Duration  string
}

// MockProvider is a deterministic in-memory FareProvider for tests and dry
// runs. Fares are keyed by route; error scripts let callers stage transient
// failures before a success.
type MockProvider struct {
	mu      sync.Mutex
	fares   map[string]MockFare
	scripts map[string][]error
	calls   map[string]int
}

// NewMockProvider returns an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		fares:   make(map[string]MockFare),
		scripts: make(map[string][]error),
		calls:   make(map[string]int),
	}
}

func routeKey(origin, destination string) string {
	return strings.ToUpper(origin) + "-" + strings.ToUpper(destination)
}

// SetFare registers the fare returned for origin→destination on any date.
func (m *MockProvider) SetFare(origin, destination string, fare MockFare) {
	m.mu.Lock()
	m.fares[routeKey(origin, destination)] = fare
	m.mu.Unlock()
}

// FailWith queues errors to be returned for the route, one per call, before
// normal resolution resumes.
func (m *MockProvider) FailWith(origin, destination string, errs ...error) {
	m.mu.Lock()
	key := routeKey(origin, destination)
	m.scripts[key] = append(m.scripts[key], errs...)
	m.mu.Unlock()
}

// Calls reports how many lookups the route has received.
func (m *MockProvider) Calls(origin, destination string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[routeKey(origin, destination)]
}

// TotalCalls reports lookups across all routes.
func (m *MockProvider) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Lookup implements FareProvider.
func (m *MockProvider) Lookup(ctx context.Context, q LegQuery) (*LegResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := routeKey(q.Origin, q.Destination)
	m.mu.Lock()
	m.calls[key]++
	if script := m.scripts[key]; len(script) > 0 {
		err := script[0]
		m.scripts[key] = script[1:]
		m.mu.Unlock()
		return nil, err
	}
	fare, ok := m.fares[key]
	m.mu.Unlock()

	if !ok {
		return nil, ErrNoFare
	}
	if q.DirectOnly && fare.Stops != 0 {
		return nil, ErrNoFare
	}
	if len(q.IncludeAirlines) > 0 && !containsFold(q.IncludeAirlines, fare.Carrier) {
		return nil, ErrNoFare
	}
	if containsFold(q.ExcludeAirlines, fare.Carrier) {
		return nil, ErrNoFare
	}
	if !matchesWindow(fare.Departure, fare.Arrival, q.Window) {
		return nil, ErrNoFare
	}

	return &LegResult{
		Origin:      strings.ToUpper(q.Origin),
		Destination: strings.ToUpper(q.Destination),
		Date:        q.Date,
		Price:       fare.Price,
		Carrier:     fare.Carrier,
		Stops:       fare.Stops,
		Departure:   fare.Departure,
		Arrival:     fare.Arrival,
		Duration:    fare.Duration,
		BuyLink:     BuildBookingLink(strings.ToUpper(q.Origin), strings.ToUpper(q.Destination), q.Date),
	}, nil
}

func containsFold(values []string, v string) bool {
	for _, s := range values {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
