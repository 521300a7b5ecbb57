package skyodyssey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPProvider looks fares up against a JSON fare-lookup endpoint. It is the
// network-backed FareProvider implementation; the endpoint's wire format is
// deliberately minimal and the provider owns all error classification.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider builds a provider against baseURL. A nil client gets a
// 30s-timeout default.
func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// fareOption is one flight row in the lookup response.
type fareOption struct {
	Price     string `json:"price"`
	Carrier   string `json:"carrier"`
	Stops     string `json:"stops"`
	Departure string `json:"departure"`
	Arrival   string `json:"arrival"`
	Duration  string `json:"duration"`
}

// Lookup implements FareProvider: it fetches all options for the route/date,
// applies the query's filters and returns the cheapest valid fare.
func (p *HTTPProvider) Lookup(ctx context.Context, q LegQuery) (*LegResult, error) {
	origin := strings.ToUpper(q.Origin)
	dest := strings.ToUpper(q.Destination)

	adults := q.Adults
	if adults <= 0 {
		adults = 1
	}
	seat := q.Seat
	if seat == "" {
		seat = "economy"
	}

	params := url.Values{
		"origin":      {origin},
		"destination": {dest},
		"date":        {q.Date},
		"adults":      {strconv.Itoa(adults)},
		"seat":        {seat},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/fares?"+params.Encode(), nil)
	if err != nil {
		return nil, NewInvalidQueryError(q, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if isNetTimeout(err) {
			return nil, NewTimeoutError(q, err)
		}
		return nil, NewTransientError(q, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, NewTransientError(q, fmt.Errorf("provider status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, NewInvalidQueryError(q, fmt.Errorf("provider status %d", resp.StatusCode))
	}

	var payload struct {
		Flights []fareOption `json:"flights"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewTransientError(q, fmt.Errorf("decode response: %w", err))
	}

	var best *LegResult
	for _, opt := range payload.Flights {
		price, ok := parsePrice(opt.Price)
		if !ok {
			continue
		}
		stops := normalizeStops(opt.Stops)
		if q.DirectOnly && stops != 0 {
			continue
		}
		if len(q.IncludeAirlines) > 0 && !containsFold(q.IncludeAirlines, opt.Carrier) {
			continue
		}
		if containsFold(q.ExcludeAirlines, opt.Carrier) {
			continue
		}
		if !matchesWindow(opt.Departure, opt.Arrival, q.Window) {
			continue
		}
		if best == nil || price < best.Price {
			best = &LegResult{
				Origin:      origin,
				Destination: dest,
				Date:        q.Date,
				Price:       price,
				RawPrice:    opt.Price,
				Carrier:     opt.Carrier,
				Stops:       stops,
				Departure:   opt.Departure,
				Arrival:     opt.Arrival,
				Duration:    opt.Duration,
				BuyLink:     BuildBookingLink(origin, dest, q.Date),
			}
		}
	}

	if best == nil {
		return nil, ErrNoFare
	}
	return best, nil
}

func isNetTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
