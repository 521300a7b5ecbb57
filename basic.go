package skyodyssey

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TripParams configures a basic one-way or round-trip search. The same
// cache/dedup/permit/retry machinery as the odyssey stages applies; the stage
// count simply collapses to one (or two for round-trip).
type TripParams struct {
	Origin      string
	Destination string
	// Date is the outbound departure date; ReturnDate, when set, turns the
	// search into a round trip.
	Date       string
	ReturnDate string
	DateFlex   int

	MaxBudget     float64
	DealThreshold float64

	IncludeAirlines []string
	ExcludeAirlines []string
	DirectOnly      bool
	Window          TimeWindow
	ReturnWindow    TimeWindow

	Adults int
	Seat   string

	SortKey    SortKey
	MaxResults int
}

func (p *TripParams) normalize() error {
	p.Origin = strings.ToUpper(strings.TrimSpace(p.Origin))
	p.Destination = strings.ToUpper(strings.TrimSpace(p.Destination))
	if p.Origin == "" || p.Destination == "" {
		return &SearchError{Type: ErrorTypeValidation, Message: "origin and destination are required"}
	}
	if _, err := addDays(p.Date, 0); err != nil {
		return &SearchError{Type: ErrorTypeValidation, Message: fmt.Sprintf("invalid date %q", p.Date), Cause: err}
	}
	if p.ReturnDate != "" {
		if _, err := addDays(p.ReturnDate, 0); err != nil {
			return &SearchError{Type: ErrorTypeValidation, Message: fmt.Sprintf("invalid return date %q", p.ReturnDate), Cause: err}
		}
	}
	if p.MaxBudget < 0 || p.DealThreshold < 0 {
		return &SearchError{Type: ErrorTypeValidation, Message: "budget values must be non-negative"}
	}
	return nil
}

// SearchTrip runs a basic search: one-way when ReturnDate is empty, otherwise
// every outbound × inbound date combination. Over-budget results are retained
// for guidance the same way odyssey runs retain them.
func (e *Engine) SearchTrip(ctx context.Context, params TripParams) (*RunResult, error) {
	if err := e.validationError; err != nil {
		return nil, err
	}
	if err := params.normalize(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if removed := e.cache.Sweep(ctx); removed > 0 {
		e.metrics.RecordSweep(removed)
	}

	f := e.newFetcher()
	pool := e.newPool(params.DateFlex*2+1, destinationPoolCap)
	result := &RunResult{RunID: runID}

	outTasks := make([]stageTask, 0)
	for _, date := range expandDatesWithFlex(params.Date, params.DateFlex) {
		outTasks = append(outTasks, stageTask{
			query: LegQuery{
				Origin:          params.Origin,
				Destination:     params.Destination,
				Date:            date,
				Adults:          params.Adults,
				Seat:            params.Seat,
				DirectOnly:      params.DirectOnly,
				IncludeAirlines: params.IncludeAirlines,
				ExcludeAirlines: params.ExcludeAirlines,
				Window:          params.Window,
			},
			pool:  pool,
			stage: "outbound",
		})
	}
	result.Stats.Step1Fetches = len(outTasks)

	var outbound []legCandidate
	for _, out := range e.runStage(ctx, f, outTasks) {
		if out.outcome.Status == OutcomeFound {
			outbound = append(outbound, legCandidate{leg: out.outcome.Fare, order: out.order, cached: out.outcome.Cached})
		}
	}
	result.Stats.Step1Candidates = len(outbound)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dealThreshold := params.DealThreshold
	if dealThreshold == 0 {
		dealThreshold = e.dealThreshold
	}

	var itineraries, overBudget []Itinerary
	if params.ReturnDate == "" {
		for _, c := range outbound {
			itin := oneLegItinerary(c, dealThreshold)
			if params.MaxBudget > 0 && itin.TotalPrice > params.MaxBudget {
				result.Stats.FinalBudgetPruned++
				e.metrics.RecordPrune("outbound", "budget")
				overBudget = append(overBudget, itin)
				continue
			}
			itineraries = append(itineraries, itin)
		}
	} else {
		inTasks := make([]stageTask, 0)
		for _, date := range expandDatesWithFlex(params.ReturnDate, params.DateFlex) {
			inTasks = append(inTasks, stageTask{
				query: LegQuery{
					Origin:          params.Destination,
					Destination:     params.Origin,
					Date:            date,
					Adults:          params.Adults,
					Seat:            params.Seat,
					DirectOnly:      params.DirectOnly,
					IncludeAirlines: params.IncludeAirlines,
					ExcludeAirlines: params.ExcludeAirlines,
					Window:          params.ReturnWindow,
				},
				pool:  pool,
				stage: "inbound",
			})
		}
		result.Stats.Step2Fetches = len(inTasks)

		var inbound []legCandidate
		for _, out := range e.runStage(ctx, f, inTasks) {
			if out.outcome.Status == OutcomeFound {
				inbound = append(inbound, legCandidate{leg: out.outcome.Fare, order: out.order, cached: out.outcome.Cached})
			}
		}
		result.Stats.Step2Candidates = len(inbound)

		for _, o := range outbound {
			for _, i := range inbound {
				// A return departing on or before the outbound date is not a trip.
				if i.leg.Date <= o.leg.Date {
					continue
				}
				itin := roundTripItinerary(o, i, dealThreshold)
				if params.MaxBudget > 0 && itin.TotalPrice > params.MaxBudget {
					result.Stats.FinalBudgetPruned++
					e.metrics.RecordPrune("inbound", "budget")
					overBudget = append(overBudget, itin)
					continue
				}
				itineraries = append(itineraries, itin)
			}
		}
	}

	result.Itineraries = Rank(itineraries, params.SortKey, params.MaxResults)
	result.Stats.FinalItineraries = len(result.Itineraries)
	if len(result.Itineraries) == 0 {
		result.Guidance = buildGuidance(overBudget, 0)
	}
	return result, nil
}

// AnywhereParams configures a one-leg fan-out from an origin across a region:
// "where can I go on this date for this budget".
type AnywhereParams struct {
	Origin   string
	Date     string
	DateFlex int
	Region   string

	MaxBudget     float64
	DealThreshold float64

	ExcludedCountries []string
	ExcludedAirports  []string
	IncludeAirlines   []string
	ExcludeAirlines   []string
	DirectOnly        bool
	Window            TimeWindow

	Adults int
	Seat   string

	SortKey    SortKey
	MaxResults int
}

// SearchAnywhere fans a single leg out to every candidate airport of the
// region and ranks the affordable results.
func (e *Engine) SearchAnywhere(ctx context.Context, params AnywhereParams) (*RunResult, error) {
	if err := e.validationError; err != nil {
		return nil, err
	}
	params.Origin = strings.ToUpper(strings.TrimSpace(params.Origin))
	if params.Origin == "" {
		return nil, &SearchError{Type: ErrorTypeValidation, Message: "origin is required"}
	}
	if _, err := addDays(params.Date, 0); err != nil {
		return nil, &SearchError{Type: ErrorTypeValidation, Message: fmt.Sprintf("invalid date %q", params.Date), Cause: err}
	}

	runID := uuid.NewString()
	if removed := e.cache.Sweep(ctx); removed > 0 {
		e.metrics.RecordSweep(removed)
	}

	f := e.newFetcher()
	pool := e.newPool(4, destinationPoolCap)
	result := &RunResult{RunID: runID}

	destinations := e.directory.Candidates(params.Region, params.ExcludedCountries, params.ExcludedAirports)
	tasks := make([]stageTask, 0, len(destinations))
	for _, dest := range destinations {
		if strings.EqualFold(dest, params.Origin) {
			continue
		}
		for _, date := range expandDatesWithFlex(params.Date, params.DateFlex) {
			tasks = append(tasks, stageTask{
				query: LegQuery{
					Origin:          params.Origin,
					Destination:     dest,
					Date:            date,
					Adults:          params.Adults,
					Seat:            params.Seat,
					DirectOnly:      params.DirectOnly,
					IncludeAirlines: params.IncludeAirlines,
					ExcludeAirlines: params.ExcludeAirlines,
					Window:          params.Window,
				},
				pool:  pool,
				stage: "anywhere",
			})
		}
	}
	result.Stats.Step1Fetches = len(tasks)

	dealThreshold := params.DealThreshold
	if dealThreshold == 0 {
		dealThreshold = e.dealThreshold
	}

	var itineraries, overBudget []Itinerary
	for _, out := range e.runStage(ctx, f, tasks) {
		if out.outcome.Status != OutcomeFound {
			continue
		}
		itin := oneLegItinerary(legCandidate{leg: out.outcome.Fare, cached: out.outcome.Cached}, dealThreshold)
		if params.MaxBudget > 0 && itin.TotalPrice > params.MaxBudget {
			result.Stats.FinalBudgetPruned++
			e.metrics.RecordPrune("anywhere", "budget")
			overBudget = append(overBudget, itin)
			continue
		}
		itineraries = append(itineraries, itin)
	}
	result.Stats.Step1Candidates = len(itineraries)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Itineraries = Rank(itineraries, params.SortKey, params.MaxResults)
	result.Stats.FinalItineraries = len(result.Itineraries)
	if len(result.Itineraries) == 0 {
		result.Guidance = buildGuidance(overBudget, 0)
	}
	return result, nil
}

func oneLegItinerary(c legCandidate, dealThreshold float64) Itinerary {
	itin := Itinerary{
		Origin:     c.leg.Origin,
		Legs:       []Leg{legFromResult(c.leg)},
		TotalPrice: c.leg.Price,
		Cached:     c.cached,
	}
	if dealThreshold > 0 && itin.TotalPrice <= dealThreshold {
		itin.Deal = true
	}
	return itin
}

func roundTripItinerary(out, in legCandidate, dealThreshold float64) Itinerary {
	itin := Itinerary{
		Origin:     out.leg.Origin,
		Legs:       []Leg{legFromResult(out.leg), legFromResult(in.leg)},
		TotalPrice: out.leg.Price + in.leg.Price,
		Cached:     out.cached && in.cached,
	}
	if dealThreshold > 0 && itin.TotalPrice <= dealThreshold {
		itin.Deal = true
	}
	return itin
}
