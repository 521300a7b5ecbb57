package skyodyssey

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Permit caps for the two fetch pools. Destination sweeps are wider and
// noisier than return-leg sweeps, so they get a tighter bound.
const (
	destinationPoolCap = 3
	returnPoolCap      = 4
)

// Engine drives the multi-leg itinerary search. Every leg fare flows through
// cache → deduplicator → permit pool → retry policy → provider; the engine
// itself only extends, prunes and composes search branches. Construct with
// New and check IsValid before use.
type Engine struct {
	provider  FareProvider
	cache     CacheStore
	cacheTTL  time.Duration
	retry     *RetryPolicy
	adaptive  AdaptivePolicy
	metrics   *MetricsCollector
	logger    Logger
	debug     bool
	directory *AirportDirectory

	dealThreshold float64

	inflight *InflightTable

	validationError error
}

// New constructs an Engine using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Engine {
	e := &Engine{
		cache:     NewInMemoryCache(),
		cacheTTL:  DefaultCacheTTL,
		retry:     DefaultRetryPolicy(),
		adaptive:  DefaultAdaptivePolicy(),
		directory: DefaultDirectory(),
		inflight:  NewInflightTable(),
	}

	for _, option := range options {
		option(e)
	}

	if err := e.ValidateConfiguration(); err != nil {
		e.validationError = err
	}

	return e
}

func (e *Engine) newFetcher() *fetcher {
	return &fetcher{
		provider: e.provider,
		cache:    e.cache,
		cacheTTL: e.cacheTTL,
		inflight: e.inflight,
		retry:    e.retry,
		metrics:  e.metrics,
		logger:   e.logger,
		debug:    e.debug,
	}
}

func (e *Engine) newPool(limitHint, maxPermits int) *PermitPool {
	policy := e.adaptive.normalized()
	if policy.Max > maxPermits {
		policy.Max = maxPermits
	}
	return NewPermitPool(InitialConcurrency(limitHint, policy.Max), policy)
}

// SearchParams configures one odyssey run: origin(s) → City A → City B →
// return. Zero values fall back to defaults during validation.
type SearchParams struct {
	// Origins holds one or more departure airports; multi-origin runs sweep
	// each origin with doubled stage-1 breadth and merge before ranking.
	Origins []string
	// Date is the outbound departure date, YYYY-MM-DD.
	Date string
	// DateFlex expands Date into ±N days of departure candidates.
	DateFlex int
	// Region names the destination region swept at stages 1 and 2
	// ("Europe", "All", ...).
	Region string
	// Limit is the branching factor: candidates kept per node at each stage.
	Limit int
	// Stay1 and Stay2 bound the days spent in City A and City B.
	Stay1 StayRange
	Stay2 StayRange
	// ReturnOrigin overrides the return destination (open-jaw); empty means
	// return to the search origin.
	ReturnOrigin string

	MaxBudget     float64
	DealThreshold float64

	ExcludedCountries []string
	ExcludedAirports  []string
	IncludeAirlines   []string
	ExcludeAirlines   []string
	DirectOnly        bool
	// Window filters outbound legs (stages 1 and 2); ReturnWindow filters
	// the return leg.
	Window       TimeWindow
	ReturnWindow TimeWindow
	// AllowSameCountry disables the different-countries constraint.
	AllowSameCountry bool

	Adults int
	Seat   string

	// MaxResults truncates the ranked output; zero keeps everything.
	MaxResults int
}

func (p *SearchParams) normalize() error {
	if len(p.Origins) == 0 {
		return &SearchError{Type: ErrorTypeValidation, Message: "at least one origin is required"}
	}
	for i, o := range p.Origins {
		p.Origins[i] = strings.ToUpper(strings.TrimSpace(o))
		if p.Origins[i] == "" {
			return &SearchError{Type: ErrorTypeValidation, Message: "empty origin"}
		}
	}
	if _, err := addDays(p.Date, 0); err != nil {
		return &SearchError{Type: ErrorTypeValidation, Message: fmt.Sprintf("invalid date %q", p.Date), Cause: err}
	}
	if p.Limit <= 0 {
		p.Limit = 2
	}
	if p.Stay1.Min <= 0 {
		p.Stay1.Min = 2
	}
	if p.Stay2.Min <= 0 {
		p.Stay2.Min = 2
	}
	if p.ReturnOrigin != "" {
		p.ReturnOrigin = strings.ToUpper(strings.TrimSpace(p.ReturnOrigin))
	}
	if p.MaxBudget < 0 || p.DealThreshold < 0 {
		return &SearchError{Type: ErrorTypeValidation, Message: "budget values must be non-negative"}
	}
	return nil
}

// legCandidate pairs a fetched leg with its discovery order and cache
// provenance so branch ranking stays deterministic.
type legCandidate struct {
	leg    *LegResult
	order  int
	cached bool
}

// sortCandidates orders cheapest-first, ties by earliest departure, then by
// discovery order.
func sortCandidates(cands []legCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].leg.Price != cands[j].leg.Price {
			return cands[i].leg.Price < cands[j].leg.Price
		}
		di, oki := parseClockMinutes(cands[i].leg.Departure)
		dj, okj := parseClockMinutes(cands[j].leg.Departure)
		if oki && okj && di != dj {
			return di < dj
		}
		if oki != okj {
			return oki
		}
		return cands[i].order < cands[j].order
	})
}

// stageTask is one leg fetch scheduled within a stage barrier.
type stageTask struct {
	query LegQuery
	node  *searchNode
	pool  *PermitPool
	stage string
}

type stageOutcome struct {
	task    stageTask
	order   int
	outcome FetchOutcome
}

// runStage issues every task concurrently and blocks until all resolve. The
// barrier is the only synchronization point: branch decisions downstream are
// independent of completion order.
func (e *Engine) runStage(ctx context.Context, f *fetcher, tasks []stageTask) []stageOutcome {
	outcomes := make([]stageOutcome, len(tasks))
	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t stageTask) {
			defer wg.Done()
			outcomes[i] = stageOutcome{task: t, order: i, outcome: f.fetchCheapest(ctx, t.query, t.pool, t.stage)}
		}(i, t)
	}
	wg.Wait()
	return outcomes
}

// countryDiversityOK reports whether adding a destination country to the path
// respects the different-countries constraint. Unknown countries never block.
func countryDiversityOK(node *searchNode, country string, allowSame bool) bool {
	if allowSame || country == "" {
		return true
	}
	return !node.visitedCountry(country)
}

// Run executes an odyssey search: origin → City A → City B → return, pruned
// against the budget between stages. Per-leg failures never abort the run;
// an empty result with guidance is a valid outcome. Run fails only on
// invalid configuration, invalid parameters or cancellation.
func (e *Engine) Run(ctx context.Context, params SearchParams) (*RunResult, error) {
	if err := e.validationError; err != nil {
		return nil, err
	}
	if err := params.normalize(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if removed := e.cache.Sweep(ctx); removed > 0 {
		e.metrics.RecordSweep(removed)
		e.logInfo("cache sweep", "run_id", runID, "removed", removed)
	}

	f := e.newFetcher()
	destPool := e.newPool(params.Limit, destinationPoolCap)
	returnPool := e.newPool(params.Limit, returnPoolCap)

	result := &RunResult{RunID: runID}
	var overBudget []Itinerary
	cheapestPruned := 0.0

	dealThreshold := params.DealThreshold
	if dealThreshold == 0 {
		dealThreshold = e.dealThreshold
	}

	for _, origin := range params.Origins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		itins, over, prunedMin := e.runOrigin(ctx, f, destPool, returnPool, origin, params, dealThreshold, &result.Stats)
		result.Itineraries = append(result.Itineraries, itins...)
		overBudget = append(overBudget, over...)
		if prunedMin > 0 && (cheapestPruned == 0 || prunedMin < cheapestPruned) {
			cheapestPruned = prunedMin
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Itineraries = Rank(result.Itineraries, SortByPrice, params.MaxResults)
	result.Stats.FinalItineraries = len(result.Itineraries)

	if len(result.Itineraries) == 0 {
		result.Guidance = buildGuidance(overBudget, cheapestPruned)
	}

	if c, ok := e.cache.(*InMemoryCache); ok {
		e.metrics.RecordCacheSize(c.Len())
	}
	e.logInfo("run complete", "run_id", runID,
		"itineraries", len(result.Itineraries),
		"step1_fetches", result.Stats.Step1Fetches,
		"step2_fetches", result.Stats.Step2Fetches,
		"step3_fetches", result.Stats.Step3Fetches)
	return result, nil
}

// runOrigin runs the three-stage state machine for one origin. It returns the
// surviving itineraries, the retained over-budget completions and the
// cheapest partial total pruned before the return fetch (0 if none).
func (e *Engine) runOrigin(ctx context.Context, f *fetcher, destPool, returnPool *PermitPool, origin string, params SearchParams, dealThreshold float64, stats *RunStats) ([]Itinerary, []Itinerary, float64) {
	multiOrigin := len(params.Origins) > 1
	perOrigin := params.Limit
	if multiOrigin {
		perOrigin = params.Limit * 2
		if perOrigin < 4 {
			perOrigin = 4
		}
	}

	originCountry := e.directory.Country(origin)
	root := &searchNode{searchOrigin: origin}
	if originCountry != "" {
		root.countries = []string{originCountry}
	}

	destinations := e.directory.Candidates(params.Region, params.ExcludedCountries, params.ExcludedAirports)
	departDates := expandDatesWithFlex(params.Date, params.DateFlex)

	// Stage 1: origin → City A.
	var tasks []stageTask
	for _, dest := range destinations {
		if strings.EqualFold(dest, origin) {
			continue
		}
		if !countryDiversityOK(root, e.directory.Country(dest), params.AllowSameCountry) {
			continue
		}
		for _, date := range departDates {
			tasks = append(tasks, stageTask{
				query: e.legQuery(origin, dest, date, params, params.Window),
				node:  root,
				pool:  destPool,
				stage: "stage1",
			})
		}
	}
	stats.Step1Fetches += len(tasks)

	var stage1 []legCandidate
	for _, out := range e.runStage(ctx, f, tasks) {
		if out.outcome.Status != OutcomeFound {
			continue
		}
		if params.MaxBudget > 0 && out.outcome.Fare.Price >= params.MaxBudget {
			stats.Step1BudgetPruned++
			e.metrics.RecordPrune("stage1", "budget")
			continue
		}
		stage1 = append(stage1, legCandidate{leg: out.outcome.Fare, order: out.order, cached: out.outcome.Cached})
	}
	sortCandidates(stage1)
	if len(stage1) > perOrigin {
		stage1 = stage1[:perOrigin]
	}
	stats.Step1Candidates += len(stage1)

	frontier := make([]*searchNode, 0, len(stage1))
	cachedLegs := make(map[*searchNode]int)
	for _, c := range stage1 {
		node := root.extend(c.leg, e.directory.Country(c.leg.Destination))
		frontier = append(frontier, node)
		if c.cached {
			cachedLegs[node] = 1
		}
	}

	// Stage 2: City A → City B, one task per stay-1 length per destination.
	tasks = tasks[:0]
	taskNodes := make([]*searchNode, 0)
	for _, node := range frontier {
		legA := node.legs[0]
		for _, d1 := range params.Stay1.days() {
			date2, err := addDays(legA.Date, d1)
			if err != nil {
				continue
			}
			for _, dest := range destinations {
				if strings.EqualFold(dest, legA.Destination) || e.isOrigin(dest, params.Origins) {
					continue
				}
				if !countryDiversityOK(node, e.directory.Country(dest), params.AllowSameCountry) {
					continue
				}
				tasks = append(tasks, stageTask{
					query: e.legQuery(legA.Destination, dest, date2, params, params.Window),
					node:  node,
					pool:  destPool,
					stage: "stage2",
				})
				taskNodes = append(taskNodes, node)
			}
		}
	}
	stats.Step2Tasks += len(tasks)
	stats.Step2Fetches += len(tasks)

	perNode := make(map[*searchNode][]legCandidate)
	for _, out := range e.runStage(ctx, f, tasks) {
		if out.outcome.Status != OutcomeFound {
			continue
		}
		node := taskNodes[out.order]
		perNode[node] = append(perNode[node], legCandidate{leg: out.outcome.Fare, order: out.order, cached: out.outcome.Cached})
	}

	var stage2 []*searchNode
	cheapestPruned := 0.0
	for _, node := range frontier {
		cands := perNode[node]
		sortCandidates(cands)
		if len(cands) > params.Limit {
			cands = cands[:params.Limit]
		}
		for _, c := range cands {
			next := node.extend(c.leg, e.directory.Country(c.leg.Destination))
			if params.MaxBudget > 0 && next.total >= params.MaxBudget {
				stats.Step3BudgetPruned++
				e.metrics.RecordPrune("stage2", "budget")
				if cheapestPruned == 0 || next.total < cheapestPruned {
					cheapestPruned = next.total
				}
				continue
			}
			stage2 = append(stage2, next)
			cachedLegs[next] = cachedLegs[node]
			if c.cached {
				cachedLegs[next]++
			}
		}
	}
	stats.Step2Candidates += len(stage2)

	// Stage 3: City B → return destination.
	returnDest := params.ReturnOrigin
	if returnDest == "" {
		returnDest = origin
	}

	tasks = tasks[:0]
	taskNodes = taskNodes[:0]
	for _, node := range stage2 {
		legB := node.legs[1]
		for _, d2 := range params.Stay2.days() {
			date3, err := addDays(legB.Date, d2)
			if err != nil {
				continue
			}
			tasks = append(tasks, stageTask{
				query: e.legQuery(legB.Destination, returnDest, date3, params, params.ReturnWindow),
				node:  node,
				pool:  returnPool,
				stage: "stage3",
			})
			taskNodes = append(taskNodes, node)
		}
	}
	stats.Step3ReturnTasks += len(tasks)
	stats.Step3Fetches += len(tasks)

	var itineraries, overBudget []Itinerary
	for _, out := range e.runStage(ctx, f, tasks) {
		node := taskNodes[out.order]
		if out.outcome.Status != OutcomeFound {
			stats.Step3MissingLeg++
			continue
		}
		total := node.total + out.outcome.Fare.Price
		cached := cachedLegs[node]
		if out.outcome.Cached {
			cached++
		}
		itin := e.composeItinerary(node, out.outcome.Fare, total, returnDest, dealThreshold, cached == 3)
		if params.MaxBudget > 0 && total > params.MaxBudget {
			stats.FinalBudgetPruned++
			e.metrics.RecordPrune("stage3", "budget")
			overBudget = append(overBudget, itin)
			continue
		}
		itineraries = append(itineraries, itin)
	}
	return itineraries, overBudget, cheapestPruned
}

func (e *Engine) isOrigin(dest string, origins []string) bool {
	for _, o := range origins {
		if strings.EqualFold(dest, o) {
			return true
		}
	}
	return false
}

func (e *Engine) legQuery(origin, dest, date string, params SearchParams, window TimeWindow) LegQuery {
	return LegQuery{
		Origin:          origin,
		Destination:     dest,
		Date:            date,
		Adults:          params.Adults,
		Seat:            params.Seat,
		DirectOnly:      params.DirectOnly,
		IncludeAirlines: params.IncludeAirlines,
		ExcludeAirlines: params.ExcludeAirlines,
		Window:          window,
	}
}

func (e *Engine) composeItinerary(node *searchNode, returnLeg *LegResult, total float64, returnDest string, dealThreshold float64, cached bool) Itinerary {
	legs := make([]Leg, 0, len(node.legs)+1)
	for _, l := range node.legs {
		legs = append(legs, legFromResult(l))
	}
	legs = append(legs, legFromResult(returnLeg))

	itin := Itinerary{
		Origin:     node.searchOrigin,
		Legs:       legs,
		TotalPrice: total,
		Cached:     cached,
	}
	if !strings.EqualFold(returnDest, node.searchOrigin) {
		itin.ReturnDestination = returnDest
		if hub := e.directory.Hub(returnDest); hub != "" && hub == e.directory.Hub(node.searchOrigin) {
			itin.Warning = fmt.Sprintf("return lands at %s, departure was from %s (both %s)", returnDest, node.searchOrigin, hub)
		}
	}
	if dealThreshold > 0 && total <= dealThreshold {
		itin.Deal = true
	}
	return itin
}

// buildGuidance turns retained over-budget completions (or the cheapest
// pruned partial) into a NoResultHint.
func buildGuidance(overBudget []Itinerary, cheapestPruned float64) *NoResultHint {
	if len(overBudget) > 0 {
		sort.SliceStable(overBudget, func(i, j int) bool {
			return overBudget[i].TotalPrice < overBudget[j].TotalPrice
		})
		alts := overBudget
		if len(alts) > 3 {
			alts = alts[:3]
		}
		return &NoResultHint{
			Reason:              "every completed itinerary exceeded the budget",
			CheapestTotal:       overBudget[0].TotalPrice,
			ClosestAlternatives: alts,
		}
	}
	if cheapestPruned > 0 {
		return &NoResultHint{
			Reason:        "every candidate path exceeded the budget before the return leg",
			CheapestTotal: cheapestPruned,
		}
	}
	return &NoResultHint{Reason: "no fares found for the requested search"}
}

func (e *Engine) logInfo(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, keysAndValues...)
	}
}
