package skyodyssey

import (
	"context"
	"math"
	"testing"
)

// testDirectory is a small synthetic dataset: one origin country and five
// candidate destinations in distinct countries.
func testDirectory() *AirportDirectory {
	return NewAirportDirectory(
		map[string][]string{
			"Test": {"AAA", "BBB", "CCC", "DDD", "EEE"},
		},
		map[string]string{
			"LYS": "France",
			"AAA": "Spain",
			"BBB": "Italy",
			"CCC": "Portugal",
			"DDD": "Germany",
			"EEE": "Poland",
		},
		nil,
	)
}

// scenarioProvider wires the fixed synthetic prices: stage1 {A:40, B:50,
// C:70}, stage2 {D:30, E:90}, return 20.
func scenarioProvider() *MockProvider {
	p := NewMockProvider()
	p.SetFare("LYS", "AAA", MockFare{Price: 40, Carrier: "VY", Departure: "10:30 AM"})
	p.SetFare("LYS", "BBB", MockFare{Price: 50, Carrier: "AZ", Departure: "8:15 AM"})
	p.SetFare("LYS", "CCC", MockFare{Price: 70, Carrier: "TP", Departure: "6:00 PM"})
	p.SetFare("AAA", "DDD", MockFare{Price: 30, Carrier: "LH"})
	p.SetFare("AAA", "EEE", MockFare{Price: 90, Carrier: "LO"})
	p.SetFare("BBB", "DDD", MockFare{Price: 30, Carrier: "LH"})
	p.SetFare("BBB", "EEE", MockFare{Price: 90, Carrier: "LO"})
	p.SetFare("DDD", "LYS", MockFare{Price: 20, Carrier: "AF"})
	p.SetFare("EEE", "LYS", MockFare{Price: 20, Carrier: "AF"})
	return p
}

func newTestEngine(provider FareProvider, opts ...Option) *Engine {
	base := []Option{
		WithProvider(provider),
		WithDirectory(testDirectory()),
		WithRetryPolicy(fastRetryPolicy(2)),
	}
	return New(append(base, opts...)...)
}

func TestEngineScenarioLYS(t *testing.T) {
	provider := scenarioProvider()
	engine := newTestEngine(provider)

	result, err := engine.Run(context.Background(), SearchParams{
		Origins:   []string{"LYS"},
		Date:      "2026-09-12",
		Region:    "Test",
		Limit:     2,
		MaxBudget: 150,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Stage 1 keeps the 2 cheapest of {A:40, B:50, C:70}; stage 2 branches
	// each into {D, E}; the B+E path (160 total) is the only final prune.
	if result.Stats.Step1Candidates != 2 {
		t.Errorf("Expected 2 stage-1 survivors, got %d", result.Stats.Step1Candidates)
	}
	if result.Stats.Step2Candidates != 4 {
		t.Errorf("Expected 4 stage-2 survivors, got %d", result.Stats.Step2Candidates)
	}
	if result.Stats.Step3BudgetPruned != 0 {
		t.Errorf("No node should be pruned before stage 3, got %d", result.Stats.Step3BudgetPruned)
	}
	if result.Stats.FinalBudgetPruned != 1 {
		t.Errorf("Expected 1 final budget prune, got %d", result.Stats.FinalBudgetPruned)
	}

	wantTotals := []float64{90, 100, 150}
	if len(result.Itineraries) != len(wantTotals) {
		t.Fatalf("Expected %d itineraries, got %d", len(wantTotals), len(result.Itineraries))
	}
	for i, want := range wantTotals {
		if result.Itineraries[i].TotalPrice != want {
			t.Errorf("Itinerary %d: expected total %v, got %v", i, want, result.Itineraries[i].TotalPrice)
		}
	}

	best := result.Itineraries[0]
	if best.Legs[0].Destination != "AAA" || best.Legs[1].Destination != "DDD" || best.Legs[2].Destination != "LYS" {
		t.Errorf("Expected LYS->AAA->DDD->LYS, got %v", best.Legs)
	}
	// Fixed 2-day stays: leg dates advance deterministically.
	if best.Legs[0].Date != "2026-09-12" || best.Legs[1].Date != "2026-09-14" || best.Legs[2].Date != "2026-09-16" {
		t.Errorf("Unexpected leg dates: %s %s %s", best.Legs[0].Date, best.Legs[1].Date, best.Legs[2].Date)
	}
}

func TestEngineTotalIsExactLegSum(t *testing.T) {
	engine := newTestEngine(scenarioProvider())

	result, err := engine.Run(context.Background(), SearchParams{
		Origins: []string{"LYS"},
		Date:    "2026-09-12",
		Region:  "Test",
		Limit:   3,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Itineraries) == 0 {
		t.Fatal("Expected itineraries")
	}
	for _, itin := range result.Itineraries {
		sum := 0.0
		for _, leg := range itin.Legs {
			sum += leg.Price
		}
		if math.Abs(sum-itin.TotalPrice) > 1e-9 {
			t.Errorf("Total %v != leg sum %v for %v", itin.TotalPrice, sum, itin.Legs)
		}
		if len(itin.Legs) != 3 {
			t.Errorf("Odyssey itinerary should have 3 legs, got %d", len(itin.Legs))
		}
	}
}

func TestEngineNoStage3FetchForPrunedNode(t *testing.T) {
	provider := scenarioProvider()
	engine := newTestEngine(provider)

	result, err := engine.Run(context.Background(), SearchParams{
		Origins:   []string{"LYS"},
		Date:      "2026-09-12",
		Region:    "Test",
		Limit:     2,
		MaxBudget: 100,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A+E (130) and B+E (140) reach the budget before the return leg, so the
	// return from E must never be fetched.
	if result.Stats.Step3BudgetPruned != 2 {
		t.Errorf("Expected 2 prunes before stage 3, got %d", result.Stats.Step3BudgetPruned)
	}
	if n := provider.Calls("EEE", "LYS"); n != 0 {
		t.Errorf("Pruned branch must not cost a stage-3 fetch, got %d calls", n)
	}
	if len(result.Itineraries) != 2 {
		t.Fatalf("Expected 2 itineraries, got %d", len(result.Itineraries))
	}
	if result.Itineraries[0].TotalPrice != 90 || result.Itineraries[1].TotalPrice != 100 {
		t.Errorf("Expected totals [90 100], got [%v %v]",
			result.Itineraries[0].TotalPrice, result.Itineraries[1].TotalPrice)
	}
}

func TestEngineCountryDiversity(t *testing.T) {
	directory := NewAirportDirectory(
		map[string][]string{"Test": {"AAA", "BBB", "DDD", "EEE"}},
		map[string]string{
			"LYS": "France",
			"AAA": "Spain",
			"BBB": "Italy",
			"DDD": "Spain", // same country as AAA
			"EEE": "Poland",
		},
		nil,
	)
	provider := scenarioProvider()
	engine := newTestEngine(provider, WithDirectory(directory))

	result, err := engine.Run(context.Background(), SearchParams{
		Origins: []string{"LYS"},
		Date:    "2026-09-12",
		Region:  "Test",
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The AAA node must never even fetch AAA->DDD (both Spain).
	if n := provider.Calls("AAA", "DDD"); n != 0 {
		t.Errorf("Same-country candidate should be rejected before fetching, got %d calls", n)
	}
	for _, itin := range result.Itineraries {
		seen := map[string]bool{}
		for _, leg := range itin.Legs[:2] {
			country := directory.Country(leg.Destination)
			if seen[country] {
				t.Errorf("Itinerary %v lands twice in %s", itin.Legs, country)
			}
			seen[country] = true
		}
	}

	// With the constraint disabled the fetch happens.
	provider2 := scenarioProvider()
	engine2 := newTestEngine(provider2, WithDirectory(directory))
	_, err = engine2.Run(context.Background(), SearchParams{
		Origins:          []string{"LYS"},
		Date:             "2026-09-12",
		Region:           "Test",
		Limit:            2,
		AllowSameCountry: true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := provider2.Calls("AAA", "DDD"); n == 0 {
		t.Error("AllowSameCountry should permit the same-country fetch")
	}
}

func TestEngineZeroResultsYieldGuidance(t *testing.T) {
	engine := newTestEngine(scenarioProvider())

	result, err := engine.Run(context.Background(), SearchParams{
		Origins:   []string{"LYS"},
		Date:      "2026-09-12",
		Region:    "Test",
		Limit:     2,
		MaxBudget: 85,
	})
	if err != nil {
		t.Fatalf("Zero results must not be an error: %v", err)
	}
	if len(result.Itineraries) != 0 {
		t.Fatalf("Expected no itineraries under budget 85, got %d", len(result.Itineraries))
	}
	g := result.Guidance
	if g == nil {
		t.Fatal("Expected non-empty guidance")
	}
	if g.CheapestTotal != 90 {
		t.Errorf("Expected cheapest over-budget total 90, got %v", g.CheapestTotal)
	}
	if len(g.ClosestAlternatives) != 2 {
		t.Errorf("Expected 2 near-miss alternatives, got %d", len(g.ClosestAlternatives))
	}
}

func TestEngineProviderOutageIsEmptyNotError(t *testing.T) {
	provider := NewMockProvider() // nothing registered: every lookup is NoFare
	engine := newTestEngine(provider)

	result, err := engine.Run(context.Background(), SearchParams{
		Origins: []string{"LYS"},
		Date:    "2026-09-12",
		Region:  "Test",
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("Empty frontier is a valid outcome, not an error: %v", err)
	}
	if len(result.Itineraries) != 0 {
		t.Errorf("Expected zero itineraries, got %d", len(result.Itineraries))
	}
	if result.Guidance == nil {
		t.Error("Expected guidance for a zero-result run")
	}
}

func TestEngineMultiOrigin(t *testing.T) {
	provider := scenarioProvider()
	provider.SetFare("NCE", "BBB", MockFare{Price: 35, Carrier: "AZ"})
	provider.SetFare("DDD", "NCE", MockFare{Price: 25, Carrier: "AF"})
	provider.SetFare("EEE", "NCE", MockFare{Price: 25, Carrier: "AF"})
	directory := testDirectory()
	engine := newTestEngine(provider, WithDirectory(directory))

	result, err := engine.Run(context.Background(), SearchParams{
		Origins: []string{"LYS", "NCE"},
		Date:    "2026-09-12",
		Region:  "Test",
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	origins := map[string]bool{}
	for _, itin := range result.Itineraries {
		origins[itin.Origin] = true
		if itin.Legs[0].Origin != itin.Origin {
			t.Errorf("Itinerary origin %s does not match first leg %s", itin.Origin, itin.Legs[0].Origin)
		}
		if itin.Legs[2].Destination != itin.Origin {
			t.Errorf("Return should land at the search origin, got %s for %s", itin.Legs[2].Destination, itin.Origin)
		}
	}
	if !origins["LYS"] || !origins["NCE"] {
		t.Errorf("Expected results from both origins, got %v", origins)
	}
}

func TestEngineOpenJawReturnAndHubWarning(t *testing.T) {
	directory := NewAirportDirectory(
		map[string][]string{"Test": {"AAA", "DDD"}},
		map[string]string{"LYS": "France", "AAA": "Spain", "DDD": "Germany"},
		map[string]string{"LYS": "Lyon", "LYN": "Lyon"},
	)
	provider := NewMockProvider()
	provider.SetFare("LYS", "AAA", MockFare{Price: 40})
	provider.SetFare("AAA", "DDD", MockFare{Price: 30})
	provider.SetFare("DDD", "LYN", MockFare{Price: 25})
	engine := newTestEngine(provider, WithDirectory(directory))

	result, err := engine.Run(context.Background(), SearchParams{
		Origins:      []string{"LYS"},
		Date:         "2026-09-12",
		Region:       "Test",
		Limit:        1,
		ReturnOrigin: "LYN",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Itineraries) != 1 {
		t.Fatalf("Expected 1 itinerary, got %d", len(result.Itineraries))
	}
	itin := result.Itineraries[0]
	if itin.ReturnDestination != "LYN" {
		t.Errorf("Expected open-jaw return destination LYN, got %q", itin.ReturnDestination)
	}
	if itin.Warning == "" {
		t.Error("Expected an airport-change warning for same-hub open-jaw return")
	}
}

func TestEngineDealThreshold(t *testing.T) {
	engine := newTestEngine(scenarioProvider())

	result, err := engine.Run(context.Background(), SearchParams{
		Origins:       []string{"LYS"},
		Date:          "2026-09-12",
		Region:        "Test",
		Limit:         2,
		DealThreshold: 95,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	deals := 0
	for _, itin := range result.Itineraries {
		if itin.Deal {
			deals++
			if itin.TotalPrice > 95 {
				t.Errorf("Itinerary over the threshold flagged as deal: %v", itin.TotalPrice)
			}
		}
	}
	if deals != 1 {
		t.Errorf("Expected exactly the 90 itinerary flagged, got %d deals", deals)
	}
}

func TestEngineValidation(t *testing.T) {
	engine := New() // no provider
	if engine.IsValid() {
		t.Error("Engine without a provider should be invalid")
	}
	if _, err := engine.Run(context.Background(), SearchParams{Origins: []string{"LYS"}, Date: "2026-09-12"}); err == nil {
		t.Error("Run on an invalid engine should fail")
	}

	valid := newTestEngine(NewMockProvider())
	if !valid.IsValid() {
		t.Errorf("Expected valid engine, got %v", valid.ValidationError())
	}
	if _, err := valid.Run(context.Background(), SearchParams{Date: "2026-09-12"}); err == nil {
		t.Error("Run without origins should fail validation")
	}
	if _, err := valid.Run(context.Background(), SearchParams{Origins: []string{"LYS"}, Date: "not-a-date"}); err == nil {
		t.Error("Run with a malformed date should fail validation")
	}
}

func TestEngineCancellation(t *testing.T) {
	engine := newTestEngine(scenarioProvider())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Run(ctx, SearchParams{
		Origins: []string{"LYS"},
		Date:    "2026-09-12",
		Region:  "Test",
	}); err == nil {
		t.Error("Cancelled run should return an error, not partial results")
	}
}
