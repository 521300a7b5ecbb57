// Package skyodyssey finds affordable multi-leg flight itineraries by
// coordinating many concurrent fare lookups into a bounded, budget-pruned
// search tree:
//
//   - 3-stage branching search (origin → City A → City B → return) with a
//     per-stage branching factor and country-diversity pruning
//   - Durable fare cache with a 6 hour TTL (in-memory, Redis or Postgres)
//   - Deduplication of concurrent identical lookups (single in-flight fetch)
//   - Adaptive concurrency: additive growth on fast successes, multiplicative
//     shrink on timeouts and failure spikes
//   - Retries with exponential backoff + jitter; exhausted legs are absorbed,
//     never abort a run
//   - Budget pruning between stages so doomed branches never cost a fetch
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Safe concurrent use of a single *Engine instance
//   - Provider-agnostic: the engine is written against the FareProvider
//     interface only; a deterministic mock ships for tests and dry runs
//
// Typical usage:
//
//	engine := skyodyssey.New(
//	    skyodyssey.WithProvider(provider),
//	    skyodyssey.WithCache(cache),
//	    skyodyssey.WithMaxRetries(2),
//	    skyodyssey.WithLogger(skyodyssey.NewSimpleLogger()),
//	)
//	result, err := engine.Run(ctx, skyodyssey.SearchParams{
//	    Origins:   []string{"LYS"},
//	    Date:      "2026-09-12",
//	    Region:    "Europe",
//	    Limit:     3,
//	    MaxBudget: 250,
//	})
//
// A run never fails because individual fares timed out or were missing; it
// reports whatever subset of the search space was resolvable, with guidance
// when the budget filtered everything out.
package skyodyssey
