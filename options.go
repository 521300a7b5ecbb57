package skyodyssey

import (
	"fmt"
	"time"
)

// Option configures an Engine.
type Option func(*Engine)

// WithProvider sets the fare provider the engine fetches from.
func WithProvider(p FareProvider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithCache sets a custom cache backend.
func WithCache(store CacheStore) Option {
	return func(e *Engine) {
		e.cache = store
	}
}

// WithCacheTTL sets how long fetched fares stay usable.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.cacheTTL = ttl
	}
}

// WithRetryPolicy sets the retry policy for provider lookups.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(e *Engine) {
		e.retry = p
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		e.retry.MaxRetries = n
	}
}

// WithInitialBackoff sets the initial backoff duration.
func WithInitialBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.retry.InitialBackoff = d
	}
}

// WithMaxBackoff sets the maximum backoff duration.
func WithMaxBackoff(d time.Duration) Option {
	return func(e *Engine) {
		e.retry.MaxBackoff = d
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0).
func WithJitter(f float64) Option {
	return func(e *Engine) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		e.retry.Jitter = f
	}
}

// WithAdaptivePolicy sets the adaptive concurrency policy shared by the
// engine's permit pools.
func WithAdaptivePolicy(p AdaptivePolicy) Option {
	return func(e *Engine) {
		e.adaptive = p
	}
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(mc *MetricsCollector) Option {
	return func(e *Engine) {
		e.metrics = mc
	}
}

// WithLogger sets the logger for engine events.
func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDebug enables verbose per-fetch logging.
func WithDebug(enabled bool) Option {
	return func(e *Engine) {
		e.debug = enabled
	}
}

// WithDirectory sets the airport directory; tests inject synthetic datasets.
func WithDirectory(d *AirportDirectory) Option {
	return func(e *Engine) {
		e.directory = d
	}
}

// WithDealThreshold sets the total price at or under which an itinerary is
// flagged as a deal. Zero disables the flag.
func WithDealThreshold(price float64) Option {
	return func(e *Engine) {
		e.dealThreshold = price
	}
}

// ValidateConfiguration validates the engine configuration and returns an
// error if invalid.
func (e *Engine) ValidateConfiguration() error {
	var errs []string

	if e.provider == nil {
		errs = append(errs, "provider must be set")
	}
	if e.cache == nil {
		errs = append(errs, "cache must be set")
	}
	if e.cacheTTL <= 0 {
		errs = append(errs, "cacheTTL must be positive")
	}
	errs = append(errs, e.validateRetryConfig()...)
	errs = append(errs, e.validateAdaptiveConfig()...)
	if e.dealThreshold < 0 {
		errs = append(errs, "dealThreshold must be non-negative")
	}

	if len(errs) > 0 {
		return &SearchError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errs),
		}
	}
	return nil
}

func (e *Engine) validateRetryConfig() []string {
	var errs []string

	if e.retry == nil {
		return append(errs, "retry policy must be set")
	}
	if e.retry.MaxRetries < 0 {
		errs = append(errs, "maxRetries must be non-negative")
	}
	if e.retry.InitialBackoff <= 0 {
		errs = append(errs, "initialBackoff must be positive")
	}
	if e.retry.MaxBackoff < e.retry.InitialBackoff {
		errs = append(errs, "maxBackoff must be greater than or equal to initialBackoff")
	}
	if e.retry.Multiplier <= 0 {
		errs = append(errs, "backoff multiplier must be positive")
	}
	if e.retry.Jitter < 0 || e.retry.Jitter > 1 {
		errs = append(errs, "jitter must be between 0 and 1")
	}
	return errs
}

func (e *Engine) validateAdaptiveConfig() []string {
	var errs []string

	if e.adaptive.Min < 0 {
		errs = append(errs, "adaptive Min must be non-negative")
	}
	if e.adaptive.Max != 0 && e.adaptive.Max < e.adaptive.Min {
		errs = append(errs, "adaptive Max must be greater than or equal to Min")
	}
	if e.adaptive.FailureRateThreshold < 0 || e.adaptive.FailureRateThreshold > 1 {
		errs = append(errs, "adaptive FailureRateThreshold must be between 0 and 1")
	}
	return errs
}

// IsValid reports whether configuration validation passed at construction.
func (e *Engine) IsValid() bool {
	return e.validationError == nil
}

// ValidationError returns the construction-time validation error, if any.
func (e *Engine) ValidationError() error {
	return e.validationError
}
