// -----------------------------------------------------------------------
// Provider Settings Resolver - Per-platform tunables with hot reload
// -----------------------------------------------------------------------

package common

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/interfaces"
)

// Minimum floors for provider tunables. Limits below these have historically
// made jobs "complete" after trivial partial progress, so the resolver clamps
// every resolved value to them regardless of where the value came from.
const (
	MinMaxAttempts = 2
	MinStepDelay   = 100 * time.Millisecond
	MinJobTimeout  = 1 * time.Minute
	MinPageSize    = 10
)

// Defaults applied when neither config nor KV overrides set a value.
const (
	defaultMaxAttempts       = 10
	defaultStepDelay         = 2 * time.Second
	defaultJobTimeout        = 15 * time.Minute
	defaultPageSize          = 50
	defaultRateLimit         = 5
	defaultRetryMaxAttempts  = 3
	defaultRetryBaseDelay    = 1 * time.Second
	defaultRetryMaxDelay     = 30 * time.Second
	defaultRetryJitter       = 0.2
	defaultEnrichConcurrency = 5
	defaultEnrichCacheSize   = 2048
	defaultEnrichCacheTTL    = 30 * time.Minute
)

// ProviderRuntime is the fully resolved, typed tuning for one platform. A
// fresh value is resolved once per orchestrator invocation and passed
// explicitly into the planner and retry controller.
type ProviderRuntime struct {
	Platform          string
	MaxAttempts       int
	StepDelay         time.Duration
	JobTimeout        time.Duration
	PageSize          int
	RateLimit         int
	RetryMaxAttempts  int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RetryJitter       float64
	EnrichConcurrency int
	EnrichCacheSize   int
	EnrichCacheTTL    time.Duration
}

// SettingsResolver merges the static [providers.<platform>] config block with
// KV overrides on every call, so operational tuning does not require a
// restart. KV keys: provider.<platform>.<field>, e.g.
// "provider.instagram.max_attempts".
type SettingsResolver struct {
	config *Config
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// NewSettingsResolver creates a resolver. kv may be nil, in which case only
// the static config is used.
func NewSettingsResolver(config *Config, kv interfaces.KeyValueStorage, logger arbor.ILogger) *SettingsResolver {
	return &SettingsResolver{config: config, kv: kv, logger: logger}
}

// Resolve returns the effective tuning for a platform.
func (r *SettingsResolver) Resolve(ctx context.Context, platform string) (*ProviderRuntime, error) {
	rt := &ProviderRuntime{
		Platform:          platform,
		MaxAttempts:       defaultMaxAttempts,
		StepDelay:         defaultStepDelay,
		JobTimeout:        defaultJobTimeout,
		PageSize:          defaultPageSize,
		RateLimit:         defaultRateLimit,
		RetryMaxAttempts:  defaultRetryMaxAttempts,
		RetryBaseDelay:    defaultRetryBaseDelay,
		RetryMaxDelay:     defaultRetryMaxDelay,
		RetryJitter:       defaultRetryJitter,
		EnrichConcurrency: defaultEnrichConcurrency,
		EnrichCacheSize:   defaultEnrichCacheSize,
		EnrichCacheTTL:    defaultEnrichCacheTTL,
	}

	if settings, ok := r.config.Providers[platform]; ok {
		applySettings(rt, settings)
	}

	if r.kv != nil {
		if err := r.applyKVOverrides(ctx, rt, platform); err != nil {
			// Overrides are best-effort; the static config still stands.
			r.logger.Warn().Err(err).Str("platform", platform).Msg("Failed to apply KV setting overrides")
		}
	}

	r.clampToFloors(rt)
	return rt, nil
}

func applySettings(rt *ProviderRuntime, s ProviderSettings) {
	if s.MaxAttempts > 0 {
		rt.MaxAttempts = s.MaxAttempts
	}
	if s.StepDelay != "" {
		rt.StepDelay = ParseDurationOr(s.StepDelay, rt.StepDelay)
	}
	if s.JobTimeout != "" {
		rt.JobTimeout = ParseDurationOr(s.JobTimeout, rt.JobTimeout)
	}
	if s.PageSize > 0 {
		rt.PageSize = s.PageSize
	}
	if s.RateLimit > 0 {
		rt.RateLimit = s.RateLimit
	}
	if s.RetryMaxAttempts > 0 {
		rt.RetryMaxAttempts = s.RetryMaxAttempts
	}
	if s.RetryBaseDelay != "" {
		rt.RetryBaseDelay = ParseDurationOr(s.RetryBaseDelay, rt.RetryBaseDelay)
	}
	if s.RetryMaxDelay != "" {
		rt.RetryMaxDelay = ParseDurationOr(s.RetryMaxDelay, rt.RetryMaxDelay)
	}
	if s.RetryJitter > 0 {
		rt.RetryJitter = s.RetryJitter
	}
	if s.EnrichConcurrency > 0 {
		rt.EnrichConcurrency = s.EnrichConcurrency
	}
	if s.EnrichCacheSize > 0 {
		rt.EnrichCacheSize = s.EnrichCacheSize
	}
	if s.EnrichCacheTTL != "" {
		rt.EnrichCacheTTL = ParseDurationOr(s.EnrichCacheTTL, rt.EnrichCacheTTL)
	}
}

func (r *SettingsResolver) applyKVOverrides(ctx context.Context, rt *ProviderRuntime, platform string) error {
	kvMap, err := r.kv.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read KV overrides: %w", err)
	}

	prefix := fmt.Sprintf("provider.%s.", platform)
	get := func(field string) (string, bool) {
		v, ok := kvMap[prefix+field]
		return v, ok && v != ""
	}

	if v, ok := get("max_attempts"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			rt.MaxAttempts = n
		}
	}
	if v, ok := get("step_delay"); ok {
		rt.StepDelay = ParseDurationOr(v, rt.StepDelay)
	}
	if v, ok := get("job_timeout"); ok {
		rt.JobTimeout = ParseDurationOr(v, rt.JobTimeout)
	}
	if v, ok := get("page_size"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			rt.PageSize = n
		}
	}
	if v, ok := get("rate_limit"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rt.RateLimit = n
		}
	}
	if v, ok := get("retry_max_attempts"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			rt.RetryMaxAttempts = n
		}
	}

	return nil
}

// clampToFloors raises any resolved value that sits below its documented
// minimum, logging the correction.
func (r *SettingsResolver) clampToFloors(rt *ProviderRuntime) {
	if rt.MaxAttempts < MinMaxAttempts {
		r.warnClamp(rt.Platform, "max_attempts", rt.MaxAttempts, MinMaxAttempts)
		rt.MaxAttempts = MinMaxAttempts
	}
	if rt.StepDelay < MinStepDelay {
		r.warnClamp(rt.Platform, "step_delay", rt.StepDelay, MinStepDelay)
		rt.StepDelay = MinStepDelay
	}
	if rt.JobTimeout < MinJobTimeout {
		r.warnClamp(rt.Platform, "job_timeout", rt.JobTimeout, MinJobTimeout)
		rt.JobTimeout = MinJobTimeout
	}
	if rt.PageSize < MinPageSize {
		r.warnClamp(rt.Platform, "page_size", rt.PageSize, MinPageSize)
		rt.PageSize = MinPageSize
	}
	if rt.RetryMaxAttempts < MinMaxAttempts {
		rt.RetryMaxAttempts = MinMaxAttempts
	}
}

func (r *SettingsResolver) warnClamp(platform, field string, got, floor interface{}) {
	if r.logger == nil {
		return
	}
	r.logger.Warn().
		Str("platform", platform).
		Str("field", field).
		Str("value", fmt.Sprintf("%v", got)).
		Str("floor", fmt.Sprintf("%v", floor)).
		Msg("Provider setting below minimum floor, clamping")
}
