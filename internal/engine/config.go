package engine

import "time"

// Config tunes the orchestration loop (spec.md §4.13). Zero values take
// the named defaults from spec.md §6.
type Config struct {
	ScanIntervalMs           int
	CooldownAfterExecutionMs int
	ScanDebounceMs           int // per-key "at most one scan per key" floor, spec.md step 7
	TopNTrackedMarkets       int

	EnableCrossPlatformArb  bool
	EnableSinglePlatformArb bool

	MaxSlippageBps        float64
	ExecutionTimeoutMs    int
	MinArbitrageSpreadBps float64
}

// DefaultConfig returns spec.md §6's trading defaults.
func DefaultConfig() Config {
	return Config{
		ScanIntervalMs:           2000,
		CooldownAfterExecutionMs: 3000,
		ScanDebounceMs:           500,
		TopNTrackedMarkets:       50,
		EnableCrossPlatformArb:   true,
		EnableSinglePlatformArb:  true,
		MaxSlippageBps:           200,
		ExecutionTimeoutMs:       5000,
		MinArbitrageSpreadBps:    5,
	}
}

func (c Config) scanInterval() time.Duration {
	if c.ScanIntervalMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.ScanIntervalMs) * time.Millisecond
}

func (c Config) cooldownAfterExecution() time.Duration {
	if c.CooldownAfterExecutionMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.CooldownAfterExecutionMs) * time.Millisecond
}

func (c Config) scanDebounce() time.Duration {
	if c.ScanDebounceMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.ScanDebounceMs) * time.Millisecond
}

func (c Config) executionTimeout() time.Duration {
	if c.ExecutionTimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ExecutionTimeoutMs) * time.Millisecond
}
