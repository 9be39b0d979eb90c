package models

import "time"

// KeyStrategy names how a rate-limit tier derives its counter key.
type KeyStrategy string

const (
	KeyByIP          KeyStrategy = "ip"
	KeyByPrincipal   KeyStrategy = "principal"
	KeyByPrincipalIP KeyStrategy = "principal_ip"
)

// RateLimitTier is one (key, window, ceiling) throttling rule. Several
// tiers may apply to one request; they are evaluated in sequence.
type RateLimitTier struct {
	Name     string        `json:"name"`
	Strategy KeyStrategy   `json:"key_strategy"`
	Window   time.Duration `json:"window"`
	Ceiling  int           `json:"ceiling"`
	// FailOpen admits the request when the counter store is unreachable.
	// Default is fail-closed; only non-critical tiers opt in via config.
	FailOpen bool `json:"-"`
}

// RateLimitDecision is the outcome of one tier evaluation.
type RateLimitDecision struct {
	Tier      string        `json:"tier"`
	Allowed   bool          `json:"allowed"`
	Count     int64         `json:"count"`
	Ceiling   int           `json:"ceiling"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
}

// TierStatus is the introspection view of one applicable tier.
type TierStatus struct {
	Name      string `json:"name"`
	Window    string `json:"window"`
	Ceiling   int    `json:"ceiling"`
	Remaining int    `json:"remaining"`
}
