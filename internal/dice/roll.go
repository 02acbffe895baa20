// Package dice implements stochastic action resolution: a pure d100 roll,
// trope-based fate modifiers assessed by the fast LLM, and the outcome
// classification table. This file contains only the pure randomness and
// classification logic — it deliberately imports nothing LLM-related, so
// that RollD100 can never be accidentally routed through a model call.
package dice

import (
	"math/rand/v2"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

// modifierMin and modifierMax bound every individual fate modifier.
const (
	modifierMin = -30
	modifierMax = 30
)

// RollD100 returns a uniform integer in [1, 100] from a real pseudorandom
// source. This MUST never be satisfied by an LLM call.
func RollD100() int {
	return rand.IntN(100) + 1
}

// Classify maps a final (post-modifier, clamped) value in [1, 100] to one of
// the five outcome tiers. The mapping is total and deterministic.
func Classify(final int) types.DiceOutcome {
	switch {
	case final <= 5:
		return types.OutcomeCatastrophicFailure
	case final <= 30:
		return types.OutcomeFailure
	case final <= 60:
		return types.OutcomeMixed
	case final <= 90:
		return types.OutcomeSuccess
	default:
		return types.OutcomeCriticalSuccess
	}
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
