package dice

import (
	"context"
	"math/rand/v2"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

// ResolveAction is the full beat resolution pipeline:
//  1. Draw nTropes distinct tropes from pool, or sample globally if pool is
//     too small.
//  2. Assess fate modifiers for the drawn tropes via the fast LLM.
//  3. Roll (or take overrideRoll, for director mode).
//  4. Sum modifiers, clamping each to [-30,30] and the final sum to [1,100].
//  5. Classify the final value against the five-tier outcome table.
func (s *Service) ResolveAction(ctx context.Context, action, actor, sceneContext string, pool []types.Trope, nTropes int, overrideRoll *int) types.DiceRoll {
	activeTropes := s.selectTropes(pool, nTropes)

	modifiers := s.AssessFateModifiers(ctx, action, actor, activeTropes, sceneContext)

	raw := RollD100()
	if overrideRoll != nil {
		raw = *overrideRoll
	}

	total := 0
	for _, m := range modifiers {
		total += m.Modifier
	}
	final := clamp(raw+total, 1, 100)

	return types.DiceRoll{
		RawRoll:           raw,
		FateModifiers:     modifiers,
		FinalValue:        final,
		Outcome:           Classify(final),
		ActionDescription: action,
		Actor:             actor,
	}
}

// selectTropes draws nTropes distinct entries from pool when it is large
// enough; otherwise it falls back to sampling the global corpus.
func (s *Service) selectTropes(pool []types.Trope, nTropes int) []types.Trope {
	if len(pool) >= nTropes && nTropes > 0 {
		idx := rand.Perm(len(pool))
		out := make([]types.Trope, nTropes)
		for i := 0; i < nTropes; i++ {
			out[i] = pool[idx[i]]
		}
		return out
	}
	return s.corpus.SampleRandom(nTropes).Tropes
}
