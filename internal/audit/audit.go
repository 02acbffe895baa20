// Package audit provides an optional, queryable history of dice rolls and
// world events. It is a side-channel log only: Advance and Director
// operations never read from it, so a Sink outage never blocks gameplay.
package audit

import (
	"context"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

// Sink records narrative engine events for later querying. All methods must
// tolerate being called from the hot advance path: implementations should
// not block it for long, and callers should treat Sink errors as
// log-and-continue, never as reasons to fail an Advance call.
type Sink interface {
	// RecordDiceRoll logs a single resolved dice roll for worldID.
	RecordDiceRoll(ctx context.Context, worldID, sceneID, beatID string, roll types.DiceRoll) error

	// RecordWorldEvent logs a world event produced while completing an act.
	RecordWorldEvent(ctx context.Context, worldID string, actNumber int, event types.WorldEvent) error
}

// NoopSink discards everything. It is the default Sink when no audit
// backend is configured.
type NoopSink struct{}

// RecordDiceRoll implements Sink by doing nothing.
func (NoopSink) RecordDiceRoll(context.Context, string, string, string, types.DiceRoll) error {
	return nil
}

// RecordWorldEvent implements Sink by doing nothing.
func (NoopSink) RecordWorldEvent(context.Context, string, int, types.WorldEvent) error {
	return nil
}

var _ Sink = NoopSink{}
