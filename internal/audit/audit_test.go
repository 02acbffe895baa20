package audit

import (
	"context"
	"testing"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

func TestNoopSink_RecordDiceRollAlwaysSucceeds(t *testing.T) {
	var sink NoopSink
	err := sink.RecordDiceRoll(context.Background(), "world-1", "scene-1", "beat-1", types.DiceRoll{RawRoll: 42})
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestNoopSink_RecordWorldEventAlwaysSucceeds(t *testing.T) {
	var sink NoopSink
	err := sink.RecordWorldEvent(context.Background(), "world-1", 1, types.WorldEvent{Description: "a storm"})
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
