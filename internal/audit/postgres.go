package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

const ddlDiceRolls = `
CREATE TABLE IF NOT EXISTS dice_rolls (
    id           BIGSERIAL    PRIMARY KEY,
    world_id     TEXT         NOT NULL,
    scene_id     TEXT         NOT NULL DEFAULT '',
    beat_id      TEXT         NOT NULL DEFAULT '',
    actor        TEXT         NOT NULL DEFAULT '',
    action       TEXT         NOT NULL DEFAULT '',
    raw_roll     INT          NOT NULL,
    final_value  INT          NOT NULL,
    outcome      TEXT         NOT NULL,
    modifiers    JSONB        NOT NULL DEFAULT '[]',
    recorded_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dice_rolls_world_id ON dice_rolls (world_id);
CREATE INDEX IF NOT EXISTS idx_dice_rolls_outcome ON dice_rolls (outcome);
`

const ddlWorldEvents = `
CREATE TABLE IF NOT EXISTS world_events (
    id           BIGSERIAL    PRIMARY KEY,
    world_id     TEXT         NOT NULL,
    act_number   INT          NOT NULL,
    description  TEXT         NOT NULL,
    impact       TEXT         NOT NULL DEFAULT '',
    recorded_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_world_events_world_id ON world_events (world_id);
`

// Migrate creates the audit tables if they don't already exist. Idempotent
// and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlDiceRolls, ddlWorldEvents} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("audit migrate: %w", err)
		}
	}
	return nil
}

// PostgresSink persists dice rolls and world events to PostgreSQL. Obtain
// one via NewPostgresSink, which also runs Migrate.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to dsn, runs Migrate, and returns a ready Sink.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresSink{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// RecordDiceRoll implements Sink.
func (s *PostgresSink) RecordDiceRoll(ctx context.Context, worldID, sceneID, beatID string, roll types.DiceRoll) error {
	modifiers, err := json.Marshal(roll.FateModifiers)
	if err != nil {
		return fmt.Errorf("audit: marshal modifiers: %w", err)
	}

	const q = `
		INSERT INTO dice_rolls
		    (world_id, scene_id, beat_id, actor, action, raw_roll, final_value, outcome, modifiers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.pool.Exec(ctx, q,
		worldID, sceneID, beatID,
		roll.Actor, roll.ActionDescription,
		roll.RawRoll, roll.FinalValue, string(roll.Outcome),
		modifiers,
	)
	if err != nil {
		return fmt.Errorf("audit: record dice roll: %w", err)
	}
	return nil
}

// RecordWorldEvent implements Sink.
func (s *PostgresSink) RecordWorldEvent(ctx context.Context, worldID string, actNumber int, event types.WorldEvent) error {
	const q = `
		INSERT INTO world_events (world_id, act_number, description, impact)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, q, worldID, actNumber, event.Description, event.ImpactOnContext); err != nil {
		return fmt.Errorf("audit: record world event: %w", err)
	}
	return nil
}

var _ Sink = (*PostgresSink)(nil)
