// internal/historian/postgres.go
package historian

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/spyfall/internal/game"
)

// Schema creates the round_history table if it does not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS round_history (
	id         BIGSERIAL PRIMARY KEY,
	room       TEXT        NOT NULL,
	round      INT         NOT NULL,
	location   TEXT        NOT NULL,
	spy_id     UUID        NOT NULL,
	spy_name   TEXT        NOT NULL,
	outcome    TEXT        NOT NULL,
	scores     JSONB       NOT NULL,
	closed_at  TIMESTAMPTZ NOT NULL
)`

const insertRound = `
	INSERT INTO round_history (room, round, location, spy_id, spy_name, outcome, scores, closed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// PostgresSink writes round records to round_history.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink ensures the table exists and returns a sink on pool.
func NewPostgresSink(ctx context.Context, pool *pgxpool.Pool) (*PostgresSink, error) {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return nil, fmt.Errorf("creating round_history: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// InsertRounds inserts recs in one transaction.
func (s *PostgresSink) InsertRounds(ctx context.Context, recs []game.RoundRecord) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range recs {
			scores, err := json.Marshal(rec.Scores)
			if err != nil {
				return fmt.Errorf("encoding scores: %w", err)
			}
			batch.Queue(insertRound,
				rec.Room, rec.Round, rec.Location, rec.SpyID, rec.SpyName, string(rec.Outcome), scores, rec.ClosedAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting rounds: %w", err)
		}
		return nil
	})
}
