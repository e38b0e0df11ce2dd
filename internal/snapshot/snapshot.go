package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inamate/sceneedit/internal/scene"
	"github.com/inamate/sceneedit/internal/typeid"
)

var ErrNotFound = errors.New("snapshot not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	password     TEXT NOT NULL,
	display_name TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scene_snapshots (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	version    INTEGER NOT NULL,
	state      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (session_id, version)
);`

// NewPool connects to Postgres and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Snapshot is one persisted version of a session's scene.
type Snapshot struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId"`
	Version   int32       `json:"version"`
	State     scene.State `json:"state"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Repository stores versioned scene snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Init creates the tables if they do not exist.
func (r *Repository) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save stores st as the next version of sessionID.
func (r *Repository) Save(ctx context.Context, sessionID string, st scene.State) (*Snapshot, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}

	snap := &Snapshot{ID: typeid.NewSnapshotID(), SessionID: sessionID, State: st}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO scene_snapshots (id, session_id, version, state)
		VALUES ($1, $2, COALESCE((SELECT MAX(version) FROM scene_snapshots WHERE session_id = $2), 0) + 1, $3)
		RETURNING version, created_at`,
		snap.ID, sessionID, data,
	).Scan(&snap.Version, &snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

// Latest returns the newest snapshot of sessionID.
func (r *Repository) Latest(ctx context.Context, sessionID string) (*Snapshot, error) {
	var (
		snap Snapshot
		data []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, session_id, version, state, created_at
		FROM scene_snapshots
		WHERE session_id = $1
		ORDER BY version DESC
		LIMIT 1`,
		sessionID,
	).Scan(&snap.ID, &snap.SessionID, &snap.Version, &data, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap.State); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
	}
	return &snap, nil
}
