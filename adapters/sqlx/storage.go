package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	libsqlx "github.com/jmoiron/sqlx"

	"scorekit/core"
	"scorekit/engine"
)

const (
	insertEntrySQL = `INSERT INTO score_entries (id, board_key, game_type, difficulty, score, player_name, created_at, game_config)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	// The derived table lets MySQL read the table it is deleting from.
	trimBoardSQL = `DELETE FROM score_entries WHERE board_key = ? AND id NOT IN (
SELECT id FROM (SELECT id FROM score_entries WHERE board_key = ? ORDER BY score ASC, created_at ASC, id ASC LIMIT ?) AS kept)`

	selectBoardSQL = `SELECT id, game_type, difficulty, score, player_name, created_at, game_config FROM score_entries
WHERE board_key = ? ORDER BY score ASC, created_at ASC, id ASC LIMIT ?`
)

// Store implements engine.Store on a relational database.
type Store struct {
	db     *libsqlx.DB
	driver Driver

	insertSQL string
	trimSQL   string
	selectSQL string
}

type entryRow struct {
	ID         string         `db:"id"`
	GameType   string         `db:"game_type"`
	Difficulty string         `db:"difficulty"`
	Score      float64        `db:"score"`
	PlayerName string         `db:"player_name"`
	CreatedAt  int64          `db:"created_at"`
	GameConfig sql.NullString `db:"game_config"`
}

// New opens the database, verifies connectivity and runs migrations when configured.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sql config: %w", err)
	}
	db, err := libsqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Driver, err)
	}
	if cfg.RunMigrations {
		if err := Migrate(ctx, db.DB, cfg.Driver); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return NewWithDB(db, cfg.Driver), nil
}

// NewWithDB wraps an existing handle; the schema must already exist.
func NewWithDB(db *libsqlx.DB, driver Driver) *Store {
	return &Store{
		db:        db,
		driver:    driver,
		insertSQL: db.Rebind(insertEntrySQL),
		trimSQL:   db.Rebind(trimBoardSQL),
		selectSQL: db.Rebind(selectBoardSQL),
	}
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Submit inserts the entry and deletes everything beyond core.MaxEntries in one transaction.
func (s *Store) Submit(ctx context.Context, key core.BoardKey, entry core.ScoreEntry) error {
	var gameConfig sql.NullString
	if entry.GameConfig != nil {
		b, err := json.Marshal(entry.GameConfig)
		if err != nil {
			return fmt.Errorf("encode game config: %w", err)
		}
		gameConfig = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	k := key.String()
	if _, err := tx.ExecContext(ctx, s.insertSQL,
		entry.ID, k, entry.GameType, entry.Difficulty, entry.Score, entry.PlayerName,
		entry.Timestamp.UnixNano(), gameConfig,
	); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.trimSQL, k, k, core.MaxEntries); err != nil {
		return fmt.Errorf("trim board: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Query returns up to limit entries in rank order.
func (s *Store) Query(ctx context.Context, key core.BoardKey, limit int) ([]core.ScoreEntry, error) {
	if limit > core.MaxEntries {
		limit = core.MaxEntries
	}
	if limit <= 0 {
		return []core.ScoreEntry{}, nil
	}
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, s.selectSQL, key.String(), limit); err != nil {
		return nil, fmt.Errorf("select board: %w", err)
	}
	out := make([]core.ScoreEntry, 0, len(rows))
	for _, r := range rows {
		e := core.ScoreEntry{
			ID:         r.ID,
			GameType:   r.GameType,
			Difficulty: r.Difficulty,
			Score:      r.Score,
			PlayerName: r.PlayerName,
			Timestamp:  time.Unix(0, r.CreatedAt).UTC(),
		}
		if r.GameConfig.Valid {
			var gc core.GameConfig
			if err := json.Unmarshal([]byte(r.GameConfig.String), &gc); err != nil {
				return nil, fmt.Errorf("decode game config for %s: %w", r.ID, err)
			}
			e.GameConfig = &gc
		}
		out = append(out, e)
	}
	return out, nil
}

var _ engine.Store = (*Store)(nil)
