// internal/store/sqlite.go
//
// SQLite-backed Store. Rounds survive a process restart.
//
// Controllers live in memory while in use; each one registered here is
// subscribed so every transition (including timer-driven restarts) is
// written through to the rounds table. Get on an ID that is not live
// rehydrates the controller from its row via game.Restore.
//
// Subscribers run after the controller releases its lock, so two snapshots
// of one round can reach write in either order. The upsert only replaces
// a row with a later (number, version) pair.
//
// With WithIdleTTL, idle controllers are unsubscribed and dropped from
// memory; their rows stay and the next Get rehydrates them.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guesser/assets"
	"github.com/robalobadob/guesser/internal/game"
)

type liveRound struct {
	c       *game.Controller
	unsub   func()
	touched time.Time
}

type sqliteStore struct {
	settings
	db       *sql.DB
	gameOpts []game.Option // applied when rehydrating controllers

	mu        sync.Mutex
	live      map[string]*liveRound
	lastSweep time.Time
}

// NewSQLiteStore wraps an open, migrated database. gameOpts configure
// controllers rebuilt from stored rows (clock, logger, restart delay).
func NewSQLiteStore(db *sql.DB, gameOpts []game.Option, opts ...Option) Store {
	return &sqliteStore{
		settings: newSettings(opts),
		db:       db,
		gameOpts: gameOpts,
		live:     make(map[string]*liveRound),
	}
}

func (s *sqliteStore) Save(ctx context.Context, c *game.Controller) error {
	if err := s.write(ctx, c.Snapshot()); err != nil {
		return err
	}
	s.track(c, true)
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*game.Controller, error) {
	s.mu.Lock()
	lr, ok := s.live[id]
	if ok {
		lr.touched = s.now()
	}
	s.mu.Unlock()
	if ok {
		return lr.c, nil
	}

	r, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	c := game.Restore(r, s.gameOpts...)
	if snap := c.Snapshot(); snap.Number != r.Number {
		// Countdown expired while the round was at rest.
		if err := s.write(ctx, snap); err != nil {
			c.Close()
			return nil, err
		}
	}
	return s.track(c, false), nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	lr, ok := s.live[id]
	delete(s.live, id)
	s.mu.Unlock()
	if ok {
		lr.unsub()
		lr.c.Close()
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rounds WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete round %s: %w", id, err)
	}
	return nil
}

// track subscribes c for write-through and returns the live controller
// for its ID. With replace set, c supersedes any live controller;
// otherwise an existing one wins (a concurrent Get got there first) and
// c is closed.
func (s *sqliteStore) track(c *game.Controller, replace bool) *game.Controller {
	id := c.ID()
	now := s.now()

	s.mu.Lock()
	evicted := s.sweepLocked(now)
	if lr, ok := s.live[id]; ok {
		switch {
		case lr.c == c:
			lr.touched = now
			s.mu.Unlock()
			release(evicted)
			return c
		case !replace:
			lr.touched = now
			s.mu.Unlock()
			c.Close()
			release(evicted)
			return lr.c
		}
		evicted = append(evicted, lr)
	}
	unsub := c.Subscribe(func(r game.Round) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.write(ctx, r); err != nil {
			log.Warn().Err(err).Str("roundId", r.ID).Msg("persist round")
		}
	})
	s.live[id] = &liveRound{c: c, unsub: unsub, touched: now}
	s.mu.Unlock()

	release(evicted)
	return c
}

// sweepLocked drops idle controllers from the live map. Caller holds mu
// and releases the returned entries after unlocking.
func (s *sqliteStore) sweepLocked(now time.Time) []*liveRound {
	if !s.dueForSweep(s.lastSweep, now) {
		return nil
	}
	s.lastSweep = now
	var out []*liveRound
	for id, lr := range s.live {
		if s.expired(lr.touched, now) {
			delete(s.live, id)
			out = append(out, lr)
		}
	}
	return out
}

func release(lrs []*liveRound) {
	for _, lr := range lrs {
		lr.unsub()
		lr.c.Close()
	}
}

func (s *sqliteStore) write(ctx context.Context, r game.Round) error {
	guesses, err := json.Marshal(r.Guesses)
	if err != nil {
		return err
	}
	var solved sql.NullString
	if !r.SolvedAt.IsZero() {
		solved = sql.NullString{String: r.SolvedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO rounds
            (id, number, version, answer, upper_bound, pending, last_guess, guesses, hint, started_at, solved_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            number=excluded.number, version=excluded.version, answer=excluded.answer, upper_bound=excluded.upper_bound,
            pending=excluded.pending, last_guess=excluded.last_guess, guesses=excluded.guesses,
            hint=excluded.hint, started_at=excluded.started_at, solved_at=excluded.solved_at,
            updated_at=excluded.updated_at
        WHERE excluded.number > rounds.number
           OR (excluded.number = rounds.number AND excluded.version > rounds.version)`,
		r.ID, r.Number, r.Version, r.Answer, r.UpperBound, r.Pending, r.LastGuess, string(guesses), string(r.Hint),
		r.StartedAt.UTC().Format(time.RFC3339Nano), solved, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save round %s: %w", r.ID, err)
	}
	return nil
}

func (s *sqliteStore) read(ctx context.Context, id string) (game.Round, error) {
	var (
		r       game.Round
		guesses string
		hint    string
		started string
		solved  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT id, number, version, answer, upper_bound, pending, last_guess, guesses, hint, started_at, solved_at
        FROM rounds WHERE id=?`, id,
	).Scan(&r.ID, &r.Number, &r.Version, &r.Answer, &r.UpperBound, &r.Pending, &r.LastGuess, &guesses, &hint, &started, &solved)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("load round %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(guesses), &r.Guesses); err != nil {
		return r, fmt.Errorf("decode guesses for %s: %w", id, err)
	}
	r.Hint = game.HintState(hint)
	r.StartedAt = parseTime(started)
	if solved.Valid {
		r.SolvedAt = parseTime(solved.String)
	}
	return r, nil
}

// parseTime parses RFC3339 timestamps; on error returns zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// Migrate applies the embedded schema scripts.
//
// - Uses a _migrations table to track applied files.
// - Executes each script in lexical order inside its own transaction.
// - Skips scripts already recorded.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	migrations, err := assets.Migrations()
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		var done int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, m.Name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", m.Name).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}
		if strings.TrimSpace(m.SQL) == "" {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.Name, err)
		}
		log.Info().Str("migration", m.Name).Msg("applied")
	}
	return nil
}
