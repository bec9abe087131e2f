// Package sqlite provides a single-node ledger store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/sqlite/migrations"
	"github.com/elo-ledger/internal/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists the ledger in a SQLite file
type Store struct {
	ledger
	db     *sql.DB
	logger *slog.Logger
}

// ledger implements store.Ledger on top of a querier
type ledger struct {
	q querier
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serialises writers; immediate transactions take the write lock up front.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("sqlite ledger store opened", "path", path)
	return &Store{ledger: ledger{q: db}, db: db, logger: logger}, nil
}

// Close closes the database handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside an immediate transaction
func (s *Store) InTx(ctx context.Context, fn func(tx store.Ledger) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ledger{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// Leaderboards

const leaderboardColumns = `id, name, game_type, scoring_type, track_starter, notify_target, season, created_at`

func scanLeaderboard(row interface{ Scan(...any) error }) (*domain.Leaderboard, error) {
	var (
		lb        domain.Leaderboard
		scoring   string
		createdAt int64
	)
	if err := row.Scan(&lb.ID, &lb.Name, &lb.GameType, &scoring, &lb.TrackStarter,
		&lb.NotifyTarget, &lb.Season, &createdAt); err != nil {
		return nil, err
	}
	lb.ScoringType = domain.ScoringType(scoring)
	lb.CreatedAt = fromMillis(createdAt)
	return &lb, nil
}

func (l ledger) queryLeaderboards(ctx context.Context, query string, args ...any) ([]domain.Leaderboard, error) {
	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboards: %w", err)
	}
	defer rows.Close()

	var out []domain.Leaderboard
	for rows.Next() {
		lb, err := scanLeaderboard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning leaderboard: %w", err)
		}
		out = append(out, *lb)
	}
	return out, rows.Err()
}

func (l ledger) GetLeaderboard(ctx context.Context, id string) (*domain.Leaderboard, error) {
	lb, err := scanLeaderboard(l.q.QueryRowContext(ctx,
		`SELECT `+leaderboardColumns+` FROM leaderboards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrLeaderboardNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	return lb, nil
}

func (l ledger) FindLeaderboard(ctx context.Context, gameType, season string) (*domain.Leaderboard, error) {
	lb, err := scanLeaderboard(l.q.QueryRowContext(ctx,
		`SELECT `+leaderboardColumns+` FROM leaderboards WHERE game_type = ? AND season = ?`, gameType, season))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: game type %q season %q", domain.ErrLeaderboardNotFound, gameType, season)
	}
	if err != nil {
		return nil, fmt.Errorf("finding leaderboard: %w", err)
	}
	return lb, nil
}

func (l ledger) ListLeaderboards(ctx context.Context) ([]domain.Leaderboard, error) {
	return l.queryLeaderboards(ctx, `SELECT `+leaderboardColumns+` FROM leaderboards
		ORDER BY season <> '' ASC, season DESC, name ASC`)
}

func (l ledger) CreateLeaderboard(ctx context.Context, lb *domain.Leaderboard) error {
	if lb.ID == "" {
		lb.ID = uuid.NewString()
	}
	if lb.CreatedAt.IsZero() {
		lb.CreatedAt = time.Now().UTC()
	}
	_, err := l.q.ExecContext(ctx, `INSERT INTO leaderboards (`+leaderboardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		lb.ID, lb.Name, lb.GameType, string(lb.ScoringType), lb.TrackStarter,
		lb.NotifyTarget, lb.Season, toMillis(lb.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: game type %q season %q", domain.ErrLeaderboardExists, lb.GameType, lb.Season)
		}
		return fmt.Errorf("creating leaderboard: %w", err)
	}
	return nil
}

func (l ledger) DeleteGameSystem(ctx context.Context, gameType string) (int, error) {
	scope := `SELECT id FROM leaderboards WHERE game_type = ?`
	if _, err := l.q.ExecContext(ctx,
		`DELETE FROM matches WHERE leaderboard_id IN (`+scope+`)`, gameType); err != nil {
		return 0, fmt.Errorf("deleting matches: %w", err)
	}
	if _, err := l.q.ExecContext(ctx,
		`DELETE FROM players WHERE leaderboard_id IN (`+scope+`)`, gameType); err != nil {
		return 0, fmt.Errorf("deleting players: %w", err)
	}
	res, err := l.q.ExecContext(ctx, `DELETE FROM leaderboards WHERE game_type = ?`, gameType)
	if err != nil {
		return 0, fmt.Errorf("deleting leaderboards: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted leaderboards: %w", err)
	}
	return int(n), nil
}

// LockGameSystem reads the game system's leaderboards. Transactions are opened
// with BEGIN IMMEDIATE, so the write lock is already held.
func (l ledger) LockGameSystem(ctx context.Context, gameType string) ([]domain.Leaderboard, error) {
	return l.queryLeaderboards(ctx, `SELECT `+leaderboardColumns+` FROM leaderboards
		WHERE game_type = ? ORDER BY id`, gameType)
}

// Players

const playerColumns = `id, leaderboard_id, external_id, name, rating, wins, losses, created_at, updated_at`

func scanPlayer(row interface{ Scan(...any) error }) (*domain.Player, error) {
	var (
		p                    domain.Player
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.LeaderboardID, &p.ExternalID, &p.Name, &p.Rating,
		&p.Wins, &p.Losses, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

func (l ledger) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	p, err := scanPlayer(l.q.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return p, nil
}

func (l ledger) GetPlayerByExternalID(ctx context.Context, leaderboardID, externalID string) (*domain.Player, error) {
	p, err := scanPlayer(l.q.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE leaderboard_id = ? AND external_id = ?`,
		leaderboardID, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return p, nil
}

func (l ledger) ListPlayers(ctx context.Context, leaderboardID string) ([]domain.Player, error) {
	rows, err := l.q.QueryContext(ctx, `SELECT `+playerColumns+` FROM players
		WHERE leaderboard_id = ? ORDER BY rating DESC, wins DESC, name ASC`, leaderboardID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var out []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (l ledger) CreatePlayer(ctx context.Context, p *domain.Player) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	_, err := l.q.ExecContext(ctx, `INSERT INTO players (`+playerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.LeaderboardID, p.ExternalID, p.Name, p.Rating, p.Wins, p.Losses,
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrPlayerExists, p.ExternalID)
		}
		return fmt.Errorf("creating player: %w", err)
	}
	return nil
}

func (l ledger) UpdatePlayerStanding(ctx context.Context, p *domain.Player) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := l.q.ExecContext(ctx, `UPDATE players SET rating = ?, wins = ?, losses = ?, updated_at = ?
		WHERE id = ?`, p.Rating, p.Wins, p.Losses, toMillis(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("updating player: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, p.ID)
	}
	return nil
}

// Matches

const matchColumns = `id, leaderboard_id, event_id, occurred_at, kind, winner_id, loser_id,
	winner_rating_after, loser_rating_after, rating_change, starter_id`

func scanMatch(row interface{ Scan(...any) error }) (*domain.Match, error) {
	var (
		m                       domain.Match
		occurredAt              int64
		kind                    string
		winnerID, loserID       sql.NullString
		winnerAfter, loserAfter sql.NullInt64
		ratingChange            sql.NullInt64
		starterID               sql.NullString
	)
	if err := row.Scan(&m.ID, &m.LeaderboardID, &m.EventID, &occurredAt, &kind,
		&winnerID, &loserID, &winnerAfter, &loserAfter, &ratingChange, &starterID); err != nil {
		return nil, err
	}
	m.Timestamp = fromMillis(occurredAt)
	m.StarterID = starterID.String
	if domain.OutcomeKind(kind) == domain.OutcomeTwoParty {
		m.Outcome = domain.TwoPartyOutcome{
			WinnerID:          winnerID.String,
			LoserID:           loserID.String,
			WinnerRatingAfter: int(winnerAfter.Int64),
			LoserRatingAfter:  int(loserAfter.Int64),
			RatingChange:      int(ratingChange.Int64),
		}
	} else {
		m.Outcome = domain.MultiPartyOutcome{}
	}
	return &m, nil
}

func (l ledger) loadParticipants(ctx context.Context, m *domain.Match) error {
	if _, ok := m.Outcome.(domain.MultiPartyOutcome); !ok {
		return nil
	}
	rows, err := l.q.QueryContext(ctx, `SELECT match_id, player_id, team_key, finish_rank, start_rating, rating_change
		FROM match_participants WHERE match_id = ? ORDER BY finish_rank, team_key, player_id`, m.ID)
	if err != nil {
		return fmt.Errorf("loading participants: %w", err)
	}
	defer rows.Close()

	var parts []domain.MatchParticipant
	for rows.Next() {
		var p domain.MatchParticipant
		if err := rows.Scan(&p.MatchID, &p.PlayerID, &p.TeamKey, &p.Rank, &p.StartRating, &p.RatingChange); err != nil {
			return fmt.Errorf("scanning participant: %w", err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	m.Outcome = domain.MultiPartyOutcome{Participants: parts}
	return nil
}

func (l ledger) queryMatches(ctx context.Context, query string, args ...any) ([]domain.Match, error) {
	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	var out []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		out = append(out, *m)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// participants are loaded after the cursor is closed; the pool has a single connection
	for i := range out {
		if err := l.loadParticipants(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (l ledger) queryMatch(ctx context.Context, query string, args ...any) (*domain.Match, error) {
	m, err := scanMatch(l.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting match: %w", err)
	}
	if err := l.loadParticipants(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (l ledger) CreateMatch(ctx context.Context, m *domain.Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	var (
		winnerID, loserID, starterID  sql.NullString
		winnerAfter, loserAfter, diff sql.NullInt64
	)
	if m.StarterID != "" {
		starterID = sql.NullString{String: m.StarterID, Valid: true}
	}

	switch o := m.Outcome.(type) {
	case domain.TwoPartyOutcome:
		winnerID = sql.NullString{String: o.WinnerID, Valid: true}
		loserID = sql.NullString{String: o.LoserID, Valid: true}
		winnerAfter = sql.NullInt64{Int64: int64(o.WinnerRatingAfter), Valid: true}
		loserAfter = sql.NullInt64{Int64: int64(o.LoserRatingAfter), Valid: true}
		diff = sql.NullInt64{Int64: int64(o.RatingChange), Valid: true}
	case domain.MultiPartyOutcome:
	default:
		return fmt.Errorf("%w: match without outcome", domain.ErrInvalidMatch)
	}

	_, err := l.q.ExecContext(ctx, `INSERT INTO matches (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.LeaderboardID, m.EventID, toMillis(m.Timestamp), string(m.Outcome.Kind()),
		winnerID, loserID, winnerAfter, loserAfter, diff, starterID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate event or timestamp on leaderboard %s", domain.ErrInvalidMatch, m.LeaderboardID)
		}
		return fmt.Errorf("creating match: %w", err)
	}

	if o, ok := m.Outcome.(domain.MultiPartyOutcome); ok {
		for i := range o.Participants {
			p := &o.Participants[i]
			p.MatchID = m.ID
			if _, err := l.q.ExecContext(ctx, `INSERT INTO match_participants
				(match_id, player_id, team_key, finish_rank, start_rating, rating_change)
				VALUES (?, ?, ?, ?, ?, ?)`,
				p.MatchID, p.PlayerID, p.TeamKey, p.Rank, p.StartRating, p.RatingChange); err != nil {
				return fmt.Errorf("creating match participant: %w", err)
			}
		}
	}
	return nil
}

func (l ledger) LatestMatch(ctx context.Context, leaderboardID string) (*domain.Match, error) {
	return l.queryMatch(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE leaderboard_id = ? ORDER BY occurred_at DESC LIMIT 1`, leaderboardID)
}

func (l ledger) MatchesByEvent(ctx context.Context, eventID string) ([]domain.Match, error) {
	return l.queryMatches(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE event_id = ? ORDER BY leaderboard_id`, eventID)
}

func (l ledger) MatchNear(ctx context.Context, leaderboardID string, at time.Time, window time.Duration) (*domain.Match, error) {
	ms := toMillis(at)
	w := window.Milliseconds()
	return l.queryMatch(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE leaderboard_id = ? AND occurred_at BETWEEN ? AND ?
		ORDER BY abs(occurred_at - ?) ASC, occurred_at DESC LIMIT 1`,
		leaderboardID, ms-w, ms+w, ms)
}

func (l ledger) SetMatchStarter(ctx context.Context, matchID, starterID string) error {
	res, err := l.q.ExecContext(ctx, `UPDATE matches SET starter_id = ? WHERE id = ?`, starterID, matchID)
	if err != nil {
		return fmt.Errorf("setting match starter: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

func (l ledger) DeleteMatch(ctx context.Context, matchID string) error {
	if _, err := l.q.ExecContext(ctx, `DELETE FROM match_participants WHERE match_id = ?`, matchID); err != nil {
		return fmt.Errorf("deleting match participants: %w", err)
	}
	res, err := l.q.ExecContext(ctx, `DELETE FROM matches WHERE id = ?`, matchID)
	if err != nil {
		return fmt.Errorf("deleting match: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

func (l ledger) ListMatches(ctx context.Context, leaderboardID string, limit int) ([]domain.Match, error) {
	if limit <= 0 {
		limit = -1
	}
	return l.queryMatches(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE leaderboard_id = ? ORDER BY occurred_at DESC LIMIT ?`, leaderboardID, limit)
}

func (l ledger) ListPlayerMatches(ctx context.Context, leaderboardID, playerID string) ([]domain.Match, error) {
	return l.queryMatches(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE leaderboard_id = ?
		  AND (winner_id = ? OR loser_id = ?
		       OR id IN (SELECT match_id FROM match_participants WHERE player_id = ?))
		ORDER BY occurred_at ASC`, leaderboardID, playerID, playerID, playerID)
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Ledger = ledger{}
)
