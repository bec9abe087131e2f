package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elo-ledger/internal/config"
	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/store"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository provides PostgreSQL-based ledger storage
type Repository struct {
	ledger
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// ledger implements store.Ledger on a pool or a transaction
type ledger struct {
	q querier
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	return Connect(ctx, cfg.ConnectionString(), cfg, logger)
}

// Connect opens a pool for an explicit connection string. Pool sizing is taken
// from cfg when it is not nil.
func Connect(ctx context.Context, connString string, cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	if cfg != nil {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
		poolConfig.MinConns = int32(cfg.MinConnections)
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		ledger: ledger{q: pool},
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Ping checks the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// InTx runs fn in a transaction that is committed when fn returns nil
func (r *Repository) InTx(ctx context.Context, fn func(tx store.Ledger) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Error("rollback failed", "error", err)
		}
	}()

	if err := fn(ledger{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS leaderboards (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			game_type VARCHAR(64) NOT NULL,
			scoring_type VARCHAR(16) NOT NULL DEFAULT '1v1',
			track_starter BOOLEAN NOT NULL DEFAULT FALSE,
			notify_target VARCHAR(255) NOT NULL DEFAULT '',
			season VARCHAR(7) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (game_type, season)
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			leaderboard_id VARCHAR(64) NOT NULL REFERENCES leaderboards(id) ON DELETE CASCADE,
			external_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			rating INT NOT NULL DEFAULT 1000,
			wins INT NOT NULL DEFAULT 0,
			losses INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (leaderboard_id, external_id)
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id VARCHAR(64) PRIMARY KEY,
			leaderboard_id VARCHAR(64) NOT NULL REFERENCES leaderboards(id) ON DELETE CASCADE,
			event_id VARCHAR(64) NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			kind VARCHAR(16) NOT NULL CHECK (kind IN ('two_party', 'multi_party')),
			winner_id VARCHAR(64) REFERENCES players(id),
			loser_id VARCHAR(64) REFERENCES players(id),
			winner_rating_after INT,
			loser_rating_after INT,
			rating_change INT,
			starter_id VARCHAR(64) REFERENCES players(id),
			UNIQUE (leaderboard_id, event_id),
			UNIQUE (leaderboard_id, occurred_at),
			CHECK ((kind = 'two_party') = (winner_id IS NOT NULL AND loser_id IS NOT NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS match_participants (
			match_id VARCHAR(64) NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			player_id VARCHAR(64) NOT NULL REFERENCES players(id),
			team_key VARCHAR(64) NOT NULL,
			finish_rank INT NOT NULL,
			start_rating INT NOT NULL,
			rating_change INT NOT NULL,
			PRIMARY KEY (match_id, player_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_players_rating ON players(leaderboard_id, rating DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_event ON matches(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_recent ON matches(leaderboard_id, occurred_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_match_participants_player ON match_participants(player_id)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const leaderboardColumns = `id, name, game_type, scoring_type, track_starter, notify_target, season, created_at`

func scanLeaderboard(row pgx.Row) (*domain.Leaderboard, error) {
	var (
		lb      domain.Leaderboard
		scoring string
	)
	if err := row.Scan(&lb.ID, &lb.Name, &lb.GameType, &scoring, &lb.TrackStarter,
		&lb.NotifyTarget, &lb.Season, &lb.CreatedAt); err != nil {
		return nil, err
	}
	lb.ScoringType = domain.ScoringType(scoring)
	lb.CreatedAt = lb.CreatedAt.UTC()
	return &lb, nil
}

func (l ledger) queryLeaderboards(ctx context.Context, query string, args ...any) ([]domain.Leaderboard, error) {
	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboards: %w", err)
	}
	defer rows.Close()

	var leaderboards []domain.Leaderboard
	for rows.Next() {
		lb, err := scanLeaderboard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning leaderboard: %w", err)
		}
		leaderboards = append(leaderboards, *lb)
	}
	return leaderboards, rows.Err()
}

// GetLeaderboard retrieves a leaderboard by ID
func (l ledger) GetLeaderboard(ctx context.Context, id string) (*domain.Leaderboard, error) {
	lb, err := scanLeaderboard(l.q.QueryRow(ctx,
		`SELECT `+leaderboardColumns+` FROM leaderboards WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLeaderboardNotFound, id)
		}
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	return lb, nil
}

func (l ledger) FindLeaderboard(ctx context.Context, gameType, season string) (*domain.Leaderboard, error) {
	lb, err := scanLeaderboard(l.q.QueryRow(ctx,
		`SELECT `+leaderboardColumns+` FROM leaderboards WHERE game_type = $1 AND season = $2`,
		gameType, season))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: game type %q season %q", domain.ErrLeaderboardNotFound, gameType, season)
		}
		return nil, fmt.Errorf("finding leaderboard: %w", err)
	}
	return lb, nil
}

// ListLeaderboards returns all-time leaderboards first, then seasons newest first
func (l ledger) ListLeaderboards(ctx context.Context) ([]domain.Leaderboard, error) {
	return l.queryLeaderboards(ctx, `SELECT `+leaderboardColumns+` FROM leaderboards
		ORDER BY (season <> '') ASC, season DESC, name ASC`)
}

// CreateLeaderboard creates a new leaderboard
func (l ledger) CreateLeaderboard(ctx context.Context, lb *domain.Leaderboard) error {
	if lb.ID == "" {
		lb.ID = uuid.NewString()
	}
	if lb.CreatedAt.IsZero() {
		lb.CreatedAt = time.Now().UTC()
	}
	_, err := l.q.Exec(ctx, `INSERT INTO leaderboards (`+leaderboardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		lb.ID, lb.Name, lb.GameType, string(lb.ScoringType), lb.TrackStarter,
		lb.NotifyTarget, lb.Season, lb.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: game type %q season %q", domain.ErrLeaderboardExists, lb.GameType, lb.Season)
		}
		return fmt.Errorf("creating leaderboard: %w", err)
	}
	return nil
}

// DeleteGameSystem removes matches, players and leaderboards of a game type, in that order
func (l ledger) DeleteGameSystem(ctx context.Context, gameType string) (int, error) {
	scope := `SELECT id FROM leaderboards WHERE game_type = $1`
	if _, err := l.q.Exec(ctx, `DELETE FROM matches WHERE leaderboard_id IN (`+scope+`)`, gameType); err != nil {
		return 0, fmt.Errorf("deleting matches: %w", err)
	}
	if _, err := l.q.Exec(ctx, `DELETE FROM players WHERE leaderboard_id IN (`+scope+`)`, gameType); err != nil {
		return 0, fmt.Errorf("deleting players: %w", err)
	}
	tag, err := l.q.Exec(ctx, `DELETE FROM leaderboards WHERE game_type = $1`, gameType)
	if err != nil {
		return 0, fmt.Errorf("deleting leaderboards: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// LockGameSystem takes row locks on every leaderboard of the game type in id
// order, so concurrent writers of one game system queue behind each other.
func (l ledger) LockGameSystem(ctx context.Context, gameType string) ([]domain.Leaderboard, error) {
	return l.queryLeaderboards(ctx, `SELECT `+leaderboardColumns+` FROM leaderboards
		WHERE game_type = $1 ORDER BY id FOR UPDATE`, gameType)
}

const playerColumns = `id, leaderboard_id, external_id, name, rating, wins, losses, created_at, updated_at`

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	if err := row.Scan(&p.ID, &p.LeaderboardID, &p.ExternalID, &p.Name, &p.Rating,
		&p.Wins, &p.Losses, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (l ledger) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	p, err := scanPlayer(l.q.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, id)
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return p, nil
}

func (l ledger) GetPlayerByExternalID(ctx context.Context, leaderboardID, externalID string) (*domain.Player, error) {
	p, err := scanPlayer(l.q.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE leaderboard_id = $1 AND external_id = $2`,
		leaderboardID, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, externalID)
		}
		return nil, fmt.Errorf("getting player: %w", err)
	}
	return p, nil
}

func (l ledger) ListPlayers(ctx context.Context, leaderboardID string) ([]domain.Player, error) {
	rows, err := l.q.Query(ctx, `SELECT `+playerColumns+` FROM players
		WHERE leaderboard_id = $1 ORDER BY rating DESC, wins DESC, name ASC`, leaderboardID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	var players []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, *p)
	}
	return players, rows.Err()
}

func (l ledger) CreatePlayer(ctx context.Context, p *domain.Player) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	_, err := l.q.Exec(ctx, `INSERT INTO players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.LeaderboardID, p.ExternalID, p.Name, p.Rating, p.Wins, p.Losses, p.CreatedAt, p.UpdatedAt)
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
	tag, err := l.q.Exec(ctx, `UPDATE players SET rating = $1, wins = $2, losses = $3, updated_at = $4
		WHERE id = $5`, p.Rating, p.Wins, p.Losses, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("updating player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPlayerNotFound, p.ID)
	}
	return nil
}

const matchColumns = `id, leaderboard_id, event_id, occurred_at, kind, winner_id, loser_id,
	winner_rating_after, loser_rating_after, rating_change, starter_id`

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var (
		m                       domain.Match
		kind                    string
		winnerID, loserID       *string
		winnerAfter, loserAfter *int
		ratingChange            *int
		starterID               *string
	)
	if err := row.Scan(&m.ID, &m.LeaderboardID, &m.EventID, &m.Timestamp, &kind,
		&winnerID, &loserID, &winnerAfter, &loserAfter, &ratingChange, &starterID); err != nil {
		return nil, err
	}
	m.Timestamp = m.Timestamp.UTC()
	if starterID != nil {
		m.StarterID = *starterID
	}
	if domain.OutcomeKind(kind) == domain.OutcomeTwoParty && winnerID != nil && loserID != nil {
		o := domain.TwoPartyOutcome{WinnerID: *winnerID, LoserID: *loserID}
		if winnerAfter != nil {
			o.WinnerRatingAfter = *winnerAfter
		}
		if loserAfter != nil {
			o.LoserRatingAfter = *loserAfter
		}
		if ratingChange != nil {
			o.RatingChange = *ratingChange
		}
		m.Outcome = o
	} else {
		m.Outcome = domain.MultiPartyOutcome{}
	}
	return &m, nil
}

func (l ledger) loadParticipants(ctx context.Context, m *domain.Match) error {
	if _, ok := m.Outcome.(domain.MultiPartyOutcome); !ok {
		return nil
	}
	rows, err := l.q.Query(ctx, `SELECT match_id, player_id, team_key, finish_rank, start_rating, rating_change
		FROM match_participants WHERE match_id = $1 ORDER BY finish_rank, team_key, player_id`, m.ID)
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
	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, *m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// a transaction connection cannot run a second query while rows are open
	for i := range matches {
		if err := l.loadParticipants(ctx, &matches[i]); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

func (l ledger) queryMatch(ctx context.Context, query string, args ...any) (*domain.Match, error) {
	m, err := scanMatch(l.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}
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
		winnerID, loserID, starterID  *string
		winnerAfter, loserAfter, diff *int
	)
	if m.StarterID != "" {
		starterID = &m.StarterID
	}

	switch o := m.Outcome.(type) {
	case domain.TwoPartyOutcome:
		winnerID, loserID = &o.WinnerID, &o.LoserID
		winnerAfter, loserAfter, diff = &o.WinnerRatingAfter, &o.LoserRatingAfter, &o.RatingChange
	case domain.MultiPartyOutcome:
	default:
		return fmt.Errorf("%w: match without outcome", domain.ErrInvalidMatch)
	}

	_, err := l.q.Exec(ctx, `INSERT INTO matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.LeaderboardID, m.EventID, m.Timestamp, string(m.Outcome.Kind()),
		winnerID, loserID, winnerAfter, loserAfter, diff, starterID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate event or timestamp on leaderboard %s", domain.ErrInvalidMatch, m.LeaderboardID)
		}
		return fmt.Errorf("creating match: %w", err)
	}

	o, ok := m.Outcome.(domain.MultiPartyOutcome)
	if !ok || len(o.Participants) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range o.Participants {
		p := &o.Participants[i]
		p.MatchID = m.ID
		batch.Queue(`INSERT INTO match_participants
			(match_id, player_id, team_key, finish_rank, start_rating, rating_change)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.MatchID, p.PlayerID, p.TeamKey, p.Rank, p.StartRating, p.RatingChange)
	}
	br := l.q.SendBatch(ctx, batch)
	defer br.Close()
	for range o.Participants {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("creating match participant: %w", err)
		}
	}
	return nil
}

func (l ledger) LatestMatch(ctx context.Context, leaderboardID string) (*domain.Match, error) {
	return l.queryMatch(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE leaderboard_id = $1 ORDER BY occurred_at DESC LIMIT 1`, leaderboardID)
}

func (l ledger) MatchesByEvent(ctx context.Context, eventID string) ([]domain.Match, error) {
	return l.queryMatches(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE event_id = $1 ORDER BY leaderboard_id`, eventID)
}

func (l ledger) MatchNear(ctx context.Context, leaderboardID string, at time.Time, window time.Duration) (*domain.Match, error) {
	at = store.Millis(at)
	return l.queryMatch(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE leaderboard_id = $1 AND occurred_at BETWEEN $2 AND $3
		ORDER BY abs(extract(epoch FROM occurred_at - $4::timestamptz)) ASC, occurred_at DESC
		LIMIT 1`, leaderboardID, at.Add(-window), at.Add(window), at)
}

func (l ledger) SetMatchStarter(ctx context.Context, matchID, starterID string) error {
	tag, err := l.q.Exec(ctx, `UPDATE matches SET starter_id = $1 WHERE id = $2`, starterID, matchID)
	if err != nil {
		return fmt.Errorf("setting match starter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

func (l ledger) DeleteMatch(ctx context.Context, matchID string) error {
	if _, err := l.q.Exec(ctx, `DELETE FROM match_participants WHERE match_id = $1`, matchID); err != nil {
		return fmt.Errorf("deleting match participants: %w", err)
	}
	tag, err := l.q.Exec(ctx, `DELETE FROM matches WHERE id = $1`, matchID)
	if err != nil {
		return fmt.Errorf("deleting match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

func (l ledger) ListMatches(ctx context.Context, leaderboardID string, limit int) ([]domain.Match, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	return l.queryMatches(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE leaderboard_id = $1 ORDER BY occurred_at DESC LIMIT $2`, leaderboardID, lim)
}

func (l ledger) ListPlayerMatches(ctx context.Context, leaderboardID, playerID string) ([]domain.Match, error) {
	return l.queryMatches(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE leaderboard_id = $1
		  AND (winner_id = $2 OR loser_id = $2
		       OR id IN (SELECT match_id FROM match_participants WHERE player_id = $2))
		ORDER BY occurred_at ASC`, leaderboardID, playerID)
}

var (
	_ store.Store  = (*Repository)(nil)
	_ store.Ledger = ledger{}
)
