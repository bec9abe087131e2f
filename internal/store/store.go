// Package store defines the persistence contract of the ledger. The postgres
// and sqlite packages implement it.
package store

import (
	"context"
	"time"

	"github.com/elo-ledger/internal/domain"
)

// Ledger is the set of queries and mutations available both on a store and
// inside one of its transactions.
//
// Lookups return a wrapped domain not-found error when nothing matches.
// Create methods assign ID and CreatedAt when they are empty and report
// unique-key collisions as domain.ErrLeaderboardExists / domain.ErrPlayerExists.
type Ledger interface {
	GetLeaderboard(ctx context.Context, id string) (*domain.Leaderboard, error)
	// FindLeaderboard looks a leaderboard up by game type and season key ("" for all-time).
	FindLeaderboard(ctx context.Context, gameType, season string) (*domain.Leaderboard, error)
	// ListLeaderboards returns all-time leaderboards first, then seasons newest first.
	ListLeaderboards(ctx context.Context) ([]domain.Leaderboard, error)
	CreateLeaderboard(ctx context.Context, lb *domain.Leaderboard) error
	// DeleteGameSystem removes every leaderboard of a game type with its players and
	// matches and returns the number of leaderboards removed.
	DeleteGameSystem(ctx context.Context, gameType string) (int, error)
	// LockGameSystem serialises writers of one game system until the surrounding
	// transaction ends. Outside a transaction it is a plain read.
	LockGameSystem(ctx context.Context, gameType string) ([]domain.Leaderboard, error)

	GetPlayer(ctx context.Context, id string) (*domain.Player, error)
	GetPlayerByExternalID(ctx context.Context, leaderboardID, externalID string) (*domain.Player, error)
	// ListPlayers returns the roster ordered by rating, best first.
	ListPlayers(ctx context.Context, leaderboardID string) ([]domain.Player, error)
	CreatePlayer(ctx context.Context, p *domain.Player) error
	// UpdatePlayerStanding persists rating, wins and losses.
	UpdatePlayerStanding(ctx context.Context, p *domain.Player) error

	// CreateMatch persists the match and, for multi-party outcomes, its participant rows.
	CreateMatch(ctx context.Context, m *domain.Match) error
	// LatestMatch returns the most recent match by timestamp.
	LatestMatch(ctx context.Context, leaderboardID string) (*domain.Match, error)
	// MatchesByEvent returns every match sharing the event id across leaderboards.
	MatchesByEvent(ctx context.Context, eventID string) ([]domain.Match, error)
	// MatchNear returns the match closest to at within window.
	MatchNear(ctx context.Context, leaderboardID string, at time.Time, window time.Duration) (*domain.Match, error)
	SetMatchStarter(ctx context.Context, matchID, starterID string) error
	DeleteMatch(ctx context.Context, matchID string) error
	// ListMatches returns matches newest first; limit <= 0 returns all of them.
	ListMatches(ctx context.Context, leaderboardID string, limit int) ([]domain.Match, error)
	// ListPlayerMatches returns the player's matches oldest first.
	ListPlayerMatches(ctx context.Context, leaderboardID, playerID string) ([]domain.Match, error)
}

// Store is a Ledger that can run a function atomically. When fn returns an
// error every write made through tx is rolled back.
type Store interface {
	Ledger
	InTx(ctx context.Context, fn func(tx Ledger) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Millis truncates t to the millisecond resolution matches are stored with
func Millis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
