package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/store"
)

type seasonKey struct {
	gameType string
	month    string
}

// seasonMemo remembers the season leaderboard of each game system for the
// current month. Entries for any other month are dropped on lookup.
type seasonMemo struct {
	mu      sync.Mutex
	entries map[seasonKey]domain.Leaderboard
}

func newSeasonMemo() *seasonMemo {
	return &seasonMemo{entries: make(map[seasonKey]domain.Leaderboard)}
}

func (m *seasonMemo) get(gameType, month string) (domain.Leaderboard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.month != month {
			delete(m.entries, k)
		}
	}
	lb, ok := m.entries[seasonKey{gameType, month}]
	return lb, ok
}

func (m *seasonMemo) put(lb domain.Leaderboard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[seasonKey{lb.GameType, lb.Season}] = lb
}

func (m *seasonMemo) forget(gameType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if k.gameType == gameType {
			delete(m.entries, k)
		}
	}
}

// EnsureSeason returns the all-time leaderboard for leaderboardID (which may
// name a season) together with the season of the current month, creating and
// seeding the season on first use.
func (s *LedgerService) EnsureSeason(ctx context.Context, leaderboardID string) (*domain.Leaderboard, *domain.Leaderboard, error) {
	allTime, err := s.resolveAllTime(ctx, s.store, leaderboardID)
	if err != nil {
		return nil, nil, err
	}

	month := domain.SeasonKey(s.now())
	if lb, ok := s.seasons.get(allTime.GameType, month); ok {
		return allTime, &lb, nil
	}

	season, err := s.store.FindLeaderboard(ctx, allTime.GameType, month)
	if errors.Is(err, domain.ErrLeaderboardNotFound) {
		season, err = s.createSeason(ctx, allTime, month)
		if errors.Is(err, domain.ErrLeaderboardExists) {
			// another writer created it first
			season, err = s.store.FindLeaderboard(ctx, allTime.GameType, month)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolving season %s: %w", month, err)
	}

	s.seasons.put(*season)
	return allTime, season, nil
}

// createSeason creates the season leaderboard and copies the all-time roster
// into it at the default rating, in one transaction.
func (s *LedgerService) createSeason(ctx context.Context, allTime *domain.Leaderboard, month string) (*domain.Leaderboard, error) {
	season := &domain.Leaderboard{
		Name:         domain.SeasonName(allTime.Name, month),
		GameType:     allTime.GameType,
		ScoringType:  allTime.ScoringType,
		TrackStarter: allTime.TrackStarter,
		NotifyTarget: allTime.NotifyTarget,
		Season:       month,
		CreatedAt:    s.now().UTC(),
	}

	var seeded int
	err := s.store.InTx(ctx, func(tx store.Ledger) error {
		if err := tx.CreateLeaderboard(ctx, season); err != nil {
			return err
		}
		roster, err := tx.ListPlayers(ctx, allTime.ID)
		if err != nil {
			return fmt.Errorf("loading all-time roster: %w", err)
		}
		for _, p := range roster {
			sp := domain.Player{
				LeaderboardID: season.ID,
				ExternalID:    p.ExternalID,
				Name:          p.Name,
				Rating:        s.defaultRating(),
				CreatedAt:     s.now().UTC(),
			}
			if err := tx.CreatePlayer(ctx, &sp); err != nil {
				return fmt.Errorf("seeding season player %s: %w", p.ExternalID, err)
			}
		}
		seeded = len(roster)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SeasonsCreated.WithLabelValues(allTime.GameType).Inc()
	s.logger.Info("season created",
		"leaderboard_id", season.ID,
		"all_time_id", allTime.ID,
		"season", month,
		"players", seeded,
	)
	return season, nil
}
