package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/store"
)

// CreateLeaderboard creates the all-time leaderboard of a new game system
func (s *LedgerService) CreateLeaderboard(ctx context.Context, req domain.CreateLeaderboardRequest) (*domain.Leaderboard, error) {
	lb := req.ToLeaderboard()
	if lb.Name == "" || lb.GameType == "" {
		return nil, fmt.Errorf("%w: name and game type are required", domain.ErrInvalidLeaderboard)
	}
	if !lb.ScoringType.Valid() {
		return nil, fmt.Errorf("%w: unknown scoring type %q", domain.ErrInvalidLeaderboard, lb.ScoringType)
	}
	lb.CreatedAt = s.now().UTC()

	if err := s.store.CreateLeaderboard(ctx, &lb); err != nil {
		return nil, err
	}
	s.logger.Info("leaderboard created", "leaderboard_id", lb.ID, "game_type", lb.GameType, "scoring_type", lb.ScoringType)
	return &lb, nil
}

// RegisterPlayer adds an identity to the all-time leaderboard and the current
// season, creating only the rows that are missing.
func (s *LedgerService) RegisterPlayer(ctx context.Context, req domain.RegisterPlayerRequest) (*domain.RegisterPlayerResult, error) {
	externalID, name := strings.TrimSpace(req.ExternalID), strings.TrimSpace(req.Name)
	if externalID == "" || name == "" {
		return nil, fmt.Errorf("%w: external id and name are required", domain.ErrInvalidRequest)
	}

	allTime, season, err := s.EnsureSeason(ctx, req.LeaderboardID)
	if err != nil {
		return nil, err
	}

	result := &domain.RegisterPlayerResult{}
	err = s.store.InTx(ctx, func(tx store.Ledger) error {
		if err := s.lockSystem(ctx, tx, allTime, season); err != nil {
			return err
		}
		p, created, err := s.getOrCreatePlayer(ctx, tx, allTime.ID, externalID, name)
		if err != nil {
			return err
		}
		result.AllTime, result.AllTimeCreated = *p, created

		p, created, err = s.getOrCreatePlayer(ctx, tx, season.ID, externalID, name)
		if err != nil {
			return err
		}
		result.Season, result.SeasonCreated = *p, created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AllTimeCreated || result.SeasonCreated {
		s.logger.Info("player registered",
			"external_id", externalID,
			"leaderboard_id", allTime.ID,
			"all_time_created", result.AllTimeCreated,
			"season_created", result.SeasonCreated,
		)
	}
	return result, nil
}

func (s *LedgerService) getOrCreatePlayer(ctx context.Context, tx store.Ledger, leaderboardID, externalID, name string) (*domain.Player, bool, error) {
	p, err := tx.GetPlayerByExternalID(ctx, leaderboardID, externalID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, domain.ErrPlayerNotFound) {
		return nil, false, err
	}
	p = &domain.Player{
		LeaderboardID: leaderboardID,
		ExternalID:    externalID,
		Name:          name,
		Rating:        s.defaultRating(),
		CreatedAt:     s.now().UTC(),
	}
	if err := tx.CreatePlayer(ctx, p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// DeleteGameSystem removes every leaderboard sharing the game type of
// leaderboardID, with their players and matches.
func (s *LedgerService) DeleteGameSystem(ctx context.Context, leaderboardID string) (int, error) {
	lb, err := s.store.GetLeaderboard(ctx, leaderboardID)
	if err != nil {
		return 0, err
	}

	var (
		boards  []domain.Leaderboard
		deleted int
	)
	err = s.store.InTx(ctx, func(tx store.Ledger) error {
		var err error
		boards, err = tx.LockGameSystem(ctx, lb.GameType)
		if err != nil {
			return fmt.Errorf("locking game system: %w", err)
		}
		deleted, err = tx.DeleteGameSystem(ctx, lb.GameType)
		return err
	})
	s.seasons.forget(lb.GameType)
	if err != nil {
		return 0, fmt.Errorf("deleting game system %s: %w", lb.GameType, err)
	}

	if s.cache != nil {
		ids := make([]string, len(boards))
		for i, b := range boards {
			ids[i] = b.ID
		}
		if err := s.cache.DeleteLeaderboards(ctx, ids...); err != nil {
			s.logger.Warn("ranking cache cleanup failed", "game_type", lb.GameType, "error", err)
		}
	}
	s.logger.Info("game system deleted", "game_type", lb.GameType, "leaderboards", deleted)
	return deleted, nil
}
