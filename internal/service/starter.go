package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/store"
)

// SetMatchStarter records which player went first in an already recorded
// match, on both ledgers. The match is found by event id, or else by the
// all-time match closest to the request timestamp.
func (s *LedgerService) SetMatchStarter(ctx context.Context, req domain.StarterRequest) (result *domain.StarterResult, err error) {
	start := time.Now()
	defer func() { s.metrics.Observe("set_starter", start, err) }()

	starter := strings.TrimSpace(req.StarterExternalID)
	if starter == "" {
		return nil, fmt.Errorf("%w: starter is required", domain.ErrInvalidRequest)
	}
	if req.EventID == "" && req.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: an event id or a timestamp is required", domain.ErrInvalidRequest)
	}

	allTime, err := s.resolveAllTime(ctx, s.store, req.LeaderboardID)
	if err != nil {
		return nil, err
	}
	if !allTime.TrackStarter {
		return nil, fmt.Errorf("%w: %s", domain.ErrStarterNotTracked, allTime.Name)
	}

	err = s.store.InTx(ctx, func(tx store.Ledger) error {
		boards, err := tx.LockGameSystem(ctx, allTime.GameType)
		if err != nil {
			return fmt.Errorf("locking game system %s: %w", allTime.GameType, err)
		}
		inSystem := make(map[string]bool, len(boards))
		for _, b := range boards {
			inSystem[b.ID] = true
		}

		eventID := req.EventID
		if eventID == "" {
			anchor, err := tx.MatchNear(ctx, allTime.ID, store.Millis(req.Timestamp), s.config.StarterWindow)
			if err != nil {
				return fmt.Errorf("no match near %s: %w", req.Timestamp.UTC().Format(time.RFC3339), err)
			}
			eventID = anchor.EventID
		}

		events, err := tx.MatchesByEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("loading event %s: %w", eventID, err)
		}
		matches := make([]domain.Match, 0, 2)
		for _, m := range events {
			if inSystem[m.LeaderboardID] {
				matches = append(matches, m)
			}
		}
		if len(matches) == 0 {
			return fmt.Errorf("%w: event %s", domain.ErrMatchNotFound, eventID)
		}
		if len(matches) != 2 {
			return fmt.Errorf("%w: event %s has %d matches", domain.ErrLedgerDiverged, eventID, len(matches))
		}

		for i := range matches {
			m := &matches[i]
			p, err := tx.GetPlayerByExternalID(ctx, m.LeaderboardID, starter)
			if err != nil {
				return fmt.Errorf("%w: %s is not on the leaderboard", domain.ErrInvalidRequest, starter)
			}
			if !m.Involves(p.ID) {
				return fmt.Errorf("%w: %s did not play in this match", domain.ErrInvalidRequest, starter)
			}
			if m.StarterID == p.ID {
				continue
			}
			if m.StarterID != "" {
				return domain.ErrStarterAlreadySet
			}
			if err := tx.SetMatchStarter(ctx, m.ID, p.ID); err != nil {
				return err
			}
			m.StarterID = p.ID
		}

		result = &domain.StarterResult{EventID: eventID, Matches: matches}
		return nil
	})
	if err != nil {
		if domain.IsConsistencyError(err) {
			s.metrics.LedgerDivergence.WithLabelValues(allTime.GameType, "set_starter").Inc()
			s.logger.Error("ledgers diverged, refusing to set starter",
				"alarm", "ledger_divergence",
				"leaderboard_id", allTime.ID,
				"error", err,
			)
		}
		return nil, err
	}

	s.metrics.StartersSet.WithLabelValues(allTime.GameType).Inc()
	s.logger.Info("match starter set", "event_id", result.EventID, "leaderboard_id", allTime.ID, "starter", starter)

	s.announce(ctx, domain.Notification{
		Type:          domain.NotificationStarterSet,
		LeaderboardID: allTime.ID,
		GameType:      allTime.GameType,
		Target:        allTime.NotifyTarget,
		EventID:       result.EventID,
		Timestamp:     s.now().UTC(),
		Data:          result,
	})
	return result, nil
}
