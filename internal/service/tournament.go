package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/elo-ledger/internal/bracket"
	"github.com/elo-ledger/internal/domain"
)

// BuildTournament seeds a single-elimination bracket from the current season
// roster. Without explicit ids every player with at least one game enters.
func (s *LedgerService) BuildTournament(ctx context.Context, req domain.TournamentRequest) (*bracket.Bracket, error) {
	_, season, err := s.EnsureSeason(ctx, req.LeaderboardID)
	if err != nil {
		return nil, err
	}

	roster, err := s.store.ListPlayers(ctx, season.ID)
	if err != nil {
		return nil, fmt.Errorf("listing season players: %w", err)
	}
	byExternal := make(map[string]domain.Player, len(roster))
	for _, p := range roster {
		byExternal[p.ExternalID] = p
	}

	var entrants []bracket.Entrant
	if len(req.ExternalIDs) > 0 {
		seen := make(map[string]bool, len(req.ExternalIDs))
		for _, id := range req.ExternalIDs {
			id = strings.TrimSpace(id)
			p, ok := byExternal[id]
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			entrants = append(entrants, bracket.Entrant{ID: p.ExternalID, Name: p.Name, Rating: p.Rating})
		}
	} else {
		for _, p := range roster {
			if p.Games() > 0 {
				entrants = append(entrants, bracket.Entrant{ID: p.ExternalID, Name: p.Name, Rating: p.Rating})
			}
		}
	}

	if len(entrants) < 2 {
		return nil, fmt.Errorf("%w: %d eligible", domain.ErrNotEnoughPlayers, len(entrants))
	}

	b, err := bracket.Build(entrants, s.rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotEnoughPlayers, err)
	}
	s.logger.Info("tournament built",
		"leaderboard_id", season.ID,
		"name", b.Name,
		"players", b.PlayerCount,
		"byes", b.ByeCount,
	)
	return b, nil
}
