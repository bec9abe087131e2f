package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/elo-ledger/internal/config"
	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/metrics"
	"github.com/elo-ledger/internal/notify"
	"github.com/elo-ledger/internal/rating"
	"github.com/elo-ledger/internal/store"
)

// RankingCache is a read-through cache of active player rankings
type RankingCache interface {
	StorePlayers(ctx context.Context, leaderboardID string, players []domain.Player) error
	ReplaceLeaderboard(ctx context.Context, leaderboardID string, players []domain.Player) error
	TopPlayers(ctx context.Context, leaderboardID string, limit int) ([]domain.RankedPlayer, bool, error)
	DeleteLeaderboards(ctx context.Context, leaderboardIDs ...string) error
}

// LedgerService provides the rating and dual-ledger operations
type LedgerService struct {
	store        store.Store
	cache        RankingCache
	notifier     notify.Notifier
	originSource string
	metrics      *metrics.Metrics
	calc         rating.Calculator
	config       *config.LedgerConfig
	seasons      *seasonMemo
	now          func() time.Time
	rng          *lockedRand
	logger       *slog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(st store.Store, cfg *config.LedgerConfig, logger *slog.Logger) (*LedgerService, error) {
	rounding, err := rating.ParseRounding(cfg.Rounding)
	if err != nil {
		return nil, err
	}
	return &LedgerService{
		store:   st,
		metrics: metrics.NewNoop(),
		calc:    rating.Calculator{KFactor: cfg.KFactor, Rounding: rounding},
		config:  cfg,
		seasons: newSeasonMemo(),
		now:     time.Now,
		rng:     &lockedRand{r: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))},
		logger:  logger,
	}, nil
}

// SetCache enables the ranking cache
func (s *LedgerService) SetCache(c RankingCache) {
	s.cache = c
}

// SetNotifier sets the sink for ledger notifications. Match records whose
// source equals originSource are not announced back to that source.
func (s *LedgerService) SetNotifier(n notify.Notifier, originSource string) {
	s.notifier = n
	s.originSource = originSource
}

// SetMetrics replaces the no-op instruments
func (s *LedgerService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetClock overrides the wall clock
func (s *LedgerService) SetClock(now func() time.Time) {
	s.now = now
}

// SetRandom overrides the source used for tournament seeding
func (s *LedgerService) SetRandom(r *rand.Rand) {
	s.rng = &lockedRand{r: r}
}

// Ping checks the store
func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (s *LedgerService) defaultRating() int {
	if s.config.DefaultRating > 0 {
		return s.config.DefaultRating
	}
	return domain.DefaultRating
}

// resolveAllTime maps an optional leaderboard id to the all-time root of its
// game system. An empty id falls back to the configured default.
func (s *LedgerService) resolveAllTime(ctx context.Context, l store.Ledger, leaderboardID string) (*domain.Leaderboard, error) {
	if leaderboardID == "" {
		leaderboardID = s.config.DefaultLeaderboardID
	}
	if leaderboardID == "" {
		if s.config.DefaultGameType == "" {
			return nil, fmt.Errorf("%w: no leaderboard given and no default configured", domain.ErrLeaderboardNotFound)
		}
		return l.FindLeaderboard(ctx, s.config.DefaultGameType, "")
	}

	lb, err := l.GetLeaderboard(ctx, leaderboardID)
	if err != nil {
		return nil, err
	}
	if lb.IsAllTime() {
		return lb, nil
	}
	return l.FindLeaderboard(ctx, lb.GameType, "")
}

// ListLeaderboards returns all-time leaderboards first, then seasons newest first
func (s *LedgerService) ListLeaderboards(ctx context.Context) ([]domain.Leaderboard, error) {
	leaderboards, err := s.store.ListLeaderboards(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing leaderboards: %w", err)
	}
	if leaderboards == nil {
		leaderboards = []domain.Leaderboard{}
	}
	return leaderboards, nil
}

// GetLeaderboard returns a leaderboard with its ranked roster, recent matches
// and starter summary. An empty id selects the default all-time leaderboard.
func (s *LedgerService) GetLeaderboard(ctx context.Context, leaderboardID string) (*domain.LeaderboardView, error) {
	var (
		lb  *domain.Leaderboard
		err error
	)
	if leaderboardID == "" {
		lb, err = s.resolveAllTime(ctx, s.store, "")
	} else {
		lb, err = s.store.GetLeaderboard(ctx, leaderboardID)
	}
	if err != nil {
		return nil, err
	}

	players, err := s.store.ListPlayers(ctx, lb.ID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	matches, err := s.store.ListMatches(ctx, lb.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}

	view := &domain.LeaderboardView{
		Leaderboard:   *lb,
		Players:       make([]domain.RankedPlayer, len(players)),
		RecentMatches: matches,
		Starters:      summarizeStarters(matches),
	}
	for i, p := range players {
		view.Players[i] = domain.RankedPlayer{Rank: int64(i + 1), Player: p}
	}
	if recent := s.config.RecentMatches; recent > 0 && len(view.RecentMatches) > recent {
		view.RecentMatches = view.RecentMatches[:recent]
	}
	if view.RecentMatches == nil {
		view.RecentMatches = []domain.Match{}
	}
	return view, nil
}

// Rankings returns active players best first, from the cache when available
func (s *LedgerService) Rankings(ctx context.Context, leaderboardID string, limit int) ([]domain.RankedPlayer, error) {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if s.config.MaxLimit > 0 && limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}

	lb, err := s.store.GetLeaderboard(ctx, leaderboardID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		ranked, cached, err := s.cache.TopPlayers(ctx, lb.ID, limit)
		if err != nil {
			s.logger.Warn("ranking cache read failed", "leaderboard_id", lb.ID, "error", err)
		} else if cached {
			return ranked, nil
		}
	}

	players, err := s.store.ListPlayers(ctx, lb.ID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	ranked := make([]domain.RankedPlayer, 0, limit)
	for _, p := range players {
		if p.Games() == 0 {
			continue
		}
		if len(ranked) < limit {
			ranked = append(ranked, domain.RankedPlayer{Rank: int64(len(ranked) + 1), Player: p})
		}
	}

	if s.cache != nil {
		if err := s.cache.ReplaceLeaderboard(ctx, lb.ID, players); err != nil {
			s.logger.Warn("ranking cache warm failed", "leaderboard_id", lb.ID, "error", err)
		}
	}
	return ranked, nil
}

// SyncRankings rebuilds the ranking cache of every leaderboard from the store
func (s *LedgerService) SyncRankings(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	leaderboards, err := s.store.ListLeaderboards(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing leaderboards: %w", err)
	}

	synced := 0
	for _, lb := range leaderboards {
		players, err := s.store.ListPlayers(ctx, lb.ID)
		if err != nil {
			s.logger.Error("failed to load roster for sync", "leaderboard_id", lb.ID, "error", err)
			continue
		}
		if err := s.cache.ReplaceLeaderboard(ctx, lb.ID, players); err != nil {
			s.logger.Error("failed to sync leaderboard", "leaderboard_id", lb.ID, "error", err)
			continue
		}
		synced++
	}
	return synced, nil
}

// refreshCache pushes new standings to the ranking cache; failures only log
func (s *LedgerService) refreshCache(ctx context.Context, results ...domain.LedgerResult) {
	if s.cache == nil {
		return
	}
	for _, r := range results {
		players := make([]domain.Player, len(r.Participants))
		for i, p := range r.Participants {
			players[i] = p.Player
		}
		if err := s.cache.StorePlayers(ctx, r.Leaderboard.ID, players); err != nil {
			s.logger.Warn("ranking cache update failed", "leaderboard_id", r.Leaderboard.ID, "error", err)
		}
	}
}

// announce delivers a notification without letting failures reach the caller
func (s *LedgerService) announce(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		s.logger.Warn("notification not delivered", "type", n.Type, "event_id", n.EventID, "error", err)
	}
}

func summarizeStarters(matches []domain.Match) domain.StarterSummary {
	var sum domain.StarterSummary
	for _, m := range matches {
		if m.StarterID == "" {
			continue
		}
		sum.MatchesWithStarter++
		if starterWon(m) {
			sum.StarterWins++
		}
	}
	sum.StarterWinRate = percent(sum.StarterWins, sum.MatchesWithStarter)
	return sum
}

func starterWon(m domain.Match) bool {
	switch o := m.Outcome.(type) {
	case domain.TwoPartyOutcome:
		return o.WinnerID == m.StarterID
	case domain.MultiPartyOutcome:
		for _, p := range o.Participants {
			if p.PlayerID == m.StarterID {
				return p.Rank == 1
			}
		}
	}
	return false
}
