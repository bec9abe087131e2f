package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/elo-ledger/internal/config"
	"github.com/elo-ledger/internal/domain"
)

// RankingCache keeps a sorted set of active player ratings per leaderboard,
// plus a hash of player snapshots for rendering. A leaderboard counts as
// cached only once a full roster has been written by ReplaceLeaderboard.
type RankingCache struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRankingCache creates a new Redis ranking cache
func NewRankingCache(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*RankingCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRankingCacheWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewRankingCacheWithClient wraps an existing client
func NewRankingCacheWithClient(client redis.UniversalClient, prefix string, logger *slog.Logger) *RankingCache {
	if prefix == "" {
		prefix = "elo"
	}
	return &RankingCache{client: client, prefix: prefix, logger: logger}
}

// Close closes the Redis connection
func (c *RankingCache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis is reachable
func (c *RankingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// rankingKey returns the Redis key for a leaderboard's sorted set
func (c *RankingCache) rankingKey(leaderboardID string) string {
	return fmt.Sprintf("%s:leaderboard:%s:ratings", c.prefix, leaderboardID)
}

// playersKey returns the Redis key for the player snapshot hash
func (c *RankingCache) playersKey(leaderboardID string) string {
	return fmt.Sprintf("%s:leaderboard:%s:players", c.prefix, leaderboardID)
}

// warmKey marks a leaderboard whose full roster has been loaded
func (c *RankingCache) warmKey(leaderboardID string) string {
	return fmt.Sprintf("%s:leaderboard:%s:warm", c.prefix, leaderboardID)
}

// queuePlayers adds active players and removes inactive ones
func (c *RankingCache) queuePlayers(ctx context.Context, pipe redis.Pipeliner, leaderboardID string, players []domain.Player) error {
	zkey, hkey := c.rankingKey(leaderboardID), c.playersKey(leaderboardID)
	for _, p := range players {
		if p.Games() == 0 {
			pipe.ZRem(ctx, zkey, p.ID)
			pipe.HDel(ctx, hkey, p.ID)
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding player %s: %w", p.ID, err)
		}
		pipe.ZAdd(ctx, zkey, redis.Z{Score: float64(p.Rating), Member: p.ID})
		pipe.HSet(ctx, hkey, p.ID, data)
	}
	return nil
}

// StorePlayers writes updated player standings. Leaderboards that were never
// fully loaded are left alone so a partial roster is never served.
func (c *RankingCache) StorePlayers(ctx context.Context, leaderboardID string, players []domain.Player) error {
	if len(players) == 0 {
		return nil
	}
	marker := c.warmKey(leaderboardID)
	update := func(tx *redis.Tx) error {
		warm, err := tx.Exists(ctx, marker).Result()
		if err != nil {
			return err
		}
		if warm == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return c.queuePlayers(ctx, pipe, leaderboardID, players)
		})
		return err
	}

	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		err := c.client.Watch(ctx, update, marker)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("storing players: %w", err)
		}
		return nil
	}
	return fmt.Errorf("storing players: %w", redis.TxFailedErr)
}

// ReplaceLeaderboard atomically swaps the cached ranking for the given roster
func (c *RankingCache) ReplaceLeaderboard(ctx context.Context, leaderboardID string, players []domain.Player) error {
	marker := c.warmKey(leaderboardID)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.rankingKey(leaderboardID), c.playersKey(leaderboardID), marker)
	if err := c.queuePlayers(ctx, pipe, leaderboardID, players); err != nil {
		return err
	}
	pipe.Set(ctx, marker, "1", 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replacing leaderboard: %w", err)
	}
	return nil
}

// TopPlayers returns up to limit active players, best first. The boolean is
// false when the leaderboard has not been fully loaded.
func (c *RankingCache) TopPlayers(ctx context.Context, leaderboardID string, limit int) ([]domain.RankedPlayer, bool, error) {
	warm, err := c.client.Exists(ctx, c.warmKey(leaderboardID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("checking ranking: %w", err)
	}
	if warm == 0 {
		return nil, false, nil
	}

	zkey := c.rankingKey(leaderboardID)

	results, err := c.client.ZRevRangeWithScores(ctx, zkey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("getting top players: %w", err)
	}
	if len(results) == 0 {
		return []domain.RankedPlayer{}, true, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Member.(string)
	}
	raw, err := c.client.HMGet(ctx, c.playersKey(leaderboardID), ids...).Result()
	if err != nil {
		return nil, false, fmt.Errorf("getting player info: %w", err)
	}

	ranked := make([]domain.RankedPlayer, 0, len(results))
	for i, r := range results {
		var p domain.Player
		if s, ok := raw[i].(string); ok {
			if err := json.Unmarshal([]byte(s), &p); err != nil {
				c.logger.Warn("corrupt cached player", "leaderboard_id", leaderboardID, "player_id", ids[i], "error", err)
			}
		}
		p.ID = ids[i]
		p.LeaderboardID = leaderboardID
		p.Rating = int(r.Score)
		ranked = append(ranked, domain.RankedPlayer{Rank: int64(i + 1), Player: p})
	}
	return ranked, true, nil
}

// PlayerRank returns the 1-based rank of a player, or 0 when unranked
func (c *RankingCache) PlayerRank(ctx context.Context, leaderboardID, playerID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.rankingKey(leaderboardID), playerID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting player rank: %w", err)
	}
	return rank + 1, nil
}

// DeleteLeaderboards drops cached rankings
func (c *RankingCache) DeleteLeaderboards(ctx context.Context, leaderboardIDs ...string) error {
	if len(leaderboardIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, 3*len(leaderboardIDs))
	for _, id := range leaderboardIDs {
		keys = append(keys, c.rankingKey(id), c.playersKey(id), c.warmKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting leaderboards: %w", err)
	}
	return nil
}
