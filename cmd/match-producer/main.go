package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/kafka"
)

// Publishes simulated match results to the match topic. The players must
// already be registered with the ledger, otherwise the consumer drops the
// messages as invalid.
func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "elo-matches", "Kafka topic")
	leaderboardID := flag.String("leaderboard", "", "Leaderboard ID (empty = default leaderboard)")
	players := flag.String("players", "", "Registered player external IDs (comma-separated)")
	rate := flag.Int("rate", 1, "Matches per second")
	ffaPercent := flag.Int("ffa", 0, "Percentage of matches recorded as free-for-all")
	count := flag.Int("count", 0, "Number of matches to send (0 = until duration or Ctrl+C)")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ids := splitList(*players)
	if len(ids) < 2 {
		logger.Error("at least two players are required", "players", *players)
		os.Exit(1)
	}
	if *rate <= 0 {
		*rate = 1
	}

	producer, err := kafka.NewProducer(splitList(*brokers), *topic, logger)
	if err != nil {
		logger.Error("failed to create producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	logger.Info("publishing matches",
		"brokers", *brokers,
		"topic", *topic,
		"players", len(ids),
		"rate", *rate,
	)

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	var sent, failed int
	for *count == 0 || sent+failed < *count {
		select {
		case <-ctx.Done():
			logger.Info("producer stopped", "sent", sent, "failed", failed)
			return
		case <-ticker.C:
		}

		req := randomMatch(ids, *ffaPercent)
		req.LeaderboardID = *leaderboardID
		req.Source = "match-producer"

		key := *leaderboardID
		if key == "" {
			key = "default"
		}
		if err := producer.Publish(ctx, key, req); err != nil {
			failed++
			logger.Warn("failed to publish match", "error", err)
			continue
		}
		sent++
		if sent%100 == 0 {
			logger.Info("progress", "sent", sent, "failed", failed)
		}
	}
	logger.Info("producer finished", "sent", sent, "failed", failed)
}

func randomMatch(ids []string, ffaPercent int) domain.MatchRequest {
	order := rand.Perm(len(ids))
	if len(ids) > 2 && rand.IntN(100) < ffaPercent {
		n := 3 + rand.IntN(len(ids)-2)
		if n > 8 {
			n = 8
		}
		parts := make([]domain.ParticipantInput, n)
		for i := range parts {
			parts[i] = domain.ParticipantInput{ExternalID: ids[order[i]], Rank: i + 1}
		}
		return domain.MatchRequest{Participants: parts}
	}
	return domain.MatchRequest{WinnerID: ids[order[0]], LoserID: ids[order[1]]}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -players alice,bob,carol [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
}
