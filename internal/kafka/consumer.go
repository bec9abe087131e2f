package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/elo-ledger/internal/config"
	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/metrics"
)

// Message results counted in the kafka_messages_total metric
const (
	resultRecorded = "recorded"
	resultInvalid  = "invalid"
	resultFailed   = "failed"
)

// MatchRecorder records match results
type MatchRecorder interface {
	RecordMatch(ctx context.Context, req domain.MatchRequest) (*domain.MatchResult, error)
}

// processor turns one Kafka message into one recorded match
type processor struct {
	config   *config.KafkaConfig
	recorder MatchRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// handle decodes and records a message. Transient failures are retried;
// malformed or rejected results are logged and skipped.
func (p *processor) handle(ctx context.Context, msg *sarama.ConsumerMessage) string {
	var req domain.MatchRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		p.logger.Warn("failed to unmarshal match message",
			"error", err,
			"offset", msg.Offset,
			"partition", msg.Partition,
		)
		p.metrics.KafkaMessages.WithLabelValues(resultInvalid).Inc()
		return resultInvalid
	}
	if req.Source == "" {
		req.Source = "kafka"
	}

	attempts := max(p.config.RetryAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var res *domain.MatchResult
		res, err = p.recorder.RecordMatch(ctx, req)
		if err == nil {
			p.logger.Debug("match recorded from kafka", "event_id", res.EventID, "offset", msg.Offset)
			p.metrics.KafkaMessages.WithLabelValues(resultRecorded).Inc()
			return resultRecorded
		}
		if permanent(err) {
			break
		}
		if attempt == attempts || sleep(ctx, p.config.RetryDelay) != nil {
			break
		}
	}

	result := resultFailed
	if permanent(err) {
		result = resultInvalid
	}
	p.logger.Warn("match message not recorded",
		"error", err,
		"result", result,
		"offset", msg.Offset,
		"partition", msg.Partition,
	)
	p.metrics.KafkaMessages.WithLabelValues(result).Inc()
	return result
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// permanent reports errors that a retry cannot fix
func permanent(err error) bool {
	return domain.IsValidationError(err) ||
		domain.IsNotFoundError(err) ||
		domain.IsConflictError(err) ||
		domain.IsConsistencyError(err)
}

// Consumer consumes match events from Kafka and records them
type Consumer struct {
	processor
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan struct{}
	readyOnce     sync.Once
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, recorder MatchRecorder, m *metrics.Metrics, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		processor: processor{
			config:   cfg,
			recorder: recorder,
			metrics:  m,
			logger:   logger,
		},
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan struct{}),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.MatchTopic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				processor: &c.processor,
				onSetup:   c.markReady,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.MatchTopic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	// Wait until the first session is set up
	select {
	case <-c.ready:
		c.logger.Info("Kafka consumer ready")
	case <-c.ctx.Done():
		return c.ctx.Err()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// markReady signals Start once the first session is set up
func (c *Consumer) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	processor *processor
	onSetup   func()
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	if h.onSetup != nil {
		h.onSetup()
	}
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim records the messages of one partition one at a time, in order
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			ctx, cancel := context.WithTimeout(session.Context(), 30*time.Second)
			h.processor.handle(ctx, message)
			cancel()

			session.MarkMessage(message, "")
		}
	}
}
