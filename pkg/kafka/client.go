// Package kafka provides the producer and consumer for document tasks.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"biobyia-go/internal/config"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxProcessAttempts bounds how often a failing task is redelivered before
// its offset is committed and the task dropped.
const maxProcessAttempts = 3

// TaskProcessor is implemented by any service that can process a document
// task. It decouples the consumer from the concrete pipeline.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.DocumentTask) error
}

// Producer publishes document tasks.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the configured topic.
func NewProducer(cfg config.KafkaConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka producer initialized")
	return &Producer{writer: writer}
}

// ProduceDocumentTask publishes one task, keyed by article id so retries for
// the same document land in the same partition.
func (p *Producer) ProduceDocumentTask(ctx context.Context, task tasks.DocumentTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal document task: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ArticleID),
		Value: taskBytes,
	})
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads document tasks and tracks per-task failure counts in Redis.
type Consumer struct {
	reader      *kafka.Reader
	redisClient *redis.Client
}

// NewConsumer creates a Kafka consumer in the biobyia consumer group.
func NewConsumer(cfg config.KafkaConfig, redisClient *redis.Client) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "biobyia-consumer",
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, redisClient: redisClient}
}

// Run consumes tasks until ctx is cancelled. Offsets are committed only
// after a task succeeds or exhausts its attempts, so an uncommitted failure
// is redelivered by Kafka.
func (c *Consumer) Run(ctx context.Context, processor TaskProcessor) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("[Kafka] failed to close consumer: %v", err)
		}
	}()

	log.Infof("[Kafka] consumer started, topic: %s", c.reader.Config().Topic)
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("[Kafka] consumer stopping")
				return nil
			}
			return fmt.Errorf("failed to fetch kafka message: %w", err)
		}
		log.Infof("[Kafka] received message, offset: %d", m.Offset)

		var task tasks.DocumentTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("[Kafka] cannot decode message: %v, value: %s", err, string(m.Value))
			// Malformed messages are committed immediately so they never
			// block the queue.
			c.commit(ctx, m)
			continue
		}

		log.Infof("[Kafka] processing document task, article: %s, object: %s", task.ArticleID, task.ObjectName)
		if err := processor.Process(ctx, task); err != nil {
			log.Errorf("[Kafka] document task failed, article: %s, error: %v", task.ArticleID, err)
			c.handleFailure(ctx, m, task)
			continue
		}

		log.Infof("[Kafka] document task succeeded, article: %s", task.ArticleID)
		c.clearAttempts(ctx, task)
		c.commit(ctx, m)
	}
}

// handleFailure counts the failure in Redis. The offset is committed once
// the attempt limit is reached; below the limit the message stays
// uncommitted and Kafka redelivers it.
func (c *Consumer) handleFailure(ctx context.Context, m kafka.Message, task tasks.DocumentTask) {
	attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.ArticleID)
	attempts, err := c.redisClient.Incr(ctx, attemptsKey).Result()
	if err != nil {
		// Without the counter the safe choice is to leave the offset alone
		// and let Kafka retry.
		log.Errorf("[Kafka] failed to count attempts for %s: %v", task.ArticleID, err)
		return
	}
	_ = c.redisClient.Expire(ctx, attemptsKey, 24*time.Hour).Err()

	if attempts >= maxProcessAttempts {
		log.Errorf("[Kafka] document task failed %d times, dropping, article: %s", attempts, task.ArticleID)
		c.clearAttempts(ctx, task)
		c.commit(ctx, m)
	}
}

func (c *Consumer) clearAttempts(ctx context.Context, task tasks.DocumentTask) {
	_ = c.redisClient.Del(ctx, fmt.Sprintf("kafka:attempts:%s", task.ArticleID)).Err()
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Errorf("[Kafka] failed to commit offset: %v", err)
	}
}
