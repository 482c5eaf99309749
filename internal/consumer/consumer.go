// Package consumer implements the queue consumer: an unbounded receive
// loop that dispatches each message to the job processor and acks or
// retries it based on the outcome.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	ingesterrors "github.com/rohit/contact-ingest-worker/internal/domain/errors"
	"github.com/rohit/contact-ingest-worker/internal/metrics"
	"github.com/rohit/contact-ingest-worker/internal/queue"
	"github.com/rohit/contact-ingest-worker/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// jobProcessor is the subset of *processor.Processor the consumer depends
// on, narrowed so tests can supply a stub.
type jobProcessor interface {
	ProcessJob(ctx context.Context, jobID int, objectKey string) error
}

// Consumer drives the receive/dispatch/ack loop against a Queue.
type Consumer struct {
	queue      queue.Queue
	processor  jobProcessor
	retryDelay time.Duration
	logger     zerolog.Logger
	metrics    *metrics.Collector

	quit chan struct{}
	wg   sync.WaitGroup
}

// New builds a Consumer from its collaborators.
func New(q queue.Queue, p jobProcessor, retryDelay time.Duration, log zerolog.Logger, collector *metrics.Collector) *Consumer {
	return &Consumer{
		queue:      q,
		processor:  p,
		retryDelay: retryDelay,
		logger:     log,
		metrics:    collector,
		quit:       make(chan struct{}),
	}
}

// Run blocks in the receive loop until ctx is cancelled or Stop is called.
func (c *Consumer) Run(ctx context.Context) {
	c.wg.Add(1)
	defer c.wg.Done()

	c.logger.Info().Msg("queue consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("queue consumer stopping (context cancelled)")
			return
		case <-c.quit:
			c.logger.Info().Msg("queue consumer stopping")
			return
		default:
		}

		messages, err := c.queue.Receive(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("transient error receiving from queue, sleeping before retry")
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return
			case <-c.quit:
				return
			}
			continue
		}

		for _, msg := range messages {
			c.handle(ctx, msg)
		}
	}
}

// Stop signals the receive loop to exit and waits for it to return.
func (c *Consumer) Stop() {
	close(c.quit)
	c.wg.Wait()
	c.logger.Info().Msg("queue consumer stopped")
}

// handle dispatches one message to the processor and acks or retries it.
func (c *Consumer) handle(ctx context.Context, msg queue.Message) {
	if c.metrics != nil {
		c.metrics.RecordMessageReceived()
	}

	correlationID := uuid.New().String()
	log := logger.WithMessage(c.logger, correlationID)

	var body queue.Body
	if err := json.Unmarshal([]byte(msg.Body), &body); err != nil {
		log.Warn().Err(err).Msg("poison message: malformed JSON, deleting")
		c.deleteAsPoison(ctx, msg, log)
		return
	}
	if body.JobID == 0 || body.S3Key == "" {
		log.Warn().Int("job_id", body.JobID).Str("s3_key", body.S3Key).Msg("poison message: missing job_id or s3_key, deleting")
		c.deleteAsPoison(ctx, msg, log)
		return
	}

	log = logger.WithJob(log, body.JobID)

	err := c.processor.ProcessJob(ctx, body.JobID, body.S3Key)
	if err == nil {
		c.ack(ctx, msg, log)
		return
	}

	var poison *ingesterrors.PoisonMessageError
	var stale *ingesterrors.StaleMessageError
	if errors.As(err, &poison) || errors.As(err, &stale) {
		log.Warn().Err(err).Msg("deleting unprocessable message")
		c.deleteAsPoison(ctx, msg, log)
		return
	}

	log.Error().Err(err).Msg("job processing failed, leaving message for redelivery")
	if c.metrics != nil {
		c.metrics.RecordMessageRetried()
	}
}

func (c *Consumer) ack(ctx context.Context, msg queue.Message, log zerolog.Logger) {
	if err := c.queue.Delete(ctx, msg); err != nil {
		log.Error().Err(err).Msg("failed to delete message after successful processing")
		return
	}
	if c.metrics != nil {
		c.metrics.RecordMessageDeleted()
	}
}

func (c *Consumer) deleteAsPoison(ctx context.Context, msg queue.Message, log zerolog.Logger) {
	if err := c.queue.Delete(ctx, msg); err != nil {
		log.Error().Err(err).Msg("failed to delete poison message")
		return
	}
	if c.metrics != nil {
		c.metrics.RecordMessagePoisoned()
	}
}
