package rabbitmq

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"imagebot/internal/infra"
)

// Handler processes one delivery body. A nil return acks the message; an
// error routes it through the retry queue until the attempt budget is spent,
// then to the DLQ.
type Handler func(ctx context.Context, body []byte) error

// ConsumerOptions tunes a queue consumer.
type ConsumerOptions struct {
	// Concurrency bounds in-flight deliveries (Qos prefetch and worker pool
	// size). Keep this tight on queues whose handlers call throttled
	// providers.
	Concurrency int
	// MaxRetries is the whole-job redelivery budget before dead-lettering.
	MaxRetries int
	// RetryDelay is how long a failed message parks in the retry queue. It
	// must comfortably exceed JobTimeout so a slow-but-alive handler is never
	// raced by its own redelivery.
	RetryDelay time.Duration
	// JobTimeout is the hard wall-clock budget for one handler invocation.
	JobTimeout time.Duration
	// IsPermanent short-circuits the retry budget for errors that can never
	// succeed (malformed payloads, missing records). Optional.
	IsPermanent func(error) bool
	Logger      infra.Logger
}

// Consumer drains one logical queue with a bounded worker pool.
type Consumer struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	opts  ConsumerOptions
	log   infra.Logger
}

// NewConsumer dials the broker, declares the queue topology and applies Qos.
func NewConsumer(url, queue string, opts ConsumerOptions) (*Consumer, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 30 * time.Second
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 2 * time.Minute
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel: %w", err)
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare %s: %w", queue, err)
	}
	if err := ch.Qos(opts.Concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, opts: opts, log: opts.Logger}, nil
}

// Close releases the channel and connection.
func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run consumes until ctx is cancelled. Each delivery gets its own timeout
// context; handler outcome decides ack, retry or DLQ.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume %s: %w", c.queue, err)
	}

	c.log.Info().Str("queue", c.queue).Int("concurrency", c.opts.Concurrency).Msg("consumer started")

	work := make(chan amqp.Delivery, c.opts.Concurrency)
	var wg sync.WaitGroup
	wg.Add(c.opts.Concurrency)
	for i := 0; i < c.opts.Concurrency; i++ {
		go func() {
			defer wg.Done()
			for d := range work {
				c.handle(ctx, d, handler)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			c.log.Info().Str("queue", c.queue).Msg("consumer stopped")
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				close(work)
				wg.Wait()
				return fmt.Errorf("rabbitmq: delivery channel closed for %s", c.queue)
			}
			work <- d
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	attempt := retryCount(d.Headers)
	jobCtx, cancel := context.WithTimeout(ctx, c.opts.JobTimeout)
	start := time.Now()
	err := handler(jobCtx, d.Body)
	cancel()

	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.log.Error().Err(ackErr).Str("queue", c.queue).Msg("ack failed")
		}
		return
	}

	permanent := c.opts.IsPermanent != nil && c.opts.IsPermanent(err)
	if permanent || attempt >= c.opts.MaxRetries {
		c.log.Error().Err(err).
			Str("queue", c.queue).
			Int("attempt", attempt).
			Bool("permanent", permanent).
			Dur("cost", time.Since(start)).
			Msg("dead-lettering message")
		// Nack without requeue routes to the DLQ via the queue's
		// dead-letter binding.
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.log.Error().Err(nackErr).Str("queue", c.queue).Msg("nack failed")
		}
		return
	}

	c.log.Warn().Err(err).
		Str("queue", c.queue).
		Int("attempt", attempt).
		Dur("cost", time.Since(start)).
		Msg("scheduling retry")
	if retryErr := c.publishRetry(ctx, d, attempt+1); retryErr != nil {
		c.log.Error().Err(retryErr).Str("queue", c.queue).Msg("retry publish failed, requeueing")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// publishRetry parks the message in the retry queue; its per-message TTL
// dead-letters it back to the main queue after RetryDelay.
func (c *Consumer) publishRetry(ctx context.Context, d amqp.Delivery, attempt int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = int32(attempt)

	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return c.ch.PublishWithContext(cctx,
		"",
		retryQueue(c.queue),
		false,
		false,
		amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         d.Body,
			Timestamp:    time.Now(),
			Expiration:   strconv.FormatInt(c.opts.RetryDelay.Milliseconds(), 10),
		},
	)
}
