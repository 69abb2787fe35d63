package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/linkbio/internal/metrics"
)

// Handler sends the email described by a job.
type Handler interface {
	Handle(ctx context.Context, job EmailJob) error
}

// acknowledger is the part of amqp.Delivery the consumer uses.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// requeueDelay holds a failed job back before it returns to the queue.
var requeueDelay = time.Second

// StartEmailConsumer connects to the broker, declares the email queue
// (durable) and hands every job to h.  It runs a reconnect loop with
// exponential backoff and returns only when ctx is cancelled.
func StartEmailConsumer(ctx context.Context, url string, h Handler) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("email-consumer: dial failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, h)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("email-consumer: consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, h Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		slog.Warn("email-consumer: set QoS failed", "err", err)
	}
	if _, err := ch.QueueDeclare(EmailQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(EmailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			process(ctx, d.Body, d.Redelivered, &d, h)
		}
	}
}

// process decodes and handles one delivery.  Malformed jobs are rejected
// without requeue so they cannot loop.  A send failure is requeued once,
// after requeueDelay; a delivery that already came back is dropped.
func process(ctx context.Context, body []byte, redelivered bool, ack acknowledger, h Handler) {
	var job EmailJob
	if err := json.Unmarshal(body, &job); err != nil || job.Validate() != nil {
		slog.Warn("email-consumer: dropping malformed job", "err", err)
		metrics.EmailJobsTotal.WithLabelValues("unknown", "consumer", "malformed").Inc()
		_ = ack.Nack(false, false)
		return
	}
	if err := h.Handle(ctx, job); err != nil {
		if redelivered {
			slog.Error("email-consumer: send failed again, dropping job", "type", job.Type, "err", err)
			metrics.EmailJobsTotal.WithLabelValues(string(job.Type), "consumer", "dropped").Inc()
			_ = ack.Nack(false, false)
			return
		}
		slog.Warn("email-consumer: send failed, requeueing", "type", job.Type, "err", err, "delay", requeueDelay)
		metrics.EmailJobsTotal.WithLabelValues(string(job.Type), "consumer", "error").Inc()
		sleep(ctx, requeueDelay)
		_ = ack.Nack(false, true)
		return
	}
	metrics.EmailJobsTotal.WithLabelValues(string(job.Type), "consumer", "ok").Inc()
	_ = ack.Ack(false)
}
