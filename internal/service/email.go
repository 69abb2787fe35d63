package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/linkbio/internal/metrics"
	"github.com/iliyamo/linkbio/internal/queue"
)

// Message is a rendered transactional email.
type Message struct {
	To        string
	Subject   string
	ActionURL string
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct{ Logger *slog.Logger }

func (l LogMailer) Send(ctx context.Context, m Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email", "to", m.To, "subject", m.Subject, "url", m.ActionURL)
	return nil
}

// EmailSender renders jobs into messages.  It implements queue.Handler, so
// the broker consumer, the webhook and the direct queue share it.
type EmailSender struct {
	Mailer   Mailer
	AdminURL string
}

// Render builds the message for job.
func (s EmailSender) Render(job queue.EmailJob) (Message, error) {
	if err := job.Validate(); err != nil {
		return Message{}, err
	}
	tok := url.QueryEscape(job.Token)
	switch job.Type {
	case queue.JobVerification:
		return Message{To: job.Email, Subject: "Confirm your email address",
			ActionURL: s.AdminURL + "/verify-email?token=" + tok}, nil
	default:
		return Message{To: job.Email, Subject: "Reset your password",
			ActionURL: s.AdminURL + "/reset-password?token=" + tok}, nil
	}
}

func (s EmailSender) Handle(ctx context.Context, job queue.EmailJob) error {
	m, err := s.Render(job)
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, m)
}

// EmailQueue accepts a job for later or immediate delivery.
type EmailQueue interface {
	Enqueue(ctx context.Context, job queue.EmailJob) error
}

// DirectEmailQueue sends at once.  It is used when no broker is configured.
type DirectEmailQueue struct{ Handler queue.Handler }

func (d DirectEmailQueue) Enqueue(ctx context.Context, job queue.EmailJob) error {
	err := d.Handler.Handle(ctx, job)
	metrics.EmailJobsTotal.WithLabelValues(string(job.Type), "direct", metrics.Result(err)).Inc()
	return err
}

// DefaultAMQPDialTimeout bounds connecting and the protocol handshake of a
// publish, which runs inside the request that queued the job.
const DefaultAMQPDialTimeout = 2 * time.Second

// AMQPEmailQueue publishes jobs to the durable email queue.  Each publish
// dials its own connection, so a broker restart never leaves a stale
// channel behind.
type AMQPEmailQueue struct {
	URL string
	// DialTimeout overrides DefaultAMQPDialTimeout when positive.
	DialTimeout time.Duration
}

func (q AMQPEmailQueue) Enqueue(ctx context.Context, job queue.EmailJob) error {
	err := q.publish(ctx, job)
	metrics.EmailJobsTotal.WithLabelValues(string(job.Type), "amqp", metrics.Result(err)).Inc()
	return err
}

func (q AMQPEmailQueue) publish(ctx context.Context, job queue.EmailJob) error {
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}

	timeout := q.DialTimeout
	if timeout <= 0 {
		timeout = DefaultAMQPDialTimeout
	}
	conn, err := amqp.DialConfig(q.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so jobs survive broker restarts.
	if _, err := ch.QueueDeclare(
		queue.EmailQueueName, // name
		true,                 // durable
		false,                // autoDelete
		false,                // exclusive
		false,                // noWait
		nil,                  // args
	); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	return ch.PublishWithContext(ctx,
		"",                   // default exchange
		queue.EmailQueueName, // routing key = queue name
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // store on disk
			Timestamp:    job.QueuedAt,
			Body:         body,
		},
	)
}

// SendOrQueue hands job to q and logs a failure instead of returning it:
// the operation that produced the job has already succeeded.
func SendOrQueue(ctx context.Context, q EmailQueue, job queue.EmailJob) {
	if q == nil {
		return
	}
	if err := q.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		slog.WarnContext(ctx, "email enqueue failed", "type", job.Type, "err", err)
	}
}
