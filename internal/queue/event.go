// Package queue defines the email job payload exchanged over the message
// broker and the consumer that drains it.
package queue

import (
	"errors"
	"strings"
	"time"
)

// EmailQueueName is the durable queue carrying EmailJob messages.
const EmailQueueName = "email.jobs"

// JobType names the email to send.
type JobType string

const (
	JobVerification  JobType = "verification"
	JobPasswordReset JobType = "password-reset"
)

// EmailJob asks a worker to send one transactional email.  It carries the
// raw token so the worker can build the action link without touching the
// database.
type EmailJob struct {
	Type     JobType   `json:"type"`
	Email    string    `json:"email"`
	Token    string    `json:"token"`
	QueuedAt time.Time `json:"queued_at,omitempty"`
}

var ErrInvalidJob = errors.New("invalid email job")

// Validate rejects jobs no worker could act on.
func (j EmailJob) Validate() error {
	switch j.Type {
	case JobVerification, JobPasswordReset:
	default:
		return ErrInvalidJob
	}
	if !strings.Contains(j.Email, "@") || j.Token == "" {
		return ErrInvalidJob
	}
	return nil
}
