package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/linkbio/internal/metrics"
	"github.com/iliyamo/linkbio/internal/model"
	"github.com/iliyamo/linkbio/internal/repository"
)

type publishStore interface {
	MarkPublished(ctx context.Context, id string, now time.Time) error
	PublishStatus(ctx context.Context, id string) (model.PublishStatus, error)
}

// PublishResult is returned to the client after a publish.
type PublishResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Publisher moves a client to the published state and then tells the
// downstream caches.
type Publisher struct {
	Clients     publishStore
	Revalidator Revalidator
	Now         func() time.Time
	Logger      *slog.Logger
}

func NewPublisher(clients *repository.ClientRepo, r Revalidator) *Publisher {
	return &Publisher{Clients: clients, Revalidator: r, Now: repository.Now, Logger: slog.Default()}
}

// Publish marks the client published with no draft changes.  Only a store
// failure is returned; revalidation runs after the write and its outcome is
// logged, since a stale page heals on its next cache expiry.
func (p *Publisher) Publish(ctx context.Context, c model.Client) (PublishResult, error) {
	now := p.Now().UTC().Truncate(time.Second)
	err := p.Clients.MarkPublished(ctx, c.ID, now)
	metrics.PublishTotal.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return PublishResult{}, err
	}
	// The write is committed; a caller hanging up must not cut the
	// notification short.
	BestEffort{Next: p.Revalidator, Logger: p.Logger}.Notify(context.WithoutCancel(ctx), c.Slug)
	return PublishResult{Status: "done", Message: "Changes published"}, nil
}

// Status reads the current flags from the store.
func (p *Publisher) Status(ctx context.Context, clientID string) (model.PublishStatus, error) {
	return p.Clients.PublishStatus(ctx, clientID)
}
