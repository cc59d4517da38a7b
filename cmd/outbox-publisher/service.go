package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/config"
	"github.com/kioskpos/pos-backend/pkg/db/models"
	"github.com/kioskpos/pos-backend/pkg/enums"
	"github.com/kioskpos/pos-backend/pkg/logger"
	"github.com/kioskpos/pos-backend/pkg/outbox"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	batchPublishWait   = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
	MarkAbandoned(ctx context.Context, id uuid.UUID, err error, maxAttempts int) error
}

// repositoryFactory binds the outbox repository to the batch transaction.
type repositoryFactory func(tx *gorm.DB) outboxRepository

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

var errUnroutable = errors.New("no topic configured for event type")

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       repositoryFactory
	PublisherFactory publisherFactory
}

// Service drains outbox_events to Pub/Sub. A batch is locked, handed to the
// publishers in one go, and marked inside the same transaction once every
// publish has settled.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        repositoryFactory
	pubsub      pubSubClient
	openTopic   publisherFactory
	routes      map[enums.OutboxEventType]string
	batchSize   int
	maxAttempts int
	poll        time.Duration

	mu         sync.Mutex
	publishers map[string]publisher
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	}

	open := params.PublisherFactory
	if open == nil {
		open = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}
	cfg := params.Config.Outbox
	return &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		pubsub:      params.PubSub,
		openTopic:   open,
		routes:      topicRoutes(params.Config.PubSub),
		batchSize:   positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		poll:        time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		publishers:  map[string]publisher{},
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// topicRoutes maps each event type to its topic. An event type without a
// topic is never published.
func topicRoutes(cfg config.PubSubConfig) map[enums.OutboxEventType]string {
	routes := map[enums.OutboxEventType]string{}
	if cfg.TransactionsTopic != "" {
		routes[enums.EventTransactionCreated] = cfg.TransactionsTopic
	}
	if cfg.InventoryTopic != "" {
		routes[enums.EventIngredientLowStock] = cfg.InventoryTopic
	}
	return routes
}

func (s *Service) checkDependencies(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	}
	for _, check := range checks {
		name := check.name
		if err := check.ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", name), "outbox publisher dependency unavailable", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

// Run polls until ctx ends. A full batch is followed immediately by the next
// one; an empty batch waits one poll interval; a failed batch backs off
// exponentially up to maxIdleBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}
	wait := &backoff{base: s.poll, max: maxIdleBackoff}
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			if err := sleep(ctx, withJitter(wait.next())); err != nil {
				return err
			}
		case processed:
			wait.reset()
		default:
			wait.reset()
			if err := sleep(ctx, withJitter(s.poll)); err != nil {
				return err
			}
		}
	}
}

// Close flushes and stops every topic publisher opened by the service.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.publishers {
		pub.Stop()
		delete(s.publishers, topic)
	}
}

// pending is one event of a batch and, once handed to Pub/Sub, its result.
type pending struct {
	event    models.OutboxEvent
	envelope outbox.PayloadEnvelope
	topic    string
	result   publishResult
	err      error
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo(tx)
		events, err := repo.FetchUnpublished(ctx, s.batchSize, s.maxAttempts)
		if err != nil || len(events) == 0 {
			return err
		}
		processed = true

		publishCtx, cancel := context.WithTimeout(ctx, batchPublishWait)
		defer cancel()

		batch := make([]*pending, 0, len(events))
		for _, event := range events {
			batch = append(batch, s.submit(publishCtx, event))
		}
		for _, p := range batch {
			if err := s.settle(ctx, publishCtx, repo, p); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// submit routes and hands an event to its topic publisher without waiting.
func (s *Service) submit(ctx context.Context, event models.OutboxEvent) *pending {
	p := &pending{event: event}
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		p.err = fmt.Errorf("decode envelope: %w", err)
		return p
	}
	p.envelope = envelope
	topic, ok := s.routes[event.EventType]
	if !ok {
		p.err = fmt.Errorf("%w %s", errUnroutable, event.EventType)
		return p
	}
	p.topic = topic

	pub := s.publisherFor(topic)
	if pub == nil {
		return p
	}
	p.result = pub.Publish(ctx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID,
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
	return p
}

// settle waits for the publish result and records the outcome. It returns an
// error only when the outcome could not be recorded, which aborts the batch.
func (s *Service) settle(ctx, publishCtx context.Context, repo outboxRepository, p *pending) error {
	logCtx := s.logg.WithFields(ctx, s.eventFields(p))
	id := p.event.ID

	if p.err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", p.err.Error()), "outbox event will not be retried")
		if err := repo.MarkAbandoned(ctx, id, p.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark abandoned %s: %w", id, err)
		}
		return nil
	}

	publishErr := fmt.Errorf("publisher unavailable for topic %s", p.topic)
	if p.result != nil {
		_, publishErr = p.result.Get(publishCtx)
	}
	if publishErr != nil {
		attempt := p.event.AttemptCount + 1
		failCtx := s.logg.WithFields(logCtx, map[string]any{"attempt_count": attempt, "error": publishErr.Error()})
		if attempt >= s.maxAttempts {
			s.logg.Warn(failCtx, "outbox publish failed; max attempts reached")
		} else {
			s.logg.Warn(failCtx, "outbox publish failed")
		}
		if err := repo.MarkFailed(ctx, id, publishErr); err != nil {
			return fmt.Errorf("mark failure %s: %w", id, err)
		}
		return nil
	}

	if err := repo.MarkPublished(ctx, id); err != nil {
		return fmt.Errorf("mark published %s: %w", id, err)
	}
	s.logg.Info(logCtx, "outbox event published")
	return nil
}

func (s *Service) publisherFor(topic string) publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.openTopic(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

func (s *Service) eventFields(p *pending) map[string]any {
	fields := map[string]any{
		"outbox_id":      p.event.ID.String(),
		"event_type":     p.event.EventType,
		"aggregate_type": p.event.AggregateType,
		"aggregate_id":   p.event.AggregateID,
		"attempt_count":  p.event.AttemptCount,
	}
	if p.envelope.EventID != "" {
		fields["event_id"] = p.envelope.EventID
		fields["occurred_at"] = p.envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if p.topic != "" {
		fields["topic"] = p.topic
	}
	return fields
}

// backoff doubles from base up to max between failed batches.
type backoff struct {
	base, max, cur time.Duration
}

func (b *backoff) next() time.Duration {
	if b.cur <= 0 {
		b.cur = b.base
	}
	b.cur = min(b.cur*2, b.max)
	return b.cur
}

func (b *backoff) reset() { b.cur = 0 }

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// gcpPublisher adapts the Pub/Sub publisher to the publisher interface.
type gcpPublisher struct {
	*gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{Publisher: p}
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
