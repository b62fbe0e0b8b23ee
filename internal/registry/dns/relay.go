package dns

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Publisher delivers one refresh message to the zone-generation pipeline.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// RefreshMessage is the wire payload consumed by zone generation.
type RefreshMessage struct {
	Domain      string    `json:"domain"`
	RequestedAt time.Time `json:"requested_at"`
}

// Relay drains committed refresh requests from the outbox and publishes
// them. Delivery is at-least-once: a crash between publish and mark leaves
// the row pending and it is re-sent on the next pass. Consumers key on the
// domain name, so replays are harmless.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.interval = d }
}

// WithBatchSize overrides how many pending rows one pass drains.
func WithBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batchSize = n }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

// NewRelay constructs a relay publishing to the given topic.
func NewRelay(outbox Outbox, publisher Publisher, topic string, opts ...RelayOption) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		topic:     topic,
		interval:  5 * time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run polls the outbox until the context is cancelled. Publish failures are
// logged and retried on the next tick, never fatal.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.DrainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "dns relay pass failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DrainOnce publishes one batch of pending requests and marks what went
// out. A mid-batch publish failure stops the pass; everything already
// published is still marked.
func (r *Relay) DrainOnce(ctx context.Context) error {
	pending, err := r.outbox.ListPending(ctx, r.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var published []int64
	var publishErr error
	for _, req := range pending {
		payload, err := json.Marshal(RefreshMessage{Domain: req.DomainName, RequestedAt: req.RequestedAt})
		if err != nil {
			publishErr = err
			break
		}
		if err := r.publisher.Publish(ctx, r.topic, []byte(req.DomainName), payload); err != nil {
			publishErr = err
			break
		}
		published = append(published, req.ID)
	}

	if len(published) > 0 {
		if err := r.outbox.MarkPublished(ctx, published, time.Now().UTC()); err != nil {
			return err
		}
		r.logger.DebugContext(ctx, "published dns refreshes", "count", len(published))
	}
	return publishErr
}
