// Package dns propagates zone changes. Mutating flows never talk to the
// DNS pipeline directly: they enqueue a refresh request in the same
// transaction as the mutation, and the relay publishes committed requests
// afterwards. A mutation and its refresh therefore commit or vanish
// together.
package dns

import (
	"context"
	"fmt"
	"time"

	"regcore/internal/registry/store/dnsoutbox"
)

// Outbox is the slice of the refresh outbox the dns package needs.
type Outbox interface {
	Enqueue(ctx context.Context, domainName string, at time.Time) error
	ListPending(ctx context.Context, limit int) ([]dnsoutbox.Request, error)
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error
}

// Notifier records refresh requests for mutated names.
type Notifier struct {
	outbox Outbox
}

// NewNotifier constructs a notifier over the given outbox.
func NewNotifier(outbox Outbox) *Notifier {
	return &Notifier{outbox: outbox}
}

// RequestRefresh queues a refresh for the name. Repeated requests for a
// name that already has a pending refresh collapse into one.
func (n *Notifier) RequestRefresh(ctx context.Context, domainName string, now time.Time) error {
	if err := n.outbox.Enqueue(ctx, domainName, now); err != nil {
		return fmt.Errorf("request dns refresh for %s: %w", domainName, err)
	}
	return nil
}
