//go:build integration

package dnsoutbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regcore/internal/registry/store"
	"regcore/pkg/testutil/containers"
)

func TestPostgresOutboxCollapsesPendingRequests(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, pc.DB))
	s := NewPostgres(pc.DB)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Enqueue(ctx, "example.test", now))
	require.NoError(t, s.Enqueue(ctx, "example.test", now.Add(time.Minute)))
	require.NoError(t, s.Enqueue(ctx, "other.test", now.Add(2*time.Minute)))

	pending, err := s.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2, "repeated requests for a pending name collapse")
	assert.Equal(t, "example.test", pending[0].DomainName)
	assert.Equal(t, "other.test", pending[1].DomainName)

	require.NoError(t, s.MarkPublished(ctx, []int64{pending[0].ID}, now.Add(time.Hour)))

	pending, err = s.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "other.test", pending[0].DomainName)

	// Once the earlier request is published, a new one may queue.
	require.NoError(t, s.Enqueue(ctx, "example.test", now.Add(2*time.Hour)))
	pending, err = s.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
