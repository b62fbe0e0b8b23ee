//go:build integration

package dns

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"regcore/internal/platform/kafka"
	"regcore/internal/registry/store/dnsoutbox"
	"regcore/pkg/testutil/containers"
)

func TestRelayPublishesToKafka(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()
	const topic = "dns-refresh"
	require.NoError(t, rp.CreateTopic(ctx, topic))

	producer, err := kafka.NewProducer(rp.Brokers)
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	outbox := dnsoutbox.NewInMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, outbox.Enqueue(ctx, "example.test", now))
	require.NoError(t, outbox.Enqueue(ctx, "other.test", now.Add(time.Second)))

	relay := NewRelay(outbox, producer, topic)
	require.NoError(t, relay.DrainOnce(ctx))

	pending, err := outbox.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "published requests are marked")

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	seen := map[string]RefreshMessage{}
	for len(seen) < 2 {
		fetches := consumer.PollFetches(fetchCtx)
		require.NoError(t, fetches.Err())
		fetches.EachRecord(func(rec *kgo.Record) {
			var msg RefreshMessage
			require.NoError(t, json.Unmarshal(rec.Value, &msg))
			seen[string(rec.Key)] = msg
		})
	}

	require.Contains(t, seen, "example.test")
	require.Contains(t, seen, "other.test")
	assert.True(t, seen["example.test"].RequestedAt.Equal(now))
	assert.Equal(t, "example.test", seen["example.test"].Domain)
}
