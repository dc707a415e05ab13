package queue

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/capto/internal/models"
)

func newTestQueue(t *testing.T, visibility time.Duration, maxReceive int) *BadgerQueue {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	q, err := NewBadgerQueue(db, "test_jobs", visibility, maxReceive, arbor.NewLogger())
	require.NoError(t, err)
	return q
}

func campaignMsg(t *testing.T, id string) models.QueueMessage {
	t.Helper()
	msg, err := models.NewCampaignMessage(id, "cmp_1")
	require.NoError(t, err)
	return msg
}

func TestEnqueueReceiveDelete(t *testing.T) {
	q := newTestQueue(t, time.Minute, 3)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, campaignMsg(t, "msg_1")))

	msg, deleteFn, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "msg_1", msg.ID)
	assert.Equal(t, models.JobTypeCampaignScrape, msg.Type)

	require.NoError(t, deleteFn())

	_, _, err = q.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)
}

func TestDelayedMessageInvisibleUntilDue(t *testing.T) {
	q := newTestQueue(t, time.Minute, 3)
	ctx := context.Background()

	require.NoError(t, q.EnqueueDelayed(ctx, campaignMsg(t, "msg_1"), 150*time.Millisecond))

	_, _, err := q.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)

	time.Sleep(200 * time.Millisecond)

	msg, deleteFn, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "msg_1", msg.ID)
	require.NoError(t, deleteFn())
}

func TestUnackedMessageReappearsAfterVisibilityTimeout(t *testing.T) {
	q := newTestQueue(t, 100*time.Millisecond, 3)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, campaignMsg(t, "msg_1")))

	_, _, err := q.Receive(ctx)
	require.NoError(t, err)

	// Claimed but unacked: invisible inside the window.
	_, _, err = q.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)

	time.Sleep(150 * time.Millisecond)

	msg, deleteFn, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "msg_1", msg.ID)
	require.NoError(t, deleteFn())
}

func TestPoisonMessageDroppedAfterMaxReceives(t *testing.T) {
	q := newTestQueue(t, 50*time.Millisecond, 2)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, campaignMsg(t, "msg_1")))

	for i := 0; i < 2; i++ {
		_, _, err := q.Receive(ctx)
		require.NoError(t, err)
		time.Sleep(80 * time.Millisecond)
	}

	// Third attempt sees the exhausted message and drops it.
	_, _, err := q.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)

	// Still gone after the visibility window.
	time.Sleep(80 * time.Millisecond)
	_, _, err = q.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)
}

func TestMessagesDeliveredInVisibilityOrder(t *testing.T) {
	q := newTestQueue(t, time.Minute, 3)
	ctx := context.Background()

	require.NoError(t, q.EnqueueDelayed(ctx, campaignMsg(t, "later"), 50*time.Millisecond))
	require.NoError(t, q.Enqueue(ctx, campaignMsg(t, "sooner")))

	msg, deleteFn, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sooner", msg.ID)
	require.NoError(t, deleteFn())

	time.Sleep(80 * time.Millisecond)
	msg, deleteFn, err = q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "later", msg.ID)
	require.NoError(t, deleteFn())
}

func TestExtendPushesVisibility(t *testing.T) {
	q := newTestQueue(t, 100*time.Millisecond, 3)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, campaignMsg(t, "msg_1")))

	msg, _, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Extend(ctx, msg.ID, time.Minute))

	// Original window has passed but the extension holds the claim.
	time.Sleep(150 * time.Millisecond)
	_, _, err = q.Receive(ctx)
	assert.ErrorIs(t, err, models.ErrNoMessage)
}
