package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/benvon/smart-docs/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, msgs <-chan *Message) *Message {
	t.Helper()
	select {
	case msg, ok := <-msgs:
		require.True(t, ok, "message channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestMemoryQueue_EnqueueConsume(t *testing.T) {
	q := NewMemoryQueue(4)
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := NewGenerateContentJob("a.json", "A", models.DocumentKindTodoList, "groceries")
	require.NoError(t, q.Enqueue(ctx, job))
	assert.Equal(t, 1, q.Len())

	msgs, _, err := q.Consume(ctx, 1)
	require.NoError(t, err)

	msg := receive(t, msgs)
	assert.Equal(t, job.ID, msg.GetJob().ID)
	require.NoError(t, msg.Ack())
	assert.Empty(t, q.DeadLetters())
}

func TestMemoryQueue_NackRequeueAndDeadLetter(t *testing.T) {
	q := NewMemoryQueue(4)
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Enqueue(ctx, NewGenerateContentJob("a.json", "A", models.DocumentKindTable, "")))
	msgs, _, err := q.Consume(ctx, 1)
	require.NoError(t, err)

	first := receive(t, msgs)
	require.NoError(t, first.Nack(true))

	again := receive(t, msgs)
	assert.Equal(t, first.GetJob().ID, again.GetJob().ID)
	require.NoError(t, again.Nack(false))

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, first.GetJob().ID, dead[0].ID)
}

func TestMemoryQueue_DelayedJob(t *testing.T) {
	q := NewMemoryQueue(4)
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := NewGenerateContentJob("a.json", "A", models.DocumentKindTable, "").RetryAfter(50 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, job))
	assert.Equal(t, 0, q.Len())

	msgs, _, err := q.Consume(ctx, 1)
	require.NoError(t, err)
	msg := receive(t, msgs)
	assert.Equal(t, 1, msg.GetJob().RetryCount)
}

func TestMemoryQueue_ExpiredJobsAreDeadLettered(t *testing.T) {
	q := NewMemoryQueue(4)
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	expired := NewGenerateContentJob("old.json", "Old", models.DocumentKindTable, "")
	past := time.Now().Add(-time.Second)
	expired.NotAfter = &past
	fresh := NewGenerateContentJob("new.json", "New", models.DocumentKindTable, "")

	require.NoError(t, q.Enqueue(ctx, expired))
	require.NoError(t, q.Enqueue(ctx, fresh))

	msgs, _, err := q.Consume(ctx, 1)
	require.NoError(t, err)
	msg := receive(t, msgs)
	assert.Equal(t, "new.json", msg.GetJob().Filename)

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "old.json", dead[0].Filename)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.HealthCheck(context.Background()))

	ctx := context.Background()
	delayed := NewGenerateContentJob("a.json", "A", models.DocumentKindTable, "").RetryAfter(time.Hour)
	require.NoError(t, q.Enqueue(ctx, delayed))

	msgs, errs, err := q.Consume(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	_, open := <-msgs
	assert.False(t, open)
	_, open = <-errs
	assert.False(t, open)

	assert.ErrorIs(t, q.HealthCheck(ctx), ErrQueueClosed)
	assert.ErrorIs(t, q.Enqueue(ctx, NewGenerateContentJob("b.json", "B", models.DocumentKindTable, "")), ErrQueueClosed)
	assert.ErrorIs(t, q.Enqueue(ctx, &Job{}), ErrInvalidJob)
}
