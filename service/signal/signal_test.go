package signal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qmem "github.com/trust-arbor/arbor/service/messaging/memory"
)

func TestPublishAndConsume(t *testing.T) {
	bus := New()
	ctx := context.Background()

	bus.Publish(ctx, "arbor.consensus.DecisionRendered", map[string]string{"proposalId": "prop-1"})

	consumeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	message, err := bus.Queue().Consume(consumeCtx)
	require.NoError(t, err)

	envelope := message.T()
	assert.Equal(t, "arbor.consensus.DecisionRendered", envelope.Topic)
	assert.False(t, envelope.PublishedAt.IsZero())
	payload, ok := envelope.Payload.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "prop-1", payload["proposalId"])
	assert.NoError(t, message.Ack())
}

func TestPublishNeverBlocksCaller(t *testing.T) {
	bus := New()

	// publishing with an already-cancelled context must not panic or block;
	// the signal is simply dropped
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Publish(ctx, "arbor.consensus.ProposalSubmitted", nil)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked")
	}
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	// a full queue with no consumer attached must drop, not block, even
	// with a live context
	queue := qmem.NewQueue[Envelope](qmem.Config{QueueBuffer: 1})
	bus := NewWithQueue(queue)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Publish(ctx, "arbor.consensus.ProposalSubmitted", map[string]string{"proposalId": "prop-1"})
		bus.Publish(ctx, "arbor.consensus.EvaluationStarted", map[string]string{"proposalId": "prop-1"})
		bus.Publish(ctx, "arbor.consensus.DecisionRendered", map[string]string{"proposalId": "prop-1"})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full queue")
	}

	// the first signal survives, the overflow is dropped
	consumeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	message, err := bus.Queue().Consume(consumeCtx)
	require.NoError(t, err)
	assert.Equal(t, "arbor.consensus.ProposalSubmitted", message.T().Topic)
	assert.NoError(t, message.Ack())
	assert.Equal(t, 0, queue.Size())
}
