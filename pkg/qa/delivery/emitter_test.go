package delivery

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"admission-chatbot-be/internal/constant"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmitter() *Emitter {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	return NewEmitter(pubSub, NewRegistry(), log.New(io.Discard, "", 0))
}

func TestEmitter_DeliversOnSubscribedChannel(t *testing.T) {
	emitter := newTestEmitter()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgs, err := emitter.Subscribe(ctx, "prov-1")
	require.NoError(t, err)

	emitter.EmitResponse("prov-1", "the tuition is $11,200")

	select {
	case msg := <-msgs:
		var update Update
		require.NoError(t, json.Unmarshal(msg.Payload, &update))
		assert.Equal(t, constant.EventResponse, update.Kind)
		assert.Equal(t, "the tuition is $11,200", update.Text)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no update delivered")
	}
}

func TestEmitter_RekeyKeepsInterleavedUpdates(t *testing.T) {
	emitter := newTestEmitter()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Client subscribed under the provisional id.
	msgs, err := emitter.Subscribe(ctx, "prov-1")
	require.NoError(t, err)

	emitter.EmitProgress("prov-1", ProgressPayload{Stage: "main_query", StepIndex: 1, PlannedSteps: 4})
	emitter.Registry().Reconcile("prov-1", "durable-1")
	emitter.EmitProgress("durable-1", ProgressPayload{Stage: "enrichment_1", StepIndex: 2, PlannedSteps: 4})
	emitter.EmitResponse("durable-1", "final answer")

	var kinds []string
	for i := 0; i < 3; i++ {
		select {
		case msg := <-msgs:
			var update Update
			require.NoError(t, json.Unmarshal(msg.Payload, &update))
			kinds = append(kinds, update.Kind)
			msg.Ack()
		case <-ctx.Done():
			t.Fatalf("only %d of 3 updates delivered across the rekey", i)
		}
	}

	assert.Equal(t, []string{constant.EventProgress, constant.EventProgress, constant.EventResponse}, kinds)
}

func TestEmitter_LateSubscriberUnderDurableId(t *testing.T) {
	emitter := newTestEmitter()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	emitter.Registry().Reconcile("prov-1", "durable-1")

	// A reconnecting client subscribes using the durable id only.
	msgs, err := emitter.Subscribe(ctx, "durable-1")
	require.NoError(t, err)

	emitter.EmitError("prov-1", "something went wrong")

	select {
	case msg := <-msgs:
		var update Update
		require.NoError(t, json.Unmarshal(msg.Payload, &update))
		assert.Equal(t, constant.EventError, update.Kind)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("update published under the provisional id never arrived")
	}
}
