package delivery

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"admission-chatbot-be/internal/constant"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const topicPrefix = "qa.delivery."

// Update is one message on a conversation's delivery channel.
type Update struct {
	Kind           string          `json:"kind"` // progress | response | error
	ConversationID string          `json:"conversation_id"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Text           string          `json:"text,omitempty"`
	EmittedAt      time.Time       `json:"emitted_at"`
}

// ProgressPayload describes one retrieval step for the visitor-facing
// progress stream.
type ProgressPayload struct {
	Stage        string  `json:"stage"`
	StepIndex    int     `json:"step_index"`
	PlannedSteps int     `json:"planned_steps"`
	ContextScore float64 `json:"context_score"`
}

// Emitter publishes updates onto per-conversation channels over the
// in-process pub/sub. Delivery is best-effort: a failed emit is logged and
// dropped, it never fails the pipeline that produced the update.
type Emitter struct {
	pubSub   *gochannel.GoChannel
	registry *Registry
	logger   *log.Logger
}

func NewEmitter(pubSub *gochannel.GoChannel, registry *Registry, logger *log.Logger) *Emitter {
	return &Emitter{pubSub: pubSub, registry: registry, logger: logger}
}

// Registry exposes the rekey registry so the persistence layer can
// reconcile provisional ids.
func (e *Emitter) Registry() *Registry {
	return e.registry
}

// Subscribe returns the update stream for a conversation id (provisional or
// durable).
func (e *Emitter) Subscribe(ctx context.Context, conversationID string) (<-chan *message.Message, error) {
	return e.pubSub.Subscribe(ctx, topicPrefix+e.registry.Channel(conversationID))
}

// EmitProgress publishes a retrieval progress update.
func (e *Emitter) EmitProgress(conversationID string, payload ProgressPayload) {
	raw, _ := json.Marshal(payload)
	e.emit(conversationID, Update{
		Kind:    constant.EventProgress,
		Payload: raw,
	})
}

// EmitResponse publishes the final answer text.
func (e *Emitter) EmitResponse(conversationID, text string) {
	e.emit(conversationID, Update{
		Kind: constant.EventResponse,
		Text: text,
	})
}

// EmitError publishes a visitor-safe error notice.
func (e *Emitter) EmitError(conversationID, text string) {
	e.emit(conversationID, Update{
		Kind: constant.EventError,
		Text: text,
	})
}

func (e *Emitter) emit(conversationID string, update Update) {
	update.ConversationID = conversationID
	update.EmittedAt = time.Now()

	payload, err := json.Marshal(update)
	if err != nil {
		e.logger.Printf("[DELIVERY] Failed to marshal %s update for %s: %v", update.Kind, conversationID, err)
		return
	}

	topic := topicPrefix + e.registry.Channel(conversationID)
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := e.pubSub.Publish(topic, msg); err != nil {
		e.logger.Printf("[DELIVERY] Failed to publish %s update for %s: %v", update.Kind, conversationID, err)
	}
}
