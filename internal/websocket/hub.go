package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"admission-chatbot-be/internal/pkg/logger"
	"admission-chatbot-be/pkg/qa/delivery"

	"github.com/redis/go-redis/v9"
)

// Hub fans delivery updates out to the websocket clients of each
// conversation. Clients are keyed by the conversation's stable channel name
// so provisional and durable ids land on the same subscribers.
type Hub struct {
	// Registered clients map: channel name -> list of clients (multi-tab)
	clients map[string][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// In-process delivery bus feeding this hub.
	emitter *delivery.Emitter

	// One feed goroutine per channel with local subscribers.
	feeds map[string]context.CancelFunc

	// Redis connection for cross-instance communication
	rdb *redis.Client

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(emitter *delivery.Emitter, rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		feeds:      make(map[string]context.CancelFunc),
		emitter:    emitter,
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			first := len(h.clients[client.Channel]) == 0
			h.clients[client.Channel] = append(h.clients[client.Channel], client)
			h.mu.Unlock()
			if first {
				h.startFeed(client.Channel)
			}
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"channel": client.Channel})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.Channel]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.Channel] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.Channel]) == 0 {
					delete(h.clients, client.Channel)
					if cancel, ok := h.feeds[client.Channel]; ok {
						cancel()
						delete(h.feeds, client.Channel)
					}
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"channel": client.Channel})
				}
			}
			h.mu.Unlock()
		}
	}
}

// startFeed bridges the in-process delivery bus onto this channel's local
// clients and mirrors every update to Redis for other instances.
func (h *Hub) startFeed(channel string) {
	ctx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.feeds[channel] = cancel
	h.mu.Unlock()

	messages, err := h.emitter.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("Hub", "Delivery subscribe failed", map[string]interface{}{"channel": channel, "error": err.Error()})
		cancel()
		h.mu.Lock()
		delete(h.feeds, channel)
		h.mu.Unlock()
		return
	}

	go func() {
		for msg := range messages {
			h.deliverLocal(channel, msg.Payload)

			if h.rdb != nil {
				payload, _ := json.Marshal(map[string]interface{}{
					"target_channel": channel,
					"message":        json.RawMessage(msg.Payload),
				})
				h.rdb.Publish(context.Background(), "cluster_events", payload)
			}
			msg.Ack()
		}
	}()
}

func (h *Hub) deliverLocal(channel string, data []byte) {
	// Sends stay under the read lock: Run closes Send channels under the
	// write lock, so a client can never be closed mid-send. Slow clients
	// are evicted after the lock is released to keep Run reachable.
	var slow []*Client
	h.mu.RLock()
	for _, client := range h.clients[channel] {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"channel": channel})
		h.unregister <- client
	}
}

func (h *Hub) subscribeToRedis() {
	// Every instance subscribes to "cluster_events" and forwards updates it
	// has local subscribers for. Updates that originated locally were
	// already delivered, so only remote-origin channels match here.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "cluster_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			TargetChannel string          `json:"target_channel"`
			Message       json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		h.mu.RLock()
		_, local := h.feeds[payload.TargetChannel]
		h.mu.RUnlock()
		if local {
			// This instance runs its own feed for the channel; skip to
			// avoid double delivery.
			continue
		}

		h.deliverLocal(payload.TargetChannel, payload.Message)
	}
}
