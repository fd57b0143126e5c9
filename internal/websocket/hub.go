package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MKRushil/Pulse/internal/pkg/logger"
)

// Hub fans round-progress messages out to the clients watching each
// session. With Redis configured, messages go through a relay channel that
// every instance (this one included) consumes, so a watcher connected to
// one node sees rounds executed on another and nobody gets duplicates.
type Hub struct {
	// Registered clients map: SessionID -> watching clients
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance relay, may be nil
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Watcher registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Send delivers a typed message to every watcher of the session.
func (h *Hub) Send(sessionID uuid.UUID, msgType string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"type": msgType,
		"data": payload,
	})
	if err != nil {
		h.logger.Error("Hub", "Message marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	if h.rdb != nil {
		relay := map[string]interface{}{
			"target_session_id": sessionID.String(),
			"message":           json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(relay)
		h.rdb.Publish(context.Background(), "cluster_events", jsonPayload)
		return
	}

	h.deliverLocal(sessionID, data)
}

// deliverLocal writes to every watcher's buffer. Watchers that cannot keep
// up are queued for unregistration after the read lock is released; the Run
// loop owns closing their channels.
func (h *Hub) deliverLocal(sessionID uuid.UUID, data []byte) {
	var dead []*Client

	h.mu.RLock()
	for _, client := range h.clients[sessionID] {
		select {
		case client.Send <- data:
		default:
			dead = append(dead, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range dead {
		h.logger.Warn("Hub", "Watcher buffer full, dropping", map[string]interface{}{"session_id": sessionID})
		h.unregister <- client
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "cluster_events")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TargetSessionID string          `json:"target_session_id"`
			Message         json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		sid, err := uuid.Parse(payload.TargetSessionID)
		if err != nil {
			continue
		}
		h.deliverLocal(sid, payload.Message)
	}
}
