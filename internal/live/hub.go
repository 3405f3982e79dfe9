package live

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains partner_id -> set of connections and broadcasts redemption
// events to partner dashboards. Uses Redis pub/sub for horizontal scaling:
// events are published once and every subscribed instance, this one included,
// performs its own local fan-out.
type Hub struct {
	// partnerID -> map[clientID]*Client
	partners map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per partner
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishPartnerEvent(partnerID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to partner channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribePartner(partnerID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		partners: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a partner room. Starts the Redis subscription for
// this partner if it's the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.partners[c.PartnerID] == nil {
		h.partners[c.PartnerID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribePartner(c.PartnerID, func(event string, payload []byte) {
				h.broadcastLocal(c.PartnerID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.PartnerID] = cancel
			}
		}
	}
	h.partners[c.PartnerID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined partner room", zap.String("client_id", c.ID), zap.String("partner_id", c.PartnerID.String()))
}

// Unregister removes a client from a partner room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.partners[c.PartnerID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.partners, c.PartnerID)
			if cancel, ok := h.subs[c.PartnerID]; ok {
				cancel()
				delete(h.subs, c.PartnerID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left partner room", zap.String("client_id", c.ID), zap.String("partner_id", c.PartnerID.String()))
}

// broadcastLocal sends a message to all clients in a partner room (local only).
func (h *Hub) broadcastLocal(partnerID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.partners[partnerID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToPartner delivers an event to the partner's dashboards on every
// instance. With Redis attached the event is only published; the subscriber
// callback performs the local fan-out on each instance, this one included, so
// a client never sees the event twice. Without Redis, or when the publish
// fails, it falls back to a direct local broadcast.
func (h *Hub) BroadcastToPartner(partnerID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishPartnerEvent(partnerID, event, data); err == nil {
			return
		}
	}
	h.broadcastLocal(partnerID, event, json.RawMessage(data))
}

// ClientCount returns the number of connected clients for a partner.
func (h *Hub) ClientCount(partnerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.partners[partnerID])
}
