package live

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fakeBus loops published events straight back to the channel's subscriber,
// like a single-instance Redis.
type fakeBus struct {
	handlers  map[uuid.UUID]func(event string, payload []byte)
	published int
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[uuid.UUID]func(event string, payload []byte))}
}

func (b *fakeBus) PublishPartnerEvent(partnerID uuid.UUID, event string, payload []byte) error {
	b.published++
	if h := b.handlers[partnerID]; h != nil {
		h(event, payload)
	}
	return nil
}

func (b *fakeBus) SubscribePartner(partnerID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	b.handlers[partnerID] = handler
	return func() { delete(b.handlers, partnerID) }, nil
}

func newRoomClient(partnerID uuid.UUID) *Client {
	return &Client{
		ID:        uuid.New().String(),
		PartnerID: partnerID,
		UserID:    uuid.New(),
		send:      make(chan WSMessage, 8),
	}
}

func TestBroadcastDeliversOncePerClient(t *testing.T) {
	bus := newFakeBus()
	hub := NewHub(zap.NewNop(), bus, bus)

	partnerID := uuid.New()
	c := newRoomClient(partnerID)
	hub.Register(c)
	defer hub.Unregister(c)

	hub.BroadcastToPartner(partnerID, "redemption", map[string]string{"code": "BLK-AAA111"})

	if bus.published != 1 {
		t.Fatalf("published %d events, want 1", bus.published)
	}
	if got := len(c.send); got != 1 {
		t.Fatalf("client received %d messages, want exactly 1", got)
	}
	msg := <-c.send
	if msg.Event != "redemption" {
		t.Fatalf("event = %q", msg.Event)
	}
}

func TestBroadcastFallsBackToLocalWithoutRedis(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)

	partnerID := uuid.New()
	c := newRoomClient(partnerID)
	hub.Register(c)
	defer hub.Unregister(c)

	hub.BroadcastToPartner(partnerID, "presence", map[string]int{"count": 1})

	if got := len(c.send); got != 1 {
		t.Fatalf("client received %d messages, want exactly 1", got)
	}
}

func TestUnregisterLastClientCancelsSubscription(t *testing.T) {
	bus := newFakeBus()
	hub := NewHub(zap.NewNop(), bus, bus)

	partnerID := uuid.New()
	c := newRoomClient(partnerID)
	hub.Register(c)
	if bus.handlers[partnerID] == nil {
		t.Fatal("first client did not subscribe the partner channel")
	}
	hub.Unregister(c)
	if bus.handlers[partnerID] != nil {
		t.Fatal("last client left but the subscription survived")
	}
}
