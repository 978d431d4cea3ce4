// Package socket fans successful item mutations out to websocket
// subscribers. Rooms are keyed by (collection, owner) so a subscriber
// only ever sees events for its own records. The hub never caches
// documents; events carry identifiers and revisions only.
package socket

import (
	"encoding/json"
	"sync"

	"github.com/Yamemik/casher/pkg/logger"
)

const (
	CreatedType = "ITEM_CREATED"
	UpdatedType = "ITEM_UPDATED"
	DeletedType = "ITEM_DELETED"
)

// Event describes one committed mutation.
type Event struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	Owner      string `json:"-"`
	ItemID     string `json:"item_id"`
	Revision   int64  `json:"revision,omitempty"`
}

// Hub routes events to the clients subscribed to the matching
// collection/owner room.
type Hub struct {
	Broadcast  chan Event
	Register   chan *Client
	Unregister chan *Client

	mu    sync.Mutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan Event, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func roomKey(collection, owner string) string {
	return collection + "|" + owner
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			key := roomKey(client.Collection, client.Owner)
			if h.rooms[key] == nil {
				h.rooms[key] = make(map[*Client]bool)
			}
			h.rooms[key][client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.drop(client)

		case event := <-h.Broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling event: %v", err)
				continue
			}

			h.mu.Lock()
			key := roomKey(event.Collection, event.Owner)
			clientsToSend := make([]*Client, 0, len(h.rooms[key]))
			for client := range h.rooms[key] {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					// Lagging subscriber; drop it inline rather than block
					// the hub. Sending to Unregister here would deadlock,
					// since this loop is its only receiver.
					logger.Sugar.Warnf("Subscriber for %s is not keeping up, unregistering", key)
					h.drop(client)
				}
			}
		}
	}
}

// drop removes a client from its room and closes its send channel.
// Safe to call more than once for the same client.
func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := roomKey(client.Collection, client.Owner)
	if _, ok := h.rooms[key][client]; ok {
		delete(h.rooms[key], client)
		close(client.Send)
		if len(h.rooms[key]) == 0 {
			delete(h.rooms, key)
		}
	}
}

// Publish hands a committed mutation to the hub without blocking the
// request path. A nil hub is a no-op so the service works without the
// websocket surface.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	select {
	case h.Broadcast <- event:
	default:
		logger.Sugar.Warnf("Event channel full, dropping %s for %s", event.Type, event.Collection)
	}
}
