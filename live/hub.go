// Package live pushes match lifecycle events to connected dashboard clients
// over websockets.
package live

import (
	"encoding/json"
	"log"
	"sync"
)

// Event is a single match lifecycle transition pushed to subscribers.
type Event struct {
	Type    string      `json:"type"` // e.g. "MATCH_CREATED", "MATCH_CONFIRMED"
	MatchID int         `json:"match_id"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	EventMatchCreated   = "MATCH_CREATED"
	EventMatchConfirmed = "MATCH_CONFIRMED"
	EventMatchCanceled  = "MATCH_CANCELED"
	EventPlayerReplaced = "PLAYER_REPLACED"
	EventPlayerJoined   = "PLAYER_JOINED"
)

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	clients    map[*Client]bool
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				client.mu.Lock()
				if !client.closed {
					close(client.send)
					client.closed = true
				}
				client.mu.Unlock()
				delete(h.clients, client)
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent fans an event out to every connected client. Slow clients
// are skipped rather than blocking the engine.
func (h *Hub) BroadcastEvent(eventType string, matchID int, payload interface{}) {
	message, err := json.Marshal(Event{Type: eventType, MatchID: matchID, Payload: payload})
	if err != nil {
		log.Printf("live: failed to marshal %s event for match %d: %v", eventType, matchID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.mu.Lock()
		if client.closed {
			client.mu.Unlock()
			continue
		}
		select {
		case client.send <- message:
		default:
			// Client buffer full; drop the event for this client.
		}
		client.mu.Unlock()
	}
}
