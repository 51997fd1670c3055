// Package realtime relays accepted mutation events between clients connected
// to the same board or workspace room over WebSocket.
package realtime

import (
	"encoding/json"
	"log"
)

type joinRequest struct {
	client *Client
	room   string
}

type broadcastRequest struct {
	// room is empty for a global broadcast.
	room string
	// exclude is the sender; nil means deliver to everyone.
	exclude *Client
	payload []byte
}

// Hub maintains the set of connected clients and their room memberships, and
// fans broadcasts out to room members. Delivery is fire-and-forget,
// at-most-once; a client whose send buffer is full is dropped.
type Hub struct {
	presence *Presence

	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	leave      chan joinRequest
	broadcast  chan broadcastRequest
}

func NewHub(presence *Presence) *Hub {
	return &Hub{
		presence:   presence,
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		leave:      make(chan joinRequest),
		broadcast:  make(chan broadcastRequest),
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) Join(client *Client, room string) {
	h.join <- joinRequest{client: client, room: room}
}

func (h *Hub) Leave(client *Client, room string) {
	h.leave <- joinRequest{client: client, room: room}
}

// BroadcastToRoom delivers an event to every room member except the sender.
func (h *Hub) BroadcastToRoom(room string, sender *Client, event string, data json.RawMessage) {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		log.Printf("realtime: marshal %s: %v", event, err)
		return
	}
	h.broadcast <- broadcastRequest{room: room, exclude: sender, payload: payload}
}

// BroadcastGlobal delivers an event to every connected client, the sender
// included. Only SERVER_USER_INVITED_TO_BOARD uses this path.
func (h *Hub) BroadcastGlobal(event string, data json.RawMessage) {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		log.Printf("realtime: marshal %s: %v", event, err)
		return
	}
	h.broadcast <- broadcastRequest{payload: payload}
}

// Run owns all hub state. Everything mutating clients or rooms goes through
// this loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.presence.Add(client.userID, client)
			log.Printf("realtime: client connected: %s", client.userID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			h.drop(client)
			log.Printf("realtime: client disconnected: %s", client.userID)

		case req := <-h.join:
			members := h.rooms[req.room]
			if members == nil {
				members = make(map[*Client]struct{})
				h.rooms[req.room] = members
			}
			members[req.client] = struct{}{}
			req.client.rooms[req.room] = struct{}{}

		case req := <-h.leave:
			h.leaveRoom(req.client, req.room)

		case req := <-h.broadcast:
			h.deliver(req)
		}
	}
}

func (h *Hub) deliver(req broadcastRequest) {
	var targets map[*Client]struct{}
	if req.room == "" {
		targets = h.clients
	} else {
		targets = h.rooms[req.room]
	}
	for client := range targets {
		if client == req.exclude {
			continue
		}
		select {
		case client.send <- req.payload:
		default:
			// Send buffer full; assume the peer is gone.
			log.Printf("realtime: send buffer full, dropping client: %s", client.userID)
			h.drop(client)
		}
	}
}

func (h *Hub) leaveRoom(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

func (h *Hub) drop(client *Client) {
	for room := range client.rooms {
		h.leaveRoom(client, room)
	}
	delete(h.clients, client)
	h.presence.Remove(client.userID, client)
	close(client.send)
}
