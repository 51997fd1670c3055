package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBufferSize = 32
)

// Client is one authenticated WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
	rooms  map[string]struct{}
}

// TokenVerifier checks a handshake access token and returns the user id
// bound to it.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (string, error)
}

// Handler upgrades authenticated HTTP requests to hub connections.
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, verifier TokenVerifier) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the handshake and, on success, starts the
// connection pumps. The token comes from the HTTP-only cookie first, then
// the Authorization header; without a valid token the handshake is refused.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := handshakeToken(r)
	if token == "" {
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}
	userID, err := h.verifier.VerifyAccessToken(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h.hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
		rooms:  make(map[string]struct{}),
	}
	h.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

func handshakeToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// readPump pumps messages from the WebSocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("realtime: read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("realtime: bad message from %s: %v", c.userID, err)
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch routes one client event. Room membership changes happen only
// here, on explicit request; the server never auto-joins rooms.
func (c *Client) dispatch(msg Message) {
	var ref payloadRef
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &ref); err != nil {
			log.Printf("realtime: bad payload for %s from %s: %v", msg.Event, c.userID, err)
			return
		}
	}

	switch msg.Event {
	case ClientJoinBoard:
		c.hub.Join(c, BoardRoom(ref.BoardID))
	case ClientLeaveBoard:
		c.hub.Leave(c, BoardRoom(ref.BoardID))
	case ClientJoinWorkspace:
		c.hub.Join(c, WorkspaceRoom(ref.WorkspaceID))
	case ClientLeaveWorkspace:
		c.hub.Leave(c, WorkspaceRoom(ref.WorkspaceID))

	case ClientUserUpdatedBoard:
		c.hub.BroadcastToRoom(BoardRoom(ref.ID), c, ServerBoardUpdated, msg.Data)
	case ClientUserDeletedBoard:
		c.hub.BroadcastToRoom(BoardRoom(ref.BoardID), c, ServerUserDeletedBoard, msg.Data)
	case ClientUserAcceptedBoardInvitation:
		c.hub.BroadcastToRoom(BoardRoom(ref.BoardID), c, ServerUserAcceptedBoardInvitation, msg.Data)
	case ClientUserUpdatedWorkspace:
		c.hub.BroadcastToRoom(WorkspaceRoom(ref.WorkspaceID), c, ServerWorkspaceUpdated, msg.Data)
	case ClientUserCreatedWorkspaceBoard:
		c.hub.BroadcastToRoom(WorkspaceRoom(ref.WorkspaceID), c, ServerWorkspaceBoardCreated, msg.Data)
	case ClientUserUpdatedCard:
		c.hub.BroadcastToRoom(BoardRoom(ref.BoardID), c, ServerCardUpdated, msg.Data)

	case ClientUserInvitedToBoard:
		// Sent to every connected client, sender included. Inconsistent with
		// the room-scoped events but matches observed behavior.
		c.hub.BroadcastGlobal(ServerUserInvitedToBoard, msg.Data)

	default:
		log.Printf("realtime: unknown event %q from %s", msg.Event, c.userID)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
