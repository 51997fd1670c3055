package realtime

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(hub *Hub, userID string) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
		rooms:  make(map[string]struct{}),
	}
}

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case payload := <-c.send:
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
		return Message{}
	}
}

func TestRoomBroadcastExcludesSender(t *testing.T) {
	presence := NewPresence()
	hub := NewHub(presence)
	go hub.Run()

	sender := newTestClient(hub, "user-a")
	receiver := newTestClient(hub, "user-b")
	outsider := newTestClient(hub, "user-c")

	hub.Register(sender)
	hub.Register(receiver)
	hub.Register(outsider)

	room := BoardRoom("board-x")
	hub.Join(sender, room)
	hub.Join(receiver, room)

	data := json.RawMessage(`{"id":"board-x","title":"Renamed"}`)
	hub.BroadcastToRoom(room, sender, ServerBoardUpdated, data)

	msg := recvMessage(t, receiver)
	if msg.Event != ServerBoardUpdated {
		t.Fatalf("receiver got event %q, want %q", msg.Event, ServerBoardUpdated)
	}

	// A follow-up global broadcast flushes per-client queues in order: if the
	// sender or the outsider had received the room echo, it would arrive
	// before the global event.
	hub.BroadcastGlobal(ServerUserInvitedToBoard, nil)
	if got := recvMessage(t, sender); got.Event != ServerUserInvitedToBoard {
		t.Fatalf("sender received its own room echo: %q", got.Event)
	}
	if got := recvMessage(t, outsider); got.Event != ServerUserInvitedToBoard {
		t.Fatalf("outsider received room-scoped event: %q", got.Event)
	}
}

func TestGlobalBroadcastReachesEveryone(t *testing.T) {
	presence := NewPresence()
	hub := NewHub(presence)
	go hub.Run()

	a := newTestClient(hub, "user-a")
	b := newTestClient(hub, "user-b")
	hub.Register(a)
	hub.Register(b)

	hub.BroadcastGlobal(ServerUserInvitedToBoard, json.RawMessage(`{"board_id":"b1"}`))

	for _, c := range []*Client{a, b} {
		if msg := recvMessage(t, c); msg.Event != ServerUserInvitedToBoard {
			t.Fatalf("client %s got %q", c.userID, msg.Event)
		}
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	presence := NewPresence()
	hub := NewHub(presence)
	go hub.Run()

	a := newTestClient(hub, "user-a")
	b := newTestClient(hub, "user-b")
	hub.Register(a)
	hub.Register(b)

	room := WorkspaceRoom("ws-1")
	hub.Join(a, room)
	hub.Join(b, room)
	hub.Leave(b, room)

	hub.BroadcastToRoom(room, a, ServerWorkspaceUpdated, nil)
	hub.BroadcastGlobal(ServerUserInvitedToBoard, nil)

	if msg := recvMessage(t, b); msg.Event != ServerUserInvitedToBoard {
		t.Fatalf("client received event after leaving room: %q", msg.Event)
	}
}

func TestPresenceTracksRegistration(t *testing.T) {
	presence := NewPresence()
	hub := NewHub(presence)
	go hub.Run()

	client := newTestClient(hub, "user-a")
	hub.Register(client)
	// Register is synchronous with the hub loop picking it up; poll briefly
	// for the presence insert.
	waitFor(t, func() bool { return presence.Online("user-a") })

	hub.Unregister(client)
	waitFor(t, func() bool { return !presence.Online("user-a") })
}

func TestDispatchRoutesCardUpdate(t *testing.T) {
	presence := NewPresence()
	hub := NewHub(presence)
	go hub.Run()

	sender := newTestClient(hub, "user-a")
	receiver := newTestClient(hub, "user-b")
	hub.Register(sender)
	hub.Register(receiver)
	hub.Join(receiver, BoardRoom("b1"))

	sender.dispatch(Message{
		Event: ClientUserUpdatedCard,
		Data:  json.RawMessage(`{"id":"card-1","board_id":"b1","title":"Ship it"}`),
	})

	msg := recvMessage(t, receiver)
	if msg.Event != ServerCardUpdated {
		t.Fatalf("got event %q, want %q", msg.Event, ServerCardUpdated)
	}
	var ref payloadRef
	if err := json.Unmarshal(msg.Data, &ref); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if ref.ID != "card-1" {
		t.Fatalf("payload id = %q, want card-1", ref.ID)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
