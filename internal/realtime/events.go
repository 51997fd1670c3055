package realtime

import "encoding/json"

// Client → server events. Join/leave payloads carry the room key in
// board_id / workspace_id; mutation echoes carry the mutated entity.
const (
	ClientJoinBoard                   = "CLIENT_JOIN_BOARD"
	ClientLeaveBoard                  = "CLIENT_LEAVE_BOARD"
	ClientUserUpdatedBoard            = "CLIENT_USER_UPDATED_BOARD"
	ClientUserDeletedBoard            = "CLIENT_USER_DELETED_BOARD"
	ClientUserAcceptedBoardInvitation = "CLIENT_USER_ACCEPTED_BOARD_INVITATION"
	ClientJoinWorkspace               = "CLIENT_JOIN_WORKSPACE"
	ClientLeaveWorkspace              = "CLIENT_LEAVE_WORKSPACE"
	ClientUserUpdatedWorkspace        = "CLIENT_USER_UPDATED_WORKSPACE"
	ClientUserCreatedWorkspaceBoard   = "CLIENT_USER_CREATED_WORKSPACE_BOARD"
	ClientUserUpdatedCard             = "CLIENT_USER_UPDATED_CARD"
	ClientUserInvitedToBoard          = "CLIENT_USER_INVITED_TO_BOARD"
)

// Server → client events. Room-scoped and sender-excluded, with one
// exception: SERVER_USER_INVITED_TO_BOARD goes to every connected client.
const (
	ServerBoardUpdated                = "SERVER_BOARD_UPDATED"
	ServerUserDeletedBoard            = "SERVER_USER_DELETED_BOARD"
	ServerUserAcceptedBoardInvitation = "SERVER_USER_ACCEPTED_BOARD_INVITATION"
	ServerWorkspaceUpdated            = "SERVER_WORKSPACE_UPDATED"
	ServerWorkspaceBoardCreated       = "SERVER_WORKSPACE_BOARD_CREATED"
	ServerCardUpdated                 = "SERVER_CARD_UPDATED"
	ServerUserInvitedToBoard          = "SERVER_USER_INVITED_TO_BOARD"
)

// Message is the wire format in both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// payloadRef is the subset of any event payload the hub needs for routing.
type payloadRef struct {
	ID          string `json:"id"`
	BoardID     string `json:"board_id"`
	WorkspaceID string `json:"workspace_id"`
}

func BoardRoom(boardID string) string {
	return "board-" + boardID
}

func WorkspaceRoom(workspaceID string) string {
	return "workspace-" + workspaceID
}
