// Package rbac holds the closed role and permission enumerations for the
// two scopes (workspace, board) and resolves a user's effective board role.
package rbac

type WorkspaceRole string
type BoardRole string
type WorkspacePermission string
type BoardPermission string

const (
	WorkspaceAdmin  WorkspaceRole = "Admin"
	WorkspaceNormal WorkspaceRole = "Normal"
)

const (
	BoardAdmin    BoardRole = "Admin"
	BoardMember   BoardRole = "Member"
	BoardObserver BoardRole = "Observer"
)

const (
	ViewWorkspace          WorkspacePermission = "workspace:view"
	UpdateWorkspace        WorkspacePermission = "workspace:update"
	DeleteWorkspace        WorkspacePermission = "workspace:delete"
	CreateWorkspaceBoard   WorkspacePermission = "workspace:create_board"
	JoinWorkspaceBoard     WorkspacePermission = "workspace:join_board"
	ManageWorkspaceMembers WorkspacePermission = "workspace:manage_members"
	ManageWorkspaceGuests  WorkspacePermission = "workspace:manage_guests"
)

const (
	ViewBoard          BoardPermission = "board:view"
	UpdateBoard        BoardPermission = "board:update"
	DeleteBoard        BoardPermission = "board:delete"
	ManageBoardMembers BoardPermission = "board:manage_members"
	InviteToBoard      BoardPermission = "board:invite"
	CreateColumn       BoardPermission = "board:create_column"
	UpdateColumn       BoardPermission = "board:update_column"
	ReorderColumns     BoardPermission = "board:reorder_columns"
	CreateCard         BoardPermission = "board:create_card"
	UpdateCard         BoardPermission = "board:update_card"
	MoveCard           BoardPermission = "board:move_card"
	CommentOnCard      BoardPermission = "board:comment"
)

// The permission tables are fixed at compile time. Changing them is a
// deployment, not a request-time operation.
var workspaceRolePermissions = map[WorkspaceRole]map[WorkspacePermission]struct{}{
	WorkspaceAdmin: permSet(
		ViewWorkspace, UpdateWorkspace, DeleteWorkspace,
		CreateWorkspaceBoard, JoinWorkspaceBoard,
		ManageWorkspaceMembers, ManageWorkspaceGuests,
	),
	WorkspaceNormal: permSet(
		ViewWorkspace, CreateWorkspaceBoard, JoinWorkspaceBoard,
	),
}

var boardRolePermissions = map[BoardRole]map[BoardPermission]struct{}{
	BoardAdmin: boardPermSet(
		ViewBoard, UpdateBoard, DeleteBoard, ManageBoardMembers, InviteToBoard,
		CreateColumn, UpdateColumn, ReorderColumns,
		CreateCard, UpdateCard, MoveCard, CommentOnCard,
	),
	BoardMember: boardPermSet(
		ViewBoard, UpdateBoard, InviteToBoard,
		CreateColumn, UpdateColumn, ReorderColumns,
		CreateCard, UpdateCard, MoveCard, CommentOnCard,
	),
	BoardObserver: boardPermSet(
		ViewBoard,
	),
}

func permSet(perms ...WorkspacePermission) map[WorkspacePermission]struct{} {
	set := make(map[WorkspacePermission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func boardPermSet(perms ...BoardPermission) map[BoardPermission]struct{} {
	set := make(map[BoardPermission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func ParseWorkspaceRole(role string) (WorkspaceRole, bool) {
	switch WorkspaceRole(role) {
	case WorkspaceAdmin, WorkspaceNormal:
		return WorkspaceRole(role), true
	default:
		return "", false
	}
}

func ParseBoardRole(role string) (BoardRole, bool) {
	switch BoardRole(role) {
	case BoardAdmin, BoardMember, BoardObserver:
		return BoardRole(role), true
	default:
		return "", false
	}
}

// BoardMembership is an explicit board-level membership entry.
type BoardMembership struct {
	UserID string
	Role   BoardRole
}

// WorkspaceMembership is a workspace-level membership entry. Guests are
// tracked separately on WorkspaceAccess and carry no role.
type WorkspaceMembership struct {
	UserID string
	Role   WorkspaceRole
}

type BoardAccess struct {
	Members []BoardMembership
}

type WorkspaceAccess struct {
	Members []WorkspaceMembership
	Guests  []string
}

// respectExplicitOverride keeps an explicit board role authoritative over any
// inherited workspace role. The false branch is intentionally unreachable.
const respectExplicitOverride = true

func (b BoardAccess) explicitRole(userID string) (BoardRole, bool) {
	for _, m := range b.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

func (w WorkspaceAccess) memberRole(userID string) (WorkspaceRole, bool) {
	for _, m := range w.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

func (w WorkspaceAccess) isGuest(userID string) bool {
	for _, g := range w.Guests {
		if g == userID {
			return true
		}
	}
	return false
}

// ResolveEffectiveBoardRole computes the role governing userID's access to a
// board. An explicit board role always wins; a workspace role only fills the
// gap when no explicit role exists (workspace Admin inherits board Admin,
// Normal inherits Member). Guests never inherit.
func ResolveEffectiveBoardRole(board BoardAccess, workspace *WorkspaceAccess, userID string) (BoardRole, bool) {
	explicit, hasExplicit := board.explicitRole(userID)
	if hasExplicit && respectExplicitOverride {
		return explicit, true
	}
	if workspace == nil {
		return explicit, hasExplicit
	}
	if workspace.isGuest(userID) {
		return explicit, hasExplicit
	}
	wsRole, isMember := workspace.memberRole(userID)
	if !isMember {
		return explicit, hasExplicit
	}
	if hasExplicit {
		// Inheritance only ever fills a gap, never overrides.
		return explicit, true
	}
	switch wsRole {
	case WorkspaceAdmin:
		return BoardAdmin, true
	case WorkspaceNormal:
		return BoardMember, true
	default:
		return "", false
	}
}

// HasBoardPermission resolves the effective role and checks a single
// permission against its set. No role means no permission.
func HasBoardPermission(userID string, board BoardAccess, perm BoardPermission, workspace *WorkspaceAccess) bool {
	role, ok := ResolveEffectiveBoardRole(board, workspace, userID)
	if !ok {
		return false
	}
	_, allowed := boardRolePermissions[role][perm]
	return allowed
}

// HasWorkspacePermission checks direct workspace membership only. Guests
// carry no workspace role and always fail here.
func HasWorkspacePermission(userID string, workspace WorkspaceAccess, perm WorkspacePermission) bool {
	role, ok := workspace.memberRole(userID)
	if !ok {
		return false
	}
	_, allowed := workspaceRolePermissions[role][perm]
	return allowed
}

// BoardRolePermissions returns a copy of the permission set for role.
func BoardRolePermissions(role BoardRole) []BoardPermission {
	set := boardRolePermissions[role]
	perms := make([]BoardPermission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	return perms
}

// WorkspaceRolePermissions returns a copy of the permission set for role.
func WorkspaceRolePermissions(role WorkspaceRole) []WorkspacePermission {
	set := workspaceRolePermissions[role]
	perms := make([]WorkspacePermission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	return perms
}
