package rbac

import "testing"

func TestResolveEffectiveBoardRole(t *testing.T) {
	board := BoardAccess{Members: []BoardMembership{
		{UserID: "u-explicit", Role: BoardObserver},
	}}
	workspace := &WorkspaceAccess{
		Members: []WorkspaceMembership{
			{UserID: "u-explicit", Role: WorkspaceAdmin},
			{UserID: "u-admin", Role: WorkspaceAdmin},
			{UserID: "u-normal", Role: WorkspaceNormal},
		},
		Guests: []string{"u-guest"},
	}

	cases := []struct {
		name      string
		workspace *WorkspaceAccess
		userID    string
		wantRole  BoardRole
		wantOK    bool
	}{
		{name: "explicit role wins over workspace admin", workspace: workspace, userID: "u-explicit", wantRole: BoardObserver, wantOK: true},
		{name: "workspace admin inherits board admin", workspace: workspace, userID: "u-admin", wantRole: BoardAdmin, wantOK: true},
		{name: "workspace normal inherits board member", workspace: workspace, userID: "u-normal", wantRole: BoardMember, wantOK: true},
		{name: "guest does not inherit", workspace: workspace, userID: "u-guest", wantOK: false},
		{name: "stranger has no role", workspace: workspace, userID: "u-stranger", wantOK: false},
		{name: "no workspace returns explicit", workspace: nil, userID: "u-explicit", wantRole: BoardObserver, wantOK: true},
		{name: "no workspace no explicit", workspace: nil, userID: "u-normal", wantOK: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			role, ok := ResolveEffectiveBoardRole(board, tc.workspace, tc.userID)
			if ok != tc.wantOK {
				t.Fatalf("ResolveEffectiveBoardRole() ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && role != tc.wantRole {
				t.Fatalf("ResolveEffectiveBoardRole() = %q, want %q", role, tc.wantRole)
			}
		})
	}
}

func TestHasBoardPermissionMatchesResolvedRole(t *testing.T) {
	board := BoardAccess{Members: []BoardMembership{
		{UserID: "u-observer", Role: BoardObserver},
		{UserID: "u-member", Role: BoardMember},
		{UserID: "u-admin", Role: BoardAdmin},
	}}

	cases := []struct {
		name   string
		userID string
		perm   BoardPermission
		allow  bool
	}{
		{name: "observer views", userID: "u-observer", perm: ViewBoard, allow: true},
		{name: "observer cannot create cards", userID: "u-observer", perm: CreateCard, allow: false},
		{name: "member creates cards", userID: "u-member", perm: CreateCard, allow: true},
		{name: "member cannot delete board", userID: "u-member", perm: DeleteBoard, allow: false},
		{name: "member cannot manage members", userID: "u-member", perm: ManageBoardMembers, allow: false},
		{name: "admin deletes board", userID: "u-admin", perm: DeleteBoard, allow: true},
		{name: "no role no permission", userID: "u-none", perm: ViewBoard, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasBoardPermission(tc.userID, board, tc.perm, nil); got != tc.allow {
				t.Fatalf("HasBoardPermission(%q, %q) = %v, want %v", tc.userID, tc.perm, got, tc.allow)
			}
		})
	}
}

func TestInheritedMemberScenario(t *testing.T) {
	// Workspace member with role Normal, board has no explicit members.
	board := BoardAccess{}
	workspace := &WorkspaceAccess{Members: []WorkspaceMembership{
		{UserID: "u-1", Role: WorkspaceNormal},
	}}

	role, ok := ResolveEffectiveBoardRole(board, workspace, "u-1")
	if !ok || role != BoardMember {
		t.Fatalf("ResolveEffectiveBoardRole() = %q, %v, want Member", role, ok)
	}
	if HasBoardPermission("u-1", board, DeleteBoard, workspace) {
		t.Fatal("inherited Member must not delete the board")
	}
	if !HasBoardPermission("u-1", board, CreateCard, workspace) {
		t.Fatal("inherited Member must be able to create cards")
	}
}

func TestHasWorkspacePermission(t *testing.T) {
	workspace := WorkspaceAccess{
		Members: []WorkspaceMembership{
			{UserID: "u-admin", Role: WorkspaceAdmin},
			{UserID: "u-normal", Role: WorkspaceNormal},
		},
		Guests: []string{"u-guest"},
	}

	cases := []struct {
		name   string
		userID string
		perm   WorkspacePermission
		allow  bool
	}{
		{name: "admin deletes workspace", userID: "u-admin", perm: DeleteWorkspace, allow: true},
		{name: "admin manages guests", userID: "u-admin", perm: ManageWorkspaceGuests, allow: true},
		{name: "normal creates boards", userID: "u-normal", perm: CreateWorkspaceBoard, allow: true},
		{name: "normal cannot delete workspace", userID: "u-normal", perm: DeleteWorkspace, allow: false},
		{name: "guest always fails", userID: "u-guest", perm: ViewWorkspace, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasWorkspacePermission(tc.userID, workspace, tc.perm); got != tc.allow {
				t.Fatalf("HasWorkspacePermission(%q, %q) = %v, want %v", tc.userID, tc.perm, got, tc.allow)
			}
		})
	}
}

func TestParseRoles(t *testing.T) {
	if _, ok := ParseBoardRole("Admin"); !ok {
		t.Fatal("ParseBoardRole rejected Admin")
	}
	if _, ok := ParseBoardRole("Owner"); ok {
		t.Fatal("ParseBoardRole accepted unknown role")
	}
	if _, ok := ParseWorkspaceRole("Normal"); !ok {
		t.Fatal("ParseWorkspaceRole rejected Normal")
	}
	if _, ok := ParseWorkspaceRole("Member"); ok {
		t.Fatal("ParseWorkspaceRole accepted board-scope role")
	}
}
