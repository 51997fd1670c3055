package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/config"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type fakeStore struct {
	getUserByIDFn        func(context.Context, string) (store.User, error)
	getUserByEmailFn     func(context.Context, string) (store.User, error)
	getWorkspaceFn       func(context.Context, string) (store.Workspace, error)
	getWorkspaceAccessFn func(context.Context, string) ([]store.WorkspaceMember, []string, error)
	getBoardFn           func(context.Context, string) (store.Board, error)
	getBoardMembersFn    func(context.Context, string) ([]store.BoardMember, error)
	replaceColumnOrderFn func(context.Context, string, []string) error
	getColumnFn          func(context.Context, string) (store.Column, error)
	replaceCardOrderFn   func(context.Context, string, []string) error
	getCardFn            func(context.Context, string) (store.Card, error)
	insertCardFn         func(context.Context, store.Card) error
	setCardColumnFn      func(context.Context, string, string) error
	softDeleteBoardFn    func(context.Context, string) error
	getInvitationFn      func(context.Context, string) (store.Invitation, error)
	resolveInvitationFn  func(context.Context, string, string) (bool, error)
	addBoardMemberFn     func(context.Context, string, string, string) (bool, error)
	revokeAccessTokenFn  func(context.Context, string, time.Time) error

	revokedJTIs map[string]bool
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, DisplayName: "User", Email: userID + "@example.com"}, nil
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	if f.revokeAccessTokenFn != nil {
		return f.revokeAccessTokenFn(ctx, jti, exp)
	}
	if f.revokedJTIs == nil {
		f.revokedJTIs = make(map[string]bool)
	}
	f.revokedJTIs[jti] = true
	return nil
}
func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	return f.revokedJTIs[jti], nil
}
func (f *fakeStore) InsertWorkspace(context.Context, store.Workspace) error { return nil }
func (f *fakeStore) GetWorkspace(ctx context.Context, workspaceID string) (store.Workspace, error) {
	if f.getWorkspaceFn != nil {
		return f.getWorkspaceFn(ctx, workspaceID)
	}
	return store.Workspace{ID: workspaceID, Title: "Workspace"}, nil
}
func (f *fakeStore) UpdateWorkspace(context.Context, string, string, string) error { return nil }
func (f *fakeStore) SoftDeleteWorkspace(context.Context, string) error             { return nil }
func (f *fakeStore) ListWorkspacesForUser(context.Context, string) ([]store.Workspace, error) {
	return nil, nil
}
func (f *fakeStore) AddWorkspaceMember(context.Context, string, string, string) error { return nil }
func (f *fakeStore) AddWorkspaceGuest(context.Context, string, string) error          { return nil }
func (f *fakeStore) RemoveWorkspaceGuest(context.Context, string, string) error       { return nil }
func (f *fakeStore) GetWorkspaceAccess(ctx context.Context, workspaceID string) ([]store.WorkspaceMember, []string, error) {
	if f.getWorkspaceAccessFn != nil {
		return f.getWorkspaceAccessFn(ctx, workspaceID)
	}
	return nil, nil, nil
}
func (f *fakeStore) InsertBoard(context.Context, store.Board) error { return nil }
func (f *fakeStore) GetBoard(ctx context.Context, boardID string) (store.Board, error) {
	if f.getBoardFn != nil {
		return f.getBoardFn(ctx, boardID)
	}
	return store.Board{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateBoardMeta(context.Context, string, string, string, string, string) error {
	return nil
}
func (f *fakeStore) SoftDeleteBoard(ctx context.Context, boardID string) error {
	if f.softDeleteBoardFn != nil {
		return f.softDeleteBoardFn(ctx, boardID)
	}
	return nil
}
func (f *fakeStore) AddBoardMember(ctx context.Context, boardID, userID, role string) (bool, error) {
	if f.addBoardMemberFn != nil {
		return f.addBoardMemberFn(ctx, boardID, userID, role)
	}
	return true, nil
}
func (f *fakeStore) GetBoardMembers(ctx context.Context, boardID string) ([]store.BoardMember, error) {
	if f.getBoardMembersFn != nil {
		return f.getBoardMembersFn(ctx, boardID)
	}
	return nil, nil
}
func (f *fakeStore) ReplaceColumnOrder(ctx context.Context, boardID string, orderIDs []string) error {
	if f.replaceColumnOrderFn != nil {
		return f.replaceColumnOrderFn(ctx, boardID, orderIDs)
	}
	return nil
}
func (f *fakeStore) ListBoardsForUser(context.Context, string) ([]store.Board, error) {
	return nil, nil
}
func (f *fakeStore) GetBoardForUser(context.Context, string, string) (store.BoardView, error) {
	return store.BoardView{}, sql.ErrNoRows
}
func (f *fakeStore) InsertColumn(context.Context, store.Column) error { return nil }
func (f *fakeStore) GetColumn(ctx context.Context, columnID string) (store.Column, error) {
	if f.getColumnFn != nil {
		return f.getColumnFn(ctx, columnID)
	}
	return store.Column{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateColumnTitle(context.Context, string, string) error { return nil }
func (f *fakeStore) SoftDeleteColumn(context.Context, string) error          { return nil }
func (f *fakeStore) ReplaceCardOrder(ctx context.Context, columnID string, orderIDs []string) error {
	if f.replaceCardOrderFn != nil {
		return f.replaceCardOrderFn(ctx, columnID, orderIDs)
	}
	return nil
}
func (f *fakeStore) ListBoardColumns(context.Context, string) ([]store.Column, error) {
	return nil, nil
}
func (f *fakeStore) InsertCard(ctx context.Context, card store.Card) error {
	if f.insertCardFn != nil {
		return f.insertCardFn(ctx, card)
	}
	return nil
}
func (f *fakeStore) GetCard(ctx context.Context, cardID string) (store.Card, error) {
	if f.getCardFn != nil {
		return f.getCardFn(ctx, cardID)
	}
	return store.Card{}, sql.ErrNoRows
}
func (f *fakeStore) UpdateCardMeta(context.Context, store.Card) error { return nil }
func (f *fakeStore) ArchiveCard(context.Context, string) error        { return nil }
func (f *fakeStore) SetCardColumn(ctx context.Context, cardID, columnID string) error {
	if f.setCardColumnFn != nil {
		return f.setCardColumnFn(ctx, cardID, columnID)
	}
	return nil
}
func (f *fakeStore) InsertCardComment(context.Context, store.CardComment) error { return nil }
func (f *fakeStore) ListCardComments(context.Context, string) ([]store.CardComment, error) {
	return nil, nil
}
func (f *fakeStore) AddCardMember(context.Context, string, string) error    { return nil }
func (f *fakeStore) RemoveCardMember(context.Context, string, string) error { return nil }
func (f *fakeStore) ListCardMembers(context.Context, string) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) InsertInvitation(context.Context, store.Invitation) error { return nil }
func (f *fakeStore) GetInvitation(ctx context.Context, invitationID string) (store.Invitation, error) {
	if f.getInvitationFn != nil {
		return f.getInvitationFn(ctx, invitationID)
	}
	return store.Invitation{}, sql.ErrNoRows
}
func (f *fakeStore) GetInvitationByToken(context.Context, string) (store.Invitation, error) {
	return store.Invitation{}, sql.ErrNoRows
}
func (f *fakeStore) ListInvitationsForInvitee(context.Context, string) ([]store.Invitation, error) {
	return nil, nil
}
func (f *fakeStore) ResolveInvitation(ctx context.Context, invitationID, status string) (bool, error) {
	if f.resolveInvitationFn != nil {
		return f.resolveInvitationFn(ctx, invitationID, status)
	}
	return false, nil
}
func (f *fakeStore) Ping(context.Context) error { return nil }

type fakeSessions struct {
	saved map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{saved: make(map[string]store.User)}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash string, user store.User, _ time.Time) error {
	f.saved[tokenHash] = user
	return nil
}
func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	user, ok := f.saved[tokenHash]
	if !ok {
		return store.User{}, errors.New("token not found or expired")
	}
	return user, nil
}
func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.saved, tokenHash)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}
}

func newTestService(fs *fakeStore) (*Service, *fakeSessions) {
	sessions := newFakeSessions()
	return New(testConfig(), fs, sessions, nil, nil), sessions
}

func expectStatus(t *testing.T, err error, status int) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != status {
		t.Fatalf("status = %d, want %d (code %s)", domainErr.Status, status, domainErr.Code)
	}
}

// boardFixture wires a board with an admin, a member, and an observer.
func boardFixture(boardID string) *fakeStore {
	return &fakeStore{
		getBoardFn: func(_ context.Context, id string) (store.Board, error) {
			if id != boardID {
				return store.Board{}, sql.ErrNoRows
			}
			return store.Board{ID: boardID, Title: "Board"}, nil
		},
		getBoardMembersFn: func(context.Context, string) ([]store.BoardMember, error) {
			return []store.BoardMember{
				{BoardID: boardID, UserID: "user_admin", Role: string(rbac.BoardAdmin)},
				{BoardID: boardID, UserID: "user_member", Role: string(rbac.BoardMember)},
				{BoardID: boardID, UserID: "user_observer", Role: string(rbac.BoardObserver)},
			}, nil
		},
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{}
	svc, sessions := newTestService(fs)

	session, err := svc.CreateSession(ctx, "user_1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("expected token pair")
	}

	parsed, err := svc.SessionFromToken(ctx, session.Token)
	if err != nil {
		t.Fatalf("session from token: %v", err)
	}
	if parsed.UserID != "user_1" {
		t.Fatalf("user = %q, want user_1", parsed.UserID)
	}

	// Refresh rotates: the old refresh token must stop working.
	renewed, err := svc.Refresh(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := svc.Refresh(ctx, session.RefreshToken); err == nil {
		t.Fatal("expected rotated refresh token to be rejected")
	}

	// Logout revokes the access token and the refresh token.
	if err := svc.Logout(ctx, renewed, renewed.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, renewed.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected revoked token rejection, got %v", err)
	}
	if len(sessions.saved) != 0 {
		t.Fatalf("expected no refresh sessions left, have %d", len(sessions.saved))
	}
}

func TestLogoutSurfacesRevocationFailure(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{
		revokeAccessTokenFn: func(context.Context, string, time.Time) error {
			return errors.New("revocation store down")
		},
	}
	svc, _ := newTestService(fs)

	session, err := svc.CreateSession(ctx, "user_1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := svc.Logout(ctx, session, session.RefreshToken); err == nil {
		t.Fatal("expected logout to report the failed access-token revocation")
	}
}

func TestSessionFromTokenExpired(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.AccessTTL = -time.Minute
	svc := New(cfg, &fakeStore{}, newFakeSessions(), nil, nil)

	session, err := svc.CreateSession(ctx, "user_1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, session.Token); !errors.Is(err, auth.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestCreateCardPermissionGating(t *testing.T) {
	ctx := context.Background()
	fs := boardFixture("board_1")
	fs.getColumnFn = func(_ context.Context, id string) (store.Column, error) {
		return store.Column{ID: id, BoardID: "board_1", CardOrderIDs: []string{}}, nil
	}

	var appended []string
	fs.replaceCardOrderFn = func(_ context.Context, _ string, orderIDs []string) error {
		appended = orderIDs
		return nil
	}
	svc, _ := newTestService(fs)

	_, err := svc.CreateCard(ctx, "user_observer", "col_1", "Task", "")
	expectStatus(t, err, 403)

	card, err := svc.CreateCard(ctx, "user_member", "col_1", "Task", "details")
	if err != nil {
		t.Fatalf("member create card: %v", err)
	}
	if len(appended) != 1 || appended[0] != card.ID {
		t.Fatalf("card id not appended to column ordering: %v", appended)
	}
}

func TestWorkspaceRoleInheritance(t *testing.T) {
	ctx := context.Background()
	workspaceID := "ws_1"
	fs := &fakeStore{
		getBoardFn: func(_ context.Context, id string) (store.Board, error) {
			return store.Board{ID: id, WorkspaceID: &workspaceID}, nil
		},
		getBoardMembersFn: func(context.Context, string) ([]store.BoardMember, error) {
			return nil, nil
		},
		getWorkspaceAccessFn: func(context.Context, string) ([]store.WorkspaceMember, []string, error) {
			members := []store.WorkspaceMember{
				{WorkspaceID: workspaceID, UserID: "user_wsadmin", Role: string(rbac.WorkspaceAdmin)},
				{WorkspaceID: workspaceID, UserID: "user_normal", Role: string(rbac.WorkspaceNormal)},
			}
			return members, []string{"user_guest"}, nil
		},
	}
	deleted := false
	fs.softDeleteBoardFn = func(context.Context, string) error {
		deleted = true
		return nil
	}
	svc, _ := newTestService(fs)

	// Workspace Admin inherits board Admin and may delete.
	if err := svc.DeleteBoard(ctx, "user_wsadmin", "board_1"); err != nil {
		t.Fatalf("workspace admin delete: %v", err)
	}
	if !deleted {
		t.Fatal("expected soft delete")
	}

	// Normal members inherit Member, which cannot delete.
	expectStatus(t, svc.DeleteBoard(ctx, "user_normal", "board_1"), 403)

	// Guests inherit nothing.
	expectStatus(t, svc.DeleteBoard(ctx, "user_guest", "board_1"), 403)
	_, err := svc.CreateBoard(ctx, "user_guest", "Title", "", "", "", &workspaceID)
	expectStatus(t, err, 403)
}

func TestReorderColumns(t *testing.T) {
	ctx := context.Background()
	colA := util.NewID("col")
	colB := util.NewID("col")
	colC := util.NewID("col")

	fs := boardFixture("board_1")
	base := fs.getBoardFn
	fs.getBoardFn = func(ctx context.Context, id string) (store.Board, error) {
		board, err := base(ctx, id)
		if err != nil {
			return store.Board{}, err
		}
		board.ColumnOrderIDs = []string{colA, colB, colC}
		return board, nil
	}
	var replaced []string
	fs.replaceColumnOrderFn = func(_ context.Context, _ string, orderIDs []string) error {
		replaced = orderIDs
		return nil
	}
	svc, _ := newTestService(fs)

	if err := svc.ReorderColumns(ctx, "user_member", "board_1", []string{colC, colA, colB}); err != nil {
		t.Fatalf("valid permutation: %v", err)
	}
	if len(replaced) != 3 || replaced[0] != colC {
		t.Fatalf("order not replaced: %v", replaced)
	}

	// Dropping an id is not a reorder.
	expectStatus(t, svc.ReorderColumns(ctx, "user_member", "board_1", []string{colA, colB}), 409)

	// A foreign id is not a reorder.
	expectStatus(t, svc.ReorderColumns(ctx, "user_member", "board_1", []string{colA, colB, util.NewID("col")}), 409)

	// Malformed ids fail validation before the permutation check.
	expectStatus(t, svc.ReorderColumns(ctx, "user_member", "board_1", []string{colA, colB, "not-an-id"}), 422)

	// Observers cannot reorder.
	expectStatus(t, svc.ReorderColumns(ctx, "user_observer", "board_1", []string{colC, colA, colB}), 403)
}

func TestMoveCard(t *testing.T) {
	ctx := context.Background()
	cardID := util.NewID("card")
	card2 := util.NewID("card")
	card3 := util.NewID("card")

	fs := boardFixture("board_1")
	fs.getCardFn = func(context.Context, string) (store.Card, error) {
		return store.Card{ID: cardID, BoardID: "board_1", ColumnID: "col_src"}, nil
	}
	fs.getColumnFn = func(_ context.Context, id string) (store.Column, error) {
		switch id {
		case "col_src":
			return store.Column{ID: id, BoardID: "board_1", CardOrderIDs: []string{cardID, card2}}, nil
		case "col_dst":
			return store.Column{ID: id, BoardID: "board_1", CardOrderIDs: []string{card3}}, nil
		case "col_other":
			return store.Column{ID: id, BoardID: "board_2", CardOrderIDs: []string{}}, nil
		default:
			return store.Column{}, sql.ErrNoRows
		}
	}

	var movedTo string
	fs.setCardColumnFn = func(_ context.Context, _ string, columnID string) error {
		movedTo = columnID
		return nil
	}
	orders := map[string][]string{}
	fs.replaceCardOrderFn = func(_ context.Context, columnID string, orderIDs []string) error {
		orders[columnID] = orderIDs
		return nil
	}
	svc, _ := newTestService(fs)

	err := svc.MoveCard(ctx, "user_member", cardID, "col_dst", []string{card2}, []string{card3, cardID})
	if err != nil {
		t.Fatalf("move card: %v", err)
	}
	if movedTo != "col_dst" {
		t.Fatalf("card moved to %q, want col_dst", movedTo)
	}
	if len(orders["col_src"]) != 1 || orders["col_src"][0] != card2 {
		t.Fatalf("source order = %v", orders["col_src"])
	}
	if len(orders["col_dst"]) != 2 || orders["col_dst"][1] != cardID {
		t.Fatalf("target order = %v", orders["col_dst"])
	}

	// Target column on another board is rejected.
	expectStatus(t, svc.MoveCard(ctx, "user_member", cardID, "col_other", []string{card2}, []string{cardID}), 422)

	// The target ordering must contain exactly the old cards plus the moved
	// one.
	expectStatus(t, svc.MoveCard(ctx, "user_member", cardID, "col_dst", []string{card2}, []string{cardID}), 409)

	// Moving within the same column is a reorder, not a move.
	expectStatus(t, svc.MoveCard(ctx, "user_member", cardID, "col_src", []string{card2, cardID}, nil), 422)
}

func TestArchiveCard(t *testing.T) {
	ctx := context.Background()
	cardID := util.NewID("card")
	other := util.NewID("card")

	newFixture := func() *fakeStore {
		fs := boardFixture("board_1")
		fs.getCardFn = func(context.Context, string) (store.Card, error) {
			return store.Card{ID: cardID, BoardID: "board_1", ColumnID: "col_1"}, nil
		}
		fs.getColumnFn = func(_ context.Context, id string) (store.Column, error) {
			return store.Column{ID: id, BoardID: "board_1", CardOrderIDs: []string{cardID, other}}, nil
		}
		return fs
	}

	t.Run("removes the card from the column ordering", func(t *testing.T) {
		fs := newFixture()
		var replaced []string
		fs.replaceCardOrderFn = func(_ context.Context, _ string, orderIDs []string) error {
			replaced = orderIDs
			return nil
		}
		svc, _ := newTestService(fs)

		if err := svc.ArchiveCard(ctx, "user_member", cardID); err != nil {
			t.Fatalf("archive: %v", err)
		}
		if len(replaced) != 1 || replaced[0] != other {
			t.Fatalf("ordering after archive = %v, want [%s]", replaced, other)
		}
	})

	// A lost ordering write strands the archived card's id in
	// card_order_ids, which then rejects every permutation of the visible
	// cards. The caller must see the failure.
	t.Run("failed ordering write fails the request", func(t *testing.T) {
		fs := newFixture()
		writeErr := errors.New("write failed")
		fs.replaceCardOrderFn = func(context.Context, string, []string) error {
			return writeErr
		}
		svc, _ := newTestService(fs)

		if err := svc.ArchiveCard(ctx, "user_member", cardID); !errors.Is(err, writeErr) {
			t.Fatalf("expected the ordering write error, got %v", err)
		}
	})
}

func TestRespondToInvitation(t *testing.T) {
	ctx := context.Background()

	t.Run("accept pending adds membership", func(t *testing.T) {
		fs := &fakeStore{
			getInvitationFn: func(context.Context, string) (store.Invitation, error) {
				return store.Invitation{
					ID: "inv_1", InviteeID: "user_b", BoardID: "board_1",
					Status: store.InvitationPending,
				}, nil
			},
			resolveInvitationFn: func(_ context.Context, _, status string) (bool, error) {
				if status != store.InvitationAccepted {
					t.Fatalf("status = %q", status)
				}
				return true, nil
			},
		}
		var addedRole string
		fs.addBoardMemberFn = func(_ context.Context, _, userID, role string) (bool, error) {
			if userID != "user_b" {
				t.Fatalf("member = %q", userID)
			}
			addedRole = role
			return true, nil
		}
		svc, _ := newTestService(fs)

		invitation, err := svc.RespondToInvitation(ctx, "user_b", "inv_1", true)
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		if invitation.Status != store.InvitationAccepted {
			t.Fatalf("status = %q", invitation.Status)
		}
		if addedRole != string(rbac.BoardMember) {
			t.Fatalf("role = %q, want Member", addedRole)
		}
	})

	t.Run("accepting twice converges", func(t *testing.T) {
		added := 0
		fs := &fakeStore{
			getInvitationFn: func(context.Context, string) (store.Invitation, error) {
				return store.Invitation{
					ID: "inv_1", InviteeID: "user_b", BoardID: "board_1",
					Status: store.InvitationAccepted,
				}, nil
			},
			addBoardMemberFn: func(context.Context, string, string, string) (bool, error) {
				added++
				// Membership already exists.
				return false, nil
			},
		}
		svc, _ := newTestService(fs)

		if _, err := svc.RespondToInvitation(ctx, "user_b", "inv_1", true); err != nil {
			t.Fatalf("repeat accept: %v", err)
		}
		if added != 1 {
			t.Fatalf("AddBoardMember calls = %d, want 1", added)
		}
	})

	t.Run("rejecting a resolved invitation conflicts", func(t *testing.T) {
		fs := &fakeStore{
			getInvitationFn: func(context.Context, string) (store.Invitation, error) {
				return store.Invitation{
					ID: "inv_1", InviteeID: "user_b", BoardID: "board_1",
					Status: store.InvitationAccepted,
				}, nil
			},
			resolveInvitationFn: func(context.Context, string, string) (bool, error) {
				return false, nil
			},
		}
		svc, _ := newTestService(fs)

		_, err := svc.RespondToInvitation(ctx, "user_b", "inv_1", false)
		expectStatus(t, err, 409)
	})

	t.Run("only the invitee may respond", func(t *testing.T) {
		fs := &fakeStore{
			getInvitationFn: func(context.Context, string) (store.Invitation, error) {
				return store.Invitation{ID: "inv_1", InviteeID: "user_b", Status: store.InvitationPending}, nil
			},
		}
		svc, _ := newTestService(fs)

		_, err := svc.RespondToInvitation(ctx, "user_intruder", "inv_1", true)
		expectStatus(t, err, 403)
	})
}

func TestCreateWorkspaceValidation(t *testing.T) {
	svc, _ := newTestService(&fakeStore{})
	_, err := svc.CreateWorkspace(context.Background(), "user_1", "   ", "")
	expectStatus(t, err, 422)
}

func TestExplicitOverrideBeatsInheritance(t *testing.T) {
	ctx := context.Background()
	workspaceID := "ws_1"
	fs := &fakeStore{
		getBoardFn: func(_ context.Context, id string) (store.Board, error) {
			return store.Board{ID: id, WorkspaceID: &workspaceID}, nil
		},
		// Explicitly demoted to Observer on this board.
		getBoardMembersFn: func(context.Context, string) ([]store.BoardMember, error) {
			return []store.BoardMember{
				{BoardID: "board_1", UserID: "user_demoted", Role: string(rbac.BoardObserver)},
			}, nil
		},
		getWorkspaceAccessFn: func(context.Context, string) ([]store.WorkspaceMember, []string, error) {
			return []store.WorkspaceMember{
				{WorkspaceID: workspaceID, UserID: "user_demoted", Role: string(rbac.WorkspaceAdmin)},
			}, nil, nil
		},
		getColumnFn: func(_ context.Context, id string) (store.Column, error) {
			return store.Column{ID: id, BoardID: "board_1", CardOrderIDs: []string{}}, nil
		},
	}
	svc, _ := newTestService(fs)

	// The explicit Observer role wins even though the workspace role would
	// inherit Admin.
	_, err := svc.CreateCard(ctx, "user_demoted", "col_1", "Task", "")
	expectStatus(t, err, 403)
}
