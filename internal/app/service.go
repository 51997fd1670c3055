// Package app is the service layer: it owns sessions, permission checks, and
// the orchestration between the relational store, the session store, search,
// and mail.
package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/config"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)

	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	InsertWorkspace(context.Context, store.Workspace) error
	GetWorkspace(context.Context, string) (store.Workspace, error)
	UpdateWorkspace(context.Context, string, string, string) error
	SoftDeleteWorkspace(context.Context, string) error
	ListWorkspacesForUser(context.Context, string) ([]store.Workspace, error)
	AddWorkspaceMember(context.Context, string, string, string) error
	AddWorkspaceGuest(context.Context, string, string) error
	RemoveWorkspaceGuest(context.Context, string, string) error
	GetWorkspaceAccess(context.Context, string) ([]store.WorkspaceMember, []string, error)

	InsertBoard(context.Context, store.Board) error
	GetBoard(context.Context, string) (store.Board, error)
	UpdateBoardMeta(context.Context, string, string, string, string, string) error
	SoftDeleteBoard(context.Context, string) error
	AddBoardMember(context.Context, string, string, string) (bool, error)
	GetBoardMembers(context.Context, string) ([]store.BoardMember, error)
	ReplaceColumnOrder(context.Context, string, []string) error
	ListBoardsForUser(context.Context, string) ([]store.Board, error)
	GetBoardForUser(context.Context, string, string) (store.BoardView, error)

	InsertColumn(context.Context, store.Column) error
	GetColumn(context.Context, string) (store.Column, error)
	UpdateColumnTitle(context.Context, string, string) error
	SoftDeleteColumn(context.Context, string) error
	ReplaceCardOrder(context.Context, string, []string) error
	ListBoardColumns(context.Context, string) ([]store.Column, error)

	InsertCard(context.Context, store.Card) error
	GetCard(context.Context, string) (store.Card, error)
	UpdateCardMeta(context.Context, store.Card) error
	ArchiveCard(context.Context, string) error
	SetCardColumn(context.Context, string, string) error
	InsertCardComment(context.Context, store.CardComment) error
	ListCardComments(context.Context, string) ([]store.CardComment, error)
	AddCardMember(context.Context, string, string) error
	RemoveCardMember(context.Context, string, string) error
	ListCardMembers(context.Context, string) ([]string, error)

	InsertInvitation(context.Context, store.Invitation) error
	GetInvitation(context.Context, string) (store.Invitation, error)
	GetInvitationByToken(context.Context, string) (store.Invitation, error)
	ListInvitationsForInvitee(context.Context, string) ([]store.Invitation, error)
	ResolveInvitation(context.Context, string, string) (bool, error)

	Ping(ctx context.Context) error
}

// SessionStore is satisfied by the Redis store and by the Postgres adapter in
// the session package.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type searcher interface {
	Search(ctx context.Context, q search.Query) (search.Response, error)
	IndexCard(card search.CardRecord)
	IndexBoard(board search.BoardRecord)
	RemoveCard(id string)
	RemoveBoard(id string)
}

type notifier interface {
	IsConfigured() bool
	SendBoardInvitationEmail(to, inviteeName, inviterName, boardTitle, inviteURL string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions SessionStore
	// search and mail are optional; nil disables the feature.
	search searcher
	mail   notifier
}

func New(cfg config.Config, dataStore dataStore, sessions SessionStore, searchSvc searcher, mail notifier) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		search:   searchSvc,
		mail:     mail,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

// ---------------------------------------------------------------------------
// Sessions

// CreateSession issues an access/refresh token pair for an authenticated
// user. Callers are responsible for having verified credentials first.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, jti, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// VerifyAccessToken is the handshake check used by the realtime layer.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	session, err := s.SessionFromToken(ctx, token)
	if err != nil {
		return "", err
	}
	return session.UserID, nil
}

// Logout revokes the access token and the refresh session. A failed
// revocation is an error: reporting success would leave the access token
// valid until expiry.
func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		if err := s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Workspaces

func (s *Service) CreateWorkspace(ctx context.Context, userID, title, visibility string) (store.Workspace, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Workspace{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if visibility == "" {
		visibility = "private"
	}

	workspace := store.Workspace{
		ID:         util.NewID("ws"),
		Title:      title,
		Visibility: visibility,
	}
	if err := s.store.InsertWorkspace(ctx, workspace); err != nil {
		return store.Workspace{}, err
	}
	// The creator is the first workspace admin.
	if err := s.store.AddWorkspaceMember(ctx, workspace.ID, userID, string(rbac.WorkspaceAdmin)); err != nil {
		return store.Workspace{}, err
	}
	return workspace, nil
}

func (s *Service) ListWorkspaces(ctx context.Context, userID string) ([]store.Workspace, error) {
	return s.store.ListWorkspacesForUser(ctx, userID)
}

func (s *Service) GetWorkspace(ctx context.Context, userID, workspaceID string) (store.Workspace, error) {
	workspace, access, err := s.workspaceAccess(ctx, workspaceID)
	if err != nil {
		return store.Workspace{}, err
	}
	if !rbac.HasWorkspacePermission(userID, access, rbac.ViewWorkspace) {
		return store.Workspace{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return workspace, nil
}

func (s *Service) UpdateWorkspace(ctx context.Context, userID, workspaceID, title, visibility string) (store.Workspace, error) {
	workspace, access, err := s.workspaceAccess(ctx, workspaceID)
	if err != nil {
		return store.Workspace{}, err
	}
	if !rbac.HasWorkspacePermission(userID, access, rbac.UpdateWorkspace) {
		return store.Workspace{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	if strings.TrimSpace(title) == "" {
		title = workspace.Title
	}
	if visibility == "" {
		visibility = workspace.Visibility
	}
	if err := s.store.UpdateWorkspace(ctx, workspaceID, title, visibility); err != nil {
		return store.Workspace{}, err
	}
	workspace.Title = title
	workspace.Visibility = visibility
	return workspace, nil
}

func (s *Service) DeleteWorkspace(ctx context.Context, userID, workspaceID string) error {
	_, access, err := s.workspaceAccess(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !rbac.HasWorkspacePermission(userID, access, rbac.DeleteWorkspace) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return s.store.SoftDeleteWorkspace(ctx, workspaceID)
}

func (s *Service) AddWorkspaceMember(ctx context.Context, actorID, workspaceID, memberID, role string) error {
	_, access, err := s.workspaceAccess(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !rbac.HasWorkspacePermission(actorID, access, rbac.ManageWorkspaceMembers) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	parsed, ok := rbac.ParseWorkspaceRole(role)
	if !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown workspace role", map[string]any{"role": role})
	}
	if _, err := s.store.GetUserByID(ctx, memberID); err != nil {
		return err
	}
	return s.store.AddWorkspaceMember(ctx, workspaceID, memberID, string(parsed))
}

func (s *Service) AddWorkspaceGuest(ctx context.Context, actorID, workspaceID, guestID string) error {
	_, access, err := s.workspaceAccess(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !rbac.HasWorkspacePermission(actorID, access, rbac.ManageWorkspaceGuests) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if _, err := s.store.GetUserByID(ctx, guestID); err != nil {
		return err
	}
	return s.store.AddWorkspaceGuest(ctx, workspaceID, guestID)
}

func (s *Service) RemoveWorkspaceGuest(ctx context.Context, actorID, workspaceID, guestID string) error {
	_, access, err := s.workspaceAccess(ctx, workspaceID)
	if err != nil {
		return err
	}
	if !rbac.HasWorkspacePermission(actorID, access, rbac.ManageWorkspaceGuests) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return s.store.RemoveWorkspaceGuest(ctx, workspaceID, guestID)
}

// workspaceAccess loads a workspace and its membership sets in rbac form.
func (s *Service) workspaceAccess(ctx context.Context, workspaceID string) (store.Workspace, rbac.WorkspaceAccess, error) {
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return store.Workspace{}, rbac.WorkspaceAccess{}, err
	}
	members, guests, err := s.store.GetWorkspaceAccess(ctx, workspaceID)
	if err != nil {
		return store.Workspace{}, rbac.WorkspaceAccess{}, err
	}
	return workspace, buildWorkspaceAccess(members, guests), nil
}

func buildWorkspaceAccess(members []store.WorkspaceMember, guests []string) rbac.WorkspaceAccess {
	access := rbac.WorkspaceAccess{Guests: guests}
	for _, m := range members {
		role, ok := rbac.ParseWorkspaceRole(m.Role)
		if !ok {
			continue
		}
		access.Members = append(access.Members, rbac.WorkspaceMembership{UserID: m.UserID, Role: role})
	}
	return access
}

// ---------------------------------------------------------------------------
// Search

func (s *Service) Search(ctx context.Context, userID, text string, limit int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	boards, err := s.store.ListBoardsForUser(ctx, userID)
	if err != nil {
		return search.Response{}, err
	}
	boardIDs := make([]string, 0, len(boards))
	for _, b := range boards {
		boardIDs = append(boardIDs, b.ID)
	}
	return s.search.Search(ctx, search.Query{Text: text, BoardIDs: boardIDs, Limit: limit})
}
