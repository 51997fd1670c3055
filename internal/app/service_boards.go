package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/api/internal/ordering"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// CardPatch carries a partial card update. Nil fields are left untouched;
// ClearDueDate and ClearCompleted reset their tri-state counterparts.
type CardPatch struct {
	Title          *string
	Description    *string
	DueDate        *time.Time
	ClearDueDate   bool
	IsCompleted    *bool
	ClearCompleted bool
}

// ---------------------------------------------------------------------------
// Boards

func (s *Service) CreateBoard(ctx context.Context, userID, title, description, visibility, coverPhotoURL string, workspaceID *string) (store.Board, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Board{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if visibility == "" {
		visibility = "private"
	}

	if workspaceID != nil {
		_, access, err := s.workspaceAccess(ctx, *workspaceID)
		if err != nil {
			return store.Board{}, err
		}
		if !rbac.HasWorkspacePermission(userID, access, rbac.CreateWorkspaceBoard) {
			return store.Board{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		}
	}

	board := store.Board{
		ID:             util.NewID("board"),
		Title:          title,
		Description:    description,
		Visibility:     visibility,
		CoverPhotoURL:  coverPhotoURL,
		WorkspaceID:    workspaceID,
		ColumnOrderIDs: []string{},
	}
	if err := s.store.InsertBoard(ctx, board); err != nil {
		return store.Board{}, err
	}
	// The creator is the first board admin.
	if _, err := s.store.AddBoardMember(ctx, board.ID, userID, string(rbac.BoardAdmin)); err != nil {
		return store.Board{}, err
	}
	s.indexBoard(board)
	return board, nil
}

func (s *Service) ListBoards(ctx context.Context, userID string) ([]store.Board, error) {
	return s.store.ListBoardsForUser(ctx, userID)
}

// GetBoardView returns the hydrated board read model. A board the user
// cannot see surfaces as sql.ErrNoRows, which the HTTP layer maps to 404.
func (s *Service) GetBoardView(ctx context.Context, userID, boardID string) (store.BoardView, error) {
	return s.store.GetBoardForUser(ctx, boardID, userID)
}

func (s *Service) UpdateBoard(ctx context.Context, userID, boardID, title, description, visibility, coverPhotoURL string) (store.Board, error) {
	board, err := s.requireBoardPermission(ctx, userID, boardID, rbac.UpdateBoard)
	if err != nil {
		return store.Board{}, err
	}

	if strings.TrimSpace(title) == "" {
		title = board.Title
	}
	if description == "" {
		description = board.Description
	}
	if visibility == "" {
		visibility = board.Visibility
	}
	if coverPhotoURL == "" {
		coverPhotoURL = board.CoverPhotoURL
	}
	if err := s.store.UpdateBoardMeta(ctx, boardID, title, description, visibility, coverPhotoURL); err != nil {
		return store.Board{}, err
	}
	board.Title = title
	board.Description = description
	board.Visibility = visibility
	board.CoverPhotoURL = coverPhotoURL
	s.indexBoard(board)
	return board, nil
}

func (s *Service) DeleteBoard(ctx context.Context, userID, boardID string) error {
	if _, err := s.requireBoardPermission(ctx, userID, boardID, rbac.DeleteBoard); err != nil {
		return err
	}
	if err := s.store.SoftDeleteBoard(ctx, boardID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.RemoveBoard(boardID)
	}
	return nil
}

func (s *Service) AddBoardMember(ctx context.Context, actorID, boardID, memberID, role string) error {
	if _, err := s.requireBoardPermission(ctx, actorID, boardID, rbac.ManageBoardMembers); err != nil {
		return err
	}
	parsed, ok := rbac.ParseBoardRole(role)
	if !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown board role", map[string]any{"role": role})
	}
	if _, err := s.store.GetUserByID(ctx, memberID); err != nil {
		return err
	}
	added, err := s.store.AddBoardMember(ctx, boardID, memberID, string(parsed))
	if err != nil {
		return err
	}
	if !added {
		return domainError(http.StatusConflict, "CONFLICT", "user is already a board member", nil)
	}
	return nil
}

// ReorderColumns replaces the board's column ordering. The proposed order
// must be a permutation of the current one.
func (s *Service) ReorderColumns(ctx context.Context, userID, boardID string, proposed []string) error {
	board, err := s.requireBoardPermission(ctx, userID, boardID, rbac.ReorderColumns)
	if err != nil {
		return err
	}
	if err := ordering.Validate(board.ColumnOrderIDs, proposed); err != nil {
		return reorderError(err)
	}
	return s.store.ReplaceColumnOrder(ctx, boardID, proposed)
}

// ---------------------------------------------------------------------------
// Columns

func (s *Service) CreateColumn(ctx context.Context, userID, boardID, title string) (store.Column, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Column{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	board, err := s.requireBoardPermission(ctx, userID, boardID, rbac.CreateColumn)
	if err != nil {
		return store.Column{}, err
	}

	column := store.Column{
		ID:           util.NewID("col"),
		BoardID:      boardID,
		Title:        title,
		CardOrderIDs: []string{},
	}
	if err := s.store.InsertColumn(ctx, column); err != nil {
		return store.Column{}, err
	}
	// New columns go to the end of the board ordering.
	if err := s.store.ReplaceColumnOrder(ctx, boardID, append(board.ColumnOrderIDs, column.ID)); err != nil {
		return store.Column{}, err
	}
	return column, nil
}

func (s *Service) UpdateColumn(ctx context.Context, userID, columnID, title string) (store.Column, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Column{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return store.Column{}, err
	}
	if _, err := s.requireBoardPermission(ctx, userID, column.BoardID, rbac.UpdateColumn); err != nil {
		return store.Column{}, err
	}
	if err := s.store.UpdateColumnTitle(ctx, columnID, title); err != nil {
		return store.Column{}, err
	}
	column.Title = title
	return column, nil
}

// DeleteColumn destroys the column, archives its cards, and drops its id from
// the board ordering.
func (s *Service) DeleteColumn(ctx context.Context, userID, columnID string) error {
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return err
	}
	board, err := s.requireBoardPermission(ctx, userID, column.BoardID, rbac.UpdateColumn)
	if err != nil {
		return err
	}
	if err := s.store.SoftDeleteColumn(ctx, columnID); err != nil {
		return err
	}
	return s.store.ReplaceColumnOrder(ctx, board.ID, removeID(board.ColumnOrderIDs, columnID))
}

// ReorderCards replaces a column's card ordering. The proposed order must be
// a permutation of the current one; moves between columns go through
// MoveCard.
func (s *Service) ReorderCards(ctx context.Context, userID, columnID string, proposed []string) error {
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return err
	}
	if _, err := s.requireBoardPermission(ctx, userID, column.BoardID, rbac.MoveCard); err != nil {
		return err
	}
	if err := ordering.Validate(column.CardOrderIDs, proposed); err != nil {
		return reorderError(err)
	}
	return s.store.ReplaceCardOrder(ctx, columnID, proposed)
}

// ---------------------------------------------------------------------------
// Cards

func (s *Service) CreateCard(ctx context.Context, userID, columnID, title, description string) (store.Card, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.Card{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	column, err := s.store.GetColumn(ctx, columnID)
	if err != nil {
		return store.Card{}, err
	}
	if _, err := s.requireBoardPermission(ctx, userID, column.BoardID, rbac.CreateCard); err != nil {
		return store.Card{}, err
	}

	card := store.Card{
		ID:          util.NewID("card"),
		BoardID:     column.BoardID,
		ColumnID:    columnID,
		Title:       title,
		Description: description,
	}
	if err := s.store.InsertCard(ctx, card); err != nil {
		return store.Card{}, err
	}
	if err := s.store.ReplaceCardOrder(ctx, columnID, append(column.CardOrderIDs, card.ID)); err != nil {
		return store.Card{}, err
	}
	s.indexCard(card)
	return card, nil
}

func (s *Service) GetCard(ctx context.Context, userID, cardID string) (store.Card, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return store.Card{}, err
	}
	if _, err := s.requireBoardPermission(ctx, userID, card.BoardID, rbac.ViewBoard); err != nil {
		return store.Card{}, err
	}
	return card, nil
}

func (s *Service) UpdateCard(ctx context.Context, userID, cardID string, patch CardPatch) (store.Card, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return store.Card{}, err
	}
	if _, err := s.requireBoardPermission(ctx, userID, card.BoardID, rbac.UpdateCard); err != nil {
		return store.Card{}, err
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return store.Card{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title cannot be empty", nil)
		}
		card.Title = title
	}
	if patch.Description != nil {
		card.Description = *patch.Description
	}
	if patch.ClearDueDate {
		card.DueDate = nil
	} else if patch.DueDate != nil {
		card.DueDate = patch.DueDate
	}
	if patch.ClearCompleted {
		card.IsCompleted = nil
	} else if patch.IsCompleted != nil {
		card.IsCompleted = patch.IsCompleted
	}

	if err := s.store.UpdateCardMeta(ctx, card); err != nil {
		return store.Card{}, err
	}
	s.indexCard(card)
	return card, nil
}

// ArchiveCard hides the card from board views and drops it from its column
// ordering. The row itself stays.
func (s *Service) ArchiveCard(ctx context.Context, userID, cardID string) error {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	if _, err := s.requireBoardPermission(ctx, userID, card.BoardID, rbac.UpdateCard); err != nil {
		return err
	}
	if err := s.store.ArchiveCard(ctx, cardID); err != nil {
		return err
	}
	// The ordering write must land: an archived card left in card_order_ids
	// makes every later reorder of the visible cards fail the permutation
	// check, with no way to repair it through the API.
	column, err := s.store.GetColumn(ctx, card.ColumnID)
	if err != nil {
		return err
	}
	if err := s.store.ReplaceCardOrder(ctx, column.ID, removeID(column.CardOrderIDs, cardID)); err != nil {
		return err
	}
	if s.search != nil {
		s.search.RemoveCard(cardID)
	}
	return nil
}

// MoveCard relocates a card to another column on the same board. sourceOrder
// and targetOrder are the full proposed orderings of both columns after the
// move. The three writes are sequential, not transactional: a crash between
// them can leave the card present in the target ordering and stale in the
// source one until the next reorder repairs it.
func (s *Service) MoveCard(ctx context.Context, userID, cardID, targetColumnID string, sourceOrder, targetOrder []string) error {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	if _, err := s.requireBoardPermission(ctx, userID, card.BoardID, rbac.MoveCard); err != nil {
		return err
	}
	if card.ColumnID == targetColumnID {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "card is already in the target column", nil)
	}

	source, err := s.store.GetColumn(ctx, card.ColumnID)
	if err != nil {
		return err
	}
	target, err := s.store.GetColumn(ctx, targetColumnID)
	if err != nil {
		return err
	}
	if target.BoardID != card.BoardID {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "target column belongs to a different board", nil)
	}

	// The source loses exactly the moved card; the target gains exactly it.
	if err := ordering.Validate(removeID(source.CardOrderIDs, cardID), sourceOrder); err != nil {
		return reorderError(err)
	}
	if err := ordering.Validate(append(append([]string{}, target.CardOrderIDs...), cardID), targetOrder); err != nil {
		return reorderError(err)
	}

	if err := s.store.SetCardColumn(ctx, cardID, targetColumnID); err != nil {
		return err
	}
	if err := s.store.ReplaceCardOrder(ctx, source.ID, sourceOrder); err != nil {
		return err
	}
	if err := s.store.ReplaceCardOrder(ctx, target.ID, targetOrder); err != nil {
		return err
	}

	card.ColumnID = targetColumnID
	s.indexCard(card)
	return nil
}

func (s *Service) AddCardComment(ctx context.Context, userID, cardID, body string) (store.CardComment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return store.CardComment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "comment body is required", nil)
	}
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return store.CardComment{}, err
	}
	if _, err := s.requireBoardPermission(ctx, userID, card.BoardID, rbac.CommentOnCard); err != nil {
		return store.CardComment{}, err
	}

	comment := store.CardComment{
		ID:     util.NewID("cmt"),
		CardID: cardID,
		UserID: userID,
		Body:   body,
	}
	if err := s.store.InsertCardComment(ctx, comment); err != nil {
		return store.CardComment{}, err
	}
	return comment, nil
}

func (s *Service) ListCardComments(ctx context.Context, userID, cardID string) ([]store.CardComment, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireBoardPermission(ctx, userID, card.BoardID, rbac.ViewBoard); err != nil {
		return nil, err
	}
	return s.store.ListCardComments(ctx, cardID)
}

// AssignCardMember assigns a user to a card. The assignee must already have
// access to the board.
func (s *Service) AssignCardMember(ctx context.Context, actorID, cardID, memberID string) error {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	board, boardAccess, wsAccess, err := s.boardAccess(ctx, card.BoardID)
	if err != nil {
		return err
	}
	if !rbac.HasBoardPermission(actorID, boardAccess, rbac.UpdateCard, wsAccess) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	if _, ok := rbac.ResolveEffectiveBoardRole(boardAccess, wsAccess, memberID); !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("user has no access to board %s", board.ID), nil)
	}
	return s.store.AddCardMember(ctx, cardID, memberID)
}

func (s *Service) UnassignCardMember(ctx context.Context, actorID, cardID, memberID string) error {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	if _, err := s.requireBoardPermission(ctx, actorID, card.BoardID, rbac.UpdateCard); err != nil {
		return err
	}
	return s.store.RemoveCardMember(ctx, cardID, memberID)
}

func (s *Service) ListCardMembers(ctx context.Context, userID, cardID string) ([]string, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireBoardPermission(ctx, userID, card.BoardID, rbac.ViewBoard); err != nil {
		return nil, err
	}
	return s.store.ListCardMembers(ctx, cardID)
}

// ---------------------------------------------------------------------------
// Invitations

func (s *Service) InviteToBoard(ctx context.Context, inviterID, boardID, inviteeEmail string) (store.Invitation, error) {
	board, err := s.requireBoardPermission(ctx, inviterID, boardID, rbac.InviteToBoard)
	if err != nil {
		return store.Invitation{}, err
	}

	invitee, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(inviteeEmail))
	if err != nil {
		return store.Invitation{}, domainError(http.StatusNotFound, "NOT_FOUND", "no user with that email", nil)
	}
	if invitee.ID == inviterID {
		return store.Invitation{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot invite yourself", nil)
	}

	invitation := store.Invitation{
		ID:          util.NewID("inv"),
		InviterID:   inviterID,
		InviteeID:   invitee.ID,
		Type:        store.InvitationTypeBoard,
		BoardID:     boardID,
		Status:      store.InvitationPending,
		InviteToken: uuid.NewString(),
	}
	if err := s.store.InsertInvitation(ctx, invitation); err != nil {
		return store.Invitation{}, err
	}

	if s.SMTPConfigured() {
		inviter, err := s.store.GetUserByID(ctx, inviterID)
		if err == nil {
			inviteURL := fmt.Sprintf("%s/invitations?token=%s", strings.TrimRight(s.cfg.CORSOrigin, "/"), invitation.InviteToken)
			// Mail is best-effort; the invitation exists either way.
			_ = s.mail.SendBoardInvitationEmail(invitee.Email, invitee.DisplayName, inviter.DisplayName, board.Title, inviteURL)
		}
	}
	return invitation, nil
}

func (s *Service) ListInvitations(ctx context.Context, userID string) ([]store.Invitation, error) {
	return s.store.ListInvitationsForInvitee(ctx, userID)
}

// RespondToInvitation accepts or rejects a pending invitation. Accepting is
// idempotent: accepting an already accepted invitation re-ensures membership
// and succeeds; any other re-resolution is a conflict.
func (s *Service) RespondToInvitation(ctx context.Context, userID, invitationID string, accept bool) (store.Invitation, error) {
	invitation, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		return store.Invitation{}, err
	}
	if invitation.InviteeID != userID {
		return store.Invitation{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}

	if accept && invitation.Status == store.InvitationAccepted {
		if _, err := s.store.AddBoardMember(ctx, invitation.BoardID, userID, string(rbac.BoardMember)); err != nil {
			return store.Invitation{}, err
		}
		return invitation, nil
	}

	status := store.InvitationRejected
	if accept {
		status = store.InvitationAccepted
	}
	resolved, err := s.store.ResolveInvitation(ctx, invitationID, status)
	if err != nil {
		return store.Invitation{}, err
	}
	if !resolved {
		return store.Invitation{}, domainError(http.StatusConflict, "CONFLICT", "invitation already resolved", nil)
	}
	invitation.Status = status

	if accept {
		// Membership add ignores an existing row, so a duplicate accept after
		// a crash mid-flow still converges.
		if _, err := s.store.AddBoardMember(ctx, invitation.BoardID, userID, string(rbac.BoardMember)); err != nil {
			return store.Invitation{}, err
		}
	}
	return invitation, nil
}

func (s *Service) GetInvitationByToken(ctx context.Context, userID, token string) (store.Invitation, error) {
	invitation, err := s.store.GetInvitationByToken(ctx, token)
	if err != nil {
		return store.Invitation{}, err
	}
	if invitation.InviteeID != userID {
		return store.Invitation{}, sql.ErrNoRows
	}
	return invitation, nil
}

// ---------------------------------------------------------------------------
// Access helpers

// boardAccess loads a board plus the membership sets that govern it.
func (s *Service) boardAccess(ctx context.Context, boardID string) (store.Board, rbac.BoardAccess, *rbac.WorkspaceAccess, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, rbac.BoardAccess{}, nil, err
	}
	members, err := s.store.GetBoardMembers(ctx, boardID)
	if err != nil {
		return store.Board{}, rbac.BoardAccess{}, nil, err
	}

	access := rbac.BoardAccess{}
	for _, m := range members {
		role, ok := rbac.ParseBoardRole(m.Role)
		if !ok {
			continue
		}
		access.Members = append(access.Members, rbac.BoardMembership{UserID: m.UserID, Role: role})
	}

	var wsAccess *rbac.WorkspaceAccess
	if board.WorkspaceID != nil {
		wsMembers, guests, err := s.store.GetWorkspaceAccess(ctx, *board.WorkspaceID)
		if err != nil {
			return store.Board{}, rbac.BoardAccess{}, nil, err
		}
		built := buildWorkspaceAccess(wsMembers, guests)
		wsAccess = &built
	}
	return board, access, wsAccess, nil
}

func (s *Service) requireBoardPermission(ctx context.Context, userID, boardID string, perm rbac.BoardPermission) (store.Board, error) {
	board, boardAccess, wsAccess, err := s.boardAccess(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	if !rbac.HasBoardPermission(userID, boardAccess, perm, wsAccess) {
		return store.Board{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return board, nil
}

func reorderError(err error) error {
	switch {
	case errors.Is(err, ordering.ErrInvalidID):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ordering.ErrReorderOnly):
		return domainError(http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		return err
	}
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *Service) indexCard(card store.Card) {
	if s.search == nil {
		return
	}
	s.search.IndexCard(search.CardRecord{
		ID:          card.ID,
		BoardID:     card.BoardID,
		ColumnID:    card.ColumnID,
		Title:       card.Title,
		Description: card.Description,
		Archived:    card.Archived,
	})
}

func (s *Service) indexBoard(board store.Board) {
	if s.search == nil {
		return
	}
	s.search.IndexBoard(search.BoardRecord{
		ID:          board.ID,
		Title:       board.Title,
		Description: board.Description,
		Destroyed:   board.Destroyed,
	})
}
