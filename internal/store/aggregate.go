package store

import (
	"context"
	"fmt"
)

// GetBoardForUser assembles the hydrated board view used by the "open board"
// read path. The board fetch embeds the access check in its predicate
// (explicit board membership, or membership of the enclosing workspace), so a
// board the user cannot see is indistinguishable from one that does not exist
// (sql.ErrNoRows either way). Workspace guests are not workspace members and
// get no inherited access.
//
// Columns and cards come back in no guaranteed order; clients sequence them
// with column_order_ids and card_order_ids.
func (s *PostgresStore) GetBoardForUser(ctx context.Context, boardID, userID string) (BoardView, error) {
	var view BoardView
	var orderRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.title, b.description, b.visibility, b.cover_photo_url, b.workspace_id, b.column_order_ids, b.destroyed, b.created_at, b.updated_at
		FROM boards b
		WHERE b.id=$1
			AND NOT b.destroyed
			AND (
				EXISTS (SELECT 1 FROM board_members bm WHERE bm.board_id = b.id AND bm.user_id = $2)
				OR (b.workspace_id IS NOT NULL AND EXISTS (
					SELECT 1 FROM workspace_members wm WHERE wm.workspace_id = b.workspace_id AND wm.user_id = $2
				))
			)
	`, boardID, userID).Scan(
		&view.ID, &view.Title, &view.Description, &view.Visibility, &view.CoverPhotoURL,
		&view.WorkspaceID, &orderRaw, &view.Destroyed, &view.CreatedAt, &view.UpdatedAt,
	)
	if err != nil {
		return BoardView{}, err
	}
	view.ColumnOrderIDs = decodeIDs(orderRaw)

	columns, err := s.ListBoardColumns(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	cardsByColumn, err := s.activeCardsByColumn(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	view.Columns = make([]ColumnView, 0, len(columns))
	for _, column := range columns {
		cards := cardsByColumn[column.ID]
		if cards == nil {
			cards = []Card{}
		}
		view.Columns = append(view.Columns, ColumnView{Column: column, Cards: cards})
	}

	if view.WorkspaceID != nil {
		summary, err := s.workspaceSummary(ctx, *view.WorkspaceID)
		if err != nil {
			return BoardView{}, err
		}
		view.Workspace = summary
	}

	members, err := s.memberProfiles(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	view.Members = members

	return view, nil
}

func (s *PostgresStore) activeCardsByColumn(ctx context.Context, boardID string) (map[string][]Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, column_id, title, description, due_date, is_completed, archived, created_at, updated_at
		FROM cards
		WHERE board_id=$1 AND NOT archived
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board cards: %w", err)
	}
	defer rows.Close()

	byColumn := make(map[string][]Card)
	for rows.Next() {
		var card Card
		if err := rows.Scan(&card.ID, &card.BoardID, &card.ColumnID, &card.Title, &card.Description, &card.DueDate, &card.IsCompleted, &card.Archived, &card.CreatedAt, &card.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board card: %w", err)
		}
		byColumn[card.ColumnID] = append(byColumn[card.ColumnID], card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board cards: %w", err)
	}
	return byColumn, nil
}

func (s *PostgresStore) workspaceSummary(ctx context.Context, workspaceID string) (*WorkspaceSummary, error) {
	var summary WorkspaceSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, visibility FROM workspaces WHERE id=$1 AND NOT destroyed
	`, workspaceID).Scan(&summary.ID, &summary.Title, &summary.Visibility)
	if err != nil {
		return nil, fmt.Errorf("get workspace summary: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, cover_photo_url
		FROM boards
		WHERE workspace_id=$1 AND NOT destroyed
		ORDER BY created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list sibling boards: %w", err)
	}
	defer rows.Close()

	summary.Boards = make([]BoardStub, 0)
	for rows.Next() {
		var stub BoardStub
		if err := rows.Scan(&stub.ID, &stub.Title, &stub.CoverPhotoURL); err != nil {
			return nil, fmt.Errorf("scan sibling board: %w", err)
		}
		summary.Boards = append(summary.Boards, stub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sibling boards: %w", err)
	}
	return &summary, nil
}

// memberProfiles merges each membership with the member's public profile.
// Membership fields come first and the projection selects only public user
// columns, so role can never be clobbered and password_hash,
// email_verify_token and forgot_password_token never leave the store.
func (s *PostgresStore) memberProfiles(ctx context.Context, boardID string) ([]MemberProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bm.user_id, bm.role, u.display_name, u.email, u.avatar_url
		FROM board_members bm
		JOIN users u ON u.id = bm.user_id
		WHERE bm.board_id=$1
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list member profiles: %w", err)
	}
	defer rows.Close()

	members := make([]MemberProfile, 0)
	for rows.Next() {
		var m MemberProfile
		if err := rows.Scan(&m.UserID, &m.Role, &m.DisplayName, &m.Email, &m.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan member profile: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member profiles: %w", err)
	}
	return members, nil
}
