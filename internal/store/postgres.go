package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal order ids: %w", err)
	}
	return string(encoded), nil
}

func decodeIDs(raw []byte) []string {
	ids := []string{}
	_ = json.Unmarshal(raw, &ids)
	return ids
}

// ---------------------------------------------------------------------------
// Users

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, avatar_url, password_hash, email_verify_token)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.DisplayName, user.Email, user.AvatarURL, user.PasswordHash, user.EmailVerifyToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, avatar_url, password_hash, is_email_verified
		FROM users
		WHERE email=$1
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.AvatarURL, &user.PasswordHash, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, avatar_url, is_email_verified
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.AvatarURL, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, email_verify_token='', updated_at=NOW()
		WHERE email_verify_token=$1 AND email_verify_token <> ''
	`, token)
	if err != nil {
		return false, fmt.Errorf("verify user email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("verify user email rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetForgotPasswordToken(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET forgot_password_token=$2, updated_at=NOW() WHERE id=$1
	`, userID, token)
	if err != nil {
		return fmt.Errorf("set forgot password token: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupForgotPasswordToken(ctx context.Context, token string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, avatar_url, is_email_verified
		FROM users
		WHERE forgot_password_token=$1 AND forgot_password_token <> ''
	`, token).Scan(&user.ID, &user.DisplayName, &user.Email, &user.AvatarURL, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUserPassword replaces the password hash and clears any outstanding
// reset token in the same statement.
func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, forgot_password_token='', updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Refresh sessions and token revocation (Postgres fallback when Redis is
// not configured)

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.avatar_url
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.AvatarURL)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ---------------------------------------------------------------------------
// Workspaces

func (s *PostgresStore) InsertWorkspace(ctx context.Context, workspace Workspace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, title, visibility)
		VALUES ($1, $2, $3)
	`, workspace.ID, workspace.Title, workspace.Visibility)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var item Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, visibility, destroyed, created_at, updated_at
		FROM workspaces
		WHERE id=$1 AND NOT destroyed
	`, workspaceID).Scan(&item.ID, &item.Title, &item.Visibility, &item.Destroyed, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Workspace{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, workspaceID, title, visibility string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE workspaces SET title=$2, visibility=$3, updated_at=NOW()
		WHERE id=$1 AND NOT destroyed
	`, workspaceID, title, visibility)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) SoftDeleteWorkspace(ctx context.Context, workspaceID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE workspaces SET destroyed=TRUE, updated_at=NOW() WHERE id=$1`, workspaceID)
	if err != nil {
		return fmt.Errorf("soft delete workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.title, w.visibility, w.destroyed, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_members wm ON wm.workspace_id = w.id
		WHERE wm.user_id=$1 AND NOT w.destroyed
		ORDER BY w.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]Workspace, 0)
	for rows.Next() {
		var item Workspace
		if err := rows.Scan(&item.ID, &item.Title, &item.Visibility, &item.Destroyed, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return items, nil
}

// AddWorkspaceMember upserts a membership. A user is never both member and
// guest, so any guest entry is dropped first.
func (s *PostgresStore) AddWorkspaceMember(ctx context.Context, workspaceID, userID, role string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM workspace_guests WHERE workspace_id=$1 AND user_id=$2
	`, workspaceID, userID); err != nil {
		return fmt.Errorf("clear guest entry: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role=EXCLUDED.role
	`, workspaceID, userID, role)
	if err != nil {
		return fmt.Errorf("upsert workspace member: %w", err)
	}
	return nil
}

var ErrAlreadyMember = errors.New("user is already a workspace member")

func (s *PostgresStore) AddWorkspaceGuest(ctx context.Context, workspaceID, userID string) error {
	var isMember bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM workspace_members WHERE workspace_id=$1 AND user_id=$2)
	`, workspaceID, userID).Scan(&isMember)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if isMember {
		return ErrAlreadyMember
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_guests (workspace_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (workspace_id, user_id) DO NOTHING
	`, workspaceID, userID); err != nil {
		return fmt.Errorf("insert workspace guest: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveWorkspaceGuest(ctx context.Context, workspaceID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM workspace_guests WHERE workspace_id=$1 AND user_id=$2
	`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("remove workspace guest: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkspaceAccess(ctx context.Context, workspaceID string) ([]WorkspaceMember, []string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workspace_id, user_id, role, joined_at
		FROM workspace_members
		WHERE workspace_id=$1
	`, workspaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("list workspace members: %w", err)
	}
	defer rows.Close()

	members := make([]WorkspaceMember, 0)
	for rows.Next() {
		var m WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, nil, fmt.Errorf("scan workspace member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate workspace members: %w", err)
	}

	guestRows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM workspace_guests WHERE workspace_id=$1
	`, workspaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("list workspace guests: %w", err)
	}
	defer guestRows.Close()

	guests := make([]string, 0)
	for guestRows.Next() {
		var userID string
		if err := guestRows.Scan(&userID); err != nil {
			return nil, nil, fmt.Errorf("scan workspace guest: %w", err)
		}
		guests = append(guests, userID)
	}
	if err := guestRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate workspace guests: %w", err)
	}
	return members, guests, nil
}

// ---------------------------------------------------------------------------
// Boards

func (s *PostgresStore) InsertBoard(ctx context.Context, board Board) error {
	orderIDs, err := encodeIDs(board.ColumnOrderIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO boards (id, title, description, visibility, cover_photo_url, workspace_id, column_order_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	`, board.ID, board.Title, board.Description, board.Visibility, board.CoverPhotoURL, board.WorkspaceID, orderIDs)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	var item Board
	var orderRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, visibility, cover_photo_url, workspace_id, column_order_ids, destroyed, created_at, updated_at
		FROM boards
		WHERE id=$1 AND NOT destroyed
	`, boardID).Scan(&item.ID, &item.Title, &item.Description, &item.Visibility, &item.CoverPhotoURL, &item.WorkspaceID, &orderRaw, &item.Destroyed, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Board{}, err
	}
	item.ColumnOrderIDs = decodeIDs(orderRaw)
	return item, nil
}

func (s *PostgresStore) UpdateBoardMeta(ctx context.Context, boardID, title, description, visibility, coverPhotoURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boards SET title=$2, description=$3, visibility=$4, cover_photo_url=$5, updated_at=NOW()
		WHERE id=$1 AND NOT destroyed
	`, boardID, title, description, visibility, coverPhotoURL)
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}
	return nil
}

// SoftDeleteBoard archives the board and cascades to its columns and cards.
func (s *PostgresStore) SoftDeleteBoard(ctx context.Context, boardID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE boards SET destroyed=TRUE, updated_at=NOW() WHERE id=$1`, boardID); err != nil {
		return fmt.Errorf("soft delete board: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE columns SET destroyed=TRUE, updated_at=NOW() WHERE board_id=$1`, boardID); err != nil {
		return fmt.Errorf("soft delete board columns: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE cards SET archived=TRUE, updated_at=NOW() WHERE board_id=$1`, boardID); err != nil {
		return fmt.Errorf("archive board cards: %w", err)
	}
	return nil
}

// AddBoardMember inserts a membership once. Reports whether a row was added,
// so duplicate invitation accepts can no-op.
func (s *PostgresStore) AddBoardMember(ctx context.Context, boardID, userID, role string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO board_members (board_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (board_id, user_id) DO NOTHING
	`, boardID, userID, role)
	if err != nil {
		return false, fmt.Errorf("insert board member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert board member rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetBoardMembers(ctx context.Context, boardID string) ([]BoardMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT board_id, user_id, role FROM board_members WHERE board_id=$1
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board members: %w", err)
	}
	defer rows.Close()

	members := make([]BoardMember, 0)
	for rows.Next() {
		var m BoardMember
		if err := rows.Scan(&m.BoardID, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("scan board member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board members: %w", err)
	}
	return members, nil
}

// ReplaceColumnOrder swaps the whole ordering array in one statement.
func (s *PostgresStore) ReplaceColumnOrder(ctx context.Context, boardID string, orderIDs []string) error {
	encoded, err := encodeIDs(orderIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE boards SET column_order_ids=$2::jsonb, updated_at=NOW()
		WHERE id=$1 AND NOT destroyed
	`, boardID, encoded)
	if err != nil {
		return fmt.Errorf("replace column order: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBoardsForUser(ctx context.Context, userID string) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.title, b.description, b.visibility, b.cover_photo_url, b.workspace_id, b.column_order_ids, b.destroyed, b.created_at, b.updated_at
		FROM boards b
		JOIN board_members bm ON bm.board_id = b.id
		WHERE bm.user_id=$1 AND NOT b.destroyed
		ORDER BY b.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		var item Board
		var orderRaw []byte
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.Visibility, &item.CoverPhotoURL, &item.WorkspaceID, &orderRaw, &item.Destroyed, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		item.ColumnOrderIDs = decodeIDs(orderRaw)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

// ---------------------------------------------------------------------------
// Columns

func (s *PostgresStore) InsertColumn(ctx context.Context, column Column) error {
	orderIDs, err := encodeIDs(column.CardOrderIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO columns (id, board_id, title, card_order_ids)
		VALUES ($1, $2, $3, $4::jsonb)
	`, column.ID, column.BoardID, column.Title, orderIDs)
	if err != nil {
		return fmt.Errorf("insert column: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetColumn(ctx context.Context, columnID string) (Column, error) {
	var item Column
	var orderRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, title, card_order_ids, destroyed, created_at, updated_at
		FROM columns
		WHERE id=$1 AND NOT destroyed
	`, columnID).Scan(&item.ID, &item.BoardID, &item.Title, &orderRaw, &item.Destroyed, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Column{}, err
	}
	item.CardOrderIDs = decodeIDs(orderRaw)
	return item, nil
}

func (s *PostgresStore) UpdateColumnTitle(ctx context.Context, columnID, title string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE columns SET title=$2, updated_at=NOW()
		WHERE id=$1 AND NOT destroyed
	`, columnID, title)
	if err != nil {
		return fmt.Errorf("update column: %w", err)
	}
	return nil
}

// SoftDeleteColumn archives the column and its cards.
func (s *PostgresStore) SoftDeleteColumn(ctx context.Context, columnID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE columns SET destroyed=TRUE, updated_at=NOW() WHERE id=$1`, columnID); err != nil {
		return fmt.Errorf("soft delete column: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE cards SET archived=TRUE, updated_at=NOW() WHERE column_id=$1`, columnID); err != nil {
		return fmt.Errorf("archive column cards: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceCardOrder(ctx context.Context, columnID string, orderIDs []string) error {
	encoded, err := encodeIDs(orderIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE columns SET card_order_ids=$2::jsonb, updated_at=NOW()
		WHERE id=$1 AND NOT destroyed
	`, columnID, encoded)
	if err != nil {
		return fmt.Errorf("replace card order: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBoardColumns(ctx context.Context, boardID string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, title, card_order_ids, destroyed, created_at, updated_at
		FROM columns
		WHERE board_id=$1 AND NOT destroyed
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	items := make([]Column, 0)
	for rows.Next() {
		var item Column
		var orderRaw []byte
		if err := rows.Scan(&item.ID, &item.BoardID, &item.Title, &orderRaw, &item.Destroyed, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		item.CardOrderIDs = decodeIDs(orderRaw)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return items, nil
}

// ---------------------------------------------------------------------------
// Cards

func (s *PostgresStore) InsertCard(ctx context.Context, card Card) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (id, board_id, column_id, title, description, due_date, is_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, card.ID, card.BoardID, card.ColumnID, card.Title, card.Description, card.DueDate, card.IsCompleted)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCard(ctx context.Context, cardID string) (Card, error) {
	var item Card
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, column_id, title, description, due_date, is_completed, archived, created_at, updated_at
		FROM cards
		WHERE id=$1 AND NOT archived
	`, cardID).Scan(&item.ID, &item.BoardID, &item.ColumnID, &item.Title, &item.Description, &item.DueDate, &item.IsCompleted, &item.Archived, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Card{}, err
	}
	return item, nil
}

func (s *PostgresStore) UpdateCardMeta(ctx context.Context, card Card) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cards SET title=$2, description=$3, due_date=$4, is_completed=$5, updated_at=NOW()
		WHERE id=$1 AND NOT archived
	`, card.ID, card.Title, card.Description, card.DueDate, card.IsCompleted)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return nil
}

func (s *PostgresStore) ArchiveCard(ctx context.Context, cardID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE cards SET archived=TRUE, updated_at=NOW() WHERE id=$1`, cardID)
	if err != nil {
		return fmt.Errorf("archive card: %w", err)
	}
	return nil
}

// SetCardColumn repoints the card's owning column. One leg of the
// cross-column move; the ordering arrays are updated separately.
func (s *PostgresStore) SetCardColumn(ctx context.Context, cardID, columnID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cards SET column_id=$2, updated_at=NOW()
		WHERE id=$1 AND NOT archived
	`, cardID, columnID)
	if err != nil {
		return fmt.Errorf("set card column: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertCardComment(ctx context.Context, comment CardComment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO card_comments (id, card_id, user_id, body)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.CardID, comment.UserID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert card comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCardComments(ctx context.Context, cardID string) ([]CardComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_id, user_id, body, created_at
		FROM card_comments
		WHERE card_id=$1
		ORDER BY created_at ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list card comments: %w", err)
	}
	defer rows.Close()

	items := make([]CardComment, 0)
	for rows.Next() {
		var item CardComment
		if err := rows.Scan(&item.ID, &item.CardID, &item.UserID, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan card comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate card comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) AddCardMember(ctx context.Context, cardID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO card_members (card_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (card_id, user_id) DO NOTHING
	`, cardID, userID)
	if err != nil {
		return fmt.Errorf("insert card member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveCardMember(ctx context.Context, cardID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM card_members WHERE card_id=$1 AND user_id=$2
	`, cardID, userID)
	if err != nil {
		return fmt.Errorf("remove card member: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCardMembers(ctx context.Context, cardID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM card_members WHERE card_id=$1`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list card members: %w", err)
	}
	defer rows.Close()

	members := make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan card member: %w", err)
		}
		members = append(members, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate card members: %w", err)
	}
	return members, nil
}

// ---------------------------------------------------------------------------
// Invitations

func (s *PostgresStore) InsertInvitation(ctx context.Context, invitation Invitation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invitations (id, inviter_id, invitee_id, type, board_id, status, invite_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, invitation.ID, invitation.InviterID, invitation.InviteeID, invitation.Type, invitation.BoardID, invitation.Status, invitation.InviteToken)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInvitation(ctx context.Context, invitationID string) (Invitation, error) {
	var item Invitation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, inviter_id, invitee_id, type, board_id, status, invite_token, created_at, updated_at
		FROM invitations
		WHERE id=$1
	`, invitationID).Scan(&item.ID, &item.InviterID, &item.InviteeID, &item.Type, &item.BoardID, &item.Status, &item.InviteToken, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Invitation{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetInvitationByToken(ctx context.Context, token string) (Invitation, error) {
	var item Invitation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, inviter_id, invitee_id, type, board_id, status, invite_token, created_at, updated_at
		FROM invitations
		WHERE invite_token=$1
	`, token).Scan(&item.ID, &item.InviterID, &item.InviteeID, &item.Type, &item.BoardID, &item.Status, &item.InviteToken, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Invitation{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListInvitationsForInvitee(ctx context.Context, inviteeID string) ([]Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inviter_id, invitee_id, type, board_id, status, invite_token, created_at, updated_at
		FROM invitations
		WHERE invitee_id=$1
		ORDER BY created_at DESC
	`, inviteeID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	items := make([]Invitation, 0)
	for rows.Next() {
		var item Invitation
		if err := rows.Scan(&item.ID, &item.InviterID, &item.InviteeID, &item.Type, &item.BoardID, &item.Status, &item.InviteToken, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return items, nil
}

// ResolveInvitation moves a Pending invitation to a terminal status. Reports
// whether the transition happened, so a second accept is detectable.
func (s *PostgresStore) ResolveInvitation(ctx context.Context, invitationID, status string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE invitations SET status=$2, updated_at=NOW()
		WHERE id=$1 AND status='Pending'
	`, invitationID, status)
	if err != nil {
		return false, fmt.Errorf("resolve invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve invitation rows: %w", err)
	}
	return affected > 0, nil
}
