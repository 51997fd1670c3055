package store

import "time"

type User struct {
	ID                  string
	DisplayName         string
	Email               string
	AvatarURL           string
	PasswordHash        string
	IsEmailVerified     bool
	EmailVerifyToken    string
	ForgotPasswordToken string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PublicProfile is the projection of a user that may leave the server.
// Password hashes and security tokens are never part of it.
type PublicProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarUrl"`
}

func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
	}
}

type Workspace struct {
	ID         string
	Title      string
	Visibility string
	Destroyed  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type WorkspaceMember struct {
	WorkspaceID string
	UserID      string
	Role        string
	JoinedAt    time.Time
}

type Board struct {
	ID             string
	Title          string
	Description    string
	Visibility     string
	CoverPhotoURL  string
	WorkspaceID    *string
	ColumnOrderIDs []string
	Destroyed      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type BoardMember struct {
	BoardID string
	UserID  string
	Role    string
}

type Column struct {
	ID           string
	BoardID      string
	Title        string
	CardOrderIDs []string
	Destroyed    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Card struct {
	ID          string
	BoardID     string
	ColumnID    string
	Title       string
	Description string
	DueDate     *time.Time
	// IsCompleted is tri-state: nil means completion does not apply.
	IsCompleted *bool
	Archived    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CardComment struct {
	ID        string
	CardID    string
	UserID    string
	Body      string
	CreatedAt time.Time
}

const (
	InvitationTypeBoard = "BoardInvitation"

	InvitationPending  = "Pending"
	InvitationAccepted = "Accepted"
	InvitationRejected = "Rejected"
)

type Invitation struct {
	ID          string
	InviterID   string
	InviteeID   string
	Type        string
	BoardID     string
	Status      string
	InviteToken string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BoardView is the hydrated read model assembled by GetBoardForUser.
type BoardView struct {
	Board
	Columns   []ColumnView
	Members   []MemberProfile
	Workspace *WorkspaceSummary
}

type ColumnView struct {
	Column
	Cards []Card
}

// MemberProfile is a board membership merged with the member's public user
// fields. Membership fields are the base and are never clobbered.
type MemberProfile struct {
	UserID      string
	Role        string
	DisplayName string
	Email       string
	AvatarURL   string
}

type WorkspaceSummary struct {
	ID         string
	Title      string
	Visibility string
	Boards     []BoardStub
}

// BoardStub carries just enough of a sibling board for navigation.
type BoardStub struct {
	ID            string
	Title         string
	CoverPhotoURL string
}
