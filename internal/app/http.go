package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/authpw"
	"taskboard/api/internal/store"
)

type HTTPServer struct {
	service *Service
	authpw  *authpw.Service
}

func NewHTTPServer(service *Service, authSvc *authpw.Service) *HTTPServer {
	return &HTTPServer{service: service, authpw: authSvc}
}

// Router builds the API route table. The realtime endpoint and CORS wrapping
// are attached by the caller.
func (s *HTTPServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.withMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	api.HandleFunc("/auth/signup", s.handleAuthSignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", s.handleAuthSignIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/verify-email", s.handleAuthVerifyEmail).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset-password/request", s.handleAuthRequestReset).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset-password", s.handleAuthResetPassword).Methods(http.MethodPost)

	api.HandleFunc("/session", s.handleSessionInfo).Methods(http.MethodGet)
	api.HandleFunc("/session/refresh", s.handleSessionRefresh).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", s.handleSessionLogout).Methods(http.MethodPost)

	api.HandleFunc("/search", s.authed(s.handleSearch)).Methods(http.MethodGet)

	api.HandleFunc("/workspaces", s.authed(s.handleListWorkspaces)).Methods(http.MethodGet)
	api.HandleFunc("/workspaces", s.authed(s.handleCreateWorkspace)).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{workspaceID}", s.authed(s.handleGetWorkspace)).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{workspaceID}", s.authed(s.handleUpdateWorkspace)).Methods(http.MethodPatch)
	api.HandleFunc("/workspaces/{workspaceID}", s.authed(s.handleDeleteWorkspace)).Methods(http.MethodDelete)
	api.HandleFunc("/workspaces/{workspaceID}/members", s.authed(s.handleAddWorkspaceMember)).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{workspaceID}/guests", s.authed(s.handleAddWorkspaceGuest)).Methods(http.MethodPost)
	api.HandleFunc("/workspaces/{workspaceID}/guests/{userID}", s.authed(s.handleRemoveWorkspaceGuest)).Methods(http.MethodDelete)

	api.HandleFunc("/boards", s.authed(s.handleListBoards)).Methods(http.MethodGet)
	api.HandleFunc("/boards", s.authed(s.handleCreateBoard)).Methods(http.MethodPost)
	api.HandleFunc("/boards/{boardID}", s.authed(s.handleGetBoard)).Methods(http.MethodGet)
	api.HandleFunc("/boards/{boardID}", s.authed(s.handleUpdateBoard)).Methods(http.MethodPatch)
	api.HandleFunc("/boards/{boardID}", s.authed(s.handleDeleteBoard)).Methods(http.MethodDelete)
	api.HandleFunc("/boards/{boardID}/members", s.authed(s.handleAddBoardMember)).Methods(http.MethodPost)
	api.HandleFunc("/boards/{boardID}/column-order", s.authed(s.handleReorderColumns)).Methods(http.MethodPut)
	api.HandleFunc("/boards/{boardID}/columns", s.authed(s.handleCreateColumn)).Methods(http.MethodPost)
	api.HandleFunc("/boards/{boardID}/invitations", s.authed(s.handleInviteToBoard)).Methods(http.MethodPost)

	api.HandleFunc("/columns/{columnID}", s.authed(s.handleUpdateColumn)).Methods(http.MethodPatch)
	api.HandleFunc("/columns/{columnID}", s.authed(s.handleDeleteColumn)).Methods(http.MethodDelete)
	api.HandleFunc("/columns/{columnID}/card-order", s.authed(s.handleReorderCards)).Methods(http.MethodPut)
	api.HandleFunc("/columns/{columnID}/cards", s.authed(s.handleCreateCard)).Methods(http.MethodPost)

	api.HandleFunc("/cards/{cardID}", s.authed(s.handleGetCard)).Methods(http.MethodGet)
	api.HandleFunc("/cards/{cardID}", s.authed(s.handleUpdateCard)).Methods(http.MethodPatch)
	api.HandleFunc("/cards/{cardID}/archive", s.authed(s.handleArchiveCard)).Methods(http.MethodPost)
	api.HandleFunc("/cards/{cardID}/move", s.authed(s.handleMoveCard)).Methods(http.MethodPost)
	api.HandleFunc("/cards/{cardID}/comments", s.authed(s.handleListCardComments)).Methods(http.MethodGet)
	api.HandleFunc("/cards/{cardID}/comments", s.authed(s.handleAddCardComment)).Methods(http.MethodPost)
	api.HandleFunc("/cards/{cardID}/members", s.authed(s.handleListCardMembers)).Methods(http.MethodGet)
	api.HandleFunc("/cards/{cardID}/members", s.authed(s.handleAssignCardMember)).Methods(http.MethodPost)
	api.HandleFunc("/cards/{cardID}/members/{userID}", s.authed(s.handleUnassignCardMember)).Methods(http.MethodDelete)

	api.HandleFunc("/invitations", s.authed(s.handleListInvitations)).Methods(http.MethodGet)
	api.HandleFunc("/invitations/token/{token}", s.authed(s.handleGetInvitationByToken)).Methods(http.MethodGet)
	api.HandleFunc("/invitations/{invitationID}/respond", s.authed(s.handleRespondToInvitation)).Methods(http.MethodPost)

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// ---------------------------------------------------------------------------
// Auth and sessions

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := s.authpw.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "CONFLICT", "Email already registered", nil)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	response := map[string]any{
		"userId":  resp.UserID,
		"message": "Please check your email to verify your account",
	}
	// Dev bypass: surface the verification token when mail is not configured.
	if !s.service.SMTPConfigured() {
		response["devVerificationToken"] = resp.VerificationToken
		response["message"] = "Account created. Verify your email to continue."
	}
	writeJSON(w, http.StatusCreated, response)
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := s.authpw.SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
		return
	}
	if resp.RequiresVerify {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Please verify your email before signing in", nil)
		return
	}

	session, err := s.service.CreateSession(r.Context(), resp.User.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to create session", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"expiresAt":    session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleAuthVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.authpw.VerifyEmail(r.Context(), body.Token); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
}

func (s *HTTPServer) handleAuthRequestReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	token, _ := s.authpw.RequestPasswordReset(r.Context(), body.Email)

	response := map[string]any{
		"message": "If an account exists, a reset email has been sent",
	}
	if !s.service.SMTPConfigured() && token != "" {
		response["devResetToken"] = token
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleAuthResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.authpw.ResetPassword(r.Context(), authpw.ResetPasswordRequest{
		Token:       body.Token,
		NewPassword: body.NewPassword,
	}); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

func (s *HTTPServer) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userName":      session.UserName,
		"userId":        session.UserID,
	})
}

func (s *HTTPServer) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  session.Token,
		"refreshToken": session.RefreshToken,
		"userName":     session.UserName,
	})
}

func (s *HTTPServer) handleSessionLogout(w http.ResponseWriter, r *http.Request) {
	session := Session{}
	if token := bearerToken(r); token != "" {
		if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			session = parsed
		}
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	if err := s.service.Logout(r.Context(), session, body.RefreshToken); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---------------------------------------------------------------------------
// Search

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, session Session) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	payload, err := s.service.Search(r.Context(), session.UserID, q, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// ---------------------------------------------------------------------------
// Workspaces

func (s *HTTPServer) handleListWorkspaces(w http.ResponseWriter, r *http.Request, session Session) {
	workspaces, err := s.service.ListWorkspaces(r.Context(), session.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(workspaces))
	for _, ws := range workspaces {
		items = append(items, workspaceJSON(ws))
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": items})
}

func (s *HTTPServer) handleCreateWorkspace(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title      string `json:"title"`
		Visibility string `json:"visibility"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	workspace, err := s.service.CreateWorkspace(r.Context(), session.UserID, body.Title, body.Visibility)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, workspaceJSON(workspace))
}

func (s *HTTPServer) handleGetWorkspace(w http.ResponseWriter, r *http.Request, session Session) {
	workspace, err := s.service.GetWorkspace(r.Context(), session.UserID, mux.Vars(r)["workspaceID"])
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workspaceJSON(workspace))
}

func (s *HTTPServer) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title      string `json:"title"`
		Visibility string `json:"visibility"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	workspace, err := s.service.UpdateWorkspace(r.Context(), session.UserID, mux.Vars(r)["workspaceID"], body.Title, body.Visibility)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workspaceJSON(workspace))
}

func (s *HTTPServer) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteWorkspace(r.Context(), session.UserID, mux.Vars(r)["workspaceID"]); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAddWorkspaceMember(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.AddWorkspaceMember(r.Context(), session.UserID, mux.Vars(r)["workspaceID"], body.UserID, body.Role); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAddWorkspaceGuest(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.AddWorkspaceGuest(r.Context(), session.UserID, mux.Vars(r)["workspaceID"], body.UserID); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *HTTPServer) handleRemoveWorkspaceGuest(w http.ResponseWriter, r *http.Request, session Session) {
	vars := mux.Vars(r)
	if err := s.service.RemoveWorkspaceGuest(r.Context(), session.UserID, vars["workspaceID"], vars["userID"]); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---------------------------------------------------------------------------
// Boards

func (s *HTTPServer) handleListBoards(w http.ResponseWriter, r *http.Request, session Session) {
	boards, err := s.service.ListBoards(r.Context(), session.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(boards))
	for _, b := range boards {
		items = append(items, boardJSON(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": items})
}

func (s *HTTPServer) handleCreateBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title         string  `json:"title"`
		Description   string  `json:"description"`
		Visibility    string  `json:"visibility"`
		CoverPhotoURL string  `json:"coverPhotoUrl"`
		WorkspaceID   *string `json:"workspaceId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	board, err := s.service.CreateBoard(r.Context(), session.UserID, body.Title, body.Description, body.Visibility, body.CoverPhotoURL, body.WorkspaceID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, boardJSON(board))
}

func (s *HTTPServer) handleGetBoard(w http.ResponseWriter, r *http.Request, session Session) {
	view, err := s.service.GetBoardView(r.Context(), session.UserID, mux.Vars(r)["boardID"])
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boardViewJSON(view))
}

func (s *HTTPServer) handleUpdateBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		Visibility    string `json:"visibility"`
		CoverPhotoURL string `json:"coverPhotoUrl"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	board, err := s.service.UpdateBoard(r.Context(), session.UserID, mux.Vars(r)["boardID"], body.Title, body.Description, body.Visibility, body.CoverPhotoURL)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boardJSON(board))
}

func (s *HTTPServer) handleDeleteBoard(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteBoard(r.Context(), session.UserID, mux.Vars(r)["boardID"]); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAddBoardMember(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.AddBoardMember(r.Context(), session.UserID, mux.Vars(r)["boardID"], body.UserID, body.Role); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReorderColumns(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		ColumnOrderIDs []string `json:"columnOrderIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.ReorderColumns(r.Context(), session.UserID, mux.Vars(r)["boardID"], body.ColumnOrderIDs); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCreateColumn(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	column, err := s.service.CreateColumn(r.Context(), session.UserID, mux.Vars(r)["boardID"], body.Title)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, columnJSON(column))
}

// ---------------------------------------------------------------------------
// Columns

func (s *HTTPServer) handleUpdateColumn(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	column, err := s.service.UpdateColumn(r.Context(), session.UserID, mux.Vars(r)["columnID"], body.Title)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, columnJSON(column))
}

func (s *HTTPServer) handleDeleteColumn(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.DeleteColumn(r.Context(), session.UserID, mux.Vars(r)["columnID"]); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReorderCards(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		CardOrderIDs []string `json:"cardOrderIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.ReorderCards(r.Context(), session.UserID, mux.Vars(r)["columnID"], body.CardOrderIDs); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCreateCard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	card, err := s.service.CreateCard(r.Context(), session.UserID, mux.Vars(r)["columnID"], body.Title, body.Description)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cardJSON(card))
}

// ---------------------------------------------------------------------------
// Cards

func (s *HTTPServer) handleGetCard(w http.ResponseWriter, r *http.Request, session Session) {
	card, err := s.service.GetCard(r.Context(), session.UserID, mux.Vars(r)["cardID"])
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cardJSON(card))
}

func (s *HTTPServer) handleUpdateCard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Title       *string         `json:"title"`
		Description *string         `json:"description"`
		DueDate     json.RawMessage `json:"dueDate"`
		IsCompleted json.RawMessage `json:"isCompleted"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	patch := CardPatch{Title: body.Title, Description: body.Description}

	// dueDate and isCompleted distinguish "absent" from an explicit null,
	// which clears the field.
	if len(body.DueDate) > 0 {
		if string(body.DueDate) == "null" {
			patch.ClearDueDate = true
		} else {
			var due time.Time
			if err := json.Unmarshal(body.DueDate, &due); err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "dueDate must be an RFC 3339 timestamp or null", nil)
				return
			}
			patch.DueDate = &due
		}
	}
	if len(body.IsCompleted) > 0 {
		if string(body.IsCompleted) == "null" {
			patch.ClearCompleted = true
		} else {
			var completed bool
			if err := json.Unmarshal(body.IsCompleted, &completed); err != nil {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "isCompleted must be a boolean or null", nil)
				return
			}
			patch.IsCompleted = &completed
		}
	}

	card, err := s.service.UpdateCard(r.Context(), session.UserID, mux.Vars(r)["cardID"], patch)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cardJSON(card))
}

func (s *HTTPServer) handleArchiveCard(w http.ResponseWriter, r *http.Request, session Session) {
	if err := s.service.ArchiveCard(r.Context(), session.UserID, mux.Vars(r)["cardID"]); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleMoveCard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		TargetColumnID string   `json:"targetColumnId"`
		SourceOrderIDs []string `json:"sourceOrderIds"`
		TargetOrderIDs []string `json:"targetOrderIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.MoveCard(r.Context(), session.UserID, mux.Vars(r)["cardID"], body.TargetColumnID, body.SourceOrderIDs, body.TargetOrderIDs); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleListCardComments(w http.ResponseWriter, r *http.Request, session Session) {
	comments, err := s.service.ListCardComments(r.Context(), session.UserID, mux.Vars(r)["cardID"])
	if err != nil {
		respondError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(comments))
	for _, c := range comments {
		items = append(items, commentJSON(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": items})
}

func (s *HTTPServer) handleAddCardComment(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Body string `json:"body"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	comment, err := s.service.AddCardComment(r.Context(), session.UserID, mux.Vars(r)["cardID"], body.Body)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, commentJSON(comment))
}

func (s *HTTPServer) handleListCardMembers(w http.ResponseWriter, r *http.Request, session Session) {
	members, err := s.service.ListCardMembers(r.Context(), session.UserID, mux.Vars(r)["cardID"])
	if err != nil {
		respondError(w, err)
		return
	}
	if members == nil {
		members = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *HTTPServer) handleAssignCardMember(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.AssignCardMember(r.Context(), session.UserID, mux.Vars(r)["cardID"], body.UserID); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *HTTPServer) handleUnassignCardMember(w http.ResponseWriter, r *http.Request, session Session) {
	vars := mux.Vars(r)
	if err := s.service.UnassignCardMember(r.Context(), session.UserID, vars["cardID"], vars["userID"]); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---------------------------------------------------------------------------
// Invitations

func (s *HTTPServer) handleInviteToBoard(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	invitation, err := s.service.InviteToBoard(r.Context(), session.UserID, mux.Vars(r)["boardID"], body.Email)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invitationJSON(invitation))
}

func (s *HTTPServer) handleListInvitations(w http.ResponseWriter, r *http.Request, session Session) {
	invitations, err := s.service.ListInvitations(r.Context(), session.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(invitations))
	for _, inv := range invitations {
		items = append(items, invitationJSON(inv))
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": items})
}

func (s *HTTPServer) handleGetInvitationByToken(w http.ResponseWriter, r *http.Request, session Session) {
	invitation, err := s.service.GetInvitationByToken(r.Context(), session.UserID, mux.Vars(r)["token"])
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invitationJSON(invitation))
}

func (s *HTTPServer) handleRespondToInvitation(w http.ResponseWriter, r *http.Request, session Session) {
	var body struct {
		Accept bool `json:"accept"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	invitation, err := s.service.RespondToInvitation(r.Context(), session.UserID, mux.Vars(r)["invitationID"], body.Accept)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invitationJSON(invitation))
}

// ---------------------------------------------------------------------------
// Plumbing

func (s *HTTPServer) authed(next func(http.ResponseWriter, *http.Request, Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		next(w, r, session)
	}
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token expired", nil)
			return Session{}, false
		}
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return Session{}, false
		}
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func respondError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrAlreadyMember) {
		return http.StatusConflict, "CONFLICT", err.Error(), nil
	}
	if errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token expired", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

// ---------------------------------------------------------------------------
// Response shapes

func workspaceJSON(ws store.Workspace) map[string]any {
	return map[string]any{
		"id":         ws.ID,
		"title":      ws.Title,
		"visibility": ws.Visibility,
		"createdAt":  ws.CreatedAt,
		"updatedAt":  ws.UpdatedAt,
	}
}

func boardJSON(b store.Board) map[string]any {
	return map[string]any{
		"id":             b.ID,
		"title":          b.Title,
		"description":    b.Description,
		"visibility":     b.Visibility,
		"coverPhotoUrl":  b.CoverPhotoURL,
		"workspaceId":    b.WorkspaceID,
		"columnOrderIds": nonNilStrings(b.ColumnOrderIDs),
		"createdAt":      b.CreatedAt,
		"updatedAt":      b.UpdatedAt,
	}
}

func columnJSON(c store.Column) map[string]any {
	return map[string]any{
		"id":           c.ID,
		"boardId":      c.BoardID,
		"title":        c.Title,
		"cardOrderIds": nonNilStrings(c.CardOrderIDs),
		"createdAt":    c.CreatedAt,
		"updatedAt":    c.UpdatedAt,
	}
}

func cardJSON(c store.Card) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"boardId":     c.BoardID,
		"columnId":    c.ColumnID,
		"title":       c.Title,
		"description": c.Description,
		"dueDate":     c.DueDate,
		"isCompleted": c.IsCompleted,
		"archived":    c.Archived,
		"createdAt":   c.CreatedAt,
		"updatedAt":   c.UpdatedAt,
	}
}

func commentJSON(c store.CardComment) map[string]any {
	return map[string]any{
		"id":        c.ID,
		"cardId":    c.CardID,
		"userId":    c.UserID,
		"body":      c.Body,
		"createdAt": c.CreatedAt,
	}
}

func invitationJSON(inv store.Invitation) map[string]any {
	return map[string]any{
		"id":          inv.ID,
		"inviterId":   inv.InviterID,
		"inviteeId":   inv.InviteeID,
		"type":        inv.Type,
		"boardId":     inv.BoardID,
		"status":      inv.Status,
		"inviteToken": inv.InviteToken,
		"createdAt":   inv.CreatedAt,
	}
}

func boardViewJSON(view store.BoardView) map[string]any {
	columns := make([]map[string]any, 0, len(view.Columns))
	for _, col := range view.Columns {
		cards := make([]map[string]any, 0, len(col.Cards))
		for _, card := range col.Cards {
			cards = append(cards, cardJSON(card))
		}
		entry := columnJSON(col.Column)
		entry["cards"] = cards
		columns = append(columns, entry)
	}

	members := make([]map[string]any, 0, len(view.Members))
	for _, m := range view.Members {
		members = append(members, map[string]any{
			"userId":      m.UserID,
			"role":        m.Role,
			"displayName": m.DisplayName,
			"email":       m.Email,
			"avatarUrl":   m.AvatarURL,
		})
	}

	payload := boardJSON(view.Board)
	payload["columns"] = columns
	payload["members"] = members

	if view.Workspace != nil {
		boards := make([]map[string]any, 0, len(view.Workspace.Boards))
		for _, stub := range view.Workspace.Boards {
			boards = append(boards, map[string]any{
				"id":            stub.ID,
				"title":         stub.Title,
				"coverPhotoUrl": stub.CoverPhotoURL,
			})
		}
		payload["workspace"] = map[string]any{
			"id":         view.Workspace.ID,
			"title":      view.Workspace.Title,
			"visibility": view.Workspace.Visibility,
			"boards":     boards,
		}
	}
	return payload
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
