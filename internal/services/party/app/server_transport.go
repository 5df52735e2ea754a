package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	apperrors "github.com/soundleaf/soundleaf/internal/platform/errors"
	catalogdomain "github.com/soundleaf/soundleaf/internal/services/catalog/domain"
	"github.com/soundleaf/soundleaf/internal/services/party/domain"
)

// tokenCookieName is the session cookie browsers present instead of a
// bearer header.
const tokenCookieName = "soundleaf_token"

type wsUserIDContextKey struct{}

type handlers struct {
	coordinator *Coordinator
	resolver    *catalogdomain.Resolver
	authorizer  Authorizer
	gateway     *Gateway
}

// newHandler builds the party service routes: the JSON request layer the
// clients call and the WebSocket endpoint state is pushed through.
func newHandler(h handlers) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /api/parties/invites", h.handleListInvites)
	mux.HandleFunc("GET /api/items/{itemID}/party-invitees", h.handleListInvitees)
	mux.HandleFunc("POST /api/parties", h.handleCreateParty)
	mux.HandleFunc("GET /api/parties/{id}", h.handleGetParty)
	mux.HandleFunc("POST /api/parties/{id}/join", h.handleJoinParty)
	mux.HandleFunc("POST /api/parties/{id}/leave", h.handleLeaveParty)
	mux.HandleFunc("POST /api/parties/{id}/action", h.handleAction)
	mux.HandleFunc("POST /api/parties/{id}/invite", h.handleInvite)
	mux.HandleFunc("POST /api/parties/{id}/kick", h.handleKick)

	wsHandler := websocket.Handler(h.handleWSConn)
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.authenticateRequest(r)
		if err != nil {
			writeError(w, err)
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), wsUserIDContextKey{}, userID))
		wsHandler.ServeHTTP(w, r)
	})

	return mux
}

// handleWSConn keeps one client connection registered for pushes until it
// goes away. Inbound frames are drained and ignored; control flows through
// the JSON API, the socket only carries server-to-client events.
func (h handlers) handleWSConn(conn *websocket.Conn) {
	userID := ""
	if request := conn.Request(); request != nil {
		if resolved, ok := request.Context().Value(wsUserIDContextKey{}).(string); ok {
			userID = resolved
		}
	}
	if userID == "" {
		_ = conn.Close()
		return
	}

	peer := newGatewayPeer(conn)
	h.gateway.register(userID, peer)
	defer h.gateway.unregister(userID, peer)

	for {
		var discard json.RawMessage
		if err := websocket.JSON.Receive(conn, &discard); err != nil {
			return
		}
	}
}

func (h handlers) handleListInvites(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticateUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	invites, err := h.coordinator.ListInvites(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": invites})
}

func (h handlers) handleListInvitees(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticateUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	itemID := strings.TrimSpace(r.PathValue("itemID"))

	allowed, err := h.resolver.CanAccessItem(r.Context(), user.ID, itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowed {
		writeError(w, apperrors.New(apperrors.CodeLibraryItemAccessDenied, "user cannot access library item"))
		return
	}

	users, err := h.resolver.ListInviteeOptions(r.Context(), user.ID, itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": toUserViews(users)})
}

type initialStateRequest struct {
	IsPlaying    bool    `json:"isPlaying"`
	PlaybackRate float64 `json:"playbackRate"`
	Position     float64 `json:"position"`
}

type createPartyRequest struct {
	LibraryItemID  string               `json:"libraryItemId"`
	EpisodeID      string               `json:"episodeId"`
	InvitedUserIDs []string             `json:"invitedUserIds"`
	InitialState   *initialStateRequest `json:"initialState"`
}

func (h handlers) handleCreateParty(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticateUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createPartyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.LibraryItemID) == "" {
		writeError(w, apperrors.New(apperrors.CodePartyItemRequired, "libraryItemId is required"))
		return
	}

	allowed, err := h.resolver.CanAccessItem(r.Context(), user.ID, req.LibraryItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowed {
		writeError(w, apperrors.New(apperrors.CodeLibraryItemAccessDenied, "user cannot access library item"))
		return
	}

	media, err := h.resolver.ResolveMediaSnapshot(r.Context(), req.LibraryItemID, req.EpisodeID)
	if err != nil {
		writeError(w, err)
		return
	}

	initial := domain.InitialState{}
	if req.InitialState != nil {
		initial = domain.InitialState{
			IsPlaying:    req.InitialState.IsPlaying,
			PlaybackRate: req.InitialState.PlaybackRate,
			Position:     req.InitialState.Position,
		}
	}

	view, err := h.coordinator.CreateParty(r.Context(), user, toMediaSnapshot(media), nil, initial)
	if err != nil {
		writeError(w, err)
		return
	}

	if len(req.InvitedUserIDs) > 0 {
		invitees, err := h.resolver.EligibleInvitees(r.Context(), req.LibraryItemID, req.InvitedUserIDs)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(invitees) > 0 {
			view, err = h.coordinator.AddInvites(r.Context(), view.ID, toUserRefs(invitees))
			if err != nil {
				writeError(w, err)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, partyEnvelope{Party: view})
}

func (h handlers) handleGetParty(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticateUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	partyID := r.PathValue("id")

	if err := h.coordinator.EnsureMember(r.Context(), partyID, user.ID); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.coordinator.GetPartyView(r.Context(), partyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partyEnvelope{Party: view})
}

func (h handlers) handleJoinParty(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticateUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	partyID := r.PathValue("id")

	view, err := h.coordinator.GetPartyView(r.Context(), partyID)
	if err != nil {
		writeError(w, err)
		return
	}

	allowed, err := h.resolver.CanAccessItem(r.Context(), user.ID, view.LibraryItemID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !allowed {
		writeError(w, apperrors.New(apperrors.CodeLibraryItemAccessDenied, "user cannot access library item"))
		return
	}

	joined, err := h.coordinator.JoinParty(r.Context(), user, partyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partyEnvelope{Party: joined})
}

func (h handlers) handleLeaveParty(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticateUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.coordinator.LeaveParty(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type actionRequest struct {
	ActionType   string   `json:"actionType"`
	Position     *float64 `json:"position"`
	PlaybackRate *float64 `json:"playbackRate"`
	ActionID     string   `json:"actionId"`
}

func (h handlers) handleAction(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticateUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	actionType, err := domain.ParseActionType(req.ActionType)
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodePartyInvalidAction, "invalid actionType", err))
		return
	}

	err = h.coordinator.ApplyAction(r.Context(), user.ID, r.PathValue("id"), domain.Action{
		Type:         actionType,
		Position:     req.Position,
		PlaybackRate: req.PlaybackRate,
		ActionID:     req.ActionID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type inviteRequest struct {
	InvitedUserIDs []string `json:"invitedUserIds"`
}

func (h handlers) handleInvite(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticateUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	partyID := r.PathValue("id")

	if err := h.coordinator.EnsureMember(r.Context(), partyID, user.ID); err != nil {
		writeError(w, err)
		return
	}

	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.InvitedUserIDs) == 0 {
		writeError(w, apperrors.New(apperrors.CodePartyInviteesRequired, "invitedUserIds is required"))
		return
	}

	view, err := h.coordinator.GetPartyView(r.Context(), partyID)
	if err != nil {
		writeError(w, err)
		return
	}
	invitees, err := h.resolver.EligibleInvitees(r.Context(), view.LibraryItemID, req.InvitedUserIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.coordinator.AddInvites(r.Context(), partyID, toUserRefs(invitees))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partyEnvelope{Party: updated})
}

type kickRequest struct {
	UserID string `json:"userId"`
}

func (h handlers) handleKick(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticateUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	partyID := r.PathValue("id")

	if err := h.coordinator.EnsureMember(r.Context(), partyID, user.ID); err != nil {
		writeError(w, err)
		return
	}

	var req kickRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, apperrors.New(apperrors.CodePartyKickTargetRequired, "userId is required"))
		return
	}

	if err := h.coordinator.KickUser(r.Context(), partyID, req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// authenticateRequest verifies the access token and returns the caller's
// user id without touching the catalog.
func (h handlers) authenticateRequest(r *http.Request) (string, error) {
	return h.authorizer.Authenticate(r.Context(), accessTokenFromRequest(r))
}

// authenticateUser verifies the access token and resolves the caller to an
// active catalog user.
func (h handlers) authenticateUser(r *http.Request) (domain.UserRef, error) {
	userID, err := h.authenticateRequest(r)
	if err != nil {
		return domain.UserRef{}, err
	}
	user, err := h.resolver.ResolveUser(r.Context(), userID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeUserNotFound) {
			return domain.UserRef{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "unknown user", err)
		}
		return domain.UserRef{}, err
	}
	return domain.UserRef{ID: user.ID, Username: user.Username}, nil
}

func accessTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func toUserViews(users []catalogdomain.User) []userView {
	views := make([]userView, 0, len(users))
	for _, user := range users {
		views = append(views, userView{ID: user.ID, Username: user.Username})
	}
	return views
}

func toUserRefs(users []catalogdomain.User) []domain.UserRef {
	refs := make([]domain.UserRef, 0, len(users))
	for _, user := range users {
		refs = append(refs, domain.UserRef{ID: user.ID, Username: user.Username})
	}
	return refs
}

func toMediaSnapshot(media catalogdomain.Media) domain.MediaSnapshot {
	return domain.MediaSnapshot{
		LibraryItemID: media.LibraryItemID,
		EpisodeID:     media.EpisodeID,
		LibraryID:     media.LibraryID,
		MediaType:     media.MediaType,
		DisplayTitle:  media.Title,
		DisplayAuthor: media.Author,
		CoverPath:     media.CoverPath,
		Duration:      media.Duration,
	}
}

// decodeJSON parses a request body, treating an empty body as an empty
// request rather than an error.
func decodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(target)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperrors.Wrap(apperrors.CodeInvalidRequestBody, "invalid request body", err)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Code.HTTPStatus(), errorResponse{Error: appErr.Message, Code: string(appErr.Code)})
		return
	}
	log.Printf("party request failed err=%v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response failed err=%v", err)
	}
}
