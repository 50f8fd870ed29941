package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"sage.app/companion/internal/auth"
	"sage.app/companion/internal/core"
	"sage.app/companion/internal/store"
)

type APIHandler struct {
	chatService  *core.ChatService
	chartService *core.ChartService
}

func NewAPIHandler(chat *core.ChatService, chart *core.ChartService) *APIHandler {
	return &APIHandler{chatService: chat, chartService: chart}
}

// JWTAuthMiddleware resolves the caller's identity from the bearer token
// and mirrors it into the local users table. Nothing below it runs without
// a resolved user id.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, &core.AuthError{Reason: "Authorization header is required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		identity, err := auth.ValidateJWT(tokenString)
		if err != nil {
			writeError(w, &core.AuthError{Reason: "Invalid token"})
			return
		}

		user, err := h.chatService.GetOrCreateUser(identity.UserID, identity.Email)
		if err != nil {
			log.WithField("user_id", identity.UserID).WithError(err).Error("Failed to resolve user identity")
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SendMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &core.ValidationError{Reason: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.chatService.SendMessage(r.Context(), userID, req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	// The workflow's response goes back verbatim; its shape is owned by
	// the workflow, not by this backend.
	w.Header().Set("Content-Type", "application/json")
	w.Write(result.Raw)
}

func (h *APIHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	sessionID := r.URL.Query().Get("session_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.chatService.GetHistory(sessionID, userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (h *APIHandler) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	sessionID := r.URL.Query().Get("session_id")
	deleted, err := h.chatService.ClearHistory(sessionID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "deleted": deleted})
}

func (h *APIHandler) GenerateChartHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	var details core.BirthDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		writeError(w, &core.ValidationError{Reason: "invalid request body: " + err.Error()})
		return
	}

	profile, err := h.chartService.GenerateChart(r.Context(), userID, details)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"chart":   profile,
		"message": "Chart generated successfully",
	})
}

func (h *APIHandler) GetChartHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	profile, err := h.chartService.GetProfile(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if profile == nil {
		writeJSONError(w, http.StatusNotFound, "No chart generated yet")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	sessions, err := h.chatService.ListSessions(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *APIHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	settings, err := h.chatService.GetEffectiveSettings(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

type TokenRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TokenHandler stands in for the external identity provider in local
// development. The route is only mounted when DEV_TOKEN_ENDPOINT is set.
func (h *APIHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &core.ValidationError{Reason: "invalid request body: " + err.Error()})
		return
	}
	if req.UserID == "" {
		writeError(w, &core.ValidationError{Field: "user_id", Reason: "user_id is required"})
		return
	}

	token, err := auth.GenerateJWT(req.UserID, req.Email)
	if err != nil {
		log.WithField("user_id", req.UserID).WithError(err).Error("Failed to generate token")
		writeJSONError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps the core error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is an internal error.
func writeError(w http.ResponseWriter, err error) {
	var authErr *core.AuthError
	var valErr *core.ValidationError
	var gwErr *core.GatewayError
	var storeErr *core.StoreError

	switch {
	case errors.As(err, &authErr):
		writeJSONError(w, http.StatusUnauthorized, authErr.Reason)
	case errors.As(err, &valErr):
		writeJSONError(w, http.StatusBadRequest, valErr.Error())
	case errors.As(err, &gwErr):
		log.WithField("status", gwErr.StatusCode).WithError(err).Error("Workflow invocation failed")
		writeJSONError(w, http.StatusBadGateway, "The assistant is temporarily unavailable. Please try again.")
	case errors.As(err, &storeErr):
		log.WithError(err).Error("Store operation failed")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
	default:
		log.WithError(err).Error("Unhandled error")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}
