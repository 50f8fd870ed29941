package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"sage.app/companion/internal/store"
)

const (
	// HistoryWindow is how many recent messages travel to the workflow as
	// conversation context.
	HistoryWindow = 10

	// DefaultHistoryLimit bounds history reads when the caller gives none.
	DefaultHistoryLimit = 50
)

// ChatService orchestrates one chat exchange: load durable state, assemble
// context, invoke the workflow, then commit the turn. All cross-request
// state lives in the store; the service itself is stateless.
type ChatService struct {
	dbStore *store.SQLiteStore
	gateway *WorkflowGateway
}

func NewChatService(db *store.SQLiteStore, gateway *WorkflowGateway) *ChatService {
	return &ChatService{dbStore: db, gateway: gateway}
}

// GetOrCreateUser mirrors the externally-issued identity into the local
// users table. Called by the auth middleware on every request.
func (s *ChatService) GetOrCreateUser(userID, email string) (*store.User, error) {
	user, err := s.dbStore.GetOrCreateUser(userID, email)
	if err != nil {
		return nil, &StoreError{Op: "get or create user", Err: err}
	}
	return user, nil
}

// SendMessage runs the full exchange. The effective session id is minted
// exactly once here and threaded through every read and write below; no
// later step derives its own.
func (s *ChatService) SendMessage(ctx context.Context, userID, sessionID, message string) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, &ValidationError{Field: "message", Reason: "message is required"}
	}

	if sessionID == "" {
		sessionID = mintSessionID()
	}

	profile, err := s.dbStore.GetProfile(userID)
	if err != nil {
		return nil, &StoreError{Op: "load profile", Err: err}
	}
	settings, err := s.dbStore.GetSettings(userID)
	if err != nil {
		return nil, &StoreError{Op: "load settings", Err: err}
	}
	history, err := s.dbStore.GetRecentMessages(sessionID, userID, HistoryWindow)
	if err != nil {
		return nil, &StoreError{Op: "load history", Err: err}
	}

	payload := AssembleContext(profile, settings, history)

	// A failed invocation aborts here: no messages, no session touch.
	result, err := s.gateway.Chat(ctx, ChatWebhookRequest{
		UserID:         userID,
		SessionID:      sessionID,
		Message:        message,
		ContextPayload: payload,
	})
	if err != nil {
		return nil, err
	}

	// User turn first, then the reply; history reads sort by creation time
	// and expect that order.
	if _, err := s.dbStore.AppendMessage(sessionID, userID, message, "user", nil); err != nil {
		return nil, &StoreError{Op: "append user message", Err: err}
	}
	if _, err := s.dbStore.AppendMessage(sessionID, userID, result.AIResponse, "assistant", result.Metadata); err != nil {
		return nil, &StoreError{Op: "append assistant message", Err: err}
	}

	// Session bookkeeping is best-effort: the reply is already delivered
	// and persisted, so a failure here is logged, not surfaced.
	sessionName := fmt.Sprintf("Chat %s", time.Now().Format("1/2/2006"))
	if _, err := s.dbStore.UpsertSession(sessionID, userID, sessionName); err != nil {
		log.WithFields(log.Fields{"user_id": userID, "session_id": sessionID}).
			WithError(err).Warn("Failed to upsert session metadata")
	}

	return result, nil
}

// GetHistory returns up to limit messages for the session, oldest first,
// scoped to the calling user.
func (s *ChatService) GetHistory(sessionID, userID string, limit int) ([]store.Message, error) {
	if sessionID == "" {
		return nil, &ValidationError{Field: "session_id", Reason: "session ID is required"}
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	messages, err := s.dbStore.GetMessages(sessionID, userID, limit)
	if err != nil {
		return nil, &StoreError{Op: "load history", Err: err}
	}
	return messages, nil
}

// ClearHistory deletes the session's messages, then marks the session
// inactive. The two steps are not atomic: if the second fails the session
// stays nominally active with zero messages, which is logged and accepted.
func (s *ChatService) ClearHistory(sessionID, userID string) (int64, error) {
	if sessionID == "" {
		return 0, &ValidationError{Field: "session_id", Reason: "session ID is required"}
	}
	deleted, err := s.dbStore.ClearSessionMessages(sessionID, userID)
	if err != nil {
		return 0, &StoreError{Op: "clear session messages", Err: err}
	}
	if err := s.dbStore.DeactivateSession(sessionID, userID); err != nil {
		log.WithFields(log.Fields{"user_id": userID, "session_id": sessionID}).
			WithError(err).Warn("Messages cleared but session left active")
	}
	return deleted, nil
}

func (s *ChatService) ListSessions(userID string) ([]store.Session, error) {
	sessions, err := s.dbStore.GetActiveSessionsByUserID(userID)
	if err != nil {
		return nil, &StoreError{Op: "list sessions", Err: err}
	}
	return sessions, nil
}

// GetEffectiveSettings returns the user's settings with defaults filled in
// for the dashboard; the stored row, if any, is returned untouched.
func (s *ChatService) GetEffectiveSettings(userID string) (*SettingsContext, error) {
	settings, err := s.dbStore.GetSettings(userID)
	if err != nil {
		return nil, &StoreError{Op: "load settings", Err: err}
	}
	effective := effectiveSettings(settings)
	return &effective, nil
}

func mintSessionID() string {
	return fmt.Sprintf("session_%d", time.Now().UnixMilli())
}
