package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetOrCreateUserIdempotent(t *testing.T) {
	s := newTestStore(t)

	first, err := s.GetOrCreateUser("user-1", "one@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", first.ID)
	assert.Equal(t, "one@example.com", first.Email)
	assert.False(t, first.OnboardingCompleted)
	assert.Equal(t, "free", first.SubscriptionTier)

	// A second resolve must not overwrite the existing row.
	second, err := s.GetOrCreateUser("user-1", "changed@example.com")
	require.NoError(t, err)
	assert.Equal(t, "one@example.com", second.Email)
}

func TestSetOnboardingCompleted(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetOrCreateUser("user-1", "one@example.com")
	require.NoError(t, err)

	require.NoError(t, s.SetOnboardingCompleted("user-1"))

	user, err := s.GetUser("user-1")
	require.NoError(t, err)
	assert.True(t, user.OnboardingCompleted)

	assert.Error(t, s.SetOnboardingCompleted("no-such-user"))
}

func TestGetProfileAbsent(t *testing.T) {
	s := newTestStore(t)

	profile, err := s.GetProfile("user-1")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestUpsertProfileWholesale(t *testing.T) {
	s := newTestStore(t)

	first := ProfileFields{
		Name:          "Ada",
		Birthdate:     "1990-04-12",
		Birthtime:     "08:30",
		Location:      "Athens, Greece",
		Type:          "Generator",
		Strategy:      "To Respond",
		Authority:     "Sacral",
		Centers:       map[string]bool{"Throat": true, "Sacral": false},
		Gates:         []string{"34", "57"},
		ChannelsShort: []string{"34-57"},
		DesignSun:     "34.2",
	}
	_, err := s.UpsertProfile("user-1", first)
	require.NoError(t, err)

	got, err := s.GetProfile("user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Generator", got.Type)
	assert.Equal(t, map[string]bool{"Throat": true, "Sacral": false}, got.Centers)
	assert.Equal(t, []string{"34", "57"}, got.Gates)
	assert.Equal(t, "34.2", got.DesignSun)

	// Regenerating replaces the row wholesale; fields absent from the new
	// chart must not survive from the old one.
	second := ProfileFields{
		Name:      "Ada",
		Birthdate: "1990-04-12",
		Birthtime: "08:30",
		Location:  "Athens, Greece",
		Type:      "Projector",
	}
	_, err = s.UpsertProfile("user-1", second)
	require.NoError(t, err)

	got, err = s.GetProfile("user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Projector", got.Type)
	assert.Empty(t, got.Gates)
	assert.Empty(t, got.DesignSun)
	assert.Nil(t, got.Centers)
}

func TestSettingsRoundtrip(t *testing.T) {
	s := newTestStore(t)

	absent, err := s.GetSettings("user-1")
	require.NoError(t, err)
	assert.Nil(t, absent)

	require.NoError(t, s.UpsertSettings(&Settings{
		UserID:               "user-1",
		ResponseDepth:        "advanced",
		FocusAreas:           []string{"career", "relationships"},
		Language:             "el",
		NotificationsEnabled: true,
	}))

	got, err := s.GetSettings("user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "advanced", got.ResponseDepth)
	assert.Equal(t, []string{"career", "relationships"}, got.FocusAreas)
	assert.Equal(t, "el", got.Language)
}

func TestGetRecentMessagesWindow(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 15; i++ {
		_, err := s.AppendMessage("s1", "user-1", contentFor(i), "user", nil)
		require.NoError(t, err)
	}

	messages, err := s.GetRecentMessages("s1", "user-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 10)

	// Newest 10, returned oldest first.
	assert.Equal(t, contentFor(5), messages[0].Content)
	assert.Equal(t, contentFor(14), messages[9].Content)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt),
			"messages must be non-decreasing by creation time")
	}
}

func TestMessagesScopedToUser(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendMessage("shared", "user-1", "mine", "user", nil)
	require.NoError(t, err)
	_, err = s.AppendMessage("shared", "user-2", "theirs", "user", nil)
	require.NoError(t, err)

	messages, err := s.GetRecentMessages("shared", "user-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "mine", messages[0].Content)

	messages, err = s.GetMessages("shared", "user-2", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "theirs", messages[0].Content)
}

func TestMessageMetadataRoundtrip(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendMessage("s1", "user-1", "reply", "assistant", []byte(`{"model":"sage-v2"}`))
	require.NoError(t, err)

	messages, err := s.GetMessages("s1", "user-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.JSONEq(t, `{"model":"sage-v2"}`, string(messages[0].Metadata))
}

func TestClearSessionMessages(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 4; i++ {
		_, err := s.AppendMessage("s1", "user-1", contentFor(i), "user", nil)
		require.NoError(t, err)
	}
	_, err := s.AppendMessage("s1", "user-2", "other user", "user", nil)
	require.NoError(t, err)

	deleted, err := s.ClearSessionMessages("s1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)

	mine, err := s.GetMessages("s1", "user-1", 10)
	require.NoError(t, err)
	assert.Empty(t, mine)

	// The colliding session id of another user is untouched.
	theirs, err := s.GetMessages("s1", "user-2", 10)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestUpsertSessionRefreshAndDeactivate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpsertSession("s1", "user-1", "Chat 1/1/2026")
	require.NoError(t, err)
	_, err = s.UpsertSession("s1", "user-1", "Chat 1/2/2026")
	require.NoError(t, err)

	sessions, err := s.GetActiveSessionsByUserID("user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Chat 1/2/2026", sessions[0].SessionName)
	assert.True(t, sessions[0].IsActive)

	require.NoError(t, s.DeactivateSession("s1", "user-1"))

	sessions, err = s.GetActiveSessionsByUserID("user-1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func contentFor(i int) string {
	return "message " + string(rune('a'+i))
}
