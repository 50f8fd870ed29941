package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        email TEXT NOT NULL,
        onboarding_completed BOOLEAN DEFAULT FALSE,
        subscription_tier TEXT DEFAULT 'free',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS profiles (
        user_id TEXT PRIMARY KEY,
        name TEXT,
        birthdate TEXT,
        birthtime TEXT,
        location TEXT,
        type TEXT,
        strategy TEXT,
        authority TEXT,
        profile TEXT,
        definition TEXT,
        incarnation_cross TEXT,
        centers TEXT,        -- JSON object: center name -> defined bool
        gates TEXT,          -- JSON array
        channels_short TEXT, -- JSON array
        channels_long TEXT,  -- JSON array
        variables TEXT,      -- JSON, opaque
        circuitries TEXT,    -- JSON, opaque
        design_sun TEXT, design_earth TEXT, design_moon TEXT,
        design_mercury TEXT, design_venus TEXT, design_mars TEXT,
        design_jupiter TEXT, design_saturn TEXT, design_uranus TEXT,
        design_neptune TEXT, design_pluto TEXT,
        design_north_node TEXT, design_south_node TEXT,
        personality_sun TEXT, personality_earth TEXT, personality_moon TEXT,
        personality_mercury TEXT, personality_venus TEXT, personality_mars TEXT,
        personality_jupiter TEXT, personality_saturn TEXT, personality_uranus TEXT,
        personality_neptune TEXT, personality_pluto TEXT,
        personality_north_node TEXT, personality_south_node TEXT,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS settings (
        user_id TEXT PRIMARY KEY,
        response_depth TEXT,
        focus_areas TEXT, -- JSON array
        language TEXT,
        notifications_enabled BOOLEAN DEFAULT TRUE,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        session_name TEXT,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        is_active BOOLEAN DEFAULT TRUE,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        content TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        metadata TEXT, -- JSON, assistant turns only
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE INDEX IF NOT EXISTS idx_messages_session ON messages (session_id, user_id, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

// GetOrCreateUser inserts the user row on first sight of an identity and is
// a cheap read afterwards. The identity provider owns sign-up; this only
// mirrors what the token asserts.
func (s *SQLiteStore) GetOrCreateUser(userID, email string) (*User, error) {
	_, err := s.db.Exec("INSERT OR IGNORE INTO users (id, email) VALUES (?, ?)", userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return s.GetUser(userID)
}

func (s *SQLiteStore) GetUser(userID string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, email, onboarding_completed, subscription_tier, created_at, updated_at FROM users WHERE id = ?", userID).
		Scan(&user.ID, &user.Email, &user.OnboardingCompleted, &user.SubscriptionTier, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) SetOnboardingCompleted(userID string) error {
	res, err := s.db.Exec("UPDATE users SET onboarding_completed = TRUE, updated_at = ? WHERE id = ?", time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update onboarding flag: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user not found, onboarding flag not updated")
	}
	return nil
}

// Profile methods

const profileColumns = `user_id, name, birthdate, birthtime, location,
    type, strategy, authority, profile, definition, incarnation_cross,
    centers, gates, channels_short, channels_long, variables, circuitries,
    design_sun, design_earth, design_moon, design_mercury, design_venus,
    design_mars, design_jupiter, design_saturn, design_uranus, design_neptune,
    design_pluto, design_north_node, design_south_node,
    personality_sun, personality_earth, personality_moon, personality_mercury,
    personality_venus, personality_mars, personality_jupiter, personality_saturn,
    personality_uranus, personality_neptune, personality_pluto,
    personality_north_node, personality_south_node, updated_at`

func (s *SQLiteStore) GetProfile(userID string) (*Profile, error) {
	row := s.db.QueryRow("SELECT "+profileColumns+" FROM profiles WHERE user_id = ?", userID)

	var p Profile
	var centers, gates, channelsShort, channelsLong, variables, circuitries sql.NullString
	err := row.Scan(
		&p.UserID, &p.Name, &p.Birthdate, &p.Birthtime, &p.Location,
		&p.Type, &p.Strategy, &p.Authority, &p.Profile, &p.Definition, &p.IncarnationCross,
		&centers, &gates, &channelsShort, &channelsLong, &variables, &circuitries,
		&p.DesignSun, &p.DesignEarth, &p.DesignMoon, &p.DesignMercury, &p.DesignVenus,
		&p.DesignMars, &p.DesignJupiter, &p.DesignSaturn, &p.DesignUranus, &p.DesignNeptune,
		&p.DesignPluto, &p.DesignNorthNode, &p.DesignSouthNode,
		&p.PersonalitySun, &p.PersonalityEarth, &p.PersonalityMoon, &p.PersonalityMercury,
		&p.PersonalityVenus, &p.PersonalityMars, &p.PersonalityJupiter, &p.PersonalitySaturn,
		&p.PersonalityUranus, &p.PersonalityNeptune, &p.PersonalityPluto,
		&p.PersonalityNorthNode, &p.PersonalitySouthNode, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No chart generated yet; a valid state
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	if err := unmarshalColumn(centers, &p.Centers); err != nil {
		return nil, fmt.Errorf("failed to decode centers for user %s: %w", userID, err)
	}
	if err := unmarshalColumn(gates, &p.Gates); err != nil {
		return nil, fmt.Errorf("failed to decode gates for user %s: %w", userID, err)
	}
	if err := unmarshalColumn(channelsShort, &p.ChannelsShort); err != nil {
		return nil, fmt.Errorf("failed to decode channels_short for user %s: %w", userID, err)
	}
	if err := unmarshalColumn(channelsLong, &p.ChannelsLong); err != nil {
		return nil, fmt.Errorf("failed to decode channels_long for user %s: %w", userID, err)
	}
	if variables.Valid && variables.String != "" {
		p.Variables = json.RawMessage(variables.String)
	}
	if circuitries.Valid && circuitries.String != "" {
		p.Circuitries = json.RawMessage(circuitries.String)
	}
	return &p, nil
}

// UpsertProfile replaces the whole profile row keyed on user id. Fields
// absent from the workflow response go in as zero values; nothing is merged
// with a previous chart.
func (s *SQLiteStore) UpsertProfile(userID string, fields ProfileFields) (*Profile, error) {
	centers, err := marshalColumn(fields.Centers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode centers: %w", err)
	}
	gates, err := marshalColumn(fields.Gates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gates: %w", err)
	}
	channelsShort, err := marshalColumn(fields.ChannelsShort)
	if err != nil {
		return nil, fmt.Errorf("failed to encode channels_short: %w", err)
	}
	channelsLong, err := marshalColumn(fields.ChannelsLong)
	if err != nil {
		return nil, fmt.Errorf("failed to encode channels_long: %w", err)
	}

	stmt, err := s.db.Prepare("INSERT OR REPLACE INTO profiles (" + profileColumns + `) VALUES (
        ?, ?, ?, ?, ?,
        ?, ?, ?, ?, ?, ?,
        ?, ?, ?, ?, ?, ?,
        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
        ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare profile upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	_, err = stmt.Exec(
		userID, fields.Name, fields.Birthdate, fields.Birthtime, fields.Location,
		fields.Type, fields.Strategy, fields.Authority, fields.Profile, fields.Definition, fields.IncarnationCross,
		centers, gates, channelsShort, channelsLong, rawColumn(fields.Variables), rawColumn(fields.Circuitries),
		fields.DesignSun, fields.DesignEarth, fields.DesignMoon, fields.DesignMercury, fields.DesignVenus,
		fields.DesignMars, fields.DesignJupiter, fields.DesignSaturn, fields.DesignUranus, fields.DesignNeptune,
		fields.DesignPluto, fields.DesignNorthNode, fields.DesignSouthNode,
		fields.PersonalitySun, fields.PersonalityEarth, fields.PersonalityMoon, fields.PersonalityMercury,
		fields.PersonalityVenus, fields.PersonalityMars, fields.PersonalityJupiter, fields.PersonalitySaturn,
		fields.PersonalityUranus, fields.PersonalityNeptune, fields.PersonalityPluto,
		fields.PersonalityNorthNode, fields.PersonalitySouthNode, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute profile upsert: %w", err)
	}

	return &Profile{UserID: userID, ProfileFields: fields, UpdatedAt: now}, nil
}

// Settings methods

func (s *SQLiteStore) GetSettings(userID string) (*Settings, error) {
	var st Settings
	var focusAreas sql.NullString
	err := s.db.QueryRow("SELECT user_id, response_depth, focus_areas, language, notifications_enabled FROM settings WHERE user_id = ?", userID).
		Scan(&st.UserID, &st.ResponseDepth, &focusAreas, &st.Language, &st.NotificationsEnabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No settings saved; orchestrator applies defaults
		}
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	if err := unmarshalColumn(focusAreas, &st.FocusAreas); err != nil {
		return nil, fmt.Errorf("failed to decode focus_areas for user %s: %w", userID, err)
	}
	return &st, nil
}

// UpsertSettings writes the user's preference row. The chat flow never
// calls this; it belongs to the settings surface and to tests.
func (s *SQLiteStore) UpsertSettings(st *Settings) error {
	focusAreas, err := marshalColumn(st.FocusAreas)
	if err != nil {
		return fmt.Errorf("failed to encode focus_areas: %w", err)
	}
	_, err = s.db.Exec("INSERT OR REPLACE INTO settings (user_id, response_depth, focus_areas, language, notifications_enabled) VALUES (?, ?, ?, ?, ?)",
		st.UserID, st.ResponseDepth, focusAreas, st.Language, st.NotificationsEnabled)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}

// Session methods

// UpsertSession creates the session on first exchange and refreshes its
// activity timestamp on every later one. It always reactivates the session.
func (s *SQLiteStore) UpsertSession(sessionID, userID, sessionName string) (*Session, error) {
	stmt, err := s.db.Prepare("INSERT OR REPLACE INTO sessions (id, user_id, session_name, updated_at, is_active) VALUES (?, ?, ?, ?, TRUE)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare session upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	if _, err = stmt.Exec(sessionID, userID, sessionName, now); err != nil {
		return nil, fmt.Errorf("failed to execute session upsert: %w", err)
	}
	return &Session{ID: sessionID, UserID: userID, SessionName: sessionName, UpdatedAt: now, IsActive: true}, nil
}

func (s *SQLiteStore) GetActiveSessionsByUserID(userID string) ([]Session, error) {
	rows, err := s.db.Query("SELECT id, user_id, session_name, updated_at, is_active FROM sessions WHERE user_id = ? AND is_active = TRUE ORDER BY updated_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var name sql.NullString
		if err := rows.Scan(&sess.ID, &sess.UserID, &name, &sess.UpdatedAt, &sess.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sess.SessionName = name.String
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// DeactivateSession marks a session inactive. The row and its identity are
// kept; sessions are never deleted.
func (s *SQLiteStore) DeactivateSession(sessionID, userID string) error {
	_, err := s.db.Exec("UPDATE sessions SET is_active = FALSE WHERE id = ? AND user_id = ?", sessionID, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return nil
}

// Message methods

// AppendMessage is append-only; the store assigns id and creation time so
// ordering stays monotonic across writers.
func (s *SQLiteStore) AppendMessage(sessionID, userID, content, role string, metadata json.RawMessage) (*Message, error) {
	msg := Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Content:   content,
		Role:      role,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}

	stmt, err := s.db.Prepare("INSERT INTO messages (id, session_id, user_id, content, role, created_at, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(msg.ID, msg.SessionID, msg.UserID, msg.Content, msg.Role, msg.CreatedAt, rawColumn(msg.Metadata))
	if err != nil {
		return nil, fmt.Errorf("failed to execute message insert: %w", err)
	}
	return &msg, nil
}

// GetRecentMessages returns the most recent limit messages in chronological
// order. The query walks backwards from the newest row and the result is
// reversed before returning; callers depend on ascending order.
func (s *SQLiteStore) GetRecentMessages(sessionID, userID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(`
        SELECT id, session_id, user_id, content, role, created_at, metadata
        FROM messages
        WHERE session_id = ? AND user_id = ?
        ORDER BY created_at DESC
        LIMIT ?`, sessionID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetMessages returns up to limit messages oldest first, for history reads.
func (s *SQLiteStore) GetMessages(sessionID, userID string, limit int) ([]Message, error) {
	rows, err := s.db.Query(`
        SELECT id, session_id, user_id, content, role, created_at, metadata
        FROM messages
        WHERE session_id = ? AND user_id = ?
        ORDER BY created_at ASC
        LIMIT ?`, sessionID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return scanMessages(rows)
}

func (s *SQLiteStore) ClearSessionMessages(sessionID, userID string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM messages WHERE session_id = ? AND user_id = ?", sessionID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var metadata sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.UserID, &msg.Content, &msg.Role, &msg.CreatedAt, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			msg.Metadata = json.RawMessage(metadata.String)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// Column helpers for JSON-encoded TEXT columns.

func marshalColumn(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalColumn(col sql.NullString, dest interface{}) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dest)
}

func rawColumn(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
