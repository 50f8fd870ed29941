package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	SubscriptionTier    string    `json:"subscription_tier"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ProfileFields carries every column of a profile row except the key and
// updated_at. Chart generation builds one of these from the workflow
// response and the store writes it wholesale; individual fields are never
// merged with a previous row.
type ProfileFields struct {
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"`
	Birthtime string `json:"birthtime"`
	Location  string `json:"location"`

	Type             string `json:"type"`
	Strategy         string `json:"strategy"`
	Authority        string `json:"authority"`
	Profile          string `json:"profile"`
	Definition       string `json:"definition"`
	IncarnationCross string `json:"incarnation_cross"`

	Centers       map[string]bool `json:"centers"`
	Gates         []string        `json:"gates"`
	ChannelsShort []string        `json:"channels_short"`
	ChannelsLong  []string        `json:"channels_long"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	Circuitries   json.RawMessage `json:"circuitries,omitempty"`

	DesignSun       string `json:"design_sun"`
	DesignEarth     string `json:"design_earth"`
	DesignMoon      string `json:"design_moon"`
	DesignMercury   string `json:"design_mercury"`
	DesignVenus     string `json:"design_venus"`
	DesignMars      string `json:"design_mars"`
	DesignJupiter   string `json:"design_jupiter"`
	DesignSaturn    string `json:"design_saturn"`
	DesignUranus    string `json:"design_uranus"`
	DesignNeptune   string `json:"design_neptune"`
	DesignPluto     string `json:"design_pluto"`
	DesignNorthNode string `json:"design_north_node"`
	DesignSouthNode string `json:"design_south_node"`

	PersonalitySun       string `json:"personality_sun"`
	PersonalityEarth     string `json:"personality_earth"`
	PersonalityMoon      string `json:"personality_moon"`
	PersonalityMercury   string `json:"personality_mercury"`
	PersonalityVenus     string `json:"personality_venus"`
	PersonalityMars      string `json:"personality_mars"`
	PersonalityJupiter   string `json:"personality_jupiter"`
	PersonalitySaturn    string `json:"personality_saturn"`
	PersonalityUranus    string `json:"personality_uranus"`
	PersonalityNeptune   string `json:"personality_neptune"`
	PersonalityPluto     string `json:"personality_pluto"`
	PersonalityNorthNode string `json:"personality_north_node"`
	PersonalitySouthNode string `json:"personality_south_node"`
}

type Profile struct {
	UserID string `json:"user_id"`
	ProfileFields
	UpdatedAt time.Time `json:"updated_at"`
}

type Settings struct {
	UserID               string   `json:"user_id"`
	ResponseDepth        string   `json:"response_depth"`
	FocusAreas           []string `json:"focus_areas"`
	Language             string   `json:"language"`
	NotificationsEnabled bool     `json:"notifications_enabled"`
}

type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SessionName string    `json:"session_name"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsActive    bool      `json:"is_active"`
}

type Message struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Content   string          `json:"content"`
	Role      string          `json:"role"` // "user" or "assistant"
	CreatedAt time.Time       `json:"created_at"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}
