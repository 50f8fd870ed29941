package core

import (
	"sort"
	"time"

	"sage.app/companion/internal/store"
)

// Defaults substituted when the user has no saved settings row. The stored
// row is never mutated.
const (
	DefaultResponseDepth = "intermediate"
	DefaultLanguage      = "en"
)

var DefaultFocusAreas = []string{"general"}

type ChartContext struct {
	Type             string   `json:"type"`
	Strategy         string   `json:"strategy"`
	Authority        string   `json:"authority"`
	Profile          string   `json:"profile"`
	Definition       string   `json:"definition"`
	DefinedCenters   []string `json:"defined_centers"`
	UndefinedCenters []string `json:"undefined_centers"`
	Gates            []string `json:"gates"`
	Channels         []string `json:"channels"`
	IncarnationCross string   `json:"incarnation_cross"`
}

type SettingsContext struct {
	ResponseDepth string   `json:"response_depth"`
	FocusAreas    []string `json:"focus_areas"`
	Language      string   `json:"language"`
}

type HistoryEntry struct {
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextPayload is the merged profile+settings+history block of a chat
// webhook request. chart_data is null for users without a chart; the
// workflow answers generically in that case.
type ContextPayload struct {
	ChartData           *ChartContext   `json:"chart_data"`
	UserSettings        SettingsContext `json:"user_settings"`
	ConversationHistory []HistoryEntry  `json:"conversation_history"`
}

// AssembleContext is pure: no side effects, and identical inputs produce an
// identical payload (center names are sorted for that reason).
func AssembleContext(profile *store.Profile, settings *store.Settings, history []store.Message) ContextPayload {
	payload := ContextPayload{
		UserSettings:        effectiveSettings(settings),
		ConversationHistory: make([]HistoryEntry, 0, len(history)),
	}

	if profile != nil {
		defined, undefined := splitCenters(profile.Centers)
		payload.ChartData = &ChartContext{
			Type:             profile.Type,
			Strategy:         profile.Strategy,
			Authority:        profile.Authority,
			Profile:          profile.Profile,
			Definition:       profile.Definition,
			DefinedCenters:   defined,
			UndefinedCenters: undefined,
			Gates:            profile.Gates,
			Channels:         profile.ChannelsShort,
			IncarnationCross: profile.IncarnationCross,
		}
	}

	for _, msg := range history {
		payload.ConversationHistory = append(payload.ConversationHistory, HistoryEntry{
			Content:   msg.Content,
			Role:      msg.Role,
			CreatedAt: msg.CreatedAt,
		})
	}

	return payload
}

func effectiveSettings(settings *store.Settings) SettingsContext {
	if settings == nil {
		return SettingsContext{
			ResponseDepth: DefaultResponseDepth,
			FocusAreas:    DefaultFocusAreas,
			Language:      DefaultLanguage,
		}
	}
	return SettingsContext{
		ResponseDepth: settings.ResponseDepth,
		FocusAreas:    settings.FocusAreas,
		Language:      settings.Language,
	}
}

// splitCenters partitions the centers mapping into defined and undefined
// name sets. Every key lands in exactly one of the two.
func splitCenters(centers map[string]bool) (defined, undefined []string) {
	defined = make([]string, 0, len(centers))
	undefined = make([]string, 0, len(centers))
	for name, isDefined := range centers {
		if isDefined {
			defined = append(defined, name)
		} else {
			undefined = append(undefined, name)
		}
	}
	sort.Strings(defined)
	sort.Strings(undefined)
	return defined, undefined
}
