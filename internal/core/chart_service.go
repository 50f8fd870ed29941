package core

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
	"sage.app/companion/internal/store"
)

// ChartService owns the chart-generation flow: birth data out to the
// workflow, the derived chart back into the profile row.
type ChartService struct {
	dbStore *store.SQLiteStore
	gateway *WorkflowGateway
}

func NewChartService(db *store.SQLiteStore, gateway *WorkflowGateway) *ChartService {
	return &ChartService{dbStore: db, gateway: gateway}
}

type BirthDetails struct {
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"`
	Birthtime string `json:"birthtime"`
	Location  string `json:"location"`
}

func (d BirthDetails) missingFields() []string {
	var missing []string
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.Birthdate == "" {
		missing = append(missing, "birthdate")
	}
	if d.Birthtime == "" {
		missing = append(missing, "birthtime")
	}
	if d.Location == "" {
		missing = append(missing, "location")
	}
	return missing
}

// GenerateChart invokes the chart webhook and replaces the user's profile
// wholesale with the result. A failed invocation leaves the previous
// profile and the onboarding flag untouched.
func (s *ChartService) GenerateChart(ctx context.Context, userID string, details BirthDetails) (*store.Profile, error) {
	if missing := details.missingFields(); len(missing) > 0 {
		return nil, &ValidationError{
			Field:  strings.Join(missing, ", "),
			Reason: "all birth details are required (name, birthdate, birthtime, location)",
		}
	}

	fields, err := s.gateway.GenerateChart(ctx, ChartWebhookRequest{
		UserID:    userID,
		Name:      details.Name,
		Birthdate: details.Birthdate,
		Birthtime: details.Birthtime,
		Location:  details.Location,
	})
	if err != nil {
		return nil, err
	}

	// The workflow response carries only chart-derived fields; the birth
	// inputs the caller supplied complete the row.
	fields.Name = details.Name
	fields.Birthdate = details.Birthdate
	fields.Birthtime = details.Birthtime
	fields.Location = details.Location

	profile, err := s.dbStore.UpsertProfile(userID, fields)
	if err != nil {
		return nil, &StoreError{Op: "upsert profile", Err: err}
	}

	// The saved profile stands even if the flag flip fails.
	if err := s.dbStore.SetOnboardingCompleted(userID); err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("Failed to mark onboarding completed")
	}

	return profile, nil
}

func (s *ChartService) GetProfile(userID string) (*store.Profile, error) {
	profile, err := s.dbStore.GetProfile(userID)
	if err != nil {
		return nil, &StoreError{Op: "load profile", Err: err}
	}
	return profile, nil
}
