package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sage.app/companion/internal/store"
)

func newTestChartService(t *testing.T, handler http.HandlerFunc) (*ChartService, *store.SQLiteStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	dbStore := newTestStore(t)
	gateway := NewWorkflowGateway(srv.URL, 5*time.Second)
	return NewChartService(dbStore, gateway), dbStore
}

var validBirthDetails = BirthDetails{
	Name:      "Ada",
	Birthdate: "1990-04-12",
	Birthtime: "08:30",
	Location:  "Athens, Greece",
}

func TestGenerateChartValidation(t *testing.T) {
	svc, _ := newTestChartService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("the webhook must not be invoked on validation failure")
	})

	_, err := svc.GenerateChart(context.Background(), "user-1", BirthDetails{Name: "Ada", Birthdate: "1990-04-12"})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Field, "birthtime")
	assert.Contains(t, valErr.Field, "location")
	assert.NotContains(t, valErr.Field, "name")
}

func TestGenerateChartSuccess(t *testing.T) {
	svc, dbStore := newTestChartService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"type": "Generator",
			"strategy": "To Respond",
			"authority": "Sacral",
			"centers": {"Sacral": true, "Throat": false},
			"gates": ["34"],
			"design_sun": "34.2",
			"personality_moon": "20.5"
		}`))
	})

	_, err := dbStore.GetOrCreateUser("user-1", "ada@example.com")
	require.NoError(t, err)

	profile, err := svc.GenerateChart(context.Background(), "user-1", validBirthDetails)
	require.NoError(t, err)
	require.NotNil(t, profile)

	// Birth inputs come from the request, chart fields from the workflow.
	assert.Equal(t, "Ada", profile.Name)
	assert.Equal(t, "1990-04-12", profile.Birthdate)
	assert.Equal(t, "Generator", profile.Type)
	assert.Equal(t, "34.2", profile.DesignSun)
	assert.Equal(t, "20.5", profile.PersonalityMoon)

	saved, err := dbStore.GetProfile("user-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, profile.Type, saved.Type)

	user, err := dbStore.GetUser("user-1")
	require.NoError(t, err)
	assert.True(t, user.OnboardingCompleted)
}

func TestGenerateChartWebhookFailure(t *testing.T) {
	svc, dbStore := newTestChartService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ephemeris unavailable", http.StatusInternalServerError)
	})

	_, err := dbStore.GetOrCreateUser("user-1", "ada@example.com")
	require.NoError(t, err)

	_, err = svc.GenerateChart(context.Background(), "user-1", validBirthDetails)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusInternalServerError, gwErr.StatusCode)

	profile, err := dbStore.GetProfile("user-1")
	require.NoError(t, err)
	assert.Nil(t, profile, "a failed chart call must not write a profile")

	user, err := dbStore.GetUser("user-1")
	require.NoError(t, err)
	assert.False(t, user.OnboardingCompleted, "onboarding stays incomplete after a failed chart call")
}

func TestGenerateChartReplacesPreviousProfile(t *testing.T) {
	responses := []string{
		`{"type": "Generator", "gates": ["34", "57"], "design_sun": "34.2"}`,
		`{"type": "Reflector"}`,
	}
	call := 0
	svc, dbStore := newTestChartService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(responses[call]))
		call++
	})

	_, err := dbStore.GetOrCreateUser("user-1", "ada@example.com")
	require.NoError(t, err)

	_, err = svc.GenerateChart(context.Background(), "user-1", validBirthDetails)
	require.NoError(t, err)
	_, err = svc.GenerateChart(context.Background(), "user-1", validBirthDetails)
	require.NoError(t, err)

	profile, err := dbStore.GetProfile("user-1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Reflector", profile.Type)
	assert.Empty(t, profile.Gates, "fields the new chart omits do not survive from the old one")
	assert.Empty(t, profile.DesignSun)
}
