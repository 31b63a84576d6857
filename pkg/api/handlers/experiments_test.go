package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/experimenter-api/pkg/database"
	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/lifecycle"
	"github.com/mozilla-services/experimenter-api/pkg/logger"
	"github.com/mozilla-services/experimenter-api/pkg/models"
	"github.com/mozilla-services/experimenter-api/pkg/notifications"
)

func newTestHandler(t *testing.T) *ExperimentHandler {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.New(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := lifecycle.NewService(db.DB, lifecycle.Config{
		BugzillaHost: "bugzilla.mozilla.org",
		Now: func() time.Time {
			return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		},
	}, notifications.NewService(db.DB), nil, nil, logger.NopLogger{})
	return NewExperimentHandler(svc, nil)
}

func doRequest(t *testing.T, handler echo.HandlerFunc, method, path, body, user string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-User-Email", user)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for key, value := range params {
		c.SetParamNames(key)
		c.SetParamValues(value)
	}
	require.NoError(t, handler(c))
	return rec
}

const overviewBody = `{
	"type": "pref",
	"name": "Handler Study",
	"short_description": "Tests the HTTP layer.",
	"data_science_bugzilla_url": "https://bugzilla.mozilla.org/show_bug.cgi?id=1234",
	"owner": "owner@mozilla.com",
	"analysis_owner": "ds@mozilla.com"
}`

func TestCreateExperiment(t *testing.T) {
	h := newTestHandler(t)

	t.Run("creates a draft", func(t *testing.T) {
		rec := doRequest(t, h.Create, http.MethodPost, "/api/v1/experiments",
			overviewBody, "owner@mozilla.com", nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		var exp models.Experiment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))
		assert.Equal(t, "handler-study", exp.Slug)
		assert.Equal(t, experiments.StatusDraft, exp.Status)
	})

	t.Run("requires a user identity", func(t *testing.T) {
		rec := doRequest(t, h.Create, http.MethodPost, "/api/v1/experiments",
			overviewBody, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("reports missing fields per field", func(t *testing.T) {
		rec := doRequest(t, h.Create, http.MethodPost, "/api/v1/experiments",
			`{"type": "pref", "name": "Incomplete"}`, "owner@mozilla.com", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.FieldErrors["short_description"], "This field is required")
		assert.Contains(t, resp.FieldErrors["owner"], "This field is required")
	})
}

func TestUpdateStatusEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := doRequest(t, h.Create, http.MethodPost, "/api/v1/experiments",
		overviewBody, "owner@mozilla.com", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("rejects illegal transitions with field errors", func(t *testing.T) {
		rec := doRequest(t, h.UpdateStatus, http.MethodPut,
			"/api/v1/experiments/handler-study/status",
			`{"status": "Live"}`, "owner@mozilla.com",
			map[string]string{"slug": "handler-study"})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.FieldErrors["status"])
		assert.Contains(t, resp.FieldErrors["status"][0], "Draft")
	})

	t.Run("moves a draft to review", func(t *testing.T) {
		rec := doRequest(t, h.UpdateStatus, http.MethodPut,
			"/api/v1/experiments/handler-study/status",
			`{"status": "Review"}`, "owner@mozilla.com",
			map[string]string{"slug": "handler-study"})
		require.Equal(t, http.StatusOK, rec.Code)

		var exp models.Experiment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))
		assert.Equal(t, experiments.StatusReview, exp.Status)
	})

	t.Run("unknown slugs return 404", func(t *testing.T) {
		rec := doRequest(t, h.Get, http.MethodGet,
			"/api/v1/experiments/missing", "", "owner@mozilla.com",
			map[string]string{"slug": "missing"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
