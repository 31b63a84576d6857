package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/mozilla-services/experimenter-api/pkg/api/errors"
	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/forms"
	"github.com/mozilla-services/experimenter-api/pkg/lifecycle"
	"github.com/mozilla-services/experimenter-api/pkg/metrics"
)

const requestTimeout = 10 * time.Second

// ExperimentHandler handles experiment-related HTTP requests.
type ExperimentHandler struct {
	service  *lifecycle.Service
	validate *validator.Validate
	metrics  *metrics.Metrics
}

// NewExperimentHandler creates a new experiment handler.
func NewExperimentHandler(service *lifecycle.Service, m *metrics.Metrics) *ExperimentHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ExperimentHandler{service: service, validate: v, metrics: m}
}

// userEmail identifies the acting user from the request. Authentication
// is terminated upstream; the proxy forwards the verified identity.
func userEmail(c echo.Context) string {
	return c.Request().Header.Get("X-User-Email")
}

func requestContextFor(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// structErrors converts request shape failures into per-field messages.
func (h *ExperimentHandler) structErrors(err error) experiments.FieldErrors {
	errs := experiments.FieldErrors{}
	var invalid validator.ValidationErrors
	if !stderrors.As(err, &invalid) {
		errs.Add(experiments.FormLevel, "Invalid request data")
		return errs
	}
	for _, fe := range invalid {
		switch fe.Tag() {
		case "required":
			errs.Add(fe.Field(), "This field is required")
		case "email":
			errs.Add(fe.Field(), "Enter a valid email address")
		case "max":
			errs.Add(fe.Field(), fmt.Sprintf("Ensure this value has at most %s characters", fe.Param()))
		default:
			errs.Add(fe.Field(), "Enter a valid value")
		}
	}
	return errs
}

// fail renders service-layer errors with the right status code.
func fail(c echo.Context, err error) error {
	var fieldErrs experiments.FieldErrors
	if stderrors.As(err, &fieldErrs) {
		return apierrors.FieldValidationError(c, fieldErrs)
	}
	if stderrors.Is(err, experiments.ErrNotFound) {
		return apierrors.NotFoundError(c, "experiment")
	}
	return apierrors.DatabaseError(c, err)
}

// List returns experiments matching the query filters.
func (h *ExperimentHandler) List(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	filter := lifecycle.ListFilter{
		Status: c.QueryParam("status"),
		Type:   c.QueryParam("type"),
		Owner:  c.QueryParam("owner"),
	}
	switch c.QueryParam("archived") {
	case "true":
		archived := true
		filter.Archived = &archived
	case "false":
		archived := false
		filter.Archived = &archived
	}

	out, err := h.service.List(ctx, filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns a single experiment by slug.
func (h *ExperimentHandler) Get(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	exp, err := h.service.Get(ctx, c.Param("slug"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, exp)
}

// Create starts a new experiment in Draft.
func (h *ExperimentHandler) Create(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	user := userEmail(c)
	if user == "" {
		return apierrors.UnauthorizedError(c, "Missing user identity")
	}

	var form forms.OverviewForm
	if err := c.Bind(&form); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&form); err != nil {
		return apierrors.FieldValidationError(c, h.structErrors(err))
	}

	exp, err := h.service.Create(ctx, user, &form)
	if err != nil {
		return fail(c, err)
	}
	if h.metrics != nil {
		h.metrics.ExperimentsCreated.Inc()
	}
	return c.JSON(http.StatusCreated, exp)
}

// UpdateOverview edits the summary section.
func (h *ExperimentHandler) UpdateOverview(c echo.Context) error {
	var form forms.OverviewForm
	return h.saveSection(c, &form, func() error {
		return h.validate.Struct(&form)
	})
}

// UpdateTimelinePopulation edits scheduling and targeting.
func (h *ExperimentHandler) UpdateTimelinePopulation(c echo.Context) error {
	var form forms.TimelinePopulationForm
	return h.saveSection(c, &form, nil)
}

// UpdateDesign edits the type-specific delivery section and replaces the
// branch set.
func (h *ExperimentHandler) UpdateDesign(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	user := userEmail(c)
	if user == "" {
		return apierrors.UnauthorizedError(c, "Missing user identity")
	}

	var req forms.DesignRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	exp, err := h.service.Get(ctx, c.Param("slug"))
	if err != nil {
		return fail(c, err)
	}

	updated, err := h.service.SaveSection(ctx, exp.Slug, user, forms.NewDesignForm(exp.Type, req))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// UpdateObjectives edits the hypothesis section.
func (h *ExperimentHandler) UpdateObjectives(c echo.Context) error {
	var form forms.ObjectivesForm
	return h.saveSection(c, &form, func() error {
		return h.validate.Struct(&form)
	})
}

// UpdateRisks edits the risk questionnaire.
func (h *ExperimentHandler) UpdateRisks(c echo.Context) error {
	var form forms.RisksForm
	return h.saveSection(c, &form, nil)
}

// UpdateReview records sign-off checkboxes.
func (h *ExperimentHandler) UpdateReview(c echo.Context) error {
	var form forms.ReviewForm
	return h.saveSection(c, &form, nil)
}

// UpdateResults records experiment outcomes.
func (h *ExperimentHandler) UpdateResults(c echo.Context) error {
	var form forms.ResultsForm
	return h.saveSection(c, &form, nil)
}

// UpdateRecipe attaches Normandy recipe ids.
func (h *ExperimentHandler) UpdateRecipe(c echo.Context) error {
	var form forms.RecipeForm
	return h.saveSection(c, &form, func() error {
		return h.validate.Struct(&form)
	})
}

// UpdateStatus moves the experiment along its lifecycle.
func (h *ExperimentHandler) UpdateStatus(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	user := userEmail(c)
	if user == "" {
		return apierrors.UnauthorizedError(c, "Missing user identity")
	}

	var form forms.StatusForm
	if err := c.Bind(&form); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validate.Struct(&form); err != nil {
		return apierrors.FieldValidationError(c, h.structErrors(err))
	}

	before, err := h.service.Get(ctx, c.Param("slug"))
	if err != nil {
		return fail(c, err)
	}

	exp, err := h.service.SaveSection(ctx, c.Param("slug"), user, &form)
	if err != nil {
		return fail(c, err)
	}
	if h.metrics != nil && before.Status != exp.Status {
		h.metrics.StatusTransitions.
			WithLabelValues(string(before.Status), string(exp.Status)).Inc()
	}
	return c.JSON(http.StatusOK, exp)
}

// Archive toggles the archived flag when the status allows it.
func (h *ExperimentHandler) Archive(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	user := userEmail(c)
	if user == "" {
		return apierrors.UnauthorizedError(c, "Missing user identity")
	}

	exp, err := h.service.Archive(ctx, c.Param("slug"), user)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, exp)
}

// Changelog returns the audit trail of an experiment.
func (h *ExperimentHandler) Changelog(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	entries, err := h.service.Changelog(ctx, c.Param("slug"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *ExperimentHandler) saveSection(c echo.Context, form forms.SectionForm, validateShape func() error) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	user := userEmail(c)
	if user == "" {
		return apierrors.UnauthorizedError(c, "Missing user identity")
	}

	if err := c.Bind(form); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if validateShape != nil {
		if err := validateShape(); err != nil {
			return apierrors.FieldValidationError(c, h.structErrors(err))
		}
	}

	exp, err := h.service.SaveSection(ctx, c.Param("slug"), user, form)
	if err != nil {
		return fail(c, err)
	}
	if h.metrics != nil {
		h.metrics.ChangelogEntries.Inc()
	}
	return c.JSON(http.StatusOK, exp)
}
