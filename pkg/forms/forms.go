// Package forms implements the per-section validation and field mapping
// for the experiment editing pipeline. Each section of the detail view is
// one SectionForm; the lifecycle service runs Validate, Apply and the
// change-log diff over the form's declared field set.
package forms

import (
	"regexp"
	"time"

	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

// SectionForm is one editable section of an experiment.
type SectionForm interface {
	// Section names the form for routing and change-log context.
	Section() experiments.Section

	// Fields lists the snapshot fields this form manages. The differ only
	// records changes within this set.
	Fields() []string

	// Validate checks the submitted values against the current record and
	// returns user-facing errors keyed by field.
	Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors

	// Apply writes the validated values onto the record. It must only be
	// called after Validate returns no errors.
	Apply(exp *models.Experiment)

	// ChangeMessage returns an optional human-readable summary recorded on
	// the change-log row, given the record state before Apply.
	ChangeMessage(old *models.Experiment) string
}

// Config carries the dependencies forms need beyond the record itself.
type Config struct {
	Labels       experiments.Labels
	BugzillaHost string

	// NameInUse reports whether another experiment already owns the slug.
	NameInUse func(slug string, excludeID int) bool

	// Now supplies the current time for date validation. Tests override it.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

type baseForm struct{}

func (baseForm) ChangeMessage(*models.Experiment) string { return "" }

var bugzillaBugPattern = regexp.MustCompile(`show_bug\.cgi\?id=\d+`)

// validBugzillaURL accepts URLs on the configured Bugzilla host that point
// at a specific bug.
func validBugzillaURL(value, host string) bool {
	if host == "" {
		return bugzillaBugPattern.MatchString(value)
	}
	return regexp.MustCompile(`^https://`+regexp.QuoteMeta(host)+`/`).MatchString(value) &&
		bugzillaBugPattern.MatchString(value)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
