package forms

import (
	"strconv"
	"strings"

	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

// ReviewForm records sign-off checkboxes. Its change message summarizes
// which sign-offs were added or removed in this save.
type ReviewForm struct {
	ReviewScience       bool `json:"review_science"`
	ReviewEngineering   bool `json:"review_engineering"`
	ReviewQARequested   bool `json:"review_qa_requested"`
	ReviewIntentToShip  bool `json:"review_intent_to_ship"`
	ReviewBugzilla      bool `json:"review_bugzilla"`
	ReviewQA            bool `json:"review_qa"`
	ReviewRelman        bool `json:"review_relman"`
	ReviewAdvisory      bool `json:"review_advisory"`
	ReviewLegal         bool `json:"review_legal"`
	ReviewUX            bool `json:"review_ux"`
	ReviewSecurity      bool `json:"review_security"`
	ReviewVP            bool `json:"review_vp"`
	ReviewDataSteward   bool `json:"review_data_steward"`
	ReviewComms         bool `json:"review_comms"`
	ReviewImpactedTeams bool `json:"review_impacted_teams"`

	labels experiments.Labels
}

func (f *ReviewForm) Section() experiments.Section { return experiments.SectionRisks }

func (f *ReviewForm) Fields() []string {
	fields := experiments.RequiredReviews()
	return append(fields, experiments.OptionalReviews()...)
}

func (f *ReviewForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	f.labels = cfg.Labels
	return nil
}

func (f *ReviewForm) Apply(exp *models.Experiment) {
	exp.ReviewScience = f.ReviewScience
	exp.ReviewEngineering = f.ReviewEngineering
	exp.ReviewQARequested = f.ReviewQARequested
	exp.ReviewIntentToShip = f.ReviewIntentToShip
	exp.ReviewBugzilla = f.ReviewBugzilla
	exp.ReviewQA = f.ReviewQA
	exp.ReviewRelman = f.ReviewRelman
	exp.ReviewAdvisory = f.ReviewAdvisory
	exp.ReviewLegal = f.ReviewLegal
	exp.ReviewUX = f.ReviewUX
	exp.ReviewSecurity = f.ReviewSecurity
	exp.ReviewVP = f.ReviewVP
	exp.ReviewDataSteward = f.ReviewDataSteward
	exp.ReviewComms = f.ReviewComms
	exp.ReviewImpactedTeams = f.ReviewImpactedTeams
}

func (f *ReviewForm) ChangeMessage(old *models.Experiment) string {
	oldValues := reviewValues(old)
	newValues := f.values()

	var added, removed []string
	for _, field := range f.Fields() {
		if newValues[field] && !oldValues[field] {
			added = append(added, f.labels.DisplayName(field))
		}
		if !newValues[field] && oldValues[field] {
			removed = append(removed, f.labels.DisplayName(field))
		}
	}

	var parts []string
	if len(added) > 0 {
		parts = append(parts, "Added sign-offs: "+strings.Join(added, ", "))
	}
	if len(removed) > 0 {
		parts = append(parts, "Removed sign-offs: "+strings.Join(removed, ", "))
	}
	return strings.Join(parts, " ")
}

func (f *ReviewForm) values() map[string]bool {
	return map[string]bool{
		"review_science":        f.ReviewScience,
		"review_engineering":    f.ReviewEngineering,
		"review_qa_requested":   f.ReviewQARequested,
		"review_intent_to_ship": f.ReviewIntentToShip,
		"review_bugzilla":       f.ReviewBugzilla,
		"review_qa":             f.ReviewQA,
		"review_relman":         f.ReviewRelman,
		"review_advisory":       f.ReviewAdvisory,
		"review_legal":          f.ReviewLegal,
		"review_ux":             f.ReviewUX,
		"review_security":       f.ReviewSecurity,
		"review_vp":             f.ReviewVP,
		"review_data_steward":   f.ReviewDataSteward,
		"review_comms":          f.ReviewComms,
		"review_impacted_teams": f.ReviewImpactedTeams,
	}
}

func reviewValues(e *models.Experiment) map[string]bool {
	return map[string]bool{
		"review_science":        e.ReviewScience,
		"review_engineering":    e.ReviewEngineering,
		"review_qa_requested":   e.ReviewQARequested,
		"review_intent_to_ship": e.ReviewIntentToShip,
		"review_bugzilla":       e.ReviewBugzilla,
		"review_qa":             e.ReviewQA,
		"review_relman":         e.ReviewRelman,
		"review_advisory":       e.ReviewAdvisory,
		"review_legal":          e.ReviewLegal,
		"review_ux":             e.ReviewUX,
		"review_security":       e.ReviewSecurity,
		"review_vp":             e.ReviewVP,
		"review_data_steward":   e.ReviewDataSteward,
		"review_comms":          e.ReviewComms,
		"review_impacted_teams": e.ReviewImpactedTeams,
	}
}

// StatusForm moves an experiment along its lifecycle. Attention is a
// free-text note asking reviewers for an expedited look; it rides along
// with the intent-to-ship email and is never stored on the record.
type StatusForm struct {
	baseForm

	Status    string `json:"status" validate:"required"`
	Attention string `json:"attention"`
}

func (f *StatusForm) Section() experiments.Section { return experiments.SectionOverview }

// Fields is empty: the transition itself is recorded in the change-log
// row's status columns, not the diff map.
func (f *StatusForm) Fields() []string { return nil }

func (f *StatusForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	if err := experiments.CheckTransition(&exp.Status, experiments.Status(f.Status)); err != nil {
		errs := experiments.FieldErrors{}
		errs.Add("status", err.Error())
		return errs
	}
	return nil
}

func (f *StatusForm) Apply(exp *models.Experiment) {
	exp.Status = experiments.Status(f.Status)
}

// RecipeForm records the Normandy recipe ids attached to a launched
// experiment.
type RecipeForm struct {
	baseForm

	NormandyID       string `json:"normandy_id" validate:"required"`
	OtherNormandyIDs string `json:"other_normandy_ids"`

	primary int
	others  []string
}

func (f *RecipeForm) Section() experiments.Section { return experiments.SectionNormandy }

func (f *RecipeForm) Fields() []string {
	return []string{"normandy_id", "other_normandy_ids"}
}

func (f *RecipeForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	errs := experiments.FieldErrors{}

	primary, err := strconv.Atoi(strings.TrimSpace(f.NormandyID))
	if err != nil || primary < 1 {
		errs.Add("normandy_id", "Please enter a valid Normandy ID")
	} else {
		f.primary = primary
	}

	f.others = nil
	if f.OtherNormandyIDs != "" {
		seen := map[string]struct{}{}
		for _, raw := range strings.Split(f.OtherNormandyIDs, ",") {
			id := strings.TrimSpace(raw)
			if _, err := strconv.Atoi(id); err != nil {
				errs.Add("other_normandy_ids", "Normandy IDs must be numbers separated by commas")
				break
			}
			if id == strconv.Itoa(f.primary) {
				errs.Add("other_normandy_ids", "You have duplicate Normandy IDs")
				break
			}
			if _, dup := seen[id]; dup {
				errs.Add("other_normandy_ids", "You have duplicate Normandy IDs")
				break
			}
			seen[id] = struct{}{}
			f.others = append(f.others, id)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f *RecipeForm) Apply(exp *models.Experiment) {
	id := f.primary
	exp.NormandyID = &id
	exp.OtherNormandyIDs = models.StringList(f.others)
}
