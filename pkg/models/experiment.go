package models

import (
	"time"

	"github.com/mozilla-services/experimenter-api/pkg/experiments"
)

// StringList stores a set of codes (locales, countries, recipe ids) as a
// JSON array column. An empty list semantically means "all".
type StringList []string

// Experiment is the long-lived record edited by the multi-step form
// pipeline. Optional numeric and date fields are pointers so "unset" is
// distinguishable from zero.
type Experiment struct {
	ID     int                `json:"id" gorm:"primaryKey"`
	Name   string             `json:"name" gorm:"not null"`
	Slug   string             `json:"slug" gorm:"uniqueIndex;not null"`
	Type   experiments.Type   `json:"type" gorm:"type:varchar(20);not null;default:pref"`
	Status experiments.Status `json:"status" gorm:"type:varchar(20);not null;default:Draft;index"`

	// Overview
	ShortDescription       string `json:"short_description"`
	RelatedWork            string `json:"related_work"`
	Owner                  string `json:"owner" gorm:"index"`
	AnalysisOwner          string `json:"analysis_owner"`
	EngineeringOwner       string `json:"engineering_owner"`
	PublicName             string `json:"public_name"`
	PublicDescription      string `json:"public_description"`
	DataScienceBugzillaURL string `json:"data_science_bugzilla_url"`
	FeatureBugzillaURL     string `json:"feature_bugzilla_url"`
	BugzillaID             string `json:"bugzilla_id"`

	// Timeline
	ProposedStartDate  *time.Time `json:"proposed_start_date"`
	ProposedDuration   *int       `json:"proposed_duration"`
	ProposedEnrollment *int       `json:"proposed_enrollment"`

	// Population
	PopulationPercent float64             `json:"population_percent"`
	FirefoxMinVersion string              `json:"firefox_min_version"`
	FirefoxMaxVersion string              `json:"firefox_max_version"`
	FirefoxChannel    experiments.Channel `json:"firefox_channel" gorm:"type:varchar(20)"`
	Platform          string              `json:"platform" gorm:"default:'All Platforms'"`
	Locales           StringList          `json:"locales" gorm:"serializer:json"`
	Countries         StringList          `json:"countries" gorm:"serializer:json"`
	ClientMatching    string              `json:"client_matching"`

	// Design (pref experiments)
	Design     string                 `json:"design"`
	PrefKey    string                 `json:"pref_key"`
	PrefType   experiments.PrefType   `json:"pref_type" gorm:"type:varchar(20)"`
	PrefBranch experiments.PrefBranch `json:"pref_branch" gorm:"type:varchar(20)"`

	// Design (add-on experiments)
	AddonExperimentID string `json:"addon_experiment_id"`
	AddonReleaseURL   string `json:"addon_release_url"`

	// Objectives
	Objectives         string `json:"objectives"`
	Analysis           string `json:"analysis"`
	SurveyRequired     bool   `json:"survey_required"`
	SurveyURLs         string `json:"survey_urls"`
	SurveyInstructions string `json:"survey_instructions"`

	// Risks
	RiskInternalOnly         bool   `json:"risk_internal_only"`
	RiskPartnerRelated       bool   `json:"risk_partner_related"`
	RiskBrand                bool   `json:"risk_brand"`
	RiskFastShipped          bool   `json:"risk_fast_shipped"`
	RiskConfidential         bool   `json:"risk_confidential"`
	RiskReleasePopulation    bool   `json:"risk_release_population"`
	RiskRevenue              bool   `json:"risk_revenue"`
	RiskDataCategory         bool   `json:"risk_data_category"`
	RiskExternalTeamImpact   bool   `json:"risk_external_team_impact"`
	RiskTelemetryData        bool   `json:"risk_telemetry_data"`
	RiskUX                   bool   `json:"risk_ux"`
	RiskSecurity             bool   `json:"risk_security"`
	RiskRevision             bool   `json:"risk_revision"`
	RiskTechnical            bool   `json:"risk_technical"`
	RiskTechnicalDescription string `json:"risk_technical_description"`
	Risks                    string `json:"risks"`

	// Testing
	Testing    string `json:"testing"`
	TestBuilds string `json:"test_builds"`
	QAStatus   string `json:"qa_status"`

	// Sign-offs
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

	// Results
	ResultsURL            string `json:"results_url"`
	ResultsInitial        string `json:"results_initial"`
	ResultsLessonsLearned string `json:"results_lessons_learned"`

	// Normandy delivery
	NormandySlug     string     `json:"normandy_slug"`
	NormandyID       *int       `json:"normandy_id"`
	OtherNormandyIDs StringList `json:"other_normandy_ids" gorm:"serializer:json"`

	Archived  bool      `json:"archived" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Variants []ExperimentVariant `json:"variants" gorm:"foreignKey:ExperimentID;constraint:OnDelete:CASCADE"`
}

// ExperimentVariant is one branch of an experiment.
type ExperimentVariant struct {
	ID           int    `json:"id" gorm:"primaryKey"`
	ExperimentID int    `json:"experiment_id" gorm:"index;not null"`
	Name         string `json:"name" gorm:"not null"`
	Slug         string `json:"slug" gorm:"not null"`
	Description  string `json:"description"`
	Ratio        int    `json:"ratio" gorm:"not null"`
	IsControl    bool   `json:"is_control"`
	// Value is the JSON-encoded pref value; empty for non-pref experiments.
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsArchivable reports whether the experiment may be archived in its
// current status. Experiments in flight (Review through Live) must finish
// or be pulled back to Draft first.
func (e *Experiment) IsArchivable() bool {
	return e.Status == experiments.StatusDraft || e.Status == experiments.StatusComplete
}

// PopulationLabel describes the targeted population, e.g.
// "10% of Release Firefox 57.0 to 59.0".
func (e *Experiment) PopulationLabel() string {
	version := e.FirefoxMinVersion
	if e.FirefoxMaxVersion != "" {
		version += " to " + e.FirefoxMaxVersion
	}
	channel := string(e.FirefoxChannel)
	if channel == "" {
		channel = "Firefox"
	}
	return trimPercent(e.PopulationPercent) + "% of " + channel + " Firefox " + version
}
