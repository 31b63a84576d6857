package forms

import (
	"fmt"
	"sort"
	"time"

	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

// OverviewForm creates an experiment or edits its summary fields. The slug
// is derived from the name on creation and never changes afterwards.
type OverviewForm struct {
	baseForm

	Type                   string `json:"type" validate:"required"`
	Name                   string `json:"name" validate:"required,max=255"`
	ShortDescription       string `json:"short_description" validate:"required"`
	PublicName             string `json:"public_name"`
	PublicDescription      string `json:"public_description"`
	DataScienceBugzillaURL string `json:"data_science_bugzilla_url" validate:"required"`
	FeatureBugzillaURL     string `json:"feature_bugzilla_url"`
	RelatedWork            string `json:"related_work"`
	Owner                  string `json:"owner" validate:"required,email"`
	AnalysisOwner          string `json:"analysis_owner" validate:"required"`
	EngineeringOwner       string `json:"engineering_owner"`
}

func (f *OverviewForm) Section() experiments.Section { return experiments.SectionOverview }

func (f *OverviewForm) Fields() []string {
	return []string{
		"type", "name", "short_description", "public_name",
		"public_description", "data_science_bugzilla_url",
		"feature_bugzilla_url", "related_work", "owner", "analysis_owner",
		"engineering_owner",
	}
}

func (f *OverviewForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	errs := experiments.FieldErrors{}

	if _, ok := experiments.TypeLabels[experiments.Type(f.Type)]; !ok {
		errs.Add("type", fmt.Sprintf("%q is not a valid experiment type", f.Type))
	}

	slug := experiments.Slugify(f.Name)
	if slug == "" {
		errs.Add("name", "This name must include non-punctuation characters")
	} else if exp.Slug == "" && cfg.NameInUse != nil && cfg.NameInUse(slug, exp.ID) {
		errs.Add("name", "This name is already in use")
	}

	if f.DataScienceBugzillaURL != "" && !validBugzillaURL(f.DataScienceBugzillaURL, cfg.BugzillaHost) {
		errs.Add("data_science_bugzilla_url", bugzillaURLError(cfg.BugzillaHost))
	}
	if f.FeatureBugzillaURL != "" && !validBugzillaURL(f.FeatureBugzillaURL, cfg.BugzillaHost) {
		errs.Add("feature_bugzilla_url", bugzillaURLError(cfg.BugzillaHost))
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f *OverviewForm) Apply(exp *models.Experiment) {
	exp.Type = experiments.Type(f.Type)
	exp.Name = f.Name
	if exp.Slug == "" {
		exp.Slug = experiments.Slugify(f.Name)
	}
	exp.ShortDescription = f.ShortDescription
	exp.PublicName = f.PublicName
	exp.PublicDescription = f.PublicDescription
	exp.DataScienceBugzillaURL = f.DataScienceBugzillaURL
	exp.FeatureBugzillaURL = f.FeatureBugzillaURL
	exp.RelatedWork = f.RelatedWork
	exp.Owner = f.Owner
	exp.AnalysisOwner = f.AnalysisOwner
	exp.EngineeringOwner = f.EngineeringOwner
}

func bugzillaURLError(host string) string {
	if host == "" {
		host = "bugzilla.mozilla.org"
	}
	return fmt.Sprintf("Please provide a valid Bugzilla URL, ex: https://%s/show_bug.cgi?id=1234", host)
}

// TimelinePopulationForm edits scheduling and targeting.
type TimelinePopulationForm struct {
	baseForm

	ProposedStartDate  string   `json:"proposed_start_date"`
	ProposedDuration   *int     `json:"proposed_duration"`
	ProposedEnrollment *int     `json:"proposed_enrollment"`
	PopulationPercent  float64  `json:"population_percent"`
	FirefoxMinVersion  string   `json:"firefox_min_version"`
	FirefoxMaxVersion  string   `json:"firefox_max_version"`
	FirefoxChannel     string   `json:"firefox_channel"`
	Platform           string   `json:"platform"`
	Locales            []string `json:"locales"`
	Countries          []string `json:"countries"`
	ClientMatching     string   `json:"client_matching"`

	startDate *time.Time
}

func (f *TimelinePopulationForm) Section() experiments.Section { return experiments.SectionTimeline }

func (f *TimelinePopulationForm) Fields() []string {
	return []string{
		"proposed_start_date", "proposed_duration", "proposed_enrollment",
		"population_percent", "firefox_min_version", "firefox_max_version",
		"firefox_channel", "platform", "locales", "countries",
		"client_matching",
	}
}

func (f *TimelinePopulationForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	errs := experiments.FieldErrors{}

	if f.ProposedStartDate != "" {
		parsed, err := time.Parse("2006-01-02", f.ProposedStartDate)
		if err != nil {
			errs.Add("proposed_start_date", "Enter a valid date in YYYY-MM-DD format")
		} else {
			today := cfg.now().Truncate(24 * time.Hour)
			unchanged := exp.ProposedStartDate != nil &&
				exp.ProposedStartDate.Format("2006-01-02") == f.ProposedStartDate
			if parsed.Before(today) && !unchanged {
				errs.Add("proposed_start_date",
					"The experiment start date must be no earlier than the current date")
			}
			f.startDate = &parsed
		}
	}

	if f.ProposedDuration != nil {
		if *f.ProposedDuration < 1 || *f.ProposedDuration > experiments.MaxDuration {
			errs.Add("proposed_duration", fmt.Sprintf(
				"Please choose a duration between 1 and %d days", experiments.MaxDuration))
		}
	}
	if f.ProposedEnrollment != nil {
		if *f.ProposedEnrollment < 1 || *f.ProposedEnrollment > experiments.MaxDuration {
			errs.Add("proposed_enrollment", fmt.Sprintf(
				"Please choose an enrollment duration between 1 and %d days", experiments.MaxDuration))
		} else if f.ProposedDuration != nil && *f.ProposedEnrollment > *f.ProposedDuration {
			errs.Add("proposed_enrollment",
				"Enrollment duration is optional, but if set, it must be lower than the experiment duration")
		}
	}

	if f.PopulationPercent <= 0 || f.PopulationPercent > 100 {
		errs.Add("population_percent",
			"The size of the population must be between 0 and 100 percent")
	}

	if f.FirefoxMinVersion == "" {
		errs.Add("firefox_min_version", "This field is required")
	} else if !contains(experiments.FirefoxVersions, f.FirefoxMinVersion) {
		errs.Add("firefox_min_version",
			fmt.Sprintf("%q is not a valid Firefox version", f.FirefoxMinVersion))
	}
	if f.FirefoxMaxVersion != "" {
		if !contains(experiments.FirefoxVersions, f.FirefoxMaxVersion) {
			errs.Add("firefox_max_version",
				fmt.Sprintf("%q is not a valid Firefox version", f.FirefoxMaxVersion))
		} else if f.FirefoxMinVersion != "" &&
			experiments.VersionNumber(f.FirefoxMaxVersion) <= experiments.VersionNumber(f.FirefoxMinVersion) {
			errs.Add("firefox_max_version",
				"The max version must be larger than the min version")
		}
	}

	switch experiments.Channel(f.FirefoxChannel) {
	case experiments.ChannelNightly, experiments.ChannelBeta, experiments.ChannelRelease:
	case "":
		errs.Add("firefox_channel", "This field is required")
	default:
		errs.Add("firefox_channel",
			fmt.Sprintf("%q is not a valid Firefox channel", f.FirefoxChannel))
	}

	switch f.Platform {
	case experiments.PlatformAll, experiments.PlatformWindows,
		experiments.PlatformMac, experiments.PlatformLinux, "":
	default:
		errs.Add("platform", fmt.Sprintf("%q is not a valid platform", f.Platform))
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f *TimelinePopulationForm) Apply(exp *models.Experiment) {
	exp.ProposedStartDate = f.startDate
	exp.ProposedDuration = f.ProposedDuration
	exp.ProposedEnrollment = f.ProposedEnrollment
	exp.PopulationPercent = f.PopulationPercent
	exp.FirefoxMinVersion = f.FirefoxMinVersion
	exp.FirefoxMaxVersion = f.FirefoxMaxVersion
	exp.FirefoxChannel = experiments.Channel(f.FirefoxChannel)
	if f.Platform != "" {
		exp.Platform = f.Platform
	}
	exp.Locales = dedupe(f.Locales)
	exp.Countries = dedupe(f.Countries)
	exp.ClientMatching = f.ClientMatching
}

func dedupe(values []string) models.StringList {
	seen := make(map[string]struct{}, len(values))
	out := make(models.StringList, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ObjectivesForm edits the hypothesis and analysis plan.
type ObjectivesForm struct {
	baseForm

	Objectives         string `json:"objectives" validate:"required"`
	Analysis           string `json:"analysis" validate:"required"`
	SurveyRequired     bool   `json:"survey_required"`
	SurveyURLs         string `json:"survey_urls"`
	SurveyInstructions string `json:"survey_instructions"`
}

func (f *ObjectivesForm) Section() experiments.Section { return experiments.SectionObjectives }

func (f *ObjectivesForm) Fields() []string {
	return []string{
		"objectives", "analysis", "survey_required", "survey_urls",
		"survey_instructions",
	}
}

func (f *ObjectivesForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	errs := experiments.FieldErrors{}
	if f.SurveyRequired && f.SurveyURLs == "" {
		errs.Add("survey_urls", "This field is required when a survey is required")
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f *ObjectivesForm) Apply(exp *models.Experiment) {
	exp.Objectives = f.Objectives
	exp.Analysis = f.Analysis
	exp.SurveyRequired = f.SurveyRequired
	exp.SurveyURLs = f.SurveyURLs
	exp.SurveyInstructions = f.SurveyInstructions
}

// RisksForm edits the risk questionnaire and QA fields.
type RisksForm struct {
	baseForm

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
	Testing                  string `json:"testing"`
	TestBuilds               string `json:"test_builds"`
	QAStatus                 string `json:"qa_status"`
}

func (f *RisksForm) Section() experiments.Section { return experiments.SectionRisks }

func (f *RisksForm) Fields() []string {
	return []string{
		"risk_internal_only", "risk_partner_related", "risk_brand",
		"risk_fast_shipped", "risk_confidential", "risk_release_population",
		"risk_revenue", "risk_data_category", "risk_external_team_impact",
		"risk_telemetry_data", "risk_ux", "risk_security", "risk_revision",
		"risk_technical", "risk_technical_description", "risks", "testing",
		"test_builds", "qa_status",
	}
}

func (f *RisksForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	errs := experiments.FieldErrors{}
	if f.RiskTechnical && f.RiskTechnicalDescription == "" {
		errs.Add("risk_technical_description",
			"This field is required if the experiment is complex or technically risky")
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f *RisksForm) Apply(exp *models.Experiment) {
	exp.RiskInternalOnly = f.RiskInternalOnly
	exp.RiskPartnerRelated = f.RiskPartnerRelated
	exp.RiskBrand = f.RiskBrand
	exp.RiskFastShipped = f.RiskFastShipped
	exp.RiskConfidential = f.RiskConfidential
	exp.RiskReleasePopulation = f.RiskReleasePopulation
	exp.RiskRevenue = f.RiskRevenue
	exp.RiskDataCategory = f.RiskDataCategory
	exp.RiskExternalTeamImpact = f.RiskExternalTeamImpact
	exp.RiskTelemetryData = f.RiskTelemetryData
	exp.RiskUX = f.RiskUX
	exp.RiskSecurity = f.RiskSecurity
	exp.RiskRevision = f.RiskRevision
	exp.RiskTechnical = f.RiskTechnical
	exp.RiskTechnicalDescription = f.RiskTechnicalDescription
	exp.Risks = f.Risks
	exp.Testing = f.Testing
	exp.TestBuilds = f.TestBuilds
	exp.QAStatus = f.QAStatus
}

// ResultsForm records outcomes once an experiment completes.
type ResultsForm struct {
	baseForm

	ResultsURL            string `json:"results_url"`
	ResultsInitial        string `json:"results_initial"`
	ResultsLessonsLearned string `json:"results_lessons_learned"`
}

func (f *ResultsForm) Section() experiments.Section { return experiments.SectionResults }

func (f *ResultsForm) Fields() []string {
	return []string{"results_url", "results_initial", "results_lessons_learned"}
}

func (f *ResultsForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	return nil
}

func (f *ResultsForm) Apply(exp *models.Experiment) {
	exp.ResultsURL = f.ResultsURL
	exp.ResultsInitial = f.ResultsInitial
	exp.ResultsLessonsLearned = f.ResultsLessonsLearned
}
