package experiments

// Status represents the lifecycle state of an experiment.
type Status string

const (
	StatusDraft    Status = "Draft"
	StatusReview   Status = "Review"
	StatusShip     Status = "Ship"
	StatusAccepted Status = "Accepted"
	StatusLive     Status = "Live"
	StatusComplete Status = "Complete"
)

// StatusLabels maps statuses to their display labels.
var StatusLabels = map[Status]string{
	StatusDraft:    "Draft",
	StatusReview:   "Ready for Sign-Off",
	StatusShip:     "Ready to Ship",
	StatusAccepted: "Accepted by Normandy",
	StatusLive:     "Live",
	StatusComplete: "Complete",
}

// StatusTransitions is the fixed adjacency table of legal status changes.
// Complete is terminal.
var StatusTransitions = map[Status][]Status{
	StatusDraft:    {StatusReview},
	StatusReview:   {StatusDraft, StatusShip},
	StatusShip:     {StatusReview, StatusAccepted},
	StatusAccepted: {StatusLive},
	StatusLive:     {StatusComplete},
	StatusComplete: {},
}

// Type determines how the experimental feature is delivered to Firefox users.
type Type string

const (
	TypePref    Type = "pref"
	TypeAddon   Type = "addon"
	TypeGeneric Type = "generic"
)

// TypeLabels maps experiment types to their display labels.
var TypeLabels = map[Type]string{
	TypePref:    "Pref-Flip Experiment",
	TypeAddon:   "Add-On Experiment",
	TypeGeneric: "Generic Experiment",
}

// PrefType is the declared type of the pref an experiment controls.
type PrefType string

const (
	PrefTypeBool    PrefType = "boolean"
	PrefTypeInt     PrefType = "integer"
	PrefTypeStr     PrefType = "string"
	PrefTypeJSONStr PrefType = "json string"
)

// PrefBranch is the pref branch an experiment writes its value to.
type PrefBranch string

const (
	PrefBranchDefault PrefBranch = "default"
	PrefBranchUser    PrefBranch = "user"
)

// Channel is a Firefox release channel.
type Channel string

const (
	ChannelNightly Channel = "Nightly"
	ChannelBeta    Channel = "Beta"
	ChannelRelease Channel = "Release"
)

// Platform targeting values.
const (
	PlatformAll     = "All Platforms"
	PlatformWindows = "All Windows"
	PlatformMac     = "All Mac"
	PlatformLinux   = "All Linux"
)

// MaxDuration is the maximum experiment duration in days.
const MaxDuration = 1000

// MaxNormandySlugLen caps generated normandy slugs.
const MaxNormandySlugLen = 80

// Section identifies one logical form page of the experiment detail view.
type Section string

const (
	SectionTimeline   Section = "timeline"
	SectionOverview   Section = "overview"
	SectionNormandy   Section = "normandy"
	SectionPopulation Section = "population"
	SectionDesign     Section = "design"
	SectionAddon      Section = "addon"
	SectionBranches   Section = "branches"
	SectionObjectives Section = "objectives"
	SectionAnalysis   Section = "analysis"
	SectionRisks      Section = "risks"
	SectionTesting    Section = "testing"
	SectionResults    Section = "results"
)

// FirefoxVersions is the set of versions selectable for min/max targeting.
var FirefoxVersions = []string{
	"55.0", "56.0", "57.0", "58.0", "59.0", "60.0", "61.0", "62.0",
	"63.0", "64.0", "65.0", "66.0", "67.0", "68.0", "69.0", "70.0",
	"71.0", "72.0", "73.0", "74.0", "75.0", "76.0", "77.0", "78.0",
	"79.0", "80.0",
}

// Email subject templates for lifecycle notifications. Placeholders are
// filled with the experiment name, min version and channel.
const (
	IntentToShipEmailSubject = "SHIELD Study Intent to ship: %s %s %s"
	LaunchEmailSubject       = "Experiment launched: %s %s %s"
	EndingEmailSubject       = "Experiment ending soon: %s %s %s"
	PauseEmailSubject        = "Experimenter enrollment ending verification for: %s %s %s"
)

// AttentionMessage flags experiments that need an expedited review.
const AttentionMessage = "This experiment requires special attention and should be reviewed ASAP"

// Labels holds the display copy used by the forms layer. It is passed
// explicitly into forms and the change-log differ so the copy can be
// swapped without touching validation logic.
type Labels struct {
	Fields map[string]string
}

// DefaultLabels returns the display names for every field that can appear
// in a change-log diff.
func DefaultLabels() Labels {
	return Labels{Fields: map[string]string{
		"type":                       "Type",
		"name":                       "Name",
		"short_description":          "Short Description",
		"related_work":               "Related Work URLs",
		"owner":                      "Experiment Owner",
		"analysis_owner":             "Data Science Owner",
		"engineering_owner":          "Engineering Owner",
		"public_name":                "Public Name",
		"public_description":         "Public Description",
		"data_science_bugzilla_url":  "Data Science Bugzilla URL",
		"feature_bugzilla_url":       "Feature Bugzilla URL",
		"proposed_start_date":        "Proposed Start Date",
		"proposed_duration":          "Proposed Experiment Duration (days)",
		"proposed_enrollment":        "Proposed Enrollment Duration (days)",
		"population_percent":         "Population Percentage",
		"firefox_min_version":        "Firefox Min Version",
		"firefox_max_version":        "Firefox Max Version",
		"firefox_channel":            "Firefox Channel",
		"platform":                   "Platform",
		"locales":                    "Locales",
		"countries":                  "Countries",
		"client_matching":            "Population Filtering",
		"design":                     "Design",
		"pref_key":                   "Pref Name",
		"pref_type":                  "Pref Type",
		"pref_branch":                "Pref Branch",
		"addon_experiment_id":        "Active Experiment Name",
		"addon_release_url":          "Signed Release URL",
		"variants":                   "Branches",
		"objectives":                 "Objectives",
		"analysis":                   "Analysis Plan",
		"survey_required":            "Is a Survey Required?",
		"survey_urls":                "Survey URLs",
		"survey_instructions":        "Survey Launch Instructions",
		"risk_internal_only":         "Is this experiment sensitive and/or internal only?",
		"risk_partner_related":       "Is this experiment partner related?",
		"risk_brand":                 "Does this have a high risk to the brand?",
		"risk_fast_shipped":          "Does this experiment require uplifting code or a rushed experiment schedule?",
		"risk_confidential":          "Is this experiment confidential to Mozilla?",
		"risk_release_population":    "Does this experiment affect 1% or more of Release users?",
		"risk_revenue":               "Does this experiment have possible negative impact on revenue?",
		"risk_data_category":         "Are you using Category 3 or 4 data?",
		"risk_external_team_impact":  "Does this experiment impact teams outside of your own?",
		"risk_telemetry_data":        "Do you need data that doesn't exist in telemetry already?",
		"risk_ux":                    "Is UX a significant part of this experiment?",
		"risk_security":              "Does this need security review, consulting, or security testing?",
		"risk_revision":              "Is this experiment a revision of a previous experiment?",
		"risk_technical":             "Is this experiment Complex / Technically Risky?",
		"risk_technical_description": "Technical Risks Description",
		"risks":                      "Risks",
		"testing":                    "Test Instructions",
		"test_builds":                "Test Builds",
		"qa_status":                  "QA Status",
		"review_science":             "Data Science Peer Review",
		"review_engineering":         "Engineering Allocated",
		"review_qa_requested":        "QA Request Sent",
		"review_intent_to_ship":      "Intent to Ship Email Sent",
		"review_bugzilla":            "Bugzilla Updated",
		"review_qa":                  "QA Sign-Off",
		"review_relman":              "Release Management Sign-Off",
		"review_advisory":            "Lightning Advisory (Optional)",
		"review_legal":               "Legal Review",
		"review_ux":                  "UX Review",
		"review_security":            "Security Review",
		"review_vp":                  "VP Sign Off",
		"review_data_steward":        "Data Steward Review",
		"review_comms":               "Mozilla Press/Comms",
		"review_impacted_teams":      "Impacted Team(s) Signed-Off",
		"results_url":                "Primary Results URL",
		"results_initial":            "Initial Results",
		"results_lessons_learned":    "Lessons Learned",
		"normandy_id":                "Primary Recipe ID",
		"other_normandy_ids":         "Other Recipe IDs",
		"archived":                   "Archived",
	}}
}

// DisplayName returns the label for a field, falling back to a title-cased
// version of the field name when no label is configured.
func (l Labels) DisplayName(field string) string {
	if name, ok := l.Fields[field]; ok {
		return name
	}
	return titleCase(field)
}

// RequiredReviews lists the sign-offs every experiment must collect before
// it can ship.
func RequiredReviews() []string {
	return []string{
		"review_science",
		"review_engineering",
		"review_qa_requested",
		"review_intent_to_ship",
		"review_bugzilla",
		"review_qa",
		"review_relman",
	}
}

// OptionalReviews lists sign-offs that only apply to some experiments.
func OptionalReviews() []string {
	return []string{
		"review_advisory",
		"review_legal",
		"review_ux",
		"review_security",
		"review_vp",
		"review_data_steward",
		"review_comms",
		"review_impacted_teams",
	}
}
