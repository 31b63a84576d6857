package models

import (
	"sort"
	"time"

	"github.com/mozilla-services/experimenter-api/pkg/changelog"
)

// Snapshot serializes the experiment into the flat map the change-log
// differ compares. Dates are formatted as YYYY-MM-DD, list columns are
// copied and sorted, and variants are reduced to plain maps ordered by
// slug so two snapshots of the same state always compare equal.
func (e *Experiment) Snapshot() changelog.Snapshot {
	s := changelog.Snapshot{
		"type":                      string(e.Type),
		"name":                      e.Name,
		"short_description":         e.ShortDescription,
		"related_work":              e.RelatedWork,
		"owner":                     e.Owner,
		"analysis_owner":            e.AnalysisOwner,
		"engineering_owner":         e.EngineeringOwner,
		"public_name":               e.PublicName,
		"public_description":        e.PublicDescription,
		"data_science_bugzilla_url": e.DataScienceBugzillaURL,
		"feature_bugzilla_url":      e.FeatureBugzillaURL,

		"proposed_start_date": formatDate(e.ProposedStartDate),
		"proposed_duration":   intOrNil(e.ProposedDuration),
		"proposed_enrollment": intOrNil(e.ProposedEnrollment),

		"population_percent":  e.PopulationPercent,
		"firefox_min_version": e.FirefoxMinVersion,
		"firefox_max_version": e.FirefoxMaxVersion,
		"firefox_channel":     string(e.FirefoxChannel),
		"platform":            e.Platform,
		"locales":             sortedCopy(e.Locales),
		"countries":           sortedCopy(e.Countries),
		"client_matching":     e.ClientMatching,

		"design":              e.Design,
		"pref_key":            e.PrefKey,
		"pref_type":           string(e.PrefType),
		"pref_branch":         string(e.PrefBranch),
		"addon_experiment_id": e.AddonExperimentID,
		"addon_release_url":   e.AddonReleaseURL,

		"objectives":          e.Objectives,
		"analysis":            e.Analysis,
		"survey_required":     e.SurveyRequired,
		"survey_urls":         e.SurveyURLs,
		"survey_instructions": e.SurveyInstructions,

		"risk_internal_only":         e.RiskInternalOnly,
		"risk_partner_related":       e.RiskPartnerRelated,
		"risk_brand":                 e.RiskBrand,
		"risk_fast_shipped":          e.RiskFastShipped,
		"risk_confidential":          e.RiskConfidential,
		"risk_release_population":    e.RiskReleasePopulation,
		"risk_revenue":               e.RiskRevenue,
		"risk_data_category":         e.RiskDataCategory,
		"risk_external_team_impact":  e.RiskExternalTeamImpact,
		"risk_telemetry_data":        e.RiskTelemetryData,
		"risk_ux":                    e.RiskUX,
		"risk_security":              e.RiskSecurity,
		"risk_revision":              e.RiskRevision,
		"risk_technical":             e.RiskTechnical,
		"risk_technical_description": e.RiskTechnicalDescription,
		"risks":                      e.Risks,

		"testing":     e.Testing,
		"test_builds": e.TestBuilds,
		"qa_status":   e.QAStatus,

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

		"results_url":             e.ResultsURL,
		"results_initial":         e.ResultsInitial,
		"results_lessons_learned": e.ResultsLessonsLearned,

		"normandy_id":        intOrNil(e.NormandyID),
		"other_normandy_ids": sortedCopy(e.OtherNormandyIDs),

		"archived": e.Archived,
	}

	variants := make([]map[string]any, 0, len(e.Variants))
	for _, v := range e.Variants {
		variants = append(variants, map[string]any{
			"name":        v.Name,
			"slug":        v.Slug,
			"description": v.Description,
			"ratio":       v.Ratio,
			"is_control":  v.IsControl,
			"value":       v.Value,
		})
	}
	sort.Slice(variants, func(i, j int) bool {
		return variants[i]["slug"].(string) < variants[j]["slug"].(string)
	})
	s["variants"] = variants

	return s
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func sortedCopy(l StringList) []string {
	out := make([]string, len(l))
	copy(out, l)
	sort.Strings(out)
	return out
}
