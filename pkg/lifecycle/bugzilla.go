package lifecycle

import (
	"fmt"
	"strings"

	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

const bugzillaPrefTemplate = `Experiment Type: Pref Flip Experiment

What is the preference we will be changing

%s

What are the branches of the experiment and what values should each branch be set to?

%s

What version and channel do you intend to ship to?

%s

Are there specific criteria for participants?

%s
Countries: %s

Locales: %s

What is your intended go live date and how long will the experiment run?

%s

What is the main effect you are looking for and what data will you use to make these decisions?

%s

Who is the owner of the data analysis for this experiment?

%s

QA Status of your code:

%s`

const bugzillaAddonTemplate = `Experiment Type: Add-on experiment

What are the branches of the experiment:

%s

What version and channel do you intend to ship to?

%s

Are there specific criteria for participants?

%s
Countries: %s

Locales: %s

What is your intended go live date and how long will the experiment run?

%s

What is the main effect you are looking for and what data will you use to make these decisions?

%s

Who is the owner of the data analysis for this experiment?

%s

QA Status of your code:

%s`

// BugzillaDescription renders the bug-tracker description for an
// experiment. Pref experiments list the pref key and per-branch values;
// other types list the branches only.
func BugzillaDescription(exp *models.Experiment) string {
	switch exp.Type {
	case experiments.TypePref:
		return fmt.Sprintf(bugzillaPrefTemplate,
			exp.PrefKey,
			bugzillaVariants(exp, true),
			exp.PopulationLabel(),
			exp.ClientMatching,
			listOrAll(exp.Countries),
			listOrAll(exp.Locales),
			datesLabel(exp),
			exp.Analysis,
			exp.AnalysisOwner,
			exp.QAStatus,
		)
	default:
		return fmt.Sprintf(bugzillaAddonTemplate,
			bugzillaVariants(exp, false),
			exp.PopulationLabel(),
			exp.ClientMatching,
			listOrAll(exp.Countries),
			listOrAll(exp.Locales),
			datesLabel(exp),
			exp.Analysis,
			exp.AnalysisOwner,
			exp.QAStatus,
		)
	}
}

func bugzillaVariants(exp *models.Experiment, withValues bool) string {
	lines := make([]string, 0, len(exp.Variants))
	for i := range exp.Variants {
		v := &exp.Variants[i]
		kind := "Branch"
		if v.IsControl {
			kind = "Control"
		}
		line := fmt.Sprintf("- %s %s %d%%:", kind, v.Name, v.Ratio)
		if withValues {
			line += fmt.Sprintf("\n\nValue: %s", v.Value)
		}
		if v.Description != "" {
			line += "\n\n" + v.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n\n")
}

func datesLabel(exp *models.Experiment) string {
	if exp.ProposedStartDate == nil {
		return "Not set"
	}
	label := exp.ProposedStartDate.Format("Jan 02, 2006")
	if exp.ProposedDuration != nil {
		end := exp.ProposedStartDate.AddDate(0, 0, *exp.ProposedDuration)
		label = fmt.Sprintf("%s - %s (%d days)",
			label, end.Format("Jan 02, 2006"), *exp.ProposedDuration)
	}
	return label
}

func listOrAll(values models.StringList) string {
	if len(values) == 0 {
		return "All"
	}
	return strings.Join(values, ", ")
}
