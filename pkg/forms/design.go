package forms

import (
	"encoding/json"
	"fmt"

	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

// Variant is one submitted branch.
type Variant struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Ratio       int    `json:"ratio"`
	IsControl   bool   `json:"is_control"`
	Value       string `json:"value"`
}

// DesignRequest is the union of all design section payloads. Which fields
// apply depends on the experiment type.
type DesignRequest struct {
	Design            string    `json:"design"`
	PrefKey           string    `json:"pref_key"`
	PrefType          string    `json:"pref_type"`
	PrefBranch        string    `json:"pref_branch"`
	AddonExperimentID string    `json:"addon_experiment_id"`
	AddonReleaseURL   string    `json:"addon_release_url"`
	Variants          []Variant `json:"variants"`
}

// NewDesignForm returns the design form matching the experiment's type.
func NewDesignForm(t experiments.Type, req DesignRequest) SectionForm {
	switch t {
	case experiments.TypeAddon:
		return &designAddonForm{req: req}
	case experiments.TypeGeneric:
		return &designGenericForm{req: req}
	default:
		return &designPrefForm{req: req}
	}
}

// validateVariants enforces the branch set rules shared by every
// experiment type. checkValues additionally applies the pref value rules.
func validateVariants(variants []Variant, prefType experiments.PrefType, checkValues bool, errs experiments.FieldErrors) {
	if len(variants) < 2 {
		errs.Add("variants", "An experiment must have a control and at least one branch")
		return
	}

	total := 0
	controls := 0
	names := map[string]int{}
	values := map[string]int{}
	for i, v := range variants {
		key := variantField(i, "ratio")
		if v.Ratio < 1 || v.Ratio > 100 {
			errs.Add(key, "Branch sizes must be between 1 and 100")
		}
		total += v.Ratio

		if v.Name == "" {
			errs.Add(variantField(i, "name"), "This field is required")
		} else if experiments.Slugify(v.Name) == "" {
			errs.Add(variantField(i, "name"), "This name must include non-punctuation characters")
		} else {
			names[experiments.Slugify(v.Name)]++
		}

		if v.IsControl {
			controls++
		}

		if checkValues {
			if v.Value == "" {
				errs.Add(variantField(i, "value"), "This field is required")
			} else {
				if msg := prefValueError(v.Value, prefType); msg != "" {
					errs.Add(variantField(i, "value"), msg)
				}
				values[v.Value]++
			}
		}
	}

	if total != 100 {
		errs.Add("variants", "The size of all branches must add to 100")
	}
	if controls != 1 {
		errs.Add("variants", "An experiment must have exactly one control branch")
	}
	for _, count := range names {
		if count > 1 {
			errs.Add("variants", "All branches must have a unique name")
			break
		}
	}
	for _, count := range values {
		if count > 1 {
			errs.Add("variants", "All branches must have a unique value")
			break
		}
	}
}

func variantField(i int, field string) string {
	return fmt.Sprintf("variants.%d.%s", i, field)
}

// prefValueError checks a submitted branch value against the declared pref
// type. String prefs accept anything; the other types must parse as the
// matching JSON value.
func prefValueError(value string, prefType experiments.PrefType) string {
	switch prefType {
	case experiments.PrefTypeBool:
		var b bool
		if json.Unmarshal([]byte(value), &b) != nil {
			return "The pref value must be a boolean (true or false)"
		}
	case experiments.PrefTypeInt:
		var n int64
		if json.Unmarshal([]byte(value), &n) != nil {
			return "The pref value must be an integer"
		}
	case experiments.PrefTypeJSONStr:
		if !json.Valid([]byte(value)) {
			return "The pref value must be valid JSON"
		}
	}
	return ""
}

func applyVariants(exp *models.Experiment, variants []Variant) {
	out := make([]models.ExperimentVariant, 0, len(variants))
	for _, v := range variants {
		out = append(out, models.ExperimentVariant{
			ExperimentID: exp.ID,
			Name:         v.Name,
			Slug:         experiments.Slugify(v.Name),
			Description:  v.Description,
			Ratio:        v.Ratio,
			IsControl:    v.IsControl,
			Value:        v.Value,
		})
	}
	exp.Variants = out
}

type designPrefForm struct {
	baseForm
	req DesignRequest
}

func (f *designPrefForm) Section() experiments.Section { return experiments.SectionDesign }

func (f *designPrefForm) Fields() []string {
	return []string{"pref_key", "pref_type", "pref_branch", "variants"}
}

func (f *designPrefForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	errs := experiments.FieldErrors{}

	if f.req.PrefKey == "" {
		errs.Add("pref_key", "This field is required")
	}

	prefType := experiments.PrefType(f.req.PrefType)
	switch prefType {
	case experiments.PrefTypeBool, experiments.PrefTypeInt,
		experiments.PrefTypeStr, experiments.PrefTypeJSONStr:
	case "":
		errs.Add("pref_type", "This field is required")
	default:
		errs.Add("pref_type", fmt.Sprintf("%q is not a valid pref type", f.req.PrefType))
	}

	switch experiments.PrefBranch(f.req.PrefBranch) {
	case experiments.PrefBranchDefault, experiments.PrefBranchUser:
	case "":
		errs.Add("pref_branch", "This field is required")
	default:
		errs.Add("pref_branch", fmt.Sprintf("%q is not a valid pref branch", f.req.PrefBranch))
	}

	validateVariants(f.req.Variants, prefType, true, errs)

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f *designPrefForm) Apply(exp *models.Experiment) {
	exp.PrefKey = f.req.PrefKey
	exp.PrefType = experiments.PrefType(f.req.PrefType)
	exp.PrefBranch = experiments.PrefBranch(f.req.PrefBranch)
	applyVariants(exp, f.req.Variants)
}

type designAddonForm struct {
	baseForm
	req DesignRequest
}

func (f *designAddonForm) Section() experiments.Section { return experiments.SectionDesign }

func (f *designAddonForm) Fields() []string {
	return []string{"addon_experiment_id", "addon_release_url", "variants"}
}

func (f *designAddonForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	errs := experiments.FieldErrors{}
	if f.req.AddonExperimentID == "" {
		errs.Add("addon_experiment_id", "This field is required")
	}
	if f.req.AddonReleaseURL == "" {
		errs.Add("addon_release_url", "This field is required")
	}
	validateVariants(f.req.Variants, "", false, errs)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f *designAddonForm) Apply(exp *models.Experiment) {
	exp.AddonExperimentID = f.req.AddonExperimentID
	exp.AddonReleaseURL = f.req.AddonReleaseURL
	applyVariants(exp, f.req.Variants)
}

type designGenericForm struct {
	baseForm
	req DesignRequest
}

func (f *designGenericForm) Section() experiments.Section { return experiments.SectionDesign }

func (f *designGenericForm) Fields() []string {
	return []string{"design", "variants"}
}

func (f *designGenericForm) Validate(exp *models.Experiment, cfg Config) experiments.FieldErrors {
	errs := experiments.FieldErrors{}
	validateVariants(f.req.Variants, "", false, errs)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (f *designGenericForm) Apply(exp *models.Experiment) {
	exp.Design = f.req.Design
	applyVariants(exp, f.req.Variants)
}
