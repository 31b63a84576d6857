package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

func prefRequest(variants []Variant) DesignRequest {
	return DesignRequest{
		PrefKey:    "browser.test.enabled",
		PrefType:   string(experiments.PrefTypeBool),
		PrefBranch: string(experiments.PrefBranchDefault),
		Variants:   variants,
	}
}

func validPrefVariants() []Variant {
	return []Variant{
		{Name: "Control", Ratio: 70, IsControl: true, Value: "true"},
		{Name: "Branch A", Ratio: 30, Value: "false"},
	}
}

func TestDesignPrefForm(t *testing.T) {
	exp := &models.Experiment{Type: experiments.TypePref}
	cfg := Config{Labels: experiments.DefaultLabels()}

	t.Run("accepts a valid branch set", func(t *testing.T) {
		form := NewDesignForm(experiments.TypePref, prefRequest(validPrefVariants()))
		assert.Nil(t, form.Validate(exp, cfg))
	})

	t.Run("rejects ratios that do not add to 100", func(t *testing.T) {
		variants := []Variant{
			{Name: "Control", Ratio: 60, IsControl: true, Value: "true"},
			{Name: "Branch A", Ratio: 30, Value: "false"},
		}
		form := NewDesignForm(experiments.TypePref, prefRequest(variants))
		errs := form.Validate(exp, cfg)
		require.NotNil(t, errs)
		assert.Contains(t, errs["variants"], "The size of all branches must add to 100")
	})

	t.Run("rejects out of range branch sizes", func(t *testing.T) {
		variants := []Variant{
			{Name: "Control", Ratio: 0, IsControl: true, Value: "true"},
			{Name: "Branch A", Ratio: 100, Value: "false"},
		}
		form := NewDesignForm(experiments.TypePref, prefRequest(variants))
		errs := form.Validate(exp, cfg)
		require.NotNil(t, errs)
		assert.True(t, errs.Has("variants.0.ratio"))
	})

	t.Run("rejects duplicate branch names", func(t *testing.T) {
		variants := []Variant{
			{Name: "Same", Ratio: 50, IsControl: true, Value: "true"},
			{Name: "same!", Ratio: 50, Value: "false"},
		}
		form := NewDesignForm(experiments.TypePref, prefRequest(variants))
		errs := form.Validate(exp, cfg)
		require.NotNil(t, errs)
		assert.Contains(t, errs["variants"], "All branches must have a unique name")
	})

	t.Run("rejects duplicate pref values", func(t *testing.T) {
		variants := []Variant{
			{Name: "Control", Ratio: 50, IsControl: true, Value: "true"},
			{Name: "Branch A", Ratio: 50, Value: "true"},
		}
		form := NewDesignForm(experiments.TypePref, prefRequest(variants))
		errs := form.Validate(exp, cfg)
		require.NotNil(t, errs)
		assert.Contains(t, errs["variants"], "All branches must have a unique value")
	})

	t.Run("requires exactly one control branch", func(t *testing.T) {
		variants := []Variant{
			{Name: "Control", Ratio: 50, IsControl: true, Value: "true"},
			{Name: "Branch A", Ratio: 50, IsControl: true, Value: "false"},
		}
		form := NewDesignForm(experiments.TypePref, prefRequest(variants))
		errs := form.Validate(exp, cfg)
		require.NotNil(t, errs)
		assert.Contains(t, errs["variants"], "An experiment must have exactly one control branch")
	})

	t.Run("requires at least two branches", func(t *testing.T) {
		variants := []Variant{{Name: "Control", Ratio: 100, IsControl: true, Value: "true"}}
		form := NewDesignForm(experiments.TypePref, prefRequest(variants))
		errs := form.Validate(exp, cfg)
		require.NotNil(t, errs)
		assert.True(t, errs.Has("variants"))
	})

	t.Run("checks values against the declared pref type", func(t *testing.T) {
		cases := []struct {
			prefType experiments.PrefType
			value    string
			valid    bool
		}{
			{experiments.PrefTypeBool, "true", true},
			{experiments.PrefTypeBool, "yes", false},
			{experiments.PrefTypeInt, "42", true},
			{experiments.PrefTypeInt, "2.5", false},
			{experiments.PrefTypeInt, "abc", false},
			{experiments.PrefTypeStr, "anything goes", true},
			{experiments.PrefTypeJSONStr, `{"enabled": true}`, true},
			{experiments.PrefTypeJSONStr, `{"enabled":`, false},
		}
		for _, tc := range cases {
			msg := prefValueError(tc.value, tc.prefType)
			if tc.valid {
				assert.Empty(t, msg, "%s %q should be valid", tc.prefType, tc.value)
			} else {
				assert.NotEmpty(t, msg, "%s %q should be invalid", tc.prefType, tc.value)
			}
		}
	})

	t.Run("apply replaces the branch set with slugged variants", func(t *testing.T) {
		target := &models.Experiment{ID: 7, Type: experiments.TypePref}
		form := NewDesignForm(experiments.TypePref, prefRequest(validPrefVariants()))
		require.Nil(t, form.Validate(target, cfg))
		form.Apply(target)

		require.Len(t, target.Variants, 2)
		assert.Equal(t, "control", target.Variants[0].Slug)
		assert.Equal(t, "branch-a", target.Variants[1].Slug)
		assert.Equal(t, experiments.PrefTypeBool, target.PrefType)
	})
}

func TestDesignAddonForm(t *testing.T) {
	exp := &models.Experiment{Type: experiments.TypeAddon}
	cfg := Config{Labels: experiments.DefaultLabels()}
	variants := []Variant{
		{Name: "Control", Ratio: 50, IsControl: true},
		{Name: "Branch A", Ratio: 50},
	}

	t.Run("requires addon fields", func(t *testing.T) {
		form := NewDesignForm(experiments.TypeAddon, DesignRequest{Variants: variants})
		errs := form.Validate(exp, cfg)
		require.NotNil(t, errs)
		assert.True(t, errs.Has("addon_experiment_id"))
		assert.True(t, errs.Has("addon_release_url"))
	})

	t.Run("does not require branch values", func(t *testing.T) {
		form := NewDesignForm(experiments.TypeAddon, DesignRequest{
			AddonExperimentID: "my-addon-study",
			AddonReleaseURL:   "https://example.com/addon.xpi",
			Variants:          variants,
		})
		assert.Nil(t, form.Validate(exp, cfg))
	})
}

func TestDesignGenericForm(t *testing.T) {
	exp := &models.Experiment{Type: experiments.TypeGeneric}
	cfg := Config{Labels: experiments.DefaultLabels()}

	form := NewDesignForm(experiments.TypeGeneric, DesignRequest{
		Design: "We toggle the new tab layout server side.",
		Variants: []Variant{
			{Name: "Control", Ratio: 50, IsControl: true},
			{Name: "Treatment", Ratio: 50},
		},
	})
	require.Nil(t, form.Validate(exp, cfg))

	target := &models.Experiment{Type: experiments.TypeGeneric}
	form.Apply(target)
	assert.Equal(t, "We toggle the new tab layout server side.", target.Design)
	assert.Len(t, target.Variants, 2)
}
