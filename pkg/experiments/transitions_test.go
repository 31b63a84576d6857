package experiments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition(t *testing.T) {
	t.Run("allows every adjacent transition", func(t *testing.T) {
		for from, targets := range StatusTransitions {
			for _, to := range targets {
				from := from
				assert.NoError(t, CheckTransition(&from, to),
					"expected %s -> %s to be allowed", from, to)
			}
		}
	})

	t.Run("allows saving without a status change", func(t *testing.T) {
		for status := range StatusLabels {
			status := status
			assert.NoError(t, CheckTransition(&status, status))
		}
	})

	t.Run("rejects skipping states", func(t *testing.T) {
		draft := StatusDraft
		err := CheckTransition(&draft, StatusLive)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Draft")
		assert.Contains(t, err.Error(), "Live")
	})

	t.Run("rejection names the raw statuses", func(t *testing.T) {
		review := StatusReview
		err := CheckTransition(&review, StatusAccepted)
		require.Error(t, err)
		assert.Equal(t,
			"You can not change an Experiment's status from Review to Accepted",
			err.Error())
	})

	t.Run("rejects leaving a terminal status", func(t *testing.T) {
		complete := StatusComplete
		for _, to := range []Status{StatusDraft, StatusReview, StatusShip, StatusAccepted, StatusLive} {
			assert.Error(t, CheckTransition(&complete, to))
		}
	})

	t.Run("rejects backtracking across more than one step", func(t *testing.T) {
		live := StatusLive
		err := CheckTransition(&live, StatusDraft)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Live")
	})

	t.Run("allows review and ship backtracking", func(t *testing.T) {
		review := StatusReview
		assert.NoError(t, CheckTransition(&review, StatusDraft))
		ship := StatusShip
		assert.NoError(t, CheckTransition(&ship, StatusReview))
	})

	t.Run("new experiments must start in draft", func(t *testing.T) {
		assert.NoError(t, CheckTransition(nil, StatusDraft))
		assert.Error(t, CheckTransition(nil, StatusReview))
	})

	t.Run("rejects unknown statuses", func(t *testing.T) {
		draft := StatusDraft
		assert.Error(t, CheckTransition(&draft, Status("Launched")))
	})
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"My Experiment":          "my-experiment",
		"Pref flip!  (take two)": "pref-flip-take-two",
		"---":                    "",
		"CamelCase123":           "camelcase123",
	}
	for input, want := range cases {
		assert.Equal(t, want, Slugify(input), "Slugify(%q)", input)
	}
}

func TestVersionNumber(t *testing.T) {
	assert.Equal(t, 57, VersionNumber("57.0"))
	assert.Equal(t, 80, VersionNumber("80.0b1"))
	assert.Equal(t, 0, VersionNumber(""))
	assert.Equal(t, 0, VersionNumber("beta"))
}

func TestDisplayName(t *testing.T) {
	labels := DefaultLabels()
	assert.Equal(t, "Firefox Min Version", labels.DisplayName("firefox_min_version"))
	assert.Equal(t, "Branches", labels.DisplayName("variants"))
	assert.Equal(t, "Some Unknown Field", labels.DisplayName("some_unknown_field"))
}
