package changelog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNames map[string]string

func (n testNames) DisplayName(field string) string {
	if name, ok := n[field]; ok {
		return name
	}
	return field
}

func TestDiff(t *testing.T) {
	names := testNames{"name": "Name", "population_percent": "Population Percentage"}

	t.Run("records only fields that changed", func(t *testing.T) {
		old := Snapshot{"name": "before", "population_percent": 10.0, "owner": "a@example.com"}
		new := Snapshot{"name": "after", "population_percent": 10.0, "owner": "a@example.com"}

		diff := Diff(old, new, []string{"name", "population_percent", "owner"}, names)

		require.Len(t, diff, 1)
		change := diff["name"]
		assert.Equal(t, "before", change.OldValue)
		assert.Equal(t, "after", change.NewValue)
		assert.Equal(t, "Name", change.DisplayName)
	})

	t.Run("ignores fields outside the changed set", func(t *testing.T) {
		old := Snapshot{"name": "before", "owner": "a@example.com"}
		new := Snapshot{"name": "before", "owner": "b@example.com"}

		diff := Diff(old, new, []string{"name"}, names)
		assert.Empty(t, diff)
	})

	t.Run("initial save records nil old values", func(t *testing.T) {
		new := Snapshot{"name": "fresh", "population_percent": 25.0}

		diff := Diff(nil, new, []string{"name", "population_percent"}, names)

		require.Len(t, diff, 2)
		assert.Nil(t, diff["name"].OldValue)
		assert.Equal(t, "fresh", diff["name"].NewValue)
		assert.Equal(t, "Population Percentage", diff["population_percent"].DisplayName)
	})

	t.Run("skips empty to empty transitions", func(t *testing.T) {
		old := Snapshot{"design": "", "locales": []string{}}
		new := Snapshot{"design": "", "locales": []string(nil)}

		diff := Diff(old, new, []string{"design", "locales"}, names)
		assert.Empty(t, diff)
	})

	t.Run("initial save skips empty fields", func(t *testing.T) {
		new := Snapshot{"name": "fresh", "design": "", "archived": false}

		diff := Diff(nil, new, []string{"name", "design", "archived"}, names)
		require.Len(t, diff, 1)
		assert.Contains(t, diff, "name")
	})

	t.Run("compares variant collections structurally", func(t *testing.T) {
		oldVariants := []map[string]any{{"slug": "control", "ratio": 50}}
		newVariants := []map[string]any{{"slug": "control", "ratio": 40}}

		diff := Diff(
			Snapshot{"variants": oldVariants},
			Snapshot{"variants": newVariants},
			[]string{"variants"}, names)

		require.Len(t, diff, 1)
		assert.Equal(t, oldVariants, diff["variants"].OldValue)
		assert.Equal(t, newVariants, diff["variants"].NewValue)
	})
}
