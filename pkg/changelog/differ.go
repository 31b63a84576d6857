// Package changelog computes the field-level diffs recorded on every
// experiment save. The differ is a pure function over two serialized
// snapshots; persistence and display naming are the caller's concern.
package changelog

import "reflect"

// FieldChange records the before/after values of a single field together
// with the display name shown in the audit trail.
type FieldChange struct {
	OldValue    any    `json:"old_value"`
	NewValue    any    `json:"new_value"`
	DisplayName string `json:"display_name"`
}

// DiffMap maps field names to their recorded changes for one save.
type DiffMap map[string]FieldChange

// Snapshot is a serialized view of an experiment's fields. Related-entity
// collections (locales, countries, variants) must already be normalized to
// their natural keys before diffing.
type Snapshot map[string]any

// DisplayNamer resolves a field name to its human-readable label.
type DisplayNamer interface {
	DisplayName(field string) string
}

// Diff compares two snapshots over the given changed-field set and returns
// one FieldChange per field whose value actually differs. A nil old
// snapshot marks the initial save: every recorded field has a nil old
// value. Fields where both sides are empty are skipped so a save never
// records a no-op change.
func Diff(old, new Snapshot, changedFields []string, names DisplayNamer) DiffMap {
	diff := DiffMap{}
	for _, field := range changedFields {
		var oldVal, newVal any
		if old != nil {
			oldVal = old[field]
		}
		if new != nil {
			newVal = new[field]
		}
		if reflect.DeepEqual(oldVal, newVal) {
			continue
		}
		if isEmpty(oldVal) && isEmpty(newVal) {
			continue
		}
		diff[field] = FieldChange{
			OldValue:    oldVal,
			NewValue:    newVal,
			DisplayName: names.DisplayName(field),
		}
	}
	return diff
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case bool:
		return !val
	case int:
		return val == 0
	case float64:
		return val == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Ptr:
		return rv.IsNil()
	}
	return false
}
