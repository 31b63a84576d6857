package experiments

import "fmt"

// CheckTransition validates a status change against the lifecycle graph.
// A nil old status means the experiment is being created, which is only
// legal into Draft. Saving without changing status is always allowed.
func CheckTransition(old *Status, next Status) error {
	if _, ok := StatusLabels[next]; !ok {
		return fmt.Errorf("%q is not a valid status", string(next))
	}

	if old == nil {
		if next != StatusDraft {
			return fmt.Errorf("a new experiment must start in the %s status", string(StatusDraft))
		}
		return nil
	}

	if *old == next {
		return nil
	}

	for _, allowed := range StatusTransitions[*old] {
		if allowed == next {
			return nil
		}
	}

	return fmt.Errorf(
		"You can not change an Experiment's status from %s to %s",
		string(*old), string(next),
	)
}
