package shared

import "errors"

// Game statuses reused outside the games module.
const (
	GameStatusScheduled = "scheduled"
	GameStatusCompleted = "completed"
	GameStatusCancelled = "cancelled"
)

// ErrInvalidGameTransition indicates a status change not allowed.
var ErrInvalidGameTransition = errors.New("game status transition invalid")

// ValidateGameTransition checks transitions according to policy. Reopening
// a completed game requires an override.
func ValidateGameTransition(current, target string, hasOverride bool) error {
	if current == target {
		return nil
	}
	switch current {
	case GameStatusScheduled:
		if target == GameStatusCompleted || target == GameStatusCancelled {
			return nil
		}
	case GameStatusCompleted:
		if target == GameStatusScheduled && hasOverride {
			return nil
		}
	case GameStatusCancelled:
		if target == GameStatusScheduled {
			return nil
		}
	}
	return ErrInvalidGameTransition
}
