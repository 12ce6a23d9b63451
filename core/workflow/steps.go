package workflow

import (
	"soundscene/model"
)

// CanAdvance evaluates the step-specific guard for a forward transition.
// A failed guard is not an error: the UI disables the forward control.
func CanAdvance(s State) bool {
	switch s.CurrentStep {
	case model.StepUpload:
		// At least one track with a selection, or an existing project being
		// continued.
		if s.ContinuingExisting {
			return true
		}
		return len(s.Tracks) > 0 && s.SelectedTrackID != ""
	case model.StepSettings:
		return s.Settings.Valid()
	case model.StepPrompt:
		return CanContinue(s)
	default:
		// OVERVIEW is terminal; forward movement is the submit action.
		return false
	}
}

// StepInRange reports whether a step value parsed from a locator is usable.
func StepInRange(step int) bool {
	return step >= model.StepUpload && step <= model.StepOverview
}
