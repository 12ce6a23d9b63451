package workflow

import (
	"soundscene/model"
)

// Description length bounds. A description outside these bounds fails the
// step-3 guard for its track.
const (
	MinDescriptionLen = 10
	MaxDescriptionLen = 500
)

// DescriptionValid reports whether a description string passes validation.
func DescriptionValid(text string) bool {
	n := len([]rune(text))
	return n >= MinDescriptionLen && n <= MaxDescriptionLen
}

// ValidityMap computes per-track description validity for the current mode.
// In shared mode one boolean applies uniformly to every track; in per-track
// mode each entry is validated independently and a missing entry is invalid.
func ValidityMap(s State) map[string]bool {
	validity := make(map[string]bool, len(s.Tracks))
	if s.Mode == model.DescriptionShared {
		valid := DescriptionValid(s.SharedDescription)
		for _, t := range s.Tracks {
			validity[t.ID] = valid
		}
		return validity
	}
	for _, t := range s.Tracks {
		text, ok := s.IndividualDescriptions[t.ID]
		validity[t.ID] = ok && DescriptionValid(text)
	}
	return validity
}

// CanContinue is the step-3 guard: every current track must have a valid
// description. An empty track list can never continue.
func CanContinue(s State) bool {
	if len(s.Tracks) == 0 {
		return false
	}
	for _, valid := range ValidityMap(s) {
		if !valid {
			return false
		}
	}
	return true
}

// ApplicableDescriptions resolves the description for each track under the
// current mode, for the render request payload.
func ApplicableDescriptions(s State) map[string]string {
	out := make(map[string]string, len(s.Tracks))
	for _, t := range s.Tracks {
		if s.Mode == model.DescriptionShared {
			out[t.ID] = s.SharedDescription
		} else {
			out[t.ID] = s.IndividualDescriptions[t.ID]
		}
	}
	return out
}

func reduceModeSet(s State, a ModeSet) State {
	if a.Mode != model.DescriptionShared && a.Mode != model.DescriptionPerTrack {
		return s
	}
	if a.Mode == s.Mode {
		return s
	}
	next := s.clone()
	next.Mode = a.Mode
	if a.Mode == model.DescriptionShared {
		// Loaded from the stored shared slot; never auto-populated from an
		// individual description.
		next.SharedDescription = a.Shared
	} else {
		next.IndividualDescriptions = make(map[string]string, len(a.Individual))
		for k, v := range a.Individual {
			next.IndividualDescriptions[k] = v
		}
	}
	return next
}

func reduceDescriptionEdited(s State, a DescriptionEdited) State {
	next := s.clone()
	if s.Mode == model.DescriptionShared {
		next.SharedDescription = a.Text
		return next
	}
	if a.TrackID == "" {
		return s
	}
	next.IndividualDescriptions[a.TrackID] = a.Text
	return next
}
