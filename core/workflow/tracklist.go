package workflow

// DropPosition says which side of the target a dragged track lands on.
type DropPosition string

const (
	DropAbove DropPosition = "above"
	DropBelow DropPosition = "below"
)

func reduceTracksAdded(s State, a TracksAdded) State {
	if len(a.Tracks) == 0 {
		return s
	}
	next := s.clone()
	next.Tracks = append(next.Tracks, a.Tracks...)
	for i := range next.Tracks {
		next.Tracks[i].Position = i
	}
	// First track added to an empty project becomes the selection.
	if next.SelectedTrackID == "" {
		next.SelectedTrackID = a.Tracks[0].ID
	}
	return next
}

func reduceTracksRemoved(s State, a TracksRemoved) State {
	if len(a.IDs) == 0 {
		return s
	}
	removed := make(map[string]bool, len(a.IDs))
	for _, id := range a.IDs {
		removed[id] = true
	}

	next := s.clone()
	kept := next.Tracks[:0]
	for _, t := range next.Tracks {
		if !removed[t.ID] {
			kept = append(kept, t)
		}
	}
	next.Tracks = kept
	for i := range next.Tracks {
		next.Tracks[i].Position = i
	}

	// Selection falls to the new first track, or clears if none remain.
	if removed[next.SelectedTrackID] {
		if len(next.Tracks) > 0 {
			next.SelectedTrackID = next.Tracks[0].ID
		} else {
			next.SelectedTrackID = ""
		}
	}

	// The multi-selection set is filtered, insertion order preserved.
	multi := next.MultiSelection[:0]
	for _, id := range next.MultiSelection {
		if !removed[id] {
			multi = append(multi, id)
		}
	}
	next.MultiSelection = multi

	// Per-track state for removed tracks goes with them.
	for id := range removed {
		delete(next.IndividualDescriptions, id)
		delete(next.AnalysisStatus, id)
		delete(next.AnalysisResults, id)
	}
	return next
}

func reduceTrackSelected(s State, a TrackSelected) State {
	next := s.clone()
	if !a.Toggle {
		next.SelectedTrackID = a.ID
		return next
	}
	// Toggled multi-select: add or remove from the set, preserving insertion
	// order for numbering.
	for i, id := range next.MultiSelection {
		if id == a.ID {
			next.MultiSelection = append(next.MultiSelection[:i], next.MultiSelection[i+1:]...)
			return next
		}
	}
	next.MultiSelection = append(next.MultiSelection, a.ID)
	return next
}

func reduceTracksReordered(s State, a TracksReordered) State {
	n := len(s.Tracks)
	if a.From < 0 || a.From >= n || a.To < 0 || a.To >= n {
		return s
	}

	target := a.To
	if a.Drop == DropBelow {
		target++
	}

	next := s.clone()
	moved := next.Tracks[a.From]
	rest := append(next.Tracks[:a.From:a.From], next.Tracks[a.From+1:]...)
	if a.From < target {
		target--
	}
	if target < 0 {
		target = 0
	}
	if target > len(rest) {
		target = len(rest)
	}

	out := append(rest[:target:target], moved)
	out = append(out, rest[target:]...)
	next.Tracks = out
	for i := range next.Tracks {
		next.Tracks[i].Position = i
	}
	return next
}

func reduceDurationUpdated(s State, a DurationUpdated) State {
	next := s.clone()
	for i := range next.Tracks {
		if next.Tracks[i].ID == a.TrackID {
			// One-way update once decode completes; a failed decode reports 0
			// so totals never carry a stale value.
			next.Tracks[i].Duration = a.Seconds
			break
		}
	}
	return next
}
