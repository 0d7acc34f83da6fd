package segments

// Merge assigns a speaker label to every transcript segment by temporal
// overlap with diarization turns. The turn whose [start, end) interval
// contains the segment's start wins, the earliest starting one on ties.
// Segments with no overlapping turn, or all segments when d is nil,
// get DefaultSpeaker. Pure function - input slices are not modified.
func Merge(segs []Segment, d *Diarization) []Segment {
	res := make([]Segment, len(segs))
	for i, s := range segs {
		s.Speaker = findSpeaker(s.Start, d)
		res[i] = s
	}
	return res
}

func findSpeaker(at float64, d *Diarization) string {
	if d == nil {
		return DefaultSpeaker
	}
	found := ""
	foundStart := 0.0
	for _, t := range d.Turns {
		if t.Start <= at && at < t.End {
			if found == "" || t.Start < foundStart {
				found = t.Speaker
				foundStart = t.Start
			}
		}
	}
	if found == "" {
		return DefaultSpeaker
	}
	return found
}
