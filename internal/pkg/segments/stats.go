package segments

import (
	"math"
	"sort"
)

// Stats keeps derived diarization numbers. They are computed once per job
// and cached on the job result, never recomputed on read.
type Stats struct {
	SpeakerCount    int                `json:"speaker_count"`
	Speakers        []string           `json:"speakers"`
	SpeakerTimes    map[string]float64 `json:"speaker_times"`
	SpeakerPercents map[string]float64 `json:"speaker_percentages"`
	TotalSpeechTime float64            `json:"total_speech_time"`
}

// CalcStats derives per speaker totals from diarization turns.
// Returns nil when d is nil - the caller decides the degraded convention.
func CalcStats(d *Diarization) *Stats {
	if d == nil {
		return nil
	}
	res := &Stats{SpeakerTimes: map[string]float64{}, SpeakerPercents: map[string]float64{}}
	for _, t := range d.Turns {
		res.SpeakerTimes[t.Speaker] += t.End - t.Start
		res.TotalSpeechTime += t.End - t.Start
	}
	for sp, tm := range res.SpeakerTimes {
		res.Speakers = append(res.Speakers, sp)
		if res.TotalSpeechTime > 0 {
			res.SpeakerPercents[sp] = round2(tm / res.TotalSpeechTime * 100)
		} else {
			res.SpeakerPercents[sp] = 0
		}
		res.SpeakerTimes[sp] = round2(tm)
	}
	sort.Strings(res.Speakers)
	res.SpeakerCount = len(res.Speakers)
	res.TotalSpeechTime = round2(res.TotalSpeechTime)
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
