package segments

// DefaultSpeaker is the synthetic label assigned when diarization
// provides no match for a segment
const DefaultSpeaker = "SPEAKER_00"

// Word keeps word level alignment info
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score,omitempty"`
}

// Segment is one timed piece of the transcript
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Words   []Word  `json:"words,omitempty"`
}

// Transcription is the speech engine output
type Transcription struct {
	Segments []Segment
	Language string
}

// Turn is one speaker labeled time interval produced by the diarization engine
type Turn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Diarization keeps speaker turns for one audio file
type Diarization struct {
	Turns []Turn
}

// SpeakerHints constrain the diarization engine.
// NumSpeakers takes precedence over the Min/Max range when both are set.
type SpeakerHints struct {
	NumSpeakers int
	MinSpeakers int
	MaxSpeakers int
}
