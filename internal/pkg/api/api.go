package api

const (
	// PrmFile is audio file form parameter
	PrmFile = "file"
	// PrmLanguage is language hint form parameter
	PrmLanguage = "language"
	// PrmAnalysisType is analysis type form parameter
	PrmAnalysisType = "analysis_type"
	// PrmNumSpeakers is exact speaker count form parameter
	PrmNumSpeakers = "num_speakers"
	// PrmMinSpeakers is min speaker count form parameter
	PrmMinSpeakers = "min_speakers"
	// PrmMaxSpeakers is max speaker count form parameter
	PrmMaxSpeakers = "max_speakers"
	// PrmAsync selects background processing
	PrmAsync = "async"
)

// LangAuto indicates the engine should detect the language itself
const LangAuto = "auto"

// Options is the immutable snapshot of caller supplied parameters,
// captured once at job submission
type Options struct {
	FileName     string `json:"file_name,omitempty"`
	Language     string `json:"language,omitempty"`
	AnalysisType string `json:"analysis_type,omitempty"`
	NumSpeakers  int    `json:"num_speakers,omitempty"`
	MinSpeakers  int    `json:"min_speakers,omitempty"`
	MaxSpeakers  int    `json:"max_speakers,omitempty"`
}
