package status

// Status represents job processing status
type Status int

const (
	// Queued - job record created, not yet picked up
	Queued Status = iota + 1
	// Processing - pipeline is running
	Processing
	// Completed - final state, result available
	Completed
	// Failed - final state, error available
	Failed
)

var (
	statusName = map[Status]string{Queued: "queued", Processing: "processing",
		Completed: "completed", Failed: "failed"}
	nameStatus = map[string]Status{"queued": Queued, "processing": Processing,
		"completed": Completed, "failed": Failed}
)

func (st Status) String() string {
	return statusName[st]
}

// Terminal indicates an absorbing state - no transition leads out of it
func (st Status) Terminal() bool {
	return st == Completed || st == Failed
}

// From returns status obj from string
func From(st string) Status {
	return nameStatus[st]
}

// Pipeline step names. Advisory only - never used for control decisions
const (
	StepUploading    = "uploading"
	StepPreparing    = "preparing"
	StepTranscribing = "transcribing"
	StepAnalyzing    = "analyzing"
	StepFinished     = "finished"
)
