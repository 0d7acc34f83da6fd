package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/google/uuid"

	"github.com/aplay/mscribe/internal/pkg/analysis"
	"github.com/aplay/mscribe/internal/pkg/api"
	"github.com/aplay/mscribe/internal/pkg/registry"
	"github.com/aplay/mscribe/internal/pkg/segments"
	"github.com/aplay/mscribe/internal/pkg/status"
	"github.com/aplay/mscribe/internal/pkg/transcription"
	"github.com/aplay/mscribe/internal/pkg/utils"
)

// Transcriber provides speech to text
type Transcriber interface {
	Transcribe(ctx context.Context, filePath, language string) (*segments.Transcription, error)
	Languages() []string
}

// Diarizer provides speaker identification. Returns (nil, nil) when the
// engine is unavailable - a degraded but valid mode
type Diarizer interface {
	Diarize(ctx context.Context, filePath string, hints segments.SpeakerHints) (*segments.Diarization, error)
	Available() bool
}

// Analyzer provides natural language analysis of the transcript
type Analyzer interface {
	Analyze(ctx context.Context, segs []segments.Segment, analysisType, customPrompt string) (string, bool, error)
	Types() []string
}

// FileKeeper removes job audio files
type FileKeeper interface {
	Remove(path string)
	Formats() []string
}

// Notifier is informed after every job record change
type Notifier interface {
	JobChanged(ID string)
}

// ServiceData keeps data required for the orchestrator
type ServiceData struct {
	Registry    *registry.Registry
	Transcriber Transcriber
	Diarizer    Diarizer
	Analyzer    Analyzer
	Files       FileKeeper
	Notifier    Notifier
}

// Service drives the processing pipeline: upload -> transcribe ->
// diarize -> merge -> analyze, and owns every job record for its lifetime
type Service struct {
	data *ServiceData
}

// NewService creates the orchestrator
func NewService(data *ServiceData) (*Service, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	return &Service{data: data}, nil
}

func validate(data *ServiceData) error {
	if data.Registry == nil {
		return fmt.Errorf("no registry")
	}
	if data.Transcriber == nil {
		return fmt.Errorf("no transcriber")
	}
	if data.Diarizer == nil {
		return fmt.Errorf("no diarizer")
	}
	if data.Analyzer == nil {
		return fmt.Errorf("no analyzer")
	}
	if data.Files == nil {
		return fmt.Errorf("no file keeper")
	}
	if data.Notifier == nil {
		return fmt.Errorf("no notifier")
	}
	return nil
}

// SubmitData keeps one processing request. FilePath points to the saved
// audio, the orchestrator takes over its cleanup from here on.
type SubmitData struct {
	FilePath string
	Options  api.Options
	Async    bool
}

// Submit registers a job and runs the pipeline. In sync mode the call
// blocks until the job reaches a terminal state and the returned record is
// final. In async mode it returns the processing record immediately and
// the pipeline continues on a background goroutine - its completion or
// failure is always observable via GetJob.
func (s *Service) Submit(ctx context.Context, in *SubmitData) (*registry.Job, error) {
	if in == nil || in.FilePath == "" {
		return nil, fmt.Errorf("no audio file")
	}
	id := uuid.New().String()
	job := s.data.Registry.Create(id, in.Options)
	log := utils.JobLog(id)
	log.Info().Str("file", goapp.Sanitize(in.Options.FileName)).Bool("async", in.Async).Msg("job created")
	s.data.Notifier.JobChanged(id)

	if in.Async {
		go func() {
			defer s.recoverFail(id)
			// detached from the request - the caller is not waiting
			s.process(context.Background(), id, in)
		}()
		return job, nil
	}
	func() {
		defer s.recoverFail(id)
		s.process(ctx, id, in)
	}()
	res, ok := s.data.Registry.Get(id)
	if !ok {
		// a concurrent delete or bulk clear may remove the record once it
		// turns terminal, before we read it back
		log.Warn().Msg("job record removed before sync response")
		return nil, fmt.Errorf("job %s: record no longer available", id)
	}
	return res, nil
}

// recoverFail guarantees a crashed pipeline still marks the job failed -
// a background job may never stay silently stuck in processing
func (s *Service) recoverFail(id string) {
	if r := recover(); r != nil {
		goapp.Log.Error().Str("ID", id).Msgf("pipeline panic: %v", r)
		s.fail(id, "internal processing error")
	}
}

func (s *Service) process(ctx context.Context, id string, in *SubmitData) {
	defer s.data.Files.Remove(in.FilePath)
	log := utils.JobLog(id)

	s.advance(id, status.StepPreparing, 5)

	s.advance(id, status.StepTranscribing, 20)
	log.Info().Msg("transcribing")
	tr, err := s.data.Transcriber.Transcribe(ctx, in.FilePath, in.Options.Language)
	if err != nil {
		log.Error().Err(err).Msg("transcription failed")
		s.fail(id, transcriptionErrMsg(err))
		return
	}
	log.Info().Int("segments", len(tr.Segments)).Str("language", tr.Language).Msg("transcribed")

	d, err := s.data.Diarizer.Diarize(ctx, in.FilePath, speakerHints(in.Options))
	if err != nil {
		// adapter degrades internally, treat an error here the same way
		log.Warn().Err(err).Msg("diarization error - continue without speakers")
		d = nil
	}
	merged := segments.Merge(tr.Segments, d)
	stats := segments.CalcStats(d)

	s.advance(id, status.StepAnalyzing, 75)
	log.Info().Msg("analyzing")
	text, truncated, err := s.data.Analyzer.Analyze(ctx, merged, in.Options.AnalysisType, "")
	if err != nil {
		log.Error().Err(err).Msg("analysis failed")
		s.fail(id, analysisErrMsg(err))
		return
	}

	res := &registry.Result{
		Segments:     merged,
		SpeakerCount: speakerCount(stats),
		Diarization:  stats,
		Analysis:     text,
		Language:     tr.Language,
		Truncated:    truncated,
	}
	if job, ok := s.data.Registry.Get(id); ok {
		res.ProcessingTime = round2(time.Since(job.StartedAt).Seconds())
	}
	if err := s.data.Registry.Complete(id, res); err != nil {
		log.Error().Err(err).Msg("can't complete job")
		return
	}
	s.data.Notifier.JobChanged(id)
	log.Info().Float64("time", res.ProcessingTime).Msg("job completed")
}

// speakerCount keeps the convention: with diarization unavailable all
// segments carry the single synthetic label, so one speaker is reported
func speakerCount(stats *segments.Stats) int {
	if stats == nil {
		return 1
	}
	return stats.SpeakerCount
}

func speakerHints(opts api.Options) segments.SpeakerHints {
	return segments.SpeakerHints{NumSpeakers: opts.NumSpeakers,
		MinSpeakers: opts.MinSpeakers, MaxSpeakers: opts.MaxSpeakers}
}

func transcriptionErrMsg(err error) string {
	if errors.Is(err, transcription.ErrNoSpeech) {
		return "transcription failed: no speech detected in the audio"
	}
	return "transcription failed"
}

func analysisErrMsg(err error) string {
	switch {
	case errors.Is(err, analysis.ErrTimeout):
		return "analysis failed: request timed out, please retry"
	case errors.Is(err, analysis.ErrConnection):
		return "analysis failed: can't reach the analysis service"
	case errors.Is(err, analysis.ErrBadResponse):
		return "analysis failed: unexpected service response"
	case errors.Is(err, analysis.ErrEmptyResult):
		return "analysis failed: the service returned an empty result"
	}
	return "analysis failed"
}

func (s *Service) advance(id, step string, progress int) {
	if err := s.data.Registry.Advance(id, step, progress); err != nil {
		goapp.Log.Error().Err(err).Str("ID", id).Msg("can't advance job")
		return
	}
	s.data.Notifier.JobChanged(id)
}

func (s *Service) fail(id, msg string) {
	if err := s.data.Registry.Fail(id, msg); err != nil {
		goapp.Log.Error().Err(err).Str("ID", id).Msg("can't fail job")
		return
	}
	s.data.Notifier.JobChanged(id)
}

// GetJob returns the job record by ID
func (s *Service) GetJob(id string) (*registry.Job, bool) {
	return s.data.Registry.Get(id)
}

// DeleteJob removes one terminal job record.
// Returns registry.ErrActive for a job that is still processing.
func (s *Service) DeleteJob(id string) error {
	if err := s.data.Registry.Delete(id); err != nil {
		return err
	}
	goapp.Log.Info().Str("ID", id).Msg("job deleted")
	return nil
}

// ClearJobs removes all terminal jobs and returns the count removed
func (s *Service) ClearJobs() int {
	res := s.data.Registry.ClearTerminal()
	goapp.Log.Info().Int("count", res).Msg("cleared terminal jobs")
	return res
}

// JobStats counts jobs per state
func (s *Service) JobStats() registry.Counts {
	return s.data.Registry.Stats()
}

// AnalyzeTranscript runs the analysis stage for an already existing
// transcript, bypassing transcription and diarization
func (s *Service) AnalyzeTranscript(ctx context.Context, segs []segments.Segment, analysisType, customPrompt string) (string, error) {
	text, _, err := s.data.Analyzer.Analyze(ctx, segs, analysisType, customPrompt)
	if err != nil {
		goapp.Log.Error().Err(err).Msg("analysis failed")
		return "", fmt.Errorf("%s: %w", analysisErrMsg(err), err)
	}
	return text, nil
}

// Capabilities keeps the static enumerations owned by the adapters
type Capabilities struct {
	AnalysisTypes        []string `json:"analysis_types"`
	Languages            []string `json:"languages"`
	Formats              []string `json:"formats"`
	DiarizationAvailable bool     `json:"diarization_available"`
}

// Info surfaces supported analysis types, languages and input formats
func (s *Service) Info() *Capabilities {
	return &Capabilities{
		AnalysisTypes:        s.data.Analyzer.Types(),
		Languages:            s.data.Transcriber.Languages(),
		Formats:              s.data.Files.Formats(),
		DiarizationAvailable: s.data.Diarizer.Available(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
