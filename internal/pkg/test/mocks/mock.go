package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aplay/mscribe/internal/pkg/segments"
)

// Transcriber is speech engine client mock
type Transcriber struct{ mock.Mock }

func (m *Transcriber) Transcribe(ctx context.Context, filePath, language string) (*segments.Transcription, error) {
	args := m.Called(ctx, filePath, language)
	return to[*segments.Transcription](args.Get(0)), args.Error(1)
}

func (m *Transcriber) Languages() []string {
	args := m.Called()
	return to[[]string](args.Get(0))
}

// Diarizer is speaker engine client mock
type Diarizer struct{ mock.Mock }

func (m *Diarizer) Diarize(ctx context.Context, filePath string, hints segments.SpeakerHints) (*segments.Diarization, error) {
	args := m.Called(ctx, filePath, hints)
	return to[*segments.Diarization](args.Get(0)), args.Error(1)
}

func (m *Diarizer) Available() bool {
	args := m.Called()
	return args.Bool(0)
}

// Analyzer is LLM client mock
type Analyzer struct{ mock.Mock }

func (m *Analyzer) Analyze(ctx context.Context, segs []segments.Segment, analysisType, customPrompt string) (string, bool, error) {
	args := m.Called(ctx, segs, analysisType, customPrompt)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *Analyzer) Types() []string {
	args := m.Called()
	return to[[]string](args.Get(0))
}

// FileKeeper is audio store mock
type FileKeeper struct{ mock.Mock }

func (m *FileKeeper) Remove(path string) {
	m.Called(path)
}

func (m *FileKeeper) Formats() []string {
	args := m.Called()
	return to[[]string](args.Get(0))
}

// Notifier is job change notifier mock
type Notifier struct{ mock.Mock }

func (m *Notifier) JobChanged(ID string) {
	m.Called(ID)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}
