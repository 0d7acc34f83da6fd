package registry

import (
	"testing"

	"github.com/aplay/mscribe/internal/pkg/api"
	"github.com/aplay/mscribe/internal/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	r := NewRegistry()
	j := r.Create("1", api.Options{Language: "lt", AnalysisType: "summary"})
	assert.Equal(t, "1", j.ID)
	assert.Equal(t, status.Processing, j.Status)
	assert.Equal(t, status.StepUploading, j.Step)
	assert.Equal(t, 1, j.Progress)
	assert.Equal(t, "lt", j.Options.Language)
	assert.False(t, j.StartedAt.IsZero())
	assert.Nil(t, j.Result)
	assert.Empty(t, j.Error)
}

func TestGet(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	j, ok := r.Get("1")
	require.True(t, ok)
	assert.Equal(t, "1", j.ID)
	_, ok = r.Get("2")
	assert.False(t, ok)
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	j, _ := r.Get("1")
	j.Progress = 99
	j2, _ := r.Get("1")
	assert.Equal(t, 1, j2.Progress)
}

func TestAdvance(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	require.Nil(t, r.Advance("1", status.StepTranscribing, 20))
	j, _ := r.Get("1")
	assert.Equal(t, status.StepTranscribing, j.Step)
	assert.Equal(t, 20, j.Progress)
}

func TestAdvance_ProgressNeverDecreases(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	require.Nil(t, r.Advance("1", status.StepAnalyzing, 75))
	require.Nil(t, r.Advance("1", status.StepTranscribing, 20))
	j, _ := r.Get("1")
	assert.Equal(t, 75, j.Progress)
}

func TestAdvance_Fails(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Advance("1", status.StepPreparing, 5), ErrNotFound)
	r.Create("1", api.Options{})
	require.Nil(t, r.Complete("1", &Result{}))
	assert.ErrorIs(t, r.Advance("1", status.StepPreparing, 5), ErrTerminal)
}

func TestComplete(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	require.Nil(t, r.Complete("1", &Result{Analysis: "olia", SpeakerCount: 2}))
	j, _ := r.Get("1")
	assert.Equal(t, status.Completed, j.Status)
	assert.Equal(t, status.StepFinished, j.Step)
	assert.Equal(t, 100, j.Progress)
	require.NotNil(t, j.Result)
	assert.Equal(t, "olia", j.Result.Analysis)
	assert.Empty(t, j.Error)
}

func TestComplete_TerminalIsAbsorbing(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	require.Nil(t, r.Fail("1", "err"))
	assert.ErrorIs(t, r.Complete("1", &Result{}), ErrTerminal)
	j, _ := r.Get("1")
	assert.Equal(t, status.Failed, j.Status)
}

func TestFail(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	require.Nil(t, r.Advance("1", status.StepAnalyzing, 75))
	require.Nil(t, r.Fail("1", "analysis failed"))
	j, _ := r.Get("1")
	assert.Equal(t, status.Failed, j.Status)
	assert.Equal(t, 0, j.Progress)
	assert.Equal(t, "analysis failed", j.Error)
	assert.Nil(t, j.Result)
}

func TestFail_FirstErrorWins(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	require.Nil(t, r.Fail("1", "first"))
	require.Nil(t, r.Fail("1", "second"))
	j, _ := r.Get("1")
	assert.Equal(t, "first", j.Error)
}

func TestResultErrorExclusive(t *testing.T) {
	r := NewRegistry()
	r.Create("c", api.Options{})
	r.Create("f", api.Options{})
	require.Nil(t, r.Complete("c", &Result{Analysis: "olia"}))
	require.Nil(t, r.Fail("f", "err"))
	jc, _ := r.Get("c")
	assert.NotNil(t, jc.Result)
	assert.Empty(t, jc.Error)
	jf, _ := r.Get("f")
	assert.Nil(t, jf.Result)
	assert.NotEmpty(t, jf.Error)
}

func TestDelete(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	assert.ErrorIs(t, r.Delete("1"), ErrActive)
	require.Nil(t, r.Complete("1", &Result{}))
	require.Nil(t, r.Delete("1"))
	_, ok := r.Get("1")
	assert.False(t, ok)
	assert.ErrorIs(t, r.Delete("1"), ErrNotFound)
}

func TestClearTerminal(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	r.Create("2", api.Options{})
	r.Create("3", api.Options{})
	require.Nil(t, r.Complete("1", &Result{}))
	require.Nil(t, r.Fail("2", "err"))
	assert.Equal(t, 2, r.ClearTerminal())
	_, ok := r.Get("3")
	assert.True(t, ok)
}

func TestClearTerminal_Idempotent(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	require.Nil(t, r.Complete("1", &Result{}))
	assert.Equal(t, 1, r.ClearTerminal())
	assert.Equal(t, 0, r.ClearTerminal())
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	r.Create("1", api.Options{})
	r.Create("2", api.Options{})
	r.Create("3", api.Options{})
	require.Nil(t, r.Complete("1", &Result{}))
	require.Nil(t, r.Fail("2", "err"))
	c := r.Stats()
	assert.Equal(t, Counts{Total: 3, Processing: 1, Completed: 1, Failed: 1}, c)
}
