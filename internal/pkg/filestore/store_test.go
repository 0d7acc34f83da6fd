package filestore

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), 1)
	require.Nil(t, err)
	return s
}

func TestNewStore(t *testing.T) {
	_, err := NewStore("", 10)
	assert.NotNil(t, err)
	_, err = NewStore(t.TempDir(), 0)
	assert.NotNil(t, err)
	s, err := NewStore(t.TempDir(), 10)
	require.Nil(t, err)
	assert.NotNil(t, s)
}

func TestSave(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Save("id1", "olia.mp3", strings.NewReader("audio data"))
	require.Nil(t, err)
	assert.True(t, strings.HasSuffix(path, "id1.mp3"))
	b, err := os.ReadFile(path)
	require.Nil(t, err)
	assert.Equal(t, "audio data", string(b))
}

func TestSave_UpperCaseExt(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Save("id1", "olia.MP3", strings.NewReader("audio data"))
	require.Nil(t, err)
	assert.True(t, strings.HasSuffix(path, "id1.mp3"))
}

func TestSave_WrongFormat(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save("id1", "olia.txt", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrWrongFormat)
	_, err = s.Save("id1", "olia", strings.NewReader("data"))
	assert.ErrorIs(t, err, ErrWrongFormat)
}

func TestSave_TooLarge(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save("id1", "olia.mp3", strings.NewReader(strings.Repeat("x", 1024*1024+1)))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Save("id1", "olia.mp3", strings.NewReader("audio data"))
	require.Nil(t, err)
	s.Remove(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	s.Remove(path)
	s.Remove("")
}

func TestFormats(t *testing.T) {
	s := newTestStore(t)
	assert.Contains(t, s.Formats(), "mp3")
	assert.Contains(t, s.Formats(), "wav")
}
