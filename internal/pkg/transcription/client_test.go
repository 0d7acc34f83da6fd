package transcription

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aplay/mscribe/internal/pkg/test"
)

func initTestServer(t *testing.T, code int, resp string) (*Client, *[]string) {
	t.Helper()
	bodies := make([]string, 0)
	bLock := &sync.Mutex{}
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		bLock.Lock()
		defer bLock.Unlock()
		bodies = append(bodies, test.RStr(t, req.Body))
		rw.WriteHeader(code)
		_, _ = rw.Write([]byte(resp))
	}))
	t.Cleanup(func() { server.Close() })
	c := Client{}
	c.httpclient = server.Client()
	c.transcribeURL = server.URL
	c.uploadTimeout = time.Second * 5
	c.backoff = func() backoff.BackOff { return &backoff.StopBackOff{} }
	return &c, &bodies
}

func testAudioFile(t *testing.T) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "olia.mp3")
	require.Nil(t, os.WriteFile(fp, []byte("audio data"), 0600))
	return fp
}

func TestTranscribe(t *testing.T) {
	c, bodies := initTestServer(t, http.StatusOK,
		`{"language":"lt","segments":[
			{"start":1.333,"end":2.555,"text":" Olia. ","words":[{"word":"Olia.","start":1.3333,"end":2.5555,"score":0.95123}]},
			{"start":0.1,"end":1.0,"text":"Labas"}]}`)
	res, err := c.Transcribe(test.Ctx(t), testAudioFile(t), "lt")
	require.Nil(t, err)
	assert.Equal(t, "lt", res.Language)
	require.Equal(t, 2, len(res.Segments))
	assert.Equal(t, "Labas", res.Segments[0].Text)
	assert.Equal(t, "Olia.", res.Segments[1].Text)
	assert.InDelta(t, 1.33, res.Segments[1].Start, 0.0001)
	assert.InDelta(t, 2.56, res.Segments[1].End, 0.0001)
	require.Equal(t, 1, len(res.Segments[1].Words))
	assert.InDelta(t, 0.951, res.Segments[1].Words[0].Score, 0.0001)
	require.Equal(t, 1, len(*bodies))
	assert.Contains(t, (*bodies)[0], "audio data")
	assert.Contains(t, (*bodies)[0], `name="language"`)
}

func TestTranscribe_AutoDropsLanguageParam(t *testing.T) {
	c, bodies := initTestServer(t, http.StatusOK, `{"language":"en","segments":[{"start":0,"end":1,"text":"hi"}]}`)
	res, err := c.Transcribe(test.Ctx(t), testAudioFile(t), "auto")
	require.Nil(t, err)
	assert.Equal(t, "en", res.Language)
	assert.NotContains(t, (*bodies)[0], `name="language"`)
}

func TestTranscribe_DropsEmptySegments(t *testing.T) {
	c, _ := initTestServer(t, http.StatusOK,
		`{"language":"en","segments":[{"start":0,"end":1,"text":"  "},{"start":1,"end":2,"text":"hi"}]}`)
	res, err := c.Transcribe(test.Ctx(t), testAudioFile(t), "en")
	require.Nil(t, err)
	require.Equal(t, 1, len(res.Segments))
	assert.Equal(t, "hi", res.Segments[0].Text)
}

func TestTranscribe_NoSpeech(t *testing.T) {
	c, _ := initTestServer(t, http.StatusOK, `{"language":"en","segments":[]}`)
	_, err := c.Transcribe(test.Ctx(t), testAudioFile(t), "en")
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestTranscribe_EngineFails(t *testing.T) {
	c, _ := initTestServer(t, http.StatusInternalServerError, "")
	_, err := c.Transcribe(test.Ctx(t), testAudioFile(t), "en")
	assert.NotNil(t, err)
}

func TestTranscribe_NoFile(t *testing.T) {
	c, _ := initTestServer(t, http.StatusOK, "{}")
	_, err := c.Transcribe(test.Ctx(t), "/olia/no-file.mp3", "en")
	assert.NotNil(t, err)
}

func TestTranscribe_FixesEndBeforeStart(t *testing.T) {
	c, _ := initTestServer(t, http.StatusOK,
		`{"language":"en","segments":[{"start":2,"end":1,"text":"hi"}]}`)
	res, err := c.Transcribe(test.Ctx(t), testAudioFile(t), "en")
	require.Nil(t, err)
	assert.InDelta(t, 2.0, res.Segments[0].End, 0.0001)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://olia:8000/transcribe")
	require.Nil(t, err)
	assert.NotNil(t, c)
	_, err = NewClient("")
	assert.NotNil(t, err)
}

func TestLanguages(t *testing.T) {
	c, _ := NewClient("http://olia:8000/transcribe")
	assert.Contains(t, c.Languages(), "auto")
	assert.Contains(t, c.Languages(), "en")
}
