package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"

	"github.com/aplay/mscribe/internal/pkg/api"
	"github.com/aplay/mscribe/internal/pkg/segments"
)

// ErrNoSpeech indicates the engine returned zero segments for the audio
var ErrNoSpeech = errors.New("no speech detected")

// Client communicates with the speech to text engine service.
// The engine does transcription and word level alignment in one call,
// alignment is best-effort on its side.
type Client struct {
	httpclient    *http.Client
	transcribeURL string
	uploadTimeout time.Duration
	backoff       func() backoff.BackOff
}

// NewClient creates a transcription engine client
func NewClient(url string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("no transcriber URL")
	}
	res := Client{}
	res.transcribeURL = url
	res.uploadTimeout = time.Minute * 10
	res.httpclient = &http.Client{Transport: newTransport()}
	res.backoff = newSimpleBackoff
	return &res, nil
}

type engineWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

type engineSegment struct {
	Start float64      `json:"start"`
	End   float64      `json:"end"`
	Text  string       `json:"text"`
	Words []engineWord `json:"words,omitempty"`
}

type engineResponse struct {
	Language string          `json:"language"`
	Segments []engineSegment `json:"segments"`
}

// Transcribe sends the audio file to the engine and returns ordered timed
// segments. Fails when the engine errs or returns no segments.
func (c *Client) Transcribe(ctx context.Context, filePath, language string) (*segments.Transcription, error) {
	body, contentType, err := makeBody(filePath, language)
	if err != nil {
		return nil, err
	}
	resp, err := goapp.InvokeWithBackoff(ctx, func() (*engineResponse, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, c.uploadTimeout)
		defer cancelF()
		req, err := http.NewRequest(http.MethodPost, c.transcribeURL, bytes.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Content-Type", contentType)
		req = req.WithContext(ctx)
		goapp.Log.Info().Str("url", req.URL.String()).Str("method", req.Method).Msg("call")
		resp, err := c.httpclient.Do(req)
		if err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't call: %w", err)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
			_ = resp.Body.Close()
		}()
		if err := goapp.ValidateHTTPResp(resp, 100); err != nil {
			err = fmt.Errorf("can't invoke '%s': %w", req.URL.String(), err)
			return nil, goapp.IsRetryableCode(resp.StatusCode), err
		}
		res := &engineResponse{}
		if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
			return nil, goapp.IsRetryableErr(err), fmt.Errorf("can't unmarshal: %w", err)
		}
		return res, false, nil
	}, c.backoff())
	if err != nil {
		return nil, err
	}
	return mapResult(resp, language)
}

// Languages returns the supported language hints
func (c *Client) Languages() []string {
	return []string{"zh", "en", "ja", "ko", api.LangAuto}
}

func makeBody(filePath, language string) ([]byte, string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("can't open audio: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(api.PrmFile, filepath.Base(filePath))
	if err != nil {
		return nil, "", fmt.Errorf("can't add file to request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("can't add file content to request: %w", err)
	}
	if language != "" && language != api.LangAuto {
		if err := writer.WriteField(api.PrmLanguage, language); err != nil {
			return nil, "", fmt.Errorf("can't add param: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("can't close writer: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

func mapResult(resp *engineResponse, language string) (*segments.Transcription, error) {
	res := &segments.Transcription{Language: resp.Language}
	if res.Language == "" {
		res.Language = language
	}
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		ns := segments.Segment{Start: round2(s.Start), End: round2(s.End), Text: text}
		if ns.End < ns.Start {
			ns.End = ns.Start
		}
		for _, w := range s.Words {
			ns.Words = append(ns.Words, segments.Word{Word: w.Word,
				Start: round2(w.Start), End: round2(w.End), Score: round3(w.Score)})
		}
		res.Segments = append(res.Segments, ns)
	}
	if len(res.Segments) == 0 {
		return nil, ErrNoSpeech
	}
	sort.SliceStable(res.Segments, func(i, j int) bool {
		return res.Segments[i].Start < res.Segments[j].Start
	})
	return res, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 100
	res.MaxIdleConns = 50
	res.MaxIdleConnsPerHost = 50
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}
