package diarization

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/cenkalti/backoff/v4"

	"github.com/aplay/mscribe/internal/pkg/api"
	"github.com/aplay/mscribe/internal/pkg/segments"
)

// Client communicates with the speaker diarization engine service.
// Diarization is an enhancement, not a required stage: when the engine is
// not configured or fails internally, Diarize degrades to an unavailable
// result (nil, nil) instead of failing the job.
type Client struct {
	httpclient  *http.Client
	diarizeURL  string
	authToken   string
	callTimeout time.Duration
	backoff     func() backoff.BackOff
}

// NewClient creates a diarization engine client. Empty url or token is a
// valid degraded configuration, not an error.
func NewClient(url, authToken string) *Client {
	res := Client{}
	res.diarizeURL = url
	res.authToken = authToken
	res.callTimeout = time.Minute * 10
	res.httpclient = &http.Client{}
	res.backoff = newSimpleBackoff
	if !res.Available() {
		goapp.Log.Warn().Msg("diarization not configured - speaker labels disabled")
	}
	return &res
}

// Available indicates if the engine is configured
func (c *Client) Available() bool {
	return c.diarizeURL != "" && c.authToken != ""
}

type engineTurn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

type engineResponse struct {
	Segments []engineTurn `json:"segments"`
}

// Diarize returns speaker labeled time intervals for the audio file.
// Returns (nil, nil) when the engine is unavailable or fails.
func (c *Client) Diarize(ctx context.Context, filePath string, hints segments.SpeakerHints) (*segments.Diarization, error) {
	if !c.Available() {
		goapp.Log.Debug().Msg("diarization unavailable - skip")
		return nil, nil
	}
	res, err := c.call(ctx, filePath, hints)
	if err != nil {
		goapp.Log.Warn().Err(err).Msg("diarization failed - continue without speaker labels")
		return nil, nil
	}
	return res, nil
}

func (c *Client) call(ctx context.Context, filePath string, hints segments.SpeakerHints) (*segments.Diarization, error) {
	body, contentType, err := makeBody(filePath, hints)
	if err != nil {
		return nil, err
	}
	resp, err := goapp.InvokeWithBackoff(ctx, func() (*engineResponse, bool, error) {
		ctx, cancelF := context.WithTimeout(ctx, c.callTimeout)
		defer cancelF()
		req, err := http.NewRequest(http.MethodPost, c.diarizeURL, bytes.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+c.authToken)
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
	d := &segments.Diarization{}
	for _, t := range resp.Segments {
		d.Turns = append(d.Turns, segments.Turn{Speaker: t.Speaker, Start: t.Start, End: t.End})
	}
	return d, nil
}

func makeBody(filePath string, hints segments.SpeakerHints) ([]byte, string, error) {
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
	// exact count beats the min/max range
	if hints.NumSpeakers > 0 {
		err = writer.WriteField(api.PrmNumSpeakers, strconv.Itoa(hints.NumSpeakers))
	} else {
		if hints.MinSpeakers > 0 {
			err = writer.WriteField(api.PrmMinSpeakers, strconv.Itoa(hints.MinSpeakers))
		}
		if err == nil && hints.MaxSpeakers > 0 {
			err = writer.WriteField(api.PrmMaxSpeakers, strconv.Itoa(hints.MaxSpeakers))
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("can't add param: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("can't close writer: %w", err)
	}
	return body.Bytes(), writer.FormDataContentType(), nil
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 2)
}
