package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/aplay/mscribe/internal/pkg/segments"
)

// Analysis failure taxonomy. The orchestrator maps these to caller facing
// messages, a raw transport error never leaves this package.
var (
	// ErrTimeout - the remote service did not answer in time
	ErrTimeout = errors.New("analysis request timed out")
	// ErrConnection - the remote service could not be reached
	ErrConnection = errors.New("can't connect to analysis service")
	// ErrBadResponse - the response misses expected fields
	ErrBadResponse = errors.New("malformed analysis response")
	// ErrEmptyResult - the service answered with empty content
	ErrEmptyResult = errors.New("empty analysis result")
)

const (
	// full prompt budget in characters
	maxPromptSize = 100000
	// transcript part of the budget
	maxTranscriptSize = 80000
	// truncation may not cut earlier than this share of the budget
	minTruncateBoundary = 0.8
	// appended to the output when the transcript was truncated
	truncateNote = "\n\n[note: transcript was truncated before analysis]"
)

// Client communicates with the remote LLM analysis service
// (an OpenAI compatible chat completions endpoint)
type Client struct {
	httpclient *http.Client
	chatURL    string
	apiKey     string
	model      string
	timeout    time.Duration
}

// NewClient creates an analysis service client
func NewClient(url, apiKey, model string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("no analyzer URL")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no analyzer API key")
	}
	if model == "" {
		return nil, fmt.Errorf("no analyzer model")
	}
	res := Client{}
	res.chatURL = url
	res.apiKey = apiKey
	res.model = model
	res.timeout = time.Second * 60
	res.httpclient = &http.Client{}
	return &res, nil
}

// Types returns the supported analysis type names
func (c *Client) Types() []string {
	return SupportedTypes()
}

// Analyze produces natural language analysis for the merged transcript.
// Returns the analysis text and a flag indicating the transcript was
// truncated to fit the prompt budget. The call is bounded by a fixed
// timeout and never retried - retry is a caller responsibility.
func (c *Client) Analyze(ctx context.Context, segs []segments.Segment, analysisType, customPrompt string) (string, bool, error) {
	prompt := resolvePrompt(analysisType, customPrompt)
	transcript := FormatTranscript(segs)
	truncated := false
	if len(prompt)+len(transcript) > maxPromptSize {
		goapp.Log.Warn().Int("size", len(prompt)+len(transcript)).Msg("content too long, truncating")
		transcript = truncate(transcript, maxTranscriptSize)
		truncated = true
	}
	full := fmt.Sprintf("%s\n\nMeeting transcript:\n%s", prompt, transcript)
	res, err := c.call(ctx, full)
	if err != nil {
		return "", truncated, err
	}
	if truncated {
		res += truncateNote
	}
	return res, truncated, nil
}

// FormatTranscript renders segments as one "[mm:ss] <speaker>: <text>"
// line per segment
func FormatTranscript(segs []segments.Segment) string {
	sb := strings.Builder{}
	for _, s := range segs {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		speaker := s.Speaker
		if speaker == "" {
			speaker = segments.DefaultSpeaker
		}
		mins := int(s.Start) / 60
		secs := int(s.Start) % 60
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("[%02d:%02d] %s: %s", mins, secs, speaker, text))
	}
	return sb.String()
}

// truncate cuts the content at the nearest sentence or line boundary,
// but not earlier than minTruncateBoundary of the allowed size
func truncate(content string, size int) string {
	if len(content) <= size {
		return content
	}
	cut := content[:size]
	// boundary is the byte position right after the separator, the
	// separators are not all single byte
	boundary := -1
	for _, sep := range []string{".", "。", "\n"} {
		if i := strings.LastIndex(cut, sep); i >= 0 && i+len(sep) > boundary {
			boundary = i + len(sep)
		}
	}
	if boundary >= int(float64(size)*minTruncateBoundary) {
		return cut[:boundary]
	}
	return trimPartialRune(cut)
}

// trimPartialRune drops trailing bytes of a rune split by a hard cut
func trimPartialRune(s string) string {
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) call(ctx context.Context, prompt string) (string, error) {
	b, err := json.Marshal(chatRequest{Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt}},
		Temperature: 0.7, MaxTokens: 4000})
	if err != nil {
		return "", fmt.Errorf("can't marshal request: %w", err)
	}
	ctx, cancelF := context.WithTimeout(ctx, c.timeout)
	defer cancelF()
	req, err := http.NewRequest(http.MethodPost, c.chatURL, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("can't prepare request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(ctx)
	goapp.Log.Info().Str("url", req.URL.String()).Str("model", c.model).Msg("call")
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return "", classifyCallErr(err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10000))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		bd, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return "", fmt.Errorf("%w: response code %d: %s", ErrBadResponse, resp.StatusCode, goapp.Sanitize(string(bd)))
	}
	var respData chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("%w: can't decode: %s", ErrBadResponse, err.Error())
	}
	if len(respData.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices field", ErrBadResponse)
	}
	res := strings.TrimSpace(respData.Choices[0].Message.Content)
	if res == "" {
		return "", ErrEmptyResult
	}
	return res, nil
}

func classifyCallErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, err.Error())
	}
	var nErr net.Error
	if errors.As(err, &nErr) && nErr.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, err.Error())
	}
	return fmt.Errorf("%w: %s", ErrConnection, err.Error())
}
