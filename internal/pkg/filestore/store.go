package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/aplay/mscribe/internal/pkg/utils"
)

var (
	// ErrWrongFormat indicates unsupported audio file extension
	ErrWrongFormat = errors.New("unsupported audio format")
	// ErrTooLarge indicates the upload exceeds the size cap
	ErrTooLarge = errors.New("file too large")
)

// Store keeps uploaded audio as temp files for the duration of one job.
// The owner of the job is responsible for calling Remove on every exit path.
type Store struct {
	dir     string
	maxSize int64
}

// NewStore creates the audio file store at dir
func NewStore(dir string, maxSizeMB int) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("no store dir")
	}
	if maxSizeMB <= 0 {
		return nil, fmt.Errorf("wrong maxSizeMB %d", maxSizeMB)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("can't create dir %s: %w", dir, err)
	}
	return &Store{dir: dir, maxSize: int64(maxSizeMB) * 1024 * 1024}, nil
}

// Save stores the audio under a job scoped name and returns the full path.
// Validates the extension allow-list and enforces the size cap.
func (s *Store) Save(id, fileName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !utils.SupportAudioExt(ext) {
		return "", fmt.Errorf("%w: '%s'", ErrWrongFormat, ext)
	}
	if _, err := utils.MakeValidateFileName("", fileName); err != nil {
		return "", fmt.Errorf("wrong file name: %w", err)
	}
	path := filepath.Join(s.dir, id+ext)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("can't create file: %w", err)
	}
	defer f.Close()
	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("can't save file: %w", err)
	}
	if n > s.maxSize {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: over %d bytes", ErrTooLarge, s.maxSize)
	}
	goapp.Log.Info().Str("path", path).Int64("size", n).Msg("saved audio")
	return path, nil
}

// Remove drops the temp file. Safe to call several times for the same path.
func (s *Store) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		goapp.Log.Error().Err(err).Str("path", path).Msg("can't remove audio file")
		return
	}
	goapp.Log.Debug().Str("path", path).Msg("removed audio")
}

// Formats returns the supported upload formats
func (s *Store) Formats() []string {
	return []string{"mp3", "wav", "m4a", "webm", "ogg", "flac", "opus", "mp4"}
}
