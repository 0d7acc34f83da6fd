package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SupportAudioExt checks if audio ext is supported
func SupportAudioExt(ext string) bool {
	switch ext {
	case ".mp3", ".wav", ".m4a", ".webm", ".ogg", ".flac", ".opus", ".mp4":
		return true
	}
	return false
}

// MakeValidateFileName builds a safe storage name <id>/<base> from a user
// provided file name. Rejects names that escape the job directory.
func MakeValidateFileName(id, name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("empty file name")
	}
	if strings.ContainsAny(base, "\x00") || strings.Contains(name, "..") {
		return "", fmt.Errorf("wrong file name '%s'", name)
	}
	if id == "" {
		return base, nil
	}
	return filepath.Join(id, base), nil
}

// ParamTrue - returns true if string param indicates true value
func ParamTrue(prm string) bool {
	return strings.ToLower(prm) == "true" || prm == "1"
}
