package utils

import (
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/rs/zerolog"
)

// JobLog returns a logger tagged with the job ID
func JobLog(id string) zerolog.Logger {
	return goapp.Log.With().Str("ID", id).Logger()
}
