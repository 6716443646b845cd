package logger

import (
	"github.com/rs/zerolog"
)

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	nop := zerolog.Nop()
	return &zerologLogger{logger: &nop, fields: map[string]interface{}{}}
}

// ForRun returns a logger tagged with the identifiers of one scrape run
func ForRun(base Logger, runID, platform, username string) Logger {
	if base == nil {
		base = GetLogger()
	}
	return base.WithFields(map[string]interface{}{
		"run_id":   runID,
		"platform": platform,
		"username": username,
	})
}

// LogDownload records the outcome of one media fetch
func LogDownload(l Logger, filename, mediaURL string, err error) {
	fields := map[string]interface{}{
		"file": filename,
		"url":  mediaURL,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("Download failed", fields)
		return
	}
	l.DebugWithFields("Download completed", fields)
}
