// Package logger provides the structured logging interface used across
// profilegrab. It wraps zerolog with a small field-oriented API:
//
//	log := logger.GetLogger().WithField("platform", "instagram")
//	log.InfoWithFields("Profile loaded", map[string]interface{}{
//	    "username": "someone",
//	})
//
// Tests use NewNopLogger to silence output, or NewTestLogger to capture
// records and assert on them.
package logger
