package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilegrab/pkg/browser"
	"profilegrab/pkg/config"
	"profilegrab/pkg/events"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
)

func TestImportCookies(t *testing.T) {
	export := `[
		{"name":"sessionid","value":"secret","domain":".instagram.com","path":"/","expirationDate":1893456000},
		{"name":"other","value":"x","domain":".example.com","path":"/"}
	]`

	creds, err := importCookies(strings.NewReader(export), models.Instagram)
	require.NoError(t, err)
	assert.Equal(t, models.Instagram, creds.Platform)
	require.Len(t, creds.Cookies, 1)
	assert.Equal(t, "sessionid", creds.Cookies[0].Name)
	assert.False(t, creds.SavedAt.IsZero())

	_, err = importCookies(strings.NewReader(`[]`), models.Instagram)
	assert.Error(t, err)
}

func TestForwardEventsCountsFailures(t *testing.T) {
	stream := func(yield func(events.Event) bool) {
		for _, e := range []events.Event{
			events.Status("Connecting to threads"),
			events.Error("Profile ghost not found on threads"),
			events.Done("Finished alice: 0 downloaded, 0 skipped, 0 failed"),
		} {
			if !yield(e) {
				return
			}
		}
	}

	var buf bytes.Buffer
	failures, err := forwardEvents(stream, events.NewLineEmitter(&buf))
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestReplayAndCapture(t *testing.T) {
	var har bytes.Buffer
	require.NoError(t, browser.ExportHAR(&har, []browser.Exchange{
		browser.JSONExchange("https://www.instagram.com/graphql/query", "PolarisProfilePostsQuery", `{"data":{}}`),
	}))
	path := filepath.Join(t.TempDir(), "in.har")
	require.NoError(t, os.WriteFile(path, har.Bytes(), 0600))

	replayFile = path
	defer func() { replayFile = "" }()

	factory, err := browserFactory(config.DefaultConfig(), logger.NewNopLogger())
	require.NoError(t, err)

	capture := browser.NewCapture()
	factory = capturing(factory, capture)

	s, err := factory(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Exchanges(), 1)
	require.NoError(t, s.Close())
	assert.Len(t, capture.Exchanges(), 1)

	out := filepath.Join(t.TempDir(), "out.har")
	require.NoError(t, writeHAR(out, capture))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PolarisProfilePostsQuery")
}

func TestBrowserFactoryMissingReplay(t *testing.T) {
	replayFile = filepath.Join(t.TempDir(), "missing.har")
	defer func() { replayFile = "" }()

	_, err := browserFactory(config.DefaultConfig(), logger.NewNopLogger())
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"scrape"},
		{"serve"},
		{"session", "import"},
		{"session", "list"},
		{"session", "delete"},
		{"session", "guide"},
		{"config", "init"},
		{"config", "show"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered", path)
		}
	}
}
