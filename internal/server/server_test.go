package server

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"profilegrab/pkg/config"
	"profilegrab/pkg/events"
	"profilegrab/pkg/models"
	"profilegrab/pkg/storage"
)

type scriptedScraper struct {
	events    []events.Event
	blockTail bool
	calls     atomic.Int32
	cancelled atomic.Bool
}

func (f *scriptedScraper) Scrape(ctx context.Context, p models.Platform, username string) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		f.calls.Add(1)
		for _, e := range f.events {
			if !yield(e) {
				return
			}
		}
		if f.blockTail {
			<-ctx.Done()
			f.cancelled.Store(true)
		}
	}
}

func newTestServer(t *testing.T, scr Scraper) (*Server, *storage.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := storage.NewManager(afero.NewMemMapFs(), "CloudStorage")
	return New(config.ServerConfig{Heartbeat: time.Hour}, scr, store, prometheus.NewRegistry(), nil), store
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestScrapeStreamRequiresParams(t *testing.T) {
	scr := &scriptedScraper{}
	s, _ := newTestServer(t, scr)

	for _, target := range []string{"/scrape-stream", "/scrape-stream?platform=instagram", "/scrape-stream?username=alice"} {
		w := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
	assert.Zero(t, scr.calls.Load())
}

func TestScrapeStreamRelaysEvents(t *testing.T) {
	scr := &scriptedScraper{events: []events.Event{
		events.Status("Connecting to instagram"),
		events.Progress(2),
		events.Done("Finished alice: 2 downloaded, 0 skipped, 0 failed"),
	}}
	s, _ := newTestServer(t, scr)

	w := get(t, s, "/scrape-stream?platform=instagram&username=alice")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	frames := strings.Split(strings.TrimSuffix(w.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 3)
	var types []events.Type
	for _, f := range frames {
		require.True(t, strings.HasPrefix(f, "data: "), f)
		ev, err := events.Decode([]byte(strings.TrimPrefix(f, "data: ")))
		require.NoError(t, err)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []events.Type{events.TypeStatus, events.TypeProgress, events.TypeDone}, types)
}

func TestScrapeStreamUnknownPlatform(t *testing.T) {
	scr := &scriptedScraper{}
	s, _ := newTestServer(t, scr)

	w := get(t, s, "/scrape-stream?platform=myspace&username=alice")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, strings.Count(w.Body.String(), "data: "))
	assert.Contains(t, w.Body.String(), `"type":"error"`)
	assert.Zero(t, scr.calls.Load())
}

func TestScrapeStreamRejectsConcurrentRunOfSameTarget(t *testing.T) {
	s, _ := newTestServer(t, &scriptedScraper{})
	require.True(t, s.acquire(models.TargetKey(models.Instagram, "alice")))

	w := get(t, s, "/scrape-stream?platform=instagram&username=alice")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = get(t, s, "/scrape-stream?platform=Instagram&username=ALICE")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = get(t, s, "/scrape-stream?platform=instagram&username=bob")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScrapeStreamDisconnectCancelsRun(t *testing.T) {
	scr := &scriptedScraper{events: []events.Event{events.Status("Connecting")}, blockTail: true}
	s, _ := newTestServer(t, scr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/scrape-stream?platform=threads&username=alice", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.True(t, scr.cancelled.Load())
	assert.Contains(t, w.Body.String(), "Connecting")

	// the slot is free again
	assert.True(t, s.acquire(models.TargetKey(models.Threads, "alice")))
}

func TestCheckUserExists(t *testing.T) {
	s, store := newTestServer(t, &scriptedScraper{})
	_, err := store.UserDir(models.Facebook, "carol")
	require.NoError(t, err)

	tests := []struct {
		target string
		code   int
		exists bool
	}{
		{"/api/check_user_exists?platform=facebook&username=carol", http.StatusOK, true},
		{"/api/check_user_exists?platform=facebook&username=dave", http.StatusOK, false},
		{"/api/check_user_exists?platform=instagram&username=carol", http.StatusOK, false},
		{"/api/check_user_exists?platform=facebook", http.StatusBadRequest, false},
		{"/api/check_user_exists?platform=nope&username=carol", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		w := get(t, s, tt.target)
		if w.Code != tt.code {
			t.Errorf("%s: expected status %d, got %d", tt.target, tt.code, w.Code)
			continue
		}
		if tt.code != http.StatusOK {
			continue
		}
		var body struct {
			Exists bool `json:"exists"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		if body.Exists != tt.exists {
			t.Errorf("%s: expected exists=%v", tt.target, tt.exists)
		}
	}
}

func TestListUsers(t *testing.T) {
	s, store := newTestServer(t, &scriptedScraper{})
	dir, err := store.UserDir(models.Facebook, "carol")
	require.NoError(t, err)
	require.NoError(t, store.SaveProfile(dir, models.Profile{URL: "https://www.facebook.com/carol", Name: "Carol C", ID: "42"}))
	_, err = store.UserDir(models.Facebook, "dave")
	require.NoError(t, err)

	w := get(t, s, "/api/users?platform=facebook")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Platform string `json:"platform"`
		Users    []struct {
			Username string          `json:"username"`
			Profile  *models.Profile `json:"profile"`
		} `json:"users"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "facebook", body.Platform)
	require.Len(t, body.Users, 2)
	assert.Equal(t, "carol", body.Users[0].Username)
	require.NotNil(t, body.Users[0].Profile)
	assert.Equal(t, "Carol C", body.Users[0].Profile.Name)
	assert.Equal(t, "dave", body.Users[1].Username)
	assert.Nil(t, body.Users[1].Profile)

	w = get(t, s, "/api/users?platform=instagram")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"platform":"instagram","users":[]}`, w.Body.String())

	w = get(t, s, "/api/users?platform=myspace")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "profilegrab_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	s := New(config.ServerConfig{}, &scriptedScraper{}, storage.NewManager(afero.NewMemMapFs(), "x"), reg, nil)

	w := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "profilegrab_test_total 1")
}
