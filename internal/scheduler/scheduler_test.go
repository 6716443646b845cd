package scheduler

import (
	"context"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"profilegrab/pkg/config"
	"profilegrab/pkg/events"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
)

type fakeScraper struct {
	runs    atomic.Int32
	release chan struct{}
	started chan struct{}
}

func (f *fakeScraper) Scrape(ctx context.Context, p models.Platform, username string) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		f.runs.Add(1)
		if !yield(events.Status("Connecting to %s", p)) {
			return
		}
		if f.started != nil {
			f.started <- struct{}{}
		}
		if f.release != nil {
			select {
			case <-f.release:
			case <-ctx.Done():
				yield(events.Error("cancelled"))
				return
			}
		}
		yield(events.Done("Finished " + username))
	}
}

func TestAddValidatesTargets(t *testing.T) {
	s := New(&fakeScraper{}, nil)
	defer s.Stop()

	tests := []struct {
		name    string
		target  config.WatchTarget
		wantErr bool
	}{
		{"cron fields", config.WatchTarget{Platform: "instagram", Username: "alice", Schedule: "0 */6 * * *"}, false},
		{"descriptor", config.WatchTarget{Platform: "threads", Username: "bob", Schedule: "@every 2h"}, false},
		{"bad schedule", config.WatchTarget{Platform: "instagram", Username: "carol", Schedule: "whenever"}, true},
		{"bad platform", config.WatchTarget{Platform: "myspace", Username: "dave", Schedule: "@daily"}, true},
		{"no username", config.WatchTarget{Platform: "facebook", Schedule: "@daily"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("Add() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	assert.Len(t, s.Entries(), 2)
}

func TestAddReplacesSchedule(t *testing.T) {
	s := New(&fakeScraper{}, nil)
	defer s.Stop()

	require.NoError(t, s.Add(config.WatchTarget{Platform: "instagram", Username: "alice", Schedule: "@daily"}))
	require.NoError(t, s.Add(config.WatchTarget{Platform: "instagram", Username: "alice", Schedule: "@hourly"}))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "@hourly", entries[0].Schedule)
}

func TestAddAllJoinsErrors(t *testing.T) {
	s := New(&fakeScraper{}, nil)
	defer s.Stop()

	err := s.AddAll([]config.WatchTarget{
		{Platform: "instagram", Username: "alice", Schedule: "@daily"},
		{Platform: "nope", Username: "bob", Schedule: "@daily"},
		{Platform: "instagram", Username: "carol", Schedule: "bad"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, s.Entries(), 1)
}

func TestStartComputesNextRun(t *testing.T) {
	s := New(&fakeScraper{}, nil)
	require.NoError(t, s.Add(config.WatchTarget{Platform: "instagram", Username: "alice", Schedule: "@every 1h"}))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		entries := s.Entries()
		return len(entries) == 1 && !entries[0].Next.IsZero()
	}, time.Second, 10*time.Millisecond)
}

func TestRunNowLogsTerminalEvent(t *testing.T) {
	log := logger.NewTestLogger()
	s := New(&fakeScraper{}, log)
	defer s.Stop()

	last, ok := s.RunNow(context.Background(), models.Instagram, "alice")
	require.True(t, ok)
	assert.Equal(t, events.TypeDone, last.Type)
	assert.True(t, log.HasMessage("Scheduled run finished"))
}

func TestRunNowSkipsOverlappingRun(t *testing.T) {
	scr := &fakeScraper{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(scr, nil)
	defer s.Stop()

	done := make(chan events.Event, 1)
	go func() {
		last, _ := s.RunNow(context.Background(), models.Threads, "bob")
		done <- last
	}()
	<-scr.started

	_, ok := s.RunNow(context.Background(), models.Threads, "bob")
	assert.False(t, ok)

	close(scr.release)
	assert.Equal(t, events.TypeDone, (<-done).Type)
	assert.Equal(t, int32(1), scr.runs.Load())
}

func TestStopCancelsRunsInFlight(t *testing.T) {
	scr := &fakeScraper{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(scr, nil)

	done := make(chan events.Event, 1)
	go func() {
		last, _ := s.RunNow(s.ctx, models.Facebook, "carol")
		done <- last
	}()
	<-scr.started

	s.Stop()
	s.Stop()
	assert.Equal(t, events.TypeError, (<-done).Type)
}
