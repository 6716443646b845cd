// Package scheduler re-scrapes watched profiles on cron schedules. Runs
// are idempotent, so a schedule only ever fetches what is new.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"profilegrab/pkg/config"
	"profilegrab/pkg/events"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
)

// Scraper starts scrape runs
type Scraper interface {
	Scrape(ctx context.Context, p models.Platform, username string) iter.Seq[events.Event]
}

// Entry is a registered watch target and its next firing
type Entry struct {
	Platform models.Platform
	Username string
	Schedule string
	Next     time.Time
}

// Scheduler owns a cron instance firing scrape runs
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	scraper Scraper
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	targets map[string]Entry
	entries map[string]cron.EntryID
	running map[string]struct{}
	wg      sync.WaitGroup

	stopOnce sync.Once
}

// New builds a stopped scheduler. Schedules use the standard five cron
// fields or descriptors such as "@every 6h" and "@daily".
func New(scraper Scraper, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("component", "scheduler")
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		parser:  parser,
		scraper: scraper,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		targets: make(map[string]Entry),
		entries: make(map[string]cron.EntryID),
		running: make(map[string]struct{}),
	}
}

// Add registers a watch target, replacing an earlier schedule for the same
// profile
func (s *Scheduler) Add(target config.WatchTarget) error {
	p, err := models.ParsePlatform(target.Platform)
	if err != nil {
		return err
	}
	if target.Username == "" {
		return errors.New("watch target has no username")
	}
	if _, err := s.parser.Parse(target.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q for %s/%s: %w", target.Schedule, p, target.Username, err)
	}

	key := models.TargetKey(p, target.Username)
	username := target.Username
	id, err := s.cron.AddFunc(target.Schedule, func() {
		s.log.InfoWithFields("Watch target triggered", map[string]interface{}{
			"platform": string(p),
			"username": username,
		})
		s.RunNow(s.ctx, p, username)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", key, err)
	}

	s.mu.Lock()
	if old, ok := s.entries[key]; ok {
		s.cron.Remove(old)
	}
	s.entries[key] = id
	s.targets[key] = Entry{Platform: p, Username: username, Schedule: target.Schedule}
	s.mu.Unlock()

	s.log.InfoWithFields("Watch target scheduled", map[string]interface{}{
		"platform": string(p),
		"username": username,
		"schedule": target.Schedule,
	})
	return nil
}

// AddAll registers every target and reports all failures together
func (s *Scheduler) AddAll(targets []config.WatchTarget) error {
	var errs []error
	for _, t := range targets {
		if err := s.Add(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Entries lists registered targets with their next firing time, which is
// zero until the scheduler is started
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for key, id := range s.entries {
		e := s.targets[key]
		e.Next = s.cron.Entry(id).Next
		out = append(out, e)
	}
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.InfoWithFields("Scheduler started", map[string]interface{}{"targets": len(s.Entries())})
}

// Stop halts the cron, cancels runs in flight and waits for them to end.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.cancel()
		s.wg.Wait()
		s.log.Info("Scheduler stopped")
	})
}

// RunNow scrapes one target synchronously and returns its terminal event.
// A target whose previous run is still going is skipped and ok is false.
func (s *Scheduler) RunNow(ctx context.Context, p models.Platform, username string) (last events.Event, ok bool) {
	key := models.TargetKey(p, username)
	s.mu.Lock()
	if _, busy := s.running[key]; busy {
		s.mu.Unlock()
		s.log.WarnWithFields("Previous run still in progress, skipping", map[string]interface{}{
			"platform": string(p),
			"username": username,
		})
		return events.Event{}, false
	}
	s.running[key] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, key)
		s.mu.Unlock()
		s.wg.Done()
	}()

	log := s.log.WithFields(map[string]interface{}{"platform": string(p), "username": username})
	for ev := range s.scraper.Scrape(ctx, p, username) {
		last = ev
		switch ev.Type {
		case events.TypeError:
			log.ErrorWithFields("Scheduled run failed", map[string]interface{}{"message": ev.Message()})
		case events.TypeDone:
			log.InfoWithFields("Scheduled run finished", map[string]interface{}{"message": ev.Message()})
		case events.TypeStatus:
			log.Debug(ev.Message())
		}
	}
	return last, true
}

// cronLogger adapts the application logger to cron's key/value logger
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.DebugWithFields(msg, pairs(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithError(err).ErrorWithFields(msg, pairs(keysAndValues))
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
