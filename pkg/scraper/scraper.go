package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"profilegrab/internal/downloader"
	"profilegrab/pkg/browser"
	errs "profilegrab/pkg/errors"
	"profilegrab/pkg/events"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
	"profilegrab/pkg/pagination"
	"profilegrab/pkg/platform"
	"profilegrab/pkg/session"
	"profilegrab/pkg/storage"
)

// ErrClosed is reported by runs started after Close
var ErrClosed = errors.New("scraper closed")

// ErrBusy is reported by a run whose target is already being scraped
var ErrBusy = errors.New("target already being scraped")

// errStopped marks a run abandoned by its consumer
var errStopped = errors.New("event consumer stopped")

// BrowserFactory opens a fresh browser session for one run
type BrowserFactory func(ctx context.Context) (browser.Session, error)

// SessionStore is the part of session.Manager a run needs
type SessionStore interface {
	Load(platform models.Platform) (*session.Credentials, error)
	Save(creds *session.Credentials) error
}

// Downloader fetches the media of a run into its user folder
type Downloader interface {
	DownloadAll(ctx context.Context, records []models.MediaRecord, destDir, historyPath string) (downloader.Summary, error)
}

// Observer is notified of run lifecycle and every emitted event
type Observer interface {
	RunStarted(p models.Platform)
	EventEmitted(p models.Platform, e events.Event)
	RunFinished(p models.Platform, outcome string, d time.Duration)
}

// Run outcomes passed to Observer.RunFinished
const (
	OutcomeDone      = "done"
	OutcomeError     = "error"
	OutcomeAbandoned = "abandoned"
)

// Options wires a Scraper
type Options struct {
	Registry   *platform.Registry
	Sessions   SessionStore
	Storage    *storage.Manager
	Downloader Downloader
	NewBrowser BrowserFactory
	Pagination pagination.Config

	// SettleDelay is waited after opening the profile page
	SettleDelay time.Duration
	// DOMFallback merges media harvested from rendered pages into the
	// traffic records for adapters that support it
	DOMFallback bool

	Logger   logger.Logger
	Observer Observer
	Sleep    func(ctx context.Context, d time.Duration) error
}

// Scraper is the pipeline shared by every platform
type Scraper struct {
	opts Options
	log  logger.Logger

	mu       sync.Mutex
	closed   bool
	browsers map[browser.Session]struct{}
	// targets being scraped, keyed by models.TargetKey. Two runs of one
	// target would share its output folder and history log.
	active map[string]struct{}
}

func New(opts Options) *Scraper {
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.Sleep == nil {
		opts.Sleep = pagination.Sleep
	}
	return &Scraper{
		opts:     opts,
		log:      opts.Logger,
		browsers: make(map[browser.Session]struct{}),
		active:   make(map[string]struct{}),
	}
}

// Storage is the output tree runs write to
func (s *Scraper) Storage() *storage.Manager {
	return s.opts.Storage
}

// Scrape returns the event stream of one run against username on p. The run
// starts when the sequence is ranged over and ends with exactly one done or
// error event. Breaking out of the loop abandons the run and releases its
// browser.
func (s *Scraper) Scrape(ctx context.Context, p models.Platform, username string) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		runID := uuid.NewString()
		r := &run{
			Scraper:  s,
			platform: p,
			username: username,
			log:      logger.ForRun(s.log, runID, string(p), username),
		}

		stopped := false
		r.emit = func(e events.Event) error {
			if stopped {
				return errStopped
			}
			if s.opts.Observer != nil {
				s.opts.Observer.EventEmitted(p, e)
			}
			if !yield(e) {
				stopped = true
				return errStopped
			}
			return nil
		}

		start := time.Now()
		if s.opts.Observer != nil {
			s.opts.Observer.RunStarted(p)
		}
		r.log.Info("Scrape started")

		summary, err := r.execute(ctx)
		outcome := OutcomeDone
		switch {
		case stopped || errors.Is(err, errStopped):
			outcome = OutcomeAbandoned
			r.log.Warn("Event consumer stopped, run abandoned")
		case err != nil:
			outcome = OutcomeError
			r.log.WithError(err).ErrorWithFields("Scrape failed", map[string]interface{}{
				"state": r.state,
				"kind":  string(errs.TypeOf(err)),
			})
			_ = r.emit(events.Error(Message(err)))
		default:
			r.log.InfoWithFields("Scrape finished", map[string]interface{}{
				"downloaded": summary.Downloaded,
				"skipped":    summary.Skipped,
				"failed":     summary.Failed,
			})
			_ = r.emit(events.Done(fmt.Sprintf("Finished %s: %s", username, summary)))
		}

		if s.opts.Observer != nil {
			s.opts.Observer.RunFinished(p, outcome, time.Since(start))
		}
	}
}

// ScrapeUsers runs each username in turn on one stream. Every run carries
// its own terminal event; a failed run does not stop the ones after it.
func (s *Scraper) ScrapeUsers(ctx context.Context, p models.Platform, usernames []string) iter.Seq[events.Event] {
	return func(yield func(events.Event) bool) {
		for _, u := range usernames {
			if ctx.Err() != nil {
				return
			}
			for e := range s.Scrape(ctx, p, u) {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// Close releases the browsers of runs still in flight, which makes them
// fail at their next navigation, and refuses new runs. It is safe to call
// more than once.
func (s *Scraper) Close() error {
	s.mu.Lock()
	s.closed = true
	open := make([]browser.Session, 0, len(s.browsers))
	for b := range s.browsers {
		open = append(open, b)
	}
	clear(s.browsers)
	s.mu.Unlock()

	var closeErrs []error
	for _, b := range open {
		if err := b.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}
	return errors.Join(closeErrs...)
}

func (s *Scraper) track(b browser.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.browsers[b] = struct{}{}
	return nil
}

func (s *Scraper) release(b browser.Session) {
	s.mu.Lock()
	_, owned := s.browsers[b]
	delete(s.browsers, b)
	s.mu.Unlock()
	if owned {
		_ = b.Close()
	}
}

// claim reserves key for one run. It fails while another run holds it.
func (s *Scraper) claim(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[key]; busy {
		return false
	}
	s.active[key] = struct{}{}
	return true
}

func (s *Scraper) unclaim(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, key)
}

func (s *Scraper) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Message renders err for an error event. Typed errors carry a message
// meant for the user; anything else is shown as is.
func Message(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Scrape cancelled: " + err.Error()
	}
	return err.Error()
}
