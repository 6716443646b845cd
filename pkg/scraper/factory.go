package scraper

import (
	"context"

	"github.com/spf13/afero"
	"profilegrab/internal/downloader"
	"profilegrab/pkg/browser"
	"profilegrab/pkg/config"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/pagination"
	"profilegrab/pkg/platform"
	"profilegrab/pkg/platform/facebook"
	"profilegrab/pkg/platform/instagram"
	"profilegrab/pkg/platform/threads"
	"profilegrab/pkg/session"
	"profilegrab/pkg/storage"
)

// Metrics receives run, event and download observations
type Metrics interface {
	Observer
	downloader.Recorder
}

// DefaultAdapters registers every supported platform
func DefaultAdapters(cfg config.BrowserConfig, log logger.Logger) *platform.Registry {
	opts := platform.Options{
		SettleDelay:     cfg.SettleDelay,
		ItemDelay:       cfg.ScrollDelay,
		ProfileAttempts: cfg.ProfileAttempts,
	}
	return platform.NewRegistry(
		instagram.New(opts, log),
		threads.New(opts, log),
		facebook.New(opts, log),
	)
}

// ChromeFactory starts a new Chrome process per run
func ChromeFactory(cfg config.BrowserConfig, log logger.Logger) BrowserFactory {
	return func(ctx context.Context) (browser.Session, error) {
		return browser.NewChrome(ctx, browser.Options{
			Headless:  cfg.Headless,
			ExecPath:  cfg.ExecPath,
			UserAgent: cfg.UserAgent,
			Width:     cfg.Width,
			Height:    cfg.Height,
			Logger:    log,
		})
	}
}

// PaginationConfig maps browser settings onto the pagination controller
func PaginationConfig(cfg config.BrowserConfig) pagination.Config {
	return pagination.Config{
		ScrollDelay:    cfg.ScrollDelay,
		NotLoadedDelay: cfg.NotLoadedDelay,
		MaxAttempts:    cfg.MaxDriveAttempts,
	}
}

// Option adjusts the wiring NewFromConfig derives from configuration
type Option func(*Options)

// WithBrowserFactory replaces the Chrome launcher
func WithBrowserFactory(f BrowserFactory) Option {
	return func(o *Options) { o.NewBrowser = f }
}

// WithSessions replaces the configured session store
func WithSessions(s SessionStore) Option {
	return func(o *Options) { o.Sessions = s }
}

// WithFs roots the output tree on fs instead of the OS filesystem
func WithFs(fs afero.Fs) Option {
	return func(o *Options) {
		o.Storage = storage.NewManager(fs, o.Storage.Root())
	}
}

// NewFromConfig wires a Scraper from configuration: Chrome sessions, the
// configured session backend, the output tree under the working root and a
// download engine. m may be nil.
func NewFromConfig(cfg *config.Config, log logger.Logger, m Metrics, options ...Option) (*Scraper, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	opts := Options{
		Registry:    DefaultAdapters(cfg.Browser, log),
		Storage:     storage.NewManager(afero.NewOsFs(), cfg.Output.WorkingRoot),
		NewBrowser:  ChromeFactory(cfg.Browser, log),
		Pagination:  PaginationConfig(cfg.Browser),
		SettleDelay: cfg.Browser.SettleDelay,
		DOMFallback: cfg.Browser.DOMFallback,
		Logger:      log,
	}
	for _, apply := range options {
		apply(&opts)
	}

	if opts.Sessions == nil {
		sessions, err := session.NewManager(cfg.Session, afero.NewOsFs())
		if err != nil {
			return nil, err
		}
		opts.Sessions = sessions
	}

	var rec downloader.Recorder
	if m != nil {
		rec = m
		opts.Observer = m
	}
	opts.Downloader = downloader.NewFromConfig(cfg, opts.Storage, log, rec)

	return New(opts), nil
}
