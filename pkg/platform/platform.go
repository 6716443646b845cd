// Package platform defines what a social platform must supply to the scrape
// pipeline. The pipeline itself is shared; an Adapter only knows where the
// platform's pages live and how its traffic and markup encode posts.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"profilegrab/pkg/browser"
	errs "profilegrab/pkg/errors"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
	"profilegrab/pkg/pagination"
	"profilegrab/pkg/session"
)

// ErrProfileNotFound is returned by LoadProfile when the page yielded no profile
var ErrProfileNotFound = errors.New("profile not found")

// Adapter is the per-platform half of a scrape run
type Adapter interface {
	Platform() models.Platform
	HomeURL() string
	ProfileURL(username string) string
	// Scopes limits which URLs the browser records during the run
	Scopes() []string

	// Authenticate opens the platform and installs the saved cookies
	Authenticate(ctx context.Context, s browser.Session, creds *session.Credentials) error
	// LoadProfile reads the profile of the page the session is on
	LoadProfile(ctx context.Context, s browser.Session, username string) (models.Profile, error)
	// CollectRecords parses every matching exchange into posts. Exchanges
	// that do not parse are skipped.
	CollectRecords(exchanges []browser.Exchange) []models.Post
	// ExtractMediaRefs flattens posts into downloadable records
	ExtractMediaRefs(posts []models.Post) []models.MediaRecord
}

// DOMHarvester is implemented by adapters that can also read media from the
// rendered pages, for posts whose data never crosses the intercepted traffic
type DOMHarvester interface {
	HarvestDOM(ctx context.Context, s browser.Session, username string) ([]models.MediaRecord, error)
}

// Options tunes the waits adapters make on live pages
type Options struct {
	// SettleDelay is waited after navigating to a page
	SettleDelay time.Duration
	// ItemDelay is waited on each post page visited by a DOM harvest
	ItemDelay time.Duration
	// ProfileAttempts bounds profile load retries where an adapter needs them
	ProfileAttempts int
	// Sleep replaces the real wait in tests
	Sleep func(ctx context.Context, d time.Duration) error
}

// Base carries the behavior every adapter shares
type Base struct {
	Name    models.Platform
	Home    string
	Scope   []string
	Options Options
	Log     logger.Logger
}

// NewBase fills in defaults
func NewBase(name models.Platform, home string, scope []string, opts Options, log logger.Logger) Base {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.Sleep == nil {
		opts.Sleep = pagination.Sleep
	}
	if opts.ProfileAttempts <= 0 {
		opts.ProfileAttempts = 1
	}
	return Base{
		Name:    name,
		Home:    home,
		Scope:   scope,
		Options: opts,
		Log:     log.WithField("platform", string(name)),
	}
}

func (b Base) Platform() models.Platform { return b.Name }
func (b Base) HomeURL() string           { return b.Home }
func (b Base) Scopes() []string          { return slices.Clone(b.Scope) }

// Authenticate navigates home and installs the cookies. Missing cookies are
// a credential error; the login itself happens out of band.
func (b Base) Authenticate(ctx context.Context, s browser.Session, creds *session.Credentials) error {
	if creds == nil || len(creds.Cookies) == 0 {
		return errs.Credential("authenticate", session.MissingMessage(b.Name), session.ErrNotFound)
	}
	if err := s.Navigate(ctx, b.Home); err != nil {
		return errs.Navigation("authenticate", "failed to open "+b.Home, err)
	}
	if err := s.SetCookies(ctx, creds.Cookies); err != nil {
		return errs.Credential("authenticate", "failed to install cookies", err)
	}
	b.Log.DebugWithFields("Installed session cookies", map[string]interface{}{
		"cookies": len(creds.Cookies),
	})
	return nil
}

// ExtractMediaRefs expands carousels into one record per item
func (b Base) ExtractMediaRefs(posts []models.Post) []models.MediaRecord {
	return models.Flatten(posts)
}

// Wait sleeps for d unless ctx ends first
func (b Base) Wait(ctx context.Context, d time.Duration) error {
	return b.Options.Sleep(ctx, d)
}

// Settle waits the configured settle delay
func (b Base) Settle(ctx context.Context) error {
	return b.Wait(ctx, b.Options.SettleDelay)
}

// CurrentURL returns the session's URL, or fallback when it is unknown
func CurrentURL(ctx context.Context, s browser.Session, fallback string) string {
	u, err := s.CurrentURL(ctx)
	if err != nil || u == "" || u == "about:blank" {
		return fallback
	}
	return u
}

// Resolve turns an href found in a page into an absolute URL
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

// ID decodes platform ids that arrive as either JSON strings or numbers
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if len(s) < 2 || !strings.HasSuffix(s, `"`) {
			return fmt.Errorf("malformed id %s", s)
		}
		*id = ID(s[1 : len(s)-1])
		return nil
	}
	*id = ID(s)
	return nil
}

// ImageVersions is the image candidate list Meta's feeds attach to media
type ImageVersions struct {
	Candidates []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"candidates"`
}

// First returns the first candidate, which the feeds order largest first
func (v ImageVersions) First() string {
	if len(v.Candidates) == 0 {
		return ""
	}
	return v.Candidates[0].URL
}
