package scraper

import (
	"context"
	"errors"
	"fmt"

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

// State is a step of the run state machine
type State string

const (
	StateInit          State = "INIT"
	StateAuthenticating State = "AUTHENTICATING"
	StateProfileLoaded State = "PROFILE_LOADED"
	StateScrolling     State = "SCROLLING"
	StateExtracting    State = "EXTRACTING"
	StateDownloading   State = "DOWNLOADING"
	StateDone          State = "DONE"
)

type run struct {
	*Scraper
	platform models.Platform
	username string
	log      logger.Logger
	emit     func(events.Event) error

	state   State
	adapter platform.Adapter
	browser browser.Session
}

func (r *run) enter(s State) {
	r.state = s
	r.log.DebugWithFields("State changed", map[string]interface{}{"state": string(s)})
}

func (r *run) execute(ctx context.Context) (downloader.Summary, error) {
	var summary downloader.Summary
	r.enter(StateInit)

	if r.isClosed() {
		return summary, errs.Unknown("scrape", "", ErrClosed)
	}
	if err := r.init(); err != nil {
		return summary, err
	}
	key := models.TargetKey(r.platform, r.username)
	if !r.claim(key) {
		return summary, errs.Unknown("scrape", fmt.Sprintf("A scrape of %s on %s is already running", r.username, r.platform), ErrBusy)
	}
	defer r.unclaim(key)

	creds, err := r.opts.Sessions.Load(r.platform)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return summary, errs.Credential("load session", session.MissingMessage(r.platform), err)
		}
		return summary, errs.Credential("load session", "", err)
	}

	r.enter(StateAuthenticating)
	if err := r.emit(events.Status("Connecting to %s", r.platform)); err != nil {
		return summary, err
	}
	if err := r.open(ctx); err != nil {
		return summary, err
	}
	defer r.release(r.browser)

	r.browser.SetScopes(r.adapter.Scopes()...)
	if err := r.adapter.Authenticate(ctx, r.browser, creds); err != nil {
		return summary, err
	}

	profile, err := r.loadProfile(ctx)
	if err != nil {
		return summary, err
	}
	r.enter(StateProfileLoaded)
	if err := r.emit(events.Profile(profile)); err != nil {
		return summary, err
	}
	r.refreshCookies(ctx)

	r.enter(StateScrolling)
	if err := r.emit(events.Status("Found %s, scrolling through posts", displayName(profile, r.username))); err != nil {
		return summary, err
	}
	if err := r.scroll(ctx); err != nil {
		return summary, err
	}

	r.enter(StateExtracting)
	records, err := r.extract(ctx)
	if err != nil {
		return summary, err
	}

	dir, err := r.opts.Storage.UserDir(r.platform, r.username)
	if err != nil {
		return summary, errs.Unknown("save profile", "", err)
	}
	if err := r.opts.Storage.SaveProfile(dir, profile); err != nil {
		return summary, errs.Unknown("save profile", "", err)
	}
	// the browser is not needed past this point
	r.release(r.browser)

	r.enter(StateDownloading)
	if err := r.emit(events.Status("Collected %d media, downloading", len(records))); err != nil {
		return summary, err
	}
	summary, err = r.opts.Downloader.DownloadAll(ctx, records, dir, r.opts.Storage.HistoryPath(r.platform, r.username))
	if err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("downloads interrupted (%s): %w", summary, err)
	}

	r.enter(StateDone)
	return summary, nil
}

func (r *run) init() error {
	adapter, err := r.opts.Registry.Get(r.platform)
	if err != nil {
		return errs.Unknown("scrape", fmt.Sprintf("Unsupported platform %q", r.platform), err)
	}
	r.adapter = adapter

	if err := storage.ValidateUsername(r.username); err != nil {
		return errs.Unknown("scrape", fmt.Sprintf("Invalid username %q", r.username), err)
	}
	return nil
}

func (r *run) open(ctx context.Context) error {
	b, err := r.opts.NewBrowser(ctx)
	if err != nil {
		return errs.Navigation("open browser", "Failed to start the browser", err)
	}
	if err := r.track(b); err != nil {
		_ = b.Close()
		return errs.Unknown("open browser", "", err)
	}
	r.browser = b
	return nil
}

func (r *run) loadProfile(ctx context.Context) (models.Profile, error) {
	// profile traffic must come from this page, not from the home feed
	r.browser.ClearExchanges()

	url := r.adapter.ProfileURL(r.username)
	if err := r.browser.Navigate(ctx, url); err != nil {
		return models.Profile{}, errs.Navigation("open profile", "", err)
	}
	if err := r.opts.Sleep(ctx, r.opts.SettleDelay); err != nil {
		return models.Profile{}, err
	}

	profile, err := r.adapter.LoadProfile(ctx, r.browser, r.username)
	if err != nil {
		if errors.Is(err, platform.ErrProfileNotFound) {
			return models.Profile{}, errs.Navigation("load profile", fmt.Sprintf("Profile %s not found on %s", r.username, r.platform), err)
		}
		return models.Profile{}, errs.Navigation("load profile", "", err)
	}
	r.log.InfoWithFields("Profile loaded", map[string]interface{}{
		"name": profile.Name,
		"id":   profile.ID,
	})
	return profile, nil
}

// refreshCookies saves the cookie set the browser holds after a successful
// profile load. Failures only cost the refresh.
func (r *run) refreshCookies(ctx context.Context) {
	cookies, err := r.browser.Cookies(ctx)
	if err != nil || len(cookies) == 0 {
		if err != nil {
			r.log.WithError(err).Debug("Could not read browser cookies")
		}
		return
	}
	if err := r.opts.Sessions.Save(&session.Credentials{Platform: r.platform, Cookies: cookies}); err != nil {
		r.log.WithError(err).Warn("Failed to save refreshed session cookies")
		return
	}
	r.log.DebugWithFields("Session cookies refreshed", map[string]interface{}{"cookies": len(cookies)})
}

func (r *run) scroll(ctx context.Context) error {
	count := func() int {
		return len(downloader.Dedupe(r.adapter.ExtractMediaRefs(r.adapter.CollectRecords(r.browser.Exchanges()))))
	}

	pager := pagination.New(r.opts.Pagination, r.log)
	for found, err := range pager.Drive(ctx, r.browser, count) {
		if err != nil {
			if errors.Is(err, pagination.ErrNotLoaded) {
				return errs.Navigation("scroll", "The profile page never finished loading", err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errs.Navigation("scroll", "", err)
		}
		if err := r.emit(events.Progress(found)); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) extract(ctx context.Context) ([]models.MediaRecord, error) {
	posts := r.adapter.CollectRecords(r.browser.Exchanges())
	records := r.adapter.ExtractMediaRefs(posts)
	r.log.InfoWithFields("Traffic records collected", map[string]interface{}{
		"posts":   len(posts),
		"records": len(records),
	})

	harvester, ok := r.adapter.(platform.DOMHarvester)
	if !ok || !r.opts.DOMFallback {
		return records, nil
	}

	dom, err := harvester.HarvestDOM(ctx, r.browser, r.username)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// traffic records alone are still worth downloading
		r.log.WithError(err).Warn("DOM harvest failed")
		return records, nil
	}
	merged := MergeRecords(records, dom)
	r.log.InfoWithFields("DOM records merged", map[string]interface{}{
		"dom":    len(dom),
		"added":  len(merged) - len(records),
		"merged": len(merged),
	})
	return merged, nil
}

func displayName(p models.Profile, username string) string {
	if p.Name != "" {
		return p.Name
	}
	return username
}
