package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/session"
)

// Options configures a Chrome session
type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	Width     int
	Height    int
	Logger    logger.Logger
}

// Chrome is a Session backed by a dedicated headless Chrome process
type Chrome struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	rec         *recorder
	log         logger.Logger
	bodies      *inflight
	closeOnce   sync.Once
}

// NewChrome starts Chrome and enables network recording. The process lives
// until Close is called or parent is cancelled.
func NewChrome(parent context.Context, opts Options) (*Chrome, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Width > 0 && opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	c := &Chrome{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		rec:         newRecorder(),
		log:         log,
		bodies:      newInflight(),
	}

	chromedp.ListenTarget(tabCtx, c.onEvent)
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	log.DebugWithFields("Browser started", map[string]interface{}{"headless": opts.Headless})
	return c, nil
}

// onEvent runs on the devtools event loop and must not block; bodies are
// fetched in their own goroutine.
func (c *Chrome) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		c.rec.request(Request{
			ID:      string(e.RequestID),
			URL:     e.Request.URL,
			Method:  e.Request.Method,
			Headers: flattenHeaders(e.Request.Headers),
		})
	case *network.EventResponseReceived:
		c.rec.response(string(e.RequestID), int(e.Response.Status), flattenHeaders(e.Response.Headers))
	case *network.EventLoadingFinished:
		id := e.RequestID
		if !c.rec.tracked(string(id)) {
			return
		}
		if !c.bodies.start() {
			c.rec.fail(string(id))
			return
		}
		go func() {
			defer c.bodies.done()
			c.fetchBody(id)
		}()
	case *network.EventLoadingFailed:
		c.rec.fail(string(e.RequestID))
	}
}

func (c *Chrome) fetchBody(id network.RequestID) {
	cctx := chromedp.FromContext(c.ctx)
	if cctx == nil || cctx.Target == nil {
		c.rec.fail(string(id))
		return
	}
	body, err := network.GetResponseBody(id).Do(cdp.WithExecutor(c.ctx, cctx.Target))
	if err != nil {
		c.log.WithError(err).DebugWithFields("Response body unavailable", map[string]interface{}{"request_id": string(id)})
		c.rec.fail(string(id))
		return
	}
	c.rec.finish(string(id), body)
}

func flattenHeaders(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// run executes actions on the tab, aborting when either ctx or the session ends
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) Evaluate(ctx context.Context, script string, out interface{}) error {
	return c.run(ctx, chromedp.Evaluate(script, out))
}

// Exchanges waits briefly for in-flight body fetches before snapshotting
func (c *Chrome) Exchanges() []Exchange {
	c.bodies.wait(bodyWait)
	return c.rec.snapshot()
}

func (c *Chrome) ClearExchanges()              { c.rec.clear() }
func (c *Chrome) SetScopes(patterns ...string) { c.rec.setScopes(patterns) }

func (c *Chrome) Query(ctx context.Context, selector string) ([]Element, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return QueryHTML(html, selector)
}

func (c *Chrome) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ck := range cookies {
			params := network.SetCookie(ck.Name, ck.Value).
				WithDomain(ck.Domain).
				WithPath(ck.Path).
				WithSecure(ck.Secure).
				WithHTTPOnly(ck.HTTPOnly)
			if ss := sameSite(ck.SameSite); ss != "" {
				params = params.WithSameSite(ss)
			}
			if ck.Expires > 0 {
				sec := int64(ck.Expires)
				exp := cdp.TimeSinceEpoch(time.Unix(sec, 0))
				params = params.WithExpires(&exp)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", ck.Name, err)
			}
		}
		return nil
	}))
}

func sameSite(s string) network.CookieSameSite {
	switch strings.ToLower(s) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}

func (c *Chrome) Cookies(ctx context.Context) ([]session.Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	out := make([]session.Cookie, 0, len(raw))
	for _, ck := range raw {
		sc := session.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
			SameSite: ck.SameSite.String(),
		}
		if !ck.Session && ck.Expires > 0 {
			sc.Expires = ck.Expires
		}
		out = append(out, sc)
	}
	return out, nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := c.run(ctx, chromedp.Location(&u))
	return u, err
}

func (c *Chrome) Title(ctx context.Context) (string, error) {
	var t string
	err := c.run(ctx, chromedp.Title(&t))
	return t, err
}

// Close shuts the tab and the browser process
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.bodies.shutdown()
		c.cancelTab()
		c.cancelAlloc()
		if !c.bodies.wait(bodyWait) {
			c.log.Debug("Browser closed with response bodies still pending")
		}
		c.log.Debug("Browser closed")
	})
	return nil
}
