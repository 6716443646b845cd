// Package facebook reads a profile's photo collection from facebook.com.
// Photos come from the collection's pagination traffic, with a fallback that
// opens each photo page linked from the rendered grid.
package facebook

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"profilegrab/pkg/browser"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
	"profilegrab/pkg/platform"
	"profilegrab/pkg/traffic"
)

const (
	HomeURL = "https://www.facebook.com/"
	Scope   = "https://www.facebook.com/api/graphql/*"

	photoImageSelector = `img[data-visualcompletion="media-vc-image"]`
)

var (
	PhotosSignature = traffic.FriendlyName("ProfileCometAppCollectionPhotosRendererPaginationQuery")

	photoLink    = regexp.MustCompile(`^https://www\.facebook\.com/photo\.php\?fbid=\d+`)
	parenthetics = regexp.MustCompile(`\s*\(.*?\)`)
)

type photosResponse struct {
	Data struct {
		Node struct {
			PageItems struct {
				Edges []struct {
					Node struct {
						ID   string `json:"id"`
						URL  string `json:"url"`
						Node struct {
							ViewerImage struct {
								URI string `json:"uri"`
							} `json:"viewer_image"`
						} `json:"node"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"pageItems"`
		} `json:"node"`
	} `json:"data"`
}

// Adapter scrapes facebook.com photo collections
type Adapter struct {
	platform.Base
}

func New(opts platform.Options, log logger.Logger) *Adapter {
	return &Adapter{Base: platform.NewBase(models.Facebook, HomeURL, []string{Scope}, opts, log)}
}

func (a *Adapter) ProfileURL(username string) string {
	return HomeURL + username + "/photos_by"
}

func (a *Adapter) documents(exchanges []browser.Exchange) []photosResponse {
	return traffic.DecodeAll[photosResponse](traffic.Documents(exchanges, PhotosSignature, a.Log), a.Log)
}

func (a *Adapter) CollectRecords(exchanges []browser.Exchange) []models.Post {
	var posts []models.Post
	for _, d := range a.documents(exchanges) {
		for _, edge := range d.Data.Node.PageItems.Edges {
			n := edge.Node
			if n.Node.ViewerImage.URI == "" || n.URL == "" {
				continue
			}
			posts = append(posts, models.Post{
				URL:   TrimPhotoURL(n.URL),
				Media: []models.Media{{URL: n.Node.ViewerImage.URI}},
			})
		}
	}
	return posts
}

// TrimPhotoURL drops the tracking parameters after the photo id
func TrimPhotoURL(u string) string {
	before, _, _ := strings.Cut(u, "&")
	return before
}

// LoadProfile waits for the photo page, nudges it to fetch its first page of
// photos and reads the name from the page and the id from that traffic. The
// page is retried up to ProfileAttempts times.
func (a *Adapter) LoadProfile(ctx context.Context, s browser.Session, username string) (models.Profile, error) {
	var lastErr error
	for attempt := 1; attempt <= a.Options.ProfileAttempts; attempt++ {
		p, err := a.loadProfile(ctx, s, username)
		if err == nil {
			return p, nil
		}
		if ctx.Err() != nil {
			return models.Profile{}, ctx.Err()
		}
		lastErr = err
		a.Log.WithError(err).WarnWithFields("Profile not ready", map[string]interface{}{
			"attempt": attempt,
			"max":     a.Options.ProfileAttempts,
		})
		if attempt < a.Options.ProfileAttempts {
			if err := a.Settle(ctx); err != nil {
				return models.Profile{}, err
			}
		}
	}
	return models.Profile{}, fmt.Errorf("%w: %v", platform.ErrProfileNotFound, lastErr)
}

func (a *Adapter) loadProfile(ctx context.Context, s browser.Session, username string) (models.Profile, error) {
	if err := a.waitReady(ctx, s); err != nil {
		return models.Profile{}, err
	}
	if err := browser.ScrollToBottom(ctx, s); err != nil {
		return models.Profile{}, err
	}
	if err := a.Wait(ctx, a.Options.ItemDelay); err != nil {
		return models.Profile{}, err
	}
	if err := browser.ScrollToTop(ctx, s); err != nil {
		return models.Profile{}, err
	}

	name, err := a.displayName(ctx, s)
	if err != nil {
		return models.Profile{}, err
	}
	id, err := a.userID(s.Exchanges())
	if err != nil {
		return models.Profile{}, err
	}
	return models.NewProfile(platform.CurrentURL(ctx, s, a.ProfileURL(username)), name, id, time.Now()), nil
}

func (a *Adapter) waitReady(ctx context.Context, s browser.Session) error {
	for i := 0; i < 10; i++ {
		ready, err := browser.Ready(ctx, s)
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		if err := a.Wait(ctx, time.Second); err != nil {
			return err
		}
	}
	return errors.New("page did not become ready")
}

func (a *Adapter) displayName(ctx context.Context, s browser.Session) (string, error) {
	headings, err := s.Query(ctx, "h1")
	if err != nil {
		return "", err
	}
	for _, h := range headings {
		if text := h.Text(); text != "" {
			return CleanName(text), nil
		}
	}
	title, err := s.Title(ctx)
	if err != nil {
		return "", err
	}
	return NameFromTitle(title), nil
}

// NameFromTitle extracts the profile name from a title like
// "(3) Jane Doe | Facebook"
func NameFromTitle(title string) string {
	name, _, _ := strings.Cut(title, " | ")
	if strings.HasPrefix(name, "(") {
		if _, after, ok := strings.Cut(name, ")"); ok {
			name = after
		}
	}
	return CleanName(name)
}

// CleanName removes parenthesized suffixes such as counters or nicknames
func CleanName(s string) string {
	return strings.TrimSpace(parenthetics.ReplaceAllString(s, ""))
}

func (a *Adapter) userID(exchanges []browser.Exchange) (string, error) {
	for _, d := range a.documents(exchanges) {
		for _, edge := range d.Data.Node.PageItems.Edges {
			if edge.Node.ID == "" {
				continue
			}
			return DecodeUserID(edge.Node.ID)
		}
	}
	return "", errors.New("no photo traffic captured yet")
}

// DecodeUserID reads the owner id out of a base64 collection item id of the
// form "<kind>:<owner id>:..."
func DecodeUserID(nodeID string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(nodeID)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(nodeID); err != nil {
			return "", fmt.Errorf("node id is not base64: %w", err)
		}
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("unexpected node id %q", string(raw))
	}
	return parts[1], nil
}

// HarvestDOM collects the photo links rendered on the collection page and
// reads the full-size image of each. A photo that fails is logged and skipped.
func (a *Adapter) HarvestDOM(ctx context.Context, s browser.Session, username string) ([]models.MediaRecord, error) {
	if err := s.Navigate(ctx, a.ProfileURL(username)); err != nil {
		return nil, fmt.Errorf("failed to open photo page: %w", err)
	}
	if err := a.Settle(ctx); err != nil {
		return nil, err
	}
	for _, scroll := range []func(context.Context, browser.Session) error{browser.ScrollToTop, browser.ScrollToBottom, browser.ScrollToTop} {
		if err := scroll(ctx, s); err != nil {
			return nil, err
		}
		if err := a.Wait(ctx, a.Options.ItemDelay); err != nil {
			return nil, err
		}
	}
	if err := a.waitReady(ctx, s); err != nil {
		return nil, err
	}

	links, err := a.photoLinks(ctx, s)
	if err != nil {
		return nil, err
	}

	var records []models.MediaRecord
	for _, link := range links {
		src, err := a.photoImage(ctx, s, link)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return records, err
			}
			a.Log.WithError(err).WarnWithFields("Skipping photo page", map[string]interface{}{"photo_url": link})
			continue
		}
		records = append(records, models.MediaRecord{MediaURL: src, PostURL: link})
	}

	a.Log.DebugWithFields("Harvested rendered photos", map[string]interface{}{
		"links":   len(links),
		"records": len(records),
	})
	return records, nil
}

func (a *Adapter) photoLinks(ctx context.Context, s browser.Session) ([]string, error) {
	anchors, err := s.Query(ctx, "a[href]")
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	var links []string
	seen := make(map[string]struct{})
	for _, el := range anchors {
		href, _ := el.Attr("href")
		abs, err := platform.Resolve(HomeURL, href)
		if err != nil || !photoLink.MatchString(abs) {
			continue
		}
		link := TrimPhotoURL(abs)
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links, nil
}

func (a *Adapter) photoImage(ctx context.Context, s browser.Session, link string) (string, error) {
	if err := s.Navigate(ctx, link); err != nil {
		return "", err
	}
	if err := a.Wait(ctx, a.Options.ItemDelay); err != nil {
		return "", err
	}
	imgs, err := s.Query(ctx, photoImageSelector)
	if err != nil {
		return "", err
	}
	for _, img := range imgs {
		if src, ok := img.Attr("src"); ok && src != "" {
			return src, nil
		}
	}
	return "", errors.New("photo page has no image")
}
