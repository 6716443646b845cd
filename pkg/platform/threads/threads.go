// Package threads reads profiles and posts from threads.net. Posts come from
// the profile feed's GraphQL traffic, with a fallback that walks the rendered
// post pages for media the feed did not carry.
package threads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"profilegrab/pkg/browser"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
	"profilegrab/pkg/platform"
	"profilegrab/pkg/traffic"
)

const (
	HomeURL = "https://www.threads.net/"

	mediaImageSelector = `img[referrerpolicy="origin-when-cross-origin"]`
)

var PostsSignature = traffic.FriendlyName("BarcelonaProfileThreadsTabRefetchableDirectQuery")

type user struct {
	Username      string      `json:"username"`
	FullName      string      `json:"full_name"`
	ID            platform.ID `json:"id"`
	PK            platform.ID `json:"pk"`
	ProfilePicURL string      `json:"profile_pic_url"`
}

type post struct {
	Code           string                 `json:"code"`
	TakenAt        int64                  `json:"taken_at"`
	ImageVersions2 platform.ImageVersions `json:"image_versions2"`
	CarouselMedia  []struct {
		ImageVersions2 platform.ImageVersions `json:"image_versions2"`
	} `json:"carousel_media"`
	User *user `json:"user"`
}

type feedResponse struct {
	Data struct {
		MediaData struct {
			Edges []struct {
				Node struct {
					ThreadItems []struct {
						Post *post `json:"post"`
					} `json:"thread_items"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"mediaData"`
	} `json:"data"`
}

// Adapter scrapes threads.net
type Adapter struct {
	platform.Base
}

func New(opts platform.Options, log logger.Logger) *Adapter {
	return &Adapter{Base: platform.NewBase(models.Threads, HomeURL, nil, opts, log)}
}

func (a *Adapter) ProfileURL(username string) string {
	return HomeURL + "@" + username
}

// PostURL is the permalink of a post code
func PostURL(code string) string {
	return HomeURL + "post/" + code
}

func (a *Adapter) posts(exchanges []browser.Exchange) []*post {
	var out []*post
	for _, d := range traffic.DecodeAll[feedResponse](traffic.Documents(exchanges, PostsSignature, a.Log), a.Log) {
		for _, edge := range d.Data.MediaData.Edges {
			for _, item := range edge.Node.ThreadItems {
				if item.Post != nil {
					out = append(out, item.Post)
				}
			}
		}
	}
	return out
}

// LoadProfile takes the author of the first post in the feed
func (a *Adapter) LoadProfile(ctx context.Context, s browser.Session, username string) (models.Profile, error) {
	for _, p := range a.posts(s.Exchanges()) {
		if p.User == nil {
			continue
		}
		id := p.User.ID
		if id == "" {
			id = p.User.PK
		}
		profile := models.NewProfile(platform.CurrentURL(ctx, s, a.ProfileURL(username)), strings.TrimSpace(p.User.FullName), string(id), time.Now())
		profile.ProfilePicURL = p.User.ProfilePicURL
		return profile, nil
	}
	return models.Profile{}, platform.ErrProfileNotFound
}

func (a *Adapter) CollectRecords(exchanges []browser.Exchange) []models.Post {
	var posts []models.Post
	for _, p := range a.posts(exchanges) {
		if p.Code == "" {
			continue
		}
		out := models.Post{URL: PostURL(p.Code), TakenAt: p.TakenAt}
		if len(p.CarouselMedia) == 0 {
			if u := p.ImageVersions2.First(); u != "" {
				out.Media = append(out.Media, models.Media{URL: u})
			}
		}
		// carousel items carry no timestamp of their own
		for _, item := range p.CarouselMedia {
			if u := item.ImageVersions2.First(); u != "" {
				out.Media = append(out.Media, models.Media{URL: u})
			}
		}
		if len(out.Media) > 0 {
			posts = append(posts, out)
		}
	}
	return posts
}

type domPost struct {
	url     string
	takenAt int64
}

// HarvestDOM reads the post links rendered on the profile page and collects
// the images of each post's media view. A post that fails is logged and
// skipped; only cancellation aborts the harvest.
func (a *Adapter) HarvestDOM(ctx context.Context, s browser.Session, username string) ([]models.MediaRecord, error) {
	if err := s.Navigate(ctx, a.ProfileURL(username)); err != nil {
		return nil, fmt.Errorf("failed to open profile page: %w", err)
	}
	if err := a.Settle(ctx); err != nil {
		return nil, err
	}

	links, err := s.Query(ctx, fmt.Sprintf(`a[href^="/@%s/post/"]`, username))
	if err != nil {
		return nil, fmt.Errorf("failed to query post links: %w", err)
	}

	var found []domPost
	seen := make(map[string]struct{})
	for _, link := range links {
		p, ok := a.linkPost(link)
		if !ok {
			continue
		}
		if _, dup := seen[p.url]; dup {
			continue
		}
		seen[p.url] = struct{}{}
		found = append(found, p)
	}

	var records []models.MediaRecord
	for _, p := range found {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		imgs, err := a.postImages(ctx, s, p.url)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return records, err
			}
			a.Log.WithError(err).WarnWithFields("Skipping post page", map[string]interface{}{"post_url": p.url})
			continue
		}
		origin := strings.Replace(p.url, "@"+username+"/", "", 1)
		for _, src := range imgs {
			records = append(records, models.MediaRecord{MediaURL: src, PostURL: origin, TakenAt: p.takenAt})
		}
	}

	a.Log.DebugWithFields("Harvested rendered posts", map[string]interface{}{
		"posts":   len(found),
		"records": len(records),
	})
	return records, nil
}

func (a *Adapter) linkPost(link browser.Element) (domPost, bool) {
	href, ok := link.Attr("href")
	if !ok {
		return domPost{}, false
	}
	times := link.Find("time[datetime]")
	if len(times) == 0 {
		return domPost{}, false
	}
	stamp, _ := times[0].Attr("datetime")
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		a.Log.DebugWithFields("Skipping post link with unreadable time", map[string]interface{}{"href": href})
		return domPost{}, false
	}
	abs, err := platform.Resolve(HomeURL, href)
	if err != nil {
		return domPost{}, false
	}
	return domPost{url: strings.TrimSuffix(abs, "/"), takenAt: t.Unix()}, true
}

func (a *Adapter) postImages(ctx context.Context, s browser.Session, postURL string) ([]string, error) {
	if err := s.Navigate(ctx, postURL+"/media"); err != nil {
		return nil, err
	}
	if err := a.Wait(ctx, a.Options.ItemDelay); err != nil {
		return nil, err
	}
	imgs, err := s.Query(ctx, mediaImageSelector)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, img := range imgs {
		if src, ok := img.Attr("src"); ok && src != "" {
			out = append(out, src)
		}
	}
	return out, nil
}
