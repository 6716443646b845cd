// Package instagram reads profiles and posts from the GraphQL traffic of
// instagram.com profile pages.
package instagram

import (
	"context"
	"strings"
	"time"

	"profilegrab/pkg/browser"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
	"profilegrab/pkg/platform"
	"profilegrab/pkg/traffic"
)

const (
	HomeURL = "https://www.instagram.com/"
	Scope   = "https://www.instagram.com/graphql/query*"
)

var (
	PostsSignature   = traffic.FriendlyName("PolarisProfilePostsQuery", "PolarisProfilePostsTabContentQuery_connection")
	ProfileSignature = traffic.FriendlyName("PolarisProfilePageContentQuery")
)

type mediaNode struct {
	Code           string                 `json:"code"`
	TakenAt        int64                  `json:"taken_at"`
	ImageVersions2 platform.ImageVersions `json:"image_versions2"`
	CarouselMedia  []mediaNode            `json:"carousel_media"`
}

type timelineResponse struct {
	Data struct {
		Connection struct {
			Edges []struct {
				Node mediaNode `json:"node"`
			} `json:"edges"`
		} `json:"xdt_api__v1__feed__user_timeline_graphql_connection"`
	} `json:"data"`
}

type profileResponse struct {
	Data struct {
		User *struct {
			FullName      string      `json:"full_name"`
			ID            platform.ID `json:"id"`
			Username      string      `json:"username"`
			ProfilePicURL string      `json:"profile_pic_url"`
			HDProfilePic  struct {
				URL string `json:"url"`
			} `json:"hd_profile_pic_url_info"`
		} `json:"user"`
	} `json:"data"`
}

// Adapter scrapes instagram.com
type Adapter struct {
	platform.Base
}

func New(opts platform.Options, log logger.Logger) *Adapter {
	return &Adapter{Base: platform.NewBase(models.Instagram, HomeURL, []string{Scope}, opts, log)}
}

func (a *Adapter) ProfileURL(username string) string {
	return HomeURL + username + "/"
}

// PostURL is the permalink of a post code
func PostURL(code string) string {
	return "https://www.instagram.com/p/" + code + "/"
}

func (a *Adapter) LoadProfile(ctx context.Context, s browser.Session, username string) (models.Profile, error) {
	docs := traffic.DecodeAll[profileResponse](traffic.Documents(s.Exchanges(), ProfileSignature, a.Log), a.Log)
	for _, d := range docs {
		u := d.Data.User
		if u == nil {
			continue
		}
		p := models.NewProfile(platform.CurrentURL(ctx, s, a.ProfileURL(username)), strings.TrimSpace(u.FullName), string(u.ID), time.Now())
		p.ProfilePicURL = u.HDProfilePic.URL
		if p.ProfilePicURL == "" {
			p.ProfilePicURL = u.ProfilePicURL
		}
		return p, nil
	}
	return models.Profile{}, platform.ErrProfileNotFound
}

func (a *Adapter) CollectRecords(exchanges []browser.Exchange) []models.Post {
	docs := traffic.DecodeAll[timelineResponse](traffic.Documents(exchanges, PostsSignature, a.Log), a.Log)

	var posts []models.Post
	for _, d := range docs {
		for _, edge := range d.Data.Connection.Edges {
			if post, ok := toPost(edge.Node); ok {
				posts = append(posts, post)
			} else {
				a.Log.DebugWithFields("Skipping post without media", map[string]interface{}{"code": edge.Node.Code})
			}
		}
	}
	return posts
}

func toPost(n mediaNode) (models.Post, bool) {
	if n.Code == "" {
		return models.Post{}, false
	}
	post := models.Post{URL: PostURL(n.Code), TakenAt: n.TakenAt}
	if len(n.CarouselMedia) == 0 {
		if u := n.ImageVersions2.First(); u != "" {
			post.Media = append(post.Media, models.Media{URL: u})
		}
	}
	for _, item := range n.CarouselMedia {
		if u := item.ImageVersions2.First(); u != "" {
			post.Media = append(post.Media, models.Media{URL: u, TakenAt: item.TakenAt})
		}
	}
	return post, len(post.Media) > 0
}
