// Package models holds the records that flow through a scrape run.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies one of the supported social platforms
type Platform string

const (
	Instagram Platform = "instagram"
	Threads   Platform = "threads"
	Facebook  Platform = "facebook"
)

// Platforms lists every supported platform in display order
var Platforms = []Platform{Instagram, Threads, Facebook}

// ParsePlatform maps user input onto a Platform
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported platform %q", s)
}

func (p Platform) String() string { return string(p) }

// TargetKey names one profile of a platform. Handles are case-insensitive
// on every supported platform, so the key is too.
func TargetKey(p Platform, username string) string {
	return string(p) + "/" + strings.ToLower(username)
}

// ProfileTimeLayout is the layout of Profile.Timestamp
const ProfileTimeLayout = "2006-01-02 15:04:05"

// Profile describes the scraped account. It is written once per run as info.json.
type Profile struct {
	URL           string `json:"url"`
	Name          string `json:"name"`
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	ProfilePicURL string `json:"profile_pic_url,omitempty"`
}

// NewProfile stamps a profile with the capture time
func NewProfile(url, name, id string, capturedAt time.Time) Profile {
	return Profile{
		URL:       url,
		Name:      name,
		ID:        id,
		Timestamp: capturedAt.Format(ProfileTimeLayout),
	}
}

// Post is one platform post as collected from traffic or the DOM.
// A post holds one media item, or several for a carousel or gallery.
type Post struct {
	URL     string
	TakenAt int64
	Media   []Media
}

// Media is one item of a post. A zero TakenAt inherits the post's.
type Media struct {
	URL     string
	TakenAt int64
}

// MediaRecord is one downloadable item. TakenAt is a unix timestamp, zero
// when the platform did not report one. The struct is comparable so exact
// duplicates can be dropped with a map.
type MediaRecord struct {
	MediaURL string
	PostURL  string
	TakenAt  int64
}

// HasTimestamp reports whether the platform supplied a capture time
func (r MediaRecord) HasTimestamp() bool {
	return r.TakenAt > 0
}

// HistoryEntry is one line of a user's download history
type HistoryEntry struct {
	PostURL  string
	Filename string
}

// Flatten expands posts into media records, one per media item
func Flatten(posts []Post) []MediaRecord {
	var out []MediaRecord
	for _, p := range posts {
		for _, m := range p.Media {
			if m.URL == "" {
				continue
			}
			takenAt := m.TakenAt
			if takenAt == 0 {
				takenAt = p.TakenAt
			}
			out = append(out, MediaRecord{MediaURL: m.URL, PostURL: p.URL, TakenAt: takenAt})
		}
	}
	return out
}
