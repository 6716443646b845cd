package downloader

import (
	"fmt"
	"net/url"
	"path"
	"time"

	"profilegrab/pkg/models"
)

// TimestampLayout prefixes filenames of records that carry taken_at
const TimestampLayout = "20060102_150405"

// Basename returns the final path segment of a media URL without its query
func Basename(mediaURL string) (string, error) {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return "", fmt.Errorf("invalid media url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("media url %q has no file name", mediaURL)
	}
	return name, nil
}

// Filename derives the on-disk name: YYYYMMDD_HHMMSS_<basename> in UTC when
// the record has a timestamp, the bare basename otherwise
func Filename(r models.MediaRecord) (string, error) {
	base, err := Basename(r.MediaURL)
	if err != nil {
		return "", err
	}
	if !r.HasTimestamp() {
		return base, nil
	}
	return time.Unix(r.TakenAt, 0).UTC().Format(TimestampLayout) + "_" + base, nil
}

// Dedupe drops exact duplicate records, keeping first-seen order
func Dedupe(records []models.MediaRecord) []models.MediaRecord {
	seen := make(map[models.MediaRecord]struct{}, len(records))
	out := make([]models.MediaRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
