package scraper

import (
	"profilegrab/internal/downloader"
	"profilegrab/pkg/models"
)

// MergeRecords appends DOM-harvested records to the traffic records,
// dropping any whose media file name the traffic already has. Traffic
// records come first since they carry timestamps the DOM lacks.
func MergeRecords(traffic, dom []models.MediaRecord) []models.MediaRecord {
	seen := make(map[string]struct{}, len(traffic))
	for _, r := range traffic {
		if name, err := downloader.Basename(r.MediaURL); err == nil {
			seen[name] = struct{}{}
		}
	}

	merged := append([]models.MediaRecord(nil), traffic...)
	for _, r := range dom {
		name, err := downloader.Basename(r.MediaURL)
		if err != nil {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		merged = append(merged, r)
	}
	return merged
}
