// Package scraper runs the scrape-and-ingest pipeline for one profile.
//
// A run walks a fixed sequence of states:
//
//	INIT -> AUTHENTICATING -> PROFILE_LOADED -> SCROLLING -> EXTRACTING -> DOWNLOADING -> DONE
//
// and any failure moves it to ERROR. The pipeline is the same for every
// platform; a platform.Adapter supplies the URLs and the parsing.
//
// Usage:
//
//	s, err := scraper.NewFromConfig(cfg, log, nil)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	for ev := range s.Scrape(ctx, models.Instagram, "someone") {
//	    fmt.Println(ev.Type, ev.Message())
//	}
//
// Every run ends with exactly one done or error event. Navigation is
// single-threaded; only the download phase runs concurrently.
package scraper
