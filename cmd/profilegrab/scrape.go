package main

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"profilegrab/pkg/browser"
	"profilegrab/pkg/config"
	"profilegrab/pkg/events"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
	"profilegrab/pkg/scraper"
	"profilegrab/pkg/ui"
	"profilegrab/pkg/ui/tui"
)

var (
	outputDir     string
	concurrent    int
	headed        bool
	noDOMFallback bool
	useTUI        bool
	jsonOutput    bool
	notify        bool
	harOut        string
	replayFile    string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <platform> <username>...",
	Short: "Download the media of one or more profiles",
	Long: `Scrape each username on the platform in turn and download its media.

Supported platforms: instagram, threads, facebook. Cookies for the platform
must have been imported with 'profilegrab session import' first.

Progress is printed as it happens. With --json every event is written to
stdout as one JSON object per line instead.`,
	Example: `  # Download a profile with the default settings
  profilegrab scrape instagram natgeo

  # Several users, shown in the terminal UI
  profilegrab scrape threads alice bob --tui

  # Machine-readable event stream
  profilegrab scrape facebook someone --json

  # Capture the page traffic for offline debugging, then replay it
  profilegrab scrape instagram natgeo --har-out natgeo.har
  profilegrab scrape instagram natgeo --replay natgeo.har`,
	Args: cobra.MinimumNArgs(2),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "working root for downloads (default: CloudStorage)")
	scrapeCmd.Flags().IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads (default: 10)")
	scrapeCmd.Flags().BoolVar(&headed, "headed", false, "show the browser window")
	scrapeCmd.Flags().BoolVar(&noDOMFallback, "no-dom-fallback", false, "only use API traffic, never harvest rendered pages")
	scrapeCmd.Flags().BoolVar(&useTUI, "tui", false, "use the interactive terminal UI")
	scrapeCmd.Flags().BoolVar(&jsonOutput, "json", false, "write events as JSON lines to stdout")
	scrapeCmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification when each run finishes")
	scrapeCmd.Flags().StringVar(&harOut, "har-out", "", "write the captured traffic to this HAR file")
	scrapeCmd.Flags().StringVar(&replayFile, "replay", "", "replay traffic from a HAR file instead of starting a browser")
	scrapeCmd.MarkFlagsMutuallyExclusive("tui", "json")
}

func scrapeFlags() map[string]interface{} {
	return map[string]interface{}{
		"output":          outputDir,
		"concurrent":      concurrent,
		"headed":          headed,
		"no-dom-fallback": noDOMFallback,
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	p, err := models.ParsePlatform(args[0])
	if err != nil {
		return err
	}
	usernames := args[1:]

	cfg, log, err := loadConfig(scrapeFlags())
	if err != nil {
		return err
	}
	if useTUI && cfg.Logging.File == "" {
		// the full screen UI owns the terminal
		log = logger.NewNopLogger()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, err := browserFactory(cfg, log)
	if err != nil {
		return err
	}
	var capture *browser.Capture
	if harOut != "" {
		capture = browser.NewCapture()
		factory = capturing(factory, capture)
	}

	s, err := scraper.NewFromConfig(cfg, log, nil, scraper.WithBrowserFactory(factory))
	if err != nil {
		return err
	}
	defer s.Close()

	var failures int
	if useTUI {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stream := events.Channel(runCtx, s.ScrapeUsers(runCtx, p, usernames))
		failures, err = tui.Run(ctx, p, usernames, stream, cancel)
		if err != nil {
			return err
		}
	} else {
		if !jsonOutput {
			ui.PrintLogo(os.Stdout)
			ui.PrintInfo(os.Stdout, "Output", cfg.Output.WorkingRoot)
		}
		failures, err = forwardEvents(s.ScrapeUsers(ctx, p, usernames), outputEmitter(p))
		if err != nil {
			return err
		}
	}

	if capture != nil {
		if err := writeHAR(harOut, capture); err != nil {
			return err
		}
		log.WithField("file", harOut).Info("traffic capture written")
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d runs failed", failures, len(usernames))
	}
	return nil
}

func outputEmitter(p models.Platform) events.Emitter {
	var out events.Emitter = ui.NewPrinter(os.Stdout)
	if jsonOutput {
		out = events.NewLineEmitter(os.Stdout)
	}
	if notify {
		return events.Multi(out, ui.NewNotifier(ui.DefaultSender(), "profilegrab "+string(p)))
	}
	return out
}

// forwardEvents sends every event to em and counts the failed runs
func forwardEvents(stream iter.Seq[events.Event], em events.Emitter) (int, error) {
	failures := 0
	counter := events.EmitterFunc(func(e events.Event) error {
		if e.Type == events.TypeError {
			failures++
		}
		return nil
	})
	_, err := events.Forward(stream, events.Multi(em, counter))
	return failures, err
}

// browserFactory starts Chrome, or serves the HAR given by --replay
func browserFactory(cfg *config.Config, log logger.Logger) (scraper.BrowserFactory, error) {
	if replayFile == "" {
		return scraper.ChromeFactory(cfg.Browser, log), nil
	}
	data, err := os.ReadFile(replayFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	return func(ctx context.Context) (browser.Session, error) {
		return browser.NewReplay(bytes.NewReader(data))
	}, nil
}

func capturing(next scraper.BrowserFactory, capture *browser.Capture) scraper.BrowserFactory {
	return func(ctx context.Context) (browser.Session, error) {
		s, err := next(ctx)
		if err != nil {
			return nil, err
		}
		return capture.Wrap(s), nil
	}
}

func writeHAR(path string, capture *browser.Capture) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create HAR file: %w", err)
	}
	if err := capture.WriteHAR(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write HAR file: %w", err)
	}
	return f.Close()
}
