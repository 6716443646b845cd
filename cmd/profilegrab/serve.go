package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"profilegrab/internal/scheduler"
	"profilegrab/internal/server"
	"profilegrab/pkg/metrics"
	"profilegrab/pkg/scraper"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scrape event stream over HTTP",
	Long: `Start the HTTP API and the watch scheduler.

Endpoints:
  GET /scrape-stream?platform=&username=       server-sent scrape events
  GET /api/check_user_exists?platform=&username=
  GET /api/users?platform=                     scraped users and their profiles
  GET /healthz
  GET /metrics                                 prometheus metrics

Profiles listed under 'watch' in the config file are re-scraped on their
cron schedule while the server runs.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: 127.0.0.1:5000)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(map[string]interface{}{"addr": serveAddr})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s, err := scraper.NewFromConfig(cfg, log, metrics.New(reg))
	if err != nil {
		return err
	}
	defer s.Close()

	sched := scheduler.New(s, log)
	if err := sched.AddAll(cfg.Watch); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	return server.New(cfg.Server, s, s.Storage(), reg, log).Run(ctx)
}
