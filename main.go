package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"cidash/internal/config"
	"cidash/internal/forge"
	"cidash/internal/logging"
	"cidash/internal/metrics"
	"cidash/internal/transport"
	"cidash/internal/tui"
	"cidash/internal/urlstore"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := rootCmd()
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		flags      config.Config
	)

	cmd := &cobra.Command{
		Use:   "cidash",
		Short: "Terminal dashboard for a Changes CI server",
		Long: `cidash browses the commits and builds of a Changes CI project.

Pagination, branch and search live in a shareable URL: press y to copy it,
or pass one back with --query to reopen the same view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, &flags)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", config.DefaultPath(), "Path to the YAML config file")
	f.StringVar(&flags.BaseURL, "base-url", "", "Root URL of the Changes server")
	f.StringVarP(&flags.Project, "project", "p", "", "Project slug to show")
	f.StringVar(&flags.Tab, "tab", "", `Initial tab, "commits" or "builds"`)
	f.StringVar(&flags.Query, "query", "", "Initial view query, e.g. branch=dev&page=2")
	f.IntVar(&flags.PerPage, "per-page", 0, "Rows per page")
	f.DurationVar(&flags.HTTPTimeout, "http-timeout", 0, "Timeout for each request")
	f.DurationVar(&flags.FailureGrace, "failure-grace", 0, "How long a failed request is remembered")
	f.BoolVar(&flags.LiveUpdate, "live", false, "Start with live updates on")
	f.DurationVar(&flags.LiveUpdateInterval, "live-interval", 0, "Polling interval for live updates")
	f.StringVar(&flags.LogFile, "log-file", "", "Write logs to this file")
	f.IntVarP(&flags.Verbosity, "verbosity", "v", 0, "Log verbosity (2 default, 4 debug, 5 trace)")
	f.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// applyFlags copies the flags the user actually set over cfg.
func applyFlags(cmd *cobra.Command, cfg, flags *config.Config) {
	set := cmd.Flags().Changed
	if set("base-url") {
		cfg.BaseURL = flags.BaseURL
	}
	if set("project") {
		cfg.Project = flags.Project
	}
	if set("tab") {
		cfg.Tab = flags.Tab
	}
	if set("query") {
		cfg.Query = flags.Query
	}
	if set("per-page") {
		cfg.PerPage = flags.PerPage
	}
	if set("http-timeout") {
		cfg.HTTPTimeout = flags.HTTPTimeout
	}
	if set("failure-grace") {
		cfg.FailureGrace = flags.FailureGrace
	}
	if set("live") {
		cfg.LiveUpdate = flags.LiveUpdate
	}
	if set("live-interval") {
		cfg.LiveUpdateInterval = flags.LiveUpdateInterval
	}
	if set("log-file") {
		cfg.LogFile = flags.LogFile
	}
	if set("verbosity") {
		cfg.Verbosity = flags.Verbosity
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = flags.MetricsAddr
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, flush, err := logging.New(cfg.LogFile, cfg.Verbosity)
	if err != nil {
		return err
	}
	defer flush()

	metrics.Register(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, logger)
		defer stop()
	}

	loader, err := transport.NewHTTP(cfg.BaseURL, cfg.HTTPTimeout, logger)
	if err != nil {
		return err
	}
	loc, err := urlstore.Parse(cfg.BaseURL)
	if err != nil {
		return err
	}
	loc.SetQuery(cfg.Query)
	loc.Watch(func(q string) {
		logger.V(logging.TRACE).Info("Location changed", "query", q)
	})

	m := tui.New(tui.Options{
		Forge:              forge.NewChanges(loader, logger),
		Transport:          loader,
		Location:           loc,
		BaseURL:            cfg.BaseURL,
		Project:            cfg.Project,
		Tab:                cfg.Tab,
		PerPage:            cfg.PerPage,
		FailureGrace:       cfg.FailureGrace,
		CacheCapacity:      cfg.CacheCapacity,
		LiveUpdate:         cfg.LiveUpdate,
		LiveUpdateInterval: cfg.LiveUpdateInterval,
		Logger:             logger,
	})

	logger.V(logging.DEFAULT).Info("Starting", "version", version, "base", cfg.BaseURL, "project", cfg.Project)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(tui.Model); ok {
		fm.Close()
	}
	if err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	fmt.Println(loc.String())
	return nil
}

func serveMetrics(addr string, logger logr.Logger) (stop func()) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(prometheus.DefaultGatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "Metrics server stopped", "addr", addr)
		}
	}()
	logger.V(logging.DEFAULT).Info("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
