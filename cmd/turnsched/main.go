package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/robfig/cron/v3"

	"turnsched/internal/config"
	"turnsched/internal/ics"
	appLog "turnsched/internal/log"
	"turnsched/internal/model"
	"turnsched/internal/schedule"
	"turnsched/internal/store"
	"turnsched/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("turnsched starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides the config file if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"data_dir", conf.DataDir,
		"horizon_days", conf.HorizonDays,
		"unit_count", len(conf.Units),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st, err := store.Open(filepath.Join(conf.DataDir, "bookings"))
	if err != nil {
		appLog.Error("failed to open booking store", err, "data_dir", conf.DataDir)
		os.Exit(1)
	}
	defer st.Close()

	fetcher := ics.NewFetcher(filepath.Join(conf.DataDir, "feed-cache"))
	svc := schedule.NewService(conf, st, fetcher)

	if flags.once {
		os.Exit(runOnce(ctx, svc))
	}

	// Periodic batch reconciliation; the web layer also refreshes
	// through its own TTL cache, so a missed tick only delays data.
	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		if _, err := svc.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	// Warm the store once at boot so the first UI request is fast.
	go func() {
		if _, err := svc.Refresh(ctx); err != nil {
			appLog.Error("initial refresh failed", err)
		}
	}()

	srv := web.NewServer(conf, svc)
	if err := srv.Run(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}

	appLog.Info("turnsched exiting")
}

// runOnce performs a single batch reconciliation and prints the
// aggregated schedule as a table. Returns the process exit code.
func runOnce(ctx context.Context, svc *schedule.Service) int {
	report, err := svc.Refresh(ctx)
	if err != nil {
		appLog.Error("reconciliation run failed", err)
		return 1
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HOT\tUNIT\tCHECK-OUT\tNEXT CHECK-IN\tCLEANER")
	for _, ci := range report.Intervals {
		hot := ""
		if ci.HotBed {
			hot = "!"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			hot, ci.Unit, model.FormatDate(ci.CheckOut), model.FormatDate(ci.NextCheckIn), ci.Cleaner)
	}
	w.Flush()

	for _, fu := range report.Failures {
		fmt.Fprintf(os.Stderr, "unit %s failed: %v\n", fu.Unit, fu.Err)
	}
	return 0
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/turnsched/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one reconciliation pass, print the schedule, and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
