// Command replay feeds a JSON-lines sample log through the analysis engine
// offline and prints the resulting voiding events, daily statistics and
// pattern report. Timestamps come from the samples, so a replay of the same
// log always prints the same report.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/rewired-gh/uroflow/internal/config"
	"github.com/rewired-gh/uroflow/internal/logger"
	"github.com/rewired-gh/uroflow/internal/service"
	"github.com/rewired-gh/uroflow/internal/storage"
)

var (
	configPath = flag.String("config", "", "Optional configuration file for analysis thresholds")
	inputPath  = flag.String("input", "-", "JSON-lines sample log, - for stdin")
	tz         = flag.String("tz", "UTC", "Time zone used for daily buckets")
	verbose    = flag.Bool("v", false, "Print every sample outcome")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *verbose {
		logger.Init("debug", "text")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatalf("Unknown time zone %q: %v", *tz, err)
	}

	var in io.Reader = os.Stdin
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	store, err := storage.New(cfg.Storage.MaxEvents, cfg.Storage.MaxRecords, ":memory:")
	if err != nil {
		log.Fatalf("Failed to open in-memory storage: %v", err)
	}
	defer store.Close()

	svc := service.New(store, service.Options{
		Segmenter:     cfg.Analysis.SegmenterConfig(),
		Monitor:       cfg.Analysis.MonitorConfig(),
		Volume:        cfg.Analysis.VolumePolicy(),
		Thresholds:    cfg.Analysis.Thresholds(),
		AlertCooldown: cfg.Analysis.AlertCooldown,
		Location:      loc,
	}, service.Dependencies{})

	rep, err := replay(in, svc, cfg.Analysis.EventWindow)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	if err := printReport(os.Stdout, svc, rep, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print report: %v\n", err)
		os.Exit(1)
	}
}
