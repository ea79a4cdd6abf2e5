package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rewired-gh/uroflow/internal/models"
	"github.com/rewired-gh/uroflow/internal/service"
)

// printReport writes the replay summary, the completed events and the
// per-device statistics as of the last sample.
func printReport(w io.Writer, svc *service.Service, rep *replayReport, verbose bool) error {
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "UROFLOW REPLAY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Samples: %d read, %d accepted, %d rejected\n", rep.Lines, rep.Accepted, rep.Rejected)
	if rep.End.IsZero() {
		fmt.Fprintln(w, "No accepted samples.")
		return nil
	}
	fmt.Fprintf(w, "Last sample: %s\n", rep.End.In(svc.Location()).Format("2006-01-02 15:04:05 MST"))

	if verbose {
		printOutcomes(w, rep.Outcomes)
	} else {
		for _, o := range rep.Outcomes {
			if !o.Result.Success {
				fmt.Fprintf(w, "  line %d rejected: %s\n", o.Line, o.Result.Error)
			}
		}
	}

	printEvents(w, svc, rep.Events)

	for _, device := range rep.Devices {
		daily, err := svc.DailyStats(device, rep.End)
		if err != nil {
			return fmt.Errorf("daily stats for %s: %w", device, err)
		}
		patterns, err := svc.Patterns(device, rep.End)
		if err != nil {
			return fmt.Errorf("patterns for %s: %w", device, err)
		}
		printDevice(w, device, daily, patterns)
	}
	return nil
}

func printOutcomes(w io.Writer, outcomes []lineOutcome) {
	fmt.Fprintln(w, "\nSample outcomes:")
	for _, o := range outcomes {
		if !o.Result.Success {
			fmt.Fprintf(w, "  %4d  rejected  %s\n", o.Line, o.Result.Error)
			continue
		}
		rec := o.Result.Record
		seg := string(rec.Segment.Transition)
		if rec.Segment.Reason != "" {
			seg += " (" + rec.Segment.Reason + ")"
		}
		fmt.Fprintf(w, "  %4d  %-8s  %-24s  %s\n", o.Line, rec.DeviceID, seg, rec.Summary)
	}
}

func printEvents(w io.Writer, svc *service.Service, events []models.VoidingEvent) {
	fmt.Fprintf(w, "\nVoiding events (%d):\n", len(events))
	if len(events) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  DEVICE\tSTART\tDURATION\tVOLUME\tRATE\tPEAK")
	for _, e := range events {
		fmt.Fprintf(tw, "  %s\t%s\t%.0f s\t%.1f ml\t%.1f ml/s\t%.1f ml\n",
			e.DeviceID,
			e.StartTime.In(svc.Location()).Format("01-02 15:04:05"),
			e.Duration, e.TotalVolume, e.AverageFlowRate, e.PeakSample)
	}
	tw.Flush()
}

func printDevice(w io.Writer, device string, daily models.DailyStats, patterns models.PatternReport) {
	fmt.Fprintf(w, "\nDevice %s\n", device)
	fmt.Fprintln(w, strings.Repeat("-", 80))

	if daily.Empty {
		fmt.Fprintf(w, "  %s: no completed voids\n", daily.Date)
	} else {
		fmt.Fprintf(w, "  %s: %d voids, %.1f ml total (%.1f%% of goal)\n",
			daily.Date, daily.EventCount, daily.TotalVolume, daily.GoalPercentage)
		fmt.Fprintf(w, "    average %.1f ml, range %.1f-%.1f ml, interval %.1f h\n",
			daily.AverageVolume, daily.MinVolume, daily.MaxVolume, daily.AverageIntervalHours)
	}

	if patterns.InsufficientData {
		fmt.Fprintf(w, "  Patterns: %s\n", patterns.Message)
		return
	}
	fmt.Fprintf(w, "  Last 24h: %d voids, %.1f ml, %.1f ml average\n",
		patterns.Last24h.EventCount, patterns.Last24h.TotalVolume, patterns.Last24h.AverageVolume)
	fmt.Fprintf(w, "  Last 7d:  %d voids, %.1f ml/day\n",
		patterns.Last7d.EventCount, patterns.Last7d.DailyAverage)
	if len(patterns.Anomalies) == 0 {
		fmt.Fprintln(w, "  No volume anomalies")
		return
	}
	fmt.Fprintf(w, "  Anomalies (%d):\n", len(patterns.Anomalies))
	for _, a := range patterns.Anomalies {
		fmt.Fprintf(w, "    - %s\n", a.Message)
	}
}
