package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rewired-gh/uroflow/internal/models"
	"github.com/rewired-gh/uroflow/internal/service"
)

// lineOutcome is what happened to one input line.
type lineOutcome struct {
	Line   int
	Result models.IngestResult
}

// replayReport collects the results of one replay.
type replayReport struct {
	Lines    int
	Accepted int
	Rejected int
	Outcomes []lineOutcome
	Events   []models.VoidingEvent // in completion order
	Devices  []string
	End      time.Time // timestamp of the latest accepted sample
}

// replay ingests every line of r. Samples without a timestamp are stamped with
// the latest timestamp seen so far. Open events are flushed at the end as if
// the gap window had elapsed after the last sample.
func replay(r io.Reader, svc *service.Service, window time.Duration) (*replayReport, error) {
	ctx := context.Background()
	rep := &replayReport{}
	devices := make(map[string]bool)
	var clock time.Time

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rep.Lines++

		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(text), &raw); err != nil || raw == nil {
			rep.Rejected++
			rep.Outcomes = append(rep.Outcomes, lineOutcome{Line: line, Result: models.IngestResult{Error: "invalid JSON object"}})
			continue
		}

		receivedAt := clock
		if receivedAt.IsZero() {
			receivedAt = time.Unix(0, 0).UTC()
		}
		res := svc.Ingest(ctx, raw, receivedAt)
		rep.Outcomes = append(rep.Outcomes, lineOutcome{Line: line, Result: res})
		if !res.Success {
			rep.Rejected++
			continue
		}
		rep.Accepted++

		rec := res.Record
		devices[rec.DeviceID] = true
		if ts := rec.Reading.Sample.Timestamp; ts.After(clock) {
			clock = ts
		}
		if c := rec.Segment.Completed; c != nil {
			rep.Events = append(rep.Events, *c)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input at line %d: %w", line, err)
	}

	if !clock.IsZero() {
		rep.Events = append(rep.Events, svc.FlushIdle(ctx, clock.Add(window+time.Second))...)
	}
	rep.End = clock

	for id := range devices {
		rep.Devices = append(rep.Devices, id)
	}
	sort.Strings(rep.Devices)
	return rep, nil
}
