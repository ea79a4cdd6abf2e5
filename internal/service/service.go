// Package service runs the sample pipeline: normalize, segment, persist, assess,
// advise and alert. It also answers the history queries behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/uroflow/internal/assessment"
	"github.com/rewired-gh/uroflow/internal/ingest"
	"github.com/rewired-gh/uroflow/internal/logger"
	"github.com/rewired-gh/uroflow/internal/metrics"
	"github.com/rewired-gh/uroflow/internal/models"
	"github.com/rewired-gh/uroflow/internal/monitor"
	"github.com/rewired-gh/uroflow/internal/segmenter"
	"github.com/rewired-gh/uroflow/internal/storage"
)

// Advisor produces advisory text for a processed reading.
type Advisor interface {
	Advise(ctx context.Context, summary models.AdvisorySummary) *models.AdvisoryResult
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// EventPublisher forwards completed events downstream.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event models.VoidingEvent) (string, error)
}

// Options holds the engine thresholds.
type Options struct {
	Segmenter     segmenter.Config
	Monitor       monitor.Config
	Volume        ingest.VolumePolicy
	Thresholds    assessment.Thresholds
	AlertCooldown time.Duration
	Location      *time.Location // calendar used for daily buckets; defaults to time.Local
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		Segmenter:     segmenter.DefaultConfig(),
		Monitor:       monitor.DefaultConfig(),
		Volume:        ingest.DefaultVolumePolicy(),
		Thresholds:    assessment.DefaultThresholds(),
		AlertCooldown: 6 * time.Hour,
		Location:      time.Local,
	}
}

// Dependencies are the optional side channels. Nil fields are disabled.
type Dependencies struct {
	Advisor   Advisor
	Notifier  Notifier
	Publisher EventPublisher
}

// Service is safe for concurrent use. Samples of one device are segmented in
// arrival order.
type Service struct {
	store      *storage.Storage
	registry   *segmenter.Registry
	monitor    *monitor.Monitor
	normalizer *ingest.Normalizer
	opts       Options
	deps       Dependencies

	mu         sync.Mutex
	riskAlerts map[string]time.Time // device -> last high-risk alert

	alerts    sync.WaitGroup
	startedAt time.Time
}

// New creates a service over store.
func New(store *storage.Storage, opts Options, deps Dependencies) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		store:      store,
		registry:   segmenter.NewRegistry(opts.Segmenter),
		monitor:    monitor.New(opts.Monitor),
		normalizer: ingest.NewNormalizer(opts.Volume),
		opts:       opts,
		deps:       deps,
		riskAlerts: make(map[string]time.Time),
		startedAt:  time.Now(),
	}
}

// Close waits for in-flight alert deliveries.
func (s *Service) Close() {
	s.alerts.Wait()
}

// AdvisorEnabled reports whether advisory text is requested.
func (s *Service) AdvisorEnabled() bool {
	return s.deps.Advisor != nil
}

// Ingest runs one raw sample through the pipeline. Malformed samples are
// rejected without touching any state.
func (s *Service) Ingest(ctx context.Context, raw map[string]interface{}, receivedAt time.Time) models.IngestResult {
	started := time.Now()
	defer func() { metrics.ProcessingTime.Observe(time.Since(started).Seconds()) }()

	reading, err := s.normalizer.Normalize(raw, receivedAt)
	if err != nil {
		metrics.SamplesIngested.WithLabelValues("rejected").Inc()
		res := models.IngestResult{Error: err.Error()}
		var fe *ingest.FieldError
		if errors.As(err, &fe) {
			res.Field = fe.Field
		}
		logger.Warn("Rejected sample: %v", err)
		return res
	}

	deviceID := reading.Sample.DeviceID
	now := reading.Sample.Timestamp.In(s.opts.Location)

	var outcome models.SegmentOutcome
	if reading.HasVolume() {
		outcome = s.registry.Process(deviceID, reading.Sample.Timestamp, receivedAt, reading.Volume)
	} else {
		outcome = models.SegmentOutcome{Transition: models.TransitionIgnored, Reason: segmenter.ReasonNoVolume}
	}
	metrics.SegmentTransitions.WithLabelValues(string(outcome.Transition)).Inc()

	if outcome.Completed != nil {
		s.completeEvent(ctx, *outcome.Completed)
		reading.Warnings = append(reading.Warnings, fmt.Sprintf("Voiding event completed: %.1f ml over %.0f s",
			outcome.Completed.TotalVolume, outcome.Completed.Duration))
	}

	history := s.history(deviceID)

	var current *float64
	if reading.HasVolume() {
		v := reading.Volume
		current = &v
	}
	volume := s.evaluate(current, history, now)
	if c := outcome.Completed; c != nil {
		countAnomalies(*c, volume.Patterns.Anomalies)
	}

	assessed := assessment.Assess(reading, s.opts.Thresholds)

	var advisory *models.AdvisoryResult
	if s.deps.Advisor != nil {
		advisory = s.deps.Advisor.Advise(ctx, models.AdvisorySummary{
			DeviceID:      deviceID,
			Timestamp:     reading.Sample.Timestamp,
			Color:         reading.Color,
			Chemistry:     reading.Chemistry,
			CurrentVolume: current,
			Daily:         volume.Daily,
			Patterns:      volume.Patterns,
			Assessment:    assessed,
			VolumeAlerts:  volume.Alerts,
		})
		if advisory != nil && advisory.Success {
			if err := s.store.SaveAdvisory(deviceID, advisory); err != nil {
				logger.Warn("Failed to save advisory for %s: %v", deviceID, err)
			}
		}
	}

	record := &models.SampleRecord{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		ReceivedAt: receivedAt,
		Reading:    reading,
		Segment:    outcome,
		Assessment: assessed,
		Volume:     volume,
		Advisory:   advisory,
		Summary:    assessment.Summarize(assessed, reading.Color, volume, advisory),
	}
	if err := s.store.AddRecord(record); err != nil {
		logger.Error("Failed to store record for %s: %v", deviceID, err)
	}

	metrics.SamplesIngested.WithLabelValues("accepted").Inc()
	metrics.RiskLevels.WithLabelValues(string(assessed.RiskLevel)).Inc()
	if reading.Color != nil && reading.Color.Success {
		metrics.ColorCategories.WithLabelValues(string(reading.Color.ColorName)).Inc()
	}

	if assessed.RiskLevel == models.RiskHigh {
		s.alertHighRisk(ctx, deviceID, now, assessed)
	}
	if outcome.Completed != nil {
		s.alertAnomalies(ctx, deviceID, now, volume.Patterns.Anomalies)
	}

	logger.Debug("Sample from %s processed: transition=%s risk=%s", deviceID, outcome.Transition, assessed.RiskLevel)
	return models.IngestResult{Success: true, Record: record}
}

// history loads the device's stored events. Rotation bounds its length.
func (s *Service) history(deviceID string) []models.VoidingEvent {
	events, err := s.store.GetEvents(deviceID)
	if err != nil {
		logger.Error("Failed to load history for %s: %v", deviceID, err)
		return nil
	}
	return events
}

func (s *Service) evaluate(current *float64, history []models.VoidingEvent, now time.Time) models.VolumeAssessment {
	volume, eventErrs := s.monitor.Evaluate(current, history, now)
	for _, e := range eventErrs {
		logger.Warn("Skipping stored event: %v", e)
	}
	return volume
}

func countAnomalies(event models.VoidingEvent, anomalies []models.Anomaly) {
	for _, a := range anomalies {
		if a.EventID == event.ID {
			metrics.Anomalies.WithLabelValues(string(a.Type)).Inc()
		}
	}
}

// completeEvent persists and publishes a closed event. It reports whether the
// event was stored.
func (s *Service) completeEvent(ctx context.Context, event models.VoidingEvent) bool {
	if err := s.store.AddEvent(&event); err != nil {
		logger.Error("Failed to store event %s: %v", event.ID, err)
		return false
	}
	metrics.EventsCompleted.Inc()
	metrics.EventVolume.Observe(event.TotalVolume)
	logger.Info("Voiding event %s on %s: %.1f ml over %.1f s", event.ID, event.DeviceID, event.TotalVolume, event.Duration)

	if s.deps.Publisher == nil {
		return true
	}
	if _, err := s.deps.Publisher.PublishEvent(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues("failure").Inc()
		logger.Warn("Failed to publish event %s: %v", event.ID, err)
		return true
	}
	metrics.EventsPublished.WithLabelValues("success").Inc()
	return true
}

// alertHighRisk sends a critical alert unless one went out for the device within
// the alert cooldown.
func (s *Service) alertHighRisk(ctx context.Context, deviceID string, now time.Time, a models.Assessment) {
	if s.deps.Notifier == nil {
		return
	}

	s.mu.Lock()
	last, seen := s.riskAlerts[deviceID]
	due := !seen || now.Sub(last) >= s.opts.AlertCooldown
	if due {
		s.riskAlerts[deviceID] = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	s.dispatch(ctx, models.Alert{
		DeviceID: deviceID,
		Severity: models.SeverityCritical,
		Title:    "High risk urine reading",
		Details:  append([]string{assessment.Describe(a.RiskLevel)}, a.KeyFindings...),
		Time:     now,
	})
}

// alertAnomalies sends one warning for the anomalies not already alerted within
// the cooldown.
func (s *Service) alertAnomalies(ctx context.Context, deviceID string, now time.Time, anomalies []models.Anomaly) {
	if s.deps.Notifier == nil || len(anomalies) == 0 {
		return
	}
	fresh := s.monitor.ClaimAlerts(deviceID, anomalies, s.opts.AlertCooldown, now)
	if len(fresh) == 0 {
		return
	}

	details := make([]string, 0, len(fresh))
	for _, an := range fresh {
		details = append(details, an.Message)
	}
	s.dispatch(ctx, models.Alert{
		DeviceID: deviceID,
		Severity: models.SeverityWarning,
		Title:    "Voiding volume anomaly",
		Details:  details,
		Time:     now,
	})
}

// dispatch delivers an alert in the background so retries never block ingestion.
func (s *Service) dispatch(ctx context.Context, alert models.Alert) {
	s.alerts.Add(1)
	go func() {
		defer s.alerts.Done()
		if err := s.deps.Notifier.Notify(context.WithoutCancel(ctx), alert); err != nil {
			metrics.AlertsSent.WithLabelValues(string(alert.Severity), "failure").Inc()
			logger.Error("Failed to send %s alert for %s: %v", alert.Severity, alert.DeviceID, err)
			return
		}
		metrics.AlertsSent.WithLabelValues(string(alert.Severity), "success").Inc()
		logger.Info("Sent %s alert for %s: %s", alert.Severity, alert.DeviceID, alert.Title)
	}()
}

// FlushIdle closes every open event whose last sample was received more than the
// gap window before now, then stores, publishes and checks each one for volume
// anomalies as of its end time.
func (s *Service) FlushIdle(ctx context.Context, now time.Time) []models.VoidingEvent {
	closed := s.registry.FlushIdle(now)
	for _, e := range closed {
		if !s.completeEvent(ctx, e) {
			continue
		}
		at := e.EndTime.In(s.opts.Location)
		volume := s.evaluate(nil, s.history(e.DeviceID), at)
		countAnomalies(e, volume.Patterns.Anomalies)
		s.alertAnomalies(ctx, e.DeviceID, at, volume.Patterns.Anomalies)
	}

	open := 0
	for _, id := range s.registry.Devices() {
		if s.registry.Current(id) != nil {
			open++
		}
	}
	metrics.OpenEvents.Set(float64(open))
	return closed
}

// Rotate trims stored history to the configured maxima.
func (s *Service) Rotate() error {
	events, err := s.store.RotateEvents()
	if err != nil {
		return err
	}
	records, err := s.store.RotateRecords()
	if err != nil {
		return err
	}
	if events > 0 || records > 0 {
		logger.Debug("Rotated %d events and %d records", events, records)
	}
	return nil
}
