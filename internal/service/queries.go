package service

import (
	"errors"
	"time"

	"github.com/rewired-gh/uroflow/internal/export"
	"github.com/rewired-gh/uroflow/internal/models"
	"github.com/rewired-gh/uroflow/internal/monitor"
	"github.com/rewired-gh/uroflow/internal/storage"
)

// Query limits.
const (
	MaxEventsLimit  = 200
	MaxHistoryLimit = 100
)

// ErrNotFound is returned when a query has no result yet.
var ErrNotFound = storage.ErrNotFound

// Status is the service summary served on /status.
type Status struct {
	Status        string                `json:"status"`
	StartedAt     time.Time             `json:"started_at"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	TotalSamples  int                   `json:"total_samples"`
	TotalEvents   int                   `json:"total_events"`
	OpenEvents    []models.VoidingEvent `json:"open_events"`
	Devices       []models.DeviceStatus `json:"devices"`
	Advisor       AdvisorStatus         `json:"advisor"`
}

// AdvisorStatus reports advisory usage.
type AdvisorStatus struct {
	Enabled             bool    `json:"enabled"`
	TotalRequests       int     `json:"total_requests"`
	SuccessfulRequests  int     `json:"successful_requests"`
	AverageResponseTime float64 `json:"avg_response_time"`
}

// advisorStats is implemented by advisors that keep request counters.
type advisorStats interface {
	Counters() (total, successful int, avgSeconds float64)
}

// Location returns the calendar used for daily buckets.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// DailyStats summarizes the device's events on day's calendar date.
func (s *Service) DailyStats(deviceID string, day time.Time) (models.DailyStats, error) {
	day = day.In(s.opts.Location)
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location)

	events, err := s.store.GetEventsSince(deviceID, from)
	if err != nil {
		return models.DailyStats{}, err
	}
	return monitor.CalculateDailyStats(events, day, s.opts.Monitor), nil
}

// PeriodStats summarizes the trailing days ending on now's date.
func (s *Service) PeriodStats(deviceID string, days int, now time.Time) (models.PeriodStats, error) {
	if days > monitor.MaxPeriodDays {
		days = monitor.MaxPeriodDays
	}
	now = now.In(s.opts.Location)
	events, err := s.store.GetEventsSince(deviceID, now.AddDate(0, 0, -days-1))
	if err != nil {
		return models.PeriodStats{}, err
	}
	return monitor.PeriodStats(events, now, days), nil
}

// Patterns analyses the device's events at now. The minimum-history gate counts
// every stored event; the windows only look at recent ones.
func (s *Service) Patterns(deviceID string, now time.Time) (models.PatternReport, error) {
	now = now.In(s.opts.Location)
	events, err := s.store.GetEvents(deviceID)
	if err != nil {
		return models.PatternReport{}, err
	}
	return monitor.AnalyzePatterns(events, now, s.opts.Monitor), nil
}

// Events returns at most limit completed events, newest first.
func (s *Service) Events(deviceID string, limit int) ([]models.VoidingEvent, error) {
	return s.store.GetRecentEvents(deviceID, clamp(limit, 1, MaxEventsLimit))
}

// CurrentEvent returns the device's open event, or nil.
func (s *Service) CurrentEvent(deviceID string) *models.VoidingEvent {
	return s.registry.Current(deviceID)
}

// Latest returns the most recent record.
func (s *Service) Latest(deviceID string) (*models.SampleRecord, error) {
	return s.store.LatestRecord(deviceID)
}

// History returns at most limit records, newest first.
func (s *Service) History(deviceID string, limit int) ([]models.SampleRecord, error) {
	return s.store.GetRecentRecords(deviceID, clamp(limit, 1, MaxHistoryLimit))
}

// LatestAdvisory returns the most recent successful advisory.
func (s *Service) LatestAdvisory() (*models.AdvisoryResult, error) {
	return s.store.LatestAdvisory()
}

// Status summarises the service state at now.
func (s *Service) Status(now time.Time) (Status, error) {
	samples, err := s.store.CountRecords()
	if err != nil {
		return Status{}, err
	}
	events, err := s.store.CountEvents()
	if err != nil {
		return Status{}, err
	}
	devices, err := s.store.DeviceStatuses()
	if err != nil {
		return Status{}, err
	}

	open := []models.VoidingEvent{}
	for _, id := range s.registry.Devices() {
		if e := s.registry.Current(id); e != nil {
			open = append(open, *e)
		}
	}

	st := Status{
		Status:        "running",
		StartedAt:     s.startedAt,
		UptimeSeconds: now.Sub(s.startedAt).Seconds(),
		TotalSamples:  samples,
		TotalEvents:   events,
		OpenEvents:    open,
		Devices:       devices,
		Advisor:       AdvisorStatus{Enabled: s.AdvisorEnabled()},
	}
	if a, ok := s.deps.Advisor.(advisorStats); ok {
		st.Advisor.TotalRequests, st.Advisor.SuccessfulRequests, st.Advisor.AverageResponseTime = a.Counters()
	}
	return st, nil
}

// Export renders the device's events and per-day totals for the trailing days
// as an XLSX workbook.
func (s *Service) Export(deviceID string, days int, now time.Time) ([]byte, error) {
	period, err := s.PeriodStats(deviceID, days, now)
	if err != nil {
		return nil, err
	}
	events, err := s.store.GetEventsSince(deviceID, period.From)
	if err != nil {
		return nil, err
	}
	return export.Workbook(events, period, s.opts.Location)
}

// IsNotFound reports whether err means "no data yet".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
