// Package segmenter turns a per-device stream of timestamped volume samples into
// discrete voiding events.
//
// Each device stream is a two-state machine. IDLE becomes OPEN on the first sample at
// or above the minimum volume. While OPEN, a qualifying sample within the gap window
// of the previous qualifying sample extends the event; a larger gap closes the event
// and the sample is re-evaluated from IDLE.
package segmenter

import (
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/uroflow/internal/models"
)

// State is the segmentation state of one device stream.
type State string

const (
	StateIdle State = "idle"
	StateOpen State = "open"
)

// Ignore reasons reported on SegmentOutcome.Reason.
const (
	ReasonBelowMinimum = "below_minimum_volume"
	ReasonAboveMaximum = "above_maximum_volume"
	ReasonOutOfOrder   = "out_of_order"
	ReasonNoVolume     = "no_volume" // sample carried neither a volume nor a flow rate
)

// Config holds the segmentation thresholds.
type Config struct {
	Window    time.Duration // maximum gap between consecutive samples of one event
	MinVolume float64       // samples below this are ignored
	MaxVolume float64       // samples above this are ignored as implausible; 0 disables
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{Window: 5 * time.Second, MinVolume: 50, MaxVolume: 800}
}

// eventNamespace scopes derived event IDs.
var eventNamespace = uuid.MustParse("6f1c8a52-3d0e-4b7a-9c55-2a7d1e9b4f10")

// EventID derives a stable identifier from the device and start time, so replaying
// the same samples yields the same IDs.
func EventID(deviceID string, start time.Time) string {
	return uuid.NewSHA1(eventNamespace, []byte(deviceID+"|"+start.UTC().Format(time.RFC3339Nano))).String()
}

// Segmenter is the state of one device stream. It is not safe for concurrent use;
// Registry serializes access per device.
type Segmenter struct {
	deviceID string
	cfg      Config
	open     *models.VoidingEvent
	last     time.Time // time of the last qualifying sample
}

// New creates an idle segmenter for one device.
func New(deviceID string, cfg Config) *Segmenter {
	return &Segmenter{deviceID: deviceID, cfg: cfg}
}

// State reports whether an event is open.
func (s *Segmenter) State() State {
	if s.open != nil {
		return StateOpen
	}
	return StateIdle
}

// Current returns a copy of the open event, or nil when idle.
func (s *Segmenter) Current() *models.VoidingEvent {
	if s.open == nil {
		return nil
	}
	c := s.open.Clone()
	return &c
}

// Process applies one sample. Ignored samples leave the state untouched.
func (s *Segmenter) Process(t time.Time, volume float64) models.SegmentOutcome {
	if volume < s.cfg.MinVolume {
		return s.ignored(volume, ReasonBelowMinimum)
	}
	if s.cfg.MaxVolume > 0 && volume > s.cfg.MaxVolume {
		return s.ignored(volume, ReasonAboveMaximum)
	}
	if s.open != nil && t.Before(s.last) {
		return s.ignored(volume, ReasonOutOfOrder)
	}

	out := models.SegmentOutcome{Detected: true, Volume: volume}

	if s.open != nil {
		if t.Sub(s.last) <= s.cfg.Window {
			s.extend(t, volume)
			out.Transition = models.TransitionContinuing
			out.Open = s.Current()
			return out
		}
		closed := s.close()
		out.Completed = &closed
	}

	s.start(t, volume)
	if out.Completed != nil {
		out.Transition = models.TransitionCompleted
	} else {
		out.Transition = models.TransitionStarted
	}
	out.Open = s.Current()
	return out
}

// Flush closes the open event regardless of timing. It returns nil when idle.
func (s *Segmenter) Flush() *models.VoidingEvent {
	if s.open == nil {
		return nil
	}
	closed := s.close()
	return &closed
}

func (s *Segmenter) ignored(volume float64, reason string) models.SegmentOutcome {
	return models.SegmentOutcome{
		Detected:   false,
		Transition: models.TransitionIgnored,
		Volume:     volume,
		Reason:     reason,
		Open:       s.Current(),
	}
}

func (s *Segmenter) start(t time.Time, volume float64) {
	s.open = &models.VoidingEvent{
		ID:          EventID(s.deviceID, t),
		DeviceID:    s.deviceID,
		StartTime:   t,
		TotalVolume: volume,
		PeakSample:  volume,
		FlowSamples: []models.FlowSample{{Time: t, Volume: volume}},
	}
	s.last = t
}

func (s *Segmenter) extend(t time.Time, volume float64) {
	s.open.TotalVolume += volume
	if volume > s.open.PeakSample {
		s.open.PeakSample = volume
	}
	s.open.FlowSamples = append(s.open.FlowSamples, models.FlowSample{Time: t, Volume: volume})
	s.last = t
}

// close finalizes the open event at its last sample and returns it.
func (s *Segmenter) close() models.VoidingEvent {
	e := s.open
	end := s.last
	e.EndTime = &end
	e.Duration = end.Sub(e.StartTime).Seconds()
	if e.Duration > 0 {
		e.AverageFlowRate = e.TotalVolume / e.Duration
	}
	s.open = nil
	return *e
}
