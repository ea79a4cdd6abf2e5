// Package ingest coerces raw device payloads into samples and normalizes them into
// readings with a canonical volume, colour classification and device warnings.
package ingest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/rewired-gh/uroflow/internal/models"
)

// DefaultDeviceID is used when a payload carries no device_id.
const DefaultDeviceID = "unknown"

// FieldError reports a malformed payload field.
type FieldError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %q (%v): %s", e.Field, e.Value, e.Reason)
}

// Parse coerces a decoded JSON payload into a sample. Numeric fields accept numbers
// or numeric strings; unknown fields are ignored. receivedAt is used when the payload
// timestamp is missing or not an absolute time. The returned warnings describe
// tolerated irregularities.
func Parse(raw map[string]interface{}, receivedAt time.Time) (models.Sample, []string, error) {
	var warnings []string
	s := models.Sample{DeviceID: DefaultDeviceID}

	if v, ok := present(raw, "device_id"); ok {
		id, err := cast.ToStringE(v)
		if err != nil {
			return models.Sample{}, nil, &FieldError{Field: "device_id", Value: v, Reason: "must be a string"}
		}
		if id = strings.TrimSpace(id); id != "" {
			s.DeviceID = id
		}
	}

	ts, ok := parseTimestamp(raw["timestamp"], receivedAt)
	if !ok && raw["timestamp"] != nil {
		warnings = append(warnings, fmt.Sprintf("timestamp %v is not an absolute time, using receipt time", raw["timestamp"]))
	}
	s.Timestamp = ts

	if v, ok := present(raw, "color_rgb"); ok {
		rgb, err := cast.ToStringE(v)
		if err != nil {
			return models.Sample{}, nil, &FieldError{Field: "color_rgb", Value: v, Reason: "must be an \"R,G,B\" string"}
		}
		s.ColorRGB = rgb
	}

	floats := []struct {
		field       string
		dst         **float64
		nonNegative bool
	}{
		{"urine_volume", &s.UrineVolume, true},
		{"flow_rate", &s.FlowRate, true},
		{"sample_interval", &s.SampleInterval, true},
		{"ec_value", &s.ECValue, true},
		{"estimated_sg", &s.EstimatedSG, true},
		{"estimated_na", &s.EstimatedNa, true},
		{"fsr_raw", &s.FSRRaw, false},
		{"fsr_resistance", &s.FSRResistance, false},
	}
	for _, f := range floats {
		v, ok := present(raw, f.field)
		if !ok {
			continue
		}
		n, err := toFloat(v)
		if err != nil {
			return models.Sample{}, nil, &FieldError{Field: f.field, Value: v, Reason: "must be numeric"}
		}
		if f.nonNegative && n < 0 {
			return models.Sample{}, nil, &FieldError{Field: f.field, Value: v, Reason: "must not be negative"}
		}
		*f.dst = &n
	}
	if s.SampleInterval != nil && *s.SampleInterval == 0 {
		return models.Sample{}, nil, &FieldError{Field: "sample_interval", Value: 0, Reason: "must be positive"}
	}

	strs := []struct {
		field string
		dst   *string
	}{
		{"concentration", &s.Concentration},
		{"sg_category", &s.SGCategory},
		{"na_category", &s.NaCategory},
	}
	for _, f := range strs {
		if v, ok := present(raw, f.field); ok {
			*f.dst = cast.ToString(v)
		}
	}

	if v, ok := present(raw, "urination_in_progress"); ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return models.Sample{}, nil, &FieldError{Field: "urination_in_progress", Value: v, Reason: "must be a boolean"}
		}
		s.UrinationInProgress = &b
	}
	if v, ok := present(raw, "event_count"); ok {
		n, err := cast.ToIntE(v)
		if err != nil {
			return models.Sample{}, nil, &FieldError{Field: "event_count", Value: v, Reason: "must be an integer"}
		}
		s.DeviceEventCount = &n
	}

	if err := s.Validate(); err != nil {
		return models.Sample{}, nil, fmt.Errorf("sample validation failed: %w", err)
	}
	return s, warnings, nil
}

// present returns a field that is set to something other than null or "".
func present(raw map[string]interface{}, key string) (interface{}, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, false
	}
	if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
		return nil, false
	}
	return v, true
}

func toFloat(v interface{}) (float64, error) {
	if str, ok := v.(string); ok {
		v = strings.TrimSpace(str)
	}
	n, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("not a finite number: %v", v)
	}
	return n, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// minTimestamp is the earliest accepted sample time. Earlier values are device
// uptime counters or unset clocks.
var minTimestamp = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// parseTimestamp accepts RFC 3339 strings, local ISO timestamps and unix epochs
// (seconds, or milliseconds when the value is too large for seconds). Times
// before minTimestamp fall back to receivedAt.
func parseTimestamp(v interface{}, receivedAt time.Time) (time.Time, bool) {
	t, ok := decodeTimestamp(v, receivedAt.Location())
	if !ok || t.Before(minTimestamp) {
		return receivedAt, false
	}
	return t, true
}

func decodeTimestamp(v interface{}, loc *time.Location) (time.Time, bool) {
	if v == nil {
		return time.Time{}, false
	}
	if str, ok := v.(string); ok {
		str = strings.TrimSpace(str)
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, str, loc); err == nil {
				return t, true
			}
		}
	}
	n, err := toFloat(v)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).In(loc), true
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).In(loc), true
}
