package segmenter

import (
	"sort"
	"sync"
	"time"

	"github.com/rewired-gh/uroflow/internal/models"
)

type stream struct {
	mu   sync.Mutex
	seg  *Segmenter
	seen time.Time // receipt time of the last qualifying sample
}

// Registry owns one segmenter per device. Samples for the same device are
// serialized; different devices proceed independently.
type Registry struct {
	cfg     Config
	mu      sync.RWMutex
	streams map[string]*stream
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, streams: make(map[string]*stream)}
}

func (r *Registry) get(deviceID string) *stream {
	r.mu.RLock()
	st, ok := r.streams[deviceID]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok = r.streams[deviceID]; ok {
		return st
	}
	st = &stream{seg: New(deviceID, r.cfg)}
	r.streams[deviceID] = st
	return st
}

// Process applies a sample stamped t by the device and received at receivedAt.
// Gaps inside an event are measured in device time; idle sweeps use receipt time.
func (r *Registry) Process(deviceID string, t, receivedAt time.Time, volume float64) models.SegmentOutcome {
	st := r.get(deviceID)
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.seg.Process(t, volume)
	if out.Detected {
		st.seen = receivedAt
	}
	return out
}

// Current returns a copy of the device's open event, or nil.
func (r *Registry) Current(deviceID string) *models.VoidingEvent {
	r.mu.RLock()
	st, ok := r.streams[deviceID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.seg.Current()
}

// Flush closes the device's open event, if any.
func (r *Registry) Flush(deviceID string) *models.VoidingEvent {
	r.mu.RLock()
	st, ok := r.streams[deviceID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.seg.Flush()
}

// FlushIdle closes every open event whose last sample was received more than
// the gap window before now. now is on the receipt clock, so device clock skew
// does not close events early. Results are ordered by device ID.
func (r *Registry) FlushIdle(now time.Time) []models.VoidingEvent {
	r.mu.RLock()
	ids := make([]string, 0, len(r.streams))
	for id := range r.streams {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	var closed []models.VoidingEvent
	for _, id := range ids {
		r.mu.RLock()
		st := r.streams[id]
		r.mu.RUnlock()

		st.mu.Lock()
		if st.seg.State() == StateOpen && now.Sub(st.seen) > r.cfg.Window {
			closed = append(closed, *st.seg.Flush())
		}
		st.mu.Unlock()
	}
	return closed
}

// Devices returns the IDs of all known streams.
func (r *Registry) Devices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.streams))
	for id := range r.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
