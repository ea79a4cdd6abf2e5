package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/uroflow/internal/colorimetry"
	"github.com/rewired-gh/uroflow/internal/config"
	"github.com/rewired-gh/uroflow/internal/models"
	"github.com/rewired-gh/uroflow/internal/service"
	"github.com/rewired-gh/uroflow/internal/storage"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type MockService struct {
	mock.Mock
	loc *time.Location
}

func (m *MockService) Ingest(ctx context.Context, raw map[string]interface{}, receivedAt time.Time) models.IngestResult {
	args := m.Called(ctx, raw, receivedAt)
	return args.Get(0).(models.IngestResult)
}

func (m *MockService) Location() *time.Location {
	if m.loc != nil {
		return m.loc
	}
	return time.UTC
}

func (m *MockService) DailyStats(deviceID string, day time.Time) (models.DailyStats, error) {
	args := m.Called(deviceID, day)
	return args.Get(0).(models.DailyStats), args.Error(1)
}

func (m *MockService) PeriodStats(deviceID string, days int, now time.Time) (models.PeriodStats, error) {
	args := m.Called(deviceID, days, now)
	return args.Get(0).(models.PeriodStats), args.Error(1)
}

func (m *MockService) Patterns(deviceID string, now time.Time) (models.PatternReport, error) {
	args := m.Called(deviceID, now)
	return args.Get(0).(models.PatternReport), args.Error(1)
}

func (m *MockService) Events(deviceID string, limit int) ([]models.VoidingEvent, error) {
	args := m.Called(deviceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VoidingEvent), args.Error(1)
}

func (m *MockService) CurrentEvent(deviceID string) *models.VoidingEvent {
	args := m.Called(deviceID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.VoidingEvent)
}

func (m *MockService) Latest(deviceID string) (*models.SampleRecord, error) {
	args := m.Called(deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SampleRecord), args.Error(1)
}

func (m *MockService) History(deviceID string, limit int) ([]models.SampleRecord, error) {
	args := m.Called(deviceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SampleRecord), args.Error(1)
}

func (m *MockService) LatestAdvisory() (*models.AdvisoryResult, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdvisoryResult), args.Error(1)
}

func (m *MockService) Status(now time.Time) (service.Status, error) {
	args := m.Called(now)
	return args.Get(0).(service.Status), args.Error(1)
}

func (m *MockService) Export(deviceID string, days int, now time.Time) ([]byte, error) {
	args := m.Called(deviceID, days, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func newTestServer(svc Service) *HTTPServer {
	s := NewHTTPServer(config.ServerConfig{Addr: ":0"}, svc)
	s.now = func() time.Time { return fixedNow }
	return s
}

func do(t *testing.T, s *HTTPServer, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

// ─── Upload ───

func TestUpload(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)

	record := &models.SampleRecord{
		ID:         "rec-1",
		DeviceID:   "ESP32_001",
		Assessment: models.Assessment{RiskLevel: models.RiskLow},
		Volume:     models.VolumeAssessment{CurrentStatus: models.VolumeStatusNormal},
		Summary:    "Risk: low",
	}
	svc.On("Ingest", mock.Anything, mock.MatchedBy(func(raw map[string]interface{}) bool {
		return raw["device_id"] == "ESP32_001" && raw["urine_volume"] == float64(250)
	}), fixedNow).Return(models.IngestResult{Success: true, Record: record})

	w, body := do(t, s, "POST", "/upload", `{"device_id":"ESP32_001","urine_volume":250}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "rec-1", body["receive_id"])
	assert.Equal(t, "low", body["risk_level"])
	assert.Equal(t, "normal", body["volume_status"])
	assert.Equal(t, "Risk: low", body["summary"])
	svc.AssertExpectations(t)
}

func TestUploadBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "urine_volume=250"},
		{"json array", `[1,2,3]`},
		{"empty object", `{}`},
		{"empty body", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			s := newTestServer(svc)

			w, body := do(t, s, "POST", "/upload", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, false, body["success"])
			svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUploadRejectedField(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("Ingest", mock.Anything, mock.Anything, fixedNow).
		Return(models.IngestResult{Error: "urine_volume: not a number", Field: "urine_volume"})

	w, body := do(t, s, "POST", "/upload", `{"urine_volume":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "urine_volume", body["field"])
	assert.Equal(t, "urine_volume: not a number", body["message"])
}

// ─── Colour ───

func TestAnalyzeColor(t *testing.T) {
	s := newTestServer(new(MockService))

	w, body := do(t, s, "POST", "/color/analyze", `{"rgb":"200,50,50"}`)
	require.Equal(t, http.StatusOK, w.Code)
	analysis := body["analysis"].(map[string]interface{})
	assert.Equal(t, "red", analysis["color_name"])
	assert.Equal(t, true, analysis["success"])

	// A parse failure is still a 200 with a failed classification.
	w, body = do(t, s, "POST", "/color/analyze", `{"rgb":"300,0,0"}`)
	require.Equal(t, http.StatusOK, w.Code)
	analysis = body["analysis"].(map[string]interface{})
	assert.Equal(t, false, analysis["success"])

	w, _ = do(t, s, "POST", "/color/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestColorChartAndSelfTest(t *testing.T) {
	s := newTestServer(new(MockService))

	w, body := do(t, s, "GET", "/color/chart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["color_chart"], len(colorimetry.Chart()))

	w, body = do(t, s, "GET", "/color/test", "")
	require.Equal(t, http.StatusOK, w.Code)
	results := body["test_results"].([]interface{})
	require.Len(t, results, len(colorimetry.ReferenceSamples))
	first := results[0].(map[string]interface{})
	assert.Equal(t, "230,230,230", first["rgb"])
}

// ─── Volume ───

func TestVolumeStats(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("PeriodStats", "dev", 7, fixedNow).Return(models.PeriodStats{Days: 7, EventCount: 12}, nil)

	w, body := do(t, s, "GET", "/volume/stats?days=7&device_id=dev", "")
	require.Equal(t, http.StatusOK, w.Code)
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(12), stats["event_count"])

	w, _ = do(t, s, "GET", "/volume/stats?days=week", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestVolumeDaily(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("DailyStats", "", fixedNow).Return(models.DailyStats{Date: "2026-03-01", Empty: true}, nil)
	svc.On("DailyStats", "", mock.MatchedBy(func(day time.Time) bool {
		return day.Format("2006-01-02") == "2026-02-27"
	})).Return(models.DailyStats{Date: "2026-02-27", EventCount: 5}, nil)

	w, body := do(t, s, "GET", "/volume/daily", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["daily_stats"].(map[string]interface{})["empty"])

	w, body = do(t, s, "GET", "/volume/daily?date=2026-02-27", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), body["daily_stats"].(map[string]interface{})["event_count"])

	w, _ = do(t, s, "GET", "/volume/daily?date=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestVolumeDailyShortDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	svc := &MockService{loc: loc}
	s := newTestServer(svc)
	// 2026-03-08 has 23 hours in New York.
	svc.On("DailyStats", "dev", mock.MatchedBy(func(day time.Time) bool {
		return day.In(loc).Format("2006-01-02") == "2026-03-08"
	})).Return(models.DailyStats{Date: "2026-03-08", EventCount: 2}, nil)

	w, body := do(t, s, "GET", "/volume/daily?date=2026-03-08&device_id=dev", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-03-08", body["daily_stats"].(map[string]interface{})["date"])
	svc.AssertExpectations(t)
}

func TestVolumePatterns(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("Patterns", "dev", fixedNow).Return(models.PatternReport{InsufficientData: true}, nil)

	w, body := do(t, s, "GET", "/volume/patterns?device_id=dev", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["patterns"].(map[string]interface{})["insufficient_data"])
}

func TestVolumeEvents(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	events := []models.VoidingEvent{{ID: "e2", DeviceID: "dev"}, {ID: "e1", DeviceID: "dev"}}
	svc.On("Events", "dev", 5).Return(events, nil)
	svc.On("CurrentEvent", "dev").Return(&models.VoidingEvent{ID: "open", DeviceID: "dev"})
	svc.On("Events", "", defaultEventsLimit).Return([]models.VoidingEvent{}, nil)

	w, body := do(t, s, "GET", "/volume/events?device_id=dev&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, "open", body["current_event"].(map[string]interface{})["event_id"])

	w, body = do(t, s, "GET", "/volume/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, body, "current_event")
	svc.AssertExpectations(t)
}

func TestVolumeEventsStoreError(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("Events", "", defaultEventsLimit).Return(nil, errors.New("disk I/O error"))

	w, body := do(t, s, "GET", "/volume/events", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body["message"])
}

func TestVolumeExport(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("Export", "", defaultExportDays, fixedNow).Return([]byte("PK\x03\x04"), nil)

	w, _ := do(t, s, "GET", "/volume/export.xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "uroflow-2026-03-01.xlsx")
	assert.Equal(t, "PK\x03\x04", w.Body.String())
}

// ─── Data ───

func TestLatestData(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("Latest", "").Return(nil, service.ErrNotFound).Once()
	svc.On("Latest", "").Return(&models.SampleRecord{ID: "rec-9", DeviceID: "dev"}, nil).Once()

	w, body := do(t, s, "GET", "/data/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])

	w, body = do(t, s, "GET", "/data/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rec-9", body["data"].(map[string]interface{})["id"])
}

func TestHistory(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("History", "dev", 3).Return([]models.SampleRecord{{ID: "a"}, {ID: "b"}}, nil)

	w, body := do(t, s, "GET", "/data/history?device_id=dev&limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
	svc.AssertExpectations(t)
}

func TestLatestAdvisory(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("LatestAdvisory").Return(nil, service.ErrNotFound).Once()
	svc.On("LatestAdvisory").Return(&models.AdvisoryResult{Success: true, Text: "Drink more water."}, nil).Once()

	w, _ := do(t, s, "GET", "/ai/latest", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body := do(t, s, "GET", "/ai/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Drink more water.", body["ai_analysis"].(map[string]interface{})["text"])
}

func TestStatus(t *testing.T) {
	svc := new(MockService)
	s := newTestServer(svc)
	svc.On("Status", fixedNow).Return(service.Status{Status: "running", TotalSamples: 42}, nil)

	w, body := do(t, s, "GET", "/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := body["status"].(map[string]interface{})
	assert.Equal(t, "running", st["status"])
	assert.Equal(t, float64(42), st["total_samples"])
	assert.Equal(t, fixedNow.Format(time.RFC3339), body["timestamp"])
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(new(MockService))

	w, _ := do(t, s, "GET", "/upload", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(new(MockService))
	do(t, s, "GET", "/color/chart", "")

	w, _ := do(t, s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `uroflow_http_requests_total{method="GET",path="/color/chart",status="200"}`)
}

// ─── End to end ───

func TestUploadThroughService(t *testing.T) {
	store, err := storage.New(100, 100, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	opts := service.DefaultOptions()
	opts.Location = time.UTC
	svc := service.New(store, opts, service.Dependencies{})
	s := newTestServer(svc)

	w, body := do(t, s, "POST", "/upload", `{"device_id":"ESP32_001","timestamp":"2026-03-01T11:59:00Z","urine_volume":250,"color_rgb":"240,240,180"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Risk: low | Color: pale_yellow", body["summary"])
	segment := body["segment"].(map[string]interface{})
	assert.Equal(t, "started", segment["transition"])

	w, body = do(t, s, "GET", "/data/latest?device_id=ESP32_001", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ESP32_001", body["data"].(map[string]interface{})["device_id"])

	w, body = do(t, s, "GET", "/volume/events?device_id=ESP32_001", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, float64(250), body["current_event"].(map[string]interface{})["total_volume"])

	w, _ = do(t, s, "GET", "/volume/export.xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotZero(t, w.Body.Len())
}
