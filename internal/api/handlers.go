package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cast"

	"github.com/rewired-gh/uroflow/internal/assessment"
	"github.com/rewired-gh/uroflow/internal/colorimetry"
	"github.com/rewired-gh/uroflow/internal/logger"
	"github.com/rewired-gh/uroflow/internal/service"
)

const (
	defaultStatsDays   = 1
	defaultExportDays  = 7
	defaultEventsLimit = 20
	defaultHistoryMax  = 10
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *HTTPServer) upload(w http.ResponseWriter, r *http.Request) {
	received := s.now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		s.fail(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if len(raw) == 0 {
		s.fail(w, http.StatusBadRequest, "no data received")
		return
	}

	res := s.service.Ingest(r.Context(), raw, received)
	if !res.Success {
		out := envelope{"message": res.Error}
		if res.Field != "" {
			out["field"] = res.Field
		}
		s.respond(w, http.StatusBadRequest, out)
		return
	}

	rec := res.Record
	logger.Info("Sample %s from %s processed in %s", rec.ID, rec.DeviceID, time.Since(received))
	s.respond(w, http.StatusOK, envelope{
		"message":          "sample accepted",
		"receive_id":       rec.ID,
		"device_id":        rec.DeviceID,
		"processing_time":  time.Since(received).Seconds(),
		"risk_level":       rec.Assessment.RiskLevel,
		"risk_description": assessment.Describe(rec.Assessment.RiskLevel),
		"volume_status":    rec.Volume.CurrentStatus,
		"summary":          rec.Summary,
		"color_analysis":   rec.Reading.Color,
		"segment":          rec.Segment,
		"daily_stats":      rec.Volume.Daily,
		"warnings":         rec.Reading.Warnings,
		"record":           rec,
	})
}

type colorRequest struct {
	RGB string `json:"rgb"`
}

func (s *HTTPServer) analyzeColor(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.RGB == "" {
		s.fail(w, http.StatusBadRequest, "rgb value is required")
		return
	}
	s.respond(w, http.StatusOK, envelope{"analysis": colorimetry.AnalyzeRGB(req.RGB)})
}

func (s *HTTPServer) colorChart(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, envelope{"color_chart": colorimetry.Chart()})
}

func (s *HTTPServer) colorTest(w http.ResponseWriter, r *http.Request) {
	results := make([]envelope, 0, len(colorimetry.ReferenceSamples))
	for _, ref := range colorimetry.ReferenceSamples {
		results = append(results, envelope{
			"test_name": ref.Label,
			"rgb":       fmt.Sprintf("%d,%d,%d", ref.RGB.R, ref.RGB.G, ref.RGB.B),
			"analysis":  colorimetry.Classify(ref.RGB.R, ref.RGB.G, ref.RGB.B),
		})
	}
	s.respond(w, http.StatusOK, envelope{"test_results": results})
}

func (s *HTTPServer) volumeStats(w http.ResponseWriter, r *http.Request) {
	days, ok := s.intParam(w, r, "days", defaultStatsDays)
	if !ok {
		return
	}
	device := r.URL.Query().Get("device_id")

	stats, err := s.service.PeriodStats(device, days, s.now())
	if err != nil {
		s.internalError(w, "compute period stats", err)
		return
	}
	s.respond(w, http.StatusOK, envelope{"stats": stats})
}

func (s *HTTPServer) volumeDaily(w http.ResponseWriter, r *http.Request) {
	day := s.now()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, s.service.Location())
		if err != nil {
			s.fail(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	stats, err := s.service.DailyStats(r.URL.Query().Get("device_id"), day)
	if err != nil {
		s.internalError(w, "compute daily stats", err)
		return
	}
	s.respond(w, http.StatusOK, envelope{"daily_stats": stats})
}

func (s *HTTPServer) volumePatterns(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Patterns(r.URL.Query().Get("device_id"), s.now())
	if err != nil {
		s.internalError(w, "analyse patterns", err)
		return
	}
	s.respond(w, http.StatusOK, envelope{"patterns": report})
}

func (s *HTTPServer) volumeEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intParam(w, r, "limit", defaultEventsLimit)
	if !ok {
		return
	}
	device := r.URL.Query().Get("device_id")

	events, err := s.service.Events(device, limit)
	if err != nil {
		s.internalError(w, "load events", err)
		return
	}
	out := envelope{"events": events, "count": len(events)}
	if device != "" {
		out["current_event"] = s.service.CurrentEvent(device)
	}
	s.respond(w, http.StatusOK, out)
}

func (s *HTTPServer) volumeExport(w http.ResponseWriter, r *http.Request) {
	days, ok := s.intParam(w, r, "days", defaultExportDays)
	if !ok {
		return
	}
	now := s.now()

	data, err := s.service.Export(r.URL.Query().Get("device_id"), days, now)
	if err != nil {
		s.internalError(w, "export workbook", err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="uroflow-%s.xlsx"`, now.In(s.service.Location()).Format("2006-01-02")))
	if _, err := w.Write(data); err != nil {
		logger.Warn("Failed to write export: %v", err)
	}
}

func (s *HTTPServer) latestData(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.Latest(r.URL.Query().Get("device_id"))
	if service.IsNotFound(err) {
		s.fail(w, http.StatusNotFound, "no data yet")
		return
	}
	if err != nil {
		s.internalError(w, "load latest record", err)
		return
	}
	s.respond(w, http.StatusOK, envelope{"data": rec})
}

func (s *HTTPServer) history(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intParam(w, r, "limit", defaultHistoryMax)
	if !ok {
		return
	}
	records, err := s.service.History(r.URL.Query().Get("device_id"), limit)
	if err != nil {
		s.internalError(w, "load history", err)
		return
	}
	s.respond(w, http.StatusOK, envelope{"history": records, "count": len(records)})
}

func (s *HTTPServer) latestAdvisory(w http.ResponseWriter, r *http.Request) {
	adv, err := s.service.LatestAdvisory()
	if service.IsNotFound(err) {
		s.fail(w, http.StatusNotFound, "no advisory yet")
		return
	}
	if err != nil {
		s.internalError(w, "load latest advisory", err)
		return
	}
	s.respond(w, http.StatusOK, envelope{"ai_analysis": adv})
}

func (s *HTTPServer) status(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(s.now())
	if err != nil {
		s.internalError(w, "build status", err)
		return
	}
	s.respond(w, http.StatusOK, envelope{"status": st})
}

// intParam reads an optional integer query parameter. It writes a 400 and
// returns false when the value is present but not an integer.
func (s *HTTPServer) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return n, true
}
