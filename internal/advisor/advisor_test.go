package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/uroflow/internal/colorimetry"
	"github.com/rewired-gh/uroflow/internal/models"
)

const reply = `## Overview
Your urine colour looks slightly concentrated today. Daily output is below the usual range. Specific gravity of 1.028 fits mild dehydration. Nothing urgent stands out.
- Drink an extra glass of water every two hours
• Re-check tomorrow morning`

func testSummary() models.AdvisorySummary {
	c := colorimetry.Classify(200, 180, 100)
	return models.AdvisorySummary{
		DeviceID:      "ESP32_001",
		Timestamp:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Color:         &c,
		Chemistry:     models.Chemistry{SpecificGravity: models.Float64(1.028), SGCategory: "high"},
		CurrentVolume: models.Float64(180),
		Daily:         models.DailyStats{EventCount: 2, TotalVolume: 420, AverageVolume: 210, GoalPercentage: 28},
		Assessment:    models.Assessment{RiskLevel: models.RiskLow, KeyFindings: []string{"Urine colour suggests dehydration: dark_yellow"}},
		VolumeAlerts:  []string{"Daily volume is low"},
	}
}

func newTestClient(url string) *Client {
	return New(Config{
		BaseURL:     url,
		APIKey:      "sk-test",
		Model:       "gpt-4o",
		Timeout:     5 * time.Second,
		MaxTokens:   2000,
		Temperature: 0.7,
	})
}

// ─── Advise ───

func TestAdviseSuccess(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-2024","choices":[{"message":{"role":"assistant","content":` + quote(reply) + `}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res := c.Advise(context.Background(), testSummary())

	require.True(t, res.Success, res.Error)
	assert.True(t, res.Enabled)
	assert.Equal(t, "gpt-4o-2024", res.Model)
	assert.Equal(t, strings.TrimSpace(reply), res.Text)
	assert.Contains(t, res.FormattedText, "<strong>Overview</strong>")
	assert.Contains(t, res.FormattedText, "<li>- Drink an extra glass of water every two hours</li>")
	assert.True(t, strings.HasPrefix(res.Summary, "Your urine colour looks slightly concentrated today."))
	assert.False(t, res.GeneratedAt.IsZero())

	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Colour: dark_yellow")
	assert.Equal(t, 2000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.SuccessfulRequests)
}

func TestAdviseFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`, "status 500: overloaded"},
		{"unauthorised", http.StatusUnauthorized, `{}`, "status 401"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "empty response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			res := c.Advise(context.Background(), testSummary())
			assert.True(t, res.Enabled)
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, tt.wantErr)
			assert.Empty(t, res.Text)

			stats := c.Stats()
			assert.Equal(t, 1, stats.TotalRequests)
			assert.Equal(t, 0, stats.SuccessfulRequests)
		})
	}
}

func TestAdviseCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newTestClient(srv.URL).Advise(ctx, testSummary())
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

// ─── Prompt ───

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(testSummary())
	for _, want := range []string{
		"- Device: ESP32_001",
		"- Colour: dark_yellow",
		"- Current sample: 180.0 ml",
		"- Today total: 420.0 ml",
		"- Alert: Daily volume is low",
		"- Specific gravity: 1.028 (high)",
		"- Risk level: low",
		"- Finding: Urine colour suggests dehydration: dark_yellow",
	} {
		assert.Contains(t, p, want)
	}

	empty := BuildPrompt(models.AdvisorySummary{DeviceID: "x", Daily: models.DailyStats{Empty: true}})
	assert.Contains(t, empty, "- Not available")
	assert.Contains(t, empty, "- No completed voids today")
}

// ─── Formatting ───

func TestFormatResponse(t *testing.T) {
	in := "**Summary**\n\n1. Hydration\nPlain <b>text</b>\n- bullet one\n* bullet two\n[Urgency]"
	want := "<strong>Summary</strong><br><strong>1. Hydration</strong><br>Plain &lt;b&gt;text&lt;/b&gt;<br>" +
		"<li>- bullet one</li><br><li>* bullet two</li><br><strong>[Urgency]</strong>"
	assert.Equal(t, want, FormatResponse(in))
	assert.Equal(t, "", FormatResponse("  \n\n"))
}

func TestExtractSummary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"three sentences",
			"Hydration looks adequate today. Specific gravity 1.015 is normal. Keep drinking water regularly. Extra sentence here.",
			"Hydration looks adequate today. Specific gravity 1.015 is normal. Keep drinking water regularly.",
		},
		{
			"short sentences skipped",
			"OK. Fine. The colour is pale yellow and healthy! Good.",
			"The colour is pale yellow and healthy!",
		},
		{"nothing usable", "Ok. Yes.", FallbackSummary},
		{"empty", "", FallbackSummary},
		{"wide punctuation", "尿液颜色正常，水分摄入充足，请继续保持良好习惯。", "尿液颜色正常，水分摄入充足，请继续保持良好习惯。"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSummary(tt.in))
		})
	}
}

func TestExtractSummaryTruncates(t *testing.T) {
	long := strings.Repeat("word ", 60) + "end."
	got := ExtractSummary(long)
	assert.Len(t, []rune(got), 200)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
