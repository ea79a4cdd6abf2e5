// Package advisor requests free-text advisory reports from an OpenAI-compatible
// chat completions endpoint. The text is opaque to the rest of the system; only
// its short summary and display markup are derived here.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"

	"github.com/rewired-gh/uroflow/internal/logger"
	"github.com/rewired-gh/uroflow/internal/metrics"
	"github.com/rewired-gh/uroflow/internal/models"
)

// FallbackSummary is used when no usable sentence can be extracted.
const FallbackSummary = "Advisory complete, see the full report."

const (
	maxSummaryRunes   = 200
	minSentenceRunes  = 10
	summarySentences  = 3
	systemInstruction = `You are an experienced urologist reviewing home urine sensor data.
1. Assess how reliable the data looks
2. Explain the clinical meaning of the urine colour
3. Analyse voiding volume, frequency and pattern
4. Interpret the chemistry readings
5. Suggest possible explanations
6. Recommend next steps
Answer in clear, plain language with numbered sections and bullet points.`
)

// Config holds advisory client settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	MaxRetries  int
}

// Stats are the running request counters of a client.
type Stats struct {
	TotalRequests       int     `json:"total_requests"`
	SuccessfulRequests  int     `json:"successful_requests"`
	AverageResponseTime float64 `json:"avg_response_time"` // seconds, exponential moving average
}

// Client calls the chat completions endpoint.
type Client struct {
	http *resty.Client
	cfg  Config

	mu    sync.Mutex
	stats Stats
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// New creates a new advisory client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		}).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: client, cfg: cfg}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Advise requests an advisory report for the summary. Failures are reported in
// the result rather than returned.
func (c *Client) Advise(ctx context.Context, summary models.AdvisorySummary) *models.AdvisoryResult {
	start := time.Now()
	result := &models.AdvisoryResult{Enabled: true, Model: c.cfg.Model}

	c.mu.Lock()
	c.stats.TotalRequests++
	c.mu.Unlock()

	text, model, err := c.complete(ctx, BuildPrompt(summary))
	elapsed := time.Since(start)
	result.ResponseTime = float64(elapsed.Milliseconds()) / 1000
	result.GeneratedAt = time.Now()
	metrics.AdvisoryDuration.Observe(elapsed.Seconds())

	if err != nil {
		logger.Warn("Advisory request for %s failed: %v", summary.DeviceID, err)
		metrics.AdvisoryRequests.WithLabelValues("failure").Inc()
		result.Error = err.Error()
		return result
	}

	c.mu.Lock()
	c.stats.SuccessfulRequests++
	if c.stats.AverageResponseTime == 0 {
		c.stats.AverageResponseTime = elapsed.Seconds()
	} else {
		c.stats.AverageResponseTime = c.stats.AverageResponseTime*0.8 + elapsed.Seconds()*0.2
	}
	c.mu.Unlock()
	metrics.AdvisoryRequests.WithLabelValues("success").Inc()

	if model != "" {
		result.Model = model
	}
	result.Success = true
	result.Text = text
	result.FormattedText = FormatResponse(text)
	result.Summary = ExtractSummary(text)
	logger.Debug("Advisory for %s received in %.2fs", summary.DeviceID, result.ResponseTime)
	return result
}

func (c *Client) complete(ctx context.Context, prompt string) (string, string, error) {
	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	var out chatResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", "", fmt.Errorf("advisory request failed: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return "", "", fmt.Errorf("advisory API returned status %d: %s", resp.StatusCode(), apiErr.Error.Message)
		}
		return "", "", fmt.Errorf("advisory API returned status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", "", errors.New("advisory API returned an empty response")
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		text = "The advisory service returned an empty reply."
	}
	return text, out.Model, nil
}

// Stats returns a copy of the running counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Counters returns total and successful requests and the average response time.
func (c *Client) Counters() (int, int, float64) {
	st := c.Stats()
	return st.TotalRequests, st.SuccessfulRequests, st.AverageResponseTime
}

// BuildPrompt renders the structured summary as the user prompt.
func BuildPrompt(s models.AdvisorySummary) string {
	var b strings.Builder
	b.WriteString("Please review the following urine sensor data and give medical guidance.\n\n")

	b.WriteString("[Sample]\n")
	fmt.Fprintf(&b, "- Time: %s\n", s.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Device: %s\n", s.DeviceID)

	b.WriteString("\n[Urine colour]\n")
	if c := s.Color; c != nil && c.Success {
		fmt.Fprintf(&b, "- Colour: %s (confidence %.2f)\n", c.ColorName, c.Confidence)
		fmt.Fprintf(&b, "- Clinical meaning: %s\n", c.ClinicalMeaning)
		fmt.Fprintf(&b, "- Health status: %s\n", c.HealthStatus)
		if d := c.Detail; d != nil {
			fmt.Fprintf(&b, "- Hydration level: %s\n", d.HydrationLevel)
			fmt.Fprintf(&b, "- Urgency: %s\n", d.UrgencyLevel)
		}
	} else {
		b.WriteString("- Not available\n")
	}

	b.WriteString("\n[Voiding volume]\n")
	if s.CurrentVolume != nil {
		fmt.Fprintf(&b, "- Current sample: %.1f ml\n", *s.CurrentVolume)
	}
	d := s.Daily
	if !d.Empty {
		fmt.Fprintf(&b, "- Today total: %.1f ml\n", d.TotalVolume)
		fmt.Fprintf(&b, "- Today voids: %d\n", d.EventCount)
		fmt.Fprintf(&b, "- Average per void: %.1f ml\n", d.AverageVolume)
		fmt.Fprintf(&b, "- Average interval: %.1f h\n", d.AverageIntervalHours)
		fmt.Fprintf(&b, "- Daily goal reached: %.1f%%\n", d.GoalPercentage)
	} else {
		b.WriteString("- No completed voids today\n")
	}
	for _, alert := range s.VolumeAlerts {
		fmt.Fprintf(&b, "- Alert: %s\n", alert)
	}

	b.WriteString("\n[Chemistry]\n")
	chem := s.Chemistry
	if chem.Conductivity != nil {
		fmt.Fprintf(&b, "- Conductivity: %.2f mS/cm (%s)\n", *chem.Conductivity, orUnknown(chem.Concentration))
	}
	if chem.SpecificGravity != nil {
		fmt.Fprintf(&b, "- Specific gravity: %.3f (%s)\n", *chem.SpecificGravity, orUnknown(chem.SGCategory))
	}
	if chem.Sodium != nil {
		fmt.Fprintf(&b, "- Sodium: %.1f mmol/L (%s)\n", *chem.Sodium, orUnknown(chem.SodiumCategory))
	}

	b.WriteString("\n[Rule-based assessment]\n")
	fmt.Fprintf(&b, "- Risk level: %s\n", s.Assessment.RiskLevel)
	for _, f := range s.Assessment.KeyFindings {
		fmt.Fprintf(&b, "- Finding: %s\n", f)
	}

	b.WriteString(`
[Please cover]
1. Clinical meaning of the colour and possible causes
2. Voiding pattern (single volume, daily total, frequency)
3. Data reliability
4. Interpretation of each reading
5. Possible health risks
6. Suggested further tests
7. Lifestyle and diet advice
8. Urgency`)
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// FormatResponse converts advisory text into simple display markup: heading
// lines become <strong>, bullet lines become <li>, lines are joined with <br>.
func FormatResponse(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case isHeading(line):
			line = strings.TrimSpace(strings.TrimLeft(line, "#"))
			line = strings.TrimSuffix(strings.TrimPrefix(line, "**"), "**")
			out = append(out, "<strong>"+html.EscapeString(line)+"</strong>")
		case strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "* "):
			out = append(out, "<li>"+html.EscapeString(line)+"</li>")
		default:
			out = append(out, html.EscapeString(line))
		}
	}
	return strings.Join(out, "<br>")
}

func isHeading(line string) bool {
	if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
		return true
	}
	if strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**") && len(line) > 4 {
		return true
	}
	// "1." through "9." style numbering
	r := []rune(line)
	return len(r) >= 2 && unicode.IsDigit(r[0]) && (r[1] == '.' || r[1] == ')')
}

// ExtractSummary returns the first three prose sentences longer than ten
// characters, or only the first when fewer exist, capped at 200 runes.
// Heading lines are skipped.
func ExtractSummary(text string) string {
	var prose []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isHeading(line) {
			continue
		}
		for _, marker := range []string{"-", "•", "* "} {
			line = strings.TrimSpace(strings.TrimPrefix(line, marker))
		}
		prose = append(prose, line)
	}

	var sentences []string
	for _, s := range splitSentences(strings.Join(prose, " ")) {
		if len([]rune(s)) > minSentenceRunes {
			sentences = append(sentences, s)
		}
	}

	var summary string
	switch {
	case len(sentences) >= summarySentences:
		summary = strings.Join(sentences[:summarySentences], " ")
	case len(sentences) > 0:
		summary = sentences[0]
	default:
		return FallbackSummary
	}

	if r := []rune(summary); len(r) > maxSummaryRunes {
		summary = string(r[:maxSummaryRunes])
	}
	return summary
}

// splitSentences breaks text at sentence terminators followed by whitespace or
// the end of text, so decimals such as 1.015 stay intact.
func splitSentences(text string) []string {
	r := []rune(text)
	var out []string
	start := 0
	for i, c := range r {
		if !isTerminator(c) {
			continue
		}
		if i+1 < len(r) && !unicode.IsSpace(r[i+1]) && !isTerminator(r[i+1]) && !isWideTerminator(c) {
			continue
		}
		if s := strings.TrimSpace(string(r[start : i+1])); s != "" && !allTerminators(s) {
			out = append(out, s)
		}
		start = i + 1
	}
	if start < len(r) {
		if s := strings.TrimSpace(string(r[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isTerminator(c rune) bool {
	return c == '.' || c == '!' || c == '?' || isWideTerminator(c)
}

func isWideTerminator(c rune) bool {
	return c == '。' || c == '！' || c == '？'
}

func allTerminators(s string) bool {
	for _, c := range s {
		if !isTerminator(c) {
			return false
		}
	}
	return true
}
