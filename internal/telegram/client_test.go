package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/uroflow/internal/models"
)

type fakeBot struct {
	failures int
	calls    int
	last     tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.calls++
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.last = msg
	}
	if f.calls <= f.failures {
		return tgbotapi.Message{}, errors.New("too many requests")
	}
	return tgbotapi.Message{MessageID: f.calls}, nil
}

var testAlert = models.Alert{
	DeviceID: "ESP32_001",
	Severity: models.SeverityCritical,
	Title:    "High risk reading",
	Details:  []string{"Abnormal urine colour: red", "Low volume event: 120.0 ml (08:15)"},
	Time:     time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC),
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	bot := &fakeBot{failures: 2}
	c := newClient(bot, 42, 3, time.Millisecond)

	if err := c.Notify(context.Background(), testAlert); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if bot.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", bot.calls)
	}
	if bot.last.ChatID != 42 || bot.last.ParseMode != "MarkdownV2" {
		t.Errorf("unexpected message config: %+v", bot.last)
	}
}

func TestNotifyGivesUp(t *testing.T) {
	bot := &fakeBot{failures: 10}
	c := newClient(bot, 42, 2, time.Millisecond)

	err := c.Notify(context.Background(), testAlert)
	if err == nil {
		t.Fatal("expected error")
	}
	if bot.calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", bot.calls)
	}
	if !strings.Contains(err.Error(), "after 2 retries") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNotifyStopsOnCancel(t *testing.T) {
	bot := &fakeBot{failures: 10}
	c := newClient(bot, 42, 5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Notify(ctx, testAlert); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if bot.calls != 1 {
		t.Errorf("Expected 1 attempt, got %d", bot.calls)
	}
}

func TestNewClientRejectsBadChatID(t *testing.T) {
	if _, err := NewClient("token", "not-a-number", 3, time.Second); err == nil {
		t.Error("expected error for invalid chat ID")
	}
}

func TestFormatAlert(t *testing.T) {
	msg := formatAlert(testAlert)

	for _, want := range []string{
		"🚨 *High risk reading*",
		"📟 Device: `ESP32\\_001`",
		"📅 2026\\-03\\-01 08:15:00",
		"• Abnormal urine colour: red",
		"• Low volume event: 120\\.0 ml \\(08:15\\)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}

	info := formatAlert(models.Alert{DeviceID: "d", Severity: models.SeverityInfo, Title: "t"})
	if !strings.HasPrefix(info, "ℹ️") || strings.Contains(info, "📅") {
		t.Errorf("unexpected info message: %s", info)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"1.5h", "1\\.5h"},
		{"a_b*c", "a\\_b\\*c"},
		{"(x)!", "\\(x\\)\\!"},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}
