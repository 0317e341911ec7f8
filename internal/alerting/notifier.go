package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the context of one fired signal for the
// operator-facing mirror. The consensus topic remains the system of
// record; this channel is best effort.
type Notification struct {
	AlertID       string
	Kind          string
	Action        string
	Amount        decimal.Decimal
	TriggerType   string
	TriggerValue  float64
	BaselinePrice float64
	CurrentPrice  float64
	TopicID       string
	Sequence      uint64
	FiredAt       time.Time
}

// Notifier defines the mirror delivery interface.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram mirror.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls the sendMessage API with a rendered signal summary.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("alert_id", note.AlertID).
		Str("topic_id", note.TopicID).
		Uint64("sequence", note.Sequence).
		Msg("signal mirrored to telegram")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s]\n", note.Kind))
	builder.WriteString(fmt.Sprintf("Alert: %s\n", note.AlertID))
	builder.WriteString(fmt.Sprintf("Action: %s", note.Action))
	if !note.Amount.IsZero() {
		builder.WriteString(fmt.Sprintf(" %s", note.Amount.String()))
	}
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("Trigger: %s %.2f%% of %.6f\n", note.TriggerType, note.TriggerValue, note.BaselinePrice))
	builder.WriteString(fmt.Sprintf("Price: %.6f USD\n", note.CurrentPrice))
	builder.WriteString(fmt.Sprintf("Topic: %s seq %d\n", note.TopicID, note.Sequence))
	builder.WriteString(fmt.Sprintf("At: %s UTC\n", note.FiredAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
