// Package notify delivers outbound Telegram notifications. Delivery is
// fire-and-forget: a failed send is logged and retried a bounded number of
// times, but never fails the mutation that triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/akarpov/bowltab/internal/models"
)

// Notifier is what the ledger calls when a participant lands in a new bowl.
type Notifier interface {
	// BowlAdded tells the user they were added to a bowl. Implementations
	// must return quickly and never surface delivery errors to the caller.
	BowlAdded(user *models.User, session *models.Session, bowl *models.Bowl)
}

// Noop is a Notifier that does nothing. Used in tests and when no bot token
// is configured.
type Noop struct{}

func (Noop) BowlAdded(*models.User, *models.Session, *models.Bowl) {}

// Telegram sends notifications through the Telegram Bot API.
type Telegram struct {
	botToken string
	client   *http.Client
	baseURL  string

	maxTries    uint
	sendTimeout time.Duration
}

// NewTelegram creates a Telegram notifier for the given bot token.
func NewTelegram(botToken string) *Telegram {
	return &Telegram{
		botToken:    botToken,
		client:      &http.Client{Timeout: 10 * time.Second},
		baseURL:     "https://api.telegram.org",
		maxTries:    3,
		sendTimeout: 30 * time.Second,
	}
}

// BowlAdded notifies the user asynchronously, honoring their settings.
func (t *Telegram) BowlAdded(user *models.User, session *models.Session, bowl *models.Bowl) {
	if !user.NotifyOnNewBowl {
		return
	}

	text := fmt.Sprintf("You were added to %s in session %q.", bowl.Name, session.Title)
	chatID := user.TelegramID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.sendTimeout)
		defer cancel()

		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, t.sendMessage(ctx, chatID, text)
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(t.maxTries))
		if err != nil {
			slog.Warn("notification delivery failed, giving up",
				"user_id", user.ID,
				"bowl_id", bowl.ID,
				"error", err,
			)
			return
		}
		slog.Debug("notification delivered", "user_id", user.ID, "bowl_id", bowl.ID)
	}()
}

// sendMessage performs one Bot API sendMessage call.
func (t *Telegram) sendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return backoff.Permanent(fmt.Errorf("encode payload: %w", err))
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("telegram api status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// Client errors (blocked bot, bad chat id) will not heal on retry.
		return backoff.Permanent(fmt.Errorf("telegram api status %d", resp.StatusCode))
	}
	return nil
}
