package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"
	"gopkg.in/telebot.v3"

	"github.com/njoerd114/prayerrelay/internal/model"
)

// --- Log ---------------------------------------------------------------------

// LogSender writes due reminders to the logger. It is always installed so a
// headless daemon still leaves a trace.
type LogSender struct {
	Log *slog.Logger
}

// Send logs req.
func (s LogSender) Send(_ context.Context, req model.NotificationRequest) error {
	s.Log.Info(req.Title, "body", req.Body, "id", req.ID)
	return nil
}

// --- Desktop -----------------------------------------------------------------

// alertFunc shows a desktop notification. [beeep.Alert] in production.
type alertFunc func(title, message string, icon any) error

// DesktopSender shows a native desktop notification with the default sound
// through beeep: Notification Center on macOS, D-Bus or notify-send on Linux,
// toasts on Windows.
type DesktopSender struct {
	alert alertFunc
}

// NewDesktopSender creates a DesktopSender for the running OS.
func NewDesktopSender() *DesktopSender {
	beeep.AppName = "PrayerRelay"
	return &DesktopSender{alert: beeep.Alert}
}

// Send displays req. beeep calls are not cancellable, so ctx is only checked
// before the call.
func (s *DesktopSender) Send(ctx context.Context, req model.NotificationRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.alert(req.Title, req.Body, ""); err != nil {
		return fmt.Errorf("showing desktop notification %q: %w", req.ID, err)
	}
	return nil
}

// --- Telegram ----------------------------------------------------------------

// TelegramClient is the subset of [telebot.Bot] used by [TelegramSender].
type TelegramClient interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramSender posts reminders to one Telegram chat.
type TelegramSender struct {
	client TelegramClient
	chatID int64
}

// NewTelegramSender creates a sender backed by a bot that never polls for
// updates; it only sends.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := telebot.NewBot(telebot.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return NewTelegramSenderWithClient(bot, chatID), nil
}

// NewTelegramSenderWithClient is intended for tests.
func NewTelegramSenderWithClient(client TelegramClient, chatID int64) *TelegramSender {
	return &TelegramSender{client: client, chatID: chatID}
}

// Send posts "<title>\n<body>" to the configured chat.
func (s *TelegramSender) Send(ctx context.Context, req model.NotificationRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := req.Title + "\n" + req.Body
	if _, err := s.client.Send(telebot.ChatID(s.chatID), text); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}
