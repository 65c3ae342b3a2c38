// Package telegram wraps the Telegram Bot API client for the volunteers bot.
//
// It turns bot updates into inbound messages for the session driver and
// renders suggested replies as a reply keyboard. Everything protocol-specific
// (chat IDs, keyboards, update polling) stays inside this package.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/frol/connect-volunteers-bot/internal/models"
)

// Constants for the Telegram client configuration
const (
	// DefaultPollTimeout is the long-polling timeout in seconds.
	DefaultPollTimeout = 30
	// messageBuffer is the capacity of the inbound message channel.
	messageBuffer = 64
)

// Opts holds configuration options for the Telegram client.
type Opts struct {
	Token       string
	PollTimeout int
	Debug       bool
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithToken sets the bot API token.
func WithToken(token string) Option {
	return func(o *Opts) {
		o.Token = token
	}
}

// WithPollTimeout sets the long-polling timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(o *Opts) {
		o.PollTimeout = seconds
	}
}

// WithDebug enables the underlying client's debug logging.
func WithDebug() Option {
	return func(o *Opts) {
		o.Debug = true
	}
}

// Client wraps the Telegram bot API for modular use.
type Client struct {
	bot         *tgbotapi.BotAPI
	pollTimeout int
	messages    chan models.InboundMessage
}

// NewClient creates a Telegram client, applying any provided options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{PollTimeout: DefaultPollTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Telegram NewClient options set", "token_set", cfg.Token != "", "poll_timeout", cfg.PollTimeout, "debug", cfg.Debug)

	if cfg.Token == "" {
		slog.Error("Telegram bot token not set")
		return nil, fmt.Errorf("telegram bot token not set")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		slog.Error("Failed to create Telegram bot client", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot client: %w", err)
	}
	bot.Debug = cfg.Debug
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return &Client{
		bot:         bot,
		pollTimeout: cfg.PollTimeout,
		messages:    make(chan models.InboundMessage, messageBuffer),
	}, nil
}

// Messages returns the channel of inbound messages from participants.
func (c *Client) Messages() <-chan models.InboundMessage {
	return c.messages
}

// Start begins long-polling for updates until the context is cancelled.
func (c *Client) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = c.pollTimeout
	updates := c.bot.GetUpdatesChan(updateConfig)

	go func() {
		defer close(c.messages)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					slog.Debug("Telegram updates channel closed")
					return
				}
				if msg, ok := inboundFromUpdate(update); ok {
					c.messages <- msg
				}
			case <-ctx.Done():
				slog.Debug("Telegram client stopping due to context cancellation")
				return
			}
		}
	}()

	slog.Info("Telegram client started polling for updates", "poll_timeout", c.pollTimeout)
	return nil
}

// Stop stops receiving updates.
func (c *Client) Stop() error {
	slog.Debug("Telegram client stopping update polling")
	c.bot.StopReceivingUpdates()
	return nil
}

// SendReply delivers one reply, rendering the suggested replies as a reply
// keyboard. An empty suggestion list removes any previously shown keyboard.
func (c *Client) SendReply(ctx context.Context, reply models.Reply) error {
	chatID, err := strconv.ParseInt(reply.SessionKey, 10, 64)
	if err != nil {
		slog.Error("Telegram SendReply received invalid session key", "error", err, "sessionKey", reply.SessionKey)
		return fmt.Errorf("invalid telegram session key %q: %w", reply.SessionKey, err)
	}

	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.ReplyMarkup = replyMarkup(reply.SuggestedReplies)

	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			slog.Error("Telegram SendReply failed", "error", err, "chat_id", chatID)
			return fmt.Errorf("failed to send telegram message to %d: %w", chatID, err)
		}
		slog.Debug("Telegram SendReply succeeded", "chat_id", chatID, "suggested_replies", len(reply.SuggestedReplies))
		return nil
	case <-ctx.Done():
		slog.Error("Telegram SendReply timed out", "chat_id", chatID)
		return ctx.Err()
	}
}

// inboundFromUpdate converts one bot update into an inbound message. Updates
// without a message, and messages from group or channel chats, are dropped;
// the bot only talks to individual participants.
func inboundFromUpdate(update tgbotapi.Update) (models.InboundMessage, bool) {
	if update.Message == nil {
		return models.InboundMessage{}, false
	}
	if !update.Message.Chat.IsPrivate() {
		slog.Debug("Telegram update ignored: chat is not private", "chat_id", update.Message.Chat.ID, "chat_type", update.Message.Chat.Type)
		return models.InboundMessage{}, false
	}
	return models.InboundMessage{
		SessionKey: strconv.FormatInt(update.Message.Chat.ID, 10),
		// Text stays empty for stickers, photos, and other non-text content;
		// the transition function ignores such events.
		Text: update.Message.Text,
	}, true
}

// replyMarkup renders suggested replies as a one-row reply keyboard, or a
// keyboard removal when there are none.
func replyMarkup(suggestedReplies []string) interface{} {
	if len(suggestedReplies) == 0 {
		return tgbotapi.NewRemoveKeyboard(false)
	}
	buttons := make([]tgbotapi.KeyboardButton, 0, len(suggestedReplies))
	for _, suggestion := range suggestedReplies {
		buttons = append(buttons, tgbotapi.NewKeyboardButton(suggestion))
	}
	return tgbotapi.NewReplyKeyboard(buttons)
}
