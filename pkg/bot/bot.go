// Package bot is a Telegram front end to the deal detector.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/San4ouzs/Flight-deals-eu/pkg/deals"
	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

// ErrMissingToken indicates that no bot token was configured.
var ErrMissingToken = errors.New("telegram bot token is not set")

// DealFinder is the deal detector as seen by the bot.
type DealFinder interface {
	FindDeals(ctx context.Context, thresholdPct float64, limit int) ([]deals.Deal, error)
}

// Sender delivers outgoing messages. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options configure command handling.
type Options struct {
	DefaultThreshold float64
	DefaultLimit     int
	MaxLines         int
	// AllowedChatID restricts the bot to one chat when non-zero.
	AllowedChatID int64
}

// Bot answers /start and /deals.
type Bot struct {
	finder DealFinder
	sender Sender
	opts   Options
	logger *logging.Logger
}

// New creates a bot that replies through sender.
func New(finder DealFinder, sender Sender, opts Options, logger *logging.Logger) *Bot {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = deals.DefaultLimit
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = 80
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Bot{
		finder: finder,
		sender: sender,
		opts:   opts,
		logger: logger.With("component", "bot"),
	}
}

// Connect logs in to Telegram with token.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return api, nil
}

// Run long-polls api for updates until ctx is done.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	b.logger.Info("Bot started", "username", api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate answers a single update. Non-command messages, unknown
// commands and chats other than the allowed one are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if b.opts.AllowedChatID != 0 && msg.Chat.ID != b.opts.AllowedChatID {
		b.logger.Warn("Ignoring command from unauthorized chat", "chat_id", msg.Chat.ID, "command", msg.Command())
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.reply(msg, helpText, false)
	case "deals":
		b.handleDeals(ctx, msg)
	}
}

func (b *Bot) handleDeals(ctx context.Context, msg *tgbotapi.Message) {
	threshold, limit, err := ParseDealsArgs(msg.CommandArguments(), b.opts.DefaultThreshold, b.opts.DefaultLimit)
	if err != nil {
		b.reply(msg, usageText, false)
		return
	}

	found, err := b.finder.FindDeals(ctx, threshold, limit)
	switch {
	case errors.Is(err, sources.ErrInvalidInput):
		b.reply(msg, usageText, false)
		return
	case err != nil:
		b.logger.Error("Deal query failed", "chat_id", msg.Chat.ID, "error", err)
		b.reply(msg, "Could not load deals, please try again later.", false)
		return
	}

	if len(found) == 0 {
		b.reply(msg, noDeals, false)
		return
	}

	b.reply(msg, "<pre>"+html.EscapeString(FormatDeals(found, threshold, b.opts.MaxLines))+"</pre>", true)
}

func (b *Bot) reply(to *tgbotapi.Message, text string, preformatted bool) {
	out := tgbotapi.NewMessage(to.Chat.ID, text)
	out.ReplyToMessageID = to.MessageID
	if preformatted {
		out.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := b.sender.Send(out); err != nil {
		b.logger.Warn("Failed to send reply", "chat_id", to.Chat.ID, "error", err)
	}
}
