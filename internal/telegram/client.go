// Package telegram provides a bot answering price digest commands via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/powerprices/internal/logger"
	"github.com/rewired-gh/powerprices/internal/models"
)

// digestSize is the number of countries listed at each end of the digest.
const digestSize = 3

// SnapshotSource returns the latest-per-country price snapshot used by /latest.
type SnapshotSource func(ctx context.Context) (models.Table, error)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram commands and outgoing digests.
type Client struct {
	bot            *tgbotapi.BotAPI
	sender         sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	snapshot       SnapshotSource
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, snapshot SnapshotSource) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, bot, chatIDInt, maxRetries, retryDelayBase, snapshot), nil
}

func newClient(bot *tgbotapi.BotAPI, s sender, chatID int64, maxRetries int, retryDelayBase time.Duration, snapshot SnapshotSource) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		sender:         s,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		snapshot:       snapshot,
	}
}

// ListenForCommands polls for Telegram updates and handles bot commands until ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil && update.Message.IsCommand() {
				c.handleCommand(ctx, update.Message)
			}
		}
	}
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.sender.Send(reply) //nolint:errcheck
	case "latest":
		text, err := c.digest(ctx)
		if err != nil {
			logger.Error("Failed to build price digest: %v", err)
			text = fmt.Sprintf("⚠️ *Digest unavailable*\n`%s`", escapeMarkdownV2(err.Error()))
		}
		if err := c.sendMarkdownV2(ctx, msg.Chat.ID, text); err != nil {
			logger.Warn("Failed to answer /latest: %v", err)
		}
	}
}

func (c *Client) digest(ctx context.Context) (string, error) {
	if c.snapshot == nil {
		return "", fmt.Errorf("no snapshot source configured")
	}
	table, err := c.snapshot(ctx)
	if err != nil {
		return "", err
	}
	return formatDigest(table, digestSize), nil
}

// SendDigest sends the current price digest to the configured chat.
func (c *Client) SendDigest(ctx context.Context) error {
	text, err := c.digest(ctx)
	if err != nil {
		return fmt.Errorf("failed to build digest: %w", err)
	}
	return c.sendMarkdownV2(ctx, c.chatID, text)
}

// sendMarkdownV2 sends a MarkdownV2 message with exponential-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "MarkdownV2"

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelayBase

	attempts := 0
	err := backoff.Retry(
		func() error {
			attempts++
			_, err := c.sender.Send(msg)
			return err
		},
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries-1)), ctx),
	)
	if err != nil {
		return fmt.Errorf("failed after %d attempts: %w", attempts, err)
	}
	return nil
}

// formatDigest lists the n cheapest and n most expensive countries of a snapshot sorted
// ascending by price.
func formatDigest(t models.Table, n int) string {
	var b strings.Builder
	b.WriteString("⚡ *" + escapeMarkdownV2(t.View.Title()) + "*\n")

	if len(t.Rows) == 0 {
		b.WriteString("\nNo prices available\\.")
		return b.String()
	}

	latest := t.Rows[0].Date
	for _, r := range t.Rows {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	fmt.Fprintf(&b, "📅 %s, %d countries\n\n", escapeMarkdownV2(periodLabel(t.Granularity, latest)), len(t.Rows))

	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	b.WriteString("🟢 *Cheapest*\n")
	for i := 0; i < n; i++ {
		writeDigestRow(&b, i+1, t.Rows[i])
	}

	b.WriteString("\n🔴 *Most expensive*\n")
	for i := 0; i < n; i++ {
		writeDigestRow(&b, i+1, t.Rows[len(t.Rows)-1-i])
	}

	return b.String()
}

func writeDigestRow(b *strings.Builder, rank int, r models.Row) {
	price := humanize.CommafWithDigits(r.Price, 2)
	fmt.Fprintf(b, "%d\\. %s \\(%s\\) *%s* EUR/MWh\n",
		rank, escapeMarkdownV2(r.Country), escapeMarkdownV2(r.ISO3), escapeMarkdownV2(price))
}

func periodLabel(g models.Granularity, t time.Time) string {
	switch g {
	case models.Monthly:
		return t.Format("January 2006")
	case models.Yearly:
		return t.Format("2006")
	default:
		return t.Format(models.DateLayout)
	}
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
