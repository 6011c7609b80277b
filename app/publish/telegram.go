package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/security"
)

// Callback data prefixes understood by the moderation keyboard.
const (
	CallbackPublishPost  = "publish_post"
	CallbackPublishStory = "publish_story"
	CallbackDelay        = "delay"
	CallbackBanSource    = "ban_source"
)

// SessionKindStory is the vault slot holding the user session credential
// needed for story publishing. The bot token alone cannot post stories.
const SessionKindStory = "story_session"

var (
	_ Publisher = (*TelegramPublisher)(nil)
	_ Notifier  = (*TelegramPublisher)(nil)
)

// TelegramPublisher delivers entries through the Telegram Bot API and sends
// moderation previews to operators.
type TelegramPublisher struct {
	bot      *tgbotapi.BotAPI
	media    Media
	sessions database.SessionRepository
	vault    *security.Vault
}

func NewTelegramPublisher(bot *tgbotapi.BotAPI, media Media, sessions database.SessionRepository, vault *security.Vault) *TelegramPublisher {
	return &TelegramPublisher{
		bot:      bot,
		media:    media,
		sessions: sessions,
		vault:    vault,
	}
}

func (p *TelegramPublisher) DeliverPost(ctx context.Context, entry *database.Entry, destination string) (string, error) {
	if destination == "" {
		return "", &ConfigurationError{Reason: "no destination channel configured"}
	}

	text := RenderPost(entry)

	if entry.ImageURL != "" {
		messageID, err := p.sendPhoto(ctx, entry, destination, text)
		if err == nil {
			return messageID, nil
		}
		// Image problems never block the post itself.
		slog.Warn("Photo delivery failed, falling back to text", "entry", entry.ID, "error", err)
	}

	return p.DeliverText(ctx, text, destination)
}

func (p *TelegramPublisher) DeliverStory(ctx context.Context, entry *database.Entry, recipient string) error {
	if recipient == "" {
		return &ConfigurationError{Reason: "no story recipient configured"}
	}
	if p.sessions == nil || p.vault == nil {
		return &ConfigurationError{Reason: "story publishing requires a session vault"}
	}

	blob, err := p.sessions.GetBlob(ctx, SessionKindStory)
	if err != nil {
		return fmt.Errorf("failed to load story session: %w", err)
	}
	if blob == nil {
		return &ConfigurationError{Reason: "no story session stored"}
	}
	if _, err := p.vault.Open(blob); err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("story session unusable: %v", err)}
	}

	overlay := RenderStory(entry)

	if entry.ImageURL != "" {
		data, err := p.media.FetchImage(ctx, entry.ImageURL)
		if err == nil {
			if data, err = p.media.TransformForStory(data, overlay); err == nil {
				photo := tgbotapi.NewPhoto(0, tgbotapi.FileBytes{Name: "story.jpg", Bytes: data})
				photo.Caption = overlay
				applyDestination(&photo.BaseChat, recipient)
				if _, err := p.bot.Send(photo); err != nil {
					return classify(err)
				}
				return nil
			}
		}
		slog.Warn("Story image unavailable, sending text only", "entry", entry.ID, "error", err)
	}

	_, err = p.DeliverText(ctx, overlay, recipient)
	return err
}

func (p *TelegramPublisher) DeliverText(ctx context.Context, text, destination string) (string, error) {
	if destination == "" {
		return "", &ConfigurationError{Reason: "no destination channel configured"}
	}

	msg := tgbotapi.NewMessage(0, text)
	applyDestination(&msg.BaseChat, destination)

	sent, err := p.bot.Send(msg)
	if err != nil {
		return "", classify(err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

func (p *TelegramPublisher) SendModerationPreview(ctx context.Context, entry *database.Entry, operatorIDs []int64) []NotificationResult {
	text := RenderPreview(entry)
	keyboard := moderationKeyboard(entry)

	results := make([]NotificationResult, 0, len(operatorIDs))
	for _, operatorID := range operatorIDs {
		msg := tgbotapi.NewMessage(operatorID, text)
		msg.ReplyMarkup = keyboard

		sent, err := p.bot.Send(msg)
		result := NotificationResult{OperatorID: operatorID}
		if err != nil {
			result.Err = classify(err)
		} else {
			result.NotificationID = strconv.Itoa(sent.MessageID)
		}
		results = append(results, result)
	}

	return results
}

func (p *TelegramPublisher) sendPhoto(ctx context.Context, entry *database.Entry, destination, caption string) (string, error) {
	data, err := p.media.FetchImage(ctx, entry.ImageURL)
	if err != nil {
		return "", err
	}
	data, err = p.media.TransformForPost(data)
	if err != nil {
		return "", err
	}

	photo := tgbotapi.NewPhoto(0, tgbotapi.FileBytes{Name: "post.jpg", Bytes: data})
	photo.Caption = caption
	applyDestination(&photo.BaseChat, destination)

	sent, err := p.bot.Send(photo)
	if err != nil {
		return "", classify(err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

func moderationKeyboard(entry *database.Entry) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Опубликовать", CallbackPublishPost+":"+entry.ID),
			tgbotapi.NewInlineKeyboardButtonData("📖 Сторис", CallbackPublishStory+":"+entry.ID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏰ Через 30 мин", fmt.Sprintf("%s:30:%s", CallbackDelay, entry.ID)),
			tgbotapi.NewInlineKeyboardButtonData("⏰ Через 2 часа", fmt.Sprintf("%s:120:%s", CallbackDelay, entry.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Забанить источник", CallbackBanSource+":"+entry.FeedID),
		),
	)
}

// applyDestination routes to a channel by @username or to a numeric chat ID.
func applyDestination(chat *tgbotapi.BaseChat, destination string) {
	if strings.HasPrefix(destination, "@") {
		chat.ChannelUsername = destination
		return
	}
	if chatID, err := strconv.ParseInt(destination, 10, 64); err == nil {
		chat.ChatID = chatID
		return
	}
	// A bare channel name still works when prefixed.
	chat.ChannelUsername = "@" + destination
}

// classify maps a Bot API failure onto the retry taxonomy. Rate limits and
// server-side failures are transient; bad requests and access errors are not.
func classify(err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		transient := tgErr.Code == 429 || tgErr.Code >= 500 || tgErr.RetryAfter > 0
		return &DeliveryError{Transient: transient, Err: err}
	}
	// Anything that never reached the API (network, timeouts) may succeed
	// on a later attempt.
	return &DeliveryError{Transient: true, Err: err}
}
