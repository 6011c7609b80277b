package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/moderation"
	"github.com/atrishin/feedline/app/publish"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := msg.CommandArguments()

	switch msg.Command() {
	case "add_feed":
		b.handleAddFeed(ctx, chatID, args)
	case "remove_feed":
		b.handleRemoveFeed(ctx, chatID, args)
	case "list_feeds":
		b.handleListFeeds(ctx, chatID)
	case "set_channel":
		b.handleSetChannel(ctx, chatID, args)
	case "moderation":
		b.handleModeration(ctx, chatID, args)
	case "status":
		b.handleStatus(ctx, chatID)
	case "start", "help":
		b.reply(chatID, helpText)
	default:
		b.reply(chatID, "Неизвестная команда. /help")
	}
}

const helpText = `Команды:
/add_feed <url> [название] - добавить источник
/remove_feed <url> - удалить источник
/list_feeds - список источников
/set_channel <@канал> - канал публикации
/moderation on|off - премодерация
/status - состояние`

func (b *Bot) handleAddFeed(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.reply(chatID, "Использование: /add_feed <url> [название]")
		return
	}

	url := fields[0]
	label := strings.Join(fields[1:], " ")

	existing, err := b.feedRepo.GetFeedByURL(ctx, url)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if existing != nil {
		b.reply(chatID, "Источник уже добавлен: "+url)
		return
	}

	feed, err := b.feedRepo.CreateFeed(ctx, url, label)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	slog.Info("Feed added by operator", "feed", feed.URL)
	b.reply(chatID, "Источник добавлен: "+feed.URL)
}

func (b *Bot) handleRemoveFeed(ctx context.Context, chatID int64, args string) {
	url := strings.TrimSpace(args)
	if url == "" {
		b.reply(chatID, "Использование: /remove_feed <url>")
		return
	}

	feed, err := b.feedRepo.GetFeedByURL(ctx, url)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if feed == nil {
		b.reply(chatID, "Источник не найден: "+url)
		return
	}

	if err := b.feedRepo.DeleteFeed(ctx, url); err != nil {
		b.replyError(chatID, err)
		return
	}

	slog.Info("Feed removed by operator", "feed", url)
	b.reply(chatID, "Источник удалён: "+url)
}

func (b *Bot) handleListFeeds(ctx context.Context, chatID int64) {
	feeds, err := b.feedRepo.ListFeeds(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if len(feeds) == 0 {
		b.reply(chatID, "Источники не добавлены.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Источники:\n")
	for _, feed := range feeds {
		marker := "✅"
		if !feed.Enabled {
			marker = "🚫"
		}
		fmt.Fprintf(&sb, "%s %s", marker, feed.URL)
		if feed.Label != "" {
			fmt.Fprintf(&sb, " (%s)", feed.Label)
		}
		if feed.LastErrorMsg != "" {
			fmt.Fprintf(&sb, "\n   ⚠️ %s", feed.LastErrorMsg)
		}
		sb.WriteString("\n")
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handleSetChannel(ctx context.Context, chatID int64, args string) {
	channel := strings.TrimSpace(args)
	if channel == "" {
		b.reply(chatID, "Использование: /set_channel <@канал или ID>")
		return
	}

	if err := b.settingRepo.Set(ctx, database.SettingDefaultChannel, channel); err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, "Канал публикации: "+channel)
}

func (b *Bot) handleModeration(ctx context.Context, chatID int64, args string) {
	var value string
	switch strings.TrimSpace(strings.ToLower(args)) {
	case "on":
		value = "true"
	case "off":
		value = "false"
	default:
		b.reply(chatID, "Использование: /moderation on|off")
		return
	}

	if err := b.settingRepo.Set(ctx, database.SettingModerationEnabled, value); err != nil {
		b.replyError(chatID, err)
		return
	}

	if value == "true" {
		b.reply(chatID, "Премодерация включена.")
	} else {
		b.reply(chatID, "Премодерация выключена.")
	}
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	total, enabled, err := b.feedRepo.GetFeedCount(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	entries, err := b.entryRepo.GetEntryCount(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	queueCounts, err := b.queueRepo.GetStatusCounts(ctx)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	published, err := b.pubRepo.CountSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	moderationEnabled, err := b.settingRepo.Get(ctx, database.SettingModerationEnabled)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	channel, err := b.settingRepo.Get(ctx, database.SettingDefaultChannel)
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	if channel == "" {
		channel = "не задан"
	}
	moderationState := "выключена"
	if moderationEnabled == "true" {
		moderationState = "включена"
	}

	text := fmt.Sprintf(`Состояние:
Источники: %d (активных %d)
Записей: %d
Очередь: ожидает %d, в работе %d, доставлено %d, ошибок %d
Публикаций за 24ч: %d
Премодерация: %s
Канал: %s`,
		total, enabled, entries,
		queueCounts[database.QueueStatusPending], queueCounts[database.QueueStatusProcessing],
		queueCounts[database.QueueStatusCompleted], queueCounts[database.QueueStatusFailed],
		published, moderationState, channel)

	b.reply(chatID, text)
}

func (b *Bot) replyError(chatID int64, err error) {
	slog.Error("Command failed", "error", err)
	b.reply(chatID, "Ошибка: "+err.Error())
}

// decision is a parsed moderation callback.
type decision struct {
	action string
	id     string
	delay  time.Duration
}

var errBadCallback = errors.New("malformed callback data")

// parseCallback splits the callback payload attached to moderation keyboard
// buttons.
func parseCallback(data string) (decision, error) {
	parts := strings.Split(data, ":")

	switch parts[0] {
	case publish.CallbackPublishPost, publish.CallbackPublishStory, publish.CallbackBanSource:
		if len(parts) != 2 || parts[1] == "" {
			return decision{}, errBadCallback
		}
		return decision{action: parts[0], id: parts[1]}, nil
	case publish.CallbackDelay:
		if len(parts) != 3 || parts[2] == "" {
			return decision{}, errBadCallback
		}
		minutes, err := strconv.Atoi(parts[1])
		if err != nil || minutes <= 0 {
			return decision{}, errBadCallback
		}
		return decision{action: parts[0], id: parts[2], delay: time.Duration(minutes) * time.Minute}, nil
	default:
		return decision{}, errBadCallback
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	dec, err := parseCallback(query.Data)
	if err != nil {
		b.answerCallback(query.ID, "Неизвестное действие")
		return
	}

	var result string
	switch dec.action {
	case publish.CallbackPublishPost:
		err = b.gate.PublishNow(ctx, dec.id)
		result = "Отправлено в очередь публикации"
	case publish.CallbackPublishStory:
		err = b.gate.PublishStory(ctx, dec.id, query.From.ID)
		result = "Сторис опубликован"
	case publish.CallbackDelay:
		err = b.gate.Delay(ctx, dec.id, dec.delay)
		result = fmt.Sprintf("Публикация отложена на %d мин", int(dec.delay.Minutes()))
	case publish.CallbackBanSource:
		var feed *database.Feed
		feed, err = b.gate.BanSource(ctx, dec.id)
		if err == nil {
			result = "Источник отключён: " + feed.URL
		}
	}

	switch {
	case err == nil:
		b.answerCallback(query.ID, result)
		b.clearKeyboard(query)
	case errors.Is(err, moderation.ErrExpired):
		b.answerCallback(query.ID, "Время решения истекло")
		b.clearKeyboard(query)
	case errors.Is(err, moderation.ErrAlreadyDecided):
		b.answerCallback(query.ID, "Решение уже принято")
	default:
		slog.Error("Moderation decision failed", "action", dec.action, "id", dec.id, "error", err)
		b.answerCallback(query.ID, "Ошибка: "+err.Error())
	}
}

func (b *Bot) answerCallback(queryID, text string) {
	callback := tgbotapi.NewCallback(queryID, text)
	if _, err := b.api.Request(callback); err != nil {
		slog.Error("Failed to answer callback", "error", err)
	}
}

// clearKeyboard removes decision buttons from the preview once a terminal
// outcome is reached.
func (b *Bot) clearKeyboard(query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(query.Message.Chat.ID, query.Message.MessageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(edit); err != nil {
		slog.Debug("Failed to clear moderation keyboard", "error", err)
	}
}
