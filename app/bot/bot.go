package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/moderation"
)

// Bot is the operator control surface: feed management commands, runtime
// settings and moderation decision callbacks. Only configured admin IDs are
// served; everyone else is ignored.
type Bot struct {
	api         *tgbotapi.BotAPI
	gate        *moderation.Gate
	feedRepo    database.FeedRepository
	entryRepo   database.EntryRepository
	queueRepo   database.QueueRepository
	settingRepo database.SettingRepository
	pubRepo     database.PublicationRepository
	adminIDs    map[int64]bool
}

func New(api *tgbotapi.BotAPI, gate *moderation.Gate, feedRepo database.FeedRepository,
	entryRepo database.EntryRepository, queueRepo database.QueueRepository,
	settingRepo database.SettingRepository, pubRepo database.PublicationRepository,
	adminIDs []int64) *Bot {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}

	return &Bot{
		api:         api,
		gate:        gate,
		feedRepo:    feedRepo,
		entryRepo:   entryRepo,
		queueRepo:   queueRepo,
		settingRepo: settingRepo,
		pubRepo:     pubRepo,
		adminIDs:    admins,
	}
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)

	slog.Info("Operator bot started", "admins", len(b.adminIDs))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		if !b.authorized(update.Message.From) {
			slog.Debug("Ignoring command from unknown user", "user", userID(update.Message.From))
			return
		}
		b.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil:
		if !b.authorized(update.CallbackQuery.From) {
			slog.Debug("Ignoring callback from unknown user", "user", userID(update.CallbackQuery.From))
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) authorized(user *tgbotapi.User) bool {
	return user != nil && b.adminIDs[user.ID]
}

func userID(user *tgbotapi.User) int64 {
	if user == nil {
		return 0
	}
	return user.ID
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		slog.Error("Failed to send reply", "chat", chatID, "error", err)
	}
}
