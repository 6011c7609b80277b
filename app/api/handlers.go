package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atrishin/feedline/app/cfg"
	"github.com/atrishin/feedline/app/database"
)

var allowedSettings = map[string]bool{
	database.SettingModerationEnabled: true,
	database.SettingDefaultChannel:    true,
	database.SettingPollInterval:      true,
}

type Handler struct {
	feedRepo    database.FeedRepository
	entryRepo   database.EntryRepository
	queueRepo   database.QueueRepository
	settingRepo database.SettingRepository
	pubRepo     database.PublicationRepository
}

func NewHandler(feedRepo database.FeedRepository, entryRepo database.EntryRepository,
	queueRepo database.QueueRepository, settingRepo database.SettingRepository,
	pubRepo database.PublicationRepository) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		entryRepo:   entryRepo,
		queueRepo:   queueRepo,
		settingRepo: settingRepo,
		pubRepo:     pubRepo,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   cfg.Get().Version,
	}

	if total, enabled, err := h.feedRepo.GetFeedCount(c.Request.Context()); err == nil {
		health["feeds"] = total
		health["enabled_feeds"] = enabled
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	total, enabled, err := h.feedRepo.GetFeedCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "feed_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	entries, err := h.entryRepo.GetEntryCount(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "entry_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	queueCounts, err := h.queueRepo.GetStatusCounts(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "queue_counts", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	published, err := h.pubRepo.CountSince(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		slog.Error("Database error", "operation", "publication_count", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": gin.H{
			"total":   total,
			"enabled": enabled,
		},
		"entries":            entries,
		"queue":              queueCounts,
		"published_last_24h": published,
	})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.ListFeeds(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	result := make([]map[string]interface{}, 0, len(feeds))
	for _, feed := range feeds {
		info := map[string]interface{}{
			"url":     feed.URL,
			"label":   feed.Label,
			"enabled": feed.Enabled,
		}
		if feed.Language != "" {
			info["language"] = feed.Language
		}
		if feed.LastOKAt != nil {
			info["last_ok_at"] = feed.LastOKAt
		}
		if feed.LastErrorMsg != "" {
			info["last_error"] = feed.LastErrorMsg
			info["last_error_at"] = feed.LastErrorAt
		}
		result = append(result, info)
	}

	c.JSON(http.StatusOK, gin.H{"feeds": result})
}

func (h *Handler) AddFeed(c *gin.Context) {
	var req struct {
		URL   string `json:"url" binding:"required"`
		Label string `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	existing, err := h.feedRepo.GetFeedByURL(ctx, req.URL)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "feed already exists"})
		return
	}

	feed, err := h.feedRepo.CreateFeed(ctx, req.URL, req.Label)
	if err != nil {
		slog.Error("Database error", "operation", "create_feed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	slog.Info("Feed added via API", "feed", feed.URL)
	c.JSON(http.StatusCreated, gin.H{"url": feed.URL, "label": feed.Label})
}

func (h *Handler) RemoveFeed(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	ctx := c.Request.Context()

	feed, err := h.feedRepo.GetFeedByURL(ctx, url)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}

	if err := h.feedRepo.DeleteFeed(ctx, url); err != nil {
		slog.Error("Database error", "operation", "delete_feed", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	slog.Info("Feed removed via API", "feed", url)
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetSetting(c *gin.Context) {
	key := c.Param("key")
	if !allowedSettings[key] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting"})
		return
	}

	value, err := h.settingRepo.Get(c.Request.Context(), key)
	if err != nil {
		slog.Error("Database error", "operation", "get_setting", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

func (h *Handler) SetSetting(c *gin.Context) {
	key := c.Param("key")
	if !allowedSettings[key] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting"})
		return
	}

	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settingRepo.Set(c.Request.Context(), key, req.Value); err != nil {
		slog.Error("Database error", "operation", "set_setting", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
