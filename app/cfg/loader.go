package cfg

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Telegram configuration
	TelegramToken string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (required)" required:"true"`
	AdminIDs      string `long:"admin-ids" env:"ADMIN_IDS" description:"Comma-separated Telegram user IDs allowed to moderate"`

	// Storage configuration
	DBPath   string `long:"db-path" env:"DB_PATH" default:"data/feedline.sqlite3" description:"SQLite database path"`
	RedisURL string `long:"redis-url" env:"REDIS_URL" default:"redis://localhost:6379/0" description:"Redis URL for moderation correlation records"`

	// Polling configuration
	PollInterval   int `long:"poll-interval" env:"POLL_INTERVAL" default:"10" description:"Feed poll interval in minutes"`
	FetchTimeout   int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-feed fetch timeout in seconds"`
	MaxFetches     int `long:"max-fetches" env:"MAX_FETCHES" default:"10" description:"Maximum concurrent feed fetches"`
	MaxHostFetches int `long:"max-host-fetches" env:"MAX_HOST_FETCHES" default:"5" description:"Maximum concurrent fetches per host"`
	WorkerCount    int `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers"`

	// Publication queue
	QueueBatchSize int `long:"queue-batch-size" env:"QUEUE_BATCH_SIZE" default:"10" description:"Queue entries processed per drain cycle"`
	MaxAttempts    int `long:"max-attempts" env:"MAX_ATTEMPTS" default:"3" description:"Delivery attempt ceiling before a queue entry is terminal"`

	// Digest
	DigestCron string `long:"digest-cron" env:"DIGEST_CRON" default:"0 9 * * *" description:"Cron schedule for the daily digest"`

	// Retention (days)
	EntryRetention       int `long:"entry-retention" env:"ENTRY_RETENTION_DAYS" default:"30" description:"Days to keep ingested entries"`
	QueueRetention       int `long:"queue-retention" env:"QUEUE_RETENTION_DAYS" default:"7" description:"Days to keep terminal queue entries"`
	PublicationRetention int `long:"publication-retention" env:"PUBLICATION_RETENTION_DAYS" default:"30" description:"Days to keep publication records"`

	// Content normalization
	DefaultLanguage string `long:"default-language" env:"DEFAULT_LANGUAGE" default:"ru" description:"Language assumed when detection is ambiguous"`
	CrossFeedDedup  bool   `long:"cross-feed-dedup" env:"CROSS_FEED_DEDUP" description:"Discard entries whose fingerprint matches an entry from another feed"`
	UTMEnabled      bool   `long:"utm" env:"UTM_ON" description:"Append UTM parameters to outbound links"`
	UTMSource       string `long:"utm-source" env:"UTM_SOURCE" default:"telegram" description:"utm_source value"`
	UTMMedium       string `long:"utm-medium" env:"UTM_MEDIUM" default:"social" description:"utm_medium value"`
	UTMCampaign     string `long:"utm-campaign" env:"UTM_CAMPAIGN" default:"rss_auto" description:"utm_campaign value"`

	// Security
	SessionKey string `long:"session-key" env:"SESSION_ENC_KEY" description:"Base64 32-byte key for session blob encryption"`

	// Application metadata
	Port      string `long:"port" env:"PORT" default:"8080" description:"HTTP status server port"`
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Feedline/1.0 (+https://github.com/atrishin/feedline)" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Moscow)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	adminIDs, err := parseAdminIDs(raw.AdminIDs)
	if err != nil {
		return nil, fmt.Errorf("invalid admin-ids: %w", err)
	}

	cfg := &Cfg{
		TelegramToken:        raw.TelegramToken,
		AdminIDs:             adminIDs,
		DBPath:               raw.DBPath,
		RedisURL:             raw.RedisURL,
		PollInterval:         raw.PollInterval,
		FetchTimeout:         raw.FetchTimeout,
		MaxFetches:           raw.MaxFetches,
		MaxHostFetches:       raw.MaxHostFetches,
		WorkerCount:          raw.WorkerCount,
		QueueBatchSize:       raw.QueueBatchSize,
		MaxAttempts:          raw.MaxAttempts,
		DigestCron:           raw.DigestCron,
		EntryRetention:       raw.EntryRetention,
		QueueRetention:       raw.QueueRetention,
		PublicationRetention: raw.PublicationRetention,
		DefaultLanguage:      raw.DefaultLanguage,
		CrossFeedDedup:       raw.CrossFeedDedup,
		UTMEnabled:           raw.UTMEnabled,
		UTMSource:            raw.UTMSource,
		UTMMedium:            raw.UTMMedium,
		UTMCampaign:          raw.UTMCampaign,
		SessionKey:           raw.SessionKey,
		Port:                 raw.Port,
		UserAgent:            raw.UserAgent,
		Timezone:             raw.Timezone,
		Debug:                raw.Debug,
		Version:              GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func parseAdminIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid admin ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
