package cfg

type Cfg struct {
	// Telegram configuration
	TelegramToken string
	AdminIDs      []int64

	// Storage configuration
	DBPath   string
	RedisURL string

	// Polling configuration
	PollInterval   int // minutes
	FetchTimeout   int // seconds
	MaxFetches     int // total concurrent feed fetches
	MaxHostFetches int // concurrent fetches per host
	WorkerCount    int

	// Publication queue
	QueueBatchSize int
	MaxAttempts    int

	// Digest
	DigestCron string

	// Retention (days)
	EntryRetention       int
	QueueRetention       int
	PublicationRetention int

	// Content normalization
	DefaultLanguage string
	CrossFeedDedup  bool
	UTMEnabled      bool
	UTMSource       string
	UTMMedium       string
	UTMCampaign     string

	// Security
	SessionKey string

	// Application metadata
	Port      string
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
