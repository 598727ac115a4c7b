package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Bot access
	BotToken         string  `env:"BOT_TOKEN"`
	AllowedChatRaw   string  `env:"ALLOWED_CHAT_ID"`
	AllowPrivateChat bool    `env:"ALLOW_PRIVATE_CHAT" envDefault:"false"`
	BlockedUserIDs   []int64 `env:"BLOCKED_USER_IDS" envSeparator:","`

	// Throttling
	AntiSpamInterval         time.Duration `env:"ANTI_SPAM_INTERVAL" envDefault:"5s"`
	AntiSpamCallbackInterval time.Duration `env:"ANTI_SPAM_CALLBACK_INTERVAL" envDefault:"1s"`

	// Fetch limits
	MaxFileSizeMB           int64 `env:"MAX_FILE_SIZE_MB" envDefault:"50"`
	MaxSongDurationMin      int   `env:"MAX_SONG_DURATION_MIN" envDefault:"15"`
	ConcurrentDownloadLimit int64 `env:"CONCURRENT_DOWNLOAD_LIMIT" envDefault:"5"`

	// Interaction cache
	InfoExpirationHours int    `env:"INFO_EXPIRATION_HOURS" envDefault:"10"`
	CacheBackend        string `env:"CACHE_BACKEND" envDefault:"sqlite"`
	RedisURL            string `env:"REDIS_URL"`

	// Storage
	DataPath        string `env:"DATA_PATH" envDefault:"data"`
	TempPath        string `env:"TEMP_PATH" envDefault:"temp"`
	ChannelDBFile   string `env:"CHANNEL_DB_FILE" envDefault:"music_channel_base.db"`
	ChatDBFile      string `env:"CHAT_DB_FILE" envDefault:"music_chat_base.db"`
	CacheDBFile     string `env:"CACHE_DB_FILE" envDefault:"songs_cache.db"`
	DeletedSongsLog string `env:"DELETED_SONGS_LOG" envDefault:"deleted_songs.log"`

	// Catalog
	FuzzyDuplicateThreshold int   `env:"FUZZY_DUPLICATE_THRESHOLD" envDefault:"90"`
	FuzzyCandidateCap       int   `env:"FUZZY_CANDIDATE_CAP" envDefault:"200"`
	SearchFuzzyCutoff       int   `env:"SEARCH_FUZZY_CUTOFF" envDefault:"65"`
	SearchLimit             int   `env:"SEARCH_LIMIT" envDefault:"50"`
	MusicStorageChannelID   int64 `env:"MUSIC_STORAGE_CHANNEL_ID" envDefault:"0"`
	EnableInlineSearch      bool  `env:"ENABLE_INLINE_SEARCH" envDefault:"true"`

	// Extraction tool
	YTDLPPath        string        `env:"YTDLP_PATH"`
	YTDLPAutoInstall bool          `env:"YTDLP_AUTO_INSTALL" envDefault:"true"`
	PrecheckBackend  string        `env:"PRECHECK_BACKEND" envDefault:"ytdlp"`
	ProbeAudio       bool          `env:"PROBE_AUDIO" envDefault:"false"`
	TranscodeAudio   bool          `env:"TRANSCODE_AUDIO" envDefault:"false"`
	DislikeAPIURL    string        `env:"DISLIKE_API_URL" envDefault:"https://returnyoutubedislikeapi.com/votes"`
	DislikeTimeout   time.Duration `env:"DISLIKE_TIMEOUT" envDefault:"3s"`

	// Server / logging
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFile  string `env:"LOG_FILE"`
}

// ChatPolicy is the parsed form of ALLOWED_CHAT_ID.
type ChatPolicy struct {
	AllowAll bool
	IDs      []int64
}

// Allows reports whether a group chat may use the bot.
func (p ChatPolicy) Allows(chatID int64) bool {
	if p.AllowAll {
		return true
	}
	for _, id := range p.IDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// Load reads DATA_PATH/.env when present and then the process environment.
func Load() (*Config, error) {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = "data"
	}
	if err := godotenv.Load(filepath.Join(dataPath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Parse builds a config from an explicit variable set instead of the process environment.
func Parse(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	if c.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FILE_SIZE_MB must be positive"))
	}
	if c.MaxSongDurationMin <= 0 {
		errs = append(errs, fmt.Errorf("MAX_SONG_DURATION_MIN must be positive"))
	}
	if c.ConcurrentDownloadLimit <= 0 {
		errs = append(errs, fmt.Errorf("CONCURRENT_DOWNLOAD_LIMIT must be positive"))
	}
	if c.InfoExpirationHours <= 0 {
		errs = append(errs, fmt.Errorf("INFO_EXPIRATION_HOURS must be positive"))
	}
	if c.FuzzyDuplicateThreshold < 0 || c.FuzzyDuplicateThreshold > 100 {
		errs = append(errs, fmt.Errorf("FUZZY_DUPLICATE_THRESHOLD must be within 0..100"))
	}
	if c.SearchFuzzyCutoff < 0 || c.SearchFuzzyCutoff > 100 {
		errs = append(errs, fmt.Errorf("SEARCH_FUZZY_CUTOFF must be within 0..100"))
	}
	switch c.CacheBackend {
	case "sqlite":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend))
	}
	switch c.PrecheckBackend {
	case "ytdlp", "native":
	default:
		errs = append(errs, fmt.Errorf("unknown PRECHECK_BACKEND %q", c.PrecheckBackend))
	}
	if _, err := c.ChatPolicy(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ChatPolicy parses ALLOWED_CHAT_ID: empty allows every chat, "false" allows none.
func (c *Config) ChatPolicy() (ChatPolicy, error) {
	raw := strings.TrimSpace(c.AllowedChatRaw)
	switch strings.ToLower(raw) {
	case "":
		return ChatPolicy{AllowAll: true}, nil
	case "false":
		return ChatPolicy{}, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return ChatPolicy{}, fmt.Errorf("invalid ALLOWED_CHAT_ID entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ChatPolicy{IDs: ids}, nil
}

func (c *Config) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

func (c *Config) MaxDurationSeconds() float64 {
	return float64(c.MaxSongDurationMin * 60)
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.InfoExpirationHours) * time.Hour
}

func (c *Config) ChannelDBPath() string {
	return filepath.Join(c.DataPath, c.ChannelDBFile)
}

func (c *Config) ChatDBPath() string {
	return filepath.Join(c.DataPath, c.ChatDBFile)
}

func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataPath, c.CacheDBFile)
}

func (c *Config) DeletedSongsLogPath() string {
	return filepath.Join(c.DataPath, c.DeletedSongsLog)
}

// LogFilePath is where ERROR lines are kept; defaults to DATA_PATH/bot.log.
func (c *Config) LogFilePath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.DataPath, "bot.log")
}
