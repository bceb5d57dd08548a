// Package config maps viper settings onto a typed configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lepinkainen/everybook/internal/book"
	"github.com/spf13/viper"
)

// Word sources.
const (
	WordSourceWordnik = "wordnik"
	WordSourceFile    = "file"
)

// Config is the complete bot configuration.
type Config struct {
	Bot         BotConfig         `mapstructure:"bot"`
	Policy      PolicyConfig      `mapstructure:"policy"`
	Search      SearchConfig      `mapstructure:"search"`
	Wordnik     WordnikConfig     `mapstructure:"wordnik"`
	GoogleBooks GoogleBooksConfig `mapstructure:"googlebooks"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Dedup       DedupConfig       `mapstructure:"dedup"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

// BotConfig controls the posting cycle.
type BotConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	MemorySize     int           `mapstructure:"memory_size"`
	Interval       time.Duration `mapstructure:"interval"`
	EveryHours     int           `mapstructure:"every_hours"`
	StageTimeout   time.Duration `mapstructure:"stage_timeout"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	ArtifactDir    string        `mapstructure:"artifact_dir"`
	Blacklist      string        `mapstructure:"blacklist"`
	WordSource     string        `mapstructure:"word_source"`
	WordFile       string        `mapstructure:"word_file"`
	Seed           uint64        `mapstructure:"seed"`
	DryRun         bool          `mapstructure:"dry_run"`
}

// PolicyConfig holds the book validation bounds.
type PolicyConfig struct {
	MinTitleLength    int  `mapstructure:"min_title_length"`
	MaxTitleLength    int  `mapstructure:"max_title_length"`
	MinAuthorLength   int  `mapstructure:"min_author_length"`
	MaxAuthorLength   int  `mapstructure:"max_author_length"`
	MaxCombinedLength int  `mapstructure:"max_combined_length"`
	RejectNonLatin    bool `mapstructure:"reject_non_latin"`
	TrackYear         bool `mapstructure:"track_year"`
}

// SearchConfig controls catalog paging.
type SearchConfig struct {
	PageSize  int    `mapstructure:"page_size"`
	MaxOffset int    `mapstructure:"max_offset"`
	Language  string `mapstructure:"language"`
}

type WordnikConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	Limit              int    `mapstructure:"limit"`
	MaxLength          int    `mapstructure:"max_length"`
	MinCorpusCount     int    `mapstructure:"min_corpus_count"`
	MinDictionaryCount int    `mapstructure:"min_dictionary_count"`
}

type GoogleBooksConfig struct {
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	RetryAttempts int    `mapstructure:"retry_attempts"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type DedupConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBFile  string `mapstructure:"dbfile"`
}

// CacheConfig controls the Google Books response cache. An empty DBFile
// disables it.
type CacheConfig struct {
	DBFile string        `mapstructure:"dbfile"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	defaultPolicy := book.DefaultPolicy()

	v.SetDefault("bot.max_attempts", 35)
	v.SetDefault("bot.memory_size", 300)
	v.SetDefault("bot.interval", "8h")
	v.SetDefault("bot.every_hours", 8)
	v.SetDefault("bot.stage_timeout", "30s")
	v.SetDefault("bot.retry_base_delay", "1s")
	v.SetDefault("bot.retry_max_delay", "30s")
	v.SetDefault("bot.artifact_dir", "./tmp")
	v.SetDefault("bot.blacklist", "./badwords.json")
	v.SetDefault("bot.word_source", WordSourceWordnik)
	v.SetDefault("bot.word_file", "")
	v.SetDefault("bot.seed", 0)
	v.SetDefault("bot.dry_run", false)

	v.SetDefault("policy.min_title_length", defaultPolicy.MinTitleLength)
	v.SetDefault("policy.max_title_length", defaultPolicy.MaxTitleLength)
	v.SetDefault("policy.min_author_length", defaultPolicy.MinAuthorLength)
	v.SetDefault("policy.max_author_length", defaultPolicy.MaxAuthorLength)
	v.SetDefault("policy.max_combined_length", defaultPolicy.MaxCombinedLength)
	v.SetDefault("policy.reject_non_latin", defaultPolicy.RejectNonLatin)
	v.SetDefault("policy.track_year", defaultPolicy.TrackYear)

	v.SetDefault("search.page_size", 40)
	v.SetDefault("search.max_offset", 500)
	v.SetDefault("search.language", "en")

	v.SetDefault("wordnik.api_key", "")
	v.SetDefault("wordnik.base_url", "https://api.wordnik.com/v4")
	v.SetDefault("wordnik.limit", 10)
	v.SetDefault("wordnik.max_length", 12)
	v.SetDefault("wordnik.min_corpus_count", 3000)
	v.SetDefault("wordnik.min_dictionary_count", 15)

	v.SetDefault("googlebooks.api_key", "")
	v.SetDefault("googlebooks.base_url", "https://www.googleapis.com/books/v1")
	v.SetDefault("googlebooks.retry_attempts", 3)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("dedup.enabled", true)
	v.SetDefault("dedup.dbfile", "./everybook.db")

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("cache.dbfile", "./cache.db")
	v.SetDefault("cache.ttl", "24h")
}

// BindEnv maps the conventional API key variables onto config keys.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("EVERYBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	binds := map[string]string{
		"wordnik.api_key":     "WORDNIK_API_KEY",
		"googlebooks.api_key": "GOOGLE_BOOKS_API_KEY",
		"telegram.token":      "TELEGRAM_BOT_TOKEN",
		"telegram.chat_id":    "TELEGRAM_CHAT_ID",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. Missing credentials are reported when the
// client that needs them is built.
func (c *Config) Validate() error {
	var errs []error
	if c.Bot.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("bot.max_attempts must be at least 1, got %d", c.Bot.MaxAttempts))
	}
	if c.Bot.MemorySize < 1 {
		errs = append(errs, fmt.Errorf("bot.memory_size must be at least 1, got %d", c.Bot.MemorySize))
	}
	if c.Bot.Interval <= 0 {
		errs = append(errs, fmt.Errorf("bot.interval must be positive, got %s", c.Bot.Interval))
	}
	if c.Bot.StageTimeout <= 0 {
		errs = append(errs, fmt.Errorf("bot.stage_timeout must be positive, got %s", c.Bot.StageTimeout))
	}
	if c.Bot.ArtifactDir == "" {
		errs = append(errs, errors.New("bot.artifact_dir is required"))
	}
	switch c.Bot.WordSource {
	case WordSourceWordnik:
	case WordSourceFile:
		if c.Bot.WordFile == "" {
			errs = append(errs, errors.New("bot.word_file is required when bot.word_source is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("bot.word_source must be %q or %q, got %q", WordSourceWordnik, WordSourceFile, c.Bot.WordSource))
	}
	if c.Search.PageSize < 1 || c.Search.PageSize > 40 {
		errs = append(errs, fmt.Errorf("search.page_size must be between 1 and 40, got %d", c.Search.PageSize))
	}
	if c.Search.MaxOffset < 1 {
		errs = append(errs, fmt.Errorf("search.max_offset must be at least 1, got %d", c.Search.MaxOffset))
	}
	if c.Dedup.Enabled && c.Dedup.DBFile == "" {
		errs = append(errs, errors.New("dedup.dbfile is required when dedup is enabled"))
	}
	return errors.Join(errs...)
}

// BookPolicy converts the policy section for the validator.
func (c *Config) BookPolicy() book.Policy {
	return book.Policy{
		MinTitleLength:    c.Policy.MinTitleLength,
		MaxTitleLength:    c.Policy.MaxTitleLength,
		MinAuthorLength:   c.Policy.MinAuthorLength,
		MaxAuthorLength:   c.Policy.MaxAuthorLength,
		MaxCombinedLength: c.Policy.MaxCombinedLength,
		RejectNonLatin:    c.Policy.RejectNonLatin,
		TrackYear:         c.Policy.TrackYear,
	}
}
