package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Site      SiteConfig      `mapstructure:"site"`
	Run       RunConfig       `mapstructure:"run"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Translate TranslateConfig `mapstructure:"translate"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sheet     SheetConfig     `mapstructure:"sheet"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Trace     TraceConfig     `mapstructure:"trace"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SiteConfig holds the source site client configuration
type SiteConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	Timeout        int      `mapstructure:"timeout"` // seconds, per request
	MaxRetries     int      `mapstructure:"max_retries"`
	MinDelayMillis int      `mapstructure:"min_delay_ms"`
	JitterMillis   int      `mapstructure:"jitter_ms"`
	UserAgent      string   `mapstructure:"user_agent"`
	Proxies        []string `mapstructure:"proxies"`
	Makers         []string `mapstructure:"makers"` // fallback maker list when the brand index is unavailable
}

// RunConfig holds the run parameters
type RunConfig struct {
	Makers      []string `mapstructure:"makers"`
	Models      []string `mapstructure:"models"` // maker/model slugs
	Limit       int      `mapstructure:"limit"`  // records produced, 0 for no limit
	Test        bool     `mapstructure:"test"`
	Workers     int      `mapstructure:"workers"`
	FreshHours  int      `mapstructure:"fresh_hours"` // skip slugs synced more recently, 0 disables
	RetryFailed bool     `mapstructure:"retry_failed"`
}

type ExtractConfig struct {
	MaxMedia      int      `mapstructure:"max_media"`
	MinGallery    int      `mapstructure:"min_gallery"`
	ImageHosts    []string `mapstructure:"image_hosts"`
	ExcludeTokens []string `mapstructure:"exclude_tokens"`
	InScopeSuffix []string `mapstructure:"in_scope_suffix"`
	FetchSubPages bool     `mapstructure:"fetch_sub_pages"`
}

// EnrichConfig holds the enrichment stage configuration
type EnrichConfig struct {
	GBPToJPY        float64 `mapstructure:"gbp_to_jpy"` // fixed rate, also the fallback of the live rate
	LiveRate        bool    `mapstructure:"live_rate"`
	RateURL         string  `mapstructure:"rate_url"`
	RateTTLMinutes  int     `mapstructure:"rate_ttl_minutes"`
	DetectBodyTypes bool    `mapstructure:"detect_body_types"` // category page membership
}

// TranslateConfig holds the translation provider configuration
type TranslateConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	Endpoint             string  `mapstructure:"endpoint"`
	AuthKey              string  `mapstructure:"auth_key"`
	SourceLang           string  `mapstructure:"source_lang"`
	TargetLang           string  `mapstructure:"target_lang"`
	MaxChars             int     `mapstructure:"max_chars"`
	MaxRequestsPerSecond int     `mapstructure:"max_requests_per_second"`
	Timeout              int     `mapstructure:"timeout"`
	QuotaLimit           int     `mapstructure:"quota_limit"` // characters per month
	QuotaThreshold       float64 `mapstructure:"quota_threshold"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Table    string `mapstructure:"table"`
}

// SheetConfig holds the spreadsheet sink configuration. The google backend writes to a
// worksheet of a Google spreadsheet, the csv backend to a local file.
type SheetConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Backend         string `mapstructure:"backend"` // google or csv
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	Tab             string `mapstructure:"tab"`
	CredentialsFile string `mapstructure:"credentials_file"` // service account JSON
	Path            string `mapstructure:"path"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

// TraceConfig controls the span exporter. Spans go to stderr when enabled.
type TraceConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Pretty      bool   `mapstructure:"pretty"`
}

// Load loads configuration from an optional YAML file, environment variables and command-line flags
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := bindFlags(v, args); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Run.Test && (config.Run.Limit == 0 || config.Run.Limit > 5) {
		config.Run.Limit = 5
	}
	if config.Run.Workers < 1 {
		config.Run.Workers = 1
	}

	return &config, nil
}

func bindFlags(v *viper.Viper, args []string) error {
	fs := pflag.NewFlagSet("carwow-sync", pflag.ContinueOnError)
	fs.StringSlice("makers", nil, "restrict discovery to these makers")
	fs.StringSlice("models", nil, "process only these maker/model slugs")
	fs.Int("limit", 0, "stop after this many records")
	fs.Bool("test", false, "test mode (limit 5)")
	fs.Int("workers", 1, "URLs processed concurrently")
	fs.Bool("no-db", false, "disable the database sink")
	fs.Bool("no-sheet", false, "disable the spreadsheet sink")
	fs.Bool("no-translate", false, "disable the translation provider")
	fs.Bool("no-redis", false, "disable Redis state and retry queue")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	for flag, key := range map[string]string{
		"makers":  "run.makers",
		"models":  "run.models",
		"limit":   "run.limit",
		"test":    "run.test",
		"workers": "run.workers",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}

	for flag, key := range map[string]string{
		"no-db":        "database.enabled",
		"no-sheet":     "sheet.enabled",
		"no-translate": "translate.enabled",
		"no-redis":     "redis.enabled",
	} {
		if disabled, _ := fs.GetBool(flag); disabled {
			v.Set(key, false)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("site.base_url", "https://www.carwow.co.uk")
	v.SetDefault("site.timeout", 30)
	v.SetDefault("site.max_retries", 2)
	v.SetDefault("site.min_delay_ms", 500)
	v.SetDefault("site.jitter_ms", 1000)
	v.SetDefault("site.user_agent", "Mozilla/5.0 (compatible; carwow-catalog-sync/1.0)")
	v.SetDefault("site.proxies", []string{})
	v.SetDefault("site.makers", []string{
		"audi", "bmw", "mercedes-benz", "volkswagen", "toyota",
		"honda", "nissan", "mazda", "ford", "tesla",
	})

	v.SetDefault("run.makers", []string{})
	v.SetDefault("run.models", []string{})
	v.SetDefault("run.limit", 0)
	v.SetDefault("run.test", false)
	v.SetDefault("run.workers", 1)
	v.SetDefault("run.fresh_hours", 0)
	v.SetDefault("run.retry_failed", true)

	v.SetDefault("extract.max_media", 40)
	v.SetDefault("extract.min_gallery", 3)
	v.SetDefault("extract.image_hosts", []string{"prismic.io", "carwow", "imgix.net", "cloudinary.com"})
	v.SetDefault("extract.exclude_tokens", []string{})
	v.SetDefault("extract.in_scope_suffix", []string{"specifications", "colours"})
	v.SetDefault("extract.fetch_sub_pages", true)

	v.SetDefault("enrich.gbp_to_jpy", 185.0)
	v.SetDefault("enrich.live_rate", false)
	v.SetDefault("enrich.rate_url", "https://api.exchangerate-api.com/v4/latest/GBP")
	v.SetDefault("enrich.rate_ttl_minutes", 60)
	v.SetDefault("enrich.detect_body_types", true)

	v.SetDefault("translate.enabled", true)
	v.SetDefault("translate.endpoint", "https://api-free.deepl.com/v2/translate")
	v.SetDefault("translate.auth_key", "")
	v.SetDefault("translate.source_lang", "EN")
	v.SetDefault("translate.target_lang", "JA")
	v.SetDefault("translate.max_chars", 5000)
	v.SetDefault("translate.max_requests_per_second", 2)
	v.SetDefault("translate.timeout", 15)
	v.SetDefault("translate.quota_limit", 500000)
	v.SetDefault("translate.quota_threshold", 0.9)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "carwow")
	v.SetDefault("database.user", "carwow_user")
	v.SetDefault("database.password", "carwow_pass")
	v.SetDefault("database.table", "vehicles")

	v.SetDefault("sheet.enabled", true)
	v.SetDefault("sheet.backend", "google")
	v.SetDefault("sheet.spreadsheet_id", "")
	v.SetDefault("sheet.tab", "system_cars")
	v.SetDefault("sheet.credentials_file", "")
	v.SetDefault("sheet.path", "./vehicles.csv")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "carwow_sync")

	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.service_name", "carwow-catalog-sync")
	v.SetDefault("trace.pretty", false)
}
