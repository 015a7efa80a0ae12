package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Store     StoreConfig
	Limits    LimitsConfig
	RateLimit RateLimitConfig
	Download  DownloadConfig
	Extractor ExtractorConfig
	URLs      URLConfig
	Admin     AdminConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	R2        R2Config
	Janitor   JanitorConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StoreConfig struct {
	Backend string // file | redis
	Dir     string
	Prefix  string
}

type LimitsConfig struct {
	RateLimitRequests      int
	RateLimitWindow        time.Duration
	FreeDaily              int
	PremiumDaily           int
	MaxConcurrentDownloads int
	TokenTTL               time.Duration
	JobTimeout             time.Duration
	MaxFileSizeMB          float64
	MaxFilenameLength      int
	MaxURLLength           int
	HistorySize            int
}

type RateLimitConfig struct {
	Backend string // memory | redis
}

type DownloadConfig struct {
	WorkDir   string
	OutputDir string
	Delivery  string // local | r2
	KillGrace time.Duration
}

type ExtractorConfig struct {
	Binary        string
	AutoInstall   bool
	InfoCacheSize int
	InfoCacheTTL  time.Duration
	InfoRate      float64 // lookups per second
	InfoBurst     int
}

type URLConfig struct {
	Supported   []string
	Blacklisted []string
}

type AdminConfig struct {
	IDs []int64
}

type JWTConfig struct {
	Secret string
}

// OIDCConfig enables JWKS verification of ops tokens when Issuer is set
type OIDCConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string // skips discovery when set
	Leeway   time.Duration
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Endpoint        string // S3-compatible override, path-style
}

type JanitorConfig struct {
	Interval time.Duration
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("OIDC_AUDIENCE")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.log_format", "LOG_FORMAT")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("store.backend", "STORE_BACKEND")
	_ = viper.BindEnv("store.dir", "STORE_DIR")
	_ = viper.BindEnv("store.prefix", "STORE_PREFIX")
	_ = viper.BindEnv("limits.rate_limit_requests", "RATE_LIMIT_PER_USER")
	_ = viper.BindEnv("limits.rate_limit_window", "RATE_LIMIT_WINDOW")
	_ = viper.BindEnv("limits.free_daily", "FREE_DAILY_LIMIT")
	_ = viper.BindEnv("limits.premium_daily", "PREMIUM_DAILY_LIMIT")
	_ = viper.BindEnv("limits.max_concurrent_downloads", "MAX_CONCURRENT_DOWNLOADS")
	_ = viper.BindEnv("limits.token_ttl", "DOWNLOAD_TOKEN_TTL")
	_ = viper.BindEnv("limits.job_timeout", "MAX_DOWNLOAD_TIME")
	_ = viper.BindEnv("limits.max_file_size_mb", "MAX_FILE_SIZE")
	_ = viper.BindEnv("limits.max_filename_length", "MAX_FILENAME_LENGTH")
	_ = viper.BindEnv("limits.max_url_length", "MAX_URL_LENGTH")
	_ = viper.BindEnv("limits.history_size", "HISTORY_SIZE")
	_ = viper.BindEnv("ratelimit.backend", "RATE_LIMIT_BACKEND")
	_ = viper.BindEnv("download.work_dir", "DOWNLOAD_WORK_DIR")
	_ = viper.BindEnv("download.output_dir", "DOWNLOAD_OUTPUT_DIR")
	_ = viper.BindEnv("download.delivery", "DOWNLOAD_DELIVERY")
	_ = viper.BindEnv("download.kill_grace", "DOWNLOAD_KILL_GRACE")
	_ = viper.BindEnv("extractor.binary", "YTDLP_BINARY")
	_ = viper.BindEnv("extractor.auto_install", "YTDLP_AUTO_INSTALL")
	_ = viper.BindEnv("extractor.info_cache_size", "INFO_CACHE_SIZE")
	_ = viper.BindEnv("extractor.info_cache_ttl", "INFO_CACHE_TTL")
	_ = viper.BindEnv("extractor.info_rate", "INFO_RATE")
	_ = viper.BindEnv("extractor.info_burst", "INFO_BURST")
	_ = viper.BindEnv("urls.supported", "SUPPORTED_DOMAINS")
	_ = viper.BindEnv("urls.blacklisted", "BLACKLISTED_DOMAINS")
	_ = viper.BindEnv("admin.ids", "ADMIN_IDS")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("oidc.audience", "OIDC_AUDIENCE")
	_ = viper.BindEnv("oidc.jwks_url", "OIDC_JWKS_URL")
	_ = viper.BindEnv("oidc.leeway", "OIDC_LEEWAY")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.endpoint", "R2_ENDPOINT")
	_ = viper.BindEnv("janitor.interval", "JANITOR_INTERVAL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.log_format", "text")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("store.backend", "file")
	viper.SetDefault("store.dir", "./data")
	viper.SetDefault("store.prefix", "ytbot:")

	// Request limits
	viper.SetDefault("limits.rate_limit_requests", 10)
	viper.SetDefault("limits.rate_limit_window", "60s")
	viper.SetDefault("limits.free_daily", 5)
	viper.SetDefault("limits.premium_daily", 20)
	viper.SetDefault("limits.max_concurrent_downloads", 3)
	viper.SetDefault("limits.token_ttl", "10m")
	viper.SetDefault("limits.job_timeout", "600s")
	viper.SetDefault("limits.max_file_size_mb", 50)
	viper.SetDefault("limits.max_filename_length", 100)
	viper.SetDefault("limits.max_url_length", 500)
	viper.SetDefault("limits.history_size", 50)
	viper.SetDefault("ratelimit.backend", "memory")

	// Download defaults
	viper.SetDefault("download.work_dir", os.TempDir())
	viper.SetDefault("download.output_dir", "./downloads")
	viper.SetDefault("download.delivery", "local")
	viper.SetDefault("download.kill_grace", "5s")

	// Extractor defaults
	viper.SetDefault("extractor.binary", "")
	viper.SetDefault("extractor.auto_install", false)
	viper.SetDefault("extractor.info_cache_size", 256)
	viper.SetDefault("extractor.info_cache_ttl", "15m")
	viper.SetDefault("extractor.info_rate", 2)
	viper.SetDefault("extractor.info_burst", 4)

	viper.SetDefault("urls.supported", "youtube.com,m.youtube.com,youtu.be,tiktok.com,vm.tiktok.com,vt.tiktok.com,rutube.ru")
	viper.SetDefault("urls.blacklisted", "malicious.com,spam.org,evil.com")
	viper.SetDefault("janitor.interval", "1m")
	viper.SetDefault("oidc.leeway", "30s")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	adminIDs, err := parseIDs(listValue("admin.ids"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse admin ids: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			LogFormat: viper.GetString("server.log_format"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Store: StoreConfig{
			Backend: viper.GetString("store.backend"),
			Dir:     viper.GetString("store.dir"),
			Prefix:  viper.GetString("store.prefix"),
		},
		Limits: LimitsConfig{
			RateLimitRequests:      viper.GetInt("limits.rate_limit_requests"),
			RateLimitWindow:        viper.GetDuration("limits.rate_limit_window"),
			FreeDaily:              viper.GetInt("limits.free_daily"),
			PremiumDaily:           viper.GetInt("limits.premium_daily"),
			MaxConcurrentDownloads: viper.GetInt("limits.max_concurrent_downloads"),
			TokenTTL:               viper.GetDuration("limits.token_ttl"),
			JobTimeout:             viper.GetDuration("limits.job_timeout"),
			MaxFileSizeMB:          viper.GetFloat64("limits.max_file_size_mb"),
			MaxFilenameLength:      viper.GetInt("limits.max_filename_length"),
			MaxURLLength:           viper.GetInt("limits.max_url_length"),
			HistorySize:            viper.GetInt("limits.history_size"),
		},
		RateLimit: RateLimitConfig{
			Backend: viper.GetString("ratelimit.backend"),
		},
		Download: DownloadConfig{
			WorkDir:   viper.GetString("download.work_dir"),
			OutputDir: viper.GetString("download.output_dir"),
			Delivery:  viper.GetString("download.delivery"),
			KillGrace: viper.GetDuration("download.kill_grace"),
		},
		Extractor: ExtractorConfig{
			Binary:        viper.GetString("extractor.binary"),
			AutoInstall:   viper.GetBool("extractor.auto_install"),
			InfoCacheSize: viper.GetInt("extractor.info_cache_size"),
			InfoCacheTTL:  viper.GetDuration("extractor.info_cache_ttl"),
			InfoRate:      viper.GetFloat64("extractor.info_rate"),
			InfoBurst:     viper.GetInt("extractor.info_burst"),
		},
		URLs: URLConfig{
			Supported:   listValue("urls.supported"),
			Blacklisted: listValue("urls.blacklisted"),
		},
		Admin: AdminConfig{
			IDs: adminIDs,
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		OIDC: OIDCConfig{
			Issuer:   strings.TrimSuffix(viper.GetString("oidc.issuer"), "/"),
			Audience: viper.GetString("oidc.audience"),
			JWKSURL:  viper.GetString("oidc.jwks_url"),
			Leeway:   viper.GetDuration("oidc.leeway"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			Endpoint:        viper.GetString("r2.endpoint"),
		},
		Janitor: JanitorConfig{
			Interval: viper.GetDuration("janitor.interval"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v int64) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	positive("limits.rate_limit_requests", int64(c.Limits.RateLimitRequests))
	positive("limits.rate_limit_window", int64(c.Limits.RateLimitWindow))
	positive("limits.free_daily", int64(c.Limits.FreeDaily))
	positive("limits.premium_daily", int64(c.Limits.PremiumDaily))
	positive("limits.max_concurrent_downloads", int64(c.Limits.MaxConcurrentDownloads))
	positive("limits.token_ttl", int64(c.Limits.TokenTTL))
	positive("limits.job_timeout", int64(c.Limits.JobTimeout))
	positive("limits.max_filename_length", int64(c.Limits.MaxFilenameLength))
	positive("limits.max_url_length", int64(c.Limits.MaxURLLength))
	positive("limits.history_size", int64(c.Limits.HistorySize))
	positive("janitor.interval", int64(c.Janitor.Interval))
	if c.Limits.MaxFileSizeMB <= 0 {
		errs = append(errs, errors.New("limits.max_file_size_mb must be positive"))
	}

	switch c.Store.Backend {
	case "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown ratelimit.backend %q", c.RateLimit.Backend))
	}
	switch c.Download.Delivery {
	case "local", "r2":
	default:
		errs = append(errs, fmt.Errorf("unknown download.delivery %q", c.Download.Delivery))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SetupLogger builds the process logger and installs it as the slog default
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Server.LogLevel),
	}

	var handler slog.Handler
	if cfg.Server.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// listValue reads a list that may come from YAML or a comma separated env var
func listValue(key string) []string {
	var out []string
	for _, item := range viper.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseIDs(items []string) ([]int64, error) {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", item, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
