package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hoopsync/hoopsync/internal/platform/logging"
)

var seasonRegex = regexp.MustCompile(`^\d{4}-\d{2}$`)

// Config stores runtime configuration for the sync core.
//
// Paths derive from RootPath unless overridden individually: the cache root
// defaults to {root}/cache and the database to {root}/nba.db.
type Config struct {
	RootPath  string `validate:"required"`
	CacheRoot string `validate:"required"`
	DBPath    string `validate:"required"`

	MaxRetries      int           `validate:"gte=0,lte=10"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	ScheduleTimeout time.Duration `validate:"gt=0"`
	VideoTimeout    time.Duration `validate:"gt=0"`

	RateLimitMin      time.Duration `validate:"gt=0"`
	RateLimitMax      time.Duration `validate:"gtefield=RateLimitMin"`
	VideoRateLimitMin time.Duration `validate:"gt=0"`
	VideoRateLimitMax time.Duration `validate:"gtefield=VideoRateLimitMin"`

	CurrentSeason string `validate:"required,season"`
	StartSeason   string `validate:"required,season"`

	FallbackURLs map[string]string
	ForceRefresh bool

	BatchSize    int           `validate:"gt=0"`
	SaveInterval int           `validate:"gt=0"`
	WindowLimit  int           `validate:"gt=0"`
	WindowPeriod time.Duration `validate:"gt=0"`

	LogLevel logging.Level
}

func Load() (Config, error) {
	rootPath := strings.TrimSpace(getEnv("NBASYNC_ROOT_PATH", "./data"))
	cacheRoot := strings.TrimSpace(getEnv("NBASYNC_CACHE_ROOT", ""))
	if cacheRoot == "" {
		cacheRoot = filepath.Join(rootPath, "cache")
	}
	dbPath := strings.TrimSpace(getEnv("NBASYNC_DB_PATH", ""))
	if dbPath == "" {
		dbPath = filepath.Join(rootPath, "nba.db")
	}

	maxRetries, err := getEnvAsInt("NBASYNC_MAX_RETRIES", 3)
	if err != nil {
		return Config{}, err
	}

	requestTimeout, err := getEnvAsDuration("NBASYNC_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	scheduleTimeout, err := getEnvAsDuration("NBASYNC_SCHEDULE_TIMEOUT", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	videoTimeout, err := getEnvAsDuration("NBASYNC_VIDEO_TIMEOUT", 60*time.Second)
	if err != nil {
		return Config{}, err
	}

	rateLimitMin, err := getEnvAsDuration("NBASYNC_RATE_LIMIT_MIN", 600*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	rateLimitMax, err := getEnvAsDuration("NBASYNC_RATE_LIMIT_MAX", 3*time.Second)
	if err != nil {
		return Config{}, err
	}
	videoRateLimitMin, err := getEnvAsDuration("NBASYNC_VIDEO_RATE_LIMIT_MIN", 8*time.Second)
	if err != nil {
		return Config{}, err
	}
	videoRateLimitMax, err := getEnvAsDuration("NBASYNC_VIDEO_RATE_LIMIT_MAX", 15*time.Second)
	if err != nil {
		return Config{}, err
	}

	forceRefresh, err := strconv.ParseBool(getEnv("NBASYNC_FORCE_REFRESH", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse NBASYNC_FORCE_REFRESH: %w", err)
	}

	batchSize, err := getEnvAsInt("NBASYNC_BATCH_SIZE", 20)
	if err != nil {
		return Config{}, err
	}
	saveInterval, err := getEnvAsInt("NBASYNC_SAVE_INTERVAL", 10)
	if err != nil {
		return Config{}, err
	}
	windowLimit, err := getEnvAsInt("NBASYNC_WINDOW_LIMIT", 60)
	if err != nil {
		return Config{}, err
	}
	windowPeriod, err := getEnvAsDuration("NBASYNC_WINDOW_PERIOD", time.Minute)
	if err != nil {
		return Config{}, err
	}

	fallbackURLs, err := parseFallbackURLs(getEnv("NBASYNC_FALLBACK_URLS", ""))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RootPath:          rootPath,
		CacheRoot:         cacheRoot,
		DBPath:            dbPath,
		MaxRetries:        maxRetries,
		RequestTimeout:    requestTimeout,
		ScheduleTimeout:   scheduleTimeout,
		VideoTimeout:      videoTimeout,
		RateLimitMin:      rateLimitMin,
		RateLimitMax:      rateLimitMax,
		VideoRateLimitMin: videoRateLimitMin,
		VideoRateLimitMax: videoRateLimitMax,
		CurrentSeason:     strings.TrimSpace(getEnv("NBASYNC_CURRENT_SEASON", defaultCurrentSeason())),
		StartSeason:       strings.TrimSpace(getEnv("NBASYNC_START_SEASON", "1970-71")),
		FallbackURLs:      fallbackURLs,
		ForceRefresh:      forceRefresh,
		BatchSize:         batchSize,
		SaveInterval:      saveInterval,
		WindowLimit:       windowLimit,
		WindowPeriod:      windowPeriod,
		LogLevel:          parseLogLevel(getEnv("NBASYNC_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("season", validateSeason); err != nil {
		return fmt.Errorf("register season validation: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if seasonStartYear(c.StartSeason) > seasonStartYear(c.CurrentSeason) {
		return fmt.Errorf("start season %s is after current season %s", c.StartSeason, c.CurrentSeason)
	}
	return nil
}

func validateSeason(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if !seasonRegex.MatchString(value) {
		return false
	}
	start, err := strconv.Atoi(value[:4])
	if err != nil {
		return false
	}
	suffix, err := strconv.Atoi(value[5:])
	if err != nil {
		return false
	}
	return (start+1)%100 == suffix
}

func seasonStartYear(season string) int {
	if len(season) < 4 {
		return 0
	}
	year, err := strconv.Atoi(season[:4])
	if err != nil {
		return 0
	}
	return year
}

// defaultCurrentSeason infers the season from the wall clock: NBA seasons
// roll over in October.
func defaultCurrentSeason() string {
	now := time.Now().UTC()
	start := now.Year()
	if now.Month() < time.October {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// parseFallbackURLs parses "primary=fallback,primary2=fallback2" host-prefix
// pairs.
func parseFallbackURLs(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]string{
			"https://stats.nba.com": "https://stats.gleague.nba.com",
		}, nil
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("parse NBASYNC_FALLBACK_URLS: invalid pair %q", pair)
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out, nil
}

func parseLogLevel(raw string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}
