package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// InsecureSecretKey is only used when SECRET_KEY is missing. Never run production with it.
	InsecureSecretKey = "insecure-dev-secret-change-me"

	// PolicyAnyUser lets every authenticated user edit or delete any post.
	PolicyAnyUser = "any"
	// PolicyAuthorOnly restricts edit/delete to the post author.
	PolicyAuthorOnly = "author"

	// ConflictLastWriteWins silently overwrites concurrent edits.
	ConflictLastWriteWins = "last-write-wins"
	// ConflictRejectStale rejects an edit submitted against an outdated version.
	ConflictRejectStale = "reject-stale"
)

// AppConfig holds environment driven configuration values.
type AppConfig struct {
	AppPort        string
	SecretKey      string
	InsecureSecret bool
	// Gin framework configuration
	GinMode            string
	GinPath            string
	AllowedOrigins     []string
	RateLimitPerMinute int
	// Database
	DBDriver    string
	DatabaseURI string
	DBPath      string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis backs the session store when RedisHost is set
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Uploads
	UploadDir          string
	MaxUploadMB        int
	OrphanSweepMinutes int
	OrphanGraceMinutes int
	// Sessions
	SessionTTLHours int
	CookieSecure    bool
	// Display
	DisplayTimezone   string
	DisplayTimeLayout string
	// Policies
	PostEditPolicy     string
	EditConflictPolicy string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	c, err := loadFrom(filepath.Join("config", "config.json"))
	if err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// LoadFile loads configuration from path instead of config/config.json.
// The result is not cached.
func LoadFile(path string) (AppConfig, error) {
	return loadFrom(path)
}

func loadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)

	if c.SecretKey == "" {
		c.SecretKey = InsecureSecretKey
		c.InsecureSecret = true
	}
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}
	section := func(name string) map[string]any {
		if m, ok := raw[name].(map[string]any); ok {
			return m
		}
		// flat layout: every key lives at the top level
		return raw
	}

	app := section("app")
	out.AppPort = getString(app, "AppPort")
	out.SecretKey = getString(app, "SecretKey")
	out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
	out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
	out.SessionTTLHours = getInt(app, "SessionTTLHours")
	out.CookieSecure = getBool(app, "CookieSecure")

	g := section("gin")
	out.GinMode = getString(g, "GinMode")
	if v := getString(g, "Mode"); v != "" {
		out.GinMode = v
	}
	out.GinPath = getString(g, "GinPath")
	if v := getString(g, "LogPath"); v != "" && out.GinPath == "" {
		out.GinPath = v
	}

	dbs := section("database")
	out.DBDriver = getString(dbs, "DBDriver")
	out.DatabaseURI = getString(dbs, "DatabaseURI")
	out.DBPath = getString(dbs, "DBPath")
	out.DBHost = getString(dbs, "DBHost")
	out.DBPort = getString(dbs, "DBPort")
	out.DBUser = getString(dbs, "DBUser")
	out.DBPassword = getString(dbs, "DBPassword")
	out.DBName = getString(dbs, "DBName")

	rds := section("redis")
	out.RedisHost = getString(rds, "RedisHost")
	out.RedisPort = getInt(rds, "RedisPort")
	out.RedisDB = getInt(rds, "RedisDB")
	out.RedisPassword = getString(rds, "RedisPassword")

	lg := section("log")
	out.LogLevel = getString(lg, "LogLevel")
	if v := getString(lg, "Level"); v != "" {
		out.LogLevel = v
	}
	out.LogPath = getString(lg, "LogPath")
	if v := getString(lg, "Path"); v != "" {
		out.LogPath = v
	}
	out.LogMaxSizeMB = getInt(lg, "LogMaxSizeMB")
	out.LogMaxBackups = getInt(lg, "LogMaxBackups")
	out.LogMaxAgeDays = getInt(lg, "LogMaxAgeDays")
	out.LogCompress = getBool(lg, "LogCompress")

	up := section("uploads")
	out.UploadDir = getString(up, "UploadDir")
	out.MaxUploadMB = getInt(up, "MaxUploadMB")
	out.OrphanSweepMinutes = getInt(up, "OrphanSweepMinutes")
	out.OrphanGraceMinutes = getInt(up, "OrphanGraceMinutes")

	disp := section("display")
	out.DisplayTimezone = getString(disp, "DisplayTimezone")
	out.DisplayTimeLayout = getString(disp, "DisplayTimeLayout")

	pol := section("policy")
	out.PostEditPolicy = getString(pol, "PostEditPolicy")
	out.EditConflictPolicy = getString(pol, "EditConflictPolicy")

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 10
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "sqlite"
	}
	if c.DBPath == "" {
		c.DBPath = "dope_music.db"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "dope_music"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.UploadDir == "" {
		c.UploadDir = filepath.Join("static", "uploads")
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 16
	}
	if c.OrphanSweepMinutes == 0 {
		c.OrphanSweepMinutes = 30
	}
	if c.OrphanGraceMinutes == 0 {
		c.OrphanGraceMinutes = 60
	}
	if c.SessionTTLHours == 0 {
		c.SessionTTLHours = 24 * 7
	}
	if c.DisplayTimezone == "" {
		c.DisplayTimezone = "Europe/Moscow"
	}
	if c.DisplayTimeLayout == "" {
		c.DisplayTimeLayout = "02.01.2006 15:04"
	}
	if c.PostEditPolicy == "" {
		c.PostEditPolicy = PolicyAnyUser
	}
	if c.EditConflictPolicy == "" {
		c.EditConflictPolicy = ConflictLastWriteWins
	}
}

// applyEnvOverrides replaces values with environment variables when they are set.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("SECRET_KEY", ""); v != "" {
		c.SecretKey = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = strings.ToLower(v)
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_PATH", ""); v != "" {
		c.DBPath = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("UPLOAD_DIR", ""); v != "" {
		c.UploadDir = v
	}
	if v := getEnv("MAX_UPLOAD_MB", ""); v != "" {
		c.MaxUploadMB = mustParseInt(v)
	}
	if v := getEnv("ORPHAN_SWEEP_MINUTES", ""); v != "" {
		c.OrphanSweepMinutes = mustParseInt(v)
	}
	if v := getEnv("ORPHAN_GRACE_MINUTES", ""); v != "" {
		c.OrphanGraceMinutes = mustParseInt(v)
	}
	if v := getEnv("SESSION_TTL_HOURS", ""); v != "" {
		c.SessionTTLHours = mustParseInt(v)
	}
	if v := getEnv("COOKIE_SECURE", ""); v != "" {
		c.CookieSecure = v == "true"
	}
	if v := getEnv("DISPLAY_TIMEZONE", ""); v != "" {
		c.DisplayTimezone = v
	}
	if v := getEnv("DISPLAY_TIME_LAYOUT", ""); v != "" {
		c.DisplayTimeLayout = v
	}
	if v := getEnv("POST_EDIT_POLICY", ""); v != "" {
		c.PostEditPolicy = strings.ToLower(v)
	}
	if v := getEnv("EDIT_CONFLICT_POLICY", ""); v != "" {
		c.EditConflictPolicy = strings.ToLower(v)
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
