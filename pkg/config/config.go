// Package config loads libadmin settings. Values are layered: built-in
// defaults, then a JSON file, then environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const devJWTSecret = "dev-secret-change-me"

// Duration is a time.Duration that reads "10s" style strings from JSON.
// Bare numbers are taken as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or a number of seconds: %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

type ServerConfig struct {
	Address string `json:"address"`
}

type BackendConfig struct {
	BaseURL string   `json:"baseUrl"`
	Timeout Duration `json:"timeout"`
	// SoftDeleteStatus is the delete status read as a soft delete when the
	// response body carries no disposition.
	SoftDeleteStatus int `json:"softDeleteStatus"`
}

type BreakerConfig struct {
	MaxFailures int      `json:"maxFailures"`
	Timeout     Duration `json:"timeout"`
	Window      Duration `json:"window"`
}

type SessionConfig struct {
	TTL        Duration `json:"ttl"`
	CookieName string   `json:"cookieName"`
	Secure     bool     `json:"secure"`
}

type UIConfig struct {
	PageSize   int    `json:"pageSize"`
	Notice     string `json:"notice"`
	NoticeFile string `json:"noticeFile"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver"` // sqlite, postgres or mysql
	Path     string `json:"path"`   // sqlite only
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	MaxIdle  int    `json:"maxIdle"`
	MaxOpen  int    `json:"maxOpen"`
	LogLevel string `json:"logLevel"`
}

type JWTConfig struct {
	Secret string   `json:"secret"`
	TTL    Duration `json:"ttl"`
	Issuer string   `json:"issuer"`
}

type StubConfig struct {
	Address  string         `json:"address"`
	Database DatabaseConfig `json:"database"`
	JWT      JWTConfig      `json:"jwt"`
	Seed     bool           `json:"seed"`
}

type Config struct {
	Server  ServerConfig  `json:"server"`
	Backend BackendConfig `json:"backend"`
	Breaker BreakerConfig `json:"breaker"`
	Session SessionConfig `json:"session"`
	UI      UIConfig      `json:"ui"`
	Stub    StubConfig    `json:"stub"`
	Env     string        `json:"env"`
}

// Default returns the built-in settings: admin UI on :8081 talking to a
// backend on :8080 backed by a local sqlite file.
func Default() Config {
	return Config{
		Server: ServerConfig{Address: ":8081"},
		Backend: BackendConfig{
			BaseURL:          "http://localhost:8080",
			Timeout:          Duration(10 * time.Second),
			SoftDeleteStatus: 202,
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			Timeout:     Duration(30 * time.Second),
			Window:      Duration(60 * time.Second),
		},
		Session: SessionConfig{
			TTL:        Duration(30 * time.Minute),
			CookieName: "libadmin_session",
		},
		UI: UIConfig{PageSize: 10},
		Stub: StubConfig{
			Address: ":8080",
			Database: DatabaseConfig{
				Driver:   "sqlite",
				Path:     "libadmin.db",
				Host:     "localhost",
				Port:     5432,
				Username: "program",
				Password: "test",
				DBName:   "library",
				MaxIdle:  10,
				MaxOpen:  25,
				LogLevel: "warn",
			},
			JWT: JWTConfig{
				Secret: devJWTSecret,
				TTL:    Duration(24 * time.Hour),
				Issuer: "libadmin",
			},
			Seed: true,
		},
		Env: "development",
	}
}

func (c *Config) IsProd() bool {
	return c.Env == "production"
}

// Load reads the configuration. The file named by LIBADMIN_CONFIG wins over
// the search paths; environment variables override both.
func Load() (*Config, error) {
	cfg := Default()

	if path := configPath(); path != "" {
		if err := loadFromFile(&cfg, path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		log.Printf("Loaded config from %s", path)
	}
	loadFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath() string {
	if path := os.Getenv("LIBADMIN_CONFIG"); path != "" {
		return path
	}
	for _, path := range []string{"./libadmin.json", "../libadmin.json", "/etc/libadmin/config.json"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func loadFromEnv(cfg *Config) {
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.Server.Address = getEnv("LIBADMIN_ADDR", cfg.Server.Address)

	cfg.Backend.BaseURL = getEnv("BACKEND_URL", cfg.Backend.BaseURL)
	envDuration("BACKEND_TIMEOUT", &cfg.Backend.Timeout)
	envInt("SOFT_DELETE_STATUS", &cfg.Backend.SoftDeleteStatus)

	envInt("BREAKER_MAX_FAILURES", &cfg.Breaker.MaxFailures)
	envDuration("BREAKER_TIMEOUT", &cfg.Breaker.Timeout)
	envDuration("BREAKER_WINDOW", &cfg.Breaker.Window)

	envDuration("SESSION_TTL", &cfg.Session.TTL)
	cfg.Session.CookieName = getEnv("SESSION_COOKIE", cfg.Session.CookieName)
	if v := os.Getenv("SESSION_SECURE"); v != "" {
		cfg.Session.Secure = parseBool(v)
	}

	envInt("PAGE_SIZE", &cfg.UI.PageSize)
	cfg.UI.Notice = getEnv("NOTICE", cfg.UI.Notice)
	cfg.UI.NoticeFile = getEnv("NOTICE_FILE", cfg.UI.NoticeFile)

	cfg.Stub.Address = getEnv("STUB_ADDR", cfg.Stub.Address)
	db := &cfg.Stub.Database
	db.Driver = strings.ToLower(getEnv("DB_DRIVER", db.Driver))
	db.Path = getEnv("DB_PATH", db.Path)
	db.Host = getEnv("DB_HOST", db.Host)
	envInt("DB_PORT", &db.Port)
	db.Username = getEnv("DB_USER", db.Username)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.DBName = getEnv("DB_NAME", db.DBName)
	db.LogLevel = strings.ToLower(getEnv("DB_LOG_LEVEL", db.LogLevel))

	cfg.Stub.JWT.Secret = getEnv("JWT_SECRET", cfg.Stub.JWT.Secret)
	envDuration("JWT_EXPIRATION", &cfg.Stub.JWT.TTL)
	cfg.Stub.JWT.Issuer = getEnv("JWT_ISSUER", cfg.Stub.JWT.Issuer)
	if v := os.Getenv("SEED"); v != "" {
		cfg.Stub.Seed = parseBool(v)
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.baseUrl %q is not an http(s) URL", c.Backend.BaseURL))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	if c.Backend.SoftDeleteStatus < 200 || c.Backend.SoftDeleteStatus > 299 {
		errs = append(errs, fmt.Errorf("backend.softDeleteStatus %d is not a 2xx status", c.Backend.SoftDeleteStatus))
	}
	if c.Breaker.MaxFailures <= 0 {
		errs = append(errs, errors.New("breaker.maxFailures must be positive"))
	}
	if c.Breaker.Timeout <= 0 || c.Breaker.Window <= 0 {
		errs = append(errs, errors.New("breaker.timeout and breaker.window must be positive"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Session.CookieName == "" {
		errs = append(errs, errors.New("session.cookieName is required"))
	}
	switch c.UI.PageSize {
	case 10, 25, 100:
	default:
		errs = append(errs, fmt.Errorf("ui.pageSize %d must be 10, 25 or 100", c.UI.PageSize))
	}
	switch c.Stub.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("stub.database.driver %q is not supported", c.Stub.Database.Driver))
	}
	if c.Stub.JWT.Secret == "" {
		errs = append(errs, errors.New("stub.jwt.secret is required"))
	} else if c.IsProd() && c.Stub.JWT.Secret == devJWTSecret {
		errs = append(errs, errors.New("stub.jwt.secret must be changed in production"))
	}
	if c.Stub.JWT.TTL <= 0 {
		errs = append(errs, errors.New("stub.jwt.ttl must be positive"))
	}

	return errors.Join(errs...)
}

// NoticeMarkdown returns the homepage notice source, preferring NoticeFile.
func (c *Config) NoticeMarkdown() (string, error) {
	if c.UI.NoticeFile == "" {
		return c.UI.Notice, nil
	}
	data, err := os.ReadFile(c.UI.NoticeFile)
	if err != nil {
		return "", fmt.Errorf("read notice: %w", err)
	}
	return string(data), nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, v, err)
		return
	}
	*dst = n
}

func envDuration(key string, dst *Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Ignoring invalid %s=%q: %v", key, v, err)
		return
	}
	*dst = Duration(d)
}

func parseBool(value string) bool {
	value = strings.ToLower(value)
	return value == "true" || value == "1" || value == "yes"
}
