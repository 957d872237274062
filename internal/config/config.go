package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	PublicURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// BackendConfig points at the remote user-management API the console fronts.
type BackendConfig struct {
	BaseURL          string
	UploadBaseURL    string
	PlaceholderImage string
	Timeout          time.Duration
}

type SessionConfig struct {
	Backend        string
	CookieName     string
	CookieSecret   string
	CookieSecure   bool
	CookieTTL      time.Duration
	StoreTTL       time.Duration
	RememberSecret string
	WorkspaceTTL   time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Backend        string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	BucketPreviews string
	UseSSL         bool
	Region         string
	PreviewTTL     time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	SampleRate  float64
	ServiceName string
}

type CSRFConfig struct {
	Enabled        bool
	AuthKey        string
	TrustedOrigins []string
}

// UIConfig holds the delays the browser waits before a transition so the
// notice that triggered it stays readable.
type UIConfig struct {
	LoginRedirectDelay time.Duration
	ProfileCloseDelay  time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Backend          BackendConfig
	Session          SessionConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Tracing          TracingConfig
	CSRF             CSRFConfig
	UI               UIConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	switch c.Session.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("session.backend %q: want memory, redis or postgres", c.Session.Backend)
	}
	if c.Session.Backend == "postgres" && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required for the postgres session backend")
	}
	switch c.Storage.Backend {
	case "memory", "minio":
	default:
		return fmt.Errorf("storage.backend %q: want memory or minio", c.Storage.Backend)
	}
	if c.Session.CookieSecret == "" {
		return errors.New("session.cookiesecret is required")
	}
	if c.Session.RememberSecret == "" {
		return errors.New("session.remembersecret is required")
	}
	if c.CSRF.Enabled && len(c.CSRF.AuthKey) != 32 {
		return errors.New("csrf.authkey must be 32 bytes when csrf is enabled")
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend.baseurl is required")
	}
	if !absoluteHTTPURL(c.HTTP.PublicURL) {
		return fmt.Errorf("http.publicurl %q must be an absolute http(s) URL", c.HTTP.PublicURL)
	}
	return nil
}

func absoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.publicurl", "http://localhost:8080")
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("backend.baseurl", "http://localhost:5000")
	v.SetDefault("backend.uploadbaseurl", "http://localhost:5000/uploads/")
	v.SetDefault("backend.placeholderimage", "https://via.placeholder.com/100")
	v.SetDefault("backend.timeout", "0s")

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.cookiename", "console_sid")
	v.SetDefault("session.cookiesecret", "")
	v.SetDefault("session.remembersecret", "")
	v.SetDefault("session.cookiesecure", false)
	v.SetDefault("session.cookiettl", "8760h") // a year, localStorage never expires
	v.SetDefault("session.storettl", "720h")
	v.SetDefault("session.workspacettl", "30m")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 2)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketpreviews", "console-previews")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.previewttl", "1h")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.samplerate", 1.0)
	v.SetDefault("tracing.servicename", "user-console")

	v.SetDefault("csrf.enabled", false)
	v.SetDefault("csrf.authkey", "")
	v.SetDefault("csrf.trustedorigins", "")

	v.SetDefault("allowcorsorigins", "")

	v.SetDefault("ui.loginredirectdelay", "1s")
	v.SetDefault("ui.profileclosedelay", "1500ms")
}
