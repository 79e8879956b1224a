package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を表現します。
// YAML を読み込んだ後、環境変数で上書きします。
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Identity  IdentityConfig  `yaml:"identity" envPrefix:"IDENTITY_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Cache     CacheConfig     `yaml:"cache" envPrefix:"CACHE_"`
	Messaging MessagingConfig `yaml:"messaging" envPrefix:"MESSAGING_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// ServerConfig は HTTP / gRPC サーバーに関する設定です。
type ServerConfig struct {
	HTTPAddr           string        `yaml:"http_addr" env:"HTTP_ADDR"`
	GRPCAddr           string        `yaml:"grpc_addr" env:"GRPC_ADDR"`
	ReadTimeout        time.Duration `yaml:"-"`
	WriteTimeout       time.Duration `yaml:"-"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	HealthInterval     time.Duration `yaml:"-"`
	ReadTimeoutRaw     string        `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeoutRaw    string        `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	HealthIntervalRaw  string        `yaml:"health_interval" env:"HEALTH_INTERVAL"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host" env:"HOST"`
	Port               int           `yaml:"port" env:"PORT"`
	User               string        `yaml:"user" env:"USER"`
	Password           string        `yaml:"password" env:"PASSWORD"`
	Name               string        `yaml:"name" env:"NAME"`
	SSLMode            string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns       int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns       int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
}

// IdentityConfig は外部 IdP（Auth0 互換）に関する設定です。
type IdentityConfig struct {
	Domain       string `yaml:"domain" env:"DOMAIN"`
	ClientID     string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`
	Audience     string `yaml:"audience" env:"AUDIENCE"`
	Connection   string `yaml:"connection" env:"CONNECTION"`
	// BaseURL はテストやローカル環境で https://{domain} の代わりに使う接続先です。
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// RateLimit は管理 API への毎秒リクエスト数の上限です。
	RateLimit  float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst  int           `yaml:"rate_burst" env:"RATE_BURST"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout" env:"TIMEOUT"`
	// Compensate が true の場合、作成に失敗した社員の外部アカウントを削除します。
	Compensate bool `yaml:"compensate" env:"COMPENSATE"`
}

// AuthConfig は受信リクエストの JWT 検証に関する設定です。
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
}

// CacheConfig はトークンキャッシュの設定です。Driver は memory か redis です。
type CacheConfig struct {
	Driver        string `yaml:"driver" env:"DRIVER"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`
	Prefix        string `yaml:"prefix" env:"PREFIX"`
}

// MessagingConfig はドメインイベント発行の設定です。
type MessagingConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	URL      string `yaml:"url" env:"URL"`
	Exchange string `yaml:"exchange" env:"EXCHANGE"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Env   string `yaml:"env" env:"ENV"`
	Level string `yaml:"level" env:"LEVEL"`
}

// TelemetryConfig はトレース送信の設定です。Endpoint が空の場合は送信しません。
type TelemetryConfig struct {
	ServiceName string  `yaml:"service_name" env:"SERVICE_NAME"`
	Endpoint    string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	Insecure    bool    `yaml:"insecure" env:"INSECURE"`
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "APP_"}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	validators := []func() error{
		c.Server.validateAndNormalize,
		c.Database.validateAndNormalize,
		c.Identity.validateAndNormalize,
		c.Auth.validateAndNormalize,
		c.Cache.validateAndNormalize,
		c.Messaging.validateAndNormalize,
		c.Log.normalize,
		c.Telemetry.normalize,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.HTTPAddr == "" {
		return fmt.Errorf("config: server.http_addr must be set")
	}

	durations := []struct {
		name     string
		raw      string
		dst      *time.Duration
		fallback time.Duration
	}{
		{"server.read_timeout", s.ReadTimeoutRaw, &s.ReadTimeout, 10 * time.Second},
		{"server.write_timeout", s.WriteTimeoutRaw, &s.WriteTimeout, 15 * time.Second},
		{"server.shutdown_timeout", s.ShutdownTimeoutRaw, &s.ShutdownTimeout, 10 * time.Second},
		{"server.health_interval", s.HealthIntervalRaw, &s.HealthInterval, 15 * time.Second},
	}
	for _, d := range durations {
		v, err := parseDurationAllowEmpty(d.raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
		if v == 0 {
			v = d.fallback
		}
		*d.dst = v
	}
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (i *IdentityConfig) validateAndNormalize() error {
	if i.Domain == "" {
		return fmt.Errorf("config: identity.domain must be set")
	}
	if i.ClientID == "" {
		return fmt.Errorf("config: identity.client_id must be set")
	}
	if i.ClientSecret == "" {
		return fmt.Errorf("config: identity.client_secret must be set")
	}
	if i.Connection == "" {
		i.Connection = "Username-Password-Authentication"
	}
	if i.BaseURL == "" {
		i.BaseURL = "https://" + strings.TrimSuffix(i.Domain, "/")
	}
	i.BaseURL = strings.TrimSuffix(i.BaseURL, "/")
	if i.Audience == "" {
		i.Audience = "https://" + strings.TrimSuffix(i.Domain, "/") + "/api/v2/"
	}
	if i.RateLimit < 0 {
		return fmt.Errorf("config: identity.rate_limit must not be negative")
	}
	if i.RateLimit == 0 {
		i.RateLimit = 10
	}
	if i.RateBurst <= 0 {
		i.RateBurst = 1
	}

	timeout, err := parseDurationAllowEmpty(i.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: identity.timeout: %w", err)
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	i.Timeout = timeout
	return nil
}

func (a *AuthConfig) validateAndNormalize() error {
	if a.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret must be set")
	}
	return nil
}

func (c *CacheConfig) validateAndNormalize() error {
	switch strings.ToLower(c.Driver) {
	case "", "memory":
		c.Driver = "memory"
	case "redis":
		c.Driver = "redis"
		if c.RedisAddr == "" {
			return fmt.Errorf("config: cache.redis_addr must be set when driver is redis")
		}
	default:
		return fmt.Errorf("config: cache.driver %q is not supported", c.Driver)
	}
	if c.Prefix == "" {
		c.Prefix = "employer-onboarding:"
	}
	return nil
}

func (m *MessagingConfig) validateAndNormalize() error {
	if !m.Enabled {
		return nil
	}
	if m.URL == "" {
		return fmt.Errorf("config: messaging.url must be set when messaging is enabled")
	}
	if m.Exchange == "" {
		m.Exchange = "employers"
	}
	return nil
}

func (l *LogConfig) normalize() error {
	if l.Env == "" {
		l.Env = "dev"
	}
	if l.Level == "" {
		l.Level = "info"
	}
	return nil
}

func (t *TelemetryConfig) normalize() error {
	if t.ServiceName == "" {
		t.ServiceName = "employer-onboarding"
	}
	if t.SampleRatio <= 0 || t.SampleRatio > 1 {
		t.SampleRatio = 1
	}
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
