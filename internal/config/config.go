package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/gerrors"
)

type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	DSN        string `mapstructure:"dsn"`
	LogQueries bool   `mapstructure:"log_queries"`
}

type KeycloakConfig struct {
	ServerURL     string `mapstructure:"server_url"`
	Realm         string `mapstructure:"realm"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	Audience      string `mapstructure:"audience"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	Namespace  string        `mapstructure:"namespace"`
}

type SpacesConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Bucket   string `mapstructure:"bucket"`
	Key      string `mapstructure:"key"`
	Secret   string `mapstructure:"secret"`
	CDN      bool   `mapstructure:"cdn"`
}

type LimitsConfig struct {
	Rate        int           `mapstructure:"rate"`
	RateWindow  time.Duration `mapstructure:"rate_window"`
	SlowRequest time.Duration `mapstructure:"slow_request"`
	GzipMinSize int           `mapstructure:"gzip_min_size"`
}

type LogConfig struct {
	Level int    `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Keycloak KeycloakConfig `mapstructure:"keycloak"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Spaces   SpacesConfig   `mapstructure:"spaces"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Log      LogConfig      `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", consts.DefaultHTTPPort)
	v.SetDefault("database.dsn", "mala.db")
	v.SetDefault("database.log_queries", false)
	v.SetDefault("keycloak.realm", "myrealm")
	v.SetDefault("keycloak.client_id", "mala-client")
	v.SetDefault("keycloak.audience", "account")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.default_ttl", time.Hour)
	v.SetDefault("cache.namespace", "mala_cache")
	v.SetDefault("spaces.region", "ams3")
	v.SetDefault("spaces.endpoint", "https://ams3.digitaloceanspaces.com")
	v.SetDefault("spaces.cdn", true)
	v.SetDefault("limits.rate", 100)
	v.SetDefault("limits.rate_window", time.Minute)
	v.SetDefault("limits.slow_request", 2*time.Second)
	v.SetDefault("limits.gzip_min_size", 500)
	v.SetDefault("log.level", 4)
}

// Load reads the config file at path (optional, YAML) and applies MALA_*
// environment variable overrides, e.g. MALA_HTTP_PORT=8000.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MALA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, gerrors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, gerrors.Wrapf(err, "unmarshal config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return gerrors.Newf("invalid http.port %d", c.HTTP.Port)
	}
	if c.Limits.Rate <= 0 {
		return gerrors.Newf("invalid limits.rate %d", c.Limits.Rate)
	}
	if c.Cache.DefaultTTL <= 0 {
		return gerrors.Newf("invalid cache.default_ttl %s", c.Cache.DefaultTTL)
	}
	return nil
}
