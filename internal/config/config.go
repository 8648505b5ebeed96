package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Auth struct {
	Secret    string        `mapstructure:"secret"`
	Issuer    string        `mapstructure:"issuer"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
	InviteTTL time.Duration `mapstructure:"invite_ttl"`
}

type Gateway struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

type Rooms struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`
}

type Config struct {
	DB      string  `mapstructure:"db"`
	Kafka   Kafka   `mapstructure:"kafka"`
	Auth    Auth    `mapstructure:"auth"`
	Gateway Gateway `mapstructure:"gateway"`
	Rooms   Rooms   `mapstructure:"rooms"`
}

// Load reads config/config.<env>.yaml, selected by CONFIG_ENV, falling back
// to defaults when the file is absent.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("db", "parley.db")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "chat-events")
	v.SetDefault("auth.secret", "dev-secret-change-me")
	v.SetDefault("auth.issuer", "parley")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.invite_ttl", "168h")
	v.SetDefault("gateway.mode", "release")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.read_limit", 32768)
	v.SetDefault("gateway.rate_limit", 20)
	v.SetDefault("gateway.rate_interval", "10s")
	v.SetDefault("rooms.mode", "release")
	v.SetDefault("rooms.port", 8081)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
