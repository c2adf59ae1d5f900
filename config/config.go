package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppConfig struct {
	App struct {
		Name  string `mapstructure:"NAME"`
		Port  string `mapstructure:"PORT"`
		Env   string `mapstructure:"ENV"`
		Store string `mapstructure:"STORE"` // mongo | memory
	}

	Auth struct {
		Mode          string `mapstructure:"MODE"` // jwt | header
		PublicKeyPath string `mapstructure:"PUBLIC_KEY_PATH"`
		Header        string `mapstructure:"HEADER"`
	}

	Chat struct {
		RecallWindow   time.Duration `mapstructure:"RECALL_WINDOW"`
		MemberPreview  int           `mapstructure:"MEMBER_PREVIEW"`
		MatchWindow    time.Duration `mapstructure:"MATCH_WINDOW"`
		SendRateLimit  int64         `mapstructure:"SEND_RATE_LIMIT"`
		SendRateWindow time.Duration `mapstructure:"SEND_RATE_WINDOW"`
		IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	}

	Websocket struct {
		MaxConnections   int `mapstructure:"MAX_CONNECTIONS"`
		ConnectionsPerIP int `mapstructure:"CONNECTIONS_PER_IP"`
	}

	Worker struct {
		Count        int           `mapstructure:"COUNT"`
		PollInterval time.Duration `mapstructure:"POLL_INTERVAL"`
	}

	DATABASE struct {
		Mongo struct {
			Url  string `mapstructure:"URL"`
			Name string `mapstructure:"NAME"`
		}
		Redis struct {
			Addr     string `mapstructure:"ADDR"`
			Password string `mapstructure:"PASSWORD"`
			DB       int    `mapstructure:"DB"`
		}
	}

	Kafka struct {
		Brokers []string `mapstructure:"BROKERS"`
		Topic   string   `mapstructure:"TOPIC"`
	}

	Telemetry struct {
		OTLPEndpoint string  `mapstructure:"OTLP_ENDPOINT"`
		ServiceName  string  `mapstructure:"SERVICE_NAME"`
		SampleRatio  float64 `mapstructure:"SAMPLE_RATIO"`
	}
}

var Conf *AppConfig

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "appchat")
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.store", "mongo")

	v.SetDefault("auth.mode", "jwt")
	v.SetDefault("auth.public_key_path", "public.pem")
	v.SetDefault("auth.header", "X-User-ID")

	v.SetDefault("chat.recall_window", "5m")
	v.SetDefault("chat.member_preview", 3)
	v.SetDefault("chat.match_window", "1m")
	v.SetDefault("chat.send_rate_limit", 20)
	v.SetDefault("chat.send_rate_window", "1s")
	v.SetDefault("chat.idempotency_ttl", "10m")

	v.SetDefault("websocket.max_connections", 10000)
	v.SetDefault("websocket.connections_per_ip", 20)

	v.SetDefault("worker.count", 5)
	v.SetDefault("worker.poll_interval", "1s")

	v.SetDefault("database.mongo.url", "mongodb://localhost:27017")
	v.SetDefault("database.mongo.name", "appchat")
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "chat.message-events")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "appchat")
	v.SetDefault("telemetry.sample_ratio", 0.1)
}

// Load reads application.yaml from the given directories (the working
// directory when none) and overlays CHATAPP_* environment variables. The
// file is optional.
func Load(paths ...string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("CHATAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Warn().Msg("application.yaml not found, using defaults and environment")
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if config.App.Store != "mongo" && config.App.Store != "memory" {
		return nil, fmt.Errorf("unknown app.store %q", config.App.Store)
	}
	if config.Auth.Mode != "jwt" && config.Auth.Mode != "header" {
		return nil, fmt.Errorf("unknown auth.mode %q", config.Auth.Mode)
	}
	return &config, nil
}

func LoadConfig(paths ...string) error {
	config, err := Load(paths...)
	if err != nil {
		return err
	}

	Conf = config
	log.Info().Msg("configuration loaded...")
	return nil
}
