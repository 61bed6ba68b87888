package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	TCPPort      int           `mapstructure:"tcp_port"`
	ServiceName  string        `mapstructure:"service_name"`
	WSPath       string        `mapstructure:"ws_path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	EchoLimit    int           `mapstructure:"echo_limit"`
	Greeting     string        `mapstructure:"greeting"`
	SlowConsumer string        `mapstructure:"slow_consumer"`
	JoinLimit    int           `mapstructure:"join_limit"`
	JoinInterval time.Duration `mapstructure:"join_interval"`
	Secret       string        `mapstructure:"secret"`
	LogLevel     string        `mapstructure:"log_level"`
}

// SetDefaults registers the documented defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 10000)
	v.SetDefault("tcp_port", 10001)
	v.SetDefault("service_name", "gateway_custom")
	v.SetDefault("ws_path", "/custom")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("echo_limit", 200)
	v.SetDefault("greeting", "HELLO_FROM_GATEWAY")
	v.SetDefault("slow_consumer", "drop")
	v.SetDefault("join_limit", 20)
	v.SetDefault("join_interval", "1s")
	v.SetDefault("secret", "gateway-dev-secret")
	v.SetDefault("log_level", "info")
}

func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith reads config into v from, in rising priority: defaults,
// config/config.<CONFIG_ENV>.yaml, environment (PORT, TCP_PORT, ...) and
// any flags already bound to v.
func LoadWith(v *viper.Viper) (*Config, error) {
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	SetDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Int("tcp_port", cfg.TCPPort).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.TCPPort < 0 || c.TCPPort > 65535 {
		return fmt.Errorf("%w: tcp_port %d out of range", ErrInvalidConfig, c.TCPPort)
	}
	if c.TCPPort != 0 && c.TCPPort == c.Port {
		return fmt.Errorf("%w: port and tcp_port are both %d", ErrInvalidConfig, c.Port)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("%w: send_buffer must be positive", ErrInvalidConfig)
	}
	if c.EchoLimit <= 0 {
		return fmt.Errorf("%w: echo_limit must be positive", ErrInvalidConfig)
	}
	if c.PingPeriod <= 0 || c.WriteWait <= 0 {
		return fmt.Errorf("%w: ping_period and write_wait must be positive", ErrInvalidConfig)
	}
	if c.JoinLimit <= 0 || c.JoinInterval <= 0 {
		return fmt.Errorf("%w: join_limit and join_interval must be positive", ErrInvalidConfig)
	}
	switch c.SlowConsumer {
	case "drop", "kick":
	default:
		return fmt.Errorf("%w: slow_consumer %q", ErrInvalidConfig, c.SlowConsumer)
	}
	if c.WSPath == "" || c.WSPath[0] != '/' {
		return fmt.Errorf("%w: ws_path %q must start with /", ErrInvalidConfig, c.WSPath)
	}
	return nil
}

// PongWait is how long a WebSocket may stay silent before it is dropped.
func (c *Config) PongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}
