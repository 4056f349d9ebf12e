// Ininicializing common application configuration
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "GYM"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Rabbit     RabbitConfig     `mapstructure:"rabbit"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Booking    BookingConfig    `mapstructure:"booking"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	Timeout        time.Duration `mapstructure:"timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Mode           string        `mapstructure:"mode"`
	LogLevel       string        `mapstructure:"log_level"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RabbitConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type BookingConfig struct {
	// Store selects the persistence backend: "postgres" or "memory".
	Store          string        `mapstructure:"store"`
	Timezone       string        `mapstructure:"timezone"`
	HorizonDays    int           `mapstructure:"horizon_days"`
	ReminderLead   time.Duration `mapstructure:"reminder_lead"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

// Location falls back to UTC for an empty timezone.
func (c BookingConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type DispatcherConfig struct {
	// Embedded runs the sweep inside the API process.
	Embedded  bool          `mapstructure:"embedded"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	LockKey   string        `mapstructure:"lock_key"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoadConfig reads config/config.yaml (or the file named by GYM_CONFIG) after
// loading a .env file when one is present.
func LoadConfig() (*viper.Viper, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	viperInstance := viper.New()
	setDefaults(viperInstance)

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		viperInstance.SetConfigFile(path)
	} else {
		viperInstance.AddConfigPath("./config")
		viperInstance.SetConfigName("config")
		viperInstance.SetConfigType("yaml")
	}

	viperInstance.SetEnvPrefix(envPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	if err := viperInstance.ReadInConfig(); err != nil {
		return nil, err
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("jwt.secret must not be empty")
	}
	if c.Booking.HorizonDays < 0 {
		return fmt.Errorf("booking.horizon_days must not be negative")
	}
	if c.Booking.ReminderLead <= 0 {
		return fmt.Errorf("booking.reminder_lead must be positive")
	}
	if c.Dispatcher.Interval <= 0 {
		return fmt.Errorf("dispatcher.interval must be positive")
	}
	if c.Dispatcher.BatchSize <= 0 {
		return fmt.Errorf("dispatcher.batch_size must be positive")
	}
	if _, err := c.Booking.Location(); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	switch c.Booking.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("booking.store must be postgres or memory, got %q", c.Booking.Store)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 15*time.Second)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("rabbit.exchange", "gym.events")
	v.SetDefault("kafka.topic", "gym-events")
	v.SetDefault("telegram.endpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("telegram.timeout", 10*time.Second)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "gymbooker")

	v.SetDefault("booking.store", "postgres")
	v.SetDefault("booking.timezone", "Europe/Madrid")
	v.SetDefault("booking.horizon_days", 5)
	v.SetDefault("booking.reminder_lead", 30*time.Minute)
	v.SetDefault("booking.max_retries", 3)
	v.SetDefault("booking.retry_base_delay", 50*time.Millisecond)

	v.SetDefault("dispatcher.interval", 15*time.Minute)
	v.SetDefault("dispatcher.batch_size", 500)
	v.SetDefault("dispatcher.lock_key", "gymbooker:dispatcher:lock")
	v.SetDefault("dispatcher.lock_ttl", 5*time.Minute)

	v.SetDefault("metrics.enabled", true)
}
