package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Ticketing TicketingConfig
	Commerce  CommerceConfig
	Oracle    OracleConfig
	Sync      SyncConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr    string
	Enabled bool
}

type KafkaConfig struct {
	Brokers  []string
	Enabled  bool
	MockMode bool
	Topics   TopicConfig
}

type TopicConfig struct {
	SyncCompleted    string
	AttendeesUpdated string
}

// TicketingConfig points at the events/attendees read API.
type TicketingConfig struct {
	BaseURL  string
	APIKey   string
	PageSize int
}

// CommerceConfig points at the orders/products read API. Key and Secret are
// required before any payment reconciliation can run.
type CommerceConfig struct {
	BaseURL   string
	Key       string
	Secret    string
	ChunkSize int
}

type OracleConfig struct {
	BaseURL  string
	CacheTTL time.Duration
}

type SyncConfig struct {
	DefaultCapacity int
	AutoInterval    time.Duration
	QRSecret        string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "eventsync"),
			Password:     getEnv("DB_PASSWORD", "eventsync"),
			Database:     getEnv("DB_NAME", "eventsync"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled: getEnvBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			Enabled:  getEnvBool("KAFKA_ENABLED", true),
			MockMode: getEnvBool("KAFKA_MOCK_MODE", false),
			Topics: TopicConfig{
				SyncCompleted:    getEnv("KAFKA_TOPIC_SYNC_COMPLETED", "eventsync.sync.completed"),
				AttendeesUpdated: getEnv("KAFKA_TOPIC_ATTENDEES_UPDATED", "eventsync.attendees.updated"),
			},
		},
		Ticketing: TicketingConfig{
			BaseURL:  getEnv("TICKETING_API_URL", ""),
			APIKey:   getEnv("TICKETING_API_KEY", ""),
			PageSize: getEnvInt("TICKETING_PAGE_SIZE", 50),
		},
		Commerce: CommerceConfig{
			BaseURL:   getEnv("COMMERCE_API_URL", ""),
			Key:       getEnv("COMMERCE_API_KEY", ""),
			Secret:    getEnv("COMMERCE_API_SECRET", ""),
			ChunkSize: getEnvInt("COMMERCE_CHUNK_SIZE", 20),
		},
		Oracle: OracleConfig{
			BaseURL:  getEnv("ORACLE_API_URL", ""),
			CacheTTL: time.Duration(getEnvInt("ORACLE_CACHE_TTL_HOURS", 24)) * time.Hour,
		},
		Sync: SyncConfig{
			DefaultCapacity: getEnvInt("DEFAULT_EVENT_CAPACITY", 36),
			AutoInterval:    time.Duration(getEnvInt("AUTO_SYNC_MINUTES", 5)) * time.Minute,
			QRSecret:        getEnv("QR_SECRET", "eventsync-dev-secret"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
