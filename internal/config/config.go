package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

const (
	RecordStoreSQL    = "sql"
	RecordStoreDynamo = "dynamodb"
	RecordStoreMemory = "memory"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	MetricsAddr string

	OTLPEndpoint string

	RecordStore string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime time.Duration

	Dynamo DynamoConfig
	MQTT   MQTTConfig
	Redis  RedisConfig

	Dispatch DispatchSchedule
}

type DynamoConfig struct {
	StatusTable      string
	ScheduleTable    string
	ScheduleIDIndex  string
	EndpointOverride string
}

type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

func (c MQTTConfig) Enabled() bool {
	return strings.TrimSpace(c.Broker) != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// DispatchSchedule holds the static part of the dispatch sweep settings.
// Runtime-tunable settings live in DispatchConfig.
type DispatchSchedule struct {
	Cron       string
	LockTTL    time.Duration
	JobTimeout time.Duration
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewDispatchConfigHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	qos := getenvInt("MQTT_QOS", 1)
	if qos < 0 || qos > 2 {
		qos = 1
	}

	return Config{
		AppName:      getenv("APP_SERVICE", "chargeplan"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		MetricsAddr:  getenv("METRICS_ADDR", ":2112"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		RecordStore:  normalizeRecordStore(getenv("RECORD_STORE", RecordStoreSQL)),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "chargeplan"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:      getenv("DATABASE_SQLITE_PATH", "chargeplan.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),

		Dynamo: DynamoConfig{
			StatusTable:      getenv("DYNAMODB_STATUS_TABLE", "CarStatus"),
			ScheduleTable:    getenv("DYNAMODB_SCHEDULE_TABLE", "ChargingSchedule"),
			ScheduleIDIndex:  getenv("DYNAMODB_SCHEDULE_ID_INDEX", "ScheduleIdIndex"),
			EndpointOverride: strings.TrimSpace(getenv("DYNAMODB_ENDPOINT", "")),
		},
		MQTT: MQTTConfig{
			Broker:      strings.TrimSpace(getenv("MQTT_BROKER", "")),
			ClientID:    getenv("MQTT_CLIENT_ID", "chargeplan"),
			Username:    getenv("MQTT_USERNAME", ""),
			Password:    getenv("MQTT_PASSWORD", ""),
			TopicPrefix: strings.Trim(getenv("MQTT_TOPIC_PREFIX", "devices"), "/"),
			QoS:         byte(qos),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Dispatch: DispatchSchedule{
			Cron:       getenv("DISPATCH_CRON", "0 * * * * *"),
			LockTTL:    getenvDuration("DISPATCH_LOCK_TTL", 50*time.Second),
			JobTimeout: getenvDuration("DISPATCH_JOB_TIMEOUT", 45*time.Second),
		},
	}
}

func normalizeRecordStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case RecordStoreDynamo, "dynamo", "table":
		return RecordStoreDynamo
	case RecordStoreMemory, "mem":
		return RecordStoreMemory
	default:
		return RecordStoreSQL
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
