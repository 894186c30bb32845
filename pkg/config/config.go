package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// MQTT Configuration
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// BLE gateway topics ({device_id}, {service_id}, {char_id} placeholders)
	MQTTTopicBLEControl string
	MQTTTopicBLEWrite   string
	MQTTTopicBLENotify  string

	// Store Configuration
	StoreDriver string
	SQLitePath  string

	// ClickHouse Configuration
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string

	// Detection Configuration
	WindowSize        int
	NumStdDev         float64
	CalibrationWindow time.Duration
	SampleInterval    time.Duration

	// Queue sizes
	ChunkQueueSize int
	EventQueueSize int

	// HTTP API
	HTTPAddr string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		// MQTT Configuration
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "impact-backend"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		// BLE gateway topics
		MQTTTopicBLEControl: getEnv("MQTT_TOPIC_BLE_CONTROL", "ble/{device_id}/control"),
		MQTTTopicBLEWrite:   getEnv("MQTT_TOPIC_BLE_WRITE", "ble/{device_id}/{service_id}/{char_id}/write"),
		MQTTTopicBLENotify:  getEnv("MQTT_TOPIC_BLE_NOTIFY", "ble/{device_id}/{service_id}/{char_id}/notify"),

		// Store Configuration
		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "./impact.db"),

		// ClickHouse Configuration
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "impact"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),

		// Detection Configuration
		WindowSize:        getEnvInt("WINDOW_SIZE", 20),
		NumStdDev:         getEnvFloat("NUM_STD_DEV", 2.0),
		CalibrationWindow: getEnvDuration("CALIBRATION_WINDOW", 5*time.Second),
		SampleInterval:    getEnvDuration("SAMPLE_INTERVAL", 2*time.Second),

		// Queue sizes
		ChunkQueueSize: getEnvInt("CHUNK_QUEUE_SIZE", 100),
		EventQueueSize: getEnvInt("EVENT_QUEUE_SIZE", 50),

		// HTTP API
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: failed to parse %s as float, using default: %v", key, err)
		return defaultValue
	}
	return floatValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil || intValue <= 0 {
		log.Printf("Warning: failed to parse %s as positive int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	durationValue, err := time.ParseDuration(value)
	if err != nil || durationValue <= 0 {
		log.Printf("Warning: failed to parse %s as duration, using default: %v", key, err)
		return defaultValue
	}
	return durationValue
}
