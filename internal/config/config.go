package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config riada-data（遥测接入 + 看板 API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	MQTT MQTTConfig
	Chat ChatConfig

	// AESKey base64 编码的 32 字节 key；为空时落库不加密（Identity codec）
	AESKey string

	// 本地时间偏移：对消息自带的 UTC 时间戳在截断到分钟之前各加一次
	// 读数和告警的偏移历史上并不一致，保持两个独立配置项
	ReadingUTCOffsetHours int
	AlarmUTCOffsetHours   int

	// 映射表均为外部配置数据，不允许在代码里写死分支
	DeviceMap map[string]string   // 传输层原始设备 ID -> 逻辑设备名
	Groups    map[string][]string // 看板分组 -> 设备列表
	Locations map[string][]string // 事故报告地点 -> 设备列表

	// ReportDir 事故报告 PDF 保存目录
	ReportDir string
}

// DatabaseConfig PostgreSQL 配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// MQTTConfig Livy MQTT 接入配置
type MQTTConfig struct {
	Enabled  bool
	Broker   string // 如 "ssl://mqtt.livy.systems:8883"
	ClientID string
	Username string
	Password string
	QoS      byte
}

// ChatConfig OpenAI 聊天代理配置
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	HistoryTTL  time.Duration // 会话缓存过期时间
}

// 默认映射表（与现场部署一致；生产通过环境变量覆盖）
var (
	defaultDeviceMap = map[string]string{
		"901ba6defd0eaf9582842d145a9cfaec973232d6a358ea0c82900bd6fa1bd616": "Hillcrest-1",
		"a23642c514657abb08966a6d1227360e69e9e6c196724280257effc11602f6de": "Hillcrest-2",
	}
	defaultGroups = map[string][]string{
		"CARE-A": {"Hillcrest-1", "Hillcrest-2"},
		"CARE-B": {"Archview-1", "Archview-2"},
	}
	defaultLocations = map[string][]string{
		"Hillcrest": {"Hillcrest-1", "Hillcrest-2"},
		"Archview":  {"Archview-1", "Archview-2"},
	}
)

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":3001")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "riada")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "true") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "riada-data")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Chat.APIKey = getEnv("OPENAI_API_KEY", "")
	cfg.Chat.BaseURL = getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1")
	cfg.Chat.Model = getEnv("OPENAI_MODEL", "gpt-4o-mini")
	cfg.Chat.MaxTokens = parseInt(getEnv("OPENAI_MAX_TOKENS", "500"), 500)
	cfg.Chat.Temperature = parseFloat(getEnv("OPENAI_TEMPERATURE", "0.2"), 0.2)
	cfg.Chat.HistoryTTL = time.Duration(parseInt(getEnv("CHAT_HISTORY_TTL_MINUTES", "30"), 30)) * time.Minute

	cfg.AESKey = getEnv("AES_KEY", "")

	cfg.ReadingUTCOffsetHours = parseInt(getEnv("READING_UTC_OFFSET_HOURS", "1"), 1)
	cfg.AlarmUTCOffsetHours = parseInt(getEnv("ALARM_UTC_OFFSET_HOURS", "1"), 1)

	cfg.DeviceMap = parseStringMap(getEnv("DEVICE_MAP", ""), defaultDeviceMap)
	cfg.Groups = parseStringListMap(getEnv("DEVICE_GROUPS", ""), defaultGroups)
	cfg.Locations = parseStringListMap(getEnv("LOCATIONS", ""), defaultLocations)

	cfg.ReportDir = getEnv("REPORT_DIR", "reports")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

// parseStringMap 解析 JSON 映射表环境变量；解析失败回退默认值
func parseStringMap(s string, def map[string]string) map[string]string {
	if s == "" {
		return def
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(s), &m); err != nil || len(m) == 0 {
		return def
	}
	return m
}

func parseStringListMap(s string, def map[string][]string) map[string][]string {
	if s == "" {
		return def
	}
	m := map[string][]string{}
	if err := json.Unmarshal([]byte(s), &m); err != nil || len(m) == 0 {
		return def
	}
	return m
}
