package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	config     *Config
	configOnce sync.Once
)

// Config stores all configuration of the application
type Config struct {
	// Environment type
	EnvType string

	// Database
	DBDriver        string // 数据库驱动: "mysql" 或 "sqlite"
	DBHost          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBPort          string
	SQLitePath      string
	DBMigrationMode string // 数据库迁移模式: "auto"(默认), "drop"(删除重建)

	// Server
	ServerPort string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisEnabled  bool

	// Weather (OpenWeather)
	WeatherAPIURL   string
	WeatherAPIKey   string
	WeatherTimeout  time.Duration
	WeatherCacheTTL time.Duration

	// Completion (Gemini)
	GeminiAPIKey      string
	GeminiModel       string
	CompletionTimeout time.Duration

	// Moderation
	ModerationTimeout time.Duration
	ModerationRemote  bool // 是否启用Gemini远程审核（需要GEMINI_API_KEY）

	// Rate limit for the ask endpoint
	AskRateLimit  int           // 每个窗口内允许的提问次数
	AskRateWindow time.Duration // 窗口长度

	// JWT (only used to identify the caller for quota keys)
	JWTSecretKey string

	// Adjustment policy
	Adjust AdjustPolicyConfig

	// Batch adjustment
	BatchConcurrency int
}

// AdjustPolicyConfig 提醒调整策略参数
type AdjustPolicyConfig struct {
	HeavyRainInches    float64
	LightRainInches    float64
	DryInches          float64
	HotTempF           float64
	MaxShiftRatio      float64
	LightFactorWeight  float64
	FreezeDelayDays    int
	HeavyRainDelayDays int
}

// LoadConfig loads config from environment variables based on ENV_TYPE
func LoadConfig() *Config {
	// Get environment type (default to LOCAL if not set)
	envType := getEnv("ENV_TYPE", "LOCAL")
	prefix := ""

	// Set prefix based on environment type
	if strings.ToUpper(envType) == "LOCAL" {
		prefix = "LOCAL_"
	} else if strings.ToUpper(envType) == "SERVER" {
		prefix = "SERVER_"
	} else {
		fmt.Printf("Warning: Unknown ENV_TYPE '%s', defaulting to LOCAL environment\n", envType)
		prefix = "LOCAL_"
		envType = "LOCAL"
	}

	fmt.Printf("Loading configuration for environment: %s\n", envType)

	return &Config{
		// Environment type
		EnvType: envType,

		// Database config - use environment-specific variables if available
		DBDriver:        getEnv(prefix+"DB_DRIVER", getEnv("DB_DRIVER", "sqlite")),
		DBHost:          getEnv(prefix+"DB_HOST", getEnv("DB_HOST", "localhost")),
		DBUser:          getEnv(prefix+"DB_USER", getEnv("DB_USER", "root")),
		DBPassword:      getEnv(prefix+"DB_PASSWORD", getEnv("DB_PASSWORD", "")),
		DBName:          getEnv(prefix+"DB_NAME", getEnv("DB_NAME", "plantcare_db")),
		DBPort:          getEnv(prefix+"DB_PORT", getEnv("DB_PORT", "3306")),
		SQLitePath:      getEnv(prefix+"SQLITE_PATH", getEnv("SQLITE_PATH", "plantcare.db")),
		DBMigrationMode: getEnv(prefix+"DB_MIGRATION_MODE", getEnv("DB_MIGRATION_MODE", "auto")),

		// Server config
		ServerPort: getEnv(prefix+"SERVER_PORT", getEnv("SERVER_PORT", "8080")),

		// Redis config
		RedisHost:     getEnv(prefix+"REDIS_HOST", getEnv("REDIS_HOST", "localhost")),
		RedisPort:     getEnv(prefix+"REDIS_PORT", getEnv("REDIS_PORT", "6379")),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisEnabled:  getEnvAsBool("REDIS_ENABLED", true),

		// Weather config
		WeatherAPIURL:   getEnv("OPENWEATHER_API_URL", "https://api.openweathermap.org/data/2.5"),
		WeatherAPIKey:   getEnv("OPENWEATHER_API_KEY", ""),
		WeatherTimeout:  getEnvAsDuration("WEATHER_TIMEOUT", 6*time.Second),
		WeatherCacheTTL: getEnvAsDuration("WEATHER_CACHE_TTL", 1*time.Hour),

		// Completion config
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		CompletionTimeout: getEnvAsDuration("COMPLETION_TIMEOUT", 12*time.Second),

		// Moderation config
		ModerationTimeout: getEnvAsDuration("MODERATION_TIMEOUT", 3*time.Second),
		ModerationRemote:  getEnvAsBool("MODERATION_REMOTE", false),

		// Rate limit config
		AskRateLimit:  getEnvAsInt("ASK_RATE_LIMIT", 8),
		AskRateWindow: getEnvAsDuration("ASK_RATE_WINDOW", 1*time.Minute),

		// JWT Config
		JWTSecretKey: getEnv("JWT_SECRET_KEY", "plantcare-secret-key-change-in-production"),

		// Adjustment policy
		Adjust: AdjustPolicyConfig{
			HeavyRainInches:    getEnvAsFloat("ADJUST_HEAVY_RAIN_INCHES", 0.5),
			LightRainInches:    getEnvAsFloat("ADJUST_LIGHT_RAIN_INCHES", 0.25),
			DryInches:          getEnvAsFloat("ADJUST_DRY_INCHES", 0.05),
			HotTempF:           getEnvAsFloat("ADJUST_HOT_TEMP_F", 90),
			MaxShiftRatio:      getEnvAsFloat("ADJUST_MAX_SHIFT_RATIO", 0.5),
			LightFactorWeight:  getEnvAsFloat("ADJUST_LIGHT_FACTOR_WEIGHT", 0.5),
			FreezeDelayDays:    getEnvAsInt("ADJUST_FREEZE_DELAY_DAYS", 2),
			HeavyRainDelayDays: getEnvAsInt("ADJUST_HEAVY_RAIN_DELAY_DAYS", 2),
		},

		BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", 4),
	}
}

// GetConfig returns the application configuration as a singleton
func GetConfig() *Config {
	configOnce.Do(func() {
		config = LoadConfig()
	})
	return config
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local&allowNativePasswords=true"
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// CompletionEnabled reports whether an AI completion backend is configured
func (c *Config) CompletionEnabled() bool {
	return c.GeminiAPIKey != ""
}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as boolean with default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as float with default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// 解析时长类型的环境变量，如 "6s"、"1m"
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
