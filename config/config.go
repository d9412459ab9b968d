package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds the runtime configuration assembled from the environment.
type Config struct {
	Port              string
	MongoURI          string
	DBName            string
	JWTSecret         string
	OrderNumberPrefix string

	// MockOrderFallback enables returning a locally computed, unpersisted
	// order when the datastore is unreachable. Off by default; meant for
	// demo setups only.
	MockOrderFallback bool

	// StrictItems rejects order items that do not reference a catalog
	// product instead of trusting caller-supplied name/price.
	StrictItems bool

	LowStockThreshold int
	ImageDir          string
	ImageBaseURL      string
}

// LoadEnv loads environment variables from a .env file
func LoadEnv() {
	if err := godotenv.Load(".env"); err != nil {
		log.Debug("no .env file loaded")
	}
}

// GetEnv retrieves environment variables with a fallback
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// GetEnvBool parses a boolean environment variable with a fallback.
func GetEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.WithField("key", key).Warn("invalid boolean env value, using fallback")
		return fallback
	}
	return b
}

// GetEnvInt parses an integer environment variable with a fallback.
func GetEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.WithField("key", key).Warn("invalid integer env value, using fallback")
		return fallback
	}
	return n
}

// FromEnv builds the service configuration from the environment.
func FromEnv() Config {
	return Config{
		Port:              GetEnv("PORT", "3000"),
		MongoURI:          GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:            GetEnv("MONGODB_DB", "storefront"),
		JWTSecret:         GetEnv("JWT_SECRET", ""),
		OrderNumberPrefix: GetEnv("ORDER_NUMBER_PREFIX", "ORD"),
		MockOrderFallback: GetEnvBool("ORDER_MOCK_FALLBACK", false),
		StrictItems:       GetEnvBool("ORDER_STRICT_ITEMS", false),
		LowStockThreshold: GetEnvInt("LOW_STOCK_THRESHOLD", 5),
		ImageDir:          GetEnv("IMAGE_DIR", "uploads"),
		ImageBaseURL:      GetEnv("IMAGE_BASE_URL", "/uploads"),
	}
}
