package env

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const NotExists = "~!-===X===-!~"

// Load reads .env and then .env.local on top of it. Missing files are ignored,
// variables already present in the environment win over .env.
func Load() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
}

// GetString retrieves the value of the environment variable named by the key.
// It returns the value, or if the variable is not present, it returns the defaultValue.
func GetString(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

// GetBool returns true if the env variable with the key set and is truthy and
// defaultValue otherwise.
func GetBool(key string, defaultValue bool) bool {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	if strValue == "1" || strValue == "true" {
		return true
	}

	return false
}

// GetInt returns an integer if the env variable with the key set and contains
// an integer and defaultValue otherwise.
func GetInt(key string, defaultValue int) int {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	intValue, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return defaultValue
	}

	return int(intValue)
}

// GetUint64 is GetInt for values that do not fit an int, like gas budgets.
func GetUint64(key string, defaultValue uint64) uint64 {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	value, err := strconv.ParseUint(strValue, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// GetDuration parses values like "100ms" or "5s", falling back to
// defaultValue when the variable is missing or malformed.
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	value, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue
	}

	return value
}
