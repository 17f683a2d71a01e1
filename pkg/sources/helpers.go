package sources

import (
	"time"

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
)

// GetLoggerFromConfig extracts logger from config map or returns a noop logger.
func GetLoggerFromConfig(config map[string]interface{}) *logging.Logger {
	if loggerInterface, ok := config["logger"]; ok {
		if logger, ok := loggerInterface.(*logging.Logger); ok && logger != nil {
			return logger
		}
	}
	return logging.NewNoopLogger()
}

// GetString returns config[key] as a string, or defaultVal.
func GetString(config map[string]interface{}, key, defaultVal string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}

// GetInt returns config[key] as an int, or defaultVal.
func GetInt(config map[string]interface{}, key string, defaultVal int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultVal
	}
}

// GetDuration reads either a Go duration string ("20s") or an integer number
// of milliseconds.
func GetDuration(config map[string]interface{}, key string, defaultVal time.Duration) time.Duration {
	switch v := config[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v) * time.Millisecond
	case time.Duration:
		return v
	}
	return defaultVal
}
