package environment

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var processorBaseURL = os.Getenv("PROCESSOR_BASE_URL")

// GetProcessorBaseURL returns the base URL of the external processing service.
func GetProcessorBaseURL() string {
	if processorBaseURL != "" {
		return processorBaseURL
	}
	return "http://127.0.0.1:5000"
}

var port = os.Getenv("PORT")

func GetPort() string {
	if port != "" {
		return port
	}
	return "8085"
}

var spoolDir = os.Getenv("SPOOL_DIR")

// GetSpoolDir returns the directory uploaded clip bytes are spooled to.
func GetSpoolDir() string {
	// For local testing
	if spoolDir != "" {
		return spoolDir
	}
	return filepath.Join(os.TempDir(), "cliproom")
}

var sessionTTL = os.Getenv("SESSION_TTL")

// GetSessionTTL returns how long an idle session is kept before the
// registry closes it and releases its spooled clips.
func GetSessionTTL() time.Duration {
	if sessionTTL != "" {
		if d, err := time.ParseDuration(sessionTTL); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Minute
}

var dispatchTimeout = os.Getenv("DISPATCH_TIMEOUT")

// GetDispatchTimeout bounds a single request/response exchange with the
// processing service. Conversions of large clips are slow, so the default
// is generous.
func GetDispatchTimeout() time.Duration {
	if dispatchTimeout != "" {
		if d, err := time.ParseDuration(dispatchTimeout); err == nil && d > 0 {
			return d
		}
	}
	return 10 * time.Minute
}

func IsDebug() bool {
	return os.Getenv("DEBUG") != ""
}

var logLevel = os.Getenv("LOG_LEVEL")

func GetLogLevel() string {
	if logLevel != "" {
		return logLevel
	}
	return "info"
}

var maxMergeClips = os.Getenv("MAX_MERGE_CLIPS")

// GetMaxMergeClips caps how many clips a single merge list may hold.
func GetMaxMergeClips() int {
	if maxMergeClips != "" {
		if n, err := strconv.Atoi(maxMergeClips); err == nil && n >= 2 {
			return n
		}
	}
	return 20
}
