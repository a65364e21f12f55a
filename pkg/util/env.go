package util

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvInt reads key as an int. Unset, blank or malformed values yield def.
func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDuration reads key as a time.Duration ("30s", "2m"). Non-positive or
// malformed values yield def.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
