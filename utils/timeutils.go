package utils

import (
	"time"
)

// Iso8601Now returns the current time in ISO8601 format
func Iso8601Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Iso8601FromUnixMillis converts a Unix millisecond timestamp to ISO8601 format
func Iso8601FromUnixMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
