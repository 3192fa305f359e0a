package shared

import (
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate accepts RFC3339 or YYYY-MM-DD. Empty input yields the zero time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse(DateLayout, value)
}

// OptionalDate returns nil for an empty value.
func OptionalDate(value string) (*time.Time, error) {
	parsed, err := ParseDate(value)
	if err != nil || parsed.IsZero() {
		return nil, err
	}
	return &parsed, nil
}

// ParseYear falls back when value is empty or out of range.
func ParseYear(value string, fallback int) int {
	year, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || year < 2000 || year > 2100 {
		return fallback
	}
	return year
}
