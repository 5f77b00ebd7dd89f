// Package formatting converts byte sizes between counts and human-readable strings,
// as used by request body limits in configuration.
package formatting

import (
	"fmt"
	"strconv"
	"strings"
)

type unit struct {
	name string
	size int64
}

// Units are base-1024; "KiB" style names are accepted as aliases.
var units = []unit{
	{"B", 1},
	{"KB", 1 << 10},
	{"MB", 1 << 20},
	{"GB", 1 << 30},
	{"TB", 1 << 40},
	{"PB", 1 << 50},
	{"EB", 1 << 60},
}

// FormatBytes renders n in the largest unit not exceeding it with the given
// number of decimals. Negative precision is treated as zero.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}

	u := units[0]
	for _, candidate := range units[1:] {
		if n < candidate.size {
			break
		}
		u = candidate
	}
	return strconv.FormatFloat(float64(n)/float64(u.size), 'f', precision, 64) + " " + u.name
}

// ParseBytes parses sizes such as "1MB", "2.5 kb", "512KiB" or a bare byte count.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	num, suffix := s, ""
	if split >= 0 {
		num, suffix = s[:split], strings.TrimSpace(s[split:])
	}
	if num == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number %q: %w", num, err)
	}

	size, err := unitSize(suffix)
	if err != nil {
		return 0, err
	}
	return int64(value * float64(size)), nil
}

func unitSize(suffix string) (int64, error) {
	name := strings.ToUpper(suffix)
	if name == "" {
		return 1, nil
	}
	name = strings.Replace(name, "IB", "B", 1)
	for _, u := range units {
		if u.name == name {
			return u.size, nil
		}
	}
	return 0, fmt.Errorf("unknown byte size unit: %q", suffix)
}
