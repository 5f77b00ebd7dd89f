package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func validateDurations(fields map[string]string) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if _, err := time.ParseDuration(fields[name]); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

func defaultString(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func mergeString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envList(name string, dst *[]string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	*dst = out
}
