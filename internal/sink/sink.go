// Package sink delivers probe reports to durable outputs.
package sink

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/shortontech/edgeprobe/internal/report"
)

type Sink interface {
	Start(ctx context.Context) error
	Enqueue(r report.Report) error
	Close() error
	Name() string // label used for metrics and logs
}

func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "t", "true", "y", "yes":
		return true
	case "0", "f", "false", "n", "no":
		return false
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
