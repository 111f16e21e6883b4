package utils

import (
	"os"
	"strings"

	"github.com/google/uuid"
)

// GetServerID returns a stable identifier for this edge instance.
// Order: explicit override, OS hostname, random fallback.
func GetServerID(override string) string {
	if override != "" {
		return override
	}

	hostname, err := os.Hostname()
	if err == nil && hostname != "" && hostname != "localhost" {
		cleanHost := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
				return r
			}
			return -1
		}, hostname)
		if cleanHost != "" {
			return "edge-" + cleanHost
		}
	}

	return "edge-" + uuid.NewString()[:8]
}
