package instance

import (
	"os"
	"strings"
)

// GetID identifies the running process in logs and lock owners. POS_INSTANCE_ID
// wins over the hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("POS_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
