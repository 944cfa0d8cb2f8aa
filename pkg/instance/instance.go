package instance

import "os"

// GetID returns the worker instance identifier, preferring an explicit id over the hostname.
func GetID() string {
	if id := os.Getenv("BUYBACK_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
