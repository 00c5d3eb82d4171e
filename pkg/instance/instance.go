package instance

import (
	"os"
	"strings"
)

// GetID names the running process in logs and lock owners. DYNO is set on the
// hosting platform; HOSTNAME covers containers.
func GetID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
