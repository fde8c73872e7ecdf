package repodata

import (
	"strconv"
	"strings"
	"time"
)

// parseMaxAge extracts "max-age=<seconds>" from a raw Cache-Control
// header value, the only directive spec.md §4.2 asks the cache to honor.
func parseMaxAge(cacheControl string) (time.Duration, bool) {
	if cacheControl == "" {
		return 0, false
	}
	for _, directive := range strings.Split(cacheControl, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "max-age") {
			continue
		}
		parts := strings.SplitN(directive, "=", 2)
		if len(parts) != 2 {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}
