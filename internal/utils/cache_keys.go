package utils

import "strings"

// BuildMediaListCacheKey is versioned so a payload shape change never serves stale entries.
func BuildMediaListCacheKey(kind string) string {
	return "media:list:v1:kind=" + strings.ToLower(strings.TrimSpace(kind))
}
