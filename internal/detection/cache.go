package detection

import (
	"strconv"
	"strings"
)

// cacheHeaders are checked in order; the first one present decides.
var cacheHeaders = []string{
	"cf-cache-status",
	"x-vercel-cache",
	"x-nf-cache-status",
	"cdn-cache",
	"x-77-cache",
	"x-edge-cache-status",
	"x-cache-status",
	"x-proxy-cache",
	"x-sucuri-cache",
	"x-cache",
	"cache-status",
}

// cacheKeywords are tested by substring containment, in this order.
var cacheKeywords = []CacheStatus{CacheHit, CacheMiss, CacheBypass, CacheDynamic}

// ResolveCacheStatus derives the edge cache status from well-known headers,
// falling back to a positive Age header.
func ResolveCacheStatus(h HeaderSet) CacheStatus {
	for _, name := range cacheHeaders {
		value, ok := h.Lookup(name)
		if !ok {
			continue
		}
		return cacheStatusFromValue(value)
	}

	if age, err := strconv.Atoi(strings.TrimSpace(h.Get("age"))); err == nil && age > 0 {
		return CacheHitInferred
	}
	return CacheNA
}

func cacheStatusFromValue(value string) CacheStatus {
	first, _, _ := strings.Cut(value, ",")
	first = strings.ToUpper(first)
	for _, keyword := range cacheKeywords {
		if strings.Contains(first, string(keyword)) {
			return keyword
		}
	}
	return CacheNA
}
