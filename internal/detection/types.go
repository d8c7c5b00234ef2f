package detection

// CacheStatus is the edge cache outcome reported for a response
type CacheStatus string

const (
	CacheHit         CacheStatus = "HIT"
	CacheMiss        CacheStatus = "MISS"
	CacheBypass      CacheStatus = "BYPASS"
	CacheDynamic     CacheStatus = "DYNAMIC"
	CacheHitInferred CacheStatus = "HIT (inferred)"
	CacheNA          CacheStatus = "N/A"
)

const (
	// NA marks a field that could not be determined
	NA = "N/A"

	// UnknownProvider is reported when neither a rule nor a server header matched
	UnknownProvider = "Unknown"

	// NoCDNDetected is the Extra marker of a server-header fallback result
	NoCDNDetected = "No CDN detected"
)

// Result is the outcome of classifying one HeaderSet
type Result struct {
	Provider string      `json:"provider"`
	Cache    CacheStatus `json:"cache"`
	POP      string      `json:"pop"`
	Extra    string      `json:"extra"`
	Priority int         `json:"priority"`
}

// IsCDN reports whether a provider rule matched
func (r Result) IsCDN() bool {
	return r.Provider != UnknownProvider && r.Extra != NoCDNDetected
}
