package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CDNCategory is the Wappalyzer category id for CDNs
const CDNCategory = 31

type technology struct {
	Cats    []int             `json:"cats"`
	Headers map[string]string `json:"headers"`
	Cookies map[string]string `json:"cookies"`
}

// ParseWappalyzer extracts the CDN technologies from a Wappalyzer-style
// fingerprint document, either {"technologies": {...}} or a bare map.
func ParseWappalyzer(data []byte) (Catalog, error) {
	var wrapped struct {
		Technologies map[string]json.RawMessage `json:"technologies"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse fingerprint source: %w", err)
	}
	raw := wrapped.Technologies
	if raw == nil {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse fingerprint source: %w", err)
		}
	}

	out := Catalog{}
	for name, msg := range raw {
		var tech technology
		if err := json.Unmarshal(msg, &tech); err != nil {
			return nil, fmt.Errorf("failed to parse technology %q: %w", name, err)
		}
		if !hasCategory(tech.Cats, CDNCategory) {
			continue
		}

		entry := Entry{Headers: map[string]*string{}}
		for h, pattern := range tech.Headers {
			if strings.EqualFold(h, "server") {
				if lit, ok := literalPattern(pattern); ok {
					entry.Server = &lit
					continue
				}
			}
			entry.Headers[h] = patternValue(pattern)
		}
		if len(tech.Cookies) > 0 {
			entry.Cookies = make(map[string]*string, len(tech.Cookies))
			for c, pattern := range tech.Cookies {
				entry.Cookies[c] = patternValue(pattern)
			}
		}
		out[name] = entry
	}
	return out, nil
}

func hasCategory(cats []int, want int) bool {
	for _, c := range cats {
		if c == want {
			return true
		}
	}
	return false
}

// patternValue strips Wappalyzer tags (\;version:..., \;confidence:...).
// An empty pattern means presence only.
func patternValue(pattern string) *string {
	p, _, _ := strings.Cut(pattern, `\;`)
	if p == "" {
		return nil
	}
	return &p
}

// literalPattern returns the pattern as a plain substring when it contains
// no regular expression syntax beyond a leading anchor.
func literalPattern(pattern string) (string, bool) {
	p, _, _ := strings.Cut(pattern, `\;`)
	p = strings.TrimPrefix(p, "^")
	if p == "" || strings.ContainsAny(p, `\.*+?()[]{}|$`) {
		return "", false
	}
	return p, true
}
