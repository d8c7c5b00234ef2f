package rules

// MergeStats summarizes a Merge call
type MergeStats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// Merge folds src into dst. New providers are added wholesale. For existing
// providers header entries are unioned, with src winning on collisions, and
// server and priority are only filled in when dst has none.
func Merge(dst, src Catalog) MergeStats {
	var stats MergeStats
	for name, incoming := range src {
		existing, ok := dst[name]
		if !ok {
			dst[name] = cloneEntry(incoming)
			stats.Added++
			continue
		}

		changed := false
		if existing.Headers == nil {
			existing.Headers = map[string]*string{}
		}
		for h, v := range incoming.Headers {
			if old, ok := existing.Headers[h]; !ok || !equalPtr(old, v) {
				existing.Headers[h] = clonePtr(v)
				changed = true
			}
		}
		if existing.Server == nil && incoming.Server != nil {
			existing.Server = clonePtr(incoming.Server)
			changed = true
		}
		if existing.Priority == nil && incoming.Priority != nil {
			p := *incoming.Priority
			existing.Priority = &p
			changed = true
		}
		if changed {
			dst[name] = existing
			stats.Updated++
		}
	}
	return stats
}

func cloneEntry(e Entry) Entry {
	out := Entry{Headers: cloneMap(e.Headers), Cookies: cloneMap(e.Cookies), Server: clonePtr(e.Server)}
	if out.Headers == nil {
		out.Headers = map[string]*string{}
	}
	if e.Priority != nil {
		p := *e.Priority
		out.Priority = &p
	}
	return out
}

func cloneMap(m map[string]*string) map[string]*string {
	if m == nil {
		return nil
	}
	out := make(map[string]*string, len(m))
	for k, v := range m {
		out[k] = clonePtr(v)
	}
	return out
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
