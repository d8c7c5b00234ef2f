package detection

import (
	"strings"
)

// ProviderKind identifies how a rule's headers are interpreted
type ProviderKind int

const (
	KindCatalog ProviderKind = iota
	KindCloudflare
	KindVercel
	KindFastly
	KindAkamai
	KindCloudFront
	KindNetlify
	KindAzureFrontDoor
	KindGoogleCloud
	KindBunnyCDN
	KindKeyCDN
	KindCDN77
	KindSucuri
	KindImperva
	KindGitHubPages
)

// Rule describes how to recognize one provider
type Rule struct {
	Kind     ProviderKind
	Name     string
	Headers  []string // presence of any of these marks a match
	Server   []string // case-insensitive substrings of the server header
	Priority int

	// Values holds indicator headers whose name alone is too generic; the
	// header matches only when its value contains one of the substrings.
	Values map[string][]string
}

// Matches reports whether the rule applies to h. The server test only runs
// when no indicator header is present.
func (r Rule) Matches(h HeaderSet) bool {
	for _, name := range r.Headers {
		if h.Has(name) {
			return true
		}
	}
	for name, subs := range r.Values {
		if v, ok := h.Lookup(name); ok && containsAnyFold(v, subs) {
			return true
		}
	}
	server, ok := h.Lookup("server")
	if !ok {
		return false
	}
	return containsAnyFold(server, r.Server)
}

func containsAnyFold(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && indexFold(s, sub) >= 0 {
			return true
		}
	}
	return false
}

// indexFold is a case-insensitive strings.Index. The returned offset is
// always valid for s, whatever bytes s holds.
func indexFold(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

// lastRunes returns the final n runes of s, or "" when s is shorter
func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		return ""
	}
	return string(r[len(r)-n:])
}

// firstRunes returns the leading n runes of s, or "" when s is shorter
func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		return ""
	}
	return string(r[:n])
}

type classifyFunc func(r Rule, h HeaderSet) Result

var classifiers = map[ProviderKind]classifyFunc{
	KindCatalog:        classifyCatalog,
	KindCloudflare:     classifyCloudflare,
	KindVercel:         classifyVercel,
	KindFastly:         classifyFastly,
	KindAkamai:         classifyAkamai,
	KindCloudFront:     classifyCloudFront,
	KindNetlify:        withExtraHeader("x-nf-request-id"),
	KindAzureFrontDoor: withExtraHeader("x-azure-ref"),
	KindGoogleCloud:    withExtraHeader("via"),
	KindBunnyCDN:       classifyBunnyCDN,
	KindKeyCDN:         withPOPHeader("x-edge-location"),
	KindCDN77:          withPOPHeader("x-77-pop"),
	KindSucuri:         withExtraHeader("x-sucuri-id"),
	KindImperva:        withExtraHeader("x-cdn"),
	KindGitHubPages:    withExtraHeader("x-github-request-id"),
}

// BuiltinRules returns the provider rules shipped with the classifier, in
// registration order.
func BuiltinRules() []Rule {
	return []Rule{
		{Kind: KindCloudflare, Name: "Cloudflare", Headers: []string{"cf-ray", "cf-cache-status"}, Server: []string{"cloudflare"}, Priority: 10},
		{Kind: KindVercel, Name: "Vercel", Headers: []string{"x-vercel-id", "x-vercel-cache"}, Server: []string{"vercel"}, Priority: 9},
		{Kind: KindFastly, Name: "Fastly", Headers: []string{"x-fastly-request-id", "fastly-debug-digest"}, Server: []string{"fastly"}, Priority: 8},
		{Kind: KindAkamai, Name: "Akamai", Headers: []string{"x-akamai-transformed", "akamai-grn", "x-akamai-request-id"}, Server: []string{"akamaighost", "akamainetstorage"}, Priority: 8},
		{Kind: KindCloudFront, Name: "Amazon CloudFront", Headers: []string{"x-amz-cf-id", "x-amz-cf-pop"}, Server: []string{"cloudfront"}, Priority: 8},
		{Kind: KindNetlify, Name: "Netlify", Headers: []string{"x-nf-request-id"}, Server: []string{"netlify"}, Priority: 7},
		{Kind: KindAzureFrontDoor, Name: "Azure Front Door", Headers: []string{"x-azure-ref", "x-fd-healthprobe"}, Priority: 7},
		{Kind: KindGoogleCloud, Name: "Google Cloud CDN", Headers: []string{"x-goog-generation", "x-guploader-uploadid"}, Server: []string{"google frontend", "gws"}, Priority: 6},
		{Kind: KindBunnyCDN, Name: "BunnyCDN", Headers: []string{"cdn-pullzone", "cdn-requestcountrycode"}, Server: []string{"bunnycdn"}, Priority: 7},
		{Kind: KindKeyCDN, Name: "KeyCDN", Headers: []string{"x-edge-location"}, Server: []string{"keycdn"}, Priority: 6},
		{Kind: KindCDN77, Name: "CDN77", Headers: []string{"x-77-pop", "x-77-cache"}, Server: []string{"cdn77"}, Priority: 6},
		{Kind: KindSucuri, Name: "Sucuri", Headers: []string{"x-sucuri-id", "x-sucuri-cache"}, Server: []string{"sucuri"}, Priority: 6},
		{Kind: KindImperva, Name: "Imperva", Headers: []string{"x-iinfo"}, Values: map[string][]string{"x-cdn": {"incapsula", "imperva"}}, Priority: 6},
		{Kind: KindGitHubPages, Name: "GitHub Pages", Headers: []string{"x-github-request-id"}, Server: []string{"github.com"}, Priority: 5},
	}
}

func newResult(r Rule, h HeaderSet) Result {
	return Result{
		Provider: r.Name,
		Cache:    ResolveCacheStatus(h),
		POP:      NA,
		Extra:    NA,
	}
}

func classifyCatalog(r Rule, h HeaderSet) Result {
	res := newResult(r, h)
	for _, name := range r.Headers {
		if v, ok := h.Lookup(name); ok {
			res.Extra = name + ": " + v
			break
		}
	}
	return res
}

func classifyCloudflare(r Rule, h HeaderSet) Result {
	res := newResult(r, h)
	ray := strings.TrimSpace(h.Get("cf-ray"))
	if ray == "" {
		return res
	}
	if pop := lastRunes(ray, 3); pop != "" {
		res.POP = strings.ToUpper(pop)
	}
	res.Extra = "Ray ID: " + ray
	return res
}

func classifyVercel(r Rule, h HeaderSet) Result {
	res := newResult(r, h)
	id := strings.TrimSpace(h.Get("x-vercel-id"))
	if id == "" {
		return res
	}
	region, _, _ := strings.Cut(id, "::")
	region = strings.TrimRight(region, "0123456789")
	if region != "" {
		res.POP = strings.ToUpper(region)
	}
	res.Extra = "ID: " + id
	return res
}

func classifyFastly(r Rule, h HeaderSet) Result {
	res := newResult(r, h)
	servedBy := strings.TrimSpace(h.Get("x-served-by"))
	if servedBy == "" {
		return res
	}
	nodes := strings.Split(servedBy, ",")
	last := strings.TrimSpace(nodes[len(nodes)-1])
	if idx := strings.LastIndex(last, "-"); idx >= 0 && idx < len(last)-1 {
		res.POP = strings.ToUpper(last[idx+1:])
	}
	res.Extra = "Served by: " + servedBy
	return res
}

func classifyAkamai(r Rule, h HeaderSet) Result {
	res := newResult(r, h)
	if grn := h.Get("akamai-grn"); grn != "" {
		res.Extra = "GRN: " + grn
	}
	return res
}

func classifyCloudFront(r Rule, h HeaderSet) Result {
	res := newResult(r, h)
	if pop := firstRunes(strings.TrimSpace(h.Get("x-amz-cf-pop")), 3); pop != "" {
		res.POP = strings.ToUpper(pop)
	}
	if id := h.Get("x-amz-cf-id"); id != "" {
		res.Extra = "CF ID: " + id
	}
	return res
}

func classifyBunnyCDN(r Rule, h HeaderSet) Result {
	res := newResult(r, h)
	server := h.Get("server")
	const prefix = "bunnycdn-"
	if idx := indexFold(server, prefix); idx >= 0 {
		rest := server[idx+len(prefix):]
		node, _, _ := strings.Cut(rest, "-")
		if node != "" {
			res.POP = strings.ToUpper(node)
		}
	}
	if zone := h.Get("cdn-pullzone"); zone != "" {
		res.Extra = "Pull zone: " + zone
	}
	return res
}

// withPOPHeader reads the POP directly from a location header.
func withPOPHeader(name string) classifyFunc {
	return func(r Rule, h HeaderSet) Result {
		res := newResult(r, h)
		if pop := strings.TrimSpace(h.Get(name)); pop != "" {
			res.POP = strings.ToUpper(pop)
		}
		return res
	}
}

// withExtraHeader reports a single identifying header as the extra detail.
func withExtraHeader(name string) classifyFunc {
	return func(r Rule, h HeaderSet) Result {
		res := newResult(r, h)
		if v := h.Get(name); v != "" {
			res.Extra = name + ": " + v
		}
		return res
	}
}
