package detection

import (
	"sort"
	"strings"
)

// Classifier picks the provider that served a response. It is safe for
// concurrent use; the rule table never changes after construction.
type Classifier struct {
	rules []Rule
}

// NewClassifier registers the built-in rules followed by extra. Rules with a
// kind that has no classification function fall back to the generic one.
func NewClassifier(extra ...Rule) *Classifier {
	rules := BuiltinRules()
	rules = append(rules, extra...)
	return &Classifier{rules: rules}
}

// Rules returns a copy of the registered rules
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns exactly one Result for h. It never fails: missing or
// malformed headers resolve to N/A or Unknown.
func (c *Classifier) Classify(h HeaderSet) Result {
	var matches []Result
	for _, rule := range c.rules {
		if !rule.Matches(h) {
			continue
		}
		fn, ok := classifiers[rule.Kind]
		if !ok {
			fn = classifyCatalog
		}
		res := fn(rule, h)
		res.Priority = rule.Priority
		matches = append(matches, res)
	}

	if len(matches) > 0 {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Priority > matches[j].Priority
		})
		return matches[0]
	}

	if server, ok := h.Lookup("server"); ok && strings.TrimSpace(server) != "" {
		return Result{
			Provider: server,
			Cache:    ResolveCacheStatus(h),
			POP:      NA,
			Extra:    NoCDNDetected,
		}
	}

	return Result{
		Provider: UnknownProvider,
		Cache:    CacheNA,
		POP:      NA,
		Extra:    NA,
	}
}

// Classify runs the default classifier over h
func Classify(h HeaderSet) Result {
	return defaultClassifier.Classify(h)
}

var defaultClassifier = NewClassifier()
