// Package rules reads, merges and writes the provider rule catalog: a JSON
// object mapping provider name to the headers, cookies and server value that
// identify it.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shortontech/edgeprobe/internal/detection"
)

// Entry is the catalog record for one provider. A nil header or cookie value
// means presence alone is enough to match.
type Entry struct {
	Headers  map[string]*string `json:"headers"`
	Cookies  map[string]*string `json:"cookies,omitempty"`
	Server   *string            `json:"server,omitempty"`
	Priority *int               `json:"priority,omitempty"`
}

// Catalog maps provider name to its entry
type Catalog map[string]Entry

// Parse decodes a catalog document
func Parse(data []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse rule catalog: %w", err)
	}
	if c == nil {
		c = Catalog{}
	}
	for name, entry := range c {
		if entry.Headers == nil {
			entry.Headers = map[string]*string{}
			c[name] = entry
		}
	}
	return c, nil
}

// Load reads a catalog from path. A missing file yields an empty catalog.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Catalog{}, nil
		}
		return nil, fmt.Errorf("failed to read rule catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Save writes the catalog to path through a temporary file in the same
// directory, so readers never observe a partial document.
func Save(path string, c Catalog) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rule catalog: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rules-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write rule catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace rule catalog: %w", err)
	}
	return nil
}

// Names returns the provider names in sorted order
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules converts the catalog into classifier rules, sorted by name. Entries
// that share a name with a built-in provider are skipped.
func (c Catalog) Rules() []detection.Rule {
	builtin := make(map[string]bool)
	for _, r := range detection.BuiltinRules() {
		builtin[strings.ToLower(r.Name)] = true
	}

	var out []detection.Rule
	for _, name := range c.Names() {
		if builtin[strings.ToLower(name)] {
			continue
		}
		entry := c[name]
		rule := detection.Rule{Kind: detection.KindCatalog, Name: name}

		headers := make([]string, 0, len(entry.Headers))
		for h := range entry.Headers {
			// server patterns are regular expressions in the import source
			if strings.EqualFold(h, "server") {
				continue
			}
			headers = append(headers, strings.ToLower(h))
		}
		sort.Strings(headers)
		rule.Headers = headers

		if entry.Server != nil && *entry.Server != "" {
			rule.Server = []string{*entry.Server}
		}
		if entry.Priority != nil {
			rule.Priority = *entry.Priority
		}
		if len(rule.Headers) == 0 && len(rule.Server) == 0 {
			continue
		}
		out = append(out, rule)
	}
	return out
}
