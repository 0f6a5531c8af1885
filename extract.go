package cogito

import (
	"regexp"
	"strings"
)

// Fallback extraction from free-text model output. Structured JSON output is
// the primary contract (see schema.go); this parser exists for models that
// answer in prose anyway. The grammar is fixed: numbered lists, bullet lists,
// and "key: value" lines. Everything else is ignored.

var (
	numberedItemRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	bulletItemRe   = regexp.MustCompile(`^\s*[-*•]\s+(.+)$`)
	keyValueRe     = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 _-]*)\s*:\s*(.+)$`)
)

// ExtractList parses numbered and bulleted list items from free text, in
// order of appearance.
func ExtractList(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if m := numberedItemRe.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
			continue
		}
		if m := bulletItemRe.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
		}
	}
	return items
}

// ExtractFields parses "key: value" lines from free text. Keys are lowercased
// with spaces collapsed to underscores; the first occurrence of a key wins.
func ExtractFields(text string) map[string]string {
	fields := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		m := keyValueRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(m[1]))
		key = strings.Join(strings.Fields(key), "_")
		if _, exists := fields[key]; !exists {
			fields[key] = strings.TrimSpace(m[2])
		}
	}
	return fields
}

// ExtractSection returns the text under a markdown-style heading matching
// name (case-insensitive), up to the next heading or end of text.
func ExtractSection(text string, name string) string {
	lines := strings.Split(text, "\n")
	var collected []string
	inSection := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			heading := strings.ToLower(strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
			if inSection {
				break
			}
			if heading == strings.ToLower(name) {
				inSection = true
			}
			continue
		}
		if inSection {
			collected = append(collected, line)
		}
	}

	return strings.TrimSpace(strings.Join(collected, "\n"))
}
