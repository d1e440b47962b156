package recon

import (
	"regexp"
	"strings"
)

// Connection is a parsed legacy connection field: the linked record ID and,
// when the display text looks like an e-mail, a fallback join key. Upstream
// data populates these inconsistently, so both paths are kept; ID matches
// always win over e-mail matches.
type Connection struct {
	ID    string
	Email string
}

var (
	spanClassRe = regexp.MustCompile(`class="([^"]+)"`)
	spanTextRe  = regexp.MustCompile(`>([^<]+)<`)
	mailtoRe    = regexp.MustCompile(`mailto:([^"]+)"`)
)

// ExtractConnection parses a connection field value. Knack renders
// connections as `<span class="ID">display text</span>`; legacy records may
// hold a bare ID or a bare e-mail instead.
func ExtractConnection(value string) Connection {
	value = strings.TrimSpace(value)
	if value == "" {
		return Connection{}
	}

	if strings.Contains(value, "<span") {
		conn := Connection{}

		if m := spanClassRe.FindStringSubmatch(value); m != nil {
			conn.ID = m[1]
		}

		if m := spanTextRe.FindStringSubmatch(value); m != nil {
			text := strings.TrimSpace(m[1])
			if strings.Contains(text, "@") {
				conn.Email = text
			}
		}

		if m := mailtoRe.FindStringSubmatch(value); m != nil {
			conn.Email = m[1]
		}

		return conn
	}

	if strings.Contains(value, "@") {
		return Connection{Email: value}
	}

	return Connection{ID: value}
}

// ConnectionIDs extracts record IDs from a raw multi-connection value, which
// Knack serializes as an array of `{id, identifier}` objects.
func ConnectionIDs(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := entry["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}

	return ids
}

// ConnectionNames extracts display names from a raw multi-connection value.
func ConnectionNames(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		for _, key := range []string{"identifier", "title", "name"} {
			if name, ok := entry[key].(string); ok && name != "" {
				if cleaned := StripHTML(name); cleaned != "" {
					names = append(names, cleaned)
				}
				break
			}
		}
	}

	return names
}
