package recon

import (
	"strings"

	"github.com/4sighteducation/vespa-activities-api/internal/models"
)

// Matcher resolves legacy prescribed-activity names against the catalog.
// Lookup passes run in strict precedence: exact normalized equality, then
// equality after stripping leading articles, then bidirectional containment.
// Article-stripped equality sits above containment so "the time log" finds
// "Time Log" rather than a longer name that merely contains the input.
type Matcher struct {
	activities []models.Activity
	normalized []string
}

// NewMatcher indexes the catalog for name matching.
func NewMatcher(activities []models.Activity) *Matcher {
	normalized := make([]string, len(activities))
	for i, activity := range activities {
		normalized[i] = NormalizeName(StripHTML(activity.Name))
	}

	return &Matcher{activities: activities, normalized: normalized}
}

// Match finds the catalog activity for a prescribed name. The boolean is
// false when every pass fails; callers must surface unmatched names rather
// than swallow them.
func (m *Matcher) Match(name string) (models.Activity, bool) {
	target := NormalizeName(StripHTML(name))
	if target == "" {
		return models.Activity{}, false
	}

	for i, candidate := range m.normalized {
		if candidate == target {
			return m.activities[i], true
		}
	}

	strippedTarget := stripArticles(target)
	for i, candidate := range m.normalized {
		if stripArticles(candidate) == strippedTarget {
			return m.activities[i], true
		}
	}

	for i, candidate := range m.normalized {
		if strings.Contains(candidate, target) || strings.Contains(target, candidate) {
			return m.activities[i], true
		}
	}

	return models.Activity{}, false
}

func stripArticles(name string) string {
	for {
		switch {
		case strings.HasPrefix(name, "the "):
			name = name[len("the "):]
		case strings.HasPrefix(name, "an "):
			name = name[len("an "):]
		case strings.HasPrefix(name, "a "):
			name = name[len("a "):]
		default:
			return name
		}
	}
}
