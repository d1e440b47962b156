package models

// Activity is a catalog item, global reference data loaded once per session
// and treated as immutable.
type Activity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Level       int      `json:"level"`
	Description string   `json:"description,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Type        string   `json:"type,omitempty"`
	Curriculums []string `json:"curriculums,omitempty"`

	// Score thresholds gate which activities a report suggests for a given
	// VESPA score. Display metadata only, never enforced by reconciliation.
	ScoreShowIfMoreThan float64 `json:"score_show_if_more_than,omitempty"`
	ScoreShowIfLessEq   float64 `json:"score_show_if_less_equal,omitempty"`
}

// SuggestedForScore reports whether the activity's thresholds match the
// given category score.
func (a Activity) SuggestedForScore(score float64) bool {
	if a.ScoreShowIfMoreThan > 0 && score <= a.ScoreShowIfMoreThan {
		return false
	}
	if a.ScoreShowIfLessEq > 0 && score > a.ScoreShowIfLessEq {
		return false
	}

	return a.ScoreShowIfMoreThan > 0 || a.ScoreShowIfLessEq > 0
}
