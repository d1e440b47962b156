package models

// CategoryEntry is one prescribed activity inside a category breakdown.
type CategoryEntry struct {
	ActivityID string `json:"activity_id"`
	Name       string `json:"name"`
	Completed  bool   `json:"completed"`
}

// Student is one student record as reconciled for staff. It is rebuilt from
// raw CRM records on every load; the record ID is the only stable identity.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`

	// PrescribedNames carries the legacy name-only assignment list. It is
	// kept for diagnostics after names have been matched to catalog IDs.
	PrescribedNames []string `json:"prescribed_names,omitempty"`

	PrescribedActivityIDs []string `json:"prescribed_activity_ids"`
	FinishedActivityIDs   []string `json:"finished_activity_ids"`

	// InProgressActivityIDs lists activities with a live audit entry that
	// the student has started but not yet completed.
	InProgressActivityIDs []string `json:"in_progress_activity_ids,omitempty"`

	PrescribedCount     int `json:"prescribed_count"`
	CompletedCount      int `json:"completed_count"`
	TotalCompletedCount int `json:"total_completed_count"`
	InProgressCount     int `json:"in_progress_count"`
	Progress            int `json:"progress"`

	CategoryBreakdown map[Category][]CategoryEntry `json:"category_breakdown"`
	VESPAScores       VESPAScores                  `json:"vespa_scores"`

	// Join keys for the separate VESPA results record, extracted from the
	// connection field. ID match is preferred, e-mail is the fallback.
	VESPAConnectionID    string `json:"-"`
	VESPAConnectionEmail string `json:"-"`
}

// IsPrescribed reports whether the activity is in the student's curriculum.
func (s Student) IsPrescribed(activityID string) bool {
	for _, id := range s.PrescribedActivityIDs {
		if id == activityID {
			return true
		}
	}

	return false
}

// IsFinished reports whether the student has completed the activity.
func (s Student) IsFinished(activityID string) bool {
	for _, id := range s.FinishedActivityIDs {
		if id == activityID {
			return true
		}
	}

	return false
}
