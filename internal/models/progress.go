package models

import "time"

// ProgressStatus is the lifecycle state of a progress record.
type ProgressStatus string

const (
	ProgressAssigned  ProgressStatus = "assigned"
	ProgressCompleted ProgressStatus = "completed"
	ProgressRemoved   ProgressStatus = "removed"
)

// SelectedVia records why an activity became associated with a student.
type SelectedVia string

const (
	SelectedViaStaff   SelectedVia = "staff_assigned"
	SelectedViaStudent SelectedVia = "student_choice"
	SelectedViaReport  SelectedVia = "report_generated"
)

// OriginTag is the display label derived from progress history. It never
// affects completion computation.
type OriginTag string

const (
	OriginStaff      OriginTag = "Staff"
	OriginReport     OriginTag = "Report"
	OriginPrescribed OriginTag = "Prescribed"
	OriginSelf       OriginTag = "Self-selected"
)

// ProgressEntry is one audit record for a (student, activity) pair. Multiple
// entries may exist per pair; reconciliation uses the latest one only.
// Entries are never deleted, removal is a status transition.
type ProgressEntry struct {
	ID          string         `json:"id"`
	StudentID   string         `json:"student_id"`
	ActivityID  string         `json:"activity_id"`
	Status      ProgressStatus `json:"status"`
	SelectedVia SelectedVia    `json:"selected_via"`
	StaffNotes  string         `json:"staff_notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
