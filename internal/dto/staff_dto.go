package dto

import (
	"time"

	"github.com/4sighteducation/vespa-activities-api/internal/models"
)

// RolesResponse lists the staff member's resolved roles and the active one.
type RolesResponse struct {
	Roles  []models.Role `json:"roles"`
	Active models.Role   `json:"active"`
}

// DashboardResponse is the reconciled student list for the active role.
type DashboardResponse struct {
	Role           models.Role         `json:"role"`
	Students       []models.Student    `json:"students"`
	Catalog        []models.Activity   `json:"catalog"`
	UnmatchedNames map[string][]string `json:"unmatched_names,omitempty"`
	TestMode       bool                `json:"test_mode,omitempty"`
	Placeholder    bool                `json:"placeholder_data,omitempty"`
}

// WorkspaceActivity is one activity row in a student workspace, with its
// derived origin badge.
type WorkspaceActivity struct {
	ActivityID string           `json:"activity_id"`
	Name       string           `json:"name"`
	Level      int              `json:"level"`
	Duration   string           `json:"duration,omitempty"`
	Type       string           `json:"type,omitempty"`
	Completed  bool             `json:"completed"`
	Prescribed bool             `json:"prescribed"`
	Origin     models.OriginTag `json:"origin"`
	Suggested  bool             `json:"suggested,omitempty"`
}

// WorkspaceCategory groups a student's activities under one VESPA category.
type WorkspaceCategory struct {
	Category   models.Category     `json:"category"`
	Score      float64             `json:"score"`
	Activities []WorkspaceActivity `json:"activities"`
}

// WorkspaceResponse is the detail view for a single student.
type WorkspaceResponse struct {
	Student    models.Student      `json:"student"`
	Categories []WorkspaceCategory `json:"categories"`
}

// AssignRequest asks for activities to be added to a student's curriculum.
type AssignRequest struct {
	ActivityIDs []string `json:"activity_ids" validate:"required,min=1,dive,required"`
}

// RemoveRequest asks for activities to be removed. Exactly one selector
// applies: explicit IDs, a whole category, or everything.
type RemoveRequest struct {
	ActivityIDs []string `json:"activity_ids" validate:"omitempty,dive,required"`
	Category    string   `json:"category" validate:"omitempty,oneof=vision effort systems practice attitude"`
	All         bool     `json:"all"`
}

// UndoResponse carries the one-shot undo token for a removal.
type UndoResponse struct {
	Token      string    `json:"token"`
	RemovedIDs []string  `json:"removed_ids"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ToggleResponse reports the new completion state after a toggle.
type ToggleResponse struct {
	ActivityID string `json:"activity_id"`
	Completed  bool   `json:"completed"`
}

// FeedbackRequest attaches staff feedback to a student's activity.
type FeedbackRequest struct {
	Text string `json:"text" validate:"required,min=1,max=2000"`
	Type string `json:"type" validate:"omitempty,max=100"`
}
