package models

// RoleType identifies which staff role a resolved role tuple represents.
type RoleType string

const (
	RoleStaffAdmin     RoleType = "staffAdmin"
	RoleTutor          RoleType = "tutor"
	RoleHeadOfYear     RoleType = "headOfYear"
	RoleSubjectTeacher RoleType = "subjectTeacher"
)

// Permissions are the per-role capabilities surfaced to the UI. They are
// policy data, configurable per deployment.
type Permissions struct {
	CanAssign      bool `json:"can_assign"`
	CanViewAnswers bool `json:"can_view_answers"`
}

// Role is one resolved staff role: the record ID is the filter key used when
// listing that role's students. TestMode marks the synthetic fallback role
// used when no real role resolves, so demo data is never mistaken for real.
type Role struct {
	Type           RoleType    `json:"type"`
	Label          string      `json:"label"`
	Email          string      `json:"email"`
	FilterRecordID string      `json:"filter_record_id"`
	Permissions    Permissions `json:"permissions"`
	TestMode       bool        `json:"test_mode,omitempty"`
}
