package knack

// Object keys for the record types the dashboard relies on. The schema is
// owned by the Knack application, these identifiers are fixed per deployment.
const (
	ObjectStaffAdmin       = "object_5"
	ObjectStudent          = "object_6"
	ObjectTutor            = "object_7"
	ObjectVESPAResults     = "object_10"
	ObjectHeadOfYear       = "object_18"
	ObjectActivities       = "object_44"
	ObjectSubjectTeacher   = "object_78"
	ObjectActivityProgress = "object_126"
	ObjectActivityFeedback = "object_128"
)

// Staff role e-mail lookup fields, one per role object.
const (
	FieldStaffAdminEmail     = "field_86"
	FieldTutorEmail          = "field_96"
	FieldHeadOfYearEmail     = "field_417"
	FieldSubjectTeacherEmail = "field_1879"
)

// Student record fields.
const (
	FieldStudentName            = "field_90"
	FieldStudentEmail           = "field_91"
	FieldStudentStaffAdmins     = "field_190"
	FieldStudentHeadsOfYear     = "field_547"
	FieldStudentFinished        = "field_1380" // short text, CSV of activity record IDs
	FieldStudentTutors          = "field_1682"
	FieldStudentPrescribed      = "field_1683" // multi-connection to activities
	FieldStudentSubjectTeachers = "field_2177"
	FieldStudentVESPAConnection = "field_182" // connection to the VESPA results record
)

// VESPA results record fields (one numeric score per category).
const (
	FieldScoreVision   = "field_147"
	FieldScoreEffort   = "field_148"
	FieldScoreSystems  = "field_149"
	FieldScorePractice = "field_150"
	FieldScoreAttitude = "field_151"
	FieldScoreEmail    = "field_192"
)

// Activity catalog fields.
const (
	FieldActivityDescription   = "field_1134"
	FieldActivityDuration      = "field_1135"
	FieldActivityType          = "field_1133"
	FieldActivityName          = "field_1278"
	FieldActivityCategory      = "field_1285"
	FieldActivityScoreMoreThan = "field_1287"
	FieldActivityScoreLessEq   = "field_1294"
	FieldActivityLevel         = "field_1295"
	FieldActivityLevelAlt      = "field_3568" // preferred over the legacy level field
	FieldActivityCurriculum    = "field_3584"
)

// Activity progress (audit) record fields.
const (
	FieldProgressName          = "field_3534"
	FieldProgressStudent       = "field_3536"
	FieldProgressActivity      = "field_3537"
	FieldProgressDateAssigned  = "field_3539"
	FieldProgressDateCompleted = "field_3541"
	FieldProgressStatus        = "field_3543"
	FieldProgressSelectedVia   = "field_3546"
	FieldProgressStaffNotes    = "field_3547"
)

// Activity feedback record fields.
const (
	FieldFeedbackProgress = "field_3563"
	FieldFeedbackStaff    = "field_3564"
	FieldFeedbackText     = "field_3565"
	FieldFeedbackDate     = "field_3566"
	FieldFeedbackType     = "field_3567"
)
