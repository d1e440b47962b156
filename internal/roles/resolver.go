// Package roles resolves which staff roles the authenticated user holds and
// which record IDs identify them for student filtering.
package roles

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
)

// Lookup is the subset of the Knack client the resolver needs.
type Lookup interface {
	GetRecords(ctx context.Context, object string, q knack.Query) (knack.Page, error)
}

// Profile carries the authenticated user's identity markers.
type Profile struct {
	Email       string
	ProfileKeys []string
}

// Policy maps each role type to its capabilities. The permission table is
// deployment configuration, not engine logic; the defaults follow the
// platform's historical behavior.
type Policy map[models.RoleType]models.Permissions

// DefaultPolicy returns the standard permission table.
func DefaultPolicy() Policy {
	return Policy{
		models.RoleStaffAdmin:     {CanAssign: true, CanViewAnswers: true},
		models.RoleTutor:          {CanAssign: true, CanViewAnswers: true},
		models.RoleHeadOfYear:     {CanAssign: false, CanViewAnswers: false},
		models.RoleSubjectTeacher: {CanAssign: false, CanViewAnswers: false},
	}
}

type definition struct {
	profileKey string
	roleType   models.RoleType
	label      string
	object     string
	emailField string
	filterKey  string
}

// Definition order fixes the tie-break when no staff admin role resolves.
var definitions = []definition{
	{"profile_5", models.RoleStaffAdmin, "View All Students", knack.ObjectStaffAdmin, knack.FieldStaffAdminEmail, knack.FieldStudentStaffAdmins},
	{"profile_7", models.RoleTutor, "View Tutor Group", knack.ObjectTutor, knack.FieldTutorEmail, knack.FieldStudentTutors},
	{"profile_18", models.RoleHeadOfYear, "View Year Group", knack.ObjectHeadOfYear, knack.FieldHeadOfYearEmail, knack.FieldStudentHeadsOfYear},
	{"profile_78", models.RoleSubjectTeacher, "View Subject Groups", knack.ObjectSubjectTeacher, knack.FieldSubjectTeacherEmail, knack.FieldStudentSubjectTeachers},
}

// StudentFilterField returns the student connection field used to filter by
// the given role type.
func StudentFilterField(roleType models.RoleType) string {
	for _, def := range definitions {
		if def.roleType == roleType {
			return def.filterKey
		}
	}

	return knack.FieldStudentTutors
}

// Resolver looks up staff role records by e-mail.
type Resolver struct {
	client Lookup
	policy Policy
	logger zerolog.Logger
}

// NewResolver builds a role resolver. A nil policy falls back to the default
// permission table.
func NewResolver(client Lookup, policy Policy, logger zerolog.Logger) *Resolver {
	if policy == nil {
		policy = DefaultPolicy()
	}

	return &Resolver{
		client: client,
		policy: policy,
		logger: logger.With().Str("component", "role_resolver").Logger(),
	}
}

// Resolve determines the user's roles. Each role lookup is isolated: one
// failing lookup never aborts the others. When nothing resolves the result
// is a single synthetic role explicitly flagged as test mode, so the UI is
// never empty and demo data is never mistaken for real.
func (r *Resolver) Resolve(ctx context.Context, profile Profile) []models.Role {
	keys := make(map[string]struct{}, len(profile.ProfileKeys))
	for _, key := range profile.ProfileKeys {
		keys[key] = struct{}{}
	}

	var resolved []models.Role
	for _, def := range definitions {
		if _, ok := keys[def.profileKey]; !ok {
			continue
		}

		page, err := r.client.GetRecords(ctx, def.object, knack.Query{
			Filters: []any{knack.Rule{Field: def.emailField, Operator: "is", Value: profile.Email}},
			Page:    1,
			RowsPer: 1,
		})
		if err != nil {
			r.logger.Warn().Err(err).Str("role", string(def.roleType)).Msg("role lookup failed")
			continue
		}

		if len(page.Records) == 0 {
			r.logger.Debug().Str("role", string(def.roleType)).Str("email", profile.Email).Msg("no role record found")
			continue
		}

		resolved = append(resolved, models.Role{
			Type:           def.roleType,
			Label:          def.label,
			Email:          profile.Email,
			FilterRecordID: page.Records[0].ID(),
			Permissions:    r.policy[def.roleType],
		})
	}

	if len(resolved) == 0 {
		r.logger.Warn().Str("email", profile.Email).Msg("no roles resolved, falling back to test mode")
		resolved = append(resolved, models.Role{
			Type:           models.RoleTutor,
			Label:          "Tutor (Test Mode)",
			Email:          profile.Email,
			FilterRecordID: "test_id",
			Permissions:    r.policy[models.RoleTutor],
			TestMode:       true,
		})
	}

	return resolved
}

// ActiveRole selects the role used for data loading: staff admin when
// present, otherwise the first resolved role in stable input order.
func ActiveRole(resolved []models.Role) (models.Role, bool) {
	if len(resolved) == 0 {
		return models.Role{}, false
	}

	for _, role := range resolved {
		if role.Type == models.RoleStaffAdmin {
			return role, true
		}
	}

	return resolved[0], true
}
