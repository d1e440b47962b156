package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
)

type fakeLookup struct {
	records map[string][]knack.Record
	failing map[string]error
	calls   []string
}

func (f *fakeLookup) GetRecords(_ context.Context, object string, _ knack.Query) (knack.Page, error) {
	f.calls = append(f.calls, object)
	if err, ok := f.failing[object]; ok {
		return knack.Page{}, err
	}

	return knack.Page{Records: f.records[object]}, nil
}

func TestResolveMultipleRoles(t *testing.T) {
	lookup := &fakeLookup{records: map[string][]knack.Record{
		knack.ObjectStaffAdmin: {{"id": "admin_1"}},
		knack.ObjectTutor:      {{"id": "tutor_1"}},
	}}
	resolver := NewResolver(lookup, nil, zerolog.Nop())

	resolved := resolver.Resolve(context.Background(), Profile{
		Email:       "staff@school.org",
		ProfileKeys: []string{"profile_5", "profile_7"},
	})

	require.Len(t, resolved, 2)
	require.Equal(t, models.RoleStaffAdmin, resolved[0].Type)
	require.Equal(t, "admin_1", resolved[0].FilterRecordID)
	require.True(t, resolved[0].Permissions.CanAssign)
	require.Equal(t, models.RoleTutor, resolved[1].Type)
	require.False(t, resolved[0].TestMode)
}

func TestResolveSkipsUnclaimedProfiles(t *testing.T) {
	lookup := &fakeLookup{records: map[string][]knack.Record{
		knack.ObjectTutor: {{"id": "tutor_1"}},
	}}
	resolver := NewResolver(lookup, nil, zerolog.Nop())

	resolved := resolver.Resolve(context.Background(), Profile{
		Email:       "tutor@school.org",
		ProfileKeys: []string{"profile_7"},
	})

	require.Len(t, resolved, 1)
	require.Equal(t, []string{knack.ObjectTutor}, lookup.calls)
}

func TestResolveIsolatesFailingLookups(t *testing.T) {
	lookup := &fakeLookup{
		records: map[string][]knack.Record{
			knack.ObjectTutor: {{"id": "tutor_1"}},
		},
		failing: map[string]error{
			knack.ObjectStaffAdmin: errors.New("boom"),
		},
	}
	resolver := NewResolver(lookup, nil, zerolog.Nop())

	resolved := resolver.Resolve(context.Background(), Profile{
		Email:       "staff@school.org",
		ProfileKeys: []string{"profile_5", "profile_7"},
	})

	require.Len(t, resolved, 1)
	require.Equal(t, models.RoleTutor, resolved[0].Type)
}

func TestResolveFallsBackToTestMode(t *testing.T) {
	lookup := &fakeLookup{}
	resolver := NewResolver(lookup, nil, zerolog.Nop())

	resolved := resolver.Resolve(context.Background(), Profile{
		Email:       "nobody@school.org",
		ProfileKeys: []string{"profile_7"},
	})

	require.Len(t, resolved, 1)
	require.True(t, resolved[0].TestMode)
	require.Equal(t, models.RoleTutor, resolved[0].Type)
	require.Equal(t, "test_id", resolved[0].FilterRecordID)
}

func TestActiveRolePrefersStaffAdmin(t *testing.T) {
	tutor := models.Role{Type: models.RoleTutor}
	admin := models.Role{Type: models.RoleStaffAdmin}

	active, ok := ActiveRole([]models.Role{tutor, admin})
	require.True(t, ok)
	require.Equal(t, models.RoleStaffAdmin, active.Type)

	active, ok = ActiveRole([]models.Role{tutor})
	require.True(t, ok)
	require.Equal(t, models.RoleTutor, active.Type)

	_, ok = ActiveRole(nil)
	require.False(t, ok)
}

func TestStudentFilterField(t *testing.T) {
	require.Equal(t, knack.FieldStudentStaffAdmins, StudentFilterField(models.RoleStaffAdmin))
	require.Equal(t, knack.FieldStudentTutors, StudentFilterField(models.RoleTutor))
	require.Equal(t, knack.FieldStudentHeadsOfYear, StudentFilterField(models.RoleHeadOfYear))
}
