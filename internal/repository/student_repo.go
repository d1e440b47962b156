package repository

import (
	"context"
	"strings"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
	"github.com/4sighteducation/vespa-activities-api/internal/roles"
)

// StudentRepository defines CRM access for student records.
type StudentRepository interface {
	ListByRole(ctx context.Context, role models.Role) ([]knack.Record, error)
	Get(ctx context.Context, id string) (knack.Record, error)
	UpdatePrescribed(ctx context.Context, studentID string, activityIDs []string) error
	UpdateFinished(ctx context.Context, studentID string, activityIDs []string) error
}

type studentRepository struct {
	client *knack.Client
}

// NewStudentRepository instantiates a Knack-backed student repository.
func NewStudentRepository(client *knack.Client) StudentRepository {
	return &studentRepository{client: client}
}

// ListByRole pages through every student connected to the role's record.
// Role filtering is a "contains" predicate because the connection fields are
// multi-value and rendered comma-joined.
func (r *studentRepository) ListByRole(ctx context.Context, role models.Role) ([]knack.Record, error) {
	q := knack.Query{
		Filters: []any{knack.Rule{
			Field:    roles.StudentFilterField(role.Type),
			Operator: "contains",
			Value:    role.FilterRecordID,
		}},
		SortField: knack.FieldStudentName,
		SortOrder: "asc",
	}

	return r.client.GetAllRecords(ctx, knack.ObjectStudent, q)
}

func (r *studentRepository) Get(ctx context.Context, id string) (knack.Record, error) {
	return r.client.GetRecord(ctx, knack.ObjectStudent, id)
}

// UpdatePrescribed persists the full prescribed set as a connection array.
func (r *studentRepository) UpdatePrescribed(ctx context.Context, studentID string, activityIDs []string) error {
	_, err := r.client.UpdateRecord(ctx, knack.ObjectStudent, studentID, map[string]any{
		knack.FieldStudentPrescribed: activityIDs,
	})

	return err
}

// UpdateFinished persists the finished set in its CSV short-text encoding.
// The CSV/connection asymmetry is a platform constraint; it stays isolated
// to this serialization boundary.
func (r *studentRepository) UpdateFinished(ctx context.Context, studentID string, activityIDs []string) error {
	_, err := r.client.UpdateRecord(ctx, knack.ObjectStudent, studentID, map[string]any{
		knack.FieldStudentFinished: strings.Join(activityIDs, ","),
	})

	return err
}
