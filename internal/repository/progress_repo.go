package repository

import (
	"context"
	"time"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
	"github.com/4sighteducation/vespa-activities-api/internal/recon"
)

// ProgressRepository defines CRM access for activity progress and feedback
// audit records.
type ProgressRepository interface {
	ListForStudents(ctx context.Context, studentIDs []string) ([]models.ProgressEntry, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.ProgressEntry, error)
	Create(ctx context.Context, studentID, activityID string, status models.ProgressStatus, via models.SelectedVia) (models.ProgressEntry, error)
	UpdateStatus(ctx context.Context, progressID string, status models.ProgressStatus) error
	CreateFeedback(ctx context.Context, progressID, staffName, text, feedbackType string) error
}

type progressRepository struct {
	client *knack.Client
	now    func() time.Time
}

// NewProgressRepository instantiates a Knack-backed progress repository.
func NewProgressRepository(client *knack.Client) ProgressRepository {
	return &progressRepository{client: client, now: time.Now}
}

// ListForStudents fetches progress records newest-first and keeps those
// belonging to the given students.
func (r *progressRepository) ListForStudents(ctx context.Context, studentIDs []string) ([]models.ProgressEntry, error) {
	records, err := r.client.GetAllRecords(ctx, knack.ObjectActivityProgress, knack.Query{
		SortField: knack.FieldProgressDateAssigned,
		SortOrder: "desc",
	})
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = struct{}{}
	}

	var entries []models.ProgressEntry
	for _, record := range records {
		entry := recon.ParseProgressEntry(record)
		if entry.StudentID == "" || entry.ActivityID == "" {
			continue
		}
		if _, ok := wanted[entry.StudentID]; !ok {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (r *progressRepository) ListForStudent(ctx context.Context, studentID string) ([]models.ProgressEntry, error) {
	records, err := r.client.GetAllRecords(ctx, knack.ObjectActivityProgress, knack.Query{
		Filters: []any{knack.Rule{
			Field:    knack.FieldProgressStudent,
			Operator: "is",
			Value:    studentID,
		}},
		SortField: knack.FieldProgressDateAssigned,
		SortOrder: "desc",
	})
	if err != nil {
		return nil, err
	}

	entries := make([]models.ProgressEntry, 0, len(records))
	for _, record := range records {
		entry := recon.ParseProgressEntry(record)
		if entry.StudentID == "" {
			entry.StudentID = studentID
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (r *progressRepository) Create(ctx context.Context, studentID, activityID string, status models.ProgressStatus, via models.SelectedVia) (models.ProgressEntry, error) {
	record, err := r.client.CreateRecord(ctx, knack.ObjectActivityProgress, map[string]any{
		knack.FieldProgressStudent:      []string{studentID},
		knack.FieldProgressActivity:     []string{activityID},
		knack.FieldProgressDateAssigned: r.now().UTC().Format(time.RFC3339),
		knack.FieldProgressStatus:       string(status),
		knack.FieldProgressSelectedVia:  string(via),
	})
	if err != nil {
		return models.ProgressEntry{}, err
	}

	return models.ProgressEntry{
		ID:          record.ID(),
		StudentID:   studentID,
		ActivityID:  activityID,
		Status:      status,
		SelectedVia: via,
		CreatedAt:   r.now().UTC(),
	}, nil
}

// UpdateStatus transitions an existing audit record. Records are never
// deleted, removal is soft.
func (r *progressRepository) UpdateStatus(ctx context.Context, progressID string, status models.ProgressStatus) error {
	_, err := r.client.UpdateRecord(ctx, knack.ObjectActivityProgress, progressID, map[string]any{
		knack.FieldProgressStatus: string(status),
	})

	return err
}

func (r *progressRepository) CreateFeedback(ctx context.Context, progressID, staffName, text, feedbackType string) error {
	_, err := r.client.CreateRecord(ctx, knack.ObjectActivityFeedback, map[string]any{
		knack.FieldFeedbackProgress: []string{progressID},
		knack.FieldFeedbackStaff:    staffName,
		knack.FieldFeedbackText:     text,
		knack.FieldFeedbackDate:     r.now().UTC().Format(time.RFC3339),
		knack.FieldFeedbackType:     feedbackType,
	})

	return err
}
