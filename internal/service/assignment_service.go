package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/4sighteducation/vespa-activities-api/internal/catalog"
	"github.com/4sighteducation/vespa-activities-api/internal/dto"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
	"github.com/4sighteducation/vespa-activities-api/internal/recon"
	"github.com/4sighteducation/vespa-activities-api/internal/repository"
)

const undoKeyPrefix = "undo:"

// ErrUndoExpired is returned when an undo token is unknown or past its
// window; the removal is permanent from the user's perspective.
var ErrUndoExpired = errors.New("undo token expired or already used")

// ErrNothingToRemove is returned when a removal request selects no
// currently prescribed activities.
var ErrNothingToRemove = errors.New("no matching prescribed activities to remove")

// AssignmentService executes staff mutations against a student's curriculum.
// Every operation persists first and rolls the prescribed set back on
// partial failure, so the served model never silently diverges from storage.
type AssignmentService interface {
	Assign(ctx context.Context, studentID string, req dto.AssignRequest) ([]string, error)
	Remove(ctx context.Context, studentID string, req dto.RemoveRequest) (dto.UndoResponse, error)
	Undo(ctx context.Context, token string) error
	ToggleCompletion(ctx context.Context, studentID, activityID string) (dto.ToggleResponse, error)
	AddFeedback(ctx context.Context, studentID, activityID, staffName string, req dto.FeedbackRequest) error
}

type undoToken struct {
	StudentID   string   `json:"student_id"`
	ActivityIDs []string `json:"activity_ids"`
}

type assignmentService struct {
	students   repository.StudentRepository
	progress   repository.ProgressRepository
	catalog    *catalog.Service
	engine     *recon.Engine
	dashboards StaffDashboardService
	cache      *redis.Client
	undoWindow time.Duration
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewAssignmentService builds the mutation service.
func NewAssignmentService(
	students repository.StudentRepository,
	progress repository.ProgressRepository,
	catalogService *catalog.Service,
	engine *recon.Engine,
	dashboards StaffDashboardService,
	cache *redis.Client,
	undoWindow time.Duration,
	validate *validator.Validate,
	logger zerolog.Logger,
) AssignmentService {
	if undoWindow <= 0 {
		undoWindow = 6 * time.Second
	}

	return &assignmentService{
		students:   students,
		progress:   progress,
		catalog:    catalogService,
		engine:     engine,
		dashboards: dashboards,
		cache:      cache,
		undoWindow: undoWindow,
		validator:  validate,
		logger:     logger.With().Str("component", "assignment_service").Logger(),
		tracer:     otel.Tracer("github.com/4sighteducation/vespa-activities-api/internal/service/assignment"),
	}
}

// Assign adds activities to the student's curriculum. The union is
// idempotent: already prescribed IDs are skipped, and assigning an identical
// set is a no-op. One assigned audit record is written per newly added ID;
// if that fails the prescribed set is restored to its prior value.
func (s *assignmentService) Assign(ctx context.Context, studentID string, req dto.AssignRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	spanCtx, span := s.tracer.Start(ctx, "assignments.assign", trace.WithAttributes(
		attribute.String("student.id", studentID),
		attribute.Int("activity.count", len(req.ActivityIDs)),
	))
	defer span.End()

	student, err := s.loadStudent(spanCtx, studentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	prior := student.PrescribedActivityIDs
	updated, added := union(prior, req.ActivityIDs)
	if len(added) == 0 {
		return prior, nil
	}

	if err := s.students.UpdatePrescribed(spanCtx, studentID, updated); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist prescribed activities: %w", err)
	}

	for i, activityID := range added {
		if _, err := s.progress.Create(spanCtx, studentID, activityID, models.ProgressAssigned, models.SelectedViaStaff); err != nil {
			span.RecordError(err)
			s.rollbackPrescribed(spanCtx, studentID, prior)
			return nil, fmt.Errorf("record assignment %d of %d: %w", i+1, len(added), err)
		}
	}

	s.dashboards.InvalidateDashboards(spanCtx)
	s.logger.Info().Str("student_id", studentID).Strs("added", added).Msg("activities assigned")

	return updated, nil
}

// Remove takes activities out of the curriculum and hands back a one-shot
// undo token valid for the undo window. Audit records are transitioned to
// removed, never deleted.
func (s *assignmentService) Remove(ctx context.Context, studentID string, req dto.RemoveRequest) (dto.UndoResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UndoResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "assignments.remove", trace.WithAttributes(
		attribute.String("student.id", studentID),
	))
	defer span.End()

	student, err := s.loadStudent(spanCtx, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.UndoResponse{}, err
	}

	toRemove := s.selectRemovals(student, req)
	if len(toRemove) == 0 {
		return dto.UndoResponse{}, ErrNothingToRemove
	}

	prior := student.PrescribedActivityIDs
	updated := subtract(prior, toRemove)

	if err := s.students.UpdatePrescribed(spanCtx, studentID, updated); err != nil {
		span.RecordError(err)
		return dto.UndoResponse{}, fmt.Errorf("persist prescribed activities: %w", err)
	}

	s.markRemoved(spanCtx, studentID, toRemove)
	s.dashboards.InvalidateDashboards(spanCtx)

	response := dto.UndoResponse{RemovedIDs: toRemove}
	if s.cache != nil {
		token := uuid.NewString()
		payload, marshalErr := json.Marshal(undoToken{StudentID: studentID, ActivityIDs: toRemove})
		if marshalErr == nil {
			if err := s.cache.Set(spanCtx, undoKeyPrefix+token, payload, s.undoWindow).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store undo token")
			} else {
				response.Token = token
				response.ExpiresAt = time.Now().UTC().Add(s.undoWindow)
			}
		}
	}

	s.logger.Info().Str("student_id", studentID).Strs("removed", toRemove).Msg("activities removed")

	return response, nil
}

// Undo restores the ID set captured by a removal. Tokens are consumed on
// first use and expire with the undo window.
func (s *assignmentService) Undo(ctx context.Context, token string) error {
	if s.cache == nil || token == "" {
		return ErrUndoExpired
	}

	payload, err := s.cache.GetDel(ctx, undoKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrUndoExpired
		}
		return fmt.Errorf("read undo token: %w", err)
	}

	var captured undoToken
	if err := json.Unmarshal([]byte(payload), &captured); err != nil {
		return fmt.Errorf("decode undo token: %w", err)
	}

	_, err = s.Assign(ctx, captured.StudentID, dto.AssignRequest{ActivityIDs: captured.ActivityIDs})
	return err
}

// ToggleCompletion flips the activity's membership in the finished set and
// persists the serialized set. Progress is always recomputed from the sets,
// so no separate invalidation of derived fields is needed.
func (s *assignmentService) ToggleCompletion(ctx context.Context, studentID, activityID string) (dto.ToggleResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "assignments.toggle", trace.WithAttributes(
		attribute.String("student.id", studentID),
		attribute.String("activity.id", activityID),
	))
	defer span.End()

	student, err := s.loadStudent(spanCtx, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.ToggleResponse{}, err
	}

	completed := !student.IsFinished(activityID)
	var updated []string
	if completed {
		updated = append(append([]string{}, student.FinishedActivityIDs...), activityID)
	} else {
		updated = subtract(student.FinishedActivityIDs, []string{activityID})
	}

	if err := s.students.UpdateFinished(spanCtx, studentID, updated); err != nil {
		span.RecordError(err)
		return dto.ToggleResponse{}, fmt.Errorf("persist finished activities: %w", err)
	}

	s.dashboards.InvalidateDashboards(spanCtx)

	return dto.ToggleResponse{ActivityID: activityID, Completed: completed}, nil
}

// AddFeedback attaches staff feedback to the latest audit record for the
// (student, activity) pair, creating one when no history exists yet.
func (s *assignmentService) AddFeedback(ctx context.Context, studentID, activityID, staffName string, req dto.FeedbackRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}

	spanCtx, span := s.tracer.Start(ctx, "assignments.feedback", trace.WithAttributes(
		attribute.String("student.id", studentID),
		attribute.String("activity.id", activityID),
	))
	defer span.End()

	entries, err := s.progress.ListForStudent(spanCtx, studentID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load progress entries: %w", err)
	}

	var progressID string
	if entry, ok := recon.LatestByActivity(entries)[activityID]; ok {
		progressID = entry.ID
	} else {
		created, createErr := s.progress.Create(spanCtx, studentID, activityID, models.ProgressAssigned, models.SelectedViaStaff)
		if createErr != nil {
			span.RecordError(createErr)
			return fmt.Errorf("create progress entry for feedback: %w", createErr)
		}
		progressID = created.ID
	}

	feedbackType := req.Type
	if feedbackType == "" {
		feedbackType = "comment"
	}

	if err := s.progress.CreateFeedback(spanCtx, progressID, staffName, req.Text, feedbackType); err != nil {
		span.RecordError(err)
		return fmt.Errorf("persist feedback: %w", err)
	}

	return nil
}

// loadStudent fetches and reconciles a single student against the catalog.
func (s *assignmentService) loadStudent(ctx context.Context, studentID string) (models.Student, error) {
	record, err := s.students.Get(ctx, studentID)
	if err != nil {
		return models.Student{}, fmt.Errorf("load student %s: %w", studentID, err)
	}

	activities, err := s.catalog.Load(ctx)
	if err != nil {
		return models.Student{}, fmt.Errorf("load catalog: %w", err)
	}

	students, _ := s.engine.Reconcile(recon.Input{
		Students: []map[string]any{record},
		Catalog:  activities,
	})
	if len(students) == 0 {
		return models.Student{}, fmt.Errorf("student %s could not be reconciled", studentID)
	}

	return students[0], nil
}

// selectRemovals resolves a removal request to concrete activity IDs.
// Clearing a category skips completed work; clearing all removes the whole
// curriculum.
func (s *assignmentService) selectRemovals(student models.Student, req dto.RemoveRequest) []string {
	switch {
	case req.All:
		return append([]string{}, student.PrescribedActivityIDs...)
	case req.Category != "":
		category, ok := models.ParseCategory(req.Category)
		if !ok {
			return nil
		}

		var ids []string
		for _, entry := range student.CategoryBreakdown[category] {
			if !entry.Completed {
				ids = append(ids, entry.ActivityID)
			}
		}
		return ids
	default:
		var ids []string
		for _, id := range req.ActivityIDs {
			if student.IsPrescribed(id) {
				ids = append(ids, id)
			}
		}
		return ids
	}
}

func (s *assignmentService) markRemoved(ctx context.Context, studentID string, activityIDs []string) {
	entries, err := s.progress.ListForStudent(ctx, studentID)
	if err != nil {
		s.logger.Warn().Err(err).Str("student_id", studentID).Msg("failed to load progress entries for removal audit")
		entries = nil
	}

	latest := recon.LatestByActivity(entries)
	for _, activityID := range activityIDs {
		if entry, ok := latest[activityID]; ok {
			if err := s.progress.UpdateStatus(ctx, entry.ID, models.ProgressRemoved); err != nil {
				s.logger.Warn().Err(err).Str("activity_id", activityID).Msg("failed to mark progress removed")
			}
			continue
		}

		if _, err := s.progress.Create(ctx, studentID, activityID, models.ProgressRemoved, models.SelectedViaStaff); err != nil {
			s.logger.Warn().Err(err).Str("activity_id", activityID).Msg("failed to create removal audit record")
		}
	}
}

func (s *assignmentService) rollbackPrescribed(ctx context.Context, studentID string, prior []string) {
	if err := s.students.UpdatePrescribed(ctx, studentID, prior); err != nil {
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("rollback of prescribed activities failed")
	}
}

func union(current, additions []string) ([]string, []string) {
	seen := make(map[string]struct{}, len(current))
	updated := make([]string, 0, len(current)+len(additions))
	for _, id := range current {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		updated = append(updated, id)
	}

	var added []string
	for _, id := range additions {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		updated = append(updated, id)
		added = append(added, id)
	}

	return updated, added
}

func subtract(current, removals []string) []string {
	drop := make(map[string]struct{}, len(removals))
	for _, id := range removals {
		drop[id] = struct{}{}
	}

	remaining := make([]string, 0, len(current))
	for _, id := range current {
		if _, ok := drop[id]; ok {
			continue
		}
		remaining = append(remaining, id)
	}

	return remaining
}
