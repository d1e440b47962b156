package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/4sighteducation/vespa-activities-api/internal/catalog"
	"github.com/4sighteducation/vespa-activities-api/internal/dto"
	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
	"github.com/4sighteducation/vespa-activities-api/internal/recon"
	"github.com/4sighteducation/vespa-activities-api/internal/repository"
	"github.com/4sighteducation/vespa-activities-api/internal/roles"
)

const dashboardKeyPrefix = "dashboard:"

// StaffDashboardService produces the reconciled staff views.
type StaffDashboardService interface {
	Roles(ctx context.Context, profile roles.Profile) (dto.RolesResponse, error)
	GetDashboard(ctx context.Context, role models.Role) (dto.DashboardResponse, error)
	GetWorkspace(ctx context.Context, studentID string) (dto.WorkspaceResponse, error)
	ExportCSV(ctx context.Context, role models.Role) ([]byte, error)
	InvalidateDashboards(ctx context.Context)
}

type staffDashboardService struct {
	students repository.StudentRepository
	scores   repository.ScoreRepository
	progress repository.ProgressRepository
	catalog  *catalog.Service
	resolver *roles.Resolver
	engine   *recon.Engine
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewStaffDashboardService builds the dashboard aggregator.
func NewStaffDashboardService(
	students repository.StudentRepository,
	scores repository.ScoreRepository,
	progress repository.ProgressRepository,
	catalogService *catalog.Service,
	resolver *roles.Resolver,
	engine *recon.Engine,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) StaffDashboardService {
	return &staffDashboardService{
		students: students,
		scores:   scores,
		progress: progress,
		catalog:  catalogService,
		resolver: resolver,
		engine:   engine,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "staff_dashboard_service").Logger(),
		tracer:   otel.Tracer("github.com/4sighteducation/vespa-activities-api/internal/service/staff_dashboard"),
	}
}

func (s *staffDashboardService) Roles(ctx context.Context, profile roles.Profile) (dto.RolesResponse, error) {
	resolved := s.resolver.Resolve(ctx, profile)
	active, _ := roles.ActiveRole(resolved)

	return dto.RolesResponse{Roles: resolved, Active: active}, nil
}

// GetDashboard loads and reconciles every student visible to the role.
// Students and catalog are fetched concurrently, then scores joined once the
// connection keys are known.
func (s *staffDashboardService) GetDashboard(ctx context.Context, role models.Role) (dto.DashboardResponse, error) {
	cacheKey := fmt.Sprintf("%srole:%s:%s", dashboardKeyPrefix, role.Type, role.FilterRecordID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.DashboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Str("role", string(role.Type)).Msg("dashboard cache hit")
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
	}

	spanCtx, span := s.tracer.Start(ctx, "staff.dashboard", trace.WithAttributes(
		attribute.String("role.type", string(role.Type)),
	))
	defer span.End()

	var (
		records    []knack.Record
		activities []models.Activity
	)

	group, groupCtx := errgroup.WithContext(spanCtx)
	group.Go(func() error {
		var err error
		records, err = s.students.ListByRole(groupCtx, role)
		return err
	})
	group.Go(func() error {
		var err error
		activities, err = s.catalog.Load(groupCtx)
		return err
	})

	placeholder := false
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		if !errors.Is(err, knack.ErrAuth) {
			return dto.DashboardResponse{}, fmt.Errorf("load dashboard data: %w", err)
		}

		// Credential rejection shows a diagnostic placeholder set instead
		// of a blank screen. The response is flagged so it cannot pass for
		// real data.
		s.logger.Error().Err(err).Msg("CRM rejected credentials, serving placeholder dashboard")
		records = placeholderStudentRecords()
		placeholder = true
		if len(activities) == 0 {
			activities = catalog.EmbeddedActivities()
		}
	}

	scoreRecords := s.loadScores(spanCtx, records)

	rawStudents := make([]map[string]any, len(records))
	for i, record := range records {
		rawStudents[i] = record
	}
	rawScores := make([]map[string]any, len(scoreRecords))
	for i, record := range scoreRecords {
		rawScores[i] = record
	}

	students, report := s.engine.Reconcile(recon.Input{
		Students: rawStudents,
		Catalog:  activities,
		Scores:   rawScores,
	})

	if !placeholder {
		attachProgress(students, s.loadProgress(spanCtx, students))
	}

	response := dto.DashboardResponse{
		Role:           role,
		Students:       students,
		Catalog:        activities,
		UnmatchedNames: report.UnmatchedNames,
		TestMode:       role.TestMode,
		Placeholder:    placeholder,
	}
	if len(response.UnmatchedNames) == 0 {
		response.UnmatchedNames = nil
	}

	if s.cache != nil && !placeholder {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
			}
		}
	}

	return response, nil
}

// loadScores resolves the VESPA results connected to the given student
// records. A score lookup failure degrades to zero scores rather than
// failing the whole dashboard.
func (s *staffDashboardService) loadScores(ctx context.Context, records []knack.Record) []knack.Record {
	var ids, emails []string
	for _, record := range records {
		conn := recon.ExtractConnection(recon.ResolveString(record, knack.FieldStudentVESPAConnection, ""))
		if conn.ID != "" {
			ids = append(ids, conn.ID)
		}
		if conn.Email != "" {
			emails = append(emails, conn.Email)
		}
	}

	if len(ids) == 0 && len(emails) == 0 {
		return nil
	}

	scoreRecords, err := s.scores.ListByConnections(ctx, ids, emails)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load VESPA scores, defaulting to zero")
		return nil
	}

	return scoreRecords
}

// loadProgress fetches the audit entries for the reconciled students. A
// lookup failure degrades to empty history rather than failing the dashboard.
func (s *staffDashboardService) loadProgress(ctx context.Context, students []models.Student) []models.ProgressEntry {
	if len(students) == 0 {
		return nil
	}

	ids := make([]string, len(students))
	for i, student := range students {
		ids[i] = student.ID
	}

	entries, err := s.progress.ListForStudents(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load progress entries, defaulting to empty history")
		return nil
	}

	return entries
}

// attachProgress marks activities with a live audit entry as in progress
// unless the student has already finished them.
func attachProgress(students []models.Student, entries []models.ProgressEntry) {
	byStudent := make(map[string][]models.ProgressEntry, len(students))
	for _, entry := range entries {
		byStudent[entry.StudentID] = append(byStudent[entry.StudentID], entry)
	}

	for i := range students {
		latest := recon.LatestByActivity(byStudent[students[i].ID])

		var inProgress []string
		for id, entry := range latest {
			if entry.Status != models.ProgressAssigned {
				continue
			}
			if students[i].IsFinished(id) {
				continue
			}
			inProgress = append(inProgress, id)
		}
		sort.Strings(inProgress)

		students[i].InProgressActivityIDs = inProgress
		students[i].InProgressCount = len(inProgress)
	}
}

// GetWorkspace builds the category-grouped detail view for one student,
// including the derived origin badge per activity.
func (s *staffDashboardService) GetWorkspace(ctx context.Context, studentID string) (dto.WorkspaceResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "staff.workspace", trace.WithAttributes(
		attribute.String("student.id", studentID),
	))
	defer span.End()

	var (
		record     knack.Record
		activities []models.Activity
		entries    []models.ProgressEntry
	)

	group, groupCtx := errgroup.WithContext(spanCtx)
	group.Go(func() error {
		var err error
		record, err = s.students.Get(groupCtx, studentID)
		return err
	})
	group.Go(func() error {
		var err error
		activities, err = s.catalog.Load(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		entries, err = s.progress.ListForStudent(groupCtx, studentID)
		if err != nil {
			// Origin badges degrade gracefully without audit records.
			s.logger.Warn().Err(err).Str("student_id", studentID).Msg("failed to load progress entries")
			entries = nil
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return dto.WorkspaceResponse{}, fmt.Errorf("load workspace data: %w", err)
	}

	scoreRecords := s.loadScores(spanCtx, []knack.Record{record})

	rawScores := make([]map[string]any, len(scoreRecords))
	for i, sr := range scoreRecords {
		rawScores[i] = sr
	}

	students, _ := s.engine.Reconcile(recon.Input{
		Students: []map[string]any{record},
		Catalog:  activities,
		Scores:   rawScores,
	})
	if len(students) == 0 {
		return dto.WorkspaceResponse{}, fmt.Errorf("student %s could not be reconciled", studentID)
	}
	student := students[0]

	return dto.WorkspaceResponse{
		Student:    student,
		Categories: buildWorkspaceCategories(student, activities, entries),
	}, nil
}

func buildWorkspaceCategories(student models.Student, activities []models.Activity, entries []models.ProgressEntry) []dto.WorkspaceCategory {
	latest := recon.LatestByActivity(entries)

	// Activities shown per category: everything prescribed, plus anything
	// with live audit history (self-selected work in progress).
	include := make(map[string]struct{}, len(student.PrescribedActivityIDs))
	for _, id := range student.PrescribedActivityIDs {
		include[id] = struct{}{}
	}
	for id, entry := range latest {
		if entry.Status == models.ProgressRemoved {
			continue
		}
		include[id] = struct{}{}
	}

	scoreFor := map[models.Category]float64{
		models.CategoryVision:   student.VESPAScores.Vision,
		models.CategoryEffort:   student.VESPAScores.Effort,
		models.CategorySystems:  student.VESPAScores.Systems,
		models.CategoryPractice: student.VESPAScores.Practice,
		models.CategoryAttitude: student.VESPAScores.Attitude,
	}

	grouped := make(map[models.Category][]dto.WorkspaceActivity, 5)
	for _, activity := range activities {
		if _, ok := include[activity.ID]; !ok {
			continue
		}

		prescribed := student.IsPrescribed(activity.ID)
		var latestEntry *models.ProgressEntry
		if entry, ok := latest[activity.ID]; ok {
			latestEntry = &entry
		}

		grouped[activity.Category] = append(grouped[activity.Category], dto.WorkspaceActivity{
			ActivityID: activity.ID,
			Name:       activity.Name,
			Level:      activity.Level,
			Duration:   activity.Duration,
			Type:       activity.Type,
			Completed:  student.IsFinished(activity.ID),
			Prescribed: prescribed,
			Origin:     recon.OriginFor(latestEntry, prescribed),
			Suggested:  activity.SuggestedForScore(scoreFor[activity.Category]),
		})
	}

	categories := make([]dto.WorkspaceCategory, 0, 5)
	for _, category := range models.Categories() {
		list := grouped[category]
		if list == nil {
			list = []dto.WorkspaceActivity{}
		}
		categories = append(categories, dto.WorkspaceCategory{
			Category:   category,
			Score:      scoreFor[category],
			Activities: list,
		})
	}

	return categories
}

// ExportCSV renders the reconciled student list as a CSV document.
func (s *staffDashboardService) ExportCSV(ctx context.Context, role models.Role) ([]byte, error) {
	dashboard, err := s.GetDashboard(ctx, role)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"Name", "Email", "Progress %", "Completed", "Prescribed", "Total Completed", "Vision", "Effort", "Systems", "Practice", "Attitude"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, student := range dashboard.Students {
		row := []string{
			student.Name,
			student.Email,
			strconv.Itoa(student.Progress),
			strconv.Itoa(student.CompletedCount),
			strconv.Itoa(student.PrescribedCount),
			strconv.Itoa(student.TotalCompletedCount),
			formatScore(student.VESPAScores.Vision),
			formatScore(student.VESPAScores.Effort),
			formatScore(student.VESPAScores.Systems),
			formatScore(student.VESPAScores.Practice),
			formatScore(student.VESPAScores.Attitude),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return buf.Bytes(), nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// InvalidateDashboards drops every cached dashboard after a mutation so the
// next load reflects persisted state.
func (s *staffDashboardService) InvalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, dashboardKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn().Err(err).Str("key", iter.Val()).Msg("failed to invalidate dashboard cache entry")
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("dashboard cache invalidation scan failed")
	}
}

// placeholderStudentRecords is the diagnostic dataset served when the CRM
// rejects credentials.
func placeholderStudentRecords() []knack.Record {
	embedded := catalog.EmbeddedActivities()
	ids := make([]string, 0, 3)
	for i, activity := range embedded {
		if i == 3 {
			break
		}
		ids = append(ids, activity.ID)
	}

	prescribed := make([]any, len(ids))
	for i, id := range ids {
		name := ""
		for _, activity := range embedded {
			if activity.ID == id {
				name = activity.Name
				break
			}
		}
		prescribed[i] = map[string]any{"id": id, "identifier": name}
	}

	finished := ""
	if len(ids) > 0 {
		finished = ids[0]
	}

	return []knack.Record{
		{
			"id": "placeholder_1",
			knack.FieldStudentName:                       "Placeholder Student A",
			knack.FieldStudentEmail:                      "placeholder.a@example.com",
			knack.FieldStudentPrescribed + recon.RawSuffix: prescribed,
			knack.FieldStudentFinished:                   finished,
		},
		{
			"id": "placeholder_2",
			knack.FieldStudentName:  "Placeholder Student B",
			knack.FieldStudentEmail: "placeholder.b@example.com",
		},
	}
}
