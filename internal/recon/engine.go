package recon

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
	"github.com/4sighteducation/vespa-activities-api/internal/observability"
)

// Input bundles the raw record sets a reconciliation run consumes.
type Input struct {
	Students []map[string]any
	Catalog  []models.Activity
	Scores   []map[string]any
}

// Report carries reconciliation diagnostics. Unmatched prescribed names are
// flagged here instead of being silently dropped.
type Report struct {
	UnmatchedNames map[string][]string
}

// Engine turns heterogeneous raw records into the typed student model.
// Reconciliation is deterministic and idempotent: the same input always
// produces the same output.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine builds a reconciliation engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "recon_engine").Logger()}
}

// Reconcile normalizes all student records against the catalog, resolves
// VESPA scores and recomputes every derived field.
func (e *Engine) Reconcile(in Input) ([]models.Student, Report) {
	matcher := NewMatcher(in.Catalog)
	catalogByID := make(map[string]models.Activity, len(in.Catalog))
	for _, activity := range in.Catalog {
		catalogByID[activity.ID] = activity
	}

	scoresByID, scoresByEmail := ParseScores(in.Scores)

	report := Report{UnmatchedNames: map[string][]string{}}
	students := make([]models.Student, 0, len(in.Students))
	for _, record := range in.Students {
		student, unmatched := e.ParseStudent(record, matcher, catalogByID)
		if student.ID == "" {
			continue
		}

		if len(unmatched) > 0 {
			report.UnmatchedNames[student.ID] = unmatched
			observability.UnmatchedNames().Add(float64(len(unmatched)))
			e.logger.Warn().
				Str("student_id", student.ID).
				Strs("names", unmatched).
				Msg("prescribed activity names could not be matched to the catalog")
		}

		student.VESPAScores = resolveScores(student, scoresByID, scoresByEmail)
		students = append(students, student)
	}

	return students, report
}

// ParseStudent normalizes one raw student record. The returned slice lists
// prescribed names that matched nothing in the catalog.
func (e *Engine) ParseStudent(record map[string]any, matcher *Matcher, catalog map[string]models.Activity) (models.Student, []string) {
	student := models.Student{
		ID:    knack.Record(record).ID(),
		Name:  StripHTML(ResolveString(record, knack.FieldStudentName, "Unknown Student")),
		Email: StripHTML(ResolveString(record, knack.FieldStudentEmail, "")),
	}

	// Prefer the structured connection variant, which carries both IDs and
	// display names. Legacy records only have a rendered name list.
	var names []string
	var ids []string
	if raw, ok := record[knack.FieldStudentPrescribed+RawSuffix]; ok {
		ids = ConnectionIDs(raw)
		names = ConnectionNames(raw)
	}
	if len(ids) == 0 && len(names) == 0 {
		names = splitNames(ResolveString(record, knack.FieldStudentPrescribed, ""))
	}
	hasRawIDs := len(ids) > 0

	finished := splitIDList(ResolveString(record, knack.FieldStudentFinished, ""))

	var unmatched []string
	if !hasRawIDs {
		for _, name := range names {
			activity, ok := matcher.Match(name)
			if !ok {
				unmatched = append(unmatched, name)
				continue
			}
			ids = append(ids, activity.ID)
		}
	}

	prescribedCount := len(ids)
	if !hasRawIDs {
		// Legacy name lists count every prescribed entry, matched or not.
		prescribedCount = len(names)
	}

	completed := 0
	finishedSet := make(map[string]struct{}, len(finished))
	for _, id := range finished {
		finishedSet[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := finishedSet[id]; ok {
			completed++
		}
	}

	progress := 0
	if prescribedCount > 0 {
		progress = int(float64(completed)/float64(prescribedCount)*100 + 0.5)
	}

	student.PrescribedNames = names
	student.PrescribedActivityIDs = ids
	student.FinishedActivityIDs = finished
	student.PrescribedCount = prescribedCount
	student.CompletedCount = completed
	student.TotalCompletedCount = len(finished)
	student.Progress = progress
	student.CategoryBreakdown = breakdown(ids, finishedSet, catalog)

	conn := ExtractConnection(ResolveString(record, knack.FieldStudentVESPAConnection, ""))
	student.VESPAConnectionID = conn.ID
	student.VESPAConnectionEmail = conn.Email

	return student, unmatched
}

// ParseScores indexes raw VESPA result records by record ID and by e-mail.
func ParseScores(records []map[string]any) (map[string]models.VESPAScores, map[string]models.VESPAScores) {
	byID := make(map[string]models.VESPAScores, len(records))
	byEmail := make(map[string]models.VESPAScores, len(records))

	for _, record := range records {
		scores := models.VESPAScores{
			Vision:   ResolveFloat(record, knack.FieldScoreVision, 0),
			Effort:   ResolveFloat(record, knack.FieldScoreEffort, 0),
			Systems:  ResolveFloat(record, knack.FieldScoreSystems, 0),
			Practice: ResolveFloat(record, knack.FieldScorePractice, 0),
			Attitude: ResolveFloat(record, knack.FieldScoreAttitude, 0),
		}

		if id := knack.Record(record).ID(); id != "" {
			byID[id] = scores
		}
		if email := ResolveString(record, knack.FieldScoreEmail, ""); email != "" {
			byEmail[strings.ToLower(StripHTML(email))] = scores
		}
	}

	return byID, byEmail
}

func resolveScores(student models.Student, byID, byEmail map[string]models.VESPAScores) models.VESPAScores {
	if student.VESPAConnectionID != "" {
		if scores, ok := byID[student.VESPAConnectionID]; ok {
			return scores
		}
	}

	if student.VESPAConnectionEmail != "" {
		if scores, ok := byEmail[strings.ToLower(student.VESPAConnectionEmail)]; ok {
			return scores
		}
	}

	return models.VESPAScores{}
}

// ParseProgressEntry normalizes one raw progress audit record.
func ParseProgressEntry(record map[string]any) models.ProgressEntry {
	entry := models.ProgressEntry{
		ID:          knack.Record(record).ID(),
		Status:      models.ProgressStatus(StripHTML(ResolveString(record, knack.FieldProgressStatus, ""))),
		SelectedVia: models.SelectedVia(StripHTML(ResolveString(record, knack.FieldProgressSelectedVia, ""))),
		StaffNotes:  StripHTML(ResolveString(record, knack.FieldProgressStaffNotes, "")),
		CreatedAt:   parseKnackDate(ResolveField(record, knack.FieldProgressDateAssigned, nil)),
	}

	if raw, ok := record[knack.FieldProgressStudent+RawSuffix]; ok {
		if ids := ConnectionIDs(raw); len(ids) > 0 {
			entry.StudentID = ids[0]
		}
	}
	if entry.StudentID == "" {
		entry.StudentID = ExtractConnection(ResolveString(record, knack.FieldProgressStudent, "")).ID
	}

	if raw, ok := record[knack.FieldProgressActivity+RawSuffix]; ok {
		if ids := ConnectionIDs(raw); len(ids) > 0 {
			entry.ActivityID = ids[0]
		}
	}
	if entry.ActivityID == "" {
		entry.ActivityID = ExtractConnection(ResolveString(record, knack.FieldProgressActivity, "")).ID
	}

	return entry
}

// LatestByActivity keeps the most recent entry per activity. Entries without
// a usable timestamp keep their input position, so callers feeding
// newest-first record sets get "latest wins" either way.
func LatestByActivity(entries []models.ProgressEntry) map[string]models.ProgressEntry {
	latest := make(map[string]models.ProgressEntry)
	for _, entry := range entries {
		if entry.ActivityID == "" {
			continue
		}

		existing, ok := latest[entry.ActivityID]
		if !ok {
			latest[entry.ActivityID] = entry
			continue
		}

		if existing.CreatedAt.Before(entry.CreatedAt) {
			latest[entry.ActivityID] = entry
		}
	}

	return latest
}

// OriginFor derives the display origin tag for a (student, activity) pair.
// The precedence is fixed: a staff_assigned audit entry beats the prescribed
// set, which beats self-selection.
func OriginFor(latest *models.ProgressEntry, prescribed bool) models.OriginTag {
	if latest != nil {
		switch latest.SelectedVia {
		case models.SelectedViaStaff:
			return models.OriginStaff
		case models.SelectedViaReport:
			return models.OriginReport
		}
	}

	if prescribed {
		return models.OriginPrescribed
	}

	return models.OriginSelf
}

func breakdown(ids []string, finished map[string]struct{}, catalog map[string]models.Activity) map[models.Category][]models.CategoryEntry {
	result := make(map[models.Category][]models.CategoryEntry, 5)
	for _, category := range models.Categories() {
		result[category] = []models.CategoryEntry{}
	}

	for _, id := range ids {
		activity, ok := catalog[id]
		if !ok {
			continue
		}

		category, ok := models.ParseCategory(string(activity.Category))
		if !ok {
			continue
		}

		_, done := finished[id]
		result[category] = append(result[category], models.CategoryEntry{
			ActivityID: id,
			Name:       activity.Name,
			Completed:  done,
		})
	}

	return result
}

func splitNames(raw string) []string {
	var names []string
	for _, part := range splitAny(raw, ",\n") {
		if cleaned := StripHTML(part); cleaned != "" {
			names = append(names, cleaned)
		}
	}

	return names
}

func splitIDList(raw string) []string {
	return splitAny(raw, ", \t\r\n")
}

func splitAny(s, seps string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
}

func parseKnackDate(value any) time.Time {
	switch v := value.(type) {
	case map[string]any:
		if ts, ok := v["unix_timestamp"].(float64); ok {
			return time.UnixMilli(int64(ts)).UTC()
		}
		if iso, ok := v["iso_timestamp"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339, iso); err == nil {
				return parsed
			}
		}
		if date, ok := v["date"].(string); ok {
			return parseKnackDate(date)
		}
	case string:
		for _, layout := range []string{time.RFC3339, "02/01/2006 15:04", "02/01/2006", "01/02/2006"} {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed
			}
		}
	}

	return time.Time{}
}
