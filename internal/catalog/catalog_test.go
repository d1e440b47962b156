package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
)

type fakeLister struct {
	records []knack.Record
	err     error
	calls   int
}

func (f *fakeLister) GetAllRecords(context.Context, string, knack.Query) ([]knack.Record, error) {
	f.calls++
	return f.records, f.err
}

func crmActivityRecord(id, name, category string) knack.Record {
	return knack.Record{
		"id":                        id,
		knack.FieldActivityName:     name,
		knack.FieldActivityCategory: category,
	}
}

func TestLoadFromCRMAndCache(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})

	lister := &fakeLister{records: []knack.Record{
		crmActivityRecord("act_1", "Time Log", "Systems"),
		crmActivityRecord("act_2", "Dream Big", "Vision"),
	}}

	svc := NewService(lister, redisClient, Config{CacheTTL: time.Minute}, zerolog.Nop())
	ctx := context.Background()

	first, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "act_1", first[0].ID)

	// Second load is served from cache without touching the CRM.
	second, err := svc.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, lister.calls)

	svc.Invalidate(ctx)
	_, err = svc.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, lister.calls)
}

func TestLoadFallsBackToContentSource(t *testing.T) {
	document := []map[string]any{
		{"Activities Name": "Time Log", "VESPA Category": "Systems", "Activity_id": "act_1", "Level": "Level 2"},
		{"Activities Name": "Dream Big", "VESPA Category": "Vision"},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(document))
	}))
	defer server.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	lister := &fakeLister{err: errors.New("crm down")}
	svc := NewService(lister, nil, Config{Sources: []string{broken.URL, server.URL}}, zerolog.Nop())

	activities, err := svc.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.Equal(t, "act_1", activities[0].ID)
	require.Equal(t, 2, activities[0].Level)
	require.Equal(t, models.CategoryVision, activities[1].Category)
	// Missing Activity_id falls back to the normalized name.
	require.Equal(t, "dream big", activities[1].ID)
}

func TestLoadExhaustedSourcesUsesEmbedded(t *testing.T) {
	lister := &fakeLister{err: errors.New("crm down")}
	svc := NewService(lister, nil, Config{Sources: []string{"http://127.0.0.1:1/nothing"}, SourceTimeout: 100 * time.Millisecond}, zerolog.Nop())

	activities, err := svc.Load(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, activities)
	require.Equal(t, EmbeddedActivities(), activities)
}

func TestParseFallbackDocumentRejectsInvalidShapes(t *testing.T) {
	_, err := ParseFallbackDocument([]byte(`{"not": "an array"}`))
	require.Error(t, err)

	_, err = ParseFallbackDocument([]byte(`[{"VESPA Category": "Systems"}]`))
	require.Error(t, err)

	_, err = ParseFallbackDocument([]byte(`not json`))
	require.Error(t, err)

	// Valid shape but no recognizable category yields nothing usable.
	_, err = ParseFallbackDocument([]byte(`[{"Activities Name": "X", "VESPA Category": "Unknown"}]`))
	require.Error(t, err)
}

func TestParseActivityRecord(t *testing.T) {
	record := knack.Record{
		"id":                              "act_9",
		knack.FieldActivityName:           "<strong>Exam Countdown</strong>",
		knack.FieldActivityCategory:       "Effort",
		knack.FieldActivityLevel:          float64(1),
		knack.FieldActivityLevelAlt:       float64(3),
		knack.FieldActivityDuration:       "20 mins",
		knack.FieldActivityCurriculum:     "GCSE, A-Level",
		knack.FieldActivityScoreMoreThan:  float64(2),
		knack.FieldActivityScoreLessEq:    float64(6),
	}

	activity, ok := ParseActivityRecord(record)
	require.True(t, ok)
	require.Equal(t, "Exam Countdown", activity.Name)
	require.Equal(t, models.CategoryEffort, activity.Category)
	require.Equal(t, 3, activity.Level)
	require.Equal(t, "20 mins", activity.Duration)
	require.Equal(t, "Activity", activity.Type)
	require.Equal(t, []string{"GCSE", "A-Level"}, activity.Curriculums)

	_, ok = ParseActivityRecord(knack.Record{"id": "act_10", knack.FieldActivityName: "No Category"})
	require.False(t, ok)

	_, ok = ParseActivityRecord(knack.Record{knack.FieldActivityName: "No ID", knack.FieldActivityCategory: "Vision"})
	require.False(t, ok)
}

func TestEmbeddedActivitiesParse(t *testing.T) {
	activities := EmbeddedActivities()
	require.NotEmpty(t, activities)

	seen := map[models.Category]bool{}
	for _, activity := range activities {
		require.NotEmpty(t, activity.ID)
		require.NotEmpty(t, activity.Name)
		seen[activity.Category] = true
	}
	for _, category := range models.Categories() {
		require.True(t, seen[category], "embedded catalog missing category %s", category)
	}
}
