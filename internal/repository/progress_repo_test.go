package repository

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
)

func TestProgressCreateWritesAuditFields(t *testing.T) {
	server, captured := newRepoServer(t, func(*http.Request) any {
		return knack.Record{"id": "prog_1"}
	})
	defer server.Close()

	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	repo := &progressRepository{client: newRepoClient(t, server.URL), now: func() time.Time { return fixed }}

	entry, err := repo.Create(context.Background(), "stu_1", "act_1", models.ProgressAssigned, models.SelectedViaStaff)
	require.NoError(t, err)
	require.Equal(t, "prog_1", entry.ID)
	require.Equal(t, fixed, entry.CreatedAt)

	request := (*captured)[0]
	require.Equal(t, http.MethodPost, request.method)
	require.Equal(t, "/objects/object_126/records", request.path)
	require.Equal(t, []any{"stu_1"}, request.body[knack.FieldProgressStudent])
	require.Equal(t, []any{"act_1"}, request.body[knack.FieldProgressActivity])
	require.Equal(t, "assigned", request.body[knack.FieldProgressStatus])
	require.Equal(t, "staff_assigned", request.body[knack.FieldProgressSelectedVia])
	require.Equal(t, "2024-06-01T10:00:00Z", request.body[knack.FieldProgressDateAssigned])
}

func TestProgressListSortsByAssignedDateField(t *testing.T) {
	server, captured := newRepoServer(t, func(*http.Request) any {
		return knack.Page{Records: []knack.Record{}}
	})
	defer server.Close()

	repo := NewProgressRepository(newRepoClient(t, server.URL))

	_, err := repo.ListForStudent(context.Background(), "stu_1")
	require.NoError(t, err)

	_, err = repo.ListForStudents(context.Background(), []string{"stu_1"})
	require.NoError(t, err)

	// Knack only sorts on field keys, not on record metadata names.
	for _, request := range *captured {
		require.Contains(t, request.query, "sort_field="+knack.FieldProgressDateAssigned)
		require.Contains(t, request.query, "sort_order=desc")
	}
}

func TestProgressUpdateStatusIsSoft(t *testing.T) {
	server, captured := newRepoServer(t, func(*http.Request) any {
		return knack.Record{"id": "prog_1"}
	})
	defer server.Close()

	repo := NewProgressRepository(newRepoClient(t, server.URL))

	err := repo.UpdateStatus(context.Background(), "prog_1", models.ProgressRemoved)
	require.NoError(t, err)

	request := (*captured)[0]
	require.Equal(t, http.MethodPut, request.method)
	require.Equal(t, "/objects/object_126/records/prog_1", request.path)
	require.Equal(t, "removed", request.body[knack.FieldProgressStatus])
}

func TestCreateFeedbackLinksProgressRecord(t *testing.T) {
	server, captured := newRepoServer(t, func(*http.Request) any {
		return knack.Record{"id": "fb_1"}
	})
	defer server.Close()

	repo := NewProgressRepository(newRepoClient(t, server.URL))

	err := repo.CreateFeedback(context.Background(), "prog_1", "Ms Smith", "Well done", "comment")
	require.NoError(t, err)

	request := (*captured)[0]
	require.Equal(t, "/objects/object_128/records", request.path)
	require.Equal(t, []any{"prog_1"}, request.body[knack.FieldFeedbackProgress])
	require.Equal(t, "Ms Smith", request.body[knack.FieldFeedbackStaff])
	require.Equal(t, "Well done", request.body[knack.FieldFeedbackText])
	require.Equal(t, "comment", request.body[knack.FieldFeedbackType])
}

func TestScoreRepositoryBuildsOrGroup(t *testing.T) {
	server, captured := newRepoServer(t, func(*http.Request) any {
		return knack.Page{Records: []knack.Record{{"id": "vespa_1"}}}
	})
	defer server.Close()

	repo := NewScoreRepository(newRepoClient(t, server.URL))

	records, err := repo.ListByConnections(context.Background(), []string{"vespa_1"}, []string{"jane@school.org"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	request := (*captured)[0]
	require.Equal(t, "/objects/object_10/records", request.path)
	require.Contains(t, request.query, "or")
	require.Contains(t, request.query, "field_192")

	// No join keys means no lookup at all.
	records, err = repo.ListByConnections(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Nil(t, records)
	require.Len(t, *captured, 1)
}
