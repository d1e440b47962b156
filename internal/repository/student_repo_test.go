package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
)

type capturedRequest struct {
	method  string
	path    string
	query   string
	body    map[string]any
}

func newRepoServer(t *testing.T, respond func(r *http.Request) any) (*httptest.Server, *[]capturedRequest) {
	t.Helper()

	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := capturedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&entry.body)
		}
		captured = append(captured, entry)

		require.NoError(t, json.NewEncoder(w).Encode(respond(r)))
	}))

	return server, &captured
}

func newRepoClient(t *testing.T, baseURL string) *knack.Client {
	t.Helper()

	client, err := knack.NewClient(knack.Config{
		AppID:   "app-id",
		APIKey:  "api-key",
		BaseURL: baseURL,
	}, zerolog.Nop())
	require.NoError(t, err)

	return client
}

func TestListByRoleFiltersOnRoleConnection(t *testing.T) {
	server, captured := newRepoServer(t, func(*http.Request) any {
		return knack.Page{Records: []knack.Record{{"id": "stu_1"}}}
	})
	defer server.Close()

	repo := NewStudentRepository(newRepoClient(t, server.URL))

	records, err := repo.ListByRole(context.Background(), models.Role{
		Type:           models.RoleTutor,
		FilterRecordID: "tutor_1",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.Len(t, *captured, 1)
	request := (*captured)[0]
	require.Equal(t, "/objects/object_6/records", request.path)
	require.Contains(t, request.query, "field_1682")
	require.Contains(t, request.query, "contains")
	require.Contains(t, request.query, "tutor_1")
}

func TestUpdatePrescribedSendsConnectionArray(t *testing.T) {
	server, captured := newRepoServer(t, func(*http.Request) any {
		return knack.Record{"id": "stu_1"}
	})
	defer server.Close()

	repo := NewStudentRepository(newRepoClient(t, server.URL))

	err := repo.UpdatePrescribed(context.Background(), "stu_1", []string{"act_1", "act_2"})
	require.NoError(t, err)

	request := (*captured)[0]
	require.Equal(t, http.MethodPut, request.method)
	require.Equal(t, "/objects/object_6/records/stu_1", request.path)
	require.Equal(t, []any{"act_1", "act_2"}, request.body[knack.FieldStudentPrescribed])
}

func TestUpdateFinishedSerializesCSV(t *testing.T) {
	server, captured := newRepoServer(t, func(*http.Request) any {
		return knack.Record{"id": "stu_1"}
	})
	defer server.Close()

	repo := NewStudentRepository(newRepoClient(t, server.URL))

	err := repo.UpdateFinished(context.Background(), "stu_1", []string{"act_1", "act_2"})
	require.NoError(t, err)

	request := (*captured)[0]
	require.Equal(t, "act_1,act_2", request.body[knack.FieldStudentFinished])
}
