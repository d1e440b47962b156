package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/4sighteducation/vespa-activities-api/internal/dto"
	"github.com/4sighteducation/vespa-activities-api/internal/handler"
	"github.com/4sighteducation/vespa-activities-api/internal/service"
)

type stubAssignmentService struct {
	assigned      []string
	assignErr     error
	lastStudentID string
	lastAssign    dto.AssignRequest
	removeResp    dto.UndoResponse
	removeErr     error
	undoErr       error
	undoneToken   string
	toggleResp    dto.ToggleResponse
	feedbackStaff string
	feedbackReq   dto.FeedbackRequest
}

func (s *stubAssignmentService) Assign(_ context.Context, studentID string, req dto.AssignRequest) ([]string, error) {
	s.lastStudentID = studentID
	s.lastAssign = req
	return s.assigned, s.assignErr
}

func (s *stubAssignmentService) Remove(_ context.Context, studentID string, _ dto.RemoveRequest) (dto.UndoResponse, error) {
	s.lastStudentID = studentID
	return s.removeResp, s.removeErr
}

func (s *stubAssignmentService) Undo(_ context.Context, token string) error {
	s.undoneToken = token
	return s.undoErr
}

func (s *stubAssignmentService) ToggleCompletion(_ context.Context, studentID, _ string) (dto.ToggleResponse, error) {
	s.lastStudentID = studentID
	return s.toggleResp, nil
}

func (s *stubAssignmentService) AddFeedback(_ context.Context, studentID, _, staffName string, req dto.FeedbackRequest) error {
	s.lastStudentID = studentID
	s.feedbackStaff = staffName
	s.feedbackReq = req
	return nil
}

func newStaffApp(svc service.AssignmentService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v2/staff", func(c *fiber.Ctx) error {
		c.Locals("staff_email", "staff@school.org")
		c.Locals("staff_name", "Ms Smith")
		c.Locals("profile_keys", []string{"profile_7"})
		return c.Next()
	})
	handler.NewAssignmentHandler(svc, zerolog.Nop()).Register(group)

	return app
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()

	return payload
}

func TestAssignmentHandler_Assign(t *testing.T) {
	svc := &stubAssignmentService{assigned: []string{"act_1", "act_2"}}
	app := newStaffApp(svc)

	body, err := json.Marshal(dto.AssignRequest{ActivityIDs: []string{"act_2"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/staff/students/stu_1/activities", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	require.True(t, payload.Success)
	require.Equal(t, "stu_1", svc.lastStudentID)
	require.Equal(t, []string{"act_2"}, svc.lastAssign.ActivityIDs)

	// The response carries the full persisted set, not just the new IDs.
	var data struct {
		PrescribedIDs []string `json:"prescribed_ids"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &data))
	require.Equal(t, []string{"act_1", "act_2"}, data.PrescribedIDs)
}

func TestAssignmentHandler_AssignRejectsBadBody(t *testing.T) {
	app := newStaffApp(&stubAssignmentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v2/staff/students/stu_1/activities", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAssignmentHandler_RemoveReturnsUndoToken(t *testing.T) {
	svc := &stubAssignmentService{removeResp: dto.UndoResponse{Token: "tok_1", RemovedIDs: []string{"act_1"}}}
	app := newStaffApp(svc)

	body, err := json.Marshal(dto.RemoveRequest{ActivityIDs: []string{"act_1"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/v2/staff/students/stu_1/activities", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	var data dto.UndoResponse
	require.NoError(t, json.Unmarshal(payload.Data, &data))
	require.Equal(t, "tok_1", data.Token)
}

func TestAssignmentHandler_RemoveNothingMatches(t *testing.T) {
	svc := &stubAssignmentService{removeErr: service.ErrNothingToRemove}
	app := newStaffApp(svc)

	body, err := json.Marshal(dto.RemoveRequest{All: true})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/v2/staff/students/stu_1/activities", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAssignmentHandler_UndoExpired(t *testing.T) {
	svc := &stubAssignmentService{undoErr: service.ErrUndoExpired}
	app := newStaffApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/staff/undo/tok_1", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusGone, resp.StatusCode)
	require.Equal(t, "tok_1", svc.undoneToken)
}

func TestAssignmentHandler_Toggle(t *testing.T) {
	svc := &stubAssignmentService{toggleResp: dto.ToggleResponse{ActivityID: "act_1", Completed: true}}
	app := newStaffApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/staff/students/stu_1/activities/act_1/toggle", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	payload := decodeEnvelope(t, resp)
	var data dto.ToggleResponse
	require.NoError(t, json.Unmarshal(payload.Data, &data))
	require.True(t, data.Completed)
}

func TestAssignmentHandler_FeedbackUsesStaffName(t *testing.T) {
	svc := &stubAssignmentService{}
	app := newStaffApp(svc)

	body, err := json.Marshal(dto.FeedbackRequest{Text: "Keep it up"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/staff/students/stu_1/activities/act_1/feedback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, "Ms Smith", svc.feedbackStaff)
	require.Equal(t, "Keep it up", svc.feedbackReq.Text)
}
