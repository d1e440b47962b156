package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/4sighteducation/vespa-activities-api/internal/dto"
	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/service"
	"github.com/4sighteducation/vespa-activities-api/internal/utils"
)

// AssignmentHandler wires the staff mutation routes.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches the mutation endpoints to the staff group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Post("/students/:id/activities", h.assign)
	router.Delete("/students/:id/activities", h.remove)
	router.Post("/undo/:token", h.undo)
	router.Post("/students/:id/activities/:activityID/toggle", h.toggle)
	router.Post("/students/:id/activities/:activityID/feedback", h.feedback)
}

func (h *AssignmentHandler) assign(c *fiber.Ctx) error {
	studentID := c.Params("id")
	if studentID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "student id is required")
	}

	var payload dto.AssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	prescribed, err := h.service.Assign(c.Context(), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "activities assigned", fiber.Map{
		"student_id":     studentID,
		"prescribed_ids": prescribed,
	})
}

func (h *AssignmentHandler) remove(c *fiber.Ctx) error {
	studentID := c.Params("id")
	if studentID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "student id is required")
	}

	var payload dto.RemoveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Remove(c.Context(), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "activities removed", response)
}

func (h *AssignmentHandler) undo(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "undo token is required")
	}

	if err := h.service.Undo(c.Context(), token); err != nil {
		if errors.Is(err, service.ErrUndoExpired) {
			return utils.SendError(c, fiber.StatusGone, "undo window has expired")
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "removal undone", fiber.Map{"token": token})
}

func (h *AssignmentHandler) toggle(c *fiber.Ctx) error {
	studentID := c.Params("id")
	activityID := c.Params("activityID")
	if studentID == "" || activityID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "student id and activity id are required")
	}

	response, err := h.service.ToggleCompletion(c.Context(), studentID, activityID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "completion toggled", response)
}

func (h *AssignmentHandler) feedback(c *fiber.Ctx) error {
	studentID := c.Params("id")
	activityID := c.Params("activityID")
	if studentID == "" || activityID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "student id and activity id are required")
	}

	var payload dto.FeedbackRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	staffName, _ := c.Locals("staff_name").(string)
	if staffName == "" {
		staffName, _ = c.Locals("staff_email").(string)
	}

	if err := h.service.AddFeedback(c.Context(), studentID, activityID, staffName, payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "feedback saved", fiber.Map{
		"student_id":  studentID,
		"activity_id": activityID,
	})
}

func (h *AssignmentHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.Is(err, service.ErrNothingToRemove):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, knack.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, knack.ErrAuth):
		return utils.SendError(c, fiber.StatusBadGateway, "CRM rejected credentials")
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("staff mutation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
