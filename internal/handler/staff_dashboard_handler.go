package handler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/4sighteducation/vespa-activities-api/internal/models"
	"github.com/4sighteducation/vespa-activities-api/internal/roles"
	"github.com/4sighteducation/vespa-activities-api/internal/service"
	"github.com/4sighteducation/vespa-activities-api/internal/utils"
)

// StaffDashboardHandler wires the read-side staff routes.
type StaffDashboardHandler struct {
	service service.StaffDashboardService
	logger  zerolog.Logger
}

// NewStaffDashboardHandler constructs the handler.
func NewStaffDashboardHandler(service service.StaffDashboardService, logger zerolog.Logger) *StaffDashboardHandler {
	return &StaffDashboardHandler{
		service: service,
		logger:  logger.With().Str("component", "staff_dashboard_handler").Logger(),
	}
}

// Register attaches the dashboard endpoints to the staff group.
func (h *StaffDashboardHandler) Register(router fiber.Router) {
	router.Get("/roles", h.roles)
	router.Get("/dashboard", h.dashboard)
	router.Get("/dashboard/export", h.export)
	router.Get("/students/:id/workspace", h.workspace)
}

func (h *StaffDashboardHandler) roles(c *fiber.Ctx) error {
	profile, err := profileFromContext(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	}

	response, err := h.service.Roles(c.Context(), profile)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "roles resolved", response)
}

func (h *StaffDashboardHandler) dashboard(c *fiber.Ctx) error {
	role, err := h.activeRole(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	}

	response, err := h.service.GetDashboard(c.Context(), role)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "dashboard retrieved", response)
}

func (h *StaffDashboardHandler) export(c *fiber.Ctx) error {
	role, err := h.activeRole(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	}

	payload, err := h.service.ExportCSV(c.Context(), role)
	if err != nil {
		return h.internalError(c, err)
	}

	filename := fmt.Sprintf("vespa-dashboard-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(payload)
}

func (h *StaffDashboardHandler) workspace(c *fiber.Ctx) error {
	studentID := c.Params("id")
	if studentID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "student id is required")
	}

	response, err := h.service.GetWorkspace(c.Context(), studentID)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "workspace retrieved", response)
}

// activeRole resolves the caller's roles and returns the preferred one.
func (h *StaffDashboardHandler) activeRole(c *fiber.Ctx) (models.Role, error) {
	profile, err := profileFromContext(c)
	if err != nil {
		return models.Role{}, err
	}

	response, err := h.service.Roles(c.Context(), profile)
	if err != nil {
		return models.Role{}, err
	}
	if response.Active.Type == "" {
		return models.Role{}, fmt.Errorf("no staff role resolved for %s", profile.Email)
	}

	return response.Active, nil
}

func (h *StaffDashboardHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Str("path", c.Path()).Msg("staff dashboard request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

// profileFromContext reassembles the identity markers the JWT middleware
// stored in request locals.
func profileFromContext(c *fiber.Ctx) (roles.Profile, error) {
	email, _ := c.Locals("staff_email").(string)
	if email == "" {
		return roles.Profile{}, fmt.Errorf("authenticated email missing from token")
	}

	keys, _ := c.Locals("profile_keys").([]string)
	return roles.Profile{Email: email, ProfileKeys: keys}, nil
}
