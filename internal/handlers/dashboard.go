package handlers

import (
	"github.com/gofiber/fiber/v2"

	"meetsync/internal/services"
)

// DashboardHandler serves the read-only execution summaries
type DashboardHandler struct {
	registry *services.Registry
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(registry *services.Registry) *DashboardHandler {
	return &DashboardHandler{registry: registry}
}

type dashboardResponse struct {
	Success bool `json:"success"`
	*services.DashboardData
}

// Dashboard returns session health with the most recent executions
// GET /users/:userId/dashboard-data
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	data, err := h.registry.Peek(c.Params("userId")).Dashboard(c.UserContext())
	if err != nil {
		return respondError(c, "dashboard", err)
	}
	return c.JSON(dashboardResponse{Success: true, DashboardData: data})
}

type analyticsResponse struct {
	Success bool `json:"success"`
	*services.AnalyticsData
}

// Analytics returns the execution log with its summary
// GET /users/:userId/analytics
func (h *DashboardHandler) Analytics(c *fiber.Ctx) error {
	data, err := h.registry.Peek(c.Params("userId")).Analytics(c.UserContext())
	if err != nil {
		return respondError(c, "analytics", err)
	}
	return c.JSON(analyticsResponse{Success: true, AnalyticsData: data})
}
