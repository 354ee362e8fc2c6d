package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"meetsync/internal/models"
	"meetsync/internal/services"
)

const defaultDays = 7

// ExtractionHandler handles transcript extraction, listings and sync
type ExtractionHandler struct {
	registry *services.Registry
}

// NewExtractionHandler creates a new extraction handler
func NewExtractionHandler(registry *services.Registry) *ExtractionHandler {
	return &ExtractionHandler{registry: registry}
}

type transcriptRequest struct {
	URL string `json:"url"`
}

type transcriptResponse struct {
	Success bool `json:"success"`
	*models.TranscriptResult
}

// Transcript extracts the transcript behind a share link
// POST /users/:userId/transcript
func (h *ExtractionHandler) Transcript(c *fiber.Ctx) error {
	var req transcriptRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.registry.Get(c.Params("userId")).ExtractTranscript(c.UserContext(), req.URL)
	if err != nil {
		return respondError(c, "transcript", err)
	}
	return c.JSON(transcriptResponse{Success: true, TranscriptResult: result})
}

// Meetings lists recorded meetings
// GET /users/:userId/meetings
func (h *ExtractionHandler) Meetings(c *fiber.Ctx) error {
	meetings, err := h.registry.Get(c.Params("userId")).ListMeetings(c.UserContext())
	if err != nil {
		return respondError(c, "meetings", err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"meetings": meetings,
		"count":    len(meetings),
	})
}

// MeetingTranscript downloads the caption track of one listed meeting
// GET /users/:userId/meeting-transcript?index=N
func (h *ExtractionHandler) MeetingTranscript(c *fiber.Ctx) error {
	if c.Query("index") == "" {
		return badRequest(c, "index query parameter is required")
	}
	index, err := queryInt(c, "index", 0)
	if err != nil {
		return badRequest(c, "index must be an integer")
	}

	result, err := h.registry.Get(c.Params("userId")).MeetingTranscript(c.UserContext(), index)
	if err != nil {
		return respondError(c, "meeting-transcript", err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"meeting":    result.Meeting,
		"transcript": result.Transcript,
	})
}

// Clips lists clips from the last N days
// GET /users/:userId/clips?days=N
func (h *ExtractionHandler) Clips(c *fiber.Ctx) error {
	days, err := queryInt(c, "days", defaultDays)
	if err != nil {
		return badRequest(c, "days must be an integer")
	}

	clips, err := h.registry.Get(c.Params("userId")).ListClips(c.UserContext(), days)
	if err != nil {
		return respondError(c, "clips", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"clips":   clips,
		"count":   len(clips),
		"days":    days,
	})
}

type syncResponse struct {
	Success bool `json:"success"`
	*models.SyncResult
}

// Sync lists clips and meetings and records the run
// POST /users/:userId/sync?days=N[&transcripts=true]
func (h *ExtractionHandler) Sync(c *fiber.Ctx) error {
	days, err := queryInt(c, "days", defaultDays)
	if err != nil {
		return badRequest(c, "days must be an integer")
	}
	withTranscripts := strings.EqualFold(c.Query("transcripts"), "true")

	result, err := h.registry.Get(c.Params("userId")).Sync(c.UserContext(), days, withTranscripts)
	if err != nil {
		return respondError(c, "sync", err)
	}
	return c.JSON(syncResponse{Success: true, SyncResult: result})
}
