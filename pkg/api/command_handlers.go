package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"

	"github.com/open-teleop/commandbot/domain/motion"
	"github.com/open-teleop/commandbot/pkg/config"
	customlog "github.com/open-teleop/commandbot/pkg/log"
	"github.com/open-teleop/commandbot/pkg/processing"
)

// InputSubmitter queues raw text for processing.
type InputSubmitter interface {
	Submit(source, text string, done func(result *processing.ProcessResult)) (string, error)
}

// MotionService exposes the held motion and the direct stop path.
type MotionService interface {
	Stop(ctx context.Context) error
	MotionState() motion.State
}

// CommandHandler holds dependencies for the command and motion endpoints.
type CommandHandler struct {
	submitter InputSubmitter
	motion    MotionService
	logger    customlog.Logger
}

// NewCommandHandler creates a new handler for command endpoints.
func NewCommandHandler(submitter InputSubmitter, motionSvc MotionService, logger customlog.Logger) *CommandHandler {
	if submitter == nil {
		panic("InputSubmitter cannot be nil in NewCommandHandler")
	}
	if motionSvc == nil {
		panic("MotionService cannot be nil in NewCommandHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewCommandHandler")
	}
	return &CommandHandler{
		submitter: submitter,
		motion:    motionSvc,
		logger:    logger,
	}
}

// RegisterCommandRoutes registers the command and motion endpoints with the Fiber app.
func RegisterCommandRoutes(app *fiber.App, submitter InputSubmitter, motionSvc MotionService, logger customlog.Logger) {
	h := NewCommandHandler(submitter, motionSvc, logger)

	apiGroup := app.Group("/api/v1")
	apiGroup.Post("/command", h.handleSubmitCommand)
	apiGroup.Get("/motion", h.handleGetMotion)
	apiGroup.Post("/motion/stop", h.handleStop)

	logger.Infof("Registered command API endpoints under /api/v1")
}

// submitStatus maps admission errors to HTTP status codes.
func submitStatus(err error) int {
	switch {
	case errors.Is(err, processing.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, processing.ErrQueueFull), errors.Is(err, processing.ErrPoolStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleSubmitCommand queues one text input. The body is either JSON
// {"text": "..."} or the text itself.
func (h *CommandHandler) handleSubmitCommand(c *fiber.Ctx) error {
	var text string
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		var req CommandRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Invalid request body: %v", err),
			})
		}
		text = req.Text
	} else {
		text = string(c.Body())
	}

	if strings.TrimSpace(text) == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Command text cannot be empty.",
		})
	}

	id, err := h.submitter.Submit(processing.SourceHTTP, text, nil)
	if err != nil {
		h.logger.Warnf("Rejected HTTP command: %v", err)
		return c.Status(submitStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(http.StatusAccepted).JSON(CommandAccepted{ID: id, Status: "queued"})
}

// handleGetMotion returns the held motion.
func (h *CommandHandler) handleGetMotion(c *fiber.Ctx) error {
	return c.JSON(newMotionResponse(h.motion.MotionState()))
}

// handleStop stops the robot immediately, bypassing the classifier.
func (h *CommandHandler) handleStop(c *fiber.Ctx) error {
	h.logger.Infof("Stop requested over HTTP")
	if err := h.motion.Stop(c.UserContext()); err != nil {
		h.logger.Errorf("Failed to stop: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to stop: %v", err),
		})
	}
	return c.JSON(newMotionResponse(h.motion.MotionState()))
}

// RegisterConfigRoutes exposes the effective configuration read-only.
// ?format=yaml returns it as YAML.
func RegisterConfigRoutes(app *fiber.App, cfg *config.Config, logger customlog.Logger) {
	app.Get("/api/v1/config", func(c *fiber.Ctx) error {
		if c.Query("format") == "yaml" {
			yamlData, err := yaml.Marshal(cfg)
			if err != nil {
				logger.Errorf("Failed to marshal config as YAML: %v", err)
				return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
					"error": fmt.Sprintf("Failed to render configuration: %v", err),
				})
			}
			c.Set(fiber.HeaderContentType, "application/x-yaml")
			return c.Send(yamlData)
		}
		return c.JSON(cfg)
	})

	logger.Infof("Registered configuration API endpoint under /api/v1/config")
}
