package inventory

import (
	"errors"

	"inventory-sync/core/logger"
	"inventory-sync/core/reconcile"
	"inventory-sync/feature/inventory/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for inventory syncs.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	// Force import for Swagger
	var _ = models.SyncRun{}
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/inventory", h.HandleSync)
	group.Get("/inventory/diff", h.HandleDiff)
	group.Get("/runs", h.HandleListRuns)
	group.Get("/runs/:id", h.HandleGetRun)
}

// request builds a run request from query parameters, defaulting flags from the config.
func (h *Handler) request(c *fiber.Ctx) (RunRequest, error) {
	source, err := h.service.RequestSource(c.Query("source"))
	if err != nil {
		return RunRequest{}, err
	}
	d := h.service.Defaults()
	return RunRequest{
		Job:    c.Query("job"),
		Source: source,
		Flags: reconcile.Flags{
			DryRun:            c.QueryBool("dry_run", d.DryRun),
			ContinueOnFailure: c.QueryBool("continue_on_failure", d.ContinueOnFailure),
			SkipUnmatchedDst:  c.QueryBool("skip_unmatched_dst", d.SkipUnmatchedDst),
			LogUnchanged:      c.QueryBool("log_unchanged", d.LogUnchanged),
		},
	}, nil
}

// HandleSync runs a sync from the snapshot into the database.
// @Summary Sync Inventory
// @Description Loads the snapshot and the database, diffs them and applies the diff. Identical concurrent requests share one run.
// @Tags sync
// @Accept json
// @Produce json
// @Param job query string false "Job name"
// @Param source query string false "Snapshot path under the snapshot directory, or s3://bucket/key"
// @Param dry_run query boolean false "Report without writing"
// @Param continue_on_failure query boolean false "Continue past failed records"
// @Param skip_unmatched_dst query boolean false "Keep database records missing from the snapshot"
// @Param log_unchanged query boolean false "Log unchanged records at info level"
// @Success 200 {object} RunReport "Run Report"
// @Failure 400 {object} map[string]string "Source Not Allowed"
// @Failure 409 {object} map[string]string "Job Busy"
// @Failure 500 {object} map[string]interface{} "Sync Failed"
// @Router /sync/inventory [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	req, err := h.request(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	report, err := h.service.Run(c.UserContext(), req)
	if errors.Is(err, ErrRunInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		l.Error("Inventory sync failed", zap.String("job", req.Job), zap.Error(err))
		body := fiber.Map{"error": err.Error()}
		if report != nil {
			body["report"] = report
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}
	return c.JSON(report)
}

// HandleDiff returns the pending diff without applying it.
// @Summary Diff Inventory
// @Description Loads the snapshot and the database and returns the diff report.
// @Tags sync
// @Produce json
// @Param source query string false "Snapshot path under the snapshot directory, or s3://bucket/key"
// @Param skip_unmatched_dst query boolean false "Keep database records missing from the snapshot"
// @Success 200 {object} map[string]interface{} "Diff"
// @Failure 400 {object} map[string]string "Source Not Allowed"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/inventory/diff [get]
func (h *Handler) HandleDiff(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	req, err := h.request(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	diff, err := h.service.Diff(c.UserContext(), req)
	if err != nil {
		l.Error("Inventory diff failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"summary": diff.Summary(),
		"diff":    diff.Dict(),
	})
}

// HandleListRuns lists recent sync runs.
// @Summary List Sync Runs
// @Tags sync
// @Produce json
// @Param job query string false "Filter by job"
// @Param limit query int false "Maximum runs (default 50)"
// @Success 200 {array} models.SyncRun "Runs"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/runs [get]
func (h *Handler) HandleListRuns(c *fiber.Ctx) error {
	runs, err := h.service.ListRuns(c.UserContext(), c.Query("job"), c.QueryInt("limit", 50))
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing sync runs failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(runs)
}

// HandleGetRun returns one sync run with its diff.
// @Summary Get Sync Run
// @Tags sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} RunReport "Run Report"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/runs/{id} [get]
func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	report, err := h.service.GetRun(c.UserContext(), c.Params("id"))
	if errors.Is(err, ErrRunNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Getting sync run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}
