package services

import (
	"errors"
	"time"

	"sage/internal/export"
	"sage/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func (a *Api) Health() fiber.Handler {
	return func(ctx *fiber.Ctx) error {

		return ctx.Status(fiber.StatusOK).JSON(types.HealthResponse{
			Status:    fiber.StatusOK,
			TimeStamp: time.Now().Unix(),
			Sessions:  a.sessions.Len(),
		})
	}
}

func (a *Api) Page() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		html, err := a.page.Template(PageParams{DefaultPrompt: a.defaultPrompt})
		if err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "failed to render page",
			})
		}
		ctx.Type("html", "utf-8")
		return ctx.Send(html)
	}
}

func (a *Api) SessionState() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		session, ok := a.sessions.Get(ctx.Params("id"))
		if !ok {
			return ctx.Status(fiber.StatusNotFound).JSON(types.ErrorResponse{
				Error:   "unknown session",
				Message: "session not found",
			})
		}

		st := session.Snapshot()
		return ctx.Status(fiber.StatusOK).JSON(types.SessionStateResponse{
			SessionID:     session.ID,
			Prompt:        st.Prompt,
			Seed:          st.Seed,
			HasImage:      st.HasImage(),
			InferenceTime: st.InferenceTime,
			Pending:       st.Pending,
		})
	}
}

// Export streams the latest image of a session, resized to the requested tier,
// as a file download. Without an image it does nothing and answers 204.
func (a *Api) Export() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		logger := HttpLogger("export", ctx)

		tier, err := export.ParseTier(ctx.Query("tier"))
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "tier must be low, medium or high",
			})
		}

		session, ok := a.sessions.Get(ctx.Params("id"))
		if !ok {
			return ctx.Status(fiber.StatusNotFound).JSON(types.ErrorResponse{
				Error:   "unknown session",
				Message: "session not found",
			})
		}

		file, err := export.Export(session.Snapshot().Latest, tier)
		if errors.Is(err, export.ErrNoImage) {
			logger.Warn("export requested before any image arrived", "tier", tier)
			return ctx.SendStatus(fiber.StatusNoContent)
		}
		if err != nil {
			logger.Error("export failed", "tier", tier, "err", err)
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "failed to export image",
			})
		}

		ctx.Attachment(file.Name)
		ctx.Set(fiber.HeaderContentType, file.ContentType)
		return ctx.Send(file.Data)
	}
}

func (a *Api) Archive() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		logger := HttpLogger("archive", ctx)

		var req types.ArchiveRequest
		if err := ctx.BodyParser(&req); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "invalid body",
			})
		}

		tier, err := export.ParseTier(req.Tier)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "tier must be low, medium or high",
			})
		}

		session, ok := a.sessions.Get(ctx.Params("id"))
		if !ok {
			return ctx.Status(fiber.StatusNotFound).JSON(types.ErrorResponse{
				Error:   "unknown session",
				Message: "session not found",
			})
		}

		st := session.Snapshot()
		if !st.HasImage() {
			logger.Warn("archive requested before any image arrived", "tier", tier)
			return ctx.SendStatus(fiber.StatusNoContent)
		}

		jobID := uuid.NewString()
		if err := a.archive.Enqueue(ArchiveJob{
			JobID:     jobID,
			SessionID: session.ID,
			Tier:      tier,
			Image:     st.Latest,
		}); err != nil {
			code := fiber.StatusServiceUnavailable
			if errors.Is(err, ErrArchiveQueueFull) {
				code = fiber.StatusTooManyRequests
			}
			return ctx.Status(code).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "failed to enqueue export",
			})
		}

		return ctx.Status(fiber.StatusAccepted).JSON(types.ArchiveResponse{JobID: jobID})
	}
}
