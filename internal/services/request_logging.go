package services

import (
	"strings"
	"time"

	"sage/utils"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
)

const (
	reqIDKey = "reqId"
	uaLimit  = 200
)

// quietPaths are polled by probes; they only show up at debug level.
var quietPaths = map[string]bool{"/health": true}

func RequestLogger() fiber.Handler {
	base := log.With("component", "http")

	return func(c *fiber.Ctx) error {
		reqID := utils.NewRequestID()
		c.Locals(reqIDKey, reqID)
		c.Set("X-Request-Id", reqID)

		start := time.Now()
		fields := []any{"reqId", reqID, "method", c.Method(), "path", c.Path()}

		ua := strings.TrimSpace(string(c.Context().UserAgent()))
		if len(ua) > uaLimit {
			ua = ua[:uaLimit]
		}
		base.Debug("request started", append(fields, "ip", c.IP(), "ua", ua)...)

		err := c.Next()
		status := c.Response().StatusCode()
		fields = append(fields, "status", status, "dur", time.Since(start).String())

		switch {
		case err != nil:
			base.Error("request failed", append(fields, "err", err)...)
			return err
		case quietPaths[c.Path()]:
			base.Debug("request completed", fields...)
		case status >= fiber.StatusInternalServerError:
			base.Error("request completed", fields...)
		case status >= fiber.StatusBadRequest:
			base.Warn("request completed", fields...)
		default:
			base.Info("request completed", fields...)
		}
		return nil
	}
}

func ReqID(c *fiber.Ctx) string {
	if s, ok := c.Locals(reqIDKey).(string); ok {
		return s
	}
	return ""
}

func HttpLogger(action string, c *fiber.Ctx) *log.Logger {
	return log.With(
		"component", "api",
		"action", action,
		"reqId", ReqID(c),
		"path", c.Path(),
	)
}
