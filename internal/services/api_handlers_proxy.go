package services

import (
	"net/url"
	"strings"

	"sage/types"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/samber/lo"
)

const falTargetHeader = "x-fal-target-url"

var allowedProxyDomains = []string{"fal.ai", "fal.run"}

// Proxy forwards a request to the fal endpoint named in x-fal-target-url with
// the server's key attached, so pages never see the credential.
func (a *Api) Proxy() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		logger := HttpLogger("proxy", ctx)

		target := strings.TrimSpace(ctx.Get(falTargetHeader))
		if target == "" {
			return ctx.Status(fiber.StatusBadRequest).JSON(types.ErrorResponse{
				Error:   "missing " + falTargetHeader,
				Message: "invalid proxy request",
			})
		}
		if !allowedProxyTarget(target) {
			return ctx.Status(fiber.StatusPreconditionFailed).JSON(types.ErrorResponse{
				Error:   "target not allowed",
				Message: "invalid proxy request",
			})
		}

		req := ctx.Request()
		req.Header.Del(falTargetHeader)
		req.Header.Del(fiber.HeaderCookie)
		req.Header.Set(fiber.HeaderAuthorization, "Key "+a.falKey)
		req.Header.Set("x-fal-client-proxy", "sage-go")

		if err := proxy.Do(ctx, target); err != nil {
			logger.Error("proxy request failed", "target", target, "err", err)
			return ctx.Status(fiber.StatusBadGateway).JSON(types.ErrorResponse{
				Error:   err.Error(),
				Message: "upstream request failed",
			})
		}
		ctx.Response().Header.Del(fiber.HeaderServer)
		return nil
	}
}

func allowedProxyTarget(target string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return lo.SomeBy(allowedProxyDomains, func(domain string) bool {
		return host == domain || strings.HasSuffix(host, "."+domain)
	})
}
