package server

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-cache/internal/config"
	"github.com/any-hub/any-cache/internal/fetch"
)

// Fetcher describes the caching client used by the relay handler. It allows
// injecting fake clients during tests.
type Fetcher interface {
	Request(ctx context.Context, uri string, opts fetch.Options) *fetch.Call
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger *logrus.Logger
	Client Fetcher
	Config *config.Config
}

const contextKeyRequestID = "_anycache_request_id"

// NewApp builds a Fiber application with request-ID middleware, the /fetch
// relay endpoint and structured JSON errors.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Client == nil {
		return nil, errors.New("fetch client is required")
	}
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handler := NewFetchHandler(opts.Client, opts.Logger, opts.Config)
	app.All("/fetch", handler.Handle)

	app.All("/*", func(c fiber.Ctx) error {
		if isDiagnosticsPath(string(c.Request().URI().Path())) {
			return c.Next()
		}
		return renderError(c, opts.Logger, fiber.StatusNotFound, "route_not_found", nil)
	})

	return app, nil
}

// requestContextMiddleware 为每个请求生成 ID，并写入 X-Request-ID 响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func renderError(c fiber.Ctx, logger *logrus.Logger, status int, code string, err error) error {
	entry := logger.WithFields(logrus.Fields{
		"action":     "http",
		"request_id": RequestID(c),
		"path":       string(c.Request().URI().Path()),
		"status":     status,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(code)

	return c.Status(status).JSON(fiber.Map{
		"error": code,
	})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
