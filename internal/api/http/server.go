package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/direct-line/internal/observability"
)

// ServerConfig collects everything needed to build the Fiber app.
type ServerConfig struct {
	AppName     string
	BodyLimit   int
	Middlewares MiddlewareConfig
	Routes      RouteConfig
}

// NewApp builds a Fiber app with the global middleware chain and routes registered.
func NewApp(cfg ServerConfig, logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	fiberCfg := fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: ErrorHandler(logger),
	}
	if cfg.BodyLimit > 0 {
		fiberCfg.BodyLimit = cfg.BodyLimit
	}
	app := fiber.New(fiberCfg)
	RegisterMiddlewares(app, logger, metrics, cfg.Middlewares)
	RegisterRoutes(app, cfg.Routes)
	return app
}
