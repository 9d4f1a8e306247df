package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/open-builders/giveaway-draw/internal/config"
	"github.com/open-builders/giveaway-draw/internal/http/middleware"
	"github.com/open-builders/giveaway-draw/internal/metrics"
	redisp "github.com/open-builders/giveaway-draw/internal/platform/redis"
)

const listCacheTTL = 2 * time.Second

// Deps are the services the request layer translates to.
type Deps struct {
	Identities    IdentityService
	Giveaways     GiveawayService
	Notifications NotificationService
	Redis         *redisp.Client
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
}

// NewFiberApp builds a Fiber application with routes and middlewares wired.
func NewFiberApp(cfg *config.Config, d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.Metrics(d.Metrics))

	// CORS for frontends
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.HeaderUserID + ", " + middleware.HeaderUserName,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	ih := NewIdentityHandlers(d.Identities)
	gh := NewGiveawayHandlersFiber(d.Giveaways, cfg.CurrencyScale)
	nh := NewNotificationHandlers(d.Notifications)

	v1 := app.Group("/api/v1")
	ih.RegisterPublic(v1)
	gh.RegisterPublicFiber(v1, middleware.ResponseCache(d.Redis, listCacheTTL))

	// Routes below need a resolved caller; the public routes above end the
	// chain before this middleware.
	v1.Use(middleware.IdentityMiddleware(d.Identities, ErrorHandler))
	ih.Register(v1)
	gh.RegisterFiber(v1)
	nh.Register(v1)

	return app
}
