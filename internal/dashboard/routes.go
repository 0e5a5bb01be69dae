package dashboard

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantex/qx-algo/internal/store"
)

// RegisterRoutes wires the dashboard endpoints onto the fiber app. nc and st
// may be nil when events or the store are not configured.
func RegisterRoutes(app *fiber.App, h *Handler, nc *nats.Conn, st store.Store) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"trader": "ok",
			"store":  "ok",
			"nats":   "ok",
		}
		status := "healthy"
		code := fiber.StatusOK

		if !h.ctrl.IsRunning() {
			checks["trader"] = "paused"
		}
		if st != nil {
			healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := st.HealthCheck(healthCtx); err != nil {
				checks["store"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		} else {
			checks["store"] = "disabled"
		}
		if nc != nil {
			if !nc.IsConnected() {
				checks["nats"] = "disconnected"
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		} else {
			checks["nats"] = "disabled"
		}

		return c.Status(code).JSON(fiber.Map{
			"status":  status,
			"service": "qx-algo-dashboard",
			"checks":  checks,
		})
	})

	app.Get("/", h.Index)
	app.Get("/api/status", h.Status)
	app.Get("/api/logs", h.Logs)
	app.Get("/api/control/:action", h.Control)
	app.Post("/api/control/:action", h.Control)
}
