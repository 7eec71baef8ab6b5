package gatewaysim

import (
	"time"

	"payflow/internal/gateway"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
)

// NewApp wires the simulator routes on the paths the gateway client uses.
func NewApp(ctrl *Controller) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
		IdleTimeout:           30 * time.Second,
		BodyLimit:             64 * 1024,
	})
	app.Use(otelfiber.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/subscription", ctrl.Page)
	app.Post(gateway.InitiatePath, ctrl.RequireCSRF, ctrl.Initiate)
	app.Get(gateway.StatusPath+":id", ctrl.Status)
	app.Post(gateway.AutoRenewPath, ctrl.RequireCSRF, ctrl.ToggleAutoRenew)

	return app
}
