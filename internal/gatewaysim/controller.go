package gatewaysim

import (
	"errors"
	"fmt"
	"html"

	"payflow/internal/csrf"
	"payflow/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Controller struct {
	useCase *UseCase
	token   string
	log     *zap.Logger
	tracer  trace.Tracer
}

func NewController(useCase *UseCase, log *zap.Logger, tracer trace.Tracer) *Controller {
	return &Controller{useCase: useCase, token: useCase.opts.CSRFToken, log: log, tracer: tracer}
}

const subscriptionPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="` + csrf.MetaName + `" content="%s">
<title>Subscription</title>
</head>
<body></body>
</html>
`

// Page serves the subscription page carrying the CSRF token.
func (ct *Controller) Page(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(fmt.Sprintf(subscriptionPage, html.EscapeString(ct.token)))
}

// RequireCSRF rejects mutating requests whose token does not match the one
// served with the page.
func (ct *Controller) RequireCSRF(c *fiber.Ctx) error {
	got := c.Get(csrf.HeaderName)
	if ct.token == "" || got != ct.token {
		ct.log.Warn("csrf check failed", zap.String("path", c.Path()), zap.Bool("present", got != ""))
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid CSRF token",
		})
	}
	return c.Next()
}

func (ct *Controller) Initiate(c *fiber.Ctx) error {
	ctx, span := ct.tracer.Start(c.UserContext(), "Controller.InitiateSubscriptionPayment",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	req := models.PaymentRequest{
		Tier:        models.Tier(c.FormValue("tier")),
		Method:      models.PaymentMethod(c.FormValue("payment_type")),
		PhoneNumber: c.FormValue("phone_number"),
	}

	resp := ct.useCase.Initiate(ctx, req)
	if !resp.Success {
		span.SetStatus(codes.Error, resp.Error)
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	}

	span.SetStatus(codes.Ok, "")
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (ct *Controller) Status(c *fiber.Ctx) error {
	ctx, span := ct.tracer.Start(c.UserContext(), "Controller.CheckPaymentStatus",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	status, err := ct.useCase.Status(ctx, c.Params("id"))
	if errors.Is(err, ErrCheckoutNotFound) {
		span.SetStatus(codes.Error, err.Error())
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ct.log.Error("failed to check payment status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	span.SetStatus(codes.Ok, "")
	return c.JSON(models.StatusResponse{Status: status})
}

func (ct *Controller) ToggleAutoRenew(c *fiber.Ctx) error {
	ctx, span := ct.tracer.Start(c.UserContext(), "Controller.ToggleAutoRenew",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()

	resp := ct.useCase.ToggleAutoRenew(ctx)
	span.SetStatus(codes.Ok, "")
	return c.JSON(resp)
}
