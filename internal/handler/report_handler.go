package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/deals-backend/internal/model"
	"github.com/fairyhunter13/deals-backend/internal/reportdate"
	"github.com/fairyhunter13/deals-backend/internal/service"
)

// ReportServiceInterface defines the interface for report formatting.
type ReportServiceInterface interface {
	Format(ctx context.Context, req *model.FormatReportRequest) (*model.ReportResponse, error)
}

// ReportHandler handles HTTP requests for analytics reports.
type ReportHandler struct {
	service   ReportServiceInterface
	validator *validator.Validate
}

// NewReportHandler creates a new ReportHandler with the given service and validator.
func NewReportHandler(svc ReportServiceInterface, v *validator.Validate) *ReportHandler {
	return &ReportHandler{service: svc, validator: v}
}

func formatReportValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	switch fe.Field() {
	case "Option":
		return "invalid request: option must be one of DAILY, WEEKLY, MONTHLY, YEARLY"
	case "TimeZone":
		if fe.Tag() == "required" {
			return "invalid request: time_zone is required"
		}
		return "invalid request: time_zone is not a known zone"
	case "WindowStart":
		return "invalid request: window_start is required"
	case "WindowEnd":
		return "invalid request: window_end is required"
	case "BucketKey":
		return "invalid request: bucket_key is required"
	}
	return "invalid request: " + strings.ToLower(fe.Field()) + " is invalid"
}

// FormatReport handles POST /api/reports/display-dates requests.
func (h *ReportHandler) FormatReport(c *fiber.Ctx) error {
	var req model.FormatReportRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatReportValidationError(err)})
	}

	report, err := h.service.Format(c.UserContext(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		case errors.Is(err, reportdate.ErrConversion):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("option", req.Option).
			Msg("failed to format report")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	if report.Skipped > 0 {
		log.Info().
			Str("option", report.Option).
			Int("rows", len(report.Rows)).
			Int("skipped", report.Skipped).
			Msg("report formatted with skipped rows")
	}

	return c.JSON(report)
}
