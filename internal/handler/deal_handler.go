package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/deals-backend/internal/dealcode"
	"github.com/fairyhunter13/deals-backend/internal/model"
	"github.com/fairyhunter13/deals-backend/internal/service"
)

// DealServiceInterface defines the interface for deal business logic.
type DealServiceInterface interface {
	Create(ctx context.Context, req *model.CreateDealRequest) (*model.DealResponse, error)
	GetByCode(ctx context.Context, code string) (*model.DealResponse, error)
}

// DealHandler handles HTTP requests for deal operations.
type DealHandler struct {
	service   DealServiceInterface
	validator *validator.Validate
}

// NewDealHandler creates a new DealHandler with the given service and validator.
func NewDealHandler(svc DealServiceInterface, v *validator.Validate) *DealHandler {
	return &DealHandler{service: svc, validator: v}
}

// formatDealValidationError converts validator errors to client-facing messages.
func formatDealValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	switch fe.Field() {
	case "Title":
		switch fe.Tag() {
		case "required":
			return "invalid request: title is required"
		case "notblank":
			return "invalid request: title cannot be whitespace only"
		case "max":
			return "invalid request: title exceeds maximum length of 255"
		}
		return "invalid request: title is invalid"
	case "IssuerType":
		if fe.Tag() == "required" {
			return "invalid request: issuer_type is required"
		}
		return "invalid request: issuer_type must be MERCHANT or BANK"
	case "DealDate":
		return "invalid request: deal_date must be formatted as YYYY-MM-DD"
	}
	return "invalid request: " + fe.Field() + " is invalid"
}

// CreateDeal handles POST /api/deals requests.
func (h *DealHandler) CreateDeal(c *fiber.Ctx) error {
	var req model.CreateDealRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatDealValidationError(err)})
	}

	deal, err := h.service.Create(c.UserContext(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, dealcode.ErrInvalidIssuer):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		case errors.Is(err, service.ErrDealExists):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "deal already exists"})
		case errors.Is(err, dealcode.ErrLookupFailed), errors.Is(err, dealcode.ErrSaveFailed):
			log.Error().
				Err(err).
				Str("request_id", requestID(c)).
				Str("issuer_type", req.IssuerType).
				Msg("deal code generation failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "deal code generation failed"})
		}
		log.Error().
			Err(err).
			Str("request_id", requestID(c)).
			Str("issuer_type", req.IssuerType).
			Msg("failed to create deal")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("deal_code", deal.DealCode).
		Str("issuer_type", deal.IssuerType).
		Str("deal_date", deal.DealDate).
		Msg("deal created")

	return c.Status(fiber.StatusCreated).JSON(deal)
}

// GetDeal handles GET /api/deals/:code requests.
func (h *DealHandler) GetDeal(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: code is required",
		})
	}

	deal, err := h.service.GetByCode(c.UserContext(), code)
	if err != nil {
		if errors.Is(err, service.ErrDealNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "deal not found",
			})
		}
		log.Error().Err(err).Str("request_id", requestID(c)).Str("deal_code", code).Msg("failed to get deal")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(deal)
}

// requestID returns the id set by the requestid middleware, if any.
func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}
