package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/deals-backend/internal/dealcode"
	"github.com/fairyhunter13/deals-backend/internal/metrics"
	"github.com/fairyhunter13/deals-backend/internal/model"
)

// DealRepositoryInterface defines the interface for deal data access.
type DealRepositoryInterface interface {
	Insert(ctx context.Context, deal *model.Deal) error
	GetByCode(ctx context.Context, code string) (*model.Deal, error)
}

// CodeGenerator issues deal codes.
type CodeGenerator interface {
	GenerateAndSave(ctx context.Context, date time.Time, issuer model.IssuerType) (string, error)
}

// DealService provides business logic for deal operations.
type DealService struct {
	dealRepo DealRepositoryInterface
	codes    CodeGenerator
	loc      *time.Location
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewDealService creates a new DealService.
// loc is the business time zone used when a request carries no deal date.
func NewDealService(dealRepo DealRepositoryInterface, codes CodeGenerator, loc *time.Location, m *metrics.Metrics) *DealService {
	if loc == nil {
		loc = time.UTC
	}
	return &DealService{
		dealRepo: dealRepo,
		codes:    codes,
		loc:      loc,
		metrics:  m,
		now:      time.Now,
	}
}

// Create issues a deal code and stores the deal.
// Returns ErrInvalidRequest if the issuer cannot create deals or the date is malformed.
func (s *DealService) Create(ctx context.Context, req *model.CreateDealRequest) (*model.DealResponse, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	issuer := model.IssuerType(req.IssuerType)
	if !issuer.CanIssueDeals() {
		return nil, fmt.Errorf("%w: issuer type %q cannot create deals", ErrInvalidRequest, req.IssuerType)
	}

	dealDate, err := s.businessDate(req.DealDate)
	if err != nil {
		return nil, err
	}

	code, err := s.codes.GenerateAndSave(ctx, dealDate, issuer)
	if err != nil {
		if errors.Is(err, dealcode.ErrLookupFailed) {
			s.metrics.IncrDealCodeFailure("lookup")
		} else {
			s.metrics.IncrDealCodeFailure("save")
		}
		return nil, fmt.Errorf("generate deal code: %w", err)
	}

	deal := &model.Deal{
		ID:         uuid.New(),
		Code:       code,
		Title:      req.Title,
		IssuerType: issuer,
		DealDate:   dealDate,
		CreatedAt:  s.now(),
	}
	if err := s.dealRepo.Insert(ctx, deal); err != nil {
		return nil, fmt.Errorf("insert deal %s: %w", code, err)
	}

	s.metrics.IncrDealCreated(string(issuer))
	return model.NewDealResponse(deal), nil
}

// GetByCode retrieves a deal by its code.
// Returns ErrDealNotFound if the deal doesn't exist.
func (s *DealService) GetByCode(ctx context.Context, code string) (*model.DealResponse, error) {
	deal, err := s.dealRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	if deal == nil {
		return nil, ErrDealNotFound
	}
	return model.NewDealResponse(deal), nil
}

// businessDate parses raw as a calendar date, defaulting to today in s.loc.
func (s *DealService) businessDate(raw string) (time.Time, error) {
	if raw == "" {
		return dealcode.CalendarDate(s.now().In(s.loc)), nil
	}
	d, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: deal_date %q", ErrInvalidRequest, raw)
	}
	return d, nil
}
