package model

import (
	"time"

	"github.com/google/uuid"
)

// IssuerType is the category of party creating a deal.
type IssuerType string

const (
	IssuerMerchant IssuerType = "MERCHANT"
	IssuerBank     IssuerType = "BANK"
	// IssuerAdmin exists as a user type but cannot issue deals.
	IssuerAdmin IssuerType = "ADMIN"
)

// CanIssueDeals reports whether deals may be created under this issuer type.
func (t IssuerType) CanIssueDeals() bool {
	return t == IssuerMerchant || t == IssuerBank
}

// DealCodeRecord is one issued deal code.
type DealCodeRecord struct {
	Code           string
	DealDate       time.Time // calendar date, midnight UTC
	SequenceNumber int
	IssuerType     IssuerType
	CreatedAt      time.Time
}

// Deal represents a deal in the system
type Deal struct {
	ID         uuid.UUID
	Code       string
	Title      string
	IssuerType IssuerType
	DealDate   time.Time
	CreatedAt  time.Time
}

// DealResponse is the API response DTO for deal endpoints
type DealResponse struct {
	ID         string `json:"id"`
	DealCode   string `json:"deal_code"`
	Title      string `json:"title"`
	IssuerType string `json:"issuer_type"`
	DealDate   string `json:"deal_date"`
}

// NewDealResponse maps a stored deal to its API shape.
func NewDealResponse(d *Deal) *DealResponse {
	return &DealResponse{
		ID:         d.ID.String(),
		DealCode:   d.Code,
		Title:      d.Title,
		IssuerType: string(d.IssuerType),
		DealDate:   d.DealDate.Format(DateLayout),
	}
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// CreateDealRequest is the DTO for creating a deal.
// DealDate is optional; the business date in the configured zone is used when empty.
type CreateDealRequest struct {
	Title      string `json:"title" validate:"required,notblank,max=255"`
	IssuerType string `json:"issuer_type" validate:"required,issuer"`
	DealDate   string `json:"deal_date" validate:"omitempty,datetime=2006-01-02"`
}
