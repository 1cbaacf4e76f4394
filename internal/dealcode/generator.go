// Package dealcode issues the human-readable codes attached to deals.
//
// A code has the form PREFIX-YYMMDDNNNN, e.g. DLM-2203220005. The sequence
// part continues the counter of the most recently issued code when it was
// issued for the same date and restarts at 1 otherwise. Merchant and bank
// deals share the counter of a day; only the prefix differs.
package dealcode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/deals-backend/internal/model"
)

// Code prefixes by issuer type.
const (
	MerchantPrefix = "DLM"
	BankPrefix     = "DLB"
)

// Store is the persistence needed by Generator.
type Store interface {
	// Latest returns the record ordered first by deal_date desc, created_at desc,
	// or nil when no code was ever issued.
	Latest(ctx context.Context) (*model.DealCodeRecord, error)
	// Insert stores a new record. Returns ErrDuplicateCode when the code, or
	// the sequence number for the record's deal date, is already taken.
	Insert(ctx context.Context, rec *model.DealCodeRecord) error
}

// Generator computes and records deal codes.
//
// The read of the latest code and the insert of the next one are not atomic.
// Two concurrent calls for the same date can compute the same sequence, with
// the same or a different prefix. With maxAttempts > 1 and a store that keeps
// (deal date, sequence) unique, a collision is resolved by reading the latest
// code again.
type Generator struct {
	store       Store
	maxAttempts int
	now         func() time.Time
}

// NewGenerator creates a Generator. maxAttempts below 1 is treated as 1.
func NewGenerator(store Store, maxAttempts int) *Generator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Generator{
		store:       store,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// GenerateAndSave issues the next code for date and issuer and persists it.
// Only the calendar part of date is used.
func (g *Generator) GenerateAndSave(ctx context.Context, date time.Time, issuer model.IssuerType) (string, error) {
	prefix, err := Prefix(issuer)
	if err != nil {
		return "", err
	}
	day := CalendarDate(date)

	for attempt := 1; ; attempt++ {
		last, err := g.store.Latest(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrLookupFailed, err)
		}

		seq := NextSequence(last, day)
		rec := &model.DealCodeRecord{
			Code:           Format(prefix, day, seq),
			DealDate:       day,
			SequenceNumber: seq,
			IssuerType:     issuer,
			CreatedAt:      g.now(),
		}

		err = g.store.Insert(ctx, rec)
		if err == nil {
			return rec.Code, nil
		}
		if errors.Is(err, ErrDuplicateCode) && attempt < g.maxAttempts {
			log.Warn().
				Str("deal_code", rec.Code).
				Int("attempt", attempt).
				Int("max_attempts", g.maxAttempts).
				Msg("deal code collision, recomputing")
			continue
		}
		return "", &SaveError{Code: rec.Code, Err: err}
	}
}

// NextSequence returns the sequence number following last for day.
func NextSequence(last *model.DealCodeRecord, day time.Time) int {
	if last == nil || !SameDay(last.DealDate, day) {
		return 1
	}
	return last.SequenceNumber + 1
}

// Format renders a code. The sequence is padded to 4 digits and never truncated.
func Format(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s%04d", prefix, day.Format("060102"), seq)
}

// Prefix returns the code prefix of an issuer type.
func Prefix(issuer model.IssuerType) (string, error) {
	switch issuer {
	case model.IssuerMerchant:
		return MerchantPrefix, nil
	case model.IssuerBank:
		return BankPrefix, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidIssuer, issuer)
	}
}

// CalendarDate drops the clock part of t, keeping t's own year, month and day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay compares the calendar parts of a and b.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
