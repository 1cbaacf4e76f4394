package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/deals-backend/internal/metrics"
	"github.com/fairyhunter13/deals-backend/internal/model"
	"github.com/fairyhunter13/deals-backend/internal/reportdate"
)

// ReportService attaches display dates to analytics rows.
type ReportService struct {
	metrics *metrics.Metrics
}

// NewReportService creates a new ReportService.
func NewReportService(m *metrics.Metrics) *ReportService {
	return &ReportService{metrics: m}
}

// Format labels every row of req.
// A row whose bucket key cannot be converted either aborts the report with an
// error wrapping reportdate.ErrConversion, or is dropped when req.SkipInvalid is set.
func (s *ReportService) Format(ctx context.Context, req *model.FormatReportRequest) (*model.ReportResponse, error) {
	if req == nil || req.WindowStart == nil || req.WindowEnd == nil {
		return nil, ErrInvalidRequest
	}

	opt, err := reportdate.ParseOption(req.Option)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	loc, err := time.LoadLocation(req.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q", ErrInvalidRequest, req.TimeZone)
	}
	if req.WindowEnd.Before(*req.WindowStart) {
		return nil, fmt.Errorf("%w: window_end before window_start", ErrInvalidRequest)
	}

	window := reportdate.Window{Start: *req.WindowStart, End: *req.WindowEnd}
	resp := &model.ReportResponse{
		Option: string(opt),
		Rows:   make([]model.ReportRow, 0, len(req.Rows)),
	}

	for i, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		label, err := reportdate.Format(opt, row.BucketKey, window, loc)
		if err != nil {
			if !req.SkipInvalid {
				s.metrics.IncrReportRow(string(opt), "failed")
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			log.Warn().
				Err(err).
				Str("option", string(opt)).
				Str("bucket_key", row.BucketKey).
				Msg("Skipping analytics row")
			s.metrics.IncrReportRow(string(opt), "skipped")
			resp.Skipped++
			continue
		}

		s.metrics.IncrReportRow(string(opt), "ok")
		resp.Rows = append(resp.Rows, model.ReportRow{
			BucketKey:   row.BucketKey,
			DisplayDate: label,
			Value:       row.Value,
		})
		resp.Total += row.Value
	}

	return resp, nil
}
