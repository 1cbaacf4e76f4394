package model

import "time"

// AnalyticsRow is one aggregated row as returned by the analytics source.
type AnalyticsRow struct {
	BucketKey string `json:"bucket_key" validate:"required"`
	Value     int64  `json:"value"`
}

// FormatReportRequest is the DTO for POST /api/reports/display-dates.
// Window bounds and time zone must be the ones the analytics query ran with.
type FormatReportRequest struct {
	Option      string         `json:"option" validate:"required,oneof=DAILY WEEKLY MONTHLY YEARLY"`
	TimeZone    string         `json:"time_zone" validate:"required,timezone"`
	WindowStart *time.Time     `json:"window_start" validate:"required"`
	WindowEnd   *time.Time     `json:"window_end" validate:"required"`
	SkipInvalid bool           `json:"skip_invalid"`
	Rows        []AnalyticsRow `json:"rows" validate:"dive"`
}

// ReportRow is a report row with its display label.
type ReportRow struct {
	BucketKey   string `json:"bucket_key"`
	DisplayDate string `json:"display_date"`
	Value       int64  `json:"value"`
}

// ReportResponse is the API response DTO for formatted reports.
type ReportResponse struct {
	Option  string      `json:"option"`
	Rows    []ReportRow `json:"rows"`
	Total   int64       `json:"total"`
	Skipped int         `json:"skipped"`
}
