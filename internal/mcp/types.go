package mcp

import (
	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/domain/lifecycle"
)

type StartCountParams struct {
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	LastOrderDate string `json:"last_order_date,omitempty"`
	PeopleOnSite  int    `json:"people_on_site"`
	Notes         string `json:"notes,omitempty"`
	PerformedBy   string `json:"performed_by,omitempty"`
}

type AddItemParams struct {
	Location  string `json:"location"`
	ItemCode  string `json:"item_code"`
	ItemName  string `json:"item_name"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit"`
	UnitPrice string `json:"unit_price,omitempty"`
	Notes     string `json:"notes,omitempty"`
	AddedBy   string `json:"added_by,omitempty"`
}

type DeleteItemParams struct {
	Index *int `json:"index"`
}

type CompleteCountParams struct {
	Notes       string `json:"notes,omitempty"`
	PerformedBy string `json:"performed_by,omitempty"`
}

type ItemsByLocationParams struct {
	Location string `json:"location"`
}

type QueryAuditLogsParams struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Operation string `json:"operation,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	CountID   string `json:"count_id,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type CountAuditTrailParams struct {
	CountID string `json:"count_id"`
}

type AuditReportParams struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type VerifyAuditEntryParams struct {
	ID string `json:"id"`
}

type CleanupAuditLogsParams struct {
	RetentionDays int `json:"retention_days"`
}

type ExportAuditReportParams struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// CurrentCountResponse pairs the current count with its facility status.
type CurrentCountResponse struct {
	Count        *count.Count     `json:"count"`
	Active       bool             `json:"active"`
	Locations    []count.Location `json:"locations"`
	Inconsistent bool             `json:"inconsistent"`
}

type ItemsResponse struct {
	Items []count.CountedItem  `json:"items"`
	Total lifecycle.Aggregates `json:"aggregates"`
}

type CleanupResponse struct {
	RetentionDays int `json:"retention_days"`
	DeletedFiles  int `json:"deleted_files"`
}

type AuditLogsResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

// ExportResponse carries a workbook as base64 text.
type ExportResponse struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type StatusResponse struct {
	Inconsistent bool `json:"inconsistent"`
}
