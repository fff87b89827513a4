package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/domain/lifecycle"
	"github.com/rpggio/stockcount/internal/domain/rules"
	"github.com/rpggio/stockcount/internal/export"
)

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CountService defines the count lifecycle operations needed by MCP.
type CountService interface {
	Start(ctx context.Context, params rules.StartParams) (*lifecycle.StartResult, error)
	AddItem(ctx context.Context, input rules.ItemInput) (*lifecycle.AddItemResult, error)
	DeleteItem(ctx context.Context, index int) (*lifecycle.DeleteItemResult, error)
	Complete(ctx context.Context, req lifecycle.CompleteRequest) (*lifecycle.CompleteResult, error)
	Current(ctx context.Context) (*count.Count, error)
	Facility(ctx context.Context) (*count.Facility, error)
	Items(ctx context.Context) ([]count.CountedItem, error)
	ItemsByLocation(ctx context.Context, locationID string) ([]count.CountedItem, error)
	Locations(ctx context.Context) ([]count.Location, error)
	History(ctx context.Context) ([]count.HistoryRecord, error)
	Comparison(ctx context.Context) (*count.Comparison, error)
	Inconsistent() bool
	ClearInconsistent()
}

// AuditService defines audit trail operations needed by MCP.
type AuditService interface {
	QueryLogs(ctx context.Context, filters audit.Filters) ([]audit.Entry, error)
	GetCountAuditTrail(ctx context.Context, countID string) (*audit.CountTrail, error)
	GenerateAuditReport(ctx context.Context, startDate, endDate string) (*audit.Report, error)
	VerifyLogIntegrity(ctx context.Context, id string) (*audit.IntegrityResult, error)
	CleanupOldLogs(ctx context.Context, retentionDays int) (int, error)
}

// Handler dispatches MCP commands.
type Handler struct {
	counts CountService
	audit  AuditService
}

// NewHandler creates a new MCP handler.
func NewHandler(counts CountService, auditSvc AuditService) *Handler {
	return &Handler{
		counts: counts,
		audit:  auditSvc,
	}
}

// Handle dispatches MCP requests to domain services. Caller identity travels
// in ctx as audit.Metadata.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "start_count":
		var req StartCountParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return wrap(h.counts.Start(ctx, rules.StartParams{
			StartDate:     req.StartDate,
			EndDate:       req.EndDate,
			LastOrderDate: req.LastOrderDate,
			PeopleOnSite:  req.PeopleOnSite,
			Notes:         req.Notes,
			PerformedBy:   req.PerformedBy,
		}))
	case "add_item":
		var req AddItemParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return wrap(h.counts.AddItem(ctx, rules.ItemInput{
			Location:  req.Location,
			ItemCode:  req.ItemCode,
			ItemName:  req.ItemName,
			Quantity:  req.Quantity,
			Unit:      req.Unit,
			UnitPrice: req.UnitPrice,
			Notes:     req.Notes,
			AddedBy:   req.AddedBy,
		}))
	case "delete_item":
		var req DeleteItemParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.Index == nil {
			return nil, invalidParams("index is required")
		}
		return wrap(h.counts.DeleteItem(ctx, *req.Index))
	case "complete_count":
		var req CompleteCountParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return wrap(h.counts.Complete(ctx, lifecycle.CompleteRequest{
			Notes:       req.Notes,
			PerformedBy: req.PerformedBy,
		}))
	case "get_current_count":
		facility, err := h.counts.Facility(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		cur := facility.Counts.Current
		return CurrentCountResponse{
			Count:        cur,
			Active:       cur.Active(),
			Locations:    facility.Locations,
			Inconsistent: h.counts.Inconsistent(),
		}, nil
	case "list_items":
		cur, err := h.counts.Current(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		items := cur.Items
		if items == nil {
			items = []count.CountedItem{}
		}
		return ItemsResponse{
			Items: items,
			Total: lifecycle.Aggregates{
				ItemsCounted:     cur.ItemsCounted,
				TotalValue:       cur.TotalValue,
				LocationsCounted: cur.LocationsCounted,
			},
		}, nil
	case "items_by_location":
		var req ItemsByLocationParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.Location == "" {
			return nil, invalidParams("location is required")
		}
		return wrap(h.counts.ItemsByLocation(ctx, req.Location))
	case "list_locations":
		return wrap(h.counts.Locations(ctx))
	case "get_history":
		return wrap(h.counts.History(ctx))
	case "compare_counts":
		return wrap(h.counts.Comparison(ctx))
	case "clear_inconsistent":
		h.counts.ClearInconsistent()
		return StatusResponse{Inconsistent: h.counts.Inconsistent()}, nil
	case "query_audit_logs":
		var req QueryAuditLogsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		entries, err := h.audit.QueryLogs(ctx, audit.Filters{
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Operation: audit.Operation(req.Operation),
			UserID:    req.UserID,
			CountID:   req.CountID,
			Severity:  audit.Severity(req.Severity),
			Limit:     req.Limit,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return AuditLogsResponse{Entries: entries, Count: len(entries)}, nil
	case "count_audit_trail":
		var req CountAuditTrailParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.CountID == "" {
			return nil, invalidParams("count_id is required")
		}
		return wrap(h.audit.GetCountAuditTrail(ctx, req.CountID))
	case "audit_report":
		var req AuditReportParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return wrap(h.audit.GenerateAuditReport(ctx, req.StartDate, req.EndDate))
	case "verify_audit_entry":
		var req VerifyAuditEntryParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ID == "" {
			return nil, invalidParams("id is required")
		}
		return wrap(h.audit.VerifyLogIntegrity(ctx, req.ID))
	case "cleanup_audit_logs":
		var req CleanupAuditLogsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		deleted, err := h.audit.CleanupOldLogs(ctx, req.RetentionDays)
		if err != nil {
			return nil, mapError(err)
		}
		return CleanupResponse{RetentionDays: req.RetentionDays, DeletedFiles: deleted}, nil
	case "export_count_xlsx":
		facility, err := h.counts.Facility(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		var buf bytes.Buffer
		if err := export.CountWorkbook(&buf, facility, facility.Counts.Current); err != nil {
			return nil, err
		}
		return ExportResponse{
			FileName: facility.Counts.Current.ID + ".xlsx",
			MimeType: xlsxMimeType,
			Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		}, nil
	case "export_audit_report_xlsx":
		var req ExportAuditReportParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		report, err := h.audit.GenerateAuditReport(ctx, req.StartDate, req.EndDate)
		if err != nil {
			return nil, mapError(err)
		}
		entries, err := h.audit.QueryLogs(ctx, audit.Filters{StartDate: report.StartDate, EndDate: report.EndDate, Limit: max(report.TotalEntries, 1)})
		if err != nil {
			return nil, mapError(err)
		}
		var buf bytes.Buffer
		if err := export.AuditWorkbook(&buf, report, entries); err != nil {
			return nil, err
		}
		return ExportResponse{
			FileName: fmt.Sprintf("audit-report-%s.xlsx", report.GeneratedAt.Format("20060102")),
			MimeType: xlsxMimeType,
			Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
		}, nil
	default:
		return nil, &APIError{Code: "METHOD_NOT_FOUND", Message: fmt.Sprintf("unknown method: %s", method)}
	}
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

// wrap maps the error of a service call and passes the value through.
func wrap(value any, err error) (any, error) {
	if err != nil {
		return nil, mapError(err)
	}
	return value, nil
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
