// Package export renders counts and audit reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary = "Summary"
	SheetItems   = "Items"
	SheetReport  = "Report"
	SheetEntries = "Entries"
)

var itemHeaders = []string{
	"Location", "Item Code", "Item Name", "Quantity", "Unit", "Unit Price", "Total Value", "Added At", "Added By", "Notes",
}

var entryHeaders = []string{
	"Id", "Timestamp", "Operation", "Category", "Severity", "User", "Session", "Count", "Checksum",
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		if err := f.SetCellValue(sheet, cell(i+1, row), v); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// CountWorkbook writes a count sheet: a summary and one row per counted item.
func CountWorkbook(w io.Writer, facility *count.Facility, c *count.Count) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return fmt.Errorf("creating items sheet: %w", err)
	}

	summary := [][]any{
		{"Facility", facility.ID},
		{"Facility Name", facility.Name},
		{"Count", c.ID},
		{"Status", string(c.Status)},
		{"Start Date", c.StartDate},
		{"End Date", c.EndDate},
		{"Last Order Date", c.LastOrderDate},
		{"People On Site", c.PeopleOnSite},
		{"Items Counted", c.ItemsCounted},
		{"Total Value", c.TotalValue.InexactFloat64()},
		{"Locations Counted", strings.Join(c.LocationsCounted, ", ")},
		{"Performed By", c.PerformedBy},
		{"Started At", formatTime(c.StartedAt)},
		{"Completed At", formatTime(c.CompletedAt)},
		{"Notes", c.Notes},
	}
	for i, row := range summary {
		if err := writeRow(f, SheetSummary, i+1, row...); err != nil {
			return err
		}
	}

	headers := make([]any, len(itemHeaders))
	for i, h := range itemHeaders {
		headers[i] = h
	}
	if err := writeRow(f, SheetItems, 1, headers...); err != nil {
		return err
	}
	for i, item := range c.Items {
		addedAt := item.AddedAt
		err := writeRow(f, SheetItems, i+2,
			item.Location,
			item.ItemCode,
			item.ItemName,
			item.Quantity.InexactFloat64(),
			item.Unit,
			item.UnitPrice.InexactFloat64(),
			item.TotalValue.InexactFloat64(),
			formatTime(&addedAt),
			item.AddedBy,
			item.Notes,
		)
		if err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// AuditWorkbook writes an audit report summary and the entries it covers.
func AuditWorkbook(w io.Writer, report *audit.Report, entries []audit.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetReport); err != nil {
		return fmt.Errorf("naming report sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetEntries); err != nil {
		return fmt.Errorf("creating entries sheet: %w", err)
	}

	rows := [][]any{
		{"Start Date", report.StartDate},
		{"End Date", report.EndDate},
		{"Generated At", report.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total Entries", report.TotalEntries},
		{"Validation Failures", report.ValidationFailures},
		{"Integrity Checks", report.IntegrityChecks},
		{"Integrity Failures", report.IntegrityFailures},
		{},
		{"Operation", "Entries"},
	}
	ops := make([]string, 0, len(report.ByOperation))
	for op := range report.ByOperation {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	for _, op := range ops {
		rows = append(rows, []any{op, report.ByOperation[audit.Operation(op)]})
	}
	rows = append(rows, []any{}, []any{"User", "Entries"})
	users := make([]string, 0, len(report.ByUser))
	for u := range report.ByUser {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		rows = append(rows, []any{u, report.ByUser[u]})
	}
	for i, row := range rows {
		if err := writeRow(f, SheetReport, i+1, row...); err != nil {
			return err
		}
	}

	headers := make([]any, len(entryHeaders))
	for i, h := range entryHeaders {
		headers[i] = h
	}
	if err := writeRow(f, SheetEntries, 1, headers...); err != nil {
		return err
	}
	for i, e := range entries {
		ts := e.Timestamp
		err := writeRow(f, SheetEntries, i+2,
			e.ID,
			formatTime(&ts),
			string(e.Operation),
			string(e.Category),
			string(e.Metadata.Severity),
			e.Metadata.UserID,
			e.Metadata.SessionID,
			e.CountID(),
			e.Checksum,
		)
		if err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
