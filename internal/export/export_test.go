package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/export"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCountWorkbook(t *testing.T) {
	started := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	c := count.NewTemplate(1, started)
	c.Status = count.StatusInProgress
	c.StartDate = "2025-01-01"
	c.StartedAt = &started
	c.Items = []count.CountedItem{{
		Location:   "FREEZER-A",
		ItemCode:   "10010421",
		ItemName:   "Frozen peas",
		Quantity:   decimal.NewFromInt(12),
		Unit:       "case",
		UnitPrice:  decimal.RequireFromString("18.5"),
		TotalValue: decimal.NewFromInt(222),
		AddedAt:    started,
	}}
	c.Recalculate()
	facility := &count.Facility{ID: "main", Name: "Main kitchen"}

	var buf bytes.Buffer
	require.NoError(t, export.CountWorkbook(&buf, facility, c))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{export.SheetSummary, export.SheetItems}, f.GetSheetList())

	rows, err := f.GetRows(export.SheetItems)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Item Code", rows[0][1])
	require.Equal(t, "10010421", rows[1][1])
	require.Equal(t, "222", rows[1][6])

	id, err := f.GetCellValue(export.SheetSummary, "B3")
	require.NoError(t, err)
	require.Equal(t, "CNT-0001", id)
}

func TestAuditWorkbook(t *testing.T) {
	report := &audit.Report{
		StartDate:    "2025-01-01",
		EndDate:      "2025-01-31",
		TotalEntries: 2,
		ByOperation:  map[audit.Operation]int{audit.OpItemAdd: 1, audit.OpCountStart: 1},
		BySeverity:   map[audit.Severity]int{audit.SeverityHigh: 1, audit.SeverityMedium: 1},
		ByUser:       map[string]int{"alice": 2},
		GeneratedAt:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	entries := []audit.Entry{{
		ID:        "1",
		Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Operation: audit.OpItemAdd,
		Category:  audit.CategoryItemManagement,
		Data:      map[string]any{"countId": "CNT-0001"},
		Metadata:  audit.Metadata{Severity: audit.SeverityMedium, UserID: "alice"},
		Checksum:  "abc",
	}}

	var buf bytes.Buffer
	require.NoError(t, export.AuditWorkbook(&buf, report, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetEntries)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "CNT-0001", rows[1][7])

	total, err := f.GetCellValue(export.SheetReport, "B4")
	require.NoError(t, err)
	require.Equal(t, "2", total)
}
