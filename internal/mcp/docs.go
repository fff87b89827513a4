package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `stockcount records physical inventory counts for one facility.

Core concepts:
- Count: one counting exercise (CNT-0001, CNT-0002, ...). Status READY -> IN_PROGRESS -> COMPLETED.
- At most one count is IN_PROGRESS. Completing it archives a snapshot to history and opens the next READY count.
- Item: one counted line (location, item code, name, quantity, unit, unit price). Totals are recalculated on every change.
- Validation: errors reject a request (accepted=false, nothing changes); warnings are reported but do not block.
- Audit: every change is appended to a checksummed daily audit log.

Default workflow:
1) get_current_count to see status and locations.
2) start_count with dates and people on site.
3) add_item for each counted line; delete_item by index to correct mistakes.
4) complete_count when done; compare_counts once two counts exist.

Identity: HTTP callers should send X-User-Id; stdio callers may pass _meta.user_id.

Docs:
- stockcount://docs/rules (validation codes)
- stockcount://docs/audit (audit trail)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "stockcount://docs/rules",
		Name:        "docs_rules",
		Title:       "Validation rules",
		Description: "Error and warning codes returned by start_count, add_item and complete_count.",
		Content: `# Validation rules

Errors block the operation. Warnings are informational.

## start_count

Errors: COUNT_IN_PROGRESS, MISSING_REQUIRED_FIELD, INVALID_DATE, INVALID_DATE_RANGE,
INVALID_PEOPLE_COUNT, INVALID_COUNT_SEQUENCE.

Warnings: LONG_COUNT_DURATION (more than 7 days), FUTURE_START_DATE, HIGH_PEOPLE_COUNT
(more than 20), LAST_ORDER_AFTER_END, OLD_LAST_ORDER_DATE (more than 30 days before start).

## add_item

Errors: NO_COUNT_IN_PROGRESS, MISSING_REQUIRED_FIELD, INVALID_LOCATION, INVALID_QUANTITY,
INVALID_PRICE, FIELD_TOO_LONG. Quantities and prices are plain decimals with at most
12 integer and 6 fractional digits; exponents are rejected.

Warnings: HIGH_QUANTITY, FRACTIONAL_QUANTITY (whole units such as each or case),
ZERO_PRICE, HIGH_PRICE, HIGH_TOTAL_VALUE, DUPLICATE_ITEM, MULTI_LOCATION_ITEM,
INVALID_ITEM_CODE_FORMAT.

## complete_count

Errors: INVALID_COUNT_STATUS, INSUFFICIENT_ITEMS.

Warnings: LOW_ITEM_COUNT (fewer than half the items of the previous count), NO_LOCATIONS_COUNTED,
ZERO_TOTAL_VALUE.

## Severity

NONE when clean. Any error makes the result CRITICAL. Otherwise more than 5 warnings is
HIGH, more than 2 is MEDIUM, and 1-2 is LOW.
`,
	},
	{
		URI:         "stockcount://docs/audit",
		Name:        "docs_audit",
		Title:       "Audit trail",
		Description: "How audit entries are stored, queried and verified.",
		Content: `# Audit trail

Entries are JSON lines in one file per UTC day. Each entry carries an id, timestamp,
operation, category, data, caller metadata and a SHA-256 checksum of its canonical form.
Sensitive keys (passwords, tokens, secrets) are dropped before writing. An entry larger
than 1 MiB is refused and the operation it records is not applied.

When a lifecycle change is rolled back because its audit entries could not all be written,
an OPERATION_ROLLED_BACK entry lists the cancelled entry ids. count_audit_trail keeps the
cancelled entries in the timeline but leaves them out of the summary.

- query_audit_logs filters by day range, operation, user, count and severity. Newest first, default limit 100.
- count_audit_trail returns one count's entries oldest first.
- audit_report summarises a day range by operation, severity and user.
- verify_audit_entry recomputes a checksum; a mismatch means the line was edited.
- cleanup_audit_logs deletes whole day files older than the retention period.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
