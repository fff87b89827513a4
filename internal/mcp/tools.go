package mcp

// ToolDefinition describes a callable tool
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func integer(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Count lifecycle
		{
			Name:        "start_count",
			Description: "Start the current READY count. Fails with COUNT_IN_PROGRESS while another count is active; validation errors are returned with accepted=false",
			InputSchema: object(map[string]any{
				"start_date":      str("First day of the count (YYYY-MM-DD)"),
				"end_date":        str("Last day of the count (YYYY-MM-DD), on or after start_date"),
				"last_order_date": str("Date of the last supplier order (YYYY-MM-DD)"),
				"people_on_site":  integer("Number of people on site"),
				"notes":           str("Free text notes"),
				"performed_by":    str("Person responsible for the count"),
			}, "start_date", "end_date", "people_on_site"),
		},
		{
			Name:        "add_item",
			Description: "Record a counted item against the active count. Returns the stored item, its index and the new totals",
			InputSchema: object(map[string]any{
				"location":   str("Location id; call list_locations for valid ids"),
				"item_code":  str("Item code, normally 1-10 digits"),
				"item_name":  str("Item name"),
				"quantity":   str("Counted quantity as a decimal string"),
				"unit":       str("Unit of measure, e.g. kg or each"),
				"unit_price": str("Unit price as a decimal string"),
				"notes":      str("Free text notes"),
				"added_by":   str("Person who counted the item"),
			}, "location", "item_code", "item_name", "quantity", "unit"),
		},
		{
			Name:        "delete_item",
			Description: "Remove an item from the active count by its zero-based index",
			InputSchema: object(map[string]any{
				"index": integer("Zero-based item index from list_items"),
			}, "index"),
		},
		{
			Name:        "complete_count",
			Description: "Complete the active count, archive it to history and open the next READY count",
			InputSchema: object(map[string]any{
				"notes":        str("Closing notes"),
				"performed_by": str("Person who closed the count"),
			}),
		},

		// Queries
		{
			Name:        "get_current_count",
			Description: "Get the current count with location status",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "list_items",
			Description: "List the items of the current count in insertion order with totals",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "items_by_location",
			Description: "List the current count's items at one location",
			InputSchema: object(map[string]any{
				"location": str("Location id"),
			}, "location"),
		},
		{
			Name:        "list_locations",
			Description: "List facility locations and whether each has items in the current count",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "get_history",
			Description: "List completed counts, oldest first",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "compare_counts",
			Description: "Compare the two most recent completed counts",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "export_count_xlsx",
			Description: "Export the current count as an XLSX workbook (base64)",
			InputSchema: object(map[string]any{}),
		},
		{
			Name:        "clear_inconsistent",
			Description: "Re-enable mutations after an operator has reconciled the store",
			InputSchema: object(map[string]any{}),
		},

		// Audit
		{
			Name:        "query_audit_logs",
			Description: "Query audit entries, newest first",
			InputSchema: object(map[string]any{
				"start_date": str("First day to include (YYYY-MM-DD)"),
				"end_date":   str("Last day to include (YYYY-MM-DD)"),
				"operation":  str("Operation name, e.g. ITEM_ADD"),
				"user_id":    str("User id"),
				"count_id":   str("Count id, e.g. CNT-0002"),
				"severity":   str("LOW, MEDIUM, HIGH or CRITICAL"),
				"limit":      integer("Maximum entries (default 100)"),
			}),
		},
		{
			Name:        "count_audit_trail",
			Description: "Get the chronological audit trail of one count",
			InputSchema: object(map[string]any{
				"count_id": str("Count id"),
			}, "count_id"),
		},
		{
			Name:        "audit_report",
			Description: "Summarise audit activity between two inclusive days",
			InputSchema: object(map[string]any{
				"start_date": str("First day (YYYY-MM-DD)"),
				"end_date":   str("Last day (YYYY-MM-DD)"),
			}),
		},
		{
			Name:        "export_audit_report_xlsx",
			Description: "Export an audit report and its entries as an XLSX workbook (base64)",
			InputSchema: object(map[string]any{
				"start_date": str("First day (YYYY-MM-DD)"),
				"end_date":   str("Last day (YYYY-MM-DD)"),
			}),
		},
		{
			Name:        "verify_audit_entry",
			Description: "Recompute the checksum of a stored audit entry",
			InputSchema: object(map[string]any{
				"id": str("Audit entry id"),
			}, "id"),
		},
		{
			Name:        "cleanup_audit_logs",
			Description: "Delete audit day files older than the retention period",
			InputSchema: object(map[string]any{
				"retention_days": integer("Days to keep"),
			}, "retention_days"),
		},
	}
}
