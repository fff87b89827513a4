package audit

import "time"

// Operation identifies the kind of audited event
type Operation string

const (
	OpCountStart        Operation = "COUNT_START"
	OpItemAdd           Operation = "ITEM_ADD"
	OpItemDelete        Operation = "ITEM_DELETE"
	OpCountComplete     Operation = "COUNT_COMPLETE"
	OpValidationFailure Operation = "VALIDATION_FAILURE"
	OpValidationWarning Operation = "VALIDATION_WARNING"
	OpIntegrityCheck    Operation = "INTEGRITY_CHECK"
	OpLogCleanup        Operation = "LOG_CLEANUP"
	OpRollback          Operation = "OPERATION_ROLLED_BACK"
)

// Category groups operations for reporting
type Category string

const (
	CategoryCountLifecycle Category = "COUNT_LIFECYCLE"
	CategoryItemManagement Category = "ITEM_MANAGEMENT"
	CategoryValidation     Category = "VALIDATION"
	CategorySecurity       Category = "SECURITY"
	CategorySystem         Category = "SYSTEM"
)

// Severity ranks an audit entry
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var categories = map[Operation]Category{
	OpCountStart:        CategoryCountLifecycle,
	OpItemAdd:           CategoryItemManagement,
	OpItemDelete:        CategoryItemManagement,
	OpCountComplete:     CategoryCountLifecycle,
	OpValidationFailure: CategoryValidation,
	OpValidationWarning: CategoryValidation,
	OpIntegrityCheck:    CategorySecurity,
	OpLogCleanup:        CategorySystem,
	OpRollback:          CategoryCountLifecycle,
}

var severities = map[Operation]Severity{
	OpCountStart:        SeverityHigh,
	OpItemAdd:           SeverityHigh,
	OpItemDelete:        SeverityHigh,
	OpCountComplete:     SeverityCritical,
	OpValidationFailure: SeverityMedium,
	OpValidationWarning: SeverityLow,
	OpIntegrityCheck:    SeverityLow,
	OpLogCleanup:        SeverityMedium,
	OpRollback:          SeverityCritical,
}

// CategoryOf returns the category an operation is filed under.
func CategoryOf(op Operation) Category {
	if c, ok := categories[op]; ok {
		return c
	}
	return CategorySystem
}

// Metadata describes who triggered an audited event
type Metadata struct {
	Severity  Severity `json:"severity"`
	UserID    string   `json:"userId"`
	SessionID string   `json:"sessionId"`
	IPAddress string   `json:"ipAddress"`
	UserAgent string   `json:"userAgent"`
}

// Entry is one line of the audit log
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Operation Operation      `json:"operation"`
	Category  Category       `json:"category"`
	Data      map[string]any `json:"data"`
	Metadata  Metadata       `json:"metadata"`
	Checksum  string         `json:"checksum"`
}

// CountID returns the count the entry refers to, if any.
func (e Entry) CountID() string {
	if e.Data == nil {
		return ""
	}
	id, _ := e.Data["countId"].(string)
	return id
}

// Filters narrows a log query. Dates are inclusive UTC days (YYYY-MM-DD).
type Filters struct {
	StartDate string    `json:"startDate,omitempty"`
	EndDate   string    `json:"endDate,omitempty"`
	Operation Operation `json:"operation,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	CountID   string    `json:"countId,omitempty"`
	Severity  Severity  `json:"severity,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// TrailSummary tallies the lifecycle events of one count
type TrailSummary struct {
	Starts             int `json:"starts"`
	ItemsAdded         int `json:"itemsAdded"`
	ItemsDeleted       int `json:"itemsDeleted"`
	Completed          int `json:"completed"`
	ValidationFailures int `json:"validationFailures"`
	ValidationWarnings int `json:"validationWarnings"`
	RolledBack         int `json:"rolledBack"`
}

// CountTrail is the chronological audit timeline of one count. Entries
// cancelled by an OPERATION_ROLLED_BACK entry stay listed but are not tallied.
type CountTrail struct {
	CountID  string       `json:"countId"`
	Entries  []Entry      `json:"entries"`
	Summary  TrailSummary `json:"summary"`
	Complete bool         `json:"complete"`
}

// Report aggregates audit activity over a date range
type Report struct {
	StartDate          string            `json:"startDate"`
	EndDate            string            `json:"endDate"`
	TotalEntries       int               `json:"totalEntries"`
	ByOperation        map[Operation]int `json:"byOperation"`
	BySeverity         map[Severity]int  `json:"bySeverity"`
	ByUser             map[string]int    `json:"byUser"`
	ValidationFailures int               `json:"validationFailures"`
	IntegrityChecks    int               `json:"integrityChecks"`
	IntegrityFailures  int               `json:"integrityFailures"`
	GeneratedAt        time.Time         `json:"generatedAt"`
}

// IntegrityResult reports whether a stored entry still matches its checksum
type IntegrityResult struct {
	ID               string    `json:"id"`
	Valid            bool      `json:"valid"`
	StoredChecksum   string    `json:"storedChecksum"`
	ComputedChecksum string    `json:"computedChecksum"`
	Day              string    `json:"day"`
	CheckedAt        time.Time `json:"checkedAt"`
}
