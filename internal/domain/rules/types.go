package rules

import "time"

// Severity classifies a validation result by its errors and warnings
type Severity string

const (
	SeverityNone     Severity = "NONE"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Error and warning codes
const (
	CodeCountInProgress      = "COUNT_IN_PROGRESS"
	CodeNoCountInProgress    = "NO_COUNT_IN_PROGRESS"
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeInvalidDate          = "INVALID_DATE"
	CodeInvalidDateRange     = "INVALID_DATE_RANGE"
	CodeLongCountDuration    = "LONG_COUNT_DURATION"
	CodeFutureStartDate      = "FUTURE_START_DATE"
	CodeInvalidPeopleCount   = "INVALID_PEOPLE_COUNT"
	CodeHighPeopleCount      = "HIGH_PEOPLE_COUNT"
	CodeLastOrderAfterEnd    = "LAST_ORDER_AFTER_END"
	CodeOldLastOrderDate     = "OLD_LAST_ORDER_DATE"
	CodeInvalidCountSequence = "INVALID_COUNT_SEQUENCE"
	CodeFieldTooLong         = "FIELD_TOO_LONG"

	CodeInvalidLocation       = "INVALID_LOCATION"
	CodeInvalidQuantity       = "INVALID_QUANTITY"
	CodeHighQuantity          = "HIGH_QUANTITY"
	CodeFractionalQuantity    = "FRACTIONAL_QUANTITY"
	CodeInvalidPrice          = "INVALID_PRICE"
	CodeZeroPrice             = "ZERO_PRICE"
	CodeHighPrice             = "HIGH_PRICE"
	CodeHighTotalValue        = "HIGH_TOTAL_VALUE"
	CodeDuplicateItem         = "DUPLICATE_ITEM"
	CodeMultiLocationItem     = "MULTI_LOCATION_ITEM"
	CodeInvalidItemCodeFormat = "INVALID_ITEM_CODE_FORMAT"

	CodeInvalidCountStatus = "INVALID_COUNT_STATUS"
	CodeInsufficientItems  = "INSUFFICIENT_ITEMS"
	CodeLowItemCount       = "LOW_ITEM_COUNT"
	CodeNoLocationsCounted = "NO_LOCATIONS_COUNTED"
	CodeZeroTotalValue     = "ZERO_TOTAL_VALUE"
)

// Issue is a single validation error or warning
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Result is the outcome of validating one lifecycle transition
type Result struct {
	Valid     bool      `json:"valid"`
	Errors    []Issue   `json:"errors"`
	Warnings  []Issue   `json:"warnings"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// HasError reports whether an error with the given code is present.
func (r Result) HasError(code string) bool {
	return hasCode(r.Errors, code)
}

// HasWarning reports whether a warning with the given code is present.
func (r Result) HasWarning(code string) bool {
	return hasCode(r.Warnings, code)
}

func hasCode(issues []Issue, code string) bool {
	for _, issue := range issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// StartParams are the caller-supplied fields for starting a count
type StartParams struct {
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	LastOrderDate string `json:"lastOrderDate,omitempty"`
	PeopleOnSite  int    `json:"peopleOnSite"`
	Notes         string `json:"notes,omitempty"`
	PerformedBy   string `json:"performedBy,omitempty"`
}

// ItemInput is a counted line as entered, before numeric parsing
type ItemInput struct {
	Location  string `json:"location"`
	ItemCode  string `json:"itemCode"`
	ItemName  string `json:"itemName"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit"`
	UnitPrice string `json:"unitPrice,omitempty"`
	Notes     string `json:"notes,omitempty"`
	AddedBy   string `json:"addedBy,omitempty"`
}
