package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/shopspring/decimal"
)

const (
	dateLayout = "2006-01-02"

	maxCountDays         = 7
	maxPeopleOnSite      = 20
	maxLastOrderGapDays  = 30
	halfPreviousDivisor  = 2
	warningsHighCutoff   = 5
	warningsMediumCutoff = 2

	maxShortField = 64
	maxNameLen    = 200
	maxNotesLen   = 2000
)

var (
	highQuantity   = decimal.NewFromInt(10_000)
	highPrice      = decimal.NewFromInt(10_000)
	highTotalValue = decimal.NewFromInt(100_000)

	itemCodePattern = regexp.MustCompile(`^\d{1,10}$`)
	amountPattern   = regexp.MustCompile(`^-?\d{1,12}(\.\d{1,6})?$`)

	errInvalidAmount = errors.New("amount must be a plain decimal with at most 12 integer and 6 fractional digits")

	wholeUnits = map[string]struct{}{
		"case": {}, "each": {}, "ea": {}, "box": {}, "dozen": {}, "carton": {},
		"pack": {}, "piece": {}, "pc": {}, "bottle": {}, "can": {}, "bag": {},
	}
)

// Validator applies the count business rules. It never mutates its inputs.
type Validator struct {
	now func() time.Time
}

// Option customizes a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for date-relative rules.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) {
		v.now = clock
	}
}

// New creates a validator.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type collector struct {
	errors   []Issue
	warnings []Issue
}

func (c *collector) fail(field, code, format string, args ...any) {
	c.errors = append(c.errors, Issue{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) warn(field, code, format string, args ...any) {
	c.warnings = append(c.warnings, Issue{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (c *collector) limit(field, value string, maxLen int) {
	if n := utf8.RuneCountInString(value); n > maxLen {
		c.fail(field, CodeFieldTooLong, "%s is %d characters, at most %d allowed", field, n, maxLen)
	}
}

func (v *Validator) result(c *collector) Result {
	errs := c.errors
	if errs == nil {
		errs = []Issue{}
	}
	warnings := c.warnings
	if warnings == nil {
		warnings = []Issue{}
	}
	return Result{
		Valid:     len(errs) == 0,
		Errors:    errs,
		Warnings:  warnings,
		Severity:  Classify(len(errs), len(warnings)),
		Timestamp: v.now().UTC(),
	}
}

// Classify derives the severity from error and warning counts.
func Classify(errorCount, warningCount int) Severity {
	switch {
	case errorCount > 0:
		return SeverityCritical
	case warningCount > warningsHighCutoff:
		return SeverityHigh
	case warningCount > warningsMediumCutoff:
		return SeverityMedium
	case warningCount > 0:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// ValidateCountStart checks a request to start a count.
func (v *Validator) ValidateCountStart(params StartParams, facility *count.Facility) Result {
	c := &collector{}

	if facility != nil && facility.ActiveCount() != nil {
		c.fail("status", CodeCountInProgress, "count %s is already in progress", facility.ActiveCount().ID)
	}

	start, startOK := v.requiredDate(c, "startDate", params.StartDate)
	end, endOK := v.requiredDate(c, "endDate", params.EndDate)

	if startOK && endOK {
		if end.Before(start) {
			c.fail("endDate", CodeInvalidDateRange, "end date %s is before start date %s", params.EndDate, params.StartDate)
		} else if days := int(end.Sub(start).Hours() / 24); days > maxCountDays {
			c.warn("endDate", CodeLongCountDuration, "count spans %d days, more than %d", days, maxCountDays)
		}
	}

	if startOK {
		today := truncateDay(v.now())
		if start.After(today) {
			c.warn("startDate", CodeFutureStartDate, "start date %s is in the future", params.StartDate)
		}
	}

	if params.PeopleOnSite < 1 {
		c.fail("peopleOnSite", CodeInvalidPeopleCount, "people on site must be a positive integer")
	} else if params.PeopleOnSite > maxPeopleOnSite {
		c.warn("peopleOnSite", CodeHighPeopleCount, "%d people on site is unusually high", params.PeopleOnSite)
	}

	if strings.TrimSpace(params.LastOrderDate) != "" {
		lastOrder, err := ParseDate(params.LastOrderDate)
		if err != nil {
			c.fail("lastOrderDate", CodeInvalidDate, "last order date %q is not a valid date", params.LastOrderDate)
		} else {
			if endOK && lastOrder.After(end) {
				c.warn("lastOrderDate", CodeLastOrderAfterEnd, "last order date %s is after the end date", params.LastOrderDate)
			}
			if startOK && start.Sub(lastOrder) > maxLastOrderGapDays*24*time.Hour {
				c.warn("lastOrderDate", CodeOldLastOrderDate, "last order date is more than %d days before the start date", maxLastOrderGapDays)
			}
		}
	}

	c.limit("notes", params.Notes, maxNotesLen)
	c.limit("performedBy", params.PerformedBy, maxShortField)

	if startOK && facility != nil && facility.Counts.First != nil {
		first, err := ParseDate(facility.Counts.First.StartDate)
		if err == nil && start.Before(first) {
			c.fail("startDate", CodeInvalidCountSequence, "start date %s precedes the first count on %s",
				params.StartDate, facility.Counts.First.StartDate)
		}
	}

	return v.result(c)
}

func (v *Validator) requiredDate(c *collector, field, value string) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		c.fail(field, CodeMissingRequiredField, "%s is required", field)
		return time.Time{}, false
	}
	t, err := ParseDate(value)
	if err != nil {
		c.fail(field, CodeInvalidDate, "%s %q is not a valid date", field, value)
		return time.Time{}, false
	}
	return t, true
}

// ValidateItemAdd checks an item against the active count and facility.
func (v *Validator) ValidateItemAdd(item ItemInput, current *count.Count, facility *count.Facility) Result {
	c := &collector{}

	if !current.Active() {
		c.fail("count", CodeNoCountInProgress, "no count is in progress")
	}

	required := []struct{ field, value string }{
		{"location", item.Location},
		{"itemCode", item.ItemCode},
		{"itemName", item.ItemName},
		{"quantity", item.Quantity},
		{"unit", item.Unit},
	}
	missing := make(map[string]bool, len(required))
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing[r.field] = true
			c.fail(r.field, CodeMissingRequiredField, "%s is required", r.field)
		}
	}

	c.limit("location", item.Location, maxShortField)
	c.limit("itemCode", item.ItemCode, maxShortField)
	c.limit("itemName", item.ItemName, maxNameLen)
	c.limit("quantity", item.Quantity, maxShortField)
	c.limit("unit", item.Unit, maxShortField)
	c.limit("unitPrice", item.UnitPrice, maxShortField)
	c.limit("notes", item.Notes, maxNotesLen)
	c.limit("addedBy", item.AddedBy, maxShortField)

	if !missing["location"] && facility != nil {
		if _, ok := facility.Location(strings.TrimSpace(item.Location)); !ok {
			c.fail("location", CodeInvalidLocation, "location %q is not a facility location", item.Location)
		}
	}

	qty, qtyOK := decimal.Zero, false
	if !missing["quantity"] {
		parsed, err := ParseAmount(item.Quantity)
		switch {
		case err != nil:
			c.fail("quantity", CodeInvalidQuantity, "quantity %q is not a number", item.Quantity)
		case !parsed.IsPositive():
			c.fail("quantity", CodeInvalidQuantity, "quantity must be greater than zero")
		default:
			qty, qtyOK = parsed, true
			if parsed.GreaterThan(highQuantity) {
				c.warn("quantity", CodeHighQuantity, "quantity %s exceeds %s", parsed, highQuantity)
			}
			if !parsed.IsInteger() && IsWholeUnit(item.Unit) {
				c.warn("quantity", CodeFractionalQuantity, "fractional quantity %s for unit %q", parsed, item.Unit)
			}
		}
	}

	price, priceOK := decimal.Zero, false
	if strings.TrimSpace(item.UnitPrice) == "" {
		priceOK = true
		c.warn("unitPrice", CodeZeroPrice, "unit price is zero")
	} else {
		parsed, err := ParseAmount(item.UnitPrice)
		switch {
		case err != nil:
			c.fail("unitPrice", CodeInvalidPrice, "unit price %q is not a number", item.UnitPrice)
		case parsed.IsNegative():
			c.fail("unitPrice", CodeInvalidPrice, "unit price cannot be negative")
		default:
			price, priceOK = parsed, true
			if parsed.IsZero() {
				c.warn("unitPrice", CodeZeroPrice, "unit price is zero")
			} else if parsed.GreaterThan(highPrice) {
				c.warn("unitPrice", CodeHighPrice, "unit price %s exceeds %s", parsed, highPrice)
			}
		}
	}

	if qtyOK && priceOK {
		if total := qty.Mul(price); total.GreaterThan(highTotalValue) {
			c.warn("totalValue", CodeHighTotalValue, "line value %s exceeds %s", total, highTotalValue)
		}
	}

	code := strings.TrimSpace(item.ItemCode)
	if !missing["itemCode"] {
		location := strings.TrimSpace(item.Location)
		if current != nil {
			duplicate, elsewhere := false, false
			for _, existing := range current.Items {
				if existing.ItemCode != code {
					continue
				}
				if existing.Location == location {
					duplicate = true
				} else {
					elsewhere = true
				}
			}
			if duplicate {
				c.warn("itemCode", CodeDuplicateItem, "item %s was already counted at %s", code, location)
			}
			if elsewhere {
				c.warn("itemCode", CodeMultiLocationItem, "item %s was also counted at another location", code)
			}
		}
		if !itemCodePattern.MatchString(code) {
			c.warn("itemCode", CodeInvalidItemCodeFormat, "item code %q should be 1-10 digits", code)
		}
	}

	return v.result(c)
}

// ValidateCountComplete checks that the active count can be completed.
func (v *Validator) ValidateCountComplete(current *count.Count, history *count.History) Result {
	c := &collector{}

	if !current.Active() {
		c.fail("status", CodeInvalidCountStatus, "count is not in progress")
		return v.result(c)
	}

	if current.ItemsCounted < 1 {
		c.fail("itemsCounted", CodeInsufficientItems, "at least one item must be counted")
	}

	if prev := history.Latest(); prev != nil && current.ItemsCounted*halfPreviousDivisor < prev.ItemsCounted {
		c.warn("itemsCounted", CodeLowItemCount, "%d items counted, less than half of the %d in count %s",
			current.ItemsCounted, prev.ItemsCounted, prev.CountID)
	}

	if len(current.LocationsCounted) == 0 {
		c.warn("locationsCounted", CodeNoLocationsCounted, "no locations were counted")
	}

	if !current.TotalValue.IsPositive() {
		c.warn("totalValue", CodeZeroTotalValue, "total value is %s", current.TotalValue)
	}

	return v.result(c)
}

// ParseDate accepts a calendar date or an RFC 3339 timestamp and returns the UTC day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return truncateDay(t), nil
}

// NormalizeDate rewrites a parseable date as YYYY-MM-DD.
func NormalizeDate(value string) string {
	t, err := ParseDate(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return t.Format(dateLayout)
}

// ParseAmount parses a quantity or price written as a plain decimal.
// Exponents and oversized values are rejected.
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if !amountPattern.MatchString(value) {
		return decimal.Zero, fmt.Errorf("%q: %w", value, errInvalidAmount)
	}
	return decimal.NewFromString(value)
}

// IsWholeUnit reports whether a unit is only counted in whole numbers.
func IsWholeUnit(unit string) bool {
	u := strings.ToLower(strings.TrimSpace(unit))
	if _, ok := wholeUnits[u]; ok {
		return true
	}
	for _, suffix := range []string{"es", "s"} {
		if trimmed, ok := strings.CutSuffix(u, suffix); ok {
			if _, ok := wholeUnits[trimmed]; ok {
				return true
			}
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
