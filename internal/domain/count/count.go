package count

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatID returns the count identifier for a sequence number.
func FormatID(sequence int) string {
	return fmt.Sprintf("CNT-%04d", sequence)
}

// NewTemplate builds the READY template for the given sequence.
func NewTemplate(sequence int, now time.Time) *Count {
	return &Count{
		ID:               FormatID(sequence),
		Sequence:         sequence,
		Status:           StatusReady,
		Items:            []CountedItem{},
		TotalValue:       decimal.Zero,
		LocationsCounted: []string{},
		CreatedAt:        now,
	}
}

// Recalculate derives itemsCounted, totalValue and locationsCounted from items.
func (c *Count) Recalculate() {
	total := decimal.Zero
	seen := make(map[string]struct{}, len(c.Items))
	locations := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		total = total.Add(item.TotalValue)
		if _, ok := seen[item.Location]; ok {
			continue
		}
		seen[item.Location] = struct{}{}
		locations = append(locations, item.Location)
	}
	sort.Strings(locations)

	c.ItemsCounted = len(c.Items)
	c.TotalValue = total
	c.LocationsCounted = locations
}

// ReferencesLocation reports whether any item was counted at the location.
func (c *Count) ReferencesLocation(locationID string) bool {
	for _, item := range c.Items {
		if item.Location == locationID {
			return true
		}
	}
	return false
}

// ItemsAt returns the items counted at a location, in insertion order.
func (c *Count) ItemsAt(locationID string) []CountedItem {
	items := make([]CountedItem, 0)
	for _, item := range c.Items {
		if item.Location == locationID {
			items = append(items, item)
		}
	}
	return items
}

// Active reports whether the count is in progress.
func (c *Count) Active() bool {
	return c != nil && c.Status == StatusInProgress
}

// Snapshot archives a completed count as a history record.
func (c *Count) Snapshot(id string, archivedAt time.Time) HistoryRecord {
	items := make([]CountedItem, len(c.Items))
	copy(items, c.Items)
	locations := make([]string, len(c.LocationsCounted))
	copy(locations, c.LocationsCounted)

	completedAt := archivedAt
	if c.CompletedAt != nil {
		completedAt = *c.CompletedAt
	}

	return HistoryRecord{
		ID:               id,
		CountID:          c.ID,
		Sequence:         c.Sequence,
		StartDate:        c.StartDate,
		EndDate:          c.EndDate,
		LastOrderDate:    c.LastOrderDate,
		PeopleOnSite:     c.PeopleOnSite,
		ItemsCounted:     c.ItemsCounted,
		TotalValue:       c.TotalValue,
		LocationsCounted: locations,
		Items:            items,
		Notes:            c.Notes,
		PerformedBy:      c.PerformedBy,
		StartedAt:        c.StartedAt,
		CompletedAt:      completedAt,
		ArchivedAt:       archivedAt,
	}
}

// Location returns the facility location with the given id.
func (f *Facility) Location(id string) (Location, bool) {
	for _, loc := range f.Locations {
		if loc.ID == id {
			return loc, true
		}
	}
	return Location{}, false
}

// ActiveCount returns the in-progress count, or nil.
func (f *Facility) ActiveCount() *Count {
	if f.Counts.Current.Active() {
		return f.Counts.Current
	}
	return nil
}

// SyncLocationFlags sets each location's counted flag from the current count.
func (f *Facility) SyncLocationFlags() {
	current := f.ActiveCount()
	for i := range f.Locations {
		f.Locations[i].Counted = current != nil && current.ReferencesLocation(f.Locations[i].ID)
	}
}

// Latest returns the most recent history record, or nil.
func (h *History) Latest() *HistoryRecord {
	if h == nil || len(h.Records) == 0 {
		return nil
	}
	return &h.Records[len(h.Records)-1]
}

// Compare diffs two history records, previous first.
func Compare(previous, current HistoryRecord) Comparison {
	cmp := Comparison{
		PreviousCountID: previous.CountID,
		CurrentCountID:  current.CountID,
		PreviousItems:   previous.ItemsCounted,
		CurrentItems:    current.ItemsCounted,
		ItemDelta:       current.ItemsCounted - previous.ItemsCounted,
		PreviousValue:   previous.TotalValue,
		CurrentValue:    current.TotalValue,
		ValueDelta:      current.TotalValue.Sub(previous.TotalValue),
	}
	if !previous.TotalValue.IsZero() {
		pct := cmp.ValueDelta.Div(previous.TotalValue).Mul(hundred).Round(2)
		cmp.PercentChange = &pct
		cmp.PercentApplicable = true
	}
	return cmp
}

// Compare diffs the two most recent records.
func (h *History) Compare() (Comparison, error) {
	if h == nil || len(h.Records) < 2 {
		return Comparison{}, ErrInsufficientHistory
	}
	n := len(h.Records)
	return Compare(h.Records[n-2], h.Records[n-1]), nil
}
