package count

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a count
type Status string

const (
	StatusReady      Status = "READY"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// CountedItem is one counted line recorded against a count
type CountedItem struct {
	Location   string          `json:"location" validate:"required"`
	ItemCode   string          `json:"itemCode" validate:"required"`
	ItemName   string          `json:"itemName" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit" validate:"required"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TotalValue decimal.Decimal `json:"totalValue"`
	Notes      string          `json:"notes,omitempty"`
	AddedAt    time.Time       `json:"addedAt"`
	AddedBy    string          `json:"addedBy,omitempty"`
}

// Count is one physical inventory counting exercise
type Count struct {
	ID               string          `json:"countId" validate:"required"`
	Sequence         int             `json:"sequence" validate:"min=1"`
	Status           Status          `json:"status" validate:"required,oneof=READY IN_PROGRESS COMPLETED"`
	StartDate        string          `json:"startDate,omitempty"`
	EndDate          string          `json:"endDate,omitempty"`
	LastOrderDate    string          `json:"lastOrderDate,omitempty"`
	PeopleOnSite     int             `json:"peopleOnSite,omitempty" validate:"min=0"`
	Items            []CountedItem   `json:"items" validate:"dive"`
	ItemsCounted     int             `json:"itemsCounted"`
	TotalValue       decimal.Decimal `json:"totalValue"`
	LocationsCounted []string        `json:"locationsCounted"`
	Notes            string          `json:"notes,omitempty"`
	PerformedBy      string          `json:"performedBy,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
}

// Location is a physical storage area referenced by counted items
type Location struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name,omitempty"`
	Zone    string `json:"zone,omitempty"`
	Counted bool   `json:"counted"`
}

// CountRef points at the first count ever performed in the facility
type CountRef struct {
	ID          string    `json:"countId" validate:"required"`
	StartDate   string    `json:"startDate" validate:"required"`
	CompletedAt time.Time `json:"completedAt"`
}

// Counts holds the facility's count references
type Counts struct {
	First   *CountRef `json:"firstCount,omitempty"`
	Current *Count    `json:"secondCount,omitempty"`
}

// Metadata tracks document-level counters
type Metadata struct {
	CompletedCounts int       `json:"completedCounts" validate:"min=0"`
	LastUpdated     time.Time `json:"lastUpdated"`
	Version         int       `json:"version" validate:"min=0"`
}

// Facility is the configuration document for the single facility served by a store
type Facility struct {
	ID        string     `json:"id" validate:"required"`
	Name      string     `json:"name,omitempty"`
	Locations []Location `json:"locations" validate:"required,min=1,dive"`
	Counts    Counts     `json:"counts"`
	Metadata  Metadata   `json:"metadata"`
}

// HistoryRecord is an immutable snapshot of a completed count
type HistoryRecord struct {
	ID               string          `json:"id" validate:"required"`
	CountID          string          `json:"countId" validate:"required"`
	Sequence         int             `json:"sequence"`
	StartDate        string          `json:"startDate"`
	EndDate          string          `json:"endDate"`
	LastOrderDate    string          `json:"lastOrderDate,omitempty"`
	PeopleOnSite     int             `json:"peopleOnSite"`
	ItemsCounted     int             `json:"itemsCounted"`
	TotalValue       decimal.Decimal `json:"totalValue"`
	LocationsCounted []string        `json:"locationsCounted"`
	Items            []CountedItem   `json:"items" validate:"dive"`
	Notes            string          `json:"notes,omitempty"`
	PerformedBy      string          `json:"performedBy,omitempty"`
	StartedAt        *time.Time      `json:"startedAt,omitempty"`
	CompletedAt      time.Time       `json:"completedAt"`
	ArchivedAt       time.Time       `json:"archivedAt"`
}

// History is the ordered archive of completed counts, oldest first
type History struct {
	Records []HistoryRecord `json:"records" validate:"dive"`
}

// State bundles the two documents a store persists
type State struct {
	Facility *Facility
	History  *History
}

// Comparison diffs the two most recent history records
type Comparison struct {
	PreviousCountID   string           `json:"previousCountId"`
	CurrentCountID    string           `json:"currentCountId"`
	PreviousItems     int              `json:"previousItemsCounted"`
	CurrentItems      int              `json:"currentItemsCounted"`
	ItemDelta         int              `json:"itemDelta"`
	PreviousValue     decimal.Decimal  `json:"previousTotalValue"`
	CurrentValue      decimal.Decimal  `json:"currentTotalValue"`
	ValueDelta        decimal.Decimal  `json:"valueDelta"`
	PercentChange     *decimal.Decimal `json:"percentChange"`
	PercentApplicable bool             `json:"percentApplicable"`
}
