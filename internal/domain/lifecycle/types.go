package lifecycle

import (
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/domain/rules"
	"github.com/shopspring/decimal"
)

// CompleteRequest carries the optional closing fields of a count.
type CompleteRequest struct {
	Notes       string `json:"notes,omitempty"`
	PerformedBy string `json:"performedBy,omitempty"`
}

// Aggregates are the derived totals of the active count.
type Aggregates struct {
	ItemsCounted     int             `json:"itemsCounted"`
	TotalValue       decimal.Decimal `json:"totalValue"`
	LocationsCounted []string        `json:"locationsCounted"`
}

func aggregatesOf(c *count.Count) Aggregates {
	return Aggregates{
		ItemsCounted:     c.ItemsCounted,
		TotalValue:       c.TotalValue,
		LocationsCounted: c.LocationsCounted,
	}
}

// StartResult is the outcome of Start. Accepted is false when validation
// rejected the request; nothing was changed in that case.
type StartResult struct {
	Accepted   bool         `json:"accepted"`
	Count      *count.Count `json:"count,omitempty"`
	Validation rules.Result `json:"validation"`
}

// AddItemResult is the outcome of AddItem.
type AddItemResult struct {
	Accepted   bool               `json:"accepted"`
	Item       *count.CountedItem `json:"item,omitempty"`
	Index      int                `json:"index"`
	Aggregates Aggregates         `json:"aggregates"`
	Validation rules.Result       `json:"validation"`
}

// DeleteItemResult is the outcome of DeleteItem.
type DeleteItemResult struct {
	Item            count.CountedItem `json:"item"`
	LocationCleared bool              `json:"locationCleared"`
	Aggregates      Aggregates        `json:"aggregates"`
}

// CompleteResult is the outcome of Complete.
type CompleteResult struct {
	Accepted   bool                 `json:"accepted"`
	Record     *count.HistoryRecord `json:"record,omitempty"`
	Next       *count.Count         `json:"next,omitempty"`
	Validation rules.Result         `json:"validation"`
}
