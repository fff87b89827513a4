package count

import "context"

// Repository persists the facility and history documents.
//
// Load returns private copies: callers may mutate them freely and nothing is
// visible to other callers until one of the save methods succeeds.
type Repository interface {
	Load(ctx context.Context) (*State, error)
	SaveFacility(ctx context.Context, facility *Facility) error
	SaveAll(ctx context.Context, facility *Facility, history *History) error
}
