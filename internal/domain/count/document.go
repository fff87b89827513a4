package count

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

var validate = validator.New()

// ValidateFacility checks a facility document before it is trusted or persisted.
func ValidateFacility(f *Facility) error {
	if f == nil {
		return fmt.Errorf("%w: missing facility", ErrInvalidDocument)
	}
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDocument, describe(err))
	}

	seen := make(map[string]struct{}, len(f.Locations))
	for _, loc := range f.Locations {
		if _, ok := seen[loc.ID]; ok {
			return fmt.Errorf("%w: duplicate location %q", ErrInvalidDocument, loc.ID)
		}
		seen[loc.ID] = struct{}{}
	}

	if cur := f.Counts.Current; cur != nil {
		if cur.ItemsCounted != len(cur.Items) {
			return fmt.Errorf("%w: count %s itemsCounted %d does not match %d items",
				ErrInvalidDocument, cur.ID, cur.ItemsCounted, len(cur.Items))
		}
		for _, item := range cur.Items {
			if _, ok := seen[item.Location]; !ok {
				return fmt.Errorf("%w: item %s references unknown location %q", ErrInvalidDocument, item.ItemCode, item.Location)
			}
		}
	}
	return nil
}

// ValidateHistory checks a history document before it is trusted or persisted.
func ValidateHistory(h *History) error {
	if h == nil {
		return fmt.Errorf("%w: missing history", ErrInvalidDocument)
	}
	if err := validate.Struct(h); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDocument, describe(err))
	}
	return nil
}

// CloneState deep-copies a state through its JSON form.
func CloneState(state *State) (*State, error) {
	out := &State{}
	if state.Facility != nil {
		data, err := json.Marshal(state.Facility)
		if err != nil {
			return nil, fmt.Errorf("encoding facility: %w", err)
		}
		out.Facility = &Facility{}
		if err := json.Unmarshal(data, out.Facility); err != nil {
			return nil, fmt.Errorf("decoding facility: %w", err)
		}
	}
	out.History = &History{Records: []HistoryRecord{}}
	if state.History != nil {
		data, err := json.Marshal(state.History)
		if err != nil {
			return nil, fmt.Errorf("encoding history: %w", err)
		}
		if err := json.Unmarshal(data, out.History); err != nil {
			return nil, fmt.Errorf("decoding history: %w", err)
		}
	}
	return out, nil
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
