package repository

import "fmt"

// CheckVersion enforces that a write advances the stored facility version by one.
func CheckVersion(stored, next int) error {
	if next != stored+1 {
		return fmt.Errorf("%w: stored version %d, write version %d", ErrConflict, stored, next)
	}
	return nil
}
