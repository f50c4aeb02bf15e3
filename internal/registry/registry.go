// Package registry keeps the period status ledger. The ledger is a
// markdown table so an operator can read and audit it without tooling;
// every status change rewrites the whole file from the loaded state.
package registry

import (
	"errors"
	"fmt"

	"labline/internal/domain"
)

var (
	ErrUnknownPeriod   = errors.New("unknown period")
	ErrDuplicatePeriod = errors.New("duplicate period")
)

// InvalidTransitionError reports a status change that would move a
// period backwards or skip a stage.
type InvalidTransitionError struct {
	Period string
	From   domain.Status
	To     domain.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("period %s: invalid transition %s -> %s", e.Period, e.From, e.To)
}

// EnsureTransition validates that from -> to is a legal forward move.
func EnsureTransition(period string, from, to domain.Status) error {
	switch from {
	case domain.StatusPending:
		if to == domain.StatusDrafted {
			return nil
		}
	case domain.StatusDrafted:
		if to == domain.StatusComplete {
			return nil
		}
	}
	return &InvalidTransitionError{Period: period, From: from, To: to}
}
