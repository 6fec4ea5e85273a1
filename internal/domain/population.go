package domain

import (
	"context"
	"errors"
)

// ErrStateNotFound reports a state present in observations but absent from
// the population lookup. Callers flag the affected rows and keep going; the
// run does not abort on it.
var ErrStateNotFound = errors.New("state not found in population table")

// PopulationSource resolves a state name to its population.
type PopulationSource interface {
	// Population returns the population for a state name, or an error
	// wrapping ErrStateNotFound when the state is unknown to the source.
	Population(ctx context.Context, state string) (int64, error)
}
