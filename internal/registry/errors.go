package registry

import (
	"errors"
	"fmt"

	"github.com/agext/levenshtein"
)

// ErrNotFound is matched by every *NotFoundError.
var ErrNotFound = errors.New("template not found")

// ErrNoFetcher is returned when resources are missing and nothing can
// fetch them.
var ErrNoFetcher = errors.New("no fetcher configured")

// NotFoundError reports a lookup of an unknown template name.
type NotFoundError struct {
	Name string
	// Suggestion is the closest registered name, if any is close enough.
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("template %q not found; did you mean %q?", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("template %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// suggest returns the candidate closest to name, or "" when none is within
// a third of the name's length (and at least within 2 edits).
func suggest(name string, candidates []string) string {
	limit := max(2, len(name)/3)
	best, bestDist := "", limit+1
	for _, c := range candidates {
		if d := levenshtein.Distance(name, c, nil); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
