// Package checkpoint records which repositories a crawl has already scanned.
//
// A checkpoint maps repository names to their dependency lists. Membership
// means "scanned": a recorded list is final, including an empty one, and the
// crawler never scans that repository again. Each completed scan is written
// immediately so an interrupted run can resume without repeating work.
//
// Two backends are provided:
//   - [FileStore]: a single JSON document, rewritten atomically on every Put
//   - [MongoStore]: one MongoDB document per repository, upserted on every Put
package checkpoint

import (
	"context"
	"maps"
	"slices"
)

// DefaultPath is the checkpoint file used when none is configured.
const DefaultPath = "progress.json"

// Store persists scan results.
//
// Implementations keep an in-memory copy of the checkpoint so Has and All
// never touch the backend. They are safe for concurrent use; writes are
// serialized.
type Store interface {
	// Load reads the persisted checkpoint, replacing the in-memory copy.
	// A checkpoint that does not exist yet loads as empty.
	Load(ctx context.Context) (map[string][]string, error)

	// Put records deps for repo and persists the change before returning.
	Put(ctx context.Context, repo string, deps []string) error

	// Has reports whether repo has been recorded.
	Has(repo string) bool

	// All returns a copy of every recorded repository.
	All() map[string][]string

	// Clear removes every record.
	Clear(ctx context.Context) error

	Close() error
}

// normalize copies deps so callers can't mutate stored lists, and turns nil
// into an empty list so it serializes as [].
func normalize(deps []string) []string {
	if deps == nil {
		return []string{}
	}
	return slices.Clone(deps)
}

func cloneRecords(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

// Repos returns the sorted repository names of a checkpoint.
func Repos(m map[string][]string) []string {
	return slices.Sorted(maps.Keys(m))
}
