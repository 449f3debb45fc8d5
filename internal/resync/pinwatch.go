package resync

import "context"

// PinWatchLookup fetches pinned-workspace and watch-folder flags in bulk
// ("Fetch pinned/watched flags in bulk, one query per batch").
// Workspace/user management is out of scope here, so the engine depends
// only on this seam; a real deployment wires in its own backing store.
type PinWatchLookup interface {
	BulkLookup(ctx context.Context, names []string) (pinned map[string][]string, watched map[string]bool, err error)
}

// NoopPinWatchLookup reports every file as unpinned and unwatched.
type NoopPinWatchLookup struct{}

func (NoopPinWatchLookup) BulkLookup(_ context.Context, names []string) (map[string][]string, map[string]bool, error) {
	return map[string][]string{}, map[string]bool{}, nil
}
