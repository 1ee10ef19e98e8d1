package history

import "context"

// Ledger is the append-only translation history store. Append assigns the
// entry id (ledger-wide position, see FormatID) and timestamp; concurrent
// appends are serialized by every implementation.
type Ledger interface {
	Append(ctx context.Context, e Entry) (string, error)
	ListBy(ctx context.Context, abhaID string) ([]*Entry, error)
}
