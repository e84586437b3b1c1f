// Package cart keeps a shopping session's line items in memory and mirrors them
// to a backing copy: browser-style local storage while the session is anonymous,
// the remote per-user cart tables once a user is bound.
package cart

import (
	"context"
	"time"

	"omnishop/internal/domain"
)

// StorageKey is the local storage key holding the JSON array of items.
const StorageKey = "omni-cart"

// Gateway is the remote per-user cart.
type Gateway interface {
	FetchCart(ctx context.Context, userID string) ([]domain.CartItem, error)
	AddItem(ctx context.Context, userID, productID, variantID string, quantity int) error
	UpdateItem(ctx context.Context, userID, variantID string, quantity int) error
	RemoveItem(ctx context.Context, userID, variantID string) error
	ClearCart(ctx context.Context, userID string) error
}

// LocalStorage is a string key/value store scoped to one session.
type LocalStorage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Clock provides current time (for testability).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type SyncStatus int32

const (
	StatusIdle SyncStatus = iota
	StatusSyncing
	StatusFailed
)

func (s SyncStatus) String() string {
	switch s {
	case StatusSyncing:
		return "syncing"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

func (s SyncStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
