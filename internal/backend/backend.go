// Package backend declares the contracts the storefront consumes from its
// hosted backend. The cart core never calls these directly; they exist so
// surrounding pages (product listing, orders, admin) depend on interfaces
// this module owns rather than on a vendor SDK.
package backend

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// Identity is the authenticated user scope applied to every data operation.
type Identity struct {
	UserID string
	Role   string
}

// Record is one row returned or written by the data backend.
type Record map[string]any

// Filter narrows a query: column -> required value.
type Filter map[string]any

// DataBackend is the generic query surface of the hosted relational backend.
// Implementations enforce row-level access from the supplied identity.
type DataBackend interface {
	Query(ctx context.Context, id Identity, table string, filter Filter) ([]Record, error)
	Insert(ctx context.Context, id Identity, table string, rec Record) (Record, error)
	Update(ctx context.Context, id Identity, table string, filter Filter, rec Record) error
	Delete(ctx context.Context, id Identity, table string, filter Filter) error

	// SubscribeAuthChange registers a callback invoked whenever the
	// authenticated identity changes (sign-in, sign-out, token refresh).
	// The returned func cancels the subscription.
	SubscribeAuthChange(fn func(Identity)) (cancel func())
}

// ObjectStorage is the object store surface used for product images.
type ObjectStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	PublicURL(path string) string
	Remove(ctx context.Context, path string) error
}
