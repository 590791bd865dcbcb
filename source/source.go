package source

import "context"

// Envelope is one pending request document claimed from a Source.
//
// The consumer does not impose any schema on Body; it is the widget
// package's responsibility to parse and validate it.
type Envelope struct {
	Key  string
	Body []byte
}

// Source yields pending request documents in key order.
//
// FetchNext returns the document with the smallest outstanding key, or
// (nil, nil) when the collection is empty. Implementations must not retry
// internally; backend failures surface to the caller, which owns the
// polling policy.
//
// Remove deletes a claimed document so it is never delivered again.
// Removing a key that no longer exists is not an error.
type Source interface {
	FetchNext(ctx context.Context) (*Envelope, error)
	Remove(ctx context.Context, key string) error
}
