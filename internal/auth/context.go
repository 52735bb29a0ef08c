package auth

import (
	"context"
)

type contextKey string

const identityKey contextKey = "auth"

// WithContext adds an Identity to the context
func WithContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext retrieves the Identity from the context
func FromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}
