package auth

import (
	"context"
	"testing"
)

func TestWithContext_FromContext(t *testing.T) {
	id := &Identity{Token: "gev_1234...abcd", RemoteAddr: "10.0.0.7"}

	ctx := WithContext(context.Background(), id)

	got := FromContext(ctx)
	if got == nil {
		t.Fatal("FromContext() returned nil")
	}
	if got.Token != "gev_1234...abcd" {
		t.Errorf("FromContext().Token = %v, want gev_1234...abcd", got.Token)
	}
	if got.RemoteAddr != "10.0.0.7" {
		t.Errorf("FromContext().RemoteAddr = %v, want 10.0.0.7", got.RemoteAddr)
	}
}

func TestFromContext_NoIdentity(t *testing.T) {
	ctx := context.Background()

	got := FromContext(ctx)
	if got != nil {
		t.Error("FromContext() should return nil for context without identity")
	}
}

func TestFromContext_WrongType(t *testing.T) {
	// Store something other than Identity at the key
	ctx := context.WithValue(context.Background(), identityKey, "not-an-identity")

	got := FromContext(ctx)
	if got != nil {
		t.Error("FromContext() should return nil for wrong type")
	}
}
