package auth

import (
	"context"
	"errors"
)

// ErrNoIdentity is returned when a request context carries no verified caller.
var ErrNoIdentity = errors.New("no authenticated identity in context")

type identity struct {
	userID string
	name   string
	role   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, userID, name, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity{userID: userID, name: name, role: role})
}

func identityFrom(ctx context.Context) identity {
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

func UserID(ctx context.Context) (string, error) {
	if id := identityFrom(ctx); id.userID != "" {
		return id.userID, nil
	}
	return "", ErrNoIdentity
}

// Name may be empty; it is only used for history and audit text.
func Name(ctx context.Context) string {
	return identityFrom(ctx).name
}

func Role(ctx context.Context) (string, error) {
	if id := identityFrom(ctx); id.role != "" {
		return id.role, nil
	}
	return "", ErrNoIdentity
}
