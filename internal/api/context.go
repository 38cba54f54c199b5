package api

import (
	"context"
	"time"
)

// Session is the authenticated caller of a request. It is created by
// RequireSession from a verified access token and lives for one request.
type Session struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

type ctxKey string

const ctxKeySession ctxKey = "session"

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

func SessionFromContext(ctx context.Context) *Session {
	v := ctx.Value(ctxKeySession)
	if v == nil {
		return nil
	}
	s, _ := v.(*Session)
	return s
}
