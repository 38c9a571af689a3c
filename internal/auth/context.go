package auth

import "context"

type contextKey string

const userIDKey contextKey = "fitstride-auth-user-id"

// WithUserID stores the authenticated user id on the context.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the user id stored by WithUserID.
func UserIDFromContext(ctx context.Context) (int, bool) {
	userID, ok := ctx.Value(userIDKey).(int)
	return userID, ok
}
