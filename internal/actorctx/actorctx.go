package actorctx

import "context"

type ctxKey string

const keyUserID ctxKey = "user_id"

// WithUserID stashes the acting user's id on the context so services
// below the HTTP layer can log who triggered an operation.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyUserID).(string)

	return v, ok && v != ""
}
