package common

import "context"

type ctxKey string

const operationIDKey ctxKey = "opId"

// WithOperationID tags ctx with the correlation id of a sync operation.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey, id)
}

// OperationID returns the id set by WithOperationID, or "".
func OperationID(ctx context.Context) string {
	id, _ := ctx.Value(operationIDKey).(string)
	return id
}
