package capability

import "context"

type ctxKey int

const targetKey ctxKey = iota

// WithTarget attaches the reporting-channel identifier of the command being
// executed, for capabilities that send output back or create schedules.
func WithTarget(ctx context.Context, target string) context.Context {
	return context.WithValue(ctx, targetKey, target)
}

// Target returns the channel identifier attached by WithTarget.
func Target(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(targetKey).(string)
	return t, ok && t != ""
}
