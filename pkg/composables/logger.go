package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/campusops/placement/pkg/constants"
)

// UseLogger returns the request-scoped logger, falling back to the standard one.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseActor returns the acting principal recorded on the context, used for
// capacity audit entries and execution results.
func UseActor(ctx context.Context) string {
	if actor, ok := ctx.Value(constants.ActorKey).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, constants.ActorKey, actor)
}
