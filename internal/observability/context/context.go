package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type deviceIDKey struct{}
type actorKey struct{}

type actor struct {
	kind string
	id   string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithDeviceID tags the context with the device a request or job item is acting on.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ctx
	}
	return context.WithValue(ctx, deviceIDKey{}, deviceID)
}

func DeviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(deviceIDKey{}).(string)
	return value
}

// WithActor records who triggered the work, e.g. ("system", "scheduler") or ("device", id).
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		kind: strings.TrimSpace(actorType),
		id:   strings.TrimSpace(actorID),
	})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.kind, value.id
}
