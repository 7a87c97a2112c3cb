package bitemporal

import (
	"context"
	"time"
)

const temporalContextKey = "TemporalContextKey"

// TemporalContext pins the two query moments: ValidMoment selects which
// reality we ask about, SystemMoment selects which state of knowledge
// answers. A zero moment means "now".
type TemporalContext struct {
	ValidMoment  time.Time
	SystemMoment time.Time
}

// InitializeContext sets both moments to now if none are carried yet.
func InitializeContext(ctx context.Context) context.Context {
	if _, ok := ctx.Value(temporalContextKey).(TemporalContext); !ok {
		now := time.Now()
		ctx = WithSystemMoment(ctx, now)
		ctx = WithValidMoment(ctx, now)
	}
	return ctx
}

func GetValidMoment(ctx context.Context) time.Time {
	if t, ok := ctx.Value(temporalContextKey).(TemporalContext); ok {
		return t.ValidMoment
	}
	return time.Time{}
}

func WithValidMoment(ctx context.Context, moment time.Time) context.Context {
	t, _ := ctx.Value(temporalContextKey).(TemporalContext)
	t.ValidMoment = moment
	return context.WithValue(ctx, temporalContextKey, t)
}

func GetSystemMoment(ctx context.Context) time.Time {
	if t, ok := ctx.Value(temporalContextKey).(TemporalContext); ok {
		return t.SystemMoment
	}
	return time.Time{}
}

func WithSystemMoment(ctx context.Context, moment time.Time) context.Context {
	t, _ := ctx.Value(temporalContextKey).(TemporalContext)
	t.SystemMoment = moment
	return context.WithValue(ctx, temporalContextKey, t)
}
