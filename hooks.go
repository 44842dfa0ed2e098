package switchboard

import (
	"context"
	"time"
)

// OnDispatchFunc is called just before a target action executes. Target
// is the route or event registration name.
type OnDispatchFunc func(ctx context.Context, kind RequestKind, target string)

// OnSuccessFunc is called after a target action completes successfully.
type OnSuccessFunc func(ctx context.Context, kind RequestKind, target string, duration time.Duration)

// OnFailureFunc is called after a target action, or the middleware in
// front of it, fails.
type OnFailureFunc func(ctx context.Context, kind RequestKind, target string, err error, duration time.Duration)

// OnNoTargetFunc is called when a request or record matches no route,
// registration or authorizer.
type OnNoTargetFunc func(ctx context.Context, kind RequestKind, err error)

// hooks holds all configured hook functions.
type hooks struct {
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onFailure  []OnFailureFunc
	onNoTarget []OnNoTargetFunc
}

// WithOnDispatch adds a hook called just before the target executes.
// Multiple hooks are called in order.
//
// Example:
//
//	switchboard.WithOnDispatch(func(ctx context.Context, kind switchboard.RequestKind, target string) {
//	    logger.Debug("dispatching", zap.Stringer("kind", kind), zap.String("target", target))
//	})
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(h *Handler) {
		h.hooks.onDispatch = append(h.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after the target completes
// successfully. Multiple hooks are called in order.
//
// Example:
//
//	switchboard.WithOnSuccess(func(ctx context.Context, kind switchboard.RequestKind, target string, d time.Duration) {
//	    latency.WithLabelValues(kind.String(), target).Observe(d.Seconds())
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(h *Handler) {
		h.hooks.onSuccess = append(h.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after the target fails. Multiple
// hooks are called in order.
//
// Example:
//
//	switchboard.WithOnFailure(func(ctx context.Context, kind switchboard.RequestKind, target string, err error, d time.Duration) {
//	    logger.Warn("target failed", zap.String("target", target), zap.Error(err))
//	})
func WithOnFailure(fn OnFailureFunc) Option {
	return func(h *Handler) {
		h.hooks.onFailure = append(h.hooks.onFailure, fn)
	}
}

// WithOnNoTarget adds a hook called when nothing is registered for a
// request or record. The request still fails; the hook only observes.
// Multiple hooks are called in order.
func WithOnNoTarget(fn OnNoTargetFunc) Option {
	return func(h *Handler) {
		h.hooks.onNoTarget = append(h.hooks.onNoTarget, fn)
	}
}

// callOnDispatch calls global and source OnDispatch hooks.
func (h *Handler) callOnDispatch(ctx context.Context, src Source, kind RequestKind, target string) {
	for _, fn := range h.hooks.onDispatch {
		fn(ctx, kind, target)
	}
	if hook, ok := src.(OnDispatchHook); ok {
		hook.OnDispatch(ctx, target)
	}
}

// callOnSuccess calls global and source OnSuccess hooks.
func (h *Handler) callOnSuccess(ctx context.Context, src Source, kind RequestKind, target string, duration time.Duration) {
	for _, fn := range h.hooks.onSuccess {
		fn(ctx, kind, target, duration)
	}
	if hook, ok := src.(OnSuccessHook); ok {
		hook.OnSuccess(ctx, target, duration)
	}
}

// callOnFailure calls global and source OnFailure hooks.
func (h *Handler) callOnFailure(ctx context.Context, src Source, kind RequestKind, target string, err error, duration time.Duration) {
	for _, fn := range h.hooks.onFailure {
		fn(ctx, kind, target, err, duration)
	}
	if hook, ok := src.(OnFailureHook); ok {
		hook.OnFailure(ctx, target, err, duration)
	}
}

func (h *Handler) callOnNoTarget(ctx context.Context, kind RequestKind, err error) {
	for _, fn := range h.hooks.onNoTarget {
		fn(ctx, kind, err)
	}
}
