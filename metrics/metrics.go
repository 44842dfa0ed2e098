// Package metrics records dispatch metrics with prometheus through the
// switchboard hooks.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bjaus/switchboard"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds the dispatch collectors.
type Collector struct {
	dispatched *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	unmatched  *prometheus.CounterVec
	gatherer   prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg means
// a fresh registry.
func New(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		dispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_dispatch_total",
				Help: "Dispatched targets by request kind, target and outcome.",
			},
			[]string{"kind", "target", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "switchboard_dispatch_duration_seconds",
				Help:    "Target execution time.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "target"},
		),
		unmatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchboard_unmatched_total",
				Help: "Requests and records that matched no target.",
			},
			[]string{"kind"},
		),
		gatherer: reg,
	}

	var err error
	if c.dispatched, err = register(reg, c.dispatched); err != nil {
		return nil, err
	}
	if c.duration, err = register(reg, c.duration); err != nil {
		return nil, err
	}
	if c.unmatched, err = register(reg, c.unmatched); err != nil {
		return nil, err
	}
	return c, nil
}

// register registers col, or returns the collector already registered
// under the same descriptor.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return col, nil
}

// Options returns the handler hooks feeding the collectors.
func (c *Collector) Options() []switchboard.Option {
	return []switchboard.Option{
		switchboard.WithOnSuccess(func(_ context.Context, kind switchboard.RequestKind, target string, d time.Duration) {
			c.observe(kind, target, OutcomeSuccess, d)
		}),
		switchboard.WithOnFailure(func(_ context.Context, kind switchboard.RequestKind, target string, _ error, d time.Duration) {
			c.observe(kind, target, OutcomeFailure, d)
		}),
		switchboard.WithOnNoTarget(func(_ context.Context, kind switchboard.RequestKind, _ error) {
			c.unmatched.WithLabelValues(kind.String()).Inc()
		}),
	}
}

func (c *Collector) observe(kind switchboard.RequestKind, target, outcome string, d time.Duration) {
	c.dispatched.WithLabelValues(kind.String(), target, outcome).Inc()
	c.duration.WithLabelValues(kind.String(), target).Observe(d.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
