package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/DoyleJ11/league-ladder-backend/internal/engine"
)

// Metrics counts events per kind, e.g. "ladder.events.promoted".
type Metrics struct {
	registry metrics.Registry
}

func NewMetrics(r metrics.Registry) *Metrics {
	if r == nil {
		r = metrics.DefaultRegistry
	}
	return &Metrics{registry: r}
}

func (m *Metrics) Notify(ev Event) {
	metrics.GetOrRegisterCounter(counterName(ev.Kind), m.registry).Inc(1)
}

func (m *Metrics) Count(kind engine.EventKind) int64 {
	return metrics.GetOrRegisterCounter(counterName(kind), m.registry).Count()
}

func counterName(kind engine.EventKind) string {
	return fmt.Sprintf("ladder.events.%s", kind)
}

// Report writes the registry to log every interval until ctx is cancelled.
func (m *Metrics) Report(ctx context.Context, every time.Duration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	out := zap.NewStdLog(log.Named("metrics")).Writer()

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			metrics.WriteOnce(m.registry, out)
		}
	}
}
