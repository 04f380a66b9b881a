package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxcode/internal/session"
)

// Metrics records session activity. It implements session.Observer.
type Metrics struct {
	DispatchCount    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Listening        prometheus.Gauge
	Dropped          prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DispatchCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voxcode_dispatch_total",
				Help: "Total number of dispatched transcripts",
			},
			[]string{"outcome"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voxcode_dispatch_seconds",
				Help:    "Dispatch cycle duration in seconds, including speech hand-off",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		Listening: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "voxcode_listening",
				Help: "1 while the session is listening",
			},
		),
		Dropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "voxcode_transcripts_dropped_total",
				Help: "Transcripts dropped because the dispatch queue was full",
			},
		),
	}
}

// Label maps an outcome to its metric label.
func Label(out session.Outcome) string {
	if out.Kind == session.OutcomeCommandExecuted && out.Failed() {
		return "command_failed"
	}
	return string(out.Kind)
}

func (m *Metrics) ObserveDispatch(out session.Outcome, elapsed time.Duration) {
	l := Label(out)
	m.DispatchCount.WithLabelValues(l).Inc()
	m.DispatchDuration.WithLabelValues(l).Observe(elapsed.Seconds())
}

func (m *Metrics) SetListening(listening bool) {
	if listening {
		m.Listening.Set(1)
		return
	}
	m.Listening.Set(0)
}

func (m *Metrics) TranscriptDropped() {
	m.Dropped.Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
