// Package metrics holds the Prometheus meters of the bridge.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the Prometheus registry and bridge meters. A nil *Metrics
// records nothing.
type Metrics struct {
	Registry         *prometheus.Registry
	InboundTotal     *prometheus.CounterVec
	InboundDuration  *prometheus.HistogramVec
	OutboundTotal    *prometheus.CounterVec
	AttachedChannels prometheus.Gauge
}

// New creates a custom registry with the bridge meters.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	inboundTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptbridge_inbound_messages_total",
		Help: "Inbound messages by kind and outcome.",
	}, []string{"kind", "outcome"})

	inboundDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptbridge_inbound_duration_seconds",
		Help:    "Time spent dispatching an inbound message.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	outboundTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptbridge_outbound_calls_total",
		Help: "Outbound script evaluations by kind and outcome.",
	}, []string{"kind", "outcome"})

	attached := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scriptbridge_attached_channels",
		Help: "Extensions currently attached to a view.",
	})

	reg.MustRegister(inboundTotal, inboundDuration, outboundTotal, attached)

	return &Metrics{
		Registry:         reg,
		InboundTotal:     inboundTotal,
		InboundDuration:  inboundDuration,
		OutboundTotal:    outboundTotal,
		AttachedChannels: attached,
	}
}

// ObserveInbound records one dispatched message.
func (m *Metrics) ObserveInbound(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.InboundTotal.WithLabelValues(kind, outcome).Inc()
	m.InboundDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveOutbound records one outbound evaluation.
func (m *Metrics) ObserveOutbound(kind, outcome string) {
	if m == nil {
		return
	}
	m.OutboundTotal.WithLabelValues(kind, outcome).Inc()
}

// ChannelAttached increments the attached channel gauge.
func (m *Metrics) ChannelAttached() {
	if m == nil {
		return
	}
	m.AttachedChannels.Inc()
}

// ChannelDetached decrements the attached channel gauge.
func (m *Metrics) ChannelDetached() {
	if m == nil {
		return
	}
	m.AttachedChannels.Dec()
}

// Serve starts an HTTP server for /metrics and /health. The server stops when
// ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("Metrics server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv
}
