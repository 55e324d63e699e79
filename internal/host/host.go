// Package host assembles a script view, the extension catalog and the
// observability stack into one process.
package host

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
	"github.com/woxQAQ/scriptbridge/internal/config"
	"github.com/woxQAQ/scriptbridge/internal/extension"
	"github.com/woxQAQ/scriptbridge/internal/extension/sample"
	"github.com/woxQAQ/scriptbridge/internal/jsview"
	"github.com/woxQAQ/scriptbridge/internal/metrics"
	"github.com/woxQAQ/scriptbridge/internal/tracing"
)

type Host struct {
	cfg     *config.HostConfig
	version string
	logger  *zap.Logger

	metrics     *metrics.Metrics
	stopMetrics context.CancelFunc
	tracing     *tracing.Provider

	view     *jsview.View
	channels *bridge.Channels
	manager  *extension.Manager
}

func New(ctx context.Context, cfg *config.HostConfig, version string, logger *zap.Logger) (*Host, error) {
	tp, err := tracing.Setup(ctx, cfg.Tracing, version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	m := metrics.New()

	view := jsview.New(logger, &jsview.Config{
		Debug:       cfg.View.Debug,
		EvalTimeout: cfg.View.EvalTimeout,
		QueueSize:   cfg.View.QueueSize,
	})

	factory := extension.NewFactory()
	sample.Register(factory)

	channels := bridge.NewChannels()
	manager := extension.NewManager(cfg, factory, channels, logger,
		bridge.WithMetrics(m),
		bridge.WithTracer(tp.Tracer()),
	)

	h := &Host{
		cfg:      cfg,
		version:  version,
		logger:   logger.With(zap.String("component", "host")),
		metrics:  m,
		tracing:  tp,
		view:     view,
		channels: channels,
		manager:  manager,
	}
	view.SetFatalHandler(h.onFatal)

	h.logger.Info("Host initialized",
		zap.String("view", view.ID()),
		zap.Strings("extension_paths", cfg.ExtensionPaths),
		zap.Strings("classes", factory.Classes()),
	)

	return h, nil
}

// Start catalogs extensions, installs built-ins not overridden on disk,
// attaches everything to the view and starts the metrics server.
func (h *Host) Start(ctx context.Context) error {
	if err := h.manager.LoadAll(ctx); err != nil {
		return fmt.Errorf("failed to load extensions: %w", err)
	}

	if _, ok := h.manager.Registry().LookupByClass(sample.Class); !ok {
		if err := h.manager.Install(extension.NewEntry(sample.Descriptor(h.version), nil)); err != nil {
			return fmt.Errorf("failed to install built-in extension: %w", err)
		}
	}

	if err := h.manager.AttachAll(h.view); err != nil {
		return err
	}

	if h.cfg.MetricsEnabled {
		metricsCtx, cancel := context.WithCancel(context.Background())
		h.stopMetrics = cancel
		h.metrics.Serve(metricsCtx, h.cfg.MetricsAddr(), h.logger)
	}

	h.logger.Info("Host started",
		zap.Int("extensions", len(h.manager.Extensions())),
		zap.Int("channels", h.channels.Len()),
	)
	return nil
}

// Load creates a fresh script context running source.
func (h *Host) Load(name, source string) error {
	return h.view.Load(name, source)
}

// Run processes view jobs until ctx is done or the host is closed.
func (h *Host) Run(ctx context.Context) error {
	err := h.view.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Flush runs pending view jobs to completion.
func (h *Host) Flush() int {
	return h.view.Flush()
}

// Proxy returns the generated script of the named extension.
func (h *Host) Proxy(name string) (string, error) {
	ext, err := h.manager.Get(name)
	if err != nil {
		return "", err
	}
	return ext.Proxy()
}

// Stub returns the startup script of the named extension.
func (h *Host) Stub(name string) (string, error) {
	ext, err := h.manager.Get(name)
	if err != nil {
		return "", err
	}
	return ext.Stub()
}

// View returns the script view.
func (h *Host) View() *jsview.View {
	return h.view
}

// Manager returns the extension manager.
func (h *Host) Manager() *extension.Manager {
	return h.manager
}

// Metrics returns the bridge meters.
func (h *Host) Metrics() *metrics.Metrics {
	return h.metrics
}

func (h *Host) onFatal(channel int64, err error) {
	ext, ok := h.channels.Lookup(channel)
	if !ok {
		h.logger.Error("Fatal bridge error on unknown channel",
			zap.Int64("channel", channel),
			zap.Error(err),
		)
		return
	}
	h.logger.Error("Fatal bridge error",
		zap.Int64("channel", channel),
		zap.String("extension", ext.TypeName()),
		zap.String("namespace", ext.Namespace()),
		zap.Error(err),
	)
}

// Close gracefully shuts down the host.
func (h *Host) Close(ctx context.Context) error {
	h.logger.Info("Shutting down host")

	var errs []error
	if err := h.manager.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown extension manager", zap.Error(err))
		errs = append(errs, err)
	}

	if err := h.view.Close(); err != nil {
		h.logger.Error("Failed to close view", zap.Error(err))
		errs = append(errs, err)
	}

	if h.stopMetrics != nil {
		h.stopMetrics()
	}

	if err := h.tracing.Shutdown(ctx); err != nil {
		h.logger.Error("Failed to shutdown tracing", zap.Error(err))
		errs = append(errs, err)
	}

	h.logger.Info("Host shutdown complete")
	return errors.Join(errs...)
}
