// Package bridge exposes native Go objects to a script context running in a
// view. Each attached Extension owns one message channel: the script side
// calls generated stubs that post messages, the extension dispatches them to
// the members declared in its Manifest, and native code answers through
// outbound script evaluation.
package bridge

import (
	"fmt"
	"regexp"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/internal/metrics"
	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

// MessageHandler receives message bodies posted on one channel.
type MessageHandler interface {
	HandleMessage(body []byte) error
}

// View is the transport boundary provided by the surrounding view.
type View interface {
	// RegisterHandler routes messages posted on channel id to h.
	RegisterHandler(id int64, h MessageHandler) error
	// UnregisterHandler stops routing messages for channel id.
	UnregisterHandler(id int64)
	// InjectStartupScript runs source in every script context the view creates.
	InjectStartupScript(source string) error
	// Evaluate runs source asynchronously and reports completion to done.
	Evaluate(source string, done func(protocol.Value, error))
	// HasScriptContext reports whether a script context is currently live.
	HasScriptContext() bool
}

// NamespaceResolver supplies the default namespace of an extension type.
type NamespaceResolver interface {
	NamespaceFor(typeName string) (string, bool)
}

// Extension is one bridge endpoint pairing a native object with a script
// namespace.
type Extension struct {
	native   Native
	manifest *Manifest
	typeName string

	channels   *Channels
	namespaces NamespaceResolver
	scripts    ScriptSource
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	base       *zap.Logger

	mu        sync.RWMutex
	namespace string
	id        int64
	view      View
	logger    *zap.Logger
}

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extension) { e.base = logger }
}

// WithNamespaceResolver sets the default namespace lookup used when Attach
// is called without a namespace.
func WithNamespaceResolver(r NamespaceResolver) Option {
	return func(e *Extension) { e.namespaces = r }
}

// WithScriptSource sets where supplementary scripts come from.
func WithScriptSource(s ScriptSource) Option {
	return func(e *Extension) { e.scripts = s }
}

// WithMetrics records dispatch and outbound meters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extension) { e.metrics = m }
}

// WithTracer overrides the tracer used for inbound message spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Extension) { e.tracer = t }
}

// NewExtension builds the manifest of native and returns a detached
// extension that allocates its channel ids from channels.
func NewExtension(native Native, channels *Channels, opts ...Option) (*Extension, error) {
	if native == nil {
		return nil, fmt.Errorf("native object is nil")
	}
	if channels == nil {
		return nil, fmt.Errorf("channel registry is nil")
	}

	manifest := NewManifest()
	native.Expose(manifest)
	if err := manifest.Err(); err != nil {
		return nil, err
	}

	e := &Extension{
		native:   native,
		manifest: manifest,
		typeName: TypeName(native),
		channels: channels,
		base:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("github.com/woxQAQ/scriptbridge/internal/bridge")
	}
	e.base = e.base.With(
		zap.String("component", "bridge"),
		zap.String("extension", e.typeName),
	)
	e.logger = e.base

	return e, nil
}

// Native returns the bridged object.
func (e *Extension) Native() Native {
	return e.native
}

// Manifest returns the declared members.
func (e *Extension) Manifest() *Manifest {
	return e.manifest
}

// TypeName returns the name used for namespace and script lookups.
func (e *Extension) TypeName() string {
	return e.typeName
}

// Namespace returns the script-side name of the extension object. It is
// empty until the first Attach.
func (e *Extension) Namespace() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.namespace
}

// ChannelID returns the current channel id, or 0 when detached.
func (e *Extension) ChannelID() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.id
}

// View returns the attached view, or nil when detached.
func (e *Extension) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view
}

// Attached reports whether the extension is attached to a view.
func (e *Extension) Attached() bool {
	return e.View() != nil
}

var namespacePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// ValidNamespace reports whether ns is a dotted script identifier path.
func ValidNamespace(ns string) bool {
	return namespacePattern.MatchString(ns)
}

// Attach binds the extension to view under namespace, or under the default
// namespace of its type when namespace is empty. It registers the channel,
// injects the generated stub and, when the view already runs a script
// context, evaluates the stub right away.
func (e *Extension) Attach(view View, namespace string) error {
	if view == nil {
		return &ConfigurationError{Reason: ReasonNoView, Extension: e.typeName}
	}

	if namespace == "" && e.namespaces != nil {
		if ns, ok := e.namespaces.NamespaceFor(e.typeName); ok {
			namespace = ns
		}
	}
	if namespace == "" {
		return &ConfigurationError{Reason: ReasonNoNamespace, Extension: e.typeName, Detail: "script namespace is undetermined"}
	}
	if !ValidNamespace(namespace) {
		return &ConfigurationError{Reason: ReasonInvalidNamespace, Extension: e.typeName, Detail: namespace}
	}

	// Getters run while generating; keep the lock out of it.
	proxy, err := e.Proxy()
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.view != nil {
		e.mu.Unlock()
		return &ConfigurationError{Reason: ReasonAlreadyAttached, Extension: e.typeName, Detail: e.namespace}
	}
	id := e.channels.allocate()
	if err := view.RegisterHandler(id, e); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to register channel %d: %w", id, err)
	}
	stub := wrapStub(id, namespace, proxy)
	if err := view.InjectStartupScript(stub); err != nil {
		view.UnregisterHandler(id)
		e.mu.Unlock()
		return fmt.Errorf("failed to inject stub for '%s': %w", namespace, err)
	}
	e.channels.bind(id, e)
	e.namespace, e.id, e.view = namespace, id, view
	e.logger = e.base.With(zap.String("namespace", namespace), zap.Int64("channel", id))
	logger := e.logger
	e.mu.Unlock()

	e.metrics.ChannelAttached()
	logger.Info("Extension attached")

	if view.HasScriptContext() {
		view.Evaluate(stub, func(_ protocol.Value, err error) {
			if err != nil {
				logger.Error("Failed to evaluate stub in live context", zap.Error(err))
			}
		})
	}
	return nil
}

// Detach unregisters the channel and removes the namespace object from a
// live script context. Detaching a detached extension does nothing.
func (e *Extension) Detach() {
	e.mu.Lock()
	view := e.view
	if view == nil {
		e.mu.Unlock()
		return
	}
	id, namespace, logger := e.id, e.namespace, e.logger
	e.view = nil
	e.id = 0
	e.mu.Unlock()

	view.UnregisterHandler(id)
	e.channels.unbind(id)
	e.metrics.ChannelDetached()

	if view.HasScriptContext() {
		view.Evaluate("delete "+namespace+";", func(_ protocol.Value, err error) {
			if err != nil {
				logger.Warn("Failed to remove namespace object", zap.Error(err))
			}
		})
	}
	logger.Info("Extension detached")
}

// Proxy generates the script stubs for the current member set.
func (e *Extension) Proxy() (string, error) {
	var extra *Script
	if e.scripts != nil {
		s, err := e.scripts.Script(e.typeName)
		if err != nil {
			return "", fmt.Errorf("failed to read supplementary script of '%s': %w", e.typeName, err)
		}
		extra = s
	}
	return GenerateProxy(e.manifest, extra)
}

// Stub returns the startup script of the current attachment.
func (e *Extension) Stub() (string, error) {
	e.mu.RLock()
	id, namespace := e.id, e.namespace
	e.mu.RUnlock()
	if id == 0 {
		return "", ErrDetached
	}
	proxy, err := e.Proxy()
	if err != nil {
		return "", err
	}
	return wrapStub(id, namespace, proxy), nil
}

func (e *Extension) log() *zap.Logger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}
