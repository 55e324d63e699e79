// Package jsview is a headless script view backed by goja. It hosts one
// script context at a time, routes messages posted by the script side to
// registered channel handlers and runs all script work from a single FIFO
// job queue.
package jsview

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/internal/bridge"
	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

//go:embed runtime.js
var runtimeSource string

// Config holds view configuration.
type Config struct {
	// Log every evaluated script at debug level
	Debug bool

	// Interrupt scripts that run longer than this; zero disables the limit
	EvalTimeout time.Duration

	// Maximum number of pending jobs
	QueueSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:       false,
		EvalTimeout: 5 * time.Second,
		QueueSize:   1024,
	}
}

// FatalHandler is told about fatal errors returned by channel handlers.
type FatalHandler func(channel int64, err error)

// View is a goja-backed implementation of bridge.View.
type View struct {
	id     string
	config *Config
	logger *zap.Logger

	// Script context
	vmMu    sync.Mutex
	vm      *goja.Runtime
	loaded  bool
	startup []string
	current atomic.Pointer[goja.Runtime]

	// Channel handlers (key: channel id -> value: bridge.MessageHandler)
	handlers sync.Map

	// Job queue
	queueMu sync.Mutex
	queue   []func()
	notify  chan struct{}
	runMu   sync.Mutex

	fatalMu sync.RWMutex
	onFatal FatalHandler

	closeOnce sync.Once
	closed    chan struct{}
}

var _ bridge.View = (*View)(nil)

// New creates a view without a script context. Call Load to create one.
func New(logger *zap.Logger, config *Config) *View {
	if config == nil {
		config = DefaultConfig()
	}
	id := uuid.NewString()
	v := &View{
		id:     id,
		config: config,
		logger: logger.With(zap.String("component", "jsview"), zap.String("view", id)),
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}

	v.logger.Info("View created",
		zap.Bool("debug", config.Debug),
		zap.Duration("eval_timeout", config.EvalTimeout),
		zap.Int("queue_size", config.QueueSize),
	)
	return v
}

// ID returns the unique id of the view.
func (v *View) ID() string {
	return v.id
}

// SetFatalHandler installs the callback for fatal handler errors.
func (v *View) SetFatalHandler(h FatalHandler) {
	v.fatalMu.Lock()
	defer v.fatalMu.Unlock()
	v.onFatal = h
}

// RegisterHandler implements bridge.View.
func (v *View) RegisterHandler(id int64, h bridge.MessageHandler) error {
	if v.isClosed() {
		return ErrClosed
	}
	if _, loaded := v.handlers.LoadOrStore(id, h); loaded {
		return &ChannelInUseError{Channel: id}
	}
	v.logger.Debug("Handler registered", zap.Int64("channel", id))
	return nil
}

// UnregisterHandler implements bridge.View.
func (v *View) UnregisterHandler(id int64) {
	v.handlers.Delete(id)
	v.logger.Debug("Handler unregistered", zap.Int64("channel", id))
}

// InjectStartupScript implements bridge.View. The script runs in every
// context created by later Load calls, in injection order.
func (v *View) InjectStartupScript(source string) error {
	if v.isClosed() {
		return ErrClosed
	}
	v.vmMu.Lock()
	defer v.vmMu.Unlock()
	v.startup = append(v.startup, source)
	return nil
}

// HasScriptContext implements bridge.View.
func (v *View) HasScriptContext() bool {
	if v.isClosed() {
		return false
	}
	v.vmMu.Lock()
	defer v.vmMu.Unlock()
	return v.loaded
}

// Evaluate implements bridge.View. The script runs on the job queue; done
// may be nil.
func (v *View) Evaluate(source string, done func(protocol.Value, error)) {
	if done == nil {
		done = func(protocol.Value, error) {}
	}
	err := v.enqueue(func() {
		result, err := v.evaluate("<eval>", source)
		done(result, err)
	})
	if err != nil {
		done(protocol.Null(), err)
	}
}

// Load replaces the script context with a fresh one, runs the startup
// scripts and then the page source. A failing startup script is logged and
// skipped; a failing page is reported but leaves the context live.
func (v *View) Load(name, source string) error {
	if v.isClosed() {
		return ErrClosed
	}

	v.vmMu.Lock()
	defer v.vmMu.Unlock()

	vm := goja.New()
	if err := v.install(vm); err != nil {
		return err
	}
	if old := v.current.Swap(vm); old != nil {
		old.Interrupt(ErrClosed)
	}
	v.vm = vm
	v.loaded = true

	for i, script := range v.startup {
		if _, err := v.run(vm, fmt.Sprintf("startup-%d", i), script); err != nil {
			v.logger.Warn("Startup script failed", zap.Int("index", i), zap.Error(err))
		}
	}

	v.logger.Info("Page loaded", zap.String("page", name), zap.Int("startup_scripts", len(v.startup)))

	if _, err := v.run(vm, name, source); err != nil {
		return err
	}
	return nil
}

func (v *View) install(vm *goja.Runtime) error {
	shim, err := vm.RunScript("runtime.js", runtimeSource)
	if err != nil {
		return &ScriptError{Script: "runtime.js", Err: err}
	}
	create, ok := goja.AssertFunction(shim)
	if !ok {
		return &ScriptError{Script: "runtime.js", Err: errors.New("runtime does not evaluate to a function")}
	}
	post := vm.ToValue(func(channel int64, body string) {
		v.post(channel, body)
	})
	if _, err := create(goja.Undefined(), vm.GlobalObject(), post); err != nil {
		return &ScriptError{Script: "runtime.js", Err: err}
	}

	console := vm.NewObject()
	logger := v.logger.Named("console")
	for level, log := range map[string]func(string, ...zap.Field){
		"log":   logger.Info,
		"info":  logger.Info,
		"debug": logger.Debug,
		"warn":  logger.Warn,
		"error": logger.Error,
	} {
		log := log
		if err := console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			log(strings.Join(parts, " "))
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// run executes source in vm under the evaluation time limit. The caller
// holds vmMu.
func (v *View) run(vm *goja.Runtime, name, source string) (goja.Value, error) {
	if v.config.Debug {
		v.logger.Debug("Evaluating script", zap.String("script", name), zap.String("source", source))
	}

	var timer *time.Timer
	if v.config.EvalTimeout > 0 {
		timer = time.AfterFunc(v.config.EvalTimeout, func() {
			vm.Interrupt(ErrTimeout)
		})
	}
	value, err := vm.RunScript(name, source)
	if timer != nil {
		timer.Stop()
		vm.ClearInterrupt()
	}

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) && interrupted.Value() == ErrTimeout {
			err = ErrTimeout
		}
		return nil, &ScriptError{Script: name, Err: err}
	}
	return value, nil
}

func (v *View) evaluate(name, source string) (protocol.Value, error) {
	if v.isClosed() {
		return protocol.Null(), ErrClosed
	}

	v.vmMu.Lock()
	defer v.vmMu.Unlock()

	if !v.loaded {
		return protocol.Null(), ErrNoContext
	}
	value, err := v.run(v.vm, name, source)
	if err != nil {
		return protocol.Null(), err
	}
	return exportValue(value, v.logger), nil
}

// exportValue converts a script result to a protocol value. Results that
// cannot cross the bridge, such as functions, become null.
func exportValue(value goja.Value, logger *zap.Logger) protocol.Value {
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return protocol.Null()
	}
	result, err := protocol.FromAny(value.Export())
	if err != nil {
		logger.Debug("Script result is not representable", zap.Error(err))
		return protocol.Null()
	}
	return result
}

// post queues delivery of a message the script side posted on channel.
func (v *View) post(channel int64, body string) {
	err := v.enqueue(func() {
		v.deliver(channel, body)
	})
	if err != nil {
		v.logger.Warn("Dropping posted message",
			zap.Int64("channel", channel),
			zap.Error(err),
		)
	}
}

func (v *View) deliver(channel int64, body string) {
	value, ok := v.handlers.Load(channel)
	if !ok {
		v.logger.Warn("No handler for channel", zap.Int64("channel", channel))
		return
	}
	handler := value.(bridge.MessageHandler)

	if err := handler.HandleMessage([]byte(body)); err != nil {
		v.logger.Error("Channel handler failed",
			zap.Int64("channel", channel),
			zap.Error(err),
		)
		v.fatalMu.RLock()
		onFatal := v.onFatal
		v.fatalMu.RUnlock()
		if onFatal != nil {
			onFatal(channel, err)
		}
	}
}

func (v *View) enqueue(job func()) error {
	if v.isClosed() {
		return ErrClosed
	}

	v.queueMu.Lock()
	if v.config.QueueSize > 0 && len(v.queue) >= v.config.QueueSize {
		v.queueMu.Unlock()
		return ErrQueueFull
	}
	v.queue = append(v.queue, job)
	v.queueMu.Unlock()

	select {
	case v.notify <- struct{}{}:
	default:
	}
	return nil
}

func (v *View) dequeue() (func(), bool) {
	v.queueMu.Lock()
	defer v.queueMu.Unlock()
	if len(v.queue) == 0 {
		return nil, false
	}
	job := v.queue[0]
	v.queue[0] = nil
	v.queue = v.queue[1:]
	return job, true
}

// Pending returns the number of queued jobs.
func (v *View) Pending() int {
	v.queueMu.Lock()
	defer v.queueMu.Unlock()
	return len(v.queue)
}

// Flush runs queued jobs, including jobs queued while flushing, until the
// queue is empty. It returns the number of jobs run.
func (v *View) Flush() int {
	v.runMu.Lock()
	defer v.runMu.Unlock()

	n := 0
	for {
		job, ok := v.dequeue()
		if !ok {
			return n
		}
		job()
		n++
	}
}

// Run processes the job queue until ctx is done or the view is closed.
func (v *View) Run(ctx context.Context) error {
	v.logger.Info("View loop started")
	defer v.logger.Info("View loop stopped")

	for {
		v.Flush()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-v.closed:
			return nil
		case <-v.notify:
		}
	}
}

// Close interrupts running script and discards pending jobs.
// Safe to call multiple times (idempotent).
func (v *View) Close() error {
	v.closeOnce.Do(func() {
		close(v.closed)

		if vm := v.current.Load(); vm != nil {
			vm.Interrupt(ErrClosed)
		}
		v.vmMu.Lock()
		v.loaded = false
		v.vmMu.Unlock()

		v.queueMu.Lock()
		dropped := len(v.queue)
		v.queue = nil
		v.queueMu.Unlock()

		v.logger.Info("View closed", zap.Int("dropped_jobs", dropped))
	})
	return nil
}

func (v *View) isClosed() bool {
	select {
	case <-v.closed:
		return true
	default:
		return false
	}
}
