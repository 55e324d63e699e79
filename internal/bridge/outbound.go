package bridge

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

// InvokeCallback resumes the script callback registered under id.
func (e *Extension) InvokeCallback(id uint32, args ...any) {
	e.invokeCallback(id, protocol.Null(), args)
}

// InvokeCallbackKey resumes the member key of the callback object under id.
func (e *Extension) InvokeCallbackKey(id uint32, key string, args ...any) {
	e.invokeCallback(id, protocol.String(key), args)
}

// InvokeCallbackIndex resumes entry index of the callback list under id. A
// promise registers [resolve, reject], so index 0 resolves and 1 rejects.
func (e *Extension) InvokeCallbackIndex(id uint32, index uint32, args ...any) {
	e.invokeCallback(id, protocol.Number(float64(index)), args)
}

// Resolve settles the promise whose callback id is id.
func (e *Extension) Resolve(id uint32, value any) {
	e.InvokeCallbackIndex(id, 0, value)
}

// Reject settles the promise whose callback id is id with a failure.
func (e *Extension) Reject(id uint32, reason any) {
	e.InvokeCallbackIndex(id, 1, reason)
}

func (e *Extension) invokeCallback(id uint32, key protocol.Value, args []any) {
	values, err := protocol.FromSlice(args)
	if err != nil {
		e.log().Error("Invalid callback arguments",
			zap.Uint32("callback", id),
			zap.Error(err),
		)
		e.metrics.ObserveOutbound("callback", outcomeFailed)
		return
	}
	e.InvokeJavaScript(protocol.InvokeCallbackFunc, protocol.Number(float64(id)), key, protocol.Array(values...))
}

// ReleaseArguments tells the script side it may drop the callbacks of call
// callID. Methods that settle later return false and call this when done.
func (e *Extension) ReleaseArguments(callID protocol.Value) {
	e.InvokeJavaScript(protocol.ReleaseArgumentsFunc, callID)
}

// InvokeJavaScript calls a script function with args. A function name
// starting with "." is resolved on the extension's namespace object, which
// also becomes this; other names are called with a null this.
func (e *Extension) InvokeJavaScript(function string, args ...any) {
	target, this := function, "null"
	if strings.HasPrefix(function, ".") {
		ns := e.Namespace()
		target, this = ns+function, ns
	}

	values, err := protocol.FromSlice(args)
	if err != nil {
		e.log().Error("Invalid argument list",
			zap.String("function", function),
			zap.Error(err),
		)
		e.metrics.ObserveOutbound("call", outcomeFailed)
		return
	}
	literal, err := protocol.Array(values...).Literal()
	if err != nil {
		e.log().Error("Invalid argument list",
			zap.String("function", function),
			zap.Error(err),
		)
		e.metrics.ObserveOutbound("call", outcomeFailed)
		return
	}

	e.metrics.ObserveOutbound("call", outcomeOK)
	e.Evaluate(fmt.Sprintf("%s.apply(%s, %s);", target, this, literal))
}

// Get reads a native property through its getter.
func (e *Extension) Get(name string) (protocol.Value, error) {
	return NewInvocation(MemberGetter, name).Call(e.manifest)
}

// Set pushes value into the script-side property. The script object echoes
// the assignment back through the property's setter when it is writable.
func (e *Extension) Set(name string, value any) error {
	if _, ok := e.manifest.Lookup(MemberGetter, name); !ok {
		return &NoSuchPropertyError{Property: name, Access: "read"}
	}
	v, err := protocol.FromAny(value)
	if err != nil {
		return &TypeError{Member: name, Want: "a serializable value", Got: fmt.Sprintf("%T", value), Err: err}
	}
	literal, err := v.Literal()
	if err != nil {
		return &TypeError{Member: name, Want: "a serializable value", Got: v.Kind().String(), Err: err}
	}

	e.metrics.ObserveOutbound("property", outcomeOK)
	e.Evaluate(fmt.Sprintf("%s.%s = %s;", e.Namespace(), name, literal))
	return nil
}

// Evaluate runs source in the attached view and logs failures.
func (e *Extension) Evaluate(source string) {
	e.EvaluateFunc(source, nil)
}

// EvaluateFunc runs source in the attached view. done, when non-nil,
// receives the result or the failure; otherwise failures are logged.
func (e *Extension) EvaluateFunc(source string, done func(protocol.Value, error)) {
	view := e.View()
	logger := e.log()
	if view == nil {
		if done != nil {
			done(protocol.Null(), ErrDetached)
			return
		}
		logger.Warn("Dropping script for detached extension", zap.String("script", source))
		return
	}

	view.Evaluate(source, func(result protocol.Value, err error) {
		if done != nil {
			done(result, err)
			return
		}
		if err != nil {
			logger.Error("Failed to execute script",
				zap.String("script", source),
				zap.Error(err),
			)
		}
	})
}
