package bridge

import (
	"errors"
	"testing"

	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

func TestInvokeJavaScript(t *testing.T) {
	ext, _, view := attachCalculator(t)

	ext.InvokeJavaScript("alert", "it's", 1.5, nil, true)
	ext.InvokeJavaScript(".refresh")

	got := view.evaluated()
	want := []string{
		`alert.apply(null, ["it's",1.5,null,true]);`,
		`sample.refresh.apply(sample, []);`,
	}
	if len(got) != len(want) {
		t.Fatalf("evaluated %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("script[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInvokeJavaScript_UnsupportedArgument(t *testing.T) {
	ext, _, view := attachCalculator(t)

	ext.InvokeJavaScript("alert", func() {})
	if got := view.evaluated(); len(got) != 0 {
		t.Errorf("nothing should be sent for an unserializable argument, got %v", got)
	}
}

func TestInvokeCallback(t *testing.T) {
	ext, _, view := attachCalculator(t)

	ext.InvokeCallback(4)
	ext.InvokeCallbackKey(4, "onDone", 1)
	ext.InvokeCallbackIndex(4, 1, "failed")
	ext.Reject(5, map[string]any{"code": 2})

	got := view.evaluated()
	want := []string{
		`sample.invokeCallback.apply(sample, [4,null,[]]);`,
		`sample.invokeCallback.apply(sample, [4,"onDone",[1]]);`,
		`sample.invokeCallback.apply(sample, [4,1,["failed"]]);`,
		`sample.invokeCallback.apply(sample, [5,1,[{"code":2}]]);`,
	}
	if len(got) != len(want) {
		t.Fatalf("evaluated %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("script[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSetAndGet(t *testing.T) {
	ext, native, view := attachCalculator(t)

	if err := ext.Set("counter", 9); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	got := view.evaluated()
	if len(got) != 1 || got[0] != "sample.counter = 9;" {
		t.Errorf("evaluated %v, want [sample.counter = 9;]", got)
	}

	native.mu.Lock()
	native.counter = 3
	native.mu.Unlock()
	v, err := ext.Get("counter")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Equal(protocol.Number(3)) {
		t.Errorf("Get(counter) = %v, want 3", v)
	}

	err = ext.Set("missing", 1)
	if _, ok := err.(*NoSuchPropertyError); !ok {
		t.Errorf("expected NoSuchPropertyError, got %T", err)
	}
}

func TestEvaluateFunc(t *testing.T) {
	ext, _, view := attachCalculator(t)
	view.evalErr = errors.New("syntax error")

	var gotErr error
	ext.EvaluateFunc("1 +", func(_ protocol.Value, err error) { gotErr = err })
	if gotErr == nil || gotErr.Error() != "syntax error" {
		t.Errorf("done received %v, want the evaluation failure", gotErr)
	}

	// Failures without a completion callback are only logged.
	ext.Evaluate("1 +")
}

func TestEvaluateFunc_Detached(t *testing.T) {
	ext, err := NewExtension(&calculator{}, NewChannels())
	if err != nil {
		t.Fatal(err)
	}

	var gotErr error
	called := false
	ext.EvaluateFunc("1", func(_ protocol.Value, err error) {
		called = true
		gotErr = err
	})
	if !called {
		t.Fatal("done should be called for a detached extension")
	}
	if !errors.Is(gotErr, ErrDetached) {
		t.Errorf("done received %v, want ErrDetached", gotErr)
	}

	// Must not panic.
	ext.InvokeCallback(1)
}
