package bridge

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/woxQAQ/scriptbridge/internal/metrics"
)

func TestHandleMessage_MethodCallReleasesArguments(t *testing.T) {
	ext, native, view := attachCalculator(t)

	err := view.post(t, ext.ChannelID(), `{"method":"add","arguments":[{"a":1},{"b":2}],"callid":7}`)
	if err != nil {
		t.Fatalf("HandleMessage() failed: %v", err)
	}

	calls := native.recorded()
	if len(calls) != 1 {
		t.Fatalf("add called %d times, want 1", len(calls))
	}
	if a, _ := calls[0].Number("a"); a != 1 {
		t.Errorf("a = %v, want 1", a)
	}
	if b, _ := calls[0].Number("b"); b != 2 {
		t.Errorf("b = %v, want 2", b)
	}
	if cid, _ := calls[0].CallID().AsNumber(); cid != 7 {
		t.Errorf("cid = %v, want 7", cid)
	}

	got := view.evaluated()
	want := "sample.releaseArguments.apply(sample, [7]);"
	if len(got) != 1 || got[0] != want {
		t.Errorf("evaluated %v, want [%s]", got, want)
	}
}

func TestHandleMessage_NoAcknowledgement(t *testing.T) {
	ext, native, view := attachCalculator(t)

	if err := view.post(t, ext.ChannelID(), `{"method":"later","arguments":[{"a":"x"}],"callid":1}`); err != nil {
		t.Fatal(err)
	}
	if len(native.recorded()) != 1 {
		t.Fatal("later should be called")
	}
	if got := view.evaluated(); len(got) != 0 {
		t.Errorf("arguments must not be released for a false result, got %v", got)
	}
}

func TestHandleMessage_ExplicitNullIsPresent(t *testing.T) {
	ext, native, view := attachCalculator(t)

	if err := view.post(t, ext.ChannelID(), `{"method":"add","arguments":[{"a":null},{"b":2}],"callid":1}`); err != nil {
		t.Fatal(err)
	}
	calls := native.recorded()
	if len(calls) != 1 {
		t.Fatalf("add called %d times, want 1", len(calls))
	}
	a, present := calls[0].Lookup("a")
	if !present {
		t.Fatal("explicit null argument should be present")
	}
	if !a.IsNull() {
		t.Errorf("a = %v, want null", a)
	}
}

func TestHandleMessage_Dropped(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "undefined argument", body: `{"method":"add","arguments":[{"a":1},{}],"callid":1}`},
		{name: "unknown method", body: `{"method":"multiply","arguments":[{"a":1}],"callid":1}`},
		{name: "undeclared argument", body: `{"method":"add","arguments":[{"a":1},{"c":2}],"callid":1}`},
		{name: "unknown message", body: `{"foo":1}`},
		{name: "not json", body: `not json`},
		{name: "method failure", body: `{"method":"fail","arguments":[],"callid":1}`},
		{name: "method panic", body: `{"method":"explode","arguments":[],"callid":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, native, view := attachCalculator(t)

			if err := view.post(t, ext.ChannelID(), tt.body); err != nil {
				t.Fatalf("HandleMessage() should drop the message, got error %v", err)
			}
			for _, call := range native.recorded() {
				if _, ok := call.Lookup("a"); ok {
					t.Error("add must not be invoked")
				}
			}
			if got := view.evaluated(); len(got) != 0 {
				t.Errorf("nothing should be evaluated, got %v", got)
			}
		})
	}
}

func TestHandleMessage_TypeErrorIsFatal(t *testing.T) {
	ext, _, view := attachCalculator(t)

	err := view.post(t, ext.ChannelID(), `{"method":"broken","arguments":[],"callid":1}`)
	if err == nil {
		t.Fatal("a non-boolean method result should be reported")
	}
	typeErr, ok := err.(*TypeError)
	if !ok {
		t.Fatalf("expected TypeError, got %T", err)
	}
	if typeErr.Member != "broken" {
		t.Errorf("Member = %q, want %q", typeErr.Member, "broken")
	}
	if !IsFatal(err) {
		t.Error("type errors should be fatal")
	}
}

func TestHandleMessage_ReadOnlyPropertyIsFatal(t *testing.T) {
	ext, _, view := attachCalculator(t)

	err := view.post(t, ext.ChannelID(), `{"property":"version","value":"2.0"}`)
	propErr, ok := err.(*NoSuchPropertyError)
	if !ok {
		t.Fatalf("expected NoSuchPropertyError, got %T", err)
	}
	if propErr.Access != "write" {
		t.Errorf("Access = %q, want %q", propErr.Access, "write")
	}
	if got := view.evaluated(); len(got) != 0 {
		t.Errorf("nothing should be evaluated, got %v", got)
	}
}

func TestHandleMessage_PropertySet(t *testing.T) {
	ext, native, view := attachCalculator(t)

	if err := view.post(t, ext.ChannelID(), `{"property":"counter","value":5}`); err != nil {
		t.Fatal(err)
	}
	native.mu.Lock()
	counter := native.counter
	native.mu.Unlock()
	if counter != 5 {
		t.Errorf("counter = %v, want 5", counter)
	}
}

func TestHandleMessage_Promise(t *testing.T) {
	ext, native, view := attachCalculator(t)

	body := `{"method":"echo","arguments":[{"message":"hi"},{"_Promise":3}],"callid":9}`
	if err := view.post(t, ext.ChannelID(), body); err != nil {
		t.Fatal(err)
	}
	native.mu.Lock()
	promises := append([]uint32(nil), native.promises...)
	native.mu.Unlock()
	if len(promises) != 1 || promises[0] != 3 {
		t.Fatalf("promise ids = %v, want [3]", promises)
	}

	ext.Resolve(3, "hi")
	got := view.evaluated()
	want := `sample.invokeCallback.apply(sample, [3,0,["hi"]]);`
	if len(got) != 1 || got[0] != want {
		t.Errorf("evaluated %v, want [%s]", got, want)
	}
}

func TestHandleMessage_Metrics(t *testing.T) {
	m := metrics.New()
	ext, _, view := attachCalculator(t, WithMetrics(m))

	_ = view.post(t, ext.ChannelID(), `{"method":"add","arguments":[{"a":1},{"b":2}],"callid":1}`)
	_ = view.post(t, ext.ChannelID(), `{"method":"add","arguments":[{}],"callid":2}`)
	_ = view.post(t, ext.ChannelID(), `{"property":"counter","value":1}`)

	if v := testutil.ToFloat64(m.InboundTotal.WithLabelValues("method", "ack")); v != 1 {
		t.Errorf("method/ack = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.InboundTotal.WithLabelValues("method", "malformed")); v != 1 {
		t.Errorf("method/malformed = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.InboundTotal.WithLabelValues("property", "ok")); v != 1 {
		t.Errorf("property/ok = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.AttachedChannels); v != 1 {
		t.Errorf("attached channels = %v, want 1", v)
	}
}

func TestHandleMessage_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ext, _, view := attachCalculator(t, WithTracer(provider.Tracer("test")))

	_ = view.post(t, ext.ChannelID(), `{"method":"add","arguments":[{"a":1},{"b":2}],"callid":1}`)
	_ = view.post(t, ext.ChannelID(), `{"method":"broken","arguments":[],"callid":2}`)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	for _, s := range spans {
		if s.Name() != "bridge.dispatch" {
			t.Errorf("span name = %q, want %q", s.Name(), "bridge.dispatch")
		}
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("successful dispatch should not be marked as error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Error("fatal dispatch should be marked as error")
	}
}
