package protocol

import "testing"

func TestDecodeMethodCall(t *testing.T) {
	body := []byte(`{"method":"add","arguments":[{"a":1},{"b":null}],"callid":7}`)

	msg, err := DecodeMessage(body)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}

	if !msg.IsMethodCall() || *msg.Method != "add" {
		t.Fatalf("expected method call to add, got %+v", msg)
	}
	if msg.IsPropertySet() {
		t.Error("method call must not be a property set")
	}
	if len(msg.Arguments) != 2 {
		t.Fatalf("expected 2 arguments, got %d", len(msg.Arguments))
	}

	b, present := msg.Arguments[1]["b"]
	if !present || !b.IsNull() {
		t.Errorf("explicit null should decode as a present null, got %v (present=%v)", b, present)
	}

	if n, _ := msg.CallID.AsNumber(); n != 7 {
		t.Errorf("callid = %s, want 7", msg.CallID)
	}
}

func TestDecodePropertySet(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"property":"counter","value":"x"}`))
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}

	if !msg.IsPropertySet() {
		t.Fatal("expected property set")
	}
	if s, _ := msg.Value.AsString(); s != "x" {
		t.Errorf("value = %s, want x", msg.Value)
	}
}

func TestDecodeShapeless(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"hello":"world"}`))
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}

	if msg.IsMethodCall() || msg.IsPropertySet() {
		t.Errorf("shapeless message classified as %+v", msg)
	}
}

func TestEncodeMethodCall(t *testing.T) {
	msg := NewMethodCall("add", Number(3), Argument{"a": Number(1)})

	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	want := `{"method":"add","arguments":[{"a":1}],"callid":3,"value":null}`
	if string(data) != want {
		t.Errorf("Encode() = %s, want %s", data, want)
	}
}
