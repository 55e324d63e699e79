package bridge

import (
	"fmt"

	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

// Invocation is a single call request against a manifest.
type Invocation struct {
	kind MemberKind
	name string
	args map[string]protocol.Value
}

// NewInvocation creates an invocation of the named member.
func NewInvocation(kind MemberKind, name string) *Invocation {
	return &Invocation{kind: kind, name: name, args: make(map[string]protocol.Value)}
}

// AppendArgument binds a named argument. A later binding of the same name
// replaces the earlier one.
func (inv *Invocation) AppendArgument(name string, value protocol.Value) {
	inv.args[name] = value
}

// Name returns the logical member name.
func (inv *Invocation) Name() string {
	return inv.name
}

// Call resolves the invocation against m and runs the member.
//
// Methods yield a boolean acknowledgement, getters the property value and
// setters null.
func (inv *Invocation) Call(m *Manifest) (result protocol.Value, err error) {
	member, ok := m.Lookup(inv.kind, inv.name)
	if !ok {
		switch inv.kind {
		case MemberGetter:
			return protocol.Null(), &NoSuchPropertyError{Property: inv.name, Access: "read"}
		case MemberSetter:
			return protocol.Null(), &NoSuchPropertyError{Property: inv.name, Access: "write"}
		default:
			return protocol.Null(), &MethodNotFoundError{Method: inv.name}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = protocol.Null()
			err = &CallError{Member: inv.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	switch member.Kind {
	case MemberMethod:
		return inv.callMethod(member)
	case MemberGetter:
		raw := member.getter()
		v, convErr := protocol.FromAny(raw)
		if convErr != nil {
			return protocol.Null(), &TypeError{Member: inv.name, Want: "a serializable value", Got: fmt.Sprintf("%T", raw), Err: convErr}
		}
		return v, nil
	default:
		member.setter(inv.args[protocol.SetterParam])
		return protocol.Null(), nil
	}
}

func (inv *Invocation) callMethod(member *Member) (protocol.Value, error) {
	for name := range inv.args {
		if name == protocol.CallIDParam {
			continue
		}
		if !member.declares(name) {
			return protocol.Null(), &MethodNotFoundError{Method: inv.name, Argument: name}
		}
	}

	out, err := member.method(Args{values: inv.args})
	if err != nil {
		return protocol.Null(), &CallError{Member: inv.name, Err: err}
	}

	switch t := out.(type) {
	case bool:
		return protocol.Bool(t), nil
	case protocol.Value:
		if t.Kind() == protocol.KindBool {
			return t, nil
		}
		return protocol.Null(), &TypeError{Member: inv.name, Want: "bool", Got: t.Kind().String()}
	default:
		return protocol.Null(), &TypeError{Member: inv.name, Want: "bool", Got: fmt.Sprintf("%T", out)}
	}
}
