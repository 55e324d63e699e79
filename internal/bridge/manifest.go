package bridge

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

// MemberKind tags a manifest entry.
type MemberKind uint8

const (
	MemberMethod MemberKind = iota + 1
	MemberGetter
	MemberSetter
)

func (k MemberKind) String() string {
	switch k {
	case MemberMethod:
		return "method"
	case MemberGetter:
		return "getter"
	case MemberSetter:
		return "setter"
	default:
		return fmt.Sprintf("member(%d)", uint8(k))
	}
}

// MethodFunc implements a script-callable method. The returned value must be
// a boolean: true asks the script side to release the call's arguments.
type MethodFunc func(args Args) (any, error)

// GetterFunc reads a property. The value must be representable as a
// protocol.Value.
type GetterFunc func() any

// SetterFunc writes a property from script.
type SetterFunc func(val protocol.Value)

// Member describes one script-exposed native member.
type Member struct {
	Kind    MemberKind
	Name    string
	Params  []string // methods only, in declaration order
	Promise bool     // methods only, Params contains protocol.PromiseParam

	method MethodFunc
	getter GetterFunc
	setter SetterFunc
}

// ScriptParams returns the parameter names of the generated script function.
func (m *Member) ScriptParams() []string {
	out := make([]string, 0, len(m.Params))
	for _, p := range m.Params {
		if p != protocol.PromiseParam {
			out = append(out, p)
		}
	}
	return out
}

func (m *Member) declares(param string) bool {
	for _, p := range m.Params {
		if p == param {
			return true
		}
	}
	return false
}

type memberKey struct {
	kind MemberKind
	name string
}

// Manifest is the declared script surface of one native object. Members keep
// their declaration order.
type Manifest struct {
	members []*Member
	index   map[memberKey]*Member
	err     error
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{index: make(map[memberKey]*Member)}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Method declares a method. params lists argument names in script order; it
// may contain protocol.PromiseParam once.
func (m *Manifest) Method(name string, params []string, fn MethodFunc) {
	if fn == nil {
		m.fail(name, "method has no implementation")
		return
	}
	member := &Member{Kind: MemberMethod, Name: name, Params: append([]string(nil), params...), method: fn}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		switch {
		case p == protocol.PromiseParam && member.Promise:
			m.fail(name, "promise marker declared more than once")
			return
		case p == protocol.PromiseParam:
			member.Promise = true
		case p == protocol.CallIDParam:
			m.fail(name, "parameter name 'cid' is reserved for the correlation id")
			return
		case !identifierPattern.MatchString(p):
			m.fail(name, fmt.Sprintf("parameter '%s' is not a script identifier", p))
			return
		case seen[p]:
			m.fail(name, fmt.Sprintf("parameter '%s' declared twice", p))
			return
		}
		seen[p] = true
	}
	m.add(member)
}

// Getter declares a readable property.
func (m *Manifest) Getter(name string, fn GetterFunc) {
	if fn == nil {
		m.fail(name, "getter has no implementation")
		return
	}
	m.add(&Member{Kind: MemberGetter, Name: name, getter: fn})
}

// Setter makes a property writable from script.
func (m *Manifest) Setter(name string, fn SetterFunc) {
	if fn == nil {
		m.fail(name, "setter has no implementation")
		return
	}
	m.add(&Member{Kind: MemberSetter, Name: name, setter: fn})
}

// Property declares a getter and, when set is non-nil, a setter.
func (m *Manifest) Property(name string, get GetterFunc, set SetterFunc) {
	m.Getter(name, get)
	if set != nil {
		m.Setter(name, set)
	}
}

func (m *Manifest) add(member *Member) {
	if m.err != nil {
		return
	}
	if !identifierPattern.MatchString(member.Name) {
		m.fail(member.Name, "name is not a script identifier")
		return
	}
	key := memberKey{member.Kind, member.Name}
	if _, exists := m.index[key]; exists {
		m.fail(member.Name, fmt.Sprintf("%s declared twice", member.Kind))
		return
	}
	m.index[key] = member
	m.members = append(m.members, member)
}

func (m *Manifest) fail(member, msg string) {
	if m.err == nil {
		m.err = &ContractError{Member: member, Message: msg}
	}
}

// Err returns the first declaration error.
func (m *Manifest) Err() error {
	return m.err
}

// Members returns the declared members in declaration order.
func (m *Manifest) Members() []*Member {
	out := make([]*Member, len(m.members))
	copy(out, m.members)
	return out
}

// Lookup finds a member by kind and name.
func (m *Manifest) Lookup(kind MemberKind, name string) (*Member, bool) {
	member, ok := m.index[memberKey{kind, name}]
	return member, ok
}

// Writable reports whether a setter exists for the property.
func (m *Manifest) Writable(name string) bool {
	_, ok := m.Lookup(MemberSetter, name)
	return ok
}

// Native is a Go value whose members are callable from script.
type Native interface {
	// Expose declares the script-visible members.
	Expose(m *Manifest)
}

// Named lets a native type choose the name used to look up its default
// namespace and supplementary script.
type Named interface {
	ExtensionName() string
}

// TypeName returns the lookup name of a native type: ExtensionName when
// implemented, else the Go type name without package path.
func TypeName(n Native) string {
	if named, ok := n.(Named); ok {
		return named.ExtensionName()
	}
	t := reflect.TypeOf(n)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Args holds the named arguments of one invocation.
type Args struct {
	values map[string]protocol.Value
}

// NewArgs wraps a name -> value map.
func NewArgs(values map[string]protocol.Value) Args {
	return Args{values: values}
}

// Lookup returns the argument and whether the caller supplied it. An explicit
// null is present.
func (a Args) Lookup(name string) (protocol.Value, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Get returns the argument, or null when absent.
func (a Args) Get(name string) protocol.Value {
	return a.values[name]
}

// Number returns a numeric argument.
func (a Args) Number(name string) (float64, bool) {
	return a.values[name].AsNumber()
}

// String returns a string argument.
func (a Args) String(name string) (string, bool) {
	return a.values[name].AsString()
}

// CallID returns the correlation id of the call.
func (a Args) CallID() protocol.Value {
	return a.values[protocol.CallIDParam]
}

// Callback returns the callback id the script side substituted for a
// function (or function list) argument.
func (a Args) Callback(name string) (uint32, bool) {
	n, ok := a.values[name].AsNumber()
	if !ok || n < 0 || n != float64(uint32(n)) {
		return 0, false
	}
	return uint32(n), true
}

// Promise returns the callback id of the [resolve, reject] pair.
func (a Args) Promise() (uint32, bool) {
	return a.Callback(protocol.PromiseParam)
}

// Len returns the number of supplied arguments, including the call id.
func (a Args) Len() int {
	return len(a.values)
}
