package bridge

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/woxQAQ/scriptbridge/pkg/protocol"
)

// Script is a supplementary script resource appended to a generated proxy.
type Script struct {
	Name   string
	Source []byte
}

// ScriptSource finds the supplementary script of an extension type.
type ScriptSource interface {
	// Script returns nil when the type has no supplementary script.
	Script(typeName string) (*Script, error)
}

const indent = "    "

// GenerateProxy emits the script-side stubs for m followed by the optional
// supplementary script. The output only depends on the declared members,
// their current property values and extra.
func GenerateProxy(m *Manifest, extra *Script) (string, error) {
	var b strings.Builder

	for _, member := range m.Members() {
		switch member.Kind {
		case MemberMethod:
			writeMethodStub(&b, member)
		case MemberGetter:
			value, err := NewInvocation(MemberGetter, member.Name).Call(m)
			if err != nil {
				return "", err
			}
			literal, err := value.Literal()
			if err != nil {
				return "", &TypeError{Member: member.Name, Want: "a serializable value", Got: value.Kind().String(), Err: err}
			}
			fmt.Fprintf(&b, "exports.defineProperty(%q, %s, %t);\n", member.Name, literal, m.Writable(member.Name))
		}
	}

	if extra != nil {
		if !utf8.Valid(extra.Source) {
			return "", &EncodingError{Resource: extra.Name}
		}
		b.Write(extra.Source)
	}

	return b.String(), nil
}

func writeMethodStub(b *strings.Builder, member *Member) {
	body := indent
	lead := "this"
	if member.Promise {
		body = indent + indent
		lead = "_this"
	}

	var call strings.Builder
	fmt.Fprintf(&call, "%s.invokeNative(%q, [", lead, member.Name)
	if len(member.Params) == 0 {
		call.WriteString("]);")
	} else {
		for i, p := range member.Params {
			value := p
			if p == protocol.PromiseParam {
				value = "[resolve, reject]"
			}
			call.WriteString("\n" + body + indent + "{" + p + ": " + value + "}")
			if i < len(member.Params)-1 {
				call.WriteString(",")
			}
		}
		call.WriteString("\n" + body + "]);")
	}

	fmt.Fprintf(b, "exports.%s = function(%s) {\n", member.Name, strings.Join(member.ScriptParams(), ", "))
	if member.Promise {
		b.WriteString(indent + "var _this = this;\n")
		b.WriteString(indent + "return new Promise(function(resolve, reject) {\n")
		b.WriteString(indent + indent + call.String() + "\n")
		b.WriteString(indent + "});\n")
	} else {
		b.WriteString(indent + call.String() + "\n")
	}
	b.WriteString("};\n")
}

// wrapStub turns a proxy into the startup script that creates the namespace
// object for channel id.
func wrapStub(id int64, namespace, proxy string) string {
	return fmt.Sprintf("(function(exports) {\n\n'use strict';\n%s\n\n})(Extension.create(%d, %q));", proxy, id, namespace)
}
