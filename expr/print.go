// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package expr

import (
	"fmt"
	"reflect"
	"strings"
)

// ToString returns the string
// representation of a tree in
// approximately Go syntax.
func ToString(n Node) string {
	if n == nil {
		return "<nil>"
	}
	p := printer{}
	p.node(n)
	return p.dst.String()
}

// ToRedacted is like ToString, but
// with all constant values replaced
// with random (deterministic) values.
func ToRedacted(n Node) string {
	if n == nil {
		return "<nil>"
	}
	p := printer{redact: true}
	p.node(n)
	return p.dst.String()
}

type printer struct {
	dst    strings.Builder
	redact bool
}

func (p *printer) str(s string) { p.dst.WriteString(s) }

func (p *printer) printf(f string, args ...any) { fmt.Fprintf(&p.dst, f, args...) }

func (p *printer) list(lst []Node) {
	for i := range lst {
		if i > 0 {
			p.str(", ")
		}
		p.node(lst[i])
	}
}

func (p *printer) param(v *Parameter) {
	if v.Name == "" {
		p.printf("$%p", v)
		return
	}
	p.str(v.Name)
}

func (p *printer) params(lst []*Parameter) {
	for i := range lst {
		if i > 0 {
			p.str(", ")
		}
		p.param(lst[i])
		p.str(" ")
		p.typ(lst[i].Typ)
	}
}

func (p *printer) label(t *LabelTarget) {
	if t == nil {
		p.str("<nil>")
	} else if t.Name == "" {
		p.printf("L%p", t)
	} else {
		p.str(t.Name)
	}
}

func (p *printer) typ(t reflect.Type) {
	if t == nil {
		p.str("void")
		return
	}
	p.str(t.String())
}

func (p *printer) constant(c *Constant) {
	rv := reflect.ValueOf(c.Value)
	switch v := c.Value.(type) {
	case nil:
		p.str("nil")
	case Node:
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			p.str("nil")
			return
		}
		p.str("quote(")
		p.node(v)
		p.str(")")
	default:
		if p.redact {
			redactValue(&p.dst, rv, 0)
		} else if rv.Kind() == reflect.String {
			p.printf("%q", v)
		} else {
			p.printf("%v", v)
		}
	}
}

func (p *printer) inits(lst []ElementInit) {
	p.str(" {")
	for i := range lst {
		if i > 0 {
			p.str(",")
		}
		p.printf(" %s(", lst[i].AddMethod.Name())
		p.list(lst[i].Arguments)
		p.str(")")
	}
	p.str(" }")
}

func (p *printer) bindings(lst []MemberBinding) {
	p.str(" {")
	for i, b := range lst {
		if i > 0 {
			p.str(",")
		}
		p.printf(" %s: ", b.BoundMember().Name())
		switch b := b.(type) {
		case *MemberAssignment:
			p.node(b.Expression)
		case *MemberListBinding:
			p.inits(b.Initializers)
		case *MemberMemberBinding:
			p.bindings(b.Bindings)
		}
	}
	p.str(" }")
}

func (p *printer) node(n Node) {
	if n != nil && isNil(reflect.ValueOf(n)) {
		p.str("<nil>")
		return
	}
	switch n := n.(type) {
	case nil:
		p.str("<nil>")
	case *Binary:
		switch n.Op {
		case OpArrayIndex:
			p.node(n.Left)
			p.str("[")
			p.node(n.Right)
			p.str("]")
			return
		case OpAssign, OpAddAssign, OpSubtractAssign, OpMultiplyAssign,
			OpDivideAssign, OpModuloAssign, OpPowerAssign, OpAndAssign,
			OpOrAssign, OpExclusiveOrAssign, OpLeftShiftAssign, OpRightShiftAssign:
			p.node(n.Left)
			p.printf(" %s ", n.Op)
			p.node(n.Right)
			return
		}
		p.str("(")
		p.node(n.Left)
		p.printf(" %s ", n.Op)
		p.node(n.Right)
		p.str(")")
	case *Block:
		p.str("{ ")
		for _, v := range n.Variables {
			p.str("var ")
			p.param(v)
			p.str(" ")
			p.typ(v.Typ)
			p.str("; ")
		}
		for _, e := range n.Expressions {
			p.node(e)
			p.str("; ")
		}
		p.str("}")
	case *Conditional:
		p.str("(")
		p.node(n.Test)
		p.str(" ? ")
		p.node(n.IfTrue)
		p.str(" : ")
		p.node(n.IfFalse)
		p.str(")")
	case *Constant:
		p.constant(n)
	case *DebugInfo:
		if n.IsClear() {
			p.str("#line clear")
			return
		}
		name := ""
		if n.Document != nil {
			name = n.Document.FileName
		}
		p.printf("#line %s:%d:%d", name, n.StartLine, n.StartColumn)
	case *Default:
		p.str("default(")
		p.typ(n.Typ)
		p.str(")")
	case *Dynamic:
		p.str("dynamic(")
		p.list(n.Arguments)
		p.str(")")
	case *Goto:
		switch n.Op {
		case GotoReturn:
			p.str("return ")
		case GotoBreak:
			p.str("break ")
		case GotoContinue:
			p.str("continue ")
		default:
			p.str("goto ")
		}
		p.label(n.Target)
		if n.Value != nil {
			p.str(" ")
			p.node(n.Value)
		}
	case *Index:
		p.node(n.Object)
		p.str("[")
		p.list(n.Arguments)
		p.str("]")
	case *Invocation:
		p.node(n.Expression)
		p.str("(")
		p.list(n.Arguments)
		p.str(")")
	case *Label:
		p.label(n.Target)
		p.str(":")
		if n.DefaultValue != nil {
			p.str(" ")
			p.node(n.DefaultValue)
		}
	case *Lambda:
		p.str("func")
		if n.Name != "" {
			p.str(" ")
			p.str(n.Name)
		}
		p.str("(")
		p.params(n.Parameters)
		p.str(") ")
		if t := n.ReturnType(); t != nil {
			p.typ(t)
			p.str(" ")
		}
		p.str("{ ")
		p.node(n.Body)
		p.str(" }")
	case *ListInit:
		p.node(n.New)
		p.inits(n.Initializers)
	case *Loop:
		p.str("for { ")
		p.node(n.Body)
		p.str(" }")
	case *MemberAccess:
		if n.Expression == nil {
			p.typ(n.Member.DeclaringType())
		} else {
			p.node(n.Expression)
		}
		p.str(".")
		p.str(n.Member.Name())
	case *MemberInit:
		p.node(n.New)
		p.bindings(n.Bindings)
	case *Call:
		if n.Object != nil {
			p.node(n.Object)
			p.str(".")
		} else if t := n.Method.DeclaringType(); t != nil {
			p.typ(t)
			p.str(".")
		}
		p.str(n.Method.Name())
		p.str("(")
		p.list(n.Arguments)
		p.str(")")
	case *NewArray:
		if n.Op == NewArrayBounds {
			p.str("make(")
			p.typ(n.Typ)
			p.str(", ")
			p.list(n.Expressions)
			p.str(")")
			return
		}
		p.typ(n.Typ)
		p.str("{")
		p.list(n.Expressions)
		p.str("}")
	case *New:
		p.str("new ")
		p.typ(n.Typ)
		p.str("(")
		p.list(n.Arguments)
		p.str(")")
	case *Parameter:
		p.param(n)
	case *RuntimeVariables:
		p.str("vars(")
		for i, v := range n.Variables {
			if i > 0 {
				p.str(", ")
			}
			p.param(v)
		}
		p.str(")")
	case *Switch:
		p.str("switch ")
		p.node(n.SwitchValue)
		p.str(" { ")
		for i := range n.Cases {
			p.str("case ")
			p.list(n.Cases[i].TestValues)
			p.str(": ")
			p.node(n.Cases[i].Body)
			p.str("; ")
		}
		if n.DefaultBody != nil {
			p.str("default: ")
			p.node(n.DefaultBody)
			p.str("; ")
		}
		p.str("}")
	case *Try:
		p.str("try { ")
		p.node(n.Body)
		p.str(" }")
		for i := range n.Handlers {
			h := &n.Handlers[i]
			p.str(" catch (")
			if h.Variable != nil {
				p.param(h.Variable)
				p.str(" ")
			}
			p.typ(h.Test)
			p.str(")")
			if h.Filter != nil {
				p.str(" if ")
				p.node(h.Filter)
			}
			p.str(" { ")
			p.node(h.Body)
			p.str(" }")
		}
		if n.Finally != nil {
			p.str(" finally { ")
			p.node(n.Finally)
			p.str(" }")
		}
		if n.Fault != nil {
			p.str(" fault { ")
			p.node(n.Fault)
			p.str(" }")
		}
	case *TypeTest:
		p.str("(")
		p.node(n.Expression)
		if n.Op == TypeEqual {
			p.str(" is exactly ")
		} else {
			p.str(" is ")
		}
		p.typ(n.TypeOperand)
		p.str(")")
	case *Unary:
		switch n.Op {
		case OpNegate, OpUnaryPlus, OpNot, OpOnesComplement:
			p.str(n.Op.String())
			p.node(n.Operand)
		case OpConvert:
			p.typ(n.Typ)
			p.str("(")
			p.node(n.Operand)
			p.str(")")
		case OpTypeAs:
			p.str("(")
			p.node(n.Operand)
			p.str(" as ")
			p.typ(n.Typ)
			p.str(")")
		case OpThrow:
			p.str("throw ")
			p.node(n.Operand)
		default:
			p.printf("%s(", n.Op)
			p.node(n.Operand)
			p.str(")")
		}
	case Extension:
		p.printf("%T", n)
	default:
		p.printf("<%T>", n)
	}
}
