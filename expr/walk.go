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
)

// Visitor is an interface that must
// be satisfied by the argument to Walk.
//
// A Visitor's Visit method is invoked for each node encountered by Walk. If
// the result visitor w is not nil, Walk visits each of the children of node
// with the visitor w, followed by a call of w.Visit(nil).
//
// (see also: ast.Visitor)
type Visitor interface {
	Visit(Node) Visitor
}

// Rewriter accepts a Node and returns
// a new node (or just its argument)
type Rewriter interface {
	// Rewrite is applied to nodes
	// in depth-first order, and each
	// node is re-written to use the
	// returned value.
	Rewrite(Node) Node

	// Walk is called during node traversal
	// and the returned Rewriter is used for
	// all the children of Node.
	// If the returned rewriter is nil,
	// then traversal does not proceed past Node.
	Walk(Node) Rewriter
}

// Walk traverses a tree in depth-first order: It starts by calling
// v.Visit(node); node must not be nil. If the visitor w returned by
// v.Visit(node) is not nil, Walk is invoked recursively with visitor w for
// each of the non-nil children of node, followed by a call of w.Visit(nil).
//
// Children are visited in evaluation order, except that
// the parameters of a lambda are visited after its body
// and the variables of a block after its expressions.
// Extension nodes are descended into through VisitChildren
// and are never reduced.
//
// (see also: ast.Walk)
func Walk(v Visitor, n Node) {
	w := v.Visit(n)
	if w != nil {
		walkChildren(w, n)
		w.Visit(nil)
	}
}

func walkOpt(v Visitor, n Node) {
	if n != nil {
		Walk(v, n)
	}
}

func walkList(v Visitor, lst []Node) {
	for i := range lst {
		walkOpt(v, lst[i])
	}
}

func walkParams(v Visitor, lst []*Parameter) {
	for i := range lst {
		Walk(v, lst[i])
	}
}

func walkInits(v Visitor, lst []ElementInit) {
	for i := range lst {
		walkList(v, lst[i].Arguments)
	}
}

func walkBindings(v Visitor, lst []MemberBinding) {
	for i := range lst {
		switch b := lst[i].(type) {
		case *MemberAssignment:
			walkOpt(v, b.Expression)
		case *MemberListBinding:
			walkInits(v, b.Initializers)
		case *MemberMemberBinding:
			walkBindings(v, b.Bindings)
		default:
			panic(fmt.Sprintf("expr.Walk: unexpected binding %T", b))
		}
	}
}

func walkChildren(v Visitor, n Node) {
	switch n := n.(type) {
	case *Binary:
		walkOpt(v, n.Left)
		if n.Conversion != nil {
			Walk(v, n.Conversion)
		}
		walkOpt(v, n.Right)
	case *Block:
		walkList(v, n.Expressions)
		walkParams(v, n.Variables)
	case *Conditional:
		walkOpt(v, n.Test)
		walkOpt(v, n.IfTrue)
		walkOpt(v, n.IfFalse)
	case *Constant, *DebugInfo, *Default, *Parameter:
	case *Dynamic:
		walkList(v, n.Arguments)
	case *Goto:
		walkOpt(v, n.Value)
	case *Index:
		walkOpt(v, n.Object)
		walkList(v, n.Arguments)
	case *Invocation:
		walkOpt(v, n.Expression)
		walkList(v, n.Arguments)
	case *Label:
		walkOpt(v, n.DefaultValue)
	case *Lambda:
		walkOpt(v, n.Body)
		walkParams(v, n.Parameters)
	case *ListInit:
		Walk(v, n.New)
		walkInits(v, n.Initializers)
	case *Loop:
		walkOpt(v, n.Body)
	case *MemberAccess:
		walkOpt(v, n.Expression)
	case *MemberInit:
		Walk(v, n.New)
		walkBindings(v, n.Bindings)
	case *Call:
		walkOpt(v, n.Object)
		walkList(v, n.Arguments)
	case *NewArray:
		walkList(v, n.Expressions)
	case *New:
		walkList(v, n.Arguments)
	case *RuntimeVariables:
		walkParams(v, n.Variables)
	case *Switch:
		walkOpt(v, n.SwitchValue)
		for i := range n.Cases {
			walkList(v, n.Cases[i].TestValues)
			walkOpt(v, n.Cases[i].Body)
		}
		walkOpt(v, n.DefaultBody)
	case *Try:
		walkOpt(v, n.Body)
		for i := range n.Handlers {
			h := &n.Handlers[i]
			if h.Variable != nil {
				Walk(v, h.Variable)
			}
			walkOpt(v, h.Filter)
			walkOpt(v, h.Body)
		}
		walkOpt(v, n.Finally)
		walkOpt(v, n.Fault)
	case *TypeTest:
		walkOpt(v, n.Expression)
	case *Unary:
		walkOpt(v, n.Operand)
	case Extension:
		n.VisitChildren(func(c Node) Node {
			walkOpt(v, c)
			return c
		})
	default:
		panic(fmt.Sprintf("expr.Walk: unexpected node %T", n))
	}
}

// Rewrite recursively applies a Rewriter in depth-first order.
//
// Rewrite never modifies its input: a node whose
// children are all returned unchanged is passed to
// r.Rewrite as-is, and any other node is copied.
func Rewrite(r Rewriter, n Node) Node {
	if n == nil {
		return nil
	}
	rc := r.Walk(n)
	if rc != nil {
		n = rewriteChildren(rc, n)
	}
	return r.Rewrite(n)
}

func rewriteList(r Rewriter, lst []Node) ([]Node, bool) {
	var out []Node
	for i := range lst {
		c := Rewrite(r, lst[i])
		if c != lst[i] && out == nil {
			out = make([]Node, len(lst))
			copy(out, lst[:i])
		}
		if out != nil {
			out[i] = c
		}
	}
	if out == nil {
		return lst, false
	}
	return out, true
}

func rewriteParam(r Rewriter, p *Parameter) *Parameter {
	if p == nil {
		return nil
	}
	n := Rewrite(r, p)
	np, ok := n.(*Parameter)
	if !ok {
		panic(fmt.Sprintf("expr.Rewrite: parameter %s rewritten to %T", p.Name, n))
	}
	return np
}

func rewriteParams(r Rewriter, lst []*Parameter) ([]*Parameter, bool) {
	var out []*Parameter
	for i := range lst {
		c := rewriteParam(r, lst[i])
		if c != lst[i] && out == nil {
			out = make([]*Parameter, len(lst))
			copy(out, lst[:i])
		}
		if out != nil {
			out[i] = c
		}
	}
	if out == nil {
		return lst, false
	}
	return out, true
}

func rewriteLambda(r Rewriter, l *Lambda) *Lambda {
	if l == nil {
		return nil
	}
	n := Rewrite(r, l)
	nl, ok := n.(*Lambda)
	if !ok {
		panic(fmt.Sprintf("expr.Rewrite: lambda rewritten to %T", n))
	}
	return nl
}

func rewriteNew(r Rewriter, n *New) *New {
	out := Rewrite(r, n)
	nn, ok := out.(*New)
	if !ok {
		panic(fmt.Sprintf("expr.Rewrite: constructor call rewritten to %T", out))
	}
	return nn
}

func rewriteInits(r Rewriter, lst []ElementInit) ([]ElementInit, bool) {
	var out []ElementInit
	for i := range lst {
		args, changed := rewriteList(r, lst[i].Arguments)
		if changed && out == nil {
			out = make([]ElementInit, len(lst))
			copy(out, lst)
		}
		if out != nil {
			out[i] = ElementInit{AddMethod: lst[i].AddMethod, Arguments: args}
		}
	}
	if out == nil {
		return lst, false
	}
	return out, true
}

func rewriteBinding(r Rewriter, b MemberBinding) MemberBinding {
	switch b := b.(type) {
	case *MemberAssignment:
		e := Rewrite(r, b.Expression)
		if e == b.Expression {
			return b
		}
		return &MemberAssignment{Member: b.Member, Expression: e}
	case *MemberListBinding:
		inits, changed := rewriteInits(r, b.Initializers)
		if !changed {
			return b
		}
		return &MemberListBinding{Member: b.Member, Initializers: inits}
	case *MemberMemberBinding:
		lst, changed := rewriteBindings(r, b.Bindings)
		if !changed {
			return b
		}
		return &MemberMemberBinding{Member: b.Member, Bindings: lst}
	}
	panic(fmt.Sprintf("expr.Rewrite: unexpected binding %T", b))
}

func rewriteBindings(r Rewriter, lst []MemberBinding) ([]MemberBinding, bool) {
	var out []MemberBinding
	for i := range lst {
		c := rewriteBinding(r, lst[i])
		if c != lst[i] && out == nil {
			out = make([]MemberBinding, len(lst))
			copy(out, lst[:i])
		}
		if out != nil {
			out[i] = c
		}
	}
	if out == nil {
		return lst, false
	}
	return out, true
}

func rewriteChildren(r Rewriter, n Node) Node {
	switch n := n.(type) {
	case *Binary:
		left := Rewrite(r, n.Left)
		conv := rewriteLambda(r, n.Conversion)
		right := Rewrite(r, n.Right)
		if left == n.Left && conv == n.Conversion && right == n.Right {
			return n
		}
		c := *n
		c.Left, c.Conversion, c.Right = left, conv, right
		return &c
	case *Block:
		exprs, c0 := rewriteList(r, n.Expressions)
		vars, c1 := rewriteParams(r, n.Variables)
		if !c0 && !c1 {
			return n
		}
		return &Block{Variables: vars, Expressions: exprs, Typ: n.Typ}
	case *Conditional:
		test := Rewrite(r, n.Test)
		t := Rewrite(r, n.IfTrue)
		f := Rewrite(r, n.IfFalse)
		if test == n.Test && t == n.IfTrue && f == n.IfFalse {
			return n
		}
		return &Conditional{Test: test, IfTrue: t, IfFalse: f, Typ: n.Typ}
	case *Constant, *DebugInfo, *Default, *Parameter:
		return n
	case *Dynamic:
		args, changed := rewriteList(r, n.Arguments)
		if !changed {
			return n
		}
		return &Dynamic{Binder: n.Binder, Arguments: args, Typ: n.Typ}
	case *Goto:
		val := Rewrite(r, n.Value)
		if val == n.Value {
			return n
		}
		c := *n
		c.Value = val
		return &c
	case *Index:
		obj := Rewrite(r, n.Object)
		args, changed := rewriteList(r, n.Arguments)
		if obj == n.Object && !changed {
			return n
		}
		return &Index{Object: obj, Indexer: n.Indexer, Arguments: args}
	case *Invocation:
		fn := Rewrite(r, n.Expression)
		args, changed := rewriteList(r, n.Arguments)
		if fn == n.Expression && !changed {
			return n
		}
		return &Invocation{Expression: fn, Arguments: args}
	case *Label:
		def := Rewrite(r, n.DefaultValue)
		if def == n.DefaultValue {
			return n
		}
		return &Label{Target: n.Target, DefaultValue: def}
	case *Lambda:
		body := Rewrite(r, n.Body)
		params, changed := rewriteParams(r, n.Parameters)
		if body == n.Body && !changed {
			return n
		}
		c := *n
		c.Body, c.Parameters = body, params
		return &c
	case *ListInit:
		nn := rewriteNew(r, n.New)
		inits, changed := rewriteInits(r, n.Initializers)
		if nn == n.New && !changed {
			return n
		}
		return &ListInit{New: nn, Initializers: inits}
	case *Loop:
		body := Rewrite(r, n.Body)
		if body == n.Body {
			return n
		}
		return &Loop{Body: body, Break: n.Break, Continue: n.Continue}
	case *MemberAccess:
		obj := Rewrite(r, n.Expression)
		if obj == n.Expression {
			return n
		}
		return &MemberAccess{Expression: obj, Member: n.Member}
	case *MemberInit:
		nn := rewriteNew(r, n.New)
		binds, changed := rewriteBindings(r, n.Bindings)
		if nn == n.New && !changed {
			return n
		}
		return &MemberInit{New: nn, Bindings: binds}
	case *Call:
		obj := Rewrite(r, n.Object)
		args, changed := rewriteList(r, n.Arguments)
		if obj == n.Object && !changed {
			return n
		}
		return &Call{Object: obj, Method: n.Method, Arguments: args}
	case *NewArray:
		exprs, changed := rewriteList(r, n.Expressions)
		if !changed {
			return n
		}
		return &NewArray{Op: n.Op, Expressions: exprs, Typ: n.Typ}
	case *New:
		args, changed := rewriteList(r, n.Arguments)
		if !changed {
			return n
		}
		c := *n
		c.Arguments = args
		return &c
	case *RuntimeVariables:
		vars, changed := rewriteParams(r, n.Variables)
		if !changed {
			return n
		}
		return &RuntimeVariables{Variables: vars}
	case *Switch:
		val := Rewrite(r, n.SwitchValue)
		var cases []SwitchCase
		for i := range n.Cases {
			tests, changed := rewriteList(r, n.Cases[i].TestValues)
			body := Rewrite(r, n.Cases[i].Body)
			if (changed || body != n.Cases[i].Body) && cases == nil {
				cases = make([]SwitchCase, len(n.Cases))
				copy(cases, n.Cases)
			}
			if cases != nil {
				cases[i] = SwitchCase{TestValues: tests, Body: body}
			}
		}
		def := Rewrite(r, n.DefaultBody)
		if val == n.SwitchValue && cases == nil && def == n.DefaultBody {
			return n
		}
		if cases == nil {
			cases = n.Cases
		}
		return &Switch{SwitchValue: val, Comparison: n.Comparison, Cases: cases, DefaultBody: def, Typ: n.Typ}
	case *Try:
		body := Rewrite(r, n.Body)
		var handlers []CatchBlock
		for i := range n.Handlers {
			h := &n.Handlers[i]
			v := rewriteParam(r, h.Variable)
			filter := Rewrite(r, h.Filter)
			hbody := Rewrite(r, h.Body)
			if (v != h.Variable || filter != h.Filter || hbody != h.Body) && handlers == nil {
				handlers = make([]CatchBlock, len(n.Handlers))
				copy(handlers, n.Handlers)
			}
			if handlers != nil {
				handlers[i] = CatchBlock{Test: h.Test, Variable: v, Filter: filter, Body: hbody}
			}
		}
		finally := Rewrite(r, n.Finally)
		fault := Rewrite(r, n.Fault)
		if body == n.Body && handlers == nil && finally == n.Finally && fault == n.Fault {
			return n
		}
		if handlers == nil {
			handlers = n.Handlers
		}
		return &Try{Body: body, Handlers: handlers, Finally: finally, Fault: fault, Typ: n.Typ}
	case *TypeTest:
		e := Rewrite(r, n.Expression)
		if e == n.Expression {
			return n
		}
		return &TypeTest{Op: n.Op, Expression: e, TypeOperand: n.TypeOperand}
	case *Unary:
		op := Rewrite(r, n.Operand)
		if op == n.Operand {
			return n
		}
		c := *n
		c.Operand = op
		return &c
	case Extension:
		return n.VisitChildren(func(c Node) Node { return Rewrite(r, c) })
	}
	panic(fmt.Sprintf("expr.Rewrite: unexpected node %T", n))
}
