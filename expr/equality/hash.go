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

package equality

import (
	"encoding/binary"
	"fmt"
	"hash"
	"reflect"

	"github.com/dchest/siphash"

	"github.com/zysharp/metaprogramming/expr"
)

// ordinals numbers entities in
// the order they are first seen.
type ordinals[T comparable] map[T]int

func (o ordinals[T]) of(x T) int {
	n, ok := o[x]
	if !ok {
		n = len(o)
		o[x] = n
	}
	return n
}

// hashState is allocated for each call
// to Comparer.Hash or Comparer.Fingerprint.
// It feeds a canonical encoding of the tree
// to the underlying hash, visiting nodes in
// the same order as compareState.
type hashState struct {
	flags  Flags
	h      hash.Hash
	buf    [8]byte
	params ordinals[*expr.Parameter]
	labels ordinals[*expr.LabelTarget]
}

func newHashState(flags Flags, h hash.Hash) *hashState {
	return &hashState{
		flags:  flags,
		h:      h,
		params: make(ordinals[*expr.Parameter]),
		labels: make(ordinals[*expr.LabelTarget]),
	}
}

func (h *hashState) u8(b uint8) {
	h.buf[0] = b
	h.h.Write(h.buf[:1])
}

func (h *hashState) u64(u uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], u)
	h.h.Write(h.buf[:])
}

func (h *hashState) bool(b bool) {
	if b {
		h.u8(1)
	} else {
		h.u8(0)
	}
}

func (h *hashState) str(s string) {
	h.u64(uint64(len(s)))
	h.h.Write([]byte(s))
}

func (h *hashState) typ(t reflect.Type) {
	if t == nil {
		h.u8(0)
		return
	}
	h.u8(1)
	h.str(t.PkgPath())
	h.str(t.String())
}

func (h *hashState) opt(n expr.Node) {
	if n == nil {
		h.u8(0)
		return
	}
	h.node(n)
}

func (h *hashState) list(lst []expr.Node) {
	h.u64(uint64(len(lst)))
	for i := range lst {
		h.opt(lst[i])
	}
}

func (h *hashState) param(p *expr.Parameter) {
	if p == nil {
		h.u8(0)
		return
	}
	h.u8(1)
	h.typ(p.Typ)
	h.bool(p.ByRef)
	if h.flags&IgnoreParameterName == 0 {
		h.str(p.Name)
	}
	h.u64(uint64(h.params.of(p)))
}

func (h *hashState) paramList(lst []*expr.Parameter) {
	h.u64(uint64(len(lst)))
	for _, p := range lst {
		h.param(p)
	}
}

// paramSet hashes block variables
// independently of their order.
func (h *hashState) paramSet(lst []*expr.Parameter) {
	var sum uint64
	var buf []byte
	for _, p := range lst {
		buf = append(buf[:0], p.Typ.PkgPath()...)
		buf = append(buf, p.Typ.String()...)
		if p.ByRef {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		if h.flags&IgnoreParameterName == 0 {
			buf = append(buf, p.Name...)
		}
		sum += siphash.Hash(0, uint64(len(lst)), buf)
	}
	h.u64(uint64(len(lst)))
	h.u64(sum)
}

func (h *hashState) label(t *expr.LabelTarget) {
	if t == nil {
		h.u8(0)
		return
	}
	h.u8(1)
	h.typ(t.Typ)
	if h.flags&IgnoreLabelName == 0 {
		h.str(t.Name)
	}
	h.u64(uint64(h.labels.of(t)))
}

func (h *hashState) member(m expr.Member) {
	switch m := m.(type) {
	case nil:
		h.u8(0)
	case *expr.Field:
		h.u8(1)
		h.typ(m.DeclaringType())
		h.str(m.Name())
	case *expr.Property:
		h.u8(2)
		h.typ(m.DeclaringType())
		h.str(m.Name())
	default:
		panic(fmt.Sprintf("equality: unexpected member %T", m))
	}
}

func (h *hashState) method(m *expr.Method) {
	if m == nil {
		h.u8(0)
		return
	}
	h.u8(1)
	h.typ(m.DeclaringType())
	h.str(m.Name())
	h.bool(m.IsStatic())
	h.typ(m.Func().Type())
	h.u64(uint64(m.Func().Pointer()))
}

func (h *hashState) lambda(l *expr.Lambda) {
	if l == nil {
		h.u8(0)
		return
	}
	h.u8(uint8(expr.KindLambda) + 1)
	if h.flags&IgnoreLambdaType == 0 {
		h.typ(l.Typ)
	}
	h.typ(l.ReturnType())
	if h.flags&IgnoreLambdaName == 0 {
		h.str(l.Name)
	}
	h.bool(l.TailCall)
	h.paramList(l.Parameters)
	h.node(l.Body)
}

func (h *hashState) newNode(n *expr.New) {
	h.typ(n.Typ)
	if c := n.Constructor; c != nil {
		h.u8(1)
		h.typ(c.Type())
		h.u64(uint64(c.NumIn()))
		for i := 0; i < c.NumIn(); i++ {
			h.typ(c.In(i))
		}
	} else {
		h.u8(0)
	}
	h.list(n.Arguments)
	h.u64(uint64(len(n.Members)))
	for _, m := range n.Members {
		h.member(m)
	}
}

func (h *hashState) inits(lst []expr.ElementInit) {
	h.u64(uint64(len(lst)))
	for i := range lst {
		h.method(lst[i].AddMethod)
		h.list(lst[i].Arguments)
	}
}

func (h *hashState) bindings(lst []expr.MemberBinding) {
	h.u64(uint64(len(lst)))
	for _, b := range lst {
		h.member(b.BoundMember())
		switch b := b.(type) {
		case *expr.MemberAssignment:
			h.u8(1)
			h.node(b.Expression)
		case *expr.MemberListBinding:
			h.u8(2)
			h.inits(b.Initializers)
		case *expr.MemberMemberBinding:
			h.u8(3)
			h.bindings(b.Bindings)
		default:
			panic(fmt.Sprintf("equality: unexpected binding %T", b))
		}
	}
}

func (h *hashState) node(n expr.Node) {
	k := n.Kind()
	if k == expr.KindDynamic || k == expr.KindExtension {
		fail(kindError(n))
	}
	if l, ok := n.(*expr.Lambda); ok {
		h.lambda(l)
		return
	}
	h.u8(uint8(k) + 1)
	h.typ(n.Type())
	switch n := n.(type) {
	case *expr.Binary:
		h.u8(uint8(n.Op))
		h.bool(n.Lifted)
		h.bool(n.LiftedToNull)
		h.method(n.Method)
		h.node(n.Left)
		h.lambda(n.Conversion)
		h.node(n.Right)
	case *expr.Block:
		h.list(n.Expressions)
		h.paramSet(n.Variables)
	case *expr.Conditional:
		h.node(n.Test)
		h.node(n.IfTrue)
		h.node(n.IfFalse)
	case *expr.Constant:
		h.value(reflect.ValueOf(n.Value))
	case *expr.DebugInfo:
		h.u64(uint64(n.StartLine))
		h.u64(uint64(n.StartColumn))
		h.u64(uint64(n.EndLine))
		h.u64(uint64(n.EndColumn))
		if d := n.Document; d != nil {
			h.u8(1)
			h.str(d.FileName)
			h.h.Write(d.Language[:])
			h.h.Write(d.LanguageVendor[:])
			h.h.Write(d.DocumentType[:])
		} else {
			h.u8(0)
		}
	case *expr.Default:
	case *expr.Goto:
		h.u8(uint8(n.Op))
		h.label(n.Target)
		h.opt(n.Value)
	case *expr.Index:
		h.node(n.Object)
		if n.Indexer != nil {
			h.member(n.Indexer)
		} else {
			h.member(nil)
		}
		h.list(n.Arguments)
	case *expr.Invocation:
		h.node(n.Expression)
		h.list(n.Arguments)
	case *expr.Label:
		h.label(n.Target)
		h.opt(n.DefaultValue)
	case *expr.ListInit:
		h.newNode(n.New)
		h.inits(n.Initializers)
	case *expr.Loop:
		h.label(n.Break)
		h.label(n.Continue)
		h.node(n.Body)
	case *expr.MemberAccess:
		h.member(n.Member)
		h.opt(n.Expression)
	case *expr.MemberInit:
		h.newNode(n.New)
		h.bindings(n.Bindings)
	case *expr.Call:
		h.method(n.Method)
		h.opt(n.Object)
		h.list(n.Arguments)
	case *expr.NewArray:
		h.u8(uint8(n.Op))
		h.list(n.Expressions)
	case *expr.New:
		h.newNode(n)
	case *expr.Parameter:
		h.param(n)
	case *expr.RuntimeVariables:
		h.paramList(n.Variables)
	case *expr.Switch:
		h.method(n.Comparison)
		h.node(n.SwitchValue)
		h.u64(uint64(len(n.Cases)))
		for i := range n.Cases {
			h.list(n.Cases[i].TestValues)
			h.node(n.Cases[i].Body)
		}
		h.opt(n.DefaultBody)
	case *expr.Try:
		h.node(n.Body)
		h.u64(uint64(len(n.Handlers)))
		for i := range n.Handlers {
			c := &n.Handlers[i]
			h.typ(c.Test)
			h.param(c.Variable)
			h.opt(c.Filter)
			h.node(c.Body)
		}
		h.opt(n.Finally)
		h.opt(n.Fault)
	case *expr.TypeTest:
		h.u8(uint8(n.Op))
		h.typ(n.TypeOperand)
		h.node(n.Expression)
	case *expr.Unary:
		h.u8(uint8(n.Op))
		h.bool(n.Lifted)
		h.bool(n.LiftedToNull)
		h.method(n.Method)
		h.opt(n.Operand)
	default:
		panic(fmt.Sprintf("equality: unexpected node %T of kind %s", n, k))
	}
}
