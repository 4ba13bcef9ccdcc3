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
)

// Param produces a new parameter.
// Every call returns a distinct binding.
func Param(name string, t reflect.Type) *Parameter {
	return &Parameter{Name: name, Typ: t}
}

// Variable produces a new block variable.
func Variable(name string, t reflect.Type) *Parameter {
	return &Parameter{Name: name, Typ: t}
}

// Const produces a constant with
// the dynamic type of v.
func Const(v any) *Constant {
	if v == nil {
		return &Constant{Typ: anyType}
	}
	return &Constant{Value: v, Typ: reflect.TypeOf(v)}
}

// ConstOf produces a constant of type t.
func ConstOf(v any, t reflect.Type) *Constant {
	return &Constant{Value: v, Typ: t}
}

// MakeBinary produces a binary operation
// with a result type inferred from op and
// the operands.
func MakeBinary(op BinaryOp, left, right Node) *Binary {
	var t reflect.Type
	switch {
	case op.Comparison():
		t = boolType
	case op == OpArrayIndex:
		t = elemType(left.Type())
	case op == OpCoalesce:
		t = right.Type()
	default:
		t = left.Type()
	}
	return &Binary{Op: op, Left: left, Right: right, Typ: t}
}

// MakeBinaryMethod produces a binary
// operation implemented by m.
func MakeBinaryMethod(op BinaryOp, left, right Node, m *Method) *Binary {
	return &Binary{Op: op, Left: left, Right: right, Method: m, Typ: m.Out()}
}

func Add(l, r Node) *Binary       { return MakeBinary(OpAdd, l, r) }
func Sub(l, r Node) *Binary       { return MakeBinary(OpSubtract, l, r) }
func Mul(l, r Node) *Binary       { return MakeBinary(OpMultiply, l, r) }
func Div(l, r Node) *Binary       { return MakeBinary(OpDivide, l, r) }
func Mod(l, r Node) *Binary       { return MakeBinary(OpModulo, l, r) }
func Eq(l, r Node) *Binary        { return MakeBinary(OpEqual, l, r) }
func Ne(l, r Node) *Binary        { return MakeBinary(OpNotEqual, l, r) }
func Lt(l, r Node) *Binary        { return MakeBinary(OpLessThan, l, r) }
func Le(l, r Node) *Binary        { return MakeBinary(OpLessThanOrEqual, l, r) }
func Gt(l, r Node) *Binary        { return MakeBinary(OpGreaterThan, l, r) }
func Ge(l, r Node) *Binary        { return MakeBinary(OpGreaterThanOrEqual, l, r) }
func AndAlso(l, r Node) *Binary   { return MakeBinary(OpAndAlso, l, r) }
func OrElse(l, r Node) *Binary    { return MakeBinary(OpOrElse, l, r) }
func Assign(l, r Node) *Binary    { return MakeBinary(OpAssign, l, r) }
func AddAssign(l, r Node) *Binary { return MakeBinary(OpAddAssign, l, r) }
func Elem(arr, idx Node) *Binary  { return MakeBinary(OpArrayIndex, arr, idx) }
func Coalesce(l, r Node) *Binary  { return MakeBinary(OpCoalesce, l, r) }

// MakeUnary produces a unary operation of type t.
func MakeUnary(op UnaryOp, x Node, t reflect.Type) *Unary {
	return &Unary{Op: op, Operand: x, Typ: t}
}

// Not produces logical or bitwise negation.
func Not(x Node) *Unary { return MakeUnary(OpNot, x, x.Type()) }

// Neg produces arithmetic negation.
func Neg(x Node) *Unary { return MakeUnary(OpNegate, x, x.Type()) }

// Convert produces a conversion of x to t.
func Convert(x Node, t reflect.Type) *Unary { return MakeUnary(OpConvert, x, t) }

// Throw produces a node that panics with x.
// The type of the node is t (nil for a statement).
func Throw(x Node, t reflect.Type) *Unary { return MakeUnary(OpThrow, x, t) }

// Quote produces a node that evaluates to
// the lambda l itself rather than to a func.
func Quote(l *Lambda) *Unary { return MakeUnary(OpQuote, l, lambdaType) }

// Cond produces test ? a : b.
func Cond(test, a, b Node) *Conditional {
	return &Conditional{Test: test, IfTrue: a, IfFalse: b, Typ: a.Type()}
}

// BlockOf produces a block with the type
// of its last expression.
func BlockOf(vars []*Parameter, exprs ...Node) *Block {
	b := &Block{Variables: vars, Expressions: exprs}
	if len(exprs) > 0 && exprs[len(exprs)-1] != nil {
		b.Typ = exprs[len(exprs)-1].Type()
	}
	return b
}

// Fn produces a lambda with an unnamed
// func type built from the types of
// params and body.
func Fn(body Node, params ...*Parameter) *Lambda {
	in := make([]reflect.Type, len(params))
	for i := range params {
		in[i] = params[i].Typ
	}
	var out []reflect.Type
	if t := body.Type(); t != nil {
		out = []reflect.Type{t}
	}
	return &Lambda{Body: body, Parameters: params, Typ: reflect.FuncOf(in, out, false)}
}

// FnOf produces a lambda of func type t.
func FnOf(t reflect.Type, body Node, params ...*Parameter) *Lambda {
	if t.Kind() != reflect.Func || t.NumIn() != len(params) {
		panic(fmt.Sprintf("expr.FnOf: %s does not take %d parameters", t, len(params)))
	}
	return &Lambda{Body: body, Parameters: params, Typ: t}
}

// CallOf produces a call to m. obj must be
// nil for static methods.
func CallOf(obj Node, m *Method, args ...Node) *Call {
	if len(args) != m.NumIn() {
		panic(fmt.Sprintf("expr.CallOf: %s takes %d arguments, got %d", m, m.NumIn(), len(args)))
	}
	return &Call{Object: obj, Method: m, Arguments: args}
}

// InvokeOf produces an invocation of
// the func-typed expression fn.
func InvokeOf(fn Node, args ...Node) *Invocation {
	return &Invocation{Expression: fn, Arguments: args}
}

// MemberOf produces an access to m on obj.
func MemberOf(obj Node, m Member) *MemberAccess {
	return &MemberAccess{Expression: obj, Member: m}
}

// FieldAccess produces an access to
// the field called name of obj.
func FieldAccess(obj Node, name string) *MemberAccess {
	return MemberOf(obj, FieldOf(obj.Type(), name))
}

// PropertyAccess produces an access to
// the property called name of obj.
func PropertyAccess(obj Node, name string) *MemberAccess {
	return MemberOf(obj, PropertyOf(obj.Type(), name))
}

// LabelOf produces a new jump target.
func LabelOf(name string, t reflect.Type) *LabelTarget {
	return &LabelTarget{Name: name, Typ: t}
}

// LabelAt places target in a block.
func LabelAt(target *LabelTarget, def Node) *Label {
	return &Label{Target: target, DefaultValue: def}
}

// GotoOf jumps to target.
func GotoOf(target *LabelTarget) *Goto {
	return &Goto{Op: GotoJump, Target: target}
}

// ReturnOf jumps to target carrying value.
func ReturnOf(target *LabelTarget, value Node) *Goto {
	return &Goto{Op: GotoReturn, Target: target, Value: value}
}

// BreakOf leaves the loop that owns target.
func BreakOf(target *LabelTarget, value Node) *Goto {
	return &Goto{Op: GotoBreak, Target: target, Value: value}
}

// ContinueOf restarts the loop that owns target.
func ContinueOf(target *LabelTarget) *Goto {
	return &Goto{Op: GotoContinue, Target: target}
}

// LoopOf produces a loop.
func LoopOf(body Node, brk, cont *LabelTarget) *Loop {
	return &Loop{Body: body, Break: brk, Continue: cont}
}

// DefaultOf produces the zero value of t.
func DefaultOf(t reflect.Type) *Default { return &Default{Typ: t} }

// Empty produces a node that does nothing.
func Empty() *Default { return &Default{} }

// TypeIsOf tests whether x holds a value
// assignable to t.
func TypeIsOf(x Node, t reflect.Type) *TypeTest {
	return &TypeTest{Op: TypeIs, Expression: x, TypeOperand: t}
}

// NewOf calls the constructor c.
func NewOf(c *Constructor, args ...Node) *New {
	return &New{Constructor: c, Arguments: args, Typ: c.Type()}
}

// NewZero produces the zero value of t
// through a constructor-less New.
func NewZero(t reflect.Type) *New {
	return &New{Typ: t}
}

// NewSlice produces a slice of elem
// holding the values of exprs.
func NewSlice(elem reflect.Type, exprs ...Node) *NewArray {
	return &NewArray{Op: NewArrayInit, Expressions: exprs, Typ: reflect.SliceOf(elem)}
}

// NewSliceLen produces a zeroed slice of
// elem with length n.
func NewSliceLen(elem reflect.Type, n Node) *NewArray {
	return &NewArray{Op: NewArrayBounds, Expressions: []Node{n}, Typ: reflect.SliceOf(elem)}
}

// SwitchOf produces a switch statement
// comparing with ==.
func SwitchOf(t reflect.Type, value, def Node, cases ...SwitchCase) *Switch {
	return &Switch{SwitchValue: value, Cases: cases, DefaultBody: def, Typ: t}
}

// CaseOf produces a switch case.
func CaseOf(body Node, tests ...Node) SwitchCase {
	return SwitchCase{TestValues: tests, Body: body}
}

// CatchOf produces a handler for values
// assignable to v.Type(), bound to v.
func CatchOf(v *Parameter, body Node) CatchBlock {
	return CatchBlock{Test: v.Typ, Variable: v, Body: body}
}

// TryCatch produces a try block with handlers.
func TryCatch(body Node, handlers ...CatchBlock) *Try {
	return &Try{Body: body, Handlers: handlers, Typ: body.Type()}
}

// TryFinally produces a try block with a finally clause.
func TryFinally(body, finally Node) *Try {
	return &Try{Body: body, Finally: finally, Typ: body.Type()}
}
