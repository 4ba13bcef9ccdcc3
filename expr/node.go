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

	"github.com/google/uuid"
)

// Kind is the tag of an expression node.
// The set of kinds is closed; every switch
// over Kind in this module is expected to
// handle all of them.
type Kind uint8

const (
	KindBinary Kind = iota
	KindBlock
	KindConditional
	KindConstant
	KindDebugInfo
	KindDefault
	KindDynamic
	KindExtension
	KindGoto
	KindIndex
	KindInvocation
	KindLabel
	KindLambda
	KindListInit
	KindLoop
	KindMember
	KindMemberInit
	KindCall
	KindNewArray
	KindNew
	KindParameter
	KindRuntimeVariables
	KindSwitch
	KindTry
	KindTypeTest
	KindUnary

	maxKind
)

var kindNames = [maxKind]string{
	KindBinary:           "Binary",
	KindBlock:            "Block",
	KindConditional:      "Conditional",
	KindConstant:         "Constant",
	KindDebugInfo:        "DebugInfo",
	KindDefault:          "Default",
	KindDynamic:          "Dynamic",
	KindExtension:        "Extension",
	KindGoto:             "Goto",
	KindIndex:            "Index",
	KindInvocation:       "Invocation",
	KindLabel:            "Label",
	KindLambda:           "Lambda",
	KindListInit:         "ListInit",
	KindLoop:             "Loop",
	KindMember:           "Member",
	KindMemberInit:       "MemberInit",
	KindCall:             "Call",
	KindNewArray:         "NewArray",
	KindNew:              "New",
	KindParameter:        "Parameter",
	KindRuntimeVariables: "RuntimeVariables",
	KindSwitch:           "Switch",
	KindTry:              "Try",
	KindTypeTest:         "TypeTest",
	KindUnary:            "Unary",
}

func (k Kind) String() string {
	if k < maxKind {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is an expression tree node.
//
// Nodes are immutable once constructed and
// may be shared freely between trees and goroutines.
// All of the node types in this package are pointers;
// Parameter and LabelTarget are compared by identity.
type Node interface {
	// Kind returns the tag of the node.
	Kind() Kind
	// Type returns the static type that
	// the node evaluates to, or nil if
	// the node does not produce a value.
	Type() reflect.Type
}

// Reducible is implemented by nodes that
// can be rewritten into simpler nodes.
type Reducible interface {
	Node
	CanReduce() bool
	Reduce() Node
}

// Extension is a caller-defined node.
//
// Traversals in this package descend into
// an extension through VisitChildren and
// never reduce it on their own.
type Extension interface {
	Reducible
	// VisitChildren calls fn on each child
	// and returns a node built from the results.
	// If no child changed, the receiver should be returned.
	VisitChildren(fn func(Node) Node) Node
}

// BinaryOp is the operator of a Binary node.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpPower
	OpAnd
	OpOr
	OpExclusiveOr
	OpLeftShift
	OpRightShift
	OpAndAlso
	OpOrElse
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpCoalesce
	OpArrayIndex
	OpAssign
	OpAddAssign
	OpSubtractAssign
	OpMultiplyAssign
	OpDivideAssign
	OpModuloAssign
	OpPowerAssign
	OpAndAssign
	OpOrAssign
	OpExclusiveOrAssign
	OpLeftShiftAssign
	OpRightShiftAssign

	maxBinaryOp
)

var binaryOpNames = [maxBinaryOp]string{
	OpAdd: "+", OpSubtract: "-", OpMultiply: "*", OpDivide: "/", OpModulo: "%",
	OpPower: "**", OpAnd: "&", OpOr: "|", OpExclusiveOr: "^", OpLeftShift: "<<",
	OpRightShift: ">>", OpAndAlso: "&&", OpOrElse: "||", OpEqual: "==",
	OpNotEqual: "!=", OpLessThan: "<", OpLessThanOrEqual: "<=", OpGreaterThan: ">",
	OpGreaterThanOrEqual: ">=", OpCoalesce: "??", OpArrayIndex: "[]", OpAssign: "=",
	OpAddAssign: "+=", OpSubtractAssign: "-=", OpMultiplyAssign: "*=",
	OpDivideAssign: "/=", OpModuloAssign: "%=", OpPowerAssign: "**=",
	OpAndAssign: "&=", OpOrAssign: "|=", OpExclusiveOrAssign: "^=",
	OpLeftShiftAssign: "<<=", OpRightShiftAssign: ">>=",
}

func (op BinaryOp) String() string {
	if op < maxBinaryOp {
		return binaryOpNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// Compound returns the arithmetic operator
// that a compound assignment applies,
// or (0, false) if op is not a compound assignment.
func (op BinaryOp) Compound() (BinaryOp, bool) {
	if op >= OpAddAssign && op <= OpRightShiftAssign {
		return [...]BinaryOp{
			OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo, OpPower,
			OpAnd, OpOr, OpExclusiveOr, OpLeftShift, OpRightShift,
		}[op-OpAddAssign], true
	}
	return 0, false
}

// Comparison returns true for the
// operators that always produce a bool.
func (op BinaryOp) Comparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessThanOrEqual,
		OpGreaterThan, OpGreaterThanOrEqual, OpAndAlso, OpOrElse:
		return true
	}
	return false
}

// Binary is a binary operation or an assignment.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
	// Method, if non-nil, implements the operator.
	Method *Method
	// Conversion is only used by OpCoalesce
	// and compound assignments.
	Conversion   *Lambda
	Lifted       bool
	LiftedToNull bool
	Typ          reflect.Type
}

func (b *Binary) Kind() Kind         { return KindBinary }
func (b *Binary) Type() reflect.Type { return b.Typ }

// CanReduce returns true for compound assignments.
func (b *Binary) CanReduce() bool {
	_, ok := b.Op.Compound()
	return ok
}

// Reduce rewrites a compound assignment
// into a plain assignment. The operands of
// member and index targets are evaluated once.
func (b *Binary) Reduce() Node {
	op, ok := b.Op.Compound()
	if !ok {
		return b
	}
	apply := func(target Node) Node {
		var val Node = &Binary{Op: op, Left: target, Right: b.Right, Method: b.Method, Typ: b.Typ}
		if b.Conversion != nil {
			val = &Invocation{Expression: b.Conversion, Arguments: []Node{val}}
		}
		return &Binary{Op: OpAssign, Left: target, Right: val, Typ: target.Type()}
	}
	switch l := b.Left.(type) {
	case *MemberAccess:
		if l.Expression == nil {
			return apply(l)
		}
		tmp := Variable("obj", l.Expression.Type())
		return &Block{
			Variables: []*Parameter{tmp},
			Expressions: []Node{
				&Binary{Op: OpAssign, Left: tmp, Right: l.Expression, Typ: tmp.Typ},
				apply(&MemberAccess{Expression: tmp, Member: l.Member}),
			},
			Typ: b.Typ,
		}
	case *Index:
		var vars []*Parameter
		var body []Node
		bind := func(n Node, name string) Node {
			v := Variable(name, n.Type())
			vars = append(vars, v)
			body = append(body, &Binary{Op: OpAssign, Left: v, Right: n, Typ: v.Typ})
			return v
		}
		obj := bind(l.Object, "obj")
		args := make([]Node, len(l.Arguments))
		for i := range l.Arguments {
			args[i] = bind(l.Arguments[i], fmt.Sprintf("arg%d", i))
		}
		body = append(body, apply(&Index{Object: obj, Indexer: l.Indexer, Arguments: args}))
		return &Block{Variables: vars, Expressions: body, Typ: b.Typ}
	default:
		return apply(l)
	}
}

// Block is a sequence of expressions
// with an optional list of local variables.
// The value of a block is the value of
// its last expression.
type Block struct {
	Variables   []*Parameter
	Expressions []Node
	Typ         reflect.Type
}

func (b *Block) Kind() Kind         { return KindBlock }
func (b *Block) Type() reflect.Type { return b.Typ }

// Result returns the last expression of the block.
func (b *Block) Result() Node {
	if len(b.Expressions) == 0 {
		return nil
	}
	return b.Expressions[len(b.Expressions)-1]
}

// Conditional is a ternary test ? a : b.
type Conditional struct {
	Test    Node
	IfTrue  Node
	IfFalse Node
	Typ     reflect.Type
}

func (c *Conditional) Kind() Kind         { return KindConditional }
func (c *Conditional) Type() reflect.Type { return c.Typ }

// Constant is a literal value.
type Constant struct {
	Value any
	Typ   reflect.Type
}

func (c *Constant) Kind() Kind         { return KindConstant }
func (c *Constant) Type() reflect.Type { return c.Typ }

// SymbolDocument describes the source
// file referenced by a DebugInfo node.
type SymbolDocument struct {
	FileName       string
	Language       uuid.UUID
	LanguageVendor uuid.UUID
	DocumentType   uuid.UUID
}

// clearLine is the line number
// used by a DebugInfo node that clears
// a previously set sequence point.
const clearLine = 0xfeefee

// DebugInfo marks a sequence point.
type DebugInfo struct {
	Document    *SymbolDocument
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

func (d *DebugInfo) Kind() Kind         { return KindDebugInfo }
func (d *DebugInfo) Type() reflect.Type { return nil }

// IsClear returns whether d clears the current sequence point.
func (d *DebugInfo) IsClear() bool { return d.StartLine == clearLine }

// Default produces the zero value of its type.
type Default struct {
	Typ reflect.Type
}

func (d *Default) Kind() Kind         { return KindDefault }
func (d *Default) Type() reflect.Type { return d.Typ }

// Dynamic is a late-bound operation.
// It is accepted by the node model but
// rejected by comparison, hashing and compilation.
type Dynamic struct {
	Binder    any
	Arguments []Node
	Typ       reflect.Type
}

func (d *Dynamic) Kind() Kind         { return KindDynamic }
func (d *Dynamic) Type() reflect.Type { return d.Typ }

// GotoKind distinguishes the flavors of Goto.
type GotoKind uint8

const (
	GotoJump GotoKind = iota
	GotoReturn
	GotoBreak
	GotoContinue
)

func (g GotoKind) String() string {
	switch g {
	case GotoJump:
		return "goto"
	case GotoReturn:
		return "return"
	case GotoBreak:
		return "break"
	case GotoContinue:
		return "continue"
	}
	return fmt.Sprintf("GotoKind(%d)", int(g))
}

// LabelTarget is a jump destination.
// Targets are compared by identity;
// Name is for display only.
type LabelTarget struct {
	Name string
	Typ  reflect.Type
}

func (l *LabelTarget) String() string {
	if l.Name == "" {
		return fmt.Sprintf("L%p", l)
	}
	return l.Name
}

// Goto jumps to Target, optionally
// carrying Value to the label.
type Goto struct {
	Op     GotoKind
	Target *LabelTarget
	Value  Node
	Typ    reflect.Type
}

func (g *Goto) Kind() Kind         { return KindGoto }
func (g *Goto) Type() reflect.Type { return g.Typ }

// Index is an indexed access, either
// into a slice, array or map (Indexer == nil)
// or through an indexed property.
type Index struct {
	Object    Node
	Indexer   *Property
	Arguments []Node
}

func (i *Index) Kind() Kind { return KindIndex }

func (i *Index) Type() reflect.Type {
	if i.Indexer != nil {
		return i.Indexer.Type()
	}
	return elemType(i.Object.Type())
}

func elemType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Pointer:
		return t.Elem()
	case reflect.String:
		return reflect.TypeOf(byte(0))
	}
	return nil
}

// Invocation applies a function-typed
// expression to a list of arguments.
type Invocation struct {
	Expression Node
	Arguments  []Node
}

func (i *Invocation) Kind() Kind { return KindInvocation }

func (i *Invocation) Type() reflect.Type {
	return funcResult(i.Expression.Type())
}

func funcResult(t reflect.Type) reflect.Type {
	if t == nil || t.Kind() != reflect.Func || t.NumOut() == 0 {
		return nil
	}
	return t.Out(0)
}

// Label marks the position of Target within
// a block; DefaultValue is the value of the
// label when control falls through to it.
type Label struct {
	Target       *LabelTarget
	DefaultValue Node
}

func (l *Label) Kind() Kind         { return KindLabel }
func (l *Label) Type() reflect.Type { return l.Target.Typ }

// Lambda is a function literal.
// Typ is the func type of the literal,
// which may be a named type.
type Lambda struct {
	Body       Node
	Parameters []*Parameter
	Name       string
	TailCall   bool
	Typ        reflect.Type
}

func (l *Lambda) Kind() Kind         { return KindLambda }
func (l *Lambda) Type() reflect.Type { return l.Typ }

// ReturnType returns the result type of
// the lambda, or nil if it returns nothing.
func (l *Lambda) ReturnType() reflect.Type { return funcResult(l.Typ) }

// Compile turns the lambda into a func
// value of type l.Type().
func (l *Lambda) Compile() (any, error) { return Compile(l) }

// ElementInit is one call to an Add-style
// method inside a collection initializer.
type ElementInit struct {
	AddMethod *Method
	Arguments []Node
}

// ListInit constructs a collection and
// calls Initializers on it in order.
type ListInit struct {
	New          *New
	Initializers []ElementInit
}

func (l *ListInit) Kind() Kind         { return KindListInit }
func (l *ListInit) Type() reflect.Type { return l.New.Type() }

// Loop repeats Body until control
// jumps to Break.
type Loop struct {
	Body     Node
	Break    *LabelTarget
	Continue *LabelTarget
}

func (l *Loop) Kind() Kind { return KindLoop }

func (l *Loop) Type() reflect.Type {
	if l.Break == nil {
		return nil
	}
	return l.Break.Typ
}

// MemberAccess reads a field or property.
// Expression is nil for package-level members.
type MemberAccess struct {
	Expression Node
	Member     Member
}

func (m *MemberAccess) Kind() Kind         { return KindMember }
func (m *MemberAccess) Type() reflect.Type { return m.Member.Type() }

// MemberBinding is one of *MemberAssignment,
// *MemberListBinding or *MemberMemberBinding.
type MemberBinding interface {
	BoundMember() Member
}

// MemberAssignment assigns Expression to a member.
type MemberAssignment struct {
	Member     Member
	Expression Node
}

func (m *MemberAssignment) BoundMember() Member { return m.Member }

// MemberListBinding calls initializers
// on the collection held by a member.
type MemberListBinding struct {
	Member       Member
	Initializers []ElementInit
}

func (m *MemberListBinding) BoundMember() Member { return m.Member }

// MemberMemberBinding applies bindings
// to the value held by a member.
type MemberMemberBinding struct {
	Member   Member
	Bindings []MemberBinding
}

func (m *MemberMemberBinding) BoundMember() Member { return m.Member }

// MemberInit constructs a value and
// then applies Bindings to it.
type MemberInit struct {
	New      *New
	Bindings []MemberBinding
}

func (m *MemberInit) Kind() Kind         { return KindMemberInit }
func (m *MemberInit) Type() reflect.Type { return m.New.Type() }

// Call calls Method. Object is the
// receiver and is nil for static methods.
type Call struct {
	Object    Node
	Method    *Method
	Arguments []Node
}

func (c *Call) Kind() Kind         { return KindCall }
func (c *Call) Type() reflect.Type { return c.Method.Out() }

// NewArrayOp distinguishes the flavors of NewArray.
type NewArrayOp uint8

const (
	// NewArrayInit builds a slice from its elements.
	NewArrayInit NewArrayOp = iota
	// NewArrayBounds builds a zeroed slice
	// with the length given by its single expression.
	NewArrayBounds
)

// NewArray constructs a slice.
type NewArray struct {
	Op          NewArrayOp
	Expressions []Node
	Typ         reflect.Type
}

func (n *NewArray) Kind() Kind         { return KindNewArray }
func (n *NewArray) Type() reflect.Type { return n.Typ }

// New constructs a value. When Constructor is nil
// the result is the zero value of Typ. Members, if present,
// associates each argument with the member it initializes.
type New struct {
	Constructor *Constructor
	Arguments   []Node
	Members     []Member
	Typ         reflect.Type
}

func (n *New) Kind() Kind         { return KindNew }
func (n *New) Type() reflect.Type { return n.Typ }

// Parameter is a bound variable introduced
// by a Lambda, a Block or a CatchBlock.
// Parameters are compared by identity;
// Name is for display only.
type Parameter struct {
	Name  string
	Typ   reflect.Type
	ByRef bool
}

func (p *Parameter) Kind() Kind         { return KindParameter }
func (p *Parameter) Type() reflect.Type { return p.Typ }

// RuntimeVariables exposes Variables
// to the running code as a *Vars value.
type RuntimeVariables struct {
	Variables []*Parameter
}

func (r *RuntimeVariables) Kind() Kind         { return KindRuntimeVariables }
func (r *RuntimeVariables) Type() reflect.Type { return varsType }

// SwitchCase is one arm of a Switch.
type SwitchCase struct {
	TestValues []Node
	Body       Node
}

// Switch selects the first case with a test value
// equal to SwitchValue, comparing with Comparison
// when it is non-nil.
type Switch struct {
	SwitchValue Node
	Comparison  *Method
	Cases       []SwitchCase
	DefaultBody Node
	Typ         reflect.Type
}

func (s *Switch) Kind() Kind         { return KindSwitch }
func (s *Switch) Type() reflect.Type { return s.Typ }

// CatchBlock handles values thrown inside a Try
// whose dynamic type is assignable to Test.
type CatchBlock struct {
	Test     reflect.Type
	Variable *Parameter
	Filter   Node
	Body     Node
}

// Try is a protected region with handlers.
type Try struct {
	Body     Node
	Handlers []CatchBlock
	Finally  Node
	Fault    Node
	Typ      reflect.Type
}

func (t *Try) Kind() Kind         { return KindTry }
func (t *Try) Type() reflect.Type { return t.Typ }

// TypeTestOp distinguishes the flavors of TypeTest.
type TypeTestOp uint8

const (
	// TypeIs tests assignability.
	TypeIs TypeTestOp = iota
	// TypeEqual tests for an exact type match.
	TypeEqual
)

// TypeTest checks the dynamic type of Expression.
type TypeTest struct {
	Op          TypeTestOp
	Expression  Node
	TypeOperand reflect.Type
}

func (t *TypeTest) Kind() Kind         { return KindTypeTest }
func (t *TypeTest) Type() reflect.Type { return boolType }

// UnaryOp is the operator of a Unary node.
type UnaryOp uint8

const (
	OpNegate UnaryOp = iota
	OpUnaryPlus
	OpNot
	OpOnesComplement
	OpConvert
	OpTypeAs
	OpQuote
	OpArrayLength
	OpThrow
	OpIncrement
	OpDecrement
	OpIsTrue
	OpIsFalse

	maxUnaryOp
)

var unaryOpNames = [maxUnaryOp]string{
	OpNegate: "-", OpUnaryPlus: "+", OpNot: "!", OpOnesComplement: "^",
	OpConvert: "Convert", OpTypeAs: "TypeAs", OpQuote: "Quote",
	OpArrayLength: "len", OpThrow: "throw", OpIncrement: "Increment",
	OpDecrement: "Decrement", OpIsTrue: "IsTrue", OpIsFalse: "IsFalse",
}

func (op UnaryOp) String() string {
	if op < maxUnaryOp {
		return unaryOpNames[op]
	}
	return fmt.Sprintf("UnaryOp(%d)", int(op))
}

// Unary is a unary operation.
type Unary struct {
	Op           UnaryOp
	Operand      Node
	Method       *Method
	Lifted       bool
	LiftedToNull bool
	Typ          reflect.Type
}

func (u *Unary) Kind() Kind         { return KindUnary }
func (u *Unary) Type() reflect.Type { return u.Typ }

var (
	boolType   = reflect.TypeOf(false)
	intType    = reflect.TypeOf(0)
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
	nodeType   = reflect.TypeOf((*Node)(nil)).Elem()
	lambdaType = reflect.TypeOf((*Lambda)(nil))
	varsType   = reflect.TypeOf((*Vars)(nil))
)

// IsTreeType returns whether values of type t
// are expression trees.
func IsTreeType(t reflect.Type) bool {
	return t != nil && t.Implements(nodeType)
}
