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
	"fmt"
	"reflect"

	"golang.org/x/exp/slices"

	"github.com/zysharp/metaprogramming/expr"
)

// bijection pairs the entities of
// one tree with those of the other.
type bijection[T comparable] struct {
	fwd, rev map[T]T
}

func newBijection[T comparable]() bijection[T] {
	return bijection[T]{fwd: make(map[T]T), rev: make(map[T]T)}
}

// pair records x <-> y, or checks
// a previously recorded pairing.
func (b *bijection[T]) pair(x, y T) bool {
	px, okx := b.fwd[x]
	py, oky := b.rev[y]
	if okx || oky {
		return okx && oky && px == y && py == x
	}
	b.fwd[x] = y
	b.rev[y] = x
	return true
}

func (b *bijection[T]) paired(x T) (T, bool) {
	y, ok := b.fwd[x]
	return y, ok
}

func (b *bijection[T]) pairedTo(y T) bool {
	_, ok := b.rev[y]
	return ok
}

// compareState is allocated for
// each call to Comparer.Equal.
type compareState struct {
	flags  Flags
	params bijection[*expr.Parameter]
	labels bijection[*expr.LabelTarget]
}

func newCompareState(flags Flags) *compareState {
	return &compareState{
		flags:  flags,
		params: newBijection[*expr.Parameter](),
		labels: newBijection[*expr.LabelTarget](),
	}
}

func (s *compareState) opt(x, y expr.Node) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return s.node(x, y)
}

func (s *compareState) list(x, y []expr.Node) bool {
	return slices.EqualFunc(x, y, s.opt)
}

func (s *compareState) sameParam(x, y *expr.Parameter) bool {
	if x.Typ != y.Typ || x.ByRef != y.ByRef {
		return false
	}
	return s.flags&IgnoreParameterName != 0 || x.Name == y.Name
}

func (s *compareState) param(x, y *expr.Parameter) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return s.sameParam(x, y) && s.params.pair(x, y)
}

func (s *compareState) paramList(x, y []*expr.Parameter) bool {
	return slices.EqualFunc(x, y, s.param)
}

// paramSet compares block variables
// without regard to their order. Variables
// already paired by the block body must find
// their partners; each of the rest is paired
// with the first free variable that matches it.
func (s *compareState) paramSet(x, y []*expr.Parameter) bool {
	if len(x) != len(y) {
		return false
	}
	used := make([]bool, len(y))
	var rest []*expr.Parameter
	for _, p := range x {
		q, ok := s.params.paired(p)
		if !ok {
			rest = append(rest, p)
			continue
		}
		i := slices.Index(y, q)
		if i < 0 || used[i] || !s.param(p, q) {
			return false
		}
		used[i] = true
	}
outer:
	for _, p := range rest {
		for j, q := range y {
			if used[j] || s.params.pairedTo(q) || !s.sameParam(p, q) {
				continue
			}
			used[j] = true
			s.params.pair(p, q)
			continue outer
		}
		return false
	}
	return true
}

func (s *compareState) label(x, y *expr.LabelTarget) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	if x.Typ != y.Typ {
		return false
	}
	if s.flags&IgnoreLabelName == 0 && x.Name != y.Name {
		return false
	}
	return s.labels.pair(x, y)
}

func (s *compareState) lambda(x, y *expr.Lambda) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	if s.flags&IgnoreLambdaType == 0 && x.Typ != y.Typ {
		return false
	}
	if x.ReturnType() != y.ReturnType() {
		return false
	}
	if s.flags&IgnoreLambdaName == 0 && x.Name != y.Name {
		return false
	}
	return x.TailCall == y.TailCall &&
		s.paramList(x.Parameters, y.Parameters) &&
		s.node(x.Body, y.Body)
}

func (s *compareState) newNode(x, y *expr.New) bool {
	return x.Typ == y.Typ &&
		expr.SameConstructor(x.Constructor, y.Constructor) &&
		s.list(x.Arguments, y.Arguments) &&
		slices.EqualFunc(x.Members, y.Members, expr.SameMember)
}

func (s *compareState) inits(x, y []expr.ElementInit) bool {
	return slices.EqualFunc(x, y, func(a, b expr.ElementInit) bool {
		return expr.SameMethod(a.AddMethod, b.AddMethod) && s.list(a.Arguments, b.Arguments)
	})
}

func (s *compareState) bindings(x, y []expr.MemberBinding) bool {
	return slices.EqualFunc(x, y, s.binding)
}

func (s *compareState) binding(x, y expr.MemberBinding) bool {
	if !expr.SameMember(x.BoundMember(), y.BoundMember()) {
		return false
	}
	switch x := x.(type) {
	case *expr.MemberAssignment:
		y, ok := y.(*expr.MemberAssignment)
		return ok && s.node(x.Expression, y.Expression)
	case *expr.MemberListBinding:
		y, ok := y.(*expr.MemberListBinding)
		return ok && s.inits(x.Initializers, y.Initializers)
	case *expr.MemberMemberBinding:
		y, ok := y.(*expr.MemberMemberBinding)
		return ok && s.bindings(x.Bindings, y.Bindings)
	}
	panic(fmt.Sprintf("equality: unexpected binding %T", x))
}

func sameDocument(x, y *expr.SymbolDocument) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return *x == *y
}

func (s *compareState) node(x, y expr.Node) bool {
	if x.Kind() != y.Kind() {
		return false
	}
	if x.Kind() == expr.KindDynamic || x.Kind() == expr.KindExtension {
		fail(kindError(x))
	}
	if x.Kind() != expr.KindLambda && x.Type() != y.Type() {
		return false
	}
	switch x := x.(type) {
	case *expr.Binary:
		y := y.(*expr.Binary)
		return x.Op == y.Op &&
			x.Lifted == y.Lifted && x.LiftedToNull == y.LiftedToNull &&
			expr.SameMethod(x.Method, y.Method) &&
			s.node(x.Left, y.Left) &&
			s.lambda(x.Conversion, y.Conversion) &&
			s.node(x.Right, y.Right)
	case *expr.Block:
		y := y.(*expr.Block)
		// the body pairs most variables, so it goes first
		return s.list(x.Expressions, y.Expressions) &&
			s.paramSet(x.Variables, y.Variables)
	case *expr.Conditional:
		y := y.(*expr.Conditional)
		return s.node(x.Test, y.Test) &&
			s.node(x.IfTrue, y.IfTrue) &&
			s.node(x.IfFalse, y.IfFalse)
	case *expr.Constant:
		y := y.(*expr.Constant)
		return valueEqual(reflect.ValueOf(x.Value), reflect.ValueOf(y.Value))
	case *expr.DebugInfo:
		y := y.(*expr.DebugInfo)
		return x.StartLine == y.StartLine && x.StartColumn == y.StartColumn &&
			x.EndLine == y.EndLine && x.EndColumn == y.EndColumn &&
			sameDocument(x.Document, y.Document)
	case *expr.Default:
		return true
	case *expr.Goto:
		y := y.(*expr.Goto)
		return x.Op == y.Op &&
			s.label(x.Target, y.Target) &&
			s.opt(x.Value, y.Value)
	case *expr.Index:
		y := y.(*expr.Index)
		return s.node(x.Object, y.Object) &&
			expr.SameMember(indexer(x), indexer(y)) &&
			s.list(x.Arguments, y.Arguments)
	case *expr.Invocation:
		y := y.(*expr.Invocation)
		return s.node(x.Expression, y.Expression) &&
			s.list(x.Arguments, y.Arguments)
	case *expr.Label:
		y := y.(*expr.Label)
		return s.label(x.Target, y.Target) &&
			s.opt(x.DefaultValue, y.DefaultValue)
	case *expr.Lambda:
		return s.lambda(x, y.(*expr.Lambda))
	case *expr.ListInit:
		y := y.(*expr.ListInit)
		return s.newNode(x.New, y.New) &&
			s.inits(x.Initializers, y.Initializers)
	case *expr.Loop:
		y := y.(*expr.Loop)
		return s.label(x.Break, y.Break) &&
			s.label(x.Continue, y.Continue) &&
			s.node(x.Body, y.Body)
	case *expr.MemberAccess:
		y := y.(*expr.MemberAccess)
		return expr.SameMember(x.Member, y.Member) &&
			s.opt(x.Expression, y.Expression)
	case *expr.MemberInit:
		y := y.(*expr.MemberInit)
		return s.newNode(x.New, y.New) &&
			s.bindings(x.Bindings, y.Bindings)
	case *expr.Call:
		y := y.(*expr.Call)
		return expr.SameMethod(x.Method, y.Method) &&
			s.opt(x.Object, y.Object) &&
			s.list(x.Arguments, y.Arguments)
	case *expr.NewArray:
		y := y.(*expr.NewArray)
		return x.Op == y.Op && s.list(x.Expressions, y.Expressions)
	case *expr.New:
		return s.newNode(x, y.(*expr.New))
	case *expr.Parameter:
		return s.param(x, y.(*expr.Parameter))
	case *expr.RuntimeVariables:
		y := y.(*expr.RuntimeVariables)
		return s.paramList(x.Variables, y.Variables)
	case *expr.Switch:
		y := y.(*expr.Switch)
		return expr.SameMethod(x.Comparison, y.Comparison) &&
			s.node(x.SwitchValue, y.SwitchValue) &&
			slices.EqualFunc(x.Cases, y.Cases, func(a, b expr.SwitchCase) bool {
				return s.list(a.TestValues, b.TestValues) && s.node(a.Body, b.Body)
			}) &&
			s.opt(x.DefaultBody, y.DefaultBody)
	case *expr.Try:
		y := y.(*expr.Try)
		return s.node(x.Body, y.Body) &&
			slices.EqualFunc(x.Handlers, y.Handlers, s.handler) &&
			s.opt(x.Finally, y.Finally) &&
			s.opt(x.Fault, y.Fault)
	case *expr.TypeTest:
		y := y.(*expr.TypeTest)
		return x.Op == y.Op && x.TypeOperand == y.TypeOperand &&
			s.node(x.Expression, y.Expression)
	case *expr.Unary:
		y := y.(*expr.Unary)
		return x.Op == y.Op &&
			x.Lifted == y.Lifted && x.LiftedToNull == y.LiftedToNull &&
			expr.SameMethod(x.Method, y.Method) &&
			s.opt(x.Operand, y.Operand)
	}
	panic(fmt.Sprintf("equality: unexpected node %T of kind %s", x, x.Kind()))
}

func (s *compareState) handler(x, y expr.CatchBlock) bool {
	return x.Test == y.Test &&
		s.param(x.Variable, y.Variable) &&
		s.opt(x.Filter, y.Filter) &&
		s.node(x.Body, y.Body)
}

// indexer returns the member of an
// indexed access, or nil for built-in indexing.
func indexer(i *expr.Index) expr.Member {
	if i.Indexer == nil {
		return nil
	}
	return i.Indexer
}
