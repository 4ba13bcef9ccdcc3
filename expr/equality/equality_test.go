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

package equality_test

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/zysharp/metaprogramming/expr"
	"github.com/zysharp/metaprogramming/expr/equality"
)

var (
	intType    = reflect.TypeOf(0)
	stringType = reflect.TypeOf("")
	floatType  = reflect.TypeOf(0.0)
)

// opaque is an extension node
type opaque struct {
	x expr.Node
}

func (o *opaque) Kind() expr.Kind          { return expr.KindExtension }
func (o *opaque) Type() reflect.Type       { return o.x.Type() }
func (o *opaque) CanReduce() bool          { return true }
func (o *opaque) Reduce() expr.Node        { return o.x }
func (o *opaque) VisitChildren(fn func(expr.Node) expr.Node) expr.Node {
	if x := fn(o.x); x != o.x {
		return &opaque{x: x}
	}
	return o
}

func sum(names ...string) *expr.Lambda {
	a := expr.Param(names[0], intType)
	b := expr.Param(names[1], intType)
	return expr.Fn(expr.Add(a, b), a, b)
}

func block(order bool) expr.Node {
	n := expr.Variable("n", intType)
	s := expr.Variable("s", stringType)
	vars := []*expr.Parameter{n, s}
	if !order {
		vars = []*expr.Parameter{s, n}
	}
	return expr.BlockOf(vars,
		expr.Assign(n, expr.Const(1)),
		expr.Assign(s, expr.Const("x")),
		n,
	)
}

func loop(label string) expr.Node {
	i := expr.Param("i", intType)
	brk := expr.LabelOf(label, intType)
	return expr.Fn(expr.LoopOf(
		expr.Cond(expr.Gt(i, expr.Const(10)),
			expr.BreakOf(brk, i),
			expr.AddAssign(i, expr.Const(1))),
		brk, nil), i)
}

func try(name string) expr.Node {
	e := expr.Param(name, stringType)
	return expr.TryCatch(expr.Throw(expr.Const("boom"), stringType), expr.CatchOf(e, e))
}

func captured(v int) expr.Node {
	env := &struct {
		expr.Closure
		limit int
	}{limit: v}
	x := expr.Param("x", intType)
	return expr.Fn(expr.Lt(x, expr.Captured(env, "limit")), x)
}

func constant(v int) expr.Node {
	y := expr.Param("y", intType)
	return expr.Fn(expr.Lt(y, expr.Const(v)), y)
}

type inner struct{ N int }

type outer struct {
	A  int
	L  []int
	In inner
}

var (
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
	sliceType = reflect.TypeOf([]int(nil))
	outerType = reflect.TypeOf(outer{})
	innerType = reflect.TypeOf(inner{})

	appendInt = expr.MethodOf("append", func(xs []int, x int) []int { return append(xs, x) })
)

// kinds builds one tree per node kind. Trees built
// with the same k differ only in the names of their
// binders; trees built with different k differ in
// exactly one field.
var kinds = []func(name string, k int) expr.Node{
	// debug info
	func(name string, k int) expr.Node {
		p := expr.Param(name, intType)
		doc := &expr.SymbolDocument{
			FileName:     "query.go",
			Language:     uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("lang/%d", k))),
			DocumentType: uuid.MustParse("5a869d0b-6611-11d3-bd2a-0000f80849bd"),
		}
		info := &expr.DebugInfo{Document: doc, StartLine: 3, StartColumn: 1, EndLine: 3, EndColumn: 9}
		return expr.Fn(expr.BlockOf(nil, info, p), p)
	},
	// switch
	func(name string, k int) expr.Node {
		p := expr.Param(name, intType)
		return expr.Fn(expr.SwitchOf(intType, p, expr.Const(0),
			expr.CaseOf(expr.Const(10), expr.Const(1), expr.Const(2)),
			expr.CaseOf(expr.Neg(p), expr.Const(k))), p)
	},
	// member init with every binding kind
	func(name string, k int) expr.Node {
		p := expr.Param(name, intType)
		return expr.Fn(&expr.MemberInit{
			New: expr.NewZero(outerType),
			Bindings: []expr.MemberBinding{
				&expr.MemberAssignment{Member: expr.FieldOf(outerType, "A"), Expression: p},
				&expr.MemberListBinding{
					Member:       expr.FieldOf(outerType, "L"),
					Initializers: []expr.ElementInit{{AddMethod: appendInt, Arguments: []expr.Node{expr.Const(k)}}},
				},
				&expr.MemberMemberBinding{
					Member: expr.FieldOf(outerType, "In"),
					Bindings: []expr.MemberBinding{
						&expr.MemberAssignment{Member: expr.FieldOf(innerType, "N"), Expression: expr.Add(p, expr.Const(1))},
					},
				},
			},
		}, p)
	},
	// list init
	func(name string, k int) expr.Node {
		p := expr.Param(name, intType)
		return expr.Fn(&expr.ListInit{
			New: expr.NewZero(sliceType),
			Initializers: []expr.ElementInit{
				{AddMethod: appendInt, Arguments: []expr.Node{p}},
				{AddMethod: appendInt, Arguments: []expr.Node{expr.Const(k)}},
			},
		}, p)
	},
	// index
	func(name string, k int) expr.Node {
		xs := expr.Param(name, sliceType)
		return expr.Fn(&expr.Index{Object: xs, Arguments: []expr.Node{expr.Const(k)}}, xs)
	},
	// invocation
	func(name string, k int) expr.Node {
		p := expr.Param(name, intType)
		q := expr.Param(name+"2", intType)
		return expr.Fn(expr.InvokeOf(expr.Fn(expr.Add(q, expr.Const(k)), q), p), p)
	},
	// runtime variables
	func(name string, k int) expr.Node {
		p := expr.Param(name, intType)
		v := expr.Variable(name+"v", intType)
		return expr.Fn(expr.BlockOf([]*expr.Parameter{v},
			expr.Assign(v, expr.Const(k)),
			&expr.RuntimeVariables{Variables: []*expr.Parameter{v, p}}), p)
	},
	// type test
	func(name string, k int) expr.Node {
		p := expr.Param(name, anyType)
		t := intType
		if k != 1 {
			t = stringType
		}
		return expr.Fn(expr.TypeIsOf(p, t), p)
	},
	// goto and label carrying values
	func(name string, k int) expr.Node {
		p := expr.Param(name, intType)
		ret := expr.LabelOf(name, intType)
		return expr.Fn(expr.BlockOf(nil,
			expr.ReturnOf(ret, expr.Add(p, expr.Const(k))),
			expr.LabelAt(ret, expr.Const(0))), p)
	},
}

func TestEqual(t *testing.T) {
	tests := []struct {
		x, y expr.Node
	}{
		{sum("a", "b"), sum("a", "b")},
		{sum("a", "b"), sum("x", "y")},
		{block(true), block(false)},
		{loop("done"), loop("exit")},
		{try("e"), try("err")},
		{captured(42), constant(42)},
		{expr.Const(math.NaN()), expr.Const(math.NaN())},
		{expr.Const(0.0), expr.Const(math.Copysign(0, -1))},
		{expr.Const(nil), expr.Const(nil)},
		{sum("a", "b"), expr.Copy(sum("a", "b"))},
		{expr.NewSlice(intType, expr.Const(1)), expr.NewSlice(intType, expr.Const(1))},
	}
	for _, build := range kinds {
		tests = append(tests, struct{ x, y expr.Node }{build("a", 1), build("b", 1)})
	}
	for i := range tests {
		x, y := tests[i].x, tests[i].y
		for _, pair := range [][2]expr.Node{{x, y}, {y, x}, {x, x}, {y, y}} {
			eq, err := equality.Equal(pair[0], pair[1])
			if err != nil {
				t.Fatalf("case %d: %s", i, err)
			}
			if !eq {
				t.Errorf("case %d: %s != %s", i, expr.ToString(pair[0]), expr.ToString(pair[1]))
			}
		}
		hx, err := equality.Hash(x)
		if err != nil {
			t.Fatalf("case %d: %s", i, err)
		}
		hy, err := equality.Hash(y)
		if err != nil {
			t.Fatalf("case %d: %s", i, err)
		}
		if hx != hy {
			t.Errorf("case %d: hash %x != %x", i, hx, hy)
		}
		fx, _ := equality.Fingerprint(x)
		fy, _ := equality.Fingerprint(y)
		if fx != fy {
			t.Errorf("case %d: fingerprint %x != %x", i, fx, fy)
		}
	}
}

func TestNotEqual(t *testing.T) {
	a := expr.Param("a", intType)
	b := expr.Param("b", intType)
	aa := expr.Fn(expr.Add(a, a), a, b)

	c := expr.Param("c", intType)
	d := expr.Param("d", intType)
	swapped := expr.Fn(expr.Add(d, c), c, d)

	u := expr.Variable("u", intType)
	v := expr.Variable("v", stringType)
	w := expr.Variable("w", floatType)

	tests := []struct {
		x, y expr.Node
	}{
		{sum("a", "b"), aa},
		{sum("a", "b"), swapped},
		{expr.Const(1), expr.Const(2)},
		{expr.Const(1), expr.Const(int64(1))},
		{expr.Add(expr.Const(1), expr.Const(2)), expr.Sub(expr.Const(1), expr.Const(2))},
		{expr.Fn(expr.Const(1)), expr.Fn(expr.Const("1"))},
		{expr.BlockOf([]*expr.Parameter{u, v}, expr.Const(1)), expr.BlockOf([]*expr.Parameter{u, w}, expr.Const(1))},
		{captured(42), constant(43)},
		{expr.Const(nil), expr.Const(0)},
		{expr.Empty(), expr.DefaultOf(intType)},
	}
	first := len(tests)
	for _, build := range kinds {
		tests = append(tests, struct{ x, y expr.Node }{build("a", 1), build("a", 2)})
	}
	// the same variables exposed in another order
	p := expr.Param("p", intType)
	q := expr.Variable("q", intType)
	tests = append(tests, struct{ x, y expr.Node }{
		expr.Fn(expr.BlockOf([]*expr.Parameter{q}, &expr.RuntimeVariables{Variables: []*expr.Parameter{q, p}}), p),
		expr.Fn(expr.BlockOf([]*expr.Parameter{q}, &expr.RuntimeVariables{Variables: []*expr.Parameter{p, q}}), p),
	})
	for i := range tests {
		x, y := tests[i].x, tests[i].y
		eq, err := equality.Equal(x, y)
		if err != nil {
			t.Fatalf("case %d: %s", i, err)
		}
		if eq {
			t.Errorf("case %d: %s == %s", i, expr.ToString(x), expr.ToString(y))
		}
		eq, _ = equality.Equal(y, x)
		if eq {
			t.Errorf("case %d: not symmetric", i)
		}
		if i >= first {
			hx, _ := equality.Hash(x)
			hy, _ := equality.Hash(y)
			if hx == hy {
				t.Errorf("case %d: %s and %s hash alike", i, expr.ToString(x), expr.ToString(y))
			}
		}
	}

	hx, _ := equality.Hash(sum("a", "b"))
	hy, _ := equality.Hash(aa)
	if hx == hy {
		t.Error("a + b and a + a hash alike")
	}
}

type predicate func(int) bool

func TestFlags(t *testing.T) {
	x := expr.Param("x", intType)
	y := expr.Param("y", intType)
	named := expr.FnOf(reflect.TypeOf(predicate(nil)), expr.Eq(x, expr.Const(42)), x)
	plain := expr.Fn(expr.Eq(y, expr.Const(42)), y)

	lbl := func(name string) expr.Node {
		l := expr.LabelOf(name, nil)
		return expr.BlockOf(nil, expr.GotoOf(l), expr.LabelAt(l, nil))
	}
	withName := func(name string) expr.Node {
		l := sum("a", "b")
		l.Name = name
		return l
	}

	tests := []struct {
		x, y  expr.Node
		flags equality.Flags
		want  bool
	}{
		{named, plain, equality.DefaultFlags, true},
		{named, plain, equality.DefaultFlags &^ equality.IgnoreLambdaType, false},
		{named, plain, equality.IgnoreLambdaType, false},
		{named, plain, equality.IgnoreLambdaType | equality.IgnoreParameterName, true},
		{sum("a", "b"), sum("x", "y"), 0, false},
		{sum("a", "b"), sum("a", "b"), 0, true},
		{lbl("L1"), lbl("L2"), equality.IgnoreLabelName, true},
		{lbl("L1"), lbl("L2"), 0, false},
		{withName("f"), withName("g"), equality.IgnoreLambdaName, true},
		{withName("f"), withName("g"), equality.IgnoreParameterName, false},
	}
	for i := range tests {
		c := equality.New(tests[i].flags)
		eq, err := c.Equal(tests[i].x, tests[i].y)
		if err != nil {
			t.Fatalf("case %d: %s", i, err)
		}
		if eq != tests[i].want {
			t.Errorf("case %d: flags %s: got %v", i, tests[i].flags, eq)
		}
		if eq {
			hx, _ := c.Hash(tests[i].x)
			hy, _ := c.Hash(tests[i].y)
			if hx != hy {
				t.Errorf("case %d: equal trees hash differently", i)
			}
		}
	}
}

func TestUnsupported(t *testing.T) {
	dyn := func() expr.Node {
		return &expr.Dynamic{Arguments: []expr.Node{expr.Const(1)}, Typ: intType}
	}
	x := expr.Param("x", intType)
	nested := func() expr.Node {
		return expr.Fn(expr.Add(x, dyn()), x)
	}
	for i, pair := range [][2]expr.Node{{dyn(), dyn()}, {nested(), nested()}} {
		for j := 0; j < 2; j++ {
			_, err := equality.Equal(pair[0], pair[1])
			var ue *equality.UnsupportedKindError
			if !errors.As(err, &ue) || ue.Kind != expr.KindDynamic {
				t.Errorf("case %d: Equal returned %v", i, err)
			}
			_, err = equality.Hash(pair[0])
			if !errors.As(err, &ue) {
				t.Errorf("case %d: Hash returned %v", i, err)
			}
		}
	}

	ext := &opaque{x: expr.Const(1)}
	_, err := equality.Equal(ext, ext)
	var re *equality.UnrecognizedKindError
	if !errors.As(err, &re) {
		t.Errorf("Equal returned %v", err)
	}
	_, err = equality.Hash(ext)
	if !errors.As(err, &re) {
		t.Errorf("Hash returned %v", err)
	}
	// reducing first makes the tree comparable
	eq, err := equality.Equal(expr.ReduceExtensionsRecursive(ext), expr.Const(1))
	if err != nil || !eq {
		t.Errorf("got %v, %v", eq, err)
	}
}

func TestNil(t *testing.T) {
	eq, err := equality.Equal(nil, nil)
	if err != nil || !eq {
		t.Errorf("nil != nil")
	}
	eq, _ = equality.Equal(nil, expr.Const(1))
	if eq {
		t.Errorf("nil == 1")
	}
	h, err := equality.Hash(nil)
	if err != nil || h != 0 {
		t.Errorf("got %x, %v", h, err)
	}
}
