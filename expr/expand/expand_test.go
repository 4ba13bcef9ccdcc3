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

package expand_test

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/exp/slices"

	"github.com/zysharp/metaprogramming/expr"
	"github.com/zysharp/metaprogramming/expr/equality"
	"github.com/zysharp/metaprogramming/expr/expand"
)

var (
	intType    = reflect.TypeOf(0)
	sliceType  = reflect.TypeOf([]int(nil))
	lambdaType = reflect.TypeOf((*expr.Lambda)(nil))
)

// where keeps the elements of xs accepted by pred
var where = expr.MethodOf("Where", func(xs []int, pred *expr.Lambda) []int {
	f, err := pred.Compile()
	if err != nil {
		panic(err)
	}
	keep := f.(func(int) bool)
	var out []int
	for _, x := range xs {
		if keep(x) {
			out = append(out, x)
		}
	}
	return out
})

// whereNode is like where, but takes
// the predicate as an arbitrary tree
var whereNode = expr.MethodOf("WhereNode", func(xs []int, pred expr.Node) []int {
	return where.Func().Interface().(func([]int, *expr.Lambda) []int)(xs, pred.(*expr.Lambda))
})

func mustEqual(t *testing.T, got, want expr.Node) {
	t.Helper()
	eq, err := equality.Equal(got, want)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Errorf("got  %s\nwant %s", expr.ToString(got), expr.ToString(want))
	}
}

func mustExpand(t *testing.T, n expr.Node) expr.Node {
	t.Helper()
	var e expand.Expander
	e.Logf = t.Logf
	out, err := e.Expand(n)
	if err != nil {
		t.Fatalf("expanding %s: %s", expr.ToString(n), err)
	}
	return out
}

func TestInvokeWhere(t *testing.T) {
	p := expr.Param("x", intType)
	inner := expr.Fn(expr.Eq(p, expr.Const(42)), p)
	env := &struct {
		expr.Closure
		pred *expr.Lambda
	}{pred: inner}

	xs := expr.Param("xs", sliceType)
	v := expr.Param("v", intType)
	outer := expr.Fn(expr.CallOf(nil, where, xs,
		expr.Quote(expr.Fn(expand.Invoke(expr.Captured(env, "pred"), v), v))), xs)

	xs2 := expr.Param("xs", sliceType)
	v2 := expr.Param("v", intType)
	want := expr.Fn(expr.CallOf(nil, where, xs2,
		expr.Quote(expr.Fn(expr.Eq(v2, expr.Const(42)), v2))), xs2)

	got := mustExpand(t, outer)
	mustEqual(t, got, want)

	// both forms compute the same thing
	for _, n := range []expr.Node{outer, got} {
		f, err := expr.Evaluate(n)
		if err != nil {
			t.Fatal(err)
		}
		out := f.(func([]int) []int)([]int{1, 42, 3, 42})
		if !slices.Equal(out, []int{42, 42}) {
			t.Errorf("%s: got %v", expr.ToString(n), out)
		}
	}
}

func TestInvokeNested(t *testing.T) {
	i := expr.Param("i", intType)
	inc := expr.Fn(expr.Add(i, expr.Const(1)), i)
	j := expr.Param("j", intType)
	twice := expr.Fn(expand.Invoke(expr.Quote(inc), expand.Invoke(expr.Quote(inc), j)), j)
	tree := expand.Invoke(expr.Quote(twice), expr.Const(5))

	got := mustExpand(t, tree)
	mustEqual(t, got, expr.Add(expr.Add(expr.Const(5), expr.Const(1)), expr.Const(1)))

	v, err := expr.Evaluate(got)
	if err != nil || v != 7 {
		t.Errorf("got %v, %v", v, err)
	}
	v, err = expr.Evaluate(tree)
	if err != nil || v != 7 {
		t.Errorf("unexpanded tree: got %v, %v", v, err)
	}
}

func TestCaptureBeforeMutation(t *testing.T) {
	env := &struct {
		expr.Closure
		value int
	}{value: 42}
	x := expr.Param("x", intType)
	tree := expr.Fn(expr.Eq(x, expand.Capture(expr.Captured(env, "value"))), x)

	got := mustExpand(t, tree)
	env.value = 1337

	y := expr.Param("y", intType)
	mustEqual(t, got, expr.Fn(expr.Eq(y, expr.Const(42)), y))

	// the unexpanded tree still reads the variable
	live := expr.Fn(expr.Eq(x, expr.Captured(env, "value")), x)
	mustEqual(t, live, expr.Fn(expr.Eq(y, expr.Const(1337)), y))
}

func TestCompileMarker(t *testing.T) {
	a := expr.Param("a", intType)
	double := expr.Fn(expr.Mul(a, expr.Const(2)), a)
	env := &struct {
		expr.Closure
		f *expr.Lambda
	}{f: double}

	fnType := double.Type()
	tree := expr.InvokeOf(expand.Compile(expr.Captured(env, "f"), fnType), expr.Const(21))
	v, err := expr.Evaluate(tree)
	if err != nil || v != 42 {
		t.Fatalf("got %v, %v", v, err)
	}

	got := mustExpand(t, tree)
	inv, ok := got.(*expr.Invocation)
	if !ok || inv.Expression != double {
		t.Fatalf("got %s", expr.ToString(got))
	}
	b := expr.Param("b", intType)
	mustEqual(t, got, expr.InvokeOf(expr.Fn(expr.Mul(b, expr.Const(2)), b), expr.Const(21)))
}

func TestDeclare(t *testing.T) {
	a := expr.Param("a", intType)
	l := expr.Fn(expr.Neg(a), a)
	got := mustExpand(t, expand.Declare(l))
	if got != l {
		t.Errorf("got %s", expr.ToString(got))
	}
}

func TestSplice(t *testing.T) {
	extra := expr.Gt(expr.Const(2), expr.Const(1))
	p := expr.Param("p", intType)
	env := &struct {
		expr.Closure
		extra expr.Node
		pred  *expr.Lambda
	}{
		extra: extra,
		pred:  expr.Fn(expr.Gt(p, expr.Const(0)), p),
	}
	xs := expr.Param("xs", sliceType)
	x := expr.Param("x", intType)
	tree := expr.Fn(expr.AndAlso(expr.Gt(x, expr.Const(0)), expr.Captured(env, "extra")), x)
	got := mustExpand(t, tree)
	mustEqual(t, got, expr.Fn(expr.AndAlso(expr.Gt(x, expr.Const(0)), extra), x))

	// a lambda read through a *expr.Lambda stays quoted
	got = mustExpand(t, expr.Fn(expr.CallOf(nil, where, xs, expr.Captured(env, "pred")), xs))
	q := expr.Param("q", intType)
	mustEqual(t, got, expr.Fn(expr.CallOf(nil, where, xs,
		expr.Quote(expr.Fn(expr.Gt(q, expr.Const(0)), q))), xs))

	// so does a lambda read through an expr.Node
	r := expr.Param("r", intType)
	nodeEnv := &struct {
		expr.Closure
		pred expr.Node
	}{pred: expr.Fn(expr.Gt(r, expr.Const(1)), r)}
	tree = expr.Fn(expr.CallOf(nil, whereNode, xs, expr.Captured(nodeEnv, "pred")), xs)
	got = mustExpand(t, tree)
	mustEqual(t, got, expr.Fn(expr.CallOf(nil, whereNode, xs,
		expr.Quote(expr.Fn(expr.Gt(q, expr.Const(1)), q))), xs))
	for _, n := range []expr.Node{tree, got} {
		f, err := expr.Evaluate(n)
		if err != nil {
			t.Fatal(err)
		}
		out := f.(func([]int) []int)([]int{1, 2, 3})
		if !slices.Equal(out, []int{2, 3}) {
			t.Errorf("%s: got %v", expr.ToString(n), out)
		}
	}
}

func TestIdempotent(t *testing.T) {
	i := expr.Param("i", intType)
	inc := expr.Fn(expr.Add(i, expr.Const(1)), i)
	env := &struct {
		expr.Closure
		n int
	}{n: 3}
	x := expr.Param("x", intType)
	trees := []expr.Node{
		expr.Fn(expand.Invoke(expr.Quote(inc), x), x),
		expr.Fn(expr.Add(x, expand.Capture(expr.Captured(env, "n"))), x),
		expr.Fn(expr.Mul(x, x), x),
	}
	for k := range trees {
		once := mustExpand(t, trees[k])
		twice := mustExpand(t, once)
		mustEqual(t, twice, once)
		if twice != once {
			t.Errorf("case %d: expanding an expanded tree copied it", k)
		}
	}
}

func TestInlineErrors(t *testing.T) {
	boolType := reflect.TypeOf(false)
	p := expr.Param("p", intType)
	inner := expr.Fn(expr.Eq(p, expr.Const(1)), p)
	env := &struct {
		expr.Closure
		missing *expr.Lambda
	}{}
	free := expr.Param("f", lambdaType)

	testcases := []struct {
		tree    expr.Node
		evalErr bool
	}{
		{expand.InvokeAs(boolType, expr.Quote(inner), expr.Const(1), expr.Const(2)), false},
		{expand.InvokeAs(boolType, expr.Captured(env, "missing"), expr.Const(1)), false},
		{expand.InvokeAs(boolType, free, expr.Const(1)), true},
	}
	for i := range testcases {
		_, err := expand.Expand(testcases[i].tree)
		var ie *expand.InlineError
		if !errors.As(err, &ie) {
			t.Errorf("case %d: got error %v", i, err)
			continue
		}
		var ee *expr.EvalError
		if errors.As(err, &ee) != testcases[i].evalErr {
			t.Errorf("case %d: unexpected cause %v", i, ie.Err)
		}
	}
}

func TestLogf(t *testing.T) {
	i := expr.Param("i", intType)
	inc := expr.Fn(expr.Add(i, expr.Const(1)), i)
	var lines []string
	e := expand.Expander{
		Logf: func(f string, args ...interface{}) {
			lines = append(lines, fmt.Sprintf(f, args...))
		},
	}
	if _, err := e.Expand(expand.Invoke(expr.Quote(inc), expr.Const(1))); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Errorf("got log %q", lines)
	}

	// captured values stay out of the log
	env := &struct {
		expr.Closure
		secret int
	}{secret: 987654321}
	lines = lines[:0]
	if _, err := e.Expand(expand.Capture(expr.Captured(env, "secret"))); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Fatalf("got log %q", lines)
	}
	if strings.Contains(lines[0], "987654321") || strings.Contains(lines[0], "0x") {
		t.Errorf("log line %q leaks a captured value", lines[0])
	}
}

func TestInvokeUnresolved(t *testing.T) {
	env := &struct {
		expr.Closure
		missing *expr.Lambda
	}{}
	defer func() {
		r := recover()
		ie, ok := r.(*expand.InlineError)
		if !ok {
			t.Fatalf("recovered %v", r)
		}
		if ie.Target == nil {
			t.Error("no target recorded")
		}
	}()
	expand.Invoke(expr.Captured(env, "missing"), expr.Const(1))
	t.Fatal("Invoke did not panic")
}
