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
	"errors"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/exp/slices"
)

var stringType = reflect.TypeOf("")

func compile(t *testing.T, l *Lambda) any {
	t.Helper()
	f, err := Compile(l)
	if err != nil {
		t.Fatalf("compiling %s: %s", ToString(l), err)
	}
	return f
}

func TestCompileArith(t *testing.T) {
	a := Param("a", intType)
	b := Param("b", intType)
	f := compile(t, Fn(Sub(Mul(a, b), Const(1)), a, b)).(func(int, int) int)
	if got := f(6, 7); got != 41 {
		t.Errorf("got %d, want 41", got)
	}

	x := Param("x", reflect.TypeOf(0.0))
	half := compile(t, Fn(Div(x, Const(2.0)), x)).(func(float64) float64)
	if got := half(5); got != 2.5 {
		t.Errorf("got %g, want 2.5", got)
	}

	s := Param("s", stringType)
	cat := compile(t, Fn(Add(s, Const("!")), s)).(func(string) string)
	if got := cat("hi"); got != "hi!" {
		t.Errorf("got %q", got)
	}

	pow := compile(t, Fn(MakeBinary(OpPower, a, b), a, b)).(func(int, int) int)
	for _, tc := range []struct{ a, b, want int }{{2, 10, 1024}, {-3, 3, -27}, {7, 0, 1}} {
		if got := pow(tc.a, tc.b); got != tc.want {
			t.Errorf("%d**%d = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
	u := Param("u", reflect.TypeOf(uint8(0)))
	pow4 := compile(t, Fn(MakeBinary(OpPower, u, Const(uint8(4))), u)).(func(uint8) uint8)
	if got := pow4(3); got != 81 {
		t.Errorf("3**4 = %d, want 81", got)
	}
	_, err := Evaluate(MakeBinary(OpPower, Const(2), Const(-1)))
	var ee *EvalError
	if !errors.As(err, &ee) || !strings.Contains(err.Error(), "negative exponent") {
		t.Errorf("negative exponent: got error %v", err)
	}
}

func TestCompileLoop(t *testing.T) {
	n := Param("n", intType)
	i := Variable("i", intType)
	sum := Variable("sum", intType)
	done := LabelOf("done", intType)
	body := BlockOf([]*Parameter{i, sum},
		Assign(i, Const(1)),
		Assign(sum, Const(0)),
		LoopOf(
			Cond(Le(i, n),
				BlockOf(nil, AddAssign(sum, i), AddAssign(i, Const(1))),
				BreakOf(done, sum)),
			done, nil),
	)
	f := compile(t, Fn(body, n)).(func(int) int)
	for _, tc := range []struct{ n, want int }{{0, 0}, {1, 1}, {10, 55}} {
		if got := f(tc.n); got != tc.want {
			t.Errorf("sum(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestCompileGoto(t *testing.T) {
	x := Param("x", intType)
	ret := LabelOf("ret", intType)
	abs := compile(t, Fn(BlockOf(nil,
		Cond(Lt(x, Const(0)), ReturnOf(ret, Neg(x)), Empty()),
		LabelAt(ret, x),
	), x)).(func(int) int)
	for _, tc := range []struct{ in, want int }{{-4, 4}, {3, 3}, {0, 0}} {
		if got := abs(tc.in); got != tc.want {
			t.Errorf("abs(%d) = %d", tc.in, got)
		}
	}

	// a jump that escapes its lambda is a failure
	stray := LabelOf("stray", nil)
	_, err := Evaluate(BlockOf(nil, GotoOf(stray), Const(1)))
	var ee *EvalError
	if !errors.As(err, &ee) {
		t.Errorf("got error %v", err)
	}
}

func TestCompileTry(t *testing.T) {
	e := Param("e", stringType)
	f := compile(t, Fn(TryCatch(
		Throw(Const("boom"), intType),
		CatchOf(e, MakeUnary(OpArrayLength, e, intType)),
	))).(func() int)
	if got := f(); got != 4 {
		t.Errorf("got %d, want 4", got)
	}

	env := &struct {
		Closure
		n int
	}{}
	g := compile(t, Fn(TryFinally(Const(1), Assign(Captured(env, "n"), Const(5))))).(func() int)
	if got := g(); got != 1 || env.n != 5 {
		t.Errorf("got %d, n = %d", got, env.n)
	}

	// handlers that do not match are skipped
	i := Param("i", intType)
	_, err := Evaluate(TryCatch(Throw(Const("x"), intType), CatchOf(i, i)))
	var thrown *ThrownError
	if !errors.As(err, &thrown) || thrown.Value != "x" {
		t.Errorf("got error %v", err)
	}
}

func TestCompileSwitch(t *testing.T) {
	x := Param("x", intType)
	f := compile(t, Fn(SwitchOf(stringType, x, Const("other"),
		CaseOf(Const("one"), Const(1)),
		CaseOf(Const("few"), Const(2), Const(3)),
	), x)).(func(int) string)
	for _, tc := range []struct {
		in   int
		want string
	}{{1, "one"}, {3, "few"}, {9, "other"}} {
		if got := f(tc.in); got != tc.want {
			t.Errorf("f(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

type point struct {
	X, Y int
}

func (p point) Sum() int { return p.X + p.Y }

func TestCompileConstruct(t *testing.T) {
	pt := reflect.TypeOf(point{})
	init := &MemberInit{
		New: NewZero(pt),
		Bindings: []MemberBinding{
			&MemberAssignment{Member: FieldOf(pt, "X"), Expression: Const(1)},
			&MemberAssignment{Member: FieldOf(pt, "Y"), Expression: Const(2)},
		},
	}
	v, err := Evaluate(init)
	if err != nil {
		t.Fatal(err)
	}
	if v != (point{1, 2}) {
		t.Errorf("got %v", v)
	}
	v, err = Evaluate(PropertyAccess(init, "Sum"))
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Errorf("got %v", v)
	}

	push := MethodOf("append", func(s []int, v int) []int { return append(s, v) })
	list := &ListInit{
		New: NewZero(reflect.TypeOf([]int(nil))),
		Initializers: []ElementInit{
			{AddMethod: push, Arguments: []Node{Const(1)}},
			{AddMethod: push, Arguments: []Node{Const(2)}},
		},
	}
	v, err = Evaluate(list)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(v.([]int), []int{1, 2}) {
		t.Errorf("got %v", v)
	}

	v, err = Evaluate(NewSlice(intType, Const(4), Add(Const(2), Const(3))))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(v.([]int), []int{4, 5}) {
		t.Errorf("got %v", v)
	}
}

func TestCompileClosure(t *testing.T) {
	x := Param("x", intType)
	y := Param("y", intType)
	adder := compile(t, Fn(Fn(Add(x, y), y), x)).(func(int) func(int) int)
	if got := adder(2)(3); got != 5 {
		t.Errorf("got %d, want 5", got)
	}

	vars := compile(t, Fn(&RuntimeVariables{Variables: []*Parameter{x}}, x)).(func(int) *Vars)
	v := vars(7)
	if v.Len() != 1 || v.Get(0) != 7 {
		t.Errorf("got %d variables, first %v", v.Len(), v.Get(0))
	}
}

func TestCompileErrors(t *testing.T) {
	a := Param("a", intType)
	b := Param("b", intType)
	testcases := []*Lambda{
		Fn(Add(a, b), a),
		Fn(&Dynamic{Typ: intType}),
		Fn(Mul(&twice{x: b}, a), a),
	}
	for i := range testcases {
		_, err := Compile(testcases[i])
		var ee *EvalError
		if !errors.As(err, &ee) {
			t.Errorf("case %d: got error %v", i, err)
		}
	}
}

func TestEvaluate(t *testing.T) {
	upper := MethodOf("ToUpper", strings.ToUpper)
	a := Param("a", intType)
	l := Fn(Add(a, Const(1)), a)

	v, err := Evaluate(CallOf(nil, upper, Const("abc")))
	if err != nil || v != "ABC" {
		t.Errorf("got %v, %v", v, err)
	}
	v, err = Evaluate(Quote(l))
	if err != nil || v != l {
		t.Errorf("quote evaluated to %v, %v", v, err)
	}
	v, err = Evaluate(l)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.(func(int) int)(1); got != 2 {
		t.Errorf("got %d", got)
	}
	v, err = Evaluate(Cond(Gt(Const(2), Const(1)), Const("yes"), Const("no")))
	if err != nil || v != "yes" {
		t.Errorf("got %v, %v", v, err)
	}

	_, err = Evaluate(Add(a, Const(1)))
	var ee *EvalError
	if !errors.As(err, &ee) {
		t.Errorf("free parameter: got error %v", err)
	}
	div := MethodOf("div", func(a, b int) int { return a / b })
	_, err = Evaluate(CallOf(nil, div, Const(1), Const(0)))
	if !errors.As(err, &ee) {
		t.Errorf("panic: got error %v", err)
	}
}
