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
	"reflect"
	"testing"
)

// twice is an extension node
// that reduces to x + x
type twice struct {
	x Node
}

func (t *twice) Kind() Kind         { return KindExtension }
func (t *twice) Type() reflect.Type { return t.x.Type() }
func (t *twice) CanReduce() bool    { return true }
func (t *twice) Reduce() Node       { return Add(t.x, t.x) }

func (t *twice) VisitChildren(fn func(Node) Node) Node {
	x := fn(t.x)
	if x == t.x {
		return t
	}
	return &twice{x: x}
}

func TestFlatten(t *testing.T) {
	a := Param("a", intType)
	b := Param("b", intType)
	add := Add(a, b)
	l := Fn(add, a, b)

	want := []FlatNode{
		{l, 0, 0},
		{add, 1, 1},
		{a, 2, 2},
		{b, 3, 2},
		{a, 2, 1},
		{b, 3, 1},
	}
	got := Flatten(l)
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
	// a second traversal is an independent record
	again := Flatten(l)
	for i := range again {
		if again[i] != got[i] {
			t.Errorf("entry %d differs between traversals", i)
		}
	}
}

func TestContains(t *testing.T) {
	a := Param("a", intType)
	b := Param("b", intType)
	c := Const(1)
	l := Fn(Add(a, Mul(b, c)), a, b)
	other := Param("a", intType)

	testcases := []struct {
		targets []Node
		want    bool
	}{
		{[]Node{a}, true},
		{[]Node{c}, true},
		{[]Node{other}, false},
		{[]Node{other, c}, true},
		{[]Node{Const(1)}, false},
		{nil, false},
	}
	for i := range testcases {
		got := Contains(l, testcases[i].targets...)
		if got != testcases[i].want {
			t.Errorf("case %d: got %v, want %v", i, got, testcases[i].want)
		}
	}
	if !Contains(Mul(&twice{x: c}, a), c) {
		t.Error("extension children not searched")
	}
}

func TestReplace(t *testing.T) {
	a := Param("a", intType)
	b := Param("b", intType)
	add := Add(a, b)
	one := Const(1)

	out := Replace(add, a, one)
	bin, ok := out.(*Binary)
	if !ok {
		t.Fatalf("got %T", out)
	}
	if bin.Left != one || bin.Right != b {
		t.Errorf("got %s", ToString(out))
	}
	if add.Left != a {
		t.Error("input was modified")
	}
	if Replace(add, Param("z", intType), one) != add {
		t.Error("unchanged tree was copied")
	}

	two := Const(2)
	out = ReplaceAll(Add(a, b), map[Node]Node{a: one, b: two})
	if got := ToString(out); got != "(1 + 2)" {
		t.Errorf("got %s", got)
	}
	// replacements are not searched
	out = ReplaceAll(a, map[Node]Node{a: b, b: one})
	if out != b {
		t.Errorf("got %s", ToString(out))
	}
}

func TestReduce(t *testing.T) {
	x := Variable("x", intType)
	blk := BlockOf([]*Parameter{x},
		Assign(x, Const(1)),
		AddAssign(x, &twice{x: Const(2)}),
		x,
	)

	compound := func(n Node) bool {
		found := false
		Walk(visitfn(func(n Node) bool {
			if b, ok := n.(*Binary); ok && b.CanReduce() {
				found = true
			}
			return true
		}), n)
		return found
	}
	hasExt := func(n Node) bool {
		found := false
		Walk(visitfn(func(n Node) bool {
			if n.Kind() == KindExtension {
				found = true
			}
			return true
		}), n)
		return found
	}

	ext := ReduceExtensionsRecursive(blk)
	if hasExt(ext) {
		t.Error("extension survived ReduceExtensionsRecursive")
	}
	if !compound(ext) {
		t.Error("ReduceExtensionsRecursive reduced a compound assignment")
	}
	if got := ToString(ext.(*Block).Expressions[1]); got != "x += (2 + 2)" {
		t.Errorf("got %s", got)
	}

	all := ReduceRecursive(blk)
	if hasExt(all) || compound(all) {
		t.Errorf("ReduceRecursive left reducible nodes: %s", ToString(all))
	}
	if !hasExt(blk) || !compound(blk) {
		t.Error("input was modified")
	}
	if ReduceExtensionsRecursive(x) != x {
		t.Error("irreducible tree was copied")
	}

	f, err := Compile(Fn(all))
	if err != nil {
		t.Fatal(err)
	}
	if got := f.(func() int)(); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

func TestCopy(t *testing.T) {
	a := Param("a", intType)
	b := Param("b", intType)
	l := Fn(Add(a, Mul(b, Const(3))), a, b)

	c, ok := Copy(l).(*Lambda)
	if !ok {
		t.Fatal("copy is not a lambda")
	}
	if c == l {
		t.Fatal("copy is the input")
	}
	orig := map[Node]bool{}
	for _, f := range Flatten(l) {
		orig[f.Node] = true
	}
	for _, f := range Flatten(c) {
		if orig[f.Node] {
			t.Errorf("copy shares %s", ToString(f.Node))
		}
	}
	body := c.Body.(*Binary)
	if body.Left != c.Parameters[0] {
		t.Error("copied parameters are not used by the copied body")
	}
	f, err := Compile(c)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.(func(int, int) int)(1, 2); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}
