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

// Package expand rewrites an expression tree
// into a self-contained tree by inlining the
// trees it refers to indirectly.
//
// Expand recognizes calls to the marker methods
// built by Invoke, Capture, Compile and Declare,
// and reads of captured variables that hold trees.
package expand

import (
	"fmt"
	"reflect"

	"github.com/zysharp/metaprogramming/expr"
)

// InlineError is returned when the target
// of an Invoke marker cannot be inlined.
type InlineError struct {
	// Target is the invoke target.
	Target expr.Node
	// Msg describes the failure.
	Msg string
	// Err is the evaluation failure, if any.
	Err error
}

func (i *InlineError) Error() string {
	if i.Err != nil {
		return fmt.Sprintf("expand: cannot inline %s: %s: %s", expr.ToString(i.Target), i.Msg, i.Err)
	}
	return fmt.Sprintf("expand: cannot inline %s: %s", expr.ToString(i.Target), i.Msg)
}

func (i *InlineError) Unwrap() error { return i.Err }

// Expander expands trees.
type Expander struct {
	// Logf, if non-nil, is called for
	// each marker or captured tree inlined.
	Logf func(f string, args ...interface{})
}

// Expand expands n using the zero Expander.
func Expand(n expr.Node) (expr.Node, error) {
	var e Expander
	return e.Expand(n)
}

// Expand returns n with every marker call
// and every read of a captured tree inlined:
//
//   - Capture(x) becomes a constant holding the
//     current value of the captured variable x.
//   - Invoke(target, args...) becomes the body of the
//     lambda denoted by target with args substituted
//     for its parameters. Arguments are expanded before
//     they are substituted and the result is expanded again.
//   - Compile(x, fn) becomes the lambda held by
//     the captured variable x.
//   - Declare(x) becomes x.
//   - A read of a captured variable holding a tree
//     becomes the (expanded) tree. A spliced lambda
//     is quoted so that it still yields a tree.
//
// Expand does not modify n. Failures to read captured
// variables are *expr.EvalError, and failures to resolve
// an Invoke target are *InlineError.
func (e *Expander) Expand(n expr.Node) (expr.Node, error) {
	if n == nil {
		return nil, nil
	}
	x := &expander{Expander: e}
	out := expr.Rewrite(x, n)
	if x.err != nil {
		return nil, x.err
	}
	return out, nil
}

func (e *Expander) logf(f string, args ...interface{}) {
	if e.Logf != nil {
		e.Logf(f, args...)
	}
}

// expander is the expr.Rewriter
// for one call to Expander.Expand.
type expander struct {
	*Expander
	err error
}

// capturedTree returns whether n
// reads a captured variable of tree type.
func capturedTree(n expr.Node) bool {
	return expr.IsClosureMember(n) && expr.IsTreeType(n.Type())
}

func (x *expander) Walk(n expr.Node) expr.Rewriter {
	if x.err != nil {
		return nil
	}
	switch n := n.(type) {
	case *expr.MemberAccess:
		if capturedTree(n) {
			return nil
		}
	case *expr.Call:
		// these are replaced wholesale
		if isMarker(n, captureName) && expr.IsClosureMember(n.Arguments[0]) {
			return nil
		}
		if isMarker(n, compileName) && capturedTree(n.Arguments[0]) {
			return nil
		}
	}
	return x
}

func (x *expander) Rewrite(n expr.Node) expr.Node {
	if x.err != nil {
		return n
	}
	switch n := n.(type) {
	case *expr.MemberAccess:
		if capturedTree(n) {
			return x.splice(n)
		}
	case *expr.Call:
		switch {
		case isMarker(n, captureName):
			return x.capture(n)
		case isMarker(n, invokeName):
			return x.invoke(n)
		case isMarker(n, compileName):
			return x.compile(n)
		case isMarker(n, declareName):
			x.logf("expand: removed %s", expr.ToRedacted(n))
			return n.Arguments[0]
		}
	}
	return n
}

// capture freezes the captured variable read by
// the argument of a Capture marker.
func (x *expander) capture(c *expr.Call) expr.Node {
	arg := c.Arguments[0]
	if !expr.IsClosureMember(arg) {
		return c
	}
	v, err := expr.Evaluate(arg)
	if err != nil {
		x.err = err
		return c
	}
	x.logf("expand: captured %s", expr.ToRedacted(arg))
	return expr.ConstOf(v, arg.Type())
}

// compile replaces a Compile marker applied to
// a captured tree with the tree itself.
func (x *expander) compile(c *expr.Call) expr.Node {
	arg := c.Arguments[0]
	if !capturedTree(arg) {
		return c
	}
	tree, err := x.read(arg)
	if err != nil {
		x.err = err
		return c
	}
	l, ok := tree.(*expr.Lambda)
	if !ok {
		if u, isq := tree.(*expr.Unary); isq && u.Op == expr.OpQuote {
			l, ok = u.Operand.(*expr.Lambda)
		}
	}
	if !ok {
		return c
	}
	x.logf("expand: inlined compiled %s", expr.ToRedacted(arg))
	return expr.Rewrite(x, l)
}

// splice replaces a read of a captured tree
// with the expanded tree.
func (x *expander) splice(m *expr.MemberAccess) expr.Node {
	tree, err := x.read(m)
	if err != nil {
		x.err = err
		return m
	}
	if tree == nil {
		return m
	}
	x.logf("expand: spliced %s", expr.ToRedacted(m))
	out := expr.Rewrite(x, tree)
	if l, ok := out.(*expr.Lambda); ok {
		// the member yields a tree, not a func
		return expr.Quote(l)
	}
	return out
}

// read evaluates a captured variable of tree type.
func (x *expander) read(n expr.Node) (expr.Node, error) {
	v, err := expr.Evaluate(n)
	if err != nil {
		return nil, err
	}
	tree, _ := v.(expr.Node)
	if tree == nil || isNilTree(tree) {
		return nil, nil
	}
	return tree, nil
}

func isNilTree(n expr.Node) bool {
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// invoke inlines an Invoke marker. The arguments
// have been expanded already.
func (x *expander) invoke(c *expr.Call) expr.Node {
	target, args := c.Arguments[0], c.Arguments[1:]
	l, err := resolve(target)
	if err != nil {
		x.err = &InlineError{Target: target, Msg: "target does not denote a lambda", Err: err}
		return c
	}
	if len(l.Parameters) != len(args) {
		x.err = &InlineError{
			Target: target,
			Msg:    fmt.Sprintf("lambda takes %d arguments but is invoked with %d", len(l.Parameters), len(args)),
		}
		return c
	}
	subst := make(map[expr.Node]expr.Node, len(args))
	for i, p := range l.Parameters {
		subst[p] = args[i]
	}
	x.logf("expand: inlined %s", expr.ToRedacted(target))
	return expr.Rewrite(x, expr.ReplaceAll(l.Body, subst))
}
