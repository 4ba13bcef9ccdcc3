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

package expand

import (
	"fmt"
	"reflect"

	"github.com/zysharp/metaprogramming/expr"
)

// Marker is the declaring type of the
// marker methods recognized by Expand.
//
// Marker calls are ordinary, callable
// methods: a tree that still contains them
// evaluates to the same result as its expansion.
type Marker struct{}

var markerType = reflect.TypeOf(Marker{})

const (
	invokeName  = "Invoke"
	captureName = "Capture"
	compileName = "Compile"
	declareName = "Declare"
)

func marker(name string, in []reflect.Type, out reflect.Type, fn func([]reflect.Value) reflect.Value) *expr.Method {
	var outs []reflect.Type
	if out != nil {
		outs = []reflect.Type{out}
	}
	ft := reflect.FuncOf(in, outs, false)
	impl := reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		v := fn(args)
		if out == nil {
			return nil
		}
		if !v.IsValid() {
			v = reflect.Zero(out)
		} else if v.Type() != out {
			v = v.Convert(out)
		}
		return []reflect.Value{v}
	})
	return expr.MethodFunc(markerType, name, impl)
}

// isMarker returns whether c is a
// call to the marker method called name.
func isMarker(c *expr.Call, name string) bool {
	m := c.Method
	return m.IsStatic() && m.DeclaringType() == markerType && m.Name() == name
}

func identity(args []reflect.Value) reflect.Value { return args[0] }

// Capture produces a call that freezes x, which
// should read a captured variable, at expansion
// time: Expand replaces the call with a constant
// holding the value x has when Expand runs.
func Capture(x expr.Node) *expr.Call {
	t := x.Type()
	m := marker(captureName, []reflect.Type{t}, t, identity)
	return expr.CallOf(nil, m, x)
}

// Declare produces a call that returns x
// unchanged. Expand removes the call.
func Declare(x expr.Node) *expr.Call {
	t := x.Type()
	m := marker(declareName, []reflect.Type{t}, t, identity)
	return expr.CallOf(nil, m, x)
}

// Compile produces a call that compiles the
// lambda tree produced by tree into a func of
// type fn. When tree reads a captured variable,
// Expand replaces the call with the captured
// lambda itself.
func Compile(tree expr.Node, fn reflect.Type) *expr.Call {
	if fn.Kind() != reflect.Func {
		panic(fmt.Sprintf("expand.Compile: %s is not a func type", fn))
	}
	m := marker(compileName, []reflect.Type{tree.Type()}, fn, func(args []reflect.Value) reflect.Value {
		l, err := asLambda(args[0])
		if err != nil {
			panic(err)
		}
		f, err := expr.Compile(l)
		if err != nil {
			panic(err)
		}
		return reflect.ValueOf(f)
	})
	return expr.CallOf(nil, m, tree)
}

// Invoke produces a call that applies the lambda
// tree produced by target to args. Expand inlines
// the call by substituting args for the parameters
// of the lambda.
//
// The result type of the call is taken from target
// when it is a lambda or a quoted lambda, and is
// otherwise found by evaluating target, which must
// then be closed. Use InvokeAs to avoid the evaluation.
// Invoke panics with an *InlineError if target does
// not denote a lambda.
func Invoke(target expr.Node, args ...expr.Node) *expr.Call {
	l, err := resolve(target)
	if err != nil {
		panic(&InlineError{Target: target, Msg: "target does not denote a lambda", Err: err})
	}
	return InvokeAs(l.ReturnType(), target, args...)
}

// InvokeAs is like Invoke, but the result
// type of the call is out.
func InvokeAs(out reflect.Type, target expr.Node, args ...expr.Node) *expr.Call {
	in := make([]reflect.Type, 0, len(args)+1)
	in = append(in, target.Type())
	for _, a := range args {
		in = append(in, a.Type())
	}
	m := marker(invokeName, in, out, func(vals []reflect.Value) reflect.Value {
		l, err := asLambda(vals[0])
		if err != nil {
			panic(err)
		}
		f, err := expr.Compile(l)
		if err != nil {
			panic(err)
		}
		res := reflect.ValueOf(f).Call(vals[1:])
		if len(res) == 0 {
			return reflect.Value{}
		}
		return res[0]
	})
	return expr.CallOf(nil, m, append([]expr.Node{target}, args...)...)
}

// asLambda extracts the lambda held by a
// tree-typed value.
func asLambda(v reflect.Value) (*expr.Lambda, error) {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() || !v.CanInterface() {
		return nil, fmt.Errorf("no tree")
	}
	switch n := v.Interface().(type) {
	case *expr.Lambda:
		if n != nil {
			return n, nil
		}
	case *expr.Unary:
		if l, ok := n.Operand.(*expr.Lambda); ok && n.Op == expr.OpQuote {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%s is not a lambda", v.Type())
}

// resolve finds the lambda denoted by an
// invoke target, evaluating it if necessary.
func resolve(target expr.Node) (*expr.Lambda, error) {
	switch t := target.(type) {
	case *expr.Lambda:
		return t, nil
	case *expr.Unary:
		if l, ok := t.Operand.(*expr.Lambda); ok && t.Op == expr.OpQuote {
			return l, nil
		}
	}
	if !expr.IsTreeType(target.Type()) {
		return nil, fmt.Errorf("%s is not a tree", target.Type())
	}
	v, err := expr.Evaluate(target)
	if err != nil {
		return nil, err
	}
	return asLambda(reflect.ValueOf(v))
}
