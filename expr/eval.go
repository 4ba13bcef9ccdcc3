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
)

// Evaluate computes the value of a closed tree.
//
// Constants, member accesses, calls and
// lambdas are evaluated directly; a lambda
// evaluates to a compiled func and a quoted
// lambda evaluates to the *Lambda itself.
// Any other tree is wrapped in a lambda
// taking no arguments, compiled and called.
//
// Every failure is an *EvalError, including
// panics raised by called code and trees
// that still reference unbound parameters.
func Evaluate(n Node) (any, error) {
	v, err := evaluate(n)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() || !v.CanInterface() {
		return nil, nil
	}
	return v.Interface(), nil
}

func evaluate(n Node) (reflect.Value, error) {
	switch n := n.(type) {
	case nil:
		return reflect.Value{}, nil
	case *Constant:
		v, err := constValue(n)
		if err != nil {
			return v, &EvalError{At: n, Err: err}
		}
		return v, nil
	case *MemberAccess:
		var obj reflect.Value
		if n.Expression != nil {
			o, err := evaluate(n.Expression)
			if err != nil {
				return o, err
			}
			obj = deref(o)
		}
		return protect(n, func() reflect.Value {
			v, err := n.Member.get(obj)
			check(n, err)
			return v
		})
	case *Call:
		var recv reflect.Value
		if n.Object != nil {
			o, err := evaluate(n.Object)
			if err != nil {
				return o, err
			}
			recv = o
		}
		args := make([]reflect.Value, len(n.Arguments))
		for i := range n.Arguments {
			a, err := evaluate(n.Arguments[i])
			if err != nil {
				return a, err
			}
			args[i] = a
		}
		return protect(n, func() reflect.Value {
			for i := range args {
				a, err := convertTo(args[i], n.Method.In(i))
				check(n, err)
				args[i] = a
			}
			return invokeMethod(n, n.Method, recv, args)
		})
	case *Lambda:
		fn, err := Compile(n)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(fn), nil
	case *Unary:
		if n.Op == OpQuote {
			return reflect.ValueOf(n.Operand), nil
		}
	}
	l := &Lambda{Body: n, Typ: reflect.FuncOf(nil, outTypes(n.Type()), false)}
	fn, err := Compile(l)
	if err != nil {
		return reflect.Value{}, err
	}
	return protect(n, func() reflect.Value {
		out := reflect.ValueOf(fn).Call(nil)
		if len(out) == 0 {
			return reflect.Value{}
		}
		return out[0]
	})
}

func outTypes(t reflect.Type) []reflect.Type {
	if t == nil {
		return nil
	}
	return []reflect.Type{t}
}
