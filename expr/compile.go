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
	"fmt"
	"reflect"
)

// Compile turns a closed lambda into a
// func value of type l.Type(). The returned
// func interprets the tree each time it is called.
//
// Compile fails if the lambda references
// parameters it does not bind, or contains
// Dynamic nodes or extensions that cannot be reduced.
// Failures inside the running func are reported
// by panicking with an *EvalError; values thrown
// by Throw nodes and panics raised by called
// methods propagate unchanged.
func Compile(l *Lambda) (any, error) {
	if l == nil {
		return nil, &EvalError{Err: fmt.Errorf("nil lambda")}
	}
	if l.Typ == nil || l.Typ.Kind() != reflect.Func {
		return nil, errevalf(l, "lambda type %v is not a func type", l.Typ)
	}
	n := ReduceExtensionsRecursive(l)
	if err := checkCompilable(n); err != nil {
		return nil, err
	}
	fn := makeFunc(n.(*Lambda), nil)
	return fn.Interface(), nil
}

// checkCompilable rejects trees that
// could never run.
func checkCompilable(n Node) error {
	bound := make(map[*Parameter]bool)
	var free *Parameter
	var bad Node
	Walk(visitfn(func(n Node) bool {
		switch n := n.(type) {
		case *Lambda:
			for _, p := range n.Parameters {
				bound[p] = true
			}
		case *Block:
			for _, p := range n.Variables {
				bound[p] = true
			}
		case *Try:
			for i := range n.Handlers {
				if v := n.Handlers[i].Variable; v != nil {
					bound[v] = true
				}
			}
		case *Dynamic, Extension:
			if bad == nil {
				bad = n
			}
		}
		return true
	}), n)
	if bad != nil {
		return errevalf(bad, "cannot compile %s node", bad.Kind())
	}
	Walk(visitfn(func(n Node) bool {
		if p, ok := n.(*Parameter); ok && !bound[p] && free == nil {
			free = p
		}
		return free == nil
	}), n)
	if free != nil {
		return errevalf(n, "parameter %s is not bound", free.Name)
	}
	return nil
}

// visitfn adapts a func to Visitor;
// returning false stops descent.
type visitfn func(Node) bool

func (v visitfn) Visit(n Node) Visitor {
	if n == nil || !v(n) {
		return nil
	}
	return v
}

// Vars is the value of a RuntimeVariables node.
// It gives access to live variables of a running func.
type Vars struct {
	vals []reflect.Value
}

// Len returns the number of variables.
func (v *Vars) Len() int { return len(v.vals) }

// Get returns the current value of variable i.
func (v *Vars) Get(i int) any { return v.vals[i].Interface() }

// Set assigns x to variable i.
func (v *Vars) Set(i int, x any) {
	val, err := convertTo(reflect.ValueOf(x), v.vals[i].Type())
	if err != nil {
		panic(err)
	}
	v.vals[i].Set(val)
}

type scope struct {
	parent *scope
	vars   map[*Parameter]reflect.Value
}

func (s *scope) lookup(p *Parameter) (reflect.Value, bool) {
	for ; s != nil; s = s.parent {
		if v, ok := s.vars[p]; ok {
			return v, true
		}
	}
	return reflect.Value{}, false
}

func (s *scope) declare(p *Parameter) reflect.Value {
	v := reflect.New(p.Typ).Elem()
	s.vars[p] = v
	return v
}

func newScope(parent *scope, n int) *scope {
	return &scope{parent: parent, vars: make(map[*Parameter]reflect.Value, n)}
}

// jump is panicked by Goto and
// recovered by the owner of its target.
type jump struct {
	target *LabelTarget
	value  reflect.Value
}

// failure is panicked when the interpreter
// itself cannot make progress; unlike values
// thrown by the tree it is never caught by Try.
type failure struct {
	err *EvalError
}

func fail(at Node, f string, args ...any) {
	panic(failure{errevalf(at, f, args...)})
}

func check(at Node, err error) {
	if err != nil {
		panic(failure{&EvalError{At: at, Err: err}})
	}
}

func makeFunc(l *Lambda, env *scope) reflect.Value {
	out := l.ReturnType()
	return reflect.MakeFunc(l.Typ, func(args []reflect.Value) []reflect.Value {
		s := newScope(env, len(l.Parameters))
		for i, p := range l.Parameters {
			v, err := convertTo(args[i], p.Typ)
			check(l, err)
			s.declare(p).Set(v)
		}
		res := run(l.Body, s)
		if out == nil {
			return nil
		}
		res, err := convertTo(res, out)
		check(l, err)
		return []reflect.Value{res}
	})
}

// run evaluates n, translating an escaping
// jump into a failure.
func run(n Node, s *scope) (v reflect.Value) {
	defer func() {
		if r := recover(); r != nil {
			if j, ok := r.(*jump); ok {
				fail(n, "jump to label %s that is not in scope", j.target)
			}
			panic(r)
		}
	}()
	return eval(n, s)
}

func evalList(lst []Node, s *scope) []reflect.Value {
	out := make([]reflect.Value, len(lst))
	for i := range lst {
		out[i] = eval(lst[i], s)
	}
	return out
}

func evalArgs(at Node, lst []Node, types func(int) reflect.Type, s *scope) []reflect.Value {
	out := evalList(lst, s)
	for i := range out {
		v, err := convertTo(out[i], types(i))
		check(at, err)
		out[i] = v
	}
	return out
}

func callMethod(at Node, m *Method, recv reflect.Value, args []Node, s *scope) reflect.Value {
	vals := evalArgs(at, args, m.In, s)
	return invokeMethod(at, m, recv, vals)
}

func invokeMethod(at Node, m *Method, recv reflect.Value, vals []reflect.Value) reflect.Value {
	if !m.IsStatic() {
		rt := m.fn.Type().In(0)
		recv = deref(recv)
		if !recv.IsValid() {
			fail(at, "method %s called on nil", m)
		}
		if recv.Type() != rt {
			if recv.CanAddr() && recv.Addr().Type() == rt {
				recv = recv.Addr()
			} else if recv.Kind() == reflect.Pointer && !recv.IsNil() && recv.Elem().Type() == rt {
				recv = recv.Elem()
			}
		}
		r, err := convertTo(recv, rt)
		check(at, err)
		recv = r
	}
	out, err := m.call(recv, vals)
	if err != nil {
		// errors returned by methods behave
		// like values thrown by the tree
		panic(err)
	}
	return out
}

func eval(n Node, s *scope) reflect.Value {
	switch n := n.(type) {
	case *Binary:
		return evalBinary(n, s)
	case *Block:
		return evalBlock(n, s)
	case *Conditional:
		if truthy(n, eval(n.Test, s)) {
			return eval(n.IfTrue, s)
		}
		return eval(n.IfFalse, s)
	case *Constant:
		v, err := constValue(n)
		check(n, err)
		return v
	case *DebugInfo:
		return reflect.Value{}
	case *Default:
		if n.Typ == nil {
			return reflect.Value{}
		}
		return reflect.Zero(n.Typ)
	case *Goto:
		var v reflect.Value
		if n.Value != nil {
			v = eval(n.Value, s)
		}
		panic(&jump{target: n.Target, value: v})
	case *Index:
		return evalIndex(n, s)
	case *Invocation:
		fn := deref(eval(n.Expression, s))
		if fn.IsValid() && fn.Type() == lambdaType {
			if fn.IsNil() {
				fail(n, "invocation of a nil lambda")
			}
			f, err := Compile(fn.Interface().(*Lambda))
			check(n, err)
			fn = reflect.ValueOf(f)
		}
		if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
			fail(n, "invocation of a non-func value")
		}
		ft := fn.Type()
		args := evalArgs(n, n.Arguments, ft.In, s)
		out := fn.Call(args)
		if len(out) == 0 {
			return reflect.Value{}
		}
		return out[0]
	case *Label:
		if n.DefaultValue != nil {
			return eval(n.DefaultValue, s)
		}
		return reflect.Value{}
	case *Lambda:
		return makeFunc(n, s)
	case *ListInit:
		obj := eval(n.New, s)
		return applyInits(n, obj, n.Initializers, s)
	case *Loop:
		return evalLoop(n, s)
	case *MemberAccess:
		var obj reflect.Value
		if n.Expression != nil {
			obj = eval(n.Expression, s)
		}
		v, err := n.Member.get(deref(obj))
		check(n, err)
		return v
	case *MemberInit:
		obj := eval(n.New, s)
		addr := reflect.New(obj.Type()).Elem()
		addr.Set(obj)
		applyBindings(n, addr, n.Bindings, s)
		return addr
	case *Call:
		var recv reflect.Value
		if n.Object != nil {
			recv = eval(n.Object, s)
		}
		return callMethod(n, n.Method, recv, n.Arguments, s)
	case *NewArray:
		switch n.Op {
		case NewArrayInit:
			out := reflect.MakeSlice(n.Typ, len(n.Expressions), len(n.Expressions))
			for i, e := range n.Expressions {
				v, err := convertTo(eval(e, s), n.Typ.Elem())
				check(n, err)
				out.Index(i).Set(v)
			}
			return out
		case NewArrayBounds:
			l, err := convertTo(eval(n.Expressions[0], s), intType)
			check(n, err)
			if l.Int() < 0 {
				fail(n, "negative slice length %d", l.Int())
			}
			return reflect.MakeSlice(n.Typ, int(l.Int()), int(l.Int()))
		}
		fail(n, "unknown array operation %d", n.Op)
	case *New:
		if n.Constructor == nil {
			return reflect.New(n.Typ).Elem()
		}
		args := evalArgs(n, n.Arguments, n.Constructor.In, s)
		return n.Constructor.fn.Call(args)[0]
	case *Parameter:
		v, ok := s.lookup(n)
		if !ok {
			fail(n, "parameter %s is not bound", n.Name)
		}
		return v
	case *RuntimeVariables:
		vars := &Vars{vals: make([]reflect.Value, len(n.Variables))}
		for i, p := range n.Variables {
			v, ok := s.lookup(p)
			if !ok {
				fail(n, "parameter %s is not bound", p.Name)
			}
			vars.vals[i] = v
		}
		return reflect.ValueOf(vars)
	case *Switch:
		return evalSwitch(n, s)
	case *Try:
		return evalTry(n, s)
	case *TypeTest:
		v := deref(eval(n.Expression, s))
		ok := v.IsValid() && !isNil(v)
		if ok && n.Op == TypeIs {
			ok = v.Type().AssignableTo(n.TypeOperand)
		} else if ok {
			ok = v.Type() == n.TypeOperand
		}
		return reflect.ValueOf(ok)
	case *Unary:
		return evalUnary(n, s)
	case *Dynamic:
		fail(n, "dynamic operations are not supported")
	case Extension:
		if !n.CanReduce() {
			fail(n, "extension %T cannot be reduced", n)
		}
		return eval(n.Reduce(), s)
	}
	panic(fmt.Sprintf("expr: unexpected node %T", n))
}

func truthy(at Node, v reflect.Value) bool {
	v = deref(v)
	if !v.IsValid() || v.Kind() != reflect.Bool {
		fail(at, "condition is not a bool")
	}
	return v.Bool()
}

func constValue(c *Constant) (reflect.Value, error) {
	if c.Value == nil {
		if c.Typ == nil {
			return reflect.Value{}, nil
		}
		return reflect.Zero(c.Typ), nil
	}
	return convertTo(reflect.ValueOf(c.Value), c.Typ)
}

func evalBinary(b *Binary, s *scope) reflect.Value {
	switch b.Op {
	case OpAndAlso:
		if !truthy(b, eval(b.Left, s)) {
			return reflect.ValueOf(false)
		}
		return reflect.ValueOf(truthy(b, eval(b.Right, s)))
	case OpOrElse:
		if truthy(b, eval(b.Left, s)) {
			return reflect.ValueOf(true)
		}
		return reflect.ValueOf(truthy(b, eval(b.Right, s)))
	case OpAssign:
		return assign(b, b.Left, eval(b.Right, s), s)
	case OpCoalesce:
		l := eval(b.Left, s)
		if isNil(l) {
			return eval(b.Right, s)
		}
		if b.Conversion != nil {
			fn := makeFunc(b.Conversion, s)
			return fn.Call([]reflect.Value{l})[0]
		}
		v, err := convertTo(l, b.Typ)
		check(b, err)
		return v
	case OpArrayIndex:
		arr := deref(eval(b.Left, s))
		idx, err := convertTo(eval(b.Right, s), intType)
		check(b, err)
		return indexValue(b, arr, []reflect.Value{idx})
	}
	if b.CanReduce() {
		return eval(b.Reduce(), s)
	}
	l := eval(b.Left, s)
	r := eval(b.Right, s)
	if b.Method != nil {
		return invokeMethod(b, b.Method, reflect.Value{}, []reflect.Value{l, r})
	}
	v, err := arith(b.Op, l, r, b.Typ)
	check(b, err)
	return v
}

func assign(at, target Node, val reflect.Value, s *scope) reflect.Value {
	switch t := target.(type) {
	case *Parameter:
		dst, ok := s.lookup(t)
		if !ok {
			fail(at, "parameter %s is not bound", t.Name)
		}
		v, err := convertTo(val, t.Typ)
		check(at, err)
		dst.Set(v)
		return v
	case *MemberAccess:
		var obj reflect.Value
		if t.Expression != nil {
			obj = eval(t.Expression, s)
		}
		v, err := convertTo(val, t.Member.Type())
		check(at, err)
		check(at, t.Member.set(deref(obj), v))
		return v
	case *Index:
		obj := deref(eval(t.Object, s))
		if t.Indexer != nil {
			setter := t.Indexer.Setter()
			if setter == nil {
				fail(at, "indexer %s is read-only", t.Indexer)
			}
			args := evalArgs(at, t.Arguments, setter.In, s)
			v, err := convertTo(val, setter.In(len(args)))
			check(at, err)
			invokeMethod(at, setter, obj, append(args, v))
			return v
		}
		args := evalList(t.Arguments, s)
		return setIndex(at, obj, args, val)
	case *Binary:
		if t.Op == OpArrayIndex {
			obj := deref(eval(t.Left, s))
			return setIndex(at, obj, []reflect.Value{eval(t.Right, s)}, val)
		}
	}
	fail(at, "cannot assign to %s node", target.Kind())
	return reflect.Value{}
}

func indexValue(at Node, obj reflect.Value, args []reflect.Value) reflect.Value {
	if len(args) != 1 {
		fail(at, "%d indexes applied to %s", len(args), obj.Type())
	}
	switch obj.Kind() {
	case reflect.Map:
		k, err := convertTo(args[0], obj.Type().Key())
		check(at, err)
		v := obj.MapIndex(k)
		if !v.IsValid() {
			return reflect.Zero(obj.Type().Elem())
		}
		return v
	case reflect.Slice, reflect.Array, reflect.String:
		i, err := convertTo(args[0], intType)
		check(at, err)
		return obj.Index(int(i.Int()))
	case reflect.Pointer:
		return indexValue(at, obj.Elem(), args)
	}
	fail(at, "cannot index %s", obj.Type())
	return reflect.Value{}
}

func setIndex(at Node, obj reflect.Value, args []reflect.Value, val reflect.Value) reflect.Value {
	if len(args) != 1 {
		fail(at, "%d indexes applied to %s", len(args), obj.Type())
	}
	switch obj.Kind() {
	case reflect.Map:
		k, err := convertTo(args[0], obj.Type().Key())
		check(at, err)
		v, err := convertTo(val, obj.Type().Elem())
		check(at, err)
		obj.SetMapIndex(k, v)
		return v
	case reflect.Pointer:
		return setIndex(at, obj.Elem(), args, val)
	}
	dst := indexValue(at, obj, args)
	if !dst.CanSet() {
		fail(at, "element of %s is not settable", obj.Type())
	}
	v, err := convertTo(val, dst.Type())
	check(at, err)
	dst.Set(v)
	return v
}

func evalIndex(n *Index, s *scope) reflect.Value {
	obj := deref(eval(n.Object, s))
	if n.Indexer != nil {
		return callMethod(n, n.Indexer.Getter(), obj, n.Arguments, s)
	}
	return indexValue(n, obj, evalList(n.Arguments, s))
}

func evalUnary(u *Unary, s *scope) reflect.Value {
	switch u.Op {
	case OpQuote:
		return reflect.ValueOf(u.Operand)
	case OpThrow:
		v := eval(u.Operand, s)
		if !v.IsValid() {
			panic(&ThrownError{})
		}
		panic(v.Interface())
	}
	v := eval(u.Operand, s)
	if u.Method != nil {
		return invokeMethod(u, u.Method, reflect.Value{}, []reflect.Value{v})
	}
	out, err := unary(u.Op, v, u.Typ)
	check(u, err)
	return out
}

func evalBlock(b *Block, s *scope) reflect.Value {
	if len(b.Variables) > 0 {
		s = newScope(s, len(b.Variables))
		for _, p := range b.Variables {
			s.declare(p)
		}
	}
	var labels map[*LabelTarget]int
	for i, e := range b.Expressions {
		if l, ok := e.(*Label); ok {
			if labels == nil {
				labels = make(map[*LabelTarget]int)
			}
			labels[l.Target] = i
		}
	}
	var result reflect.Value
	for i := 0; i < len(b.Expressions); {
		if labels == nil {
			result = eval(b.Expressions[i], s)
			i++
			continue
		}
		v, j := evalCatching(b.Expressions[i], s, func(t *LabelTarget) bool {
			_, ok := labels[t]
			return ok
		})
		if j != nil {
			i = labels[j.target] + 1
			result = j.value
			continue
		}
		result = v
		i++
	}
	if b.Typ == nil {
		return reflect.Value{}
	}
	v, err := convertTo(result, b.Typ)
	check(b, err)
	return v
}

// evalCatching evaluates n, recovering
// jumps to targets accepted by owns.
func evalCatching(n Node, s *scope, owns func(*LabelTarget) bool) (v reflect.Value, j *jump) {
	defer func() {
		if r := recover(); r != nil {
			if jj, ok := r.(*jump); ok && owns(jj.target) {
				j = jj
				return
			}
			panic(r)
		}
	}()
	return eval(n, s), nil
}

func evalLoop(l *Loop, s *scope) reflect.Value {
	owns := func(t *LabelTarget) bool {
		return t != nil && (t == l.Break || t == l.Continue)
	}
	for {
		_, j := evalCatching(l.Body, s, owns)
		if j != nil && j.target == l.Break {
			if l.Break.Typ == nil {
				return reflect.Value{}
			}
			v, err := convertTo(j.value, l.Break.Typ)
			check(l, err)
			return v
		}
	}
}

func evalSwitch(n *Switch, s *scope) reflect.Value {
	val := eval(n.SwitchValue, s)
	for i := range n.Cases {
		for _, t := range n.Cases[i].TestValues {
			tv := eval(t, s)
			var ok bool
			if n.Comparison != nil {
				ok = truthy(n, invokeMethod(n, n.Comparison, reflect.Value{}, []reflect.Value{val, tv}))
			} else {
				ok = valuesEqual(val, tv)
			}
			if ok {
				return result(n, eval(n.Cases[i].Body, s), n.Typ)
			}
		}
	}
	if n.DefaultBody == nil {
		return reflect.Value{}
	}
	return result(n, eval(n.DefaultBody, s), n.Typ)
}

func result(at Node, v reflect.Value, t reflect.Type) reflect.Value {
	out, err := convertTo(v, t)
	check(at, err)
	return out
}

func evalTry(t *Try, s *scope) (out reflect.Value) {
	if t.Finally != nil {
		defer eval(t.Finally, s)
	}
	var thrown any
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			switch r.(type) {
			case *jump, failure:
				panic(r)
			}
			thrown = r
		}()
		out = eval(t.Body, s)
	}()
	if thrown == nil {
		return result(t, out, t.Typ)
	}
	for i := range t.Handlers {
		h := &t.Handlers[i]
		tv := reflect.ValueOf(thrown)
		if h.Test != nil && !tv.Type().AssignableTo(h.Test) {
			continue
		}
		hs := s
		if h.Variable != nil {
			hs = newScope(s, 1)
			v, err := convertTo(tv, h.Variable.Typ)
			check(t, err)
			hs.declare(h.Variable).Set(v)
		}
		if h.Filter != nil && !truthy(t, eval(h.Filter, hs)) {
			continue
		}
		return result(t, eval(h.Body, hs), t.Typ)
	}
	if t.Fault != nil {
		eval(t.Fault, s)
	}
	panic(thrown)
}

func applyInits(at Node, obj reflect.Value, inits []ElementInit, s *scope) reflect.Value {
	if obj.Kind() != reflect.Pointer && !obj.CanAddr() {
		addr := reflect.New(obj.Type()).Elem()
		addr.Set(obj)
		obj = addr
	}
	for i := range inits {
		m := inits[i].AddMethod
		if !m.IsStatic() {
			callMethod(at, m, obj, inits[i].Arguments, s)
			continue
		}
		// static adders take the collection first
		// and may return the updated collection,
		// the way append does
		args := evalArgs(at, inits[i].Arguments, func(i int) reflect.Type { return m.In(i + 1) }, s)
		recv, err := convertTo(obj, m.In(0))
		check(at, err)
		out := invokeMethod(at, m, reflect.Value{}, append([]reflect.Value{recv}, args...))
		if out.IsValid() && out.Type().AssignableTo(obj.Type()) && obj.CanSet() {
			obj.Set(out)
		}
	}
	return obj
}

func applyBindings(at Node, obj reflect.Value, binds []MemberBinding, s *scope) {
	for _, b := range binds {
		switch b := b.(type) {
		case *MemberAssignment:
			v, err := convertTo(eval(b.Expression, s), b.Member.Type())
			check(at, err)
			check(at, b.Member.set(obj, v))
		case *MemberListBinding:
			cur, err := b.Member.get(obj)
			check(at, err)
			upd := applyInits(at, cur, b.Initializers, s)
			if upd != cur {
				check(at, b.Member.set(obj, upd))
			}
		case *MemberMemberBinding:
			cur, err := b.Member.get(obj)
			check(at, err)
			if !cur.CanAddr() && cur.Kind() != reflect.Pointer {
				addr := reflect.New(cur.Type()).Elem()
				addr.Set(cur)
				applyBindings(at, addr, b.Bindings, s)
				check(at, b.Member.set(obj, addr))
				continue
			}
			applyBindings(at, cur, b.Bindings, s)
		default:
			fail(at, "unexpected binding %T", b)
		}
	}
}

// protect runs fn, converting interpreter
// failures and uncaught panics into errors.
func protect(at Node, fn func() reflect.Value) (v reflect.Value, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		switch r := r.(type) {
		case failure:
			err = r.err
		case *jump:
			err = errevalf(at, "jump to label %s that is not in scope", r.target)
		case error:
			var ee *EvalError
			if errors.As(r, &ee) {
				err = ee
			} else {
				err = &EvalError{At: at, Err: r}
			}
		default:
			err = &EvalError{At: at, Err: &ThrownError{Value: r}}
		}
	}()
	return fn(), nil
}
