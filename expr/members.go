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
	"unsafe"
)

// Member is a *Field or a *Property.
type Member interface {
	Name() string
	// DeclaringType is the struct type for fields
	// and the receiver type for properties.
	DeclaringType() reflect.Type
	// Type is the type of the member's value.
	Type() reflect.Type

	get(obj reflect.Value) (reflect.Value, error)
	set(obj, val reflect.Value) error
}

// Field describes a struct field.
type Field struct {
	name  string
	owner reflect.Type
	typ   reflect.Type
	index []int
}

// FieldOf returns the field called name
// of the struct type t (or of the struct
// t points to). FieldOf panics if there is
// no such field.
func FieldOf(t reflect.Type, name string) *Field {
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		panic(fmt.Sprintf("expr.FieldOf: %s is not a struct type", t))
	}
	sf, ok := st.FieldByName(name)
	if !ok {
		panic(fmt.Sprintf("expr.FieldOf: %s has no field %q", st, name))
	}
	return &Field{name: name, owner: st, typ: sf.Type, index: sf.Index}
}

func (f *Field) Name() string                { return f.name }
func (f *Field) DeclaringType() reflect.Type { return f.owner }
func (f *Field) Type() reflect.Type          { return f.typ }

// Index returns the index path of the
// field as used by reflect.Value.FieldByIndex.
func (f *Field) Index() []int { return f.index }

func (f *Field) String() string { return f.owner.String() + "." + f.name }

func (f *Field) locate(obj reflect.Value) (reflect.Value, error) {
	if obj.Kind() == reflect.Pointer {
		if obj.IsNil() {
			return reflect.Value{}, fmt.Errorf("field %s of nil pointer", f)
		}
		obj = obj.Elem()
	}
	if obj.Type() != f.owner {
		return reflect.Value{}, fmt.Errorf("field %s of value of type %s", f, obj.Type())
	}
	v, err := obj.FieldByIndexErr(f.index)
	if err != nil {
		return reflect.Value{}, err
	}
	if !v.CanInterface() && v.CanAddr() {
		// unexported fields of addressable
		// records (closures in particular)
		// are still readable and writable
		v = reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
	}
	return v, nil
}

func (f *Field) get(obj reflect.Value) (reflect.Value, error) {
	v, err := f.locate(obj)
	if err != nil {
		return v, err
	}
	if !v.CanInterface() {
		return reflect.Value{}, fmt.Errorf("field %s is not accessible", f)
	}
	return v, nil
}

func (f *Field) set(obj, val reflect.Value) error {
	v, err := f.locate(obj)
	if err != nil {
		return err
	}
	if !v.CanSet() {
		return fmt.Errorf("field %s is not settable", f)
	}
	v.Set(val)
	return nil
}

// Property describes a getter method and
// an optional setter method treated as a
// single member. A property with index
// parameters is an indexer.
type Property struct {
	name   string
	owner  reflect.Type
	typ    reflect.Type
	getter *Method
	setter *Method
}

// PropertyOf returns the property of t
// backed by the method called name and, if
// present, the method called "Set"+name.
// PropertyOf panics if there is no getter.
func PropertyOf(t reflect.Type, name string) *Property {
	get := MethodByName(t, name)
	if get.Out() == nil {
		panic(fmt.Sprintf("expr.PropertyOf: %s.%s returns nothing", t, name))
	}
	p := &Property{name: name, owner: t, typ: get.Out(), getter: get}
	if _, ok := t.MethodByName("Set" + name); ok {
		p.setter = MethodByName(t, "Set"+name)
	}
	return p
}

func (p *Property) Name() string                { return p.name }
func (p *Property) DeclaringType() reflect.Type { return p.owner }
func (p *Property) Type() reflect.Type          { return p.typ }
func (p *Property) Getter() *Method             { return p.getter }
func (p *Property) Setter() *Method             { return p.setter }
func (p *Property) String() string              { return p.owner.String() + "." + p.name }

// IndexTypes returns the types of
// the index parameters of the property.
func (p *Property) IndexTypes() []reflect.Type { return p.getter.in }

func (p *Property) get(obj reflect.Value) (reflect.Value, error) {
	return p.getter.call(obj, nil)
}

func (p *Property) set(obj, val reflect.Value) error {
	if p.setter == nil {
		return fmt.Errorf("property %s is read-only", p)
	}
	_, err := p.setter.call(obj, []reflect.Value{val})
	return err
}

// Method describes a callable function.
// Instance methods take their receiver
// separately from their arguments.
type Method struct {
	name   string
	owner  reflect.Type
	static bool
	fn     reflect.Value
	in     []reflect.Type
	out    reflect.Type
	errout bool
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func newMethod(name string, owner reflect.Type, static bool, fn reflect.Value) *Method {
	ft := fn.Type()
	m := &Method{name: name, owner: owner, static: static, fn: fn}
	first := 0
	if !static {
		first = 1
	}
	for i := first; i < ft.NumIn(); i++ {
		m.in = append(m.in, ft.In(i))
	}
	switch ft.NumOut() {
	case 0:
	case 1:
		m.out = ft.Out(0)
	case 2:
		if ft.Out(1) != errorType {
			panic(fmt.Sprintf("expr: method %s: second result must be error", name))
		}
		m.out, m.errout = ft.Out(0), true
	default:
		panic(fmt.Sprintf("expr: method %s returns too many values", name))
	}
	return m
}

// MethodOf returns a static method named
// name backed by the func fn.
func MethodOf(name string, fn any) *Method {
	return StaticMethod(nil, name, fn)
}

// StaticMethod is like MethodOf, but
// associates the method with a declaring type.
func StaticMethod(owner reflect.Type, name string, fn any) *Method {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("expr.StaticMethod: %T is not a func", fn))
	}
	if v.Type().IsVariadic() {
		panic(fmt.Sprintf("expr.StaticMethod: %s is variadic", name))
	}
	return newMethod(name, owner, true, v)
}

// MethodFunc is like StaticMethod, but takes
// the implementation as a reflect.Value.
func MethodFunc(owner reflect.Type, name string, fn reflect.Value) *Method {
	return newMethod(name, owner, true, fn)
}

// MethodByName returns the method called
// name in the method set of t. It panics
// if there is no such method.
func MethodByName(t reflect.Type, name string) *Method {
	m, ok := t.MethodByName(name)
	if !ok {
		panic(fmt.Sprintf("expr.MethodByName: %s has no method %q", t, name))
	}
	if t.Kind() == reflect.Interface {
		// interface methods have no Func;
		// dispatch through the receiver
		in := make([]reflect.Type, 0, m.Type.NumIn()+1)
		in = append(in, t)
		for i := 0; i < m.Type.NumIn(); i++ {
			in = append(in, m.Type.In(i))
		}
		out := make([]reflect.Type, m.Type.NumOut())
		for i := range out {
			out[i] = m.Type.Out(i)
		}
		fn := reflect.MakeFunc(reflect.FuncOf(in, out, false), func(args []reflect.Value) []reflect.Value {
			return args[0].MethodByName(name).Call(args[1:])
		})
		return newMethod(name, t, false, fn)
	}
	if m.Type.IsVariadic() {
		panic(fmt.Sprintf("expr.MethodByName: %s.%s is variadic", t, name))
	}
	return newMethod(name, t, false, m.Func)
}

func (m *Method) Name() string                { return m.name }
func (m *Method) DeclaringType() reflect.Type { return m.owner }
func (m *Method) IsStatic() bool              { return m.static }

// NumIn returns the number of arguments,
// not counting the receiver.
func (m *Method) NumIn() int            { return len(m.in) }
func (m *Method) In(i int) reflect.Type { return m.in[i] }
func (m *Method) Out() reflect.Type     { return m.out }
func (m *Method) Func() reflect.Value   { return m.fn }
func (m *Method) ReturnsError() bool    { return m.errout }
func (m *Method) funcPointer() uintptr  { return m.fn.Pointer() }

func (m *Method) String() string {
	if m.owner == nil {
		return m.name
	}
	return m.owner.String() + "." + m.name
}

func (m *Method) call(recv reflect.Value, args []reflect.Value) (reflect.Value, error) {
	if !m.static {
		if !recv.IsValid() {
			return reflect.Value{}, fmt.Errorf("method %s called without a receiver", m)
		}
		args = append([]reflect.Value{recv}, args...)
	}
	out := m.fn.Call(args)
	if m.errout {
		if err, _ := out[1].Interface().(error); err != nil {
			return reflect.Value{}, err
		}
	}
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	return out[0], nil
}

// Constructor describes a func that builds
// a value of a particular type.
type Constructor struct {
	typ reflect.Type
	fn  reflect.Value
	in  []reflect.Type
}

// ConstructorOf returns a constructor
// backed by fn, which must return exactly
// one value.
func ConstructorOf(fn any) *Constructor {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.Type().NumOut() != 1 {
		panic(fmt.Sprintf("expr.ConstructorOf: %T is not a constructor", fn))
	}
	c := &Constructor{typ: v.Type().Out(0), fn: v}
	for i := 0; i < v.Type().NumIn(); i++ {
		c.in = append(c.in, v.Type().In(i))
	}
	return c
}

func (c *Constructor) Type() reflect.Type    { return c.typ }
func (c *Constructor) NumIn() int            { return len(c.in) }
func (c *Constructor) In(i int) reflect.Type { return c.in[i] }
func (c *Constructor) funcPointer() uintptr  { return c.fn.Pointer() }
func (c *Constructor) String() string        { return "new " + c.typ.String() }

// SameMember returns whether a and b
// describe the same field or property.
func SameMember(a, b Member) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a := a.(type) {
	case *Field:
		bf, ok := b.(*Field)
		return ok && (a == bf || (a.owner == bf.owner && a.name == bf.name))
	case *Property:
		bp, ok := b.(*Property)
		return ok && (a == bp || (a.owner == bp.owner && a.name == bp.name))
	}
	return false
}

// SameMethod returns whether a and b
// describe the same method.
func SameMethod(a, b *Method) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b || (a.owner == b.owner && a.name == b.name &&
		a.static == b.static && a.fn.Type() == b.fn.Type() &&
		a.funcPointer() == b.funcPointer())
}

// SameConstructor returns whether a and b
// describe the same constructor.
func SameConstructor(a, b *Constructor) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b || (a.typ == b.typ && a.fn.Type() == b.fn.Type() &&
		a.funcPointer() == b.funcPointer())
}
