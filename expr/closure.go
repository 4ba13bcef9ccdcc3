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
	"unicode"
	"unicode/utf8"
)

// Closure marks a struct type as a closure
// record: a record holding variables captured
// from an enclosing scope. It must be embedded
// as the first field of the record, and the
// record type must be unnamed or unexported:
//
//	env := &struct {
//		expr.Closure
//		limit int
//	}{limit: 42}
//	tree := expr.Lt(x, expr.Captured(env, "limit"))
//
// Because the tree holds a pointer to env,
// later assignments to env.limit are observed
// by the tree until it is snapshotted.
type Closure struct{}

var closureType = reflect.TypeOf(Closure{})

// IsClosureRecord returns whether t
// is a closure record type.
func IsClosureRecord(t reflect.Type) bool {
	if t == nil || t.Kind() != reflect.Struct || t.NumField() == 0 {
		return false
	}
	f := t.Field(0)
	if !f.Anonymous || f.Type != closureType {
		return false
	}
	name := t.Name()
	if name == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(name)
	return !unicode.IsUpper(r)
}

// IsClosureMember returns whether n is a
// read of a captured variable: a field access
// on a constant, non-nil pointer to a closure record.
func IsClosureMember(n Node) bool {
	m, ok := n.(*MemberAccess)
	if !ok {
		return false
	}
	f, ok := m.Member.(*Field)
	if !ok || !IsClosureRecord(f.DeclaringType()) {
		return false
	}
	c, ok := m.Expression.(*Constant)
	if !ok || c.Value == nil {
		return false
	}
	v := reflect.ValueOf(c.Value)
	return v.Kind() == reflect.Pointer && !v.IsNil() && v.Type().Elem() == f.DeclaringType()
}

// Captured produces a read of the captured
// variable called name held by env, which
// must be a pointer to a closure record.
func Captured(env any, name string) *MemberAccess {
	t := reflect.TypeOf(env)
	if t == nil || t.Kind() != reflect.Pointer || !IsClosureRecord(t.Elem()) {
		panic(fmt.Sprintf("expr.Captured: %T is not a pointer to a closure record", env))
	}
	return &MemberAccess{Expression: Const(env), Member: FieldOf(t.Elem(), name)}
}
