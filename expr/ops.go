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
	"math"
	"math/cmplx"
	"reflect"
)

type numclass uint8

const (
	notNumeric numclass = iota
	signedClass
	unsignedClass
	floatClass
	complexClass
)

func classOf(k reflect.Kind) numclass {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signedClass
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsignedClass
	case reflect.Float32, reflect.Float64:
		return floatClass
	case reflect.Complex64, reflect.Complex128:
		return complexClass
	}
	return notNumeric
}

// deref strips interface wrappers.
func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v
}

func isNil(v reflect.Value) bool {
	v = deref(v)
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// convertTo makes v usable where a t is expected.
// A nil t (void) yields the invalid Value.
func convertTo(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if t == nil {
		return reflect.Value{}, nil
	}
	if !v.IsValid() {
		return reflect.Zero(t), nil
	}
	if v.Type() == t {
		return v, nil
	}
	if v.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(v)
		return out, nil
	}
	d := deref(v)
	if !d.IsValid() {
		return reflect.Zero(t), nil
	}
	if d.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(d)
		return out, nil
	}
	if d.Type().ConvertibleTo(t) {
		return d.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", v.Type(), t)
}

func valuesEqual(l, r reflect.Value) bool {
	l, r = deref(l), deref(r)
	if !l.IsValid() || !r.IsValid() {
		return isNil(l) && isNil(r)
	}
	if cl, cr := classOf(l.Kind()), classOf(r.Kind()); cl != notNumeric && cl == cr && l.Type() != r.Type() {
		r = r.Convert(l.Type())
	}
	if l.Type() != r.Type() {
		return false
	}
	if l.Type().Comparable() {
		return l.Interface() == r.Interface()
	}
	switch l.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func:
		return l.Pointer() == r.Pointer()
	}
	return false
}

func compareValues(op BinaryOp, l, r reflect.Value) (bool, error) {
	l, r = deref(l), deref(r)
	var c int
	switch {
	case !l.IsValid() || !r.IsValid():
		return false, fmt.Errorf("ordered comparison %s of nil", op)
	case classOf(l.Kind()) == signedClass && classOf(r.Kind()) == signedClass:
		c = cmp3(l.Int() < r.Int(), l.Int() > r.Int())
	case classOf(l.Kind()) == unsignedClass && classOf(r.Kind()) == unsignedClass:
		c = cmp3(l.Uint() < r.Uint(), l.Uint() > r.Uint())
	case classOf(l.Kind()) == floatClass && classOf(r.Kind()) == floatClass:
		a, b := l.Float(), r.Float()
		if math.IsNaN(a) || math.IsNaN(b) {
			return false, nil
		}
		c = cmp3(a < b, a > b)
	case l.Kind() == reflect.String && r.Kind() == reflect.String:
		c = cmp3(l.String() < r.String(), l.String() > r.String())
	default:
		return false, fmt.Errorf("cannot compare %s with %s", l.Type(), r.Type())
	}
	switch op {
	case OpLessThan:
		return c < 0, nil
	case OpLessThanOrEqual:
		return c <= 0, nil
	case OpGreaterThan:
		return c > 0, nil
	case OpGreaterThanOrEqual:
		return c >= 0, nil
	}
	return false, fmt.Errorf("%s is not an ordered comparison", op)
}

func cmp3(lt, gt bool) int {
	if lt {
		return -1
	}
	if gt {
		return 1
	}
	return 0
}

func ipow(a, b int64) (int64, error) {
	if b < 0 {
		return 0, fmt.Errorf("negative exponent %d in integer power", b)
	}
	return int64(upow(uint64(a), uint64(b))), nil
}

// upow computes a**b with wrapping
// multiplication, by repeated squaring.
func upow(a, b uint64) uint64 {
	out := uint64(1)
	for ; b > 0; b >>= 1 {
		if b&1 != 0 {
			out *= a
		}
		a *= a
	}
	return out
}

// arith applies an arithmetic, bitwise or
// comparison operator to two values and
// returns a result of type t.
func arith(op BinaryOp, l, r reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch op {
	case OpEqual:
		return reflect.ValueOf(valuesEqual(l, r)), nil
	case OpNotEqual:
		return reflect.ValueOf(!valuesEqual(l, r)), nil
	case OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual:
		b, err := compareValues(op, l, r)
		return reflect.ValueOf(b), err
	}
	l, r = deref(l), deref(r)
	if !l.IsValid() || !r.IsValid() {
		return reflect.Value{}, fmt.Errorf("operator %s applied to nil", op)
	}
	out := reflect.New(l.Type()).Elem()
	if op == OpLeftShift || op == OpRightShift {
		var s uint64
		switch classOf(r.Kind()) {
		case signedClass:
			if r.Int() < 0 {
				return reflect.Value{}, fmt.Errorf("negative shift count %d", r.Int())
			}
			s = uint64(r.Int())
		case unsignedClass:
			s = r.Uint()
		default:
			return reflect.Value{}, fmt.Errorf("shift count of type %s", r.Type())
		}
		switch classOf(l.Kind()) {
		case signedClass:
			if op == OpLeftShift {
				out.SetInt(l.Int() << s)
			} else {
				out.SetInt(l.Int() >> s)
			}
		case unsignedClass:
			if op == OpLeftShift {
				out.SetUint(l.Uint() << s)
			} else {
				out.SetUint(l.Uint() >> s)
			}
		default:
			return reflect.Value{}, fmt.Errorf("cannot shift %s", l.Type())
		}
		return convertTo(out, t)
	}
	if l.Type() != r.Type() {
		if !r.Type().ConvertibleTo(l.Type()) {
			return reflect.Value{}, fmt.Errorf("mismatched operands %s %s %s", l.Type(), op, r.Type())
		}
		r = r.Convert(l.Type())
	}
	switch classOf(l.Kind()) {
	case signedClass:
		a, b := l.Int(), r.Int()
		switch op {
		case OpAdd:
			out.SetInt(a + b)
		case OpSubtract:
			out.SetInt(a - b)
		case OpMultiply:
			out.SetInt(a * b)
		case OpDivide:
			out.SetInt(a / b)
		case OpModulo:
			out.SetInt(a % b)
		case OpPower:
			p, err := ipow(a, b)
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetInt(p)
		case OpAnd:
			out.SetInt(a & b)
		case OpOr:
			out.SetInt(a | b)
		case OpExclusiveOr:
			out.SetInt(a ^ b)
		default:
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, l.Type())
		}
	case unsignedClass:
		a, b := l.Uint(), r.Uint()
		switch op {
		case OpAdd:
			out.SetUint(a + b)
		case OpSubtract:
			out.SetUint(a - b)
		case OpMultiply:
			out.SetUint(a * b)
		case OpDivide:
			out.SetUint(a / b)
		case OpModulo:
			out.SetUint(a % b)
		case OpPower:
			out.SetUint(upow(a, b))
		case OpAnd:
			out.SetUint(a & b)
		case OpOr:
			out.SetUint(a | b)
		case OpExclusiveOr:
			out.SetUint(a ^ b)
		default:
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, l.Type())
		}
	case floatClass:
		a, b := l.Float(), r.Float()
		switch op {
		case OpAdd:
			out.SetFloat(a + b)
		case OpSubtract:
			out.SetFloat(a - b)
		case OpMultiply:
			out.SetFloat(a * b)
		case OpDivide:
			out.SetFloat(a / b)
		case OpModulo:
			out.SetFloat(math.Mod(a, b))
		case OpPower:
			out.SetFloat(math.Pow(a, b))
		default:
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, l.Type())
		}
	case complexClass:
		a, b := l.Complex(), r.Complex()
		switch op {
		case OpAdd:
			out.SetComplex(a + b)
		case OpSubtract:
			out.SetComplex(a - b)
		case OpMultiply:
			out.SetComplex(a * b)
		case OpDivide:
			out.SetComplex(a / b)
		case OpPower:
			out.SetComplex(cmplx.Pow(a, b))
		default:
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, l.Type())
		}
	default:
		switch {
		case l.Kind() == reflect.String && op == OpAdd:
			out.SetString(l.String() + r.String())
		case l.Kind() == reflect.Bool && op == OpAnd:
			out.SetBool(l.Bool() && r.Bool())
		case l.Kind() == reflect.Bool && op == OpOr:
			out.SetBool(l.Bool() || r.Bool())
		case l.Kind() == reflect.Bool && op == OpExclusiveOr:
			out.SetBool(l.Bool() != r.Bool())
		default:
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, l.Type())
		}
	}
	return convertTo(out, t)
}

// unary applies a value-level unary operator.
func unary(op UnaryOp, v reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch op {
	case OpConvert:
		return convertTo(v, t)
	case OpTypeAs:
		d := deref(v)
		if d.IsValid() && d.Type().AssignableTo(t) {
			return convertTo(d, t)
		}
		return reflect.Zero(t), nil
	case OpUnaryPlus:
		return convertTo(v, t)
	}
	v = deref(v)
	if !v.IsValid() {
		return reflect.Value{}, fmt.Errorf("operator %s applied to nil", op)
	}
	if op == OpArrayLength {
		switch v.Kind() {
		case reflect.Slice, reflect.Array, reflect.String, reflect.Map, reflect.Chan:
			return convertTo(reflect.ValueOf(v.Len()), t)
		}
		return reflect.Value{}, fmt.Errorf("len of %s", v.Type())
	}
	out := reflect.New(v.Type()).Elem()
	switch classOf(v.Kind()) {
	case signedClass:
		switch op {
		case OpNegate:
			out.SetInt(-v.Int())
		case OpNot, OpOnesComplement:
			out.SetInt(^v.Int())
		case OpIncrement:
			out.SetInt(v.Int() + 1)
		case OpDecrement:
			out.SetInt(v.Int() - 1)
		default:
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, v.Type())
		}
	case unsignedClass:
		switch op {
		case OpNegate:
			out.SetUint(-v.Uint())
		case OpNot, OpOnesComplement:
			out.SetUint(^v.Uint())
		case OpIncrement:
			out.SetUint(v.Uint() + 1)
		case OpDecrement:
			out.SetUint(v.Uint() - 1)
		default:
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, v.Type())
		}
	case floatClass:
		switch op {
		case OpNegate:
			out.SetFloat(-v.Float())
		case OpIncrement:
			out.SetFloat(v.Float() + 1)
		case OpDecrement:
			out.SetFloat(v.Float() - 1)
		default:
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, v.Type())
		}
	case complexClass:
		if op != OpNegate {
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, v.Type())
		}
		out.SetComplex(-v.Complex())
	default:
		if v.Kind() != reflect.Bool {
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, v.Type())
		}
		switch op {
		case OpNot, OpIsFalse:
			out.SetBool(!v.Bool())
		case OpIsTrue:
			out.SetBool(v.Bool())
		default:
			return reflect.Value{}, fmt.Errorf("operator %s on %s", op, v.Type())
		}
	}
	return convertTo(out, t)
}
