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
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/dchest/siphash"
)

// fixed keys keep redacted
// output stable across runs
const (
	k0, k1 = 0, 1
)

// redactDepth bounds how far into
// composite values redaction descends
const redactDepth = 4

func redactBits(u uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], u)
	return siphash.Hash(k0, k1, buf[:])
}

func redactFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	// map onto [0, 1)
	return float64(redactBits(math.Float64bits(f))>>11) / float64(1<<53)
}

func redactString(s string) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], siphash.Hash(k0, k1, []byte(s)))
	return base32.StdEncoding.EncodeToString(buf[:])
}

// redactValue writes v to dst with every
// scalar it holds replaced by a keyed hash
// of itself. Pointers, funcs and channels
// are written as their type only, so no
// address or shared state is revealed.
func redactValue(dst *strings.Builder, v reflect.Value, depth int) {
	if !v.IsValid() {
		dst.WriteString("nil")
		return
	}
	if depth > redactDepth {
		dst.WriteString("...")
		return
	}
	switch classOf(v.Kind()) {
	case signedClass:
		fmt.Fprintf(dst, "%d", int64(redactBits(uint64(v.Int()))))
		return
	case unsignedClass:
		fmt.Fprintf(dst, "%d", redactBits(v.Uint()))
		return
	case floatClass:
		fmt.Fprintf(dst, "%g", redactFloat(v.Float()))
		return
	case complexClass:
		c := v.Complex()
		fmt.Fprintf(dst, "%g", complex(redactFloat(real(c)), redactFloat(imag(c))))
		return
	}
	switch v.Kind() {
	case reflect.Bool:
		// a single bit is not worth hiding
		fmt.Fprintf(dst, "%t", v.Bool())
	case reflect.String:
		fmt.Fprintf(dst, "%q", redactString(v.String()))
	case reflect.Interface:
		if v.IsNil() {
			dst.WriteString("nil")
			return
		}
		redactValue(dst, v.Elem(), depth)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			dst.WriteString("nil")
			return
		}
		dst.WriteString(v.Type().String())
		dst.WriteString("{")
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				dst.WriteString(", ")
			}
			redactValue(dst, v.Index(i), depth+1)
		}
		dst.WriteString("}")
	case reflect.Struct:
		dst.WriteString(v.Type().String())
		dst.WriteString("{")
		for i := 0; i < v.NumField(); i++ {
			if i > 0 {
				dst.WriteString(", ")
			}
			redactValue(dst, v.Field(i), depth+1)
		}
		dst.WriteString("}")
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			dst.WriteString("nil")
			return
		}
		fmt.Fprintf(dst, "%s(...)", v.Type())
	default:
		fmt.Fprintf(dst, "%s(...)", v.Type())
	}
}
