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

package equality

import (
	"fmt"

	"github.com/zysharp/metaprogramming/expr"
)

// UnsupportedKindError is returned when a tree
// contains a node that cannot be compared
// or hashed at all (late-bound operations).
type UnsupportedKindError struct {
	Kind expr.Kind
}

func (u *UnsupportedKindError) Error() string {
	return fmt.Sprintf("equality: %s nodes are not supported", u.Kind)
}

// UnrecognizedKindError is returned when a tree
// contains an extension node. Extensions must be
// reduced (see expr.ReduceExtensionsRecursive)
// before they can be compared or hashed.
type UnrecognizedKindError struct {
	Node expr.Node
}

func (u *UnrecognizedKindError) Error() string {
	return fmt.Sprintf("equality: unrecognized node %T (reduce extensions first)", u.Node)
}

// abort carries an error out of
// the recursive comparison or hash
type abort struct {
	err error
}

func fail(err error) { panic(abort{err}) }

func kindError(n expr.Node) error {
	if n.Kind() == expr.KindDynamic {
		return &UnsupportedKindError{Kind: n.Kind()}
	}
	return &UnrecognizedKindError{Node: n}
}

// catch recovers an abort into *err;
// any other panic is re-raised.
func catch(err *error) {
	if r := recover(); r != nil {
		a, ok := r.(abort)
		if !ok {
			panic(r)
		}
		*err = a.err
	}
}
