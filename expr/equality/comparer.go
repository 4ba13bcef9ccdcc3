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

// Package equality decides whether two
// expression trees denote the same computation.
//
// Parameters and label targets are compared
// by their role rather than their identity:
// two trees that differ only by a consistent
// renaming of their bound variables and labels
// are equal. Hash is consistent with Equal.
package equality

import (
	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"

	"github.com/zysharp/metaprogramming/expr"
)

// Comparer compares and hashes trees.
// The zero Comparer ignores nothing.
// A Comparer may be used concurrently.
type Comparer struct {
	Flags Flags
}

// New returns a Comparer using flags.
func New(flags Flags) *Comparer {
	return &Comparer{Flags: flags}
}

var defaultComparer = New(DefaultFlags)

// Equal reports whether x and y are equal using DefaultFlags.
func Equal(x, y expr.Node) (bool, error) { return defaultComparer.Equal(x, y) }

// Hash hashes x using DefaultFlags.
func Hash(x expr.Node) (uint64, error) { return defaultComparer.Hash(x) }

// Fingerprint fingerprints x using DefaultFlags.
func Fingerprint(x expr.Node) ([32]byte, error) { return defaultComparer.Fingerprint(x) }

// Equal reports whether x and y are equal.
// Both trees are snapshotted (see expr.Snapshot)
// before they are compared, so captured variables
// are compared by their current values.
//
// Equal fails with *UnsupportedKindError or
// *UnrecognizedKindError if it reaches a node
// it cannot compare, and with *expr.EvalError
// if a captured variable cannot be read.
func (c *Comparer) Equal(x, y expr.Node) (eq bool, err error) {
	if x == nil || y == nil {
		return x == nil && y == nil, nil
	}
	if x, err = expr.Snapshot(x); err != nil {
		return false, err
	}
	if y, err = expr.Snapshot(y); err != nil {
		return false, err
	}
	defer catch(&err)
	return newCompareState(c.Flags).node(x, y), nil
}

// hashKey is the SipHash key for Hash.
var hashKey = []byte("expr/equality\x00\x00\x00")

// Hash returns a hash of x such that
// c.Equal(x, y) implies c.Hash(x) == c.Hash(y).
// Hashes are stable within one process.
func (c *Comparer) Hash(x expr.Node) (h uint64, err error) {
	if x == nil {
		return 0, nil
	}
	if x, err = expr.Snapshot(x); err != nil {
		return 0, err
	}
	defer catch(&err)
	sum := siphash.New(hashKey)
	newHashState(c.Flags, sum).node(x)
	return sum.Sum64(), nil
}

// Fingerprint is like Hash, but returns
// a BLAKE2b-256 digest of the same input.
func (c *Comparer) Fingerprint(x expr.Node) (fp [32]byte, err error) {
	if x == nil {
		return fp, nil
	}
	if x, err = expr.Snapshot(x); err != nil {
		return fp, err
	}
	defer catch(&err)
	sum, err := blake2b.New256(nil)
	if err != nil {
		return fp, err
	}
	newHashState(c.Flags, sum).node(x)
	sum.Sum(fp[:0])
	return fp, nil
}
