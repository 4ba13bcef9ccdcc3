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
)

// EvalError is the error type returned
// from Evaluate, Compile and Snapshot when
// a tree cannot be evaluated.
type EvalError struct {
	// At is the node being evaluated.
	At Node
	// Err is the underlying failure.
	Err error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("cannot evaluate %s: %s", ToString(e.At), e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

func errevalf(at Node, f string, args ...any) *EvalError {
	return &EvalError{At: at, Err: fmt.Errorf(f, args...)}
}

// ThrownError wraps a non-error value that
// was thrown by compiled code and never caught.
type ThrownError struct {
	Value any
}

func (t *ThrownError) Error() string {
	return fmt.Sprintf("uncaught throw of %v", t.Value)
}
