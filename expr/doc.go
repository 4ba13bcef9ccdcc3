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

// Package expr implements the
// in-memory representation of executable
// expression trees.
//
// Each of the node types satisfies
// the Node interface; the static type
// of a node is a reflect.Type, and a nil
// type denotes a statement with no value.
//
// The critical entry points for this
// package are Walk, Rewrite, Snapshot
// and Evaluate. Walk and Rewrite allow a
// caller to examine a tree or to produce
// a new one. Snapshot freezes the variables
// a tree has captured (see Closure).
// Evaluate runs a closed tree.
package expr
