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

// Snapshot returns n with every read of a
// captured variable (see IsClosureMember)
// replaced by a constant holding the value
// the variable has right now, typed as the
// variable. Extension nodes are descended
// into but not reduced.
//
// Snapshot(Snapshot(n)) is equivalent to Snapshot(n).
func Snapshot(n Node) (Node, error) {
	s := &snapshotter{}
	out := Rewrite(s, n)
	if s.err != nil {
		return nil, s.err
	}
	return out, nil
}

type snapshotter struct {
	err error
}

func (s *snapshotter) Walk(n Node) Rewriter {
	if s.err != nil || IsClosureMember(n) {
		return nil
	}
	return s
}

func (s *snapshotter) Rewrite(n Node) Node {
	if s.err != nil || !IsClosureMember(n) {
		return n
	}
	m := n.(*MemberAccess)
	v, err := Evaluate(m)
	if err != nil {
		s.err = err
		return n
	}
	return ConstOf(v, m.Member.Type())
}
