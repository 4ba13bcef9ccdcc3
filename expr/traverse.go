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

// Contains returns whether any of targets
// appears in tree. Nodes are matched by
// identity, not by structure.
func Contains(tree Node, targets ...Node) bool {
	if tree == nil || len(targets) == 0 {
		return false
	}
	found := false
	Walk(visitfn(func(n Node) bool {
		if found {
			return false
		}
		for i := range targets {
			if n == targets[i] {
				found = true
				return false
			}
		}
		return true
	}), tree)
	return found
}

// Replace returns tree with every occurrence
// of old (by identity) replaced by repl.
func Replace(tree, old, repl Node) Node {
	return ReplaceAll(tree, map[Node]Node{old: repl})
}

// ReplaceAll is like Replace, but performs every
// substitution in m in a single pass. Replacement
// nodes are not searched for further matches.
func ReplaceAll(tree Node, m map[Node]Node) Node {
	if len(m) == 0 {
		return tree
	}
	return Rewrite(replacer(m), tree)
}

type replacer map[Node]Node

func (r replacer) Walk(n Node) Rewriter {
	if _, ok := r[n]; ok {
		return nil
	}
	return r
}

func (r replacer) Rewrite(n Node) Node {
	if repl, ok := r[n]; ok {
		return repl
	}
	return n
}

// ReduceRecursive reduces every reducible node
// in tree, and the results of those reductions,
// until no node can be reduced further.
func ReduceRecursive(tree Node) Node {
	return Rewrite(&reducer{}, tree)
}

// ReduceExtensionsRecursive is like ReduceRecursive,
// but only reduces extension nodes. Reducible
// built-in nodes (compound assignments) are kept.
func ReduceExtensionsRecursive(tree Node) Node {
	return Rewrite(&reducer{extOnly: true}, tree)
}

type reducer struct {
	extOnly bool
}

func (r *reducer) reducible(n Node) (Reducible, bool) {
	if r.extOnly && n.Kind() != KindExtension {
		return nil, false
	}
	rd, ok := n.(Reducible)
	if !ok || !rd.CanReduce() {
		return nil, false
	}
	return rd, true
}

func (r *reducer) Walk(n Node) Rewriter {
	if _, ok := r.reducible(n); ok {
		// reduced in Rewrite, then revisited
		return nil
	}
	return r
}

func (r *reducer) Rewrite(n Node) Node {
	rd, ok := r.reducible(n)
	if !ok {
		return n
	}
	return Rewrite(r, rd.Reduce())
}

// FlatNode is one step of a traversal
// recorded by Flatten.
type FlatNode struct {
	Node Node
	// ID is the same for every visit
	// of the same node and is assigned
	// in order of first visit.
	ID int
	// Level is the depth of the visit;
	// the root is at level 0.
	Level int
}

// Flatten records the pre-order traversal of tree
// performed by Walk. A node reached more than once
// (a parameter referenced by a lambda body and
// listed as one of its parameters, for example)
// appears once per visit.
func Flatten(tree Node) []FlatNode {
	if tree == nil {
		return nil
	}
	f := &flattener{ids: make(map[Node]int)}
	Walk(f, tree)
	return f.out
}

type flattener struct {
	out   []FlatNode
	ids   map[Node]int
	level int
}

func (f *flattener) Visit(n Node) Visitor {
	if n == nil {
		f.level--
		return nil
	}
	id, ok := f.ids[n]
	if !ok {
		id = len(f.ids)
		f.ids[n] = id
	}
	f.out = append(f.out, FlatNode{Node: n, ID: id, Level: f.level})
	f.level++
	return f
}

// Copy returns a deep copy of n. Parameters
// and labels declared or referenced in n are
// replaced by fresh ones, consistently, so the
// copy shares no node with n.
func Copy(n Node) Node {
	c := &copier{
		params: make(map[*Parameter]*Parameter),
		labels: make(map[*LabelTarget]*LabelTarget),
	}
	return Rewrite(c, n)
}

type copier struct {
	params map[*Parameter]*Parameter
	labels map[*LabelTarget]*LabelTarget
}

func (c *copier) label(t *LabelTarget) *LabelTarget {
	if t == nil {
		return nil
	}
	out, ok := c.labels[t]
	if !ok {
		out = &LabelTarget{Name: t.Name, Typ: t.Typ}
		c.labels[t] = out
	}
	return out
}

func (c *copier) Walk(Node) Rewriter { return c }

func (c *copier) Rewrite(n Node) Node {
	switch n := n.(type) {
	case *Parameter:
		out, ok := c.params[n]
		if !ok {
			cp := *n
			out = &cp
			c.params[n] = out
		}
		return out
	case *Constant:
		cp := *n
		return &cp
	case *Default:
		cp := *n
		return &cp
	case *DebugInfo:
		cp := *n
		return &cp
	case *Goto:
		cp := *n
		cp.Target = c.label(n.Target)
		return &cp
	case *Label:
		cp := *n
		cp.Target = c.label(n.Target)
		return &cp
	case *Loop:
		cp := *n
		cp.Break = c.label(n.Break)
		cp.Continue = c.label(n.Continue)
		return &cp
	case *NewArray:
		if len(n.Expressions) == 0 {
			cp := *n
			return &cp
		}
	case *New:
		if len(n.Arguments) == 0 {
			cp := *n
			return &cp
		}
	}
	return n
}
