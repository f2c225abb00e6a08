package model

import "strings"

// Kind tells leaves and folders apart.
type Kind uint8

const (
	KindLeaf Kind = iota
	KindFolder
)

// String returns "leaf" or "folder".
func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "leaf"
}

// TreeValue is the nested wire form of a selection tree. A value is a folder
// exactly when its selectionList key is present, even if the list is empty.
type TreeValue struct {
	Value
	SelectionList *[]TreeValue `json:"selectionList,omitempty"`
}

// IsFolder reports whether the wire value owns a child list.
func (tv TreeValue) IsFolder() bool {
	return tv.SelectionList != nil
}

// NewLeaf builds a leaf wire value.
func NewLeaf(label, value string, state State) TreeValue {
	return TreeValue{Value: Value{Label: label, Value: value, State: state}}
}

// NewFolder builds a folder wire value owning children.
func NewFolder(label, value string, state State, children ...TreeValue) TreeValue {
	list := make([]TreeValue, len(children))
	copy(list, children)
	return TreeValue{
		Value:         Value{Label: label, Value: value, State: state},
		SelectionList: &list,
	}
}

// Node is one arena slot of a Tree.
type Node struct {
	Value
	Kind Kind
	// Children is only populated for KindFolder.
	Children []NodeID
}

// Tree is an arena of selection nodes. Slot 0 is the synthetic root, which
// is never shown and never part of a path. Parents are kept in a separate
// index instead of back-pointers on the nodes, and paths are memoized here
// rather than on the nodes. A refresh replaces the whole Tree.
type Tree struct {
	nodes  []Node
	parent []NodeID
	paths  map[NodeID]string
}

// NewTree copies a wire tree into a fresh arena. The wire root becomes the
// synthetic root; its selection list holds the top-level values.
func NewTree(root TreeValue) *Tree {
	t := &Tree{paths: make(map[NodeID]string)}
	rootVal := root.Value
	rootVal.Level = -1
	id := t.add(NoNode, rootVal, KindFolder)
	if root.SelectionList != nil {
		for _, child := range *root.SelectionList {
			t.attach(id, child)
		}
	}
	return t
}

func (t *Tree) attach(parent NodeID, tv TreeValue) {
	kind := KindLeaf
	if tv.IsFolder() {
		kind = KindFolder
	}
	v := tv.Value
	v.Level = t.nodes[parent].Level + 1
	id := t.add(parent, v, kind)
	if kind == KindFolder {
		for _, child := range *tv.SelectionList {
			t.attach(id, child)
		}
	}
}

func (t *Tree) add(parent NodeID, v Value, kind Kind) NodeID {
	id := NodeID(len(t.nodes))
	v.ID = id
	v.Excluded = false
	t.nodes = append(t.nodes, Node{Value: v, Kind: kind})
	t.parent = append(t.parent, parent)
	if parent != NoNode {
		t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	}
	return id
}

// Root returns the synthetic root id.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of slots, synthetic root included.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Valid reports whether id addresses a slot of this arena.
func (t *Tree) Valid(id NodeID) bool {
	return t != nil && id >= 0 && int(id) < len(t.nodes)
}

// Node returns the slot for id, or nil.
func (t *Tree) Node(id NodeID) *Node {
	if !t.Valid(id) {
		return nil
	}
	return &t.nodes[id]
}

// Parent returns the parent of id; the root and unknown ids yield NoNode.
func (t *Tree) Parent(id NodeID) NodeID {
	if !t.Valid(id) {
		return NoNode
	}
	return t.parent[id]
}

// IsRoot reports whether id is the synthetic root.
func (t *Tree) IsRoot(id NodeID) bool {
	return id == 0 && t.Len() > 0
}

// Children returns the child ids of a folder; leaves have none.
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.Node(id)
	if n == nil || n.Kind != KindFolder {
		return nil
	}
	return n.Children
}

// Ancestors returns the ancestors of id nearest first, synthetic root excluded.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p := t.Parent(id); p != NoNode && !t.IsRoot(p); p = t.Parent(p) {
		out = append(out, p)
	}
	return out
}

// IsAncestor reports whether a is a strict ancestor of b.
func (t *Tree) IsAncestor(a, b NodeID) bool {
	for p := t.Parent(b); p != NoNode; p = t.Parent(p) {
		if p == a {
			return true
		}
	}
	return false
}

// Descendants returns every id below id in pre-order, id itself excluded.
func (t *Tree) Descendants(id NodeID) []NodeID {
	var out []NodeID
	var walk func(NodeID)
	walk = func(n NodeID) {
		for _, c := range t.Children(n) {
			out = append(out, c)
			walk(c)
		}
	}
	walk(id)
	return out
}

// Walk visits every node below the root in pre-order.
func (t *Tree) Walk(fn func(*Node)) {
	for _, id := range t.Descendants(t.Root()) {
		fn(&t.nodes[id])
	}
}

// Path returns the "/"-joined label-or-value chain from the root-adjacent
// ancestor down to id. It is computed once per arena and then reused.
func (t *Tree) Path(id NodeID) string {
	if !t.Valid(id) || t.IsRoot(id) {
		return ""
	}
	if p, ok := t.paths[id]; ok {
		return p
	}
	segment := t.nodes[id].DisplayLabel()
	path := segment
	if parent := t.Parent(id); parent != NoNode && !t.IsRoot(parent) {
		path = t.Path(parent) + "/" + segment
	}
	t.paths[id] = path
	return path
}

// ValuePath returns the identity values from the root-adjacent ancestor down
// to id, as sent on the wire in COLUMN mode.
func (t *Tree) ValuePath(id NodeID) []string {
	if !t.Valid(id) || t.IsRoot(id) {
		return nil
	}
	ancestors := t.Ancestors(id)
	out := make([]string, 0, len(ancestors)+1)
	for i := len(ancestors) - 1; i >= 0; i-- {
		out = append(out, t.nodes[ancestors[i]].Value.Value)
	}
	return append(out, t.nodes[id].Value.Value)
}

// HasPathPrefix reports whether the path of a equals the path of b or is one
// of its ancestor prefixes.
func (t *Tree) HasPathPrefix(a, b NodeID) bool {
	pa, pb := t.Path(a), t.Path(b)
	return pa == pb || strings.HasPrefix(pb, pa+"/")
}
