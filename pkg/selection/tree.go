package selection

import (
	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/metrics"
	"github.com/vanderheijden86/sheetview/pkg/model"
)

// TreeController drives a hierarchical selection tree.
//
// In COLUMN mode the levels form a drill-down hierarchy: selecting a node
// selects its ancestors and the outgoing path carries every ancestor value.
// In ID mode each node is an independent identifier and the whole tree is
// always expanded.
type TreeController struct {
	base
	model *model.TreeModel
	tree  *model.Tree

	// open is keyed by node path, so it outlives model replacements.
	open map[string]bool
	// current caches a full pre-order traversal; nil means stale.
	current []model.NodeID
	// toggleLevels lists the depths at which a toggle gesture happened
	// since the last submission.
	toggleLevels []int
}

// NewTree returns a controller bound to m.
func NewTree(m *model.TreeModel, deps Deps) *TreeController {
	c := &TreeController{open: make(map[string]bool)}
	c.init(deps, c)
	if m != nil {
		c.bind(m)
	}
	return c
}

// Kind returns model.KindTree.
func (c *TreeController) Kind() model.AssemblyKind { return model.KindTree }

// Model returns the bound tree model.
func (c *TreeController) Model() *model.TreeModel { return c.model }

// Tree returns the node arena of the bound model.
func (c *TreeController) Tree() *model.Tree { return c.tree }

// SetModel replaces the bound model with a tree assembly pushed by the server.
func (c *TreeController) SetModel(a *model.Assembly) {
	if a == nil || a.Kind != model.KindTree || a.Tree == nil {
		debug.Log("selection: tree controller %s ignoring non-tree model", c.Name())
		return
	}
	c.bind(a.Tree)
}

func (c *TreeController) bind(m *model.TreeModel) {
	c.model = m
	c.tree = m.Tree()
	c.rebind(&m.SelectionOptions)
}

func (c *TreeController) resetValues() {
	c.current = nil
	c.toggleLevels = nil
}

// currentValues returns every node in pre-order, building the cache lazily.
func (c *TreeController) currentValues() []model.NodeID {
	if c.current == nil {
		c.current = c.tree.Descendants(c.tree.Root())
	}
	return c.current
}

// node maps a value handed out by this controller back to its arena slot.
// Values from another arena resolve to nil.
func (c *TreeController) node(v *model.Value) *model.Node {
	if v == nil || c.tree == nil {
		return nil
	}
	n := c.tree.Node(v.ID)
	if n == nil || &n.Value != v {
		return nil
	}
	return n
}

// Path returns the memoized path of v.
func (c *TreeController) Path(v *model.Value) string {
	if n := c.node(v); n != nil {
		return c.tree.Path(n.ID)
	}
	return ""
}

// Node returns the arena node behind a visible value, or nil.
func (c *TreeController) Node(v *model.Value) *model.Node { return c.node(v) }

// IsOpen reports whether v is expanded in COLUMN mode.
func (c *TreeController) IsOpen(v *model.Value) bool {
	n := c.node(v)
	if n == nil {
		return false
	}
	return c.isOpen(n.ID)
}

func (c *TreeController) isOpen(id model.NodeID) bool {
	if open, ok := c.open[c.tree.Path(id)]; ok {
		return open
	}
	return c.model.ExpandAll
}

func (c *TreeController) expanded(id model.NodeID) bool {
	if c.model.Mode == model.ModeID {
		return true
	}
	return c.isOpen(id)
}

// SetOpen expands or collapses a folder.
func (c *TreeController) SetOpen(v *model.Value, open bool) {
	n := c.node(v)
	if n == nil || n.Kind != model.KindFolder {
		return
	}
	c.open[c.tree.Path(n.ID)] = open
	c.setVisibleValues()
}

// ToggleOpen flips the expanded state of a folder.
func (c *TreeController) ToggleOpen(v *model.Value) {
	if n := c.node(v); n != nil {
		c.SetOpen(v, !c.isOpen(n.ID))
	}
}

// ExpandAll opens every folder.
func (c *TreeController) ExpandAll() { c.setAllOpen(true) }

// CollapseAll closes every folder.
func (c *TreeController) CollapseAll() { c.setAllOpen(false) }

func (c *TreeController) setAllOpen(open bool) {
	if c.tree == nil {
		return
	}
	for _, id := range c.currentValues() {
		if c.tree.Node(id).Kind == model.KindFolder {
			c.open[c.tree.Path(id)] = open
		}
	}
	c.setVisibleValues()
}

// OpenState returns a copy of the expanded/collapsed map keyed by path.
func (c *TreeController) OpenState() map[string]bool {
	out := make(map[string]bool, len(c.open))
	for k, v := range c.open {
		out[k] = v
	}
	return out
}

// RestoreOpenState merges a saved expanded/collapsed map. Unknown paths are
// kept; they may match a later model.
func (c *TreeController) RestoreOpenState(state map[string]bool) {
	for k, v := range state {
		c.open[k] = v
	}
	if c.bound() {
		c.setVisibleValues()
	}
}

// setVisibleValues walks the tree, descending into open folders (COLUMN) or
// every folder (ID). An excluded node stays visible while its parent is not
// excluded. If filtering leaves nothing, the unfiltered traversal is shown.
func (c *TreeController) setVisibleValues() {
	defer metrics.Timer(metrics.VisibleRecompute)()

	c.showOthers = false
	var all, kept []*model.Value
	c.collect(c.tree.Root(), &all, false)
	c.collect(c.tree.Root(), &kept, true)
	if len(kept) == 0 && len(all) > 0 {
		kept = all
	}
	c.visible = kept
}

func (c *TreeController) collect(id model.NodeID, out *[]*model.Value, filter bool) {
	for _, child := range c.tree.Children(id) {
		n := c.tree.Node(child)
		keep := c.keep(n)
		if filter && !keep {
			continue
		}
		*out = append(*out, &n.Value)
		switch n.Kind {
		case model.KindFolder:
			if c.expanded(child) {
				c.collect(child, out, filter)
			}
		case model.KindLeaf:
		}
	}
}

func (c *TreeController) keep(n *model.Node) bool {
	if c.filterSelectionValue(&n.Value, n.Level) {
		return true
	}
	parent := c.tree.Parent(n.ID)
	if parent == model.NoNode || c.tree.IsRoot(parent) {
		return false
	}
	return !c.tree.Node(parent).State.IsExcluded()
}

// outgoingPath is the wire identity of a node: the full value chain in
// COLUMN mode, the node's own value in ID mode.
func (c *TreeController) outgoingPath(id model.NodeID) []string {
	if c.model.Mode == model.ModeColumn {
		return c.tree.ValuePath(id)
	}
	return []string{c.tree.Node(id).Value.Value}
}

// SelectionStateUpdated records a new state for v, propagates it through the
// tree and submits or queues the change.
func (c *TreeController) SelectionStateUpdated(v *model.Value, state model.State, toggle, toggleAll bool) {
	n := c.node(v)
	if n == nil {
		return
	}
	m := c.model
	if m.Mode == model.ModeID && m.SelectChildren && m.SubmitOnChange {
		c.SetSubtree(v, state, toggle, toggleAll)
		return
	}

	n.State = state
	selected := state.IsSelected()
	path := []string{n.Value.Value}
	if m.Mode == model.ModeColumn {
		for _, a := range c.tree.Ancestors(n.ID) {
			an := c.tree.Node(a)
			if selected {
				an.State |= model.StateSelected
			}
			path = append([]string{an.Value.Value}, path...)
		}
	}

	switch n.Kind {
	case model.KindFolder:
		if !selected {
			for _, d := range c.tree.Descendants(n.ID) {
				c.tree.Node(d).State = state
			}
		}
	case model.KindLeaf:
	}

	wholeTree := m.SingleSelection || toggleAll
	perLevel := m.IsSingleSelectionLevel(n.Level) || toggle
	if wholeTree || perLevel {
		c.clearOthers(n, wholeTree)
	}
	if toggle {
		c.addToggleLevel(n.Level)
	}

	sel := model.SelectionState{Value: path, Selected: selected}
	c.submit(sel, wholeTree || perLevel, toggle, toggleAll)
}

// clearOthers zeroes every other visible node, and its subtree, that is not
// on n's ancestor chain. With wholeTree unset only n's level is affected.
func (c *TreeController) clearOthers(n *model.Node, wholeTree bool) {
	for _, ov := range c.visible {
		o := c.tree.Node(ov.ID)
		if o == nil || o.ID == n.ID {
			continue
		}
		if !wholeTree && o.Level != n.Level {
			continue
		}
		if c.sharesAncestry(o.ID, n.ID) {
			continue
		}
		o.State = 0
		for _, d := range c.tree.Descendants(o.ID) {
			if d != n.ID && !c.tree.IsAncestor(d, n.ID) {
				c.tree.Node(d).State = 0
			}
		}
	}
}

// sharesAncestry reports whether o lies on n's ancestor chain. COLUMN mode
// compares label paths; ID mode compares node identity.
func (c *TreeController) sharesAncestry(o, n model.NodeID) bool {
	if c.model.Mode == model.ModeColumn {
		return c.tree.HasPathPrefix(o, n)
	}
	return o == n || c.tree.IsAncestor(o, n)
}

func (c *TreeController) addToggleLevel(level int) {
	for _, l := range c.toggleLevels {
		if l == level {
			return
		}
	}
	c.toggleLevels = append(c.toggleLevels, level)
}

// ToggleLevels returns the depths with a pending toggle gesture.
func (c *TreeController) ToggleLevels() []int {
	return append([]int(nil), c.toggleLevels...)
}

func (c *TreeController) updateSelection(values []model.SelectionState, eventSource string, toggle, toggleAll bool) {
	levels := c.toggleLevels
	c.toggleLevels = nil
	c.sendApply(model.ApplyTypeApply, values, eventSource, toggle, toggleAll, levels)
}

// SetSubtree gives v and its whole subtree the same state. The change is one
// entry whose value lists the subtree in pre-order; with submit-on-change it
// goes straight to the subtree endpoint.
func (c *TreeController) SetSubtree(v *model.Value, state model.State, toggle, toggleAll bool) {
	n := c.node(v)
	if n == nil {
		return
	}
	ids := append([]model.NodeID{n.ID}, c.tree.Descendants(n.ID)...)
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		node := c.tree.Node(id)
		node.State = state
		values = append(values, node.Value.Value)
	}
	if toggle {
		c.addToggleLevel(n.Level)
	}

	sel := model.SelectionState{Value: values, Selected: state.IsSelected()}
	if c.model.SubmitOnChange {
		event := model.NewApplyEvent(model.ApplyTypeApply, []model.SelectionState{sel}, "")
		event.Toggle = toggle
		event.ToggleAll = toggleAll
		if len(c.toggleLevels) > 0 {
			event.ToggleLevels = c.ToggleLevels()
		}
		c.toggleLevels = nil
		c.sendGuarded(model.PathTreeSubtree+c.Name(), event)
	} else {
		c.unapplied = append(c.unapplied, sel)
	}
	c.toggle = toggle
	c.toggleAll = toggleAll
}

// SelectSubtree gives v and every descendant the same state, one change per
// node: sent one by one with submit-on-change, queued otherwise.
func (c *TreeController) SelectSubtree(v *model.Value, state model.State) {
	n := c.node(v)
	if n == nil {
		return
	}
	selected := state.IsSelected()
	if selected && c.model.Mode == model.ModeColumn {
		for _, a := range c.tree.Ancestors(n.ID) {
			c.tree.Node(a).State |= model.StateSelected
		}
	}
	ids := append([]model.NodeID{n.ID}, c.tree.Descendants(n.ID)...)
	for _, id := range ids {
		c.tree.Node(id).State = state
		sel := model.SelectionState{Value: c.outgoingPath(id), Selected: selected}
		if c.model.SubmitOnChange {
			c.updateSelection([]model.SelectionState{sel}, "", false, false)
		} else {
			c.unapplied = append(c.unapplied, sel)
		}
	}
}

// ClearSingleCellSubTree deselects the direct children of v and leaves v's
// own state alone. Used by single-selection trees when a parent is picked.
func (c *TreeController) ClearSingleCellSubTree(v *model.Value) {
	n := c.node(v)
	if n == nil {
		return
	}
	var changes []model.SelectionState
	for _, child := range c.tree.Children(n.ID) {
		cn := c.tree.Node(child)
		if !cn.State.IsSelected() {
			continue
		}
		cn.State = cn.State.NextClickState(false)
		changes = append(changes, model.SelectionState{Value: c.outgoingPath(child), Selected: false})
	}
	c.submitBatch(changes)
}

// FindNodeByPath resolves segments[i:] below node by exact value match.
// Any mismatch yields model.NoNode.
func (c *TreeController) FindNodeByPath(node model.NodeID, segments []string, i int) model.NodeID {
	if c.tree == nil || i < 0 || i >= len(segments) {
		return model.NoNode
	}
	for _, child := range c.tree.Children(node) {
		if c.tree.Node(child).Value.Value != segments[i] {
			continue
		}
		if i == len(segments)-1 {
			return child
		}
		return c.FindNodeByPath(child, segments, i+1)
	}
	return model.NoNode
}

// resolve finds the node an external update refers to. ID mode also accepts a
// bare value anywhere in the tree.
func (c *TreeController) resolve(path []string) model.NodeID {
	id := c.FindNodeByPath(c.tree.Root(), path, 0)
	if id != model.NoNode || c.model.Mode != model.ModeID || len(path) != 1 {
		return id
	}
	for _, cand := range c.currentValues() {
		if c.tree.Node(cand).Value.Value == path[0] {
			return cand
		}
	}
	return model.NoNode
}

// UpdateStatusByValues applies externally supplied selection states.
// Unresolved paths leave the tree untouched; if any path fails to resolve,
// the model is refetched once.
func (c *TreeController) UpdateStatusByValues(values []model.SelectionState) {
	if !c.bound() {
		return
	}
	unresolved := 0
	for _, sv := range values {
		id := c.resolve(sv.Value)
		if id == model.NoNode {
			unresolved++
			continue
		}
		n := c.tree.Node(id)
		c.SelectionStateUpdated(&n.Value, withSelected(n.State, sv.Selected), false, false)
	}
	if unresolved > 0 {
		debug.Log("selection: %s could not resolve %d paths", c.Name(), unresolved)
		c.deps.refresh(c.Name())
	}
}

// ClearSelections deselects every node and sends the change as one APPLY.
func (c *TreeController) ClearSelections() {
	if !c.bound() {
		return
	}
	var changes []model.SelectionState
	for _, id := range c.currentValues() {
		n := c.tree.Node(id)
		if !n.State.IsSelected() {
			continue
		}
		n.State = n.State.NextClickState(false)
		changes = append(changes, model.SelectionState{Value: c.outgoingPath(id), Selected: false})
	}
	c.unapplied = nil
	c.toggle = false
	c.toggleAll = false
	c.toggleLevels = nil
	c.setVisibleValues()
	c.sendApply(model.ApplyTypeApply, changes, "", false, false, nil)
}
