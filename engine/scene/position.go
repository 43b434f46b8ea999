package scene

import (
	"fmt"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
)

// PositionID addresses a node of a PositionGraph.
type PositionID int

// NoParent marks a root position.
const NoParent PositionID = -1

type positionNode struct {
	local     math.Mat4
	transform math.Mat4
	reference math.Mat4
	parent    PositionID
	heading   *Heading

	transformChanged bool
	headingChanged   bool

	// generation counts resolutions of this node. A child compares the
	// parent generation it resolved against to detect a parent that was
	// updated through a sibling.
	generation       uint64
	parentGeneration uint64
}

// PositionGraph is an arena of parent-relative transforms. Nodes refer to
// their parent by index and the graph never contains a cycle.
type PositionGraph struct {
	nodes []positionNode
	ids   *core.IDPool
}

func NewPositionGraph() *PositionGraph {
	return &PositionGraph{
		nodes: make([]positionNode, 0, 64),
		ids:   core.NewIDPool(64),
	}
}

// Add creates a position with the given local transform under parent.
func (g *PositionGraph) Add(local math.Mat4, parent PositionID) (PositionID, error) {
	if parent != NoParent && !g.Contains(parent) {
		return NoParent, fmt.Errorf("add position: parent %d: %w", parent, core.ErrPositionNotFound)
	}
	id := g.ids.Acquire()
	node := positionNode{
		local:            local,
		transform:        local,
		reference:        math.NewMat4Identity(),
		parent:           parent,
		transformChanged: true,
	}
	if id == len(g.nodes) {
		g.nodes = append(g.nodes, node)
	} else {
		g.nodes[id] = node
	}
	return PositionID(id), nil
}

// Remove deletes a position. Its children become roots.
func (g *PositionGraph) Remove(id PositionID) error {
	if !g.Contains(id) {
		return fmt.Errorf("remove position %d: %w", id, core.ErrPositionNotFound)
	}
	for i := range g.nodes {
		if g.ids.InUse(i) && g.nodes[i].parent == id {
			g.nodes[i].parent = NoParent
			g.nodes[i].transformChanged = true
		}
	}
	g.nodes[id] = positionNode{}
	return g.ids.Release(int(id))
}

func (g *PositionGraph) Contains(id PositionID) bool {
	return g.ids.InUse(int(id))
}

func (g *PositionGraph) Parent(id PositionID) PositionID {
	if !g.Contains(id) {
		return NoParent
	}
	return g.nodes[id].parent
}

// SetParent moves a position under a new parent. Assignments that would
// make a position its own ancestor are rejected with ErrPositionCycle.
func (g *PositionGraph) SetParent(id, parent PositionID) error {
	if !g.Contains(id) {
		return fmt.Errorf("set parent of %d: %w", id, core.ErrPositionNotFound)
	}
	if parent != NoParent {
		if !g.Contains(parent) {
			return fmt.Errorf("set parent of %d to %d: %w", id, parent, core.ErrPositionNotFound)
		}
		for p := parent; p != NoParent; p = g.nodes[p].parent {
			if p == id {
				return fmt.Errorf("set parent of %d to %d: %w", id, parent, core.ErrPositionCycle)
			}
		}
	}
	g.nodes[id].parent = parent
	g.nodes[id].transformChanged = true
	return nil
}

func (g *PositionGraph) LocalTransform(id PositionID) (math.Mat4, error) {
	if !g.Contains(id) {
		return math.Mat4{}, fmt.Errorf("local transform of %d: %w", id, core.ErrPositionNotFound)
	}
	return g.nodes[id].local, nil
}

func (g *PositionGraph) SetTransform(id PositionID, local math.Mat4) error {
	if !g.Contains(id) {
		return fmt.Errorf("set transform of %d: %w", id, core.ErrPositionNotFound)
	}
	g.nodes[id].local = local
	g.nodes[id].transformChanged = true
	return nil
}

// SetHeading attaches a copy of h. A nil heading removes it.
func (g *PositionGraph) SetHeading(id PositionID, h *Heading) error {
	if !g.Contains(id) {
		return fmt.Errorf("set heading of %d: %w", id, core.ErrPositionNotFound)
	}
	if h != nil {
		cp := *h
		h = &cp
	}
	g.nodes[id].heading = h
	g.nodes[id].headingChanged = true
	return nil
}

// Heading returns the current heading of the position, if any.
func (g *PositionGraph) Heading(id PositionID) (Heading, bool) {
	if !g.Contains(id) || g.nodes[id].heading == nil {
		return Heading{}, false
	}
	return *g.nodes[id].heading, true
}

// TransformHasChanged reports whether the position must be resolved again
// before it is read: a local flag is set, or an ancestor changed since the
// last resolution.
func (g *PositionGraph) TransformHasChanged(id PositionID) bool {
	if !g.Contains(id) {
		return false
	}
	n := &g.nodes[id]
	if n.transformChanged || n.headingChanged {
		return true
	}
	if n.parent == NoParent {
		return false
	}
	return g.TransformHasChanged(n.parent) || g.nodes[n.parent].generation != n.parentGeneration
}

// UpdateTransforms resolves the reference and heading-applied transforms of
// a stale position, resolving stale ancestors first.
func (g *PositionGraph) UpdateTransforms(id PositionID) error {
	if !g.Contains(id) {
		return fmt.Errorf("update transforms of %d: %w", id, core.ErrPositionNotFound)
	}
	if !g.TransformHasChanged(id) {
		return nil
	}

	parent := g.nodes[id].parent
	reference := math.NewMat4Identity()
	var parentGeneration uint64
	if parent != NoParent {
		if err := g.UpdateTransforms(parent); err != nil {
			return err
		}
		p := &g.nodes[parent]
		reference = p.reference.Mul(p.transform)
		parentGeneration = p.generation
	}

	n := &g.nodes[id]
	n.reference = reference
	n.parentGeneration = parentGeneration
	n.transform = n.local
	if n.heading != nil {
		if n.heading.Updater != nil {
			n.heading.Rotation = n.heading.Updater.OffsetRotation(reference.Mul(n.local))
		}
		n.transform = ApplyHeading(n.local, *n.heading)
	}
	n.transformChanged = false
	n.headingChanged = false
	n.generation++
	return nil
}

// UpdateAll resolves every stale position in the graph.
func (g *PositionGraph) UpdateAll() {
	for i := range g.nodes {
		if g.ids.InUse(i) {
			// Only fails for released ids, which are skipped above.
			_ = g.UpdateTransforms(PositionID(i))
		}
	}
}

// ReferenceTransform is the resolved world transform of the parent chain.
func (g *PositionGraph) ReferenceTransform(id PositionID) (math.Mat4, error) {
	if err := g.UpdateTransforms(id); err != nil {
		return math.Mat4{}, err
	}
	return g.nodes[id].reference, nil
}

// WorldTransform is the world transform of the position with its heading
// applied.
func (g *PositionGraph) WorldTransform(id PositionID) (math.Mat4, error) {
	if err := g.UpdateTransforms(id); err != nil {
		return math.Mat4{}, err
	}
	n := &g.nodes[id]
	return n.reference.Mul(n.transform), nil
}

// BaseWorldTransform is the world transform of the position without its
// own heading. Ancestors keep theirs.
func (g *PositionGraph) BaseWorldTransform(id PositionID) (math.Mat4, error) {
	if err := g.UpdateTransforms(id); err != nil {
		return math.Mat4{}, err
	}
	n := &g.nodes[id]
	return n.reference.Mul(n.local), nil
}

// Len is the number of live positions.
func (g *PositionGraph) Len() int {
	count := 0
	for i := range g.nodes {
		if g.ids.InUse(i) {
			count++
		}
	}
	return count
}
