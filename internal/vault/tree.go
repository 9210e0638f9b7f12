// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vault

import (
	"sort"

	"github.com/yavuztopsever/obsidian-llm-suite/internal/plan"
	"github.com/yavuztopsever/obsidian-llm-suite/pkg/types"
)

// Tree is a validated plan indexed for materialization: notes by ID,
// children grouped under their parents, and a single selected root.
type Tree struct {
	// Root is the effective root. When the plan proposed several roots,
	// this is the first in plan order; the rest are in DroppedRoots and
	// produce no files.
	Root types.TopicNote

	// DroppedRoots holds any additional root notes beyond the first.
	DroppedRoots []types.TopicNote

	// NoteCount is the total number of notes in the originating plan,
	// dropped roots and their subtrees included.
	NoteCount int

	children map[string][]types.TopicNote
}

// Children returns a note's children sorted by title. Title order is the
// only ordering guarantee the output tree makes.
func (t *Tree) Children(id string) []types.TopicNote {
	return t.children[id]
}

// BuildTree indexes a validated plan into a Tree. Validation guarantees at
// least one root and resolvable parents, so BuildTree cannot fail.
func BuildTree(p *plan.Plan) *Tree {
	t := &Tree{
		NoteCount: len(p.Notes),
		children:  make(map[string][]types.TopicNote),
	}

	sawRoot := false
	for _, n := range p.Notes {
		if n.IsRoot() {
			if !sawRoot {
				t.Root = n
				sawRoot = true
			} else {
				t.DroppedRoots = append(t.DroppedRoots, n)
			}
			continue
		}
		t.children[*n.ParentID] = append(t.children[*n.ParentID], n)
	}

	for id := range t.children {
		kids := t.children[id]
		sort.Slice(kids, func(i, j int) bool { return kids[i].Title < kids[j].Title })
	}

	return t
}
