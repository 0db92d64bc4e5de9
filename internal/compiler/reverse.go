package compiler

import (
	"fmt"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// ToLayoutSpec reconstructs a declarative tree from the backend's box
// layout. Every leaf becomes an existing pane: the flat model keeps no
// record of how a widget was originally declared, so only geometry and
// identity survive a round trip, never authoring metadata.
func ToLayoutSpec(box *layout.Box) *layout.Node {
	if box == nil {
		return nil
	}
	return nodeFromBox(box, true)
}

// BoxFromNode converts a tree of existing panes into the backend's box
// layout. It fails on a new pane, which has no section id to place.
func BoxFromNode(n *layout.Node) (*layout.Box, error) {
	return buildBox(n, true, func(p *layout.Pane) (int, error) {
		if p.IsNew() {
			return 0, fmt.Errorf("pane on table %q has no section id; only existing sections can be placed", p.Table)
		}
		return p.SectionID, nil
	})
}

// buildBox maps a layout node into a box. Box orientation alternates by
// depth starting vertical, so a split whose orientation does not match its
// depth gets one wrapper level; nodeFromBox undoes the wrapper.
func buildBox(n *layout.Node, vertical bool, idOf func(*layout.Pane) (int, error)) (*layout.Box, error) {
	if n.IsLeaf() {
		id, err := idOf(n.Pane)
		if err != nil {
			return nil, err
		}
		return &layout.Box{Leaf: id, Size: n.Weight}, nil
	}

	matches := (n.Kind == layout.KindRows) == vertical
	inner := &layout.Box{}
	childVertical := !vertical
	if !matches {
		childVertical = vertical
	}
	for _, c := range n.Children {
		cb, err := buildBox(c, childVertical, idOf)
		if err != nil {
			return nil, err
		}
		inner.Children = append(inner.Children, cb)
	}
	if matches {
		inner.Size = n.Weight
		return inner, nil
	}
	return &layout.Box{Children: []*layout.Box{inner}, Size: n.Weight}, nil
}

func nodeFromBox(b *layout.Box, vertical bool) *layout.Node {
	if b.IsLeaf() {
		return &layout.Node{
			Kind:   layout.KindLeaf,
			Pane:   &layout.Pane{SectionID: b.Leaf},
			Weight: b.Size,
		}
	}
	// A single internal child is the wrapper buildBox inserts for an
	// orientation mismatch.
	if len(b.Children) == 1 && !b.Children[0].IsLeaf() {
		n := nodeFromBox(b.Children[0], !vertical)
		n.Weight = b.Size
		return n
	}
	kind := layout.KindRows
	if !vertical {
		kind = layout.KindCols
	}
	n := &layout.Node{Kind: kind, Weight: b.Size}
	for _, c := range b.Children {
		n.Children = append(n.Children, nodeFromBox(c, !vertical))
	}
	return n
}
