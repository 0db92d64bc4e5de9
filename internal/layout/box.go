package layout

// Box is one node of the backend's native box-layout ("layoutSpec" on a
// view). Leaves carry a section ref; internal nodes carry children whose
// orientation alternates by depth, vertical at the root. Size is the
// relative flex weight; zero means default.
type Box struct {
	Leaf     int     `json:"leaf,omitempty"`
	Children []*Box  `json:"children,omitempty"`
	Size     float64 `json:"size,omitempty"`
}

// IsLeaf reports whether b references a section.
func (b *Box) IsLeaf() bool { return b.Leaf != 0 }

// BoxSectionIDs returns every section ref in the box tree in depth-first
// order.
func BoxSectionIDs(b *Box) []int {
	if b == nil {
		return nil
	}
	if b.IsLeaf() {
		return []int{b.Leaf}
	}
	var ids []int
	for _, c := range b.Children {
		ids = append(ids, BoxSectionIDs(c)...)
	}
	return ids
}
