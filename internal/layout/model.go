// Package layout defines the declarative page model: a tree of row and
// column splits whose leaves are panes (widgets), plus the link descriptors
// that wire two widgets together. The package is pure data and validation;
// compiling a tree into Grist's native view/section representation lives in
// internal/compiler.
package layout

// NodeKind discriminates the three node variants.
type NodeKind string

const (
	KindRows NodeKind = "rows" // vertical stack of children
	KindCols NodeKind = "cols" // horizontal row of children
	KindLeaf NodeKind = "leaf" // exactly one pane
)

// Node is one node of the declarative layout tree. Exactly one of the
// variants is populated: Children for a rows/cols split, Pane for a leaf.
type Node struct {
	Kind     NodeKind
	Children []*Node
	Pane     *Pane

	// Weight is the relative size of this node within its parent split.
	// Zero means the default weight (equal share with its siblings).
	Weight float64

	// Links are link descriptors attached at this level of the tree. A link
	// may name any pane in the whole tree by local id, not just descendants;
	// attachment level is a readability affordance for callers.
	Links []LinkSpec
}

// CollectLinks returns every link attached anywhere in the tree, in
// depth-first document order.
func CollectLinks(n *Node) []LinkSpec {
	if n == nil {
		return nil
	}
	links := append([]LinkSpec(nil), n.Links...)
	for _, c := range n.Children {
		links = append(links, CollectLinks(c)...)
	}
	return links
}

// IsLeaf reports whether n holds a pane.
func (n *Node) IsLeaf() bool { return n.Kind == KindLeaf }

// IsSplit reports whether n is a rows or cols split.
func (n *Node) IsSplit() bool { return n.Kind == KindRows || n.Kind == KindCols }

// WidgetKind is the caller-facing widget type of a pane.
type WidgetKind string

const (
	WidgetGrid     WidgetKind = "grid"
	WidgetCard     WidgetKind = "card"
	WidgetCardList WidgetKind = "card_list"
	WidgetChart    WidgetKind = "chart"
	WidgetCustom   WidgetKind = "custom"
	WidgetForm     WidgetKind = "form"
)

// ValidWidgetKind reports whether k names a known widget kind.
func ValidWidgetKind(k WidgetKind) bool {
	switch k {
	case WidgetGrid, WidgetCard, WidgetCardList, WidgetChart, WidgetCustom, WidgetForm:
		return true
	}
	return false
}

// Pane describes one widget leaf. A pane is either "existing" (SectionID
// references a section already present in the view being edited) or "new"
// (Table and Widget describe a widget to create). The two forms are mutually
// exclusive; Parse enforces this.
type Pane struct {
	// LocalID is a caller-assigned identifier used by links to reference
	// this pane before it has a backend section id. Optional; the forward
	// compiler generates one when absent.
	LocalID string

	// Existing pane.
	SectionID int

	// New pane.
	Table   string
	Widget  WidgetKind
	Title   string
	Columns []string // visible columns in display order; empty means all
	Chart   *ChartConfig
	Options map[string]any
}

// IsExisting reports whether the pane references an already-created section.
func (p *Pane) IsExisting() bool { return p.SectionID != 0 }

// IsNew reports whether the pane describes a widget to create.
func (p *Pane) IsNew() bool { return p.SectionID == 0 }

// ChartConfig carries the axis and series bindings for a chart pane. The
// x-axis column comes first in the section's visible columns, followed by
// the series columns, which is how the backend encodes chart bindings.
type ChartConfig struct {
	Type   string   `json:"type"`
	XAxis  string   `json:"x_axis"`
	Series []string `json:"series,omitempty"`
}

// CountWidgets returns the number of leaves in the tree.
func CountWidgets(n *Node) int {
	if n == nil {
		return 0
	}
	if n.IsLeaf() {
		return 1
	}
	total := 0
	for _, c := range n.Children {
		total += CountWidgets(c)
	}
	return total
}

// SectionIDs returns the backend section ids of every existing pane in the
// tree, in depth-first document order. New panes contribute nothing (they
// have no id until created).
func SectionIDs(n *Node) []int {
	var ids []int
	walkLeaves(n, func(p *Pane) {
		if p.IsExisting() {
			ids = append(ids, p.SectionID)
		}
	})
	return ids
}

// Leaves returns every pane in depth-first document order.
func Leaves(n *Node) []*Pane {
	var panes []*Pane
	walkLeaves(n, func(p *Pane) { panes = append(panes, p) })
	return panes
}

func walkLeaves(n *Node, fn func(*Pane)) {
	if n == nil {
		return
	}
	if n.IsLeaf() {
		fn(n.Pane)
		return
	}
	for _, c := range n.Children {
		walkLeaves(c, fn)
	}
}
