package layout

import (
	"encoding/json"
	"fmt"
)

// ParseError reports a malformed layout tree. Path locates the offending
// node in the caller's JSON, e.g. "cols[1].rows[0]".
type ParseError struct {
	Path string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "layout: " + e.Msg
	}
	return fmt.Sprintf("layout: %s: %s", e.Path, e.Msg)
}

func parseErrf(path, format string, args ...any) error {
	return &ParseError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// nodeJSON is the wire shape of a layout node. A node is a rows split, a
// cols split, or a leaf pane; leaf fields sit directly on the node.
type nodeJSON struct {
	Rows []json.RawMessage `json:"rows,omitempty"`
	Cols []json.RawMessage `json:"cols,omitempty"`

	Section *int           `json:"section,omitempty"`
	Table   string         `json:"table,omitempty"`
	Widget  string         `json:"widget,omitempty"`
	ID      string         `json:"id,omitempty"`
	Title   string         `json:"title,omitempty"`
	Columns []string       `json:"columns,omitempty"`
	Chart   *ChartConfig   `json:"chart,omitempty"`
	Options map[string]any `json:"options,omitempty"`

	Weight float64    `json:"weight,omitempty"`
	Links  []LinkSpec `json:"links,omitempty"`
}

// Parse decodes and validates a declarative layout tree. The returned tree
// is normalized: a split with a single child is replaced by that child, so
// structurally equal pages always parse to structurally equal trees.
func Parse(data []byte) (*Node, error) {
	if len(data) == 0 {
		return nil, parseErrf("", "empty layout")
	}
	root, err := parseNode(data, "")
	if err != nil {
		return nil, err
	}
	if CountWidgets(root) == 0 {
		return nil, parseErrf("", "a page needs at least one widget")
	}
	if err := checkLocalIDs(root); err != nil {
		return nil, err
	}
	return root, nil
}

func parseNode(data []byte, path string) (*Node, error) {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, parseErrf(path, "invalid node: %v", err)
	}

	isRows := raw.Rows != nil
	isCols := raw.Cols != nil
	isLeaf := raw.Section != nil || raw.Table != "" || raw.Widget != ""

	switch {
	case isRows && isCols:
		return nil, parseErrf(path, "node has both rows and cols")
	case (isRows || isCols) && isLeaf:
		return nil, parseErrf(path, "split node also carries pane fields")
	case !isRows && !isCols && !isLeaf:
		return nil, parseErrf(path, "node is neither a split nor a pane")
	}

	if isRows || isCols {
		kind, key, raws := KindRows, "rows", raw.Rows
		if isCols {
			kind, key, raws = KindCols, "cols", raw.Cols
		}
		if len(raws) == 0 {
			return nil, parseErrf(path, "%s split has no children", key)
		}
		n := &Node{Kind: kind, Weight: raw.Weight, Links: raw.Links}
		for i, childRaw := range raws {
			child, err := parseNode(childRaw, fmt.Sprintf("%s%s[%d]", dotted(path), key, i))
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
		if err := validateLinks(n.Links, path); err != nil {
			return nil, err
		}
		// A split with one child is the child.
		if len(n.Children) == 1 {
			child := n.Children[0]
			if n.Weight != 0 {
				child.Weight = n.Weight
			}
			child.Links = append(child.Links, n.Links...)
			return child, nil
		}
		return n, nil
	}

	pane, err := parsePane(&raw, path)
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: KindLeaf, Pane: pane, Weight: raw.Weight, Links: raw.Links}
	if err := validateLinks(n.Links, path); err != nil {
		return nil, err
	}
	return n, nil
}

func parsePane(raw *nodeJSON, path string) (*Pane, error) {
	if raw.Section != nil {
		if raw.Table != "" || raw.Widget != "" {
			return nil, parseErrf(path, "pane has both a section id and a widget description")
		}
		if *raw.Section <= 0 {
			return nil, parseErrf(path, "section id must be positive, got %d", *raw.Section)
		}
		if raw.Chart != nil || len(raw.Columns) > 0 || len(raw.Options) > 0 {
			return nil, parseErrf(path, "existing section %d cannot carry creation fields", *raw.Section)
		}
		return &Pane{LocalID: raw.ID, SectionID: *raw.Section}, nil
	}

	if raw.Table == "" {
		return nil, parseErrf(path, "pane is missing a table")
	}
	widget := WidgetKind(raw.Widget)
	if widget == "" {
		widget = WidgetGrid
	}
	if !ValidWidgetKind(widget) {
		return nil, parseErrf(path, "unknown widget kind %q", raw.Widget)
	}
	if raw.Chart != nil && widget != WidgetChart {
		return nil, parseErrf(path, "chart configuration on a %s widget", widget)
	}
	if widget == WidgetChart && raw.Chart != nil && raw.Chart.XAxis == "" {
		return nil, parseErrf(path, "chart configuration is missing x_axis")
	}
	return &Pane{
		LocalID: raw.ID,
		Table:   raw.Table,
		Widget:  widget,
		Title:   raw.Title,
		Columns: raw.Columns,
		Chart:   raw.Chart,
		Options: raw.Options,
	}, nil
}

func validateLinks(links []LinkSpec, path string) error {
	for i, l := range links {
		if err := l.Validate(); err != nil {
			return parseErrf(fmt.Sprintf("%slinks[%d]", dotted(path), i), "%v", err)
		}
	}
	return nil
}

// checkLocalIDs rejects duplicate caller-assigned pane ids; links would be
// ambiguous otherwise.
func checkLocalIDs(root *Node) error {
	seen := make(map[string]bool)
	for _, p := range Leaves(root) {
		if p.LocalID == "" {
			continue
		}
		if seen[p.LocalID] {
			return parseErrf("", "duplicate pane id %q", p.LocalID)
		}
		seen[p.LocalID] = true
	}
	return nil
}

func dotted(path string) string {
	if path == "" {
		return ""
	}
	return path + "."
}

// MarshalJSON renders the tree back into the caller-facing wire shape.
func (n *Node) MarshalJSON() ([]byte, error) {
	raw := nodeJSON{Weight: n.Weight, Links: n.Links}
	switch n.Kind {
	case KindRows, KindCols:
		raws := make([]json.RawMessage, 0, len(n.Children))
		for _, c := range n.Children {
			b, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			raws = append(raws, b)
		}
		if n.Kind == KindRows {
			raw.Rows = raws
		} else {
			raw.Cols = raws
		}
	case KindLeaf:
		p := n.Pane
		raw.ID = p.LocalID
		if p.IsExisting() {
			sec := p.SectionID
			raw.Section = &sec
		} else {
			raw.Table = p.Table
			raw.Widget = string(p.Widget)
			raw.Title = p.Title
			raw.Columns = p.Columns
			raw.Chart = p.Chart
			raw.Options = p.Options
		}
	default:
		return nil, fmt.Errorf("layout: cannot marshal node of kind %q", n.Kind)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes one node with full validation, so a *Node field in
// an API argument struct gets the same checks as Parse.
func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := parseNode(data, "")
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}
