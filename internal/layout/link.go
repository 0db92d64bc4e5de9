package layout

import "fmt"

// LinkKind discriminates the seven semantic link kinds. Every kind
// ultimately serializes to the same backend triple (source section ref,
// source column ref, target column ref); the kinds differ only in which
// columns are required and how they are validated.
type LinkKind string

const (
	// LinkFilteredBy filters the target widget's rows to those whose
	// reference column points at the row selected in the source widget.
	LinkFilteredBy LinkKind = "filtered_by"
	// LinkReferences makes the target widget's cursor follow the reference
	// column on the source widget.
	LinkReferences LinkKind = "references"
	// LinkSyncedWith keeps two widgets over the same table on the same row.
	LinkSyncedWith LinkKind = "synced_with"
	// LinkSelectedBy shows in the target the record selected in the source.
	LinkSelectedBy LinkKind = "selected_by"
	// LinkGroupedBy pairs a same-named column on both widgets.
	LinkGroupedBy LinkKind = "grouped_by"
	// LinkSummaryOf links a summary-table widget back to its source table.
	LinkSummaryOf LinkKind = "summary_of"
	// LinkCustom passes caller-chosen columns through with existence checks
	// only.
	LinkCustom LinkKind = "custom"
)

// ValidLinkKind reports whether k names a known link kind.
func ValidLinkKind(k LinkKind) bool {
	_, ok := linkFieldRules[k]
	return ok
}

// Link is the semantic description of one widget-to-widget wiring. Column
// fields hold caller-facing column names; resolution to backend column refs
// happens in the compiler.
type Link struct {
	Kind LinkKind `json:"type"`

	// Column names the single column a kind needs: the target-side
	// reference column for filtered_by, the source-side reference column
	// for references, the shared column for grouped_by and summary_of.
	Column string `json:"column,omitempty"`

	// SourceColumn and TargetColumn are used by the custom kind only.
	SourceColumn string `json:"source_column,omitempty"`
	TargetColumn string `json:"target_column,omitempty"`
}

// LinkSpec binds a Link to the two panes it connects, named by local id.
// An existing pane may also be named by its section id in decimal form.
type LinkSpec struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Link   Link   `json:"link"`
}

// linkFieldRules captures the parse-time field requirements per kind.
// Semantic checks that need table metadata live in the compiler.
type fieldRule struct {
	needsColumn  bool // Column required
	allowsColumn bool
	allowsCustom bool // SourceColumn/TargetColumn allowed
	needsCustom  bool // at least one of SourceColumn/TargetColumn required
}

var linkFieldRules = map[LinkKind]fieldRule{
	LinkFilteredBy: {needsColumn: true, allowsColumn: true},
	LinkReferences: {needsColumn: true, allowsColumn: true},
	LinkSyncedWith: {},
	LinkSelectedBy: {},
	LinkGroupedBy:  {needsColumn: true, allowsColumn: true},
	LinkSummaryOf:  {allowsColumn: true},
	LinkCustom:     {allowsCustom: true, needsCustom: true},
}

// Validate checks the field shape of one link spec without consulting table
// metadata. It is the parse-time half of link validation.
func (s LinkSpec) Validate() error {
	if s.Source == "" {
		return fmt.Errorf("link %q: missing source widget", s.Link.Kind)
	}
	if s.Target == "" {
		return fmt.Errorf("link %q: missing target widget", s.Link.Kind)
	}
	rule, ok := linkFieldRules[s.Link.Kind]
	if !ok {
		return fmt.Errorf("unknown link type %q", s.Link.Kind)
	}
	if rule.needsColumn && s.Link.Column == "" {
		return fmt.Errorf("link %q from %q to %q: missing required column", s.Link.Kind, s.Source, s.Target)
	}
	if !rule.allowsColumn && s.Link.Column != "" {
		return fmt.Errorf("link %q from %q to %q: column not allowed for this kind", s.Link.Kind, s.Source, s.Target)
	}
	if !rule.allowsCustom && (s.Link.SourceColumn != "" || s.Link.TargetColumn != "") {
		return fmt.Errorf("link %q from %q to %q: source_column/target_column are only valid for custom links", s.Link.Kind, s.Source, s.Target)
	}
	if rule.needsCustom && s.Link.SourceColumn == "" && s.Link.TargetColumn == "" {
		return fmt.Errorf("link %q from %q to %q: custom link needs source_column or target_column", s.Link.Kind, s.Source, s.Target)
	}
	return nil
}
