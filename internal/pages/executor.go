// Package pages implements the caller-facing page operations, composing
// the forward/reverse compilers with the backend and metadata
// collaborators. Each operation is a short linear pipeline; no state
// survives between calls.
package pages

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/compiler"
	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// Executor runs the page operations against one document.
type Executor struct {
	backend compiler.Backend
	meta    compiler.MetaResolver
	log     *log.Logger
}

// New builds an executor over the given collaborators.
func New(backend compiler.Backend, meta compiler.MetaResolver, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{backend: backend, meta: meta, log: logger}
}

// CreatePageResult summarizes a created page.
type CreatePageResult struct {
	ViewID         int   `json:"view_id"`
	SectionIDs     []int `json:"section_ids"`
	WidgetsCreated int   `json:"widgets_created"`
	LinksApplied   int   `json:"links_applied"`
}

// CreatePage compiles a declarative tree into a new view. Failures are
// terminal: widgets already created stay in place (the backend has no
// transactional page creation) and remain inspectable via GetLayout.
func (e *Executor) CreatePage(ctx context.Context, name string, root *layout.Node, links []layout.LinkSpec) (*CreatePageResult, error) {
	if name == "" {
		return nil, fmt.Errorf("page name is required")
	}
	// Check link field shapes before touching the backend; widgets created
	// ahead of a malformed link would be left behind.
	for _, l := range append(layout.CollectLinks(root), links...) {
		if err := l.Validate(); err != nil {
			return nil, err
		}
	}
	res, err := compiler.FromLayoutSpec(ctx, e.backend, e.meta, 0, name, root, links)
	if err != nil {
		return nil, err
	}
	e.log.Info("created page", "view", res.ViewID, "widgets", res.WidgetsCreated, "links", res.LinksApplied)
	return &CreatePageResult{
		ViewID:         res.ViewID,
		SectionIDs:     res.SectionIDs,
		WidgetsCreated: res.WidgetsCreated,
		LinksApplied:   res.LinksApplied,
	}, nil
}

// GetLayout reads a view's box-layout back into a declarative tree of
// existing panes. Sections that belong to the view but are missing from
// the stored layout are appended as extra rows, in ascending id order, so
// the returned tree always accounts for every widget.
func (e *Executor) GetLayout(ctx context.Context, viewID int) (*layout.Node, error) {
	box, err := e.backend.GetBoxLayout(ctx, viewID)
	if err != nil {
		return nil, fmt.Errorf("reading layout of view %d: %w", viewID, err)
	}
	sections, err := e.backend.ListSections(ctx, viewID)
	if err != nil {
		return nil, fmt.Errorf("listing sections of view %d: %w", viewID, err)
	}

	tree := compiler.ToLayoutSpec(box)

	placed := make(map[int]bool)
	for _, id := range layout.BoxSectionIDs(box) {
		placed[id] = true
	}
	var unplaced []int
	for _, s := range sections {
		if !placed[s.SectionID] {
			unplaced = append(unplaced, s.SectionID)
		}
	}
	sort.Ints(unplaced)
	for _, id := range unplaced {
		leaf := &layout.Node{Kind: layout.KindLeaf, Pane: &layout.Pane{SectionID: id}}
		switch {
		case tree == nil:
			tree = leaf
		case tree.Kind == layout.KindRows:
			tree.Children = append(tree.Children, leaf)
		default:
			tree = &layout.Node{Kind: layout.KindRows, Children: []*layout.Node{tree, leaf}}
		}
	}
	if tree == nil {
		return nil, fmt.Errorf("view %d has no widgets", viewID)
	}
	return tree, nil
}

// SetLayoutResult summarizes a layout mutation.
type SetLayoutResult struct {
	WidgetsRemoved int `json:"widgets_removed"`
}

// SetLayout rearranges and removes existing widgets. The desired tree may
// only reference sections already in the view: SetLayout never creates
// widgets. Sections named in remove are deleted; ids not present in the
// view are skipped, so repeating a removal is a no-op rather than an
// error.
func (e *Executor) SetLayout(ctx context.Context, viewID int, root *layout.Node, remove []int) (*SetLayoutResult, error) {
	if layout.CountWidgets(root) == 0 {
		return nil, fmt.Errorf("layout has no widgets; a page needs at least one")
	}
	for _, p := range layout.Leaves(root) {
		if p.IsNew() {
			return nil, fmt.Errorf("pane on table %q describes a new widget; set_layout only rearranges or removes existing sections", p.Table)
		}
	}

	sections, err := e.backend.ListSections(ctx, viewID)
	if err != nil {
		return nil, fmt.Errorf("listing sections of view %d: %w", viewID, err)
	}
	current := make(map[int]bool, len(sections))
	for _, s := range sections {
		current[s.SectionID] = true
	}

	desired := layout.SectionIDs(root)
	desiredSet := make(map[int]bool, len(desired))
	for _, id := range desired {
		if !current[id] {
			return nil, &compiler.UnknownSectionError{SectionID: id, ViewID: viewID}
		}
		if desiredSet[id] {
			return nil, fmt.Errorf("section %d appears twice in the desired layout", id)
		}
		desiredSet[id] = true
	}

	var toRemove []int
	for _, id := range remove {
		if desiredSet[id] {
			return nil, fmt.Errorf("section %d is both placed in the layout and listed for removal", id)
		}
		if current[id] {
			toRemove = append(toRemove, id)
		}
	}

	if len(toRemove) > 0 {
		if err := e.backend.RemoveSections(ctx, toRemove); err != nil {
			return nil, fmt.Errorf("removing sections %v: %w", toRemove, err)
		}
	}

	box, err := compiler.BoxFromNode(root)
	if err != nil {
		return nil, err
	}
	if err := e.backend.SetBoxLayout(ctx, viewID, box); err != nil {
		return nil, fmt.Errorf("setting layout of view %d: %w", viewID, err)
	}

	e.log.Info("updated layout", "view", viewID, "placed", len(desired), "removed", len(toRemove))
	return &SetLayoutResult{WidgetsRemoved: len(toRemove)}, nil
}

// LinkResult summarizes applied links.
type LinkResult struct {
	LinksApplied int `json:"links_applied"`
}

// LinkWidgets applies link descriptors between sections that already exist
// in the view. Endpoints are section ids in decimal form. All links are
// validated and resolved before the first one is applied.
func (e *Executor) LinkWidgets(ctx context.Context, viewID int, specs []layout.LinkSpec) (*LinkResult, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no links given")
	}
	sections, err := e.backend.ListSections(ctx, viewID)
	if err != nil {
		return nil, fmt.Errorf("listing sections of view %d: %w", viewID, err)
	}
	byID := make(map[string]compiler.WidgetInfo, len(sections))
	for _, s := range sections {
		byID[strconv.Itoa(s.SectionID)] = s
	}

	type resolved struct {
		spec   layout.LinkSpec
		target compiler.WidgetInfo
		fields compiler.LinkFields
	}
	out := make([]resolved, 0, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		src, ok := byID[spec.Source]
		if !ok {
			return nil, sectionRefError(spec.Source, viewID)
		}
		tgt, ok := byID[spec.Target]
		if !ok {
			return nil, sectionRefError(spec.Target, viewID)
		}
		fields, err := compiler.ResolveLink(ctx, e.meta, spec.Link, src, tgt)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved{spec: spec, target: tgt, fields: fields})
	}

	for _, r := range out {
		if err := e.backend.ApplyLink(ctx, r.target.SectionID, r.fields); err != nil {
			return nil, fmt.Errorf("applying %s link to section %d: %w", r.spec.Link.Kind, r.target.SectionID, err)
		}
	}
	e.log.Info("applied links", "view", viewID, "links", len(out))
	return &LinkResult{LinksApplied: len(out)}, nil
}

func sectionRefError(ref string, viewID int) error {
	if id, err := strconv.Atoi(ref); err == nil {
		return &compiler.UnknownSectionError{SectionID: id, ViewID: viewID}
	}
	return &compiler.DanglingRefError{LocalID: ref}
}
