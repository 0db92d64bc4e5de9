package compiler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// ForwardResult summarizes one FromLayoutSpec pass for caller-side
// verification.
type ForwardResult struct {
	ViewID         int   `json:"view_id"`
	SectionIDs     []int `json:"section_ids"`
	WidgetsCreated int   `json:"widgets_created"`
	LinksApplied   int   `json:"links_applied"`
}

// FromLayoutSpec compiles a declarative tree into backend state: it creates
// every new pane depth-first, writes the box-layout referencing the created
// section ids, then resolves and applies the links attached to the tree
// plus extraLinks.
//
// A viewID of zero creates a new view named viewName from the first widget;
// nothing is rolled back on failure, matching the backend's lack of a
// transaction boundary. A partially built page stays inspectable through
// the reverse compiler.
func FromLayoutSpec(ctx context.Context, backend Backend, meta MetaResolver, viewID int, viewName string, root *layout.Node, extraLinks []layout.LinkSpec) (*ForwardResult, error) {
	if layout.CountWidgets(root) == 0 {
		return nil, fmt.Errorf("layout has no widgets; a page needs at least one")
	}

	pass := &forwardPass{
		backend:  backend,
		meta:     meta,
		registry: NewRegistry(),
		viewID:   viewID,
		viewName: viewName,
		paneIDs:  make(map[*layout.Pane]int),
	}

	if viewID != 0 {
		sections, err := backend.ListSections(ctx, viewID)
		if err != nil {
			return nil, fmt.Errorf("listing sections of view %d: %w", viewID, err)
		}
		pass.existing = make(map[int]WidgetInfo, len(sections))
		for _, s := range sections {
			pass.existing[s.SectionID] = s
		}
	}

	// Pane ids for the whole batch are declared up front so a duplicate is
	// caught before any widget is created.
	for _, p := range layout.Leaves(root) {
		if p.LocalID == "" {
			p.LocalID = uuid.NewString()
		}
		if err := pass.registry.Declare(p.LocalID); err != nil {
			return nil, err
		}
	}

	if err := pass.createLeaves(ctx, root); err != nil {
		return nil, err
	}

	box, err := buildBox(root, true, func(p *layout.Pane) (int, error) {
		id, ok := pass.paneIDs[p]
		if !ok {
			return 0, fmt.Errorf("pane %q was never created", p.LocalID)
		}
		return id, nil
	})
	if err != nil {
		return nil, err
	}
	if err := backend.SetBoxLayout(ctx, pass.viewID, box); err != nil {
		return nil, fmt.Errorf("setting layout of view %d: %w", pass.viewID, err)
	}

	for _, spec := range extraLinks {
		pass.registry.EnqueueLink(spec)
	}
	if err := pass.registry.CheckComplete(); err != nil {
		return nil, err
	}
	linksApplied, err := applyReadyLinks(ctx, backend, meta, pass.registry)
	if err != nil {
		return nil, err
	}

	return &ForwardResult{
		ViewID:         pass.viewID,
		SectionIDs:     pass.created,
		WidgetsCreated: len(pass.created),
		LinksApplied:   linksApplied,
	}, nil
}

// forwardPass carries the mutable state of one compilation. It is
// allocated per call and discarded with it.
type forwardPass struct {
	backend  Backend
	meta     MetaResolver
	registry *Registry

	viewID   int
	viewName string
	existing map[int]WidgetInfo

	paneIDs map[*layout.Pane]int
	created []int
}

// createLeaves walks the tree depth-first, creating each new pane and
// resolving each existing one. Links attached at a node are enqueued when
// the node is visited, which may be before their endpoints exist; the
// registry releases them as widgets resolve.
func (pass *forwardPass) createLeaves(ctx context.Context, n *layout.Node) error {
	for _, spec := range n.Links {
		pass.registry.EnqueueLink(spec)
	}
	if !n.IsLeaf() {
		for _, c := range n.Children {
			if err := pass.createLeaves(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}

	p := n.Pane
	if p.IsExisting() {
		if pass.viewID == 0 {
			return fmt.Errorf("section %d cannot be placed on a new page; moving sections between views is not supported", p.SectionID)
		}
		info, ok := pass.existing[p.SectionID]
		if !ok {
			return &UnknownSectionError{SectionID: p.SectionID, ViewID: pass.viewID}
		}
		pass.paneIDs[p] = p.SectionID
		return pass.resolvePane(p, info)
	}

	table, err := pass.meta.Table(ctx, p.Table)
	if err != nil {
		return err
	}
	req := CreateSectionRequest{
		TableID:  table.ID,
		TableRef: table.Ref,
		ViewID:   pass.viewID,
		ViewName: pass.viewName,
		Widget:   p.Widget,
		Title:    p.Title,
		Options:  p.Options,
	}
	if req.VisibleColRefs, req.ChartType, err = pass.visibleColumns(ctx, p, table.ID); err != nil {
		return err
	}

	created, err := pass.backend.CreateSection(ctx, req)
	if err != nil {
		return fmt.Errorf("creating %s widget on table %q: %w", p.Widget, p.Table, err)
	}
	if pass.viewID == 0 {
		pass.viewID = created.ViewID
	}
	pass.paneIDs[p] = created.SectionID
	pass.created = append(pass.created, created.SectionID)
	return pass.resolvePane(p, WidgetInfo{
		SectionID: created.SectionID,
		ViewID:    pass.viewID,
		TableRef:  table.Ref,
		TableID:   table.ID,
		Widget:    p.Widget,
		Title:     p.Title,
	})
}

// resolvePane resolves the pane's local id and, for existing panes, also
// aliases the decimal section id so links may name it either way.
func (pass *forwardPass) resolvePane(p *layout.Pane, info WidgetInfo) error {
	if err := pass.registry.Resolve(p.LocalID, info); err != nil {
		return err
	}
	if p.IsExisting() {
		alias := strconv.Itoa(p.SectionID)
		if alias != p.LocalID {
			if _, taken := pass.registry.Lookup(alias); !taken {
				return pass.registry.Resolve(alias, info)
			}
		}
	}
	return nil
}

// visibleColumns resolves the pane's column names to refs. For charts the
// x-axis column comes first, then the series, which is how the backend
// reads chart bindings off the visible column order.
func (pass *forwardPass) visibleColumns(ctx context.Context, p *layout.Pane, tableID string) ([]int, string, error) {
	names := p.Columns
	chartType := ""
	if p.Chart != nil {
		chartType = p.Chart.Type
		names = append([]string{p.Chart.XAxis}, p.Chart.Series...)
	}
	if len(names) == 0 {
		return nil, chartType, nil
	}
	refs := make([]int, 0, len(names))
	for _, name := range names {
		col, err := pass.meta.Column(ctx, tableID, name)
		if err != nil {
			return nil, "", err
		}
		refs = append(refs, col.Ref)
	}
	return refs, chartType, nil
}

// applyReadyLinks resolves every released link and applies it to its target
// section. Resolution for all links happens before the first backend call
// so an invalid link batch applies nothing.
func applyReadyLinks(ctx context.Context, backend Backend, meta MetaResolver, reg *Registry) (int, error) {
	ready := reg.Ready()
	fields := make([]LinkFields, len(ready))
	for i, rl := range ready {
		f, err := ResolveLink(ctx, meta, rl.Spec.Link, rl.Source, rl.Target)
		if err != nil {
			return 0, err
		}
		fields[i] = f
	}
	for i, rl := range ready {
		if err := backend.ApplyLink(ctx, rl.Target.SectionID, fields[i]); err != nil {
			return i, fmt.Errorf("applying %s link to section %d: %w", rl.Spec.Link.Kind, rl.Target.SectionID, err)
		}
	}
	return len(ready), nil
}
