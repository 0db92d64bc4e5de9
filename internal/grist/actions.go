package grist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/compiler"
	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// widgetParentKey maps caller-facing widget kinds onto the section type
// the backend persists in _grist_Views_section.parentKey.
var widgetParentKey = map[layout.WidgetKind]string{
	layout.WidgetGrid:     "record",
	layout.WidgetCard:     "single",
	layout.WidgetCardList: "detail",
	layout.WidgetChart:    "chart",
	layout.WidgetCustom:   "custom",
	layout.WidgetForm:     "form",
}

var parentKeyWidget = func() map[string]layout.WidgetKind {
	m := make(map[string]layout.WidgetKind, len(widgetParentKey))
	for k, v := range widgetParentKey {
		m[v] = k
	}
	return m
}()

// CreateSection creates one widget section via the CreateViewSection user
// action. A request with ViewID zero creates a new view and names it.
func (c *Client) CreateSection(ctx context.Context, req compiler.CreateSectionRequest) (compiler.CreatedSection, error) {
	parentKey, ok := widgetParentKey[req.Widget]
	if !ok {
		return compiler.CreatedSection{}, fmt.Errorf("unknown widget kind %q", req.Widget)
	}

	ret, err := c.apply(ctx, []any{
		[]any{"CreateViewSection", req.TableRef, req.ViewID, parentKey, nil, nil},
	})
	if err != nil {
		return compiler.CreatedSection{}, err
	}
	if len(ret) == 0 {
		return compiler.CreatedSection{}, fmt.Errorf("CreateViewSection returned no result")
	}
	var created struct {
		ViewRef    int `json:"viewRef"`
		SectionRef int `json:"sectionRef"`
	}
	if err := json.Unmarshal(ret[0], &created); err != nil {
		return compiler.CreatedSection{}, fmt.Errorf("decoding CreateViewSection result: %w", err)
	}

	if err := c.configureSection(ctx, created.ViewRef, created.SectionRef, req); err != nil {
		return compiler.CreatedSection{}, err
	}
	return compiler.CreatedSection{ViewID: created.ViewRef, SectionID: created.SectionRef}, nil
}

// configureSection applies the creation options that CreateViewSection
// itself does not take: view name, title, chart type, display options and
// the visible column set.
func (c *Client) configureSection(ctx context.Context, viewRef, sectionRef int, req compiler.CreateSectionRequest) error {
	var actions []any

	if req.ViewID == 0 && req.ViewName != "" {
		actions = append(actions, []any{"UpdateRecord", tableViews, viewRef, map[string]any{"name": req.ViewName}})
	}

	fields := map[string]any{}
	if req.Title != "" {
		fields["title"] = req.Title
	}
	if req.ChartType != "" {
		fields["chartType"] = req.ChartType
	}
	if len(req.Options) > 0 {
		opts, err := json.Marshal(req.Options)
		if err != nil {
			return fmt.Errorf("encoding widget options: %w", err)
		}
		fields["options"] = string(opts)
	}
	if len(fields) > 0 {
		actions = append(actions, []any{"UpdateRecord", tableSections, sectionRef, fields})
	}

	if len(actions) > 0 {
		if _, err := c.apply(ctx, actions); err != nil {
			return fmt.Errorf("configuring section %d: %w", sectionRef, err)
		}
	}

	if len(req.VisibleColRefs) > 0 {
		if err := c.setVisibleColumns(ctx, sectionRef, req.VisibleColRefs); err != nil {
			return err
		}
	}
	return nil
}

// setVisibleColumns replaces a section's field rows so exactly the given
// columns show, in the given order. Column order is load-bearing for
// charts: the first field is the x-axis, the rest are series.
func (c *Client) setVisibleColumns(ctx context.Context, sectionRef int, colRefs []int) error {
	recs, err := c.records(ctx, tableSectionField, false)
	if err != nil {
		return fmt.Errorf("listing fields of section %d: %w", sectionRef, err)
	}
	var stale []int
	for _, r := range recs {
		if fieldInt(r, "parentId") == sectionRef {
			stale = append(stale, r.ID)
		}
	}

	var actions []any
	if len(stale) > 0 {
		actions = append(actions, []any{"BulkRemoveRecord", tableSectionField, stale})
	}
	rowIDs := make([]any, len(colRefs))
	parents := make([]any, len(colRefs))
	positions := make([]any, len(colRefs))
	refs := make([]any, len(colRefs))
	for i, ref := range colRefs {
		parents[i] = sectionRef
		positions[i] = float64(i + 1)
		refs[i] = ref
	}
	actions = append(actions, []any{"BulkAddRecord", tableSectionField, rowIDs, map[string]any{
		"parentId":  parents,
		"parentPos": positions,
		"colRef":    refs,
	}})

	if _, err := c.apply(ctx, actions); err != nil {
		return fmt.Errorf("setting visible columns of section %d: %w", sectionRef, err)
	}
	return nil
}

// RemoveSections deletes widget sections. The backend removes the
// section's field rows with it.
func (c *Client) RemoveSections(ctx context.Context, sectionIDs []int) error {
	actions := make([]any, 0, len(sectionIDs))
	for _, id := range sectionIDs {
		actions = append(actions, []any{"RemoveViewSection", id})
	}
	if _, err := c.apply(ctx, actions); err != nil {
		return err
	}
	return nil
}

// ApplyLink persists the link triple on the target section.
func (c *Client) ApplyLink(ctx context.Context, sectionID int, fields compiler.LinkFields) error {
	_, err := c.apply(ctx, []any{
		[]any{"UpdateRecord", tableSections, sectionID, map[string]any{
			"linkSrcSectionRef": fields.SrcSectionRef,
			"linkSrcColRef":     fields.SrcColRef,
			"linkTargetColRef":  fields.TargetColRef,
		}},
	})
	return err
}

// SetBoxLayout persists the box-layout JSON on the view record.
func (c *Client) SetBoxLayout(ctx context.Context, viewID int, box *layout.Box) error {
	spec, err := json.Marshal(box)
	if err != nil {
		return fmt.Errorf("encoding layout of view %d: %w", viewID, err)
	}
	_, err = c.apply(ctx, []any{
		[]any{"UpdateRecord", tableViews, viewID, map[string]any{"layoutSpec": string(spec)}},
	})
	return err
}

// GetBoxLayout reads the view's stored box-layout. A view that has never
// had a layout written returns nil; callers fall back to the section list.
func (c *Client) GetBoxLayout(ctx context.Context, viewID int) (*layout.Box, error) {
	recs, err := c.records(ctx, tableViews, true)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.ID != viewID {
			continue
		}
		raw := fieldString(r, "layoutSpec")
		if raw == "" {
			return nil, nil
		}
		var box layout.Box
		if err := json.Unmarshal([]byte(raw), &box); err != nil {
			return nil, fmt.Errorf("view %d has an unreadable layoutSpec: %w", viewID, err)
		}
		return &box, nil
	}
	return nil, fmt.Errorf("view %d not found", viewID)
}

// ListSections lists the widget sections of one view.
func (c *Client) ListSections(ctx context.Context, viewID int) ([]compiler.WidgetInfo, error) {
	recs, err := c.records(ctx, tableSections, true)
	if err != nil {
		return nil, err
	}
	tables, err := c.Tables(ctx)
	if err != nil {
		return nil, err
	}
	tableByRef := make(map[int]compiler.TableMeta, len(tables))
	for _, t := range tables {
		tableByRef[t.Ref] = t
	}

	var sections []compiler.WidgetInfo
	for _, r := range recs {
		if fieldInt(r, "parentId") != viewID {
			continue
		}
		tableRef := fieldInt(r, "tableRef")
		info := compiler.WidgetInfo{
			SectionID: r.ID,
			ViewID:    viewID,
			TableRef:  tableRef,
			TableID:   tableByRef[tableRef].ID,
			Widget:    parentKeyWidget[fieldString(r, "parentKey")],
			Title:     fieldString(r, "title"),
			Link: compiler.LinkFields{
				SrcSectionRef: fieldInt(r, "linkSrcSectionRef"),
				SrcColRef:     fieldInt(r, "linkSrcColRef"),
				TargetColRef:  fieldInt(r, "linkTargetColRef"),
			},
		}
		sections = append(sections, info)
	}
	return sections, nil
}
