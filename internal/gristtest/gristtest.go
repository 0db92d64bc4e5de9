// Package gristtest provides in-memory implementations of the compiler's
// backend and metadata collaborators for tests. No network is involved;
// state lives in exported maps so tests can seed and inspect it directly.
package gristtest

import (
	"context"
	"fmt"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/compiler"
	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// Meta is a fixed document schema.
type Meta struct {
	Tables  []compiler.TableMeta
	Columns map[string][]compiler.ColumnMeta
}

// DefaultMeta returns a schema with People, Orders (holding a reference to
// People) and OrdersSummary (a summary of Orders).
func DefaultMeta() *Meta {
	return &Meta{
		Tables: []compiler.TableMeta{
			{Ref: 1, ID: "People"},
			{Ref: 2, ID: "Orders"},
			{Ref: 3, ID: "OrdersSummary", SummarySourceRef: 2},
		},
		Columns: map[string][]compiler.ColumnMeta{
			"People": {
				{Ref: 11, ID: "Name", Label: "Name", Type: "Text"},
				{Ref: 12, ID: "Region", Label: "Region", Type: "Text"},
			},
			"Orders": {
				{Ref: 21, ID: "Customer", Label: "Customer", Type: "Ref:People"},
				{Ref: 22, ID: "Total", Label: "Order Total", Type: "Numeric"},
				{Ref: 23, ID: "Region", Label: "Region", Type: "Text"},
			},
			"OrdersSummary": {
				{Ref: 31, ID: "Region", Label: "Region", Type: "Text"},
				{Ref: 32, ID: "count", Label: "Count", Type: "Int"},
			},
		},
	}
}

func (m *Meta) Table(ctx context.Context, tableID string) (compiler.TableMeta, error) {
	for _, t := range m.Tables {
		if t.ID == tableID {
			return t, nil
		}
	}
	return compiler.TableMeta{}, fmt.Errorf("table %q not found", tableID)
}

func (m *Meta) TableByRef(ctx context.Context, ref int) (compiler.TableMeta, error) {
	for _, t := range m.Tables {
		if t.Ref == ref {
			return t, nil
		}
	}
	return compiler.TableMeta{}, fmt.Errorf("no table with ref %d", ref)
}

func (m *Meta) Column(ctx context.Context, tableID, name string) (compiler.ColumnMeta, error) {
	cols := m.Columns[tableID]
	available := make([]string, 0, len(cols))
	for _, c := range cols {
		if c.ID == name {
			return c, nil
		}
		available = append(available, c.ID)
	}
	for _, c := range cols {
		if c.Label == name {
			return c, nil
		}
	}
	return compiler.ColumnMeta{}, &compiler.ColumnNotFoundError{Table: tableID, Column: name, Available: available}
}

// View is one page held by the fake backend.
type View struct {
	ID       int
	Name     string
	Box      *layout.Box
	Sections map[int]compiler.WidgetInfo
	Order    []int
}

// AppliedLink records one ApplyLink call.
type AppliedLink struct {
	SectionID int
	Fields    compiler.LinkFields
}

// Backend is an in-memory compiler.Backend.
type Backend struct {
	Meta  *Meta
	Views map[int]*View

	// CreateCalls counts CreateSection calls, including failed ones.
	CreateCalls int
	// Applied records every ApplyLink call in order.
	Applied []AppliedLink

	nextView    int
	nextSection int
}

// NewBackend returns an empty backend over the given schema.
func NewBackend(meta *Meta) *Backend {
	return &Backend{
		Meta:        meta,
		Views:       make(map[int]*View),
		nextView:    0,
		nextSection: 100,
	}
}

// AddView seeds a view directly.
func (b *Backend) AddView(name string) *View {
	b.nextView++
	v := &View{ID: b.nextView, Name: name, Sections: make(map[int]compiler.WidgetInfo)}
	b.Views[v.ID] = v
	return v
}

// AddSection seeds a section on a view and returns its id.
func (b *Backend) AddSection(viewID int, tableID string, widget layout.WidgetKind) int {
	v := b.Views[viewID]
	table, err := b.Meta.Table(context.Background(), tableID)
	if err != nil {
		panic(err)
	}
	b.nextSection++
	info := compiler.WidgetInfo{
		SectionID: b.nextSection,
		ViewID:    viewID,
		TableRef:  table.Ref,
		TableID:   table.ID,
		Widget:    widget,
	}
	v.Sections[info.SectionID] = info
	v.Order = append(v.Order, info.SectionID)
	return info.SectionID
}

func (b *Backend) CreateSection(ctx context.Context, req compiler.CreateSectionRequest) (compiler.CreatedSection, error) {
	b.CreateCalls++
	viewID := req.ViewID
	if viewID == 0 {
		viewID = b.AddView(req.ViewName).ID
	}
	v, ok := b.Views[viewID]
	if !ok {
		return compiler.CreatedSection{}, fmt.Errorf("view %d not found", viewID)
	}
	b.nextSection++
	info := compiler.WidgetInfo{
		SectionID: b.nextSection,
		ViewID:    viewID,
		TableRef:  req.TableRef,
		TableID:   req.TableID,
		Widget:    req.Widget,
		Title:     req.Title,
	}
	v.Sections[info.SectionID] = info
	v.Order = append(v.Order, info.SectionID)
	return compiler.CreatedSection{ViewID: viewID, SectionID: info.SectionID}, nil
}

func (b *Backend) RemoveSections(ctx context.Context, sectionIDs []int) error {
	for _, id := range sectionIDs {
		removed := false
		for _, v := range b.Views {
			if _, ok := v.Sections[id]; ok {
				delete(v.Sections, id)
				for i, o := range v.Order {
					if o == id {
						v.Order = append(v.Order[:i], v.Order[i+1:]...)
						break
					}
				}
				removed = true
			}
		}
		if !removed {
			return fmt.Errorf("section %d not found", id)
		}
	}
	return nil
}

func (b *Backend) ApplyLink(ctx context.Context, sectionID int, fields compiler.LinkFields) error {
	for _, v := range b.Views {
		if info, ok := v.Sections[sectionID]; ok {
			info.Link = fields
			v.Sections[sectionID] = info
			b.Applied = append(b.Applied, AppliedLink{SectionID: sectionID, Fields: fields})
			return nil
		}
	}
	return fmt.Errorf("section %d not found", sectionID)
}

func (b *Backend) SetBoxLayout(ctx context.Context, viewID int, box *layout.Box) error {
	v, ok := b.Views[viewID]
	if !ok {
		return fmt.Errorf("view %d not found", viewID)
	}
	v.Box = box
	return nil
}

func (b *Backend) GetBoxLayout(ctx context.Context, viewID int) (*layout.Box, error) {
	v, ok := b.Views[viewID]
	if !ok {
		return nil, fmt.Errorf("view %d not found", viewID)
	}
	return v.Box, nil
}

func (b *Backend) ListSections(ctx context.Context, viewID int) ([]compiler.WidgetInfo, error) {
	v, ok := b.Views[viewID]
	if !ok {
		return nil, fmt.Errorf("view %d not found", viewID)
	}
	sections := make([]compiler.WidgetInfo, 0, len(v.Order))
	for _, id := range v.Order {
		sections = append(sections, v.Sections[id])
	}
	return sections, nil
}
