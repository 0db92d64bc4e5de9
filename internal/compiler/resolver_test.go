package compiler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// fakeMeta serves a fixed schema: People, Orders (with a Ref to People),
// and OrdersSummary (a summary of Orders).
type fakeMeta struct {
	tables  []TableMeta
	columns map[string][]ColumnMeta
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{
		tables: []TableMeta{
			{Ref: 1, ID: "People"},
			{Ref: 2, ID: "Orders"},
			{Ref: 3, ID: "OrdersSummary", SummarySourceRef: 2},
		},
		columns: map[string][]ColumnMeta{
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

func (m *fakeMeta) Table(ctx context.Context, tableID string) (TableMeta, error) {
	for _, t := range m.tables {
		if t.ID == tableID {
			return t, nil
		}
	}
	return TableMeta{}, fmt.Errorf("table %q not found", tableID)
}

func (m *fakeMeta) TableByRef(ctx context.Context, ref int) (TableMeta, error) {
	for _, t := range m.tables {
		if t.Ref == ref {
			return t, nil
		}
	}
	return TableMeta{}, fmt.Errorf("no table with ref %d", ref)
}

func (m *fakeMeta) Column(ctx context.Context, tableID, name string) (ColumnMeta, error) {
	cols := m.columns[tableID]
	var available []string
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
	return ColumnMeta{}, &ColumnNotFoundError{Table: tableID, Column: name, Available: available}
}

func widgetOn(sectionID, tableRef int, tableID string) WidgetInfo {
	return WidgetInfo{SectionID: sectionID, ViewID: 1, TableRef: tableRef, TableID: tableID, Widget: layout.WidgetGrid}
}

func TestResolveLinkKinds(t *testing.T) {
	meta := newFakeMeta()
	people := widgetOn(101, 1, "People")
	orders := widgetOn(102, 2, "Orders")
	summary := widgetOn(103, 3, "OrdersSummary")
	peopleCard := widgetOn(104, 1, "People")

	tests := []struct {
		name     string
		link     layout.Link
		src, tgt WidgetInfo
		want     LinkFields
	}{
		{
			name: "filtered_by through target ref column",
			link: layout.Link{Kind: layout.LinkFilteredBy, Column: "Customer"},
			src:  people, tgt: orders,
			want: LinkFields{SrcSectionRef: 101, TargetColRef: 21},
		},
		{
			name: "references through source ref column",
			link: layout.Link{Kind: layout.LinkReferences, Column: "Customer"},
			src:  orders, tgt: people,
			want: LinkFields{SrcSectionRef: 102, SrcColRef: 21},
		},
		{
			name: "synced_with on same table",
			link: layout.Link{Kind: layout.LinkSyncedWith},
			src:  people, tgt: peopleCard,
			want: LinkFields{SrcSectionRef: 101},
		},
		{
			name: "selected_by summary drives source",
			link: layout.Link{Kind: layout.LinkSelectedBy},
			src:  summary, tgt: orders,
			want: LinkFields{SrcSectionRef: 103},
		},
		{
			name: "grouped_by pairs same-named column",
			link: layout.Link{Kind: layout.LinkGroupedBy, Column: "Region"},
			src:  orders, tgt: summary,
			want: LinkFields{SrcSectionRef: 102, SrcColRef: 23, TargetColRef: 31},
		},
		{
			name: "summary_of",
			link: layout.Link{Kind: layout.LinkSummaryOf},
			src:  orders, tgt: summary,
			want: LinkFields{SrcSectionRef: 102},
		},
		{
			name: "summary_of with shared column",
			link: layout.Link{Kind: layout.LinkSummaryOf, Column: "Region"},
			src:  orders, tgt: summary,
			want: LinkFields{SrcSectionRef: 102, SrcColRef: 23, TargetColRef: 31},
		},
		{
			name: "custom passes columns through",
			link: layout.Link{Kind: layout.LinkCustom, SourceColumn: "Total", TargetColumn: "count"},
			src:  orders, tgt: summary,
			want: LinkFields{SrcSectionRef: 102, SrcColRef: 22, TargetColRef: 32},
		},
		{
			name: "column resolved by label",
			link: layout.Link{Kind: layout.LinkCustom, SourceColumn: "Order Total"},
			src:  orders, tgt: summary,
			want: LinkFields{SrcSectionRef: 102, SrcColRef: 22},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLink(context.Background(), meta, tt.link, tt.src, tt.tgt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLinkRejections(t *testing.T) {
	meta := newFakeMeta()
	people := widgetOn(101, 1, "People")
	orders := widgetOn(102, 2, "Orders")
	summary := widgetOn(103, 3, "OrdersSummary")
	peopleCard := widgetOn(104, 1, "People")

	tests := []struct {
		name     string
		link     layout.Link
		src, tgt WidgetInfo
		want     string
	}{
		{
			name: "filtered_by needs different tables",
			link: layout.Link{Kind: layout.LinkFilteredBy, Column: "Name"},
			src:  people, tgt: peopleCard,
			want: "needs different tables",
		},
		{
			name: "filtered_by on non-reference column",
			link: layout.Link{Kind: layout.LinkFilteredBy, Column: "Total"},
			src:  people, tgt: orders,
			want: "expected a reference to table \"People\"",
		},
		{
			name: "references wrong target table",
			link: layout.Link{Kind: layout.LinkReferences, Column: "Customer"},
			src:  orders, tgt: summary,
			want: "expected a reference to table \"OrdersSummary\"",
		},
		{
			name: "synced_with across tables",
			link: layout.Link{Kind: layout.LinkSyncedWith},
			src:  people, tgt: orders,
			want: "needs the same table",
		},
		{
			name: "selected_by unrelated tables",
			link: layout.Link{Kind: layout.LinkSelectedBy},
			src:  people, tgt: orders,
			want: "summary relation",
		},
		{
			name: "grouped_by column missing on source",
			link: layout.Link{Kind: layout.LinkGroupedBy, Column: "count"},
			src:  orders, tgt: summary,
			want: "not found",
		},
		{
			name: "summary_of wrong direction",
			link: layout.Link{Kind: layout.LinkSummaryOf},
			src:  summary, tgt: orders,
			want: "not a summary of",
		},
		{
			name: "unknown column names table and column",
			link: layout.Link{Kind: layout.LinkCustom, SourceColumn: "Nope"},
			src:  orders, tgt: summary,
			want: `column "Nope" not found on table "Orders"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveLink(context.Background(), meta, tt.link, tt.src, tt.tgt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestColumnNotFoundListsAvailable(t *testing.T) {
	meta := newFakeMeta()
	_, err := meta.Column(context.Background(), "People", "Missing")
	var notFound *ColumnNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"Name", "Region"}, notFound.Available)
	assert.Contains(t, notFound.Error(), "available: Name, Region")
}

func TestRefTargetTable(t *testing.T) {
	assert.Equal(t, "People", RefTargetTable("Ref:People"))
	assert.Equal(t, "Projects", RefTargetTable("RefList:Projects"))
	assert.Equal(t, "", RefTargetTable("Text"))
}
