package grist

import (
	"context"
	"fmt"
	"strings"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/compiler"
)

// Metadata tables of a Grist document. Widgets, views and column metadata
// all live in ordinary (hidden) tables read through the records API.
const (
	tableTables       = "_grist_Tables"
	tableColumns      = "_grist_Tables_column"
	tableViews        = "_grist_Views"
	tableSections     = "_grist_Views_section"
	tableSectionField = "_grist_Views_section_field"
)

// Tables lists every user table of the document.
func (c *Client) Tables(ctx context.Context) ([]compiler.TableMeta, error) {
	recs, err := c.records(ctx, tableTables, true)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	tables := make([]compiler.TableMeta, 0, len(recs))
	for _, r := range recs {
		id := fieldString(r, "tableId")
		if id == "" {
			continue
		}
		tables = append(tables, compiler.TableMeta{
			Ref:              r.ID,
			ID:               id,
			SummarySourceRef: fieldInt(r, "summarySourceTable"),
		})
	}
	return tables, nil
}

// Table resolves a table by its caller-facing id.
func (c *Client) Table(ctx context.Context, tableID string) (compiler.TableMeta, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return compiler.TableMeta{}, err
	}
	var ids []string
	for _, t := range tables {
		if t.ID == tableID {
			return t, nil
		}
		ids = append(ids, t.ID)
	}
	return compiler.TableMeta{}, fmt.Errorf("table %q not found (available: %s)", tableID, strings.Join(ids, ", "))
}

// TableByRef resolves a table by its numeric row id.
func (c *Client) TableByRef(ctx context.Context, ref int) (compiler.TableMeta, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return compiler.TableMeta{}, err
	}
	for _, t := range tables {
		if t.Ref == ref {
			return t, nil
		}
	}
	return compiler.TableMeta{}, fmt.Errorf("no table with ref %d", ref)
}

// Columns lists the user columns of a table in document order.
func (c *Client) Columns(ctx context.Context, tableID string) ([]compiler.ColumnMeta, error) {
	table, err := c.Table(ctx, tableID)
	if err != nil {
		return nil, err
	}
	recs, err := c.records(ctx, tableColumns, true)
	if err != nil {
		return nil, fmt.Errorf("listing columns of table %q: %w", tableID, err)
	}
	var cols []compiler.ColumnMeta
	for _, r := range recs {
		if fieldInt(r, "parentId") != table.Ref {
			continue
		}
		colID := fieldString(r, "colId")
		if hiddenColumn(colID) {
			continue
		}
		cols = append(cols, compiler.ColumnMeta{
			Ref:   r.ID,
			ID:    colID,
			Label: fieldString(r, "label"),
			Type:  fieldString(r, "type"),
		})
	}
	return cols, nil
}

// Column resolves a column by id first, then by label. A miss names the
// table, the column and every available column so an automated caller can
// self-correct without another round trip.
func (c *Client) Column(ctx context.Context, tableID, name string) (compiler.ColumnMeta, error) {
	cols, err := c.Columns(ctx, tableID)
	if err != nil {
		return compiler.ColumnMeta{}, err
	}
	available := make([]string, 0, len(cols))
	for _, col := range cols {
		if col.ID == name {
			return col, nil
		}
		available = append(available, col.ID)
	}
	for _, col := range cols {
		if col.Label == name {
			return col, nil
		}
	}
	return compiler.ColumnMeta{}, &compiler.ColumnNotFoundError{Table: tableID, Column: name, Available: available}
}

// hiddenColumn filters the bookkeeping columns Grist adds to every table.
func hiddenColumn(colID string) bool {
	return colID == "manualSort" || strings.HasPrefix(colID, "gristHelper_")
}

// ViewInfo identifies one view (page) of the document.
type ViewInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Views lists the document's views.
func (c *Client) Views(ctx context.Context) ([]ViewInfo, error) {
	recs, err := c.records(ctx, tableViews, true)
	if err != nil {
		return nil, fmt.Errorf("listing views: %w", err)
	}
	views := make([]ViewInfo, 0, len(recs))
	for _, r := range recs {
		views = append(views, ViewInfo{ID: r.ID, Name: fieldString(r, "name")})
	}
	return views, nil
}
