// Package compiler transforms declarative layout trees into the backend's
// flat view/section model and back. The forward path creates widgets,
// emits the native box-layout and applies resolved links; the reverse path
// reconstructs a declarative tree from backend state.
package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// WidgetInfo is the resolved identity of a widget section. It is produced
// by creating a widget or by listing a view's sections, never constructed
// from caller input.
type WidgetInfo struct {
	SectionID int               `json:"section_id"`
	ViewID    int               `json:"view_id"`
	TableRef  int               `json:"table_ref"`
	TableID   string            `json:"table_id"`
	Widget    layout.WidgetKind `json:"widget"`
	Title     string            `json:"title,omitempty"`
	Link      LinkFields        `json:"-"`
}

// LinkFields is the low-level triple every link kind serializes to. The
// fields are persisted on the target section; SrcSectionRef points back at
// the section driving it.
type LinkFields struct {
	SrcSectionRef int
	SrcColRef     int
	TargetColRef  int
}

// IsZero reports whether no link is set.
func (f LinkFields) IsZero() bool { return f.SrcSectionRef == 0 }

// CreateSectionRequest describes one widget to create. A ViewID of zero
// asks the backend for a new view named ViewName.
type CreateSectionRequest struct {
	TableID        string
	TableRef       int
	ViewID         int
	ViewName       string
	Widget         layout.WidgetKind
	Title          string
	VisibleColRefs []int
	ChartType      string
	Options        map[string]any
}

// CreatedSection is the backend's answer to CreateSectionRequest.
type CreatedSection struct {
	ViewID    int
	SectionID int
}

// Backend is the mutation/read surface the compiler drives. Implementations
// perform network I/O; the compiler treats every call as synchronous
// request/response and performs no retries of its own.
type Backend interface {
	CreateSection(ctx context.Context, req CreateSectionRequest) (CreatedSection, error)
	RemoveSections(ctx context.Context, sectionIDs []int) error
	ApplyLink(ctx context.Context, sectionID int, fields LinkFields) error
	SetBoxLayout(ctx context.Context, viewID int, box *layout.Box) error
	GetBoxLayout(ctx context.Context, viewID int) (*layout.Box, error)
	ListSections(ctx context.Context, viewID int) ([]WidgetInfo, error)
}

// TableMeta identifies one backend table.
type TableMeta struct {
	Ref              int
	ID               string
	SummarySourceRef int // non-zero when the table is a summary derivation
}

// ColumnMeta identifies one backend column.
type ColumnMeta struct {
	Ref   int
	ID    string
	Label string
	Type  string // e.g. "Text", "Ref:People", "RefList:Projects"
}

// MetaResolver maps human table/column names to backend metadata.
type MetaResolver interface {
	Table(ctx context.Context, tableID string) (TableMeta, error)
	TableByRef(ctx context.Context, ref int) (TableMeta, error)
	Column(ctx context.Context, tableID, name string) (ColumnMeta, error)
}

// ColumnNotFoundError reports a column name that does not exist on a table,
// with the available columns so a caller can self-correct.
type ColumnNotFoundError struct {
	Table     string
	Column    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found on table %q (available: %s)",
		e.Column, e.Table, strings.Join(e.Available, ", "))
}

// UnknownSectionError reports a section id that is not part of the view
// being edited.
type UnknownSectionError struct {
	SectionID int
	ViewID    int
}

func (e *UnknownSectionError) Error() string {
	return fmt.Sprintf("section %d is not part of view %d", e.SectionID, e.ViewID)
}

// RefTargetTable extracts the referenced table id from a reference column
// type ("Ref:People" or "RefList:People"). Empty when the type is not a
// reference.
func RefTargetTable(colType string) string {
	if t, ok := strings.CutPrefix(colType, "Ref:"); ok {
		return t
	}
	if t, ok := strings.CutPrefix(colType, "RefList:"); ok {
		return t
	}
	return ""
}
