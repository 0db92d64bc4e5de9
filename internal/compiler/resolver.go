package compiler

import (
	"context"
	"fmt"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// linkValidator translates one link kind into the low-level triple, or
// rejects the combination before anything reaches the backend.
type linkValidator func(ctx context.Context, meta MetaResolver, l layout.Link, src, tgt WidgetInfo) (LinkFields, error)

var linkValidators = map[layout.LinkKind]linkValidator{
	layout.LinkFilteredBy: resolveFilteredBy,
	layout.LinkReferences: resolveReferences,
	layout.LinkSyncedWith: resolveSameTable,
	layout.LinkSelectedBy: resolveSelectedBy,
	layout.LinkGroupedBy:  resolveGroupedBy,
	layout.LinkSummaryOf:  resolveSummaryOf,
	layout.LinkCustom:     resolveCustom,
}

// ResolveLink maps one semantic link onto the backend's three link fields,
// validating column existence and type compatibility for the kind. It never
// mutates backend state.
func ResolveLink(ctx context.Context, meta MetaResolver, l layout.Link, src, tgt WidgetInfo) (LinkFields, error) {
	validate, ok := linkValidators[l.Kind]
	if !ok {
		return LinkFields{}, fmt.Errorf("unknown link type %q", l.Kind)
	}
	fields, err := validate(ctx, meta, l, src, tgt)
	if err != nil {
		return LinkFields{}, fmt.Errorf("%s link from section %d to section %d: %w",
			l.Kind, src.SectionID, tgt.SectionID, err)
	}
	return fields, nil
}

// filtered_by: the target widget holds a reference column pointing at the
// source widget's table; selecting a source row filters target rows.
func resolveFilteredBy(ctx context.Context, meta MetaResolver, l layout.Link, src, tgt WidgetInfo) (LinkFields, error) {
	if src.TableRef == tgt.TableRef {
		return LinkFields{}, fmt.Errorf("widgets are both on table %q; filtered_by needs different tables", src.TableID)
	}
	col, err := meta.Column(ctx, tgt.TableID, l.Column)
	if err != nil {
		return LinkFields{}, err
	}
	if RefTargetTable(col.Type) != src.TableID {
		return LinkFields{}, fmt.Errorf("column %q on table %q has type %q, expected a reference to table %q",
			l.Column, tgt.TableID, col.Type, src.TableID)
	}
	return LinkFields{SrcSectionRef: src.SectionID, TargetColRef: col.Ref}, nil
}

// references: the source widget holds an outgoing reference column to the
// target widget's table; the target cursor follows it.
func resolveReferences(ctx context.Context, meta MetaResolver, l layout.Link, src, tgt WidgetInfo) (LinkFields, error) {
	col, err := meta.Column(ctx, src.TableID, l.Column)
	if err != nil {
		return LinkFields{}, err
	}
	if RefTargetTable(col.Type) != tgt.TableID {
		return LinkFields{}, fmt.Errorf("column %q on table %q has type %q, expected a reference to table %q",
			l.Column, src.TableID, col.Type, tgt.TableID)
	}
	return LinkFields{SrcSectionRef: src.SectionID, SrcColRef: col.Ref}, nil
}

// synced_with: both widgets on the same table share cursor position.
func resolveSameTable(ctx context.Context, meta MetaResolver, l layout.Link, src, tgt WidgetInfo) (LinkFields, error) {
	if src.TableRef != tgt.TableRef {
		return LinkFields{}, fmt.Errorf("widgets are on tables %q and %q; %s needs the same table",
			src.TableID, tgt.TableID, l.Kind)
	}
	return LinkFields{SrcSectionRef: src.SectionID}, nil
}

// selected_by: like synced_with, but a summary widget may also drive its
// source table.
func resolveSelectedBy(ctx context.Context, meta MetaResolver, l layout.Link, src, tgt WidgetInfo) (LinkFields, error) {
	if src.TableRef == tgt.TableRef {
		return LinkFields{SrcSectionRef: src.SectionID}, nil
	}
	srcTable, err := meta.Table(ctx, src.TableID)
	if err != nil {
		return LinkFields{}, err
	}
	if srcTable.SummarySourceRef != 0 && srcTable.SummarySourceRef == tgt.TableRef {
		return LinkFields{SrcSectionRef: src.SectionID}, nil
	}
	return LinkFields{}, fmt.Errorf("widgets are on tables %q and %q; selected_by needs the same table or a summary relation",
		src.TableID, tgt.TableID)
}

// grouped_by: the named column must exist on both tables and the two sides
// are paired.
func resolveGroupedBy(ctx context.Context, meta MetaResolver, l layout.Link, src, tgt WidgetInfo) (LinkFields, error) {
	srcCol, err := meta.Column(ctx, src.TableID, l.Column)
	if err != nil {
		return LinkFields{}, err
	}
	tgtCol, err := meta.Column(ctx, tgt.TableID, l.Column)
	if err != nil {
		return LinkFields{}, err
	}
	if srcCol.Type != tgtCol.Type {
		return LinkFields{}, fmt.Errorf("column %q has type %q on table %q but %q on table %q",
			l.Column, srcCol.Type, src.TableID, tgtCol.Type, tgt.TableID)
	}
	return LinkFields{SrcSectionRef: src.SectionID, SrcColRef: srcCol.Ref, TargetColRef: tgtCol.Ref}, nil
}

// summary_of: the target widget's table must be a summary derivation of the
// source widget's table; an optional shared group-by column narrows it.
func resolveSummaryOf(ctx context.Context, meta MetaResolver, l layout.Link, src, tgt WidgetInfo) (LinkFields, error) {
	tgtTable, err := meta.Table(ctx, tgt.TableID)
	if err != nil {
		return LinkFields{}, err
	}
	if tgtTable.SummarySourceRef != src.TableRef {
		return LinkFields{}, fmt.Errorf("table %q is not a summary of table %q", tgt.TableID, src.TableID)
	}
	fields := LinkFields{SrcSectionRef: src.SectionID}
	if l.Column != "" {
		srcCol, err := meta.Column(ctx, src.TableID, l.Column)
		if err != nil {
			return LinkFields{}, err
		}
		tgtCol, err := meta.Column(ctx, tgt.TableID, l.Column)
		if err != nil {
			return LinkFields{}, err
		}
		fields.SrcColRef = srcCol.Ref
		fields.TargetColRef = tgtCol.Ref
	}
	return fields, nil
}

// custom: caller-chosen columns, existence checks only.
func resolveCustom(ctx context.Context, meta MetaResolver, l layout.Link, src, tgt WidgetInfo) (LinkFields, error) {
	fields := LinkFields{SrcSectionRef: src.SectionID}
	if l.SourceColumn != "" {
		col, err := meta.Column(ctx, src.TableID, l.SourceColumn)
		if err != nil {
			return LinkFields{}, err
		}
		fields.SrcColRef = col.Ref
	}
	if l.TargetColumn != "" {
		col, err := meta.Column(ctx, tgt.TableID, l.TargetColumn)
		if err != nil {
			return LinkFields{}, err
		}
		fields.TargetColRef = col.Ref
	}
	return fields, nil
}
