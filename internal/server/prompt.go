package server

// usageGuidelines is served as the grist://usage-guidelines resource.
const usageGuidelines = `# Grist Page Server

This server builds and edits Grist pages declaratively. A page is a tree of
` + "`rows`" + ` and ` + "`cols`" + ` splits whose leaves are widgets.

## Describing a layout

A new widget leaf names a table and a widget kind:

    {"cols": [
      {"id": "people", "table": "People", "widget": "grid"},
      {"id": "detail", "table": "People", "widget": "card"}
    ]}

Widget kinds: grid, card, card_list, chart, custom, form. Charts take a
` + "`chart`" + ` object with ` + "`type`" + `, ` + "`x_axis`" + ` and ` + "`series`" + `. An optional ` + "`weight`" + `
on any node sets its relative size.

An existing widget is referenced by section id instead: ` + "`{\"section\": 12}`" + `.
` + "`get_layout`" + ` returns trees in this form; only geometry and identity survive
a round trip, never the original creation parameters.

## Linking widgets

Links name panes by their ` + "`id`" + ` (in ` + "`create_page`" + `) or section id (in
` + "`link_widgets`" + `). Link types:

- ` + "`filtered_by`" + ` — target rows filtered by the source selection through a
  reference column on the target (` + "`column`" + ` required)
- ` + "`references`" + ` — target cursor follows a reference column on the source
  (` + "`column`" + ` required)
- ` + "`synced_with`" + ` — same-table widgets share cursor position
- ` + "`selected_by`" + ` — target shows the record selected in the source
- ` + "`grouped_by`" + ` — pairs a same-named column on both widgets (` + "`column`" + ` required)
- ` + "`summary_of`" + ` — target table must be a summary of the source table
- ` + "`custom`" + ` — explicit ` + "`source_column`" + `/` + "`target_column`" + `

## Workflow

1. ` + "`list_tables`" + ` and ` + "`describe_table`" + ` to learn the schema.
2. ` + "`create_page`" + ` with a layout tree and links.
3. ` + "`get_layout`" + ` to inspect, ` + "`set_layout`" + ` to rearrange or remove widgets,
   ` + "`link_widgets`" + ` to rewire.

Failures do not roll back widgets already created; inspect with
` + "`get_layout`" + ` and repair with ` + "`set_layout`" + `. Errors name the offending
id, table or column.
`
