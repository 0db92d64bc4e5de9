package compiler_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/compiler"
	"github.com/gwhthompson/grist-mcp-server-sub003/internal/gristtest"
	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

func mustParse(t *testing.T, src string) *layout.Node {
	t.Helper()
	tree, err := layout.Parse([]byte(src))
	require.NoError(t, err)
	return tree
}

func TestFromLayoutSpecCreatesPage(t *testing.T) {
	backend := gristtest.NewBackend(gristtest.DefaultMeta())
	tree := mustParse(t, `{
		"cols": [
			{"table": "People", "widget": "grid"},
			{"table": "People", "widget": "card"}
		]
	}`)

	res, err := compiler.FromLayoutSpec(context.Background(), backend, backend.Meta, 0, "Team", tree, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.WidgetsCreated)
	assert.Len(t, res.SectionIDs, 2)
	assert.Zero(t, res.LinksApplied)

	view := backend.Views[res.ViewID]
	require.NotNil(t, view)
	assert.Equal(t, "Team", view.Name)
	require.NotNil(t, view.Box)
	// A cols root compiles to one wrapper level holding the two leaves.
	require.Len(t, view.Box.Children, 1)
	assert.Equal(t, res.SectionIDs, layout.BoxSectionIDs(view.Box))
}

func TestFromLayoutSpecForwardLinkReference(t *testing.T) {
	backend := gristtest.NewBackend(gristtest.DefaultMeta())
	// The link is attached to the first leaf and names the second, which
	// does not exist yet when the link is enqueued.
	tree := mustParse(t, `{
		"rows": [
			{"id": "people", "table": "People",
			 "links": [{"source": "people", "target": "orders", "link": {"type": "filtered_by", "column": "Customer"}}]},
			{"id": "orders", "table": "Orders"}
		]
	}`)

	res, err := compiler.FromLayoutSpec(context.Background(), backend, backend.Meta, 0, "Sales", tree, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.LinksApplied)

	require.Len(t, backend.Applied, 1)
	applied := backend.Applied[0]
	assert.Equal(t, res.SectionIDs[1], applied.SectionID, "link fields land on the target section")
	assert.Equal(t, res.SectionIDs[0], applied.Fields.SrcSectionRef)
	assert.Equal(t, 21, applied.Fields.TargetColRef)
}

func TestFromLayoutSpecDanglingLink(t *testing.T) {
	backend := gristtest.NewBackend(gristtest.DefaultMeta())
	tree := mustParse(t, `{"id": "only", "table": "People"}`)
	links := []layout.LinkSpec{{
		Source: "only",
		Target: "ghost",
		Link:   layout.Link{Kind: layout.LinkSyncedWith},
	}}

	_, err := compiler.FromLayoutSpec(context.Background(), backend, backend.Meta, 0, "Broken", tree, links)
	var dangling *compiler.DanglingRefError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "ghost", dangling.LocalID)
	assert.Empty(t, backend.Applied, "no link is applied when the batch has a dangling reference")
}

func TestFromLayoutSpecInvalidLinkAppliesNothing(t *testing.T) {
	backend := gristtest.NewBackend(gristtest.DefaultMeta())
	tree := mustParse(t, `{
		"cols": [
			{"id": "a", "table": "People"},
			{"id": "b", "table": "Orders"}
		],
		"links": [
			{"source": "a", "target": "b", "link": {"type": "filtered_by", "column": "Customer"}},
			{"source": "a", "target": "b", "link": {"type": "synced_with"}}
		]
	}`)

	_, err := compiler.FromLayoutSpec(context.Background(), backend, backend.Meta, 0, "Sales", tree, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs the same table")
	assert.Empty(t, backend.Applied, "resolution of the whole batch precedes the first apply")
}

func TestFromLayoutSpecExistingPane(t *testing.T) {
	backend := gristtest.NewBackend(gristtest.DefaultMeta())
	view := backend.AddView("Sales")
	existing := backend.AddSection(view.ID, "Orders", layout.WidgetGrid)

	tree := mustParse(t, `{
		"rows": [
			{"section": `+strconv.Itoa(existing)+`},
			{"table": "People", "widget": "card"}
		]
	}`)

	res, err := compiler.FromLayoutSpec(context.Background(), backend, backend.Meta, view.ID, "", tree, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.WidgetsCreated, "the existing pane is not re-created")
	assert.Equal(t, view.ID, res.ViewID)
	assert.Equal(t, []int{existing, res.SectionIDs[0]}, layout.BoxSectionIDs(view.Box))
}

func TestFromLayoutSpecUnknownExistingSection(t *testing.T) {
	backend := gristtest.NewBackend(gristtest.DefaultMeta())
	view := backend.AddView("Sales")

	tree := mustParse(t, `{"rows": [{"section": 999}, {"table": "People"}]}`)
	_, err := compiler.FromLayoutSpec(context.Background(), backend, backend.Meta, view.ID, "", tree, nil)
	var unknown *compiler.UnknownSectionError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 999, unknown.SectionID)
	assert.Zero(t, backend.CreateCalls, "validation precedes creation for the offending leaf")
}

func TestFromLayoutSpecExistingPaneOnNewPage(t *testing.T) {
	backend := gristtest.NewBackend(gristtest.DefaultMeta())
	tree := mustParse(t, `{"rows": [{"section": 5}, {"table": "People"}]}`)
	_, err := compiler.FromLayoutSpec(context.Background(), backend, backend.Meta, 0, "New", tree, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moving sections between views is not supported")
}

func TestFromLayoutSpecUnknownTable(t *testing.T) {
	backend := gristtest.NewBackend(gristtest.DefaultMeta())
	tree := mustParse(t, `{"table": "Nope"}`)
	_, err := compiler.FromLayoutSpec(context.Background(), backend, backend.Meta, 0, "New", tree, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "Nope" not found`)
}

func TestFromLayoutSpecChartColumns(t *testing.T) {
	backend := gristtest.NewBackend(gristtest.DefaultMeta())
	tree := mustParse(t, `{
		"table": "Orders",
		"widget": "chart",
		"chart": {"type": "bar", "x_axis": "Region", "series": ["Total"]}
	}`)

	res, err := compiler.FromLayoutSpec(context.Background(), backend, backend.Meta, 0, "Chart", tree, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.WidgetsCreated)
}
