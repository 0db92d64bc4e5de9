package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

// Arguments structs

type CreatePageArgs struct {
	Name   string            `json:"name" jsonschema:"required,description:Name of the page to create"`
	Layout map[string]any    `json:"layout" jsonschema:"required,description:Declarative layout tree: rows/cols splits with widget panes as leaves"`
	Links  []layout.LinkSpec `json:"links,omitempty" jsonschema:"description:Links between widgets in the layout, named by pane id"`
}

type GetLayoutArgs struct {
	ViewID int `json:"view_id" jsonschema:"required,description:The id of the page (view) to read"`
}

type SetLayoutArgs struct {
	ViewID int            `json:"view_id" jsonschema:"required,description:The id of the page (view) to modify"`
	Layout map[string]any `json:"layout" jsonschema:"required,description:Desired layout tree; leaves reference existing sections by id"`
	Remove []int          `json:"remove,omitempty" jsonschema:"description:Section ids to remove from the page"`
}

type WidgetLinkArg struct {
	Source int         `json:"source" jsonschema:"required,description:Section id of the widget driving the link"`
	Target int         `json:"target" jsonschema:"required,description:Section id of the widget being driven"`
	Link   layout.Link `json:"link" jsonschema:"required,description:Link descriptor (type plus any columns the type needs)"`
}

type LinkWidgetsArgs struct {
	ViewID int             `json:"view_id" jsonschema:"required,description:The id of the page (view) containing both widgets"`
	Links  []WidgetLinkArg `json:"links" jsonschema:"required,description:Links to apply"`
}

type ListTablesArgs struct{}

type DescribeTableArgs struct {
	Table string `json:"table" jsonschema:"required,description:Table id to describe"`
}

type ListPagesArgs struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "create_page",
		Description: "Creates a new page from a declarative layout of rows, columns and widgets, optionally linking widgets together",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args CreatePageArgs) (*mcp.CallToolResult, any, error) {
		tree, err := parseLayout(args.Layout)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		result, err := s.exec.CreatePage(ctx, args.Name, tree, args.Links)
		if err != nil {
			return errorResult(fmt.Sprintf("create_page failed: %v", err)), nil, nil
		}
		return jsonResult(result), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_layout",
		Description: "Returns a page's layout as a declarative tree of rows, columns and existing widget sections",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetLayoutArgs) (*mcp.CallToolResult, any, error) {
		tree, err := s.exec.GetLayout(ctx, args.ViewID)
		if err != nil {
			return errorResult(fmt.Sprintf("get_layout failed: %v", err)), nil, nil
		}
		return jsonResult(tree), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_layout",
		Description: "Rearranges a page's existing widgets and optionally removes some; never creates widgets",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SetLayoutArgs) (*mcp.CallToolResult, any, error) {
		tree, err := parseLayout(args.Layout)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		result, err := s.exec.SetLayout(ctx, args.ViewID, tree, args.Remove)
		if err != nil {
			return errorResult(fmt.Sprintf("set_layout failed: %v", err)), nil, nil
		}
		return jsonResult(result), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "link_widgets",
		Description: "Wires widgets on a page together so one widget's selection drives another's rows or cursor",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args LinkWidgetsArgs) (*mcp.CallToolResult, any, error) {
		specs := make([]layout.LinkSpec, 0, len(args.Links))
		for _, l := range args.Links {
			specs = append(specs, layout.LinkSpec{
				Source: strconv.Itoa(l.Source),
				Target: strconv.Itoa(l.Target),
				Link:   l.Link,
			})
		}
		result, err := s.exec.LinkWidgets(ctx, args.ViewID, specs)
		if err != nil {
			return errorResult(fmt.Sprintf("link_widgets failed: %v", err)), nil, nil
		}
		return jsonResult(result), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_tables",
		Description: "Lists the tables of the document",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListTablesArgs) (*mcp.CallToolResult, any, error) {
		tables, err := s.grist.Tables(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("list_tables failed: %v", err)), nil, nil
		}
		type tableInfo struct {
			ID        string `json:"id"`
			SummaryOf int    `json:"summary_of,omitempty"`
		}
		out := make([]tableInfo, 0, len(tables))
		for _, t := range tables {
			out = append(out, tableInfo{ID: t.ID, SummaryOf: t.SummarySourceRef})
		}
		return jsonResult(out), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "describe_table",
		Description: "Returns the columns of a table: id, label and type",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DescribeTableArgs) (*mcp.CallToolResult, any, error) {
		cols, err := s.grist.Columns(ctx, args.Table)
		if err != nil {
			return errorResult(fmt.Sprintf("describe_table failed: %v", err)), nil, nil
		}
		type columnInfo struct {
			ID    string `json:"id"`
			Label string `json:"label,omitempty"`
			Type  string `json:"type"`
		}
		out := make([]columnInfo, 0, len(cols))
		for _, c := range cols {
			out = append(out, columnInfo{ID: c.ID, Label: c.Label, Type: c.Type})
		}
		return jsonResult(out), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_pages",
		Description: "Lists the document's pages with their widget counts",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListPagesArgs) (*mcp.CallToolResult, any, error) {
		views, err := s.grist.Views(ctx)
		if err != nil {
			return errorResult(fmt.Sprintf("list_pages failed: %v", err)), nil, nil
		}
		type pageInfo struct {
			ViewID  int    `json:"view_id"`
			Name    string `json:"name"`
			Widgets int    `json:"widgets"`
		}
		out := make([]pageInfo, 0, len(views))
		for _, v := range views {
			sections, err := s.grist.ListSections(ctx, v.ID)
			if err != nil {
				return errorResult(fmt.Sprintf("list_pages failed on view %d: %v", v.ID, err)), nil, nil
			}
			out = append(out, pageInfo{ViewID: v.ID, Name: v.Name, Widgets: len(sections)})
		}
		return jsonResult(out), nil, nil
	})
}

// parseLayout round-trips the decoded tool argument through the layout
// parser so tool input gets the same validation as any other source.
func parseLayout(raw map[string]any) (*layout.Node, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("layout is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	return layout.Parse(data)
}
