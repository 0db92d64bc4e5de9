package grist

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwhthompson/grist-mcp-server-sub003/internal/compiler"
	"github.com/gwhthompson/grist-mcp-server-sub003/internal/layout"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		DocID:    "doc1",
		CacheTTL: time.Minute,
		Logger:   log.New(io.Discard),
	})
	require.NoError(t, err)
	return c
}

func writeRecords(w http.ResponseWriter, recs ...map[string]any) {
	json.NewEncoder(w).Encode(map[string]any{"records": recs})
}

func rec(id int, fields map[string]any) map[string]any {
	return map[string]any{"id": id, "fields": fields}
}

// decodeActions reads an apply request body into generic action lists.
func decodeActions(t *testing.T, r *http.Request) []any {
	t.Helper()
	var actions []any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&actions))
	return actions
}

func TestDoJSONRetriesServerError(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		if n == 1 {
			http.Error(w, "backend hiccup", http.StatusInternalServerError)
			return
		}
		writeRecords(w, rec(1, map[string]any{"tableId": "People"}))
	}))

	tables, err := c.Tables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "People", tables[0].ID)
	assert.Equal(t, 2, hits)
}

func TestDoJSONClientErrorIsNotRetried(t *testing.T) {
	hits := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "document not found", http.StatusNotFound)
	}))

	_, err := c.Tables(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "document not found", apiErr.Body)
	assert.Equal(t, 1, hits)
}

func TestDoJSONSendsAuthHeader(t *testing.T) {
	var got string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeRecords(w)
	}))

	_, err := c.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", got)
}

func TestMetadataCacheClearedByMutation(t *testing.T) {
	recordHits := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/docs/doc1/apply" {
			json.NewEncoder(w).Encode(map[string]any{"actionNum": 1, "retValues": []any{nil}})
			return
		}
		recordHits++
		writeRecords(w, rec(1, map[string]any{"tableId": "People"}))
	}))

	ctx := context.Background()
	_, err := c.Tables(ctx)
	require.NoError(t, err)
	_, err = c.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recordHits, "second listing is served from cache")

	require.NoError(t, c.ApplyLink(ctx, 42, compiler.LinkFields{SrcSectionRef: 7}))

	_, err = c.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, recordHits, "mutation invalidates cached metadata")
}

func TestCreateSectionActions(t *testing.T) {
	var batches [][]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/docs/doc1/apply", r.URL.Path)
		batches = append(batches, decodeActions(t, r))
		if len(batches) == 1 {
			json.NewEncoder(w).Encode(map[string]any{
				"actionNum": 1,
				"retValues": []any{map[string]any{"viewRef": 7, "sectionRef": 42}},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"actionNum": 2, "retValues": []any{nil}})
	}))

	created, err := c.CreateSection(context.Background(), compiler.CreateSectionRequest{
		TableID:  "People",
		TableRef: 2,
		ViewName: "Team",
		Widget:   layout.WidgetCard,
		Title:    "Roster",
	})
	require.NoError(t, err)
	assert.Equal(t, compiler.CreatedSection{ViewID: 7, SectionID: 42}, created)

	require.Len(t, batches, 2)
	assert.Equal(t, []any{
		[]any{"CreateViewSection", float64(2), float64(0), "single", nil, nil},
	}, batches[0])
	assert.Equal(t, []any{
		[]any{"UpdateRecord", "_grist_Views", float64(7), map[string]any{"name": "Team"}},
		[]any{"UpdateRecord", "_grist_Views_section", float64(42), map[string]any{"title": "Roster"}},
	}, batches[1])
}

func TestCreateSectionUnknownWidget(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	_, err := c.CreateSection(context.Background(), compiler.CreateSectionRequest{Widget: "gauge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown widget kind "gauge"`)
}

func TestColumnsFilterHiddenAndResolveLabels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/docs/doc1/tables/_grist_Tables/records":
			writeRecords(w, rec(2, map[string]any{"tableId": "Orders"}))
		case "/api/docs/doc1/tables/_grist_Tables_column/records":
			writeRecords(w,
				rec(20, map[string]any{"parentId": 2, "colId": "manualSort", "label": "manualSort", "type": "ManualSortPos"}),
				rec(21, map[string]any{"parentId": 2, "colId": "Customer", "label": "Customer", "type": "Ref:People"}),
				rec(22, map[string]any{"parentId": 2, "colId": "Total", "label": "Order Total", "type": "Numeric"}),
				rec(23, map[string]any{"parentId": 2, "colId": "gristHelper_Display", "label": "", "type": "Any"}),
				rec(30, map[string]any{"parentId": 9, "colId": "Other", "label": "Other", "type": "Text"}),
			)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	ctx := context.Background()
	cols, err := c.Columns(ctx, "Orders")
	require.NoError(t, err)
	require.Len(t, cols, 2, "helper columns and other tables are filtered out")
	assert.Equal(t, "Customer", cols[0].ID)
	assert.Equal(t, "Total", cols[1].ID)

	byLabel, err := c.Column(ctx, "Orders", "Order Total")
	require.NoError(t, err)
	assert.Equal(t, 22, byLabel.Ref)

	_, err = c.Column(ctx, "Orders", "Amount")
	var notFound *compiler.ColumnNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Orders", notFound.Table)
	assert.Equal(t, []string{"Customer", "Total"}, notFound.Available)
}

func TestGetBoxLayout(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeRecords(w,
			rec(5, map[string]any{"name": "Team", "layoutSpec": `{"children":[{"leaf":101},{"leaf":102,"size":2}]}`}),
			rec(6, map[string]any{"name": "Blank", "layoutSpec": ""}),
		)
	}))

	ctx := context.Background()
	box, err := c.GetBoxLayout(ctx, 5)
	require.NoError(t, err)
	require.Len(t, box.Children, 2)
	assert.Equal(t, 101, box.Children[0].Leaf)
	assert.Equal(t, 2.0, box.Children[1].Size)

	box, err = c.GetBoxLayout(ctx, 6)
	require.NoError(t, err)
	assert.Nil(t, box, "a view without a stored layout reads as nil")

	_, err = c.GetBoxLayout(ctx, 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "view 9 not found")
}

func TestListSections(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/docs/doc1/tables/_grist_Views_section/records":
			writeRecords(w,
				rec(101, map[string]any{"parentId": 5, "tableRef": 2, "parentKey": "record", "title": "Orders"}),
				rec(102, map[string]any{"parentId": 5, "tableRef": 1, "parentKey": "single", "linkSrcSectionRef": 101, "linkTargetColRef": 21}),
				rec(103, map[string]any{"parentId": 8, "tableRef": 1, "parentKey": "record"}),
			)
		case "/api/docs/doc1/tables/_grist_Tables/records":
			writeRecords(w,
				rec(1, map[string]any{"tableId": "People"}),
				rec(2, map[string]any{"tableId": "Orders"}),
			)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	sections, err := c.ListSections(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, compiler.WidgetInfo{
		SectionID: 101, ViewID: 5, TableRef: 2, TableID: "Orders",
		Widget: layout.WidgetGrid, Title: "Orders",
	}, sections[0])
	assert.Equal(t, layout.WidgetCard, sections[1].Widget)
	assert.Equal(t, compiler.LinkFields{SrcSectionRef: 101, TargetColRef: 21}, sections[1].Link)
}

func TestSetBoxLayoutEncodesSpec(t *testing.T) {
	var batch []any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		batch = decodeActions(t, r)
		json.NewEncoder(w).Encode(map[string]any{"actionNum": 1, "retValues": []any{nil}})
	}))

	box := &layout.Box{Children: []*layout.Box{{Leaf: 101}, {Leaf: 102, Size: 2}}}
	require.NoError(t, c.SetBoxLayout(context.Background(), 5, box))

	require.Len(t, batch, 1)
	action, ok := batch[0].([]any)
	require.True(t, ok)
	assert.Equal(t, "UpdateRecord", action[0])
	assert.Equal(t, "_grist_Views", action[1])
	fields, ok := action[3].(map[string]any)
	require.True(t, ok)
	assert.JSONEq(t, `{"children":[{"leaf":101},{"leaf":102,"size":2}]}`, fields["layoutSpec"].(string))
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := newMemoryCache()
	cache.Set("k", []byte("v"), time.Millisecond)
	if data, ok := cache.Get("k"); ok {
		assert.Equal(t, []byte("v"), data)
	}
	time.Sleep(5 * time.Millisecond)
	_, ok := cache.Get("k")
	assert.False(t, ok, "expired entries read as misses")

	cache.Set("k", []byte("v"), 0)
	_, ok = cache.Get("k")
	assert.True(t, ok, "zero ttl never expires")
	cache.Clear()
	_, ok = cache.Get("k")
	assert.False(t, ok)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{DocID: "doc1"})
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "http://localhost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document id")
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(http.StatusTooManyRequests))
	assert.True(t, retryable(http.StatusBadGateway))
	assert.False(t, retryable(http.StatusBadRequest))
	assert.False(t, retryable(http.StatusForbidden))
}
