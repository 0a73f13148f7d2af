package checkout

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/autobuy/bridge"
	"github.com/hazyhaar/autobuy/dom"
	"github.com/hazyhaar/autobuy/order"
	"github.com/hazyhaar/autobuy/platform"
)

func mcpSession(t *testing.T, page dom.Page) (*mcp.ClientSession, *harness) {
	t.Helper()
	h := newHarness(t, Config{})
	r := bridge.New()
	NewAdapter(h.engine, func(context.Context) (dom.Page, error) { return page, nil }).RegisterBridge(r)

	impl := &mcp.Implementation{Name: "autobuy-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	RegisterMCP(srv, r)

	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session, h
}

func callTool(t *testing.T, s *mcp.ClientSession, name string, args map[string]any, v any) {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if res.IsError {
		t.Fatalf("%s: tool error %+v", name, res.Content)
	}
	txt := res.Content[0].(*mcp.TextContent).Text
	if err := json.Unmarshal([]byte(txt), v); err != nil {
		t.Fatalf("%s: decode %s: %v", name, txt, err)
	}
}

func TestMCP_ListTools(t *testing.T) {
	s, _ := mcpSession(t, browser(aliProduct))
	res, err := s.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		"autobuy_process_order": false, "autobuy_check_status": false, "autobuy_history": false,
		"autobuy_retry_order": false, "autobuy_inflight": false, "autobuy_detect": false,
	}
	for _, tool := range res.Tools {
		want[tool.Name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("tool %s not listed", name)
		}
	}
}

func TestMCP_ProcessOrderAndHistory(t *testing.T) {
	s, _ := mcpSession(t, browser(dhgateProduct))

	var out order.Outcome
	callTool(t, s, "autobuy_process_order", map[string]any{
		"order": map[string]any{"id": "o-mcp", "supplierUrl": dhgateProduct, "quantity": 1},
	}, &out)
	if out.Status != order.StatusCartFilled {
		t.Fatalf("outcome = %+v", out)
	}

	var hist []order.HistoryEntry
	callTool(t, s, "autobuy_history", map[string]any{}, &hist)
	if len(hist) != 1 || hist[0].OrderID != "o-mcp" {
		t.Fatalf("history = %+v", hist)
	}
}

func TestMCP_Detect(t *testing.T) {
	s, _ := mcpSession(t, browser(aliProduct))

	var d Detection
	callTool(t, s, "autobuy_detect", map[string]any{"url": aliProduct}, &d)
	if d.Platform != platform.AliExpress || d.Tier != platform.TierFull {
		t.Fatalf("detection = %+v", d)
	}
}
