package checkout

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/autobuy/bridge"
)

// RegisterMCP exposes the bridge messages registered by RegisterBridge as
// MCP tools. Every tool call goes through r.
func RegisterMCP(srv *mcp.Server, r *bridge.Router) {
	orderID := map[string]any{"type": "string", "description": "Order id as given in PROCESS_ORDER"}

	r.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "autobuy_process_order",
		Description: "Place an order on the supplier site it targets. Navigates first when the browser is on another site; the order then resumes on the next page load.",
		InputSchema: bridge.InputSchema(map[string]any{
			"order": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":             map[string]any{"type": "string"},
					"orderNumber":    map[string]any{"type": "string", "description": "Storefront order number"},
					"supplierUrl":    map[string]any{"type": "string", "description": "Absolute product page URL"},
					"quantity":       map[string]any{"type": "integer", "minimum": 1},
					"variant":        map[string]any{"type": "object", "properties": map[string]any{"color": map[string]any{"type": "string"}, "size": map[string]any{"type": "string"}}},
					"shippingMethod": map[string]any{"type": "string"},
					"couponCode":     map[string]any{"type": "string"},
					"promoCode":      map[string]any{"type": "string"},
					"shippingAddress": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name": map[string]any{"type": "string"}, "address1": map[string]any{"type": "string"},
							"address2": map[string]any{"type": "string"}, "city": map[string]any{"type": "string"},
							"state": map[string]any{"type": "string"}, "zip": map[string]any{"type": "string"},
							"country": map[string]any{"type": "string"}, "phone": map[string]any{"type": "string"},
						},
					},
				},
				"required": []string{"id", "supplierUrl"},
			},
			"degraded": map[string]any{"type": "boolean", "description": "Only fill the cart even if full checkout is supported"},
		}, []string{"order"}),
	}, bridge.ProcessOrder)

	r.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "autobuy_check_status",
		Description: "Read the supplier-side status and tracking number of a placed order. Returns null when unavailable.",
		InputSchema: bridge.InputSchema(map[string]any{"orderId": orderID}, []string{"orderId"}),
	}, bridge.CheckOrderStatus)

	r.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "autobuy_history",
		Description: "List the most recent order outcomes, newest first.",
		InputSchema: bridge.InputSchema(map[string]any{}, nil),
	}, bridge.GetOrderHistory)

	r.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "autobuy_retry_order",
		Description: "Re-submit an order recorded in history. Each order may be retried at most 3 times.",
		InputSchema: bridge.InputSchema(map[string]any{"orderId": orderID}, []string{"orderId"}),
	}, bridge.RetryOrder)

	r.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "autobuy_inflight",
		Description: "Show the order waiting for a page load on its supplier site, or null.",
		InputSchema: bridge.InputSchema(map[string]any{}, nil),
	}, bridge.GetInFlight)

	r.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "autobuy_detect",
		Description: "Identify the supplier platform of a URL and how much of its checkout can be automated.",
		InputSchema: bridge.InputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Product page URL"},
		}, []string{"url"}),
	}, bridge.DetectPlatform)
}
