// Command autobuy places dropshipping orders on supplier sites through a
// Chrome it drives over the DevTools protocol.
//
// Usage:
//
//	autobuy serve -c autobuy.yaml             # HTTP + MCP, resumes orders on every page load
//	autobuy order -f order.json               # place one order and wait for its outcome
//	autobuy history                           # list recorded outcomes
//	autobuy retry <order-id>                  # re-submit a recorded order
//	autobuy status <order-id>                 # read supplier-side status
//	autobuy detect <url>                      # show the platform and dispatch tier of a URL
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "autobuy:", err)
		os.Exit(1)
	}
}
