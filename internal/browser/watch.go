package browser

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// WatchLoads calls onLoad once per Page.loadEventFired on page until ctx is
// done. Handlers run one at a time on a separate goroutine so they may drive
// the page themselves; loads that fire while a handler is running are
// coalesced into a single follow-up call.
func WatchLoads(ctx context.Context, page *rod.Page, onLoad func(ctx context.Context)) error {
	pending := make(chan struct{}, 1)

	wait := page.Context(ctx).EachEvent(func(*proto.PageLoadEventFired) {
		select {
		case pending <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-pending:
				onLoad(ctx)
			}
		}
	}()

	wait()
	<-done
	return ctx.Err()
}
