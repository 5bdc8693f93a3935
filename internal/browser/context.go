// internal/browser/context.go
package browser

import "context"

// CombineContext derives a context from parentCtx that is additionally
// canceled when secondaryCtx is done. chromedp contexts carry the CDP target,
// so every page operation must derive from the session context while still
// honoring the caller's deadline; this ties the two lifecycles together.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
			// Already canceled through the parent or a direct call.
		}
	}()

	return combinedCtx, cancel
}
