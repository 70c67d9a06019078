package session

import "context"

// CloseOnCancel closes the connection as soon as the context is cancelled,
// unblocking any in-flight read or write. The returned release func must be
// called when the session ends normally.
func CloseOnCancel(ctx context.Context, c *Conn) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
