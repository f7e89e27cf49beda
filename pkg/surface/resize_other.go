//go:build !(darwin || freebsd || linux || netbsd || openbsd)

package surface

import "context"

// NotifyResize never fires on this platform. The channel is closed when
// ctx is done.
func NotifyResize(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}
