//go:build unix

package dashboard

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Signals 把 SIGCONT（fg 恢复）与 SIGUSR1 当作"页面重新可见"事件。
// ctx 结束后停止监听并关闭通道。
func Signals(ctx context.Context) <-chan struct{} {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGCONT, syscall.SIGUSR1)
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer signal.Stop(sig)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sig:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
