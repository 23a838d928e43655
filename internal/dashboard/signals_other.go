//go:build !unix

package dashboard

import "context"

// Signals 在不支持作业控制信号的平台上只在 ctx 结束时关闭。
func Signals(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}
