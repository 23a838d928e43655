// 包 ui 提供终端上的错误区域与瞬时提示。
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"weather-dashboard/internal/logx"
)

// Region 为导出错误的展示区域；并发写入时以最后一次为准。
type Region struct {
	mu  sync.Mutex
	w   io.Writer
	msg string
}

// NewRegion 创建写入 w 的错误区域，w 为 nil 时只记录不输出。
func NewRegion(w io.Writer) *Region {
	return &Region{w: w}
}

// Clear 清空当前错误。
func (r *Region) Clear() {
	r.mu.Lock()
	r.msg = ""
	r.mu.Unlock()
}

// Show 展示错误信息，多行信息逐行输出。
func (r *Region) Show(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msg = msg
	if r.w == nil {
		return
	}
	for _, line := range strings.Split(msg, "\n") {
		fmt.Fprintf(r.w, "错误: %s\n", line)
	}
}

// Message 返回当前展示的错误，空串表示没有错误。
func (r *Region) Message() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msg
}

// Notice 为自动消失的提示：终端上到期后擦除该行，其他输出只写一次。
type Notice struct {
	mu    sync.Mutex
	w     io.Writer
	erase bool
	wg    sync.WaitGroup
}

// NewNotice 创建写入 w 的提示器。
func NewNotice(w io.Writer) *Notice {
	return &Notice{w: w, erase: logx.IsTerminal(w)}
}

// Notify 立即输出 msg，ttl 到期后撤下。
func (n *Notice) Notify(msg string, ttl time.Duration) {
	n.mu.Lock()
	if n.erase {
		fmt.Fprintf(n.w, "\r\x1b[K%s", msg)
	} else {
		fmt.Fprintln(n.w, msg)
	}
	n.mu.Unlock()

	n.wg.Add(1)
	time.AfterFunc(ttl, func() {
		defer n.wg.Done()
		if !n.erase {
			return
		}
		n.mu.Lock()
		fmt.Fprint(n.w, "\r\x1b[K")
		n.mu.Unlock()
	})
}

// Wait 等待所有提示撤下。
func (n *Notice) Wait() { n.wg.Wait() }
