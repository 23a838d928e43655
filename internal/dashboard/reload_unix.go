//go:build unix

package dashboard

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"weather-dashboard/internal/logx"
)

// ExecReloader 以相同的参数与环境重新执行当前程序，成功时不返回。
// 打开的文件均带 O_CLOEXEC，替换进程时由内核关闭；exec 失败时资源保持可用。
type ExecReloader struct{}

func (ExecReloader) Reload(context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	logx.Infof("重新执行：%s", exe)
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", exe, err)
	}
	return nil
}
