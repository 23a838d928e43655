//go:build !unix

package dashboard

import (
	"context"
	"errors"
)

// ExecReloader 在该平台上不可用，请使用 REFRESH.reload: soft。
type ExecReloader struct{}

func (ExecReloader) Reload(context.Context) error {
	return errors.New("exec reload is not supported on this platform")
}
