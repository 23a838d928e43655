package deliver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	blobScheme   = "blob:"
	stagePrefix  = ".wxdash-"
	stageSuffix  = ".part"
	maxNameTries = 1000
)

// Dir 以本地目录作为下载目标，实现 Linker：
// 临时对象是目录中的隐藏 .part 文件，点击即以不覆盖的方式落成最终文件名。
type Dir struct {
	root string
}

// NewDir 创建下载目录（不存在时自动创建）。
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir %s: %w", root, err)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) CreateObjectURL(_ context.Context, data []byte, _ string) (string, error) {
	p := filepath.Join(d.root, stagePrefix+uuid.NewString()+stageSuffix)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("stage object: %w", err)
	}
	return blobScheme + p, nil
}

// Click 将临时对象保存为 filename；重名时依次尝试 "name (1).ext"、"name (2).ext" ...
func (d *Dir) Click(ctx context.Context, objectURL, filename string) (string, error) {
	src, err := d.stagedPath(objectURL)
	if err != nil {
		return "", err
	}
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < maxNameTries; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		cand := name
		if i > 0 {
			cand = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		dst := filepath.Join(d.root, cand)
		err := place(src, dst)
		if err == nil {
			return dst, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free filename for %s", name)
}

// RevokeObjectURL 删除临时对象，已不存在时视为成功。
func (d *Dir) RevokeObjectURL(objectURL string) error {
	p, err := d.stagedPath(objectURL)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Dir) stagedPath(objectURL string) (string, error) {
	p, ok := strings.CutPrefix(objectURL, blobScheme)
	if !ok || filepath.Dir(p) != filepath.Clean(d.root) || !strings.HasPrefix(filepath.Base(p), stagePrefix) {
		return "", fmt.Errorf("unknown object url %q", objectURL)
	}
	return p, nil
}

// place 以不覆盖的方式把 src 落到 dst：优先硬链接，文件系统不支持时退回独占创建后复制。
func place(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
