// 包 deliver 负责把生成的文件交付给用户。
// 后端在边界处按能力选择：目标支持直接保存（BlobSaver）时走旧式路径，
// 否则走“对象 URL + 点击 + 撤销”的标准路径（Linker）。
package deliver

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"weather-dashboard/internal/logx"
)

// File 为待交付的文件。
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Deliverer 交付文件并返回保存位置。
type Deliverer interface {
	Deliver(ctx context.Context, f File) (string, error)
}

// BlobSaver 为一步到位的保存能力。
type BlobSaver interface {
	SaveBlob(ctx context.Context, name, mediaType string, data []byte) (string, error)
}

// Linker 为标准下载方式：先为数据创建临时对象，再以目标文件名“点击”下载，最后撤销临时对象。
type Linker interface {
	CreateObjectURL(ctx context.Context, data []byte, mediaType string) (string, error)
	Click(ctx context.Context, objectURL, filename string) (string, error)
	RevokeObjectURL(objectURL string) error
}

var ErrUnsupported = errors.New("target supports neither BlobSaver nor Linker")

// Select 根据 target 实现的能力选择后端，BlobSaver 优先。
func Select(target any) (Deliverer, error) {
	switch t := target.(type) {
	case BlobSaver:
		return blobBackend{saver: t}, nil
	case Linker:
		return linkBackend{linker: t}, nil
	default:
		return nil, fmt.Errorf("select delivery backend for %T: %w", target, ErrUnsupported)
	}
}

type blobBackend struct {
	saver BlobSaver
}

func (b blobBackend) Deliver(ctx context.Context, f File) (string, error) {
	loc, err := b.saver.SaveBlob(ctx, f.Name, f.MediaType, f.Data)
	if err != nil {
		return "", fmt.Errorf("save blob %s: %w", f.Name, err)
	}
	logx.Debugf("已保存 %s（%s）", loc, humanize.Bytes(uint64(len(f.Data))))
	return loc, nil
}

type linkBackend struct {
	linker Linker
}

// Deliver 创建临时对象后点击下载；无论成功与否，临时对象都会立即撤销。
func (b linkBackend) Deliver(ctx context.Context, f File) (string, error) {
	objectURL, err := b.linker.CreateObjectURL(ctx, f.Data, f.MediaType)
	if err != nil {
		return "", fmt.Errorf("create object url: %w", err)
	}
	defer func() {
		if err := b.linker.RevokeObjectURL(objectURL); err != nil {
			logx.Warnf("撤销临时对象失败：%s 错误=%v", objectURL, err)
		}
	}()
	loc, err := b.linker.Click(ctx, objectURL, f.Name)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", f.Name, err)
	}
	logx.Debugf("已下载 %s（%s）", loc, humanize.Bytes(uint64(len(f.Data))))
	return loc, nil
}
