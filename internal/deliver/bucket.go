package deliver

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Bucket 以 S3 兼容对象存储作为下载目标，实现 BlobSaver。
type Bucket struct {
	mc     *minio.Client
	bucket string
	prefix string
	now    func() time.Time
}

// BucketOptions 为对象存储连接参数。
type BucketOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseTLS    bool
	Region    string
	Bucket    string
	Prefix    string
}

// NewBucket 连接对象存储并确保 bucket 存在。
func NewBucket(ctx context.Context, o BucketOptions) (*Bucket, error) {
	mc, err := minio.New(o.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure: o.UseTLS,
		Region: o.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client %s: %w", o.Endpoint, err)
	}
	exists, err := mc.BucketExists(ctx, o.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", o.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, o.Bucket, minio.MakeBucketOptions{Region: o.Region}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", o.Bucket, err)
		}
	}
	return &Bucket{mc: mc, bucket: o.Bucket, prefix: o.Prefix, now: time.Now}, nil
}

// SaveBlob 上传为新对象，对象名带时间与随机后缀，重复导出不会互相覆盖。
func (b *Bucket) SaveBlob(ctx context.Context, name, mediaType string, data []byte) (string, error) {
	key := ObjectKey(b.prefix, b.now(), uuid.NewString()[:8], name)
	_, err := b.mc.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mediaType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return "s3://" + b.bucket + "/" + key, nil
}

// ObjectKey 生成 prefix/year=YYYY/month=MM/day=DD/HHMMSS_<id>_<name>。
func ObjectKey(prefix string, t time.Time, id, name string) string {
	t = t.UTC()
	file := fmt.Sprintf("%s_%s_%s", t.Format("150405"), id, path.Base(name))
	return path.Join(prefix,
		fmt.Sprintf("year=%04d", t.Year()),
		fmt.Sprintf("month=%02d", t.Month()),
		fmt.Sprintf("day=%02d", t.Day()),
		file)
}
