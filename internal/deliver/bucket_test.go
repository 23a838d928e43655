package deliver_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-dashboard/internal/deliver"
)

// s3Stub 只实现 Bucket 用到的几个 S3 接口：HEAD/PUT bucket、PUT object、GET ?location。
type s3Stub struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string]s3Object
	deny    bool
}

type s3Object struct {
	contentType string
	body        []byte
}

func newS3Stub(t *testing.T, buckets ...string) (*s3Stub, string) {
	t.Helper()
	s := &s3Stub{buckets: map[string]bool{}, objects: map[string]s3Object{}}
	for _, b := range buckets {
		s.buckets[b] = true
	}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, strings.TrimPrefix(srv.URL, "http://")
}

func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, object, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && r.URL.Query().Has("location"):
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, `<LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
	case r.Method == http.MethodHead && object == "":
		if !s.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && object == "":
		s.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		if s.deny {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		s.objects[bucket+"/"+object] = s3Object{contentType: r.Header.Get("Content-Type"), body: body}
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (s *s3Stub) snapshot() (map[string]bool, map[string]s3Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buckets := make(map[string]bool, len(s.buckets))
	for k, v := range s.buckets {
		buckets[k] = v
	}
	objects := make(map[string]s3Object, len(s.objects))
	for k, v := range s.objects {
		objects[k] = v
	}
	return buckets, objects
}

func bucketOptions(endpoint string) deliver.BucketOptions {
	return deliver.BucketOptions{
		Endpoint:  endpoint,
		AccessKey: "minio",
		SecretKey: "minio123",
		Region:    "us-east-1",
		Bucket:    "weather-exports",
		Prefix:    "exports",
	}
}

func TestBucket_SaveBlob(t *testing.T) {
	stub, endpoint := newS3Stub(t, "weather-exports")
	b, err := deliver.NewBucket(context.Background(), bucketOptions(endpoint))
	require.NoError(t, err)

	d, err := deliver.Select(b)
	require.NoError(t, err)
	data := []byte("ID,JD\n1,2460311.5\n")
	loc, err := d.Deliver(context.Background(), deliver.File{Name: "weather_data.csv", MediaType: "text/csv", Data: data})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(loc, "s3://weather-exports/exports/year="), loc)
	assert.True(t, strings.HasSuffix(loc, "_weather_data.csv"), loc)

	_, objects := stub.snapshot()
	require.Len(t, objects, 1)
	obj, ok := objects[strings.TrimPrefix(loc, "s3://")]
	require.True(t, ok, loc)
	assert.Equal(t, "text/csv", obj.contentType)
	// 非 TLS 连接下 minio 可能使用分块签名，正文里带有分块头
	assert.Contains(t, string(obj.body), string(data))
}

func TestBucket_RepeatedSavesGetDistinctKeys(t *testing.T) {
	stub, endpoint := newS3Stub(t, "weather-exports")
	b, err := deliver.NewBucket(context.Background(), bucketOptions(endpoint))
	require.NoError(t, err)

	first, err := b.SaveBlob(context.Background(), "weather_data.csv", "text/csv", []byte("a"))
	require.NoError(t, err)
	second, err := b.SaveBlob(context.Background(), "weather_data.csv", "text/csv", []byte("b"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	_, objects := stub.snapshot()
	assert.Len(t, objects, 2)
}

func TestBucket_CreatesMissingBucket(t *testing.T) {
	stub, endpoint := newS3Stub(t)
	_, err := deliver.NewBucket(context.Background(), bucketOptions(endpoint))
	require.NoError(t, err)

	buckets, _ := stub.snapshot()
	assert.True(t, buckets["weather-exports"])
}

func TestBucket_UploadRejected(t *testing.T) {
	stub, endpoint := newS3Stub(t, "weather-exports")
	stub.mu.Lock()
	stub.deny = true
	stub.mu.Unlock()
	b, err := deliver.NewBucket(context.Background(), bucketOptions(endpoint))
	require.NoError(t, err)

	loc, err := b.SaveBlob(context.Background(), "weather_data.csv", "text/csv", []byte("x"))
	assert.Error(t, err)
	assert.Empty(t, loc)
	_, objects := stub.snapshot()
	assert.Empty(t, objects)
}
