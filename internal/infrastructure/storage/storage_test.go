package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveReadDelete(t *testing.T) {
	baseDir := t.TempDir()
	fs := NewLocalFileStorage(baseDir, zap.NewNop())
	ctx := context.Background()
	path := "tenant-1/purchase_order/PO-ACME-2026-000001.xlsx"

	t.Run("saves into nested directories", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, path, []byte("v1")))
		assert.FileExists(t, filepath.Join(baseDir, path))
		assert.True(t, fs.Exists(ctx, path))
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, path, []byte("v2")))

		content, err := fs.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), content)

		entries, err := os.ReadDir(filepath.Join(baseDir, "tenant-1", "purchase_order"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, fs.Delete(ctx, path))
		require.NoError(t, fs.Delete(ctx, path))
		assert.False(t, fs.Exists(ctx, path))
	})
}

func TestLocalFileStorage_RejectsEscapingPaths(t *testing.T) {
	fs := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for _, p := range []string{"../outside.xlsx", "tenant-1/../../outside.xlsx", "."} {
		t.Run(p, func(t *testing.T) {
			err := fs.Save(ctx, p, []byte("x"))
			assert.ErrorIs(t, err, ErrPathEscapesBase)
		})
	}
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = body
	f.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage(t *testing.T) {
	client := newFakeS3()
	store := NewS3Storage(client, S3Config{Bucket: "docs", Prefix: "/archive/"}, zap.NewNop())
	ctx := context.Background()
	path := "tenant-1/rfq/RFQ-ACME-2026-000003.xlsx"

	require.NoError(t, store.Save(ctx, path, []byte("sheet")))
	key := "archive/" + path
	assert.Contains(t, client.objects, key)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", client.types[key])
	assert.True(t, store.Exists(ctx, path))
	assert.Equal(t, "s3://docs/"+key, store.GetFullPath(path))

	content, err := store.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("sheet"), content)

	require.NoError(t, store.Delete(ctx, path))
	assert.False(t, store.Exists(ctx, path))

	_, err = store.Read(ctx, path)
	assert.Error(t, err)
}

func TestS3Storage_KeysCannotClimbOutOfPrefix(t *testing.T) {
	client := newFakeS3()
	store := NewS3Storage(client, S3Config{Bucket: "docs", Prefix: "archive"}, zap.NewNop())

	require.NoError(t, store.Save(context.Background(), "../../etc/x.json", []byte("{}")))
	assert.Contains(t, client.objects, "archive/etc/x.json")
	assert.Equal(t, "application/json", client.types["archive/etc/x.json"])
}

func TestS3Storage_UploadError(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("access denied")
	store := NewS3Storage(client, S3Config{Bucket: "docs"}, zap.NewNop())

	err := store.Save(context.Background(), "a.xlsx", []byte("x"))
	assert.ErrorContains(t, err, "access denied")
}
