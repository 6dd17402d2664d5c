package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"inventory-sync/core/storage"
	"inventory-sync/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"Simple", "s3://snapshots/site.yaml", "snapshots", "site.yaml", false},
		{"NestedKey", "s3://snapshots/dc1/2024/site.json", "snapshots", "dc1/2024/site.json", false},
		{"NoScheme", "snapshots/site.yaml", "", "", true},
		{"NoKey", "s3://snapshots", "", "", true},
		{"EmptyKey", "s3://snapshots/", "", "", true},
		{"NoBucket", "s3:///site.yaml", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := storage.ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestReadObject(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, "b", "k", mock.Anything).
			Return(io.NopCloser(strings.NewReader("payload")), nil)

		data, err := storage.ReadObject(ctx, client, "b", "k")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("GetError", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", mock.Anything, "b", "k", mock.Anything).Return(nil, errors.New("boom"))

		_, err := storage.ReadObject(ctx, client, "b", "k")
		assert.ErrorContains(t, err, "boom")
	})
}

func TestWriteObject(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesMissingBucket", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "reports").Return(false, nil)
		client.On("MakeBucket", mock.Anything, "reports", mock.Anything).Return(nil)
		client.On("PutObject", mock.Anything, "reports", "a/b.json", mock.Anything, int64(2), mock.MatchedBy(func(o minio.PutObjectOptions) bool {
			return o.ContentType == "application/json"
		})).Return(minio.UploadInfo{}, nil)

		require.NoError(t, storage.WriteObject(ctx, client, "reports", "a/b.json", []byte("{}"), "application/json"))
		client.AssertExpectations(t)
	})

	t.Run("ExistingBucket", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "reports").Return(true, nil)
		client.On("PutObject", mock.Anything, "reports", "k", mock.Anything, int64(1), mock.Anything).Return(minio.UploadInfo{}, nil)

		require.NoError(t, storage.WriteObject(ctx, client, "reports", "k", []byte("x"), "text/plain"))
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PutError", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("BucketExists", mock.Anything, "reports").Return(true, nil)
		client.On("PutObject", mock.Anything, "reports", "k", mock.Anything, mock.Anything, mock.Anything).Return(minio.UploadInfo{}, errors.New("denied"))

		err := storage.WriteObject(ctx, client, "reports", "k", []byte("x"), "text/plain")
		assert.ErrorContains(t, err, "denied")
	})
}
