package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectURL(t *testing.T) {
	tests := []struct {
		raw    string
		bucket string
		key    string
		ok     bool
	}{
		{raw: "s3://news/articles.zip", bucket: "news", key: "articles.zip", ok: true},
		{raw: "s3://news/2024/q1/articles.zip", bucket: "news", key: "2024/q1/articles.zip", ok: true},
		{raw: "s3://news", ok: false},
		{raw: "s3://news/", ok: false},
		{raw: "https://news/articles.zip", ok: false},
		{raw: "s3:///articles.zip", ok: false},
		{raw: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			bucket, key, err := ParseObjectURL(tt.raw)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidObjectURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestNewS3Client_StaticCredentials(t *testing.T) {
	client, err := NewS3Client(context.Background(), S3ClientConfig{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		UsePathStyle:    true,
	})

	require.NoError(t, err)
	assert.NotNil(t, client.client)
}
