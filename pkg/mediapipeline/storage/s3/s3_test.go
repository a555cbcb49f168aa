package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNewDefaultsRegion(t *testing.T) {
	backend, err := New(Config{Bucket: "photos"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", backend.config.Region)
}

func TestNewWithStaticCredentialsAndEndpoint(t *testing.T) {
	backend, err := New(Config{
		Bucket:          "photos",
		Region:          "auto",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://account.r2.cloudflarestorage.com",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	assert.NotNil(t, backend.client)
	assert.NotNil(t, backend.uploader)
}

func TestPublicURL(t *testing.T) {
	aws, err := New(Config{Bucket: "photos", Region: "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t,
		"https://photos.s3.eu-west-1.amazonaws.com/album/pic.jpg",
		aws.PublicURL("album/pic.jpg"))

	r2, err := New(Config{
		Bucket:   "photos",
		Endpoint: "https://account.r2.cloudflarestorage.com/",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"https://account.r2.cloudflarestorage.com/photos/album/pic.jpg",
		r2.PublicURL("album/pic.jpg"))
}

func TestPublicURLEscapesKeySegments(t *testing.T) {
	backend, err := New(Config{Bucket: "photos", Region: "us-east-1"})
	require.NoError(t, err)

	url := backend.PublicURL("album 1/my pic.jpg")
	assert.Equal(t, "https://photos.s3.us-east-1.amazonaws.com/album%201/my%20pic.jpg", url)
}

func TestKeyFromURLRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		key  string
	}{
		{"aws virtual hosted", Config{Bucket: "photos", Region: "us-east-1"}, "album/pic.jpg"},
		{"aws escaped key", Config{Bucket: "photos", Region: "us-east-1"}, "album 1/my pic.jpg"},
		{"custom endpoint", Config{Bucket: "photos", Endpoint: "http://localhost:9000"}, "album/pic.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := New(tt.cfg)
			require.NoError(t, err)

			key, ok := backend.KeyFromURL(backend.PublicURL(tt.key))
			require.True(t, ok)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestKeyFromURLForeignURL(t *testing.T) {
	backend, err := New(Config{Bucket: "photos"})
	require.NoError(t, err)

	_, ok := backend.KeyFromURL("https://cdn.example.com/album/pic.jpg")
	assert.False(t, ok)
}
