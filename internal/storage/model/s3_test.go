package model

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Store_ImplementsStore(t *testing.T) {
	var _ Store = (*S3Store)(nil)
}

func TestS3Store_Key(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{"", "model.keras", "model.keras"},
		{"models", "model.keras", "models/model.keras"},
		{"/models/", "model.keras", "models/model.keras"},
	}

	for _, tt := range tests {
		s := &S3Store{prefix: strings.Trim(tt.prefix, "/")}
		if got := s.key(tt.name); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.name, tt.prefix, got, tt.want)
		}
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

// fakeS3 answers the handful of path-style requests the store makes.
func fakeS3(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>models</Name><Prefix>investeai/</Prefix><KeyCount>2</KeyCount><MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>investeai/model_ep30.keras</Key><Size>7</Size></Contents>
  <Contents><Key>investeai/model_ep10.keras</Key><Size>7</Size></Contents>
</ListBucketResult>`))
		case r.URL.Path == "/models/investeai/model_ep30.keras" && r.Method == http.MethodHead:
			w.Header().Set("Content-Length", "7")
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/models/investeai/model_ep30.keras" && r.Method == http.MethodGet:
			w.Write([]byte("weights"))
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
		}
	}))
}

func newFakeS3Store(t *testing.T) *S3Store {
	srv := fakeS3(t)
	t.Cleanup(srv.Close)

	s, err := NewS3(S3Config{
		Bucket:    "models",
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "test",
		Prefix:    "investeai/",
	})
	require.NoError(t, err)
	return s
}

func TestS3Store_Exists(t *testing.T) {
	s := newFakeS3Store(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "model_ep30.keras")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "missing.keras")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestS3Store_Read(t *testing.T) {
	s := newFakeS3Store(t)
	ctx := context.Background()

	data, err := s.Read(ctx, "model_ep30.keras")
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))

	_, err = s.Read(ctx, "missing.keras")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestS3Store_List(t *testing.T) {
	s := newFakeS3Store(t)

	names, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"model_ep10.keras", "model_ep30.keras"}, names)
}
