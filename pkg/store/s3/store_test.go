package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func TestKeyMapping(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		path    string
		wantDoc string
		wantDir string
	}{
		{"NoPrefix", "", "/a/b.txt", "a/b.txt", "a/b.txt/"},
		{"PrefixWithoutSlash", "share", "/a", "share/a", "share/a/"},
		{"PrefixWithSlash", "share/", "/a", "share/a", "share/a/"},
		{"LeadingSlashPrefix", "/share", "/a", "share/a", "share/a/"},
		{"RootNoPrefix", "", "/", "", ""},
		{"RootWithPrefix", "share", "/", "share/", "share/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, Config{Bucket: "bucket", KeyPrefix: tt.prefix})
			if tt.path != "/" {
				assert.Equal(t, tt.wantDoc, s.docKey(tt.path))
			}
			assert.Equal(t, tt.wantDir, s.dirKey(tt.path))
		})
	}
}

func TestIdentity(t *testing.T) {
	a := New(nil, Config{Bucket: "b", KeyPrefix: "one", Endpoint: "http://localhost:4566"})
	b := New(nil, Config{Bucket: "b", KeyPrefix: "two", Endpoint: "http://localhost:4566"})
	c := New(nil, Config{Bucket: "b", KeyPrefix: "one/", Endpoint: "http://localhost:4566"})

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID(), c.ID())
	assert.Equal(t, "s3", a.Type())
}

func TestIsNotFoundError(t *testing.T) {
	assert.False(t, isNotFoundError(nil))
	assert.True(t, isNotFoundError(&types.NoSuchKey{}))
	assert.True(t, isNotFoundError(fmt.Errorf("wrapped: %w", &types.NotFound{})))
	assert.True(t, isNotFoundError(errors.New("StatusCode: 404")))
	assert.False(t, isNotFoundError(errors.New("access denied")))
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	s := New(nil, Config{Bucket: "bucket"})
	assert.NoError(t, s.Close())
	_, err := s.Stat(t.Context(), "/")
	assert.Error(t, err)
}
