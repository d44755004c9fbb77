package webdav

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/engine"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/lock"
)

func TestParseDepth(t *testing.T) {
	tests := []struct {
		value string
		want  engine.Depth
		ok    bool
	}{
		{"", engine.DepthInfinity, true},
		{"0", engine.DepthZero, true},
		{"1", engine.DepthOne, true},
		{"infinity", engine.DepthInfinity, true},
		{"Infinity", engine.DepthInfinity, true},
		{"2", engine.DepthInfinity, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseDepth(tt.value, engine.DepthInfinity)
			if !tt.ok {
				assert.True(t, daverrors.HasCode(err, daverrors.ErrBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOverwrite(t *testing.T) {
	v, err := parseOverwrite("")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = parseOverwrite("T")
	require.NoError(t, err)
	assert.True(t, *v)

	v, err = parseOverwrite("f")
	require.NoError(t, err)
	assert.False(t, *v)

	_, err = parseOverwrite("yes")
	assert.True(t, daverrors.HasCode(err, daverrors.ErrBadRequest))
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		name   string
		header string
		path   string
		remote string
		ok     bool
	}{
		{"SameHost", "http://example.com/a/b", "/a/b", "", true},
		{"SameHostDifferentCase", "http://EXAMPLE.com/a", "/a", "", true},
		{"AbsolutePath", "/a%20b/c", "/a b/c", "", true},
		{"HostOnly", "http://example.com", "/", "", true},
		{"OtherHost", "https://remote.example/dav/x", "/dav/x", "remote.example", true},
		{"OtherPort", "http://example.com:8443/x", "/x", "example.com:8443", true},
		{"Missing", "", "", "", false},
		{"RelativePath", "docs/a", "", "", false},
		{"NoHost", "http:///a", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("COPY", "/src", nil)
			if tt.header != "" {
				r.Header.Set(HeaderDestination, tt.header)
			}

			dest, err := parseDestination(r)
			if !tt.ok {
				assert.True(t, daverrors.HasCode(err, daverrors.ErrBadRequest), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.path, dest.Path)
			if tt.remote == "" {
				assert.False(t, dest.IsRemote())
			} else {
				require.True(t, dest.IsRemote())
				assert.Equal(t, tt.remote, dest.URL.Host)
			}
		})
	}
}

func TestParseIfTokens(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{"Empty", "", nil},
		{"Untagged", "(<opaquelocktoken:a>)", []string{"opaquelocktoken:a"}},
		{"Tagged", "</docs/x> (<opaquelocktoken:a>)", []string{"opaquelocktoken:a"}},
		{"WithETag", `(<opaquelocktoken:a> ["etag-1"])`, []string{"opaquelocktoken:a"}},
		{"Negated", "(Not <opaquelocktoken:a>) (<opaquelocktoken:b>)", []string{"opaquelocktoken:b"}},
		{"Alternatives", "(<opaquelocktoken:a>) (<opaquelocktoken:b>)", []string{"opaquelocktoken:a", "opaquelocktoken:b"}},
		{"Duplicates", "(<opaquelocktoken:a>) (<opaquelocktoken:a>)", []string{"opaquelocktoken:a"}},
		{"Unterminated", "(<opaquelocktoken:a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseIfTokens(tt.header))
		})
	}
}

func TestParseLockToken(t *testing.T) {
	token, err := parseLockToken(" <opaquelocktoken:abc> ")
	require.NoError(t, err)
	assert.Equal(t, "opaquelocktoken:abc", token)

	for _, bad := range []string{"", "<>", "opaquelocktoken:abc", "<opaquelocktoken:abc"} {
		_, err := parseLockToken(bad)
		assert.True(t, daverrors.HasCode(err, daverrors.ErrBadRequest), "header %q", bad)
	}
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"Second-600", 600 * time.Second},
		{"second-5", 5 * time.Second},
		{"Infinite, Second-10", lock.Infinite},
		{"Second-x, Second-30", 30 * time.Second},
		{"Second-0", 0},
		{"Minute-5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTimeout(tt.header))
		})
	}
}

func TestFormatTimeout(t *testing.T) {
	assert.Equal(t, "Infinite", formatTimeout(0))
	assert.Equal(t, "Second-600", formatTimeout(10*time.Minute))
}

func TestParseETags(t *testing.T) {
	assert.Nil(t, parseETags(""))
	assert.Equal(t, []string{`"a"`, `W/"b"`}, parseETags(`"a", W/"b"`))
	assert.Equal(t, []string{"*"}, parseETags("*"))
}
