package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"a/b", "/a/b"},
		{"/a/b/", "/a/b"},
		{"/a/./b/../c", "/a/c"},
		{"/../../etc", "/etc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), "Clean(%q)", tt.in)
	}
}

func TestSplitJoin(t *testing.T) {
	assert.Nil(t, Split("/"))
	assert.Equal(t, []string{"a", "b", "c"}, Split("/a/b/c/"))
	assert.Equal(t, "/a/b/c", Join("/a", "b", "c"))
	assert.Equal(t, "/x", Join("/", "x"))
}

func TestBaseDir(t *testing.T) {
	assert.Equal(t, "", Base("/"))
	assert.Equal(t, "c.txt", Base("/a/b/c.txt"))
	assert.Equal(t, "/a/b", Dir("/a/b/c.txt"))
	assert.Equal(t, "/", Dir("/a"))
	assert.Equal(t, "/", Dir("/"))
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		p, root string
		want    bool
	}{
		{"/a", "/a", true},
		{"/a/b", "/a", true},
		{"/ab", "/a", false},
		{"/a", "/a/b", false},
		{"/anything", "/", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsWithin(tt.p, tt.root), "IsWithin(%q, %q)", tt.p, tt.root)
	}
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("report.pdf"))
	for _, name := range []string{"", ".", "..", "a/b", "nul\x00"} {
		assert.False(t, ValidName(name), "ValidName(%q)", name)
	}
}
