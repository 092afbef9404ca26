package ipfls

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathToURI_EscapesLikeEditors(t *testing.T) {
	t.Parallel()
	uri := PathToURI("/w/a&b c+d@e.ipf")
	assert.Equal(t, "file:///w/a%26b%20c%2Bd%40e.ipf", uri)

	path, ok := URIToPath(uri)
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("/w/a&b c+d@e.ipf"), path)
}

func TestNormalizeURI(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"raw sub-delimiter", "file:///w/a&b.ipf", "file:///w/a%26b.ipf"},
		{"already encoded", "file:///w/a%26b.ipf", "file:///w/a%26b.ipf"},
		{"lower-case escape", "file:///w/a%2bb.ipf", "file:///w/a%2Bb.ipf"},
		{"plain", "file:///w/sub/a.ipf", "file:///w/sub/a.ipf"},
		{"host kept", "file://server/share/a b.ipf", "file://server/share/a%20b.ipf"},
		{"untitled", "untitled:Untitled-1", "untitled:Untitled-1"},
		{"builtin", "builtin", "builtin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURI(tt.in))
		})
	}
}
