package ipfls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncludeDirectives(t *testing.T) {
	t.Parallel()
	got := IncludeDirectives([]string{
		"file:///w/lib/Utils.ipf",
		"file:///Applications/Igor/WaveMetrics%20Procedures/Graphing/Axis%20Utilities.ipf",
		"file:///w/readme.md",
		" file:///w/Other.IPF ",
	})
	assert.Equal(t, "#include \"Utils\"\n#include <Axis Utilities>\n#include \"Other\"\n", got)
}

func TestIncludeDirectives_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, IncludeDirectives(nil))
}
