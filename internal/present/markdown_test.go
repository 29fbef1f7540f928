package present

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownForTTY(t *testing.T) {
	out, err := RenderMarkdownForTTY("| database | containers |\n|---|---|\n| inventory\t| 2 |\n", 80)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out, "\n"))
	require.False(t, strings.Contains(out, "\t"))
	require.Contains(t, out, "inventory")
}

func TestMakeGradientText(t *testing.T) {
	s := plainStyles()
	require.Equal(t, "ab", MakeGradientText(s.AppName, "ab"))
	require.Equal(t, "cosmos", MakeGradientText(s.AppName, "cosmos"))
	require.Len(t, MakeGradientRamp(4), 4)
}
