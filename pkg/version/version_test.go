package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	v := Version()
	require.True(t, strings.HasPrefix(v, version+" ("), v)
	require.True(t, strings.HasSuffix(v, ")"), v)
}
